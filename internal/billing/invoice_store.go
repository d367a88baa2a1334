package billing

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrInvoiceNotFound = errors.New("invoice not found")

// InvoiceStore persists issued invoices. Records are append-only.
type InvoiceStore interface {
	InsertInvoice(ctx context.Context, inv Invoice) (*Invoice, error)
	GetInvoiceByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Invoice, error)
}

type PgInvoiceStore struct {
	pool *pgxpool.Pool
}

func NewPgInvoiceStore(pool *pgxpool.Pool) *PgInvoiceStore {
	return &PgInvoiceStore{pool: pool}
}

func (s *PgInvoiceStore) InsertInvoice(ctx context.Context, inv Invoice) (*Invoice, error) {
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO invoices (id, appointment_id, subtotal_cents, tax_cents, total_cents, method, insurance_ref, reverses_id, issued_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		RETURNING id, appointment_id, subtotal_cents, tax_cents, total_cents, method, insurance_ref, reverses_id, issued_at
	`, inv.ID, inv.AppointmentID, inv.SubtotalCents, inv.TaxCents, inv.TotalCents, inv.Method, inv.InsuranceRef, inv.ReversesID)

	return scanInvoice(row)
}

func (s *PgInvoiceStore) GetInvoiceByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Invoice, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, appointment_id, subtotal_cents, tax_cents, total_cents, method, insurance_ref, reverses_id, issued_at
		FROM invoices
		WHERE appointment_id = $1
		  AND reverses_id IS NULL
		ORDER BY issued_at DESC
		LIMIT 1
	`, appointmentID)
	return scanInvoice(row)
}

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.AppointmentID, &inv.SubtotalCents, &inv.TaxCents, &inv.TotalCents,
		&inv.Method, &inv.InsuranceRef, &inv.ReversesID, &inv.IssuedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}
	return &inv, nil
}

// MemoryInvoiceStore serves tests and the simulator.
type MemoryInvoiceStore struct {
	mu       sync.RWMutex
	invoices []Invoice
}

func NewMemoryInvoiceStore() *MemoryInvoiceStore {
	return &MemoryInvoiceStore{}
}

func (s *MemoryInvoiceStore) InsertInvoice(_ context.Context, inv Invoice) (*Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	if inv.IssuedAt.IsZero() {
		inv.IssuedAt = time.Now()
	}
	s.invoices = append(s.invoices, inv)
	return &inv, nil
}

func (s *MemoryInvoiceStore) GetInvoiceByAppointment(_ context.Context, appointmentID uuid.UUID) (*Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.invoices) - 1; i >= 0; i-- {
		inv := s.invoices[i]
		if inv.AppointmentID == appointmentID && inv.ReversesID == nil {
			return &inv, nil
		}
	}
	return nil, ErrInvoiceNotFound
}
