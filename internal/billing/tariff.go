package billing

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrTariffNotFound = errors.New("no active tariff for specialty")

// TariffStore is the read-only boundary to the tariff registry.
type TariffStore interface {
	GetBySpecialty(ctx context.Context, specialty string) (*Tariff, error)
}

type PgTariffStore struct {
	pool *pgxpool.Pool
}

func NewPgTariffStore(pool *pgxpool.Pool) *PgTariffStore {
	return &PgTariffStore{pool: pool}
}

func (s *PgTariffStore) GetBySpecialty(ctx context.Context, specialty string) (*Tariff, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, specialty, amount_cents, active, updated_at
		FROM tariffs
		WHERE lower(specialty) = lower($1)
		  AND active
	`, specialty)

	var t Tariff
	err := row.Scan(&t.ID, &t.Specialty, &t.AmountCents, &t.Active, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTariffNotFound
		}
		return nil, err
	}
	return &t, nil
}

// MemoryTariffStore serves tests and the simulator.
type MemoryTariffStore struct {
	mu      sync.RWMutex
	tariffs map[string]Tariff
}

func NewMemoryTariffStore() *MemoryTariffStore {
	return &MemoryTariffStore{tariffs: make(map[string]Tariff)}
}

func (s *MemoryTariffStore) Put(t Tariff) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tariffs[strings.ToLower(t.Specialty)] = t
}

func (s *MemoryTariffStore) GetBySpecialty(_ context.Context, specialty string) (*Tariff, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tariffs[strings.ToLower(specialty)]
	if !ok || !t.Active {
		return nil, ErrTariffNotFound
	}
	return &t, nil
}
