package booking

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/danteprogrammer/clinica-core/internal/civil"
)

var (
	ErrPatientNotFound     = errors.New("patient not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrSlotTaken           = errors.New("slot already held by an active appointment")
	ErrVersionConflict     = errors.New("stale appointment version, refetch and retry")
	ErrConcurrentUpdate    = errors.New("appointment changed concurrently")
)

// Repository contains all DB interactions needed by the ledger and the
// encounter service.
type Repository interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error)

	// GetActiveAppointmentAt is the conflict check performed inside the
	// agenda lock. Returns ErrAppointmentNotFound when the slot is free.
	GetActiveAppointmentAt(ctx context.Context, doctorID uuid.UUID, date civil.Date, start civil.TimeOfDay) (*Appointment, error)

	// CreateAppointment inserts a pending appointment at version 1.
	CreateAppointment(ctx context.Context, appt Appointment) (*Appointment, error)

	// UpdateStatus applies a status CAS (WHERE status = from) and bumps the
	// version. ErrConcurrentUpdate when the row exists but no longer holds
	// the expected status.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)

	// UpdateStatusVersioned additionally checks the caller's observed
	// version; ErrVersionConflict when it is stale.
	UpdateStatusVersioned(ctx context.Context, id uuid.UUID, expectedVersion int64, to Status) (*Appointment, error)

	// MoveAppointment changes date and start time as one atomic unit,
	// re-checking the target slot inside the same transaction. The original
	// row is untouched on any failure.
	MoveAppointment(ctx context.Context, id uuid.UUID, expectedVersion int64, newDate civil.Date, newStart civil.TimeOfDay) (*Appointment, error)

	// For the availability engine.
	ActiveSlotKeys(ctx context.Context, doctorID uuid.UUID, from, to civil.Date) (map[string]struct{}, error)

	// For the no-show sweeper: pending appointments whose slot has passed.
	FindPendingBefore(ctx context.Context, cutoffDate civil.Date, cutoffStart civil.TimeOfDay) ([]Appointment, error)

	InsertEvent(ctx context.Context, ev AuditEvent) error
}

// Locker guards the reserve/reschedule critical section per (doctor, date).
type Locker interface {
	WithAgendaLock(ctx context.Context, doctorID uuid.UUID, date civil.Date, fn func(ctx context.Context) error) error
}
