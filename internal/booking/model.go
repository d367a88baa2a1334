package booking

import (
	"time"

	"github.com/google/uuid"

	"github.com/danteprogrammer/clinica-core/internal/civil"
)

// Status is the lifecycle state of an appointment. The clinical stages are
// driven by the encounter state machine; the ledger only cares about the
// terminal/non-terminal split for slot occupancy.
type Status string

const (
	StatusPending         Status = "pending"
	StatusConfirmed       Status = "confirmed"
	StatusTriaged         Status = "triaged"
	StatusInProgress      Status = "in_progress"
	StatusLabOrdered      Status = "lab_ordered"
	StatusAwaitingPayment Status = "awaiting_payment"
	StatusCompleted       Status = "completed"
	StatusCancelled       Status = "cancelled"
)

// Terminal reports whether no further transitions are permitted.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Active reports whether the appointment still occupies its slot. Cancelled
// and completed appointments free the slot for reuse but stay in history.
func (s Status) Active() bool {
	return !s.Terminal()
}

// ActiveStatuses enumerates every slot-occupying status, for SQL IN clauses.
func ActiveStatuses() []Status {
	return []Status{
		StatusPending,
		StatusConfirmed,
		StatusTriaged,
		StatusInProgress,
		StatusLabOrdered,
		StatusAwaitingPayment,
	}
}

// Patient is owned by the patient registry; the ledger performs existence
// lookups only.
type Patient struct {
	ID        uuid.UUID
	FullName  string
	Document  string
	HasCover  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Appointment struct {
	ID              uuid.UUID
	DoctorID        uuid.UUID
	PatientID       uuid.UUID
	RoomID          *uuid.UUID
	Date            civil.Date
	Start           civil.TimeOfDay
	DurationMinutes int
	Reason          string
	Status          Status
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// AuditEvent is an append-only record of every accepted mutation, on the
// ledger and on encounters alike.
type AuditEvent struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
