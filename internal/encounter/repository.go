package encounter

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrEncounterNotFound = errors.New("encounter not found")
	ErrTriageNotFound    = errors.New("no triage record for appointment")
	ErrLabOrderNotFound  = errors.New("lab order not found")
	ErrEmptyLabResults   = errors.New("results must be recorded before completing a lab order")
)

// Repository persists encounters and their clinical attachments. Appointment
// status itself lives in the booking repository; both move in step through
// the service.
type Repository interface {
	// Triage vitals are recorded at check-in, before the encounter record
	// exists, and folded into the encounter when consultation begins.
	SaveTriage(ctx context.Context, appointmentID uuid.UUID, v Vitals) error
	GetTriage(ctx context.Context, appointmentID uuid.UUID) (*Vitals, error)

	CreateEncounter(ctx context.Context, appointmentID uuid.UUID, v *Vitals) (*Encounter, error)
	GetEncounterByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Encounter, error)

	SaveConsultation(ctx context.Context, encounterID uuid.UUID, c Consultation) error

	CreateLabOrder(ctx context.Context, encounterID uuid.UUID, requestedTests string) (*LabOrder, error)
	ListLabOrders(ctx context.Context, encounterID uuid.UUID) ([]LabOrder, error)
	StartLabOrder(ctx context.Context, orderID uuid.UUID) (*LabOrder, error)
	// CompleteLabOrder rejects empty results with ErrEmptyLabResults.
	CompleteLabOrder(ctx context.Context, orderID uuid.UUID, results string) (*LabOrder, error)
}
