package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/danteprogrammer/clinica-core/internal/civil"
	redisclient "github.com/danteprogrammer/clinica-core/internal/redis"
	"github.com/danteprogrammer/clinica-core/internal/schedule"
)

const (
	EventAppointmentReserved    = "APPOINTMENT_RESERVED"
	EventAppointmentCancelled   = "APPOINTMENT_CANCELLED"
	EventAppointmentRescheduled = "APPOINTMENT_RESCHEDULED"
)

var (
	ErrSlotUnavailable = errors.New("slot is not bookable for this doctor")
	ErrAgendaBusy      = errors.New("agenda is being modified, please retry")
	ErrAlreadyTerminal = errors.New("appointment is already in a terminal state")
	ErrInvalidReserve  = errors.New("invalid reservation request")
)

func isLockNotAcquired(err error) bool {
	return errors.Is(err, redisclient.ErrLockNotAcquired)
}

// SlotValidator is the availability engine viewed from the ledger: it decides
// whether a requested slot exists in the doctor's effective schedule.
type SlotValidator interface {
	ComputeSlots(ctx context.Context, doctorID uuid.UUID, from, to civil.Date) ([]schedule.Slot, error)
}

// Ledger owns the appointment set and the booking invariant: at most one
// active appointment per (doctor, date, time).
type Ledger struct {
	repo   Repository
	slots  SlotValidator
	locker Locker
	log    zerolog.Logger
}

func NewLedger(repo Repository, slots SlotValidator, locker Locker, log zerolog.Logger) *Ledger {
	return &Ledger{
		repo:   repo,
		slots:  slots,
		locker: locker,
		log:    log.With().Str("component", "ledger").Logger(),
	}
}

type ReserveRequest struct {
	DoctorID        uuid.UUID
	PatientID       uuid.UUID
	RoomID          *uuid.UUID
	Date            civil.Date
	Start           civil.TimeOfDay
	DurationMinutes int
	Reason          string
}

func (req ReserveRequest) validate() error {
	if req.DoctorID == uuid.Nil || req.PatientID == uuid.Nil {
		return fmt.Errorf("%w: doctor and patient are required", ErrInvalidReserve)
	}
	if req.Date.IsZero() || !req.Start.Valid() {
		return fmt.Errorf("%w: date and time are required", ErrInvalidReserve)
	}
	if req.DurationMinutes <= 0 {
		return fmt.Errorf("%w: duration must be positive", ErrInvalidReserve)
	}
	return nil
}

// Reserve books a slot for a patient. The external lookups (patient registry,
// availability snapshot) are resolved before the agenda lock is taken; inside
// the critical section only the conflict re-check and the insert run.
func (l *Ledger) Reserve(ctx context.Context, req ReserveRequest) (*Appointment, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	if _, err := l.repo.GetPatientByID(ctx, req.PatientID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	available, err := l.slots.ComputeSlots(ctx, req.DoctorID, req.Date, req.Date)
	if err != nil {
		return nil, fmt.Errorf("compute slots: %w", err)
	}
	if !slotOffered(available, req.Date, req.Start, req.DurationMinutes) {
		return nil, ErrSlotUnavailable
	}

	var created *Appointment

	err = l.locker.WithAgendaLock(ctx, req.DoctorID, req.Date, func(lockCtx context.Context) error {
		existing, err := l.repo.GetActiveAppointmentAt(lockCtx, req.DoctorID, req.Date, req.Start)
		if err != nil && !errors.Is(err, ErrAppointmentNotFound) {
			return fmt.Errorf("check active appointment: %w", err)
		}
		if existing != nil {
			return ErrSlotTaken
		}

		appt, err := l.repo.CreateAppointment(lockCtx, Appointment{
			DoctorID:        req.DoctorID,
			PatientID:       req.PatientID,
			RoomID:          req.RoomID,
			Date:            req.Date,
			Start:           req.Start,
			DurationMinutes: req.DurationMinutes,
			Reason:          req.Reason,
		})
		if err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}

		created = appt
		l.logEvent(lockCtx, appt.ID, EventAppointmentReserved, map[string]any{
			"doctor_id":  req.DoctorID.String(),
			"patient_id": req.PatientID.String(),
			"date":       req.Date.String(),
			"time":       req.Start.String(),
		})
		return nil
	})

	if err != nil {
		if isLockNotAcquired(err) {
			return nil, ErrAgendaBusy
		}
		return nil, err
	}

	l.log.Info().
		Str("appointment_id", created.ID.String()).
		Str("doctor_id", req.DoctorID.String()).
		Str("slot", schedule.SlotKey(req.Date, req.Start)).
		Msg("slot reserved")

	return created, nil
}

// Cancel moves an appointment to cancelled under an optimistic version check.
// Cancellation is append-only: the row stays in history and the slot frees up.
func (l *Ledger) Cancel(ctx context.Context, id uuid.UUID, expectedVersion int64, reason string) (*Appointment, error) {
	appt, err := l.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if appt.Status.Terminal() {
		if appt.Status == StatusCancelled {
			// Duplicate cancel is a no-op, not an error.
			return appt, nil
		}
		return nil, ErrAlreadyTerminal
	}

	updated, err := l.repo.UpdateStatusVersioned(ctx, id, expectedVersion, StatusCancelled)
	if err != nil {
		return nil, err
	}

	l.logEvent(ctx, id, EventAppointmentCancelled, map[string]any{"reason": reason})
	return updated, nil
}

// Reschedule moves an appointment to a new slot as one atomic unit: either the
// appointment ends up on the new slot, or it is left exactly as it was.
func (l *Ledger) Reschedule(ctx context.Context, id uuid.UUID, newDate civil.Date, newStart civil.TimeOfDay, expectedVersion int64) (*Appointment, error) {
	appt, err := l.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if appt.Status.Terminal() {
		return nil, ErrAlreadyTerminal
	}

	available, err := l.slots.ComputeSlots(ctx, appt.DoctorID, newDate, newDate)
	if err != nil {
		return nil, fmt.Errorf("compute slots: %w", err)
	}
	if !slotOffered(available, newDate, newStart, appt.DurationMinutes) {
		return nil, ErrSlotUnavailable
	}

	var moved *Appointment

	err = l.locker.WithAgendaLock(ctx, appt.DoctorID, newDate, func(lockCtx context.Context) error {
		m, err := l.repo.MoveAppointment(lockCtx, id, expectedVersion, newDate, newStart)
		if err != nil {
			return err
		}
		moved = m
		l.logEvent(lockCtx, id, EventAppointmentRescheduled, map[string]any{
			"from_date": appt.Date.String(),
			"from_time": appt.Start.String(),
			"to_date":   newDate.String(),
			"to_time":   newStart.String(),
		})
		return nil
	})

	if err != nil {
		if isLockNotAcquired(err) {
			return nil, ErrAgendaBusy
		}
		return nil, err
	}
	return moved, nil
}

func (l *Ledger) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := l.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

func (l *Ledger) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	appts, err := l.repo.ListAppointmentsByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments by patient: %w", err)
	}
	return appts, nil
}

// CancelNoShows marks every pending appointment whose slot has passed as
// cancelled. Called periodically by the sweeper worker.
func (l *Ledger) CancelNoShows(ctx context.Context, now civil.Date, nowTime civil.TimeOfDay) (int, error) {
	stale, err := l.repo.FindPendingBefore(ctx, now, nowTime)
	if err != nil {
		return 0, fmt.Errorf("find stale pending appointments: %w", err)
	}

	cancelled := 0
	for _, appt := range stale {
		_, err := l.repo.UpdateStatus(ctx, appt.ID, StatusPending, StatusCancelled)
		if err != nil {
			if errors.Is(err, ErrConcurrentUpdate) || errors.Is(err, ErrAppointmentNotFound) {
				continue
			}
			l.log.Error().Err(err).Str("appointment_id", appt.ID.String()).Msg("no-show cancel failed")
			continue
		}
		cancelled++
		l.logEvent(ctx, appt.ID, EventAppointmentCancelled, map[string]any{"reason": "no_show"})
	}
	return cancelled, nil
}

func (l *Ledger) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		l.log.Error().Err(err).Str("event", eventType).Msg("marshal event payload")
		data = nil
	}

	apptID := appointmentID
	ev := AuditEvent{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
	}
	if err := l.repo.InsertEvent(ctx, ev); err != nil {
		l.log.Error().Err(err).Str("event", eventType).Str("appointment_id", appointmentID.String()).Msg("insert event log")
	}
}

func slotOffered(slots []schedule.Slot, date civil.Date, start civil.TimeOfDay, minutes int) bool {
	for _, s := range slots {
		if s.Date == date && s.Start == start && s.Minutes == minutes {
			return true
		}
	}
	return false
}
