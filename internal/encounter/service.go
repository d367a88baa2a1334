package encounter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/danteprogrammer/clinica-core/internal/billing"
	"github.com/danteprogrammer/clinica-core/internal/booking"
	"github.com/danteprogrammer/clinica-core/internal/civil"
)

var (
	ErrGuardFailed    = errors.New("transition guard failed")
	ErrAmountMismatch = errors.New("payment amount does not match invoice total")
	ErrSlotElapsed    = errors.New("slot is no longer valid")
)

// Biller is the slice of the billing service the pay guard needs.
type Biller interface {
	ComputeInvoice(ctx context.Context, appt *booking.Appointment, method billing.PaymentMethod, ins *billing.InsuranceInfo) (*billing.Invoice, error)
	IssueInvoice(ctx context.Context, inv *billing.Invoice) (*billing.Invoice, error)
}

// PaymentInput is the pay event payload from the cashier desk.
type PaymentInput struct {
	AmountCents int64                  `json:"amount_cents"`
	Method      billing.PaymentMethod  `json:"method"`
	Insurance   *billing.InsuranceInfo `json:"insurance,omitempty"`
}

// TransitionRequest carries one departmental action against an appointment.
// Exactly the payload fields for the requested event are consulted.
type TransitionRequest struct {
	AppointmentID  uuid.UUID
	Event          Event
	Actor          Role
	Vitals         *Vitals              // check_in
	Consultation   *Consultation        // finish_consultation
	RequestedTests string               // order_lab
	LabResults     map[uuid.UUID]string // lab_completed, keyed by order id
	Payment        *PaymentInput        // pay
}

// TransitionResult reports the state after the request, whether anything
// changed, and the invoice when the encounter just completed.
type TransitionResult struct {
	Appointment *booking.Appointment
	Noop        bool
	Invoice     *billing.Invoice
}

// Service drives the encounter state machine. Every transition is
// authorized, guarded, then applied with a status CAS so concurrent requests
// against the same encounter serialize; the loser observes a retryable
// conflict.
type Service struct {
	appts  booking.Repository
	repo   Repository
	biller Biller
	loc    *time.Location
	now    func() time.Time
	log    zerolog.Logger
}

func NewService(appts booking.Repository, repo Repository, biller Biller, loc *time.Location, log zerolog.Logger) *Service {
	return &Service{
		appts:  appts,
		repo:   repo,
		biller: biller,
		loc:    loc,
		now:    time.Now,
		log:    log.With().Str("component", "encounter").Logger(),
	}
}

// WithClock overrides the guard clock, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) Transition(ctx context.Context, req TransitionRequest) (*TransitionResult, error) {
	appt, err := s.appts.GetAppointmentByID(ctx, req.AppointmentID)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	to, noop, err := Next(appt.Status, req.Event)
	if err != nil {
		return nil, err
	}
	if noop {
		// Idempotent resubmission: no authorization, no guard, no write.
		return &TransitionResult{Appointment: appt, Noop: true}, nil
	}

	if !Authorize(req.Actor, appt.Status, req.Event) {
		return nil, fmt.Errorf("%w: %s may not fire %s from %s", ErrNotAuthorized, req.Actor, req.Event, appt.Status)
	}

	var invoice *billing.Invoice
	if invoice, err = s.runGuard(ctx, appt, req); err != nil {
		return nil, err
	}

	updated, err := s.appts.UpdateStatus(ctx, appt.ID, appt.Status, to)
	if err != nil {
		return nil, err
	}

	if req.Event == EventPay && invoice != nil {
		issued, issueErr := s.biller.IssueInvoice(ctx, invoice)
		if issueErr != nil {
			// The encounter is completed; the invoice can be re-issued
			// from the audit trail, so this is not rolled back.
			s.log.Error().Err(issueErr).Str("appointment_id", appt.ID.String()).Msg("issue invoice after pay")
		} else {
			invoice = issued
		}
	}

	s.logEvent(ctx, appt.ID, req)

	s.log.Info().
		Str("appointment_id", appt.ID.String()).
		Str("event", string(req.Event)).
		Str("actor", string(req.Actor)).
		Str("from", string(appt.Status)).
		Str("to", string(updated.Status)).
		Msg("transition applied")

	return &TransitionResult{Appointment: updated, Invoice: invoice}, nil
}

// runGuard enforces the per-event guard and performs the event's clinical
// writes. Guards run before the status CAS; a failed guard leaves the
// appointment state untouched.
func (s *Service) runGuard(ctx context.Context, appt *booking.Appointment, req TransitionRequest) (*billing.Invoice, error) {
	switch req.Event {
	case EventConfirm:
		if !civil.At(appt.Date, appt.Start, s.loc).After(s.now()) {
			return nil, ErrSlotElapsed
		}

	case EventCheckIn:
		if req.Vitals == nil {
			return nil, fmt.Errorf("%w: vitals are required at check-in", ErrGuardFailed)
		}
		if err := req.Vitals.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrGuardFailed, err)
		}
		if err := s.repo.SaveTriage(ctx, appt.ID, *req.Vitals); err != nil {
			return nil, fmt.Errorf("save triage: %w", err)
		}

	case EventBeginConsultation:
		vitals, err := s.repo.GetTriage(ctx, appt.ID)
		if err != nil {
			if errors.Is(err, ErrTriageNotFound) {
				return nil, fmt.Errorf("%w: vitals must be recorded before consultation", ErrGuardFailed)
			}
			return nil, fmt.Errorf("load triage: %w", err)
		}
		if _, err := s.repo.CreateEncounter(ctx, appt.ID, vitals); err != nil {
			return nil, fmt.Errorf("create encounter: %w", err)
		}

	case EventOrderLab:
		if strings.TrimSpace(req.RequestedTests) == "" {
			return nil, fmt.Errorf("%w: requested tests must not be empty", ErrGuardFailed)
		}
		enc, err := s.repo.GetEncounterByAppointment(ctx, appt.ID)
		if err != nil {
			return nil, fmt.Errorf("load encounter: %w", err)
		}
		if _, err := s.repo.CreateLabOrder(ctx, enc.ID, req.RequestedTests); err != nil {
			return nil, fmt.Errorf("create lab order: %w", err)
		}

	case EventLabCompleted:
		if err := s.completeLabOrders(ctx, appt.ID, req.LabResults); err != nil {
			return nil, err
		}

	case EventFinishConsultation:
		if req.Consultation == nil {
			return nil, fmt.Errorf("%w: consultation notes are required", ErrGuardFailed)
		}
		if err := req.Consultation.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrGuardFailed, err)
		}
		enc, err := s.repo.GetEncounterByAppointment(ctx, appt.ID)
		if err != nil {
			return nil, fmt.Errorf("load encounter: %w", err)
		}
		if err := s.repo.SaveConsultation(ctx, enc.ID, *req.Consultation); err != nil {
			return nil, fmt.Errorf("save consultation: %w", err)
		}

	case EventPay:
		if req.Payment == nil || !req.Payment.Method.Valid() {
			return nil, fmt.Errorf("%w: a payment method is required", ErrGuardFailed)
		}
		invoice, err := s.biller.ComputeInvoice(ctx, appt, req.Payment.Method, req.Payment.Insurance)
		if err != nil {
			return nil, fmt.Errorf("compute invoice: %w", err)
		}
		if req.Payment.AmountCents != invoice.TotalCents {
			return nil, fmt.Errorf("%w: tendered %d, invoice total %d", ErrAmountMismatch, req.Payment.AmountCents, invoice.TotalCents)
		}
		return invoice, nil

	case EventCancel:
		// No extra guard; the authority matrix already scopes who may
		// cancel from where.
	}

	return nil, nil
}

// completeLabOrders records results on every open order for the encounter.
// All of them must receive non-empty results or the transition fails.
func (s *Service) completeLabOrders(ctx context.Context, appointmentID uuid.UUID, results map[uuid.UUID]string) error {
	enc, err := s.repo.GetEncounterByAppointment(ctx, appointmentID)
	if err != nil {
		return fmt.Errorf("load encounter: %w", err)
	}

	open := 0
	for _, o := range enc.LabOrders {
		if o.Status == LabCompleted {
			continue
		}
		open++
		r, ok := results[o.ID]
		if !ok || strings.TrimSpace(r) == "" {
			return fmt.Errorf("%w: order %s has no results recorded", ErrGuardFailed, o.ID)
		}
	}
	if open == 0 {
		return fmt.Errorf("%w: no open lab orders to complete", ErrGuardFailed)
	}

	for _, o := range enc.LabOrders {
		if o.Status == LabCompleted {
			continue
		}
		if _, err := s.repo.CompleteLabOrder(ctx, o.ID, results[o.ID]); err != nil {
			return fmt.Errorf("complete lab order %s: %w", o.ID, err)
		}
	}
	return nil
}

// StartLabOrder marks a pending order as in process at the bench. This is a
// lab-internal step, not a state machine event, but it is still role-gated.
func (s *Service) StartLabOrder(ctx context.Context, orderID uuid.UUID, actor Role) (*LabOrder, error) {
	if actor != RoleLab {
		return nil, ErrNotAuthorized
	}
	order, err := s.repo.StartLabOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *Service) GetEncounter(ctx context.Context, appointmentID uuid.UUID) (*Encounter, error) {
	enc, err := s.repo.GetEncounterByAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	return enc, nil
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, req TransitionRequest) {
	payload, err := json.Marshal(map[string]any{
		"event": string(req.Event),
		"actor": string(req.Actor),
	})
	if err != nil {
		payload = nil
	}

	apptID := appointmentID
	ev := booking.AuditEvent{
		EventType:     "ENCOUNTER_" + strings.ToUpper(string(req.Event)),
		AppointmentID: &apptID,
		Payload:       payload,
	}
	if err := s.appts.InsertEvent(ctx, ev); err != nil {
		s.log.Error().Err(err).Str("appointment_id", appointmentID.String()).Msg("insert event log")
	}
}
