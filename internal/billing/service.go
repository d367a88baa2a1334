package billing

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/danteprogrammer/clinica-core/internal/booking"
	"github.com/danteprogrammer/clinica-core/internal/schedule"
)

// Service computes and issues invoices for completed encounters.
type Service struct {
	tariffs   TariffStore
	doctors   schedule.Store
	insurance InsuranceValidator
	invoices  InvoiceStore
	log       zerolog.Logger
}

func NewService(tariffs TariffStore, doctors schedule.Store, insurance InsuranceValidator, invoices InvoiceStore, log zerolog.Logger) *Service {
	return &Service{
		tariffs:   tariffs,
		doctors:   doctors,
		insurance: insurance,
		invoices:  invoices,
		log:       log.With().Str("component", "billing").Logger(),
	}
}

// ComputeInvoice prices an appointment against the specialty tariff. A valid
// insurance policy reduces the payable total to zero and records the insurer
// as payer; an unreachable insurance service degrades to "not validated" and
// the full tariff stays payable. The invoice is not persisted here.
func (s *Service) ComputeInvoice(ctx context.Context, appt *booking.Appointment, method PaymentMethod, ins *InsuranceInfo) (*Invoice, error) {
	doctor, err := s.doctors.GetDoctorByID(ctx, appt.DoctorID)
	if err != nil {
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	tariff, err := s.tariffs.GetBySpecialty(ctx, doctor.Specialty)
	if err != nil {
		return nil, fmt.Errorf("load tariff: %w", err)
	}

	total := tariff.AmountCents
	var insuranceRef *string

	if ins != nil && strings.TrimSpace(ins.Insurer) != "" {
		validation, err := s.insurance.Validate(ctx, appt.PatientID, *ins)
		if err != nil {
			// Best-effort collaborator: downgrade to direct payment.
			s.log.Warn().Err(err).
				Str("appointment_id", appt.ID.String()).
				Msg("insurance validation unavailable, requiring direct payment")
		} else if validation.Valid {
			total = 0
			ref := fmt.Sprintf("%s / %s", validation.Insurer, validation.Policy)
			insuranceRef = &ref
			method = MethodInsurance
		}
	}

	subtotal, tax := splitIGV(total)

	return &Invoice{
		AppointmentID: appt.ID,
		SubtotalCents: subtotal,
		TaxCents:      tax,
		TotalCents:    total,
		Method:        method,
		InsuranceRef:  insuranceRef,
	}, nil
}

// IssueInvoice persists a computed invoice once the encounter is completed.
func (s *Service) IssueInvoice(ctx context.Context, inv *Invoice) (*Invoice, error) {
	issued, err := s.invoices.InsertInvoice(ctx, *inv)
	if err != nil {
		return nil, fmt.Errorf("insert invoice: %w", err)
	}
	s.log.Info().
		Str("invoice_id", issued.ID.String()).
		Str("appointment_id", issued.AppointmentID.String()).
		Int64("total_cents", issued.TotalCents).
		Msg("invoice issued")
	return issued, nil
}

// ReverseInvoice issues a correcting record that negates an earlier invoice.
// Invoices are never edited in place.
func (s *Service) ReverseInvoice(ctx context.Context, original *Invoice) (*Invoice, error) {
	reversal := Invoice{
		AppointmentID: original.AppointmentID,
		SubtotalCents: -original.SubtotalCents,
		TaxCents:      -original.TaxCents,
		TotalCents:    -original.TotalCents,
		Method:        original.Method,
		InsuranceRef:  original.InsuranceRef,
		ReversesID:    &original.ID,
	}
	return s.IssueInvoice(ctx, &reversal)
}

func (s *Service) GetInvoiceByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Invoice, error) {
	inv, err := s.invoices.GetInvoiceByAppointment(ctx, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	return inv, nil
}
