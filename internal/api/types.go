package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/danteprogrammer/clinica-core/internal/billing"
	"github.com/danteprogrammer/clinica-core/internal/booking"
	"github.com/danteprogrammer/clinica-core/internal/civil"
	"github.com/danteprogrammer/clinica-core/internal/encounter"
)

type CreateAppointmentRequest struct {
	DoctorID        string          `json:"doctor_id"`
	PatientID       string          `json:"patient_id"`
	RoomID          string          `json:"room_id,omitempty"`
	Date            civil.Date      `json:"date"`
	Time            civil.TimeOfDay `json:"time"`
	DurationMinutes int             `json:"duration_minutes"`
	Reason          string          `json:"reason,omitempty"`
}

type RescheduleRequest struct {
	NewDate         civil.Date      `json:"new_date"`
	NewTime         civil.TimeOfDay `json:"new_time"`
	ExpectedVersion int64           `json:"expected_version"`
}

type CancelRequest struct {
	ExpectedVersion int64  `json:"expected_version"`
	Reason          string `json:"reason,omitempty"`
}

type TransitionRequestBody struct {
	Event     string            `json:"event"`
	ActorRole string            `json:"actor_role"`
	Payload   TransitionPayload `json:"payload"`
}

type TransitionPayload struct {
	Vitals         *encounter.Vitals       `json:"vitals,omitempty"`
	Consultation   *encounter.Consultation `json:"consultation,omitempty"`
	RequestedTests string                  `json:"requested_tests,omitempty"`
	LabResults     map[string]string       `json:"lab_results,omitempty"`
	Payment        *encounter.PaymentInput `json:"payment,omitempty"`
}

type AppointmentResponse struct {
	ID              uuid.UUID       `json:"id"`
	DoctorID        uuid.UUID       `json:"doctor_id"`
	PatientID       uuid.UUID       `json:"patient_id"`
	RoomID          *uuid.UUID      `json:"room_id,omitempty"`
	Date            civil.Date      `json:"date"`
	Time            civil.TimeOfDay `json:"time"`
	DurationMinutes int             `json:"duration_minutes"`
	Status          string          `json:"status"`
	Version         int64           `json:"version"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func toAppointmentResponse(a *booking.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:              a.ID,
		DoctorID:        a.DoctorID,
		PatientID:       a.PatientID,
		RoomID:          a.RoomID,
		Date:            a.Date,
		Time:            a.Start,
		DurationMinutes: a.DurationMinutes,
		Status:          string(a.Status),
		Version:         a.Version,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

type TransitionResponse struct {
	Appointment AppointmentResponse `json:"appointment"`
	Noop        bool                `json:"noop,omitempty"`
	Invoice     *InvoiceResponse    `json:"invoice,omitempty"`
}

type InvoiceResponse struct {
	ID            uuid.UUID  `json:"id"`
	AppointmentID uuid.UUID  `json:"appointment_id"`
	SubtotalCents int64      `json:"subtotal_cents"`
	TaxCents      int64      `json:"tax_cents"`
	TotalCents    int64      `json:"total_cents"`
	Method        string     `json:"method"`
	InsuranceRef  *string    `json:"insurance_ref,omitempty"`
	IssuedAt      time.Time  `json:"issued_at"`
	ReversesID    *uuid.UUID `json:"reverses_id,omitempty"`
}

func toInvoiceResponse(inv *billing.Invoice) *InvoiceResponse {
	if inv == nil {
		return nil
	}
	return &InvoiceResponse{
		ID:            inv.ID,
		AppointmentID: inv.AppointmentID,
		SubtotalCents: inv.SubtotalCents,
		TaxCents:      inv.TaxCents,
		TotalCents:    inv.TotalCents,
		Method:        string(inv.Method),
		InsuranceRef:  inv.InsuranceRef,
		IssuedAt:      inv.IssuedAt,
		ReversesID:    inv.ReversesID,
	}
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
