package encounter

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danteprogrammer/clinica-core/internal/billing"
	"github.com/danteprogrammer/clinica-core/internal/booking"
	"github.com/danteprogrammer/clinica-core/internal/civil"
	"github.com/danteprogrammer/clinica-core/internal/schedule"
)

const tariffCents = 8000 // S/ 80.00, IGV included

type serviceFixture struct {
	appts     *booking.MemoryRepository
	repo      *MemoryRepository
	invoices  *billing.MemoryInvoiceStore
	insurance *billing.StaticInsuranceValidator
	svc       *Service
	appt      *booking.Appointment
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	doctors := schedule.NewMemoryStore()
	doctorID := uuid.New()
	doctors.PutDoctor(schedule.Doctor{ID: doctorID, FullName: "Dr. Salas", Specialty: "Cardiología", Active: true})

	tariffs := billing.NewMemoryTariffStore()
	tariffs.Put(billing.Tariff{ID: uuid.New(), Specialty: "Cardiología", AmountCents: tariffCents, Active: true})

	appts := booking.NewMemoryRepository()
	patient := booking.Patient{ID: uuid.New(), FullName: "Jorge Quispe", Document: "11223344"}
	appts.PutPatient(patient)

	date, _ := civil.ParseDate("2026-03-09")
	appt, err := appts.CreateAppointment(context.Background(), booking.Appointment{
		DoctorID:        doctorID,
		PatientID:       patient.ID,
		Date:            date,
		Start:           civil.NewTimeOfDay(8, 0),
		DurationMinutes: 30,
	})
	require.NoError(t, err)

	invoices := billing.NewMemoryInvoiceStore()
	insurance := &billing.StaticInsuranceValidator{}
	biller := billing.NewService(tariffs, doctors, insurance, invoices, zerolog.Nop())

	repo := NewMemoryRepository()
	svc := NewService(appts, repo, biller, time.UTC, zerolog.Nop()).
		WithClock(func() time.Time { return time.Date(2026, 3, 9, 7, 0, 0, 0, time.UTC) })

	return &serviceFixture{
		appts:     appts,
		repo:      repo,
		invoices:  invoices,
		insurance: insurance,
		svc:       svc,
		appt:      appt,
	}
}

func validVitals() *Vitals {
	return &Vitals{WeightKg: 72, HeightCm: 175, Systolic: 120, Diastolic: 80, TemperatureC: 36.6, SpO2: 98}
}

func (f *serviceFixture) fire(t *testing.T, ev Event, role Role, mutate func(*TransitionRequest)) (*TransitionResult, error) {
	t.Helper()
	req := TransitionRequest{AppointmentID: f.appt.ID, Event: ev, Actor: role}
	if mutate != nil {
		mutate(&req)
	}
	return f.svc.Transition(context.Background(), req)
}

func (f *serviceFixture) mustFire(t *testing.T, ev Event, role Role, mutate func(*TransitionRequest)) *TransitionResult {
	t.Helper()
	res, err := f.fire(t, ev, role, mutate)
	require.NoError(t, err, "firing %s as %s", ev, role)
	return res
}

func (f *serviceFixture) status(t *testing.T) booking.Status {
	t.Helper()
	appt, err := f.appts.GetAppointmentByID(context.Background(), f.appt.ID)
	require.NoError(t, err)
	return appt.Status
}

// advance drives the encounter through the happy path up to the given status.
func (f *serviceFixture) advance(t *testing.T, until booking.Status) {
	t.Helper()
	steps := []struct {
		target booking.Status
		event  Event
		role   Role
		mutate func(*TransitionRequest)
	}{
		{booking.StatusConfirmed, EventConfirm, RoleReceptionist, nil},
		{booking.StatusTriaged, EventCheckIn, RoleTriage, func(r *TransitionRequest) { r.Vitals = validVitals() }},
		{booking.StatusInProgress, EventBeginConsultation, RoleDoctor, nil},
		{booking.StatusAwaitingPayment, EventFinishConsultation, RoleDoctor, func(r *TransitionRequest) {
			r.Consultation = &Consultation{Diagnosis: "hipertensión leve", Treatment: "losartán 50mg"}
		}},
	}
	for _, s := range steps {
		f.mustFire(t, s.event, s.role, s.mutate)
		if s.target == until {
			return
		}
	}
	t.Fatalf("advance: unreachable status %s", until)
}

func TestFullEncounterFlow(t *testing.T) {
	f := newServiceFixture(t)

	f.mustFire(t, EventConfirm, RoleReceptionist, nil)
	f.mustFire(t, EventCheckIn, RoleTriage, func(r *TransitionRequest) { r.Vitals = validVitals() })
	f.mustFire(t, EventBeginConsultation, RoleDoctor, nil)

	f.mustFire(t, EventOrderLab, RoleDoctor, func(r *TransitionRequest) { r.RequestedTests = "hemograma completo" })
	assert.Equal(t, booking.StatusLabOrdered, f.status(t))

	enc, err := f.svc.GetEncounter(context.Background(), f.appt.ID)
	require.NoError(t, err)
	require.Len(t, enc.LabOrders, 1)
	require.NotNil(t, enc.Vitals)
	assert.Equal(t, validVitals().WeightKg, enc.Vitals.WeightKg)

	order := enc.LabOrders[0]
	started, err := f.svc.StartLabOrder(context.Background(), order.ID, RoleLab)
	require.NoError(t, err)
	assert.Equal(t, LabInProcess, started.Status)

	f.mustFire(t, EventLabCompleted, RoleLab, func(r *TransitionRequest) {
		r.LabResults = map[uuid.UUID]string{order.ID: "hemoglobina 14.2 g/dL"}
	})
	assert.Equal(t, booking.StatusInProgress, f.status(t))

	f.mustFire(t, EventFinishConsultation, RoleDoctor, func(r *TransitionRequest) {
		r.Consultation = &Consultation{
			Diagnosis:     "anemia descartada",
			Treatment:     "control en 6 meses",
			Prescriptions: []string{"sulfato ferroso 300mg"},
		}
	})
	assert.Equal(t, booking.StatusAwaitingPayment, f.status(t))

	res := f.mustFire(t, EventPay, RoleCashier, func(r *TransitionRequest) {
		r.Payment = &PaymentInput{AmountCents: tariffCents, Method: billing.MethodCash}
	})
	assert.Equal(t, booking.StatusCompleted, f.status(t))

	require.NotNil(t, res.Invoice)
	assert.EqualValues(t, tariffCents, res.Invoice.TotalCents)
	assert.EqualValues(t, 6779, res.Invoice.SubtotalCents) // 8000 * 100 / 118
	assert.EqualValues(t, 1221, res.Invoice.TaxCents)
	assert.Equal(t, res.Invoice.SubtotalCents+res.Invoice.TaxCents, res.Invoice.TotalCents)

	stored, err := f.invoices.GetInvoiceByAppointment(context.Background(), f.appt.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Invoice.ID, stored.ID)
}

func TestTransitionWrongRole(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.fire(t, EventConfirm, RoleTriage, nil)
	assert.ErrorIs(t, err, ErrNotAuthorized)
	assert.Equal(t, booking.StatusPending, f.status(t))
}

func TestTransitionIdempotentResubmission(t *testing.T) {
	f := newServiceFixture(t)

	first := f.mustFire(t, EventConfirm, RoleReceptionist, nil)
	assert.False(t, first.Noop)

	// A retried confirm is a no-op: same state, no version bump, and no
	// authorization either, so even a different role gets the same answer.
	again := f.mustFire(t, EventConfirm, RoleReceptionist, nil)
	assert.True(t, again.Noop)
	assert.Equal(t, first.Appointment.Version, again.Appointment.Version)

	retried := f.mustFire(t, EventConfirm, RoleDoctor, nil)
	assert.True(t, retried.Noop)
}

func TestTransitionInvalidFromState(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.fire(t, EventPay, RoleCashier, func(r *TransitionRequest) {
		r.Payment = &PaymentInput{AmountCents: tariffCents, Method: billing.MethodCash}
	})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCancelledAppointmentRejectsConfirm(t *testing.T) {
	f := newServiceFixture(t)

	f.mustFire(t, EventCancel, RoleReceptionist, nil)
	assert.Equal(t, booking.StatusCancelled, f.status(t))

	_, err := f.fire(t, EventConfirm, RoleReceptionist, nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestReceptionistCancelOnlyBeforeTriage(t *testing.T) {
	f := newServiceFixture(t)
	f.advance(t, booking.StatusTriaged)

	_, err := f.fire(t, EventCancel, RoleReceptionist, nil)
	assert.ErrorIs(t, err, ErrNotAuthorized)
	assert.Equal(t, booking.StatusTriaged, f.status(t))

	f.mustFire(t, EventCancel, RoleAdmin, nil)
	assert.Equal(t, booking.StatusCancelled, f.status(t))
}

func TestConfirmAfterSlotElapsed(t *testing.T) {
	f := newServiceFixture(t)
	f.svc.WithClock(func() time.Time { return time.Date(2026, 3, 9, 8, 30, 0, 0, time.UTC) })

	_, err := f.fire(t, EventConfirm, RoleReceptionist, nil)
	assert.ErrorIs(t, err, ErrSlotElapsed)
	assert.Equal(t, booking.StatusPending, f.status(t))
}

func TestCheckInRejectsInvalidVitals(t *testing.T) {
	f := newServiceFixture(t)
	f.mustFire(t, EventConfirm, RoleReceptionist, nil)

	v := validVitals()
	v.SpO2 = 40
	_, err := f.fire(t, EventCheckIn, RoleTriage, func(r *TransitionRequest) { r.Vitals = v })
	assert.ErrorIs(t, err, ErrGuardFailed)
	assert.Equal(t, booking.StatusConfirmed, f.status(t))

	_, err = f.fire(t, EventCheckIn, RoleTriage, nil)
	assert.ErrorIs(t, err, ErrGuardFailed)
}

func TestBeginConsultationRequiresTriage(t *testing.T) {
	f := newServiceFixture(t)

	// Force the triaged state without recording vitals.
	_, err := f.appts.UpdateStatus(context.Background(), f.appt.ID, booking.StatusPending, booking.StatusTriaged)
	require.NoError(t, err)

	_, err = f.fire(t, EventBeginConsultation, RoleDoctor, nil)
	assert.ErrorIs(t, err, ErrGuardFailed)
	assert.Equal(t, booking.StatusTriaged, f.status(t))
}

func TestOrderLabRequiresTests(t *testing.T) {
	f := newServiceFixture(t)
	f.advance(t, booking.StatusInProgress)

	_, err := f.fire(t, EventOrderLab, RoleDoctor, func(r *TransitionRequest) { r.RequestedTests = "   " })
	assert.ErrorIs(t, err, ErrGuardFailed)
	assert.Equal(t, booking.StatusInProgress, f.status(t))
}

func TestLabCompletedAllOrNothing(t *testing.T) {
	f := newServiceFixture(t)
	f.advance(t, booking.StatusInProgress)
	f.mustFire(t, EventOrderLab, RoleDoctor, func(r *TransitionRequest) { r.RequestedTests = "hemograma" })

	enc, err := f.svc.GetEncounter(context.Background(), f.appt.ID)
	require.NoError(t, err)
	second, err := f.repo.CreateLabOrder(context.Background(), enc.ID, "perfil lipídico")
	require.NoError(t, err)
	first := enc.LabOrders[0]

	// Results for only one of two open orders: nothing completes.
	_, err = f.fire(t, EventLabCompleted, RoleLab, func(r *TransitionRequest) {
		r.LabResults = map[uuid.UUID]string{first.ID: "normal"}
	})
	assert.ErrorIs(t, err, ErrGuardFailed)
	assert.Equal(t, booking.StatusLabOrdered, f.status(t))

	enc, err = f.svc.GetEncounter(context.Background(), f.appt.ID)
	require.NoError(t, err)
	for _, o := range enc.LabOrders {
		assert.NotEqual(t, LabCompleted, o.Status)
	}

	f.mustFire(t, EventLabCompleted, RoleLab, func(r *TransitionRequest) {
		r.LabResults = map[uuid.UUID]string{first.ID: "normal", second.ID: "LDL 130 mg/dL"}
	})
	assert.Equal(t, booking.StatusInProgress, f.status(t))
}

func TestFinishConsultationRequiresNotes(t *testing.T) {
	f := newServiceFixture(t)
	f.advance(t, booking.StatusInProgress)

	_, err := f.fire(t, EventFinishConsultation, RoleDoctor, func(r *TransitionRequest) {
		r.Consultation = &Consultation{Diagnosis: "x"}
	})
	assert.ErrorIs(t, err, ErrGuardFailed)
	assert.Equal(t, booking.StatusInProgress, f.status(t))
}

func TestPayAmountMismatch(t *testing.T) {
	f := newServiceFixture(t)
	f.advance(t, booking.StatusAwaitingPayment)

	_, err := f.fire(t, EventPay, RoleCashier, func(r *TransitionRequest) {
		r.Payment = &PaymentInput{AmountCents: tariffCents - 1, Method: billing.MethodCash}
	})
	assert.ErrorIs(t, err, ErrAmountMismatch)
	assert.Equal(t, booking.StatusAwaitingPayment, f.status(t))

	_, err = f.invoices.GetInvoiceByAppointment(context.Background(), f.appt.ID)
	assert.ErrorIs(t, err, billing.ErrInvoiceNotFound)
}

func TestPayWithValidInsurance(t *testing.T) {
	f := newServiceFixture(t)
	f.insurance.ValidPatients = map[uuid.UUID]billing.Validation{
		f.appt.PatientID: {Valid: true, Insurer: "Rimac", Policy: "POL-123", Coverage: "total"},
	}
	f.advance(t, booking.StatusAwaitingPayment)

	res := f.mustFire(t, EventPay, RoleCashier, func(r *TransitionRequest) {
		r.Payment = &PaymentInput{
			AmountCents: 0,
			Method:      billing.MethodCash,
			Insurance:   &billing.InsuranceInfo{Insurer: "Rimac", PolicyNumber: "POL-123"},
		}
	})

	require.NotNil(t, res.Invoice)
	assert.EqualValues(t, 0, res.Invoice.TotalCents)
	assert.Equal(t, billing.MethodInsurance, res.Invoice.Method)
	require.NotNil(t, res.Invoice.InsuranceRef)
	assert.Equal(t, "Rimac / POL-123", *res.Invoice.InsuranceRef)
}

func TestPayWhenInsuranceUnavailable(t *testing.T) {
	f := newServiceFixture(t)
	f.insurance.Err = billing.ErrInsuranceUnavailable
	f.advance(t, booking.StatusAwaitingPayment)

	// Validation failure downgrades to direct payment at the full tariff.
	res := f.mustFire(t, EventPay, RoleCashier, func(r *TransitionRequest) {
		r.Payment = &PaymentInput{
			AmountCents: tariffCents,
			Method:      billing.MethodCard,
			Insurance:   &billing.InsuranceInfo{Insurer: "Rimac", PolicyNumber: "POL-123"},
		}
	})

	require.NotNil(t, res.Invoice)
	assert.EqualValues(t, tariffCents, res.Invoice.TotalCents)
	assert.Equal(t, billing.MethodCard, res.Invoice.Method)
	assert.Nil(t, res.Invoice.InsuranceRef)
}

func TestStartLabOrderRoleGated(t *testing.T) {
	f := newServiceFixture(t)
	f.advance(t, booking.StatusInProgress)
	f.mustFire(t, EventOrderLab, RoleDoctor, func(r *TransitionRequest) { r.RequestedTests = "glucosa" })

	enc, err := f.svc.GetEncounter(context.Background(), f.appt.ID)
	require.NoError(t, err)
	order := enc.LabOrders[0]

	_, err = f.svc.StartLabOrder(context.Background(), order.ID, RoleDoctor)
	assert.ErrorIs(t, err, ErrNotAuthorized)

	_, err = f.svc.StartLabOrder(context.Background(), order.ID, RoleLab)
	assert.NoError(t, err)
}

func TestTransitionAuditTrail(t *testing.T) {
	f := newServiceFixture(t)
	f.mustFire(t, EventConfirm, RoleReceptionist, nil)

	events := f.appts.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "ENCOUNTER_CONFIRM", events[0].EventType)
	require.NotNil(t, events[0].AppointmentID)
	assert.Equal(t, f.appt.ID, *events[0].AppointmentID)
}
