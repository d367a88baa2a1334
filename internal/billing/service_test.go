package billing

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danteprogrammer/clinica-core/internal/booking"
	"github.com/danteprogrammer/clinica-core/internal/civil"
	"github.com/danteprogrammer/clinica-core/internal/schedule"
)

func newBillingFixture(t *testing.T) (*Service, *booking.Appointment, *StaticInsuranceValidator, *MemoryInvoiceStore) {
	t.Helper()

	doctors := schedule.NewMemoryStore()
	doctorID := uuid.New()
	doctors.PutDoctor(schedule.Doctor{ID: doctorID, FullName: "Dr. Paredes", Specialty: "Dermatología", Active: true})

	tariffs := NewMemoryTariffStore()
	tariffs.Put(Tariff{ID: uuid.New(), Specialty: "Dermatología", AmountCents: 8000, Active: true})

	insurance := &StaticInsuranceValidator{}
	invoices := NewMemoryInvoiceStore()
	svc := NewService(tariffs, doctors, insurance, invoices, zerolog.Nop())

	date, _ := civil.ParseDate("2026-03-09")
	appt := &booking.Appointment{
		ID:        uuid.New(),
		DoctorID:  doctorID,
		PatientID: uuid.New(),
		Date:      date,
		Start:     civil.NewTimeOfDay(8, 0),
	}
	return svc, appt, insurance, invoices
}

func TestComputeInvoiceDirectPayment(t *testing.T) {
	svc, appt, _, invoices := newBillingFixture(t)

	inv, err := svc.ComputeInvoice(context.Background(), appt, MethodCash, nil)
	require.NoError(t, err)

	assert.EqualValues(t, 8000, inv.TotalCents)
	assert.EqualValues(t, 6779, inv.SubtotalCents)
	assert.EqualValues(t, 1221, inv.TaxCents)
	assert.Equal(t, inv.TotalCents, inv.SubtotalCents+inv.TaxCents)
	assert.Equal(t, MethodCash, inv.Method)
	assert.Nil(t, inv.InsuranceRef)

	// Compute does not persist.
	_, err = invoices.GetInvoiceByAppointment(context.Background(), appt.ID)
	assert.ErrorIs(t, err, ErrInvoiceNotFound)
}

func TestComputeInvoiceUnknownSpecialty(t *testing.T) {
	svc, appt, _, _ := newBillingFixture(t)

	doctors := schedule.NewMemoryStore()
	otherID := uuid.New()
	doctors.PutDoctor(schedule.Doctor{ID: otherID, Specialty: "Neurocirugía", Active: true})
	svc.doctors = doctors
	appt.DoctorID = otherID

	_, err := svc.ComputeInvoice(context.Background(), appt, MethodCash, nil)
	assert.ErrorIs(t, err, ErrTariffNotFound)
}

func TestComputeInvoiceValidInsuranceZeroesTotal(t *testing.T) {
	svc, appt, insurance, _ := newBillingFixture(t)
	insurance.ValidPatients = map[uuid.UUID]Validation{
		appt.PatientID: {Valid: true, Insurer: "Pacífico", Policy: "P-900", Coverage: "total"},
	}

	inv, err := svc.ComputeInvoice(context.Background(), appt, MethodCash, &InsuranceInfo{Insurer: "Pacífico", PolicyNumber: "P-900"})
	require.NoError(t, err)

	assert.EqualValues(t, 0, inv.TotalCents)
	assert.EqualValues(t, 0, inv.SubtotalCents)
	assert.EqualValues(t, 0, inv.TaxCents)
	assert.Equal(t, MethodInsurance, inv.Method)
	require.NotNil(t, inv.InsuranceRef)
	assert.Equal(t, "Pacífico / P-900", *inv.InsuranceRef)
}

func TestComputeInvoiceInvalidPolicyStaysPayable(t *testing.T) {
	svc, appt, _, _ := newBillingFixture(t)

	inv, err := svc.ComputeInvoice(context.Background(), appt, MethodCard, &InsuranceInfo{Insurer: "Pacífico", PolicyNumber: "P-900"})
	require.NoError(t, err)

	assert.EqualValues(t, 8000, inv.TotalCents)
	assert.Equal(t, MethodCard, inv.Method)
	assert.Nil(t, inv.InsuranceRef)
}

func TestComputeInvoiceDegradesWhenInsuranceDown(t *testing.T) {
	svc, appt, insurance, _ := newBillingFixture(t)
	insurance.Err = ErrInsuranceUnavailable

	// Collaborator failure never fails the invoice; full tariff stays due.
	inv, err := svc.ComputeInvoice(context.Background(), appt, MethodCash, &InsuranceInfo{Insurer: "Pacífico", PolicyNumber: "P-900"})
	require.NoError(t, err)
	assert.EqualValues(t, 8000, inv.TotalCents)
	assert.Nil(t, inv.InsuranceRef)
}

func TestIssueAndReverseInvoice(t *testing.T) {
	svc, appt, _, invoices := newBillingFixture(t)

	inv, err := svc.ComputeInvoice(context.Background(), appt, MethodCash, nil)
	require.NoError(t, err)

	issued, err := svc.IssueInvoice(context.Background(), inv)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, issued.ID)

	got, err := svc.GetInvoiceByAppointment(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, issued.ID, got.ID)

	reversal, err := svc.ReverseInvoice(context.Background(), issued)
	require.NoError(t, err)
	assert.EqualValues(t, -issued.TotalCents, reversal.TotalCents)
	assert.EqualValues(t, -issued.SubtotalCents, reversal.SubtotalCents)
	require.NotNil(t, reversal.ReversesID)
	assert.Equal(t, issued.ID, *reversal.ReversesID)

	// The original record is untouched; reversal is a separate row.
	_, err = invoices.GetInvoiceByAppointment(context.Background(), appt.ID)
	require.NoError(t, err)
}

func TestSplitIGV(t *testing.T) {
	cases := []struct {
		total, subtotal, tax int64
	}{
		{8000, 6779, 1221},
		{11800, 10000, 1800},
		{0, 0, 0},
		{118, 100, 18},
	}
	for _, c := range cases {
		sub, tax := splitIGV(c.total)
		assert.Equal(t, c.subtotal, sub)
		assert.Equal(t, c.tax, tax)
		assert.Equal(t, c.total, sub+tax)
	}
}
