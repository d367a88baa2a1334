package billing

import (
	"time"

	"github.com/google/uuid"
)

// Amounts are integer céntimos of a sol (S/ 80.00 == 8000) so that invoice
// reconciliation is an exact comparison, never a float one.

// igvPercent is the sales tax rate; tariff amounts are tax-inclusive, the
// invoice just breaks them out.
const igvPercent = 18

type PaymentMethod string

const (
	MethodCash      PaymentMethod = "cash"
	MethodCard      PaymentMethod = "card"
	MethodInsurance PaymentMethod = "insurance"
)

func (m PaymentMethod) Valid() bool {
	return m == MethodCash || m == MethodCard || m == MethodInsurance
}

// Tariff is the price for one specialty consultation, maintained by
// administration.
type Tariff struct {
	ID          uuid.UUID
	Specialty   string
	AmountCents int64
	Active      bool
	UpdatedAt   time.Time
}

// InsuranceInfo is what the patient presents at the cashier.
type InsuranceInfo struct {
	Insurer      string `json:"insurer"`
	PolicyNumber string `json:"policy_number"`
}

// Validation is the insurance collaborator's answer.
type Validation struct {
	Valid    bool
	Insurer  string
	Policy   string
	Coverage string
}

// Invoice is immutable once issued; corrections are separate reversing
// records pointing back at the original.
type Invoice struct {
	ID            uuid.UUID
	AppointmentID uuid.UUID
	SubtotalCents int64
	TaxCents      int64
	TotalCents    int64
	Method        PaymentMethod
	InsuranceRef  *string
	ReversesID    *uuid.UUID
	IssuedAt      time.Time
}

// splitIGV breaks a tax-inclusive total into subtotal and tax.
func splitIGV(totalCents int64) (subtotal, tax int64) {
	subtotal = totalCents * 100 / (100 + igvPercent)
	return subtotal, totalCents - subtotal
}
