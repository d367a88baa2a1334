package encounter

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidVitals = errors.New("invalid triage vitals")

// Vitals are the triage measurements recorded at check-in.
type Vitals struct {
	WeightKg     float64 `json:"weight_kg"`
	HeightCm     float64 `json:"height_cm"`
	Systolic     int     `json:"systolic"`
	Diastolic    int     `json:"diastolic"`
	TemperatureC float64 `json:"temperature_c"`
	SpO2         int     `json:"spo2"`
}

// Validate enforces the same physiologic ranges the triage desk uses.
func (v Vitals) Validate() error {
	switch {
	case v.WeightKg < 1:
		return fmt.Errorf("%w: weight must be at least 1kg", ErrInvalidVitals)
	case v.HeightCm < 50:
		return fmt.Errorf("%w: height must be at least 50cm", ErrInvalidVitals)
	case v.Systolic < 50 || v.Systolic > 300:
		return fmt.Errorf("%w: systolic pressure out of range", ErrInvalidVitals)
	case v.Diastolic < 30 || v.Diastolic > 200:
		return fmt.Errorf("%w: diastolic pressure out of range", ErrInvalidVitals)
	case v.TemperatureC < 30 || v.TemperatureC > 45:
		return fmt.Errorf("%w: temperature out of range", ErrInvalidVitals)
	case v.SpO2 < 70 || v.SpO2 > 100:
		return fmt.Errorf("%w: oxygen saturation out of range", ErrInvalidVitals)
	}
	return nil
}

// BMI derives body mass index from weight and height, rounded to two
// decimals.
func (v Vitals) BMI() float64 {
	if v.WeightKg <= 0 || v.HeightCm <= 0 {
		return 0
	}
	meters := v.HeightCm / 100
	return math.Round(v.WeightKg/(meters*meters)*100) / 100
}

// BloodPressure renders the combined systolic/diastolic reading.
func (v Vitals) BloodPressure() string {
	return fmt.Sprintf("%d/%d", v.Systolic, v.Diastolic)
}

// Consultation is the clinical outcome recorded by the doctor.
type Consultation struct {
	Diagnosis     string   `json:"diagnosis"`
	Treatment     string   `json:"treatment"`
	Prescriptions []string `json:"prescriptions,omitempty"`
}

func (c Consultation) Validate() error {
	if strings.TrimSpace(c.Diagnosis) == "" || strings.TrimSpace(c.Treatment) == "" {
		return errors.New("diagnosis and treatment are required")
	}
	return nil
}

type LabOrderStatus string

const (
	LabPending   LabOrderStatus = "pending"
	LabInProcess LabOrderStatus = "in_process"
	LabCompleted LabOrderStatus = "completed"
)

// LabOrder tracks one laboratory request. Results must be non-empty before
// the order can complete.
type LabOrder struct {
	ID             uuid.UUID      `json:"id"`
	EncounterID    uuid.UUID      `json:"encounter_id"`
	RequestedTests string         `json:"requested_tests"`
	Status         LabOrderStatus `json:"status"`
	Results        string         `json:"results,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Encounter is the clinical record of an appointment from intake through
// completion. Never deleted, only appended to.
type Encounter struct {
	ID            uuid.UUID     `json:"id"`
	AppointmentID uuid.UUID     `json:"appointment_id"`
	Vitals        *Vitals       `json:"vitals,omitempty"`
	Consultation  *Consultation `json:"consultation,omitempty"`
	LabOrders     []LabOrder    `json:"lab_orders,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}
