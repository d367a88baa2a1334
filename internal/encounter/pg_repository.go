package encounter

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) SaveTriage(ctx context.Context, appointmentID uuid.UUID, v Vitals) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO triage_records (appointment_id, weight_kg, height_cm, systolic, diastolic, temperature_c, spo2, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (appointment_id) DO UPDATE
		SET weight_kg = EXCLUDED.weight_kg,
		    height_cm = EXCLUDED.height_cm,
		    systolic = EXCLUDED.systolic,
		    diastolic = EXCLUDED.diastolic,
		    temperature_c = EXCLUDED.temperature_c,
		    spo2 = EXCLUDED.spo2
	`, appointmentID, v.WeightKg, v.HeightCm, v.Systolic, v.Diastolic, v.TemperatureC, v.SpO2)
	return err
}

func (r *PgRepository) GetTriage(ctx context.Context, appointmentID uuid.UUID) (*Vitals, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT weight_kg, height_cm, systolic, diastolic, temperature_c, spo2
		FROM triage_records
		WHERE appointment_id = $1
	`, appointmentID)

	var v Vitals
	err := row.Scan(&v.WeightKg, &v.HeightCm, &v.Systolic, &v.Diastolic, &v.TemperatureC, &v.SpO2)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTriageNotFound
		}
		return nil, err
	}
	return &v, nil
}

func (r *PgRepository) CreateEncounter(ctx context.Context, appointmentID uuid.UUID, v *Vitals) (*Encounter, error) {
	id := uuid.New()

	var weight, height, temp *float64
	var sys, dia, spo2 *int
	if v != nil {
		weight, height, temp = &v.WeightKg, &v.HeightCm, &v.TemperatureC
		sys, dia, spo2 = &v.Systolic, &v.Diastolic, &v.SpO2
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO encounters (id, appointment_id, weight_kg, height_cm, systolic, diastolic, temperature_c, spo2, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		RETURNING id, appointment_id, created_at, updated_at
	`, id, appointmentID, weight, height, sys, dia, temp, spo2)

	var e Encounter
	if err := row.Scan(&e.ID, &e.AppointmentID, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	if v != nil {
		vitals := *v
		e.Vitals = &vitals
	}
	return &e, nil
}

func (r *PgRepository) GetEncounterByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Encounter, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, appointment_id, weight_kg, height_cm, systolic, diastolic, temperature_c, spo2,
		       diagnosis, treatment, prescriptions, created_at, updated_at
		FROM encounters
		WHERE appointment_id = $1
	`, appointmentID)

	var e Encounter
	var weight, height, temp *float64
	var sys, dia, spo2 *int
	var diagnosis, treatment, prescriptions *string

	err := row.Scan(&e.ID, &e.AppointmentID, &weight, &height, &sys, &dia, &temp, &spo2,
		&diagnosis, &treatment, &prescriptions, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEncounterNotFound
		}
		return nil, err
	}

	if weight != nil && height != nil && sys != nil && dia != nil && temp != nil && spo2 != nil {
		e.Vitals = &Vitals{
			WeightKg:     *weight,
			HeightCm:     *height,
			Systolic:     *sys,
			Diastolic:    *dia,
			TemperatureC: *temp,
			SpO2:         *spo2,
		}
	}
	if diagnosis != nil && treatment != nil {
		c := Consultation{Diagnosis: *diagnosis, Treatment: *treatment}
		if prescriptions != nil && *prescriptions != "" {
			c.Prescriptions = strings.Split(*prescriptions, "\n")
		}
		e.Consultation = &c
	}

	orders, err := r.ListLabOrders(ctx, e.ID)
	if err != nil {
		return nil, err
	}
	e.LabOrders = orders

	return &e, nil
}

func (r *PgRepository) SaveConsultation(ctx context.Context, encounterID uuid.UUID, c Consultation) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE encounters
		SET diagnosis = $2,
		    treatment = $3,
		    prescriptions = $4,
		    updated_at = now()
		WHERE id = $1
	`, encounterID, c.Diagnosis, c.Treatment, strings.Join(c.Prescriptions, "\n"))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEncounterNotFound
	}
	return nil
}

func scanLabOrder(row pgx.Row) (*LabOrder, error) {
	var o LabOrder
	err := row.Scan(&o.ID, &o.EncounterID, &o.RequestedTests, &o.Status, &o.Results, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLabOrderNotFound
		}
		return nil, err
	}
	return &o, nil
}

func (r *PgRepository) CreateLabOrder(ctx context.Context, encounterID uuid.UUID, requestedTests string) (*LabOrder, error) {
	id := uuid.New()
	row := r.pool.QueryRow(ctx, `
		INSERT INTO lab_orders (id, encounter_id, requested_tests, status, results, created_at, updated_at)
		VALUES ($1, $2, $3, 'pending', '', now(), now())
		RETURNING id, encounter_id, requested_tests, status, results, created_at, updated_at
	`, id, encounterID, requestedTests)
	return scanLabOrder(row)
}

func (r *PgRepository) ListLabOrders(ctx context.Context, encounterID uuid.UUID) ([]LabOrder, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, encounter_id, requested_tests, status, results, created_at, updated_at
		FROM lab_orders
		WHERE encounter_id = $1
		ORDER BY created_at
	`, encounterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []LabOrder
	for rows.Next() {
		o, err := scanLabOrder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *o)
	}
	return result, rows.Err()
}

func (r *PgRepository) StartLabOrder(ctx context.Context, orderID uuid.UUID) (*LabOrder, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE lab_orders
		SET status = 'in_process',
		    updated_at = now()
		WHERE id = $1
		  AND status = 'pending'
		RETURNING id, encounter_id, requested_tests, status, results, created_at, updated_at
	`, orderID)
	return scanLabOrder(row)
}

func (r *PgRepository) CompleteLabOrder(ctx context.Context, orderID uuid.UUID, results string) (*LabOrder, error) {
	if strings.TrimSpace(results) == "" {
		return nil, ErrEmptyLabResults
	}
	row := r.pool.QueryRow(ctx, `
		UPDATE lab_orders
		SET status = 'completed',
		    results = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status <> 'completed'
		RETURNING id, encounter_id, requested_tests, status, results, created_at, updated_at
	`, orderID, results)
	return scanLabOrder(row)
}
