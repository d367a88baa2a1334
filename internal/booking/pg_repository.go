package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/danteprogrammer/clinica-core/internal/civil"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const appointmentColumns = `id, doctor_id, patient_id, room_id, date, start_minute, duration_minutes, reason, status, version, created_at, updated_at`

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var date time.Time
	var start int
	var roomID *uuid.UUID

	err := row.Scan(
		&a.ID,
		&a.DoctorID,
		&a.PatientID,
		&roomID,
		&date,
		&start,
		&a.DurationMinutes,
		&a.Reason,
		&a.Status,
		&a.Version,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.RoomID = roomID
	a.Date = civil.DateOf(date)
	a.Start = civil.TimeOfDay(start)
	return &a, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.FullName, &p.Document, &p.HasCover, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return &p, nil
}

func activeStatusStrings() []string {
	statuses := ActiveStatuses()
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

// Interface methods

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, full_name, document, has_cover, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		ORDER BY date DESC, start_minute DESC
		LIMIT $2 OFFSET $3
	`, patientID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

func (r *PgRepository) GetActiveAppointmentAt(ctx context.Context, doctorID uuid.UUID, date civil.Date, start civil.TimeOfDay) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1
		  AND date = $2
		  AND start_minute = $3
		  AND status = ANY($4)
	`, doctorID, date.In(time.UTC), int(start), activeStatusStrings())
	return scanAppointment(row)
}

func (r *PgRepository) CreateAppointment(ctx context.Context, appt Appointment) (*Appointment, error) {
	id := appt.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, doctor_id, patient_id, room_id, date, start_minute, duration_minutes, reason, status, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'pending', 1, now(), now())
		RETURNING `+appointmentColumns+`
	`, id, appt.DoctorID, appt.PatientID, appt.RoomID, appt.Date.In(time.UTC), int(appt.Start), appt.DurationMinutes, appt.Reason)

	created, err := scanAppointment(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSlotTaken
		}
		return nil, err
	}
	return created, nil
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    version = version + 1,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from)

	updated, err := scanAppointment(row)
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, ErrAppointmentNotFound) {
		return nil, err
	}
	return nil, r.classifyMissedUpdate(ctx, id)
}

func (r *PgRepository) UpdateStatusVersioned(ctx context.Context, id uuid.UUID, expectedVersion int64, to Status) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    version = version + 1,
		    updated_at = now()
		WHERE id = $1
		  AND version = $3
		RETURNING `+appointmentColumns+`
	`, id, to, expectedVersion)

	updated, err := scanAppointment(row)
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, ErrAppointmentNotFound) {
		return nil, err
	}
	if _, lookupErr := r.GetAppointmentByID(ctx, id); lookupErr != nil {
		return nil, lookupErr
	}
	return nil, ErrVersionConflict
}

func (r *PgRepository) MoveAppointment(ctx context.Context, id uuid.UUID, expectedVersion int64, newDate civil.Date, newStart civil.TimeOfDay) (*Appointment, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, fmt.Errorf("begin reschedule tx: %w", err)
	}
	defer tx.Rollback(ctx)

	current, err := scanAppointment(tx.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
		FOR UPDATE
	`, id))
	if err != nil {
		return nil, err
	}
	if current.Version != expectedVersion {
		return nil, ErrVersionConflict
	}

	conflict, err := scanAppointment(tx.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1
		  AND date = $2
		  AND start_minute = $3
		  AND status = ANY($4)
		  AND id <> $5
	`, current.DoctorID, newDate.In(time.UTC), int(newStart), activeStatusStrings(), id))
	if err != nil && !errors.Is(err, ErrAppointmentNotFound) {
		return nil, err
	}
	if conflict != nil {
		return nil, ErrSlotTaken
	}

	moved, err := scanAppointment(tx.QueryRow(ctx, `
		UPDATE appointments
		SET date = $2,
		    start_minute = $3,
		    version = version + 1,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+appointmentColumns+`
	`, id, newDate.In(time.UTC), int(newStart)))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSlotTaken
		}
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit reschedule tx: %w", err)
	}
	return moved, nil
}

func (r *PgRepository) ActiveSlotKeys(ctx context.Context, doctorID uuid.UUID, from, to civil.Date) (map[string]struct{}, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT date, start_minute
		FROM appointments
		WHERE doctor_id = $1
		  AND date >= $2
		  AND date <= $3
		  AND status = ANY($4)
	`, doctorID, from.In(time.UTC), to.In(time.UTC), activeStatusStrings())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make(map[string]struct{})
	for rows.Next() {
		var date time.Time
		var start int
		if err := rows.Scan(&date, &start); err != nil {
			return nil, err
		}
		keys[slotKey(civil.DateOf(date), civil.TimeOfDay(start))] = struct{}{}
	}
	return keys, rows.Err()
}

func (r *PgRepository) FindPendingBefore(ctx context.Context, cutoffDate civil.Date, cutoffStart civil.TimeOfDay) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = 'pending'
		  AND (date < $1 OR (date = $1 AND start_minute < $2))
	`, cutoffDate.In(time.UTC), int(cutoffStart))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev AuditEvent) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}

// classifyMissedUpdate distinguishes a vanished row from a concurrent status
// change after a status CAS matched nothing.
func (r *PgRepository) classifyMissedUpdate(ctx context.Context, id uuid.UUID) error {
	if _, err := r.GetAppointmentByID(ctx, id); err != nil {
		return err
	}
	return ErrConcurrentUpdate
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
