package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/danteprogrammer/clinica-core/internal/civil"
)

type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func (s *PgStore) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, full_name, specialty, active, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)

	var d Doctor
	err := row.Scan(&d.ID, &d.FullName, &d.Specialty, &d.Active, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (s *PgStore) ListBlocks(ctx context.Context, doctorID uuid.UUID) ([]ScheduleBlock, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, doctor_id, weekday, start_minute, end_minute, slot_minutes, created_at, updated_at
		FROM schedule_blocks
		WHERE doctor_id = $1
		ORDER BY weekday, start_minute
	`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ScheduleBlock
	for rows.Next() {
		var b ScheduleBlock
		var weekday, start, end int
		if err := rows.Scan(&b.ID, &b.DoctorID, &weekday, &start, &end, &b.SlotMinutes, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		b.Weekday = time.Weekday(weekday)
		b.Start = civil.TimeOfDay(start)
		b.End = civil.TimeOfDay(end)
		result = append(result, b)
	}

	return result, rows.Err()
}

func (s *PgStore) ListExceptions(ctx context.Context, doctorID uuid.UUID, from, to civil.Date) ([]ScheduleException, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, doctor_id, date, reason, override_start, override_end, created_at
		FROM schedule_exceptions
		WHERE doctor_id = $1
		  AND date >= $2
		  AND date <= $3
	`, doctorID, from.In(time.UTC), to.In(time.UTC))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ScheduleException
	for rows.Next() {
		var e ScheduleException
		var date time.Time
		var overrideStart, overrideEnd *int
		if err := rows.Scan(&e.ID, &e.DoctorID, &date, &e.Reason, &overrideStart, &overrideEnd, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Date = civil.DateOf(date)
		if overrideStart != nil {
			t := civil.TimeOfDay(*overrideStart)
			e.OverrideStart = &t
		}
		if overrideEnd != nil {
			t := civil.TimeOfDay(*overrideEnd)
			e.OverrideEnd = &t
		}
		result = append(result, e)
	}

	return result, rows.Err()
}
