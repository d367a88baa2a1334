package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danteprogrammer/clinica-core/internal/civil"
)

type stubBooked map[string]struct{}

func (s stubBooked) ActiveSlotKeys(context.Context, uuid.UUID, civil.Date, civil.Date) (map[string]struct{}, error) {
	return s, nil
}

func fixedClock(s string) func() time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return func() time.Time { return t }
}

func newTestEngine(t *testing.T, booked stubBooked) (*AvailabilityEngine, uuid.UUID) {
	t.Helper()

	store := NewMemoryStore()
	doctorID := uuid.New()
	store.PutDoctor(Doctor{ID: doctorID, FullName: "Dr. Rivas", Specialty: "Cardiología", Active: true})
	require.NoError(t, store.PutBlocks(doctorID, ScheduleBlock{
		ID:          uuid.New(),
		DoctorID:    doctorID,
		Weekday:     time.Monday,
		Start:       civil.NewTimeOfDay(8, 0),
		End:         civil.NewTimeOfDay(12, 0),
		SlotMinutes: 30,
	}))

	engine := NewAvailabilityEngine(store, booked, time.UTC).
		WithClock(fixedClock("2026-03-01T00:00:00Z"))
	return engine, doctorID
}

func TestComputeSlotsPartitionsBlock(t *testing.T) {
	engine, doctorID := newTestEngine(t, stubBooked{})
	monday, _ := civil.ParseDate("2026-03-09")

	slots, err := engine.ComputeSlots(context.Background(), doctorID, monday, monday)
	require.NoError(t, err)
	require.Len(t, slots, 8)
	assert.Equal(t, civil.NewTimeOfDay(8, 0), slots[0].Start)
	assert.Equal(t, civil.NewTimeOfDay(11, 30), slots[7].Start)
	for _, s := range slots {
		assert.Equal(t, 30, s.Minutes)
		assert.Equal(t, monday, s.Date)
	}
}

func TestComputeSlotsSkipsBookedSlot(t *testing.T) {
	monday, _ := civil.ParseDate("2026-03-09")
	booked := stubBooked{
		SlotKey(monday, civil.NewTimeOfDay(8, 30)): {},
	}
	engine, doctorID := newTestEngine(t, booked)

	slots, err := engine.ComputeSlots(context.Background(), doctorID, monday, monday)
	require.NoError(t, err)

	var starts []string
	for _, s := range slots {
		starts = append(starts, s.Start.String())
	}
	assert.Equal(t, []string{"08:00", "09:00", "09:30", "10:00", "10:30", "11:00", "11:30"}, starts)
}

func TestComputeSlotsDiscardsRemainder(t *testing.T) {
	store := NewMemoryStore()
	doctorID := uuid.New()
	store.PutDoctor(Doctor{ID: doctorID, Active: true})
	require.NoError(t, store.PutBlocks(doctorID, ScheduleBlock{
		DoctorID:    doctorID,
		Weekday:     time.Monday,
		Start:       civil.NewTimeOfDay(8, 0),
		End:         civil.NewTimeOfDay(9, 45),
		SlotMinutes: 30,
	}))

	engine := NewAvailabilityEngine(store, stubBooked{}, time.UTC).
		WithClock(fixedClock("2026-03-01T00:00:00Z"))

	monday, _ := civil.ParseDate("2026-03-09")
	slots, err := engine.ComputeSlots(context.Background(), doctorID, monday, monday)
	require.NoError(t, err)

	// 09:00 fits, the trailing 15 minutes after 09:30 do not.
	require.Len(t, slots, 3)
	assert.Equal(t, civil.NewTimeOfDay(9, 0), slots[2].Start)
}

func TestComputeSlotsNoTemplateWeekday(t *testing.T) {
	engine, doctorID := newTestEngine(t, stubBooked{})
	sunday, _ := civil.ParseDate("2026-03-08")

	slots, err := engine.ComputeSlots(context.Background(), doctorID, sunday, sunday)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestComputeSlotsFullDayException(t *testing.T) {
	store := NewMemoryStore()
	doctorID := uuid.New()
	store.PutDoctor(Doctor{ID: doctorID, Active: true})
	require.NoError(t, store.PutBlocks(doctorID, ScheduleBlock{
		DoctorID:    doctorID,
		Weekday:     time.Monday,
		Start:       civil.NewTimeOfDay(8, 0),
		End:         civil.NewTimeOfDay(12, 0),
		SlotMinutes: 30,
	}))

	monday, _ := civil.ParseDate("2026-03-09")
	store.PutException(ScheduleException{DoctorID: doctorID, Date: monday, Reason: "congreso"})

	engine := NewAvailabilityEngine(store, stubBooked{}, time.UTC).
		WithClock(fixedClock("2026-03-01T00:00:00Z"))

	slots, err := engine.ComputeSlots(context.Background(), doctorID, monday, monday)
	require.NoError(t, err)
	assert.Empty(t, slots)

	// The following Monday is unaffected.
	next := monday.AddDays(7)
	slots, err = engine.ComputeSlots(context.Background(), doctorID, next, next)
	require.NoError(t, err)
	assert.Len(t, slots, 8)
}

func TestComputeSlotsPartialOverride(t *testing.T) {
	store := NewMemoryStore()
	doctorID := uuid.New()
	store.PutDoctor(Doctor{ID: doctorID, Active: true})
	require.NoError(t, store.PutBlocks(doctorID, ScheduleBlock{
		DoctorID:    doctorID,
		Weekday:     time.Monday,
		Start:       civil.NewTimeOfDay(8, 0),
		End:         civil.NewTimeOfDay(12, 0),
		SlotMinutes: 30,
	}))

	monday, _ := civil.ParseDate("2026-03-09")
	start := civil.NewTimeOfDay(9, 0)
	end := civil.NewTimeOfDay(11, 0)
	store.PutException(ScheduleException{
		DoctorID:      doctorID,
		Date:          monday,
		Reason:        "media jornada",
		OverrideStart: &start,
		OverrideEnd:   &end,
	})

	engine := NewAvailabilityEngine(store, stubBooked{}, time.UTC).
		WithClock(fixedClock("2026-03-01T00:00:00Z"))

	slots, err := engine.ComputeSlots(context.Background(), doctorID, monday, monday)
	require.NoError(t, err)
	require.Len(t, slots, 4)
	assert.Equal(t, civil.NewTimeOfDay(9, 0), slots[0].Start)
	assert.Equal(t, civil.NewTimeOfDay(10, 30), slots[3].Start)
}

func TestComputeSlotsDropsPastSlots(t *testing.T) {
	engine, doctorID := newTestEngine(t, stubBooked{})
	engine.WithClock(fixedClock("2026-03-09T10:05:00Z"))

	monday, _ := civil.ParseDate("2026-03-09")
	slots, err := engine.ComputeSlots(context.Background(), doctorID, monday, monday)
	require.NoError(t, err)

	var starts []string
	for _, s := range slots {
		starts = append(starts, s.Start.String())
	}
	assert.Equal(t, []string{"10:30", "11:00", "11:30"}, starts)
}

func TestComputeSlotsSpansMultipleDays(t *testing.T) {
	engine, doctorID := newTestEngine(t, stubBooked{})
	monday, _ := civil.ParseDate("2026-03-09")

	// Monday through the next Monday: two templated days.
	slots, err := engine.ComputeSlots(context.Background(), doctorID, monday, monday.AddDays(7))
	require.NoError(t, err)
	assert.Len(t, slots, 16)
}

func TestComputeSlotsInvalidRange(t *testing.T) {
	engine, doctorID := newTestEngine(t, stubBooked{})
	monday, _ := civil.ParseDate("2026-03-09")

	_, err := engine.ComputeSlots(context.Background(), doctorID, monday, monday.AddDays(-1))
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestComputeSlotsUnknownDoctor(t *testing.T) {
	engine, _ := newTestEngine(t, stubBooked{})
	monday, _ := civil.ParseDate("2026-03-09")

	_, err := engine.ComputeSlots(context.Background(), uuid.New(), monday, monday)
	assert.ErrorIs(t, err, ErrDoctorNotFound)
}
