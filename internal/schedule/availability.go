package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/danteprogrammer/clinica-core/internal/civil"
)

var ErrInvalidRange = errors.New("invalid date range")

// Slot is a bookable opportunity derived from the weekly template.
type Slot struct {
	DoctorID uuid.UUID       `json:"doctor_id"`
	Date     civil.Date      `json:"date"`
	Start    civil.TimeOfDay `json:"start"`
	Minutes  int             `json:"duration_minutes"`
}

// SlotKey identifies a slot position within one doctor's agenda.
func SlotKey(date civil.Date, start civil.TimeOfDay) string {
	return date.String() + "T" + start.String()
}

// BookedLookup reports which slot positions are already held by active
// appointments. Implemented by the appointment ledger; the engine only reads
// a snapshot.
type BookedLookup interface {
	ActiveSlotKeys(ctx context.Context, doctorID uuid.UUID, from, to civil.Date) (map[string]struct{}, error)
}

// AvailabilityEngine derives bookable slots from the weekly template, minus
// exceptions, minus active appointments, minus anything already in the past.
// It is a pure function of the store and ledger snapshot at call time.
type AvailabilityEngine struct {
	store  Store
	booked BookedLookup
	loc    *time.Location
	now    func() time.Time
}

func NewAvailabilityEngine(store Store, booked BookedLookup, loc *time.Location) *AvailabilityEngine {
	return &AvailabilityEngine{
		store:  store,
		booked: booked,
		loc:    loc,
		now:    time.Now,
	}
}

// WithClock overrides the query instant, for tests and deterministic tools.
func (e *AvailabilityEngine) WithClock(now func() time.Time) *AvailabilityEngine {
	e.now = now
	return e
}

func (e *AvailabilityEngine) ComputeSlots(ctx context.Context, doctorID uuid.UUID, from, to civil.Date) ([]Slot, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("%w: %s is after %s", ErrInvalidRange, from, to)
	}

	if _, err := e.store.GetDoctorByID(ctx, doctorID); err != nil {
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	blocks, err := e.store.ListBlocks(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("load schedule blocks: %w", err)
	}

	byWeekday := make(map[time.Weekday][]ScheduleBlock)
	for _, b := range blocks {
		byWeekday[b.Weekday] = append(byWeekday[b.Weekday], b)
	}

	exceptions, err := e.store.ListExceptions(ctx, doctorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load schedule exceptions: %w", err)
	}
	excByDate := make(map[civil.Date]ScheduleException, len(exceptions))
	for _, ex := range exceptions {
		excByDate[ex.Date] = ex
	}

	taken, err := e.booked.ActiveSlotKeys(ctx, doctorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load booked slots: %w", err)
	}

	now := e.now().In(e.loc)

	var slots []Slot
	for d := from; !d.After(to); d = d.AddDays(1) {
		dayBlocks := byWeekday[d.Weekday()]
		if len(dayBlocks) == 0 {
			// No template for this weekday: zero slots.
			continue
		}

		ranges := effectiveRanges(dayBlocks, excByDate[d])
		for _, r := range ranges {
			// Partition into fixed-width slots; a trailing remainder
			// shorter than one slot is discarded, never rounded.
			for t := r.start; t.AddMinutes(r.minutes) <= r.end; t = t.AddMinutes(r.minutes) {
				if !civil.At(d, t, e.loc).After(now) {
					continue
				}
				if _, ok := taken[SlotKey(d, t)]; ok {
					continue
				}
				slots = append(slots, Slot{
					DoctorID: doctorID,
					Date:     d,
					Start:    t,
					Minutes:  r.minutes,
				})
			}
		}
	}

	return slots, nil
}

type slotRange struct {
	start   civil.TimeOfDay
	end     civil.TimeOfDay
	minutes int
}

// effectiveRanges applies the day's exception, if any. A fully blocking
// exception removes the day; a partial override substitutes its range for the
// whole template, keeping the slot width of the day's first block.
func effectiveRanges(dayBlocks []ScheduleBlock, exc ScheduleException) []slotRange {
	if exc.Date.IsZero() {
		ranges := make([]slotRange, 0, len(dayBlocks))
		for _, b := range dayBlocks {
			ranges = append(ranges, slotRange{start: b.Start, end: b.End, minutes: b.SlotMinutes})
		}
		return ranges
	}

	if exc.FullyBlocked() {
		return nil
	}

	return []slotRange{{
		start:   *exc.OverrideStart,
		end:     *exc.OverrideEnd,
		minutes: dayBlocks[0].SlotMinutes,
	}}
}
