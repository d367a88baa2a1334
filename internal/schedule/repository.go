package schedule

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/danteprogrammer/clinica-core/internal/civil"
)

var (
	ErrDoctorNotFound = errors.New("doctor not found")
	ErrInvalidBlock   = errors.New("invalid schedule block")
)

// Store holds the recurring weekly templates and one-off exceptions. Writes
// happen in the administration module; the scheduling core reads only.
type Store interface {
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	ListBlocks(ctx context.Context, doctorID uuid.UUID) ([]ScheduleBlock, error)
	ListExceptions(ctx context.Context, doctorID uuid.UUID, from, to civil.Date) ([]ScheduleException, error)
}

// ValidateBlocks enforces the template invariants: every block has a positive
// slot width, start before end, and blocks on the same weekday must not
// overlap.
func ValidateBlocks(blocks []ScheduleBlock) error {
	sorted := make([]ScheduleBlock, len(blocks))
	copy(sorted, blocks)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Weekday != sorted[j].Weekday {
			return sorted[i].Weekday < sorted[j].Weekday
		}
		return sorted[i].Start < sorted[j].Start
	})

	for i, b := range sorted {
		if b.SlotMinutes <= 0 {
			return fmt.Errorf("%w: slot duration must be positive", ErrInvalidBlock)
		}
		if !b.Start.Valid() || !b.End.Valid() {
			return fmt.Errorf("%w: times must fall within a single day", ErrInvalidBlock)
		}
		if b.Start >= b.End {
			return fmt.Errorf("%w: start %s must be before end %s", ErrInvalidBlock, b.Start, b.End)
		}
		if i > 0 && sorted[i-1].Weekday == b.Weekday && b.Start < sorted[i-1].End {
			return fmt.Errorf("%w: overlapping blocks on %s", ErrInvalidBlock, b.Weekday)
		}
	}
	return nil
}
