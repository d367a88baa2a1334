package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/danteprogrammer/clinica-core/internal/civil"
)

func block(weekday time.Weekday, start, end civil.TimeOfDay, slotMinutes int) ScheduleBlock {
	return ScheduleBlock{Weekday: weekday, Start: start, End: end, SlotMinutes: slotMinutes}
}

func TestValidateBlocks(t *testing.T) {
	tests := []struct {
		name    string
		blocks  []ScheduleBlock
		wantErr bool
	}{
		{
			name: "disjoint blocks on one weekday",
			blocks: []ScheduleBlock{
				block(time.Monday, civil.NewTimeOfDay(8, 0), civil.NewTimeOfDay(12, 0), 30),
				block(time.Monday, civil.NewTimeOfDay(15, 0), civil.NewTimeOfDay(19, 0), 30),
			},
		},
		{
			name: "same range on different weekdays",
			blocks: []ScheduleBlock{
				block(time.Monday, civil.NewTimeOfDay(8, 0), civil.NewTimeOfDay(12, 0), 30),
				block(time.Tuesday, civil.NewTimeOfDay(8, 0), civil.NewTimeOfDay(12, 0), 30),
			},
		},
		{
			name: "overlapping blocks rejected",
			blocks: []ScheduleBlock{
				block(time.Monday, civil.NewTimeOfDay(8, 0), civil.NewTimeOfDay(12, 0), 30),
				block(time.Monday, civil.NewTimeOfDay(11, 30), civil.NewTimeOfDay(14, 0), 30),
			},
			wantErr: true,
		},
		{
			name: "adjacent blocks allowed",
			blocks: []ScheduleBlock{
				block(time.Monday, civil.NewTimeOfDay(8, 0), civil.NewTimeOfDay(12, 0), 30),
				block(time.Monday, civil.NewTimeOfDay(12, 0), civil.NewTimeOfDay(14, 0), 30),
			},
		},
		{
			name:    "start after end rejected",
			blocks:  []ScheduleBlock{block(time.Monday, civil.NewTimeOfDay(12, 0), civil.NewTimeOfDay(8, 0), 30)},
			wantErr: true,
		},
		{
			name:    "zero slot width rejected",
			blocks:  []ScheduleBlock{block(time.Monday, civil.NewTimeOfDay(8, 0), civil.NewTimeOfDay(12, 0), 0)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBlocks(tt.blocks)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidBlock)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestExceptionFullyBlocked(t *testing.T) {
	assert.True(t, ScheduleException{}.FullyBlocked())

	start := civil.NewTimeOfDay(9, 0)
	end := civil.NewTimeOfDay(11, 0)
	assert.False(t, ScheduleException{OverrideStart: &start, OverrideEnd: &end}.FullyBlocked())

	// An inverted or empty override range blocks the day too.
	assert.True(t, ScheduleException{OverrideStart: &end, OverrideEnd: &start}.FullyBlocked())
	assert.True(t, ScheduleException{OverrideStart: &start, OverrideEnd: &start}.FullyBlocked())
}
