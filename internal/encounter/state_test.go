package encounter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danteprogrammer/clinica-core/internal/booking"
)

func TestNextHappyPath(t *testing.T) {
	steps := []struct {
		from  booking.Status
		event Event
		to    booking.Status
	}{
		{booking.StatusPending, EventConfirm, booking.StatusConfirmed},
		{booking.StatusConfirmed, EventCheckIn, booking.StatusTriaged},
		{booking.StatusTriaged, EventBeginConsultation, booking.StatusInProgress},
		{booking.StatusInProgress, EventOrderLab, booking.StatusLabOrdered},
		{booking.StatusLabOrdered, EventLabCompleted, booking.StatusInProgress},
		{booking.StatusInProgress, EventFinishConsultation, booking.StatusAwaitingPayment},
		{booking.StatusAwaitingPayment, EventPay, booking.StatusCompleted},
	}

	for _, s := range steps {
		to, noop, err := Next(s.from, s.event)
		require.NoError(t, err, "%s from %s", s.event, s.from)
		assert.False(t, noop)
		assert.Equal(t, s.to, to)
	}
}

func TestNextCancelFromEveryActiveState(t *testing.T) {
	for _, from := range booking.ActiveStatuses() {
		to, noop, err := Next(from, EventCancel)
		require.NoError(t, err, "cancel from %s", from)
		assert.False(t, noop)
		assert.Equal(t, booking.StatusCancelled, to)
	}
}

func TestNextRejectsUndeclaredTransitions(t *testing.T) {
	cases := []struct {
		from  booking.Status
		event Event
	}{
		{booking.StatusPending, EventPay},
		{booking.StatusPending, EventCheckIn},
		{booking.StatusConfirmed, EventBeginConsultation},
		{booking.StatusTriaged, EventFinishConsultation},
		{booking.StatusAwaitingPayment, EventOrderLab},
		{booking.StatusCancelled, EventConfirm},
		{booking.StatusCompleted, EventCheckIn},
	}

	for _, c := range cases {
		_, _, err := Next(c.from, c.event)
		assert.ErrorIs(t, err, ErrInvalidTransition, "%s from %s", c.event, c.from)
	}
}

// Terminal states admit no outgoing events at all; a resubmitted pay or
// cancel is the only thing they answer, and only as a no-op.
func TestTerminalStatesAreClosed(t *testing.T) {
	events := []Event{
		EventConfirm, EventCheckIn, EventBeginConsultation, EventOrderLab,
		EventLabCompleted, EventFinishConsultation, EventPay, EventCancel,
	}

	for _, from := range []booking.Status{booking.StatusCompleted, booking.StatusCancelled} {
		for _, ev := range events {
			to, noop, err := Next(from, ev)
			if noop {
				assert.Equal(t, from, to)
				continue
			}
			assert.ErrorIs(t, err, ErrInvalidTransition, "%s from %s", ev, from)
		}
	}
}

func TestNextIdempotentResubmission(t *testing.T) {
	// Re-firing the event that produced the current state is a no-op.
	cases := []struct {
		state booking.Status
		event Event
	}{
		{booking.StatusConfirmed, EventConfirm},
		{booking.StatusTriaged, EventCheckIn},
		{booking.StatusInProgress, EventBeginConsultation},
		{booking.StatusLabOrdered, EventOrderLab},
		{booking.StatusAwaitingPayment, EventFinishConsultation},
		{booking.StatusCompleted, EventPay},
		{booking.StatusCancelled, EventCancel},
	}

	for _, c := range cases {
		to, noop, err := Next(c.state, c.event)
		require.NoError(t, err, "%s at %s", c.event, c.state)
		assert.True(t, noop)
		assert.Equal(t, c.state, to)
	}
}

func TestParseEvent(t *testing.T) {
	ev, err := ParseEvent("check_in")
	require.NoError(t, err)
	assert.Equal(t, EventCheckIn, ev)

	_, err = ParseEvent("checkin")
	assert.ErrorIs(t, err, ErrUnknownEvent)
	_, err = ParseEvent("")
	assert.ErrorIs(t, err, ErrUnknownEvent)
}
