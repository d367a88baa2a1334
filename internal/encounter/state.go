package encounter

import (
	"errors"
	"fmt"

	"github.com/danteprogrammer/clinica-core/internal/booking"
)

// Event is a departmental action that may advance an encounter.
type Event string

const (
	EventConfirm            Event = "confirm"
	EventCheckIn            Event = "check_in"
	EventBeginConsultation  Event = "begin_consultation"
	EventOrderLab           Event = "order_lab"
	EventLabCompleted       Event = "lab_completed"
	EventFinishConsultation Event = "finish_consultation"
	EventPay                Event = "pay"
	EventCancel             Event = "cancel"
)

var (
	ErrUnknownEvent      = errors.New("unknown event")
	ErrInvalidTransition = errors.New("event not legal from current state")
)

// transitions is the full table. Cancel is legal from every non-terminal
// state; everything not listed is rejected.
var transitions = map[booking.Status]map[Event]booking.Status{
	booking.StatusPending: {
		EventConfirm: booking.StatusConfirmed,
		EventCancel:  booking.StatusCancelled,
	},
	booking.StatusConfirmed: {
		EventCheckIn: booking.StatusTriaged,
		EventCancel:  booking.StatusCancelled,
	},
	booking.StatusTriaged: {
		EventBeginConsultation: booking.StatusInProgress,
		EventCancel:            booking.StatusCancelled,
	},
	booking.StatusInProgress: {
		EventOrderLab:           booking.StatusLabOrdered,
		EventFinishConsultation: booking.StatusAwaitingPayment,
		EventCancel:             booking.StatusCancelled,
	},
	booking.StatusLabOrdered: {
		EventLabCompleted: booking.StatusInProgress,
		EventCancel:       booking.StatusCancelled,
	},
	booking.StatusAwaitingPayment: {
		EventPay:    booking.StatusCompleted,
		EventCancel: booking.StatusCancelled,
	},
}

// eventTarget maps each event to the state it lands in, independent of the
// source state. Used for the idempotent-resubmission check.
var eventTarget = map[Event]booking.Status{
	EventConfirm:            booking.StatusConfirmed,
	EventCheckIn:            booking.StatusTriaged,
	EventBeginConsultation:  booking.StatusInProgress,
	EventOrderLab:           booking.StatusLabOrdered,
	EventLabCompleted:       booking.StatusInProgress,
	EventFinishConsultation: booking.StatusAwaitingPayment,
	EventPay:                booking.StatusCompleted,
	EventCancel:             booking.StatusCancelled,
}

// ParseEvent validates an inbound event name.
func ParseEvent(s string) (Event, error) {
	ev := Event(s)
	if _, ok := eventTarget[ev]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownEvent, s)
	}
	return ev, nil
}

// Next resolves the transition table. noop is true when the event would
// re-enter the current state; callers treat that as an idempotent
// resubmission rather than an error.
func Next(from booking.Status, ev Event) (to booking.Status, noop bool, err error) {
	target, ok := eventTarget[ev]
	if !ok {
		return "", false, fmt.Errorf("%w: %q", ErrUnknownEvent, ev)
	}
	if from == target {
		return from, true, nil
	}
	to, ok = transitions[from][ev]
	if !ok {
		return "", false, fmt.Errorf("%w: %s from %s", ErrInvalidTransition, ev, from)
	}
	return to, false, nil
}
