package appointment

import (
	"context"
	"errors"

	"github.com/example/appt-scheduler/internal/internaltypes"
)

// AttemptOutcome is the result of one resource attempt.
type AttemptOutcome int

const (
	// OutcomeUnknown is the zero value; it never reads as a booking.
	OutcomeUnknown AttemptOutcome = iota
	Booked
	NoSlotBeforeDeadline
	TransientFailure
	// Aborted means the run was cancelled mid-attempt.
	Aborted
)

func (o AttemptOutcome) String() string {
	switch o {
	case Booked:
		return "booked"
	case NoSlotBeforeDeadline:
		return "no_slot_before_deadline"
	case TransientFailure:
		return "transient_failure"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Classify maps an attempt error to its outcome.
func Classify(err error) AttemptOutcome {
	switch {
	case err == nil:
		return Booked
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return Aborted
	case errors.Is(err, internaltypes.ErrNoSlotBeforeDeadline):
		return NoSlotBeforeDeadline
	default:
		return TransientFailure
	}
}

// Reason is a short machine-friendly cause for logs and the journal.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, internaltypes.ErrNoAppointmentAvailable):
		return "no_appointment_available"
	case errors.Is(err, internaltypes.ErrNoSlotBeforeDeadline):
		return "no_slot_before_deadline"
	case errors.Is(err, internaltypes.ErrCalendarExhausted):
		return "calendar_exhausted"
	case errors.Is(err, internaltypes.ErrSelectorNotFound):
		return "selector_not_found"
	case errors.Is(err, internaltypes.ErrPollTimeout):
		return "poll_timeout"
	case errors.Is(err, internaltypes.ErrNavigation):
		return "navigation_failure"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "other"
	}
}
