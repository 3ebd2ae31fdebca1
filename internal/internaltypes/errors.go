package internaltypes

import "errors"

var (
	ErrSelectorNotFound       = errors.New("selector not found")
	ErrPollTimeout            = errors.New("timed out")
	ErrNoAppointmentAvailable = errors.New("no appointment available")
	ErrNoSlotBeforeDeadline   = errors.New("no slot before deadline")
	ErrCalendarExhausted      = errors.New("calendar exhausted")
	ErrNavigation             = errors.New("navigation failed")
	ErrNotificationDelivery   = errors.New("notification delivery failed")

	// ErrSessionEstablish aborts a whole cycle; every other error only skips a resource.
	ErrSessionEstablish = errors.New("session establishment failed")
)
