package appointment

import "context"

// Booker establishes authenticated sessions against the booking site.
type Booker interface {
	Login(ctx context.Context) (Session, error)
}

// Session is one authenticated browser session, reused for every resource
// of a cycle and closed at its end. It is not safe for concurrent use.
type Session interface {
	ID() string
	// Attempt runs the booking workflow for one resource. A nil error means
	// the appointment was confirmed.
	Attempt(ctx context.Context, c ResourceCandidate) error
	Close(ctx context.Context) error
}
