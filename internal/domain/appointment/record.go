package appointment

import "time"

// AttemptRecord describes one finished attempt.
type AttemptRecord struct {
	SessionID  string
	Cycle      int
	Candidate  ResourceCandidate
	Outcome    AttemptOutcome
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}
