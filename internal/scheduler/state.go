package scheduler

import "time"

type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseEstablishing Phase = "establishing_session"
	PhaseAttempting   Phase = "attempting"
	PhaseSleeping     Phase = "sleeping"
	PhaseBooked       Phase = "booked"
	PhaseStopped      Phase = "stopped"
)

// CycleState is a point-in-time view of the loop.
type CycleState struct {
	Phase          Phase     `json:"phase"`
	Cycle          int       `json:"cycle"`
	SessionID      string    `json:"session_id,omitempty"`
	Resource       string    `json:"resource,omitempty"`
	Remaining      []string  `json:"remaining"`
	LastOutcome    string    `json:"last_outcome,omitempty"`
	LastError      string    `json:"last_error,omitempty"`
	Booked         bool      `json:"booked"`
	BookedResource string    `json:"booked_resource,omitempty"`
	NextCycleAt    time.Time `json:"next_cycle_at,omitzero"`
}

// Status returns a copy of the current state. Safe for concurrent use.
func (s *Scheduler) Status() CycleState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	if st.Phase == "" {
		st.Phase = PhaseIdle
	}
	st.Remaining = append(make([]string, 0, len(s.state.Remaining)), s.state.Remaining...)
	return st
}

func (s *Scheduler) update(fn func(st *CycleState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state)
}

func (s *Scheduler) setPhase(p Phase) {
	s.update(func(st *CycleState) {
		if st.Phase != PhaseBooked {
			st.Phase = p
		}
	})
}
