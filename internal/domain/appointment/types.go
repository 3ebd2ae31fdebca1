package appointment

import (
	"fmt"
	"time"
)

// ResourceCandidate is one facility tried within a cycle. Ordinal is its
// position in the configured order.
type ResourceCandidate struct {
	ID      string
	Ordinal int
}

func (c ResourceCandidate) String() string { return fmt.Sprintf("%s (#%d)", c.ID, c.Ordinal) }

// Candidates keeps the configured order.
func Candidates(ids []string) []ResourceCandidate {
	out := make([]ResourceCandidate, len(ids))
	for i, id := range ids {
		out[i] = ResourceCandidate{ID: id, Ordinal: i}
	}
	return out
}

// Opening is an available day reported by the availability endpoint.
type Opening struct {
	Date        time.Time
	BusinessDay bool
}
