package calendar

import (
	"fmt"
	"time"

	"github.com/example/appt-scheduler/internal/internaltypes"
)

// EstimateMonth returns the first day of the month the earliest opening is
// assumed to fall in, given how many pages were advanced to find it.
//
// The picker shows two months and pages one month at a time, so the count
// only tells how far out the opening is to within a month: a late opening
// in month M is indistinguishable from an early one in M+1. The estimate is
// rounded up to keep the comparison against the deadline conservative.
func EstimateMonth(advances int, now time.Time) time.Time {
	return time.Date(now.Year(), now.Month()+time.Month(advances)+1, 1, 0, 0, 0, 0, now.Location())
}

// Policy decides whether an opening found by paging is early enough.
type Policy struct {
	// RejectFirstPage refuses openings found without any paging.
	RejectFirstPage bool
}

// Decide returns nil to accept, or an error wrapping
// internaltypes.ErrNoSlotBeforeDeadline.
func (p Policy) Decide(advances int, now, deadline time.Time) error {
	if advances == 0 && p.RejectFirstPage {
		return fmt.Errorf("%w: opening is on the first calendar page", internaltypes.ErrNoSlotBeforeDeadline)
	}
	est := EstimateMonth(advances, now)
	if est.After(deadline) {
		return fmt.Errorf("%w: estimated %s is after %s", internaltypes.ErrNoSlotBeforeDeadline,
			est.Format("2006-01"), deadline.Format("2006-01-02"))
	}
	return nil
}
