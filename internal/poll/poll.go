// Package poll is the single implementation of "wait until X" used by every
// bounded wait in the module: element lookups, visibility checks, option
// loading and calendar probing all go through Until.
package poll

import (
	"context"
	"fmt"
	"time"

	"github.com/example/appt-scheduler/internal/internaltypes"
)

// DefaultInterval is the fixed pause between two evaluations.
const DefaultInterval = 100 * time.Millisecond

// ErrTimeout is returned (wrapped) when a condition is not met in time.
var ErrTimeout = internaltypes.ErrPollTimeout

// Condition reports whether the awaited state has been reached. An error is
// treated as "not yet" unless the context is done; the last one is attached
// to the timeout error for diagnostics.
type Condition func(ctx context.Context) (bool, error)

// Poller evaluates conditions strictly sequentially at a fixed interval.
type Poller struct {
	Interval time.Duration
}

// Until evaluates cond immediately and then once per interval until it holds
// or timeout has elapsed since the call began. The last sleep is shortened
// so that one evaluation happens exactly at the deadline; an evaluation that
// is running when the deadline passes is allowed to finish.
func (p Poller) Until(ctx context.Context, timeout time.Duration, cond Condition) error {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	start := time.Now()

	var lastErr error
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		ok, err := cond(ctx)
		if ok {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
		}

		remaining := timeout - time.Since(start)
		if remaining <= 0 {
			if lastErr != nil {
				return fmt.Errorf("%w after %s (last error: %v)", ErrTimeout, timeout, lastErr)
			}
			return fmt.Errorf("%w after %s", ErrTimeout, timeout)
		}
		if err := Sleep(ctx, min(interval, remaining)); err != nil {
			return err
		}
	}
}

// Until runs cond on a Poller with the default interval.
func Until(ctx context.Context, timeout time.Duration, cond Condition) error {
	return Poller{}.Until(ctx, timeout, cond)
}

// Sleep pauses for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
