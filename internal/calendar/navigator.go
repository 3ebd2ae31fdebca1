// Package calendar pages a month-view date picker until an open day shows
// up, and judges how far out that day is.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/example/appt-scheduler/internal/browser"
	"github.com/example/appt-scheduler/internal/internaltypes"
)

// ErrExhausted is returned when paging ran past MaxDuration.
var ErrExhausted = internaltypes.ErrCalendarExhausted

// Result is where the open day was found.
type Result struct {
	Advances int
	Cell     browser.Element
}

// Navigator seeks the first open day cell, clicking "next" between probes.
type Navigator struct {
	Resolver *browser.Resolver
	Driver   browser.Driver
	Logger   *zap.Logger

	DayCell    browser.LocatorSpec
	Next       browser.LocatorSpec
	NextOffset browser.Point

	// ProbeTimeout bounds each look for a day cell on the current page.
	ProbeTimeout time.Duration
	// ElementTimeout bounds resolving the next control.
	ElementTimeout time.Duration
	// MaxDuration caps the whole seek.
	MaxDuration time.Duration
}

// Seek probes the displayed page for an open day and otherwise advances one
// page, until a day is found, MaxDuration elapses or a remote fault aborts it.
// MaxDuration bounds every wait inside the seek, including resolving the next
// control.
func (n *Navigator) Seek(ctx context.Context) (Result, error) {
	logger := n.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	seekCtx := ctx
	if n.MaxDuration > 0 {
		var cancel context.CancelFunc
		seekCtx, cancel = context.WithTimeout(ctx, n.MaxDuration)
		defer cancel()
	}
	advances := 0

	// fail reports hitting the cap as ErrExhausted and passes other errors,
	// including the caller's own cancellation, through.
	fail := func(err error) (Result, error) {
		if ctx.Err() == nil && seekCtx.Err() != nil {
			return Result{Advances: advances}, fmt.Errorf("%w after %d pages in %s", ErrExhausted, advances, n.MaxDuration)
		}
		return Result{Advances: advances}, err
	}

	for {
		if err := seekCtx.Err(); err != nil {
			return fail(err)
		}

		cell, err := n.Resolver.Resolve(seekCtx, nil, n.DayCell, n.ProbeTimeout)
		if err == nil {
			logger.Debug("Open day found.", zap.Int("advances", advances))
			return Result{Advances: advances, Cell: cell}, nil
		}
		if ctxErr := seekCtx.Err(); ctxErr != nil {
			return fail(ctxErr)
		}
		if !errors.Is(err, internaltypes.ErrSelectorNotFound) {
			return fail(err)
		}

		next, err := n.Resolver.Find(seekCtx, n.Next, n.ElementTimeout)
		if err != nil {
			return fail(fmt.Errorf("next page control: %w", err))
		}
		if err := n.Driver.Click(seekCtx, next, n.NextOffset); err != nil {
			return fail(fmt.Errorf("clicking next page: %w", err))
		}
		advances++
		logger.Debug("Advanced calendar page.", zap.Int("advances", advances))
	}
}
