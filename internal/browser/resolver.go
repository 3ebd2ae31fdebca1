package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/example/appt-scheduler/internal/internaltypes"
	"github.com/example/appt-scheduler/internal/poll"
)

// SelectorNotFoundError lists every alternative that was tried.
type SelectorNotFoundError struct {
	Attempted LocatorSpec
	Last      error
}

func (e *SelectorNotFoundError) Error() string {
	if e.Last != nil {
		return fmt.Sprintf("could not find element for selectors %s: %v", e.Attempted, e.Last)
	}
	return fmt.Sprintf("could not find element for selectors %s", e.Attempted)
}

func (e *SelectorNotFoundError) Unwrap() error { return internaltypes.ErrSelectorNotFound }

// Resolver turns locator specs into live elements and makes them
// interactable. Every wait goes through Poller.
type Resolver struct {
	Driver Driver
	Poller poll.Poller
	Logger *zap.Logger
}

// NewResolver returns a Resolver polling at the default interval.
func NewResolver(d Driver, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{Driver: d, Logger: logger.Named("resolver")}
}

// Resolve tries each alternative of spec in order, starting at root (nil for
// the document). Each hop waits up to timeout for its target to appear.
func (r *Resolver) Resolve(ctx context.Context, root SearchRoot, spec LocatorSpec, timeout time.Duration) (Element, error) {
	if len(spec) == 0 {
		return nil, errors.New("empty locator spec")
	}

	var last error
	for _, path := range spec {
		el, err := r.resolvePath(ctx, root, path, timeout)
		if err == nil {
			return el, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r.Logger.Debug("Locator alternative failed.", zap.Stringer("path", path), zap.Error(err))
		last = err
	}
	return nil, &SelectorNotFoundError{Attempted: spec, Last: last}
}

func (r *Resolver) resolvePath(ctx context.Context, root SearchRoot, path Path, timeout time.Duration) (Element, error) {
	if len(path) == 0 {
		return nil, errors.New("empty locator path")
	}

	searchRoot := root
	var el Element
	for i, hop := range path {
		found, err := r.waitFor(ctx, searchRoot, hop, timeout)
		if err != nil {
			return nil, fmt.Errorf("hop %d %q: %w", i, hop, err)
		}
		el = found
		if i < len(path)-1 {
			if inner, ok := el.EncapsulatedRoot(); ok {
				searchRoot = inner
			} else {
				searchRoot = el
			}
		}
	}
	return el, nil
}

func (r *Resolver) waitFor(ctx context.Context, root SearchRoot, selector string, timeout time.Duration) (Element, error) {
	var found Element
	err := r.Poller.Until(ctx, timeout, func(ctx context.Context) (bool, error) {
		el, err := r.Driver.Query(ctx, root, selector)
		if err != nil {
			return false, err
		}
		found = el
		return el != nil, nil
	})
	return found, err
}

// EnsureVisible waits for el to be attached, then scrolls it to the centre
// of the viewport when it is not already intersecting it. No scroll is
// issued for an element that never attaches or is already visible.
func (r *Resolver) EnsureVisible(ctx context.Context, el Element, timeout time.Duration) error {
	if err := r.Poller.Until(ctx, timeout, func(ctx context.Context) (bool, error) {
		return r.Driver.IsConnected(ctx, el)
	}); err != nil {
		return fmt.Errorf("waiting for %s to attach: %w", el, err)
	}

	visible, err := r.Driver.IsInViewport(ctx, el)
	if err != nil {
		return fmt.Errorf("checking viewport for %s: %w", el, err)
	}
	if visible {
		return nil
	}

	if err := r.Driver.ScrollIntoView(ctx, el); err != nil {
		return fmt.Errorf("scrolling %s into view: %w", el, err)
	}
	if err := r.Poller.Until(ctx, timeout, func(ctx context.Context) (bool, error) {
		return r.Driver.IsInViewport(ctx, el)
	}); err != nil {
		return fmt.Errorf("waiting for %s to enter viewport: %w", el, err)
	}
	return nil
}

// Find resolves spec from the document and makes the element visible.
func (r *Resolver) Find(ctx context.Context, spec LocatorSpec, timeout time.Duration) (Element, error) {
	el, err := r.Resolve(ctx, nil, spec, timeout)
	if err != nil {
		return nil, err
	}
	if err := r.EnsureVisible(ctx, el, timeout); err != nil {
		return nil, err
	}
	return el, nil
}
