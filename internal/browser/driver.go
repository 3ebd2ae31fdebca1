// Package browser resolves locators against a live page and drives it.
//
// Driver is the narrow capability surface the rest of the module depends on.
// CDPDriver implements it on top of chromedp; tests substitute fakes.
package browser

import (
	"context"
	"fmt"
)

// SearchRoot is a node that locator fragments can be resolved against. A nil
// SearchRoot stands for the page document.
type SearchRoot interface {
	fmt.Stringer
}

// Element is a resolved, live interface element.
type Element interface {
	SearchRoot
	// EncapsulatedRoot returns the element's encapsulated content (a shadow
	// root) when it has one.
	EncapsulatedRoot() (SearchRoot, bool)
}

// Point is an offset from an element's top-left corner.
type Point struct {
	X, Y float64
}

// Response is the outcome of a top-level navigation.
type Response struct {
	Status int
	Body   []byte
}

// OK reports a 2xx status.
func (r Response) OK() bool { return r.Status >= 200 && r.Status < 300 }

// Driver is the interface automation surface. Query is instantaneous: it
// returns (nil, nil) when nothing matches and never waits; all waiting is
// done by the caller through the poll package.
type Driver interface {
	Query(ctx context.Context, root SearchRoot, selector string) (Element, error)

	Click(ctx context.Context, el Element, offset Point) error
	TypeText(ctx context.Context, el Element, text string) error
	// SetFieldValue assigns the value and dispatches input and change events.
	SetFieldValue(ctx context.Context, el Element, value string) error
	FieldType(ctx context.Context, el Element) (string, error)
	SelectOption(ctx context.Context, el Element, value string) error
	OptionValues(ctx context.Context, el Element) ([]string, error)

	IsConnected(ctx context.Context, el Element) (bool, error)
	IsInViewport(ctx context.Context, el Element) (bool, error)
	ScrollIntoView(ctx context.Context, el Element) error

	Navigate(ctx context.Context, url string) (Response, error)
	// AwaitNavigation runs trigger and blocks until the navigation it causes
	// has settled.
	AwaitNavigation(ctx context.Context, trigger func(ctx context.Context) error) error
}
