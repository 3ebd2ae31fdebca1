// Package browsertest provides an in-memory browser.Driver for tests.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/example/appt-scheduler/internal/browser"
)

// Element is a scripted page element. Fields are read and written under the
// owning Driver's lock.
type Element struct {
	Name string
	// Shadow, when set, is returned as the element's encapsulated root.
	Shadow *Element

	Detached bool
	// Hidden elements report outside the viewport until scrolled.
	Hidden bool
	// Unscrollable elements stay hidden after a scroll.
	Unscrollable bool

	Type    string
	Value   string
	Options []string
}

func (e *Element) String() string { return e.Name }

func (e *Element) EncapsulatedRoot() (browser.SearchRoot, bool) {
	if e.Shadow == nil {
		return nil, false
	}
	return e.Shadow, true
}

type key struct {
	root     string
	selector string
}

// Driver is a fake browser.Driver. Elements appear when registered with Add
// and vanish with Remove; Hooks fire after interactions so tests can script
// page transitions.
type Driver struct {
	mu       sync.Mutex
	elements map[key]*Element
	calls    []string

	// OnClick is called (without the lock) after an element is clicked.
	OnClick map[string]func(d *Driver)
	// OnNavigate answers Navigate. The default responds 200 with no body.
	OnNavigate func(d *Driver, url string) (browser.Response, error)
	// QueryErr, when set, is returned by every Query.
	QueryErr error
}

// New returns an empty page.
func New() *Driver {
	return &Driver{
		elements: make(map[key]*Element),
		OnClick:  make(map[string]func(d *Driver)),
	}
}

func rootName(root browser.SearchRoot) string {
	if root == nil {
		return "document"
	}
	return root.String()
}

// Add makes el discoverable by selector under root (nil for the document).
func (d *Driver) Add(root browser.SearchRoot, selector string, el *Element) *Element {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.elements[key{rootName(root), selector}] = el
	return el
}

// Remove makes selector under root undiscoverable.
func (d *Driver) Remove(root browser.SearchRoot, selector string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.elements, key{rootName(root), selector})
}

// Mutate runs fn under the driver lock.
func (d *Driver) Mutate(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn()
}

// Calls returns the recorded interactions in order. Queries are not recorded.
func (d *Driver) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

// Count returns how many recorded calls equal call.
func (d *Driver) Count(call string) int {
	n := 0
	for _, c := range d.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

func (d *Driver) record(format string, args ...any) {
	d.calls = append(d.calls, fmt.Sprintf(format, args...))
}

func asElement(el browser.Element) (*Element, error) {
	e, ok := el.(*Element)
	if !ok {
		return nil, fmt.Errorf("foreign element %v", el)
	}
	return e, nil
}

func (d *Driver) Query(ctx context.Context, root browser.SearchRoot, selector string) (browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.QueryErr != nil {
		return nil, d.QueryErr
	}
	el, ok := d.elements[key{rootName(root), selector}]
	if !ok {
		return nil, nil
	}
	return el, nil
}

func (d *Driver) Click(ctx context.Context, el browser.Element, offset browser.Point) error {
	e, err := asElement(el)
	if err != nil {
		return err
	}
	d.mu.Lock()
	if e.Detached {
		d.mu.Unlock()
		return errors.New("node is detached")
	}
	if offset == (browser.Point{}) {
		d.record("click:%s", e.Name)
	} else {
		d.record("click:%s@%g,%g", e.Name, offset.X, offset.Y)
	}
	hook := d.OnClick[e.Name]
	d.mu.Unlock()

	if hook != nil {
		hook(d)
	}
	return nil
}

func (d *Driver) TypeText(ctx context.Context, el browser.Element, text string) error {
	e, err := asElement(el)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	e.Value += text
	d.record("type:%s:%s", e.Name, text)
	return nil
}

func (d *Driver) SetFieldValue(ctx context.Context, el browser.Element, value string) error {
	e, err := asElement(el)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	e.Value = value
	d.record("set:%s:%s", e.Name, value)
	return nil
}

func (d *Driver) FieldType(ctx context.Context, el browser.Element) (string, error) {
	e, err := asElement(el)
	if err != nil {
		return "", err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return e.Type, nil
}

func (d *Driver) SelectOption(ctx context.Context, el browser.Element, value string) error {
	e, err := asElement(el)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, o := range e.Options {
		if o == value {
			e.Value = value
			d.record("select:%s:%s", e.Name, value)
			return nil
		}
	}
	return fmt.Errorf("option %q not offered by %s", value, e.Name)
}

func (d *Driver) OptionValues(ctx context.Context, el browser.Element) ([]string, error) {
	e, err := asElement(el)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), e.Options...), nil
}

func (d *Driver) IsConnected(ctx context.Context, el browser.Element) (bool, error) {
	e, err := asElement(el)
	if err != nil {
		return false, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return !e.Detached, nil
}

func (d *Driver) IsInViewport(ctx context.Context, el browser.Element) (bool, error) {
	e, err := asElement(el)
	if err != nil {
		return false, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return !e.Hidden, nil
}

func (d *Driver) ScrollIntoView(ctx context.Context, el browser.Element) error {
	e, err := asElement(el)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("scroll:%s", e.Name)
	if !e.Unscrollable {
		e.Hidden = false
	}
	return nil
}

func (d *Driver) Navigate(ctx context.Context, url string) (browser.Response, error) {
	if err := ctx.Err(); err != nil {
		return browser.Response{}, err
	}
	d.mu.Lock()
	d.record("navigate:%s", url)
	hook := d.OnNavigate
	d.mu.Unlock()

	if hook != nil {
		return hook(d, url)
	}
	return browser.Response{Status: 200}, nil
}

func (d *Driver) AwaitNavigation(ctx context.Context, trigger func(ctx context.Context) error) error {
	if err := trigger(ctx); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("settled")
	return nil
}

// Close records that the page was closed.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("close")
	return nil
}

var _ browser.Tab = (*Driver)(nil)
