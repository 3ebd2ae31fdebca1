package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/example/appt-scheduler/internal/internaltypes"
)

// cdpNode adapts a DOM node to Element.
type cdpNode struct {
	node *cdp.Node
}

func (n *cdpNode) String() string {
	if n.node == nil {
		return "<nil>"
	}
	return fmt.Sprintf("<%s #%d>", n.node.LocalName, n.node.NodeID)
}

func (n *cdpNode) EncapsulatedRoot() (SearchRoot, bool) {
	if n.node == nil || len(n.node.ShadowRoots) == 0 {
		return nil, false
	}
	return &cdpNode{node: n.node.ShadowRoots[0]}, true
}

func nodeOf(v SearchRoot) (*cdp.Node, error) {
	n, ok := v.(*cdpNode)
	if !ok || n.node == nil {
		return nil, fmt.Errorf("not a live DOM node: %v", v)
	}
	return n.node, nil
}

// CDPDriver implements Driver against one chromedp tab.
type CDPDriver struct {
	// tab carries the chromedp target; operations derive from it.
	tab               context.Context
	logger            *zap.Logger
	navigationTimeout time.Duration
}

// NewCDPDriver wraps a chromedp context created with chromedp.NewContext.
func NewCDPDriver(tab context.Context, navigationTimeout time.Duration, logger *zap.Logger) *CDPDriver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CDPDriver{tab: tab, logger: logger.Named("cdp"), navigationTimeout: navigationTimeout}
}

// combine derives an operation context from the tab that is also cancelled
// with ctx and honours its deadline.
func (d *CDPDriver) combine(ctx context.Context) (context.Context, context.CancelFunc) {
	opCtx, cancel := context.WithCancel(d.tab)
	stop := context.AfterFunc(ctx, cancel)
	if dl, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		opCtx, cancelDeadline = context.WithDeadline(opCtx, dl)
		return opCtx, func() { stop(); cancelDeadline(); cancel() }
	}
	return opCtx, func() { stop(); cancel() }
}

func (d *CDPDriver) run(ctx context.Context, actions ...chromedp.Action) error {
	opCtx, cancel := d.combine(ctx)
	defer cancel()
	if err := chromedp.Run(opCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func (d *CDPDriver) Query(ctx context.Context, root SearchRoot, selector string) (Element, error) {
	opts := []chromedp.QueryOption{chromedp.ByQuery, chromedp.AtLeast(0)}
	if root != nil {
		n, err := nodeOf(root)
		if err != nil {
			return nil, err
		}
		opts = append(opts, chromedp.FromNode(n))
	}

	var nodes []*cdp.Node
	if err := d.run(ctx, chromedp.Nodes(selector, &nodes, opts...)); err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, nil
	}
	return &cdpNode{node: nodes[0]}, nil
}

func (d *CDPDriver) Click(ctx context.Context, el Element, offset Point) error {
	n, err := nodeOf(el)
	if err != nil {
		return err
	}
	if offset == (Point{}) {
		return d.run(ctx, chromedp.MouseClickNode(n))
	}
	return d.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		box, err := dom.GetBoxModel().WithNodeID(n.NodeID).Do(ctx)
		if err != nil {
			return err
		}
		if box == nil || len(box.Border) < 2 {
			return fmt.Errorf("no box model for %s", el)
		}
		return chromedp.MouseClickXY(box.Border[0]+offset.X, box.Border[1]+offset.Y).Do(ctx)
	}))
}

func (d *CDPDriver) TypeText(ctx context.Context, el Element, text string) error {
	n, err := nodeOf(el)
	if err != nil {
		return err
	}
	return d.run(ctx, chromedp.SendKeys([]cdp.NodeID{n.NodeID}, text, chromedp.ByNodeID))
}

// callOn runs fn with `this` bound to el and returns the JSON result.
func (d *CDPDriver) callOn(ctx context.Context, el Element, fn string) ([]byte, error) {
	n, err := nodeOf(el)
	if err != nil {
		return nil, err
	}
	var out []byte
	err = d.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		obj, err := dom.ResolveNode().WithNodeID(n.NodeID).Do(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = runtime.ReleaseObject(obj.ObjectID).Do(ctx) }()

		res, exc, err := runtime.CallFunctionOn(fn).
			WithObjectID(obj.ObjectID).
			WithReturnByValue(true).
			Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return exc
		}
		if res != nil {
			out = []byte(res.Value)
		}
		return nil
	}))
	return out, err
}

func (d *CDPDriver) callBool(ctx context.Context, el Element, fn string) (bool, error) {
	raw, err := d.callOn(ctx, el, fn)
	if err != nil {
		return false, err
	}
	return string(raw) == "true", nil
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func (d *CDPDriver) SetFieldValue(ctx context.Context, el Element, value string) error {
	_, err := d.callOn(ctx, el, fmt.Sprintf(`function() {
	this.focus();
	this.value = %s;
	this.dispatchEvent(new Event('input', {bubbles: true}));
	this.dispatchEvent(new Event('change', {bubbles: true}));
}`, jsString(value)))
	return err
}

func (d *CDPDriver) FieldType(ctx context.Context, el Element) (string, error) {
	raw, err := d.callOn(ctx, el, `function() { return this.type || this.localName || ''; }`)
	if err != nil {
		return "", err
	}
	var kind string
	if err := json.Unmarshal(raw, &kind); err != nil {
		return "", fmt.Errorf("decoding field type: %w", err)
	}
	return kind, nil
}

func (d *CDPDriver) SelectOption(ctx context.Context, el Element, value string) error {
	ok, err := d.callBool(ctx, el, fmt.Sprintf(`function() {
	this.value = %[1]s;
	if (this.value !== %[1]s) return false;
	this.dispatchEvent(new Event('input', {bubbles: true}));
	this.dispatchEvent(new Event('change', {bubbles: true}));
	return true;
}`, jsString(value)))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("option %q not offered by %s", value, el)
	}
	return nil
}

func (d *CDPDriver) OptionValues(ctx context.Context, el Element) ([]string, error) {
	raw, err := d.callOn(ctx, el, `function() { return Array.from(this.options || []).map(o => o.value); }`)
	if err != nil {
		return nil, err
	}
	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("decoding options: %w", err)
	}
	return values, nil
}

func (d *CDPDriver) IsConnected(ctx context.Context, el Element) (bool, error) {
	return d.callBool(ctx, el, `function() { return this.isConnected; }`)
}

func (d *CDPDriver) IsInViewport(ctx context.Context, el Element) (bool, error) {
	return d.callBool(ctx, el, `function() {
	const r = this.getBoundingClientRect();
	const w = window.innerWidth || document.documentElement.clientWidth;
	const h = window.innerHeight || document.documentElement.clientHeight;
	return r.bottom > 0 && r.right > 0 && r.top < h && r.left < w;
}`)
}

func (d *CDPDriver) ScrollIntoView(ctx context.Context, el Element) error {
	_, err := d.callOn(ctx, el, `function() { this.scrollIntoView({block: 'center', inline: 'center', behavior: 'instant'}); }`)
	return err
}

func (d *CDPDriver) Navigate(ctx context.Context, url string) (Response, error) {
	if d.navigationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.navigationTimeout)
		defer cancel()
	}
	opCtx, cancel := d.combine(ctx)
	defer cancel()

	d.logger.Debug("Navigating.", zap.String("url", url))
	resp, err := chromedp.RunResponse(opCtx, chromedp.Navigate(url))
	if err != nil {
		return Response{}, fmt.Errorf("%w: %s: %v", internaltypes.ErrNavigation, url, err)
	}

	var body string
	if err := chromedp.Run(opCtx,
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Evaluate(`document.body ? document.body.innerText : ''`, &body),
	); err != nil {
		return Response{}, fmt.Errorf("%w: reading %s: %v", internaltypes.ErrNavigation, url, err)
	}

	out := Response{Body: []byte(body)}
	if resp != nil {
		out.Status = int(resp.Status)
	}
	return out, nil
}

func (d *CDPDriver) AwaitNavigation(ctx context.Context, trigger func(ctx context.Context) error) error {
	loaded := make(chan struct{}, 1)
	listenCtx, stopListening := context.WithCancel(d.tab)
	defer stopListening()
	chromedp.ListenTarget(listenCtx, func(ev interface{}) {
		if _, ok := ev.(*page.EventLoadEventFired); ok {
			select {
			case loaded <- struct{}{}:
			default:
			}
		}
	})

	if err := trigger(ctx); err != nil {
		return err
	}

	timeout := d.navigationTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-loaded:
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("%w: page did not finish loading within %s", internaltypes.ErrNavigation, timeout)
	}

	if err := d.run(ctx, chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("%w: %v", internaltypes.ErrNavigation, err)
	}
	return nil
}
