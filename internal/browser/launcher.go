package browser

import (
	"context"
	"fmt"
	goruntime "runtime"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/example/appt-scheduler/internal/config"
)

// Launcher owns the browser allocator. Each call to NewPage starts a fresh
// browser with an empty profile, so no cookies survive between sessions.
type Launcher struct {
	logger            *zap.Logger
	cfg               config.BrowserConfig
	navigationTimeout time.Duration

	allocCtx    context.Context
	allocCancel context.CancelFunc
}

// NewLauncher prepares the allocator. No process is started until NewPage.
func NewLauncher(ctx context.Context, cfg config.BrowserConfig, navigationTimeout time.Duration, logger *zap.Logger) *Launcher {
	l := &Launcher{
		logger:            logger.Named("browser_launcher"),
		cfg:               cfg,
		navigationTimeout: navigationTimeout,
	}
	l.allocCtx, l.allocCancel = chromedp.NewExecAllocator(ctx, l.allocatorOptions()...)
	return l
}

func (l *Launcher) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)

	opts = append(opts,
		chromedp.Flag("headless", l.cfg.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-extensions", true),
		chromedp.WindowSize(l.cfg.ViewportWidth, l.cfg.ViewportHeight),
	)

	for _, arg := range l.cfg.Args {
		parts := strings.SplitN(arg, "=", 2)
		name := strings.TrimPrefix(parts[0], "--")
		if len(parts) == 2 {
			opts = append(opts, chromedp.Flag(name, parts[1]))
		} else {
			opts = append(opts, chromedp.Flag(name, true))
		}
	}

	// Containers on Linux usually lack the privileges for the sandbox.
	if goruntime.GOOS == "linux" {
		opts = append(opts,
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-setuid-sandbox", true),
		)
	}
	return opts
}

// Tab is a driver that owns its browser.
type Tab interface {
	Driver
	Close() error
}

// Page is one browser with a single tab.
type Page struct {
	*CDPDriver
	tab    context.Context
	cancel context.CancelFunc
}

// NewPage starts a browser and sizes its viewport.
func (l *Launcher) NewPage(ctx context.Context) (*Page, error) {
	tab, cancel := chromedp.NewContext(l.allocCtx)

	// The first Run allocates the browser and ties it to tab, so it must not
	// run on a derived context.
	unlink := context.AfterFunc(ctx, cancel)
	defer unlink()

	if err := chromedp.Run(tab,
		chromedp.EmulateViewport(int64(l.cfg.ViewportWidth), int64(l.cfg.ViewportHeight)),
	); err != nil {
		cancel()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("browser failed to start: %w", err)
	}
	l.logger.Debug("Browser started.")

	return &Page{
		CDPDriver: NewCDPDriver(tab, l.navigationTimeout, l.logger),
		tab:       tab,
		cancel:    cancel,
	}, nil
}

// Open starts a fresh browser and returns it as a Tab.
func (l *Launcher) Open(ctx context.Context) (Tab, error) {
	p, err := l.NewPage(ctx)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Close shuts the page's browser down.
func (p *Page) Close() error {
	err := chromedp.Cancel(p.tab)
	p.cancel()
	return err
}

// Shutdown releases the allocator.
func (l *Launcher) Shutdown() {
	l.allocCancel()
}
