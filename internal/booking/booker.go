// Package booking drives the appointment site: it signs in, checks
// availability and walks the reschedule form for one resource at a time.
package booking

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/appt-scheduler/internal/browser"
	"github.com/example/appt-scheduler/internal/calendar"
	"github.com/example/appt-scheduler/internal/config"
	"github.com/example/appt-scheduler/internal/domain/appointment"
	"github.com/example/appt-scheduler/internal/internaltypes"
	"github.com/example/appt-scheduler/internal/poll"
)

// Opener starts a fresh browser for each session.
type Opener interface {
	Open(ctx context.Context) (browser.Tab, error)
}

// Booker signs in and hands out sessions.
type Booker struct {
	opener  Opener
	account config.AccountConfig
	booking config.BookingConfig
	mode    string
	timeout config.TimeoutsConfig
	logger  *zap.Logger

	// Poller paces every bounded wait of a session.
	Poller poll.Poller
	// TimeSettle is the pause after the time dropdown appears and before
	// its options are read.
	TimeSettle time.Duration
	// Now is the clock used for month estimation.
	Now func() time.Time
}

// New builds a Booker from validated configuration.
func New(opener Opener, cfg config.Config, logger *zap.Logger) *Booker {
	return &Booker{
		opener:     opener,
		account:    cfg.Account,
		booking:    cfg.Booking,
		mode:       cfg.Availability.Mode,
		timeout:    cfg.Timeouts,
		logger:     logger.Named("booking"),
		TimeSettle: 500 * time.Millisecond,
		Now:        time.Now,
	}
}

// Login implements appointment.Booker.
func (b *Booker) Login(ctx context.Context) (appointment.Session, error) {
	s, err := b.OpenSession(ctx)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// OpenSession starts a browser and signs in. Failures wrap
// internaltypes.ErrSessionEstablish.
func (b *Booker) OpenSession(ctx context.Context) (*Session, error) {
	tab, err := b.opener.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: starting browser: %w", internaltypes.ErrSessionEstablish, err)
	}

	resolver := browser.NewResolver(tab, b.logger)
	resolver.Poller = b.Poller
	s := &Session{
		id:       uuid.NewString(),
		b:        b,
		tab:      tab,
		resolver: resolver,
	}
	s.logger = b.logger.With(zap.String("session_id", s.id))

	if err := s.signIn(ctx); err != nil {
		if cerr := tab.Close(); cerr != nil {
			s.logger.Warn("Failed to close browser after sign-in failure.", zap.Error(cerr))
		}
		return nil, fmt.Errorf("%w: %w", internaltypes.ErrSessionEstablish, err)
	}
	s.logger.Info("Session established.")
	return s, nil
}

func (b *Booker) signInURL() string { return b.booking.BaseURL() + "/users/sign_in" }

func (b *Booker) appointmentURL() string {
	return fmt.Sprintf("%s/schedule/%s/appointment", b.booking.BaseURL(), url.PathEscape(b.booking.Reference))
}

func (b *Booker) daysURL(resource string) string {
	return fmt.Sprintf("%s/schedule/%s/appointment/days/%s.json?appointments[expedite]=false",
		b.booking.BaseURL(), url.PathEscape(b.booking.Reference), url.PathEscape(resource))
}

// Session is one signed-in browser. It is owned by a single goroutine.
type Session struct {
	id       string
	b        *Booker
	tab      browser.Tab
	resolver *browser.Resolver
	logger   *zap.Logger
}

func (s *Session) ID() string { return s.id }

// Close shuts the browser down.
func (s *Session) Close(ctx context.Context) error {
	if err := s.tab.Close(); err != nil {
		return fmt.Errorf("closing session %s: %w", s.id, err)
	}
	return nil
}

func (s *Session) navigator() *calendar.Navigator {
	return &calendar.Navigator{
		Resolver:       s.resolver,
		Driver:         s.tab,
		Logger:         s.logger,
		DayCell:        openDayCell,
		Next:           nextMonth,
		NextOffset:     nextOffset,
		ProbeTimeout:   s.b.timeout.Probe,
		ElementTimeout: s.b.timeout.Element,
		MaxDuration:    s.b.timeout.Calendar,
	}
}

// click resolves spec, brings it into view and clicks it.
func (s *Session) click(ctx context.Context, spec browser.LocatorSpec, offset browser.Point) error {
	el, err := s.resolver.Find(ctx, spec, s.b.timeout.Element)
	if err != nil {
		return err
	}
	return s.tab.Click(ctx, el, offset)
}
