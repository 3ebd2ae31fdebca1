package booking

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/appt-scheduler/internal/browser"
	"github.com/example/appt-scheduler/internal/calendar"
	"github.com/example/appt-scheduler/internal/config"
	"github.com/example/appt-scheduler/internal/domain/appointment"
	"github.com/example/appt-scheduler/internal/internaltypes"
	"github.com/example/appt-scheduler/internal/poll"
)

// Attempt implements appointment.Session. It returns nil only once the
// reschedule has been confirmed.
func (s *Session) Attempt(ctx context.Context, c appointment.ResourceCandidate) error {
	logger := s.logger.With(zap.String("resource", c.ID))

	if s.b.mode == config.ModeAPI || s.b.mode == config.ModeBoth {
		if _, err := s.CheckAvailability(ctx, c.ID); err != nil {
			return err
		}
	}

	if err := s.openForm(ctx); err != nil {
		return err
	}

	facility, err := s.resolver.Find(ctx, facilitySelect, s.b.timeout.Element)
	if err != nil {
		return fmt.Errorf("facility dropdown: %w", err)
	}
	if err := s.tab.SelectOption(ctx, facility, c.ID); err != nil {
		return fmt.Errorf("selecting facility %s: %w", c.ID, err)
	}

	// No picker renders when the resource has no openings at all.
	if err := s.click(ctx, dateInput, dateInputOffset); err != nil {
		return fmt.Errorf("%w: date input: %w", internaltypes.ErrNoAppointmentAvailable, err)
	}
	if _, err := s.resolver.Resolve(ctx, nil, datePicker, s.b.timeout.Element); err != nil {
		return fmt.Errorf("%w: date picker: %w", internaltypes.ErrNoAppointmentAvailable, err)
	}

	found, err := s.navigator().Seek(ctx)
	if err != nil {
		return fmt.Errorf("seeking open day: %w", err)
	}
	logger.Info("Open day located.", zap.Int("advances", found.Advances),
		zap.Time("estimated_month", calendar.EstimateMonth(found.Advances, s.b.Now())))

	// The exact check already compared against the deadline.
	if s.b.mode != config.ModeAPI {
		policy := calendar.Policy{RejectFirstPage: s.b.booking.RejectFirstPage}
		if err := policy.Decide(found.Advances, s.b.Now(), s.b.booking.DeadlineDate()); err != nil {
			return err
		}
	}

	if err := s.resolver.EnsureVisible(ctx, found.Cell, s.b.timeout.Element); err != nil {
		return fmt.Errorf("open day: %w", err)
	}
	if err := s.tab.Click(ctx, found.Cell, browser.Point{}); err != nil {
		return fmt.Errorf("clicking open day: %w", err)
	}

	if err := s.pickFirstTime(ctx); err != nil {
		return err
	}

	if err := s.click(ctx, submitButton, submitOffset); err != nil {
		return fmt.Errorf("reschedule button: %w", err)
	}
	if err := s.click(ctx, confirmButton, browser.Point{}); err != nil {
		return fmt.Errorf("confirmation: %w", err)
	}
	logger.Info("Reschedule confirmed.")
	return nil
}

func (s *Session) openForm(ctx context.Context) error {
	resp, err := s.tab.Navigate(ctx, s.b.appointmentURL())
	if err != nil {
		return err
	}
	if !resp.OK() {
		return fmt.Errorf("%w: appointment page returned status %d", internaltypes.ErrNavigation, resp.Status)
	}
	if !s.b.booking.Group {
		return nil
	}

	// Group bookings list the applicants first.
	cont, err := s.resolver.Find(ctx, groupContinue, s.b.timeout.Element)
	if err != nil {
		return fmt.Errorf("group continue: %w", err)
	}
	return s.tab.AwaitNavigation(ctx, func(ctx context.Context) error {
		return s.tab.Click(ctx, cont, browser.Point{})
	})
}

func (s *Session) pickFirstTime(ctx context.Context) error {
	sel, err := s.resolver.Find(ctx, timeSelect, s.b.timeout.Element)
	if err != nil {
		return fmt.Errorf("time dropdown: %w", err)
	}
	if err := poll.Sleep(ctx, s.b.TimeSettle); err != nil {
		return err
	}

	var value string
	err = s.b.Poller.Until(ctx, s.b.timeout.Element, func(ctx context.Context) (bool, error) {
		opts, err := s.tab.OptionValues(ctx, sel)
		if err != nil {
			return false, err
		}
		for _, o := range opts {
			if o != "" {
				value = o
				return true, nil
			}
		}
		return false, nil
	})
	if err != nil {
		return fmt.Errorf("waiting for time options: %w", err)
	}
	if err := s.tab.SelectOption(ctx, sel, value); err != nil {
		return fmt.Errorf("selecting time %s: %w", value, err)
	}
	return nil
}
