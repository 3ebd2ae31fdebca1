package booking

import (
	"context"
	"fmt"

	"github.com/example/appt-scheduler/internal/browser"
	"github.com/example/appt-scheduler/internal/internaltypes"
)

func (s *Session) signIn(ctx context.Context) error {
	resp, err := s.tab.Navigate(ctx, s.b.signInURL())
	if err != nil {
		return err
	}
	if !resp.OK() {
		return fmt.Errorf("%w: sign-in page returned status %d", internaltypes.ErrNavigation, resp.Status)
	}

	if err := s.fill(ctx, emailField, emailOffset, s.b.account.Username); err != nil {
		return fmt.Errorf("email: %w", err)
	}
	if err := s.fill(ctx, passwordField, browser.Point{}, s.b.account.Password); err != nil {
		return fmt.Errorf("password: %w", err)
	}
	if err := s.click(ctx, policyBox, policyOffset); err != nil {
		return fmt.Errorf("policy agreement: %w", err)
	}

	signIn, err := s.resolver.Find(ctx, signInButton, s.b.timeout.Element)
	if err != nil {
		return fmt.Errorf("sign-in button: %w", err)
	}
	if err := s.tab.AwaitNavigation(ctx, func(ctx context.Context) error {
		return s.tab.Click(ctx, signIn, signInOffset)
	}); err != nil {
		return fmt.Errorf("submitting sign-in: %w", err)
	}
	return nil
}

func (s *Session) fill(ctx context.Context, spec browser.LocatorSpec, offset browser.Point, text string) error {
	el, err := s.resolver.Find(ctx, spec, s.b.timeout.Element)
	if err != nil {
		return err
	}
	if err := s.tab.Click(ctx, el, offset); err != nil {
		return err
	}
	return browser.Fill(ctx, s.tab, el, text)
}
