package booking

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/example/appt-scheduler/internal/config"
	"github.com/example/appt-scheduler/internal/domain/appointment"
	"github.com/example/appt-scheduler/internal/internaltypes"
)

type dayEntry struct {
	Date        string `json:"date"`
	BusinessDay bool   `json:"business_day"`
}

// Openings lists the open days the site reports for resource, earliest
// first, through the signed-in browser.
func (s *Session) Openings(ctx context.Context, resource string) ([]appointment.Opening, error) {
	u := s.b.daysURL(resource)
	resp, err := s.tab.Navigate(ctx, u)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("%w: availability for %s returned status %d", internaltypes.ErrNavigation, resource, resp.Status)
	}
	return parseDays(resp.Body, s.b.booking.DeadlineDate().Location())
}

func parseDays(body []byte, loc *time.Location) ([]appointment.Opening, error) {
	var entries []dayEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("%w: decoding availability: %v", internaltypes.ErrNavigation, err)
	}
	out := make([]appointment.Opening, 0, len(entries))
	for _, e := range entries {
		d, err := time.ParseInLocation(config.DeadlineLayout, e.Date, loc)
		if err != nil {
			return nil, fmt.Errorf("%w: bad date %q in availability", internaltypes.ErrNavigation, e.Date)
		}
		out = append(out, appointment.Opening{Date: d, BusinessDay: e.BusinessDay})
	}
	return out, nil
}

// CheckAvailability fails unless the site reports an opening on or before
// the deadline for resource.
func (s *Session) CheckAvailability(ctx context.Context, resource string) (time.Time, error) {
	openings, err := s.Openings(ctx, resource)
	if err != nil {
		return time.Time{}, err
	}
	if len(openings) == 0 {
		return time.Time{}, fmt.Errorf("%w for resource %s", internaltypes.ErrNoAppointmentAvailable, resource)
	}
	first := openings[0].Date
	deadline := s.b.booking.DeadlineDate()
	if first.After(deadline) {
		return first, fmt.Errorf("%w: earliest %s is after %s", internaltypes.ErrNoSlotBeforeDeadline,
			first.Format(config.DeadlineLayout), deadline.Format(config.DeadlineLayout))
	}
	s.logger.Info("Earlier date available.", zap.String("resource", resource), zap.Time("date", first))
	return first, nil
}
