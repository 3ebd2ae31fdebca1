package notify

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/example/appt-scheduler/internal/config"
	"github.com/example/appt-scheduler/internal/internaltypes"
)

// Channel delivers one event to an external service.
type Channel interface {
	Name() string
	Post(ctx context.Context, ev Event) error
}

// Sink logs events and pushes the important ones. It never returns delivery
// errors to the caller.
type Sink struct {
	logger  *zap.Logger
	channel Channel
	limiter *rate.Limiter

	retryMax      int
	retryBase     time.Duration
	retryMaxDelay time.Duration
	sendTimeout   time.Duration
	now           func() time.Time
}

// NewSink builds a sink. channel may be nil, in which case events are only
// logged.
func NewSink(channel Channel, cfg config.NotifyConfig, logger *zap.Logger) *Sink {
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 1
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return &Sink{
		logger:        logger.Named("notify"),
		channel:       channel,
		limiter:       rate.NewLimiter(rate.Limit(rps), burst),
		retryMax:      cfg.RetryMax,
		retryBase:     500 * time.Millisecond,
		retryMaxDelay: 10 * time.Second,
		sendTimeout:   10 * time.Second,
		now:           time.Now,
	}
}

// Emit records ev. Success and fatal events are delivered to the channel
// with bounded retries; a failed delivery is logged and dropped.
func (s *Sink) Emit(ctx context.Context, ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = s.now()
	}
	s.log(ev)

	if s.channel == nil || !ev.Severity.Pushed() {
		return
	}
	if err := s.deliver(ctx, ev); err != nil {
		s.logger.Warn("Notification not delivered.",
			zap.String("channel", s.channel.Name()),
			zap.Error(err))
	}
}

func (s *Sink) log(ev Event) {
	fields := []zap.Field{zap.String("severity", ev.Severity.String()), zap.Time("at", ev.Timestamp)}
	switch ev.Severity {
	case Fatal:
		s.logger.Error(ev.Message, fields...)
	case Warning:
		s.logger.Warn(ev.Message, fields...)
	default:
		s.logger.Info(ev.Message, fields...)
	}
}

func (s *Sink) deliver(ctx context.Context, ev Event) error {
	maxAttempts := 1 + max(s.retryMax, 0)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %v", internaltypes.ErrNotificationDelivery, err)
		}

		callCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
		err := s.channel.Post(callCtx, ev)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		s.logger.Debug("Notification send failed.", zap.Error(err),
			zap.Int("attempt", attempt), zap.Int("max", maxAttempts))

		if attempt >= maxAttempts {
			break
		}
		t := time.NewTimer(s.retryDelay(attempt))
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("%w: %v", internaltypes.ErrNotificationDelivery, ctx.Err())
		}
	}
	return fmt.Errorf("%w after %d attempts: %v", internaltypes.ErrNotificationDelivery, maxAttempts, lastErr)
}

// retryDelay is base * 2^(attempt-1), capped, with 0.7..1.3 jitter.
func (s *Sink) retryDelay(attempt int) time.Duration {
	d := s.retryBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= s.retryMaxDelay {
			d = s.retryMaxDelay
			break
		}
	}
	j := 0.7 + rand.Float64()*0.6
	return time.Duration(float64(d) * j)
}
