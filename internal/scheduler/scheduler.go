package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/appt-scheduler/internal/domain/appointment"
	"github.com/example/appt-scheduler/internal/notify"
	"github.com/example/appt-scheduler/internal/poll"
)

// ErrCyclesExhausted is returned by Run when MaxCycles cycles found nothing.
var ErrCyclesExhausted = errors.New("scheduler: cycle limit reached without a booking")

// Notifier receives success and fatal events.
type Notifier interface {
	Emit(ctx context.Context, ev notify.Event)
}

// Recorder stores attempt outcomes. Failures are logged, never fatal.
type Recorder interface {
	Record(ctx context.Context, r appointment.AttemptRecord) error
}

// Scheduler signs in once per cycle, tries every resource in order with
// that session, and sleeps for Backoff when none of them booked.
type Scheduler struct {
	Booker    appointment.Booker
	Resources []appointment.ResourceCandidate
	Backoff   time.Duration
	// MaxCycles stops the loop after that many unsuccessful cycles; zero
	// means no limit.
	MaxCycles int

	Notifier Notifier
	Recorder Recorder
	Logger   *zap.Logger
	Now      func() time.Time

	mu    sync.Mutex
	state CycleState
}

// Run loops until a booking is confirmed (nil), ctx is done (ctx.Err()) or
// MaxCycles is reached (ErrCyclesExhausted).
func (s *Scheduler) Run(ctx context.Context) error {
	if len(s.Resources) == 0 {
		return errors.New("scheduler: no resources configured")
	}
	if s.Logger == nil {
		s.Logger = zap.NewNop()
	}
	if s.Now == nil {
		s.Now = time.Now
	}
	logger := s.Logger.Named("scheduler")

	for cycle := 1; ; cycle++ {
		if err := ctx.Err(); err != nil {
			s.setPhase(PhaseStopped)
			return err
		}

		booked, err := s.runCycle(ctx, logger, cycle)
		if err != nil {
			s.setPhase(PhaseStopped)
			return err
		}
		if booked {
			return nil
		}

		if s.MaxCycles > 0 && cycle >= s.MaxCycles {
			s.setPhase(PhaseStopped)
			logger.Warn("Cycle limit reached.", zap.Int("cycles", cycle))
			return ErrCyclesExhausted
		}

		next := s.Now().Add(s.Backoff)
		s.update(func(st *CycleState) {
			st.Phase = PhaseSleeping
			st.SessionID = ""
			st.Resource = ""
			st.Remaining = nil
			st.NextCycleAt = next
		})
		logger.Info("No booking this cycle, sleeping.", zap.Int("cycle", cycle), zap.Duration("backoff", s.Backoff))
		if err := poll.Sleep(ctx, s.Backoff); err != nil {
			s.setPhase(PhaseStopped)
			return err
		}
	}
}

// runCycle reports whether a booking was confirmed. Only cancellation is
// returned as an error.
func (s *Scheduler) runCycle(ctx context.Context, logger *zap.Logger, cycle int) (bool, error) {
	s.update(func(st *CycleState) {
		st.Phase = PhaseEstablishing
		st.Cycle = cycle
		st.NextCycleAt = time.Time{}
	})
	logger.Info("Cycle started.", zap.Int("cycle", cycle))

	session, err := s.Booker.Login(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		s.update(func(st *CycleState) { st.LastError = err.Error() })
		logger.Error("Could not establish session.", zap.Int("cycle", cycle), zap.Error(err))
		s.emit(ctx, notify.Fatal, fmt.Sprintf("Cycle %d: could not sign in: %v", cycle, err))
		return false, nil
	}

	logger = logger.With(zap.String("session_id", session.ID()), zap.Int("cycle", cycle))
	logger.Info("Session established.")
	defer func() {
		if err := session.Close(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("Failed to close session.", zap.Error(err))
		}
	}()

	ids := make([]string, len(s.Resources))
	for i, c := range s.Resources {
		ids[i] = c.ID
	}

	for i, c := range s.Resources {
		s.update(func(st *CycleState) {
			st.Phase = PhaseAttempting
			st.SessionID = session.ID()
			st.Resource = c.ID
			st.Remaining = append([]string(nil), ids[i+1:]...)
		})
		logger.Info("Attempting resource.", zap.String("resource", c.ID), zap.Int("ordinal", c.Ordinal))

		started := s.Now()
		err := session.Attempt(ctx, c)
		outcome := appointment.Classify(err)
		s.record(ctx, logger, appointment.AttemptRecord{
			SessionID:  session.ID(),
			Cycle:      cycle,
			Candidate:  c,
			Outcome:    outcome,
			Err:        err,
			StartedAt:  started,
			FinishedAt: s.Now(),
		})

		s.update(func(st *CycleState) {
			st.LastOutcome = outcome.String()
			st.LastError = ""
			if err != nil {
				st.LastError = err.Error()
			}
		})

		switch {
		case outcome == appointment.Booked:
			s.update(func(st *CycleState) {
				st.Phase = PhaseBooked
				st.Booked = true
				st.BookedResource = c.ID
				st.Remaining = nil
			})
			logger.Info("Appointment booked.", zap.String("resource", c.ID))
			s.emit(ctx, notify.Success, fmt.Sprintf("Appointment rescheduled at resource %s.", c.ID))
			return true, nil
		case ctx.Err() != nil:
			return false, ctx.Err()
		default:
			logger.Warn("Attempt failed, moving on.",
				zap.String("resource", c.ID),
				zap.String("outcome", outcome.String()),
				zap.String("reason", appointment.Reason(err)),
				zap.Error(err))
		}
	}
	return false, nil
}

func (s *Scheduler) record(ctx context.Context, logger *zap.Logger, r appointment.AttemptRecord) {
	if s.Recorder == nil {
		return
	}
	if err := s.Recorder.Record(context.WithoutCancel(ctx), r); err != nil {
		logger.Warn("Failed to journal attempt.", zap.Error(err))
	}
}

func (s *Scheduler) emit(ctx context.Context, sev notify.Severity, msg string) {
	if s.Notifier == nil {
		return
	}
	s.Notifier.Emit(ctx, notify.Event{Severity: sev, Message: msg, Timestamp: s.Now()})
}
