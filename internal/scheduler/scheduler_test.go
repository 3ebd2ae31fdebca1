package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/example/appt-scheduler/internal/domain/appointment"
	"github.com/example/appt-scheduler/internal/internaltypes"
	"github.com/example/appt-scheduler/internal/notify"
)

// attemptFunc decides the result of one attempt.
type attemptFunc func(cycle int, c appointment.ResourceCandidate) error

type fakeBooker struct {
	mu        sync.Mutex
	loginErrs []error // consumed one per login; nil entries succeed
	attempt   attemptFunc

	logins int
	closes int
	visits []string
}

func (b *fakeBooker) Login(ctx context.Context) (appointment.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logins++
	if len(b.loginErrs) > 0 {
		err := b.loginErrs[0]
		b.loginErrs = b.loginErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &fakeSession{b: b, id: fmt.Sprintf("session-%d", b.logins), cycle: b.logins}, nil
}

func (b *fakeBooker) snapshot() (logins, closes int, visits []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.logins, b.closes, append([]string(nil), b.visits...)
}

type fakeSession struct {
	b     *fakeBooker
	id    string
	cycle int
}

func (s *fakeSession) ID() string { return s.id }

func (s *fakeSession) Attempt(ctx context.Context, c appointment.ResourceCandidate) error {
	s.b.mu.Lock()
	s.b.visits = append(s.b.visits, c.ID)
	fn := s.b.attempt
	s.b.mu.Unlock()
	if fn == nil {
		return internaltypes.ErrNoAppointmentAvailable
	}
	return fn(s.cycle, c)
}

func (s *fakeSession) Close(context.Context) error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	s.b.closes++
	return nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (n *recordingNotifier) Emit(_ context.Context, ev notify.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *recordingNotifier) severities() []notify.Severity {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notify.Severity
	for _, ev := range n.events {
		out = append(out, ev.Severity)
	}
	return out
}

type recordingRecorder struct {
	mu      sync.Mutex
	records []appointment.AttemptRecord
	err     error
}

func (r *recordingRecorder) Record(_ context.Context, rec appointment.AttemptRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return r.err
}

func newScheduler(t *testing.T, b appointment.Booker, ids ...string) (*Scheduler, *recordingNotifier) {
	n := &recordingNotifier{}
	return &Scheduler{
		Booker:    b,
		Resources: appointment.Candidates(ids),
		Backoff:   10 * time.Millisecond,
		Notifier:  n,
		Logger:    zaptest.NewLogger(t),
	}, n
}

func TestRun_NoEarlySlotSleepsAndRepeats(t *testing.T) {
	defer goleak.VerifyNone(t)

	b := &fakeBooker{attempt: func(_ int, c appointment.ResourceCandidate) error {
		return fmt.Errorf("%w: resource %s", internaltypes.ErrNoSlotBeforeDeadline, c.ID)
	}}
	s, n := newScheduler(t, b, "90", "91")
	s.MaxCycles = 2
	s.Backoff = 30 * time.Millisecond

	start := time.Now()
	err := s.Run(context.Background())
	require.ErrorIs(t, err, ErrCyclesExhausted)
	assert.GreaterOrEqual(t, time.Since(start), s.Backoff, "must sleep between cycles")

	logins, closes, visits := b.snapshot()
	assert.Equal(t, 2, logins, "one sign-in per cycle")
	assert.Equal(t, 2, closes)
	if diff := cmp.Diff([]string{"90", "91", "90", "91"}, visits); diff != "" {
		t.Errorf("visit order mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, n.severities(), "nothing is pushed for ordinary failures")
	assert.Equal(t, PhaseStopped, s.Status().Phase)
}

func TestRun_VisitsEveryResourceDespiteErrors(t *testing.T) {
	errs := map[string]error{
		"89": fmt.Errorf("facility: %w", internaltypes.ErrSelectorNotFound),
		"90": internaltypes.ErrPollTimeout,
		"91": internaltypes.ErrNoAppointmentAvailable,
		"92": internaltypes.ErrCalendarExhausted,
		"93": internaltypes.ErrNavigation,
		"94": errors.New("unexpected"),
	}
	b := &fakeBooker{attempt: func(_ int, c appointment.ResourceCandidate) error { return errs[c.ID] }}
	s, _ := newScheduler(t, b, "89", "90", "91", "92", "93", "94")
	s.MaxCycles = 1

	require.ErrorIs(t, s.Run(context.Background()), ErrCyclesExhausted)
	_, _, visits := b.snapshot()
	if diff := cmp.Diff([]string{"89", "90", "91", "92", "93", "94"}, visits); diff != "" {
		t.Errorf("visit order mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_StopsOnceBooked(t *testing.T) {
	defer goleak.VerifyNone(t)

	b := &fakeBooker{attempt: func(int, appointment.ResourceCandidate) error { return nil }}
	s, n := newScheduler(t, b, "94")

	require.NoError(t, s.Run(context.Background()))

	logins, closes, _ := b.snapshot()
	assert.Equal(t, 1, logins)
	assert.Equal(t, 1, closes)
	assert.Equal(t, []notify.Severity{notify.Success}, n.severities())

	st := s.Status()
	assert.Equal(t, PhaseBooked, st.Phase)
	assert.True(t, st.Booked)
	assert.Equal(t, "94", st.BookedResource)
}

func TestRun_SkipsResourceWithoutCalendar(t *testing.T) {
	b := &fakeBooker{attempt: func(_ int, c appointment.ResourceCandidate) error {
		if c.ID == "90" {
			return fmt.Errorf("%w: date input", internaltypes.ErrNoAppointmentAvailable)
		}
		return nil
	}}
	s, _ := newScheduler(t, b, "90", "91", "92")

	require.NoError(t, s.Run(context.Background()))
	_, _, visits := b.snapshot()
	assert.Equal(t, []string{"90", "91"}, visits, "stops at the first booking")
	assert.Equal(t, "91", s.Status().BookedResource)
}

func TestRun_BooksInLaterCycle(t *testing.T) {
	b := &fakeBooker{attempt: func(cycle int, c appointment.ResourceCandidate) error {
		if cycle == 3 && c.ID == "91" {
			return nil
		}
		return internaltypes.ErrNoSlotBeforeDeadline
	}}
	s, _ := newScheduler(t, b, "90", "91")

	require.NoError(t, s.Run(context.Background()))
	logins, closes, visits := b.snapshot()
	assert.Equal(t, 3, logins)
	assert.Equal(t, 3, closes)
	assert.Equal(t, []string{"90", "91", "90", "91", "90", "91"}, visits)
	assert.Equal(t, 3, s.Status().Cycle)
}

func TestRun_SessionFailureBacksOffAndNotifies(t *testing.T) {
	b := &fakeBooker{
		loginErrs: []error{fmt.Errorf("%w: sign-in button missing", internaltypes.ErrSessionEstablish), nil},
		attempt:   func(int, appointment.ResourceCandidate) error { return nil },
	}
	s, n := newScheduler(t, b, "90", "91")
	s.Backoff = 25 * time.Millisecond

	start := time.Now()
	require.NoError(t, s.Run(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), s.Backoff)

	logins, closes, visits := b.snapshot()
	assert.Equal(t, 2, logins)
	assert.Equal(t, 1, closes, "a failed sign-in has no session to close")
	assert.Equal(t, []string{"90"}, visits)
	assert.Equal(t, []notify.Severity{notify.Fatal, notify.Success}, n.severities())
}

func TestRun_CancelDuringBackoff(t *testing.T) {
	defer goleak.VerifyNone(t)

	b := &fakeBooker{}
	s, _ := newScheduler(t, b, "90")
	s.Backoff = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)

	start := time.Now()
	err := s.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, PhaseStopped, s.Status().Phase)
}

func TestRun_CancelDuringAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	b := &fakeBooker{attempt: func(_ int, c appointment.ResourceCandidate) error {
		cancel()
		return fmt.Errorf("waiting for picker: %w", context.Canceled)
	}}
	s, _ := newScheduler(t, b, "90", "91")

	require.ErrorIs(t, s.Run(ctx), context.Canceled)
	_, closes, visits := b.snapshot()
	assert.Equal(t, []string{"90"}, visits, "no further resources after cancellation")
	assert.Equal(t, 1, closes, "session is still closed")
}

func TestRun_RecordsEveryAttempt(t *testing.T) {
	b := &fakeBooker{attempt: func(_ int, c appointment.ResourceCandidate) error {
		if c.ID == "91" {
			return nil
		}
		return internaltypes.ErrNoSlotBeforeDeadline
	}}
	rec := &recordingRecorder{err: errors.New("journal down")}
	s, _ := newScheduler(t, b, "90", "91")
	s.Recorder = rec

	require.NoError(t, s.Run(context.Background()), "journal failures are not fatal")
	require.Len(t, rec.records, 2)
	assert.Equal(t, appointment.NoSlotBeforeDeadline, rec.records[0].Outcome)
	assert.Equal(t, appointment.ResourceCandidate{ID: "91", Ordinal: 1}, rec.records[1].Candidate)
	assert.Equal(t, appointment.Booked, rec.records[1].Outcome)
	assert.Equal(t, "session-1", rec.records[1].SessionID)
	assert.Equal(t, 1, rec.records[1].Cycle)
}

func TestStatus_DuringAttempt(t *testing.T) {
	var s *Scheduler
	var seen CycleState
	b := &fakeBooker{attempt: func(_ int, c appointment.ResourceCandidate) error {
		if c.ID == "91" {
			seen = s.Status()
		}
		return internaltypes.ErrNoSlotBeforeDeadline
	}}
	s, _ = newScheduler(t, b, "90", "91", "92")
	s.MaxCycles = 1

	assert.Equal(t, PhaseIdle, s.Status().Phase)
	require.ErrorIs(t, s.Run(context.Background()), ErrCyclesExhausted)

	assert.Equal(t, PhaseAttempting, seen.Phase)
	assert.Equal(t, "91", seen.Resource)
	assert.Equal(t, []string{"92"}, seen.Remaining)
	assert.Equal(t, "no_slot_before_deadline", seen.LastOutcome)
	assert.Equal(t, "session-1", seen.SessionID)
}

func TestRun_NoResources(t *testing.T) {
	s, _ := newScheduler(t, &fakeBooker{})
	require.Error(t, s.Run(context.Background()))
}
