package web

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/example/appt-scheduler/internal/scheduler"
)

type staticStatus scheduler.CycleState

func (s staticStatus) Status() scheduler.CycleState { return scheduler.CycleState(s) }

func newTestServer(t *testing.T, st scheduler.CycleState) *httptest.Server {
	srv := httptest.NewServer((&Server{Status: staticStatus(st), Logger: zaptest.NewLogger(t)}).Routes())
	t.Cleanup(srv.Close)
	return srv
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, scheduler.CycleState{})

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok\n", string(body))
}

func TestStatus_JSON(t *testing.T) {
	srv := newTestServer(t, scheduler.CycleState{
		Phase:       scheduler.PhaseAttempting,
		Cycle:       3,
		SessionID:   "4c7d",
		Resource:    "90",
		Remaining:   []string{"91", "92"},
		LastOutcome: "no_slot_before_deadline",
	})

	resp, err := http.Get(srv.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	var got map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "attempting", got["phase"])
	assert.EqualValues(t, 3, got["cycle"])
	assert.Equal(t, "4c7d", got["session_id"])
	assert.Equal(t, []any{"91", "92"}, got["remaining"])
	assert.Equal(t, false, got["booked"])
	assert.NotContains(t, got, "next_cycle_at")
}

func TestStatus_RejectsPost(t *testing.T) {
	srv := newTestServer(t, scheduler.CycleState{})

	resp, err := http.Post(srv.URL+"/status", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHome(t *testing.T) {
	srv := newTestServer(t, scheduler.CycleState{Phase: scheduler.PhaseBooked, Booked: true, BookedResource: "94"})

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "<h1>booked</h1>")
	assert.Contains(t, string(body), "94")

	resp, err = http.Get(srv.URL + "/missing")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStart_StopsOnCancel(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Start(ctx, addr, (&Server{Status: staticStatus{}}).Routes(), zaptest.NewLogger(t))
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
