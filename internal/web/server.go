// Package web serves the read-only status surface of a running scheduler.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/example/appt-scheduler/internal/scheduler"
)

// StatusSource reports the scheduler's current state.
type StatusSource interface {
	Status() scheduler.CycleState
}

type Server struct {
	Status StatusSource
	Logger *zap.Logger
}

var page = template.Must(template.New("status").Parse(`<!doctype html>
<html>
<head><title>apptsched</title><meta http-equiv="refresh" content="10"></head>
<body>
<h1>{{.Phase}}</h1>
<dl>
<dt>Cycle</dt><dd>{{.Cycle}}</dd>
{{if .SessionID}}<dt>Session</dt><dd>{{.SessionID}}</dd>{{end}}
{{if .Resource}}<dt>Resource</dt><dd>{{.Resource}}</dd>{{end}}
{{if .Remaining}}<dt>Remaining</dt><dd>{{range .Remaining}}{{.}} {{end}}</dd>{{end}}
{{if .LastOutcome}}<dt>Last outcome</dt><dd>{{.LastOutcome}}</dd>{{end}}
{{if .LastError}}<dt>Last error</dt><dd>{{.LastError}}</dd>{{end}}
{{if .Booked}}<dt>Booked</dt><dd>{{.BookedResource}}</dd>{{end}}
{{if not .NextCycleAt.IsZero}}<dt>Next cycle</dt><dd>{{.NextCycleAt.Format "2006-01-02T15:04:05Z07:00"}}</dd>{{end}}
</dl>
</body>
</html>
`))

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /{$}", s.handleHome)

	return mux
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.Status.Status()); err != nil {
		s.logger().Warn("Failed to write status.", zap.Error(err))
	}
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := page.Execute(w, s.Status.Status()); err != nil {
		http.Error(w, "render error: "+err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

// Start serves h on addr until ctx is done. A clean shutdown returns nil.
func Start(ctx context.Context, addr string, h http.Handler, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	})
	defer stop()

	logger.Info("Status server listening.", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
