// Package journal appends attempt outcomes to Postgres. Nothing reads the
// journal back; it exists for operators.
package journal

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/appt-scheduler/internal/db"
	"github.com/example/appt-scheduler/internal/domain/appointment"
	"github.com/example/appt-scheduler/internal/migrate"
)

type Store struct {
	db     *db.DB
	logger *zap.Logger
}

func NewStore(d *db.DB, logger *zap.Logger) *Store {
	return &Store{db: d, logger: logger.Named("journal")}
}

// Open connects, checks the connection and applies migrations.
func Open(ctx context.Context, databaseURL string, logger *zap.Logger) (*Store, error) {
	d, err := db.Open(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	s, err := Prepare(ctx, d, logger)
	if err != nil {
		d.Close()
		return nil, err
	}
	return s, nil
}

// Prepare pings d and migrates it.
func Prepare(ctx context.Context, d *db.DB, logger *zap.Logger) (*Store, error) {
	if err := d.Ping(ctx); err != nil {
		return nil, fmt.Errorf("journal: ping: %w", err)
	}
	if err := migrate.Up(ctx, d); err != nil {
		return nil, fmt.Errorf("journal: migrate: %w", err)
	}
	return NewStore(d, logger), nil
}

// Record appends one attempt.
func (s *Store) Record(ctx context.Context, r appointment.AttemptRecord) error {
	var errText *string
	if r.Err != nil {
		msg := r.Err.Error()
		errText = &msg
	}
	err := s.db.Exec(ctx, `
INSERT INTO attempts(session_id, cycle, resource_id, ordinal, outcome, reason, error, started_at, finished_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		r.SessionID, r.Cycle, r.Candidate.ID, r.Candidate.Ordinal, r.Outcome.String(),
		appointment.Reason(r.Err), errText, r.StartedAt, r.FinishedAt)
	if err != nil {
		return fmt.Errorf("journal: record attempt: %w", err)
	}
	return nil
}

func (s *Store) Close() {
	s.db.Close()
}
