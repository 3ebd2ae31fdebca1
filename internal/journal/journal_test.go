package journal

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/example/appt-scheduler/internal/db"
	"github.com/example/appt-scheduler/internal/domain/appointment"
	"github.com/example/appt-scheduler/internal/internaltypes"
)

func TestRecord(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewStore(db.New(mock), zaptest.NewLogger(t))
	started := time.Date(2024, 2, 12, 9, 0, 0, 0, time.UTC)

	t.Run("failed attempt carries its error", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO attempts(")).
			WithArgs("sess-1", 2, "94", 0, "no_slot_before_deadline", "no_slot_before_deadline",
				pgxmock.AnyArg(), started, started.Add(time.Minute)).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err := store.Record(context.Background(), appointment.AttemptRecord{
			SessionID:  "sess-1",
			Cycle:      2,
			Candidate:  appointment.ResourceCandidate{ID: "94", Ordinal: 0},
			Outcome:    appointment.NoSlotBeforeDeadline,
			Err:        fmt.Errorf("%w: estimated 2024-04", internaltypes.ErrNoSlotBeforeDeadline),
			StartedAt:  started,
			FinishedAt: started.Add(time.Minute),
		})
		require.NoError(t, err)
	})

	t.Run("database error is wrapped", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO attempts(")).
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(errors.New("connection reset"))

		err := store.Record(context.Background(), appointment.AttemptRecord{
			SessionID: "sess-1",
			Candidate: appointment.ResourceCandidate{ID: "95", Ordinal: 1},
			Outcome:   appointment.Booked,
			StartedAt: started, FinishedAt: started,
		})
		require.ErrorContains(t, err, "connection reset")
		assert.True(t, strings.HasPrefix(err.Error(), "journal: record attempt: "), err.Error())
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPrepare_AppliesPendingMigrations(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectPing()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_migrations")).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version=$1)")).
		WithArgs("001_attempts.sql").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS attempts")).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schema_migrations(version) VALUES ($1)")).
		WithArgs("001_attempts.sql").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	store, err := Prepare(context.Background(), db.New(mock), zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.NotNil(t, store)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPrepare_SkipsAppliedMigrations(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectPing()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_migrations")).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs("001_attempts.sql").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	_, err = Prepare(context.Background(), db.New(mock), zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPrepare_PingFailure(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectPing().WillReturnError(errors.New("dial tcp: connection refused"))

	_, err = Prepare(context.Background(), db.New(mock), zaptest.NewLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "journal: ping")
}
