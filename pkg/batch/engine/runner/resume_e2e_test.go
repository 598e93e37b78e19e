package runner_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/batchcore/pkg/batch/component/step/reader"
	port "github.com/tigerroll/batchcore/pkg/batch/core/application/port"
	config "github.com/tigerroll/batchcore/pkg/batch/core/config"
	model "github.com/tigerroll/batchcore/pkg/batch/core/domain/model"
	tx "github.com/tigerroll/batchcore/pkg/batch/core/tx"
	"github.com/tigerroll/batchcore/pkg/batch/engine/handler"
	"github.com/tigerroll/batchcore/pkg/batch/engine/runner"
	sqlrepo "github.com/tigerroll/batchcore/pkg/batch/infrastructure/repository/sql"
	"github.com/tigerroll/batchcore/pkg/batch/test"
)

// TestRunner_ResumesAfterFailure runs a job over 5 rows with a commit interval of 3.
// The first run fails on row 4 and leaves resume point 3; the second run starts at row 4.
func TestRunner_ResumesAfterFailure(t *testing.T) {
	env := test.NewSQLiteEnv(t)
	env.SeedRequest(t, "J1", 0)
	env.MustExec(t, "CREATE TABLE item (id INTEGER PRIMARY KEY)")
	env.MustExec(t, "CREATE TABLE processed (id INTEGER PRIMARY KEY)")
	env.MustExec(t, "INSERT INTO item (id) VALUES (1), (2), (3), (4), (5)")

	cfg := env.Cfg
	cfg.Batchcore.Job.CommitInterval = 3
	store, err := sqlrepo.NewCheckpointStore(env.Conn, cfg.Batchcore.Resume)
	require.NoError(t, err)
	guard, err := sqlrepo.NewActivationGuard(env.TxManager, cfg.Batchcore.DuplicateCheck)
	require.NoError(t, err)
	signal, err := sqlrepo.NewStopFlagSignal(env.TxManager, cfg.Batchcore.Stop)
	require.NoError(t, err)
	chain, err := handler.NewChain(handler.ChainParams{Cfg: cfg, Guard: guard, Signal: signal})
	require.NoError(t, err)

	boom := errors.New("row 4 is broken")
	newAction := func(failOn string) *recordingAction {
		a := newRecordingAction()
		a.newReader = func() port.DataReader[*model.Record] {
			source := reader.NewDatabaseRecordReader(env.Conn, "SELECT id FROM item ORDER BY id")
			return reader.NewResumeReader[*model.Record](source, store)
		}
		a.handle = func(ctx context.Context, record *model.Record, _ *model.RunContext) error {
			if record.GetString("id") == failOn {
				return boom
			}
			_, err := tx.ExecutorFrom(ctx, env.Conn).Exec(ctx, "INSERT INTO processed (id) VALUES (?)", record.GetString("id"))
			return err
		}
		return a
	}
	processed := func() int {
		rows, err := env.Conn.Query(context.Background(), "SELECT COUNT(*) AS n FROM processed")
		require.NoError(t, err)
		n, _ := rows[0].GetInt64("n")
		return int(n)
	}

	first, err := runner.New[*model.Record](newAction("4"), env.TxManager, runner.SettingsFromConfig(cfg), runner.WithHandlers(chain))
	require.NoError(t, err)
	result := first.Run(context.Background(), nil)

	assert.ErrorIs(t, result.Err, boom)
	assert.Equal(t, config.DefaultFailureExitCode, result.ExitCode)
	assert.Equal(t, 3, env.ResumePoint(t, "J1"))
	assert.Equal(t, 3, processed())

	second := newAction("")
	rerun, err := runner.New[*model.Record](second, env.TxManager, runner.SettingsFromConfig(cfg), runner.WithHandlers(chain))
	require.NoError(t, err)
	result = rerun.Run(context.Background(), nil)

	require.True(t, result.IsSuccess(), "rerun failed: %v", result.Err)
	assert.Equal(t, 5, env.ResumePoint(t, "J1"))
	assert.Equal(t, 5, processed())
	_, handled, _, _ := second.snapshot()
	assert.Equal(t, []string{"4", "5"}, handled)

	// The activation flag was released by both runs.
	rows, err := env.Conn.Query(context.Background(), "SELECT process_active_flg FROM batch_request WHERE request_id = 'J1'")
	require.NoError(t, err)
	assert.Equal(t, "0", rows[0].GetString("process_active_flg"))
}
