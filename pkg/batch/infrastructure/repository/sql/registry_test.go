package sql_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/tigerroll/batchcore/pkg/batch/core/config"
	sqlrepo "github.com/tigerroll/batchcore/pkg/batch/infrastructure/repository/sql"
	"github.com/tigerroll/batchcore/pkg/batch/support/util/exception"
	"github.com/tigerroll/batchcore/pkg/batch/test"
)

func newRegistry(t *testing.T, env *test.SQLiteEnv) *sqlrepo.RequestRegistry {
	t.Helper()
	table, err := sqlrepo.RequestTableFromConfig(&env.Cfg.Batchcore)
	require.NoError(t, err)
	registry, err := sqlrepo.NewRequestRegistry(env.TxManager, table)
	require.NoError(t, err)
	return registry
}

func TestStopFlagSignal(t *testing.T) {
	env := test.NewSQLiteEnv(t)
	env.SeedRequest(t, "J1", 0)
	signal, err := sqlrepo.NewStopFlagSignal(env.TxManager, env.Cfg.Batchcore.Stop)
	require.NoError(t, err)
	registry := newRegistry(t, env)
	ctx := context.Background()

	stop, err := signal.ShouldStop(ctx, "J1")
	require.NoError(t, err)
	assert.False(t, stop)

	require.NoError(t, registry.RequestStop(ctx, "J1"))
	stop, err = signal.ShouldStop(ctx, "J1")
	require.NoError(t, err)
	assert.True(t, stop)

	require.NoError(t, registry.ClearStop(ctx, "J1"))
	stop, err = signal.ShouldStop(ctx, "J1")
	require.NoError(t, err)
	assert.False(t, stop)

	stop, err = signal.ShouldStop(ctx, "UNKNOWN")
	require.NoError(t, err)
	assert.False(t, stop)
}

func TestRequestRegistry(t *testing.T) {
	env := test.NewSQLiteEnv(t)
	registry := newRegistry(t, env)
	ctx := context.Background()

	require.NoError(t, registry.Register(ctx, "J1"))
	assert.Equal(t, 0, env.ResumePoint(t, "J1"))

	env.MustExec(t, "UPDATE batch_request SET resume_point = 7 WHERE request_id = ?", "J1")
	require.NoError(t, registry.Register(ctx, "J1"), "registering twice keeps the existing row")
	assert.Equal(t, 7, env.ResumePoint(t, "J1"))

	require.NoError(t, registry.ResetResumePoint(ctx, "J1"))
	assert.Equal(t, 0, env.ResumePoint(t, "J1"))

	err := registry.RequestStop(ctx, "UNKNOWN")
	assert.ErrorContains(t, err, "request is not registered. request id=[UNKNOWN].")
}

func TestRequestTableFromConfig(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Batchcore.DuplicateCheck.Table = config.DefaultRequestTable
	cfg.Batchcore.Stop.Table = config.DefaultRequestTable

	table, err := sqlrepo.RequestTableFromConfig(&cfg.Batchcore)
	require.NoError(t, err)
	assert.Equal(t, sqlrepo.RequestTable{
		Table:             "batch_request",
		RequestIDColumn:   "request_id",
		HaltFlagColumn:    "process_halt_flg",
		ActiveFlagColumn:  "process_active_flg",
		ResumePointColumn: "resume_point",
	}, table)

	cfg.Batchcore.Stop.Table = "stop_request"
	_, err = sqlrepo.RequestTableFromConfig(&cfg.Batchcore)
	assert.ErrorIs(t, err, exception.ErrInvalidConfiguration)

	cfg.Batchcore.Stop.Table = config.DefaultRequestTable
	cfg.Batchcore.Resume.RequestIDColumn = "job_id"
	_, err = sqlrepo.RequestTableFromConfig(&cfg.Batchcore)
	assert.ErrorContains(t, err, "must share one request id column")
}
