package sql_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sqlrepo "github.com/tigerroll/batchcore/pkg/batch/infrastructure/repository/sql"
	"github.com/tigerroll/batchcore/pkg/batch/support/util/exception"
	"github.com/tigerroll/batchcore/pkg/batch/test"
)

func TestActivationGuard_ClaimAndRelease(t *testing.T) {
	env := test.NewSQLiteEnv(t)
	env.SeedRequest(t, "J1", 0)
	guard, err := sqlrepo.NewActivationGuard(env.TxManager, env.Cfg.Batchcore.DuplicateCheck)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, guard.Claim(ctx, "J1"))

	err = guard.Claim(ctx, "J1")
	assert.ErrorIs(t, err, exception.ErrAlreadyRunning)
	assert.ErrorContains(t, err, "same process already running. process = [J1]")

	require.NoError(t, guard.Release(ctx, "J1"))
	require.NoError(t, guard.Release(ctx, "J1"), "releasing an inactive process is not an error")
	require.NoError(t, guard.Claim(ctx, "J1"))
}

func TestActivationGuard_UnknownProcessIsRunning(t *testing.T) {
	env := test.NewSQLiteEnv(t)
	guard, err := sqlrepo.NewActivationGuard(env.TxManager, env.Cfg.Batchcore.DuplicateCheck)
	require.NoError(t, err)

	assert.ErrorIs(t, guard.Claim(context.Background(), "NOT_REGISTERED"), exception.ErrAlreadyRunning)
}

func TestActivationGuard_PermittedProcesses(t *testing.T) {
	env := test.NewSQLiteEnv(t)
	cfg := env.Cfg.Batchcore.DuplicateCheck
	cfg.PermittedProcesses = []string{"J1"}
	guard, err := sqlrepo.NewActivationGuard(env.TxManager, cfg)
	require.NoError(t, err)
	ctx := context.Background()

	// The row does not even exist: permitted ids never touch the table.
	require.NoError(t, guard.Claim(ctx, "J1"))
	require.NoError(t, guard.Claim(ctx, "J1"))
	require.NoError(t, guard.Release(ctx, "J1"))
}

func TestActivationGuard_ConcurrentClaims(t *testing.T) {
	env := test.NewSQLiteEnv(t)
	env.SeedRequest(t, "J1", 0)
	guard, err := sqlrepo.NewActivationGuard(env.TxManager, env.Cfg.Batchcore.DuplicateCheck)
	require.NoError(t, err)

	const claimers = 4
	var wg sync.WaitGroup
	errs := make([]error, claimers)
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = guard.Claim(context.Background(), "J1")
		}(i)
	}
	wg.Wait()

	won := 0
	for _, err := range errs {
		if err == nil {
			won++
			continue
		}
		assert.ErrorIs(t, err, exception.ErrAlreadyRunning)
	}
	assert.Equal(t, 1, won)
}

func TestNewActivationGuard_MissingColumn(t *testing.T) {
	env := test.NewSQLiteEnv(t)
	cfg := env.Cfg.Batchcore.DuplicateCheck
	cfg.ActiveFlagColumn = ""

	_, err := sqlrepo.NewActivationGuard(env.TxManager, cfg)
	assert.ErrorIs(t, err, exception.ErrInvalidConfiguration)
	assert.ErrorContains(t, err, "duplicate_check.active_flag_column must be set.")
}
