package inmemory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/batchcore/pkg/batch/infrastructure/repository/inmemory"
	"github.com/tigerroll/batchcore/pkg/batch/support/util/exception"
)

func TestCheckpointStore(t *testing.T) {
	ctx := context.Background()
	store := inmemory.NewCheckpointStore(map[string]int{"J1": 2, "BAD": -1}, "J3")

	point, err := store.Load(ctx, "J1", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, point)

	require.NoError(t, store.Save(ctx, "J1", 4))
	point, _ = store.Point("J1")
	assert.Equal(t, 4, point)

	_, err = store.Load(ctx, "J1", 3)
	assert.ErrorIs(t, err, exception.ErrMultiThreadedResumeUnsupported)
	_, err = store.Load(ctx, "J2", 1)
	assert.ErrorIs(t, err, exception.ErrCheckpointNotFound)
	_, err = store.Load(ctx, "BAD", 1)
	assert.ErrorIs(t, err, exception.ErrInvalidCheckpoint)
	assert.ErrorIs(t, store.Save(ctx, "J2", 1), exception.ErrCheckpointWriteFailed)

	// Excluded jobs neither load nor save.
	point, err = store.Load(ctx, "J3", 5)
	require.NoError(t, err)
	assert.Zero(t, point)
	require.NoError(t, store.Save(ctx, "J3", 9))
	_, ok := store.Point("J3")
	assert.False(t, ok)

	store.Disable()
	assert.False(t, store.Enabled("J1"))
	point, err = store.Load(ctx, "J1", 2)
	require.NoError(t, err)
	assert.Zero(t, point)
}

func TestActivationGuard(t *testing.T) {
	ctx := context.Background()
	guard := inmemory.NewActivationGuard([]string{"J1"}, "SHARED")

	require.NoError(t, guard.Claim(ctx, "J1"))
	assert.True(t, guard.IsActive("J1"))
	assert.ErrorIs(t, guard.Claim(ctx, "J1"), exception.ErrAlreadyRunning)
	assert.ErrorIs(t, guard.Claim(ctx, "UNKNOWN"), exception.ErrAlreadyRunning)

	require.NoError(t, guard.Release(ctx, "J1"))
	assert.False(t, guard.IsActive("J1"))
	require.NoError(t, guard.Claim(ctx, "J1"))

	require.NoError(t, guard.Claim(ctx, "SHARED"))
	require.NoError(t, guard.Claim(ctx, "SHARED"))
}

func TestStopSignal(t *testing.T) {
	ctx := context.Background()
	signal := inmemory.NewStopSignal()

	stop, err := signal.ShouldStop(ctx, "J1")
	require.NoError(t, err)
	assert.False(t, stop)

	signal.RequestStop("J1")
	stop, _ = signal.ShouldStop(ctx, "J1")
	assert.True(t, stop)
	stop, _ = signal.ShouldStop(ctx, "J2")
	assert.False(t, stop)
	assert.Equal(t, 3, signal.Checks())
}
