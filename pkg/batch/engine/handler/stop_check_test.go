package handler_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/tigerroll/batchcore/pkg/batch/core/domain/model"
	"github.com/tigerroll/batchcore/pkg/batch/engine/handler"
	"github.com/tigerroll/batchcore/pkg/batch/infrastructure/repository/inmemory"
	"github.com/tigerroll/batchcore/pkg/batch/support/util/exception"
	"github.com/tigerroll/batchcore/pkg/batch/test"
)

func TestStopCheckHandler_ChecksEveryInterval(t *testing.T) {
	signal := inmemory.NewStopSignal()
	recorder := test.NewCountingRecorder()
	h, err := handler.NewStopCheckHandler(signal, 10, nil)
	require.NoError(t, err)
	h.WithRecorder(recorder)

	rc := model.NewRunContext("J1", nil, 1).Fork(model.WorkerName(1))
	ctx := context.Background()

	var stopErr error
	for i := 1; i <= 20 && stopErr == nil; i++ {
		if i == 5 {
			signal.RequestStop("J1")
		}
		stopErr = h.BeforeRecord(ctx, rc)
	}

	// The flag was raised before record 5 but is only seen at the 10th check point.
	stop, ok := exception.AsProcessStop(stopErr)
	require.True(t, ok)
	assert.Equal(t, 10, h.Count(rc.WorkerID))
	assert.Equal(t, 1, signal.Checks())
	assert.Equal(t, "J1", stop.RequestID)
	assert.Equal(t, 1, stop.ExitCode())
	assert.ErrorIs(t, stopErr, exception.ErrProcessStopped)
	assert.Equal(t, 1, recorder.Count("stop"))
}

func TestStopCheckHandler_CountsPerWorker(t *testing.T) {
	signal := inmemory.NewStopSignal()
	h, err := handler.NewStopCheckHandler(signal, 2, nil)
	require.NoError(t, err)

	root := model.NewRunContext("J1", nil, 2)
	w1, w2 := root.Fork(model.WorkerName(1)), root.Fork(model.WorkerName(2))
	ctx := context.Background()

	require.NoError(t, h.BeforeRecord(ctx, w1))
	require.NoError(t, h.BeforeRecord(ctx, w2))
	assert.Zero(t, signal.Checks())

	require.NoError(t, h.BeforeRecord(ctx, w1))
	assert.Equal(t, 1, signal.Checks())
	assert.Equal(t, 2, h.Count(w1.WorkerID))
	assert.Equal(t, 1, h.Count(w2.WorkerID))
}

func TestStopCheckHandler_IntervalIsClamped(t *testing.T) {
	for _, interval := range []int{0, -3} {
		signal := inmemory.NewStopSignal()
		h, err := handler.NewStopCheckHandler(signal, interval, exitCode(42))
		require.NoError(t, err)
		rc := model.NewRunContext("J1", nil, 1)

		require.NoError(t, h.BeforeRecord(context.Background(), rc))
		assert.Equal(t, 1, signal.Checks(), "interval %d checks every record", interval)

		signal.RequestStop("J1")
		err = h.BeforeRecord(context.Background(), rc)
		code, ok := exception.ExitCodeOf(err)
		assert.True(t, ok)
		assert.Equal(t, 42, code)
	}
}

func TestNewStopCheckHandler_Validation(t *testing.T) {
	for _, code := range []int{-1, 0, 256} {
		_, err := handler.NewStopCheckHandler(inmemory.NewStopSignal(), 1, exitCode(code))
		assert.ErrorIs(t, err, exception.ErrInvalidConfiguration)
		assert.ErrorContains(t, err, "exit code was invalid range. Please set it in the range of 1 - 255.")
	}
	_, err := handler.NewStopCheckHandler(nil, 1, nil)
	assert.ErrorIs(t, err, exception.ErrInvalidConfiguration)
}

type failingSignal struct{ err error }

func (s failingSignal) ShouldStop(context.Context, string) (bool, error) { return false, s.err }

func TestStopCheckHandler_SignalError(t *testing.T) {
	boom := errors.New("connection reset")
	h, err := handler.NewStopCheckHandler(failingSignal{err: boom}, 1, nil)
	require.NoError(t, err)

	assert.ErrorIs(t, h.BeforeRecord(context.Background(), model.NewRunContext("J1", nil, 1)), boom)
}
