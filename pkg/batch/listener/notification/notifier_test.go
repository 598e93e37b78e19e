package notification_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	model "github.com/tigerroll/batchcore/pkg/batch/core/domain/model"
	"github.com/tigerroll/batchcore/pkg/batch/listener/notification"
	"github.com/tigerroll/batchcore/pkg/batch/support/util/logger"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	previous := logger.GetLogLevel()
	logger.SetOutput(&buf)
	logger.SetLogLevel("info")
	t.Cleanup(func() {
		logger.SetOutput(os.Stderr)
		logger.SetLogLevel(previous.String())
	})
	return &buf
}

func TestLoggingNotifier(t *testing.T) {
	rc := model.NewRunContext("J1", nil, 1)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	n := notification.NewLoggingNotifier()

	t.Run("success", func(t *testing.T) {
		buf := captureLog(t)
		n.NotifyRunCompletion(context.Background(), rc, model.Result{
			ReadCount: 5, CommitCount: 5, StartTime: start, EndTime: start.Add(2 * time.Second),
		})
		out := buf.String()
		assert.Contains(t, out, "[INFO]")
		assert.Contains(t, out, "request id=[J1], run id=["+rc.RunID+"], exit code=[0], read=[5], committed=[5], rollbacks=[0], duration=[2s]")
		assert.Contains(t, out, "finished successfully.")
	})

	t.Run("stopped", func(t *testing.T) {
		buf := captureLog(t)
		n.NotifyRunCompletion(context.Background(), rc, model.Result{
			ExitCode: 1, Stopped: true, Message: "stopped by request. request id=[J1]", Err: errors.New("stop"),
		})
		out := buf.String()
		assert.Contains(t, out, "[WARN]")
		assert.Contains(t, out, "exit code=[1]")
		assert.Contains(t, out, "stopped by request. request id=[J1]")
	})

	t.Run("failure", func(t *testing.T) {
		buf := captureLog(t)
		n.NotifyRunCompletion(context.Background(), rc, model.Result{
			ExitCode: 20, RollbackCount: 1, Err: errors.New("boom"),
		})
		out := buf.String()
		assert.Contains(t, out, "[ERROR]")
		assert.Contains(t, out, "exit code=[20]")
		assert.Contains(t, out, "failed: boom")
	})
}
