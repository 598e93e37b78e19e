package notification

import (
	"context"
	"fmt"

	port "github.com/tigerroll/batchcore/pkg/batch/core/application/port"
	model "github.com/tigerroll/batchcore/pkg/batch/core/domain/model"
	"github.com/tigerroll/batchcore/pkg/batch/support/util/logger"
)

// LoggingNotifier is a Notifier that only logs run results.
// A cooperative stop is reported as a warning, any other failure as an error.
type LoggingNotifier struct{}

// NewLoggingNotifier creates a new instance of LoggingNotifier.
func NewLoggingNotifier() *LoggingNotifier {
	return &LoggingNotifier{}
}

// NotifyRunCompletion implements port.Notifier.
func (n *LoggingNotifier) NotifyRunCompletion(ctx context.Context, rc *model.RunContext, result model.Result) {
	message := fmt.Sprintf(
		"Run Notification: request id=[%s], run id=[%s], exit code=[%d], read=[%d], committed=[%d], rollbacks=[%d], duration=[%s]",
		rc.JobID,
		rc.RunID,
		result.ExitCode,
		result.ReadCount,
		result.CommitCount,
		result.RollbackCount,
		result.Duration(),
	)

	switch {
	case result.IsSuccess():
		logger.Infof("%s. finished successfully.", message)
	case result.Stopped:
		logger.Warnf("%s. %s", message, result.Message)
	default:
		logger.Errorf("%s. failed: %v", message, result.Err)
	}
}

var _ port.Notifier = (*LoggingNotifier)(nil)
