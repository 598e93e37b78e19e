// Package handler provides the process and record handlers wrapped around a batch run.
package handler

import (
	"context"
	"errors"

	port "github.com/tigerroll/batchcore/pkg/batch/core/application/port"
	config "github.com/tigerroll/batchcore/pkg/batch/core/config"
	model "github.com/tigerroll/batchcore/pkg/batch/core/domain/model"
	"github.com/tigerroll/batchcore/pkg/batch/core/domain/repository"
	"github.com/tigerroll/batchcore/pkg/batch/support/util/exception"
	"github.com/tigerroll/batchcore/pkg/batch/support/util/logger"
)

const exclusivityModule = "duplicate_process"

// ProcessExclusivityHandler prevents two processes with the same id from running at once.
// It claims the process id before the run and releases it afterwards, whatever the outcome.
type ProcessExclusivityHandler struct {
	guard     repository.ProcessExclusivityGuard
	processID string
	exitCode  int
}

// NewProcessExclusivityHandler creates a ProcessExclusivityHandler.
//
// An empty processID uses the job id of the run. A nil exitCode selects
// config.DefaultDuplicateExitCode; a set one must lie in [1,255].
func NewProcessExclusivityHandler(guard repository.ProcessExclusivityGuard, processID string, exitCode *int) (*ProcessExclusivityHandler, error) {
	if guard == nil {
		return nil, exception.NewConfigurationError(exclusivityModule, "process exclusivity guard must be set.")
	}
	code, err := exitCodeOrDefault(exclusivityModule, exitCode, config.DefaultDuplicateExitCode)
	if err != nil {
		return nil, err
	}
	return &ProcessExclusivityHandler{guard: guard, processID: processID, exitCode: code}, nil
}

func exitCodeOrDefault(module string, exitCode *int, def int) (int, error) {
	if exitCode == nil {
		return def, nil
	}
	if err := exception.ValidateExitCode(module, *exitCode); err != nil {
		return 0, err
	}
	return *exitCode, nil
}

// HandleProcess implements port.ProcessHandler.
func (h *ProcessExclusivityHandler) HandleProcess(ctx context.Context, rc *model.RunContext, next func(ctx context.Context) error) (err error) {
	processID := h.processID
	if processID == "" {
		processID = rc.JobID
	}

	if claimErr := h.guard.Claim(ctx, processID); claimErr != nil {
		if errors.Is(claimErr, exception.ErrAlreadyRunning) {
			return exception.NewAlreadyRunningError(processID, h.exitCode, claimErr)
		}
		return claimErr
	}

	defer func() {
		// The release must not use a context that was cancelled by the run.
		releaseErr := h.guard.Release(context.WithoutCancel(ctx), processID)
		if releaseErr == nil {
			return
		}
		if err != nil {
			logger.Warnf("failed to disable process. process = [%s]: %v", processID, releaseErr)
			return
		}
		err = releaseErr
	}()

	return next(ctx)
}

var _ port.ProcessHandler = (*ProcessExclusivityHandler)(nil)
