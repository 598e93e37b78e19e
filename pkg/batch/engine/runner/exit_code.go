package runner

import (
	"context"
	"errors"

	"github.com/hashicorp/go-multierror"

	config "github.com/tigerroll/batchcore/pkg/batch/core/config"
	"github.com/tigerroll/batchcore/pkg/batch/support/util/exception"
)

// primaryError returns the first error of an aggregated worker failure.
func primaryError(err error) error {
	var merr *multierror.Error
	if errors.As(err, &merr) && len(merr.Errors) > 0 {
		return merr.Errors[0]
	}
	return err
}

// exitCodeOf maps the error that ended a run to the process exit status.
// An exit status carried by the error itself takes precedence over the configured mapping,
// and the configured error rules over the built-in conditions.
func (r *Runner[T]) exitCodeOf(err error) int {
	err = primaryError(err)
	if code, ok := exception.ExitCodeOf(err); ok {
		return code
	}

	codes := r.settings.ExitCodes
	for _, rule := range codes.Errors {
		if exception.IsErrorOfType(err, rule.Error) {
			return rule.Code
		}
	}
	switch {
	case errors.Is(err, exception.ErrInvalidResumePoint):
		return orDefault(codes.InvalidResumePoint, config.DefaultInvalidResumePointExitCode)
	case errors.Is(err, exception.ErrMultiThreadedResumeUnsupported):
		return orDefault(codes.MultiThreadedResume, config.DefaultMultiThreadedResumeExitCode)
	case errors.Is(err, exception.ErrInvalidConfiguration):
		return orDefault(codes.InvalidConfiguration, config.DefaultInvalidConfigurationExitCode)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return orDefault(codes.Interrupted, config.DefaultInterruptedExitCode)
	}
	return orDefault(codes.Failure, config.DefaultFailureExitCode)
}

func orDefault(code, def int) int {
	if code == 0 {
		return def
	}
	return code
}
