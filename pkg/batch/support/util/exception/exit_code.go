package exception

import (
	"errors"
	"fmt"
)

const (
	// MinExitCode and MaxExitCode bound every configurable process exit status.
	MinExitCode = 1
	MaxExitCode = 255
)

// ExitCoder is implemented by errors that carry a process exit status.
type ExitCoder interface {
	ExitCode() int
}

// ValidateExitCode fails with ErrInvalidConfiguration if code is outside [1,255].
func ValidateExitCode(module string, code int) error {
	if code < MinExitCode || code > MaxExitCode {
		return NewConfigurationError(module,
			"exit code was invalid range. Please set it in the range of %d - %d. specified value was [%d].",
			MinExitCode, MaxExitCode, code)
	}
	return nil
}

// ExitCodeOf returns the first non-zero exit status carried by an error in err's chain.
func ExitCodeOf(err error) (int, bool) {
	for current := err; current != nil; current = errors.Unwrap(current) {
		if ec, ok := current.(ExitCoder); ok && ec.ExitCode() != 0 {
			return ec.ExitCode(), true
		}
	}
	return 0, false
}

// ProcessStop is the cancellation signal raised when an operator requested a stop.
// It is not a failure: pipeline stages must return it unchanged so it reaches the top level,
// where the current transaction has already been rolled back.
type ProcessStop struct {
	RequestID string
	Code      int
}

// NewProcessStop creates a ProcessStop carrying the given exit status.
func NewProcessStop(requestID string, exitCode int) *ProcessStop {
	return &ProcessStop{RequestID: requestID, Code: exitCode}
}

// Error implements the error interface.
func (s *ProcessStop) Error() string {
	return fmt.Sprintf("process stop was requested. request id=[%s], exit code=[%d]", s.RequestID, s.Code)
}

// ExitCode implements ExitCoder.
func (s *ProcessStop) ExitCode() int {
	return s.Code
}

// Unwrap returns ErrProcessStopped.
func (s *ProcessStop) Unwrap() error {
	return ErrProcessStopped
}

// AsProcessStop returns the ProcessStop in err's chain, if any.
func AsProcessStop(err error) (*ProcessStop, bool) {
	var stop *ProcessStop
	if errors.As(err, &stop) {
		return stop, true
	}
	return nil, false
}

// NewAlreadyRunningError creates the error returned when a process activation could not be
// claimed. cause is the guard's error; ErrAlreadyRunning is used when it is nil.
func NewAlreadyRunningError(processID string, exitCode int, cause error) *BatchError {
	if cause == nil {
		cause = ErrAlreadyRunning
	}
	return NewBatchErrorf("duplicate_process",
		"specified request_id is already used by another process. you can not run the process concurrently. request_id=[%s]",
		processID, cause).WithExitCode(exitCode)
}
