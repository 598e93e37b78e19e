// Package exception provides the error types used by batchcore.
// Every failure raised by the core is a *BatchError that wraps one of the sentinel errors below,
// so callers classify failures with errors.Is and report them with the BatchError message.
package exception

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"sync"
)

// Sentinel errors classifying the failures raised by the core.
var (
	// ErrInvalidConfiguration indicates a setup error detected before any record is processed.
	ErrInvalidConfiguration = errors.New("InvalidConfiguration")
	// ErrMissingKeyColumn indicates that a configured key column is absent from a fetched row.
	ErrMissingKeyColumn = errors.New("MissingKeyColumn")
	// ErrCheckpointNotFound indicates that the checkpoint row could not be loaded unambiguously.
	ErrCheckpointNotFound = errors.New("CheckpointNotFound")
	// ErrInvalidCheckpoint indicates a stored resume point that is negative.
	ErrInvalidCheckpoint = errors.New("InvalidCheckpoint")
	// ErrMultiThreadedResumeUnsupported indicates resume was requested with more than one worker.
	ErrMultiThreadedResumeUnsupported = errors.New("MultiThreadedResumeUnsupported")
	// ErrCheckpointWriteFailed indicates that saving the resume point did not update exactly one row.
	ErrCheckpointWriteFailed = errors.New("CheckpointWriteFailed")
	// ErrInvalidResumePoint indicates the input ended before the stored resume point was reached.
	ErrInvalidResumePoint = errors.New("InvalidResumePoint")
	// ErrAlreadyRunning indicates the process activation could not be claimed.
	ErrAlreadyRunning = errors.New("AlreadyRunning")
	// ErrProcessStopped indicates a cooperative stop. It is wrapped by *ProcessStop.
	ErrProcessStopped = errors.New("ProcessStopped")
)

// errorRegistry maps error names used in configuration to sentinel instances.
var errorRegistry = make(map[string]error)

var registryMutex sync.RWMutex

// RegisterErrorType registers a sentinel under name so it can be referenced from configuration.
// It panics if name is empty or prototype is nil.
func RegisterErrorType(name string, prototype error) {
	registryMutex.Lock()
	defer registryMutex.Unlock()

	if name == "" {
		panic("Error type name cannot be empty")
	}
	if prototype == nil {
		panic(fmt.Sprintf("Cannot register nil prototype for name: %s", name))
	}
	errorRegistry[name] = prototype
}

// LookupErrorType returns the sentinel registered under name.
func LookupErrorType(name string) (error, bool) {
	registryMutex.RLock()
	defer registryMutex.RUnlock()
	e, ok := errorRegistry[name]
	return e, ok
}

// BatchError is the error type raised by batchcore components.
type BatchError struct {
	// Module is the component that raised the error (e.g. "queue_reader", "checkpoint").
	Module string
	// Message is the human-readable description.
	Message string
	// OriginalErr is the wrapped cause, usually a sentinel or a driver error.
	OriginalErr error
	// StackTrace is captured at construction for debugging.
	StackTrace string

	exitCode int
}

// NewBatchError creates a new BatchError.
func NewBatchError(module, message string, originalErr error) *BatchError {
	return &BatchError{
		Module:      module,
		Message:     message,
		OriginalErr: originalErr,
		StackTrace:  captureStack(),
	}
}

// NewBatchErrorf creates a new BatchError with a formatted message.
// If the last argument is an error it becomes OriginalErr instead of a format argument.
//
// NewBatchErrorf("checkpoint", "Couldn't load resume point. request id=[%s].", id, ErrCheckpointNotFound)
func NewBatchErrorf(module, format string, a ...interface{}) *BatchError {
	var originalErr error
	args := a
	if len(args) > 0 {
		if err, ok := args[len(args)-1].(error); ok {
			originalErr = err
			args = args[:len(args)-1]
		}
	}
	return &BatchError{
		Module:      module,
		Message:     fmt.Sprintf(format, args...),
		OriginalErr: originalErr,
		StackTrace:  captureStack(),
	}
}

// NewConfigurationError creates a BatchError wrapping ErrInvalidConfiguration.
func NewConfigurationError(module, format string, a ...interface{}) *BatchError {
	return NewBatchErrorf(module, format, append(a, ErrInvalidConfiguration)...)
}

// WithExitCode attaches a process exit status to the error and returns it.
func (e *BatchError) WithExitCode(code int) *BatchError {
	e.exitCode = code
	return e
}

// ExitCode returns the attached exit status, or 0 if none was attached.
func (e *BatchError) ExitCode() int {
	return e.exitCode
}

// Error implements the error interface.
func (e *BatchError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Module, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("[%s] %s", e.Module, e.Message)
}

// Unwrap returns the original error for errors.Is and errors.As.
func (e *BatchError) Unwrap() error {
	return e.OriginalErr
}

func captureStack() string {
	buf := make([]byte, 2048)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

// IsBatchError reports whether err is or wraps a *BatchError.
func IsBatchError(err error) bool {
	var be *BatchError
	return errors.As(err, &be)
}

// IsErrorOfType checks if an error matches a registered sentinel name, a substring of
// a message in its chain, or the type name of an error in its chain.
func IsErrorOfType(err error, errorTypeName string) bool {
	if err == nil {
		return false
	}
	if target, ok := LookupErrorType(errorTypeName); ok && errors.Is(err, target) {
		return true
	}
	for current := err; current != nil; current = errors.Unwrap(current) {
		if strings.Contains(current.Error(), errorTypeName) {
			return true
		}
		if t := reflect.TypeOf(current); t != nil {
			if t.String() == errorTypeName || (t.Kind() == reflect.Ptr && t.Elem().String() == errorTypeName) {
				return true
			}
		}
	}
	return false
}

// ExtractErrorMessage returns the BatchError message if err is one, otherwise err.Error().
func ExtractErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var be *BatchError
	if errors.As(err, &be) {
		return be.Message
	}
	return err.Error()
}

func init() {
	RegisterErrorType("InvalidConfiguration", ErrInvalidConfiguration)
	RegisterErrorType("MissingKeyColumn", ErrMissingKeyColumn)
	RegisterErrorType("CheckpointNotFound", ErrCheckpointNotFound)
	RegisterErrorType("InvalidCheckpoint", ErrInvalidCheckpoint)
	RegisterErrorType("MultiThreadedResumeUnsupported", ErrMultiThreadedResumeUnsupported)
	RegisterErrorType("CheckpointWriteFailed", ErrCheckpointWriteFailed)
	RegisterErrorType("InvalidResumePoint", ErrInvalidResumePoint)
	RegisterErrorType("AlreadyRunning", ErrAlreadyRunning)
	RegisterErrorType("ProcessStopped", ErrProcessStopped)

	RegisterErrorType("context.DeadlineExceeded", context.DeadlineExceeded)
	RegisterErrorType("context.Canceled", context.Canceled)
	RegisterErrorType("sql.ErrNoRows", sql.ErrNoRows)
}
