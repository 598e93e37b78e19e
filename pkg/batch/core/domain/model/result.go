package model

import "time"

// ExitCodeSuccess is the exit status of a run that completed normally.
const ExitCodeSuccess = 0

// Result is the outcome of handling a record or of a whole run.
type Result struct {
	// ExitCode is 0 on success, otherwise the mapped exit status.
	ExitCode int
	// Message is a short human-readable summary.
	Message string
	// Err is the primary error of an abnormal end.
	Err error
	// Stopped is true when the run ended on a cooperative stop request.
	Stopped bool

	// Run-level counters. Zero for per-record results.
	ReadCount     int64
	CommitCount   int64
	RollbackCount int64
	StartTime     time.Time
	EndTime       time.Time
}

// Success returns a successful per-record result.
func Success() Result {
	return Result{ExitCode: ExitCodeSuccess, Message: "success"}
}

// IsSuccess reports whether the result is successful.
func (r Result) IsSuccess() bool {
	return r.ExitCode == ExitCodeSuccess && r.Err == nil
}

// Duration returns EndTime - StartTime.
func (r Result) Duration() time.Duration {
	if r.EndTime.IsZero() {
		return 0
	}
	return r.EndTime.Sub(r.StartTime)
}
