// Package repository defines the persistence ports used by the batch engine to coordinate
// processes through shared tables.
package repository

import "context"

// CheckpointStore persists the resume point of a job: the number of input records that were
// successfully committed by the last run.
type CheckpointStore interface {
	// Load returns the resume point of jobID. It returns 0 when resuming is disabled or
	// jobID is excluded. concurrency is the number of workers of the run; resuming is only
	// supported for a single worker.
	Load(ctx context.Context, jobID string, concurrency int) (int, error)
	// Save records point as the resume point of jobID. It participates in the transaction
	// carried by ctx, if any.
	Save(ctx context.Context, jobID string, point int) error
	// Enabled reports whether jobID uses resume points at all.
	Enabled(jobID string) bool
}

// ProcessExclusivityGuard makes sure that at most one process runs with a given process id.
type ProcessExclusivityGuard interface {
	// Claim marks processID as running. It fails with an error wrapping
	// exception.ErrAlreadyRunning when another process holds it.
	Claim(ctx context.Context, processID string) error
	// Release marks processID as no longer running.
	Release(ctx context.Context, processID string) error
}

// StopSignal reports whether an operator has requested a job to stop.
type StopSignal interface {
	// ShouldStop returns true when a stop has been requested for requestID.
	ShouldStop(ctx context.Context, requestID string) (bool, error)
}

// RequestRegistry manages the rows of the coordination table.
type RequestRegistry interface {
	// Register creates the row for requestID if it does not exist yet.
	Register(ctx context.Context, requestID string) error
	// RequestStop raises the stop flag of requestID.
	RequestStop(ctx context.Context, requestID string) error
	// ClearStop lowers the stop flag of requestID.
	ClearStop(ctx context.Context, requestID string) error
	// ResetResumePoint sets the resume point of requestID back to 0.
	ResetResumePoint(ctx context.Context, requestID string) error
}
