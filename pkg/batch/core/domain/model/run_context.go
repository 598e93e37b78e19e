package model

import (
	"fmt"

	"github.com/google/uuid"
)

type commitSignal int8

const (
	commitSignalUnset commitSignal = iota
	commitSignalNo
	commitSignalYes
)

// RunContext is the mutable state shared by the stages processing records for one worker.
// The runner creates one root context per run and forks one per worker.
type RunContext struct {
	// JobID is the job identifier keying the coordination tables.
	JobID string
	// RunID uniquely identifies this process run.
	RunID string
	// WorkerID identifies the worker owning this context. It is empty on the root context.
	WorkerID string
	// Parameters are the job parameters given at launch.
	Parameters JobParameters
	// Values is scratch space for stages of the same worker.
	Values ExecutionContext

	concurrency int
	commit      commitSignal
}

// NewRunContext creates the root context of a run.
func NewRunContext(jobID string, params JobParameters, concurrency int) *RunContext {
	if params == nil {
		params = NewJobParameters()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &RunContext{
		JobID:       jobID,
		RunID:       uuid.NewString(),
		Parameters:  params,
		Values:      NewExecutionContext(),
		concurrency: concurrency,
	}
}

// Fork returns a context for one worker. Values are copied and the commit signal is unset.
func (rc *RunContext) Fork(workerID string) *RunContext {
	return &RunContext{
		JobID:       rc.JobID,
		RunID:       rc.RunID,
		WorkerID:    workerID,
		Parameters:  rc.Parameters,
		Values:      rc.Values.Copy(),
		concurrency: rc.concurrency,
	}
}

// WorkerName returns the conventional id of the n-th worker (1-based).
func WorkerName(n int) string {
	return fmt.Sprintf("worker-%d", n)
}

// Concurrency returns the number of workers of the run.
func (rc *RunContext) Concurrency() int {
	return rc.concurrency
}

// SetAboutToCommit is called by the commit-interval controller before each read.
func (rc *RunContext) SetAboutToCommit(aboutToCommit bool) {
	if aboutToCommit {
		rc.commit = commitSignalYes
	} else {
		rc.commit = commitSignalNo
	}
}

// IsAboutToCommit reports whether the record being read will be followed by a commit.
// Without a commit-interval controller every record is its own transaction, so an unset
// signal reads as true.
func (rc *RunContext) IsAboutToCommit() bool {
	return rc.commit != commitSignalNo
}

// ClearCommitSignal returns the signal to its unset state.
func (rc *RunContext) ClearCommitSignal() {
	rc.commit = commitSignalUnset
}
