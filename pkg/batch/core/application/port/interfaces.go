// Package port defines the contracts between the batch engine and the jobs it runs.
package port

import (
	"context"
	"errors"

	model "github.com/tigerroll/batchcore/pkg/batch/core/domain/model"
)

// ErrNoMoreItems is returned by DataReader.Read when no record is available right now.
// Whether more records may appear later is told by HasNext.
var ErrNoMoreItems = errors.New("no more items to read")

// DataReader is a source of input records.
type DataReader[T any] interface {
	// HasNext reports whether the source may still produce records.
	HasNext(ctx context.Context, rc *model.RunContext) (bool, error)
	// Read returns the next record, or ErrNoMoreItems when none is available right now.
	Read(ctx context.Context, rc *model.RunContext) (T, error)
	// Close releases the resources of the source.
	Close(ctx context.Context) error
}

// Reopener is implemented by readers that can re-execute their underlying query.
type Reopener interface {
	Reopen(ctx context.Context, rc *model.RunContext) error
}

// JobAction is the per-record processing contract implemented by a concrete job.
//
// Process-level and transaction hooks are optional: implement Initializer, ErrorCallback,
// Terminator or TransactionEventCallback as needed, or embed NoOpLifecycle.
type JobAction[T any] interface {
	// CreateReader creates the input source of the run. It is called once, after Initialize.
	CreateReader(ctx context.Context, rc *model.RunContext) (DataReader[T], error)
	// Handle processes one record inside the transaction carried by ctx.
	Handle(ctx context.Context, record T, rc *model.RunContext) (model.Result, error)
}

// Initializer is called once before the reader is created.
type Initializer interface {
	Initialize(ctx context.Context, params model.JobParameters, rc *model.RunContext) error
}

// ErrorCallback is called once when the run ends with an error.
type ErrorCallback interface {
	OnError(ctx context.Context, err error, rc *model.RunContext)
}

// Terminator is called once at the very end of the run, whatever its outcome.
type Terminator interface {
	Terminate(ctx context.Context, result model.Result, rc *model.RunContext)
}

// TransactionEventCallback receives the outcome of the transaction of each record.
// OnCommit runs inside the transaction about to be committed. OnRollback runs in a new
// transaction after the failed one has been rolled back.
type TransactionEventCallback[T any] interface {
	OnCommit(ctx context.Context, record T, rc *model.RunContext) error
	OnRollback(ctx context.Context, record T, rc *model.RunContext) error
}

// ProcessHandler wraps a whole run.
type ProcessHandler interface {
	HandleProcess(ctx context.Context, rc *model.RunContext, next func(ctx context.Context) error) error
}

// RecordHandler is consulted before each record is read. A non-nil error aborts the
// worker and rolls back its current transaction.
type RecordHandler interface {
	BeforeRecord(ctx context.Context, rc *model.RunContext) error
}

// Notifier reports the result of a run to an external system.
type Notifier interface {
	NotifyRunCompletion(ctx context.Context, rc *model.RunContext, result model.Result)
}
