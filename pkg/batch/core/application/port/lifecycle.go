package port

import (
	"context"

	model "github.com/tigerroll/batchcore/pkg/batch/core/domain/model"
)

// NoOpLifecycle implements every optional JobAction hook with an empty body.
// Embed it and override only what a job needs.
type NoOpLifecycle[T any] struct{}

func (NoOpLifecycle[T]) Initialize(context.Context, model.JobParameters, *model.RunContext) error {
	return nil
}

func (NoOpLifecycle[T]) OnError(context.Context, error, *model.RunContext) {}

func (NoOpLifecycle[T]) Terminate(context.Context, model.Result, *model.RunContext) {}

func (NoOpLifecycle[T]) OnCommit(context.Context, T, *model.RunContext) error {
	return nil
}

func (NoOpLifecycle[T]) OnRollback(context.Context, T, *model.RunContext) error {
	return nil
}

var (
	_ Initializer                             = NoOpLifecycle[*model.Record]{}
	_ ErrorCallback                           = NoOpLifecycle[*model.Record]{}
	_ Terminator                              = NoOpLifecycle[*model.Record]{}
	_ TransactionEventCallback[*model.Record] = NoOpLifecycle[*model.Record]{}
)
