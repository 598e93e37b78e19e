package metrics

import (
	"context"

	model "github.com/tigerroll/batchcore/pkg/batch/core/domain/model"
)

// Tracer is an abstract interface for distributed tracing of runs.
type Tracer interface {
	// StartRunSpan starts a span covering a whole run.
	// The returned function ends the span; call it in a defer statement.
	StartRunSpan(ctx context.Context, rc *model.RunContext) (context.Context, func())

	// StartBatchSpan starts a span covering one transaction of a worker.
	StartBatchSpan(ctx context.Context, rc *model.RunContext) (context.Context, func())

	// RecordError records an error in the current span.
	//
	// module: the component where the error occurred (e.g. "runner", "reader").
	RecordError(ctx context.Context, module string, err error)

	// RecordEvent records an event in the current span.
	RecordEvent(ctx context.Context, name string, attributes map[string]interface{})
}
