package metrics

import (
	"context"
	"time"

	model "github.com/tigerroll/batchcore/pkg/batch/core/domain/model"
)

// NoOpMetricRecorder is an implementation of MetricRecorder that does nothing.
// It is used when metrics are disabled or during testing.
type NoOpMetricRecorder struct{}

// NewNoOpMetricRecorder creates a new instance of NoOpMetricRecorder.
func NewNoOpMetricRecorder() MetricRecorder {
	return &NoOpMetricRecorder{}
}

func (r *NoOpMetricRecorder) RecordRunStart(context.Context, *model.RunContext)             {}
func (r *NoOpMetricRecorder) RecordRunEnd(context.Context, *model.RunContext, model.Result) {}
func (r *NoOpMetricRecorder) RecordRecordRead(context.Context, string)                      {}
func (r *NoOpMetricRecorder) RecordCommit(context.Context, string, int)                     {}
func (r *NoOpMetricRecorder) RecordRollback(context.Context, string)                        {}
func (r *NoOpMetricRecorder) RecordStop(context.Context, string)                            {}
func (r *NoOpMetricRecorder) RecordQueueRequery(context.Context, string)                    {}
func (r *NoOpMetricRecorder) RecordCheckpoint(context.Context, string, int)                 {}
func (r *NoOpMetricRecorder) RecordDuration(context.Context, string, time.Duration, map[string]string) {
}

var _ MetricRecorder = (*NoOpMetricRecorder)(nil)

// NoOpTracer is an implementation of Tracer that does nothing.
type NoOpTracer struct{}

// NewNoOpTracer creates a new instance of NoOpTracer.
func NewNoOpTracer() Tracer {
	return &NoOpTracer{}
}

func (t *NoOpTracer) StartRunSpan(ctx context.Context, _ *model.RunContext) (context.Context, func()) {
	return ctx, func() {}
}

func (t *NoOpTracer) StartBatchSpan(ctx context.Context, _ *model.RunContext) (context.Context, func()) {
	return ctx, func() {}
}

func (t *NoOpTracer) RecordError(context.Context, string, error) {}

func (t *NoOpTracer) RecordEvent(context.Context, string, map[string]interface{}) {}

var _ Tracer = (*NoOpTracer)(nil)
