package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	model "github.com/tigerroll/batchcore/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/batchcore/pkg/batch/core/metrics"
)

const instrumentationName = "github.com/tigerroll/batchcore"

// Tracer is an implementation of metrics.Tracer using OpenTelemetry.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a Tracer from provider.
func NewTracer(provider trace.TracerProvider) *Tracer {
	return &Tracer{tracer: provider.Tracer(instrumentationName)}
}

// StartRunSpan starts a span for a whole run.
func (t *Tracer) StartRunSpan(ctx context.Context, rc *model.RunContext) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, "batch.run", trace.WithAttributes(
		attribute.String("batch.job_id", rc.JobID),
		attribute.String("batch.run_id", rc.RunID),
		attribute.Int("batch.concurrency", rc.Concurrency()),
	))
	return ctx, func() { span.End() }
}

// StartBatchSpan starts a span for one transaction of a worker.
func (t *Tracer) StartBatchSpan(ctx context.Context, rc *model.RunContext) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, "batch.transaction", trace.WithAttributes(
		attribute.String("batch.job_id", rc.JobID),
		attribute.String("batch.worker_id", rc.WorkerID),
	))
	return ctx, func() { span.End() }
}

// RecordError records an error in the current span and marks it failed.
func (t *Tracer) RecordError(ctx context.Context, module string, err error) {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err, trace.WithAttributes(attribute.String("batch.module", module)))
	span.SetStatus(codes.Error, err.Error())
}

// RecordEvent records an event in the current span.
func (t *Tracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {
	attrs := make([]attribute.KeyValue, 0, len(attributes))
	for k, v := range attributes {
		switch val := v.(type) {
		case string:
			attrs = append(attrs, attribute.String(k, val))
		case int:
			attrs = append(attrs, attribute.Int(k, val))
		case int64:
			attrs = append(attrs, attribute.Int64(k, val))
		case bool:
			attrs = append(attrs, attribute.Bool(k, val))
		case float64:
			attrs = append(attrs, attribute.Float64(k, val))
		default:
			attrs = append(attrs, attribute.String(k, fmt.Sprint(val)))
		}
	}
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}

var _ metrics.Tracer = (*Tracer)(nil)
