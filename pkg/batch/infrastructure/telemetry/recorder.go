package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	model "github.com/tigerroll/batchcore/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/batchcore/pkg/batch/core/metrics"
)

// MetricRecorder is an implementation of metrics.MetricRecorder using OpenTelemetry instruments.
type MetricRecorder struct {
	runs       metric.Int64Counter
	active     metric.Int64UpDownCounter
	duration   metric.Float64Histogram
	reads      metric.Int64Counter
	commits    metric.Int64Counter
	rollbacks  metric.Int64Counter
	stops      metric.Int64Counter
	requeries  metric.Int64Counter
	checkpoint metric.Int64Gauge
	operations metric.Float64Histogram
}

// NewMetricRecorder creates the instruments on a meter of provider.
func NewMetricRecorder(provider metric.MeterProvider) (*MetricRecorder, error) {
	m := provider.Meter(instrumentationName)
	r := &MetricRecorder{}
	var err error
	if r.runs, err = m.Int64Counter("batch.runs", metric.WithDescription("Finished batch runs.")); err != nil {
		return nil, err
	}
	if r.active, err = m.Int64UpDownCounter("batch.runs.active", metric.WithDescription("Batch runs in progress.")); err != nil {
		return nil, err
	}
	if r.duration, err = m.Float64Histogram("batch.run.duration", metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if r.reads, err = m.Int64Counter("batch.records.read"); err != nil {
		return nil, err
	}
	if r.commits, err = m.Int64Counter("batch.records.committed"); err != nil {
		return nil, err
	}
	if r.rollbacks, err = m.Int64Counter("batch.rollbacks"); err != nil {
		return nil, err
	}
	if r.stops, err = m.Int64Counter("batch.stops"); err != nil {
		return nil, err
	}
	if r.requeries, err = m.Int64Counter("batch.queue.requeries"); err != nil {
		return nil, err
	}
	if r.checkpoint, err = m.Int64Gauge("batch.resume_point"); err != nil {
		return nil, err
	}
	if r.operations, err = m.Float64Histogram("batch.operation.duration", metric.WithUnit("s")); err != nil {
		return nil, err
	}
	return r, nil
}

func jobAttr(jobID string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("job_id", jobID))
}

func (r *MetricRecorder) RecordRunStart(ctx context.Context, rc *model.RunContext) {
	r.active.Add(ctx, 1, jobAttr(rc.JobID))
}

func (r *MetricRecorder) RecordRunEnd(ctx context.Context, rc *model.RunContext, result model.Result) {
	status := "failure"
	if result.IsSuccess() {
		status = "success"
	} else if result.Stopped {
		status = "stopped"
	}
	attrs := metric.WithAttributes(
		attribute.String("job_id", rc.JobID),
		attribute.String("status", status),
		attribute.Int("exit_code", result.ExitCode),
	)
	r.active.Add(ctx, -1, jobAttr(rc.JobID))
	r.runs.Add(ctx, 1, attrs)
	r.duration.Record(ctx, result.Duration().Seconds(), attrs)
}

func (r *MetricRecorder) RecordRecordRead(ctx context.Context, jobID string) {
	r.reads.Add(ctx, 1, jobAttr(jobID))
}

func (r *MetricRecorder) RecordCommit(ctx context.Context, jobID string, count int) {
	r.commits.Add(ctx, int64(count), jobAttr(jobID))
}

func (r *MetricRecorder) RecordRollback(ctx context.Context, jobID string) {
	r.rollbacks.Add(ctx, 1, jobAttr(jobID))
}

func (r *MetricRecorder) RecordStop(ctx context.Context, jobID string) {
	r.stops.Add(ctx, 1, jobAttr(jobID))
}

func (r *MetricRecorder) RecordQueueRequery(ctx context.Context, jobID string) {
	r.requeries.Add(ctx, 1, jobAttr(jobID))
}

func (r *MetricRecorder) RecordCheckpoint(ctx context.Context, jobID string, point int) {
	r.checkpoint.Record(ctx, int64(point), jobAttr(jobID))
}

func (r *MetricRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	attrs := make([]attribute.KeyValue, 0, len(tags)+1)
	attrs = append(attrs, attribute.String("operation", name))
	for k, v := range tags {
		attrs = append(attrs, attribute.String(k, v))
	}
	r.operations.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

var _ metrics.MetricRecorder = (*MetricRecorder)(nil)
