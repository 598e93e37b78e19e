package metrics

import (
	"context"
	"time"

	model "github.com/tigerroll/batchcore/pkg/batch/core/domain/model"
)

// MetricRecorder is an abstract interface for recording metrics of batch runs.
// It lets the engine report to Prometheus, OpenTelemetry or nothing at all.
type MetricRecorder interface {
	// RecordRunStart records the start of a run.
	RecordRunStart(ctx context.Context, rc *model.RunContext)

	// RecordRunEnd records the end of a run and its outcome.
	RecordRunEnd(ctx context.Context, rc *model.RunContext, result model.Result)

	// RecordRecordRead records that one input record was read.
	RecordRecordRead(ctx context.Context, jobID string)

	// RecordCommit records the commit of a batch of count records.
	RecordCommit(ctx context.Context, jobID string, count int)

	// RecordRollback records the rollback of a batch.
	RecordRollback(ctx context.Context, jobID string)

	// RecordStop records that a worker observed a stop request.
	RecordStop(ctx context.Context, jobID string)

	// RecordQueueRequery records that a queue reader re-executed its query.
	RecordQueueRequery(ctx context.Context, jobID string)

	// RecordCheckpoint records that point was saved as the resume point of jobID.
	RecordCheckpoint(ctx context.Context, jobID string, point int)

	// RecordDuration records the execution time of a named operation.
	//
	// tags: additional attributes, e.g. `{"job_id": "J1", "status": "success"}`
	RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string)
}

// MultiRecorder fans every call out to several recorders.
type MultiRecorder []MetricRecorder

func (m MultiRecorder) RecordRunStart(ctx context.Context, rc *model.RunContext) {
	for _, r := range m {
		r.RecordRunStart(ctx, rc)
	}
}

func (m MultiRecorder) RecordRunEnd(ctx context.Context, rc *model.RunContext, result model.Result) {
	for _, r := range m {
		r.RecordRunEnd(ctx, rc, result)
	}
}

func (m MultiRecorder) RecordRecordRead(ctx context.Context, jobID string) {
	for _, r := range m {
		r.RecordRecordRead(ctx, jobID)
	}
}

func (m MultiRecorder) RecordCommit(ctx context.Context, jobID string, count int) {
	for _, r := range m {
		r.RecordCommit(ctx, jobID, count)
	}
}

func (m MultiRecorder) RecordRollback(ctx context.Context, jobID string) {
	for _, r := range m {
		r.RecordRollback(ctx, jobID)
	}
}

func (m MultiRecorder) RecordStop(ctx context.Context, jobID string) {
	for _, r := range m {
		r.RecordStop(ctx, jobID)
	}
}

func (m MultiRecorder) RecordQueueRequery(ctx context.Context, jobID string) {
	for _, r := range m {
		r.RecordQueueRequery(ctx, jobID)
	}
}

func (m MultiRecorder) RecordCheckpoint(ctx context.Context, jobID string, point int) {
	for _, r := range m {
		r.RecordCheckpoint(ctx, jobID, point)
	}
}

func (m MultiRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	for _, r := range m {
		r.RecordDuration(ctx, name, duration, tags)
	}
}

var _ MetricRecorder = MultiRecorder(nil)
