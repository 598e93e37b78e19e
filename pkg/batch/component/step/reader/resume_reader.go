package reader

import (
	"context"
	"errors"
	"sync"

	"github.com/tigerroll/batchcore/pkg/batch/core/application/port"
	"github.com/tigerroll/batchcore/pkg/batch/core/domain/model"
	"github.com/tigerroll/batchcore/pkg/batch/core/domain/repository"
	"github.com/tigerroll/batchcore/pkg/batch/core/metrics"
	"github.com/tigerroll/batchcore/pkg/batch/support/util/exception"
	"github.com/tigerroll/batchcore/pkg/batch/support/util/logger"
)

const resumeModule = "resume_reader"

// ResumeReader wraps a reader and restarts it where the previous run left off.
//
// On the first read it loads the resume point R and skips R records of the source.
// Afterwards it counts the records read and saves the count as the new resume point when the
// run context signals that the record is the last one before a commit, or when the source
// is exhausted. The save runs on the transaction carried by the context.
type ResumeReader[T any] struct {
	source   port.DataReader[T]
	store    repository.CheckpointStore
	recorder metrics.MetricRecorder

	mu          sync.Mutex
	initialized bool
	point       int
}

// NewResumeReader creates a ResumeReader over source.
func NewResumeReader[T any](source port.DataReader[T], store repository.CheckpointStore) *ResumeReader[T] {
	return &ResumeReader[T]{
		source:   source,
		store:    store,
		recorder: metrics.NewNoOpMetricRecorder(),
	}
}

// WithRecorder sets the recorder notified of saved resume points and returns r.
func (r *ResumeReader[T]) WithRecorder(recorder metrics.MetricRecorder) *ResumeReader[T] {
	if recorder != nil {
		r.recorder = recorder
	}
	return r
}

// Read implements port.DataReader.
func (r *ResumeReader[T]) Read(ctx context.Context, rc *model.RunContext) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero T
	if !r.store.Enabled(rc.JobID) {
		return r.source.Read(ctx, rc)
	}

	hasNext, err := r.source.HasNext(ctx, rc)
	if err != nil {
		return zero, err
	}
	if !hasNext {
		return zero, port.ErrNoMoreItems
	}

	if !r.initialized {
		if err := r.readToResumePoint(ctx, rc); err != nil {
			return zero, err
		}
		r.initialized = true
	}

	record, err := r.source.Read(ctx, rc)
	if errors.Is(err, port.ErrNoMoreItems) {
		return zero, err
	}
	if err != nil {
		return zero, err
	}
	r.point++

	save := rc.IsAboutToCommit()
	if !save {
		more, err := r.source.HasNext(ctx, rc)
		if err != nil {
			return zero, err
		}
		save = !more
	}
	if save {
		if err := r.store.Save(ctx, rc.JobID, r.point); err != nil {
			return zero, err
		}
		r.recorder.RecordCheckpoint(ctx, rc.JobID, r.point)
	}
	return record, nil
}

// HasNext implements port.DataReader.
func (r *ResumeReader[T]) HasNext(ctx context.Context, rc *model.RunContext) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.source.HasNext(ctx, rc)
}

// Close implements port.DataReader.
func (r *ResumeReader[T]) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.source.Close(ctx)
}

// ResumePoint returns the number of records accounted for so far, skipped ones included.
func (r *ResumeReader[T]) ResumePoint() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.point
}

func (r *ResumeReader[T]) readToResumePoint(ctx context.Context, rc *model.RunContext) error {
	point, err := r.store.Load(ctx, rc.JobID, rc.Concurrency())
	if err != nil {
		return err
	}

	reads := 0
	for ; reads < point; reads++ {
		hasNext, err := r.source.HasNext(ctx, rc)
		if err != nil {
			return err
		}
		if !hasNext {
			return r.invalidResumePoint(rc, point, reads, false)
		}
		if _, err := r.source.Read(ctx, rc); err != nil {
			if errors.Is(err, port.ErrNoMoreItems) {
				return r.invalidResumePoint(rc, point, reads, false)
			}
			return err
		}
	}

	hasNext, err := r.source.HasNext(ctx, rc)
	if err != nil {
		return err
	}
	if !hasNext {
		return r.invalidResumePoint(rc, point, reads, true)
	}

	r.point = point
	if point > 0 {
		logger.Infof("skipped input records up to the resume point. request id=[%s], resume point=[%d]", rc.JobID, point)
	}
	return nil
}

func (r *ResumeReader[T]) invalidResumePoint(rc *model.RunContext, point, reads int, completed bool) error {
	format := "invalid resume point was specified. The total number of reads input data was [%d], but resume point was [%d]. request id=[%s]."
	if completed {
		format += " Perhaps this request has been completed."
	}
	return exception.NewBatchErrorf(resumeModule, format, reads, point, rc.JobID, exception.ErrInvalidResumePoint)
}

var _ port.DataReader[*model.Record] = (*ResumeReader[*model.Record])(nil)
