package reader

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tigerroll/batchcore/pkg/batch/core/application/port"
	"github.com/tigerroll/batchcore/pkg/batch/core/domain/model"
	"github.com/tigerroll/batchcore/pkg/batch/core/metrics"
	"github.com/tigerroll/batchcore/pkg/batch/support/util/exception"
	"github.com/tigerroll/batchcore/pkg/batch/support/util/logger"
)

const queueModule = "table_queue_reader"

// QueueSource is the reader a TableQueueReader wraps: a query-based reader that can
// re-execute its query.
type QueueSource interface {
	port.DataReader[*model.Record]
	port.Reopener
}

// TableQueueReader treats a table as a work queue shared by several workers.
//
// It never reports the end of input: when the query result is used up it waits for the
// configured interval and executes the query again. Every row a worker reads stays claimed
// until the worker calls Release, which the runner does once the transaction holding the
// row has been committed or rolled back. Claimed rows are skipped by every worker.
type TableQueueReader struct {
	source      QueueSource
	waitTime    time.Duration
	primaryKeys []string
	recorder    metrics.MetricRecorder

	// mu guards every field below and serializes Read, so that checking and claiming an
	// identity is one step.
	mu      sync.Mutex
	working map[string]map[string]model.RecordIdentity // worker id -> identity key -> identity
	closed  bool
}

// NewTableQueueReader creates a TableQueueReader. primaryKeys are the columns forming the
// identity of a row; they must be set and unique.
func NewTableQueueReader(source QueueSource, waitTime time.Duration, primaryKeys ...string) (*TableQueueReader, error) {
	if len(primaryKeys) == 0 {
		return nil, exception.NewConfigurationError(queueModule, "primary keys must be set.")
	}
	seen := make(map[string]struct{}, len(primaryKeys))
	for _, k := range primaryKeys {
		seen[k] = struct{}{}
	}
	if len(seen) != len(primaryKeys) {
		return nil, exception.NewConfigurationError(queueModule,
			"duplicated primary key. must be unique column name. primary keys = %v", primaryKeys)
	}
	if waitTime < 0 {
		waitTime = 0
	}
	keys := make([]string, len(primaryKeys))
	copy(keys, primaryKeys)
	return &TableQueueReader{
		source:      source,
		waitTime:    waitTime,
		primaryKeys: keys,
		recorder:    metrics.NewNoOpMetricRecorder(),
		working:     make(map[string]map[string]model.RecordIdentity),
	}, nil
}

// WithRecorder sets the recorder counting re-queries and returns r.
func (r *TableQueueReader) WithRecorder(recorder metrics.MetricRecorder) *TableQueueReader {
	if recorder != nil {
		r.recorder = recorder
	}
	return r
}

// Read implements port.DataReader. It returns port.ErrNoMoreItems when no unclaimed row is
// available right now.
func (r *TableQueueReader) Read(ctx context.Context, rc *model.RunContext) (*model.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	hasNext, err := r.source.HasNext(ctx, rc)
	if err != nil {
		return nil, err
	}
	if !hasNext {
		if err := r.wait(ctx); err != nil {
			return nil, err
		}
		if err := r.source.Reopen(ctx, rc); err != nil {
			return nil, err
		}
		r.recorder.RecordQueueRequery(ctx, rc.JobID)
	}

	for {
		record, err := r.source.Read(ctx, rc)
		if errors.Is(err, port.ErrNoMoreItems) {
			return nil, port.ErrNoMoreItems
		}
		if err != nil {
			return nil, err
		}

		identity, missing, ok := model.IdentityOf(record, r.primaryKeys)
		if !ok {
			return nil, exception.NewBatchErrorf(queueModule,
				"primary key was not found in request. primary key name = [%s].", missing, exception.ErrMissingKeyColumn)
		}
		if r.isWorking(identity) {
			continue
		}
		claims, ok := r.working[rc.WorkerID]
		if !ok {
			claims = make(map[string]model.RecordIdentity)
			r.working[rc.WorkerID] = claims
		}
		claims[identity.Key()] = identity
		logger.Infof("read database record. key info: %s", identity)
		return record, nil
	}
}

// HasNext implements port.DataReader. It is true until Close is called.
func (r *TableQueueReader) HasNext(_ context.Context, _ *model.RunContext) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.closed, nil
}

// Close implements port.DataReader.
func (r *TableQueueReader) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return r.source.Close(ctx)
}

// Claims returns a copy of the current claims, keyed by worker id. The identities of a
// worker are sorted.
func (r *TableQueueReader) Claims() map[string][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string][]string, len(r.working))
	for worker, claims := range r.working {
		identities := make([]string, 0, len(claims))
		for _, identity := range claims {
			identities = append(identities, identity.String())
		}
		sort.Strings(identities)
		out[worker] = identities
	}
	return out
}

// Release drops every claim of workerID.
func (r *TableQueueReader) Release(workerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.working, workerID)
}

func (r *TableQueueReader) isWorking(identity model.RecordIdentity) bool {
	key := identity.Key()
	for _, claims := range r.working {
		if _, ok := claims[key]; ok {
			return true
		}
	}
	return false
}

func (r *TableQueueReader) wait(ctx context.Context) error {
	if r.waitTime == 0 {
		return nil
	}
	timer := time.NewTimer(r.waitTime)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%s: interrupted while waiting for records: %w", queueModule, ctx.Err())
	}
}

var _ port.DataReader[*model.Record] = (*TableQueueReader)(nil)
