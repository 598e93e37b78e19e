package test

import (
	"context"
	"sync"
	"time"

	"github.com/tigerroll/batchcore/pkg/batch/core/domain/model"
	"github.com/tigerroll/batchcore/pkg/batch/core/metrics"
)

// CountingRecorder is a metrics.MetricRecorder that counts calls per metric name.
type CountingRecorder struct {
	mu          sync.Mutex
	counts      map[string]int
	checkpoints []int
	results     []model.Result
}

// NewCountingRecorder creates an empty CountingRecorder.
func NewCountingRecorder() *CountingRecorder {
	return &CountingRecorder{counts: make(map[string]int)}
}

func (r *CountingRecorder) add(name string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[name] += n
}

// Count returns the accumulated value of name: "start", "end", "read", "commit",
// "rollback", "stop", "requery" or "checkpoint".
func (r *CountingRecorder) Count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[name]
}

// Checkpoints returns the saved resume points in order.
func (r *CountingRecorder) Checkpoints() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.checkpoints...)
}

// Results returns the results passed to RecordRunEnd.
func (r *CountingRecorder) Results() []model.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Result(nil), r.results...)
}

func (r *CountingRecorder) RecordRunStart(context.Context, *model.RunContext) { r.add("start", 1) }

func (r *CountingRecorder) RecordRunEnd(_ context.Context, _ *model.RunContext, result model.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts["end"]++
	r.results = append(r.results, result)
}

func (r *CountingRecorder) RecordRecordRead(context.Context, string)        { r.add("read", 1) }
func (r *CountingRecorder) RecordCommit(_ context.Context, _ string, n int) { r.add("commit", n) }
func (r *CountingRecorder) RecordRollback(context.Context, string)          { r.add("rollback", 1) }
func (r *CountingRecorder) RecordStop(context.Context, string)              { r.add("stop", 1) }
func (r *CountingRecorder) RecordQueueRequery(context.Context, string)      { r.add("requery", 1) }

func (r *CountingRecorder) RecordCheckpoint(_ context.Context, _ string, point int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts["checkpoint"]++
	r.checkpoints = append(r.checkpoints, point)
}

func (r *CountingRecorder) RecordDuration(context.Context, string, time.Duration, map[string]string) {
}

var _ metrics.MetricRecorder = (*CountingRecorder)(nil)
