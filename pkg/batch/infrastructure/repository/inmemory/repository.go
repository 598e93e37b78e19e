// Package inmemory provides process-local implementations of the coordination stores.
// They behave like the SQL stores within one process and suit tests and single-process
// tools that have no coordination table.
package inmemory

import (
	"context"
	"sync"

	"github.com/tigerroll/batchcore/pkg/batch/core/domain/repository"
	"github.com/tigerroll/batchcore/pkg/batch/support/util/exception"
)

// CheckpointStore keeps resume points in a map.
type CheckpointStore struct {
	mu       sync.RWMutex
	points   map[string]int
	disabled bool
	excluded map[string]struct{}
}

// NewCheckpointStore creates an enabled CheckpointStore with the given seeded resume points.
// Loading a job that was not seeded fails like a missing row would.
func NewCheckpointStore(seed map[string]int, excluded ...string) *CheckpointStore {
	points := make(map[string]int, len(seed))
	for k, v := range seed {
		points[k] = v
	}
	ex := make(map[string]struct{}, len(excluded))
	for _, id := range excluded {
		ex[id] = struct{}{}
	}
	return &CheckpointStore{points: points, excluded: ex}
}

// Disable turns resuming off for every job.
func (s *CheckpointStore) Disable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disabled = true
}

// Enabled implements repository.CheckpointStore.
func (s *CheckpointStore) Enabled(jobID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.disabled {
		return false
	}
	_, ex := s.excluded[jobID]
	return !ex
}

// Load implements repository.CheckpointStore.
func (s *CheckpointStore) Load(_ context.Context, jobID string, concurrency int) (int, error) {
	if !s.Enabled(jobID) {
		return 0, nil
	}
	if concurrency > 1 {
		return 0, exception.NewBatchErrorf("checkpoint",
			"Cannot use resume function in multi thread. concurrent number=[%d], request id=[%s].",
			concurrency, jobID, exception.ErrMultiThreadedResumeUnsupported)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	point, ok := s.points[jobID]
	if !ok {
		return 0, exception.NewBatchErrorf("checkpoint", "Couldn't load resume point. request id=[%s].", jobID, exception.ErrCheckpointNotFound)
	}
	if point < 0 {
		return 0, exception.NewBatchErrorf("checkpoint", "invalid resume point. resume point=[%d], request id=[%s].", point, jobID, exception.ErrInvalidCheckpoint)
	}
	return point, nil
}

// Save implements repository.CheckpointStore. It does not take part in transactions.
func (s *CheckpointStore) Save(_ context.Context, jobID string, point int) error {
	if !s.Enabled(jobID) {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.points[jobID]; !ok {
		return exception.NewBatchErrorf("checkpoint", "Couldn't save resume point. request id=[%s].", jobID, exception.ErrCheckpointWriteFailed)
	}
	s.points[jobID] = point
	return nil
}

// Point returns the stored resume point of jobID.
func (s *CheckpointStore) Point(jobID string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.points[jobID]
	return p, ok
}

// ActivationGuard keeps process activation flags in a map. Unknown process ids are treated
// as already running, like an unmatched conditional update.
type ActivationGuard struct {
	mu        sync.Mutex
	active    map[string]bool
	permitted map[string]struct{}
}

// NewActivationGuard creates an ActivationGuard knowing the given process ids, all inactive.
func NewActivationGuard(processIDs []string, permitted ...string) *ActivationGuard {
	active := make(map[string]bool, len(processIDs))
	for _, id := range processIDs {
		active[id] = false
	}
	p := make(map[string]struct{}, len(permitted))
	for _, id := range permitted {
		p[id] = struct{}{}
	}
	return &ActivationGuard{active: active, permitted: p}
}

// Claim implements repository.ProcessExclusivityGuard.
func (g *ActivationGuard) Claim(_ context.Context, processID string) error {
	if _, ok := g.permitted[processID]; ok {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	running, known := g.active[processID]
	if !known || running {
		return exception.NewBatchErrorf("duplicate_process", "same process already running. process = [%s]", processID, exception.ErrAlreadyRunning)
	}
	g.active[processID] = true
	return nil
}

// Release implements repository.ProcessExclusivityGuard.
func (g *ActivationGuard) Release(_ context.Context, processID string) error {
	if _, ok := g.permitted[processID]; ok {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, known := g.active[processID]; known {
		g.active[processID] = false
	}
	return nil
}

// IsActive reports the activation flag of processID.
func (g *ActivationGuard) IsActive(processID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active[processID]
}

// StopSignal keeps halt flags in a map and counts how often it was consulted.
type StopSignal struct {
	mu     sync.Mutex
	halted map[string]bool
	checks int
}

// NewStopSignal creates a StopSignal with no stop requested.
func NewStopSignal() *StopSignal {
	return &StopSignal{halted: make(map[string]bool)}
}

// RequestStop raises the halt flag of requestID.
func (s *StopSignal) RequestStop(requestID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.halted[requestID] = true
}

// ShouldStop implements repository.StopSignal.
func (s *StopSignal) ShouldStop(_ context.Context, requestID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks++
	return s.halted[requestID], nil
}

// Checks returns the number of ShouldStop calls so far.
func (s *StopSignal) Checks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checks
}

var (
	_ repository.CheckpointStore         = (*CheckpointStore)(nil)
	_ repository.ProcessExclusivityGuard = (*ActivationGuard)(nil)
	_ repository.StopSignal              = (*StopSignal)(nil)
)
