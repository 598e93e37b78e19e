package handler

import (
	"context"
	"sync"

	port "github.com/tigerroll/batchcore/pkg/batch/core/application/port"
	config "github.com/tigerroll/batchcore/pkg/batch/core/config"
	model "github.com/tigerroll/batchcore/pkg/batch/core/domain/model"
	"github.com/tigerroll/batchcore/pkg/batch/core/domain/repository"
	metrics "github.com/tigerroll/batchcore/pkg/batch/core/metrics"
	"github.com/tigerroll/batchcore/pkg/batch/support/util/exception"
	"github.com/tigerroll/batchcore/pkg/batch/support/util/logger"
)

const stopModule = "process_stop"

// StopCheckHandler asks a StopSignal whether an operator requested the run to stop.
//
// Each worker counts its own records and consults the signal every checkInterval records,
// so with an interval of 10 the checks happen before records 10, 20 and so on.
type StopCheckHandler struct {
	signal        repository.StopSignal
	checkInterval int
	exitCode      int
	recorder      metrics.MetricRecorder

	mu     sync.Mutex
	counts map[string]int
}

// NewStopCheckHandler creates a StopCheckHandler.
//
// A checkInterval <= 0 is treated as 1. A nil exitCode selects config.DefaultStopExitCode;
// a set one must lie in [1,255].
func NewStopCheckHandler(signal repository.StopSignal, checkInterval int, exitCode *int) (*StopCheckHandler, error) {
	if signal == nil {
		return nil, exception.NewConfigurationError(stopModule, "stop signal must be set.")
	}
	if checkInterval <= 0 {
		checkInterval = 1
	}
	code, err := exitCodeOrDefault(stopModule, exitCode, config.DefaultStopExitCode)
	if err != nil {
		return nil, err
	}
	return &StopCheckHandler{
		signal:        signal,
		checkInterval: checkInterval,
		exitCode:      code,
		recorder:      metrics.NewNoOpMetricRecorder(),
		counts:        make(map[string]int),
	}, nil
}

// WithRecorder sets the recorder notified of observed stops and returns h.
func (h *StopCheckHandler) WithRecorder(recorder metrics.MetricRecorder) *StopCheckHandler {
	if recorder != nil {
		h.recorder = recorder
	}
	return h
}

// BeforeRecord implements port.RecordHandler.
func (h *StopCheckHandler) BeforeRecord(ctx context.Context, rc *model.RunContext) error {
	h.mu.Lock()
	h.counts[rc.WorkerID]++
	count := h.counts[rc.WorkerID]
	h.mu.Unlock()

	if count%h.checkInterval != 0 {
		return nil
	}

	stop, err := h.signal.ShouldStop(ctx, rc.JobID)
	if err != nil {
		return err
	}
	if !stop {
		return nil
	}

	logger.Warnf("process stop was requested. request id=[%s], worker=[%s], records=[%d]", rc.JobID, rc.WorkerID, count)
	h.recorder.RecordStop(ctx, rc.JobID)
	return exception.NewProcessStop(rc.JobID, h.exitCode)
}

// Count returns the number of records counted for workerID.
func (h *StopCheckHandler) Count(workerID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.counts[workerID]
}

var _ port.RecordHandler = (*StopCheckHandler)(nil)
