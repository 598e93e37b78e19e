// Package runner executes a JobAction with a pool of workers, committing every commit
// interval records and mapping the outcome of the run to a process exit status.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	port "github.com/tigerroll/batchcore/pkg/batch/core/application/port"
	config "github.com/tigerroll/batchcore/pkg/batch/core/config"
	model "github.com/tigerroll/batchcore/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/batchcore/pkg/batch/core/metrics"
	tx "github.com/tigerroll/batchcore/pkg/batch/core/tx"
	"github.com/tigerroll/batchcore/pkg/batch/engine/handler"
	"github.com/tigerroll/batchcore/pkg/batch/support/util/exception"
	"github.com/tigerroll/batchcore/pkg/batch/support/util/logger"
)

const runnerModule = "runner"

// Settings are the static parameters of a Runner.
type Settings struct {
	// JobID keys the coordination tables. Required.
	JobID string
	// Concurrency is the number of workers. Values < 1 are treated as 1.
	Concurrency int
	// CommitInterval is the number of records per transaction. Values < 1 are treated as 1.
	CommitInterval int
	// ExitCodes maps abnormal ends to exit statuses. Zero fields use the defaults of config.
	ExitCodes config.ExitCodeConfig
}

// SettingsFromConfig extracts the Settings of the configured job.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		JobID:          cfg.Batchcore.Job.ID,
		Concurrency:    cfg.Batchcore.Job.Concurrency,
		CommitInterval: cfg.Batchcore.Job.CommitInterval,
		ExitCodes:      cfg.Batchcore.ExitCodes,
	}
}

// Option customizes a Runner.
type Option func(*options)

type options struct {
	chain    *handler.Chain
	recorder metrics.MetricRecorder
	tracer   metrics.Tracer
	notifier port.Notifier
}

// WithHandlers sets the process and record handlers of the run.
func WithHandlers(chain *handler.Chain) Option {
	return func(o *options) {
		if chain != nil {
			o.chain = chain
		}
	}
}

// WithMetrics sets the recorder and the tracer. nil values keep the no-op defaults.
func WithMetrics(recorder metrics.MetricRecorder, tracer metrics.Tracer) Option {
	return func(o *options) {
		if recorder != nil {
			o.recorder = recorder
		}
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithNotifier sets the notifier told about the result of each run.
func WithNotifier(notifier port.Notifier) Option {
	return func(o *options) {
		o.notifier = notifier
	}
}

// Runner drives one JobAction.
type Runner[T any] struct {
	action    port.JobAction[T]
	txManager tx.TransactionManager
	settings  Settings
	options
}

// New creates a Runner.
func New[T any](action port.JobAction[T], txManager tx.TransactionManager, settings Settings, opts ...Option) (*Runner[T], error) {
	if action == nil {
		return nil, exception.NewConfigurationError(runnerModule, "job action must be set.")
	}
	if txManager == nil {
		return nil, exception.NewConfigurationError(runnerModule, "transaction manager must be set.")
	}
	if settings.JobID == "" {
		return nil, exception.NewConfigurationError(runnerModule, "job id must be set.")
	}
	if settings.Concurrency < 1 {
		settings.Concurrency = config.DefaultConcurrency
	}
	if settings.CommitInterval < 1 {
		settings.CommitInterval = config.DefaultCommitInterval
	}

	o := options{
		chain:    &handler.Chain{},
		recorder: metrics.NewNoOpMetricRecorder(),
		tracer:   metrics.NewNoOpTracer(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Runner[T]{action: action, txManager: txManager, settings: settings, options: o}, nil
}

// stats are the run counters shared by the workers.
type stats struct {
	read      atomic.Int64
	committed atomic.Int64
	rollbacks atomic.Int64
}

// Run executes the job once and returns its result. The result's ExitCode is the process
// exit status: 0 on success, otherwise the status mapped from the error that ended the run.
func (r *Runner[T]) Run(ctx context.Context, params model.JobParameters) model.Result {
	rc := model.NewRunContext(r.settings.JobID, params, r.settings.Concurrency)
	st := &stats{}
	start := time.Now()

	logger.Infof("batch run started. request id=[%s], run id=[%s], concurrency=[%d], commit interval=[%d], parameters=%s",
		rc.JobID, rc.RunID, r.settings.Concurrency, r.settings.CommitInterval, rc.Parameters.String())
	r.recorder.RecordRunStart(ctx, rc)

	ctx, endSpan := r.tracer.StartRunSpan(ctx, rc)
	defer endSpan()

	err := r.handleProcess(ctx, rc, 0, func(ctx context.Context) error {
		return r.execute(ctx, rc, st, start)
	})

	result := r.resultOf(err, st, start)
	if err != nil {
		r.tracer.RecordError(ctx, runnerModule, err)
	}
	r.recorder.RecordRunEnd(ctx, rc, result)
	r.recorder.RecordDuration(ctx, "batch_run", result.Duration(), map[string]string{"job_id": rc.JobID, "status": statusOf(result)})
	if r.notifier != nil {
		r.notifier.NotifyRunCompletion(ctx, rc, result)
	}
	return result
}

func (r *Runner[T]) handleProcess(ctx context.Context, rc *model.RunContext, i int, last func(ctx context.Context) error) error {
	if i >= len(r.chain.Process) {
		return last(ctx)
	}
	return r.chain.Process[i].HandleProcess(ctx, rc, func(ctx context.Context) error {
		return r.handleProcess(ctx, rc, i+1, last)
	})
}

// execute runs the action lifecycle: Initialize, CreateReader, the workers, Close,
// OnError on failure and finally Terminate.
func (r *Runner[T]) execute(ctx context.Context, rc *model.RunContext, st *stats, start time.Time) error {
	if init, ok := r.action.(port.Initializer); ok {
		if err := init.Initialize(ctx, rc.Parameters, rc); err != nil {
			return r.finish(ctx, rc, st, start, err)
		}
	}

	reader, err := r.action.CreateReader(ctx, rc)
	if err != nil {
		return r.finish(ctx, rc, st, start, err)
	}

	err = r.runWorkers(ctx, rc, reader, st)

	if closeErr := reader.Close(context.WithoutCancel(ctx)); closeErr != nil {
		if err != nil {
			logger.Warnf("failed to close reader. request id=[%s]: %v", rc.JobID, closeErr)
		} else {
			err = closeErr
		}
	}
	return r.finish(ctx, rc, st, start, err)
}

func (r *Runner[T]) finish(ctx context.Context, rc *model.RunContext, st *stats, start time.Time, err error) error {
	ctx = context.WithoutCancel(ctx)
	if err != nil {
		if cb, ok := r.action.(port.ErrorCallback); ok {
			cb.OnError(ctx, err, rc)
		}
	}
	if t, ok := r.action.(port.Terminator); ok {
		t.Terminate(ctx, r.resultOf(err, st, start), rc)
	}
	return err
}

// runWorkers starts the workers and waits for all of them. The first error cancels the
// others; a ProcessStop is returned unchanged.
func (r *Runner[T]) runWorkers(ctx context.Context, rc *model.RunContext, reader port.DataReader[T], st *stats) error {
	g, gctx := errgroup.WithContext(ctx)

	var (
		mu     sync.Mutex
		failed []error
	)
	for n := 1; n <= r.settings.Concurrency; n++ {
		w := &worker[T]{
			runner: r,
			rc:     rc.Fork(model.WorkerName(n)),
			reader: reader,
			stats:  st,
		}
		g.Go(func() error {
			err := w.run(gctx)
			if err != nil {
				mu.Lock()
				failed = append(failed, err)
				mu.Unlock()
			}
			return err
		})
	}
	_ = g.Wait()

	if len(failed) == 0 {
		return nil
	}
	first := failed[0]
	if _, ok := exception.AsProcessStop(first); ok {
		return first
	}

	errs := multierror.Append(nil, first)
	for _, err := range failed[1:] {
		// Workers interrupted because a sibling failed are not reported again.
		if ctx.Err() == nil && errors.Is(err, context.Canceled) {
			continue
		}
		errs = multierror.Append(errs, err)
	}
	if len(errs.Errors) == 1 {
		return first
	}
	logger.Warnf("%d workers failed. request id=[%s]: %v", len(errs.Errors), rc.JobID, errs)
	return errs
}

func (r *Runner[T]) resultOf(err error, st *stats, start time.Time) model.Result {
	result := model.Result{
		ReadCount:     st.read.Load(),
		CommitCount:   st.committed.Load(),
		RollbackCount: st.rollbacks.Load(),
		StartTime:     start,
		EndTime:       time.Now(),
	}
	if err == nil {
		result.Message = "success"
		return result
	}
	result.Err = err
	result.ExitCode = r.exitCodeOf(err)
	if stop, ok := exception.AsProcessStop(err); ok {
		result.Stopped = true
		result.Message = fmt.Sprintf("stopped by request. request id=[%s]", stop.RequestID)
	} else {
		result.Message = exception.ExtractErrorMessage(primaryError(err))
	}
	return result
}

func statusOf(result model.Result) string {
	switch {
	case result.IsSuccess():
		return "success"
	case result.Stopped:
		return "stopped"
	default:
		return "failure"
	}
}
