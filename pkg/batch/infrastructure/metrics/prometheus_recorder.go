package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	model "github.com/tigerroll/batchcore/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/batchcore/pkg/batch/core/metrics"
	logger "github.com/tigerroll/batchcore/pkg/batch/support/util/logger"
)

// PrometheusRecorder is a Prometheus implementation of the metrics.MetricRecorder interface.
// Its collectors live in a private registry exposed by Handler.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	// Run Metrics
	runDurationSeconds *prometheus.HistogramVec
	runStatusCounter   *prometheus.CounterVec
	runsInProgress     *prometheus.GaugeVec

	// Record Metrics
	recordReadCount   *prometheus.CounterVec
	recordCommitCount *prometheus.CounterVec
	rollbackCount     *prometheus.CounterVec

	// Coordination Metrics
	stopCounter      *prometheus.CounterVec
	requeryCounter   *prometheus.CounterVec
	resumePoint      *prometheus.GaugeVec
	operationSeconds *prometheus.HistogramVec
}

// NewPrometheusRecorder creates a new instance of PrometheusRecorder.
func NewPrometheusRecorder() *PrometheusRecorder {
	registry := prometheus.NewRegistry()

	// Register Go standard metrics and process/OS metrics.
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &PrometheusRecorder{
		registry: registry,
		runDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "batch_run_duration_seconds",
			Help:    "Duration of batch runs.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job_id", "status"}),
		runStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_run_status_total",
			Help: "Total number of batch runs by status and exit code.",
		}, []string{"job_id", "status", "exit_code"}),
		runsInProgress: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "batch_runs_in_progress",
			Help: "Number of batch runs currently executing.",
		}, []string{"job_id"}),
		recordReadCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_record_read_total",
			Help: "Total input records read.",
		}, []string{"job_id"}),
		recordCommitCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_record_commit_total",
			Help: "Total records committed.",
		}, []string{"job_id"}),
		rollbackCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_rollback_total",
			Help: "Total transactions rolled back.",
		}, []string{"job_id"}),
		stopCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_stop_requested_total",
			Help: "Total stop requests observed by workers.",
		}, []string{"job_id"}),
		requeryCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_queue_requery_total",
			Help: "Total re-executions of queue queries.",
		}, []string{"job_id"}),
		resumePoint: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "batch_resume_point",
			Help: "Last saved resume point.",
		}, []string{"job_id"}),
		operationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "batch_operation_duration_seconds",
			Help:    "Duration of named batch operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation", "job_id", "status"}),
	}

	registry.MustRegister(
		r.runDurationSeconds,
		r.runStatusCounter,
		r.runsInProgress,
		r.recordReadCount,
		r.recordCommitCount,
		r.rollbackCount,
		r.stopCounter,
		r.requeryCounter,
		r.resumePoint,
		r.operationSeconds,
	)

	logger.Debugf("PrometheusRecorder initialized.")
	return r
}

// Registry returns the registry holding the collectors.
func (r *PrometheusRecorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler returns the HTTP handler serving the registry in the exposition format.
func (r *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *PrometheusRecorder) RecordRunStart(ctx context.Context, rc *model.RunContext) {
	r.runsInProgress.WithLabelValues(rc.JobID).Inc()
}

func (r *PrometheusRecorder) RecordRunEnd(ctx context.Context, rc *model.RunContext, result model.Result) {
	status := runStatus(result)
	r.runsInProgress.WithLabelValues(rc.JobID).Dec()
	r.runStatusCounter.WithLabelValues(rc.JobID, status, strconv.Itoa(result.ExitCode)).Inc()
	r.runDurationSeconds.WithLabelValues(rc.JobID, status).Observe(result.Duration().Seconds())
}

func (r *PrometheusRecorder) RecordRecordRead(ctx context.Context, jobID string) {
	r.recordReadCount.WithLabelValues(jobID).Inc()
}

func (r *PrometheusRecorder) RecordCommit(ctx context.Context, jobID string, count int) {
	r.recordCommitCount.WithLabelValues(jobID).Add(float64(count))
}

func (r *PrometheusRecorder) RecordRollback(ctx context.Context, jobID string) {
	r.rollbackCount.WithLabelValues(jobID).Inc()
}

func (r *PrometheusRecorder) RecordStop(ctx context.Context, jobID string) {
	r.stopCounter.WithLabelValues(jobID).Inc()
}

func (r *PrometheusRecorder) RecordQueueRequery(ctx context.Context, jobID string) {
	r.requeryCounter.WithLabelValues(jobID).Inc()
}

func (r *PrometheusRecorder) RecordCheckpoint(ctx context.Context, jobID string, point int) {
	r.resumePoint.WithLabelValues(jobID).Set(float64(point))
}

func (r *PrometheusRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	r.operationSeconds.WithLabelValues(name, tags["job_id"], tags["status"]).Observe(duration.Seconds())
}

func runStatus(result model.Result) string {
	switch {
	case result.IsSuccess():
		return "success"
	case result.Stopped:
		return "stopped"
	default:
		return "failure"
	}
}

var _ metrics.MetricRecorder = (*PrometheusRecorder)(nil)
