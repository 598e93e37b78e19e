package metrics

import (
	"go.uber.org/fx"

	config "github.com/tigerroll/batchcore/pkg/batch/core/config"
	metrics "github.com/tigerroll/batchcore/pkg/batch/core/metrics"
	"github.com/tigerroll/batchcore/pkg/batch/infrastructure/telemetry"
)

// RecorderParams are the recorders combined by NewMetricRecorder.
type RecorderParams struct {
	fx.In
	Prometheus *PrometheusRecorder
	OTel       *telemetry.MetricRecorder `optional:"true"`
}

// NewMetricRecorder combines the Prometheus recorder with the OpenTelemetry one when telemetry is enabled.
func NewMetricRecorder(p RecorderParams) metrics.MetricRecorder {
	if p.OTel == nil {
		return p.Prometheus
	}
	return metrics.MultiRecorder{p.Prometheus, p.OTel}
}

// RegisterServer starts the /metrics endpoint when a listen address is configured.
func RegisterServer(lc fx.Lifecycle, cfg *config.Config, recorder *PrometheusRecorder) {
	addr := cfg.Batchcore.Metrics.ListenAddress
	if addr == "" {
		return
	}
	s := NewServer(addr, recorder)
	lc.Append(fx.Hook{OnStart: s.Start, OnStop: s.Stop})
}

// Module provides the MetricRecorder and serves it over HTTP.
var Module = fx.Options(
	fx.Provide(NewPrometheusRecorder),
	fx.Provide(NewMetricRecorder),
	fx.Invoke(RegisterServer),
)
