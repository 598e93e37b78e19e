package telemetry

import (
	"context"

	"go.uber.org/fx"

	config "github.com/tigerroll/batchcore/pkg/batch/core/config"
	metrics "github.com/tigerroll/batchcore/pkg/batch/core/metrics"
	"github.com/tigerroll/batchcore/pkg/batch/support/util/logger"
)

// Result carries the telemetry components. When telemetry is disabled the Tracer is a
// no-op and Recorder is nil.
type Result struct {
	fx.Out
	Tracer   metrics.Tracer
	Recorder *MetricRecorder
}

// NewTelemetry sets up OTLP export according to the configuration and shuts it down with the app.
func NewTelemetry(lc fx.Lifecycle, cfg *config.Config) (Result, error) {
	tcfg := cfg.Batchcore.Telemetry
	if !tcfg.Enabled {
		logger.Debugf("Telemetry: disabled.")
		return Result{Tracer: metrics.NewNoOpTracer()}, nil
	}

	providers, err := NewProviders(context.Background(), tcfg)
	if err != nil {
		return Result{}, err
	}
	lc.Append(fx.Hook{OnStop: providers.Shutdown})

	recorder, err := NewMetricRecorder(providers.MeterProvider)
	if err != nil {
		return Result{}, err
	}
	return Result{Tracer: NewTracer(providers.TracerProvider), Recorder: recorder}, nil
}

// Module provides the telemetry Tracer and MetricRecorder.
var Module = fx.Options(
	fx.Provide(NewTelemetry),
)
