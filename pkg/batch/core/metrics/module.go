package metrics

import (
	"go.uber.org/fx"
)

// Params collects the optional metrics components. Infrastructure modules provide the real
// implementations; when none is provided the no-op ones are used.
type Params struct {
	fx.In
	Recorder MetricRecorder `optional:"true"`
	Tracer   Tracer         `optional:"true"`
}

// Resolve returns the recorder and tracer of p, falling back to no-op implementations.
func (p Params) Resolve() (MetricRecorder, Tracer) {
	recorder, tracer := p.Recorder, p.Tracer
	if recorder == nil {
		recorder = NewNoOpMetricRecorder()
	}
	if tracer == nil {
		tracer = NewNoOpTracer()
	}
	return recorder, tracer
}
