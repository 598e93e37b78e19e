package runner

import (
	"go.uber.org/fx"

	port "github.com/tigerroll/batchcore/pkg/batch/core/application/port"
	config "github.com/tigerroll/batchcore/pkg/batch/core/config"
	model "github.com/tigerroll/batchcore/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/batchcore/pkg/batch/core/metrics"
	tx "github.com/tigerroll/batchcore/pkg/batch/core/tx"
	"github.com/tigerroll/batchcore/pkg/batch/engine/handler"
)

// RecordRunnerParams are the dependencies of a Runner over database records.
type RecordRunnerParams struct {
	fx.In
	Cfg       *config.Config
	Action    port.JobAction[*model.Record]
	TxManager tx.TransactionManager
	Chain     *handler.Chain
	Metrics   metrics.Params
	Notifier  port.Notifier `optional:"true"`
}

// NewRecordRunner creates the Runner of the configured job.
func NewRecordRunner(p RecordRunnerParams) (*Runner[*model.Record], error) {
	recorder, tracer := p.Metrics.Resolve()
	return New(p.Action, p.TxManager, SettingsFromConfig(p.Cfg),
		WithHandlers(p.Chain),
		WithMetrics(recorder, tracer),
		WithNotifier(p.Notifier),
	)
}

// Module provides the handler chain and the record Runner. The application provides the
// port.JobAction[*model.Record].
var Module = fx.Options(
	handler.Module,
	fx.Provide(NewRecordRunner),
)
