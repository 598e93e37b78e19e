package job

import (
	"go.uber.org/fx"

	"github.com/tigerroll/batchcore/pkg/batch/adapter/database"
	port "github.com/tigerroll/batchcore/pkg/batch/core/application/port"
	config "github.com/tigerroll/batchcore/pkg/batch/core/config"
	model "github.com/tigerroll/batchcore/pkg/batch/core/domain/model"
	"github.com/tigerroll/batchcore/pkg/batch/core/domain/repository"
	metrics "github.com/tigerroll/batchcore/pkg/batch/core/metrics"
	tx "github.com/tigerroll/batchcore/pkg/batch/core/tx"
)

// Params are the dependencies of MailJob.
type Params struct {
	fx.In
	Conn        database.DBConnection
	TxManager   tx.TransactionManager
	Checkpoints repository.CheckpointStore
	Metrics     metrics.Params
	Cfg         *config.Config
}

// NewJobAction provides MailJob as the job action of the runner.
func NewJobAction(p Params) port.JobAction[*model.Record] {
	recorder, _ := p.Metrics.Resolve()
	return NewMailJob(p.Conn, p.TxManager, p.Checkpoints, recorder, p.Cfg)
}

// Module provides the job action.
var Module = fx.Options(
	fx.Provide(NewJobAction),
)
