package handler

import (
	"go.uber.org/fx"

	port "github.com/tigerroll/batchcore/pkg/batch/core/application/port"
	config "github.com/tigerroll/batchcore/pkg/batch/core/config"
	"github.com/tigerroll/batchcore/pkg/batch/core/domain/repository"
	metrics "github.com/tigerroll/batchcore/pkg/batch/core/metrics"
	"github.com/tigerroll/batchcore/pkg/batch/support/util/logger"
)

// Chain is the ordered set of handlers applied to a run.
// Process handlers wrap the run from the outside in; record handlers run in order before each read.
type Chain struct {
	Process []port.ProcessHandler
	Record  []port.RecordHandler
}

// ChainParams are the dependencies of NewChain. The guard and the stop signal are optional:
// the corresponding handler is left out when they are absent.
type ChainParams struct {
	fx.In
	Cfg     *config.Config
	Guard   repository.ProcessExclusivityGuard `optional:"true"`
	Signal  repository.StopSignal              `optional:"true"`
	Metrics metrics.Params
}

// NewChain builds the handler chain from the configuration.
func NewChain(p ChainParams) (*Chain, error) {
	chain := &Chain{}
	recorder, _ := p.Metrics.Resolve()

	if p.Guard != nil {
		h, err := NewProcessExclusivityHandler(p.Guard, "", p.Cfg.Batchcore.DuplicateCheck.ExitCode)
		if err != nil {
			return nil, err
		}
		chain.Process = append(chain.Process, h)
		logger.Debugf("process exclusivity check enabled. table = [%s]", p.Cfg.Batchcore.DuplicateCheck.Table)
	}

	if p.Signal != nil {
		stop := p.Cfg.Batchcore.Stop
		h, err := NewStopCheckHandler(p.Signal, stop.CheckInterval, stop.ExitCode)
		if err != nil {
			return nil, err
		}
		chain.Record = append(chain.Record, h.WithRecorder(recorder))
		logger.Debugf("process stop check enabled. table = [%s], check interval = [%d]", stop.Table, h.checkInterval)
	}
	return chain, nil
}

// Module provides the handler Chain.
var Module = fx.Options(
	fx.Provide(NewChain),
)
