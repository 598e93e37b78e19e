package sql

import (
	"context"

	config "github.com/tigerroll/batchcore/pkg/batch/core/config"
	"github.com/tigerroll/batchcore/pkg/batch/core/domain/repository"
	tx "github.com/tigerroll/batchcore/pkg/batch/core/tx"
	"github.com/tigerroll/batchcore/pkg/batch/support/util/exception"
	"github.com/tigerroll/batchcore/pkg/batch/support/util/logger"
)

const activationModule = "duplicate_process"

// ActivationGuard implements repository.ProcessExclusivityGuard with a flag column.
// Each claim and release is a single conditional update committed in its own transaction.
type ActivationGuard struct {
	txManager   tx.TransactionManager
	classifier  TableErrorClassifier
	table       string
	permitted   map[string]struct{}
	activeSQL   string
	inactiveSQL string
}

// NewActivationGuard creates an ActivationGuard.
func NewActivationGuard(txManager tx.TransactionManager, cfg config.DuplicateCheckConfig) (*ActivationGuard, error) {
	if err := validateIdentifiers(activationModule, map[string]string{
		"duplicate_check.table":              cfg.Table,
		"duplicate_check.process_id_column":  cfg.ProcessIDColumn,
		"duplicate_check.active_flag_column": cfg.ActiveFlagColumn,
	}); err != nil {
		return nil, err
	}
	permitted := make(map[string]struct{}, len(cfg.PermittedProcesses))
	for _, id := range cfg.PermittedProcesses {
		permitted[id] = struct{}{}
	}
	return &ActivationGuard{
		txManager:   txManager,
		table:       cfg.Table,
		permitted:   permitted,
		activeSQL:   switchFlagSQL(cfg.Table, cfg.ProcessIDColumn, cfg.ActiveFlagColumn, flagOff, flagOn),
		inactiveSQL: switchFlagSQL(cfg.Table, cfg.ProcessIDColumn, cfg.ActiveFlagColumn, flagOn, flagOff),
	}, nil
}

// WithTableErrorClassifier reports statements failing on a missing table as configuration
// errors and returns g.
func (g *ActivationGuard) WithTableErrorClassifier(classifier TableErrorClassifier) *ActivationGuard {
	g.classifier = classifier
	return g
}

func (g *ActivationGuard) isPermitted(processID string) bool {
	_, ok := g.permitted[processID]
	return ok
}

// Claim implements repository.ProcessExclusivityGuard. An unknown process id cannot be
// told apart from a running one and is reported as already running.
func (g *ActivationGuard) Claim(ctx context.Context, processID string) error {
	if g.isPermitted(processID) {
		logger.Debugf("process is permitted to run concurrently. process = [%s]", processID)
		return nil
	}
	err := tx.Execute(ctx, g.txManager, func(ctx context.Context, t tx.Tx) error {
		affected, err := t.Exec(ctx, g.activeSQL, processID)
		if err != nil {
			if cfgErr := missingTableError(g.classifier, activationModule, g.table, err); cfgErr != nil {
				return cfgErr
			}
			return exception.NewBatchErrorf(activationModule, "failed to activate process. process = [%s]", processID, err)
		}
		if affected != 1 {
			return exception.NewBatchErrorf(activationModule,
				"same process already running. process = [%s]", processID, exception.ErrAlreadyRunning)
		}
		return nil
	})
	if err != nil {
		return err
	}
	logger.Infof("process activated. process = [%s]", processID)
	return nil
}

// Release implements repository.ProcessExclusivityGuard. Releasing a process that is not
// active is not an error.
func (g *ActivationGuard) Release(ctx context.Context, processID string) error {
	if g.isPermitted(processID) {
		return nil
	}
	err := tx.Execute(ctx, g.txManager, func(ctx context.Context, t tx.Tx) error {
		if _, err := t.Exec(ctx, g.inactiveSQL, processID); err != nil {
			return exception.NewBatchErrorf(activationModule, "failed to inactivate process. process = [%s]", processID, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	logger.Infof("process inactivated. process = [%s]", processID)
	return nil
}

var _ repository.ProcessExclusivityGuard = (*ActivationGuard)(nil)
