package sql

import (
	"context"

	config "github.com/tigerroll/batchcore/pkg/batch/core/config"
	"github.com/tigerroll/batchcore/pkg/batch/core/domain/repository"
	tx "github.com/tigerroll/batchcore/pkg/batch/core/tx"
	"github.com/tigerroll/batchcore/pkg/batch/support/util/exception"
)

const stopModule = "process_stop"

// StopFlagSignal implements repository.StopSignal by reading a halt flag column.
// The read runs in its own short transaction, outside of the worker's batch transaction.
type StopFlagSignal struct {
	txManager  tx.TransactionManager
	classifier TableErrorClassifier
	table      string
	query      string
}

// NewStopFlagSignal creates a StopFlagSignal.
func NewStopFlagSignal(txManager tx.TransactionManager, cfg config.StopConfig) (*StopFlagSignal, error) {
	if err := validateIdentifiers(stopModule, map[string]string{
		"stop.table":             cfg.Table,
		"stop.request_id_column": cfg.RequestIDColumn,
		"stop.halt_flag_column":  cfg.HaltFlagColumn,
	}); err != nil {
		return nil, err
	}
	return &StopFlagSignal{
		txManager: txManager,
		table:     cfg.Table,
		query:     selectHaltedSQL(cfg.Table, cfg.RequestIDColumn, cfg.HaltFlagColumn),
	}, nil
}

// WithTableErrorClassifier reports a missing table as a configuration error and returns s.
func (s *StopFlagSignal) WithTableErrorClassifier(classifier TableErrorClassifier) *StopFlagSignal {
	s.classifier = classifier
	return s
}

// ShouldStop implements repository.StopSignal.
func (s *StopFlagSignal) ShouldStop(ctx context.Context, requestID string) (bool, error) {
	var halted bool
	err := tx.Execute(ctx, s.txManager, func(ctx context.Context, t tx.Tx) error {
		rows, err := t.Query(ctx, s.query, requestID, flagOn)
		if err != nil {
			if cfgErr := missingTableError(s.classifier, stopModule, s.table, err); cfgErr != nil {
				return cfgErr
			}
			return exception.NewBatchErrorf(stopModule, "failed to check process stop. request id=[%s].", requestID, err)
		}
		halted = len(rows) > 0
		return nil
	})
	return halted, err
}

var _ repository.StopSignal = (*StopFlagSignal)(nil)
