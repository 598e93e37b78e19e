package sql

import (
	"context"

	config "github.com/tigerroll/batchcore/pkg/batch/core/config"
	"github.com/tigerroll/batchcore/pkg/batch/core/domain/repository"
	tx "github.com/tigerroll/batchcore/pkg/batch/core/tx"
	"github.com/tigerroll/batchcore/pkg/batch/support/util/exception"
	"github.com/tigerroll/batchcore/pkg/batch/support/util/logger"
)

const registryModule = "request_registry"

// RequestTable describes the coordination table shared by the resume, duplicate-check and
// stop settings.
type RequestTable struct {
	Table             string
	RequestIDColumn   string
	HaltFlagColumn    string
	ActiveFlagColumn  string
	ResumePointColumn string
}

// RequestTableFromConfig derives the RequestTable from cfg. The three settings must name the
// same table and the same request id column.
func RequestTableFromConfig(cfg *config.BatchcoreConfig) (RequestTable, error) {
	rt := RequestTable{
		Table:             cfg.Stop.Table,
		RequestIDColumn:   cfg.Stop.RequestIDColumn,
		HaltFlagColumn:    cfg.Stop.HaltFlagColumn,
		ActiveFlagColumn:  cfg.DuplicateCheck.ActiveFlagColumn,
		ResumePointColumn: cfg.Resume.ResumePointColumn,
	}
	if cfg.DuplicateCheck.Table != rt.Table || cfg.Resume.Table != rt.Table {
		return rt, exception.NewConfigurationError(registryModule,
			"resume, duplicate_check and stop must share one table to register requests. tables=[%s, %s, %s].",
			cfg.Resume.Table, cfg.DuplicateCheck.Table, cfg.Stop.Table)
	}
	if cfg.DuplicateCheck.ProcessIDColumn != rt.RequestIDColumn || cfg.Resume.RequestIDColumn != rt.RequestIDColumn {
		return rt, exception.NewConfigurationError(registryModule,
			"resume, duplicate_check and stop must share one request id column to register requests. columns=[%s, %s, %s].",
			cfg.Resume.RequestIDColumn, cfg.DuplicateCheck.ProcessIDColumn, cfg.Stop.RequestIDColumn)
	}
	return rt, nil
}

// RequestRegistry implements repository.RequestRegistry.
type RequestRegistry struct {
	txManager  tx.TransactionManager
	classifier TableErrorClassifier
	table      RequestTable
}

// NewRequestRegistry creates a RequestRegistry.
func NewRequestRegistry(txManager tx.TransactionManager, table RequestTable) (*RequestRegistry, error) {
	if err := validateIdentifiers(registryModule, map[string]string{
		"table":               table.Table,
		"request_id_column":   table.RequestIDColumn,
		"halt_flag_column":    table.HaltFlagColumn,
		"active_flag_column":  table.ActiveFlagColumn,
		"resume_point_column": table.ResumePointColumn,
	}); err != nil {
		return nil, err
	}
	return &RequestRegistry{txManager: txManager, table: table}, nil
}

// WithTableErrorClassifier reports a missing table as a configuration error and returns r.
func (r *RequestRegistry) WithTableErrorClassifier(classifier TableErrorClassifier) *RequestRegistry {
	r.classifier = classifier
	return r
}

// Register implements repository.RequestRegistry. An existing row is left untouched.
func (r *RequestRegistry) Register(ctx context.Context, requestID string) error {
	row := map[string]interface{}{
		r.table.RequestIDColumn:   requestID,
		r.table.HaltFlagColumn:    flagOff,
		r.table.ActiveFlagColumn:  flagOff,
		r.table.ResumePointColumn: 0,
	}
	var created int64
	err := tx.Execute(ctx, r.txManager, func(ctx context.Context, t tx.Tx) error {
		n, err := t.ExecuteUpsert(ctx, row, r.table.Table, []string{r.table.RequestIDColumn}, nil)
		created = n
		return err
	})
	if err != nil {
		if cfgErr := missingTableError(r.classifier, registryModule, r.table.Table, err); cfgErr != nil {
			return cfgErr
		}
		return exception.NewBatchErrorf(registryModule, "failed to register request. request id=[%s].", requestID, err)
	}
	if created == 0 {
		logger.Infof("request is already registered. request id=[%s]", requestID)
	} else {
		logger.Infof("registered request. request id=[%s]", requestID)
	}
	return nil
}

// RequestStop implements repository.RequestRegistry.
func (r *RequestRegistry) RequestStop(ctx context.Context, requestID string) error {
	return r.update(ctx, requestID, r.table.HaltFlagColumn, flagOn)
}

// ClearStop implements repository.RequestRegistry.
func (r *RequestRegistry) ClearStop(ctx context.Context, requestID string) error {
	return r.update(ctx, requestID, r.table.HaltFlagColumn, flagOff)
}

// ResetResumePoint implements repository.RequestRegistry.
func (r *RequestRegistry) ResetResumePoint(ctx context.Context, requestID string) error {
	return r.update(ctx, requestID, r.table.ResumePointColumn, 0)
}

func (r *RequestRegistry) update(ctx context.Context, requestID, column string, value interface{}) error {
	query := updateFlagSQL(r.table.Table, r.table.RequestIDColumn, column)
	return tx.Execute(ctx, r.txManager, func(ctx context.Context, t tx.Tx) error {
		affected, err := t.Exec(ctx, query, value, requestID)
		if err != nil {
			if cfgErr := missingTableError(r.classifier, registryModule, r.table.Table, err); cfgErr != nil {
				return cfgErr
			}
			return exception.NewBatchErrorf(registryModule, "failed to update %s. request id=[%s].", column, requestID, err)
		}
		if affected != 1 {
			return exception.NewBatchErrorf(registryModule, "request is not registered. request id=[%s].", requestID)
		}
		logger.Infof("updated %s to [%v]. request id=[%s]", column, value, requestID)
		return nil
	})
}

var _ repository.RequestRegistry = (*RequestRegistry)(nil)
