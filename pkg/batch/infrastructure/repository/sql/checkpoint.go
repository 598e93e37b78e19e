package sql

import (
	"context"

	config "github.com/tigerroll/batchcore/pkg/batch/core/config"
	"github.com/tigerroll/batchcore/pkg/batch/core/domain/repository"
	tx "github.com/tigerroll/batchcore/pkg/batch/core/tx"
	"github.com/tigerroll/batchcore/pkg/batch/support/util/exception"
	"github.com/tigerroll/batchcore/pkg/batch/support/util/logger"
)

const checkpointModule = "checkpoint"

// CheckpointStore keeps the resume point of each job in one row of a table.
// Statements run on the transaction carried by the context, so that a saved resume point
// is committed or rolled back together with the records it accounts for.
type CheckpointStore struct {
	conn       tx.Executor
	classifier TableErrorClassifier
	cfg        config.ResumeConfig
	excluded   map[string]struct{}
	loadSQL    string
	saveSQL    string
}

// NewCheckpointStore creates a CheckpointStore. conn is used when the context carries no
// transaction. Table and column names are only validated when resuming is enabled.
// When conn is a TableErrorClassifier, a missing table is reported as a configuration error.
func NewCheckpointStore(conn tx.Executor, cfg config.ResumeConfig) (*CheckpointStore, error) {
	if cfg.Enabled {
		if err := validateIdentifiers(checkpointModule, map[string]string{
			"resume.table":               cfg.Table,
			"resume.request_id_column":   cfg.RequestIDColumn,
			"resume.resume_point_column": cfg.ResumePointColumn,
		}); err != nil {
			return nil, err
		}
	}
	excluded := make(map[string]struct{}, len(cfg.ExcludedRequests))
	for _, id := range cfg.ExcludedRequests {
		excluded[id] = struct{}{}
	}
	classifier, _ := conn.(TableErrorClassifier)
	return &CheckpointStore{
		conn:       conn,
		classifier: classifier,
		cfg:        cfg,
		excluded:   excluded,
		loadSQL:    selectResumePointSQL(cfg.Table, cfg.RequestIDColumn, cfg.ResumePointColumn),
		saveSQL:    updateResumePointSQL(cfg.Table, cfg.RequestIDColumn, cfg.ResumePointColumn),
	}, nil
}

// Enabled reports whether resuming is on and jobID is not excluded.
func (s *CheckpointStore) Enabled(jobID string) bool {
	if !s.cfg.Enabled {
		return false
	}
	_, excluded := s.excluded[jobID]
	return !excluded
}

// Load implements repository.CheckpointStore.
func (s *CheckpointStore) Load(ctx context.Context, jobID string, concurrency int) (int, error) {
	if !s.Enabled(jobID) {
		return 0, nil
	}
	if concurrency > 1 {
		return 0, exception.NewBatchErrorf(checkpointModule,
			"Cannot use resume function in multi thread. resume function is operated only in single thread. concurrent number=[%d], request id=[%s].",
			concurrency, jobID, exception.ErrMultiThreadedResumeUnsupported)
	}

	rows, err := tx.ExecutorFrom(ctx, s.conn).Query(ctx, s.loadSQL, jobID)
	if err != nil {
		if cfgErr := missingTableError(s.classifier, checkpointModule, s.cfg.Table, err); cfgErr != nil {
			return 0, cfgErr
		}
		return 0, exception.NewBatchErrorf(checkpointModule, "failed to load resume point. request id=[%s].", jobID, err)
	}
	if len(rows) != 1 {
		return 0, exception.NewBatchErrorf(checkpointModule,
			"Couldn't load resume point from the table. sql=[%s], request id=[%s].",
			s.loadSQL, jobID, exception.ErrCheckpointNotFound)
	}

	point, ok := rows[0].GetInt64(s.cfg.ResumePointColumn)
	if !ok {
		return 0, exception.NewBatchErrorf(checkpointModule,
			"invalid resume point was stored on the table. resume point=[%s], sql=[%s], request id=[%s].",
			rows[0].GetString(s.cfg.ResumePointColumn), s.loadSQL, jobID, exception.ErrInvalidCheckpoint)
	}
	if point < 0 {
		return 0, exception.NewBatchErrorf(checkpointModule,
			"invalid resume point was stored on the table. resume point must be more than 0. resume point=[%d], sql=[%s], request id=[%s].",
			point, s.loadSQL, jobID, exception.ErrInvalidCheckpoint)
	}

	logger.Infof("loaded resume point. request id=[%s], resume point=[%d]", jobID, point)
	return int(point), nil
}

// Save implements repository.CheckpointStore.
func (s *CheckpointStore) Save(ctx context.Context, jobID string, point int) error {
	if !s.Enabled(jobID) {
		return nil
	}
	affected, err := tx.ExecutorFrom(ctx, s.conn).Exec(ctx, s.saveSQL, point, jobID)
	if err != nil {
		if cfgErr := missingTableError(s.classifier, checkpointModule, s.cfg.Table, err); cfgErr != nil {
			return cfgErr
		}
		return exception.NewBatchErrorf(checkpointModule, "failed to save resume point. request id=[%s].", jobID, err)
	}
	if affected != 1 {
		return exception.NewBatchErrorf(checkpointModule,
			"Couldn't save resume point. sql=[%s], request id=[%s].",
			s.saveSQL, jobID, exception.ErrCheckpointWriteFailed)
	}
	logger.Debugf("saved resume point. request id=[%s], resume point=[%d]", jobID, point)
	return nil
}

var _ repository.CheckpointStore = (*CheckpointStore)(nil)
