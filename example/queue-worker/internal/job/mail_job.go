// Package job implements a sample job delivering queued mails.
package job

import (
	"context"
	"time"

	"github.com/tigerroll/batchcore/pkg/batch/adapter/database"
	"github.com/tigerroll/batchcore/pkg/batch/component/step/reader"
	port "github.com/tigerroll/batchcore/pkg/batch/core/application/port"
	config "github.com/tigerroll/batchcore/pkg/batch/core/config"
	model "github.com/tigerroll/batchcore/pkg/batch/core/domain/model"
	"github.com/tigerroll/batchcore/pkg/batch/core/domain/repository"
	metrics "github.com/tigerroll/batchcore/pkg/batch/core/metrics"
	tx "github.com/tigerroll/batchcore/pkg/batch/core/tx"
	"github.com/tigerroll/batchcore/pkg/batch/support/util/exception"
	"github.com/tigerroll/batchcore/pkg/batch/support/util/logger"
)

const (
	// ModeParameter selects how the job reads its input: "queue" (default) keeps polling the
	// mail table, "once" processes the current rows and resumes after a failure.
	ModeParameter = "mode"
	ModeQueue     = "queue"
	ModeOnce      = "once"

	createTableSQL = `CREATE TABLE IF NOT EXISTS mail_request (
	mail_id   INTEGER      NOT NULL PRIMARY KEY,
	recipient VARCHAR(256) NOT NULL,
	status    CHAR(1)      NOT NULL DEFAULT '0'
)`
	pendingMailsSQL = "SELECT mail_id, recipient FROM mail_request WHERE status = '0' ORDER BY mail_id"
	allMailsSQL     = "SELECT mail_id, recipient, status FROM mail_request ORDER BY mail_id"
	markSentSQL     = "UPDATE mail_request SET status = '1' WHERE mail_id = ?"
	markFailedSQL   = "UPDATE mail_request SET status = '9' WHERE mail_id = ?"
)

// MailJob sends every pending row of mail_request and marks it as sent.
type MailJob struct {
	port.NoOpLifecycle[*model.Record]

	conn        database.DBConnection
	txManager   tx.TransactionManager
	checkpoints repository.CheckpointStore
	recorder    metrics.MetricRecorder
	queue       config.QueueConfig

	mode string
}

// NewMailJob creates a MailJob.
func NewMailJob(conn database.DBConnection, txManager tx.TransactionManager, checkpoints repository.CheckpointStore, recorder metrics.MetricRecorder, cfg *config.Config) *MailJob {
	return &MailJob{
		conn:        conn,
		txManager:   txManager,
		checkpoints: checkpoints,
		recorder:    recorder,
		queue:       cfg.Batchcore.Queue,
	}
}

// Initialize creates the mail table and reads the mode parameter.
func (j *MailJob) Initialize(ctx context.Context, params model.JobParameters, rc *model.RunContext) error {
	j.mode = ModeQueue
	if mode, ok := params.GetString(ModeParameter); ok {
		j.mode = mode
	}
	if j.mode != ModeQueue && j.mode != ModeOnce {
		return exception.NewConfigurationError("mail_job", "unknown mode. mode = [%s]", j.mode)
	}
	return tx.Execute(ctx, j.txManager, func(ctx context.Context, t tx.Tx) error {
		_, err := t.Exec(ctx, createTableSQL)
		return err
	})
}

// CreateReader implements port.JobAction.
func (j *MailJob) CreateReader(ctx context.Context, rc *model.RunContext) (port.DataReader[*model.Record], error) {
	if j.mode == ModeOnce {
		source := reader.NewDatabaseRecordReader(j.conn, allMailsSQL)
		return reader.NewResumeReader[*model.Record](source, j.checkpoints).WithRecorder(j.recorder), nil
	}

	source := reader.NewDatabaseRecordReader(j.conn, pendingMailsSQL)
	queue, err := reader.NewTableQueueReader(source, time.Duration(j.queue.WaitIntervalMS)*time.Millisecond, j.queue.PrimaryKeys...)
	if err != nil {
		return nil, err
	}
	return queue.WithRecorder(j.recorder), nil
}

// Handle implements port.JobAction.
func (j *MailJob) Handle(ctx context.Context, record *model.Record, rc *model.RunContext) (model.Result, error) {
	if record.GetString("status") == "1" {
		return model.Success(), nil
	}
	id, ok := record.GetInt64("mail_id")
	if !ok {
		return model.Result{}, exception.NewBatchErrorf("mail_job", "mail_id was not found in record. record = %s", record)
	}
	recipient := record.GetString("recipient")
	logger.Infof("sending mail. mail id=[%d], recipient=[%s], worker=[%s]", id, recipient, rc.WorkerID)

	if _, err := tx.ExecutorFrom(ctx, j.conn).Exec(ctx, markSentSQL, id); err != nil {
		return model.Result{}, err
	}
	return model.Success(), nil
}

// OnRollback marks the mail that could not be sent so the queue does not pick it up again.
func (j *MailJob) OnRollback(ctx context.Context, record *model.Record, rc *model.RunContext) error {
	id, ok := record.GetInt64("mail_id")
	if !ok {
		return nil
	}
	_, err := tx.ExecutorFrom(ctx, j.conn).Exec(ctx, markFailedSQL, id)
	return err
}

// Terminate logs the outcome of the run.
func (j *MailJob) Terminate(ctx context.Context, result model.Result, rc *model.RunContext) {
	logger.Infof("mail job finished. mode=[%s], sent=[%d], exit code=[%d]", j.mode, result.CommitCount, result.ExitCode)
}

var (
	_ port.JobAction[*model.Record]                = (*MailJob)(nil)
	_ port.Initializer                             = (*MailJob)(nil)
	_ port.TransactionEventCallback[*model.Record] = (*MailJob)(nil)
	_ port.Terminator                              = (*MailJob)(nil)
)
