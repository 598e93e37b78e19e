package runner

import (
	"context"
	"errors"

	port "github.com/tigerroll/batchcore/pkg/batch/core/application/port"
	model "github.com/tigerroll/batchcore/pkg/batch/core/domain/model"
	tx "github.com/tigerroll/batchcore/pkg/batch/core/tx"
	"github.com/tigerroll/batchcore/pkg/batch/support/util/exception"
	"github.com/tigerroll/batchcore/pkg/batch/support/util/logger"
)

// claimReleaser is implemented by readers that hold per-worker claims on the records read
// into the open transaction.
type claimReleaser interface {
	Release(workerID string)
}

// batch is the open transaction of a worker and the records handled in it.
type batch[T any] struct {
	t       tx.Tx
	ctx     context.Context
	end     func()
	records []T
}

// worker pulls records one at a time and runs each through the handlers, the action and
// the transaction boundary before pulling the next.
type worker[T any] struct {
	runner *Runner[T]
	rc     *model.RunContext
	reader port.DataReader[T]
	stats  *stats

	current *batch[T]
}

func (w *worker[T]) run(ctx context.Context) (err error) {
	r := w.runner
	defer func() {
		if w.current != nil {
			w.rollback(ctx, err)
		}
		w.releaseClaims()
		w.rc.ClearCommitSignal()
	}()

	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return exception.NewBatchErrorf(runnerModule, "batch run was interrupted. request id=[%s], worker=[%s]",
				w.rc.JobID, w.rc.WorkerID, ctxErr)
		}

		hasNext, err := w.reader.HasNext(ctx, w.rc)
		if err != nil {
			return err
		}
		if !hasNext {
			return w.commit()
		}

		if w.current == nil {
			if err := w.begin(ctx); err != nil {
				return err
			}
		}
		b := w.current

		w.rc.SetAboutToCommit(len(b.records)+1 >= r.settings.CommitInterval)
		for _, h := range r.chain.Record {
			if err := h.BeforeRecord(b.ctx, w.rc); err != nil {
				return err
			}
		}

		record, err := w.reader.Read(b.ctx, w.rc)
		if errors.Is(err, port.ErrNoMoreItems) {
			if err := w.commit(); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}
		w.stats.read.Add(1)
		r.recorder.RecordRecordRead(b.ctx, w.rc.JobID)

		if _, err := r.action.Handle(b.ctx, record, w.rc); err != nil {
			w.rollback(ctx, err)
			w.onRollback(ctx, record)
			return err
		}

		b.records = append(b.records, record)
		if len(b.records) >= r.settings.CommitInterval {
			if err := w.commit(); err != nil {
				return err
			}
		}
	}
}

func (w *worker[T]) begin(ctx context.Context) error {
	t, err := w.runner.txManager.Begin(ctx)
	if err != nil {
		return exception.NewBatchErrorf(runnerModule, "failed to begin transaction. worker=[%s]", w.rc.WorkerID, err)
	}
	txCtx, end := w.runner.tracer.StartBatchSpan(tx.WithTx(ctx, t), w.rc)
	w.current = &batch[T]{t: t, ctx: txCtx, end: end}
	return nil
}

// commit runs the OnCommit callbacks of the pending records in the open transaction and
// commits it. The claims on the records are released once the commit returns, whatever its
// outcome. It does nothing when no transaction is open.
func (w *worker[T]) commit() error {
	b := w.current
	if b == nil {
		return nil
	}
	r := w.runner

	if cb, ok := r.action.(port.TransactionEventCallback[T]); ok {
		for _, record := range b.records {
			if err := cb.OnCommit(b.ctx, record, w.rc); err != nil {
				return err
			}
		}
	}

	w.current = nil
	defer b.end()
	defer w.releaseClaims()
	if err := r.txManager.Commit(b.t); err != nil {
		return exception.NewBatchErrorf(runnerModule, "failed to commit transaction. worker=[%s]", w.rc.WorkerID, err)
	}
	if len(b.records) > 0 {
		w.stats.committed.Add(int64(len(b.records)))
		r.recorder.RecordCommit(b.ctx, w.rc.JobID, len(b.records))
		logger.Debugf("committed %d records. request id=[%s], worker=[%s]", len(b.records), w.rc.JobID, w.rc.WorkerID)
	}
	return nil
}

// rollback rolls back the open transaction. Failures are logged; cause stays the primary error.
func (w *worker[T]) rollback(ctx context.Context, cause error) {
	b := w.current
	if b == nil {
		return
	}
	w.current = nil
	defer b.end()

	r := w.runner
	if err := r.txManager.Rollback(b.t); err != nil {
		logger.Warnf("failed to roll back transaction. worker=[%s]: %v", w.rc.WorkerID, err)
	}
	w.stats.rollbacks.Add(1)
	r.recorder.RecordRollback(ctx, w.rc.JobID)
	if cause != nil {
		r.tracer.RecordError(b.ctx, runnerModule, cause)
	}
}

// releaseClaims lets other workers pick up the records of the finished transaction.
// A rolled back worker releases only when it stops, after its OnRollback callback ran.
func (w *worker[T]) releaseClaims() {
	if rel, ok := w.reader.(claimReleaser); ok {
		rel.Release(w.rc.WorkerID)
	}
}

// onRollback calls OnRollback for the failed record in a new transaction.
func (w *worker[T]) onRollback(ctx context.Context, record T) {
	cb, ok := w.runner.action.(port.TransactionEventCallback[T])
	if !ok {
		return
	}
	err := tx.Execute(context.WithoutCancel(ctx), w.runner.txManager, func(ctx context.Context, _ tx.Tx) error {
		return cb.OnRollback(ctx, record, w.rc)
	})
	if err != nil {
		logger.Warnf("failed to run rollback callback. request id=[%s], worker=[%s]: %v", w.rc.JobID, w.rc.WorkerID, err)
	}
}
