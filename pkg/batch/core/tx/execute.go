package tx

import (
	"context"
	"fmt"

	"github.com/tigerroll/batchcore/pkg/batch/support/util/logger"
)

// Execute runs fn in a new transaction started by tm. The transaction is carried by the
// context passed to fn. It is committed when fn returns nil and rolled back otherwise.
// A panic in fn rolls the transaction back and is re-raised.
func Execute(ctx context.Context, tm TransactionManager, fn func(ctx context.Context, t Tx) error) (err error) {
	t, err := tm.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			if rbErr := tm.Rollback(t); rbErr != nil {
				logger.Warnf("failed to roll back transaction after panic: %v", rbErr)
			}
			panic(p)
		}
	}()

	if err = fn(WithTx(ctx, t), t); err != nil {
		if rbErr := tm.Rollback(t); rbErr != nil {
			logger.Warnf("failed to roll back transaction: %v", rbErr)
		}
		return err
	}

	if err = tm.Commit(t); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
