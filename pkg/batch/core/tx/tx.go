// Package tx provides the transaction abstraction used by the batch engine.
// Components never see a concrete database transaction; they receive a Tx through the
// context and run their statements on it, so that reads, writes and checkpoint updates of
// one batch share the same commit boundary.
package tx

import (
	"context"
	"database/sql"

	"github.com/tigerroll/batchcore/pkg/batch/core/domain/model"
)

// Executor runs SQL statements. It is implemented both by a DB connection and by Tx, so
// that data access looks the same regardless of the presence of a transaction.
//
// Statements use "?" placeholders; the implementation rewrites them for the dialect in use.
type Executor interface {
	// Exec runs a write statement and returns the number of affected rows.
	Exec(ctx context.Context, query string, args ...interface{}) (rowsAffected int64, err error)

	// Query runs a read statement and returns every row as a Record, in result order.
	Query(ctx context.Context, query string, args ...interface{}) ([]*model.Record, error)

	// ExecuteUpsert inserts model into tableName. On a conflict over conflictColumns the
	// updateColumns are overwritten, or nothing happens when updateColumns is empty.
	ExecuteUpsert(ctx context.Context, model interface{}, tableName string, conflictColumns []string, updateColumns []string) (rowsAffected int64, err error)
}

// Tx represents an ongoing database transaction. It is ended by the TransactionManager
// that began it.
type Tx interface {
	Executor
}

// TransactionManager manages the lifecycle of database transactions.
type TransactionManager interface {
	// Begin starts a new transaction.
	Begin(ctx context.Context, opts ...*sql.TxOptions) (Tx, error)
	// Commit persists all changes made within t.
	Commit(t Tx) error
	// Rollback undoes all changes made within t.
	Rollback(t Tx) error
}

type txKey struct{}

// WithTx returns a copy of ctx carrying t.
func WithTx(ctx context.Context, t Tx) context.Context {
	return context.WithValue(ctx, txKey{}, t)
}

// FromContext returns the transaction carried by ctx, if any.
func FromContext(ctx context.Context) (Tx, bool) {
	t, ok := ctx.Value(txKey{}).(Tx)
	return t, ok && t != nil
}

// ExecutorFrom returns the transaction carried by ctx, or fallback when there is none.
func ExecutorFrom(ctx context.Context, fallback Executor) Executor {
	if t, ok := FromContext(ctx); ok {
		return t
	}
	return fallback
}
