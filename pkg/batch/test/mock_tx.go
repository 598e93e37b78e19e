package test

import (
	"context"
	"database/sql"

	"github.com/stretchr/testify/mock"

	model "github.com/tigerroll/batchcore/pkg/batch/core/domain/model"
	tx "github.com/tigerroll/batchcore/pkg/batch/core/tx"
)

// MockTx is a mock implementation of the tx.Tx interface.
// It allows isolated testing of components that execute statements in a transaction.
type MockTx struct {
	mock.Mock
}

// Exec mocks the Exec method of tx.Executor.
func (m *MockTx) Exec(ctx context.Context, query string, args ...interface{}) (int64, error) {
	called := m.Called(ctx, query, args)
	return called.Get(0).(int64), called.Error(1)
}

// Query mocks the Query method of tx.Executor.
func (m *MockTx) Query(ctx context.Context, query string, args ...interface{}) ([]*model.Record, error) {
	called := m.Called(ctx, query, args)
	if called.Get(0) == nil {
		return nil, called.Error(1)
	}
	return called.Get(0).([]*model.Record), called.Error(1)
}

// ExecuteUpsert mocks the ExecuteUpsert method of tx.Executor.
func (m *MockTx) ExecuteUpsert(ctx context.Context, model interface{}, tableName string, conflictColumns []string, updateColumns []string) (int64, error) {
	called := m.Called(ctx, model, tableName, conflictColumns, updateColumns)
	return called.Get(0).(int64), called.Error(1)
}

// MockTxManager is a mock implementation of the tx.TransactionManager interface.
// It allows for mocking the lifecycle of transactions (Begin, Commit, Rollback).
type MockTxManager struct {
	mock.Mock
}

// Begin mocks the Begin method of tx.TransactionManager.
// It records the call and returns a mock Tx instance or an error.
func (m *MockTxManager) Begin(ctx context.Context, opts ...*sql.TxOptions) (tx.Tx, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(tx.Tx), args.Error(1)
}

// Commit mocks the Commit method of tx.TransactionManager.
func (m *MockTxManager) Commit(t tx.Tx) error {
	return m.Called(t).Error(0)
}

// Rollback mocks the Rollback method of tx.TransactionManager.
func (m *MockTxManager) Rollback(t tx.Tx) error {
	return m.Called(t).Error(0)
}

var (
	_ tx.Tx                 = (*MockTx)(nil)
	_ tx.TransactionManager = (*MockTxManager)(nil)
)
