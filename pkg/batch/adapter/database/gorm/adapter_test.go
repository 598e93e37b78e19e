package gorm_test

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	testifymock "github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	dbconfig "github.com/tigerroll/batchcore/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/batchcore/pkg/batch/adapter/database/gorm"
	tx "github.com/tigerroll/batchcore/pkg/batch/core/tx"
	"github.com/tigerroll/batchcore/pkg/batch/test"
)

// setupMockAdapter opens a gorm connection over sqlmock using the MySQL dialect.
func setupMockAdapter(t *testing.T) (*gormadapter.GormDBAdapter, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{SkipDefaultTransaction: true, Logger: gormadapter.NewGormLogger("SILENT")})
	require.NoError(t, err)

	conn, err := gormadapter.NewGormDBAdapter(gormDB, dbconfig.DatabaseConfig{Type: "mysql"}, "batch")
	require.NoError(t, err)
	t.Cleanup(func() {
		mock.ExpectClose()
		_ = conn.Close()
	})
	return conn, mock
}

func TestGormDBAdapter_Exec(t *testing.T) {
	conn, mock := setupMockAdapter(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE batch_request SET process_active_flg = '0' WHERE request_id = ?")).
		WithArgs("J1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	affected, err := conn.Exec(context.Background(), "UPDATE batch_request SET process_active_flg = '0' WHERE request_id = ?", "J1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)
	assert.Equal(t, "mysql", conn.Type())
	assert.Equal(t, "batch", conn.Name())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormDBAdapter_Query(t *testing.T) {
	conn, mock := setupMockAdapter(t)

	rows := sqlmock.NewRows([]string{"MAIL_ID", "recipient"}).
		AddRow(int64(1), []byte("a@example.com")).
		AddRow(int64(2), "b@example.com")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT mail_id, recipient FROM mail_request WHERE status = ?")).
		WithArgs("0").
		WillReturnRows(rows)

	records, err := conn.Query(context.Background(), "SELECT mail_id, recipient FROM mail_request WHERE status = ?", "0")
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, []string{"MAIL_ID", "recipient"}, records[0].Columns())
	id, ok := records[0].GetInt64("mail_id")
	assert.True(t, ok)
	assert.Equal(t, int64(1), id)
	assert.Equal(t, "a@example.com", records[0].GetString("recipient"))
	assert.Equal(t, "b@example.com", records[1].GetString("RECIPIENT"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormDBAdapter_QueryError(t *testing.T) {
	conn, mock := setupMockAdapter(t)

	mock.ExpectQuery("SELECT").WillReturnError(&mysqldriver.MySQLError{Number: 1146, Message: "Table 'batch.mail_request' doesn't exist"})

	_, err := conn.Query(context.Background(), "SELECT * FROM mail_request")
	require.Error(t, err)
	assert.True(t, conn.IsTableNotExistError(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormDBAdapter_ExecuteUpsert(t *testing.T) {
	conn, mock := setupMockAdapter(t)

	mock.ExpectExec("INSERT INTO `batch_request` .*ON DUPLICATE KEY UPDATE `resume_point`").
		WillReturnResult(sqlmock.NewResult(0, 1))

	row := map[string]interface{}{"request_id": "J1", "resume_point": 3}
	affected, err := conn.ExecuteUpsert(context.Background(), row, "batch_request", []string{"request_id"}, []string{"resume_point"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsTableNotExistError(t *testing.T) {
	conn, _ := setupMockAdapter(t)

	assert.False(t, conn.IsTableNotExistError(nil))
	assert.True(t, conn.IsTableNotExistError(&mysqldriver.MySQLError{Number: 1146}))
	assert.False(t, conn.IsTableNotExistError(&mysqldriver.MySQLError{Number: 1062}))
	assert.True(t, conn.IsTableNotExistError(fmt.Errorf("query: %w", &pgconn.PgError{Code: "42P01", Message: `relation "batch_request" does not exist`})))
	assert.False(t, conn.IsTableNotExistError(&pgconn.PgError{Code: "23505"}))
	assert.True(t, conn.IsTableNotExistError(errors.New("no such table: batch_request")))
	assert.False(t, conn.IsTableNotExistError(errors.New("database is locked")))
}

func TestGormTransactionManager(t *testing.T) {
	conn, mock := setupMockAdapter(t)
	tm := gormadapter.NewGormTransactionManager(gormadapter.NewStaticResolver(conn), "batch")

	t.Run("commit", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("UPDATE mail_request SET status = ? WHERE mail_id = ?")).
			WithArgs("1", 7).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := tx.Execute(context.Background(), tm, func(ctx context.Context, t tx.Tx) error {
			_, err := tx.ExecutorFrom(ctx, conn).Exec(ctx, "UPDATE mail_request SET status = ? WHERE mail_id = ?", "1", 7)
			return err
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rollback", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE").WillReturnError(errors.New("deadlock"))
		mock.ExpectRollback()

		err := tx.Execute(context.Background(), tm, func(ctx context.Context, t tx.Tx) error {
			_, err := t.Exec(ctx, "UPDATE mail_request SET status = '9'")
			return err
		})
		assert.ErrorContains(t, err, "deadlock")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown connection", func(t *testing.T) {
		other := gormadapter.NewGormTransactionManager(gormadapter.NewStaticResolver(conn), "missing")
		_, err := other.Begin(context.Background())
		assert.ErrorContains(t, err, "connection 'missing' is not registered")
	})
}

func TestGormTransactionManagerFactory(t *testing.T) {
	conn, sqlMock := setupMockAdapter(t)

	resolver := &test.MockDBConnectionResolver{}
	resolver.On("ResolveDBConnection", testifymock.Anything, "batch").Return(conn, nil)
	resolver.On("ResolveDBConnection", testifymock.Anything, "down").Return(nil, errors.New("connection refused"))

	tm := gormadapter.NewGormTransactionManagerFactory(resolver).NewTransactionManager("batch")
	sqlMock.ExpectBegin()
	sqlMock.ExpectCommit()
	require.NoError(t, tx.Execute(context.Background(), tm, func(context.Context, tx.Tx) error { return nil }))
	assert.NoError(t, sqlMock.ExpectationsWereMet())

	down := gormadapter.NewGormTransactionManagerFactory(resolver).NewTransactionManager("down")
	_, err := down.Begin(context.Background())
	assert.EqualError(t, err, "failed to resolve DB connection 'down' for transaction: connection refused")

	resolver.AssertExpectations(t)
}
