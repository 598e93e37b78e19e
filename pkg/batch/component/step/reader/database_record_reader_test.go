package reader_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/batchcore/pkg/batch/component/step/reader"
	"github.com/tigerroll/batchcore/pkg/batch/core/application/port"
	model "github.com/tigerroll/batchcore/pkg/batch/core/domain/model"
	tx "github.com/tigerroll/batchcore/pkg/batch/core/tx"
	"github.com/tigerroll/batchcore/pkg/batch/test"
)

func TestDatabaseRecordReader(t *testing.T) {
	env := test.NewSQLiteEnv(t)
	env.MustExec(t, "CREATE TABLE mail_request (mail_id INTEGER PRIMARY KEY, status CHAR(1) NOT NULL)")
	env.MustExec(t, "INSERT INTO mail_request (mail_id, status) VALUES (1, '9'), (2, '0')")

	listenerCalls := 0
	r := reader.NewDatabaseRecordReader(env.Conn, "SELECT mail_id FROM mail_request WHERE status = ? ORDER BY mail_id", "0").
		SetListener(reader.DatabaseRecordListenerFunc(func(ctx context.Context, exec tx.Executor) error {
			listenerCalls++
			// Failed rows are queued again before each query.
			_, err := exec.Exec(ctx, "UPDATE mail_request SET status = '0' WHERE status = '9'")
			return err
		}))
	rc := model.NewRunContext("MAIL01", nil, 1)
	ctx := context.Background()

	hasNext, err := r.HasNext(ctx, rc)
	require.NoError(t, err)
	assert.True(t, hasNext)
	assert.Equal(t, 1, listenerCalls)

	var ids []int64
	for {
		record, err := r.Read(ctx, rc)
		if errors.Is(err, port.ErrNoMoreItems) {
			break
		}
		require.NoError(t, err)
		id, _ := record.GetInt64("mail_id")
		ids = append(ids, id)
	}
	assert.Equal(t, []int64{1, 2}, ids)

	env.MustExec(t, "INSERT INTO mail_request (mail_id, status) VALUES (3, '0')")
	require.NoError(t, r.Reopen(ctx, rc))
	assert.Equal(t, 2, listenerCalls)
	hasNext, _ = r.HasNext(ctx, rc)
	assert.True(t, hasNext)

	require.NoError(t, r.Close(ctx))
	hasNext, _ = r.HasNext(ctx, rc)
	assert.True(t, hasNext, "the query runs again after Close")
	assert.Equal(t, 3, listenerCalls)
}

func TestDatabaseRecordReader_Errors(t *testing.T) {
	env := test.NewSQLiteEnv(t)
	rc := model.NewRunContext("MAIL01", nil, 1)
	ctx := context.Background()

	r := reader.NewDatabaseRecordReader(env.Conn, "SELECT * FROM missing_table")
	_, err := r.Read(ctx, rc)
	require.Error(t, err)
	assert.ErrorContains(t, err, "failed to execute query. sql=[SELECT * FROM missing_table]")
	assert.True(t, env.Conn.IsTableNotExistError(err))

	boom := errors.New("boom")
	r = reader.NewDatabaseRecordReader(env.Conn, "SELECT 1").
		SetListener(reader.DatabaseRecordListenerFunc(func(context.Context, tx.Executor) error { return boom }))
	_, err = r.HasNext(ctx, rc)
	assert.ErrorIs(t, err, boom)
}

func TestNoInputReader(t *testing.T) {
	r := reader.NewNoInputReader()
	rc := model.NewRunContext("J1", nil, 1)
	ctx := context.Background()

	hasNext, _ := r.HasNext(ctx, rc)
	assert.True(t, hasNext)
	record, err := r.Read(ctx, rc)
	require.NoError(t, err)
	assert.Zero(t, record.Len())

	hasNext, _ = r.HasNext(ctx, rc)
	assert.False(t, hasNext)
	_, err = r.Read(ctx, rc)
	assert.ErrorIs(t, err, port.ErrNoMoreItems)
	assert.NoError(t, r.Close(ctx))
}
