package reader_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/batchcore/pkg/batch/component/step/reader"
	"github.com/tigerroll/batchcore/pkg/batch/core/application/port"
	model "github.com/tigerroll/batchcore/pkg/batch/core/domain/model"
	"github.com/tigerroll/batchcore/pkg/batch/support/util/exception"
	"github.com/tigerroll/batchcore/pkg/batch/test"
)

func mails(ids ...int64) []*model.Record {
	out := make([]*model.Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, test.NewRecord("mail_id", id, "recipient", "user@example.com"))
	}
	return out
}

func TestNewTableQueueReader_InvalidKeys(t *testing.T) {
	_, err := reader.NewTableQueueReader(test.NewSliceReader(), 0)
	assert.ErrorIs(t, err, exception.ErrInvalidConfiguration)
	assert.ErrorContains(t, err, "primary keys must be set.")

	_, err = reader.NewTableQueueReader(test.NewSliceReader(), 0, "mail_id", "mail_id")
	assert.ErrorIs(t, err, exception.ErrInvalidConfiguration)
	assert.ErrorContains(t, err, "duplicated primary key")
}

func TestTableQueueReader_SkipsRowsClaimedByOtherWorkers(t *testing.T) {
	source := test.NewSliceReader(mails(1, 2)...)
	recorder := test.NewCountingRecorder()
	r, err := reader.NewTableQueueReader(source, 0, "mail_id")
	require.NoError(t, err)
	r.WithRecorder(recorder)

	root := model.NewRunContext("MAIL01", nil, 3)
	w1, w2, w3 := root.Fork(model.WorkerName(1)), root.Fork(model.WorkerName(2)), root.Fork(model.WorkerName(3))
	ctx := context.Background()

	first, err := r.Read(ctx, w1)
	require.NoError(t, err)
	assert.Equal(t, "1", first.GetString("mail_id"))

	second, err := r.Read(ctx, w2)
	require.NoError(t, err)
	assert.Equal(t, "2", second.GetString("mail_id"))

	// The query is executed again, but both rows are still being processed.
	_, err = r.Read(ctx, w3)
	assert.ErrorIs(t, err, port.ErrNoMoreItems)
	assert.Equal(t, 1, source.Reopens())
	assert.Equal(t, 1, recorder.Count("requery"))
	assert.Equal(t, map[string][]string{
		"worker-1": {"{mail_id=1}"},
		"worker-2": {"{mail_id=2}"},
	}, r.Claims())

	// Once worker-1 let go of its row, worker-3 may pick it up.
	r.Release(w1.WorkerID)
	got, err := r.Read(ctx, w3)
	require.NoError(t, err)
	assert.Equal(t, "1", got.GetString("mail_id"))
	assert.Equal(t, []string{"{mail_id=1}"}, r.Claims()["worker-3"])

	hasNext, err := r.HasNext(ctx, w3)
	require.NoError(t, err)
	assert.True(t, hasNext, "a queue never runs out")
}

func TestTableQueueReader_ClaimsAccumulateUntilRelease(t *testing.T) {
	source := test.NewSliceReader(mails(1, 2, 3)...)
	r, err := reader.NewTableQueueReader(source, 0, "mail_id")
	require.NoError(t, err)

	root := model.NewRunContext("MAIL01", nil, 2)
	w1, w2 := root.Fork(model.WorkerName(1)), root.Fork(model.WorkerName(2))
	ctx := context.Background()

	// worker-1 reads two rows into one uncommitted batch.
	for _, want := range []string{"1", "2"} {
		got, err := r.Read(ctx, w1)
		require.NoError(t, err)
		assert.Equal(t, want, got.GetString("mail_id"))
	}
	assert.Equal(t, []string{"{mail_id=1}", "{mail_id=2}"}, r.Claims()["worker-1"])

	got, err := r.Read(ctx, w2)
	require.NoError(t, err)
	assert.Equal(t, "3", got.GetString("mail_id"))

	// The re-executed query returns rows 1 to 3 again. All of them are still claimed.
	_, err = r.Read(ctx, w2)
	assert.ErrorIs(t, err, port.ErrNoMoreItems)
	assert.Equal(t, 1, source.Reopens())

	r.Release(w1.WorkerID)
	assert.NotContains(t, r.Claims(), "worker-1")
	got, err = r.Read(ctx, w2)
	require.NoError(t, err)
	assert.Equal(t, "1", got.GetString("mail_id"))
	assert.Equal(t, []string{"{mail_id=1}", "{mail_id=3}"}, r.Claims()["worker-2"])
}

func TestTableQueueReader_ConcurrentWorkersNeverShareARow(t *testing.T) {
	source := test.NewSliceReader(mails(1, 2, 3, 4)...)
	r, err := reader.NewTableQueueReader(source, 0, "mail_id")
	require.NoError(t, err)

	const workers = 8
	root := model.NewRunContext("MAIL01", nil, workers)
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		got  = make(map[string]string)
		idle int
	)
	for i := 1; i <= workers; i++ {
		wg.Add(1)
		go func(rc *model.RunContext) {
			defer wg.Done()
			record, err := r.Read(context.Background(), rc)
			mu.Lock()
			defer mu.Unlock()
			if errors.Is(err, port.ErrNoMoreItems) {
				idle++
				return
			}
			if assert.NoError(t, err) {
				got[record.GetString("mail_id")] = rc.WorkerID
			}
		}(root.Fork(model.WorkerName(i)))
	}
	wg.Wait()

	assert.Len(t, got, 4)
	assert.Equal(t, 4, idle)
	assert.Len(t, r.Claims(), 4)
}

func TestTableQueueReader_RequeryPicksUpNewRows(t *testing.T) {
	env := test.NewSQLiteEnv(t)
	env.MustExec(t, "CREATE TABLE mail_request (mail_id INTEGER PRIMARY KEY, status CHAR(1) NOT NULL)")
	env.MustExec(t, "INSERT INTO mail_request (mail_id, status) VALUES (1, '0')")

	source := reader.NewDatabaseRecordReader(env.Conn, "SELECT mail_id FROM mail_request WHERE status = '0' ORDER BY mail_id")
	r, err := reader.NewTableQueueReader(source, time.Millisecond, "mail_id")
	require.NoError(t, err)
	rc := model.NewRunContext("MAIL01", nil, 1).Fork(model.WorkerName(1))
	ctx := context.Background()

	record, err := r.Read(ctx, rc)
	require.NoError(t, err)
	id, _ := record.GetInt64("mail_id")
	assert.Equal(t, int64(1), id)
	env.MustExec(t, "UPDATE mail_request SET status = '1' WHERE mail_id = 1")

	_, err = r.Read(ctx, rc)
	assert.ErrorIs(t, err, port.ErrNoMoreItems)

	env.MustExec(t, "INSERT INTO mail_request (mail_id, status) VALUES (2, '0')")
	record, err = r.Read(ctx, rc)
	require.NoError(t, err)
	id, _ = record.GetInt64("mail_id")
	assert.Equal(t, int64(2), id)
}

func TestTableQueueReader_MissingKeyColumn(t *testing.T) {
	source := test.NewSliceReader(test.NewRecord("id", 1))
	r, err := reader.NewTableQueueReader(source, 0, "mail_id")
	require.NoError(t, err)

	_, err = r.Read(context.Background(), model.NewRunContext("MAIL01", nil, 1))
	assert.ErrorIs(t, err, exception.ErrMissingKeyColumn)
	assert.ErrorContains(t, err, "primary key was not found in request. primary key name = [mail_id].")
}

func TestTableQueueReader_WaitIsInterruptible(t *testing.T) {
	r, err := reader.NewTableQueueReader(test.NewSliceReader(), time.Hour, "mail_id")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	_, err = r.Read(ctx, model.NewRunContext("MAIL01", nil, 1))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Minute)
}

func TestTableQueueReader_Close(t *testing.T) {
	source := test.NewSliceReader()
	r, err := reader.NewTableQueueReader(source, 0, "mail_id")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, r.Close(ctx))
	assert.True(t, source.Closed())
	hasNext, err := r.HasNext(ctx, model.NewRunContext("MAIL01", nil, 1))
	require.NoError(t, err)
	assert.False(t, hasNext)
}
