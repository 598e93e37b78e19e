package runner_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/batchcore/pkg/batch/component/step/reader"
	port "github.com/tigerroll/batchcore/pkg/batch/core/application/port"
	config "github.com/tigerroll/batchcore/pkg/batch/core/config"
	model "github.com/tigerroll/batchcore/pkg/batch/core/domain/model"
	tx "github.com/tigerroll/batchcore/pkg/batch/core/tx"
	"github.com/tigerroll/batchcore/pkg/batch/engine/runner"
)

// queueTable emulates a request table whose rows leave the queue once the transaction that
// processed them commits. Rows processed in a transaction that is still open are invisible
// to that transaction only, like an updated status column would be.
type queueTable struct {
	mu      sync.Mutex
	ids     []string
	done    map[string]bool
	handled map[string]int
	// drained is called once every row was committed.
	drained func()
}

func newQueueTable(drained func(), ids ...string) *queueTable {
	return &queueTable{ids: ids, done: make(map[string]bool), handled: make(map[string]int), drained: drained}
}

func (q *queueTable) process(ctx context.Context, id string) {
	t, _ := tx.FromContext(ctx)
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handled[id]++
	t.(*queueTx).pending[id] = true
}

func (q *queueTable) handleCounts() map[string]int {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make(map[string]int, len(q.handled))
	for id, n := range q.handled {
		out[id] = n
	}
	return out
}

// pendingRows lists the rows a query executed within ctx's transaction would return.
func (q *queueTable) pendingRows(ctx context.Context) []*model.Record {
	var own map[string]bool
	if t, ok := tx.FromContext(ctx); ok {
		own = t.(*queueTx).pending
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []*model.Record
	for _, id := range q.ids {
		if q.done[id] || own[id] {
			continue
		}
		r := model.NewRecord()
		r.Set("id", id)
		out = append(out, r)
	}
	return out
}

type queueTx struct {
	pending map[string]bool
}

func (*queueTx) Exec(context.Context, string, ...interface{}) (int64, error) { return 0, nil }
func (*queueTx) Query(context.Context, string, ...interface{}) ([]*model.Record, error) {
	return nil, nil
}
func (*queueTx) ExecuteUpsert(context.Context, interface{}, string, []string, []string) (int64, error) {
	return 0, nil
}

type queueTxManager struct {
	table *queueTable
}

func (m *queueTxManager) Begin(context.Context, ...*sql.TxOptions) (tx.Tx, error) {
	return &queueTx{pending: make(map[string]bool)}, nil
}

func (m *queueTxManager) Commit(t tx.Tx) error {
	q := m.table
	q.mu.Lock()
	for id := range t.(*queueTx).pending {
		q.done[id] = true
	}
	drained := len(q.done) == len(q.ids)
	q.mu.Unlock()
	if drained {
		q.drained()
	}
	return nil
}

func (m *queueTxManager) Rollback(tx.Tx) error { return nil }

// queueQuery re-executes its query against the table on Reopen.
type queueQuery struct {
	table *queueTable

	mu   sync.Mutex
	rows []*model.Record
}

func (s *queueQuery) HasNext(context.Context, *model.RunContext) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows) > 0, nil
}

func (s *queueQuery) Read(context.Context, *model.RunContext) (*model.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.rows) == 0 {
		return nil, port.ErrNoMoreItems
	}
	r := s.rows[0]
	s.rows = s.rows[1:]
	return r, nil
}

func (s *queueQuery) Reopen(ctx context.Context, _ *model.RunContext) error {
	rows := s.table.pendingRows(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = rows
	return nil
}

func (s *queueQuery) Close(context.Context) error { return nil }

func TestRunner_QueueWorkersNeverHandleARowTwice(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	table := newQueueTable(cancel, "1", "2", "3", "4")
	action := newRecordingAction()
	action.newReader = func() port.DataReader[*model.Record] {
		r, err := reader.NewTableQueueReader(&queueQuery{table: table}, time.Millisecond, "id")
		require.NoError(t, err)
		return r
	}
	action.handle = func(ctx context.Context, record *model.Record, _ *model.RunContext) error {
		table.process(ctx, record.GetString("id"))
		return nil
	}

	r, err := runner.New[*model.Record](action, &queueTxManager{table: table},
		runner.Settings{JobID: "MAIL01", Concurrency: 2, CommitInterval: 3})
	require.NoError(t, err)

	result := r.Run(ctx, nil)

	// The queue never ends: the run is interrupted once every row was committed.
	require.NotErrorIs(t, ctx.Err(), context.DeadlineExceeded, "the queue was not drained")
	assert.Equal(t, config.DefaultInterruptedExitCode, result.ExitCode)
	assert.Equal(t, map[string]int{"1": 1, "2": 1, "3": 1, "4": 1}, table.handleCounts())
	assert.Equal(t, int64(4), result.CommitCount)
}
