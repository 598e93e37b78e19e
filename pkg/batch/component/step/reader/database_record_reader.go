package reader

import (
	"context"
	"sync"

	"github.com/tigerroll/batchcore/pkg/batch/core/application/port"
	"github.com/tigerroll/batchcore/pkg/batch/core/domain/model"
	tx "github.com/tigerroll/batchcore/pkg/batch/core/tx"
	"github.com/tigerroll/batchcore/pkg/batch/support/util/exception"
	"github.com/tigerroll/batchcore/pkg/batch/support/util/logger"
)

// DatabaseRecordListener is called before a DatabaseRecordReader executes its query.
// A typical use is resetting the status of rows that should be picked up again.
type DatabaseRecordListener interface {
	BeforeReadRecords(ctx context.Context, exec tx.Executor) error
}

// DatabaseRecordListenerFunc adapts a function to DatabaseRecordListener.
type DatabaseRecordListenerFunc func(ctx context.Context, exec tx.Executor) error

// BeforeReadRecords implements DatabaseRecordListener.
func (f DatabaseRecordListenerFunc) BeforeReadRecords(ctx context.Context, exec tx.Executor) error {
	return f(ctx, exec)
}

// DatabaseRecordReader reads the rows of one query. The query is executed lazily on the
// first HasNext or Read and again on every Reopen; rows are buffered in memory.
//
// The query runs on the transaction carried by the context, or on conn when there is none.
type DatabaseRecordReader struct {
	conn     tx.Executor
	query    string
	args     []interface{}
	listener DatabaseRecordListener

	mu       sync.Mutex
	records  []*model.Record
	position int
	loaded   bool
}

// NewDatabaseRecordReader creates a DatabaseRecordReader for query and its arguments.
func NewDatabaseRecordReader(conn tx.Executor, query string, args ...interface{}) *DatabaseRecordReader {
	return &DatabaseRecordReader{
		conn:  conn,
		query: query,
		args:  args,
	}
}

// SetListener sets the listener called before each query execution and returns r.
func (r *DatabaseRecordReader) SetListener(listener DatabaseRecordListener) *DatabaseRecordReader {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listener = listener
	return r
}

// HasNext implements port.DataReader.
func (r *DatabaseRecordReader) HasNext(ctx context.Context, _ *model.RunContext) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ensureLoaded(ctx); err != nil {
		return false, err
	}
	return r.position < len(r.records), nil
}

// Read implements port.DataReader. It returns port.ErrNoMoreItems once the rows are used up.
func (r *DatabaseRecordReader) Read(ctx context.Context, _ *model.RunContext) (*model.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	if r.position >= len(r.records) {
		return nil, port.ErrNoMoreItems
	}
	record := r.records[r.position]
	r.position++
	return record, nil
}

// Reopen implements port.Reopener.
func (r *DatabaseRecordReader) Reopen(ctx context.Context, _ *model.RunContext) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(ctx)
}

// Close implements port.DataReader.
func (r *DatabaseRecordReader) Close(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = nil
	r.position = 0
	r.loaded = false
	return nil
}

func (r *DatabaseRecordReader) ensureLoaded(ctx context.Context) error {
	if r.loaded {
		return nil
	}
	return r.load(ctx)
}

func (r *DatabaseRecordReader) load(ctx context.Context) error {
	exec := tx.ExecutorFrom(ctx, r.conn)
	if r.listener != nil {
		if err := r.listener.BeforeReadRecords(ctx, exec); err != nil {
			return exception.NewBatchErrorf("database_reader", "listener failed before reading records.", err)
		}
	}
	records, err := exec.Query(ctx, r.query, r.args...)
	if err != nil {
		return exception.NewBatchErrorf("database_reader", "failed to execute query. sql=[%s]", r.query, err)
	}
	r.records = records
	r.position = 0
	r.loaded = true
	logger.Debugf("executed query. sql=[%s], rows=[%d]", r.query, len(records))
	return nil
}

var (
	_ port.DataReader[*model.Record] = (*DatabaseRecordReader)(nil)
	_ port.Reopener                  = (*DatabaseRecordReader)(nil)
)
