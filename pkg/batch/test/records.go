package test

import (
	"context"
	"sync"

	port "github.com/tigerroll/batchcore/pkg/batch/core/application/port"
	model "github.com/tigerroll/batchcore/pkg/batch/core/domain/model"
)

// NewRecord builds a record from alternating column names and values.
func NewRecord(kv ...interface{}) *model.Record {
	r := model.NewRecord()
	for i := 0; i+1 < len(kv); i += 2 {
		r.Set(kv[i].(string), kv[i+1])
	}
	return r
}

// SliceReader is an in-memory DataReader over a fixed list of records.
// Reopen rewinds it to the records appended since the last pass.
type SliceReader struct {
	mu      sync.Mutex
	records []*model.Record
	pos     int
	closed  bool
	reopens int
}

// NewSliceReader creates a SliceReader over records.
func NewSliceReader(records ...*model.Record) *SliceReader {
	return &SliceReader{records: records}
}

// Append adds records at the end of the source.
func (s *SliceReader) Append(records ...*model.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, records...)
}

func (s *SliceReader) HasNext(context.Context, *model.RunContext) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos < len(s.records), nil
}

func (s *SliceReader) Read(context.Context, *model.RunContext) (*model.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos >= len(s.records) {
		return nil, port.ErrNoMoreItems
	}
	r := s.records[s.pos]
	s.pos++
	return r, nil
}

// Reopen restarts reading from the first record.
func (s *SliceReader) Reopen(context.Context, *model.RunContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pos = 0
	s.reopens++
	return nil
}

func (s *SliceReader) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close was called.
func (s *SliceReader) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Reopens returns the number of Reopen calls.
func (s *SliceReader) Reopens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reopens
}
