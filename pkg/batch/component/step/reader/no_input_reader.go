package reader

import (
	"context"
	"sync"

	"github.com/tigerroll/batchcore/pkg/batch/core/application/port"
	"github.com/tigerroll/batchcore/pkg/batch/core/domain/model"
)

// NoInputReader yields exactly one empty record, for jobs that run Handle once without
// input data.
type NoInputReader struct {
	mu   sync.Mutex
	done bool
}

// NewNoInputReader creates a NoInputReader.
func NewNoInputReader() *NoInputReader {
	return &NoInputReader{}
}

// HasNext implements port.DataReader.
func (r *NoInputReader) HasNext(context.Context, *model.RunContext) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.done, nil
}

// Read implements port.DataReader.
func (r *NoInputReader) Read(context.Context, *model.RunContext) (*model.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		return nil, port.ErrNoMoreItems
	}
	r.done = true
	return model.NewRecord(), nil
}

// Close implements port.DataReader.
func (r *NoInputReader) Close(context.Context) error {
	return nil
}

var _ port.DataReader[*model.Record] = (*NoInputReader)(nil)
