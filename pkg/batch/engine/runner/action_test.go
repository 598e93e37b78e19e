package runner_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/stretchr/testify/mock"

	port "github.com/tigerroll/batchcore/pkg/batch/core/application/port"
	model "github.com/tigerroll/batchcore/pkg/batch/core/domain/model"
	"github.com/tigerroll/batchcore/pkg/batch/test"
)

// recordingAction is a JobAction that records every lifecycle call.
type recordingAction struct {
	newReader func() port.DataReader[*model.Record]
	initErr   error
	readerErr error
	// handle, when set, is called for every record before it is recorded as handled.
	handle func(ctx context.Context, record *model.Record, rc *model.RunContext) error

	mu         sync.Mutex
	events     []string
	handled    []string
	committed  []string
	rolledBack []string
	terminated []model.Result
}

func newRecordingAction(records ...*model.Record) *recordingAction {
	return &recordingAction{
		newReader: func() port.DataReader[*model.Record] { return test.NewSliceReader(records...) },
	}
}

func (a *recordingAction) event(format string, args ...interface{}) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, fmt.Sprintf(format, args...))
}

func (a *recordingAction) Initialize(context.Context, model.JobParameters, *model.RunContext) error {
	a.event("initialize")
	return a.initErr
}

func (a *recordingAction) CreateReader(context.Context, *model.RunContext) (port.DataReader[*model.Record], error) {
	a.event("create_reader")
	if a.readerErr != nil {
		return nil, a.readerErr
	}
	return a.newReader(), nil
}

func (a *recordingAction) Handle(ctx context.Context, record *model.Record, rc *model.RunContext) (model.Result, error) {
	if a.handle != nil {
		if err := a.handle(ctx, record, rc); err != nil {
			return model.Result{}, err
		}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handled = append(a.handled, record.GetString("id"))
	return model.Success(), nil
}

func (a *recordingAction) OnCommit(_ context.Context, record *model.Record, _ *model.RunContext) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.committed = append(a.committed, record.GetString("id"))
	return nil
}

func (a *recordingAction) OnRollback(_ context.Context, record *model.Record, _ *model.RunContext) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rolledBack = append(a.rolledBack, record.GetString("id"))
	return nil
}

func (a *recordingAction) OnError(_ context.Context, err error, _ *model.RunContext) {
	a.event("on_error")
}

func (a *recordingAction) Terminate(_ context.Context, result model.Result, _ *model.RunContext) {
	a.event("terminate")
	a.mu.Lock()
	defer a.mu.Unlock()
	a.terminated = append(a.terminated, result)
}

func (a *recordingAction) snapshot() (events, handled, committed, rolledBack []string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.events...), append([]string(nil), a.handled...),
		append([]string(nil), a.committed...), append([]string(nil), a.rolledBack...)
}

func records(n int) []*model.Record {
	out := make([]*model.Record, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, test.NewRecord("id", int64(i)))
	}
	return out
}

// newTxManager returns a transaction manager whose transactions always succeed.
func newTxManager() *test.MockTxManager {
	tm := new(test.MockTxManager)
	tm.On("Begin", mock.Anything, mock.Anything).Return(new(test.MockTx), nil)
	tm.On("Commit", mock.Anything).Return(nil)
	tm.On("Rollback", mock.Anything).Return(nil)
	return tm
}

var (
	_ port.JobAction[*model.Record]                = (*recordingAction)(nil)
	_ port.TransactionEventCallback[*model.Record] = (*recordingAction)(nil)
)
