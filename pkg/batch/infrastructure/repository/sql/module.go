package sql

import (
	"go.uber.org/fx"

	"github.com/tigerroll/batchcore/pkg/batch/adapter/database"
	config "github.com/tigerroll/batchcore/pkg/batch/core/config"
	"github.com/tigerroll/batchcore/pkg/batch/core/domain/repository"
	tx "github.com/tigerroll/batchcore/pkg/batch/core/tx"
)

// StoreParams are the dependencies of the SQL stores.
type StoreParams struct {
	fx.In
	Conn      database.DBConnection
	TxManager tx.TransactionManager
	Cfg       *config.Config
}

// NewCheckpointStoreProvider provides the CheckpointStore for the configured resume settings.
func NewCheckpointStoreProvider(p StoreParams) (repository.CheckpointStore, error) {
	return NewCheckpointStore(p.Conn, p.Cfg.Batchcore.Resume)
}

// NewExclusivityGuardProvider provides the ActivationGuard, or nil when the duplicate check
// has no table configured.
func NewExclusivityGuardProvider(p StoreParams) (repository.ProcessExclusivityGuard, error) {
	if p.Cfg.Batchcore.DuplicateCheck.Table == "" {
		return nil, nil
	}
	guard, err := NewActivationGuard(p.TxManager, p.Cfg.Batchcore.DuplicateCheck)
	if err != nil {
		return nil, err
	}
	return guard.WithTableErrorClassifier(p.Conn), nil
}

// NewStopSignalProvider provides the StopFlagSignal, or nil when the stop check has no
// table configured.
func NewStopSignalProvider(p StoreParams) (repository.StopSignal, error) {
	if p.Cfg.Batchcore.Stop.Table == "" {
		return nil, nil
	}
	signal, err := NewStopFlagSignal(p.TxManager, p.Cfg.Batchcore.Stop)
	if err != nil {
		return nil, err
	}
	return signal.WithTableErrorClassifier(p.Conn), nil
}

// NewRequestRegistryProvider provides the RequestRegistry of the shared coordination table.
func NewRequestRegistryProvider(p StoreParams) (repository.RequestRegistry, error) {
	table, err := RequestTableFromConfig(&p.Cfg.Batchcore)
	if err != nil {
		return nil, err
	}
	registry, err := NewRequestRegistry(p.TxManager, table)
	if err != nil {
		return nil, err
	}
	return registry.WithTableErrorClassifier(p.Conn), nil
}

// Module provides the SQL coordination stores.
var Module = fx.Options(
	fx.Provide(NewCheckpointStoreProvider),
	fx.Provide(NewExclusivityGuardProvider),
	fx.Provide(NewStopSignalProvider),
	fx.Provide(NewRequestRegistryProvider),
)
