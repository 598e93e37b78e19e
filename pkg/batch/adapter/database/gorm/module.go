package gorm

import (
	"context"

	"go.uber.org/fx"

	"github.com/tigerroll/batchcore/pkg/batch/adapter/database"
	coreAdapter "github.com/tigerroll/batchcore/pkg/batch/core/adapter"
	config "github.com/tigerroll/batchcore/pkg/batch/core/config"
	tx "github.com/tigerroll/batchcore/pkg/batch/core/tx"
)

// NewBatchTransactionManager creates the TransactionManager of the connection named by
// batchcore.infrastructure.db_ref.
func NewBatchTransactionManager(factory database.TransactionManagerFactory, cfg *config.Config) tx.TransactionManager {
	return factory.NewTransactionManager(cfg.Batchcore.Infrastructure.DBRef)
}

// NewBatchDBConnection resolves the connection named by batchcore.infrastructure.db_ref.
func NewBatchDBConnection(lc fx.Lifecycle, resolver *GormDBConnectionResolver, cfg *config.Config) (database.DBConnection, error) {
	conn, err := resolver.ResolveDBConnection(context.Background(), cfg.Batchcore.Infrastructure.DBRef)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return resolver.CloseAll()
		},
	})
	return conn, nil
}

// Module exports the gorm adapter components, excluding the concrete DB providers.
var Module = fx.Options(
	fx.Provide(NewGormDBConnectionResolver),
	fx.Provide(
		func(r *GormDBConnectionResolver) database.DBConnectionResolver { return r },
		func(r *GormDBConnectionResolver) coreAdapter.ResourceConnectionResolver { return r },
	),
	fx.Provide(NewGormTransactionManagerFactory),
	fx.Provide(NewBatchTransactionManager),
	fx.Provide(NewBatchDBConnection),
)
