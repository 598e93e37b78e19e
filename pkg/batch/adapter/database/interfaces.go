package database

import (
	"context"

	dbconfig "github.com/tigerroll/batchcore/pkg/batch/adapter/database/config"
	coreAdapter "github.com/tigerroll/batchcore/pkg/batch/core/adapter"
	"github.com/tigerroll/batchcore/pkg/batch/core/tx"
)

// DBConnection represents an abstraction of a database connection.
// It embeds coreAdapter.ResourceConnection for generic connection management
// and tx.Executor for statement execution outside of a transaction.
type DBConnection interface {
	coreAdapter.ResourceConnection
	tx.Executor

	// IsTableNotExistError checks if the given error indicates that a table does not exist.
	IsTableNotExistError(err error) bool
	// RefreshConnection checks that the connection is still usable.
	RefreshConnection(ctx context.Context) error
	// Config returns the database configuration associated with this connection.
	Config() dbconfig.DatabaseConfig
}

// DBConnectionResolver resolves a database connection by name.
type DBConnectionResolver interface {
	coreAdapter.ResourceConnectionResolver

	// ResolveDBConnection resolves a database connection instance by name.
	// The returned connection is valid, re-established if necessary.
	ResolveDBConnection(ctx context.Context, name string) (DBConnection, error)
}

// DBProvider provides database connections of one type based on configuration.
type DBProvider interface {
	// GetConnection retrieves a database connection with the specified name.
	GetConnection(name string) (DBConnection, error)
	// CloseAll closes all connections managed by this provider.
	CloseAll() error
	// Type returns the database type handled by this provider (e.g., "mysql").
	Type() string
	// ForceReconnect closes and re-establishes the connection with the specified name.
	ForceReconnect(name string) (DBConnection, error)
}

// TransactionManagerFactory creates TransactionManager instances for a named connection.
type TransactionManagerFactory interface {
	NewTransactionManager(dbName string) tx.TransactionManager
}

// DBProviderGroup is the Fx value group collecting all DBProvider implementations.
const DBProviderGroup = "db_providers"
