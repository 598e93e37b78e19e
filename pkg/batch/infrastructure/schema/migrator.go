// Package schema creates the coordination table used by the batch stores.
package schema

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/tigerroll/batchcore/pkg/batch/adapter/database"
	gormadapter "github.com/tigerroll/batchcore/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/batchcore/pkg/batch/support/util/logger"
)

// MigrationsTable tracks the applied versions of the coordination schema.
const MigrationsTable = "batchcore_schema_migrations"

//go:embed migrations
var migrationsFS embed.FS

// Migrations returns the embedded migrations for dbType ("sqlite", "mysql" or "postgres").
func Migrations(dbType string) (fs.FS, error) {
	dir, err := dialectDir(dbType)
	if err != nil {
		return nil, err
	}
	return fs.Sub(migrationsFS, "migrations/"+dir)
}

func dialectDir(dbType string) (string, error) {
	switch dbType {
	case "sqlite", "sqlite3":
		return "sqlite", nil
	case "mysql":
		return "mysql", nil
	case "postgres", "postgresql":
		return "postgres", nil
	}
	return "", fmt.Errorf("unsupported database type for migration: %s", dbType)
}

// Migrator applies the coordination schema to the database of a connection.
//
// golang-migrate closes the database it runs on, so the migrator opens a dedicated pool from
// the connection's configuration instead of borrowing the connection's own.
type Migrator struct {
	conn database.DBConnection
}

// NewMigrator creates a Migrator for conn.
func NewMigrator(conn database.DBConnection) *Migrator {
	return &Migrator{conn: conn}
}

// Up applies all pending migrations. An up-to-date schema is not an error.
func (m *Migrator) Up(ctx context.Context) error {
	return m.run(ctx, "up", func(mi *migrate.Migrate) error { return mi.Up() })
}

// Down reverts all applied migrations.
func (m *Migrator) Down(ctx context.Context) error {
	return m.run(ctx, "down", func(mi *migrate.Migrate) error { return mi.Down() })
}

// Version returns the applied schema version. dirty is true after a failed migration.
func (m *Migrator) Version(ctx context.Context) (version uint, dirty bool, err error) {
	err = m.run(ctx, "version", func(mi *migrate.Migrate) error {
		version, dirty, err = mi.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			return nil
		}
		return err
	})
	return version, dirty, err
}

func (m *Migrator) run(ctx context.Context, command string, fn func(*migrate.Migrate) error) error {
	dbType := m.conn.Type()
	logger.Infof("Executing migration '%s' (DB: %s, Table: %s)", command, m.conn.Name(), MigrationsTable)

	source, err := Migrations(dbType)
	if err != nil {
		return err
	}
	sourceDriver, err := iofs.New(source, ".")
	if err != nil {
		return fmt.Errorf("failed to create iofs source driver: %w", err)
	}

	gdb, err := gormadapter.Open(m.conn.Config())
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return fmt.Errorf("failed to connect for migration: %w", err)
	}

	dbDriver, err := databaseDriver(dbType, sqlDB)
	if err != nil {
		_ = sqlDB.Close()
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	mi, err := migrate.NewWithInstance("iofs", sourceDriver, dbType, dbDriver)
	if err != nil {
		_ = sqlDB.Close()
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer func() {
		if srcErr, dbErr := mi.Close(); srcErr != nil || dbErr != nil {
			logger.Warnf("failed to close migrate instance: source=%v, database=%v", srcErr, dbErr)
		}
	}()

	if err := fn(mi); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed for command '%s' (DB: %s): %w", command, dbType, err)
	}
	logger.Infof("Migration '%s' completed successfully.", command)
	return nil
}

func databaseDriver(dbType string, sqlDB *sql.DB) (migratedb.Driver, error) {
	switch dbType {
	case "postgres", "postgresql":
		return postgres.WithInstance(sqlDB, &postgres.Config{MigrationsTable: MigrationsTable})
	case "mysql":
		return mysql.WithInstance(sqlDB, &mysql.Config{MigrationsTable: MigrationsTable})
	case "sqlite", "sqlite3":
		return sqlite3.WithInstance(sqlDB, &sqlite3.Config{MigrationsTable: MigrationsTable})
	}
	return nil, fmt.Errorf("unsupported database type for migration: %s", dbType)
}
