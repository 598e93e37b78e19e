package test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tigerroll/batchcore/pkg/batch/adapter/database"
	dbconfig "github.com/tigerroll/batchcore/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/batchcore/pkg/batch/adapter/database/gorm"
	_ "github.com/tigerroll/batchcore/pkg/batch/adapter/database/gorm/sqlite"
	config "github.com/tigerroll/batchcore/pkg/batch/core/config"
	tx "github.com/tigerroll/batchcore/pkg/batch/core/tx"
	"github.com/tigerroll/batchcore/pkg/batch/infrastructure/schema"
)

// ConnectionName is the connection name used by SQLiteEnv.
const ConnectionName = "batch"

// SQLiteEnv is a file-backed SQLite database with the coordination schema applied.
type SQLiteEnv struct {
	Conn      database.DBConnection
	TxManager tx.TransactionManager
	Cfg       *config.Config
}

// NewSQLiteEnv creates a database in t.TempDir(), migrates it and closes it when t ends.
func NewSQLiteEnv(t *testing.T) *SQLiteEnv {
	t.Helper()

	dbCfg := dbconfig.DatabaseConfig{
		Type:     "sqlite",
		Database: filepath.Join(t.TempDir(), "batch.db"),
		Params: map[string]string{
			"_journal_mode": "WAL",
			"_busy_timeout": "5000",
		},
		SQLLevel: string(config.LogLevelSilent),
		Pool:     dbconfig.PoolConfig{MaxOpenConns: 4},
	}
	gdb, err := gormadapter.Open(dbCfg)
	require.NoError(t, err)
	conn, err := gormadapter.NewGormDBAdapter(gdb, dbCfg, ConnectionName)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, schema.NewMigrator(conn).Up(context.Background()))

	cfg := config.NewConfig()
	cfg.Batchcore.Job.ID = "J1"
	cfg.Batchcore.Resume.Enabled = true
	cfg.Batchcore.DuplicateCheck.Table = config.DefaultRequestTable
	cfg.Batchcore.Stop.Table = config.DefaultRequestTable

	return &SQLiteEnv{
		Conn:      conn,
		TxManager: gormadapter.NewGormTransactionManager(gormadapter.NewStaticResolver(conn), ConnectionName),
		Cfg:       cfg,
	}
}

// MustExec executes a statement outside of any transaction.
func (e *SQLiteEnv) MustExec(t *testing.T, query string, args ...interface{}) int64 {
	t.Helper()
	affected, err := e.Conn.Exec(context.Background(), query, args...)
	require.NoError(t, err)
	return affected
}

// SeedRequest inserts a coordination row with lowered flags and the given resume point.
func (e *SQLiteEnv) SeedRequest(t *testing.T, requestID string, resumePoint int) {
	t.Helper()
	e.MustExec(t, "INSERT INTO batch_request (request_id, process_halt_flg, process_active_flg, resume_point) VALUES (?, '0', '0', ?)",
		requestID, resumePoint)
}

// ResumePoint returns the stored resume point of requestID.
func (e *SQLiteEnv) ResumePoint(t *testing.T, requestID string) int {
	t.Helper()
	rows, err := e.Conn.Query(context.Background(), "SELECT resume_point FROM batch_request WHERE request_id = ?", requestID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	point, ok := rows[0].GetInt64("resume_point")
	require.True(t, ok)
	return int(point)
}
