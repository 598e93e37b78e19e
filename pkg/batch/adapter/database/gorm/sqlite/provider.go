// Package sqlite provides a GORM DBProvider implementation for SQLite databases.
package sqlite

import (
	"errors"
	"net/url"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tigerroll/batchcore/pkg/batch/adapter/database"
	dbconfig "github.com/tigerroll/batchcore/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/batchcore/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/batchcore/pkg/batch/core/config"
)

func init() {
	gormadapter.RegisterDialector("sqlite", func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		if cfg.Database == "" {
			return nil, errors.New("SQLite database path cannot be empty")
		}
		return sqlite.Open(ConnectionString(cfg)), nil
	})
}

// SQLiteDBProvider implements database.DBProvider for SQLite connections.
type SQLiteDBProvider struct {
	*gormadapter.BaseProvider
}

// ConnectionString returns the file path with Params appended as query options
// (e.g. _journal_mode=WAL, _busy_timeout=5000).
func ConnectionString(c dbconfig.DatabaseConfig) string {
	if len(c.Params) == 0 {
		return c.Database
	}
	values := url.Values{}
	for k, v := range c.Params {
		values.Set(k, v)
	}
	return "file:" + c.Database + "?" + values.Encode()
}

// NewProvider creates the SQLite database.DBProvider.
func NewProvider(cfg *config.Config) database.DBProvider {
	return &SQLiteDBProvider{BaseProvider: gormadapter.NewBaseProvider(cfg, "sqlite")}
}
