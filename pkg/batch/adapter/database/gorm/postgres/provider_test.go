package postgres_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	dbconfig "github.com/tigerroll/batchcore/pkg/batch/adapter/database/config"
	"github.com/tigerroll/batchcore/pkg/batch/adapter/database/gorm/postgres"
)

func TestConnectionString(t *testing.T) {
	got := postgres.ConnectionString(dbconfig.DatabaseConfig{
		Host:     "db",
		User:     "batch",
		Password: "secret",
		Database: "batchcore",
		Schema:   "jobs",
		Params:   map[string]string{"connect_timeout": "5", "application_name": "queue-worker"},
	})
	assert.Equal(t, "host=db port=5432 user=batch password=secret dbname=batchcore sslmode=disable "+
		"search_path=jobs application_name=queue-worker connect_timeout=5", got)

	got = postgres.ConnectionString(dbconfig.DatabaseConfig{Host: "db", Port: 6432, Sslmode: "require"})
	assert.Contains(t, got, "port=6432")
	assert.Contains(t, got, "sslmode=require")
}
