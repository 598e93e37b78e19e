package main

import (
	"go.uber.org/fx"

	gormadapter "github.com/tigerroll/batchcore/pkg/batch/adapter/database/gorm"
	gormmysql "github.com/tigerroll/batchcore/pkg/batch/adapter/database/gorm/mysql"
	gormpostgres "github.com/tigerroll/batchcore/pkg/batch/adapter/database/gorm/postgres"
	gormsqlite "github.com/tigerroll/batchcore/pkg/batch/adapter/database/gorm/sqlite"
	config "github.com/tigerroll/batchcore/pkg/batch/core/config"
	"github.com/tigerroll/batchcore/pkg/batch/engine/runner"
	inframetrics "github.com/tigerroll/batchcore/pkg/batch/infrastructure/metrics"
	sqlstore "github.com/tigerroll/batchcore/pkg/batch/infrastructure/repository/sql"
	"github.com/tigerroll/batchcore/pkg/batch/infrastructure/telemetry"
	"github.com/tigerroll/batchcore/pkg/batch/listener/notification"
	"github.com/tigerroll/batchcore/pkg/batch/support/util/logger"

	appjob "github.com/tigerroll/batchcore/example/queue-worker/internal/job"
)

// infrastructureOptions builds the options shared by every command: configuration,
// logging and the database connection of the coordination tables.
func infrastructureOptions(cfg *config.Config) []fx.Option {
	return []fx.Option{
		fx.Supply(cfg),
		logger.Module,
		config.Module,
		gormadapter.Module,
		gormsqlite.Module,
		gormmysql.Module,
		gormpostgres.Module,
	}
}

// sqlstoreModule provides the coordination stores.
var sqlstoreModule = sqlstore.Module

// runOptions adds the stores, telemetry, the runner and the job to infrastructureOptions.
func runOptions(cfg *config.Config) []fx.Option {
	options := infrastructureOptions(cfg)
	options = append(options,
		sqlstoreModule,
		telemetry.Module,
		inframetrics.Module,
		notification.Module,
		runner.Module,
		appjob.Module,
	)
	return options
}
