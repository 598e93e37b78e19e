package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/tigerroll/batchcore/pkg/batch/adapter/database"
	config "github.com/tigerroll/batchcore/pkg/batch/core/config"
	model "github.com/tigerroll/batchcore/pkg/batch/core/domain/model"
	"github.com/tigerroll/batchcore/pkg/batch/core/domain/repository"
	"github.com/tigerroll/batchcore/pkg/batch/engine/runner"
	"github.com/tigerroll/batchcore/pkg/batch/infrastructure/schema"
	"github.com/tigerroll/batchcore/pkg/batch/support/util/exception"
	"github.com/tigerroll/batchcore/pkg/batch/support/util/logger"
)

// embeddedConfig holds the application YAML configuration.
//
//go:embed resources/application.yaml
var embeddedConfig []byte

const defaultDatabase = "queue-worker.db"

// exitError carries a process exit status out of a cobra command.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRootCommand().ExecuteContext(ctx)
	var exit *exitError
	switch {
	case errors.As(err, &exit):
		os.Exit(exit.code)
	case err != nil:
		logger.Errorf("%v", err)
		if code, ok := exception.ExitCodeOf(err); ok {
			os.Exit(code)
		}
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:           "queue-worker",
		Short:         "Deliver queued mails with the batchcore engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", envOrDefault("ENV_FILE_PATH", ".env"), "Path of the .env file")

	load := func() (*config.Config, error) {
		if os.Getenv("QUEUE_WORKER_DB") == "" {
			_ = os.Setenv("QUEUE_WORKER_DB", defaultDatabase)
		}
		cfg, err := config.LoadConfig(envFile, embeddedConfig)
		if err != nil {
			return nil, err
		}
		logger.SetLogLevel(cfg.Batchcore.System.Logging.Level)
		return cfg, nil
	}

	root.AddCommand(
		newRunCommand(load),
		newMigrateCommand(load),
		newRegisterCommand(load),
		newStopCommand(load),
		newResetCommand(load),
	)
	return root
}

func newRunCommand(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "run [key=value...]",
		Short: "Run the job until the queue is stopped",
		Long:  "Run the job. Arguments of the form key=value become job parameters, e.g. mode=once.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			params, rest := model.ParseJobParameters(args)
			if len(rest) > 0 {
				return fmt.Errorf("job parameters must be given as key=value: %v", rest)
			}

			var r *runner.Runner[*model.Record]
			app := fx.New(append(runOptions(cfg), fx.Populate(&r))...)
			if err := app.Err(); err != nil {
				return err
			}
			if err := start(cmd.Context(), app); err != nil {
				return err
			}
			defer stopApp(app)

			result := r.Run(cmd.Context(), params)
			if !result.IsSuccess() {
				return &exitError{code: result.ExitCode}
			}
			return nil
		},
	}
}

func newMigrateCommand(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the coordination table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return invoke(cmd.Context(), load, func(ctx context.Context, conn database.DBConnection) error {
				return schema.NewMigrator(conn).Up(ctx)
			})
		},
	}
}

func newRegisterCommand(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "register <request-id>",
		Short: "Register a request id in the coordination table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return invokeRegistry(cmd.Context(), load, func(ctx context.Context, registry repository.RequestRegistry) error {
				return registry.Register(ctx, args[0])
			})
		},
	}
}

func newStopCommand(load func() (*config.Config, error)) *cobra.Command {
	var clear bool
	cmd := &cobra.Command{
		Use:   "stop <request-id>",
		Short: "Ask running workers of a request id to stop",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return invokeRegistry(cmd.Context(), load, func(ctx context.Context, registry repository.RequestRegistry) error {
				if clear {
					return registry.ClearStop(ctx, args[0])
				}
				return registry.RequestStop(ctx, args[0])
			})
		},
	}
	cmd.Flags().BoolVar(&clear, "clear", false, "Lower the stop flag instead of raising it")
	return cmd
}

func newResetCommand(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <request-id>",
		Short: "Set the resume point of a request id back to 0",
		Long:  "Set the resume point of a request id back to 0, so that the next run with mode=once starts from the first record.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return invokeRegistry(cmd.Context(), load, func(ctx context.Context, registry repository.RequestRegistry) error {
				return registry.ResetResumePoint(ctx, args[0])
			})
		},
	}
}

func invoke(ctx context.Context, load func() (*config.Config, error), fn func(context.Context, database.DBConnection) error) error {
	cfg, err := load()
	if err != nil {
		return err
	}
	var conn database.DBConnection
	app := fx.New(append(infrastructureOptions(cfg), fx.Populate(&conn))...)
	if err := app.Err(); err != nil {
		return err
	}
	if err := start(ctx, app); err != nil {
		return err
	}
	defer stopApp(app)
	return fn(ctx, conn)
}

func invokeRegistry(ctx context.Context, load func() (*config.Config, error), fn func(context.Context, repository.RequestRegistry) error) error {
	cfg, err := load()
	if err != nil {
		return err
	}
	var registry repository.RequestRegistry
	app := fx.New(append(infrastructureOptions(cfg), sqlstoreModule, fx.Populate(&registry))...)
	if err := app.Err(); err != nil {
		return err
	}
	if err := start(ctx, app); err != nil {
		return err
	}
	defer stopApp(app)
	return fn(ctx, registry)
}

func start(ctx context.Context, app *fx.App) error {
	startCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	return app.Start(startCtx)
}

func stopApp(app *fx.App) {
	stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := app.Stop(stopCtx); err != nil {
		logger.Warnf("Failed to stop application: %v", err)
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
