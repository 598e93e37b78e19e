package handler_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	config "github.com/tigerroll/batchcore/pkg/batch/core/config"
	"github.com/tigerroll/batchcore/pkg/batch/core/domain/repository"
	"github.com/tigerroll/batchcore/pkg/batch/engine/handler"
	"github.com/tigerroll/batchcore/pkg/batch/infrastructure/repository/inmemory"
	"github.com/tigerroll/batchcore/pkg/batch/support/util/exception"
)

func TestNewChain(t *testing.T) {
	cfg := config.NewConfig()

	chain, err := handler.NewChain(handler.ChainParams{Cfg: cfg})
	require.NoError(t, err)
	assert.Empty(t, chain.Process)
	assert.Empty(t, chain.Record)

	chain, err = handler.NewChain(handler.ChainParams{
		Cfg:    cfg,
		Guard:  inmemory.NewActivationGuard(nil),
		Signal: inmemory.NewStopSignal(),
	})
	require.NoError(t, err)
	assert.Len(t, chain.Process, 1)
	assert.Len(t, chain.Record, 1)

	cfg.Batchcore.Stop.ExitCode = exitCode(500)
	_, err = handler.NewChain(handler.ChainParams{Cfg: cfg, Signal: inmemory.NewStopSignal()})
	assert.ErrorIs(t, err, exception.ErrInvalidConfiguration)

	cfg = config.NewConfig()
	cfg.Batchcore.DuplicateCheck.ExitCode = exitCode(0)
	_, err = handler.NewChain(handler.ChainParams{Cfg: cfg, Guard: inmemory.NewActivationGuard(nil)})
	assert.ErrorIs(t, err, exception.ErrInvalidConfiguration)
}

func TestModule(t *testing.T) {
	var chain *handler.Chain
	app := fxtest.New(t,
		fx.Supply(config.NewConfig()),
		fx.Provide(func() repository.StopSignal { return inmemory.NewStopSignal() }),
		handler.Module,
		fx.Populate(&chain),
	)
	defer app.RequireStart().RequireStop()

	require.NotNil(t, chain)
	assert.Empty(t, chain.Process)
	assert.Len(t, chain.Record, 1)
}
