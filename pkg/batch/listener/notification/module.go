package notification

import (
	"go.uber.org/fx"

	port "github.com/tigerroll/batchcore/pkg/batch/core/application/port"
)

// Module provides the logging Notifier.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewLoggingNotifier,
		fx.As(new(port.Notifier)),
	)),
)
