package config

import "go.uber.org/fx"

// NewLoggingConfigProvider extracts *LoggingConfig from *Config.
func NewLoggingConfigProvider(cfg *Config) *LoggingConfig {
	return &cfg.Batchcore.System.Logging
}

// NewJobConfigProvider extracts *JobConfig from *Config.
func NewJobConfigProvider(cfg *Config) *JobConfig {
	return &cfg.Batchcore.Job
}

// NewExitCodeConfigProvider extracts *ExitCodeConfig from *Config.
func NewExitCodeConfigProvider(cfg *Config) *ExitCodeConfig {
	return &cfg.Batchcore.ExitCodes
}

// Module provides the configuration sub-sections and the EnvironmentExpander.
// *Config itself is supplied by the application (see LoadConfig) or provided via NewConfigProvider.
var Module = fx.Options(
	fx.Provide(NewLoggingConfigProvider),
	fx.Provide(NewJobConfigProvider),
	fx.Provide(NewExitCodeConfigProvider),
	fx.Provide(func() EnvironmentExpander {
		return NewOsEnvironmentExpander()
	}),
)
