package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/tigerroll/batchcore/pkg/batch/support/util/exception"
	"github.com/tigerroll/batchcore/pkg/batch/support/util/logger"

	"go.uber.org/fx"
)

const moduleName = "config"

// ConfigParams defines the dependencies for NewConfigProvider.
type ConfigParams struct {
	fx.In
	EmbeddedConfig EmbeddedConfig
	EnvFilePath    string              `name:"envFilePath" optional:"true"`
	Expander       EnvironmentExpander `optional:"true"`
}

// loadConfig builds the configuration in layers: defaults, then the YAML document (after
// ${VAR} expansion), then environment overrides. The document is decoded onto the defaults,
// so a value written in it replaces the default even when it is the zero value.
// The .env file, when present, is loaded first so that it feeds both expansion and overrides.
func loadConfig(envFilePath string, embeddedConfig EmbeddedConfig, expander EnvironmentExpander) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			logger.Debugf(".env file (%s) not found or could not be loaded: %v", envFilePath, err)
		}
	}
	if expander == nil {
		expander = NewOsEnvironmentExpander()
	}

	cfg := NewConfig()

	expanded, err := expander.Expand(embeddedConfig)
	if err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to expand environment variables in config", err)
	}

	if err := yaml.Unmarshal(expanded, cfg); err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to unmarshal config", err)
	}

	if err := loadStructFromEnv(reflect.ValueOf(cfg).Elem(), ""); err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to load config from environment variables", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig loads configuration from the embedded YAML, the .env file and the environment.
func LoadConfig(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	return loadConfig(envFilePath, embeddedConfig, nil)
}

// NewConfigProvider is an fx provider that loads *Config and applies the configured log level.
func NewConfigProvider(params ConfigParams) (*Config, error) {
	cfg, err := loadConfig(params.EnvFilePath, params.EmbeddedConfig, params.Expander)
	if err != nil {
		return nil, err
	}
	logger.SetLogLevel(cfg.Batchcore.System.Logging.Level)
	logger.Debugf("Log level set to: %s", cfg.Batchcore.System.Logging.Level)
	return cfg, nil
}

// Validate checks the values that must fail fast before any record is processed.
// Every configured exit code must lie in [1,255], 0 included; a check interval <= 0 is
// accepted here and clamped by the stop handler.
func Validate(cfg *Config) error {
	b := cfg.Batchcore
	if b.Job.Concurrency < 1 {
		return exception.NewConfigurationError(moduleName, "job.concurrency must be 1 or more. specified value was [%d].", b.Job.Concurrency)
	}
	if b.Job.CommitInterval < 1 {
		return exception.NewConfigurationError(moduleName, "job.commit_interval must be 1 or more. specified value was [%d].", b.Job.CommitInterval)
	}
	if b.Queue.WaitIntervalMS < 0 {
		return exception.NewConfigurationError(moduleName, "queue.wait_interval_ms must not be negative. specified value was [%d].", b.Queue.WaitIntervalMS)
	}

	codes := map[string]int{
		"exit_codes.failure":               b.ExitCodes.Failure,
		"exit_codes.invalid_configuration": b.ExitCodes.InvalidConfiguration,
		"exit_codes.invalid_resume_point":  b.ExitCodes.InvalidResumePoint,
		"exit_codes.multi_threaded_resume": b.ExitCodes.MultiThreadedResume,
		"exit_codes.interrupted":           b.ExitCodes.Interrupted,
	}
	if b.DuplicateCheck.ExitCode != nil {
		codes["duplicate_check.exit_code"] = *b.DuplicateCheck.ExitCode
	}
	if b.Stop.ExitCode != nil {
		codes["stop.exit_code"] = *b.Stop.ExitCode
	}
	for i, rule := range b.ExitCodes.Errors {
		key := fmt.Sprintf("exit_codes.errors[%d]", i)
		if rule.Error == "" {
			return exception.NewConfigurationError(moduleName, "%s.error must be set.", key)
		}
		codes[key+".code"] = rule.Code
	}
	for key, code := range codes {
		if err := exception.ValidateExitCode(key, code); err != nil {
			return err
		}
	}
	return nil
}

// loadStructFromEnv recursively overrides struct fields from environment variables.
// The variable name is the upper-cased chain of yaml tags joined by "_",
// e.g. batchcore.job.commit_interval is overridden by BATCHCORE_JOB_COMMIT_INTERVAL.
func loadStructFromEnv(val reflect.Value, prefix string) error {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		yamlTag := strings.Split(fieldType.Tag.Get("yaml"), ",")[0]
		if yamlTag == "" || yamlTag == "-" {
			continue
		}
		envVarName := strings.ToUpper(prefix + yamlTag)

		if field.Kind() == reflect.Struct {
			if err := loadStructFromEnv(field, envVarName+"_"); err != nil {
				return err
			}
			continue
		}
		if field.Kind() == reflect.Map {
			// Connection maps are decoded later by mapstructure; only ${VAR} expansion applies to them.
			continue
		}

		envValue, exists := os.LookupEnv(envVarName)
		if !exists {
			continue
		}
		if err := setField(field, envValue); err != nil {
			return fmt.Errorf("failed to set field '%s' from env var '%s': %w", fieldType.Name, envVarName, err)
		}
	}
	return nil
}

// setField sets field from its string form. Slices of strings are comma-separated.
func setField(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}
	switch field.Kind() {
	case reflect.Ptr:
		elem := reflect.New(field.Type().Elem())
		if err := setField(elem.Elem(), value); err != nil {
			return err
		}
		field.Set(elem)
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(intValue)
	case reflect.Bool:
		boolValue, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return err
		}
		field.SetBool(boolValue)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return nil
		}
		var items []string
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		field.Set(reflect.ValueOf(items))
	}
	return nil
}
