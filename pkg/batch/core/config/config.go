// Package config provides the configuration structures of batchcore and their defaults.
package config

// EmbeddedConfig holds the raw bytes of the application YAML, typically embedded by main.go.
type EmbeddedConfig []byte

// LogLevel defines the logging level names accepted in configuration.
type LogLevel string

const (
	LogLevelDebug  LogLevel = "DEBUG"
	LogLevelInfo   LogLevel = "INFO"
	LogLevelWarn   LogLevel = "WARN"
	LogLevelError  LogLevel = "ERROR"
	LogLevelFatal  LogLevel = "FATAL"
	LogLevelSilent LogLevel = "SILENT"
)

// Defaults applied when the corresponding value is not configured.
const (
	DefaultConcurrency         = 1
	DefaultCommitInterval      = 1
	DefaultQueueWaitIntervalMS = 1000
	DefaultStopCheckInterval   = 1
	// DefaultDuplicateExitCode is not range-checked. Only explicitly configured exit codes are.
	DefaultDuplicateExitCode = 500
	DefaultStopExitCode      = 1
	DefaultRequestTable      = "batch_request"
)

// Default exit statuses of abnormal ends.
const (
	DefaultFailureExitCode              = 20
	DefaultInvalidConfigurationExitCode = 10
	DefaultInvalidResumePointExitCode   = 21
	DefaultMultiThreadedResumeExitCode  = 22
	DefaultInterruptedExitCode          = 130
)

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the logging level (e.g., "INFO", "DEBUG").
	Level string `yaml:"level"`
	// SQLLevel is the gorm statement log level ("SILENT", "ERROR", "WARN", "INFO").
	SQLLevel string `yaml:"sql_level"`
}

// SystemConfig holds process-wide settings.
type SystemConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

// JobConfig identifies the job and sizes its execution.
type JobConfig struct {
	// ID is the job identifier. It keys the checkpoint, activation and stop-request rows.
	ID string `yaml:"id"`
	// Concurrency is the number of workers pulling from the record source.
	Concurrency int `yaml:"concurrency"`
	// CommitInterval is the number of records processed per transaction.
	CommitInterval int `yaml:"commit_interval"`
}

// QueueConfig configures the table-as-queue record source.
type QueueConfig struct {
	// WaitIntervalMS is how long a worker sleeps before re-querying an exhausted queue.
	WaitIntervalMS int `yaml:"wait_interval_ms"`
	// PrimaryKeys are the columns forming a row's identity for claim bookkeeping.
	PrimaryKeys []string `yaml:"primary_keys"`
}

// ResumeConfig configures checkpoint/resume.
type ResumeConfig struct {
	Enabled           bool     `yaml:"enabled"`
	Table             string   `yaml:"table"`
	RequestIDColumn   string   `yaml:"request_id_column"`
	ResumePointColumn string   `yaml:"resume_point_column"`
	ExcludedRequests  []string `yaml:"excluded_requests"`
}

// DuplicateCheckConfig configures process exclusivity. An empty Table disables the check.
type DuplicateCheckConfig struct {
	Table              string   `yaml:"table"`
	ProcessIDColumn    string   `yaml:"process_id_column"`
	ActiveFlagColumn   string   `yaml:"active_flag_column"`
	PermittedProcesses []string `yaml:"permitted_processes"`
	// ExitCode is the exit status for AlreadyRunning. Unset selects DefaultDuplicateExitCode.
	ExitCode *int `yaml:"exit_code"`
}

// StopConfig configures the cooperative stop check. An empty Table disables the check.
type StopConfig struct {
	Table           string `yaml:"table"`
	RequestIDColumn string `yaml:"request_id_column"`
	HaltFlagColumn  string `yaml:"halt_flag_column"`
	// CheckInterval is the number of records between two checks. Values <= 0 are treated as 1.
	CheckInterval int `yaml:"check_interval"`
	// ExitCode is the exit status for a cooperative stop. Unset selects DefaultStopExitCode.
	ExitCode *int `yaml:"exit_code"`
}

// ErrorExitCode assigns Code to the errors matching Error, which is a registered error name
// such as "CheckpointNotFound", an error type name such as "*mysql.MySQLError" or a
// fragment of the error message.
type ErrorExitCode struct {
	Error string `yaml:"error"`
	Code  int    `yaml:"code"`
}

// ExitCodeConfig maps abnormal terminations to process exit statuses.
type ExitCodeConfig struct {
	Failure              int `yaml:"failure"`
	InvalidConfiguration int `yaml:"invalid_configuration"`
	InvalidResumePoint   int `yaml:"invalid_resume_point"`
	MultiThreadedResume  int `yaml:"multi_threaded_resume"`
	Interrupted          int `yaml:"interrupted"`
	// Errors are checked in order before the conditions above. The first match wins.
	Errors []ErrorExitCode `yaml:"errors"`
}

// InfrastructureConfig names the connections used by the coordination stores.
type InfrastructureConfig struct {
	// DBRef is the name of the connection (a key under `database`) holding the coordination tables.
	DBRef string `yaml:"db_ref"`
}

// MetricsConfig configures the Prometheus endpoint. An empty ListenAddress disables it.
type MetricsConfig struct {
	ListenAddress string `yaml:"listen_address"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Protocol    string `yaml:"protocol"` // "grpc" or "http"
	Endpoint    string `yaml:"endpoint"`
	Insecure    bool   `yaml:"insecure"`
	ServiceName string `yaml:"service_name"`
}

// BatchcoreConfig holds everything under the "batchcore" top-level key.
type BatchcoreConfig struct {
	System         SystemConfig         `yaml:"system"`
	Job            JobConfig            `yaml:"job"`
	Queue          QueueConfig          `yaml:"queue"`
	Resume         ResumeConfig         `yaml:"resume"`
	DuplicateCheck DuplicateCheckConfig `yaml:"duplicate_check"`
	Stop           StopConfig           `yaml:"stop"`
	ExitCodes      ExitCodeConfig       `yaml:"exit_codes"`
	Infrastructure InfrastructureConfig `yaml:"infrastructure"`
	Metrics        MetricsConfig        `yaml:"metrics"`
	Telemetry      TelemetryConfig      `yaml:"telemetry"`
	// AdapterConfigs holds raw database connection settings keyed by connection name.
	// They are decoded into dbconfig.DatabaseConfig by the gorm providers.
	AdapterConfigs map[string]interface{} `yaml:"database"`
}

// Config is the root of the application configuration.
type Config struct {
	Batchcore BatchcoreConfig `yaml:"batchcore"`
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		Batchcore: BatchcoreConfig{
			System: SystemConfig{
				Logging: LoggingConfig{Level: "INFO", SQLLevel: string(LogLevelSilent)},
			},
			Job: JobConfig{
				Concurrency:    DefaultConcurrency,
				CommitInterval: DefaultCommitInterval,
			},
			Queue: QueueConfig{
				WaitIntervalMS: DefaultQueueWaitIntervalMS,
			},
			Resume: ResumeConfig{
				Table:             DefaultRequestTable,
				RequestIDColumn:   "request_id",
				ResumePointColumn: "resume_point",
			},
			DuplicateCheck: DuplicateCheckConfig{
				ProcessIDColumn:  "request_id",
				ActiveFlagColumn: "process_active_flg",
			},
			Stop: StopConfig{
				RequestIDColumn: "request_id",
				HaltFlagColumn:  "process_halt_flg",
				CheckInterval:   DefaultStopCheckInterval,
			},
			ExitCodes: ExitCodeConfig{
				Failure:              DefaultFailureExitCode,
				InvalidConfiguration: DefaultInvalidConfigurationExitCode,
				InvalidResumePoint:   DefaultInvalidResumePointExitCode,
				MultiThreadedResume:  DefaultMultiThreadedResumeExitCode,
				Interrupted:          DefaultInterruptedExitCode,
			},
			Infrastructure: InfrastructureConfig{DBRef: "batch"},
			Telemetry:      TelemetryConfig{Protocol: "grpc", ServiceName: "batchcore"},
			AdapterConfigs: map[string]interface{}{},
		},
	}
}
