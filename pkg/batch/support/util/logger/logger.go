// Package logger provides the level-filtered logging used throughout batchcore.
// Messages are written through a standard library *log.Logger so that the output
// destination can be redirected (for example, captured in tests).
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync/atomic"
)

// LogLevel is a type representing the logging level.
// Smaller values are more verbose.
type LogLevel int32

const (
	// LevelDebug is used for detailed diagnostic output (SQL, claim bookkeeping).
	LevelDebug LogLevel = iota
	// LevelInfo is used for lifecycle events (run start/end, checkpoint load, re-query).
	LevelInfo
	// LevelWarn is used for suppressed secondary failures and cooperative stops.
	LevelWarn
	// LevelError is used for failures that abort a run.
	LevelError
	// LevelFatal terminates the process after logging.
	LevelFatal
)

var levelNames = map[LogLevel]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
	LevelFatal: "FATAL",
}

// String returns the upper-case name of the level.
func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("LEVEL(%d)", int32(l))
}

var (
	currentLevel atomic.Int32
	std          = log.New(os.Stderr, "", log.LstdFlags)
)

func init() {
	currentLevel.Store(int32(LevelInfo))
}

// ParseLevel converts a level name ("DEBUG", "INFO", "WARN", "ERROR", "FATAL", case-insensitive)
// into a LogLevel. "WARNING" is accepted as an alias of "WARN".
func ParseLevel(level string) (LogLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG", "TRACE":
		return LevelDebug, nil
	case "INFO", "":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarn, nil
	case "ERROR":
		return LevelError, nil
	case "FATAL":
		return LevelFatal, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level '%s'", level)
	}
}

// SetLogLevel sets the global log level.
// An unknown value falls back to INFO and a warning is emitted.
func SetLogLevel(level string) {
	parsed, err := ParseLevel(level)
	if err != nil {
		std.Printf("[WARN] %v. Defaulting to INFO level.", err)
	}
	currentLevel.Store(int32(parsed))
}

// GetLogLevel returns the current global log level.
func GetLogLevel() LogLevel {
	return LogLevel(currentLevel.Load())
}

// SetOutput redirects all log output to w.
func SetOutput(w io.Writer) {
	std.SetOutput(w)
}

func enabled(level LogLevel) bool {
	return LogLevel(currentLevel.Load()) <= level
}

func output(level LogLevel, format string, v ...interface{}) {
	// calldepth 3 points the source location at the caller of Debugf/Infof/...
	_ = std.Output(3, "["+level.String()+"] "+fmt.Sprintf(format, v...))
}

// Debugf outputs a DEBUG level message.
func Debugf(format string, v ...interface{}) {
	if enabled(LevelDebug) {
		output(LevelDebug, format, v...)
	}
}

// Infof outputs an INFO level message.
func Infof(format string, v ...interface{}) {
	if enabled(LevelInfo) {
		output(LevelInfo, format, v...)
	}
}

// Warnf outputs a WARN level message.
func Warnf(format string, v ...interface{}) {
	if enabled(LevelWarn) {
		output(LevelWarn, format, v...)
	}
}

// Errorf outputs an ERROR level message.
func Errorf(format string, v ...interface{}) {
	if enabled(LevelError) {
		output(LevelError, format, v...)
	}
}

// Fatalf outputs a FATAL level message and terminates the process with exit status 1.
func Fatalf(format string, v ...interface{}) {
	output(LevelFatal, format, v...)
	os.Exit(1)
}
