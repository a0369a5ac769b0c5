// Package log provides the structured logging facade used across featurelab.
//
// The Logger interface is slog-compatible so that the backend can be swapped;
// the process-wide default is backed by zerolog (see provider.go). Pipeline
// stages attach the attribute keys from attributes.go so that a run of the
// greedy selector or the tuner can be filtered and replayed from the logs.
//
// Example usage:
//
//	logger := log.GetLoggerWithName("model_selection").With(
//	    log.ModelNameKey, "LogisticRegression",
//	)
//	logger.Info("candidate evaluated",
//	    log.FeatureKey, 3,
//	    log.ScoreKey, 0.81,
//	)
package log

import (
	"context"
)

// Logger defines a structured logging interface compatible with Go's log/slog.
//
// Fields are passed as alternating key/value pairs. With returns a child
// logger that carries the given fields on every record.
type Logger interface {
	// Debug logs detailed diagnostic information, e.g. one line per CV fold.
	Debug(msg string, fields ...any)

	// Info logs general progress, e.g. one line per selection round.
	Info(msg string, fields ...any)

	// Warn logs conditions that do not stop the run.
	Warn(msg string, fields ...any)

	// Error logs an error condition. If the first field is an error value
	// it is attached as the record's error.
	//
	//   logger.Error("fold failed", err, log.FoldKey, 2)
	Error(msg string, fields ...any)

	// With returns a new Logger with the given fields pre-populated.
	With(fields ...any) Logger

	// Enabled reports whether the logger emits records at the given level.
	// Use it to skip building expensive fields.
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level, compatible with slog.Level.
type Level int

// Standard logging levels, values are compatible with slog.Level.
const (
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// LoggerProvider creates loggers. Tests inject a TestLoggerProvider.
type LoggerProvider interface {
	// GetLogger returns the default logger instance.
	GetLogger() Logger

	// GetLoggerWithName returns a logger tagged with a component name.
	GetLoggerWithName(name string) Logger

	// SetLevel sets the minimum log level for all loggers created by this provider.
	SetLevel(level Level)
}
