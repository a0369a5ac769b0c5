package log

import (
	"log/slog"
	"os"
	"strings"

	"github.com/YuminosukeSato/featurelab/pkg/errors"
	"github.com/rs/zerolog"
)

// SetupLogger configures the process-wide loggers for the given level
// ("debug", "info", "warn", "error"):
//   - the slog default, as JSON in Cloud Logging format wrapped by ErrorHandler;
//   - the zerolog-backed default returned by GetLogger;
//   - the warning hook of pkg/errors, so warnings become structured records.
func SetupLogger(loglevel string) error {
	level, err := ParseLevel(loglevel)
	if err != nil {
		return err
	}

	ops := slog.HandlerOptions{
		AddSource: true,
		Level:     slog.Level(level),
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.LevelKey:
				attr = slog.Attr{Key: "severity", Value: attr.Value}
			case slog.MessageKey:
				attr = slog.Attr{Key: "message", Value: attr.Value}
			case slog.SourceKey:
				attr = slog.Attr{Key: "logging.googleapis.com/sourceLocation", Value: attr.Value}
			}
			return attr
		},
	}
	handler := slog.NewJSONHandler(os.Stdout, &ops)
	slog.SetDefault(slog.New(NewErrorHandler(handler)))

	zl := NewZerologLogger(zerolog.New(os.Stderr).With().Timestamp().Logger(), level)
	SetGlobalLogger(zl)

	warnLogger := zl.With(ComponentKey, "warnings")
	errors.SetWarningHandler(func(w error) {
		warnLogger.Warn(w.Error(), ErrorTypeKey, warningType(w))
	})
	return nil
}

// ParseLevel converts a configuration string into a Level.
func ParseLevel(level string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, errors.NewValidationError("log_level", "must be one of debug, info, warn, error", level)
	}
}

func warningType(w error) string {
	switch w.(type) {
	case *errors.ConvergenceWarning:
		return "ConvergenceWarning"
	case *errors.DataConversionWarning:
		return "DataConversionWarning"
	case *errors.UndefinedMetricWarning:
		return "UndefinedMetricWarning"
	default:
		return "Warning"
	}
}

const (
	ErrAttrKey        = "error"
	StacktraceAttrKey = "stacktrace"
)

// ErrAttr is a wrapper to pass err to slog.
func ErrAttr(err error) slog.Attr {
	return slog.Any(ErrAttrKey, err)
}
