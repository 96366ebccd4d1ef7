// Package logging configures the process-wide zerolog logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"

	// LevelDisabled silences all output.
	LevelDisabled LogLevel = "disabled"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output instead of JSON lines.
	Pretty bool

	// Output is the writer logs go to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns the CLI default: info level, console output on stderr.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: true,
		Output: os.Stderr,
	}
}

// ParseLevel validates a level name. "warning" is accepted for warn.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	case "disabled", "off", "none":
		return LevelDisabled, nil
	default:
		return "", fmt.Errorf("unknown log level %q", s)
	}
}

// Setup configures the global zerolog logger and returns it.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(zerologLevel(cfg.Level))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.Kitchen}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

func zerologLevel(level LogLevel) zerolog.Level {
	switch level {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	case LevelDisabled:
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: per-page detail
//   - Page requested / received, entry counts, next cursor
//   - Error classification
//   - Limiter waits
//
// Info: one line per stage of a run
//   - Fetch complete (entries, duration)
//   - No more data (204)
//   - Rows pivoted and windowed
//   - Graph written (path)
//   - Scheduler start/stop
//
// Warn: the run continues with degraded data
//   - Page fetch failed, partial results returned
//   - Page limit reached
//   - 429 cool-down recorded
//   - Throttle store unavailable
//
// Error: the run produced nothing
//   - Render failed
//   - Scheduled run failed
//   - Configuration errors
//
// Context Fields:
//   - component: package emitting the line
//   - run_id: pipeline run identifier
//   - filters: API filter expression
//   - page: page number
//   - entries: raw entry count
//   - rows: table row count
//   - status_code: HTTP status code
//   - error_class: no_data, client, server, rate_limit, network, unexpected, decode
//   - duration: elapsed time
//   - path: rendered artifact
