package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config holds the logging configuration
type Config struct {
	Level  string
	Format string // "text" or "json"
	Output io.Writer
}

var (
	mu            sync.RWMutex
	defaultLogger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	debugEnabled  bool
)

// Setup replaces the default logger according to cfg
func Setup(cfg Config) error {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return fmt.Errorf("parse log level: %w", err)
		}
		level = parsed
	}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	switch strings.ToLower(cfg.Format) {
	case "", "text":
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	case "json":
	default:
		return fmt.Errorf("unknown log format %q", cfg.Format)
	}

	mu.Lock()
	defer mu.Unlock()
	defaultLogger = zerolog.New(out).With().Timestamp().Logger().Level(level)
	debugEnabled = level <= zerolog.DebugLevel
	return nil
}

// SetDebugMode lowers the default logger to debug level, or raises it back to info
func SetDebugMode(enabled bool) {
	mu.Lock()
	defer mu.Unlock()
	debugEnabled = enabled
	if enabled {
		defaultLogger = defaultLogger.Level(zerolog.DebugLevel)
	} else {
		defaultLogger = defaultLogger.Level(zerolog.InfoLevel)
	}
}

// IsDebugEnabled returns whether debug logging is enabled
func IsDebugEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return debugEnabled
}

// Get returns the current default logger
func Get() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	l := defaultLogger
	return &l
}

// WithComponent creates a child logger with a component field
func WithComponent(component string) zerolog.Logger {
	return Get().With().Str("component", component).Logger()
}

// Debug logs a formatted debug message
func Debug(format string, args ...interface{}) {
	Get().Debug().Msgf(format, args...)
}

// Info logs a formatted info message
func Info(format string, args ...interface{}) {
	Get().Info().Msgf(format, args...)
}

// Error logs a formatted error message
func Error(format string, args ...interface{}) {
	Get().Error().Msgf(format, args...)
}

// Warn logs a formatted warning message
func Warn(format string, args ...interface{}) {
	Get().Warn().Msgf(format, args...)
}
