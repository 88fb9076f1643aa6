package utils

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger provides structured, leveled logging throughout the application.
type Logger struct {
	zl zerolog.Logger
}

// NewLogger creates a Logger writing to stdout. LOG_LEVEL selects the level;
// ENVIRONMENT=production switches from the console writer to JSON lines.
func NewLogger() *Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "2006-01-02 15:04:05"}
	if strings.EqualFold(os.Getenv("ENVIRONMENT"), "production") {
		out = os.Stdout
	}

	zl := zerolog.New(out).Level(levelFromEnv()).With().Timestamp().Logger()
	return &Logger{zl: zl}
}

// NewNopLogger returns a Logger that discards everything.
func NewNopLogger() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

func levelFromEnv() zerolog.Level {
	raw := os.Getenv("LOG_LEVEL")
	if raw == "" {
		if strings.EqualFold(os.Getenv("ENVIRONMENT"), "production") {
			return zerolog.InfoLevel
		}
		return zerolog.DebugLevel
	}
	level, err := zerolog.ParseLevel(strings.ToLower(raw))
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

// With returns a child logger carrying one extra field.
func (l *Logger) With(key string, value any) *Logger {
	return &Logger{zl: l.zl.With().Interface(key, value).Logger()}
}

// ForVendor scopes a logger to one vendor run.
func (l *Logger) ForVendor(vendor string) *Logger {
	return &Logger{zl: l.zl.With().Str("vendor", vendor).Logger()}
}

// ForComponent scopes a logger to one component.
func (l *Logger) ForComponent(component string) *Logger {
	return &Logger{zl: l.zl.With().Str("component", component).Logger()}
}

func (l *Logger) Info(format string, args ...any) {
	l.zl.Info().Msg(fmt.Sprintf(format, args...))
}

func (l *Logger) Warn(format string, args ...any) {
	l.zl.Warn().Msg(fmt.Sprintf(format, args...))
}

func (l *Logger) Error(format string, args ...any) {
	l.zl.Error().Msg(fmt.Sprintf(format, args...))
}

func (l *Logger) Debug(format string, args ...any) {
	l.zl.Debug().Msg(fmt.Sprintf(format, args...))
}

// Err logs err at error level with a message.
func (l *Logger) Err(err error, format string, args ...any) {
	l.zl.Error().Err(err).Msg(fmt.Sprintf(format, args...))
}
