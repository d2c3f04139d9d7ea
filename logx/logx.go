// Package logx defines the logging interface used across mcpwire and a
// slog-backed default implementation.
package logx

import (
	"io"
	"log/slog"
	"os"
)

// Logger is the logging interface accepted throughout the module. Args are
// alternating key/value pairs, slog style.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

type slogLogger struct {
	l *slog.Logger
}

func (s *slogLogger) Debug(msg string, args ...interface{}) { s.l.Debug(msg, args...) }
func (s *slogLogger) Info(msg string, args ...interface{})  { s.l.Info(msg, args...) }
func (s *slogLogger) Warn(msg string, args ...interface{})  { s.l.Warn(msg, args...) }
func (s *slogLogger) Error(msg string, args ...interface{}) { s.l.Error(msg, args...) }

// New wraps an existing slog logger.
func New(l *slog.Logger) Logger {
	return &slogLogger{l: l}
}

// Default returns a text logger writing to stderr at info level. Logs must
// never go to stdout: on the stdio transport stdout belongs to the wire.
func Default() Logger {
	return New(slog.New(slog.NewTextHandler(os.Stderr, nil)))
}

// Discard returns a logger that drops everything.
func Discard() Logger {
	return New(slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(127),
	})))
}
