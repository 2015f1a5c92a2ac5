// Package logx provides the standard logger implementation for toolhost.
package logx

import (
	"io"
	"log"
	"os"
	"sync"
)

// Level controls which messages a logger emits.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Logger defines the interface for logging used across the project.
type Logger interface {
	Debug(format string, v ...interface{})
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
	SetLevel(level Level)
}

// DefaultLogger provides a basic logger implementation using the standard
// log package. Messages below the configured level are dropped.
type DefaultLogger struct {
	logger *log.Logger
	level  Level
	mu     sync.Mutex
}

// NewDefaultLogger creates a new logger writing to stderr with standard flags.
func NewDefaultLogger() *DefaultLogger {
	return &DefaultLogger{
		logger: log.New(os.Stderr, "[toolhost] ", log.LstdFlags|log.Lmsgprefix),
		level:  LevelInfo,
	}
}

// NewLogger creates a logger writing to the given destination, for callers
// that want output somewhere other than stderr.
func NewLogger(w io.Writer) *DefaultLogger {
	return &DefaultLogger{
		logger: log.New(w, "[toolhost] ", log.LstdFlags|log.Lmsgprefix),
		level:  LevelInfo,
	}
}

func (l *DefaultLogger) logf(level Level, prefix, format string, v ...interface{}) {
	l.mu.Lock()
	min := l.level
	l.mu.Unlock()
	if level < min {
		return
	}
	l.logger.Printf(prefix+format, v...)
}

func (l *DefaultLogger) Debug(format string, v ...interface{}) {
	l.logf(LevelDebug, "DEBUG: ", format, v...)
}
func (l *DefaultLogger) Info(format string, v ...interface{}) {
	l.logf(LevelInfo, "INFO: ", format, v...)
}
func (l *DefaultLogger) Warn(format string, v ...interface{}) {
	l.logf(LevelWarn, "WARN: ", format, v...)
}
func (l *DefaultLogger) Error(format string, v ...interface{}) {
	l.logf(LevelError, "ERROR: ", format, v...)
}

// SetLevel updates the minimum level the logger emits.
func (l *DefaultLogger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// Ensure interface compliance
var _ Logger = (*DefaultLogger)(nil)

// NopLogger discards everything. Useful as a default in library code so
// callers that do not care about logging pass nothing.
type NopLogger struct{}

func NewNopLogger() *NopLogger { return &NopLogger{} }

func (*NopLogger) Debug(string, ...interface{}) {}
func (*NopLogger) Info(string, ...interface{})  {}
func (*NopLogger) Warn(string, ...interface{})  {}
func (*NopLogger) Error(string, ...interface{}) {}
func (*NopLogger) SetLevel(Level)               {}

var _ Logger = (*NopLogger)(nil)
