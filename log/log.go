// Package log provides logging for the gateway console core.
package log

import "sync"

var (
	// global is the default global logger instance.
	global Logger
	// mu protects concurrent access to the global logger instance.
	mu sync.RWMutex
)

func init() {
	SetLogger(NewZapLogger())
}

// Logger defines the core interface for the logging system.
type Logger interface {
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})
	Info(args ...interface{})
	Infof(format string, args ...interface{})
	Warn(args ...interface{})
	Warnf(format string, args ...interface{})
	Error(args ...interface{})
	Errorf(format string, args ...interface{})
	Fatal(args ...interface{})
	Fatalf(format string, args ...interface{})

	// Structured logging with fields.
	WithFields(fields map[string]interface{}) Logger

	// Control.
	SetLevel(level Level)
	GetLevel() Level
}

// Level represents logging level.
type Level int

// Logging level constants, from low to high.
const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

// String returns the string representation of log level.
func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "debug"
	case InfoLevel:
		return "info"
	case WarnLevel:
		return "warn"
	case ErrorLevel:
		return "error"
	case FatalLevel:
		return "fatal"
	default:
		return "unknown"
	}
}

// SetLogger sets the global logger instance.
func SetLogger(logger Logger) {
	if logger == nil {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	global = logger
}

// GetLogger returns the global logger instance.
func GetLogger() Logger {
	mu.RLock()
	defer mu.RUnlock()
	return global
}
