package console

import (
	"github.com/mcpops/mcp-console-go/log"
)

// Logger is the logging interface consumed by the console core.
// It is satisfied by the zap-backed logger in the log package.
type Logger = log.Logger

// NewZapLogger returns the default zap-backed Logger.
func NewZapLogger() Logger {
	return log.NewZapLogger()
}

// SetDefaultLogger sets the global default logger.
func SetDefaultLogger(l Logger) {
	log.SetLogger(l)
}

// GetDefaultLogger returns the global default logger.
func GetDefaultLogger() Logger {
	return log.GetLogger()
}
