package log

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger is a Zap-based implementation of the logger.
type ZapLogger struct {
	logger *zap.SugaredLogger
	level  Level
}

// Ensure ZapLogger implements the Logger interface.
var _ Logger = (*ZapLogger)(nil)

// NewZapLogger creates a new Zap-based logger instance.
// The initial level is read from the LOG_LEVEL environment variable,
// defaulting to info.
func NewZapLogger() *ZapLogger {
	config := zap.NewProductionEncoderConfig()
	config.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncodeLevel = zapcore.CapitalLevelEncoder

	level := InfoLevel
	if envLevel := os.Getenv("LOG_LEVEL"); envLevel != "" {
		for l := DebugLevel; l <= FatalLevel; l++ {
			if l.String() == envLevel {
				level = l
				break
			}
		}
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(config),
		zapcore.AddSync(os.Stdout),
		zapToLevel(level),
	)

	zapLogger := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	return &ZapLogger{
		logger: zapLogger.Sugar(),
		level:  level,
	}
}

// zapToLevel converts our log level to Zap log level.
func zapToLevel(level Level) zapcore.LevelEnabler {
	switch level {
	case DebugLevel:
		return zapcore.DebugLevel
	case InfoLevel:
		return zapcore.InfoLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	case FatalLevel:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// Debug implements the Logger interface.
func (z *ZapLogger) Debug(args ...interface{}) {
	z.logger.Debug(args...)
}

func (z *ZapLogger) Debugf(format string, args ...interface{}) {
	z.logger.Debugf(format, args...)
}

func (z *ZapLogger) Info(args ...interface{}) {
	z.logger.Info(args...)
}

func (z *ZapLogger) Infof(format string, args ...interface{}) {
	z.logger.Infof(format, args...)
}

func (z *ZapLogger) Warn(args ...interface{}) {
	z.logger.Warn(args...)
}

func (z *ZapLogger) Warnf(format string, args ...interface{}) {
	z.logger.Warnf(format, args...)
}

func (z *ZapLogger) Error(args ...interface{}) {
	z.logger.Error(args...)
}

func (z *ZapLogger) Errorf(format string, args ...interface{}) {
	z.logger.Errorf(format, args...)
}

func (z *ZapLogger) Fatal(args ...interface{}) {
	z.logger.Fatal(args...)
}

func (z *ZapLogger) Fatalf(format string, args ...interface{}) {
	z.logger.Fatalf(format, args...)
}

func (z *ZapLogger) WithFields(fields map[string]interface{}) Logger {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}

	return &ZapLogger{
		logger: z.logger.With(args...),
		level:  z.level,
	}
}

func (z *ZapLogger) SetLevel(level Level) {
	z.level = level
	// Note: the level of an already created zap core cannot be changed;
	// callers that need a different level should construct a new logger.
}

func (z *ZapLogger) GetLevel() Level {
	return z.level
}
