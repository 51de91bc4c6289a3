// Package logger provides structured logging utilities.
package logger

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a wrapper around zap.Logger.
type Logger struct {
	*zap.Logger
}

// Option adjusts how New builds the logger.
type Option func(*zap.Config)

// WithService stamps every entry with the service name.
func WithService(name string) Option {
	return func(c *zap.Config) {
		if c.InitialFields == nil {
			c.InitialFields = map[string]interface{}{}
		}
		c.InitialFields["service"] = name
	}
}

// WithOutput replaces stdout as the log sink.
func WithOutput(paths ...string) Option {
	return func(c *zap.Config) { c.OutputPaths = paths }
}

// New creates a JSON logger at level. ENV=development switches to the
// console encoder.
func New(level string, opts ...Option) (*Logger, error) {
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(ParseLevel(level))
	config.Sampling = nil
	config.EncoderConfig.TimeKey = "ts"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.EncodeDuration = zapcore.MillisDurationEncoder

	if os.Getenv("ENV") == "development" {
		config.Development = true
		config.Encoding = "console"
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	for _, opt := range opts {
		opt(&config)
	}

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return &Logger{Logger: logger}, nil
}

// NewDevelopment creates a development logger with pretty output.
func NewDevelopment() (*Logger, error) {
	config := zap.NewDevelopmentConfig()
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	config.OutputPaths = []string{"stderr"}

	logger, err := config.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{Logger: logger}, nil
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// With creates a child logger with additional fields.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{Logger: l.Logger.With(fields...)}
}

// ForRequest returns a child logger carrying the request's correlation id
// and user id. Empty values are left out.
func (l *Logger) ForRequest(correlationID, userID string) *Logger {
	fields := make([]zap.Field, 0, 2)
	if correlationID != "" {
		fields = append(fields, zap.String("correlation_id", correlationID))
	}
	if userID != "" {
		fields = append(fields, zap.String("user_id", userID))
	}
	return l.With(fields...)
}

// Printf lets the logger stand in for printf style loggers such as gorm's.
func (l *Logger) Printf(format string, args ...interface{}) {
	l.Sugar().Infof(strings.TrimSpace(format), args...)
}

// ParseLevel maps a level name to a zap level, defaulting to info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}
