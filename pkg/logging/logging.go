// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging provides structured logging for the control plane,
// backed by zap.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field represents a key-value pair in structured logging.
type Field = zap.Field

// NewField creates a new field.
func NewField(key string, value interface{}) Field {
	return zap.Any(key, value)
}

// Logger provides structured logging.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	WithFields(fields ...Field) Logger
}

// loggerImpl wraps a zap.Logger to satisfy Logger.
type loggerImpl struct {
	z *zap.Logger
}

// NewLogger creates a new logger.
// If verbose is true, Debug level logs are shown.
func NewLogger(verbose bool) Logger {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	z, err := cfg.Build()
	if err != nil {
		// Fall back to a no-op logger rather than panic: logging must
		// never be fatal to the caller.
		z = zap.NewNop()
	}

	return &loggerImpl{z: z}
}

// NewNop returns a logger that discards everything; useful in tests.
func NewNop() Logger {
	return &loggerImpl{z: zap.NewNop()}
}

func (l *loggerImpl) Debug(msg string, fields ...Field) { l.z.Debug(msg, fields...) }
func (l *loggerImpl) Info(msg string, fields ...Field)  { l.z.Info(msg, fields...) }
func (l *loggerImpl) Warn(msg string, fields ...Field)  { l.z.Warn(msg, fields...) }
func (l *loggerImpl) Error(msg string, fields ...Field) { l.z.Error(msg, fields...) }

func (l *loggerImpl) WithFields(fields ...Field) Logger {
	return &loggerImpl{z: l.z.With(fields...)}
}
