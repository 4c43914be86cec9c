// Package logger is a thin wrapper around a process wide zap logger.
package logger

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggerOptions is one structured field attached to a log entry.
type LoggerOptions struct {
	Key  string
	Data any
}

var (
	mu     sync.RWMutex
	global = zap.NewNop()
)

// Initialize replaces the global logger. level is one of debug, info, warn
// or error; json switches from console to JSON encoding.
func Initialize(level string, json bool) error {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	if !json {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = true

	l, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	Set(l)
	return nil
}

// Set replaces the global logger, mostly for tests.
func Set(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	global = l
}

// L returns the current global logger.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return global
}

func fields(payload []LoggerOptions) []zapcore.Field {
	zapFields := make([]zapcore.Field, 0, len(payload))
	for _, data := range payload {
		if err, ok := data.Data.(error); ok {
			zapFields = append(zapFields, zap.NamedError(data.Key, err))
			continue
		}
		zapFields = append(zapFields, zap.Any(data.Key, data.Data))
	}
	return zapFields
}

func Debug(msg string, payload ...LoggerOptions) {
	L().Debug(msg, fields(payload)...)
}

func Info(msg string, payload ...LoggerOptions) {
	L().Info(msg, fields(payload)...)
}

func Warning(msg string, payload ...LoggerOptions) {
	L().Warn(msg, fields(payload)...)
}

// Error logs an incident; pass the error itself with key "error".
func Error(msg string, payload ...LoggerOptions) {
	L().Error(msg, fields(payload)...)
}

// Sync flushes buffered entries.
func Sync() {
	_ = L().Sync()
}
