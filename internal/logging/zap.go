package logging

import (
	"go.uber.org/zap"

	"github.com/arloliu/splitsource/types"
)

// ZapLogger implements types.Logger on top of a zap.SugaredLogger.
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

var _ types.Logger = (*ZapLogger)(nil)

// NewZap wraps a zap.Logger.
//
// Example:
//
//	zl, _ := zap.NewProduction()
//	src, _ := splitsource.NewSource[string](cfg, splitsource.StringDeserializer{},
//	    splitsource.WithLogger(logging.NewZap(zl)))
func NewZap(l *zap.Logger) *ZapLogger {
	return &ZapLogger{sugar: l.Sugar()}
}

// NewZapSugared wraps an existing zap.SugaredLogger.
func NewZapSugared(s *zap.SugaredLogger) *ZapLogger {
	return &ZapLogger{sugar: s}
}

// Debug logs a debug-level message with optional key-value pairs.
func (z *ZapLogger) Debug(msg string, keysAndValues ...any) {
	z.sugar.Debugw(msg, keysAndValues...)
}

// Info logs an info-level message with optional key-value pairs.
func (z *ZapLogger) Info(msg string, keysAndValues ...any) {
	z.sugar.Infow(msg, keysAndValues...)
}

// Warn logs a warning-level message with optional key-value pairs.
func (z *ZapLogger) Warn(msg string, keysAndValues ...any) {
	z.sugar.Warnw(msg, keysAndValues...)
}

// Error logs an error-level message with optional key-value pairs.
func (z *ZapLogger) Error(msg string, keysAndValues ...any) {
	z.sugar.Errorw(msg, keysAndValues...)
}

// Fatal logs a fatal-level message and exits.
func (z *ZapLogger) Fatal(msg string, keysAndValues ...any) {
	z.sugar.Fatalw(msg, keysAndValues...)
}

// Sync flushes any buffered log entries.
func (z *ZapLogger) Sync() error {
	return z.sugar.Sync()
}
