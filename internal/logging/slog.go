package logging

import (
	"context"
	"log/slog"
	"os"
	"slices"

	"github.com/arloliu/splitsource/types"
)

// SlogLogger adapts a *slog.Logger to types.Logger.
type SlogLogger struct {
	logger *slog.Logger
}

var _ types.Logger = (*SlogLogger)(nil)

// NewSlog wraps logger. A nil logger falls back to slog.Default().
//
// Parameters:
//   - logger: The slog logger receiving fetcher, reader and enumerator events
//
// Returns:
//   - *SlogLogger: Adapter forwarding key-value pairs as slog attributes
//
// Example:
//
//	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
//	logger := logging.NewSlog(slog.New(handler))
//	logger.Info("fetcher started", "split", "orders.eu")
func NewSlog(logger *slog.Logger) *SlogLogger {
	if logger == nil {
		logger = slog.Default()
	}

	return &SlogLogger{logger: logger}
}

// NewSlogDefault wraps slog.Default().
//
// Returns:
//   - *SlogLogger: Adapter over the process-wide default slog logger
func NewSlogDefault() *SlogLogger {
	return NewSlog(nil)
}

// With returns a logger that adds keysAndValues to every entry, such as a reader
// id shared by all log lines of one source reader.
//
// Parameters:
//   - keysAndValues: Alternating keys and values
//
// Returns:
//   - *SlogLogger: Child logger; the receiver is unchanged
func (l *SlogLogger) With(keysAndValues ...any) *SlogLogger {
	return &SlogLogger{logger: l.logger.With(keysAndValues...)}
}

func (l *SlogLogger) Debug(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l *SlogLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Info(msg, keysAndValues...)
}

func (l *SlogLogger) Warn(msg string, keysAndValues ...any) {
	l.logger.Warn(msg, keysAndValues...)
}

func (l *SlogLogger) Error(msg string, keysAndValues ...any) {
	l.logger.Error(msg, keysAndValues...)
}

// Fatal logs at Error level with fatal=true, then exits with status 1.
func (l *SlogLogger) Fatal(msg string, keysAndValues ...any) {
	l.logger.Log(context.Background(), slog.LevelError, msg, append(slices.Clip(keysAndValues), "fatal", true)...)
	os.Exit(1) //nolint:revive // Fatal exits by contract
}
