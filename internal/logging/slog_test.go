package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferedSlog(level slog.Level) (*SlogLogger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	handler := slog.NewTextHandler(buf, &slog.HandlerOptions{Level: level})

	return NewSlog(slog.New(handler)), buf
}

func TestNewSlogDefault(t *testing.T) {
	logger := NewSlogDefault()

	require.NotNil(t, logger)
	require.NotNil(t, logger.logger)
}

func TestSlogLogger_Levels(t *testing.T) {
	tests := []struct {
		name  string
		log   func(l *SlogLogger)
		want  []string
		level slog.Level
	}{
		{
			name:  "debug",
			log:   func(l *SlogLogger) { l.Debug("fetch cycle", "split", "orders.eu") },
			want:  []string{"fetch cycle", "split=orders.eu", "level=DEBUG"},
			level: slog.LevelDebug,
		},
		{
			name:  "info",
			log:   func(l *SlogLogger) { l.Info("fetcher started", "fetcherID", 3) },
			want:  []string{"fetcher started", "fetcherID=3", "level=INFO"},
			level: slog.LevelInfo,
		},
		{
			name:  "warn",
			log:   func(l *SlogLogger) { l.Warn("pause not enforced", "splits", 1) },
			want:  []string{"pause not enforced", "splits=1", "level=WARN"},
			level: slog.LevelWarn,
		},
		{
			name:  "error",
			log:   func(l *SlogLogger) { l.Error("fetch failed", "error", "timeout") },
			want:  []string{"fetch failed", "error=timeout", "level=ERROR"},
			level: slog.LevelError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, buf := newBufferedSlog(tt.level)
			tt.log(logger)

			output := buf.String()
			for _, w := range tt.want {
				assert.Contains(t, output, w)
			}
		})
	}
}

func TestNewSlog_NilUsesDefault(t *testing.T) {
	logger := NewSlog(nil)

	require.Same(t, slog.Default(), logger.logger)
}

func TestSlogLogger_With(t *testing.T) {
	logger, buf := newBufferedSlog(slog.LevelInfo)

	child := logger.With("reader", "reader-1")
	child.Info("splits added", "count", 2)
	logger.Info("fetcher retired")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "reader=reader-1")
	assert.Contains(t, lines[0], "count=2")
	assert.NotContains(t, lines[1], "reader=")
}

func TestSlogLogger_LevelFiltering(t *testing.T) {
	logger, buf := newBufferedSlog(slog.LevelWarn)

	logger.Debug("debug message")
	logger.Info("info message")
	assert.Empty(t, buf.String())

	logger.Warn("warn message")
	logger.Error("error message")

	output := buf.String()
	assert.Contains(t, output, "warn message")
	assert.Contains(t, output, "error message")
}

func TestNopLogger(t *testing.T) {
	l := NewNop()
	l.Debug("x", "k", "v")
	l.Info("x")
	l.Warn("x")
	l.Error("x")
	l.Fatal("x")

	require.Same(t, l, OrNop(l))
	require.IsType(t, &NopLogger{}, OrNop(nil))
}
