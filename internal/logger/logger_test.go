package logger

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestParseLogLevel verifies mapping from strings to zapcore.Level and handling of unknown values.
func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		" Info ":  zapcore.InfoLevel,
		"warn":    zapcore.WarnLevel,
		"WARNING": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"fatal":   zapcore.FatalLevel,
	}
	for s, lvl := range cases {
		got, ok := ParseLogLevel(s)
		require.True(t, ok, s)
		require.Equal(t, lvl, got)
	}

	got, ok := ParseLogLevel("verbose")
	require.False(t, ok)
	require.Equal(t, zapcore.InfoLevel, got)
}

// TestFromContext_FallsBackToGlobal checks that a bare context yields the global logger.
func TestFromContext_FallsBackToGlobal(t *testing.T) {
	t.Parallel()

	require.Same(t, Logger(), FromContext(context.Background()))
}

// TestContextHelpers checks that names and fields travel with the context.
func TestContextHelpers(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	ctx := ToContext(context.Background(), zap.New(core).Sugar())
	ctx = WithName(ctx, "crx-packer")
	ctx = WithKV(ctx, "run", 1)

	WarnKV(ctx, "something odd", "detail", "x")

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "crx-packer", entries[0].LoggerName)
	require.Equal(t, zapcore.WarnLevel, entries[0].Level)
	require.Equal(t, int64(1), entries[0].ContextMap()["run"])
	require.Equal(t, "x", entries[0].ContextMap()["detail"])
}

// TestNew_WritesConsoleFormat ensures the console encoder writes the message to the writer.
func TestNew_WritesConsoleFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	l := New(&buf, zapcore.InfoLevel)
	l.Debug("hidden")
	l.Infow("visible", "key", "value")
	require.NoError(t, l.Sync())

	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "visible")
	require.Contains(t, buf.String(), "value")
}
