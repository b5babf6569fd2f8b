package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// Interface compliance (compile-time assertions)
var (
	_ Logger = (*SlogAdapter)(nil)
	_ Logger = (*ZapAdapter)(nil)
	_ Logger = NoOpLogger{}
)

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug":   LogLevelDebug,
		"INFO":    LogLevelInfo,
		"":        LogLevelInfo,
		"warning": LogLevelWarn,
		"warn":    LogLevelWarn,
		"error":   LogLevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestNewLogger_SlogJSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelInfo, Format: "json", Output: &buf, Component: "engine"})

	l.Debug("hidden")
	l.Info("dispatch.completed", "session_id", "s1")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "dispatch.completed", rec["msg"])
	assert.Equal(t, "s1", rec["session_id"])
	assert.Equal(t, "engine", rec["component"])
}

func TestNewLogger_SlogText(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelDebug, Format: "text", Output: &buf})
	l.Debug("probe", "k", "v")
	assert.Contains(t, buf.String(), "k=v")
}

func TestNewLogger_Zap(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelWarn, Backend: BackendZap, Output: &buf})
	l.Info("hidden")
	l.Warn("router.exhausted", "attempts", 2)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "router.exhausted")
	assert.Contains(t, out, `"attempts":2`)
}

func TestDomainHelpers(t *testing.T) {
	obsCore, logs := observer.New(zapcore.DebugLevel)
	l := NewZapAdapter(zap.New(obsCore))

	LogCapabilityCall(l, "shell", "s1", "ok", 15*time.Millisecond, nil)
	LogProviderCall(l, "openai", "gpt-4o-mini", time.Second, errors.New("401"))
	LogStoreFailure(l, "fast", "push", "s1", errors.New("dial tcp: refused"))

	entries := logs.AllUntimed()
	require.Len(t, entries, 3)

	assert.Equal(t, "capability.call.completed", entries[0].Message)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, int64(15), entries[0].ContextMap()["duration_ms"])

	assert.Equal(t, "provider.call.failed", entries[1].Message)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "401", entries[1].ContextMap()["error"])

	assert.Equal(t, "memory.store.failed", entries[2].Message)
	assert.Equal(t, "fast", entries[2].ContextMap()["store"])
}

func TestOrNoOp(t *testing.T) {
	assert.Equal(t, NoOpLogger{}, OrNoOp(nil))
	l := NewDefaultSlogLogger()
	assert.Same(t, l, OrNoOp(l))
}
