package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSlog(t *testing.T, level Level) (Logger, *bytes.Buffer) {
	t.Helper()
	t.Setenv("ENV", "production")

	var buf bytes.Buffer

	return NewSlogWriter(&buf, level, false), &buf
}

func decodeRecords(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()

	var records []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		rec := map[string]any{}
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		records = append(records, rec)
	}

	return records
}

func TestSlogLogger_JSON(t *testing.T) {
	l, buf := newTestSlog(t, InfoLevel)

	l.Info("zbus: adapter finished", "adapter", "dut", "frames", 3)

	records := decodeRecords(t, buf)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Contains(t, rec, "ts")
	assert.NotContains(t, rec, "time")
	assert.Equal(t, "INFO", rec["level"])
	assert.Equal(t, "zbus: adapter finished", rec["msg"])
	assert.Equal(t, "dut", rec["adapter"])
	assert.InDelta(t, 3, rec["frames"], 0)
}

func TestSlogLogger_LevelFilter(t *testing.T) {
	l, buf := newTestSlog(t, WarnLevel)

	l.Debug("debug")
	l.Info("info")
	l.Warn("warn")
	l.Error("error")

	records := decodeRecords(t, buf)
	require.Len(t, records, 2)
	assert.Equal(t, "warn", records[0]["msg"])
	assert.Equal(t, "error", records[1]["msg"])
}

func TestSlogLogger_SetLevel(t *testing.T) {
	l, buf := newTestSlog(t, InfoLevel)
	assert.Equal(t, InfoLevel, l.Level())

	l.Debug("hidden")
	l.SetLevel(DebugLevel)
	assert.Equal(t, DebugLevel, l.Level())
	l.Debug("shown")

	records := decodeRecords(t, buf)
	require.Len(t, records, 1)
	assert.Equal(t, "shown", records[0]["msg"])
}

func TestSlogLogger_With(t *testing.T) {
	l, buf := newTestSlog(t, InfoLevel)

	child := l.With("channel", "pipe-a")
	child.Info("child")
	l.Info("parent")

	// the child shares its parent's level
	l.SetLevel(ErrorLevel)
	assert.Equal(t, ErrorLevel, child.Level())
	child.Info("filtered")

	records := decodeRecords(t, buf)
	require.Len(t, records, 2)
	assert.Equal(t, "pipe-a", records[0]["channel"])
	assert.NotContains(t, records[1], "channel")
}

func TestMockLogger_With(t *testing.T) {
	m := NewMockLogger()
	assert.Same(t, m, m.With("k", "v"))

	m.On("Info", "hello", []any{"k", "v"}).Return()
	m.Info("hello", "k", "v")
	m.AssertExpectations(t)
}

func TestSetDefault(t *testing.T) {
	prev := Default()
	t.Cleanup(func() { SetDefault(prev) })

	l, buf := newTestSlog(t, InfoLevel)
	SetDefault(l)
	assert.Same(t, l, GetLogger())

	Info("zbus: default logger", "adapter", "dut")
	Debug("filtered")

	records := decodeRecords(t, buf)
	require.Len(t, records, 1)
	assert.Equal(t, "zbus: default logger", records[0]["msg"])
	assert.Equal(t, "dut", records[0]["adapter"])

	SetDefault(nil)
	assert.Same(t, l, Default(), "nil must not replace the default")
}
