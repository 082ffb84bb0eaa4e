package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry), "entry=%s", buf.String())
	return entry
}

func TestErrorIncludesContextFieldsAndStack(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: ParseLevel("debug"), Format: "json", Output: buf})

	ctx := log.WithRequestID(context.Background(), "req-123")
	ctx = log.WithOrderID(ctx, "LINE-AB12-20260115")
	log.Error(ctx, "consume failed", errors.New("boom"))

	entry := decodeLine(t, buf)
	assert.Equal(t, "req-123", entry["request_id"])
	assert.Equal(t, "LINE-AB12-20260115", entry["order_id"])
	assert.Equal(t, "boom", entry["error"])
	assert.Equal(t, "test", entry["service"])
	assert.Contains(t, entry, "stack")
}

func TestWarnStackToggle(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Format: "json", Output: buf, WarnStack: true})
	log.Warn(context.Background(), "low stock")
	assert.Contains(t, decodeLine(t, buf), "stack")

	buf.Reset()
	quiet := New(Options{ServiceName: "test", Format: "json", Output: buf})
	quiet.Warn(context.Background(), "low stock")
	assert.NotContains(t, decodeLine(t, buf), "stack")
}

func TestWithFieldsDoesNotLeakIntoParentContext(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Format: "json", Output: buf})

	parent := log.WithField(context.Background(), "job", "segmentation-refresh")
	_ = log.WithFields(parent, map[string]any{"customers": 12})
	log.Info(parent, "job start")

	entry := decodeLine(t, buf)
	assert.Equal(t, "segmentation-refresh", entry["job"])
	assert.NotContains(t, entry, "customers")
}

func TestParseLevelDefaults(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("invalid"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel(" WARN "))
}

func TestDebugRespectsLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: zerolog.InfoLevel, Format: "json", Output: buf})
	log.Debug(context.Background(), "hidden")
	assert.Zero(t, buf.Len())
}

func TestNopWritesNothingAndKeepsContextUsable(t *testing.T) {
	log := Nop()
	ctx := log.WithField(context.Background(), "k", "v")
	log.Error(ctx, "ignored", errors.New("boom"))
	require.NotNil(t, ctx)
}

func TestConsoleFormatIsNotJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "farmctl", Format: FormatConsole, Output: buf})
	log.Info(context.Background(), "moved 3 crates")
	assert.Contains(t, buf.String(), "moved 3 crates")
	assert.False(t, json.Valid(bytes.TrimSpace(buf.Bytes())))
}
