// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/holomush/webauth/pkg/errutil"
)

func newTestLogger(t *testing.T, opts Options, buf *bytes.Buffer) *slog.Logger {
	t.Helper()
	logger, err := Setup(opts, buf)
	require.NoError(t, err)
	return logger
}

func TestSetup_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(t, Options{Service: "webauth", Version: "1.0.0", Format: "json"}, &buf)

	logger.Info("test message")

	var entry map[string]any
	err := json.Unmarshal(buf.Bytes(), &entry)
	require.NoError(t, err, "Failed to parse JSON: %s", buf.String())

	assert.Equal(t, "test message", entry["msg"])
	assert.Equal(t, "webauth", entry["service"])
	assert.Equal(t, "1.0.0", entry["version"])
	assert.Contains(t, entry, "time", "time field missing")
	assert.Contains(t, entry, "level", "level field missing")
}

func TestSetup_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(t, Options{Service: "webauth", Version: "1.0.0", Format: "text"}, &buf)

	logger.Info("test message")

	output := buf.String()
	assert.Contains(t, output, "test message")
	assert.Contains(t, output, "service=webauth")
}

func TestSetup_DefaultFormatIsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(t, Options{Service: "webauth"}, &buf)

	logger.Info("test message")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "Default format should be JSON")
}

func TestSetup_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(t, Options{Service: "webauth", Level: "warn"}, &buf)

	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestSetup_InvalidLevel(t *testing.T) {
	_, err := Setup(Options{Level: "loud"}, &bytes.Buffer{})
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "LOG_LEVEL_INVALID")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":        slog.LevelInfo,
		"info":    slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for name, want := range tests {
		got, err := ParseLevel(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
}

func TestHandler_TraceContext(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(t, Options{Service: "webauth", Version: "1.0.0"}, &buf)

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	spanCtx := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), spanCtx)

	logger.InfoContext(ctx, "traced message")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", entry["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", entry["span_id"])
}

func TestHandler_NoTraceContext(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(t, Options{Service: "webauth"}, &buf)

	logger.Info("no trace message")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.NotContains(t, entry, "trace_id")
	assert.NotContains(t, entry, "span_id")
}

func TestHandler_WithAttrsKeepsServiceIdentity(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(t, Options{Service: "webauth", Version: "2.0.0"}, &buf)

	logger.With("request_id", "abc").WithGroup("http").Info("grouped", "status", 200)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "abc", entry["request_id"])
	assert.Contains(t, buf.String(), `"service":"webauth"`)
}

func TestFileName(t *testing.T) {
	ts := time.Date(2026, 1, 31, 14, 25, 1, 0, time.UTC)
	assert.Equal(t, "webauth_20260131_142501.log", FileName("webauth", ts))
	assert.Equal(t, "my_auth_app_20260131_142501.log", FileName(" My Auth App ", ts))
	assert.Equal(t, ".._.._etc_cron.d_20260131_142501.log", FileName("../../etc/cron.d", ts))
	assert.Equal(t, "c:_evil_20260131_142501.log", FileName(`C:\evil`, ts))
}

func TestOpen_AppNameCannotEscapeDirectory(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "logs")
	ts := time.Date(2026, 1, 31, 14, 25, 1, 0, time.UTC)

	logger, closer, err := Open(Options{Service: "webauth", AppName: "../escaped"}, &bytes.Buffer{}, dir, ts)
	require.NoError(t, err)
	logger.Info("contained")
	require.NoError(t, closer.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ".._escaped_20260131_142501.log", entries[0].Name())
	_, err = os.Stat(filepath.Join(root, "escaped_20260131_142501.log"))
	assert.True(t, os.IsNotExist(err))
}

func TestOpen_WritesConsoleAndFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	ts := time.Date(2026, 1, 31, 14, 25, 1, 0, time.UTC)
	var console bytes.Buffer

	logger, closer, err := Open(Options{Service: "webauth", Format: "text"}, &console, dir, ts)
	require.NoError(t, err)

	logger.Info("user logged in", "username", "alice")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(filepath.Join(dir, "webauth_20260131_142501.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "user logged in")
	assert.Contains(t, console.String(), "user logged in")
}

func TestOpen_WithoutDirectory(t *testing.T) {
	var console bytes.Buffer
	logger, closer, err := Open(Options{Service: "webauth"}, &console, "", time.Now())
	require.NoError(t, err)
	defer func() { _ = closer.Close() }()

	logger.Info("console only")
	assert.True(t, strings.Contains(console.String(), "console only"))
}

func TestHandler_RequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(t, Options{Service: "webauth"}, &buf)

	ctx := WithRequestID(context.Background(), "01HZX")
	assert.Equal(t, "01HZX", RequestID(ctx))
	assert.Equal(t, "", RequestID(context.Background()))

	logger.InfoContext(ctx, "with id")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "01HZX", entry["request_id"])
}
