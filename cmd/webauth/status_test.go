// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/webauth/internal/observability"
	"github.com/holomush/webauth/pkg/errutil"
)

func startObservability(t *testing.T, ready bool) string {
	t.Helper()
	srv := observability.NewServer("127.0.0.1:0", func() bool { return ready }, nil)
	_, err := srv.Start()
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Stop(ctx)
	})
	return srv.Addr()
}

func startAPI(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/status" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"status":"running","authenticated":false}`))
	}))
	t.Cleanup(srv.Close)
	return strings.TrimPrefix(srv.URL, "http://")
}

func runStatusCmd(t *testing.T, cfg *statusConfig) (string, error) {
	t.Helper()
	cmd := &cobra.Command{}
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	err := runStatus(context.Background(), cmd, cfg)
	return buf.String(), err
}

func TestStatus_AllHealthy(t *testing.T) {
	cfg := &statusConfig{
		addr:        startAPI(t),
		metricsAddr: startObservability(t, true),
		timeout:     2 * time.Second,
	}

	output, err := runStatusCmd(t, cfg)

	require.NoError(t, err)
	assert.Contains(t, output, "ENDPOINT")
	assert.Contains(t, output, "liveness")
	assert.Contains(t, output, "running")
	assert.NotContains(t, output, "down")
}

func TestStatus_NotReady(t *testing.T) {
	cfg := &statusConfig{
		addr:        startAPI(t),
		metricsAddr: startObservability(t, false),
		timeout:     2 * time.Second,
	}

	output, err := runStatusCmd(t, cfg)

	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "SERVER_UNHEALTHY")
	errutil.AssertErrorContext(t, err, "endpoint", "readiness")
	assert.Contains(t, output, "503")
}

func TestStatus_JSONOutputWhenDown(t *testing.T) {
	cfg := &statusConfig{
		addr:        "127.0.0.1:1",
		metricsAddr: "127.0.0.1:1",
		jsonOutput:  true,
		timeout:     500 * time.Millisecond,
	}

	output, err := runStatusCmd(t, cfg)

	require.Error(t, err)
	var statuses []EndpointStatus
	require.NoError(t, json.Unmarshal([]byte(output), &statuses), output)
	require.Len(t, statuses, 3)
	for _, s := range statuses {
		assert.False(t, s.Up, s.Endpoint)
		assert.Contains(t, s.Error, "failed to connect")
	}
}

func TestBaseURL(t *testing.T) {
	tests := map[string]string{
		":8080":          "http://127.0.0.1:8080",
		"0.0.0.0:9100":   "http://127.0.0.1:9100",
		"localhost:8080": "http://localhost:8080",
		"[::]:8080":      "http://127.0.0.1:8080",
		"example":        "http://example",
	}
	for in, want := range tests {
		assert.Equal(t, want, baseURL(in), in)
	}
}

func TestFormatStatusTable(t *testing.T) {
	out := formatStatusTable([]EndpointStatus{
		{Endpoint: "liveness", Up: true, Detail: "ok"},
		{Endpoint: "api", Error: "failed to connect: refused"},
	})

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[2], "up")
	assert.Contains(t, lines[3], "down")
	assert.Contains(t, lines[3], "failed to connect")
}
