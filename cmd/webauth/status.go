// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/webauth/internal/config"
)

// EndpointStatus is the outcome of probing one endpoint of a running server.
type EndpointStatus struct {
	Endpoint string `json:"endpoint"`
	URL      string `json:"url"`
	Up       bool   `json:"up"`
	Detail   string `json:"detail,omitempty"`
	Error    string `json:"error,omitempty"`
}

// statusConfig holds configuration for the status command.
type statusConfig struct {
	addr        string
	metricsAddr string
	jsonOutput  bool
	timeout     time.Duration
}

// NewStatusCmd creates the status subcommand.
func NewStatusCmd() *cobra.Command {
	cfg := &statusConfig{}
	def := config.Default()

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the health of a running webauth server",
		Long: `Check the liveness and readiness endpoints of the observability
listener and the status API of the web listener.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context(), cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.addr, "addr", def.HTTP.Addr, "web listen address of the server")
	cmd.Flags().StringVar(&cfg.metricsAddr, "metrics-addr", def.Metrics.Addr, "observability listen address of the server")
	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", 2*time.Second, "per-request timeout")

	return cmd
}

// runStatus checks every endpoint and prints the results.
func runStatus(ctx context.Context, cmd *cobra.Command, cfg *statusConfig) error {
	client := &http.Client{Timeout: cfg.timeout}

	statuses := []EndpointStatus{
		checkEndpoint(ctx, client, "liveness", baseURL(cfg.metricsAddr)+"/healthz/liveness", plainDetail),
		checkEndpoint(ctx, client, "readiness", baseURL(cfg.metricsAddr)+"/healthz/readiness", plainDetail),
		checkEndpoint(ctx, client, "api", baseURL(cfg.addr)+"/api/status", apiDetail),
	}

	if cfg.jsonOutput {
		output, err := formatStatusJSON(statuses)
		if err != nil {
			return err
		}
		cmd.Println(output)
	} else {
		cmd.Print(formatStatusTable(statuses))
	}

	for _, s := range statuses {
		if !s.Up {
			return oops.Code("SERVER_UNHEALTHY").With("endpoint", s.Endpoint).Errorf("%s is not healthy", s.Endpoint)
		}
	}
	return nil
}

// baseURL turns a listen address such as ":8080" into a dialable URL.
func baseURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

func checkEndpoint(ctx context.Context, client *http.Client, name, url string, detail func([]byte) string) EndpointStatus {
	status := EndpointStatus{Endpoint: name, URL: url}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		status.Error = err.Error()
		return status
	}
	resp, err := client.Do(req)
	if err != nil {
		status.Error = fmt.Sprintf("failed to connect: %v", err)
		return status
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		status.Error = fmt.Sprintf("failed to read response: %v", err)
		return status
	}

	status.Up = resp.StatusCode == http.StatusOK
	status.Detail = detail(body)
	if !status.Up {
		status.Error = resp.Status
	}
	return status
}

func plainDetail(body []byte) string {
	return strings.TrimSpace(string(body))
}

func apiDetail(body []byte) string {
	var resp struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "unexpected response"
	}
	return resp.Status
}

// formatStatusTable formats the statuses as a human-readable table.
func formatStatusTable(statuses []EndpointStatus) string {
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "ENDPOINT\tSTATUS\tDETAIL")
	_, _ = fmt.Fprintln(w, "--------\t------\t------")
	for _, s := range statuses {
		state, detail := "up", s.Detail
		if !s.Up {
			state, detail = "down", s.Error
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", s.Endpoint, state, detail)
	}

	_ = w.Flush()
	return buf.String()
}

// formatStatusJSON formats the statuses as JSON.
func formatStatusJSON(statuses []EndpointStatus) (string, error) {
	data, err := json.MarshalIndent(statuses, "", "  ")
	if err != nil {
		return "", oops.Code("STATUS_FORMAT_FAILED").Wrap(err)
	}
	return string(data), nil
}
