// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/holomush/webauth/internal/auth"
	"github.com/holomush/webauth/internal/config"
	"github.com/holomush/webauth/internal/observability"
	"github.com/holomush/webauth/internal/store"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// BackendOpener connects the credential store.
	// Default: openBackend
	BackendOpener func(ctx context.Context, cfg *config.Config) (*Backend, error)

	// MigratorFactory creates a migrator for auto-migration.
	// Default: store.NewMigrator
	MigratorFactory func(driver store.Driver, target string) (AutoMigrator, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, ready observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer

	// WebServerFactory creates the application HTTP server.
	// Default: web.NewServer
	WebServerFactory func(addr string, handler http.Handler, logger *slog.Logger) WebServer

	// LogOutput receives console logs.
	// Default: os.Stderr
	LogOutput io.Writer

	// Now returns the current time; it names the log file.
	// Default: time.Now
	Now func() time.Time
}

// Backend is an opened credential store.
type Backend struct {
	Users    auth.UserRepository
	Sessions auth.SessionRecordRepository
	Ping     func(ctx context.Context) error
	Close    func()
}

// AutoMigrator wraps the methods used from store.Migrator on startup.
type AutoMigrator interface {
	Up() error
	Close() error
}

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

// WebServer wraps the methods used from web.Server.
type WebServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}
