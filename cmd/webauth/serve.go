// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/webauth/internal/audit"
	"github.com/holomush/webauth/internal/auth"
	"github.com/holomush/webauth/internal/auth/postgres"
	"github.com/holomush/webauth/internal/auth/sqlite"
	"github.com/holomush/webauth/internal/config"
	"github.com/holomush/webauth/internal/logging"
	"github.com/holomush/webauth/internal/observability"
	"github.com/holomush/webauth/internal/store"
	"github.com/holomush/webauth/internal/web"
	"github.com/holomush/webauth/internal/xdg"
	"github.com/holomush/webauth/pkg/errutil"
)

// Timeouts used around the serve lifecycle.
const (
	shutdownTimeout  = 10 * time.Second
	readinessTimeout = 2 * time.Second
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web server",
		Long: `Start the web server: registration, login, logout, the protected
home page and the JSON status API, plus the metrics and health listener.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runServeWithDeps(cmd.Context(), cfg, cmd, nil)
		},
	}

	config.RegisterFlags(cmd.Flags())
	return cmd
}

// runServeWithDeps runs the server until a signal arrives, ctx ends, or a
// listener fails. If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cfg *config.Config, cmd *cobra.Command, deps *ServeDeps) error {
	deps = withServeDefaults(deps)

	logger, logCloser, err := logging.Open(logging.Options{
		Service: "webauth",
		Version: version,
		Format:  cfg.Logging.Format,
		Level:   cfg.Logging.Level,
		AppName: cfg.App.Name,
	}, deps.LogOutput, cfg.Logging.LogDirectory(), deps.Now())
	if err != nil {
		return oops.Code("LOGGING_SETUP_FAILED").Wrap(err)
	}
	defer func() { _ = logCloser.Close() }()
	slog.SetDefault(logger)

	if cfg.App.Release {
		gin.SetMode(gin.ReleaseMode)
	}

	logger.Info("starting webauth",
		"addr", cfg.HTTP.Addr,
		"driver", cfg.Database.Driver,
		"session_store", cfg.Session.Store,
	)

	driver, err := store.ParseDriver(cfg.Database.Driver)
	if err != nil {
		return err
	}
	target := migrationTarget(driver, cfg)
	if driver == store.DriverSQLite {
		if err := xdg.EnsureDir(filepath.Dir(target)); err != nil {
			return err
		}
	}

	if cfg.Database.AutoMigrate {
		if err := runAutoMigration(driver, target, deps.MigratorFactory, logger); err != nil {
			return err
		}
	} else {
		logger.Info("auto-migration disabled")
	}

	backend, err := deps.BackendOpener(ctx, cfg)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("driver", cfg.Database.Driver).Wrap(err)
	}
	defer backend.Close()
	logger.Info("connected to database", "driver", cfg.Database.Driver)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var obsServer ObservabilityServer
	var metrics *observability.Metrics
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, readiness(backend), logger)
		metrics = obsServer.Metrics()
	} else {
		metrics = observability.NewMetrics(prometheus.NewRegistry())
	}

	sessions, err := buildSessionStore(cfg, backend)
	if err != nil {
		return err
	}

	directory, err := auth.NewDirectory(backend.Users, auth.NewArgon2idHasher())
	if err != nil {
		return err
	}
	manager, err := auth.NewSessionManager(sessions, directory, auth.SessionOptions{
		TTL:         cfg.Session.TTL,
		RememberTTL: cfg.Session.RememberTTL,
	})
	if err != nil {
		return err
	}

	var sweeper *auth.Sweeper
	if cfg.Session.Store == config.SessionStoreDatabase {
		sweeper, err = auth.NewSweeper(manager, cfg.Session.SweepInterval, logger.With("component", "sweeper"), metrics.RecordSwept)
		if err != nil {
			return err
		}
	}

	router, err := web.NewRouter(web.Deps{
		Accounts: directory,
		Sessions: manager,
		Auditor:  audit.NewRecorder(logger, metrics),
		Metrics:  metrics,
		Logger:   logger,
	}, web.Options{
		AppName:       cfg.App.Name,
		SecureCookies: cfg.HTTP.SecureCookies,
		CORSOrigins:   cfg.HTTP.CORSOrigins,
	})
	if err != nil {
		return err
	}

	if obsServer != nil {
		obsErrCh, err := obsServer.Start()
		if err != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability", logger)
	}

	webServer := deps.WebServerFactory(cfg.HTTP.Addr, router, logger)
	webErrCh, err := webServer.Start()
	if err != nil {
		stopServers(logger, obsServer, nil)
		return oops.Code("WEB_START_FAILED").Wrap(err)
	}
	go monitorServerErrors(ctx, cancel, webErrCh, "web", logger)

	if sweeper != nil {
		sweeper.Start(ctx)
		defer sweeper.Stop()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if cmd != nil {
		cmd.Println("webauth started on " + webServer.Addr())
	}
	logger.Info("webauth ready", "addr", webServer.Addr())

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	stopServers(logger, obsServer, webServer)
	logger.Info("shutdown complete")
	return nil
}

func withServeDefaults(deps *ServeDeps) *ServeDeps {
	if deps == nil {
		deps = &ServeDeps{}
	}
	if deps.BackendOpener == nil {
		deps.BackendOpener = openBackend
	}
	if deps.MigratorFactory == nil {
		deps.MigratorFactory = func(driver store.Driver, target string) (AutoMigrator, error) {
			return store.NewMigrator(driver, target)
		}
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, ready observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer {
			return observability.NewServer(addr, ready, logger)
		}
	}
	if deps.WebServerFactory == nil {
		deps.WebServerFactory = func(addr string, handler http.Handler, logger *slog.Logger) WebServer {
			return web.NewServer(addr, handler, logger)
		}
	}
	if deps.LogOutput == nil {
		deps.LogOutput = os.Stderr
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return deps
}

// migrationTarget is the database location golang-migrate connects to.
func migrationTarget(driver store.Driver, cfg *config.Config) string {
	if driver == store.DriverPostgres {
		return cfg.Database.URL
	}
	return cfg.Database.Path
}

// runAutoMigration applies all pending migrations.
func runAutoMigration(driver store.Driver, target string, factory func(store.Driver, string) (AutoMigrator, error), logger *slog.Logger) error {
	migrator, err := factory(driver, target)
	if err != nil {
		return oops.Code("MIGRATION_INIT_FAILED").With("driver", string(driver)).Wrap(err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Warn("failed to close migrator", "error", closeErr)
		}
	}()

	logger.Info("running database migrations", "driver", string(driver))
	if err := migrator.Up(); err != nil {
		return oops.Code("AUTO_MIGRATION_FAILED").With("driver", string(driver)).Wrap(err)
	}
	logger.Info("database migrations complete")
	return nil
}

// openBackend connects the configured database and builds its repositories.
func openBackend(ctx context.Context, cfg *config.Config) (*Backend, error) {
	driver, err := store.ParseDriver(cfg.Database.Driver)
	if err != nil {
		return nil, err
	}

	switch driver {
	case store.DriverPostgres:
		pool, err := store.OpenPostgres(ctx, cfg.Database.URL, cfg.Database.ConnectRetries)
		if err != nil {
			return nil, err
		}
		opt := postgres.WithQueryTimeout(cfg.Database.QueryTimeout)
		return &Backend{
			Users:    postgres.NewUserRepository(pool, opt),
			Sessions: postgres.NewSessionRepository(pool, opt),
			Ping:     pool.Ping,
			Close:    pool.Close,
		}, nil
	default:
		db, err := store.OpenSQLite(ctx, cfg.Database.Path)
		if err != nil {
			return nil, err
		}
		opt := sqlite.WithQueryTimeout(cfg.Database.QueryTimeout)
		return &Backend{
			Users:    sqlite.NewUserRepository(db, opt),
			Sessions: sqlite.NewSessionRepository(db, opt),
			Ping:     db.PingContext,
			Close:    func() { _ = db.Close() },
		}, nil
	}
}

// buildSessionStore picks between server-side and signed-token sessions.
func buildSessionStore(cfg *config.Config, backend *Backend) (auth.SessionStore, error) {
	if cfg.Session.Store == config.SessionStoreToken {
		tokens, err := auth.NewTokenSessionStore([]byte(cfg.Session.SecretKey))
		if err != nil {
			return nil, err
		}
		return tokens, nil
	}
	records, err := auth.NewDatabaseSessionStore(backend.Sessions)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// readiness reports ready while the database answers a ping.
func readiness(backend *Backend) observability.ReadinessChecker {
	return func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), readinessTimeout)
		defer cancel()
		return backend.Ping(ctx) == nil
	}
}

func stopServers(logger *slog.Logger, obs ObservabilityServer, webServer WebServer) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if webServer != nil {
		if err := webServer.Stop(ctx); err != nil {
			errutil.LogError(logger, "error stopping web server", err)
		}
	}
	if obs != nil {
		if err := obs.Stop(ctx); err != nil {
			errutil.LogError(logger, "error stopping observability server", err)
		}
	}
}

// monitorServerErrors cancels ctx when a server reports a failure. It
// exits when an error arrives, the channel closes, or ctx ends.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string, logger *slog.Logger) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			logger.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
