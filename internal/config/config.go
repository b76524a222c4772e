// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads webauth settings.
//
// Sources are layered, later ones winning: built-in defaults, an optional
// YAML file, secrets from the environment (optionally seeded from a
// .env.local file), then explicitly set command-line flags.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/webauth/internal/xdg"
)

// Environment variables read for secrets.
const (
	EnvDatabaseURL = "DATABASE_URL"
	EnvSecretKey   = "WEBAUTH_SECRET_KEY"
)

// envFile is loaded from the working directory, then its parent.
const envFile = ".env.local"

// Session store kinds.
const (
	SessionStoreDatabase = "database"
	SessionStoreToken    = "token"
)

// Config is the complete application configuration.
type Config struct {
	App      AppConfig      `koanf:"app"`
	HTTP     HTTPConfig     `koanf:"http"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Database DatabaseConfig `koanf:"database"`
	Session  SessionConfig  `koanf:"session"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// AppConfig identifies the application.
type AppConfig struct {
	Name    string `koanf:"name"`
	Release bool   `koanf:"release"`
}

// HTTPConfig configures the web listener.
type HTTPConfig struct {
	Addr          string   `koanf:"addr"`
	SecureCookies bool     `koanf:"secure_cookies"`
	CORSOrigins   []string `koanf:"cors_origins"`
}

// MetricsConfig configures the observability listener. An empty address
// disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// DatabaseConfig selects and tunes the credential store.
type DatabaseConfig struct {
	Driver         string        `koanf:"driver"`
	URL            string        `koanf:"url"`
	Path           string        `koanf:"path"`
	QueryTimeout   time.Duration `koanf:"query_timeout"`
	ConnectRetries uint64        `koanf:"connect_retries"`
	AutoMigrate    bool          `koanf:"auto_migrate"`
}

// SessionConfig configures session lifetimes and storage.
type SessionConfig struct {
	Store         string        `koanf:"store"`
	TTL           time.Duration `koanf:"ttl"`
	RememberTTL   time.Duration `koanf:"remember_ttl"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
	SecretKey     string        `koanf:"secret_key"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Format    string `koanf:"format"`
	Level     string `koanf:"level"`
	Directory string `koanf:"directory"`
	// File enables file output in the default state directory when
	// Directory is empty.
	File bool `koanf:"file"`
}

// LogDirectory returns where log files go, or "" for console only.
func (l LoggingConfig) LogDirectory() string {
	if l.Directory != "" {
		return l.Directory
	}
	if l.File {
		return xdg.LogDir()
	}
	return ""
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		App: AppConfig{Name: "webauth"},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
		Metrics: MetricsConfig{Addr: "127.0.0.1:9100"},
		Database: DatabaseConfig{
			Driver:         "sqlite",
			Path:           xdg.DatabasePath(),
			QueryTimeout:   5 * time.Second,
			ConnectRetries: 5,
			AutoMigrate:    true,
		},
		Session: SessionConfig{
			Store:         SessionStoreDatabase,
			TTL:           24 * time.Hour,
			RememberTTL:   7 * 24 * time.Hour,
			SweepInterval: 15 * time.Minute,
		},
		Logging: LoggingConfig{
			Format: "json",
			Level:  "info",
		},
	}
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"addr":           "http.addr",
	"secure-cookies": "http.secure_cookies",
	"cors-origin":    "http.cors_origins",
	"metrics-addr":   "metrics.addr",
	"db-driver":      "database.driver",
	"db-url":         "database.url",
	"db-path":        "database.path",
	"auto-migrate":   "database.auto_migrate",
	"session-store":  "session.store",
	"log-format":     "logging.format",
	"log-level":      "logging.level",
	"log-dir":        "logging.directory",
	"log-file":       "logging.file",
	"release":        "app.release",
}

// RegisterFlags adds the overridable settings to fs. Flag defaults are
// informational only; unset flags never override file or env values.
func RegisterFlags(fs *pflag.FlagSet) {
	def := Default()
	fs.String("addr", def.HTTP.Addr, "HTTP listen address")
	fs.Bool("secure-cookies", def.HTTP.SecureCookies, "mark the session cookie Secure")
	fs.StringSlice("cors-origin", nil, "allowed CORS origin for /api (repeatable)")
	fs.String("metrics-addr", def.Metrics.Addr, "observability listen address (empty disables)")
	RegisterDatabaseFlags(fs)
	fs.Bool("auto-migrate", def.Database.AutoMigrate, "apply pending migrations on startup")
	fs.String("session-store", def.Session.Store, "session store: database or token")
	fs.String("log-format", def.Logging.Format, "log format: json or text")
	fs.String("log-level", def.Logging.Level, "log level: debug, info, warn or error")
	fs.String("log-dir", "", "also write logs to a timestamped file in this directory")
	fs.Bool("log-file", false, "also write logs to a file in the default state directory")
	fs.Bool("release", def.App.Release, "release mode (stricter validation)")
}

// RegisterDatabaseFlags adds only the database selection flags to fs.
func RegisterDatabaseFlags(fs *pflag.FlagSet) {
	def := Default()
	fs.String("db-driver", def.Database.Driver, "database driver: postgres or sqlite")
	fs.String("db-url", "", "PostgreSQL connection URL (or set "+EnvDatabaseURL+")")
	fs.String("db-path", def.Database.Path, "SQLite database file")
}

// Load builds the configuration. configFile may be empty; a missing file
// is an error only when it was named explicitly. fs may be nil.
func Load(configFile string, fs *pflag.FlagSet) (*Config, error) {
	loadEnvFile()

	k := koanf.New(".")

	explicit := configFile != ""
	if !explicit {
		configFile = xdg.ConfigFile()
	}
	if err := loadFile(k, configFile, explicit); err != nil {
		return nil, err
	}

	if v := os.Getenv(EnvDatabaseURL); v != "" {
		_ = k.Set("database.url", v) //nolint:errcheck // Set only fails on a nil koanf
	}
	if v := os.Getenv(EnvSecretKey); v != "" {
		_ = k.Set("session.secret_key", v) //nolint:errcheck // Set only fails on a nil koanf
	}

	if fs != nil {
		provider := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(fs, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_DECODE_FAILED").Wrap(err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(k *koanf.Koanf, path string, required bool) error {
	if _, err := os.Stat(path); err != nil {
		if !required && os.IsNotExist(err) {
			return nil
		}
		return oops.Code("CONFIG_FILE_MISSING").With("path", path).Wrap(err)
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return oops.Code("CONFIG_FILE_INVALID").With("path", path).Wrap(err)
	}
	return nil
}

// loadEnvFile seeds the environment from .env.local in the working
// directory, or failing that its parent. Existing variables are kept.
func loadEnvFile() {
	if err := godotenv.Load(envFile); err == nil {
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	parent := filepath.Dir(cwd)
	if parent == "" || parent == cwd {
		return
	}

	_ = godotenv.Load(filepath.Join(parent, envFile)) //nolint:errcheck // optional file
}
