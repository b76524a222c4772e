// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package config

import (
	"github.com/samber/oops"

	"github.com/holomush/webauth/internal/auth"
	"github.com/holomush/webauth/internal/logging"
	"github.com/holomush/webauth/internal/store"
)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.App.Name == "" {
		return invalid("app.name", c.App.Name, "app name is required")
	}
	if c.HTTP.Addr == "" {
		return invalid("http.addr", c.HTTP.Addr, "http address is required")
	}

	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return invalid("logging.format", c.Logging.Format, "log format must be 'json' or 'text'")
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return invalid("logging.level", c.Logging.Level, "unknown log level")
	}

	driver, err := store.ParseDriver(c.Database.Driver)
	if err != nil {
		return invalid("database.driver", c.Database.Driver, "database driver must be 'postgres' or 'sqlite'")
	}
	switch driver {
	case store.DriverPostgres:
		if c.Database.URL == "" {
			return invalid("database.url", "", "database url is required for postgres (set "+EnvDatabaseURL+")")
		}
	case store.DriverSQLite:
		if c.Database.Path == "" {
			return invalid("database.path", "", "database path is required for sqlite")
		}
	}
	if c.Database.QueryTimeout <= 0 {
		return invalid("database.query_timeout", c.Database.QueryTimeout.String(), "query timeout must be positive")
	}

	if c.Session.TTL <= 0 {
		return invalid("session.ttl", c.Session.TTL.String(), "session ttl must be positive")
	}
	if c.Session.RememberTTL <= 0 {
		return invalid("session.remember_ttl", c.Session.RememberTTL.String(), "remember ttl must be positive")
	}
	if c.Session.SweepInterval <= 0 {
		return invalid("session.sweep_interval", c.Session.SweepInterval.String(), "sweep interval must be positive")
	}

	switch c.Session.Store {
	case SessionStoreDatabase:
	case SessionStoreToken:
		if len(c.Session.SecretKey) < auth.MinSecretKeyLength {
			return oops.Code("CONFIG_INVALID").
				With("key", "session.secret_key").
				Errorf("token sessions need a secret key of at least %d bytes (set %s)", auth.MinSecretKeyLength, EnvSecretKey)
		}
	default:
		return invalid("session.store", c.Session.Store, "session store must be 'database' or 'token'")
	}

	if c.App.Release && !c.HTTP.SecureCookies {
		return invalid("http.secure_cookies", "false", "secure cookies are required in release mode")
	}

	return nil
}

// invalid never puts secret values in the error; callers pass "" for those.
func invalid(key, value, msg string) error {
	return oops.Code("CONFIG_INVALID").
		With("key", key).
		With("value", value).
		Errorf("%s", msg)
}
