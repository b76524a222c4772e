// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package store opens the backing databases and manages their schema.
//
// Two drivers are supported. PostgreSQL is reached through a pgx pool and
// SQLite through database/sql with the pure-Go modernc driver. Both share
// the same logical schema, kept as separate embedded migration sets.
package store

import (
	"github.com/samber/oops"
)

// Driver names a supported database backend.
type Driver string

// Supported drivers.
const (
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
)

// ParseDriver validates a driver name from configuration.
func ParseDriver(name string) (Driver, error) {
	d := Driver(name)
	if _, err := d.migrationsDir(); err != nil {
		return "", err
	}
	return d, nil
}

func (d Driver) migrationsDir() (string, error) {
	switch d {
	case DriverPostgres:
		return "migrations/postgres", nil
	case DriverSQLite:
		return "migrations/sqlite", nil
	default:
		return "", unsupportedDriver(d)
	}
}

func unsupportedDriver(d Driver) error {
	return oops.Code("STORE_UNSUPPORTED_DRIVER").
		With("driver", string(d)).
		Errorf("unsupported database driver %q", string(d))
}
