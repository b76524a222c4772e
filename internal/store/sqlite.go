// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"context"
	"database/sql"
	"strings"

	"github.com/samber/oops"
	// Register the pure-Go sqlite driver with database/sql.
	_ "modernc.org/sqlite"
)

// sqlitePragmas are applied on every new connection.
const sqlitePragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"

// SQLiteDSN returns the modernc DSN for a database file path.
func SQLiteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + sqlitePragmas
}

// OpenSQLite opens a SQLite database file. The pool is limited to a single
// connection so writers never contend for the database lock.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, oops.Code("STORE_CONFIG_INVALID").Errorf("sqlite database path is required")
	}

	db, err := sql.Open("sqlite", SQLiteDSN(path))
	if err != nil {
		return nil, oops.Code("STORE_CONNECT_FAILED").
			With("operation", "open sqlite").
			With("path", path).
			Wrap(err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close() //nolint:errcheck // ping error takes precedence
		return nil, oops.Code("STORE_CONNECT_FAILED").
			With("operation", "ping sqlite").
			With("path", path).
			Wrap(err)
	}
	return db, nil
}
