// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package postgres implements auth repositories on PostgreSQL.
package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DefaultQueryTimeout bounds every repository call.
const DefaultQueryTimeout = 5 * time.Second

// DB is the subset of *pgxpool.Pool used by the repositories. Each call
// acquires a pooled connection and releases it before returning.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Option configures a repository.
type Option func(*options)

type options struct {
	timeout time.Duration
}

// WithQueryTimeout overrides DefaultQueryTimeout. Non-positive values are
// ignored.
func WithQueryTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{timeout: DefaultQueryTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
