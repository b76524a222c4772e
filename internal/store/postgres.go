// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// DefaultConnectRetries is the number of extra ping attempts made while
// waiting for the database to accept connections.
const DefaultConnectRetries = 5

// connectBackoffBase is the first retry delay; later delays double.
const connectBackoffBase = 250 * time.Millisecond

// pinger is the part of a pool used to confirm connectivity.
type pinger interface {
	Ping(ctx context.Context) error
}

// OpenPostgres creates a pgx pool and waits until the server answers a
// ping, retrying with exponential backoff.
func OpenPostgres(ctx context.Context, databaseURL string, retries uint64) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, oops.Code("STORE_CONFIG_INVALID").Errorf("database url is required")
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, oops.Code("STORE_CONNECT_FAILED").
			With("operation", "create pool").
			Wrap(err)
	}

	if err := waitForPing(ctx, pool, retries, connectBackoffBase); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// waitForPing pings until success, retries are exhausted, or ctx ends.
func waitForPing(ctx context.Context, p pinger, retries uint64, base time.Duration) error {
	attempt := 0
	backoff := retry.WithMaxRetries(retries, retry.NewExponential(base))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := p.Ping(ctx); err != nil {
			slog.WarnContext(ctx, "database not ready", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return oops.Code("STORE_CONNECT_FAILED").
			With("operation", "ping").
			With("attempts", attempt).
			Wrap(err)
	}
	return nil
}
