// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/oops"
)

// DefaultSweepInterval is how often expired sessions are purged.
const DefaultSweepInterval = 15 * time.Minute

// ExpiredSessionSweeper removes expired sessions.
type ExpiredSessionSweeper interface {
	Sweep(ctx context.Context) (int64, error)
}

// Sweeper periodically purges expired server-side sessions.
type Sweeper struct {
	target   ExpiredSessionSweeper
	interval time.Duration
	logger   *slog.Logger
	onSwept  func(n int64)

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSweeper creates a Sweeper running every interval. onSwept, if not
// nil, is called with the count of each successful sweep.
func NewSweeper(target ExpiredSessionSweeper, interval time.Duration, logger *slog.Logger, onSwept func(n int64)) (*Sweeper, error) {
	if target == nil {
		return nil, oops.Errorf("sweep target is required")
	}
	if interval <= 0 {
		return nil, oops.Code("SWEEP_INVALID_INTERVAL").
			With("interval", interval.String()).
			Errorf("sweep interval must be positive")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Sweeper{
		target:   target,
		interval: interval,
		logger:   logger,
		onSwept:  onSwept,
	}, nil
}

// RunOnce executes a single sweep.
func (s *Sweeper) RunOnce(ctx context.Context) error {
	n, err := s.target.Sweep(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		s.logger.Info("purged expired sessions", "count", n)
	}
	if s.onSwept != nil {
		s.onSwept(n)
	}
	return nil
}

// Start begins periodic sweeping until ctx is cancelled or Stop is called.
func (s *Sweeper) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.run(ctx)
}

// Stop stops the sweeper and waits for the running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Sweeper) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("session sweep failed", "error", err)
			}
		}
	}
}
