// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package audit records authentication events as structured log entries
// and metrics.
package audit

import (
	"context"
	"log/slog"

	"github.com/holomush/webauth/internal/auth"
)

// EventCounter counts events by kind.
type EventCounter interface {
	RecordAuthEvent(event string)
}

// Recorder implements auth.Auditor on top of slog.
type Recorder struct {
	logger  *slog.Logger
	counter EventCounter
}

// NewRecorder creates a Recorder. counter may be nil.
func NewRecorder(logger *slog.Logger, counter EventCounter) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{logger: logger.With("component", "audit"), counter: counter}
}

// Record writes one log entry for e. Successful events log at info,
// failures at warn.
func (r *Recorder) Record(ctx context.Context, e auth.Event) {
	attrs := []slog.Attr{
		slog.String("event", string(e.Kind)),
		slog.String("username", usernameOrUnknown(e.Username)),
	}
	if e.UserID > 0 {
		attrs = append(attrs, slog.Int64("user_id", int64(e.UserID)))
	}
	if e.RemoteAddr != "" {
		attrs = append(attrs, slog.String("remote_addr", e.RemoteAddr))
	}
	if e.Reason != "" {
		attrs = append(attrs, slog.String("reason", e.Reason))
	}
	if !e.Time.IsZero() {
		attrs = append(attrs, slog.Time("at", e.Time))
	}

	level := slog.LevelInfo
	if isFailure(e.Kind) {
		level = slog.LevelWarn
	}
	r.logger.LogAttrs(ctx, level, message(e.Kind), attrs...)

	if r.counter != nil {
		r.counter.RecordAuthEvent(string(e.Kind))
	}
}

func isFailure(kind auth.EventKind) bool {
	return kind == auth.EventLoginFailed || kind == auth.EventRegisterFailed
}

func message(kind auth.EventKind) string {
	switch kind {
	case auth.EventRegister:
		return "user registered"
	case auth.EventRegisterFailed:
		return "registration failed"
	case auth.EventLogin:
		return "user logged in"
	case auth.EventLoginFailed:
		return "login failed"
	case auth.EventLogout:
		return "user logged out"
	default:
		return "auth event"
	}
}

func usernameOrUnknown(name string) string {
	if name == "" {
		return "Unknown"
	}
	return name
}

var _ auth.Auditor = (*Recorder)(nil)
