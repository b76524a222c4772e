// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/samber/oops"
)

// UserFinder resolves a session's user so sessions of vanished users can
// be discarded. Directory implements it.
type UserFinder interface {
	LookupByID(ctx context.Context, id UserID) (*User, error)
}

// SessionOptions configures a SessionManager. Zero values select defaults.
type SessionOptions struct {
	// TTL bounds non-persistent sessions server-side; the client cookie
	// ends with the browser session.
	TTL time.Duration
	// RememberTTL is the absolute lifetime of persistent sessions.
	RememberTTL time.Duration
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// SessionManager tracks the session of each request. A request context is
// bound once with Bind; Establish, Current and Destroy then operate on that
// binding, so Current always observes the latest Establish or Destroy made
// through the same context.
type SessionManager struct {
	store       SessionStore
	users       UserFinder
	ttl         time.Duration
	rememberTTL time.Duration
	now         func() time.Time
}

// NewSessionManager creates a SessionManager. users may be nil, in which
// case sessions are trusted without checking that their user still exists.
func NewSessionManager(store SessionStore, users UserFinder, opts SessionOptions) (*SessionManager, error) {
	if store == nil {
		return nil, oops.Errorf("session store is required")
	}
	if opts.TTL < 0 || opts.RememberTTL < 0 {
		return nil, oops.Code("SESSION_INVALID_EXPIRY").
			With("ttl", opts.TTL.String()).
			With("remember_ttl", opts.RememberTTL.String()).
			Errorf("session lifetimes cannot be negative")
	}
	if opts.TTL == 0 {
		opts.TTL = DefaultSessionTTL
	}
	if opts.RememberTTL == 0 {
		opts.RememberTTL = DefaultRememberTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &SessionManager{
		store:       store,
		users:       users,
		ttl:         opts.TTL,
		rememberTTL: opts.RememberTTL,
		now:         opts.Now,
	}, nil
}

// RememberTTL returns the lifetime of persistent sessions.
func (m *SessionManager) RememberTTL() time.Duration {
	return m.rememberTTL
}

type bindingKey struct{}

// binding is the per-request session slot.
type binding struct {
	token   string
	session *Session
}

func bindingFrom(ctx context.Context) (*binding, bool) {
	b, ok := ctx.Value(bindingKey{}).(*binding)
	return b, ok
}

// Bind resolves the client's token and returns a context carrying the
// request's session slot. Tokens that are empty, malformed, expired, or
// belong to a user that no longer exists leave the slot Anonymous. Only
// storage failures are returned as errors; the returned context is usable
// (and Anonymous) even then.
func (m *SessionManager) Bind(ctx context.Context, token string) (context.Context, error) {
	b := &binding{}
	ctx = context.WithValue(ctx, bindingKey{}, b)
	if token == "" {
		return ctx, nil
	}

	session, err := m.store.Load(ctx, token)
	if err != nil {
		if errors.Is(err, ErrSessionInvalid) {
			return ctx, nil
		}
		return ctx, oops.With("operation", "load session").Wrap(err)
	}
	if session.IsExpiredAt(m.now()) {
		return ctx, nil
	}

	if m.users != nil {
		if _, err := m.users.LookupByID(ctx, session.UserID); err != nil {
			if errors.Is(err, ErrNotFound) {
				// Stale session of a removed user; drop it on sight.
				_ = m.store.Delete(ctx, token) //nolint:errcheck // best effort, slot stays anonymous either way
				return ctx, nil
			}
			return ctx, oops.With("operation", "resolve session user").
				With("user_id", session.UserID).
				Wrap(err)
		}
	}

	b.token = token
	b.session = session
	return ctx, nil
}

// Establish starts an authenticated session for user on the bound context
// and returns it along with the token to hand to the client. Any session
// already bound is destroyed first so a token is never reused across logins.
func (m *SessionManager) Establish(ctx context.Context, user *User, remember bool) (*Session, string, error) {
	b, ok := bindingFrom(ctx)
	if !ok {
		return nil, "", oops.Code("SESSION_NOT_BOUND").Wrap(ErrNoSessionContext)
	}

	ttl := m.ttl
	if remember {
		ttl = m.rememberTTL
	}
	session, err := NewSession(user, remember, m.now(), ttl)
	if err != nil {
		return nil, "", err
	}

	if b.token != "" {
		if err := m.store.Delete(ctx, b.token); err != nil {
			return nil, "", oops.With("operation", "rotate session").Wrap(err)
		}
		b.token, b.session = "", nil
	}

	token, err := m.store.Save(ctx, session)
	if err != nil {
		return nil, "", oops.With("operation", "establish session").
			With("user_id", user.ID).
			Wrap(err)
	}

	b.token = token
	b.session = session
	return session, token, nil
}

// Current returns the session bound to ctx. It performs no I/O and never
// extends the session's expiry.
func (m *SessionManager) Current(ctx context.Context) (*Session, bool) {
	b, ok := bindingFrom(ctx)
	if !ok || b.session == nil {
		return nil, false
	}
	if b.session.IsExpiredAt(m.now()) {
		return nil, false
	}
	return b.session, true
}

// Destroy ends the bound session. It is a no-op when the context is
// Anonymous or unbound. The slot is cleared even if the store fails.
func (m *SessionManager) Destroy(ctx context.Context) error {
	b, ok := bindingFrom(ctx)
	if !ok || b.token == "" {
		return nil
	}

	token := b.token
	b.token, b.session = "", nil

	if err := m.store.Delete(ctx, token); err != nil {
		return oops.With("operation", "destroy session").Wrap(err)
	}
	return nil
}

// Sweep removes expired sessions from the store.
func (m *SessionManager) Sweep(ctx context.Context) (int64, error) {
	n, err := m.store.DeleteExpired(ctx)
	if err != nil {
		return 0, oops.With("operation", "sweep sessions").Wrap(err)
	}
	return n, nil
}
