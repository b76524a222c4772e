// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/webauth/internal/auth"
)

// SessionRepository implements auth.SessionRecordRepository using SQLite.
type SessionRepository struct {
	db      DB
	timeout time.Duration
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(db DB, opts ...Option) *SessionRepository {
	o := buildOptions(opts)
	return &SessionRepository{db: db, timeout: o.timeout}
}

// Create stores a session under its token hash.
func (r *SessionRepository) Create(ctx context.Context, tokenHash string, s *auth.Session) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO web_sessions (token_hash, user_id, username, persistent, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, tokenHash, int64(s.UserID), s.Username, s.Persistent, toMillis(s.ExpiresAt), toMillis(s.CreatedAt))
	if err != nil {
		return oops.Code("SESSION_CREATE_FAILED").
			With("operation", "insert web_session").
			With("user_id", int64(s.UserID)).
			Wrap(auth.WrapStorage(err))
	}
	return nil
}

// GetByTokenHash retrieves a session by its token hash.
func (r *SessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var (
		userID, expiresAt, createdAt int64
		s                            auth.Session
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, username, persistent, expires_at, created_at
		FROM web_sessions
		WHERE token_hash = ?
	`, tokenHash).Scan(&userID, &s.Username, &s.Persistent, &expiresAt, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_FAILED").
			With("operation", "get web_session by token hash").
			Wrap(auth.WrapStorage(err))
	}
	s.UserID = auth.UserID(userID)
	s.ExpiresAt = fromMillis(expiresAt)
	s.CreatedAt = fromMillis(createdAt)
	return &s, nil
}

// DeleteByTokenHash removes a session. Missing rows are not an error.
func (r *SessionRepository) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `DELETE FROM web_sessions WHERE token_hash = ?`, tokenHash); err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete web_session").
			Wrap(auth.WrapStorage(err))
	}
	return nil
}

// DeleteExpired removes all sessions expiring at or before now.
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx, `DELETE FROM web_sessions WHERE expires_at <= ?`, toMillis(now))
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired web_sessions").
			Wrap(auth.WrapStorage(err))
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_EXPIRED_FAILED").
			With("operation", "count deleted web_sessions").
			Wrap(auth.WrapStorage(err))
	}
	return n, nil
}

var _ auth.SessionRecordRepository = (*SessionRepository)(nil)
