// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/samber/oops"
)

// Session token configuration.
const (
	SessionTokenBytes = 32 // 32 bytes = 64 hex chars

	DefaultSessionTTL  = 24 * time.Hour
	DefaultRememberTTL = 7 * 24 * time.Hour
)

// Session is the typed record proving a client authenticated as a user.
type Session struct {
	UserID     UserID
	Username   string // display copy taken at login
	Persistent bool   // "remember me"
	ExpiresAt  time.Time
	CreatedAt  time.Time
}

// NewSession creates a validated Session expiring ttl after now.
func NewSession(user *User, persistent bool, now time.Time, ttl time.Duration) (*Session, error) {
	if user == nil || user.ID <= 0 {
		return nil, oops.Code("SESSION_INVALID_USER").Errorf("session requires a stored user")
	}
	if ttl <= 0 {
		return nil, oops.Code("SESSION_INVALID_EXPIRY").With("ttl", ttl.String()).Errorf("session ttl must be positive")
	}
	return &Session{
		UserID:     user.ID,
		Username:   user.Username,
		Persistent: persistent,
		ExpiresAt:  now.Add(ttl),
		CreatedAt:  now,
	}, nil
}

// IsExpiredAt returns true if the session would be expired at the given time.
func (s *Session) IsExpiredAt(t time.Time) bool {
	return !t.Before(s.ExpiresAt)
}

// SessionStore persists sessions and maps them to opaque client tokens.
type SessionStore interface {
	// Save stores the session and returns the token handed to the client.
	Save(ctx context.Context, s *Session) (string, error)

	// Load resolves a client token. Unknown, malformed and expired tokens
	// yield an error wrapping ErrSessionInvalid.
	Load(ctx context.Context, token string) (*Session, error)

	// Delete forgets the session behind token. Deleting an unknown token
	// is not an error.
	Delete(ctx context.Context, token string) error

	// DeleteExpired removes expired sessions and returns how many were
	// removed.
	DeleteExpired(ctx context.Context) (int64, error)
}

// SessionRecordRepository is the storage contract for server-side
// sessions. Only the SHA-256 hash of a token is ever stored.
type SessionRecordRepository interface {
	// Create stores a session under the token hash.
	Create(ctx context.Context, tokenHash string, s *Session) error

	// GetByTokenHash retrieves a session by its token hash.
	// Returns ErrNotFound if no session has the given hash.
	GetByTokenHash(ctx context.Context, tokenHash string) (*Session, error)

	// DeleteByTokenHash removes a session. Missing rows are not an error.
	DeleteByTokenHash(ctx context.Context, tokenHash string) error

	// DeleteExpired removes all sessions expiring at or before now and
	// returns the count of deleted records.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// GenerateSessionToken creates a secure random token and its hash.
// Returns (plaintext_token, sha256_hash, error).
// The plaintext token is sent to the client; the hash is stored.
func GenerateSessionToken() (token, hash string, err error) {
	tokenBytes := make([]byte, SessionTokenBytes)
	if _, err = rand.Read(tokenBytes); err != nil {
		return "", "", oops.Code("SESSION_TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", SessionTokenBytes).
			Wrap(err)
	}

	token = hex.EncodeToString(tokenBytes)
	return token, HashSessionToken(token), nil
}

// HashSessionToken computes the SHA256 hash of a session token.
func HashSessionToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// WellFormedSessionToken reports whether token has the shape produced by
// GenerateSessionToken.
func WellFormedSessionToken(token string) bool {
	if len(token) != SessionTokenBytes*2 {
		return false
	}
	_, err := hex.DecodeString(token)
	return err == nil
}

// DatabaseSessionStore is a SessionStore keeping sessions server-side in a
// SessionRecordRepository. The client holds a random token; the store holds
// its hash.
type DatabaseSessionStore struct {
	records SessionRecordRepository
	now     func() time.Time
}

// NewDatabaseSessionStore creates a DatabaseSessionStore.
func NewDatabaseSessionStore(records SessionRecordRepository) (*DatabaseSessionStore, error) {
	if records == nil {
		return nil, oops.Errorf("session record repository is required")
	}
	return &DatabaseSessionStore{records: records, now: time.Now}, nil
}

// Save implements SessionStore.
func (s *DatabaseSessionStore) Save(ctx context.Context, session *Session) (string, error) {
	token, tokenHash, err := GenerateSessionToken()
	if err != nil {
		return "", err
	}
	if err := s.records.Create(ctx, tokenHash, session); err != nil {
		return "", oops.Code("SESSION_CREATE_FAILED").
			With("operation", "persist session").
			With("user_id", session.UserID).
			Wrap(storageErr(err))
	}
	return token, nil
}

// Load implements SessionStore.
func (s *DatabaseSessionStore) Load(ctx context.Context, token string) (*Session, error) {
	if !WellFormedSessionToken(token) {
		return nil, oops.Code("SESSION_MALFORMED").Wrap(ErrSessionInvalid)
	}

	session, err := s.records.GetByTokenHash(ctx, HashSessionToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("SESSION_INVALID").Wrap(ErrSessionInvalid)
		}
		return nil, oops.Code("SESSION_VALIDATE_FAILED").
			With("operation", "get session by token hash").
			Wrap(storageErr(err))
	}
	if session.IsExpiredAt(s.now()) {
		return nil, oops.Code("SESSION_EXPIRED").
			With("expires_at", session.ExpiresAt).
			Wrap(ErrSessionInvalid)
	}
	return session, nil
}

// Delete implements SessionStore.
func (s *DatabaseSessionStore) Delete(ctx context.Context, token string) error {
	if !WellFormedSessionToken(token) {
		return nil
	}
	if err := s.records.DeleteByTokenHash(ctx, HashSessionToken(token)); err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete session").
			Wrap(storageErr(err))
	}
	return nil
}

// DeleteExpired implements SessionStore.
func (s *DatabaseSessionStore) DeleteExpired(ctx context.Context) (int64, error) {
	n, err := s.records.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, oops.Code("SESSION_SWEEP_FAILED").
			With("operation", "delete expired sessions").
			Wrap(storageErr(err))
	}
	return n, nil
}
