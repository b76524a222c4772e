// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"
)

// MinSecretKeyLength is the minimum HMAC key length for signed tokens.
const MinSecretKeyLength = 32

const tokenIssuer = "webauth"

// sessionClaims is the payload of a signed session token.
type sessionClaims struct {
	jwt.RegisteredClaims
	Username   string `json:"name"`
	Persistent bool   `json:"persistent,omitempty"`
}

// TokenSessionStore is a SessionStore that keeps nothing server-side: the
// session is carried by the client as an HS256-signed JWT. Delete cannot
// revoke an issued token; the client simply discards it.
type TokenSessionStore struct {
	secret []byte
	now    func() time.Time
}

// NewTokenSessionStore creates a TokenSessionStore signing with secret.
func NewTokenSessionStore(secret []byte) (*TokenSessionStore, error) {
	if len(secret) < MinSecretKeyLength {
		return nil, oops.Code("SESSION_SECRET_TOO_SHORT").
			With("min", MinSecretKeyLength).
			Errorf("session secret must be at least %d bytes", MinSecretKeyLength)
	}
	key := make([]byte, len(secret))
	copy(key, secret)
	return &TokenSessionStore{secret: key, now: time.Now}, nil
}

// Save implements SessionStore.
func (s *TokenSessionStore) Save(_ context.Context, session *Session) (string, error) {
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   session.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(session.CreatedAt),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
		Username:   session.Username,
		Persistent: session.Persistent,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", oops.Code("SESSION_SIGN_FAILED").With("user_id", session.UserID).Wrap(err)
	}
	return token, nil
}

// Load implements SessionStore.
func (s *TokenSessionStore) Load(_ context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, oops.Code("SESSION_MALFORMED").Wrap(ErrSessionInvalid)
	}

	claims := &sessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return nil, oops.Code("SESSION_INVALID").With("reason", reasonOf(err)).Wrap(ErrSessionInvalid)
	}

	userID, err := ParseUserID(claims.Subject)
	if err != nil {
		return nil, oops.Code("SESSION_MALFORMED").Wrap(ErrSessionInvalid)
	}

	session := &Session{
		UserID:     userID,
		Username:   claims.Username,
		Persistent: claims.Persistent,
		ExpiresAt:  claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		session.CreatedAt = claims.IssuedAt.Time
	}
	return session, nil
}

// Delete implements SessionStore. Signed tokens are not tracked, so there is
// nothing to remove.
func (s *TokenSessionStore) Delete(context.Context, string) error {
	return nil
}

// DeleteExpired implements SessionStore.
func (s *TokenSessionStore) DeleteExpired(context.Context) (int64, error) {
	return 0, nil
}

func reasonOf(err error) string {
	if err == nil {
		return "token not valid"
	}
	return err.Error()
}
