// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/samber/oops"
)

// Username and password validation constraints.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 50
	MinPasswordLength = 6
)

// UserID identifies a stored user. Values are assigned by storage and are
// always positive.
type UserID int64

// String returns the decimal form of the ID.
func (id UserID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseUserID parses the decimal form produced by String.
func ParseUserID(s string) (UserID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, oops.Code("AUTH_INVALID_USER_ID").With("value", s).Errorf("invalid user id")
	}
	return UserID(n), nil
}

// User represents a registered account.
type User struct {
	ID           UserID
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// ValidateUsername validates a username against rules.
// Username requirements:
//   - Length: MinUsernameLength to MaxUsernameLength characters
//   - Not blank, no leading or trailing whitespace
//   - No control characters
func ValidateUsername(username string) error {
	if strings.TrimSpace(username) == "" {
		return oops.Code("AUTH_INVALID_USERNAME").Wrapf(ErrInvalidUsername, "username cannot be empty")
	}
	n := utf8.RuneCountInString(username)
	if n < MinUsernameLength {
		return oops.Code("AUTH_INVALID_USERNAME").
			With("min", MinUsernameLength).
			Wrapf(ErrInvalidUsername, "username must be at least %d characters", MinUsernameLength)
	}
	if n > MaxUsernameLength {
		return oops.Code("AUTH_INVALID_USERNAME").
			With("max", MaxUsernameLength).
			Wrapf(ErrInvalidUsername, "username must be at most %d characters", MaxUsernameLength)
	}
	if strings.TrimSpace(username) != username {
		return oops.Code("AUTH_INVALID_USERNAME").
			Wrapf(ErrInvalidUsername, "username cannot start or end with whitespace")
	}
	if strings.IndexFunc(username, unicode.IsControl) >= 0 || !utf8.ValidString(username) {
		return oops.Code("AUTH_INVALID_USERNAME").
			Wrapf(ErrInvalidUsername, "username contains invalid characters")
	}
	return nil
}

// ValidatePassword checks the minimum password policy applied at
// registration.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return oops.Code("AUTH_INVALID_PASSWORD").
			With("min", MinPasswordLength).
			Wrapf(ErrInvalidPassword, "password must be at least %d characters", MinPasswordLength)
	}
	return nil
}

// UserRepository manages user persistence.
//
// Implementations must use parameterised statements, bound every call with
// their query timeout, and release connections on every return path.
type UserRepository interface {
	// Create inserts a user with a single constrained insert. Returns an
	// error wrapping ErrDuplicateUsername when the username is taken.
	Create(ctx context.Context, username, passwordHash string) (*User, error)

	// GetByUsername retrieves a user by exact username.
	// Returns ErrNotFound if no user has the given username.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// GetByID retrieves a user by ID.
	// Returns ErrNotFound if no user has the given ID.
	GetByID(ctx context.Context, id UserID) (*User, error)
}
