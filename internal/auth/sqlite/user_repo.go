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

// UserRepository implements auth.UserRepository using SQLite.
type UserRepository struct {
	db      DB
	timeout time.Duration
	now     func() time.Time
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db DB, opts ...Option) *UserRepository {
	o := buildOptions(opts)
	return &UserRepository{db: db, timeout: o.timeout, now: time.Now}
}

// Create inserts a user. The UNIQUE constraint on username decides
// duplicates; no prior read is made.
func (r *UserRepository) Create(ctx context.Context, username, passwordHash string) (*auth.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	createdAt := fromMillis(toMillis(r.now()))
	var id int64
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO users (username, password_hash, created_at) VALUES (?, ?, ?) RETURNING id`,
		username, passwordHash, toMillis(createdAt),
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, oops.Code("USER_DUPLICATE").
				With("username", username).
				Wrap(auth.ErrDuplicateUsername)
		}
		return nil, oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			With("username", username).
			Wrap(auth.WrapStorage(err))
	}

	return &auth.User{
		ID:           auth.UserID(id),
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    createdAt,
	}, nil
}

// GetByUsername retrieves a user by exact, case-sensitive username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*auth.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE username = ?`, username)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("username", username).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_USERNAME_FAILED").
			With("operation", "get user by username").
			With("username", username).
			Wrap(auth.WrapStorage(err))
	}
	return user, nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id auth.UserID) (*auth.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE id = ?`, int64(id))
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("id", int64(id)).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_ID_FAILED").
			With("operation", "get user by id").
			With("id", int64(id)).
			Wrap(auth.WrapStorage(err))
	}
	return user, nil
}

func scanUser(row *sql.Row) (*auth.User, error) {
	var (
		id, createdAt int64
		user          auth.User
	)
	if err := row.Scan(&id, &user.Username, &user.PasswordHash, &createdAt); err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with context-specific info
	}
	user.ID = auth.UserID(id)
	user.CreatedAt = fromMillis(createdAt)
	return &user, nil
}

var _ auth.UserRepository = (*UserRepository)(nil)
