// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"

	"github.com/samber/oops"
)

// dummyPasswordHash is verified when a username does not exist so the
// response time does not reveal whether the account exists. It can never
// match a password.
//
//nolint:gosec // G101: intentionally fake hash, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Directory registers users and verifies their credentials.
type Directory struct {
	users  UserRepository
	hasher PasswordHasher
}

// NewDirectory creates a Directory.
func NewDirectory(users UserRepository, hasher PasswordHasher) (*Directory, error) {
	if users == nil {
		return nil, oops.Errorf("user repository is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	return &Directory{users: users, hasher: hasher}, nil
}

// RegisterUser hashes the password and stores a new user.
//
// A taken username yields an error wrapping ErrDuplicateUsername. The
// uniqueness constraint of the store decides, so concurrent registrations
// of one name produce exactly one user.
func (d *Directory) RegisterUser(ctx context.Context, username, password string) (UserID, error) {
	if err := ValidateUsername(username); err != nil {
		return 0, err
	}

	hash, err := d.hasher.Hash(password)
	if err != nil {
		return 0, oops.With("operation", "hash password").Wrap(err)
	}

	user, err := d.users.Create(ctx, username, hash)
	if err != nil {
		if errors.Is(err, ErrDuplicateUsername) {
			return 0, oops.Code("AUTH_DUPLICATE_USERNAME").
				With("username", username).
				Wrap(err)
		}
		return 0, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "create user").
			With("username", username).
			Wrap(storageErr(err))
	}
	return user.ID, nil
}

// Authenticate verifies a username and password pair.
//
// Unknown usernames and wrong passwords both yield an error wrapping
// ErrInvalidCredentials. A password hash is verified in both cases.
func (d *Directory) Authenticate(ctx context.Context, username, password string) (*User, error) {
	user, lookupErr := d.users.GetByUsername(ctx, username)

	targetHash := dummyPasswordHash
	switch {
	case lookupErr == nil:
		targetHash = user.PasswordHash
	case !errors.Is(lookupErr, ErrNotFound):
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "get user by username").
			Wrap(storageErr(lookupErr))
	}

	valid := d.hasher.Verify(password, targetHash)
	if lookupErr != nil || !valid {
		return nil, oops.Code("AUTH_INVALID_CREDENTIALS").Wrap(ErrInvalidCredentials)
	}
	return user, nil
}

// LookupByUsername returns the user with the given username.
func (d *Directory) LookupByUsername(ctx context.Context, username string) (*User, error) {
	user, err := d.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, oops.With("operation", "lookup by username").Wrap(storageErr(err))
	}
	return user, nil
}

// LookupByID returns the user with the given ID.
func (d *Directory) LookupByID(ctx context.Context, id UserID) (*User, error) {
	user, err := d.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, oops.With("operation", "lookup by id").Wrap(storageErr(err))
	}
	return user, nil
}

// UsernameTaken reports whether a user with the given name exists. It is a
// hint for forms; RegisterUser remains authoritative.
func (d *Directory) UsernameTaken(ctx context.Context, username string) (bool, error) {
	_, err := d.LookupByUsername(ctx, username)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// storageErr tags repository failures that are not already tagged.
func storageErr(err error) error {
	if errors.Is(err, ErrStorage) {
		return err
	}
	return WrapStorage(err)
}
