// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateUsername is returned when registering a username that is
// already taken.
var ErrDuplicateUsername = errors.New("username already exists")

// ErrInvalidCredentials is returned for an unknown username or a wrong
// password. The two cases are deliberately indistinguishable.
var ErrInvalidCredentials = errors.New("invalid username or password")

// ErrInvalidUsername is returned when a username fails validation.
var ErrInvalidUsername = errors.New("invalid username")

// ErrInvalidPassword is returned when a password fails validation.
var ErrInvalidPassword = errors.New("invalid password")

// ErrStorage marks failures of the underlying persistence layer.
var ErrStorage = errors.New("storage failure")

// ErrSessionInvalid is returned for session tokens that are malformed,
// unknown or expired. Callers treat it as an anonymous client.
var ErrSessionInvalid = errors.New("session invalid")

// ErrNoSessionContext is returned when a session operation is attempted on
// a context that was never passed through SessionManager.Bind.
var ErrNoSessionContext = errors.New("context has no session binding")

// WrapStorage marks err as a storage failure while keeping it in the chain.
func WrapStorage(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrStorage, err)
}
