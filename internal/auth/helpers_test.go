// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"testing"

	"github.com/holomush/webauth/internal/auth"
	"github.com/holomush/webauth/internal/auth/authtest"
)

func newTestHasher(t *testing.T) *auth.Argon2idHasher {
	t.Helper()
	return authtest.NewHasher()
}
