// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/webauth/internal/auth"
	"github.com/holomush/webauth/pkg/errutil"
)

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name     string
		username string
		wantErr  bool
	}{
		{"valid simple", "alice", false},
		{"minimum length", "abc", false},
		{"maximum length", strings.Repeat("a", auth.MaxUsernameLength), false},
		{"inner spaces allowed", "alice smith", false},
		{"unicode counted by rune", "żółw", false},
		{"empty", "", true},
		{"blank", "   ", true},
		{"too short", "ab", true},
		{"too long", strings.Repeat("a", auth.MaxUsernameLength+1), true},
		{"leading space", " alice", true},
		{"trailing space", "alice ", true},
		{"control character", "ali\x00ce", true},
		{"newline", "ali\nce", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := auth.ValidateUsername(tt.username)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, auth.ErrInvalidUsername))
			errutil.AssertErrorCode(t, err, "AUTH_INVALID_USERNAME")
		})
	}
}

func TestValidatePassword(t *testing.T) {
	t.Run("accepts minimum length", func(t *testing.T) {
		assert.NoError(t, auth.ValidatePassword("s3cret"))
	})

	t.Run("rejects short password", func(t *testing.T) {
		err := auth.ValidatePassword("other")
		require.Error(t, err)
		assert.True(t, errors.Is(err, auth.ErrInvalidPassword))
		errutil.AssertErrorCode(t, err, "AUTH_INVALID_PASSWORD")
		errutil.AssertErrorContext(t, err, "min", auth.MinPasswordLength)
	})
}

func TestParseUserID(t *testing.T) {
	t.Run("round trips", func(t *testing.T) {
		id, err := auth.ParseUserID(auth.UserID(42).String())
		require.NoError(t, err)
		assert.Equal(t, auth.UserID(42), id)
	})

	for _, in := range []string{"", "0", "-3", "abc", "1.5"} {
		t.Run("rejects "+in, func(t *testing.T) {
			_, err := auth.ParseUserID(in)
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, "AUTH_INVALID_USER_ID")
		})
	}
}
