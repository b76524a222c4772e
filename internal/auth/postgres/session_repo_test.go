// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/webauth/internal/auth"
)

var sessionColumns = []string{"user_id", "username", "persistent", "expires_at", "created_at"}

func TestSessionRepository_Create(t *testing.T) {
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	session := &auth.Session{
		UserID:     3,
		Username:   "alice",
		Persistent: true,
		ExpiresAt:  now.Add(time.Hour),
		CreatedAt:  now,
	}

	t.Run("inserts row", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`INSERT INTO web_sessions`).
			WithArgs("hash", int64(3), "alice", true, session.ExpiresAt, session.CreatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, NewSessionRepository(mock).Create(context.Background(), "hash", session))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failure is a storage error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`INSERT INTO web_sessions`).
			WithArgs("hash", int64(3), "alice", true, pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(errors.New("disk full"))

		err = NewSessionRepository(mock).Create(context.Background(), "hash", session)
		require.Error(t, err)
		assert.True(t, errors.Is(err, auth.ErrStorage))
	})
}

func TestSessionRepository_GetByTokenHash(t *testing.T) {
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	t.Run("found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`FROM web_sessions\s+WHERE token_hash = \$1`).
			WithArgs("hash").
			WillReturnRows(pgxmock.NewRows(sessionColumns).AddRow(int64(3), "alice", false, now.Add(time.Hour), now))

		s, err := NewSessionRepository(mock).GetByTokenHash(context.Background(), "hash")
		require.NoError(t, err)
		assert.Equal(t, auth.UserID(3), s.UserID)
		assert.Equal(t, "alice", s.Username)
		assert.False(t, s.Persistent)
		assert.Equal(t, now.Add(time.Hour), s.ExpiresAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`FROM web_sessions`).
			WithArgs("hash").
			WillReturnRows(pgxmock.NewRows(sessionColumns))

		_, err = NewSessionRepository(mock).GetByTokenHash(context.Background(), "hash")
		assert.True(t, errors.Is(err, auth.ErrNotFound))
	})
}

func TestSessionRepository_Delete(t *testing.T) {
	t.Run("delete by hash", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`DELETE FROM web_sessions WHERE token_hash = \$1`).
			WithArgs("hash").
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		assert.NoError(t, NewSessionRepository(mock).DeleteByTokenHash(context.Background(), "hash"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("delete expired returns count", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		now := time.Now()
		mock.ExpectExec(`DELETE FROM web_sessions WHERE expires_at <= \$1`).
			WithArgs(now).
			WillReturnResult(pgxmock.NewResult("DELETE", 4))

		n, err := NewSessionRepository(mock).DeleteExpired(context.Background(), now)
		require.NoError(t, err)
		assert.Equal(t, int64(4), n)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("delete expired failure", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`DELETE FROM web_sessions`).
			WithArgs(pgxmock.AnyArg()).
			WillReturnError(errors.New("boom"))

		_, err = NewSessionRepository(mock).DeleteExpired(context.Background(), time.Now())
		require.Error(t, err)
		assert.True(t, errors.Is(err, auth.ErrStorage))
	})
}
