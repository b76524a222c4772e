// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package authtest provides in-memory auth repositories for tests.
package authtest

import (
	"context"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/webauth/internal/auth"
)

// Users is an in-memory auth.UserRepository.
type Users struct {
	mu     sync.Mutex
	byName map[string]*auth.User
	byID   map[auth.UserID]*auth.User
	nextID auth.UserID
	now    func() time.Time
}

// NewUsers creates an empty Users repository.
func NewUsers() *Users {
	return &Users{
		byName: make(map[string]*auth.User),
		byID:   make(map[auth.UserID]*auth.User),
		nextID: 1,
		now:    time.Now,
	}
}

// Create implements auth.UserRepository.
func (r *Users) Create(_ context.Context, username, passwordHash string) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byName[username]; ok {
		return nil, oops.Code("USER_DUPLICATE").With("username", username).Wrap(auth.ErrDuplicateUsername)
	}
	u := &auth.User{
		ID:           r.nextID,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    r.now(),
	}
	r.nextID++
	r.byName[username] = u
	r.byID[u.ID] = u
	clone := *u
	return &clone, nil
}

// GetByUsername implements auth.UserRepository.
func (r *Users) GetByUsername(_ context.Context, username string) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byName[username]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").With("username", username).Wrap(auth.ErrNotFound)
	}
	clone := *u
	return &clone, nil
}

// GetByID implements auth.UserRepository.
func (r *Users) GetByID(_ context.Context, id auth.UserID) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").With("id", id).Wrap(auth.ErrNotFound)
	}
	clone := *u
	return &clone, nil
}

// Remove deletes a user, simulating an out-of-band account removal.
func (r *Users) Remove(id auth.UserID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u, ok := r.byID[id]; ok {
		delete(r.byName, u.Username)
		delete(r.byID, id)
	}
}

// Count returns the number of stored users.
func (r *Users) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

// Sessions is an in-memory auth.SessionRecordRepository.
type Sessions struct {
	mu     sync.Mutex
	byHash map[string]auth.Session
}

// NewSessions creates an empty Sessions repository.
func NewSessions() *Sessions {
	return &Sessions{byHash: make(map[string]auth.Session)}
}

// Create implements auth.SessionRecordRepository.
func (r *Sessions) Create(_ context.Context, tokenHash string, s *auth.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byHash[tokenHash]; ok {
		return oops.Code("SESSION_DUPLICATE").Errorf("session already exists")
	}
	r.byHash[tokenHash] = *s
	return nil
}

// GetByTokenHash implements auth.SessionRecordRepository.
func (r *Sessions) GetByTokenHash(_ context.Context, tokenHash string) (*auth.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byHash[tokenHash]
	if !ok {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return &s, nil
}

// DeleteByTokenHash implements auth.SessionRecordRepository.
func (r *Sessions) DeleteByTokenHash(_ context.Context, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.byHash, tokenHash)
	return nil
}

// DeleteExpired implements auth.SessionRecordRepository.
func (r *Sessions) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for h, s := range r.byHash {
		if s.IsExpiredAt(now) {
			delete(r.byHash, h)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored sessions.
func (r *Sessions) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byHash)
}

var (
	_ auth.UserRepository          = (*Users)(nil)
	_ auth.SessionRecordRepository = (*Sessions)(nil)
)

// FastHasherParams are cheap argon2id parameters for tests.
var FastHasherParams = auth.Argon2Params{Time: 1, Memory: 1024, Threads: 1, SaltLen: 16, KeyLen: 32}

// NewHasher returns an argon2id hasher using FastHasherParams.
func NewHasher() *auth.Argon2idHasher {
	h, err := auth.NewArgon2idHasherWithParams(FastHasherParams)
	if err != nil {
		panic(err)
	}
	return h
}
