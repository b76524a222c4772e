// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import "time"

// SetClock overrides the store clock.
func (s *DatabaseSessionStore) SetClock(now func() time.Time) { s.now = now }

// SetClock overrides the store clock.
func (s *TokenSessionStore) SetClock(now func() time.Time) { s.now = now }
