// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"time"
)

// EventKind names an auditable authentication event.
type EventKind string

// Auditable events.
const (
	EventRegister       EventKind = "register"
	EventRegisterFailed EventKind = "register_failed"
	EventLogin          EventKind = "login"
	EventLoginFailed    EventKind = "login_failed"
	EventLogout         EventKind = "logout"
)

// Event is a structured record of an authentication outcome. It never
// carries a password.
type Event struct {
	Kind       EventKind
	Username   string
	UserID     UserID // zero when unknown
	RemoteAddr string
	Reason     string // failure classification, e.g. "duplicate_username"
	Time       time.Time
}

// Auditor receives authentication events.
type Auditor interface {
	Record(ctx context.Context, e Event)
}

// NopAuditor discards events.
type NopAuditor struct{}

// Record implements Auditor.
func (NopAuditor) Record(context.Context, Event) {}
