// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package auth provides username/password authentication and session
// management for webauth.
//
// # Domain Types
//
// A User is created only through Directory.RegisterUser and is never edited
// or deleted. A Session is a typed record binding a client to a User; it is
// created by SessionManager.Establish and cleared by SessionManager.Destroy
// or by expiry.
//
// # Services
//
//   - Directory - registration, credential verification, user lookups
//   - SessionManager - request-scoped session state (Anonymous/Authenticated)
//   - Sweeper - periodic removal of expired server-side sessions
//
// Storage is abstracted behind UserRepository and SessionRecordRepository;
// implementations live in the postgres and sqlite subpackages. Services are
// created with New* constructors that validate their dependencies.
//
// Business outcomes (duplicate username, bad credentials) are reported as
// errors wrapping the sentinels in errors.go so callers can branch with
// errors.Is. Nothing in this package logs; callers report Events to an
// Auditor.
package auth
