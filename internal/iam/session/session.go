// Copyright (c) 2026 Arcanum. All rights reserved.
// Author: dev@arcanum.gg

/*
Package session manages opaque bearer sessions.

Architecture:
  - Tokens are random 32-byte values handed to the client exactly once at
    creation. The server keeps only the SHA-256 hash, so a database leak
    never yields usable bearer tokens.
  - Every validation is a single Postgres round trip that also slides the
    expiry forward. There is no cache in front of the table: a revocation
    is visible to the very next validation.
  - A session born from a login that still owes an MFA proof starts in the
    pending state with a short fuse; PromoteMFA upgrades it to a full
    session exactly once.

State machine: Created -> Active, Created -> PendingMFA -> Active,
any -> Expired (lazy, derived from the clock), any -> Revoked (terminal).
*/
package session

import "time"

// # Lifetimes

const (
	// Lifetime is the sliding window of an active session. Each successful
	// validation pushes expiry out to now + Lifetime.
	Lifetime = 30 * 24 * time.Hour

	// PendingLifetime bounds how long a login may sit between password and
	// MFA proof before the half-open session dies.
	PendingLifetime = 15 * time.Minute
)

// State is the derived lifecycle position of a session.
type State string

const (
	StatePendingMFA State = "pending_mfa"
	StateActive     State = "active"
	StateExpired    State = "expired"
	StateRevoked    State = "revoked"
)

// Session is a server-side bearer session. TokenHash is the only stored
// form of the credential; the plaintext token is never persisted.
type Session struct {
	ID           string
	UserID       string
	TokenHash    string
	MFAVerified  bool
	Revoked      bool
	ExpiresAt    time.Time
	LastActiveAt time.Time
	DeviceName   string
	UserAgent    string
	IPAddress    string
	CreatedAt    time.Time
}

// State derives the lifecycle state at the given instant. Revoked is
// terminal and wins over expiry.
func (s *Session) State(now time.Time) State {
	switch {
	case s.Revoked:
		return StateRevoked
	case now.After(s.ExpiresAt):
		return StateExpired
	case !s.MFAVerified:
		return StatePendingMFA
	default:
		return StateActive
	}
}
