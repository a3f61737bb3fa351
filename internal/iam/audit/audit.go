// Copyright (c) 2026 Arcanum. All rights reserved.
// Author: dev@arcanum.gg

/*
Package audit defines the write-only security event sink.

Every security-relevant outcome (login failure, lockout, MFA exhaustion,
session revocation, password change, authorization denial) is forwarded here
before the operation returns to the caller.

Architecture:

  - Recorder: the boundary interface. The core only ever appends; it never
    reads events back.
  - Best effort: a failed audit write must not block or fail the primary
    operation. Failures are logged as a soft alarm instead.
*/
package audit

import (
	"context"
	"log/slog"
	"time"
)

// # Event Types

// EventType classifies a security event.
type EventType string

const (
	EventLoginSucceeded      EventType = "login_succeeded"
	EventLoginFailed         EventType = "login_failed"
	EventLockoutTriggered    EventType = "lockout_triggered"
	EventPasswordChanged     EventType = "password_changed"
	EventPasswordReset       EventType = "password_reset"
	EventEmailVerified       EventType = "email_verified"
	EventMFAFactorAdded      EventType = "mfa_factor_added"
	EventMFAFactorRemoved    EventType = "mfa_factor_removed"
	EventMFAVerified         EventType = "mfa_verified"
	EventMFAFailed           EventType = "mfa_failed"
	EventMFAAttemptsExceeded EventType = "mfa_attempts_exceeded"
	EventRecoveryCodeUsed    EventType = "recovery_code_used"
	EventRecoveryRegenerated EventType = "recovery_codes_regenerated"
	EventSessionCreated      EventType = "session_created"
	EventSessionRevoked      EventType = "session_revoked"
	EventAuthzDenied         EventType = "authz_denied"
	EventRoleAssigned        EventType = "role_assigned"
	EventOAuthLinked         EventType = "oauth_linked"
)

// Event is a single structured security record.
type Event struct {
	Type        EventType
	PrincipalID string
	Metadata    map[string]string
	OccurredAt  time.Time
}

// Recorder is the append-only audit boundary.
//
// Implementations must be safe for concurrent use; callers never read back.
type Recorder interface {
	// Record appends the event. Errors are the implementation's concern —
	// callers treat recording as fire-and-forget.
	Record(ctx context.Context, event Event)
}

// # Implementations

// Log is a Recorder that writes events to the structured logger. It is the
// fallback sink and the default for tests.
type Log struct {
	Logger *slog.Logger
}

// Record implements [Recorder] by emitting a structured log line.
func (sink *Log) Record(ctx context.Context, event Event) {
	attrs := []any{
		slog.String("event_type", string(event.Type)),
		slog.String("principal_id", event.PrincipalID),
	}
	for key, value := range event.Metadata {
		attrs = append(attrs, slog.String("meta_"+key, value))
	}
	sink.Logger.InfoContext(ctx, "audit_event", attrs...)
}

// Noop is a Recorder that discards events. Useful in narrow unit tests.
type Noop struct{}

// Record implements [Recorder] by doing nothing.
func (Noop) Record(context.Context, Event) {}
