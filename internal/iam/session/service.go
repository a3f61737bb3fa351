// Copyright (c) 2026 Arcanum. All rights reserved.
// Author: dev@arcanum.gg

package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/arcanumhq/arcanum/internal/iam/audit"
	"github.com/arcanumhq/arcanum/internal/platform/apperr"
	"github.com/arcanumhq/arcanum/internal/platform/metrics"
	"github.com/arcanumhq/arcanum/internal/platform/sec"
	"github.com/arcanumhq/arcanum/pkg/uuid"
)

// # Failure Kinds

// Dead-token failures are distinct so transports and logs can tell a stale
// client from a stolen-then-revoked token, but all three map to 401.
var (
	ErrSessionNotFound = apperr.Unauthorized("Session not found")
	ErrSessionExpired  = apperr.Unauthorized("Session expired")
	ErrSessionRevoked  = apperr.Unauthorized("Session revoked")

	// ErrAlreadyVerified reports a second MFA promotion of the same session.
	ErrAlreadyVerified = apperr.Conflict("Session already verified")
)

// Service owns the session lifecycle.
type Service struct {
	store    Store
	recorder audit.Recorder
	metrics  *metrics.Registry
	logger   *slog.Logger
}

// NewService wires a session Service.
func NewService(store Store, recorder audit.Recorder, registry *metrics.Registry, logger *slog.Logger) *Service {
	return &Service{store: store, recorder: recorder, metrics: registry, logger: logger}
}

// CreateInput describes the login that is opening a session.
type CreateInput struct {
	UserID      string
	RequiresMFA bool
	DeviceName  string
	UserAgent   string
	IPAddress   string
}

/*
Create opens a session and returns the bearer token plaintext.

The plaintext leaves this function exactly once; only its SHA-256 hash is
stored. When the login still owes an MFA proof the session starts pending
with a short expiry.

Returns:
  - *Session: the stored session.
  - string: the bearer token to hand to the client.
  - error: storage failures.
*/
func (service *Service) Create(ctx context.Context, input CreateInput) (*Session, string, error) {
	plaintext, err := sec.GenerateSecureToken(sec.MinTokenBytes)
	if err != nil {
		return nil, "", apperr.Internal(err)
	}

	lifetime := Lifetime
	if input.RequiresMFA {
		lifetime = PendingLifetime
	}

	session := &Session{
		ID:          uuid.Must(),
		UserID:      input.UserID,
		TokenHash:   sec.HashToken(plaintext),
		MFAVerified: !input.RequiresMFA,
		ExpiresAt:   time.Now().Add(lifetime),
		DeviceName:  input.DeviceName,
		UserAgent:   input.UserAgent,
		IPAddress:   input.IPAddress,
	}
	if err := service.store.Insert(ctx, session); err != nil {
		return nil, "", err
	}

	service.recorder.Record(ctx, audit.Event{
		Type:        audit.EventSessionCreated,
		PrincipalID: input.UserID,
		Metadata:    map[string]string{"session_id": session.ID, "ip": input.IPAddress},
	})
	return session, plaintext, nil
}

/*
Validate checks a bearer token and slides the expiry window.

Every call goes straight to Postgres, so a revocation elsewhere is visible
to the immediately following validation.

Returns:
  - *Session: the live session after the renewal.
  - error: ErrSessionNotFound, ErrSessionExpired, or ErrSessionRevoked.
*/
func (service *Service) Validate(ctx context.Context, plaintext string) (*Session, error) {
	session, err := service.store.Touch(ctx, sec.HashToken(plaintext))
	if err != nil {
		service.metrics.SessionValidations.WithLabelValues(validationOutcome(err)).Inc()
		return nil, err
	}
	service.metrics.SessionValidations.WithLabelValues("ok").Inc()
	return session, nil
}

// Resolve implements the transport authentication hook: it validates the
// token and condenses the session into a request principal.
func (service *Service) Resolve(ctx context.Context, plaintext string) (*sec.Principal, error) {
	session, err := service.Validate(ctx, plaintext)
	if err != nil {
		return nil, err
	}
	return &sec.Principal{
		UserID:      session.UserID,
		SessionID:   session.ID,
		MFAVerified: session.MFAVerified,
	}, nil
}

/*
PromoteMFA upgrades a pending session after a successful MFA proof.

The upgrade is single-shot: racing promotions produce exactly one winner and
ErrAlreadyVerified for the rest.
*/
func (service *Service) PromoteMFA(ctx context.Context, sessionID string) (*Session, error) {
	session, err := service.store.PromoteMFA(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	service.recorder.Record(ctx, audit.Event{
		Type:        audit.EventMFAVerified,
		PrincipalID: session.UserID,
		Metadata:    map[string]string{"session_id": session.ID},
	})
	return session, nil
}

// Revoke terminates one session of the user. Revocation is terminal.
func (service *Service) Revoke(ctx context.Context, userID, sessionID string) error {
	if err := service.store.Revoke(ctx, sessionID, userID); err != nil {
		return err
	}
	service.recorder.Record(ctx, audit.Event{
		Type:        audit.EventSessionRevoked,
		PrincipalID: userID,
		Metadata:    map[string]string{"session_id": sessionID},
	})
	return nil
}

// RevokeAll terminates every session of the user.
func (service *Service) RevokeAll(ctx context.Context, userID string) error {
	count, err := service.store.RevokeAll(ctx, userID)
	if err != nil {
		return err
	}
	service.logger.InfoContext(ctx, "sessions_revoked", "user_id", userID, "count", count)
	service.recorder.Record(ctx, audit.Event{
		Type:        audit.EventSessionRevoked,
		PrincipalID: userID,
		Metadata:    map[string]string{"scope": "all"},
	})
	return nil
}

// RevokeAllExcept terminates every other session of the user, sparing the
// one that initiated the sweep.
func (service *Service) RevokeAllExcept(ctx context.Context, userID, keepSessionID string) error {
	count, err := service.store.RevokeAllExcept(ctx, userID, keepSessionID)
	if err != nil {
		return err
	}
	service.logger.InfoContext(ctx, "sessions_revoked", "user_id", userID, "count", count, "kept", keepSessionID)
	return nil
}

// List returns the user's live sessions, most recently active first.
func (service *Service) List(ctx context.Context, userID string) ([]Session, error) {
	return service.store.ListByUser(ctx, userID)
}

func validationOutcome(err error) string {
	switch {
	case errors.Is(err, ErrSessionExpired):
		return "expired"
	case errors.Is(err, ErrSessionRevoked):
		return "revoked"
	case errors.Is(err, ErrSessionNotFound):
		return "not_found"
	default:
		return "error"
	}
}
