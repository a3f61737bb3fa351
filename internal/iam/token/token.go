// Copyright (c) 2026 Arcanum. All rights reserved.
// Author: dev@arcanum.gg

/*
Package token implements single-use capability tokens.

Email verification, password reset, and group invitation links all share the
same shape: a bearer secret with its own kind, expiry, optional IP binding,
and single-use semantics. Rather than one ad hoc table per feature, this
package models them uniformly as tagged capability records.

Invariants:

  - Plaintext is returned exactly once at issuance; only a SHA-256 digest is
    persisted.
  - Consumption is an atomic compare-and-set: of two concurrent consumers,
    exactly one wins and the other observes TOKEN_ALREADY_USED.
  - Replay after a successful consumption is distinguishable from an unknown
    token — callers can surface the precise failure kind.
*/
package token

import (
	"context"
	"fmt"
	"time"

	"github.com/arcanumhq/arcanum/internal/platform/apperr"
	"github.com/arcanumhq/arcanum/internal/platform/sec"
	"github.com/arcanumhq/arcanum/pkg/uuid"
)

// # Kinds & Lifetimes

// Kind tags the capability a token grants.
type Kind string

const (
	// KindEmailVerify confirms ownership of a registration email address.
	KindEmailVerify Kind = "email_verify"

	// KindPasswordReset authorizes a one-time password replacement.
	KindPasswordReset Kind = "password_reset"

	// KindInvite admits the bearer into a group.
	KindInvite Kind = "invite"
)

// lifetimes fixes the validity window per kind.
var lifetimes = map[Kind]time.Duration{
	KindEmailVerify:   24 * time.Hour,
	KindPasswordReset: 1 * time.Hour,
	KindInvite:        7 * 24 * time.Hour,
}

// # Domain Entity

// Token is a persisted single-use capability. The plaintext secret is never
// stored — only TokenHash.
type Token struct {
	ID        string
	Kind      Kind
	UserID    string
	TokenHash string
	// BoundIP optionally pins consumption to the requesting address.
	BoundIP   string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// # Failure Kinds

var (
	// ErrNotFound is returned for unknown (or IP-mismatched) tokens.
	ErrNotFound = apperr.NotFound("Token")

	// ErrExpired is returned when the token exists but its window has passed.
	ErrExpired = apperr.Unauthorized("Token has expired")

	// ErrAlreadyUsed is returned on replay after a successful consumption.
	ErrAlreadyUsed = apperr.Conflict("Token has already been used")
)

// # Service

// Service issues and consumes capability tokens.
type Service struct {
	store Store
}

// NewService constructs a token [Service].
func NewService(store Store) *Service {
	return &Service{store: store}
}

/*
Issue mints a fresh capability token for the user.

Description: Generates 32 bytes of entropy, persists only the digest, and
returns the URL-safe plaintext exactly once.

Parameters:
  - context: context.Context
  - kind: Kind
  - userID: string
  - boundIP: string (empty to skip IP binding)

Returns:
  - string: Plaintext token for delivery to the user
  - error: Entropy or persistence failures
*/
func (service *Service) Issue(context context.Context, kind Kind, userID, boundIP string) (string, error) {
	plaintext, err := sec.GenerateSecureToken(sec.MinTokenBytes)
	if err != nil {
		return "", fmt.Errorf("token_service_generate_failed: %w", err)
	}

	record := &Token{
		ID:        uuid.New(),
		Kind:      kind,
		UserID:    userID,
		TokenHash: sec.HashToken(plaintext),
		BoundIP:   boundIP,
		ExpiresAt: time.Now().Add(lifetimes[kind]),
	}

	if err := service.store.Insert(context, record); err != nil {
		return "", fmt.Errorf("token_service_issue_failed: %w", err)
	}

	return plaintext, nil
}

/*
Consume atomically marks the token used and returns its record.

Description: The store performs a compare-and-set on usedat so two concurrent
consumers yield exactly one winner. The IP binding is part of that condition:
a submission from the wrong address reads as [ErrNotFound] and leaves the
token unburned for the legitimate holder. The losing concurrent consumer, and
any later replay, observes [ErrAlreadyUsed]; unknown tokens observe
[ErrNotFound]; stale tokens observe [ErrExpired].

Parameters:
  - context: context.Context
  - kind: Kind
  - plaintext: string (as received from the user)
  - requestIP: string (checked against BoundIP when set)

Returns:
  - *Token: The consumed record (UserID identifies the subject)
  - error: ErrNotFound, ErrExpired, ErrAlreadyUsed, or storage failures
*/
func (service *Service) Consume(context context.Context, kind Kind, plaintext, requestIP string) (*Token, error) {
	return service.store.Consume(context, kind, sec.HashToken(plaintext), requestIP)
}

/*
InvalidateAll marks every outstanding token of the kind for the user as used.

Called when the capability's purpose is fulfilled through another path (e.g.
a successful password reset burns all sibling reset tokens).
*/
func (service *Service) InvalidateAll(context context.Context, kind Kind, userID string) error {
	if err := service.store.InvalidateAll(context, kind, userID); err != nil {
		return fmt.Errorf("token_service_invalidate_all_failed: %w", err)
	}
	return nil
}
