// Copyright (c) 2026 Arcanum. All rights reserved.
// Author: dev@arcanum.gg

package session

import "context"

// Store is the persistence boundary for sessions.
type Store interface {
	// Insert persists a freshly created session.
	Insert(ctx context.Context, session *Session) error

	// Touch validates a token hash in one atomic statement: it matches a
	// live, unexpired, unrevoked row, slides the expiry window, updates
	// LastActiveAt, and returns the resulting session. Dead tokens yield
	// ErrSessionNotFound, ErrSessionExpired, or ErrSessionRevoked.
	Touch(ctx context.Context, tokenHash string) (*Session, error)

	// FindByID loads a session regardless of its state.
	FindByID(ctx context.Context, id string) (*Session, error)

	// PromoteMFA flips MFAVerified and extends expiry exactly once. A
	// session that is already verified, revoked, or expired does not match
	// the conditional update and yields an error from the same set as Touch,
	// or apperr.Conflict for a second promotion.
	PromoteMFA(ctx context.Context, id string) (*Session, error)

	// Revoke marks one session revoked. A session that is missing, owned by
	// someone else, or already revoked yields apperr.NotFound.
	Revoke(ctx context.Context, id, userID string) error

	// RevokeAll revokes every live session of the user and reports how many
	// rows it hit.
	RevokeAll(ctx context.Context, userID string) (int64, error)

	// RevokeAllExcept revokes every live session of the user except keepID.
	RevokeAllExcept(ctx context.Context, userID, keepID string) (int64, error)

	// ListByUser returns the user's non-revoked, unexpired sessions, newest
	// first.
	ListByUser(ctx context.Context, userID string) ([]Session, error)
}
