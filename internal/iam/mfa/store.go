// Copyright (c) 2026 Arcanum. All rights reserved.
// Author: dev@arcanum.gg

package mfa

import (
	"context"
	"time"
)

// Store is the durable persistence boundary for factors and recovery codes.
type Store interface {
	// InsertFactor persists a confirmed factor. A second factor for the
	// same (user, method) pair yields apperr.Conflict.
	InsertFactor(ctx context.Context, factor *Factor) error

	// FindFactor loads the user's factor for a method.
	FindFactor(ctx context.Context, userID string, method Method) (*Factor, error)

	// ListFactors returns the user's verified factors.
	ListFactors(ctx context.Context, userID string) ([]Factor, error)

	// CountVerified returns how many verified factors the user holds.
	CountVerified(ctx context.Context, userID string) (int, error)

	// AdvanceTOTPCounter accepts a TOTP time-step only if it is strictly
	// greater than the stored one. A stale counter yields ErrCodeReplayed.
	AdvanceTOTPCounter(ctx context.Context, factorID string, counter int64) error

	// AdvanceSignCount accepts a WebAuthn signature counter only if it is
	// strictly greater than the stored one. A stale counter yields
	// ErrCounterCloned.
	AdvanceSignCount(ctx context.Context, factorID string, signCount uint32) error

	// SetPrimary makes the factor the user's primary one, clearing the
	// flag on every other factor in the same statement set.
	SetPrimary(ctx context.Context, userID, factorID string) error

	// DeleteFactor removes a factor by ID, scoped to the user, and purges
	// the recovery batch in the same transaction when the deleted factor
	// was the user's last verified one. Returns how many verified factors
	// remain.
	DeleteFactor(ctx context.Context, userID, factorID string) (remaining int, err error)

	// ReplaceRecoveryCodes atomically swaps the user's recovery batch for
	// the given hashes.
	ReplaceRecoveryCodes(ctx context.Context, userID string, hashes []string) error

	// ConsumeRecoveryCode burns one unused code matching the hash. A code
	// that is unknown or already used yields ErrRecoveryCodeInvalid.
	ConsumeRecoveryCode(ctx context.Context, userID, hash string) (remaining int, err error)

	// CountRecoveryCodes returns how many codes in the batch are unused.
	CountRecoveryCodes(ctx context.Context, userID string) (int, error)
}

// ChallengeStore is the volatile boundary for short-lived MFA state: pending
// TOTP setups, hashed OTP codes with attempt counters, and WebAuthn
// challenges. Entries expire on their own.
type ChallengeStore interface {
	// PutSetup stashes a pending TOTP secret until ConfirmSetup.
	PutSetup(ctx context.Context, userID, secretBase32 string, ttl time.Duration) error

	// GetSetup returns the pending secret, or ErrNoPendingSetup.
	GetSetup(ctx context.Context, userID string) (string, error)

	// DeleteSetup discards the pending secret.
	DeleteSetup(ctx context.Context, userID string) error

	// PutOTP stores a hashed delivery code, the destination it was sent
	// to, and a fresh attempt counter.
	PutOTP(ctx context.Context, userID string, method Method, codeHash, destination string, ttl time.Duration) error

	// TakeOTPAttempt atomically spends one attempt and returns the stored
	// hash along with the delivery destination. Exhausted or missing
	// challenges yield ErrAttemptsExceeded or ErrChallengeExpired.
	TakeOTPAttempt(ctx context.Context, userID string, method Method) (codeHash, destination string, err error)

	// DeleteOTP discards the challenge after a successful proof.
	DeleteOTP(ctx context.Context, userID string, method Method) error

	// PutWebAuthnChallenge stores a challenge bound to the user handle.
	PutWebAuthnChallenge(ctx context.Context, userID, challenge string, ttl time.Duration) error

	// TakeWebAuthnChallenge returns and deletes the challenge, making each
	// one single-use. Missing challenges yield ErrChallengeExpired.
	TakeWebAuthnChallenge(ctx context.Context, userID string) (string, error)
}
