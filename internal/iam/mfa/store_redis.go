// Copyright (c) 2026 Arcanum. All rights reserved.
// Author: dev@arcanum.gg

package mfa

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/arcanumhq/arcanum/internal/platform/apperr"
	"github.com/arcanumhq/arcanum/internal/platform/constants"
)

// maxOTPAttempts bounds guesses against one delivered code.
const maxOTPAttempts = 5

// RedisChallengeStore holds short-lived MFA state in Redis. Every key
// carries a TTL, so abandoned challenges clean themselves up.
type RedisChallengeStore struct {
	client redis.UniversalClient
}

// NewRedisChallengeStore builds a challenge store on the shared client.
func NewRedisChallengeStore(client redis.UniversalClient) *RedisChallengeStore {
	return &RedisChallengeStore{client: client}
}

// # Pending TOTP Setups

func (store *RedisChallengeStore) PutSetup(ctx context.Context, userID, secretBase32 string, ttl time.Duration) error {
	key := constants.RedisPrefixSetupChallenge + userID
	if err := store.client.Set(ctx, key, secretBase32, ttl).Err(); err != nil {
		return apperr.Transient(err)
	}
	return nil
}

func (store *RedisChallengeStore) GetSetup(ctx context.Context, userID string) (string, error) {
	key := constants.RedisPrefixSetupChallenge + userID
	secret, err := store.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNoPendingSetup
		}
		return "", apperr.Transient(err)
	}
	return secret, nil
}

func (store *RedisChallengeStore) DeleteSetup(ctx context.Context, userID string) error {
	if err := store.client.Del(ctx, constants.RedisPrefixSetupChallenge+userID).Err(); err != nil {
		return apperr.Transient(err)
	}
	return nil
}

// # Delivered OTP Codes

func otpKey(userID string, method Method) string {
	return constants.RedisPrefixOTPChallenge + string(method) + ":" + userID
}

func otpAttemptsKey(userID string, method Method) string {
	return otpKey(userID, method) + ":attempts"
}

func otpDestinationKey(userID string, method Method) string {
	return otpKey(userID, method) + ":dest"
}

// PutOTP stores the hashed code, the destination it went to, and resets the
// attempt counter. Reissuing a code replaces the old challenge outright.
func (store *RedisChallengeStore) PutOTP(ctx context.Context, userID string, method Method, codeHash, destination string, ttl time.Duration) error {
	pipeline := store.client.TxPipeline()
	pipeline.Set(ctx, otpKey(userID, method), codeHash, ttl)
	pipeline.Set(ctx, otpDestinationKey(userID, method), destination, ttl)
	pipeline.Set(ctx, otpAttemptsKey(userID, method), 0, ttl)
	if _, err := pipeline.Exec(ctx); err != nil {
		return apperr.Transient(err)
	}
	return nil
}

/*
TakeOTPAttempt spends one guess atomically before the hash is revealed to
the caller. The INCR happens whether or not the subsequent compare succeeds,
so a flood of wrong guesses exhausts the challenge instead of the database.
The ExpireNX covers the counter INCR recreates after the challenge itself
has expired, so guesses against a dead challenge still decay.
*/
func (store *RedisChallengeStore) TakeOTPAttempt(ctx context.Context, userID string, method Method) (string, string, error) {
	pipeline := store.client.TxPipeline()
	attempts := pipeline.Incr(ctx, otpAttemptsKey(userID, method))
	pipeline.ExpireNX(ctx, otpAttemptsKey(userID, method), otpTTL)
	if _, err := pipeline.Exec(ctx); err != nil {
		return "", "", apperr.Transient(err)
	}
	if attempts.Val() > maxOTPAttempts {
		return "", "", ErrAttemptsExceeded
	}

	hash, err := store.client.Get(ctx, otpKey(userID, method)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", "", ErrChallengeExpired
		}
		return "", "", apperr.Transient(err)
	}
	destination, err := store.client.Get(ctx, otpDestinationKey(userID, method)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", "", apperr.Transient(err)
	}
	return hash, destination, nil
}

func (store *RedisChallengeStore) DeleteOTP(ctx context.Context, userID string, method Method) error {
	pipeline := store.client.TxPipeline()
	pipeline.Del(ctx, otpKey(userID, method))
	pipeline.Del(ctx, otpDestinationKey(userID, method))
	pipeline.Del(ctx, otpAttemptsKey(userID, method))
	if _, err := pipeline.Exec(ctx); err != nil {
		return apperr.Transient(err)
	}
	return nil
}

// # WebAuthn Challenges

func (store *RedisChallengeStore) PutWebAuthnChallenge(ctx context.Context, userID, challenge string, ttl time.Duration) error {
	key := constants.RedisPrefixWebAuthn + userID
	if err := store.client.Set(ctx, key, challenge, ttl).Err(); err != nil {
		return apperr.Transient(err)
	}
	return nil
}

// TakeWebAuthnChallenge is get-and-delete so each challenge signs at most
// one ceremony.
func (store *RedisChallengeStore) TakeWebAuthnChallenge(ctx context.Context, userID string) (string, error) {
	key := constants.RedisPrefixWebAuthn + userID
	challenge, err := store.client.GetDel(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrChallengeExpired
		}
		return "", apperr.Transient(err)
	}
	return challenge, nil
}
