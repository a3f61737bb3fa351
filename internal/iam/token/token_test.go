// Copyright (c) 2026 Arcanum. All rights reserved.
// Author: dev@arcanum.gg

package token_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcanumhq/arcanum/internal/iam/token"
)

// memoryStore is an in-memory Store with the same atomic consume semantics
// as the Postgres implementation.
type memoryStore struct {
	mu      sync.Mutex
	records map[string]*token.Token // keyed by kind+hash
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: make(map[string]*token.Token)}
}

func (store *memoryStore) key(kind token.Kind, hash string) string {
	return string(kind) + ":" + hash
}

func (store *memoryStore) Insert(_ context.Context, record *token.Token) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	copied := *record
	store.records[store.key(record.Kind, record.TokenHash)] = &copied
	return nil
}

func (store *memoryStore) Consume(_ context.Context, kind token.Kind, tokenHash, requestIP string) (*token.Token, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	record, found := store.records[store.key(kind, tokenHash)]
	if !found {
		return nil, token.ErrNotFound
	}
	// Mismatched bindings read as unknown and leave the record untouched.
	if record.BoundIP != "" && record.BoundIP != requestIP {
		return nil, token.ErrNotFound
	}
	if record.UsedAt != nil {
		return nil, token.ErrAlreadyUsed
	}
	if time.Now().After(record.ExpiresAt) {
		return nil, token.ErrExpired
	}

	now := time.Now()
	record.UsedAt = &now
	copied := *record
	return &copied, nil
}

func (store *memoryStore) InvalidateAll(_ context.Context, kind token.Kind, userID string) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	now := time.Now()
	for _, record := range store.records {
		if record.Kind == kind && record.UserID == userID && record.UsedAt == nil {
			record.UsedAt = &now
		}
	}
	return nil
}

// expireAll backdates every stored token so they read as stale.
func (store *memoryStore) expireAll() {
	store.mu.Lock()
	defer store.mu.Unlock()
	for _, record := range store.records {
		record.ExpiresAt = time.Now().Add(-time.Minute)
	}
}

/*
TestService_IssueAndConsume verifies the happy path: the plaintext redeems
exactly once and identifies the subject.
*/
func TestService_IssueAndConsume(t *testing.T) {
	store := newMemoryStore()
	service := token.NewService(store)
	ctx := context.Background()

	plaintext, err := service.Issue(ctx, token.KindEmailVerify, "user-1", "")
	require.NoError(t, err)
	require.NotEmpty(t, plaintext)

	record, err := service.Consume(ctx, token.KindEmailVerify, plaintext, "203.0.113.9")
	require.NoError(t, err)
	assert.Equal(t, "user-1", record.UserID)
	assert.Equal(t, token.KindEmailVerify, record.Kind)

	// The plaintext must never be persisted.
	assert.NotEqual(t, plaintext, record.TokenHash)
}

/*
TestService_ReplayDistinctFromUnknown verifies the three failure kinds are
distinguishable: replay, unknown, and expired.
*/
func TestService_ReplayDistinctFromUnknown(t *testing.T) {
	store := newMemoryStore()
	service := token.NewService(store)
	ctx := context.Background()

	plaintext, err := service.Issue(ctx, token.KindPasswordReset, "user-1", "")
	require.NoError(t, err)

	_, err = service.Consume(ctx, token.KindPasswordReset, plaintext, "")
	require.NoError(t, err)

	// Replay after success.
	_, err = service.Consume(ctx, token.KindPasswordReset, plaintext, "")
	assert.ErrorIs(t, err, token.ErrAlreadyUsed)

	// Unknown plaintext.
	_, err = service.Consume(ctx, token.KindPasswordReset, "never-issued", "")
	assert.ErrorIs(t, err, token.ErrNotFound)
}

/*
TestService_Expired verifies stale tokens surface the expiry failure kind.
*/
func TestService_Expired(t *testing.T) {
	store := newMemoryStore()
	service := token.NewService(store)
	ctx := context.Background()

	plaintext, err := service.Issue(ctx, token.KindEmailVerify, "user-1", "")
	require.NoError(t, err)

	store.expireAll()

	_, err = service.Consume(ctx, token.KindEmailVerify, plaintext, "")
	assert.ErrorIs(t, err, token.ErrExpired)
}

/*
TestService_KindsIsolated verifies a token of one kind cannot be consumed as
another kind.
*/
func TestService_KindsIsolated(t *testing.T) {
	store := newMemoryStore()
	service := token.NewService(store)
	ctx := context.Background()

	plaintext, err := service.Issue(ctx, token.KindEmailVerify, "user-1", "")
	require.NoError(t, err)

	_, err = service.Consume(ctx, token.KindPasswordReset, plaintext, "")
	assert.ErrorIs(t, err, token.ErrNotFound)

	// The original kind still redeems.
	_, err = service.Consume(ctx, token.KindEmailVerify, plaintext, "")
	assert.NoError(t, err)
}

/*
TestService_IPBinding verifies a bound token is indistinguishable from an
unknown one when redeemed from the wrong address, and that the failed
attempt does not burn the token for the legitimate holder.
*/
func TestService_IPBinding(t *testing.T) {
	store := newMemoryStore()
	service := token.NewService(store)
	ctx := context.Background()

	plaintext, err := service.Issue(ctx, token.KindPasswordReset, "user-1", "203.0.113.9")
	require.NoError(t, err)

	_, err = service.Consume(ctx, token.KindPasswordReset, plaintext, "198.51.100.4")
	require.ErrorIs(t, err, token.ErrNotFound)

	// The bound address still redeems after the mismatched attempt.
	record, err := service.Consume(ctx, token.KindPasswordReset, plaintext, "203.0.113.9")
	require.NoError(t, err)
	assert.Equal(t, "user-1", record.UserID)
}

/*
TestService_InvalidateAll verifies sibling tokens of a kind are burned
together while other kinds survive.
*/
func TestService_InvalidateAll(t *testing.T) {
	store := newMemoryStore()
	service := token.NewService(store)
	ctx := context.Background()

	first, err := service.Issue(ctx, token.KindPasswordReset, "user-1", "")
	require.NoError(t, err)
	second, err := service.Issue(ctx, token.KindPasswordReset, "user-1", "")
	require.NoError(t, err)
	verify, err := service.Issue(ctx, token.KindEmailVerify, "user-1", "")
	require.NoError(t, err)

	require.NoError(t, service.InvalidateAll(ctx, token.KindPasswordReset, "user-1"))

	_, err = service.Consume(ctx, token.KindPasswordReset, first, "")
	assert.ErrorIs(t, err, token.ErrAlreadyUsed)
	_, err = service.Consume(ctx, token.KindPasswordReset, second, "")
	assert.ErrorIs(t, err, token.ErrAlreadyUsed)

	_, err = service.Consume(ctx, token.KindEmailVerify, verify, "")
	assert.NoError(t, err)
}

/*
TestService_ConcurrentConsume verifies exactly one of many concurrent
consumers wins.
*/
func TestService_ConcurrentConsume(t *testing.T) {
	store := newMemoryStore()
	service := token.NewService(store)
	ctx := context.Background()

	plaintext, err := service.Issue(ctx, token.KindPasswordReset, "user-1", "")
	require.NoError(t, err)

	const attempts = 16
	results := make(chan error, attempts)

	var start sync.WaitGroup
	start.Add(1)
	for i := 0; i < attempts; i++ {
		go func() {
			start.Wait()
			_, err := service.Consume(ctx, token.KindPasswordReset, plaintext, "")
			results <- err
		}()
	}
	start.Done()

	winners := 0
	for i := 0; i < attempts; i++ {
		if err := <-results; err == nil {
			winners++
		} else {
			assert.ErrorIs(t, err, token.ErrAlreadyUsed)
		}
	}
	assert.Equal(t, 1, winners)
}
