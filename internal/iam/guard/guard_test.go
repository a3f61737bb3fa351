// Copyright (c) 2026 Arcanum. All rights reserved.
// Author: dev@arcanum.gg

package guard_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcanumhq/arcanum/internal/iam/guard"
	"github.com/arcanumhq/arcanum/internal/platform/apperr"
)

func newTestGuard(t *testing.T) (*guard.Guard, *miniredis.Miniredis) {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return guard.New(client), server
}

/*
TestGuard_LoginBudget verifies the five-failures-per-window login budget:
the fifth hit is still within budget, the sixth is rejected.
*/
func TestGuard_LoginBudget(t *testing.T) {
	g, _ := newTestGuard(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, g.Hit(ctx, guard.ActionLogin, "player@arcanum.gg"), "hit %d", i+1)
	}

	err := g.Hit(ctx, guard.ActionLogin, "player@arcanum.gg")
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.CodeRateLimited))

	// Check (read-only) now also reports exhaustion.
	err = g.Check(ctx, guard.ActionLogin, "player@arcanum.gg")
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.CodeRateLimited))
}

/*
TestGuard_PrincipalsIsolated verifies counters are keyed per principal.
*/
func TestGuard_PrincipalsIsolated(t *testing.T) {
	g, _ := newTestGuard(t)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		_ = g.Hit(ctx, guard.ActionLogin, "locked@arcanum.gg")
	}

	assert.NoError(t, g.Check(ctx, guard.ActionLogin, "other@arcanum.gg"))
	assert.NoError(t, g.Hit(ctx, guard.ActionLogin, "other@arcanum.gg"))
}

/*
TestGuard_PrincipalCaseInsensitive verifies that the counter key folds case,
so an attacker cannot multiply the budget by varying capitalization.
*/
func TestGuard_PrincipalCaseInsensitive(t *testing.T) {
	g, _ := newTestGuard(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, g.Hit(ctx, guard.ActionLogin, "Player@Arcanum.GG"))
	}

	err := g.Hit(ctx, guard.ActionLogin, "player@arcanum.gg")
	assert.True(t, apperr.IsCode(err, apperr.CodeRateLimited))
}

/*
TestGuard_Reset verifies that a reset clears the counter (successful login
must not leave residual failures).
*/
func TestGuard_Reset(t *testing.T) {
	g, _ := newTestGuard(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, g.Hit(ctx, guard.ActionLogin, "player@arcanum.gg"))
	}

	require.NoError(t, g.Reset(ctx, guard.ActionLogin, "player@arcanum.gg"))

	assert.NoError(t, g.Check(ctx, guard.ActionLogin, "player@arcanum.gg"))
	assert.NoError(t, g.Hit(ctx, guard.ActionLogin, "player@arcanum.gg"))
}

/*
TestGuard_WindowExpiry verifies the counter disappears when the rolling
window elapses.
*/
func TestGuard_WindowExpiry(t *testing.T) {
	g, server := newTestGuard(t)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		_ = g.Hit(ctx, guard.ActionLogin, "player@arcanum.gg")
	}
	require.Error(t, g.Check(ctx, guard.ActionLogin, "player@arcanum.gg"))

	// Advance past the 15-minute login window.
	server.FastForward(16 * time.Minute)

	assert.NoError(t, g.Check(ctx, guard.ActionLogin, "player@arcanum.gg"))
	assert.NoError(t, g.Hit(ctx, guard.ActionLogin, "player@arcanum.gg"))
}

/*
TestGuard_RetryAfterFromTTL verifies the rate-limited error carries a
retry-after hint derived from the key's remaining TTL.
*/
func TestGuard_RetryAfterFromTTL(t *testing.T) {
	g, _ := newTestGuard(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, g.Hit(ctx, guard.ActionLogin, "player@arcanum.gg"))
	}

	err := g.Hit(ctx, guard.ActionLogin, "player@arcanum.gg")
	require.Error(t, err)

	ae := apperr.As(err)
	require.NotNil(t, ae)
	assert.Greater(t, ae.RetryAfterSeconds, 0)
	assert.LessOrEqual(t, ae.RetryAfterSeconds, int((15 * time.Minute).Seconds()))
}

/*
TestGuard_OTPSendBudget verifies the tighter delivery budget (3 per hour).
*/
func TestGuard_OTPSendBudget(t *testing.T) {
	g, _ := newTestGuard(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, g.Hit(ctx, guard.ActionOTPSend, "user-1"))
	}

	err := g.Hit(ctx, guard.ActionOTPSend, "user-1")
	assert.True(t, apperr.IsCode(err, apperr.CodeRateLimited))
}

/*
TestGuard_ActionsIsolated verifies one action's exhaustion does not bleed
into another.
*/
func TestGuard_ActionsIsolated(t *testing.T) {
	g, _ := newTestGuard(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_ = g.Hit(ctx, guard.ActionOTPSend, "user-1")
	}
	require.Error(t, g.Check(ctx, guard.ActionOTPSend, "user-1"))

	assert.NoError(t, g.Check(ctx, guard.ActionLogin, "user-1"))
	assert.NoError(t, g.Check(ctx, guard.ActionMFAVerify, "user-1"))
}
