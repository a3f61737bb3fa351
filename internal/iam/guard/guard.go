// Copyright (c) 2026 Arcanum. All rights reserved.
// Author: dev@arcanum.gg

/*
Package guard implements the shared rate/lockout counters consulted before
every sensitive operation (credential verification, OTP sends, password
reset requests).

Architecture:

  - Counters live in Redis behind atomic INCR + NX expiry, keyed per
    (action, principal). This makes the guard correct across concurrent
    request handlers AND across multiple server processes.
  - Budgets are fixed per action; the window is rolling — the key expires
    relative to the first hit in the window.
  - A rate-limited failure carries the remaining window as a retry-after
    hint, read from the key's TTL.

The guard never stores anything sensitive: keys contain lowercased principal
identifiers (email, user ID, or IP) and values are plain counters.
*/
package guard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/arcanumhq/arcanum/internal/platform/apperr"
	"github.com/arcanumhq/arcanum/internal/platform/constants"
)

// Action identifies a guarded operation class.
type Action string

const (
	// ActionLogin guards credential verification per account identifier.
	ActionLogin Action = "login"

	// ActionOTPSend guards SMS/Email code delivery per user.
	ActionOTPSend Action = "otp_send"

	// ActionResetRequest guards password-reset issuance per email.
	ActionResetRequest Action = "reset_request"

	// ActionMFAVerify guards MFA proof checks per user.
	ActionMFAVerify Action = "mfa_verify"
)

// Budget pairs an attempt limit with its rolling window.
type Budget struct {
	Limit  int
	Window time.Duration
}

// defaultBudgets are the per-action budgets required by the security policy.
var defaultBudgets = map[Action]Budget{
	ActionLogin:        {Limit: 5, Window: 15 * time.Minute},
	ActionOTPSend:      {Limit: 3, Window: time.Hour},
	ActionResetRequest: {Limit: 3, Window: time.Hour},
	ActionMFAVerify:    {Limit: 10, Window: 15 * time.Minute},
}

// Guard enforces per-principal attempt budgets using Redis counters.
type Guard struct {
	client  redis.UniversalClient
	budgets map[Action]Budget
}

// New creates a [Guard] with the platform default budgets.
func New(client redis.UniversalClient) *Guard {
	return &Guard{client: client, budgets: defaultBudgets}
}

// NewWithBudgets creates a [Guard] with custom budgets (used in tests to
// shrink windows).
func NewWithBudgets(client redis.UniversalClient, budgets map[Action]Budget) *Guard {
	return &Guard{client: client, budgets: budgets}
}

/*
Check verifies that the principal is still within the action's budget
WITHOUT consuming an attempt.

Parameters:
  - context: context.Context
  - action: Action
  - principal: string (email, user ID, or IP — case-insensitive)

Returns:
  - error: apperr.RateLimited when the budget is exhausted, nil otherwise
*/
func (guard *Guard) Check(context context.Context, action Action, principal string) error {
	budget, known := guard.budgets[action]
	if !known {
		return nil
	}

	key := guard.key(action, principal)
	count, err := guard.client.Get(context, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return apperr.Transient(fmt.Errorf("guard_check_failed: %w", err))
	}

	if count >= int64(budget.Limit) {
		return guard.limited(context, key)
	}
	return nil
}

/*
Hit consumes one attempt for the principal and fails if the budget is now
exceeded.

Description: The increment and the NX expiry are pipelined so that two
concurrent failed attempts from the same principal each observe a distinct
counter value — increments are atomic in Redis.

Parameters:
  - context: context.Context
  - action: Action
  - principal: string

Returns:
  - error: apperr.RateLimited once the count passes the limit
*/
func (guard *Guard) Hit(context context.Context, action Action, principal string) error {
	budget, known := guard.budgets[action]
	if !known {
		return nil
	}

	key := guard.key(action, principal)

	pipe := guard.client.TxPipeline()
	incr := pipe.Incr(context, key)
	// NX: only the first hit in a window arms the expiry, keeping it rolling
	// from the window's start rather than its most recent attempt.
	pipe.ExpireNX(context, key, budget.Window)
	if _, err := pipe.Exec(context); err != nil {
		return apperr.Transient(fmt.Errorf("guard_hit_failed: %w", err))
	}

	if incr.Val() > int64(budget.Limit) {
		return guard.limited(context, key)
	}
	return nil
}

/*
Reset clears the principal's counter for the action.

Called after a successful operation (e.g. correct password) so legitimate
users do not inherit stale failure counts.
*/
func (guard *Guard) Reset(context context.Context, action Action, principal string) error {
	if err := guard.client.Del(context, guard.key(action, principal)).Err(); err != nil {
		return apperr.Transient(fmt.Errorf("guard_reset_failed: %w", err))
	}
	return nil
}

// limited builds the RateLimited error with a retry-after hint from the key TTL.
func (guard *Guard) limited(context context.Context, key string) error {
	retryAfter := 60
	if ttl, err := guard.client.TTL(context, key).Result(); err == nil && ttl > 0 {
		retryAfter = int(ttl.Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
	}
	return apperr.RateLimited(retryAfter)
}

// key builds the namespaced counter key.
func (guard *Guard) key(action Action, principal string) string {
	return constants.RedisPrefixGuard + string(action) + ":" + strings.ToLower(principal)
}
