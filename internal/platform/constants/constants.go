// Copyright (c) 2026 Arcanum. All rights reserved.
// Author: dev@arcanum.gg

/*
Package constants provides centralized, immutable values for the identity core.

It defines default timeouts, rate limits, and cross-cutting keys that are shared
between different layers of the system.

Categories:

  - Server Timing: Read/Write/Idle timeouts for the HTTP server.
  - Rate Limiting: Transport-level token bucket tuning and guard budgets.
  - Security: Bearer scheme, cookie configuration, Redis key taxonomy.

Using this package ensures magic strings and magic numbers are eliminated
from the business logic.
*/
package constants

import "time"

// # Metadata

const (
	AppName    = "arcanum-iam"
	AppVersion = "0.3.0-dev"
)

// # Server Timing

const (
	// DefaultReadTimeout is the maximum duration for reading the entire request.
	DefaultReadTimeout = 5 * time.Second

	// DefaultWriteTimeout is the maximum duration before timing out writes of the response.
	DefaultWriteTimeout = 10 * time.Second

	// DefaultIdleTimeout is the maximum amount of time to wait for the next request.
	DefaultIdleTimeout = 120 * time.Second

	// DefaultReadHeaderTimeout is the amount of time allowed to read request headers.
	DefaultReadHeaderTimeout = 2 * time.Second

	// GlobalRequestTimeout is the deadline for the entire request lifecycle.
	GlobalRequestTimeout = 30 * time.Second

	// ShutdownTimeout is how long we wait for in-flight requests to complete during shutdown.
	ShutdownTimeout = 30 * time.Second
)

// # Transport Rate Limiting (per-IP token bucket)

const (
	// DefaultRateLimitRPS is the requests per second allowed per IP.
	DefaultRateLimitRPS = 100.0

	// DefaultRateLimitBurst is the maximum burst allowed for the rate limiter.
	DefaultRateLimitBurst = 150

	// RateLimitCleanupInterval is how often old IP entries are removed from memory.
	RateLimitCleanupInterval = 1 * time.Minute

	// RateLimitClientTTL is how long a client must be idle before its entry is deleted.
	RateLimitClientTTL = 3 * time.Minute
)

// # HTTP Headers

const (
	HeaderXRequestID = "X-Request-ID"
	HeaderRetryAfter = "Retry-After"
)

// # Authentication

const (
	// SessionCookieName is the name of the cookie that may carry the opaque session token.
	SessionCookieName = "arcanum_session"

	// SessionCookiePath is the scoped path for the session cookie.
	SessionCookiePath = "/api/v1"
)

// # Database Schemas

const (
	SchemaIAM    = "iam"
	SchemaRealm  = "realm"
	SchemaSystem = "system"
)

// # Redis Prefixes (Volatile Key Taxonomy)

const (
	RedisPrefixGuard          = "guard:"
	RedisPrefixOTPChallenge   = "mfa:otp:"
	RedisPrefixSetupChallenge = "mfa:setup:"
	RedisPrefixWebAuthn       = "mfa:webauthn:"
)
