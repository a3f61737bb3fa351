// Copyright (c) 2026 Arcanum. All rights reserved.
// Author: dev@arcanum.gg

package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/arcanumhq/arcanum/internal/platform/ctxutil"
	"github.com/arcanumhq/arcanum/internal/platform/sec"
)

// SessionVerifier resolves an opaque bearer token to a live principal.
//
// # Why an interface?
//
// Defining SessionVerifier here decouples the middleware from the session
// service implementation, allowing mocks to be injected during unit testing.
// Every call hits the session store — there is no claims cache, which is what
// makes revocation immediately visible.
type SessionVerifier interface {
	Resolve(ctx context.Context, token string) (*sec.Principal, error)
}

// Authenticate extracts and resolves the opaque session token from the
// Authorization header.
//
// # Flow
//  1. Check for 'Authorization: Bearer <token>' header.
//  2. If absent, the request proceeds as anonymous.
//  3. If present, resolve the token via [SessionVerifier] (store lookup,
//     sliding-expiry touch).
//  4. Inject the [*sec.Principal] into the request context for downstream use.
func Authenticate(verifier SessionVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			authHeader := request.Header.Get("Authorization")

			// ── 1. Anonymous Access ───────────────────────────────────────────
			if authHeader == "" {
				next.ServeHTTP(writer, request)
				return
			}

			// ── 2. Format Validation ──────────────────────────────────────────
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				writeError(writer, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid authorization format")
				return
			}

			// ── 3. Token Resolution ───────────────────────────────────────────
			principal, err := verifier.Resolve(request.Context(), parts[1])
			if err != nil {
				writeError(writer, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid, expired, or revoked session")
				return
			}

			// ── 4. Context Injection ──────────────────────────────────────────
			ctx := ctxutil.WithPrincipal(request.Context(), principal)
			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// RequireAuth blocks requests that are not authenticated.
//
// # Usage
//
// Must be registered in the router AFTER [Authenticate]. Sessions still
// pending their MFA challenge pass this check; use [RequireVerified] for
// full-access routes.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		principal := ctxutil.GetPrincipal(request.Context())
		if principal == nil {
			writeError(writer, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
			return
		}
		next.ServeHTTP(writer, request)
	})
}

// RequireVerified blocks requests whose session has not completed its MFA
// challenge. It implies [RequireAuth].
//
// A session created for an MFA-enabled account starts in the pending state
// and may only reach the MFA verification endpoints until promoted.
func RequireVerified(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		principal := ctxutil.GetPrincipal(request.Context())
		if principal == nil {
			writeError(writer, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
			return
		}
		if !principal.MFAVerified {
			writeError(writer, http.StatusForbidden, "MFA_REQUIRED", "Session pending multi-factor verification")
			return
		}
		next.ServeHTTP(writer, request)
	})
}
