// Copyright (c) 2026 Arcanum. All rights reserved.
// Author: dev@arcanum.gg

package sec

// Principal is the resolved identity of an authenticated request.
//
// It is produced by the session middleware after the opaque bearer token is
// validated against the session store, and carried through the request
// context. Unlike claim-bearing tokens, every field here reflects the live
// server-side session state at validation time.
type Principal struct {
	// UserID is the account the session belongs to.
	UserID string
	// SessionID identifies the device session that authenticated the request.
	SessionID string
	// MFAVerified reports whether the session has completed its MFA challenge.
	// Sessions pending MFA may only reach the MFA verification endpoints.
	MFAVerified bool
}
