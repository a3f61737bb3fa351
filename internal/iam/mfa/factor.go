// Copyright (c) 2026 Arcanum. All rights reserved.
// Author: dev@arcanum.gg

/*
Package mfa implements second-factor enrollment and verification.

Architecture:
  - Factor is the enrollment record. TOTP secrets, WebAuthn credential
    material, and the last-accepted counters live on it.
  - Service exposes a unified BeginSetup / ConfirmSetup / Verify surface
    over four methods (TOTP, SMS, email OTP, WebAuthn) plus recovery codes.
  - Durable state lives in Postgres (iam.mfafactor, iam.recoverycode);
    short-lived challenges (pending setups, OTP codes, WebAuthn challenges)
    live in Redis under their own TTLs.
  - Replay defense is enforced with conditional updates: a TOTP counter or
    a WebAuthn signature counter that does not move strictly forward is
    rejected even when the cryptographic check passes.
*/
package mfa

import "time"

// Method identifies a second-factor mechanism.
type Method string

const (
	MethodTOTP     Method = "totp"
	MethodSMS      Method = "sms"
	MethodEmailOTP Method = "email_otp"
	MethodWebAuthn Method = "webauthn"
)

// knownMethods gates client-supplied method strings.
var knownMethods = map[Method]struct{}{
	MethodTOTP:     {},
	MethodSMS:      {},
	MethodEmailOTP: {},
	MethodWebAuthn: {},
}

// KnownMethod reports whether the string names a supported factor method.
func KnownMethod(raw string) bool {
	_, ok := knownMethods[Method(raw)]
	return ok
}

// Factor is one enrolled second factor. A user holds at most one factor per
// method, and at most one factor is primary.
type Factor struct {
	ID        string
	UserID    string
	Method    Method
	Verified  bool
	IsPrimary bool

	// SecretBase32 is the shared TOTP secret. Empty for other methods.
	SecretBase32 string

	// LastCounter is the highest accepted TOTP time-step. Codes at or
	// below it are replays.
	LastCounter int64

	// Destination is the phone number (sms) or email address (email_otp)
	// codes are delivered to.
	Destination string

	// WebAuthn credential material.
	CredentialID []byte
	PublicKey    []byte
	SignCount    uint32

	CreatedAt time.Time
	UpdatedAt time.Time
}
