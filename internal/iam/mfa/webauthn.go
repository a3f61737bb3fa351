// Copyright (c) 2026 Arcanum. All rights reserved.
// Author: dev@arcanum.gg

package mfa

import "context"

// webauthnChallengeBytes is the challenge entropy handed to the client.
const webauthnChallengeBytes = 32

// RegistrationResult is the credential material a Verifier extracts from a
// valid attestation response.
type RegistrationResult struct {
	CredentialID []byte
	PublicKey    []byte
	SignCount    uint32
}

// Verifier performs the WebAuthn cryptographic checks. Attestation and
// assertion parsing are delegated so the engine only owns challenge
// lifecycle, credential storage, and the clone-detection counter.
type Verifier interface {
	// VerifyRegistration validates an attestation response against the
	// outstanding challenge and returns the new credential.
	VerifyRegistration(ctx context.Context, rpID, userID, challenge string, response []byte) (*RegistrationResult, error)

	// VerifyAssertion validates an assertion response for a stored
	// credential and returns the authenticator's reported signature
	// counter. The caller enforces that it strictly increased.
	VerifyAssertion(ctx context.Context, rpID, userID, challenge string, credentialID, publicKey []byte, response []byte) (uint32, error)
}
