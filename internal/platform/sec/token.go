// Copyright (c) 2026 Arcanum. All rights reserved.
// Author: dev@arcanum.gg

// Package sec provides the cryptographic primitives of the identity core.
//
// # Architecture
//
// This package isolates security-sensitive code (random token generation,
// password hashing, digest computation) from the domain logic. Domain
// services consume it directly; nothing here touches storage or transport.
package sec

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// MinTokenBytes is the minimum entropy for any bearer token issued by the
// platform (session tokens, verification/reset/invite tokens, WebAuthn
// challenges).
const MinTokenBytes = 32

// GenerateSecureToken returns a URL-safe random token with the given number
// of entropy bytes. Anything below [MinTokenBytes] is rejected so that no
// call site can accidentally issue a weak capability.
func GenerateSecureToken(byteLength int) (string, error) {
	if byteLength < MinTokenBytes {
		return "", fmt.Errorf("sec: token length %d below minimum %d", byteLength, MinTokenBytes)
	}

	raw := make([]byte, byteLength)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("sec: failed to read entropy: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// HashToken computes the irreversible server-side representation of a bearer
// token. Only this digest is ever persisted; the plaintext is returned to the
// caller exactly once.
func HashToken(plaintext string) string {
	digest := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(digest[:])
}

// ConstantTimeEquals compares two strings without leaking their difference
// position through timing.
func ConstantTimeEquals(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
