// Copyright (c) 2026 Arcanum. All rights reserved.
// Author: dev@arcanum.gg

package mfa

import (
	"crypto/subtle"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	// totpPeriod is the RFC 6238 time-step.
	totpPeriod = 30 * time.Second

	// totpSkew accepts one step of clock drift either side of now.
	totpSkew = 1

	// totpSecretBytes is the shared-secret size before base32 encoding.
	totpSecretBytes = 20
)

// generateTOTPKey provisions a fresh shared secret and its otpauth:// URL.
func generateTOTPKey(issuer, accountName string) (*otp.Key, error) {
	return totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: accountName,
		SecretSize:  totpSecretBytes,
		Period:      uint(totpPeriod / time.Second),
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
}

/*
verifyTOTPCode checks a 6-digit code against the drift window around now.

Each candidate step is generated server-side and compared in constant time,
so the comparison itself leaks nothing about the expected code. The matched
step index is returned so the caller can enforce the monotonic counter: a
cryptographically valid code at a step the account has already accepted is
a replay, not a proof.

Returns:
  - int64: the matched time-step counter.
  - bool: whether any step in the window matched.
*/
func verifyTOTPCode(secretBase32, candidate string, now time.Time) (int64, bool) {
	baseCounter := now.Unix() / int64(totpPeriod/time.Second)

	matched := false
	matchedCounter := int64(0)
	for offset := int64(-totpSkew); offset <= totpSkew; offset++ {
		stepTime := now.Add(time.Duration(offset) * totpPeriod)
		expected, err := totp.GenerateCodeCustom(secretBase32, stepTime, totp.ValidateOpts{
			Period:    uint(totpPeriod / time.Second),
			Skew:      0,
			Digits:    otp.DigitsSix,
			Algorithm: otp.AlgorithmSHA1,
		})
		if err != nil {
			continue
		}
		// Check every step even after a hit to keep timing flat.
		if subtle.ConstantTimeCompare([]byte(expected), []byte(candidate)) == 1 && !matched {
			matched = true
			matchedCounter = baseCounter + offset
		}
	}
	return matchedCounter, matched
}
