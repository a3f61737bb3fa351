// Copyright (c) 2026 Arcanum. All rights reserved.
// Author: dev@arcanum.gg

package mfa

import (
	"crypto/rand"
	"fmt"
	"strings"
)

const (
	// recoveryBatchSize is how many codes a batch holds.
	recoveryBatchSize = 10

	// recoveryGroupLength is the character count of each hyphenated group.
	recoveryGroupLength = 4

	recoveryGroups = 3
)

// recoveryAlphabet omits 0/O/1/I to keep hand-typed codes unambiguous.
const recoveryAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// generateRecoveryCode produces one code in XXXX-XXXX-XXXX form.
func generateRecoveryCode() (string, error) {
	raw := make([]byte, recoveryGroups*recoveryGroupLength)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("recovery_code_entropy_failed: %w", err)
	}

	var builder strings.Builder
	for i, b := range raw {
		if i > 0 && i%recoveryGroupLength == 0 {
			builder.WriteByte('-')
		}
		builder.WriteByte(recoveryAlphabet[int(b)%len(recoveryAlphabet)])
	}
	return builder.String(), nil
}

// generateRecoveryBatch produces a full batch of plaintext codes.
func generateRecoveryBatch() ([]string, error) {
	codes := make([]string, 0, recoveryBatchSize)
	for i := 0; i < recoveryBatchSize; i++ {
		code, err := generateRecoveryCode()
		if err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, nil
}

// normalizeRecoveryCode canonicalizes user input before hashing: uppercase,
// hyphens and spaces stripped, regrouped.
func normalizeRecoveryCode(raw string) string {
	cleaned := strings.ToUpper(strings.NewReplacer("-", "", " ", "").Replace(strings.TrimSpace(raw)))
	if len(cleaned) != recoveryGroups*recoveryGroupLength {
		return cleaned
	}
	groups := make([]string, 0, recoveryGroups)
	for i := 0; i < len(cleaned); i += recoveryGroupLength {
		groups = append(groups, cleaned[i:i+recoveryGroupLength])
	}
	return strings.Join(groups, "-")
}
