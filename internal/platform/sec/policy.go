// Copyright (c) 2026 Arcanum. All rights reserved.
// Author: dev@arcanum.gg

package sec

import (
	"strings"
	"unicode"
)

// # Password Policy

// MinPasswordLength is the floor for any account password.
const MinPasswordLength = 12

// commonPasswords holds the known-weak set rejected outright regardless of
// length or character classes. Checked case-insensitively.
var commonPasswords = map[string]struct{}{
	"password":          {},
	"password1":         {},
	"password123":       {},
	"password1234":      {},
	"passw0rd!2345":     {},
	"123456789012":      {},
	"1234567890123":     {},
	"qwertyuiop12":      {},
	"qwerty123456":      {},
	"letmein12345":      {},
	"iloveyou1234":      {},
	"adminadmin12":      {},
	"administrator":     {},
	"welcome12345":      {},
	"changeme12345":     {},
	"sunshine12345":     {},
	"dragon123456":      {},
	"monkey123456":      {},
	"football1234":      {},
	"baseball1234":      {},
	"superman1234":      {},
	"trustno1trustno1":  {},
	"correcthorsebatt":  {},
	"summer2024!!":      {},
	"winter2025!!":      {},
	"p@ssw0rdp@ssw0rd":  {},
	"abcdefghijkl":      {},
	"aaaaaaaaaaaa":      {},
	"000000000000":      {},
	"111111111111":      {},
	"password!234":      {},
	"secretsecret":      {},
	"arcanum12345":      {},
	"gamemaster123":     {},
	"dungeonmaster1":    {},
	"tabletop12345":     {},
	"rollinitiative":    {},
	"naturaltwenty":     {},
	"qwertzuiop123":     {},
	"azertyuiop123":     {},
	"1q2w3e4r5t6y":      {},
	"zaq12wsxcde3":      {},
	"passwordpassword":  {},
	"letmeinplease123":  {},
	"whatisthepassword": {},
}

// PasswordPolicyResult describes why a candidate password was rejected.
// An empty Failures slice means the password satisfies the policy.
type PasswordPolicyResult struct {
	Failures []string
}

// OK reports whether the password passed every policy rule.
func (result PasswordPolicyResult) OK() bool {
	return len(result.Failures) == 0
}

// CheckPasswordPolicy evaluates a candidate password against the platform
// strength policy:
//
//   - length of at least [MinPasswordLength] characters
//   - coverage of all four character classes (upper, lower, digit, symbol)
//   - absence from the known-common-password set
func CheckPasswordPolicy(candidate string) PasswordPolicyResult {
	var result PasswordPolicyResult

	if len(candidate) < MinPasswordLength {
		result.Failures = append(result.Failures, "must be at least 12 characters")
	}

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range candidate {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSymbol = true
		}
	}

	if !hasUpper {
		result.Failures = append(result.Failures, "must contain an uppercase letter")
	}
	if !hasLower {
		result.Failures = append(result.Failures, "must contain a lowercase letter")
	}
	if !hasDigit {
		result.Failures = append(result.Failures, "must contain a digit")
	}
	if !hasSymbol {
		result.Failures = append(result.Failures, "must contain a symbol")
	}

	if _, known := commonPasswords[strings.ToLower(candidate)]; known {
		result.Failures = append(result.Failures, "is too common")
	}

	return result
}
