// Copyright (c) 2026 Arcanum. All rights reserved.
// Author: dev@arcanum.gg

package sec_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcanumhq/arcanum/internal/platform/sec"
)

// testParams keeps argon2id cheap enough for the test suite while exercising
// the same PHC encode/verify path as production parameters.
func testParams() sec.Argon2Params {
	return sec.Argon2Params{
		MemoryKiB:   1024,
		Passes:      1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

/*
TestPasswordHasher_RoundTrip verifies hash-then-verify for correct and
incorrect passwords.
*/
func TestPasswordHasher_RoundTrip(t *testing.T) {
	hasher := sec.NewPasswordHasher(testParams())

	encoded, err := hasher.Hash("Correct-Horse-9-Battery")
	require.NoError(t, err)

	// PHC format with the argon2id identifier.
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$"))

	assert.True(t, hasher.Verify("Correct-Horse-9-Battery", encoded))
	assert.False(t, hasher.Verify("Wrong-Horse-9-Battery", encoded))
	assert.False(t, hasher.Verify("", encoded))
}

/*
TestPasswordHasher_UniqueSalts checks that hashing the same password twice
produces different encodings.
*/
func TestPasswordHasher_UniqueSalts(t *testing.T) {
	hasher := sec.NewPasswordHasher(testParams())

	first, err := hasher.Hash("Correct-Horse-9-Battery")
	require.NoError(t, err)
	second, err := hasher.Hash("Correct-Horse-9-Battery")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

/*
TestPasswordHasher_MalformedHash verifies that garbage stored hashes never
verify.
*/
func TestPasswordHasher_MalformedHash(t *testing.T) {
	hasher := sec.NewPasswordHasher(testParams())

	assert.False(t, hasher.Verify("anything", ""))
	assert.False(t, hasher.Verify("anything", "not-a-phc-string"))
	assert.False(t, hasher.Verify("anything", "$argon2id$v=19$garbage"))
}

/*
TestCheckPasswordPolicy covers the strength rules: length, character
classes, and the common-password denylist.
*/
func TestCheckPasswordPolicy(t *testing.T) {
	tests := []struct {
		name     string
		password string
		ok       bool
	}{
		{"strong", "Tr0ub4dor&Horse!", true},
		{"exactly_min_length", "Aa1!Aa1!Aa1!", true},
		{"too_short", "Aa1!Aa1!", false},
		{"no_uppercase", "aa1!aa1!aa1!", false},
		{"no_lowercase", "AA1!AA1!AA1!", false},
		{"no_digit", "Aa!!Aa!!Aa!!", false},
		{"no_symbol", "Aa11Aa11Aa11", false},
		{"common_password", "Passw0rd!2345", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := sec.CheckPasswordPolicy(tt.password)
			assert.Equal(t, tt.ok, result.OK(), "failures: %v", result.Failures)
		})
	}
}

/*
TestGenerateSecureToken verifies entropy floor enforcement and uniqueness.
*/
func TestGenerateSecureToken(t *testing.T) {
	// Below the floor is a programming error, not a shorter token.
	_, err := sec.GenerateSecureToken(16)
	require.Error(t, err)

	first, err := sec.GenerateSecureToken(sec.MinTokenBytes)
	require.NoError(t, err)
	second, err := sec.GenerateSecureToken(sec.MinTokenBytes)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)

	// 32 bytes base64url-encoded is 43 characters.
	assert.Len(t, first, 43)
}

/*
TestHashToken verifies the digest is deterministic, hex-encoded, and never
the plaintext.
*/
func TestHashToken(t *testing.T) {
	digest := sec.HashToken("some-opaque-token")

	assert.Len(t, digest, 64)
	assert.Equal(t, digest, sec.HashToken("some-opaque-token"))
	assert.NotEqual(t, digest, sec.HashToken("some-opaque-tokeN"))
	assert.NotContains(t, digest, "some-opaque-token")
}

/*
TestConstantTimeEquals sanity-checks the comparison helper.
*/
func TestConstantTimeEquals(t *testing.T) {
	assert.True(t, sec.ConstantTimeEquals("abc", "abc"))
	assert.False(t, sec.ConstantTimeEquals("abc", "abd"))
	assert.False(t, sec.ConstantTimeEquals("abc", "abcd"))
}
