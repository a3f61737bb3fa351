// Copyright (c) 2026 Arcanum. All rights reserved.
// Author: dev@arcanum.gg

package sec

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// # Password Hashing (Argon2id)

// Argon2Params tunes the memory-hard work factor of password hashing.
//
// Production values target at least 64 MiB of memory, 3 passes, and a
// parallelism of 4. Tests may lower them to keep suites fast.
type Argon2Params struct {
	MemoryKiB   uint32
	Passes      uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Params returns the production work factor.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		MemoryKiB:   64 * 1024,
		Passes:      3,
		Parallelism: 4,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// PasswordHasher hashes and verifies passwords using Argon2id in the standard
// PHC string format, so stored hashes remain verifiable after the work factor
// is raised.
type PasswordHasher struct {
	params Argon2Params
}

// NewPasswordHasher constructs a hasher with the given parameters.
func NewPasswordHasher(params Argon2Params) *PasswordHasher {
	return &PasswordHasher{params: params}
}

// Hash derives an Argon2id digest of the plaintext password and encodes it,
// together with its salt and parameters, as a PHC string.
func (hasher *PasswordHasher) Hash(plainTextPassword string) (string, error) {
	salt := make([]byte, hasher.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("sec: failed to generate salt: %w", err)
	}

	key := argon2.IDKey(
		[]byte(plainTextPassword),
		salt,
		hasher.params.Passes,
		hasher.params.MemoryKiB,
		hasher.params.Parallelism,
		hasher.params.KeyLength,
	)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		hasher.params.MemoryKiB,
		hasher.params.Passes,
		hasher.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// MustHash hashes the plaintext with the default parameters and panics on
// failure. Only for package-level sentinels such as timing-equalizer hashes.
func MustHash(plainTextPassword string) string {
	encoded, err := NewPasswordHasher(DefaultArgon2Params()).Hash(plainTextPassword)
	if err != nil {
		panic(err)
	}
	return encoded
}

// Verify compares a plaintext candidate against a stored PHC hash using the
// parameters embedded in the hash, in constant time over the derived keys.
func (hasher *PasswordHasher) Verify(plainTextPassword, encodedHash string) bool {
	parsed, err := parsePHC(encodedHash)
	if err != nil {
		return false
	}

	candidate := argon2.IDKey(
		[]byte(plainTextPassword),
		parsed.salt,
		parsed.passes,
		parsed.memoryKiB,
		parsed.parallelism,
		uint32(len(parsed.key)),
	)

	return subtle.ConstantTimeCompare(candidate, parsed.key) == 1
}

// # PHC Parsing

type parsedPHC struct {
	memoryKiB   uint32
	passes      uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

// parsePHC decodes a "$argon2id$v=..$m=..,t=..,p=..$salt$hash" string.
func parsePHC(encoded string) (*parsedPHC, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return nil, fmt.Errorf("sec: malformed argon2id hash")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, fmt.Errorf("sec: malformed argon2id version: %w", err)
	}
	if version != argon2.Version {
		return nil, fmt.Errorf("sec: unsupported argon2 version %d", version)
	}

	parsed := &parsedPHC{}
	var parallelism uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &parsed.memoryKiB, &parsed.passes, &parallelism); err != nil {
		return nil, fmt.Errorf("sec: malformed argon2id parameters: %w", err)
	}
	if parallelism == 0 || parallelism > 255 {
		return nil, fmt.Errorf("sec: argon2id parallelism out of range")
	}
	parsed.parallelism = uint8(parallelism)

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, fmt.Errorf("sec: malformed argon2id salt: %w", err)
	}
	parsed.salt = salt

	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, fmt.Errorf("sec: malformed argon2id key: %w", err)
	}
	parsed.key = key

	return parsed, nil
}
