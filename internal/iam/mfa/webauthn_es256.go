// Copyright (c) 2026 Arcanum. All rights reserved.
// Author: dev@arcanum.gg

package mfa

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/arcanumhq/arcanum/internal/platform/apperr"
)

// # ES256 Verifier
//
// ES256Verifier implements [Verifier] for first-party clients that register
// ES256 (P-256 ECDSA) credentials with attestation "none". It checks the
// pieces the engine cannot delegate to the browser: the signed challenge,
// the relying-party hash, the user-present flag, and the assertion
// signature. Attestation statements are not evaluated — authenticator
// provenance is out of scope for consumer logins.

const (
	// uncompressedP256Len is a 0x04-prefixed P-256 point.
	uncompressedP256Len = 65

	// authDataMinLen covers rpIdHash (32) + flags (1) + signCount (4).
	authDataMinLen = 37

	flagUserPresent = 0x01
)

// ES256Verifier validates WebAuthn responses in the compact first-party
// format: JSON envelopes of base64url fields rather than full CTAP CBOR.
type ES256Verifier struct {
	// Origin is the expected clientData origin, e.g. "https://arcanum.gg".
	Origin string
}

var _ Verifier = (*ES256Verifier)(nil)

type clientData struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge"`
	Origin    string `json:"origin"`
}

type registrationEnvelope struct {
	CredentialID      string `json:"credential_id"`
	PublicKey         string `json:"public_key"`
	ClientData        string `json:"client_data"`
	AuthenticatorData string `json:"authenticator_data"`
}

type assertionEnvelope struct {
	ClientData        string `json:"client_data"`
	AuthenticatorData string `json:"authenticator_data"`
	Signature         string `json:"signature"`
}

// VerifyRegistration implements [Verifier].
func (verifier *ES256Verifier) VerifyRegistration(ctx context.Context, rpID, userID, challenge string, response []byte) (*RegistrationResult, error) {
	var envelope registrationEnvelope
	if err := json.Unmarshal(response, &envelope); err != nil {
		return nil, apperr.Unprocessable("Malformed registration response")
	}

	if err := verifier.checkClientData(envelope.ClientData, "webauthn.create", challenge); err != nil {
		return nil, err
	}

	_, signCount, err := verifier.checkAuthenticatorData(envelope.AuthenticatorData, rpID)
	if err != nil {
		return nil, err
	}

	credentialID, err := base64.RawURLEncoding.DecodeString(envelope.CredentialID)
	if err != nil || len(credentialID) == 0 {
		return nil, apperr.Unprocessable("Malformed credential ID")
	}

	publicKey, err := base64.RawURLEncoding.DecodeString(envelope.PublicKey)
	if err != nil {
		return nil, apperr.Unprocessable("Malformed public key")
	}
	if _, err := parseP256PublicKey(publicKey); err != nil {
		return nil, apperr.Unprocessable("Public key is not a valid P-256 point")
	}

	return &RegistrationResult{
		CredentialID: credentialID,
		PublicKey:    publicKey,
		SignCount:    signCount,
	}, nil
}

// VerifyAssertion implements [Verifier].
func (verifier *ES256Verifier) VerifyAssertion(ctx context.Context, rpID, userID, challenge string, credentialID, publicKey []byte, response []byte) (uint32, error) {
	var envelope assertionEnvelope
	if err := json.Unmarshal(response, &envelope); err != nil {
		return 0, apperr.Unprocessable("Malformed assertion response")
	}

	if err := verifier.checkClientData(envelope.ClientData, "webauthn.get", challenge); err != nil {
		return 0, err
	}

	authData, signCount, err := verifier.checkAuthenticatorData(envelope.AuthenticatorData, rpID)
	if err != nil {
		return 0, err
	}

	signature, err := base64.RawURLEncoding.DecodeString(envelope.Signature)
	if err != nil {
		return 0, apperr.Unprocessable("Malformed signature")
	}

	key, err := parseP256PublicKey(publicKey)
	if err != nil {
		return 0, apperr.Internal(fmt.Errorf("stored_credential_corrupt: %w", err))
	}

	// The authenticator signs authenticatorData || SHA-256(clientDataJSON).
	rawClientData, _ := base64.RawURLEncoding.DecodeString(envelope.ClientData)
	clientHash := sha256.Sum256(rawClientData)
	signed := sha256.Sum256(append(authData, clientHash[:]...))

	if !ecdsa.VerifyASN1(key, signed[:], signature) {
		return 0, ErrCodeInvalid
	}
	return signCount, nil
}

// checkClientData decodes clientDataJSON and verifies its type, challenge,
// and origin.
func (verifier *ES256Verifier) checkClientData(encoded, wantType, challenge string) error {
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return apperr.Unprocessable("Malformed client data")
	}

	var data clientData
	if err := json.Unmarshal(raw, &data); err != nil {
		return apperr.Unprocessable("Malformed client data")
	}
	if data.Type != wantType {
		return ErrCodeInvalid
	}
	if subtle.ConstantTimeCompare([]byte(data.Challenge), []byte(challenge)) != 1 {
		return ErrCodeInvalid
	}
	if verifier.Origin != "" && data.Origin != verifier.Origin {
		return ErrCodeInvalid
	}
	return nil
}

// checkAuthenticatorData decodes the raw authenticator data and verifies the
// relying-party hash and the user-present flag. Returns the raw bytes (they
// are part of the signature base) and the reported signature counter.
func (verifier *ES256Verifier) checkAuthenticatorData(encoded, rpID string) ([]byte, uint32, error) {
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil || len(raw) < authDataMinLen {
		return nil, 0, apperr.Unprocessable("Malformed authenticator data")
	}

	rpIDHash := sha256.Sum256([]byte(rpID))
	if subtle.ConstantTimeCompare(raw[:32], rpIDHash[:]) != 1 {
		return nil, 0, ErrCodeInvalid
	}

	flags := raw[32]
	if flags&flagUserPresent == 0 {
		return nil, 0, ErrCodeInvalid
	}

	signCount := binary.BigEndian.Uint32(raw[33:37])
	return raw, signCount, nil
}

// parseP256PublicKey decodes an uncompressed P-256 point.
func parseP256PublicKey(raw []byte) (*ecdsa.PublicKey, error) {
	if len(raw) != uncompressedP256Len || raw[0] != 0x04 {
		return nil, fmt.Errorf("webauthn: public key is not an uncompressed P-256 point")
	}

	x := new(big.Int).SetBytes(raw[1:33])
	y := new(big.Int).SetBytes(raw[33:])

	curve := elliptic.P256()
	if !curve.IsOnCurve(x, y) {
		return nil, fmt.Errorf("webauthn: point is not on the P-256 curve")
	}
	return &ecdsa.PublicKey{Curve: curve, X: x, Y: y}, nil
}
