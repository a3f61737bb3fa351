// Copyright (c) 2026 Arcanum. All rights reserved.
// Author: dev@arcanum.gg

package mfa

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/arcanumhq/arcanum/internal/iam/audit"
	"github.com/arcanumhq/arcanum/internal/iam/guard"
	"github.com/arcanumhq/arcanum/internal/iam/notify"
	"github.com/arcanumhq/arcanum/internal/platform/apperr"
	"github.com/arcanumhq/arcanum/internal/platform/metrics"
	"github.com/arcanumhq/arcanum/internal/platform/sec"
	"github.com/arcanumhq/arcanum/pkg/uuid"
)

// # Failure Kinds

var (
	// ErrCodeInvalid is the uniform wrong-proof error. It never says which
	// part of the check failed.
	ErrCodeInvalid = apperr.Unauthorized("Invalid verification code")

	// ErrCodeReplayed rejects a cryptographically valid TOTP code at a
	// time-step the account has already accepted.
	ErrCodeReplayed = apperr.Unauthorized("Code already used")

	// ErrCounterCloned rejects a WebAuthn assertion whose signature counter
	// did not move strictly forward.
	ErrCounterCloned = apperr.Unauthorized("Authenticator counter did not advance")

	// ErrNoPendingSetup means ConfirmSetup ran without a live BeginSetup.
	ErrNoPendingSetup = apperr.NotFound("Pending enrollment")

	// ErrChallengeExpired means the OTP or WebAuthn challenge aged out.
	ErrChallengeExpired = apperr.Unauthorized("Challenge expired, request a new one")

	// ErrAttemptsExceeded means the challenge burned all its attempts.
	ErrAttemptsExceeded = apperr.Unauthorized("Too many failed attempts, request a new code")

	// ErrRecoveryCodeInvalid covers unknown and already-used recovery codes.
	ErrRecoveryCodeInvalid = apperr.Unauthorized("Invalid recovery code")

	// ErrFactorRequired guards operations that need at least one verified
	// factor, such as regenerating recovery codes.
	ErrFactorRequired = apperr.Unprocessable("No verified second factor enrolled")
)

// # Challenge Lifetimes

const (
	setupTTL    = 10 * time.Minute
	otpTTL      = 10 * time.Minute
	webauthnTTL = 5 * time.Minute
	otpDigits   = 6
)

// Limiter is the attempt-budget guard for code sends and proof checks.
type Limiter interface {
	Check(ctx context.Context, action guard.Action, principal string) error
	Hit(ctx context.Context, action guard.Action, principal string) error
	Reset(ctx context.Context, action guard.Action, principal string) error
}

// Service is the MFA engine.
type Service struct {
	store      Store
	challenges ChallengeStore
	limiter    Limiter
	sender     notify.Sender
	verifier   Verifier
	recorder   audit.Recorder
	metrics    *metrics.Registry
	logger     *slog.Logger

	issuer string
	rpID   string
}

// Deps bundles the engine's collaborators.
type Deps struct {
	Store      Store
	Challenges ChallengeStore
	Limiter    Limiter
	Sender     notify.Sender
	Verifier   Verifier
	Recorder   audit.Recorder
	Metrics    *metrics.Registry
	Logger     *slog.Logger

	// Issuer labels TOTP provisioning URLs in authenticator apps.
	Issuer string

	// RPID is the WebAuthn relying-party identifier.
	RPID string
}

// NewService wires the MFA engine.
func NewService(deps Deps) *Service {
	return &Service{
		store:      deps.Store,
		challenges: deps.Challenges,
		limiter:    deps.Limiter,
		sender:     deps.Sender,
		verifier:   deps.Verifier,
		recorder:   deps.Recorder,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		issuer:     deps.Issuer,
		rpID:       deps.RPID,
	}
}

// Enabled reports whether the user has any verified factor. The session
// layer uses it to decide whether a fresh login starts pending.
func (service *Service) Enabled(ctx context.Context, userID string) (bool, error) {
	count, err := service.store.CountVerified(ctx, userID)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// # Enrollment

// SetupChallenge is what BeginSetup hands back to the client. Fields are
// populated per method.
type SetupChallenge struct {
	Method Method

	// TOTP enrollment material.
	SecretBase32    string
	ProvisioningURL string

	// WebAuthn challenge material.
	Challenge string
	RPID      string

	// Destination echo for delivery methods, for display only.
	Destination string
}

/*
BeginSetup starts enrollment of a new factor.

TOTP stashes a pending secret until the user proves possession in
ConfirmSetup; nothing durable is written yet. Delivery methods send a code
to the destination under the otp_send budget. WebAuthn issues a single-use
challenge bound to the relying party.

Returns:
  - *SetupChallenge: material the client needs to complete enrollment.
  - error: apperr.Conflict when the method is already enrolled.
*/
func (service *Service) BeginSetup(ctx context.Context, userID string, method Method, accountName, destination string) (*SetupChallenge, error) {
	if _, err := service.store.FindFactor(ctx, userID, method); err == nil {
		return nil, apperr.Conflict("Factor already enrolled for this method")
	} else if !apperr.IsCode(err, apperr.CodeNotFound) {
		return nil, err
	}

	switch method {
	case MethodTOTP:
		key, err := generateTOTPKey(service.issuer, accountName)
		if err != nil {
			return nil, apperr.Internal(fmt.Errorf("totp_generate_failed: %w", err))
		}
		if err := service.challenges.PutSetup(ctx, userID, key.Secret(), setupTTL); err != nil {
			return nil, err
		}
		return &SetupChallenge{
			Method:          MethodTOTP,
			SecretBase32:    key.Secret(),
			ProvisioningURL: key.URL(),
		}, nil

	case MethodSMS, MethodEmailOTP:
		if destination == "" {
			return nil, apperr.ValidationError("Destination is required", apperr.FieldError{
				Field:   "destination",
				Message: "phone number or email address required for delivery factors",
			})
		}
		if err := service.dispatchCode(ctx, userID, method, destination); err != nil {
			return nil, err
		}
		return &SetupChallenge{Method: method, Destination: destination}, nil

	case MethodWebAuthn:
		challenge, err := newWebAuthnChallenge()
		if err != nil {
			return nil, apperr.Internal(err)
		}
		if err := service.challenges.PutWebAuthnChallenge(ctx, userID, challenge, webauthnTTL); err != nil {
			return nil, err
		}
		return &SetupChallenge{Method: MethodWebAuthn, Challenge: challenge, RPID: service.rpID}, nil

	default:
		return nil, apperr.Unprocessable("Unknown factor method")
	}
}

// ConfirmInput carries the enrollment proof for ConfirmSetup.
type ConfirmInput struct {
	// Code is the 6-digit proof for TOTP and delivery methods.
	Code string

	// AttestationResponse is the raw WebAuthn registration payload.
	AttestationResponse []byte

	// MakePrimary marks the new factor as the preferred one.
	MakePrimary bool
}

// ConfirmResult reports a completed enrollment. RecoveryCodes is non-empty
// only when this was the user's first verified factor: the plaintext batch
// is shown exactly once.
type ConfirmResult struct {
	Factor        *Factor
	RecoveryCodes []string
}

/*
ConfirmSetup completes enrollment by checking the proof from BeginSetup.

The factor only becomes durable here. Enrolling the first factor also mints
the recovery-code batch.
*/
func (service *Service) ConfirmSetup(ctx context.Context, userID string, method Method, input ConfirmInput) (*ConfirmResult, error) {
	factor := &Factor{
		ID:        uuid.Must(),
		UserID:    userID,
		Method:    method,
		Verified:  true,
		IsPrimary: input.MakePrimary,
	}

	switch method {
	case MethodTOTP:
		secret, err := service.challenges.GetSetup(ctx, userID)
		if err != nil {
			return nil, err
		}
		counter, ok := verifyTOTPCode(secret, input.Code, time.Now())
		if !ok {
			return nil, ErrCodeInvalid
		}
		factor.SecretBase32 = secret
		factor.LastCounter = counter

	case MethodSMS, MethodEmailOTP:
		destination, err := service.proveOTP(ctx, userID, method, input.Code)
		if err != nil {
			return nil, err
		}
		// The factor records the address the code was actually delivered
		// to, never an address the confirm request claims.
		factor.Destination = destination

	case MethodWebAuthn:
		challenge, err := service.challenges.TakeWebAuthnChallenge(ctx, userID)
		if err != nil {
			return nil, err
		}
		registration, err := service.verifier.VerifyRegistration(ctx, service.rpID, userID, challenge, input.AttestationResponse)
		if err != nil {
			return nil, ErrCodeInvalid
		}
		factor.CredentialID = registration.CredentialID
		factor.PublicKey = registration.PublicKey
		factor.SignCount = registration.SignCount

	default:
		return nil, apperr.Unprocessable("Unknown factor method")
	}

	hadFactors, err := service.Enabled(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := service.store.InsertFactor(ctx, factor); err != nil {
		return nil, err
	}
	if method == MethodTOTP {
		if err := service.challenges.DeleteSetup(ctx, userID); err != nil {
			service.logger.WarnContext(ctx, "setup_cleanup_failed", "error", err, "user_id", userID)
		}
	}

	result := &ConfirmResult{Factor: factor}
	if !hadFactors {
		codes, err := service.mintRecoveryBatch(ctx, userID)
		if err != nil {
			return nil, err
		}
		result.RecoveryCodes = codes
	}

	service.recorder.Record(ctx, audit.Event{
		Type:        audit.EventMFAFactorAdded,
		PrincipalID: userID,
		Metadata:    map[string]string{"method": string(method)},
	})
	return result, nil
}

// # Login-time Verification

// SendChallenge delivers a fresh login code for an enrolled delivery factor,
// or issues a WebAuthn assertion challenge.
func (service *Service) SendChallenge(ctx context.Context, userID string, method Method) (*SetupChallenge, error) {
	factor, err := service.store.FindFactor(ctx, userID, method)
	if err != nil {
		return nil, err
	}

	switch method {
	case MethodSMS, MethodEmailOTP:
		if err := service.dispatchCode(ctx, userID, method, factor.Destination); err != nil {
			return nil, err
		}
		return &SetupChallenge{Method: method, Destination: factor.Destination}, nil

	case MethodWebAuthn:
		challenge, err := newWebAuthnChallenge()
		if err != nil {
			return nil, apperr.Internal(err)
		}
		if err := service.challenges.PutWebAuthnChallenge(ctx, userID, challenge, webauthnTTL); err != nil {
			return nil, err
		}
		return &SetupChallenge{Method: MethodWebAuthn, Challenge: challenge, RPID: service.rpID}, nil

	default:
		return nil, apperr.Unprocessable("Method does not use server-issued challenges")
	}
}

// VerifyInput carries a login-time proof.
type VerifyInput struct {
	Code              string
	AssertionResponse []byte
}

/*
Verify checks a second-factor proof under the mfa_verify budget.

A valid proof resets the budget; a failing one counts against it. Replays
and cloned counters fail even when the cryptography checks out.
*/
func (service *Service) Verify(ctx context.Context, userID string, method Method, input VerifyInput) error {
	if err := service.limiter.Check(ctx, guard.ActionMFAVerify, userID); err != nil {
		service.metrics.MFAVerifications.WithLabelValues(string(method), "rate_limited").Inc()
		return err
	}

	err := service.verifyProof(ctx, userID, method, input)
	if err != nil {
		service.metrics.MFAVerifications.WithLabelValues(string(method), "failure").Inc()
		service.recorder.Record(ctx, audit.Event{
			Type:        audit.EventMFAFailed,
			PrincipalID: userID,
			Metadata:    map[string]string{"method": string(method)},
		})
		if hitErr := service.limiter.Hit(ctx, guard.ActionMFAVerify, userID); hitErr != nil {
			if apperr.IsCode(hitErr, apperr.CodeRateLimited) {
				service.recorder.Record(ctx, audit.Event{
					Type:        audit.EventMFAAttemptsExceeded,
					PrincipalID: userID,
					Metadata:    map[string]string{"method": string(method)},
				})
				return hitErr
			}
			service.logger.ErrorContext(ctx, "mfa_guard_hit_failed", "error", hitErr)
		}
		return err
	}

	if err := service.limiter.Reset(ctx, guard.ActionMFAVerify, userID); err != nil {
		service.logger.WarnContext(ctx, "mfa_guard_reset_failed", "error", err)
	}
	service.metrics.MFAVerifications.WithLabelValues(string(method), "success").Inc()
	service.recorder.Record(ctx, audit.Event{
		Type:        audit.EventMFAVerified,
		PrincipalID: userID,
		Metadata:    map[string]string{"method": string(method)},
	})
	return nil
}

func (service *Service) verifyProof(ctx context.Context, userID string, method Method, input VerifyInput) error {
	factor, err := service.store.FindFactor(ctx, userID, method)
	if err != nil {
		if apperr.IsCode(err, apperr.CodeNotFound) {
			return ErrCodeInvalid
		}
		return err
	}

	switch method {
	case MethodTOTP:
		counter, ok := verifyTOTPCode(factor.SecretBase32, input.Code, time.Now())
		if !ok {
			return ErrCodeInvalid
		}
		// The conditional counter update is the replay check.
		return service.store.AdvanceTOTPCounter(ctx, factor.ID, counter)

	case MethodSMS, MethodEmailOTP:
		_, err := service.proveOTP(ctx, userID, method, input.Code)
		return err

	case MethodWebAuthn:
		challenge, err := service.challenges.TakeWebAuthnChallenge(ctx, userID)
		if err != nil {
			return err
		}
		signCount, err := service.verifier.VerifyAssertion(ctx, service.rpID, userID, challenge,
			factor.CredentialID, factor.PublicKey, input.AssertionResponse)
		if err != nil {
			return ErrCodeInvalid
		}
		return service.store.AdvanceSignCount(ctx, factor.ID, signCount)

	default:
		return apperr.Unprocessable("Unknown factor method")
	}
}

// VerifyRecovery burns a recovery code in place of a factor proof.
func (service *Service) VerifyRecovery(ctx context.Context, userID, code string) error {
	if err := service.limiter.Check(ctx, guard.ActionMFAVerify, userID); err != nil {
		return err
	}

	hash := sec.HashToken(normalizeRecoveryCode(code))
	remaining, err := service.store.ConsumeRecoveryCode(ctx, userID, hash)
	if err != nil {
		if hitErr := service.limiter.Hit(ctx, guard.ActionMFAVerify, userID); hitErr != nil &&
			apperr.IsCode(hitErr, apperr.CodeRateLimited) {
			return hitErr
		}
		return err
	}

	if err := service.limiter.Reset(ctx, guard.ActionMFAVerify, userID); err != nil {
		service.logger.WarnContext(ctx, "mfa_guard_reset_failed", "error", err)
	}
	service.metrics.MFAVerifications.WithLabelValues("recovery", "success").Inc()
	service.recorder.Record(ctx, audit.Event{
		Type:        audit.EventRecoveryCodeUsed,
		PrincipalID: userID,
		Metadata:    map[string]string{"remaining": fmt.Sprintf("%d", remaining)},
	})
	if remaining <= 2 {
		service.logger.WarnContext(ctx, "recovery_codes_low", "user_id", userID, "remaining", remaining)
	}
	return nil
}

// # Factor Management

// StatusEntry summarizes one enrolled factor for the account screen.
type StatusEntry struct {
	ID        string    `json:"id"`
	Method    Method    `json:"method"`
	IsPrimary bool      `json:"is_primary"`
	CreatedAt time.Time `json:"created_at"`
}

// StatusResult is the factor overview for the account screen.
type StatusResult struct {
	Factors []StatusEntry

	// PrimaryMethod is the preferred challenge method, empty when no
	// factor is marked primary.
	PrimaryMethod Method

	RecoveryCodesRemaining int
}

// Status lists the user's verified factors, the primary method, and how many
// recovery codes remain unused.
func (service *Service) Status(ctx context.Context, userID string) (*StatusResult, error) {
	factors, err := service.store.ListFactors(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := &StatusResult{Factors: make([]StatusEntry, 0, len(factors))}
	for _, factor := range factors {
		if factor.IsPrimary {
			result.PrimaryMethod = factor.Method
		}
		result.Factors = append(result.Factors, StatusEntry{
			ID:        factor.ID,
			Method:    factor.Method,
			IsPrimary: factor.IsPrimary,
			CreatedAt: factor.CreatedAt,
		})
	}

	result.RecoveryCodesRemaining, err = service.store.CountRecoveryCodes(ctx, userID)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SetPrimary marks one factor as the preferred challenge method.
func (service *Service) SetPrimary(ctx context.Context, userID, factorID string) error {
	return service.store.SetPrimary(ctx, userID, factorID)
}

/*
RemoveFactor unenrolls a factor. Removing the last verified factor also
invalidates the recovery batch: codes must never outlive the factors they
back up. The store performs the delete and the purge in one transaction, so
a concurrent enrollment cannot lose the batch it just minted.
*/
func (service *Service) RemoveFactor(ctx context.Context, userID, factorID string) error {
	remaining, err := service.store.DeleteFactor(ctx, userID, factorID)
	if err != nil {
		return err
	}
	if remaining == 0 {
		service.logger.InfoContext(ctx, "recovery_codes_invalidated", "user_id", userID)
	}

	service.recorder.Record(ctx, audit.Event{
		Type:        audit.EventMFAFactorRemoved,
		PrincipalID: userID,
	})
	return nil
}

// RegenerateRecoveryCodes atomically swaps the batch and returns the new
// plaintext codes, shown exactly once.
func (service *Service) RegenerateRecoveryCodes(ctx context.Context, userID string) ([]string, error) {
	enabled, err := service.Enabled(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !enabled {
		return nil, ErrFactorRequired
	}

	codes, err := service.mintRecoveryBatch(ctx, userID)
	if err != nil {
		return nil, err
	}
	service.recorder.Record(ctx, audit.Event{
		Type:        audit.EventRecoveryRegenerated,
		PrincipalID: userID,
	})
	return codes, nil
}

// # Internals

func (service *Service) mintRecoveryBatch(ctx context.Context, userID string) ([]string, error) {
	codes, err := generateRecoveryBatch()
	if err != nil {
		return nil, apperr.Internal(err)
	}
	hashes := make([]string, 0, len(codes))
	for _, code := range codes {
		hashes = append(hashes, sec.HashToken(code))
	}
	if err := service.store.ReplaceRecoveryCodes(ctx, userID, hashes); err != nil {
		return nil, err
	}
	return codes, nil
}

// dispatchCode generates, stores, and delivers a 6-digit code under the
// otp_send budget. A delivery failure is surfaced but the stored code stays
// valid, so a flaky provider does not strand the challenge.
func (service *Service) dispatchCode(ctx context.Context, userID string, method Method, destination string) error {
	if err := service.limiter.Check(ctx, guard.ActionOTPSend, userID); err != nil {
		return err
	}
	if err := service.limiter.Hit(ctx, guard.ActionOTPSend, userID); err != nil {
		return err
	}

	code, err := generateOTPCode()
	if err != nil {
		return apperr.Internal(err)
	}
	if err := service.challenges.PutOTP(ctx, userID, method, sec.HashToken(code), destination, otpTTL); err != nil {
		return err
	}

	channel := notify.ChannelSMS
	if method == MethodEmailOTP {
		channel = notify.ChannelEmail
	}
	if err := service.sender.Send(ctx, channel, destination, code); err != nil {
		service.logger.ErrorContext(ctx, "otp_delivery_failed", "error", err, "user_id", userID, "method", method)
		return apperr.ServiceUnavailable("Code delivery failed, try again")
	}
	return nil
}

// proveOTP spends one attempt on the outstanding challenge and compares the
// candidate in constant time. Success consumes the challenge and returns the
// destination the code was delivered to.
func (service *Service) proveOTP(ctx context.Context, userID string, method Method, candidate string) (string, error) {
	storedHash, destination, err := service.challenges.TakeOTPAttempt(ctx, userID, method)
	if err != nil {
		return "", err
	}
	if !sec.ConstantTimeEquals(sec.HashToken(candidate), storedHash) {
		return "", ErrCodeInvalid
	}
	if err := service.challenges.DeleteOTP(ctx, userID, method); err != nil {
		service.logger.WarnContext(ctx, "otp_cleanup_failed", "error", err, "user_id", userID)
	}
	return destination, nil
}

// generateOTPCode produces a uniform 6-digit delivery code.
func generateOTPCode() (string, error) {
	limit := big.NewInt(1)
	for i := 0; i < otpDigits; i++ {
		limit.Mul(limit, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("otp_entropy_failed: %w", err)
	}
	return fmt.Sprintf("%0*d", otpDigits, n), nil
}

// newWebAuthnChallenge produces a base64url challenge for the client.
func newWebAuthnChallenge() (string, error) {
	raw := make([]byte, webauthnChallengeBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("webauthn_entropy_failed: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
