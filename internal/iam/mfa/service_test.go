// Copyright (c) 2026 Arcanum. All rights reserved.
// Author: dev@arcanum.gg

package mfa_test

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcanumhq/arcanum/internal/iam/audit"
	"github.com/arcanumhq/arcanum/internal/iam/guard"
	"github.com/arcanumhq/arcanum/internal/iam/mfa"
	"github.com/arcanumhq/arcanum/internal/iam/notify"
	"github.com/arcanumhq/arcanum/internal/platform/apperr"
	"github.com/arcanumhq/arcanum/internal/platform/constants"
	"github.com/arcanumhq/arcanum/internal/platform/metrics"
)

// # Fakes

// memoryStore implements mfa.Store with the conditional-update semantics the
// engine leans on for replay and clone detection.
type memoryStore struct {
	mu       sync.Mutex
	factors  map[string]*mfa.Factor     // userID|method
	recovery map[string]map[string]bool // userID -> hash -> used
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		factors:  make(map[string]*mfa.Factor),
		recovery: make(map[string]map[string]bool),
	}
}

func factorKey(userID string, method mfa.Method) string {
	return userID + "|" + string(method)
}

func (store *memoryStore) InsertFactor(_ context.Context, factor *mfa.Factor) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	key := factorKey(factor.UserID, factor.Method)
	if _, exists := store.factors[key]; exists {
		return apperr.Conflict("Factor already enrolled for this method")
	}
	factor.CreatedAt = time.Now()
	copied := *factor
	store.factors[key] = &copied
	return nil
}

func (store *memoryStore) FindFactor(_ context.Context, userID string, method mfa.Method) (*mfa.Factor, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	factor, found := store.factors[factorKey(userID, method)]
	if !found {
		return nil, apperr.NotFound("Factor")
	}
	copied := *factor
	return &copied, nil
}

func (store *memoryStore) ListFactors(_ context.Context, userID string) ([]mfa.Factor, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	var out []mfa.Factor
	for _, factor := range store.factors {
		if factor.UserID == userID && factor.Verified {
			out = append(out, *factor)
		}
	}
	return out, nil
}

func (store *memoryStore) CountVerified(_ context.Context, userID string) (int, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	count := 0
	for _, factor := range store.factors {
		if factor.UserID == userID && factor.Verified {
			count++
		}
	}
	return count, nil
}

func (store *memoryStore) AdvanceTOTPCounter(_ context.Context, factorID string, counter int64) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	for _, factor := range store.factors {
		if factor.ID == factorID {
			if counter <= factor.LastCounter {
				return mfa.ErrCodeReplayed
			}
			factor.LastCounter = counter
			return nil
		}
	}
	return apperr.NotFound("Factor")
}

func (store *memoryStore) AdvanceSignCount(_ context.Context, factorID string, signCount uint32) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	for _, factor := range store.factors {
		if factor.ID == factorID {
			if signCount <= factor.SignCount {
				return mfa.ErrCounterCloned
			}
			factor.SignCount = signCount
			return nil
		}
	}
	return apperr.NotFound("Factor")
}

func (store *memoryStore) SetPrimary(_ context.Context, userID, factorID string) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	found := false
	for _, factor := range store.factors {
		if factor.UserID == userID {
			factor.IsPrimary = factor.ID == factorID
			found = found || factor.ID == factorID
		}
	}
	if !found {
		return apperr.NotFound("Factor")
	}
	return nil
}

// DeleteFactor mirrors the transactional Postgres semantics: the delete, the
// survivor count, and the conditional batch purge happen under one lock.
func (store *memoryStore) DeleteFactor(_ context.Context, userID, factorID string) (int, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	deleted := false
	for key, factor := range store.factors {
		if factor.UserID == userID && factor.ID == factorID {
			delete(store.factors, key)
			deleted = true
			break
		}
	}
	if !deleted {
		return 0, apperr.NotFound("Factor")
	}
	remaining := 0
	for _, factor := range store.factors {
		if factor.UserID == userID && factor.Verified {
			remaining++
		}
	}
	if remaining == 0 {
		delete(store.recovery, userID)
	}
	return remaining, nil
}

func (store *memoryStore) ReplaceRecoveryCodes(_ context.Context, userID string, hashes []string) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	batch := make(map[string]bool, len(hashes))
	for _, hash := range hashes {
		batch[hash] = false
	}
	store.recovery[userID] = batch
	return nil
}

func (store *memoryStore) ConsumeRecoveryCode(_ context.Context, userID, hash string) (int, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	batch := store.recovery[userID]
	used, found := batch[hash]
	if !found || used {
		return 0, mfa.ErrRecoveryCodeInvalid
	}
	batch[hash] = true
	remaining := 0
	for _, u := range batch {
		if !u {
			remaining++
		}
	}
	return remaining, nil
}

func (store *memoryStore) CountRecoveryCodes(_ context.Context, userID string) (int, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	remaining := 0
	for _, used := range store.recovery[userID] {
		if !used {
			remaining++
		}
	}
	return remaining, nil
}

// rewindTOTPCounter backdates the stored counter so drift-window acceptance
// can be observed without tripping the replay gate.
func (store *memoryStore) rewindTOTPCounter(userID string, steps int64) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.factors[factorKey(userID, mfa.MethodTOTP)].LastCounter -= steps
}

var _ mfa.Store = (*memoryStore)(nil)

// hookStore wraps memoryStore to run a callback right after a factor delete
// returns, simulating work that lands while the removal is still in flight.
type hookStore struct {
	*memoryStore
	afterDelete func()
}

func (store *hookStore) DeleteFactor(ctx context.Context, userID, factorID string) (int, error) {
	remaining, err := store.memoryStore.DeleteFactor(ctx, userID, factorID)
	if store.afterDelete != nil {
		store.afterDelete()
	}
	return remaining, err
}

// captureSender records the last delivered payload so tests can read the OTP
// code off the wire.
type captureSender struct {
	mu          sync.Mutex
	channel     notify.Channel
	destination string
	payload     string
}

func (sender *captureSender) Send(_ context.Context, channel notify.Channel, destination, payload string) error {
	sender.mu.Lock()
	defer sender.mu.Unlock()
	sender.channel = channel
	sender.destination = destination
	sender.payload = payload
	return nil
}

func (sender *captureSender) lastCode() string {
	sender.mu.Lock()
	defer sender.mu.Unlock()
	return sender.payload
}

// # Harness

func newTestService(t *testing.T) (*mfa.Service, *memoryStore, *captureSender) {
	t.Helper()
	store := newMemoryStore()
	service, sender := newTestServiceWith(t, store)
	return service, store, sender
}

func newTestServiceWith(t *testing.T, store mfa.Store) (*mfa.Service, *captureSender) {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	sender := &captureSender{}
	service := mfa.NewService(mfa.Deps{
		Store:      store,
		Challenges: mfa.NewRedisChallengeStore(client),
		Limiter:    guard.New(client),
		Sender:     sender,
		Verifier:   &mfa.ES256Verifier{},
		Recorder:   audit.Noop{},
		Metrics:    metrics.New(),
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		Issuer:     "Arcanum",
		RPID:       "arcanum.gg",
	})
	return service, sender
}

// midStep returns a now at least two seconds clear of the next 30-second
// boundary, so the engine evaluates the same time-step the code was built
// for.
func midStep(t *testing.T) time.Time {
	t.Helper()
	now := time.Now()
	if remaining := 30 - now.Unix()%30; remaining <= 2 {
		time.Sleep(time.Duration(remaining)*time.Second + 100*time.Millisecond)
		now = time.Now()
	}
	return now
}

// totpCode generates the RFC 6238 code for the secret at the given instant.
func totpCode(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	code, err := totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
		Period:    30,
		Skew:      0,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	require.NoError(t, err)
	return code
}

// enrollTOTP runs the full TOTP enrollment and returns the shared secret and
// the minted recovery codes.
func enrollTOTP(t *testing.T, service *mfa.Service, userID string) (string, []string) {
	t.Helper()
	ctx := context.Background()

	challenge, err := service.BeginSetup(ctx, userID, mfa.MethodTOTP, userID+"@arcanum.gg", "")
	require.NoError(t, err)
	require.NotEmpty(t, challenge.SecretBase32)
	require.Contains(t, challenge.ProvisioningURL, "otpauth://")

	result, err := service.ConfirmSetup(ctx, userID, mfa.MethodTOTP, mfa.ConfirmInput{
		Code: totpCode(t, challenge.SecretBase32, time.Now()),
	})
	require.NoError(t, err)
	return challenge.SecretBase32, result.RecoveryCodes
}

// # TOTP

/*
TestTOTP_EnrollAndVerify runs the happy path: enrollment proves possession,
the first factor mints a recovery batch, and a code from the next time-step
verifies.
*/
func TestTOTP_EnrollAndVerify(t *testing.T) {
	service, _, _ := newTestService(t)
	ctx := context.Background()

	secret, recoveryCodes := enrollTOTP(t, service, "user-1")
	assert.Len(t, recoveryCodes, 10)

	enabled, err := service.Enabled(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, enabled)

	// A later time-step stays inside the drift window and moves the counter
	// past the one consumed at enrollment.
	err = service.Verify(ctx, "user-1", mfa.MethodTOTP, mfa.VerifyInput{
		Code: totpCode(t, secret, time.Now().Add(30*time.Second)),
	})
	assert.NoError(t, err)
}

/*
TestTOTP_ReplayRejected verifies a cryptographically valid code is refused the
second time it is presented.
*/
func TestTOTP_ReplayRejected(t *testing.T) {
	service, _, _ := newTestService(t)
	ctx := context.Background()

	secret, _ := enrollTOTP(t, service, "user-1")
	code := totpCode(t, secret, time.Now().Add(30*time.Second))

	require.NoError(t, service.Verify(ctx, "user-1", mfa.MethodTOTP, mfa.VerifyInput{Code: code}))

	err := service.Verify(ctx, "user-1", mfa.MethodTOTP, mfa.VerifyInput{Code: code})
	assert.ErrorIs(t, err, mfa.ErrCodeReplayed)
}

/*
TestTOTP_OutsideDriftWindow verifies a code from two steps back is rejected.
*/
func TestTOTP_OutsideDriftWindow(t *testing.T) {
	service, _, _ := newTestService(t)
	ctx := context.Background()

	secret, _ := enrollTOTP(t, service, "user-1")

	err := service.Verify(ctx, "user-1", mfa.MethodTOTP, mfa.VerifyInput{
		Code: totpCode(t, secret, time.Now().Add(-2*30*time.Second)),
	})
	assert.ErrorIs(t, err, mfa.ErrCodeInvalid)
}

/*
TestTOTP_PreviousStepAccepted verifies one step of clock lag stays inside the
drift window. The stored counter is rewound first so the replay gate does not
mask the drift check.
*/
func TestTOTP_PreviousStepAccepted(t *testing.T) {
	service, store, _ := newTestService(t)
	ctx := context.Background()

	secret, _ := enrollTOTP(t, service, "user-1")
	store.rewindTOTPCounter("user-1", 2)

	err := service.Verify(ctx, "user-1", mfa.MethodTOTP, mfa.VerifyInput{
		Code: totpCode(t, secret, midStep(t).Add(-30*time.Second)),
	})
	assert.NoError(t, err)
}

/*
TestTOTP_TwoStepsAhead verifies a code from two steps in the future is
outside the drift window even when the counter would allow it.
*/
func TestTOTP_TwoStepsAhead(t *testing.T) {
	service, _, _ := newTestService(t)
	ctx := context.Background()

	secret, _ := enrollTOTP(t, service, "user-1")

	err := service.Verify(ctx, "user-1", mfa.MethodTOTP, mfa.VerifyInput{
		Code: totpCode(t, secret, midStep(t).Add(2*30*time.Second)),
	})
	assert.ErrorIs(t, err, mfa.ErrCodeInvalid)
}

/*
TestTOTP_WrongEnrollmentCode keeps the pending secret so the user can retry.
*/
func TestTOTP_WrongEnrollmentCode(t *testing.T) {
	service, _, _ := newTestService(t)
	ctx := context.Background()

	challenge, err := service.BeginSetup(ctx, "user-1", mfa.MethodTOTP, "user-1@arcanum.gg", "")
	require.NoError(t, err)

	_, err = service.ConfirmSetup(ctx, "user-1", mfa.MethodTOTP, mfa.ConfirmInput{Code: "000000"})
	require.ErrorIs(t, err, mfa.ErrCodeInvalid)

	// The pending setup survives a bad guess.
	result, err := service.ConfirmSetup(ctx, "user-1", mfa.MethodTOTP, mfa.ConfirmInput{
		Code: totpCode(t, challenge.SecretBase32, time.Now()),
	})
	require.NoError(t, err)
	assert.Equal(t, mfa.MethodTOTP, result.Factor.Method)
}

/*
TestBeginSetup_AlreadyEnrolled refuses a second factor for the same method.
*/
func TestBeginSetup_AlreadyEnrolled(t *testing.T) {
	service, _, _ := newTestService(t)
	ctx := context.Background()

	enrollTOTP(t, service, "user-1")

	_, err := service.BeginSetup(ctx, "user-1", mfa.MethodTOTP, "user-1@arcanum.gg", "")
	assert.True(t, apperr.IsCode(err, apperr.CodeConflict))
}

// # Delivered Codes

/*
TestEmailOTP_EnrollAndVerify drives the delivery-method flow end to end,
reading the code off the captured notification.
*/
func TestEmailOTP_EnrollAndVerify(t *testing.T) {
	service, _, sender := newTestService(t)
	ctx := context.Background()

	challenge, err := service.BeginSetup(ctx, "user-1", mfa.MethodEmailOTP, "", "player@arcanum.gg")
	require.NoError(t, err)
	assert.Equal(t, "player@arcanum.gg", challenge.Destination)
	require.Len(t, sender.lastCode(), 6)

	result, err := service.ConfirmSetup(ctx, "user-1", mfa.MethodEmailOTP, mfa.ConfirmInput{
		Code: sender.lastCode(),
	})
	require.NoError(t, err)
	assert.Len(t, result.RecoveryCodes, 10)

	// The factor is bound to the address the code went to.
	assert.Equal(t, "player@arcanum.gg", result.Factor.Destination)

	// Login-time verification uses a freshly delivered code.
	_, err = service.SendChallenge(ctx, "user-1", mfa.MethodEmailOTP)
	require.NoError(t, err)
	err = service.Verify(ctx, "user-1", mfa.MethodEmailOTP, mfa.VerifyInput{Code: sender.lastCode()})
	assert.NoError(t, err)
}

func TestBeginSetup_DeliveryNeedsDestination(t *testing.T) {
	service, _, _ := newTestService(t)

	_, err := service.BeginSetup(context.Background(), "user-1", mfa.MethodSMS, "", "")
	assert.True(t, apperr.IsCode(err, apperr.CodeValidation))
}

/*
TestOTP_CodeSingleUse verifies a delivered code is consumed by the successful
proof.
*/
func TestOTP_CodeSingleUse(t *testing.T) {
	service, _, sender := newTestService(t)
	ctx := context.Background()

	challenge, err := service.BeginSetup(ctx, "user-1", mfa.MethodSMS, "", "+15550100")
	require.NoError(t, err)
	require.Equal(t, "+15550100", challenge.Destination)
	code := sender.lastCode()

	_, err = service.ConfirmSetup(ctx, "user-1", mfa.MethodSMS, mfa.ConfirmInput{Code: code})
	require.NoError(t, err)

	err = service.Verify(ctx, "user-1", mfa.MethodSMS, mfa.VerifyInput{Code: code})
	assert.ErrorIs(t, err, mfa.ErrChallengeExpired)
}

/*
TestOTP_AttemptsExhausted burns the per-challenge guess budget and verifies
the right code no longer works afterwards.
*/
func TestOTP_AttemptsExhausted(t *testing.T) {
	service, _, sender := newTestService(t)
	ctx := context.Background()

	_, err := service.BeginSetup(ctx, "user-1", mfa.MethodEmailOTP, "", "player@arcanum.gg")
	require.NoError(t, err)
	code := sender.lastCode()

	for i := 0; i < 5; i++ {
		_, err := service.ConfirmSetup(ctx, "user-1", mfa.MethodEmailOTP, mfa.ConfirmInput{Code: "999999"})
		require.ErrorIs(t, err, mfa.ErrCodeInvalid, "guess %d", i+1)
	}

	_, err = service.ConfirmSetup(ctx, "user-1", mfa.MethodEmailOTP, mfa.ConfirmInput{Code: code})
	assert.ErrorIs(t, err, mfa.ErrAttemptsExceeded)
}

// # Verification Budget

/*
TestVerify_BudgetExhausted verifies the mfa_verify guard closes after ten
failed proofs.
*/
func TestVerify_BudgetExhausted(t *testing.T) {
	service, _, _ := newTestService(t)
	ctx := context.Background()

	enrollTOTP(t, service, "user-1")

	var err error
	for i := 0; i < 10; i++ {
		err = service.Verify(ctx, "user-1", mfa.MethodTOTP, mfa.VerifyInput{Code: "999999"})
		require.Error(t, err, "attempt %d", i+1)
	}

	err = service.Verify(ctx, "user-1", mfa.MethodTOTP, mfa.VerifyInput{Code: "999999"})
	assert.True(t, apperr.IsCode(err, apperr.CodeRateLimited))
}

/*
TestVerify_SuccessResetsBudget verifies a valid proof clears accumulated
failures.
*/
func TestVerify_SuccessResetsBudget(t *testing.T) {
	service, _, _ := newTestService(t)
	ctx := context.Background()

	secret, _ := enrollTOTP(t, service, "user-1")

	for i := 0; i < 5; i++ {
		_ = service.Verify(ctx, "user-1", mfa.MethodTOTP, mfa.VerifyInput{Code: "999999"})
	}
	require.NoError(t, service.Verify(ctx, "user-1", mfa.MethodTOTP, mfa.VerifyInput{
		Code: totpCode(t, secret, time.Now().Add(30*time.Second)),
	}))

	// A full fresh budget is available after the reset.
	for i := 0; i < 9; i++ {
		err := service.Verify(ctx, "user-1", mfa.MethodTOTP, mfa.VerifyInput{Code: "999999"})
		assert.ErrorIs(t, err, mfa.ErrCodeInvalid, "attempt %d", i+1)
	}
}

// # Recovery Codes

/*
TestRecovery_SingleUse verifies each code burns on use and input is
normalized before hashing.
*/
func TestRecovery_SingleUse(t *testing.T) {
	service, _, _ := newTestService(t)
	ctx := context.Background()

	_, codes := enrollTOTP(t, service, "user-1")
	require.Len(t, codes, 10)

	require.NoError(t, service.VerifyRecovery(ctx, "user-1", codes[0]))
	err := service.VerifyRecovery(ctx, "user-1", codes[0])
	assert.ErrorIs(t, err, mfa.ErrRecoveryCodeInvalid)

	// Lowercase without hyphens is accepted for hand-typed codes.
	sloppy := strings.ToLower(strings.ReplaceAll(codes[1], "-", ""))
	assert.NoError(t, service.VerifyRecovery(ctx, "user-1", sloppy))
}

/*
TestRegenerateRecoveryCodes swaps the whole batch atomically.
*/
func TestRegenerateRecoveryCodes(t *testing.T) {
	service, _, _ := newTestService(t)
	ctx := context.Background()

	_, oldCodes := enrollTOTP(t, service, "user-1")

	newCodes, err := service.RegenerateRecoveryCodes(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, newCodes, 10)

	err = service.VerifyRecovery(ctx, "user-1", oldCodes[0])
	assert.ErrorIs(t, err, mfa.ErrRecoveryCodeInvalid)
	assert.NoError(t, service.VerifyRecovery(ctx, "user-1", newCodes[0]))
}

func TestRegenerateRecoveryCodes_NoFactor(t *testing.T) {
	service, _, _ := newTestService(t)

	_, err := service.RegenerateRecoveryCodes(context.Background(), "user-1")
	assert.ErrorIs(t, err, mfa.ErrFactorRequired)
}

/*
TestSecondFactorKeepsBatch verifies only the first enrollment mints recovery
codes.
*/
func TestSecondFactorKeepsBatch(t *testing.T) {
	service, _, sender := newTestService(t)
	ctx := context.Background()

	_, firstBatch := enrollTOTP(t, service, "user-1")
	require.NotEmpty(t, firstBatch)

	_, err := service.BeginSetup(ctx, "user-1", mfa.MethodEmailOTP, "", "player@arcanum.gg")
	require.NoError(t, err)
	result, err := service.ConfirmSetup(ctx, "user-1", mfa.MethodEmailOTP, mfa.ConfirmInput{
		Code: sender.lastCode(),
	})
	require.NoError(t, err)

	assert.Empty(t, result.RecoveryCodes)
	assert.NoError(t, service.VerifyRecovery(ctx, "user-1", firstBatch[0]))
}

// # Factor Management

/*
TestRemoveLastFactor_InvalidatesRecovery verifies codes never outlive the
factors they back up.
*/
func TestRemoveLastFactor_InvalidatesRecovery(t *testing.T) {
	service, _, _ := newTestService(t)
	ctx := context.Background()

	_, codes := enrollTOTP(t, service, "user-1")

	status, err := service.Status(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, status.Factors, 1)
	require.Equal(t, 10, status.RecoveryCodesRemaining)

	require.NoError(t, service.RemoveFactor(ctx, "user-1", status.Factors[0].ID))

	status, err = service.Status(ctx, "user-1")
	require.NoError(t, err)
	assert.Zero(t, status.RecoveryCodesRemaining)
	err = service.VerifyRecovery(ctx, "user-1", codes[0])
	assert.ErrorIs(t, err, mfa.ErrRecoveryCodeInvalid)
}

/*
TestRemoveLastFactor_ConcurrentEnrollment verifies a recovery batch minted
while the removal is still in flight survives it: the purge rides inside the
factor deletion instead of trailing it as a separate cleanup.
*/
func TestRemoveLastFactor_ConcurrentEnrollment(t *testing.T) {
	store := &hookStore{memoryStore: newMemoryStore()}
	service, sender := newTestServiceWith(t, store)
	ctx := context.Background()

	_, oldCodes := enrollTOTP(t, service, "user-1")
	status, err := service.Status(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, status.Factors, 1)

	var freshCodes []string
	store.afterDelete = func() {
		store.afterDelete = nil
		_, err := service.BeginSetup(ctx, "user-1", mfa.MethodEmailOTP, "", "player@arcanum.gg")
		require.NoError(t, err)
		result, err := service.ConfirmSetup(ctx, "user-1", mfa.MethodEmailOTP, mfa.ConfirmInput{
			Code: sender.lastCode(),
		})
		require.NoError(t, err)
		freshCodes = result.RecoveryCodes
	}

	require.NoError(t, service.RemoveFactor(ctx, "user-1", status.Factors[0].ID))

	require.Len(t, freshCodes, 10)
	assert.NoError(t, service.VerifyRecovery(ctx, "user-1", freshCodes[0]))
	err = service.VerifyRecovery(ctx, "user-1", oldCodes[0])
	assert.ErrorIs(t, err, mfa.ErrRecoveryCodeInvalid)
}

/*
TestRemoveFactor_OthersKeepRecovery verifies the batch survives while any
factor remains.
*/
func TestRemoveFactor_OthersKeepRecovery(t *testing.T) {
	service, _, sender := newTestService(t)
	ctx := context.Background()

	enrollTOTP(t, service, "user-1")
	_, err := service.BeginSetup(ctx, "user-1", mfa.MethodSMS, "", "+15550100")
	require.NoError(t, err)
	_, err = service.ConfirmSetup(ctx, "user-1", mfa.MethodSMS, mfa.ConfirmInput{
		Code: sender.lastCode(),
	})
	require.NoError(t, err)

	status, err := service.Status(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, status.Factors, 2)

	require.NoError(t, service.RemoveFactor(ctx, "user-1", status.Factors[0].ID))

	status, err = service.Status(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 10, status.RecoveryCodesRemaining)
}

func TestSetPrimary(t *testing.T) {
	service, store, _ := newTestService(t)
	ctx := context.Background()

	enrollTOTP(t, service, "user-1")
	status, err := service.Status(ctx, "user-1")
	require.NoError(t, err)

	// No factor is primary until one is chosen.
	assert.Empty(t, status.PrimaryMethod)

	require.NoError(t, service.SetPrimary(ctx, "user-1", status.Factors[0].ID))
	factor, err := store.FindFactor(ctx, "user-1", mfa.MethodTOTP)
	require.NoError(t, err)
	assert.True(t, factor.IsPrimary)

	status, err = service.Status(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, mfa.MethodTOTP, status.PrimaryMethod)
}

/*
TestTakeOTPAttempt_RecreatedCounterExpires verifies guesses against an
expired challenge do not leave an immortal attempts counter behind: the
recreated key picks up a TTL of its own.
*/
func TestTakeOTPAttempt_RecreatedCounterExpires(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	challenges := mfa.NewRedisChallengeStore(client)
	ctx := context.Background()

	_, _, err := challenges.TakeOTPAttempt(ctx, "user-1", mfa.MethodSMS)
	require.ErrorIs(t, err, mfa.ErrChallengeExpired)

	key := constants.RedisPrefixOTPChallenge + string(mfa.MethodSMS) + ":user-1:attempts"
	ttl, err := client.TTL(ctx, key).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}
