// Copyright (c) 2026 Arcanum. All rights reserved.
// Author: dev@arcanum.gg

package credential

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/arcanumhq/arcanum/internal/iam/audit"
	"github.com/arcanumhq/arcanum/internal/iam/guard"
	"github.com/arcanumhq/arcanum/internal/iam/notify"
	"github.com/arcanumhq/arcanum/internal/iam/token"
	"github.com/arcanumhq/arcanum/internal/platform/apperr"
	"github.com/arcanumhq/arcanum/internal/platform/metrics"
	"github.com/arcanumhq/arcanum/internal/platform/sec"
	"github.com/arcanumhq/arcanum/internal/platform/validate"
	"github.com/arcanumhq/arcanum/pkg/uuid"
)

// # Collaborator Boundaries

// Limiter is the attempt-budget guard used around credential checks.
type Limiter interface {
	Check(ctx context.Context, action guard.Action, principal string) error
	Hit(ctx context.Context, action guard.Action, principal string) error
	Reset(ctx context.Context, action guard.Action, principal string) error
}

// Tokens issues and consumes single-use capability tokens.
type Tokens interface {
	Issue(ctx context.Context, kind token.Kind, userID, boundIP string) (string, error)
	Consume(ctx context.Context, kind token.Kind, plaintext, requestIP string) (*token.Token, error)
	InvalidateAll(ctx context.Context, kind token.Kind, userID string) error
}

// SessionRevoker invalidates live sessions after credential changes.
type SessionRevoker interface {
	RevokeAll(ctx context.Context, userID string) error
	RevokeAllExcept(ctx context.Context, userID, keepSessionID string) error
}

// MFAChecker reports whether an account has a verified second factor, which
// decides whether a fresh login session starts in the pending state.
type MFAChecker interface {
	Enabled(ctx context.Context, userID string) (bool, error)
}

// # Service

// Service orchestrates account lifecycle and password authentication.
type Service struct {
	store    Store
	tokens   Tokens
	limiter  Limiter
	hasher   *sec.PasswordHasher
	sender   notify.Sender
	sessions SessionRevoker
	mfa      MFAChecker
	recorder audit.Recorder
	metrics  *metrics.Registry
	logger   *slog.Logger
}

// Deps bundles the service's collaborators.
type Deps struct {
	Store    Store
	Tokens   Tokens
	Limiter  Limiter
	Hasher   *sec.PasswordHasher
	Sender   notify.Sender
	Sessions SessionRevoker
	MFA      MFAChecker
	Recorder audit.Recorder
	Metrics  *metrics.Registry
	Logger   *slog.Logger
}

// NewService wires a credential Service from its collaborators.
func NewService(deps Deps) *Service {
	return &Service{
		store:    deps.Store,
		tokens:   deps.Tokens,
		limiter:  deps.Limiter,
		hasher:   deps.Hasher,
		sender:   deps.Sender,
		sessions: deps.Sessions,
		mfa:      deps.MFA,
		recorder: deps.Recorder,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
	}
}

// errInvalidCredentials is the single message for unknown email, wrong
// password, and password-less accounts, so responses never disclose which
// one it was.
func errInvalidCredentials() error {
	return apperr.Unauthorized("Invalid email or password")
}

// dummyHash soaks up roughly the same verification time for unknown
// accounts as a real compare, so response latency does not leak whether an
// email is registered.
var dummyHash = sec.MustHash("arcanum-timing-equalizer")

// # Registration & Verification

// RegisterInput carries the signup form fields.
type RegisterInput struct {
	Email       string
	Password    string
	DisplayName string
}

/*
Register creates a new account and dispatches an email-verification token.

The password must satisfy the length, character-class, and common-password
policy. The verification email is best-effort: a delivery failure is logged
but does not roll the account back, the user can request a fresh token later.

Parameters:
  - ctx: request context.
  - input: RegisterInput with a pre-validated email format.

Returns:
  - *User: the created account, email still unverified.
  - error: apperr.ValidationError on policy failure, apperr.Conflict when
    the email is taken.
*/
func (service *Service) Register(ctx context.Context, input RegisterInput) (*User, error) {
	validator := &validate.Validator{}
	validator.Required("email", input.Email).
		Email("email", input.Email).
		MaxLen("email", input.Email, 254).
		Required("display_name", input.DisplayName).
		MaxLen("display_name", input.DisplayName, 60)
	if err := validator.Err(); err != nil {
		return nil, err
	}

	if policy := sec.CheckPasswordPolicy(input.Password); !policy.OK() {
		return nil, apperr.ValidationError("Password does not meet requirements", apperr.FieldError{
			Field:   "password",
			Message: strings.Join(policy.Failures, "; "),
		})
	}

	hash, err := service.hasher.Hash(input.Password)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("password_hash_failed: %w", err))
	}

	user := &User{
		ID:           uuid.Must(),
		Email:        strings.ToLower(strings.TrimSpace(input.Email)),
		DisplayName:  input.DisplayName,
		PasswordHash: &hash,
	}
	if err := service.store.Create(ctx, user); err != nil {
		return nil, err
	}

	service.sendVerificationEmail(ctx, user)
	service.logger.InfoContext(ctx, "account_registered", "user_id", user.ID)
	return user, nil
}

func (service *Service) sendVerificationEmail(ctx context.Context, user *User) {
	plaintext, err := service.tokens.Issue(ctx, token.KindEmailVerify, user.ID, "")
	if err != nil {
		service.logger.ErrorContext(ctx, "verify_token_issue_failed", "error", err, "user_id", user.ID)
		return
	}
	if err := service.sender.Send(ctx, notify.ChannelEmail, user.Email, plaintext); err != nil {
		service.logger.ErrorContext(ctx, "verify_email_send_failed", "error", err, "user_id", user.ID)
	}
}

/*
VerifyEmail consumes an email-verification token and marks the account.

Returns:
  - error: token.ErrNotFound, token.ErrExpired, or token.ErrAlreadyUsed
    mapped by the token layer; each is surfaced distinctly.
*/
func (service *Service) VerifyEmail(ctx context.Context, plaintext, requestIP string) error {
	consumed, err := service.tokens.Consume(ctx, token.KindEmailVerify, plaintext, requestIP)
	if err != nil {
		return err
	}
	if err := service.store.MarkEmailVerified(ctx, consumed.UserID); err != nil {
		return err
	}
	service.recorder.Record(ctx, audit.Event{
		Type:        audit.EventEmailVerified,
		PrincipalID: consumed.UserID,
	})
	return nil
}

// ResendVerification issues a fresh verification token for an account that
// has not confirmed its email yet. Unknown emails succeed silently.
func (service *Service) ResendVerification(ctx context.Context, email string) error {
	if err := service.limiter.Check(ctx, guard.ActionResetRequest, email); err != nil {
		return err
	}
	if err := service.limiter.Hit(ctx, guard.ActionResetRequest, email); err != nil {
		return err
	}

	user, err := service.store.FindByEmail(ctx, strings.ToLower(email))
	if err != nil {
		if apperr.IsCode(err, apperr.CodeNotFound) {
			return nil
		}
		return err
	}
	if user.EmailVerified {
		return nil
	}
	service.sendVerificationEmail(ctx, user)
	return nil
}

// # Login

// LoginResult reports a successful credential verification. RequiresMFA
// tells the session layer to start the session in the pending state.
type LoginResult struct {
	User        *User
	RequiresMFA bool
}

/*
Login verifies an email/password pair under the login attempt budget.

Flow:
  - the budget is checked before any credential work, so a locked-out
    identifier never reaches the hash compare;
  - unknown email, wrong password, and password-less account all count a
    failure and return the same InvalidCredentials error;
  - suspension and deactivation are only disclosed after the password
    matched;
  - success resets the failure counter.

Returns:
  - *LoginResult: the account plus the MFA requirement flag.
  - error: apperr.Unauthorized, apperr.Forbidden, or apperr.RateLimited.
*/
func (service *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	if err := service.limiter.Check(ctx, guard.ActionLogin, email); err != nil {
		service.metrics.LoginAttempts.WithLabelValues("rate_limited").Inc()
		return nil, err
	}

	user, err := service.store.FindByEmail(ctx, email)
	if err != nil {
		if apperr.IsCode(err, apperr.CodeNotFound) {
			// Burn a hash compare so unknown emails cost the same time.
			service.hasher.Verify(password, dummyHash)
			return nil, service.failLogin(ctx, email, "")
		}
		return nil, err
	}

	if !user.HasPassword() || !service.hasher.Verify(password, *user.PasswordHash) {
		return nil, service.failLogin(ctx, email, user.ID)
	}

	if user.Suspended {
		service.metrics.LoginAttempts.WithLabelValues("suspended").Inc()
		return nil, apperr.Forbidden("Account is suspended")
	}
	if !user.Active {
		service.metrics.LoginAttempts.WithLabelValues("inactive").Inc()
		return nil, apperr.Forbidden("Account is deactivated")
	}

	if err := service.limiter.Reset(ctx, guard.ActionLogin, email); err != nil {
		service.logger.WarnContext(ctx, "login_guard_reset_failed", "error", err)
	}

	requiresMFA, err := service.mfa.Enabled(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	service.metrics.LoginAttempts.WithLabelValues("success").Inc()
	service.recorder.Record(ctx, audit.Event{
		Type:        audit.EventLoginSucceeded,
		PrincipalID: user.ID,
	})
	return &LoginResult{User: user, RequiresMFA: requiresMFA}, nil
}

// failLogin counts a failed attempt and returns either the uniform
// invalid-credentials error or, when this attempt crossed the budget, the
// lockout error from the guard.
func (service *Service) failLogin(ctx context.Context, email, userID string) error {
	service.metrics.LoginAttempts.WithLabelValues("invalid_credentials").Inc()
	service.recorder.Record(ctx, audit.Event{
		Type:        audit.EventLoginFailed,
		PrincipalID: userID,
		Metadata:    map[string]string{"email": email},
	})

	if err := service.limiter.Hit(ctx, guard.ActionLogin, email); err != nil {
		if apperr.IsCode(err, apperr.CodeRateLimited) {
			service.recorder.Record(ctx, audit.Event{
				Type:        audit.EventLockoutTriggered,
				PrincipalID: userID,
				Metadata:    map[string]string{"email": email},
			})
			return err
		}
		service.logger.ErrorContext(ctx, "login_guard_hit_failed", "error", err)
	}
	return errInvalidCredentials()
}

// # Password Recovery & Change

/*
RequestPasswordReset issues a reset token for the account behind the email.

The operation observably succeeds whether or not the email is registered:
unknown addresses return nil without issuing anything. The token is bound to
the requesting IP and only redeemable from it.
*/
func (service *Service) RequestPasswordReset(ctx context.Context, email, requestIP string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	if err := service.limiter.Check(ctx, guard.ActionResetRequest, email); err != nil {
		return err
	}
	if err := service.limiter.Hit(ctx, guard.ActionResetRequest, email); err != nil {
		return err
	}

	user, err := service.store.FindByEmail(ctx, email)
	if err != nil {
		if apperr.IsCode(err, apperr.CodeNotFound) {
			service.logger.DebugContext(ctx, "reset_requested_unknown_email")
			return nil
		}
		return err
	}

	plaintext, err := service.tokens.Issue(ctx, token.KindPasswordReset, user.ID, requestIP)
	if err != nil {
		return err
	}
	if err := service.sender.Send(ctx, notify.ChannelEmail, user.Email, plaintext); err != nil {
		service.logger.ErrorContext(ctx, "reset_email_send_failed", "error", err, "user_id", user.ID)
	}
	return nil
}

/*
ResetPassword redeems a reset token and replaces the password.

The policy runs before the token is consumed so a weak password does not
burn the single-use capability. On success every outstanding reset token and
every live session of the account is invalidated.
*/
func (service *Service) ResetPassword(ctx context.Context, plaintext, newPassword, requestIP string) error {
	if policy := sec.CheckPasswordPolicy(newPassword); !policy.OK() {
		return apperr.ValidationError("Password does not meet requirements", apperr.FieldError{
			Field:   "password",
			Message: strings.Join(policy.Failures, "; "),
		})
	}

	consumed, err := service.tokens.Consume(ctx, token.KindPasswordReset, plaintext, requestIP)
	if err != nil {
		return err
	}

	user, err := service.store.FindByID(ctx, consumed.UserID)
	if err != nil {
		return err
	}

	newHash, err := service.hasher.Hash(newPassword)
	if err != nil {
		return apperr.Internal(fmt.Errorf("password_hash_failed: %w", err))
	}
	if err := service.store.UpdatePassword(ctx, user.ID, user.PasswordHash, newHash); err != nil {
		return err
	}

	if err := service.tokens.InvalidateAll(ctx, token.KindPasswordReset, user.ID); err != nil {
		service.logger.ErrorContext(ctx, "reset_token_sweep_failed", "error", err, "user_id", user.ID)
	}
	if err := service.sessions.RevokeAll(ctx, user.ID); err != nil {
		return err
	}
	if err := service.limiter.Reset(ctx, guard.ActionLogin, user.Email); err != nil {
		service.logger.WarnContext(ctx, "login_guard_reset_failed", "error", err)
	}

	service.recorder.Record(ctx, audit.Event{
		Type:        audit.EventPasswordReset,
		PrincipalID: user.ID,
	})
	return nil
}

/*
ChangePassword replaces the password of an authenticated user.

Parameters:
  - ctx: request context.
  - userID: the authenticated account.
  - currentPassword: must match the stored hash.
  - newPassword: checked against the password policy.
  - keepSessionID: the caller's session, spared from the revocation sweep.

Returns:
  - error: apperr.Unauthorized when the current password is wrong,
    apperr.Conflict when a concurrent change won the update race.
*/
func (service *Service) ChangePassword(ctx context.Context, userID, currentPassword, newPassword, keepSessionID string) error {
	user, err := service.store.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.HasPassword() || !service.hasher.Verify(currentPassword, *user.PasswordHash) {
		return apperr.Unauthorized("Current password is incorrect")
	}

	if policy := sec.CheckPasswordPolicy(newPassword); !policy.OK() {
		return apperr.ValidationError("Password does not meet requirements", apperr.FieldError{
			Field:   "password",
			Message: strings.Join(policy.Failures, "; "),
		})
	}

	newHash, err := service.hasher.Hash(newPassword)
	if err != nil {
		return apperr.Internal(fmt.Errorf("password_hash_failed: %w", err))
	}
	if err := service.store.UpdatePassword(ctx, user.ID, user.PasswordHash, newHash); err != nil {
		return err
	}

	if err := service.tokens.InvalidateAll(ctx, token.KindPasswordReset, user.ID); err != nil {
		service.logger.ErrorContext(ctx, "reset_token_sweep_failed", "error", err, "user_id", user.ID)
	}
	if err := service.sessions.RevokeAllExcept(ctx, user.ID, keepSessionID); err != nil {
		return err
	}

	service.recorder.Record(ctx, audit.Event{
		Type:        audit.EventPasswordChanged,
		PrincipalID: user.ID,
	})
	return nil
}

// # Account

// GetUser loads an account by ID.
func (service *Service) GetUser(ctx context.Context, userID string) (*User, error) {
	return service.store.FindByID(ctx, userID)
}

// Deactivate soft-deletes the account and revokes every live session.
func (service *Service) Deactivate(ctx context.Context, userID, password string) error {
	user, err := service.store.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.HasPassword() && !service.hasher.Verify(password, *user.PasswordHash) {
		return apperr.Unauthorized("Current password is incorrect")
	}
	if err := service.store.SoftDelete(ctx, userID); err != nil {
		return err
	}
	return service.sessions.RevokeAll(ctx, userID)
}
