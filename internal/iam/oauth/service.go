// Copyright (c) 2026 Arcanum. All rights reserved.
// Author: dev@arcanum.gg

package oauth

import (
	"context"
	"log/slog"
	"strings"

	"github.com/arcanumhq/arcanum/internal/iam/audit"
	"github.com/arcanumhq/arcanum/internal/iam/credential"
	"github.com/arcanumhq/arcanum/internal/platform/apperr"
	"github.com/arcanumhq/arcanum/pkg/uuid"
)

// MFAChecker reports whether the account owes a second factor at login.
type MFAChecker interface {
	Enabled(ctx context.Context, userID string) (bool, error)
}

// Service maps provider logins onto local accounts.
type Service struct {
	store     Store
	accounts  credential.Store
	mfa       MFAChecker
	providers map[string]Provider
	recorder  audit.Recorder
	logger    *slog.Logger
}

// NewService wires the OAuth boundary. providers is keyed by Provider.Name.
func NewService(store Store, accounts credential.Store, mfa MFAChecker, providers []Provider, recorder audit.Recorder, logger *slog.Logger) *Service {
	index := make(map[string]Provider, len(providers))
	for _, provider := range providers {
		index[provider.Name()] = provider
	}
	return &Service{
		store:     store,
		accounts:  accounts,
		mfa:       mfa,
		providers: index,
		recorder:  recorder,
		logger:    logger,
	}
}

// LoginResult mirrors the password login result so both paths feed the same
// session creation.
type LoginResult struct {
	User        *credential.User
	RequiresMFA bool

	// Linked is true when this exchange attached the provider identity to
	// an existing account rather than logging into a known connection.
	Linked bool

	// Created is true when a fresh password-less account was provisioned.
	Created bool
}

/*
LoginOrLink redeems an authorization code and resolves it to an account.

Resolution order:
 1. a known (provider, providerUserID) connection logs in;
 2. a provider-verified email matching a locally verified account links
    the identity to it — unverified local emails never auto-link, so an
    attacker cannot squat an address and capture the real owner's IdP
    login;
 3. otherwise a new password-less account is provisioned.

Returns:
  - *LoginResult: the resolved account plus MFA requirement.
  - error: apperr.Unauthorized on a failed exchange, apperr.Conflict when
    the email is held by an unverified local account.
*/
func (service *Service) LoginOrLink(ctx context.Context, providerName, code string) (*LoginResult, error) {
	provider, ok := service.providers[providerName]
	if !ok {
		return nil, apperr.NotFound("Provider")
	}

	profile, err := provider.ExchangeCode(ctx, code)
	if err != nil {
		service.logger.WarnContext(ctx, "oauth_exchange_failed", "error", err, "provider", providerName)
		return nil, apperr.Unauthorized("Code exchange failed")
	}

	connection, err := service.store.FindConnection(ctx, providerName, profile.ProviderUserID)
	if err == nil {
		return service.loginExisting(ctx, connection)
	}
	if !apperr.IsCode(err, apperr.CodeNotFound) {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(profile.Email))
	if email != "" && profile.EmailVerified {
		user, err := service.accounts.FindByEmail(ctx, email)
		switch {
		case err == nil && user.EmailVerified:
			return service.linkExisting(ctx, user, providerName, profile)
		case err == nil:
			// A local account holds this address but never proved it.
			return nil, apperr.Conflict("Email is registered but unverified; verify it before linking")
		case !apperr.IsCode(err, apperr.CodeNotFound):
			return nil, err
		}
	}

	return service.provision(ctx, providerName, profile, email)
}

func (service *Service) loginExisting(ctx context.Context, connection *Connection) (*LoginResult, error) {
	user, err := service.accounts.FindByID(ctx, connection.UserID)
	if err != nil {
		return nil, err
	}
	if user.Suspended {
		return nil, apperr.Forbidden("Account is suspended")
	}
	if !user.Active {
		return nil, apperr.Forbidden("Account is deactivated")
	}

	requiresMFA, err := service.mfa.Enabled(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	service.recorder.Record(ctx, audit.Event{
		Type:        audit.EventLoginSucceeded,
		PrincipalID: user.ID,
		Metadata:    map[string]string{"via": connection.Provider},
	})
	return &LoginResult{User: user, RequiresMFA: requiresMFA}, nil
}

func (service *Service) linkExisting(ctx context.Context, user *credential.User, providerName string, profile *Profile) (*LoginResult, error) {
	connection := &Connection{
		ID:             uuid.Must(),
		UserID:         user.ID,
		Provider:       providerName,
		ProviderUserID: profile.ProviderUserID,
	}
	if err := service.store.Insert(ctx, connection); err != nil {
		return nil, err
	}

	requiresMFA, err := service.mfa.Enabled(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	service.recorder.Record(ctx, audit.Event{
		Type:        audit.EventOAuthLinked,
		PrincipalID: user.ID,
		Metadata:    map[string]string{"provider": providerName},
	})
	return &LoginResult{User: user, RequiresMFA: requiresMFA, Linked: true}, nil
}

// provision creates a password-less account for a first-time identity. The
// account can only gain a password later through the reset flow.
func (service *Service) provision(ctx context.Context, providerName string, profile *Profile, email string) (*LoginResult, error) {
	displayName := strings.TrimSpace(profile.DisplayName)
	if displayName == "" {
		displayName = providerName + " user"
	}

	user := &credential.User{
		ID:            uuid.Must(),
		Email:         email,
		DisplayName:   displayName,
		PasswordHash:  nil,
		EmailVerified: profile.EmailVerified,
	}
	if err := service.accounts.Create(ctx, user); err != nil {
		return nil, err
	}

	connection := &Connection{
		ID:             uuid.Must(),
		UserID:         user.ID,
		Provider:       providerName,
		ProviderUserID: profile.ProviderUserID,
	}
	if err := service.store.Insert(ctx, connection); err != nil {
		return nil, err
	}

	service.recorder.Record(ctx, audit.Event{
		Type:        audit.EventOAuthLinked,
		PrincipalID: user.ID,
		Metadata:    map[string]string{"provider": providerName, "provisioned": "true"},
	})
	return &LoginResult{User: user, Created: true}, nil
}

// Connections lists the account's linked providers.
func (service *Service) Connections(ctx context.Context, userID string) ([]Connection, error) {
	return service.store.ListByUser(ctx, userID)
}

// Unlink removes a provider connection. An account with no password must
// keep at least one connection or it would become unreachable.
func (service *Service) Unlink(ctx context.Context, userID, connectionID string) error {
	user, err := service.accounts.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.HasPassword() {
		connections, err := service.store.ListByUser(ctx, userID)
		if err != nil {
			return err
		}
		if len(connections) <= 1 {
			return apperr.Conflict("Cannot unlink the only login method; set a password first")
		}
	}
	return service.store.Delete(ctx, userID, connectionID)
}
