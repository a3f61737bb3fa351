// Copyright (c) 2026 Arcanum. All rights reserved.
// Author: dev@arcanum.gg

/*
Package oauth maps external identity-provider logins onto local accounts.

Architecture:
  - The IdP protocol itself is a collaborator behind the Provider
    interface: the core hands over an authorization code and gets back a
    verified profile.
  - Connections are keyed by (provider, providerUserID). An existing
    connection is a login; a matching verified local email is a link; and
    anything else provisions a password-less account.
*/
package oauth

import "context"

// Profile is what a provider reports about the authenticated user.
type Profile struct {
	ProviderUserID string
	Email          string
	DisplayName    string

	// EmailVerified is the provider's own claim about the address. Only
	// verified claims participate in auto-linking.
	EmailVerified bool
}

// Provider exchanges an authorization code for the user's profile. The
// redirect dance happens upstream; the core only sees the final exchange.
type Provider interface {
	// Name identifies the provider in connection records ("discord",
	// "google", ...).
	Name() string

	// ExchangeCode redeems the authorization code at the IdP.
	ExchangeCode(ctx context.Context, code string) (*Profile, error)
}
