// Copyright (c) 2026 Arcanum. All rights reserved.
// Author: dev@arcanum.gg

package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// httpClientTimeout bounds the round trip to the identity provider.
const httpClientTimeout = 10 * time.Second

// maxProviderResponseBytes caps IdP response bodies.
const maxProviderResponseBytes = 1 << 20

// HTTPProviderConfig describes a standard OIDC-style provider: a token
// endpoint that redeems the authorization code and a userinfo endpoint that
// returns the profile.
type HTTPProviderConfig struct {
	Name         string
	TokenURL     string
	UserInfoURL  string
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// HTTPProvider implements [Provider] against the OAuth 2.0 authorization-code
// grant with an OIDC userinfo endpoint. Google, Discord, and GitHub all fit
// this shape with the right endpoint URLs.
type HTTPProvider struct {
	config HTTPProviderConfig
	client *http.Client
}

var _ Provider = (*HTTPProvider)(nil)

// NewHTTPProvider builds a provider from endpoint configuration.
func NewHTTPProvider(config HTTPProviderConfig) *HTTPProvider {
	return &HTTPProvider{
		config: config,
		client: &http.Client{Timeout: httpClientTimeout},
	}
}

// Name implements [Provider].
func (provider *HTTPProvider) Name() string {
	return provider.config.Name
}

// ExchangeCode implements [Provider]: redeem the code, then fetch the profile.
func (provider *HTTPProvider) ExchangeCode(ctx context.Context, code string) (*Profile, error) {
	accessToken, err := provider.redeemCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return provider.fetchProfile(ctx, accessToken)
}

func (provider *HTTPProvider) redeemCode(ctx context.Context, code string) (string, error) {
	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"client_id":     {provider.config.ClientID},
		"client_secret": {provider.config.ClientSecret},
		"redirect_uri":  {provider.config.RedirectURI},
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, provider.config.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("oauth_token_request_failed: %w", err)
	}
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	request.Header.Set("Accept", "application/json")

	body, err := provider.do(request)
	if err != nil {
		return "", err
	}

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("oauth_token_decode_failed: %w", err)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("oauth_token_missing: provider %s returned no access token", provider.config.Name)
	}
	return payload.AccessToken, nil
}

func (provider *HTTPProvider) fetchProfile(ctx context.Context, accessToken string) (*Profile, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, provider.config.UserInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("oauth_userinfo_request_failed: %w", err)
	}
	request.Header.Set("Authorization", "Bearer "+accessToken)
	request.Header.Set("Accept", "application/json")

	body, err := provider.do(request)
	if err != nil {
		return nil, err
	}

	// Standard OIDC userinfo claims.
	var payload struct {
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		Name          string `json:"name"`
		EmailVerified bool   `json:"email_verified"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("oauth_userinfo_decode_failed: %w", err)
	}
	if payload.Sub == "" {
		return nil, fmt.Errorf("oauth_userinfo_missing_subject: provider %s", provider.config.Name)
	}

	return &Profile{
		ProviderUserID: payload.Sub,
		Email:          payload.Email,
		DisplayName:    payload.Name,
		EmailVerified:  payload.EmailVerified,
	}, nil
}

func (provider *HTTPProvider) do(request *http.Request) ([]byte, error) {
	response, err := provider.client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("oauth_provider_unreachable: %w", err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(io.LimitReader(response.Body, maxProviderResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("oauth_provider_read_failed: %w", err)
	}
	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("oauth_provider_status_%d: %s", response.StatusCode, request.URL.Host)
	}
	return body, nil
}
