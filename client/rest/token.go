// Copyright (C) 2024 IntuneAutomation
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package rest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Token is an OAuth2 access token as returned by the Entra ID token endpoint.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`

	expires time.Time
}

// IsExpired reports whether the token is expired or within the refresh
// window. Tokens are refreshed two minutes ahead of expiry.
func (s Token) IsExpired() bool {
	return time.Now().After(s.expires.Add(-2 * time.Minute))
}

func (s Token) String() string {
	return fmt.Sprintf("%s %s", s.TokenType, s.AccessToken)
}

// TokenSource provides authorization header values for outgoing requests.
// Callers embedding this client in a larger system can inject their own
// implementation.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// StaticTokenSource wraps a pre-acquired bearer token, e.g. one passed in on
// the command line.
type StaticTokenSource struct {
	JWT string
}

func (s StaticTokenSource) AccessToken(ctx context.Context) (string, error) {
	return "Bearer " + s.JWT, nil
}

// ClientSecretTokenSource acquires tokens with the OAuth2 client credentials
// grant and refreshes them ahead of expiry.
type ClientSecretTokenSource struct {
	Authority    string // token authority root, e.g. https://login.microsoftonline.com
	TenantID     string
	ClientID     string
	ClientSecret string
	Scope        string // resource scope, e.g. https://graph.microsoft.com/.default

	HTTPClient *http.Client

	mu    sync.Mutex
	token Token
}

func (s *ClientSecretTokenSource) AccessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token.AccessToken != "" && !s.token.IsExpired() {
		return s.token.String(), nil
	}

	endpoint := fmt.Sprintf("%s/%s/oauth2/v2.0/token", strings.TrimRight(s.Authority, "/"), s.TenantID)
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {s.ClientID},
		"client_secret": {s.ClientSecret},
		"scope":         {s.Scope},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	httpClient := s.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	res, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("requesting token: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		return "", NewGraphError(res)
	}

	var token Token
	if err := Decode(res.Body, &token); err != nil {
		return "", fmt.Errorf("decoding token response: %w", err)
	}
	token.expires = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	if token.TokenType == "" {
		token.TokenType = "Bearer"
	}

	s.token = token
	return s.token.String(), nil
}
