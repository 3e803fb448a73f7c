// Waymark - Live Event Route Coordination Core
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package auth provides the AuthPort implementations: a client for the
// hosted auth provider and a local bcrypt-backed provider for development
// and tests. Credential verification itself is the provider's concern;
// this package only transports requests and classifies failures.
package auth

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"

	"github.com/proxium/waymark/internal/ports"
)

// Client talks to the hosted auth provider over HTTP.
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

// NewClient creates an auth provider client.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpc:   &http.Client{Timeout: timeout},
	}
}

type credentialRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type credentialResponse struct {
	Token string `json:"token"`
}

// CreateAccount registers a new account and returns its credentials.
func (c *Client) CreateAccount(ctx context.Context, email, password string) (ports.Credentials, error) {
	return c.post(ctx, "/v1/accounts", email, password, map[int]ports.AuthErrorCode{
		http.StatusConflict:            ports.AuthEmailInUse,
		http.StatusBadRequest:          ports.AuthWeakPassword,
		http.StatusUnprocessableEntity: ports.AuthWeakPassword,
	})
}

// SignIn verifies existing credentials.
func (c *Client) SignIn(ctx context.Context, email, password string) (ports.Credentials, error) {
	return c.post(ctx, "/v1/sessions", email, password, map[int]ports.AuthErrorCode{
		http.StatusUnauthorized: ports.AuthInvalidCredentials,
		http.StatusForbidden:    ports.AuthInvalidCredentials,
		http.StatusNotFound:     ports.AuthInvalidCredentials,
	})
}

func (c *Client) post(ctx context.Context, path, email, password string, statusCodes map[int]ports.AuthErrorCode) (ports.Credentials, error) {
	body, err := json.Marshal(credentialRequest{Email: email, Password: password})
	if err != nil {
		return ports.Credentials{}, ports.NewAuthError(ports.AuthUnavailable, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return ports.Credentials{}, ports.NewAuthError(ports.AuthUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return ports.Credentials{}, ports.NewAuthError(ports.AuthUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		code, ok := statusCodes[resp.StatusCode]
		if !ok {
			code = ports.AuthUnavailable
		}
		return ports.Credentials{}, ports.NewAuthError(code, fmt.Errorf("provider returned %d", resp.StatusCode))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return ports.Credentials{}, ports.NewAuthError(ports.AuthUnavailable, err)
	}
	var cr credentialResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return ports.Credentials{}, ports.NewAuthError(ports.AuthUnavailable, err)
	}

	uid, err := subjectOf(cr.Token)
	if err != nil {
		return ports.Credentials{}, ports.NewAuthError(ports.AuthUnavailable, err)
	}
	return ports.Credentials{UID: uid, Email: email, Token: cr.Token}, nil
}

// subjectOf extracts the uid from the provider-issued token. The signature
// is the provider's to verify; the core only needs the subject claim.
func subjectOf(token string) (string, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return "", fmt.Errorf("parse credential token: %w", err)
	}
	sub, err := parsed.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("credential token has no subject")
	}
	return sub, nil
}
