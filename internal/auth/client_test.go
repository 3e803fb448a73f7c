// Waymark - Live Event Route Coordination Core
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"

	"github.com/proxium/waymark/internal/ports"
)

func issueToken(t *testing.T, uid string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": uid})
	signed, err := token.SignedString([]byte("provider-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestClientSignIn(t *testing.T) {
	token := issueToken(t, "u-77")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/sessions" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer api-key" {
			t.Errorf("missing api key header, got %q", got)
		}
		var req credentialRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Email != "rider@example.com" {
			t.Errorf("unexpected email %q", req.Email)
		}
		_ = json.NewEncoder(w).Encode(credentialResponse{Token: token})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "api-key", 5*time.Second)
	creds, err := c.SignIn(context.Background(), "rider@example.com", "pw")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if creds.UID != "u-77" {
		t.Errorf("expected uid from token subject, got %q", creds.UID)
	}
	if creds.Token != token {
		t.Error("token not preserved")
	}
}

func TestClientCreateAccountStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   ports.AuthErrorCode
	}{
		{name: "conflict is email in use", status: http.StatusConflict, want: ports.AuthEmailInUse},
		{name: "bad request is weak password", status: http.StatusBadRequest, want: ports.AuthWeakPassword},
		{name: "server error is unavailable", status: http.StatusInternalServerError, want: ports.AuthUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "no", tt.status)
			}))
			defer srv.Close()

			c := NewClient(srv.URL, "", 5*time.Second)
			_, err := c.CreateAccount(context.Background(), "rider@example.com", "pw12345678")
			if got := ports.AuthCode(err); got != tt.want {
				t.Errorf("status %d mapped to %q, want %q", tt.status, got, tt.want)
			}
		})
	}
}

func TestClientSignInInvalidCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", 5*time.Second)
	_, err := c.SignIn(context.Background(), "rider@example.com", "wrong")
	if got := ports.AuthCode(err); got != ports.AuthInvalidCredentials {
		t.Errorf("expected invalid credentials, got %q (%v)", got, err)
	}
}

func TestClientRejectsTokenWithoutSubject(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"email": "x"})
	signed, err := token.SignedString([]byte("provider-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(credentialResponse{Token: signed})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", 5*time.Second)
	_, err = c.SignIn(context.Background(), "rider@example.com", "pw")
	if got := ports.AuthCode(err); got != ports.AuthUnavailable {
		t.Errorf("expected unavailable for subject-less token, got %q (%v)", got, err)
	}
}
