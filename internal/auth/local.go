// Waymark - Live Event Route Coordination Core
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/proxium/waymark/internal/ports"
)

// minPasswordLength is the local provider's password policy.
const minPasswordLength = 8

// LocalProvider is a development AuthPort keeping bcrypt password hashes
// in the document store, so the whole system runs without a hosted auth
// provider. Tokens are HS256-signed with a configured secret.
type LocalProvider struct {
	store  ports.DocumentStorePort
	secret []byte
}

// NewLocalProvider creates the dev provider. secret signs session tokens;
// an empty secret falls back to a fixed development value.
func NewLocalProvider(store ports.DocumentStorePort, secret string) *LocalProvider {
	if secret == "" {
		secret = "waymark-dev"
	}
	return &LocalProvider{store: store, secret: []byte(secret)}
}

type credentialRecord struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
	Hash  []byte `json:"hash"`
}

// CreateAccount registers a new account.
func (p *LocalProvider) CreateAccount(ctx context.Context, email, password string) (ports.Credentials, error) {
	if len(password) < minPasswordLength {
		return ports.Credentials{}, ports.NewAuthError(ports.AuthWeakPassword,
			fmt.Errorf("password shorter than %d characters", minPasswordLength))
	}

	path := credentialPath(email)
	_, err := p.store.ReadDocument(ctx, path)
	switch {
	case err == nil:
		return ports.Credentials{}, ports.NewAuthError(ports.AuthEmailInUse, nil)
	case !errors.Is(err, ports.ErrDocumentNotFound):
		return ports.Credentials{}, ports.NewAuthError(ports.AuthUnavailable, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return ports.Credentials{}, ports.NewAuthError(ports.AuthUnavailable, err)
	}
	record := credentialRecord{UID: uuid.NewString(), Email: email, Hash: hash}
	if err := p.store.WriteDocument(ctx, path, record); err != nil {
		return ports.Credentials{}, ports.NewAuthError(ports.AuthUnavailable, err)
	}
	return p.credentialsFor(record)
}

// SignIn verifies an existing account's password.
func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (ports.Credentials, error) {
	doc, err := p.store.ReadDocument(ctx, credentialPath(email))
	if err != nil {
		if errors.Is(err, ports.ErrDocumentNotFound) {
			return ports.Credentials{}, ports.NewAuthError(ports.AuthInvalidCredentials, nil)
		}
		return ports.Credentials{}, ports.NewAuthError(ports.AuthUnavailable, err)
	}
	var record credentialRecord
	if err := json.Unmarshal(doc.Data, &record); err != nil {
		return ports.Credentials{}, ports.NewAuthError(ports.AuthUnavailable, err)
	}
	if err := bcrypt.CompareHashAndPassword(record.Hash, []byte(password)); err != nil {
		return ports.Credentials{}, ports.NewAuthError(ports.AuthInvalidCredentials, nil)
	}
	return p.credentialsFor(record)
}

func (p *LocalProvider) credentialsFor(record credentialRecord) (ports.Credentials, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   record.UID,
		"email": record.Email,
		"iat":   time.Now().Unix(),
	})
	signed, err := token.SignedString(p.secret)
	if err != nil {
		return ports.Credentials{}, ports.NewAuthError(ports.AuthUnavailable, err)
	}
	return ports.Credentials{UID: record.UID, Email: record.Email, Token: signed}, nil
}

// credentialPath derives the credential document path; emails are hashed
// because store keys cannot carry arbitrary characters.
func credentialPath(email string) string {
	sum := sha256.Sum256([]byte(email))
	return "credentials/" + hex.EncodeToString(sum[:16])
}
