// Waymark - Live Event Route Coordination Core
// SPDX-License-Identifier: AGPL-3.0-or-later

package ports

import (
	"errors"
	"fmt"
)

// AuthErrorCode classifies authentication failures.
type AuthErrorCode string

const (
	// AuthInvalidCredentials means the email/password pair was rejected.
	AuthInvalidCredentials AuthErrorCode = "invalid_credentials"
	// AuthEmailInUse means an account already exists for the email.
	AuthEmailInUse AuthErrorCode = "email_in_use"
	// AuthWeakPassword means the password failed the provider's policy.
	AuthWeakPassword AuthErrorCode = "weak_password"
	// AuthUnavailable means the provider could not be reached.
	AuthUnavailable AuthErrorCode = "unavailable"
)

// AuthError is a failure from the auth provider.
type AuthError struct {
	Code AuthErrorCode
	Err  error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth: %s: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("auth: %s", e.Code)
}

func (e *AuthError) Unwrap() error { return e.Err }

// NewAuthError wraps err with an auth classification.
func NewAuthError(code AuthErrorCode, err error) *AuthError {
	return &AuthError{Code: code, Err: err}
}

// AuthCode extracts the classification from err, or "" if err is not an
// AuthError.
func AuthCode(err error) AuthErrorCode {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// StoreError is a failure from the realtime document store.
type StoreError struct {
	Op   string // read, write, delete, sync
	Path string
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// ErrDocumentNotFound is reported through StoreError when a read targets a
// document that does not exist.
var ErrDocumentNotFound = errors.New("document not found")

// BlobError is a failure resolving, downloading or parsing a blob.
type BlobError struct {
	Stage string // resolve, download, parse
	Path  string
	Err   error
}

func (e *BlobError) Error() string {
	return fmt.Sprintf("blob: %s %s: %v", e.Stage, e.Path, e.Err)
}

func (e *BlobError) Unwrap() error { return e.Err }

// SensorError is a failure starting or stopping the tracking subsystem.
type SensorError struct {
	Op  string // start, stop
	Err error
}

func (e *SensorError) Error() string {
	return fmt.Sprintf("sensor: %s: %v", e.Op, e.Err)
}

func (e *SensorError) Unwrap() error { return e.Err }
