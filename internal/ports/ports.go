// Waymark - Live Event Route Coordination Core
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ports defines the capability interfaces through which the
// coordination core reaches its external collaborators: the auth provider,
// the realtime document store, the blob store backing route geometry, the
// device tracking subsystem, the navigation surface and analytics.
//
// The core only sequences and cancels calls into these ports; provider
// internals (credential verification, store replication, sensor fusion)
// live behind them.
package ports

import "context"

// Credentials is the opaque credential handle returned by the auth
// provider. Token is provider-issued and never interpreted by the core
// beyond the uid it carries.
type Credentials struct {
	UID   string `json:"uid"`
	Email string `json:"email,omitempty"`
	Token string `json:"token,omitempty"`
}

// Document is a document read from the realtime store.
type Document struct {
	// Path is the full document path, e.g. "events/e1/routes/r1".
	Path string `json:"path"`
	// ID is the final path segment.
	ID string `json:"id"`
	// Data is the raw JSON document body.
	Data []byte `json:"data"`
}

// QueryDescriptor selects a collection subscription. When EventID and
// RouteID are set the subscription is filtered to documents carrying that
// pair; when both are empty the full collection is synced.
type QueryDescriptor struct {
	Collection string
	EventID    string
	RouteID    string
}

// Handle is a live background subscription. Cancel releases the underlying
// resource and does not return until no further change callbacks will be
// delivered. Cancel is idempotent. Done is closed once the subscription
// has fully terminated.
type Handle interface {
	Cancel()
	Done() <-chan struct{}
}

// AuthPort is the authentication provider.
type AuthPort interface {
	CreateAccount(ctx context.Context, email, password string) (Credentials, error)
	SignIn(ctx context.Context, email, password string) (Credentials, error)
}

// DocumentStorePort is the realtime document store's per-document surface.
type DocumentStorePort interface {
	WriteDocument(ctx context.Context, path string, data any) error
	ReadDocument(ctx context.Context, path string) (Document, error)
	DeleteDocument(ctx context.Context, path string) error
	// SyncDocument subscribes to a single document. onChange is invoked
	// for the current value and every subsequent write until the returned
	// handle is cancelled.
	SyncDocument(ctx context.Context, path string, onChange func(Document)) (Handle, error)
}

// CollectionSyncPort is the realtime document store's collection surface.
type CollectionSyncPort interface {
	// SyncCollection subscribes to a filtered collection. onChange is
	// invoked with the full matching document set on every change.
	SyncCollection(ctx context.Context, q QueryDescriptor, onChange func([]Document)) (Handle, error)
}

// BlobStorePort resolves and retrieves static blobs (route geometry).
type BlobStorePort interface {
	ResolveDownloadURL(ctx context.Context, storagePath string) (string, error)
	// Download fetches the blob and returns the local file path it was
	// written to.
	Download(ctx context.Context, url string) (string, error)
}

// TrackingPort is the device's background location tracking subsystem.
// Location updates are emitted as bus events, not through this interface.
type TrackingPort interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// NavigationPort drives the navigation surface of the mobile shell.
type NavigationPort interface {
	Navigate(screen string, params map[string]string) error
}

// AnalyticsPort forwards identity and screen-view information to the
// analytics collaborator.
type AnalyticsPort interface {
	SetUserID(ctx context.Context, uid string) error
	SetCurrentScreen(ctx context.Context, screen, class string) error
}

// Screen names used by the navigation surface.
const (
	ScreenWelcome     = "welcome"
	ScreenEventsIndex = "eventsIndex"
	ScreenEvent       = "event"
	ScreenMap         = "map"
)
