// Waymark - Live Event Route Coordination Core
// SPDX-License-Identifier: AGPL-3.0-or-later

package bus

import (
	"github.com/proxium/waymark/internal/models"
)

// Topics carried on the in-process bus. Request topics enter the core from
// the gateway; set topics are the core's observable outputs; stop topics
// are termination signals raced by subscription supervisors.
const (
	// Session lifecycle.
	TopicCreateUser     = "session.create"
	TopicLogin          = "session.login"
	TopicLogout         = "session.logout"
	TopicCredentialsSet = "session.credentials_set"
	TopicUserSet        = "session.user_set"
	TopicSyncUser       = "session.sync_user"
	TopicProfileUpdated = "profile.updated"

	// Navigation surface.
	TopicNavigatorLoaded = "nav.loaded"
	TopicScreenChanged   = "nav.screen_changed"

	// Current event / route activation.
	TopicFetchEvent      = "event.fetch"
	TopicCurrentEventSet = "event.current_set"
	TopicFetchRoute      = "route.fetch"
	TopicCurrentRouteSet = "route.current_set"

	// Realtime collection sync.
	TopicSyncPositions     = "positions.sync"
	TopicStopSyncPositions = "positions.stop_sync"
	TopicPositionsSet      = "positions.current_set"
	TopicSyncEvents        = "events.sync"
	TopicStopSyncEvents    = "events.stop_sync"
	TopicEventsCatalogSet  = "events.catalog_set"

	// Background tracking.
	TopicStartTracking  = "tracking.start"
	TopicStopTracking   = "tracking.stop"
	TopicLocationUpdate = "location.update"
)

// CreateUserPayload requests account creation.
type CreateUserPayload struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// LoginPayload requests sign-in with existing credentials.
type LoginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserSetPayload announces the authenticated user. Profile is present on
// account creation and nil on plain login (the profile arrives through the
// profile-sync subscription).
type UserSetPayload struct {
	UID     string          `json:"uid"`
	Profile *models.Profile `json:"profile,omitempty"`
}

// SyncUserPayload requests the profile-sync subscription for uid.
type SyncUserPayload struct {
	UID string `json:"uid"`
}

// ScreenChangedPayload reports a navigation-state change.
type ScreenChangedPayload struct {
	Screen string            `json:"screen"`
	Params map[string]string `json:"params,omitempty"`
}

// FetchEventPayload requests activation of an event.
type FetchEventPayload struct {
	EventID string `json:"eventId"`
}

// FetchRoutePayload requests activation of a route within an event.
type FetchRoutePayload struct {
	UID     string `json:"uid"`
	EventID string `json:"eventId"`
	RouteID string `json:"routeId"`
}

// SyncPositionsPayload requests the positions-sync subscription for the
// event+route pair.
type SyncPositionsPayload struct {
	EventID string `json:"eventId"`
	RouteID string `json:"routeId"`
}

// StartTrackingPayload requests background tracking for the broadcast
// target triple.
type StartTrackingPayload struct {
	UID     string `json:"uid"`
	EventID string `json:"eventId"`
	RouteID string `json:"routeId"`
}
