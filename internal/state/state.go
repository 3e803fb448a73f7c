// Waymark - Live Event Route Coordination Core
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package state holds the process-wide coordination state: the session,
// the current event and route, and the tracking state. Each value is
// mutated only by its owning manager through the entry points here; every
// other component reads through the selector methods and never holds a
// mutable reference.
package state

import (
	"sync"

	"github.com/proxium/waymark/internal/models"
	"github.com/proxium/waymark/internal/ports"
)

// SessionPhase is the session lifecycle state.
type SessionPhase string

const (
	PhaseAnonymous      SessionPhase = "anonymous"
	PhaseAuthenticating SessionPhase = "authenticating"
	PhaseAuthenticated  SessionPhase = "authenticated"
	PhaseLoggingOut     SessionPhase = "logging_out"
)

// TrackingPhase is the background-tracking lifecycle state.
type TrackingPhase string

const (
	TrackingIdle   TrackingPhase = "idle"
	TrackingActive TrackingPhase = "active"
)

// Session is the authenticated identity and its lifecycle state.
type Session struct {
	Phase       SessionPhase
	UID         string
	Credentials ports.Credentials
	Profile     models.Profile
}

// Tracking is the tracking state plus the live broadcast target triple.
type Tracking struct {
	Phase   TrackingPhase
	UID     string
	EventID string
	RouteID string
}

// Store is the process-wide state singleton.
type Store struct {
	mu           sync.RWMutex
	session      Session
	currentEvent models.Event
	currentRoute models.Route
	tracking     Tracking
	gate         *NavigatorGate
}

// NewStore creates an empty store with a closed navigator gate.
func NewStore() *Store {
	return &Store{
		session:  Session{Phase: PhaseAnonymous},
		tracking: Tracking{Phase: TrackingIdle},
		gate:     newNavigatorGate(),
	}
}

// Gate returns the navigator readiness gate.
func (s *Store) Gate() *NavigatorGate { return s.gate }

// Session returns a copy of the current session.
func (s *Store) Session() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// UID returns the authenticated user id, or "" when anonymous.
func (s *Store) UID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.UID
}

// SetSessionPhase transitions the session lifecycle state. Owned by the
// session manager.
func (s *Store) SetSessionPhase(phase SessionPhase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session.Phase = phase
}

// SetCredentials records the credential handle returned by the auth
// provider. Owned by the session manager.
func (s *Store) SetCredentials(creds ports.Credentials) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session.Credentials = creds
	s.session.UID = creds.UID
}

// SetProfile records the synced user profile. Owned by the session manager.
func (s *Store) SetProfile(p models.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session.Profile = p
}

// ClearSession destroys the session on logout. The current event and route
// survive logout so a later login can resume where the user left off.
func (s *Store) ClearSession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = Session{Phase: PhaseAnonymous}
}

// CurrentEvent returns a copy of the current event.
func (s *Store) CurrentEvent() models.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentEvent
}

// CurrentEventID returns the current event id, or "".
func (s *Store) CurrentEventID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentEvent.ID
}

// SetCurrentEvent publishes a new current event. Owned by the route
// activation coordinator.
func (s *Store) SetCurrentEvent(e models.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentEvent = e
}

// CurrentRoute returns a copy of the current route.
func (s *Store) CurrentRoute() models.Route {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentRoute
}

// CurrentRouteID returns the current route id, or "".
func (s *Store) CurrentRouteID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentRoute.ID
}

// SetCurrentRoute publishes a fully hydrated route as the current route.
// Owned by the route activation coordinator, which only calls it after the
// geometry payload has been attached; a failed activation never reaches
// this point, leaving the previous route in place.
func (s *Store) SetCurrentRoute(r models.Route) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentRoute = r
}

// Tracking returns a copy of the tracking state.
func (s *Store) Tracking() Tracking {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tracking
}

// SetTrackingActive records the live broadcast target. Owned by the
// tracking manager.
func (s *Store) SetTrackingActive(uid, eventID, routeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracking = Tracking{Phase: TrackingActive, UID: uid, EventID: eventID, RouteID: routeID}
}

// SetTrackingIdle clears the tracking state. Owned by the tracking manager.
func (s *Store) SetTrackingIdle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracking = Tracking{Phase: TrackingIdle}
}
