// Waymark - Live Event Route Coordination Core
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package models defines the domain types shared across Waymark's
// coordination layer: user profiles, events, routes and device locations.
package models

import "time"

// Profile is the user profile document stored under users/{uid}.
type Profile struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// Event is a live event from the events catalog.
type Event struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	StartsAt    time.Time `json:"startsAt,omitempty"`
}

// Route is a predefined route within an event. RouteData is populated only
// after route activation completes; a Route read straight from the document
// store carries just the metadata and the storage path of its geometry blob.
type Route struct {
	ID                   string     `json:"id"`
	EventID              string     `json:"eventId,omitempty"`
	Name                 string     `json:"name"`
	RouteDataStoragePath string     `json:"routeDataStoragePath"`
	RouteData            *RouteData `json:"routeData,omitempty"`
}

// RouteData is the static route geometry payload.
type RouteData struct {
	Name      string     `json:"name,omitempty"`
	Waypoints []Waypoint `json:"waypoints"`
}

// Waypoint is a single point of a route's geometry.
type Waypoint struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
	Elevation float64 `json:"elevation,omitempty"`
}

// Location is a device location update. EventID and RouteID are empty on
// the raw update and attached by the broadcast relay before the update is
// published as the user's current position.
type Location struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Altitude  float64   `json:"altitude,omitempty"`
	Speed     float64   `json:"speed,omitempty"`
	Heading   float64   `json:"heading,omitempty"`
	Accuracy  float64   `json:"accuracy,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	EventID string `json:"eventId,omitempty"`
	RouteID string `json:"routeId,omitempty"`
}

// Position is a synced current-position document; ID is the owning user's
// uid (the document key in the currentPositions collection).
type Position struct {
	ID string `json:"id"`
	Location
}
