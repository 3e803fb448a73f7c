// Waymark - Live Event Route Coordination Core
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package relay forwards device location samples to the shared position
// document and mirrors screen changes into analytics.
package relay

import (
	"context"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/proxium/waymark/internal/bus"
	"github.com/proxium/waymark/internal/logging"
	"github.com/proxium/waymark/internal/metrics"
	"github.com/proxium/waymark/internal/models"
	"github.com/proxium/waymark/internal/ports"
	"github.com/proxium/waymark/internal/state"
)

// Relay consumes location updates and screen changes from the bus. It
// implements suture.Service.
type Relay struct {
	bus       *bus.Bus
	state     *state.Store
	docs      ports.DocumentStorePort
	analytics ports.AnalyticsPort
}

// NewRelay wires the broadcast relay.
func NewRelay(b *bus.Bus, st *state.Store, docs ports.DocumentStorePort, analytics ports.AnalyticsPort) *Relay {
	return &Relay{bus: b, state: st, docs: docs, analytics: analytics}
}

// Serve subscribes the relay's watchers and blocks until ctx cancels.
func (r *Relay) Serve(ctx context.Context) error {
	watchers := []struct {
		topic   string
		handler bus.Handler
	}{
		{bus.TopicLocationUpdate, r.handleLocation},
		{bus.TopicScreenChanged, r.handleScreenChanged},
	}

	var wg sync.WaitGroup
	for _, w := range watchers {
		msgs, err := r.bus.Subscribe(ctx, w.topic)
		if err != nil {
			return err
		}
		wg.Add(1)
		go func(handler bus.Handler) {
			defer wg.Done()
			bus.HandleEvery(ctx, msgs, handler)
		}(w.handler)
	}
	wg.Wait()
	return ctx.Err()
}

// String implements fmt.Stringer for supervisor logging.
func (r *Relay) String() string { return "broadcast-relay" }

// handleLocation writes the sample as the user's shared position document.
// Samples arriving without a full session and route context are dropped,
// not queued: a stale location published after logout or before route
// activation must never leak into the shared store.
func (r *Relay) handleLocation(ctx context.Context, msg *message.Message) {
	loc, err := bus.Decode[models.Location](msg)
	if err != nil {
		logging.Err(err).Str("flow", "broadcastLocation").Msg("bad payload")
		metrics.LocationDropped()
		return
	}

	uid := r.state.UID()
	eventID := r.state.CurrentEventID()
	routeID := r.state.CurrentRouteID()
	if uid == "" || eventID == "" || routeID == "" {
		logging.Debug().Str("flow", "broadcastLocation").Msg("no active session and route, sample dropped")
		metrics.LocationDropped()
		return
	}
	loc.EventID = eventID
	loc.RouteID = routeID

	if err := r.docs.WriteDocument(ctx, "currentPositions/"+uid, loc); err != nil {
		logging.Err(err).Str("flow", "broadcastLocation").Str("uid", uid).Msg("position write failed")
		metrics.LocationDropped()
		return
	}
	metrics.LocationForwarded()
}

// handleScreenChanged mirrors navigation state into analytics.
func (r *Relay) handleScreenChanged(ctx context.Context, msg *message.Message) {
	p, err := bus.Decode[bus.ScreenChangedPayload](msg)
	if err != nil {
		logging.Err(err).Str("flow", "setCurrentNavigationState").Msg("bad payload")
		return
	}
	if p.Screen == "" {
		return
	}
	if err := r.analytics.SetCurrentScreen(ctx, p.Screen, "App"); err != nil {
		logging.Err(err).Str("flow", "setCurrentNavigationState").Str("screen", p.Screen).Msg("analytics update failed")
	}
}
