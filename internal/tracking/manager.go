// Waymark - Live Event Route Coordination Core
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tracking owns the background-tracking state machine. Tracking is
// a supervised subscription whose "resource" is the device sensor task:
// starting acquires the tracking capability, and the supervisor races an
// explicit stop request against logout to tear it down exactly once.
package tracking

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/proxium/waymark/internal/bus"
	"github.com/proxium/waymark/internal/logging"
	"github.com/proxium/waymark/internal/metrics"
	"github.com/proxium/waymark/internal/ports"
	"github.com/proxium/waymark/internal/state"
	"github.com/proxium/waymark/internal/supervisor"
)

// KeyTracking is the tracking task's subscription key.
const KeyTracking = "tracking"

// sensorStopTimeout bounds sensor teardown during shutdown, when the
// serving context is already cancelled.
const sensorStopTimeout = 10 * time.Second

// Manager drives the tracking lifecycle. It implements suture.Service.
type Manager struct {
	bus      *bus.Bus
	state    *state.Store
	registry *supervisor.Registry
	tracker  ports.TrackingPort
	docs     ports.DocumentStorePort
}

// NewManager wires the tracking manager.
func NewManager(
	b *bus.Bus,
	st *state.Store,
	registry *supervisor.Registry,
	tracker ports.TrackingPort,
	docs ports.DocumentStorePort,
) *Manager {
	return &Manager{bus: b, state: st, registry: registry, tracker: tracker, docs: docs}
}

// Serve watches for start-tracking requests until ctx cancels.
func (m *Manager) Serve(ctx context.Context) error {
	msgs, err := m.bus.Subscribe(ctx, bus.TopicStartTracking)
	if err != nil {
		return err
	}
	bus.HandleLeading(ctx, msgs, m.handleStart)
	return ctx.Err()
}

// String implements fmt.Stringer for supervisor logging.
func (m *Manager) String() string { return "tracking-manager" }

// handleStart activates tracking for the broadcast target triple and
// blocks until stop or logout fires, whichever comes first. A start while
// already active is coalesced, and a start without a complete triple or
// whose uid is not the session's is refused: tracking may only be active
// while a session exists, broadcasts only that session's position, and
// both event and route must be set.
func (m *Manager) handleStart(ctx context.Context, msg *message.Message) {
	p, err := bus.Decode[bus.StartTrackingPayload](msg)
	if err != nil {
		logging.Err(err).Str("flow", "startTracking").Msg("bad payload")
		return
	}
	if m.state.Tracking().Phase == state.TrackingActive {
		logging.Debug().Str("flow", "startTracking").Msg("already active, start coalesced")
		return
	}
	uid := m.state.UID()
	if uid == "" || p.UID != uid || p.EventID == "" || p.RouteID == "" {
		logging.Warn().Str("flow", "startTracking").
			Str("eventId", p.EventID).Str("routeId", p.RouteID).
			Msg("refusing to track without a matching session, event and route")
		return
	}

	// Subscribe both termination signals before the sensor starts so a
	// stop or logout arriving during startup cannot be missed. The
	// subscriptions live only as long as this supervise call.
	sigCtx, cancelSig := context.WithCancel(ctx)
	defer cancelSig()
	stopSig, err := m.bus.Signal(sigCtx, bus.TopicStopTracking)
	if err != nil {
		logging.Err(err).Str("flow", "startTracking").Msg("stop signal subscription failed")
		return
	}
	logoutSig, err := m.bus.Signal(sigCtx, bus.TopicLogout)
	if err != nil {
		logging.Err(err).Str("flow", "startTracking").Msg("logout signal subscription failed")
		return
	}

	started := false
	start := func(ctx context.Context) (ports.Handle, error) {
		if err := m.tracker.Start(ctx); err != nil {
			return nil, err
		}
		started = true
		m.state.SetTrackingActive(p.UID, p.EventID, p.RouteID)
		metrics.TrackingActive(true)
		logging.Info().Str("eventId", p.EventID).Str("routeId", p.RouteID).Msg("tracking started")
		return ports.NewFuncHandle(func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), sensorStopTimeout)
			defer cancel()
			if err := m.tracker.Stop(stopCtx); err != nil {
				logging.Err(err).Str("flow", "startTracking").Msg("sensor stop failed")
			}
		}), nil
	}

	_ = m.registry.Supervise(ctx, KeyTracking, start, stopSig, logoutSig)
	if !started {
		return
	}

	// Sensor is stopped; clean up the published position. The deletion is
	// best-effort and never blocks the transition back to idle.
	cleanupCtx, cancel := context.WithTimeout(context.Background(), sensorStopTimeout)
	defer cancel()
	if err := m.docs.DeleteDocument(cleanupCtx, "currentPositions/"+p.UID); err != nil {
		logging.Warn().Err(err).Str("uid", p.UID).Msg("position record cleanup failed")
	}
	m.state.SetTrackingIdle()
	metrics.TrackingActive(false)
	logging.Info().Str("eventId", p.EventID).Str("routeId", p.RouteID).Msg("tracking stopped")
}
