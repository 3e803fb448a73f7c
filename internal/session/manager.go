// Waymark - Live Event Route Coordination Core
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session owns the authenticated-session state machine. The
// manager reacts to create-account, login and logout requests, propagates
// identity downstream, supervises the profile-sync subscription, and makes
// the initial navigation decision once the navigation surface is ready.
package session

import (
	"context"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/proxium/waymark/internal/bus"
	"github.com/proxium/waymark/internal/logging"
	"github.com/proxium/waymark/internal/metrics"
	"github.com/proxium/waymark/internal/models"
	"github.com/proxium/waymark/internal/ports"
	"github.com/proxium/waymark/internal/state"
	"github.com/proxium/waymark/internal/supervisor"
)

// KeyProfileSync is the subscription key of the user-profile document sync.
const KeyProfileSync = "profile-sync"

// Manager drives the session lifecycle. It implements suture.Service.
type Manager struct {
	bus       *bus.Bus
	state     *state.Store
	registry  *supervisor.Registry
	auth      ports.AuthPort
	docs      ports.DocumentStorePort
	nav       ports.NavigationPort
	analytics ports.AnalyticsPort
}

// NewManager wires the session manager.
func NewManager(
	b *bus.Bus,
	st *state.Store,
	registry *supervisor.Registry,
	auth ports.AuthPort,
	docs ports.DocumentStorePort,
	nav ports.NavigationPort,
	analytics ports.AnalyticsPort,
) *Manager {
	return &Manager{
		bus:       b,
		state:     st,
		registry:  registry,
		auth:      auth,
		docs:      docs,
		nav:       nav,
		analytics: analytics,
	}
}

// Serve subscribes the manager's watchers and blocks until ctx cancels.
func (m *Manager) Serve(ctx context.Context) error {
	watchers := []struct {
		topic    string
		dispatch func(context.Context, <-chan *message.Message, bus.Handler)
		handler  bus.Handler
	}{
		{bus.TopicCreateUser, bus.HandleLatest, m.handleCreateUser},
		{bus.TopicLogin, bus.HandleLatest, m.handleLogin},
		{bus.TopicLogout, bus.HandleLeading, m.handleLogout},
		{bus.TopicUserSet, bus.HandleLeading, m.handleUserSet},
		{bus.TopicSyncUser, bus.HandleLeading, m.handleSyncUser},
	}

	var wg sync.WaitGroup
	for _, w := range watchers {
		msgs, err := m.bus.Subscribe(ctx, w.topic)
		if err != nil {
			return err
		}
		wg.Add(1)
		go func(dispatch func(context.Context, <-chan *message.Message, bus.Handler), handler bus.Handler) {
			defer wg.Done()
			dispatch(ctx, msgs, handler)
		}(w.dispatch, w.handler)
	}
	wg.Wait()
	return ctx.Err()
}

// String implements fmt.Stringer for supervisor logging.
func (m *Manager) String() string { return "session-manager" }

// handleCreateUser creates provider credentials, persists the initial
// profile document, and announces the authenticated user. The profile is
// written only after credential creation succeeds, so no profile document
// ever exists without an owning credential. Any failure leaves the session
// anonymous; the user must retry explicitly.
func (m *Manager) handleCreateUser(ctx context.Context, msg *message.Message) {
	p, err := bus.Decode[bus.CreateUserPayload](msg)
	if err != nil {
		logging.Err(err).Str("flow", "createUser").Msg("bad payload")
		return
	}

	m.transition(state.PhaseAuthenticating)
	creds, err := m.auth.CreateAccount(ctx, p.Email, p.Password)
	if err != nil {
		logging.Err(err).Str("flow", "createUser").Msg("account creation failed")
		m.transition(state.PhaseAnonymous)
		return
	}
	m.state.SetCredentials(creds)
	m.publish(bus.TopicCredentialsSet, creds, "createUser")

	profile := models.Profile{Email: p.Email, FirstName: p.FirstName, LastName: p.LastName}
	if err := m.docs.WriteDocument(ctx, "users/"+creds.UID, profile); err != nil {
		logging.Err(err).Str("flow", "createUser").Str("uid", creds.UID).Msg("profile write failed")
		m.state.ClearSession()
		m.transition(state.PhaseAnonymous)
		return
	}
	m.publish(bus.TopicUserSet, bus.UserSetPayload{UID: creds.UID, Profile: &profile}, "createUser")
}

// handleLogin verifies credentials and announces the user. Failures are
// terminal for the attempt; there is no automatic retry.
func (m *Manager) handleLogin(ctx context.Context, msg *message.Message) {
	p, err := bus.Decode[bus.LoginPayload](msg)
	if err != nil {
		logging.Err(err).Str("flow", "login").Msg("bad payload")
		return
	}

	m.transition(state.PhaseAuthenticating)
	creds, err := m.auth.SignIn(ctx, p.Email, p.Password)
	if err != nil {
		logging.Err(err).Str("flow", "login").Msg("sign-in failed")
		m.transition(state.PhaseAnonymous)
		return
	}
	m.state.SetCredentials(creds)
	m.publish(bus.TopicCredentialsSet, creds, "login")
	m.publish(bus.TopicUserSet, bus.UserSetPayload{UID: creds.UID}, "login")
}

// handleUserSet runs session bootstrap after authentication: starts the
// profile sync, propagates identity to analytics, waits for the navigation
// surface if it has not booted yet, then resolves the initial screen. If
// the session already points at an event+route, the user lands on the map
// and tracking starts; otherwise they land on the event list.
func (m *Manager) handleUserSet(ctx context.Context, msg *message.Message) {
	p, err := bus.Decode[bus.UserSetPayload](msg)
	if err != nil {
		logging.Err(err).Str("flow", "setUser").Msg("bad payload")
		return
	}

	if p.Profile != nil {
		m.state.SetProfile(*p.Profile)
	}
	m.transition(state.PhaseAuthenticated)
	m.publish(bus.TopicSyncUser, bus.SyncUserPayload{UID: p.UID}, "setUser")

	if err := m.analytics.SetUserID(ctx, p.UID); err != nil {
		logging.Err(err).Str("flow", "setUser").Msg("identity propagation failed")
		return
	}

	gate := m.state.Gate()
	if !gate.IsOpen() {
		select {
		case <-gate.Ready():
		case <-ctx.Done():
			return
		}
	}

	eventID, routeID := m.state.CurrentEventID(), m.state.CurrentRouteID()
	if eventID != "" && routeID != "" {
		if err := m.nav.Navigate(ports.ScreenMap, nil); err != nil {
			logging.Err(err).Str("flow", "setUser").Msg("navigation failed")
			return
		}
		m.publish(bus.TopicStartTracking, bus.StartTrackingPayload{
			UID: p.UID, EventID: eventID, RouteID: routeID,
		}, "setUser")
		return
	}
	if err := m.nav.Navigate(ports.ScreenEventsIndex, nil); err != nil {
		logging.Err(err).Str("flow", "setUser").Msg("navigation failed")
	}
}

// handleSyncUser supervises the profile-sync subscription, terminated only
// by logout. Profile changes flow into state and out as profile-updated.
// Dispatch drops sync requests arriving while one is live: queueing them
// would start a fresh subscription after logout already tore this one down.
func (m *Manager) handleSyncUser(ctx context.Context, msg *message.Message) {
	p, err := bus.Decode[bus.SyncUserPayload](msg)
	if err != nil {
		logging.Err(err).Str("flow", "syncUser").Msg("bad payload")
		return
	}

	// The signal subscription lives only as long as this supervise call.
	sigCtx, cancelSig := context.WithCancel(ctx)
	defer cancelSig()
	logoutSig, err := m.bus.Signal(sigCtx, bus.TopicLogout)
	if err != nil {
		logging.Err(err).Str("flow", "syncUser").Msg("logout signal subscription failed")
		return
	}

	start := func(ctx context.Context) (ports.Handle, error) {
		return m.docs.SyncDocument(ctx, "users/"+p.UID, func(doc ports.Document) {
			var profile models.Profile
			if err := json.Unmarshal(doc.Data, &profile); err != nil {
				logging.Err(err).Str("flow", "syncUser").Str("uid", p.UID).Msg("bad profile document")
				return
			}
			m.state.SetProfile(profile)
			m.publish(bus.TopicProfileUpdated, profile, "syncUser")
		})
	}

	// Supervise logs start failures itself; nothing further to do here.
	_ = m.registry.Supervise(ctx, KeyProfileSync, start, logoutSig)
}

// handleLogout navigates to the entry screen and destroys the session.
// The logout topic itself is the broadcast termination signal: every live
// supervisor holds its own subscription to it and self-terminates, so the
// manager never cancels them one by one. Duplicate logout triggers while
// one is processing are coalesced by the dispatch policy.
func (m *Manager) handleLogout(_ context.Context, _ *message.Message) {
	m.transition(state.PhaseLoggingOut)
	if err := m.nav.Navigate(ports.ScreenWelcome, nil); err != nil {
		logging.Err(err).Str("flow", "logout").Msg("navigation failed")
	}
	m.state.ClearSession()
	metrics.SessionTransition(string(state.PhaseAnonymous))
}

func (m *Manager) transition(phase state.SessionPhase) {
	m.state.SetSessionPhase(phase)
	metrics.SessionTransition(string(phase))
}

func (m *Manager) publish(topic string, payload any, flow string) {
	if err := m.bus.Publish(topic, payload); err != nil {
		logging.Err(err).Str("flow", flow).Str("topic", topic).Msg("publish failed")
	}
}
