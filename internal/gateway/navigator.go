// Waymark - Live Event Route Coordination Core
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import (
	"errors"

	"github.com/proxium/waymark/internal/bus"
	"github.com/proxium/waymark/internal/logging"
	"github.com/proxium/waymark/internal/state"
)

// ErrNavigatorNotReady is returned when a navigation command is issued
// before any client has reported a mounted navigator.
var ErrNavigatorNotReady = errors.New("navigator not ready")

// Navigator pushes navigation commands to connected clients. It is the
// gateway's implementation of the navigation port.
type Navigator struct {
	hub   *Hub
	bus   *bus.Bus
	state *state.Store
}

// NewNavigator wires the push navigator.
func NewNavigator(hub *Hub, b *bus.Bus, st *state.Store) *Navigator {
	return &Navigator{hub: hub, bus: b, state: st}
}

// Navigate broadcasts a navigate frame and records the screen change.
// It fails if no navigator has mounted yet; callers that must not race
// the navigator wait on the gate before navigating.
func (n *Navigator) Navigate(screen string, params map[string]string) error {
	if !n.state.Gate().IsOpen() {
		return ErrNavigatorNotReady
	}
	n.hub.Broadcast(Frame{Type: FrameTypeNavigate, Data: navigateData{Screen: screen, Params: params}})
	if err := n.bus.Publish(bus.TopicScreenChanged, bus.ScreenChangedPayload{Screen: screen}); err != nil {
		logging.Err(err).Str("screen", screen).Msg("screen change publish failed")
	}
	return nil
}

type navigateData struct {
	Screen string            `json:"screen"`
	Params map[string]string `json:"params,omitempty"`
}
