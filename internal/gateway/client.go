// Waymark - Live Event Route Coordination Core
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import (
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/proxium/waymark/internal/bus"
	"github.com/proxium/waymark/internal/logging"
	"github.com/proxium/waymark/internal/state"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// dispatchableTopics is the allowlist of bus topics a client may publish
// to through action frames. Internal topics (user_set, credentials_set,
// current_set events) are not dispatchable from outside.
var dispatchableTopics = map[string]bool{
	bus.TopicCreateUser:        true,
	bus.TopicLogin:             true,
	bus.TopicLogout:            true,
	bus.TopicSyncUser:          true,
	bus.TopicFetchEvent:        true,
	bus.TopicFetchRoute:        true,
	bus.TopicSyncEvents:        true,
	bus.TopicStopSyncEvents:    true,
	bus.TopicSyncPositions:     true,
	bus.TopicStopSyncPositions: true,
	bus.TopicStartTracking:     true,
	bus.TopicStopTracking:      true,
	bus.TopicLocationUpdate:    true,
	bus.TopicScreenChanged:     true,
}

// authTopics are subject to per-client rate limiting; credential attempts
// are the one action an unauthenticated client can spam.
var authTopics = map[string]bool{
	bus.TopicCreateUser: true,
	bus.TopicLogin:      true,
}

// inboundFrame is the wire shape of client-to-server frames. The payload
// stays raw; the owning manager decodes it.
type inboundFrame struct {
	Type    string          `json:"type"`
	Action  string          `json:"action,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// clientIDCounter assigns stable IDs so broadcast order is deterministic.
var clientIDCounter atomic.Uint64

// Client is the middleman between a websocket connection and the hub.
type Client struct {
	id      uint64
	hub     *Hub
	conn    *websocket.Conn
	send    chan Frame
	bus     *bus.Bus
	state   *state.Store
	authLim *rate.Limiter
}

// NewClient wraps an upgraded connection.
func NewClient(hub *Hub, conn *websocket.Conn, b *bus.Bus, st *state.Store) *Client {
	return &Client{
		id:      clientIDCounter.Add(1),
		hub:     hub,
		conn:    conn,
		send:    make(chan Frame, 256),
		bus:     b,
		state:   st,
		authLim: rate.NewLimiter(rate.Every(2*time.Second), 5),
	}
}

// Start begins the read and write pumps.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var frame inboundFrame
		if err := c.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Error().Err(err).Msg("unexpected websocket close error")
			}
			break
		}
		c.handleFrame(frame)
	}
}

// handleFrame routes one inbound frame.
func (c *Client) handleFrame(frame inboundFrame) {
	switch frame.Type {
	case FrameTypePing:
		c.reply(Frame{Type: FrameTypePong})

	case FrameTypeNavigatorLoaded:
		// First client to report a mounted navigator opens the gate for
		// the whole process; repeats are no-ops.
		c.state.Gate().Open()
		if err := c.bus.Publish(bus.TopicNavigatorLoaded, nil); err != nil {
			logging.Err(err).Msg("navigator loaded publish failed")
		}

	case FrameTypeAction:
		c.dispatch(frame)

	default:
		c.reply(Frame{Type: FrameTypeError, Error: "unknown frame type: " + frame.Type})
	}
}

// dispatch publishes an allowed action frame onto the bus.
func (c *Client) dispatch(frame inboundFrame) {
	if !dispatchableTopics[frame.Action] {
		c.reply(Frame{Type: FrameTypeError, Error: "unknown action: " + frame.Action})
		return
	}
	if authTopics[frame.Action] && !c.authLim.Allow() {
		c.reply(Frame{Type: FrameTypeError, Error: "too many attempts, slow down"})
		return
	}
	var payload any
	if len(frame.Payload) > 0 {
		payload = frame.Payload
	}
	if err := c.bus.Publish(frame.Action, payload); err != nil {
		logging.Err(err).Str("action", frame.Action).Msg("action dispatch failed")
		c.reply(Frame{Type: FrameTypeError, Error: "dispatch failed"})
	}
}

// reply queues a frame for this client only, dropping it if the queue is
// full.
func (c *Client) reply(frame Frame) {
	select {
	case c.send <- frame:
	default:
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				return
			}
			if !ok {
				if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					logging.Error().Err(err).Msg("failed to write close message")
				}
				return
			}
			if err := c.conn.WriteJSON(frame); err != nil {
				logging.Error().Err(err).Msg("failed to write frame")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline for ping")
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
