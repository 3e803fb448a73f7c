// Waymark - Live Event Route Coordination Core
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package gateway is the client-facing edge: a chi HTTP server exposing a
// WebSocket endpoint over which mobile clients dispatch actions onto the
// bus and receive state updates and navigation commands back.
package gateway

import (
	"context"
	"sort"
	"sync"

	"github.com/proxium/waymark/internal/logging"
)

// Frame is the unit of WebSocket communication in both directions.
// Inbound frames carry an action name and payload; outbound frames carry
// an event type and data.
type Frame struct {
	Type    string `json:"type"`
	Action  string `json:"action,omitempty"`
	Payload any    `json:"payload,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Frame types.
const (
	FrameTypeAction          = "action"
	FrameTypeEvent           = "event"
	FrameTypeNavigate        = "navigate"
	FrameTypeNavigatorLoaded = "navigator_loaded"
	FrameTypeError           = "error"
	FrameTypePing            = "ping"
	FrameTypePong            = "pong"
)

// Hub maintains the set of active clients and broadcasts frames to them.
// It implements suture.Service.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Frame
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan Frame, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

// Serve runs the hub loop until ctx cancels, then closes every client.
// Lifecycle events take priority over broadcasts so client state is
// consistent before frames are fanned out.
func (h *Hub) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.register(client)
			continue
		case client := <-h.Unregister:
			h.unregister(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown()
			return ctx.Err()
		case client := <-h.Register:
			h.register(client)
		case client := <-h.Unregister:
			h.unregister(client)
		case frame := <-h.broadcast:
			h.broadcastToClients(frame)
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (h *Hub) String() string { return "gateway-hub" }

func (h *Hub) register(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()
	logging.Info().Int("total_clients", total).Msg("websocket client connected")
}

func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	total := len(h.clients)
	h.mu.Unlock()
	logging.Info().Int("total_clients", total).Msg("websocket client disconnected")
}

// Broadcast queues a frame for delivery to every connected client. Frames
// are dropped rather than blocking the caller when the queue is full.
func (h *Hub) Broadcast(frame Frame) {
	select {
	case h.broadcast <- frame:
	default:
		logging.Warn().Str("frame_type", frame.Type).Msg("broadcast channel full, dropping frame")
	}
}

// BroadcastEvent wraps data in an event frame and broadcasts it.
func (h *Hub) BroadcastEvent(event string, data any) {
	h.Broadcast(Frame{Type: FrameTypeEvent, Action: event, Data: data})
}

// broadcastToClients fans a frame out to all clients in ID order. Clients
// with a full send queue are dropped; a slow reader must not stall the
// hub or the other clients.
func (h *Hub) broadcastToClients(frame Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })

	var toRemove []*Client
	for _, client := range clients {
		select {
		case client.send <- frame:
		default:
			toRemove = append(toRemove, client)
		}
	}
	for _, client := range toRemove {
		close(client.send)
		delete(h.clients, client)
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })
	for _, client := range clients {
		close(client.send)
		delete(h.clients, client)
	}
	h.mu.Unlock()
	logging.Info().Str("component", "gateway-hub").Int("clients_closed", len(clients)).Msg("websocket hub stopped")
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
