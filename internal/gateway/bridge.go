// Waymark - Live Event Route Coordination Core
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import (
	"context"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/proxium/waymark/internal/bus"
)

// observableTopics are the bus events mirrored out to connected clients.
// Credentials are deliberately not on the list; tokens never leave the
// session layer over the broadcast channel.
var observableTopics = []string{
	bus.TopicUserSet,
	bus.TopicProfileUpdated,
	bus.TopicCurrentEventSet,
	bus.TopicCurrentRouteSet,
	bus.TopicPositionsSet,
	bus.TopicEventsCatalogSet,
}

// Bridge mirrors observable bus events to the hub as event frames. It
// implements suture.Service.
type Bridge struct {
	bus *bus.Bus
	hub *Hub
}

// NewBridge wires the bus-to-socket bridge.
func NewBridge(b *bus.Bus, hub *Hub) *Bridge {
	return &Bridge{bus: b, hub: hub}
}

// Serve subscribes every observable topic and blocks until ctx cancels.
func (b *Bridge) Serve(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, topic := range observableTopics {
		msgs, err := b.bus.Subscribe(ctx, topic)
		if err != nil {
			return err
		}
		wg.Add(1)
		go func(topic string, msgs <-chan *message.Message) {
			defer wg.Done()
			for msg := range msgs {
				b.hub.BroadcastEvent(topic, json.RawMessage(msg.Payload))
				msg.Ack()
			}
		}(topic, msgs)
	}
	wg.Wait()
	return ctx.Err()
}

// String implements fmt.Stringer for supervisor logging.
func (b *Bridge) String() string { return "gateway-bridge" }
