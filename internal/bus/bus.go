// Waymark - Live Event Route Coordination Core
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package bus is Waymark's in-process action/event dispatch, built on
// Watermill's gochannel Pub/Sub. Every subscriber of a topic receives every
// message published to it, which is what makes a single logout publish act
// as a broadcast termination signal for all live supervisors.
package bus

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"

	"github.com/proxium/waymark/internal/logging"
)

// Bus wraps the gochannel Pub/Sub with JSON payload encoding.
type Bus struct {
	pubSub *gochannel.GoChannel
}

// New creates a bus. Messages are not persisted; a subscriber only sees
// messages published after it subscribed.
func New() *Bus {
	return &Bus{
		pubSub: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: 64},
			NewLoggerAdapter(logging.With().Str("component", "bus").Logger()),
		),
	}
}

// Publish encodes payload as JSON and publishes it on topic. A nil payload
// publishes an empty message (signal-only topics).
func (b *Bus) Publish(topic string, payload any) error {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal %s payload: %w", topic, err)
		}
	}
	return b.pubSub.Publish(topic, message.NewMessage(watermill.NewUUID(), body))
}

// Subscribe returns a channel of raw messages for topic. The channel is
// closed when ctx is cancelled.
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return b.pubSub.Subscribe(ctx, topic)
}

// Signal subscribes to topic and converts each delivery into a bare tick.
// The returned channel has a one-slot buffer, so the first occurrence is
// never lost even if no receiver is waiting yet; supervisors race on it.
func (b *Bus) Signal(ctx context.Context, topic string) (<-chan struct{}, error) {
	msgs, err := b.pubSub.Subscribe(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("subscribe signal %s: %w", topic, err)
	}
	ticks := make(chan struct{}, 1)
	go func() {
		for msg := range msgs {
			msg.Ack()
			select {
			case ticks <- struct{}{}:
			default:
			}
		}
	}()
	return ticks, nil
}

// Close shuts the Pub/Sub down, closing all subscriber channels.
func (b *Bus) Close() error {
	return b.pubSub.Close()
}

// Decode unmarshals a message payload into T.
func Decode[T any](msg *message.Message) (T, error) {
	var v T
	if len(msg.Payload) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(msg.Payload, &v); err != nil {
		return v, fmt.Errorf("decode payload: %w", err)
	}
	return v, nil
}
