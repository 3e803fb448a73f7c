// Waymark - Live Event Route Coordination Core
// SPDX-License-Identifier: AGPL-3.0-or-later

package bus

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill/message"
)

// Handler processes a single decoded-on-demand bus message.
type Handler func(ctx context.Context, msg *message.Message)

// HandleEvery processes every message in arrival order, one at a time.
// It returns when ctx is cancelled or the channel closes.
func HandleEvery(ctx context.Context, msgs <-chan *message.Message, handler Handler) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			handler(ctx, msg)
			msg.Ack()
		}
	}
}

// HandleLeading processes the first message and coalesces the rest: while
// a handler invocation is in flight, further messages are acknowledged and
// dropped. This mirrors the dispatch policy the tracking and logout flows
// require, where a duplicate trigger during processing must be ignored
// rather than queued.
func HandleLeading(ctx context.Context, msgs <-chan *message.Message, handler Handler) {
	var busy atomic.Bool
	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			if !busy.CompareAndSwap(false, true) {
				msg.Ack()
				continue
			}
			wg.Add(1)
			go func(m *message.Message) {
				defer wg.Done()
				defer busy.Store(false)
				handler(ctx, m)
				m.Ack()
			}(msg)
		}
	}
}

// HandleLatest cancels the in-flight handler invocation, if any, and starts
// one for the newest message. The handler observes cancellation through
// its context.
func HandleLatest(ctx context.Context, msgs <-chan *message.Message, handler Handler) {
	var cancel context.CancelFunc
	var wg sync.WaitGroup
	defer func() {
		if cancel != nil {
			cancel()
		}
		wg.Wait()
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			if cancel != nil {
				cancel()
			}
			var hctx context.Context
			hctx, cancel = context.WithCancel(ctx)
			wg.Add(1)
			go func(c context.Context, m *message.Message) {
				defer wg.Done()
				handler(c, m)
				m.Ack()
			}(hctx, msg)
		}
	}
}
