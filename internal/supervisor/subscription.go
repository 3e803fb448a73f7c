// Waymark - Live Event Route Coordination Core
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package supervisor contains Waymark's supervision layer: the suture tree
// the long-lived managers run under, and the subscription registry that
// supervises individual cancellable background subscriptions against
// races of termination signals.
package supervisor

import (
	"context"
	"sync"

	"github.com/proxium/waymark/internal/logging"
	"github.com/proxium/waymark/internal/metrics"
	"github.com/proxium/waymark/internal/ports"
)

// StartFunc starts a background subscription task and returns its handle.
type StartFunc func(ctx context.Context) (ports.Handle, error)

// Registry supervises background subscriptions keyed by a logical
// subscription name ("profile-sync", "positions-sync", ...). It guarantees
// at most one live handle per key: a Supervise call for a live key cancels
// the previous instance and waits for it to fully stop before starting the
// new task, so two subscriptions for the same key never overlap.
type Registry struct {
	mu   sync.Mutex
	live map[string]*entry
}

type entry struct {
	displaceOnce sync.Once
	displaced    chan struct{} // closed when a newer Supervise takes the key
	done         chan struct{} // closed when this instance has fully stopped
}

func (e *entry) displace() {
	e.displaceOnce.Do(func() { close(e.displaced) })
}

// NewRegistry creates an empty subscription registry.
func NewRegistry() *Registry {
	return &Registry{live: make(map[string]*entry)}
}

// Supervise starts the task and blocks until the first of: one of the
// termination signals fires, ctx is cancelled, the task completes on its
// own, or a newer Supervise call displaces this key. Whichever occurs
// first, the task's handle is cancelled before Supervise returns, and the
// cancellation is synchronous: once Supervise has returned, the underlying
// subscription is released and delivers no further changes.
//
// If the task fails to start, the failure is logged and Supervise returns
// without registering a handle; there is no retry, a fresh trigger of the
// owning action is required.
func (r *Registry) Supervise(ctx context.Context, key string, start StartFunc, signals ...<-chan struct{}) error {
	r.mu.Lock()
	// Re-check after every wait: a concurrent Supervise for the same key
	// may have registered while this one was waiting on the previous
	// instance, and it too must be displaced before taking the key.
	for {
		prev, ok := r.live[key]
		if !ok {
			break
		}
		r.mu.Unlock()
		prev.displace()
		<-prev.done
		r.mu.Lock()
	}
	e := &entry{displaced: make(chan struct{}), done: make(chan struct{})}
	r.live[key] = e
	r.mu.Unlock()

	defer close(e.done)
	defer r.remove(key, e)

	handle, err := start(ctx)
	if err != nil {
		metrics.SubscriptionStartFailed(key)
		logging.Err(err).Str("subscription", key).Msg("subscription task failed to start")
		return err
	}
	metrics.SubscriptionStarted(key)
	logging.Debug().Str("subscription", key).Msg("subscription started")

	// Funnel the termination signals into a single race: the first one to
	// fire wins, the rest are abandoned without side effects.
	fired := make(chan struct{})
	var once sync.Once
	raceDone := make(chan struct{})
	defer close(raceDone)
	for _, sig := range signals {
		go func(c <-chan struct{}) {
			select {
			case <-c:
				once.Do(func() { close(fired) })
			case <-raceDone:
			}
		}(sig)
	}

	cause := ""
	select {
	case <-fired:
		cause = "signal"
	case <-e.displaced:
		cause = "replaced"
	case <-handle.Done():
		cause = "completed"
	case <-ctx.Done():
		cause = "shutdown"
	}

	handle.Cancel()
	metrics.SubscriptionCancelled(key, cause)
	logging.Debug().Str("subscription", key).Str("cause", cause).Msg("subscription cancelled")
	return nil
}

// Live reports whether a subscription is currently registered under key.
func (r *Registry) Live(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.live[key]
	return ok
}

// LiveCount returns the number of live subscriptions.
func (r *Registry) LiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}

func (r *Registry) remove(key string, e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.live[key] == e {
		delete(r.live, key)
	}
}
