// Waymark - Live Event Route Coordination Core
// SPDX-License-Identifier: AGPL-3.0-or-later

package tracking

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/proxium/waymark/internal/bus"
	"github.com/proxium/waymark/internal/logging"
	"github.com/proxium/waymark/internal/models"
	"github.com/proxium/waymark/internal/ports"
)

// SimTracker is a TrackingPort emitting synthetic location updates on the
// bus at a fixed cadence. It stands in for the OS geolocation bridge so
// the whole coordination core runs and tests without device hardware.
type SimTracker struct {
	bus      *bus.Bus
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	lat, lng float64
}

// NewSimTracker creates a simulated tracker.
func NewSimTracker(b *bus.Bus, interval time.Duration) *SimTracker {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &SimTracker{
		bus:      b,
		interval: interval,
		lat:      47.3769,
		lng:      8.5417,
	}
}

// Start begins emitting location updates. Starting an already-running
// tracker is an error; the tracking manager coalesces duplicate starts
// before reaching this point.
func (t *SimTracker) Start(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		return &ports.SensorError{Op: "start", Err: errors.New("already running")}
	}

	runCtx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.done = make(chan struct{})
	go t.run(runCtx, t.done)
	return nil
}

// Stop halts emission. No update is published after Stop returns.
// Stopping an idle tracker is a no-op.
func (t *SimTracker) Stop(ctx context.Context) error {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel, t.done = nil, nil
	t.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return &ports.SensorError{Op: "stop", Err: ctx.Err()}
	}
}

func (t *SimTracker) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Small random walk around the previous point.
			t.lat += (rand.Float64() - 0.5) / 2000
			t.lng += (rand.Float64() - 0.5) / 2000
			loc := models.Location{
				Latitude:  t.lat,
				Longitude: t.lng,
				Speed:     rand.Float64() * 5,
				Accuracy:  5 + rand.Float64()*10,
				Timestamp: time.Now().UTC(),
			}
			if err := t.bus.Publish(bus.TopicLocationUpdate, loc); err != nil {
				logging.Err(err).Msg("location publish failed")
			}
		}
	}
}
