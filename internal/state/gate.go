// Waymark - Live Event Route Coordination Core
// SPDX-License-Identifier: AGPL-3.0-or-later

package state

import "sync"

// NavigatorGate gates navigation on the navigation surface having finished
// booting. It opens exactly once per process lifetime and is never reset;
// session bootstrap suspends on Ready until then.
type NavigatorGate struct {
	once  sync.Once
	ready chan struct{}
}

func newNavigatorGate() *NavigatorGate {
	return &NavigatorGate{ready: make(chan struct{})}
}

// Open marks the navigation surface as loaded. Idempotent.
func (g *NavigatorGate) Open() {
	g.once.Do(func() { close(g.ready) })
}

// Ready is closed once the gate has opened.
func (g *NavigatorGate) Ready() <-chan struct{} {
	return g.ready
}

// IsOpen reports whether the gate has opened.
func (g *NavigatorGate) IsOpen() bool {
	select {
	case <-g.ready:
		return true
	default:
		return false
	}
}
