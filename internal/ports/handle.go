// Waymark - Live Event Route Coordination Core
// SPDX-License-Identifier: AGPL-3.0-or-later

package ports

import "sync"

// FuncHandle adapts a release function into a Handle. Cancel runs the
// function exactly once and blocks until it returns, then marks the handle
// done. MarkDone may also be called by the task itself on self-termination.
type FuncHandle struct {
	once     sync.Once
	doneOnce sync.Once
	release  func()
	done     chan struct{}
}

// NewFuncHandle wraps release, which must not return until the underlying
// subscription delivers no further events.
func NewFuncHandle(release func()) *FuncHandle {
	return &FuncHandle{release: release, done: make(chan struct{})}
}

// Cancel releases the subscription. Idempotent and synchronous.
func (h *FuncHandle) Cancel() {
	h.once.Do(func() {
		if h.release != nil {
			h.release()
		}
	})
	h.MarkDone()
}

// Done is closed once the subscription has terminated.
func (h *FuncHandle) Done() <-chan struct{} { return h.done }

// MarkDone marks the handle terminated without running the release
// function; used when the task completes on its own.
func (h *FuncHandle) MarkDone() {
	h.doneOnce.Do(func() { close(h.done) })
}
