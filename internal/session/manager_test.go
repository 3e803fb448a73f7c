// Waymark - Live Event Route Coordination Core
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/proxium/waymark/internal/bus"
	"github.com/proxium/waymark/internal/models"
	"github.com/proxium/waymark/internal/ports"
	"github.com/proxium/waymark/internal/state"
	"github.com/proxium/waymark/internal/supervisor"
)

type fakeAuth struct {
	creds     ports.Credentials
	createErr error
	signInErr error
}

func (f *fakeAuth) CreateAccount(_ context.Context, _, _ string) (ports.Credentials, error) {
	if f.createErr != nil {
		return ports.Credentials{}, f.createErr
	}
	return f.creds, nil
}

func (f *fakeAuth) SignIn(_ context.Context, _, _ string) (ports.Credentials, error) {
	if f.signInErr != nil {
		return ports.Credentials{}, f.signInErr
	}
	return f.creds, nil
}

type fakeDocs struct {
	mu       sync.Mutex
	written  map[string][]byte
	writeErr error
	synced   []string
}

func newFakeDocs() *fakeDocs {
	return &fakeDocs{written: make(map[string][]byte)}
}

func (f *fakeDocs) WriteDocument(_ context.Context, path string, data any) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	body, err := json.Marshal(data)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written[path] = body
	return nil
}

func (f *fakeDocs) ReadDocument(_ context.Context, path string) (ports.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, ok := f.written[path]
	if !ok {
		return ports.Document{}, ports.ErrDocumentNotFound
	}
	return ports.Document{Path: path, Data: body}, nil
}

func (f *fakeDocs) DeleteDocument(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.written, path)
	return nil
}

func (f *fakeDocs) SyncDocument(_ context.Context, path string, _ func(ports.Document)) (ports.Handle, error) {
	f.mu.Lock()
	f.synced = append(f.synced, path)
	f.mu.Unlock()
	return ports.NewFuncHandle(nil), nil
}

func (f *fakeDocs) syncedPaths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.synced...)
}

func (f *fakeDocs) writtenDoc(path string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, ok := f.written[path]
	return body, ok
}

type fakeNav struct {
	mu      sync.Mutex
	screens []string
}

func (f *fakeNav) Navigate(screen string, _ map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.screens = append(f.screens, screen)
	return nil
}

func (f *fakeNav) visited() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.screens...)
}

type fakeAnalytics struct {
	uid atomic.Value
}

func (f *fakeAnalytics) SetUserID(_ context.Context, uid string) error {
	f.uid.Store(uid)
	return nil
}

func (f *fakeAnalytics) SetCurrentScreen(_ context.Context, _, _ string) error {
	return nil
}

type harness struct {
	bus       *bus.Bus
	state     *state.Store
	registry  *supervisor.Registry
	auth      *fakeAuth
	docs      *fakeDocs
	nav       *fakeNav
	analytics *fakeAnalytics
	cancel    context.CancelFunc
	served    chan struct{}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		bus:       bus.New(),
		state:     state.NewStore(),
		registry:  supervisor.NewRegistry(),
		auth:      &fakeAuth{creds: ports.Credentials{UID: "u-1", Email: "rider@example.com", Token: "tok"}},
		docs:      newFakeDocs(),
		nav:       &fakeNav{},
		analytics: &fakeAnalytics{},
		served:    make(chan struct{}),
	}
	m := NewManager(h.bus, h.state, h.registry, h.auth, h.docs, h.nav, h.analytics)

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() {
		defer close(h.served)
		_ = m.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-h.served:
		case <-time.After(5 * time.Second):
			t.Error("session manager did not stop")
		}
		_ = h.bus.Close()
	})
	// Let the watcher subscriptions settle before tests publish.
	time.Sleep(50 * time.Millisecond)
	return h
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatal(msg)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestLoginAuthenticatesAndBootstraps(t *testing.T) {
	h := newHarness(t)
	h.state.Gate().Open()

	if err := h.bus.Publish(bus.TopicLogin, bus.LoginPayload{Email: "rider@example.com", Password: "pw"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	waitFor(t, func() bool { return h.state.Session().Phase == state.PhaseAuthenticated }, "session never authenticated")
	if got := h.state.UID(); got != "u-1" {
		t.Errorf("expected uid u-1, got %q", got)
	}

	// Bootstrap starts the profile sync and lands on the event list.
	waitFor(t, func() bool { return h.registry.Live(KeyProfileSync) }, "profile sync never started")
	waitFor(t, func() bool {
		paths := h.docs.syncedPaths()
		return len(paths) == 1 && paths[0] == "users/u-1"
	}, "profile sync targeted wrong document")
	waitFor(t, func() bool {
		for _, s := range h.nav.visited() {
			if s == ports.ScreenEventsIndex {
				return true
			}
		}
		return false
	}, "never navigated to event list")
	if uid, _ := h.analytics.uid.Load().(string); uid != "u-1" {
		t.Errorf("analytics identity not propagated, got %q", uid)
	}
}

func TestLoginFailureStaysAnonymous(t *testing.T) {
	h := newHarness(t)
	h.state.Gate().Open()
	h.auth.signInErr = ports.NewAuthError(ports.AuthInvalidCredentials, nil)

	if err := h.bus.Publish(bus.TopicLogin, bus.LoginPayload{Email: "rider@example.com", Password: "wrong"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	// The phase passes through authenticating and settles back on anonymous.
	waitFor(t, func() bool { return h.state.Session().Phase == state.PhaseAnonymous && h.state.UID() == "" }, "failed login did not stay anonymous")
	if h.registry.Live(KeyProfileSync) {
		t.Error("profile sync started for a failed login")
	}
}

func TestCreateUserWritesProfile(t *testing.T) {
	h := newHarness(t)
	h.state.Gate().Open()

	payload := bus.CreateUserPayload{
		Email: "rider@example.com", Password: "pw12345678",
		FirstName: "Ada", LastName: "Lindgren",
	}
	if err := h.bus.Publish(bus.TopicCreateUser, payload); err != nil {
		t.Fatalf("publish: %v", err)
	}

	waitFor(t, func() bool {
		_, ok := h.docs.writtenDoc("users/u-1")
		return ok
	}, "profile document never written")

	body, _ := h.docs.writtenDoc("users/u-1")
	var profile models.Profile
	if err := json.Unmarshal(body, &profile); err != nil {
		t.Fatalf("unmarshal profile: %v", err)
	}
	if profile.FirstName != "Ada" || profile.LastName != "Lindgren" {
		t.Errorf("unexpected profile: %+v", profile)
	}
	waitFor(t, func() bool { return h.state.Session().Phase == state.PhaseAuthenticated }, "session never authenticated")
}

func TestCreateUserProfileWriteFailureRollsBack(t *testing.T) {
	h := newHarness(t)
	h.state.Gate().Open()
	h.docs.writeErr = ports.ErrDocumentNotFound

	if err := h.bus.Publish(bus.TopicCreateUser, bus.CreateUserPayload{Email: "rider@example.com", Password: "pw12345678"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	// Credentials were created but the write failed, so the session must
	// end up destroyed.
	waitFor(t, func() bool {
		s := h.state.Session()
		return s.Phase == state.PhaseAnonymous && s.UID == ""
	}, "session survived profile write failure")
}

func TestUserSetWaitsForNavigatorGate(t *testing.T) {
	h := newHarness(t)

	if err := h.bus.Publish(bus.TopicLogin, bus.LoginPayload{Email: "rider@example.com", Password: "pw"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	waitFor(t, func() bool { return h.state.Session().Phase == state.PhaseAuthenticated }, "session never authenticated")

	// With the gate closed no navigation may happen yet.
	time.Sleep(150 * time.Millisecond)
	if len(h.nav.visited()) != 0 {
		t.Fatalf("navigated before the navigator mounted: %v", h.nav.visited())
	}

	h.state.Gate().Open()
	waitFor(t, func() bool { return len(h.nav.visited()) > 0 }, "gate open did not release navigation")
	if got := h.nav.visited()[0]; got != ports.ScreenEventsIndex {
		t.Errorf("expected event list, got %q", got)
	}
}

func TestUserSetResumesActiveRoute(t *testing.T) {
	h := newHarness(t)
	h.state.Gate().Open()
	h.state.SetCurrentEvent(models.Event{ID: "e-1"})
	h.state.SetCurrentRoute(models.Route{ID: "r-1", EventID: "e-1"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	trackingStarts, err := h.bus.Subscribe(ctx, bus.TopicStartTracking)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := h.bus.Publish(bus.TopicLogin, bus.LoginPayload{Email: "rider@example.com", Password: "pw"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case msg := <-trackingStarts:
		p, err := bus.Decode[bus.StartTrackingPayload](msg)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if p.UID != "u-1" || p.EventID != "e-1" || p.RouteID != "r-1" {
			t.Errorf("unexpected tracking start: %+v", p)
		}
		msg.Ack()
	case <-time.After(3 * time.Second):
		t.Fatal("tracking never requested for resumed route")
	}

	waitFor(t, func() bool {
		for _, s := range h.nav.visited() {
			if s == ports.ScreenMap {
				return true
			}
		}
		return false
	}, "never navigated to map for resumed route")
}

func TestDuplicateSyncRequestDroppedWhileLive(t *testing.T) {
	h := newHarness(t)
	h.state.Gate().Open()

	if err := h.bus.Publish(bus.TopicLogin, bus.LoginPayload{Email: "rider@example.com", Password: "pw"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	waitFor(t, func() bool { return h.registry.Live(KeyProfileSync) }, "profile sync never started")

	// A second sync request while the first is live must be dropped, not
	// queued: a queued request would run after logout tears the first one
	// down and start a fresh subscription with no session behind it.
	if err := h.bus.Publish(bus.TopicSyncUser, bus.SyncUserPayload{UID: "u-1"}); err != nil {
		t.Fatalf("publish duplicate sync: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	if err := h.bus.Publish(bus.TopicLogout, nil); err != nil {
		t.Fatalf("publish logout: %v", err)
	}
	waitFor(t, func() bool {
		s := h.state.Session()
		return s.Phase == state.PhaseAnonymous && s.UID == ""
	}, "session survived logout")
	waitFor(t, func() bool { return !h.registry.Live(KeyProfileSync) }, "profile sync survived logout")

	// Nothing may come back to life after the session is gone.
	time.Sleep(150 * time.Millisecond)
	if h.registry.Live(KeyProfileSync) {
		t.Error("dropped sync request started a subscription after logout")
	}
	if paths := h.docs.syncedPaths(); len(paths) != 1 {
		t.Errorf("expected a single profile sync, got %v", paths)
	}
}

func TestLogoutDestroysSessionAndStopsSync(t *testing.T) {
	h := newHarness(t)
	h.state.Gate().Open()
	h.state.SetCurrentEvent(models.Event{ID: "e-1"})

	if err := h.bus.Publish(bus.TopicLogin, bus.LoginPayload{Email: "rider@example.com", Password: "pw"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	waitFor(t, func() bool { return h.registry.Live(KeyProfileSync) }, "profile sync never started")

	if err := h.bus.Publish(bus.TopicLogout, nil); err != nil {
		t.Fatalf("publish logout: %v", err)
	}

	waitFor(t, func() bool { return !h.registry.Live(KeyProfileSync) }, "profile sync survived logout")
	waitFor(t, func() bool {
		s := h.state.Session()
		return s.Phase == state.PhaseAnonymous && s.UID == ""
	}, "session survived logout")

	// Event context survives for the next login.
	if got := h.state.CurrentEventID(); got != "e-1" {
		t.Errorf("event context lost on logout, got %q", got)
	}
	waitFor(t, func() bool {
		for _, s := range h.nav.visited() {
			if s == ports.ScreenWelcome {
				return true
			}
		}
		return false
	}, "never navigated to welcome on logout")
}
