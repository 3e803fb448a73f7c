// Waymark - Live Event Route Coordination Core
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package route orchestrates event and route activation: the one-shot
// sequence of loading a selected route's static data and re-pointing the
// realtime subscriptions (positions sync, tracking) at it, plus the
// events-catalog and positions collection sync watchers.
package route

import (
	"context"
	"os"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/proxium/waymark/internal/bus"
	"github.com/proxium/waymark/internal/logging"
	"github.com/proxium/waymark/internal/models"
	"github.com/proxium/waymark/internal/ports"
	"github.com/proxium/waymark/internal/state"
	"github.com/proxium/waymark/internal/supervisor"
)

// Subscription keys owned by the coordinator.
const (
	KeyPositionsSync = "positions-sync"
	KeyEventsSync    = "events-sync"
)

// Coordinator drives event/route activation. It implements suture.Service.
type Coordinator struct {
	bus         *bus.Bus
	state       *state.Store
	registry    *supervisor.Registry
	docs        ports.DocumentStorePort
	collections ports.CollectionSyncPort
	blobs       ports.BlobStorePort
	nav         ports.NavigationPort
}

// NewCoordinator wires the route activation coordinator.
func NewCoordinator(
	b *bus.Bus,
	st *state.Store,
	registry *supervisor.Registry,
	docs ports.DocumentStorePort,
	collections ports.CollectionSyncPort,
	blobs ports.BlobStorePort,
	nav ports.NavigationPort,
) *Coordinator {
	return &Coordinator{
		bus:         b,
		state:       st,
		registry:    registry,
		docs:        docs,
		collections: collections,
		blobs:       blobs,
		nav:         nav,
	}
}

// Serve subscribes the coordinator's watchers and blocks until ctx cancels.
func (c *Coordinator) Serve(ctx context.Context) error {
	watchers := []struct {
		topic    string
		dispatch func(context.Context, <-chan *message.Message, bus.Handler)
		handler  bus.Handler
	}{
		{bus.TopicFetchEvent, bus.HandleLeading, c.handleFetchEvent},
		{bus.TopicFetchRoute, bus.HandleLeading, c.handleFetchRoute},
		{bus.TopicSyncPositions, bus.HandleLeading, c.handleSyncPositions},
		{bus.TopicSyncEvents, bus.HandleLeading, c.handleSyncEvents},
	}

	var wg sync.WaitGroup
	for _, w := range watchers {
		msgs, err := c.bus.Subscribe(ctx, w.topic)
		if err != nil {
			return err
		}
		wg.Add(1)
		go func(dispatch func(context.Context, <-chan *message.Message, bus.Handler), handler bus.Handler) {
			defer wg.Done()
			dispatch(ctx, msgs, handler)
		}(w.dispatch, w.handler)
	}
	wg.Wait()
	return ctx.Err()
}

// String implements fmt.Stringer for supervisor logging.
func (c *Coordinator) String() string { return "route-coordinator" }

// handleFetchEvent activates an event: reads its document, publishes it as
// the current event and navigates to the event screen.
func (c *Coordinator) handleFetchEvent(ctx context.Context, msg *message.Message) {
	p, err := bus.Decode[bus.FetchEventPayload](msg)
	if err != nil {
		logging.Err(err).Str("flow", "fetchCurrentEvent").Msg("bad payload")
		return
	}

	doc, err := c.docs.ReadDocument(ctx, "events/"+p.EventID)
	if err != nil {
		logging.Err(err).Str("flow", "fetchCurrentEvent").Str("eventId", p.EventID).Msg("event read failed")
		return
	}
	var event models.Event
	if err := json.Unmarshal(doc.Data, &event); err != nil {
		logging.Err(err).Str("flow", "fetchCurrentEvent").Str("eventId", p.EventID).Msg("bad event document")
		return
	}
	event.ID = doc.ID

	c.state.SetCurrentEvent(event)
	c.publish(bus.TopicCurrentEventSet, event, "fetchCurrentEvent")
	if err := c.nav.Navigate(ports.ScreenEvent, map[string]string{"eventId": p.EventID}); err != nil {
		logging.Err(err).Str("flow", "fetchCurrentEvent").Msg("navigation failed")
	}
}

// handleFetchRoute runs route activation: optimistic navigation to the
// map, route document fetch, geometry blob resolve/download/parse, then
// publication of the hydrated route followed by a positions-sync restart
// and a tracking start request. A failure at any step aborts the rest and
// leaves the previously active route unchanged; nothing is published until
// the route is fully hydrated.
func (c *Coordinator) handleFetchRoute(ctx context.Context, msg *message.Message) {
	p, err := bus.Decode[bus.FetchRoutePayload](msg)
	if err != nil {
		logging.Err(err).Str("flow", "fetchCurrentRoute").Msg("bad payload")
		return
	}
	flow := logging.With().
		Str("flow", "fetchCurrentRoute").
		Str("eventId", p.EventID).
		Str("routeId", p.RouteID).
		Logger()

	if err := c.nav.Navigate(ports.ScreenMap, nil); err != nil {
		flow.Err(err).Msg("navigation failed")
		return
	}

	doc, err := c.docs.ReadDocument(ctx, "events/"+p.EventID+"/routes/"+p.RouteID)
	if err != nil {
		flow.Err(err).Msg("route read failed")
		return
	}
	var route models.Route
	if err := json.Unmarshal(doc.Data, &route); err != nil {
		flow.Err(err).Msg("bad route document")
		return
	}
	route.ID = doc.ID
	route.EventID = p.EventID

	routeData, err := c.fetchRouteData(ctx, route.RouteDataStoragePath)
	if err != nil {
		flow.Err(err).Msg("route data fetch failed")
		return
	}
	route.RouteData = routeData

	c.state.SetCurrentRoute(route)
	c.publish(bus.TopicCurrentRouteSet, route, "fetchCurrentRoute")

	// Re-point the positions stream at the new event+route: stop any
	// previous sync before requesting the new one.
	c.publish(bus.TopicStopSyncPositions, nil, "fetchCurrentRoute")
	c.publish(bus.TopicSyncPositions, bus.SyncPositionsPayload{EventID: p.EventID, RouteID: p.RouteID}, "fetchCurrentRoute")
	c.publish(bus.TopicStartTracking, bus.StartTrackingPayload{UID: p.UID, EventID: p.EventID, RouteID: p.RouteID}, "fetchCurrentRoute")
}

// fetchRouteData resolves, downloads and parses the route geometry blob.
func (c *Coordinator) fetchRouteData(ctx context.Context, storagePath string) (*models.RouteData, error) {
	url, err := c.blobs.ResolveDownloadURL(ctx, storagePath)
	if err != nil {
		return nil, err
	}
	filePath, err := c.blobs.Download(ctx, url)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(filePath)
	if err != nil {
		return nil, &ports.BlobError{Stage: "parse", Path: filePath, Err: err}
	}
	var data models.RouteData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, &ports.BlobError{Stage: "parse", Path: filePath, Err: err}
	}
	return &data, nil
}

// handleSyncPositions supervises the filtered current-positions sync for
// an event+route, terminated by an explicit stop or logout.
func (c *Coordinator) handleSyncPositions(ctx context.Context, msg *message.Message) {
	p, err := bus.Decode[bus.SyncPositionsPayload](msg)
	if err != nil {
		logging.Err(err).Str("flow", "syncCurrentPositions").Msg("bad payload")
		return
	}

	// Signal subscriptions live only as long as this supervise call.
	sigCtx, cancelSig := context.WithCancel(ctx)
	defer cancelSig()
	stopSig, err := c.bus.Signal(sigCtx, bus.TopicStopSyncPositions)
	if err != nil {
		logging.Err(err).Str("flow", "syncCurrentPositions").Msg("stop signal subscription failed")
		return
	}
	logoutSig, err := c.bus.Signal(sigCtx, bus.TopicLogout)
	if err != nil {
		logging.Err(err).Str("flow", "syncCurrentPositions").Msg("logout signal subscription failed")
		return
	}

	start := func(ctx context.Context) (ports.Handle, error) {
		q := ports.QueryDescriptor{Collection: "currentPositions", EventID: p.EventID, RouteID: p.RouteID}
		return c.collections.SyncCollection(ctx, q, func(docs []ports.Document) {
			positions := make([]models.Position, 0, len(docs))
			for _, doc := range docs {
				var pos models.Position
				if err := json.Unmarshal(doc.Data, &pos); err != nil {
					logging.Err(err).Str("flow", "syncCurrentPositions").Str("id", doc.ID).Msg("bad position document")
					continue
				}
				pos.ID = doc.ID
				positions = append(positions, pos)
			}
			c.publish(bus.TopicPositionsSet, positions, "syncCurrentPositions")
		})
	}

	_ = c.registry.Supervise(ctx, KeyPositionsSync, start, stopSig, logoutSig)
}

// handleSyncEvents supervises the full events-catalog sync, terminated by
// an explicit stop or logout.
func (c *Coordinator) handleSyncEvents(ctx context.Context, msg *message.Message) {
	sigCtx, cancelSig := context.WithCancel(ctx)
	defer cancelSig()
	stopSig, err := c.bus.Signal(sigCtx, bus.TopicStopSyncEvents)
	if err != nil {
		logging.Err(err).Str("flow", "syncEvents").Msg("stop signal subscription failed")
		return
	}
	logoutSig, err := c.bus.Signal(sigCtx, bus.TopicLogout)
	if err != nil {
		logging.Err(err).Str("flow", "syncEvents").Msg("logout signal subscription failed")
		return
	}

	start := func(ctx context.Context) (ports.Handle, error) {
		q := ports.QueryDescriptor{Collection: "events"}
		return c.collections.SyncCollection(ctx, q, func(docs []ports.Document) {
			events := make([]models.Event, 0, len(docs))
			for _, doc := range docs {
				var event models.Event
				if err := json.Unmarshal(doc.Data, &event); err != nil {
					logging.Err(err).Str("flow", "syncEvents").Str("id", doc.ID).Msg("bad event document")
					continue
				}
				event.ID = doc.ID
				events = append(events, event)
			}
			c.publish(bus.TopicEventsCatalogSet, events, "syncEvents")
		})
	}

	_ = c.registry.Supervise(ctx, KeyEventsSync, start, stopSig, logoutSig)
}

func (c *Coordinator) publish(topic string, payload any, flow string) {
	if err := c.bus.Publish(topic, payload); err != nil {
		logging.Err(err).Str("flow", flow).Str("topic", topic).Msg("publish failed")
	}
}
