// Waymark - Live Event Route Coordination Core
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package main is the entry point for the Waymark coordination server.
//
// Waymark is the backend core of a live-event route tracking app: it owns
// the session lifecycle, event and route activation, realtime position
// syncing, and location broadcasting for participants following shared
// routes during an event.
//
// The server initializes components in the following order:
//
//  1. Configuration: layered defaults, config.yaml, environment (Koanf v2)
//  2. Document store: NATS JetStream key-value buckets
//  3. Blob store client: route geometry downloads with a circuit breaker
//  4. Auth provider: local bcrypt dev provider or remote HTTP provider
//  5. Action bus: in-process Watermill Pub/Sub
//  6. Supervisor tree: session, sync, and gateway layers under suture
//
// Shutdown is graceful on SIGINT and SIGTERM: the tree cancels its
// services, subscriptions release, and the gateway drains connections.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/proxium/waymark/internal/auth"
	"github.com/proxium/waymark/internal/blob"
	"github.com/proxium/waymark/internal/bus"
	"github.com/proxium/waymark/internal/config"
	"github.com/proxium/waymark/internal/gateway"
	"github.com/proxium/waymark/internal/logging"
	"github.com/proxium/waymark/internal/ports"
	"github.com/proxium/waymark/internal/relay"
	"github.com/proxium/waymark/internal/route"
	"github.com/proxium/waymark/internal/session"
	"github.com/proxium/waymark/internal/state"
	"github.com/proxium/waymark/internal/store"
	"github.com/proxium/waymark/internal/supervisor"
	"github.com/proxium/waymark/internal/tracking"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Init(cfg.Logging)

	logging.Info().
		Str("nats_url", cfg.NATS.URL).
		Str("auth_mode", cfg.Auth.Mode).
		Msg("Starting Waymark")

	docs, err := store.New(cfg.NATS.URL)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to connect document store")
	}
	defer docs.Close()

	blobs, err := blob.New(cfg.Blob.BaseURL, cfg.Blob.Timeout, cfg.Blob.Dir)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize blob store client")
	}

	var authPort ports.AuthPort
	switch cfg.Auth.Mode {
	case config.AuthModeRemote:
		authPort = auth.NewClient(cfg.Auth.BaseURL, cfg.Auth.APIKey, cfg.Auth.Timeout)
	default:
		authPort = auth.NewLocalProvider(docs, cfg.Auth.TokenSecret)
	}

	b := bus.New()
	defer func() {
		if err := b.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing bus")
		}
	}()

	st := state.NewStore()
	registry := supervisor.NewRegistry()

	hub := gateway.NewHub()
	nav := gateway.NewNavigator(hub, b, st)
	analytics := relay.NewLogAnalytics()
	tracker := tracking.NewSimTracker(b, cfg.Tracking.Interval)

	tree := supervisor.NewTree(cfg.Supervisor)
	tree.AddSessionService(session.NewManager(b, st, registry, authPort, docs, nav, analytics))
	tree.AddSyncService(route.NewCoordinator(b, st, registry, docs, docs, blobs, nav))
	tree.AddSyncService(tracking.NewManager(b, st, registry, tracker, docs))
	tree.AddSyncService(relay.NewRelay(b, st, docs, analytics))
	tree.AddGatewayService(hub)
	tree.AddGatewayService(gateway.NewBridge(b, hub))
	tree.AddGatewayService(gateway.NewServer(cfg.Server, hub, b, st))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = tree.Serve(ctx)
	if err != nil && err != context.Canceled {
		logging.Error().Err(err).Msg("Supervisor tree exited")
	}

	if report, rerr := tree.UnstoppedServiceReport(); rerr == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop within timeout")
		}
	}
	logging.Info().Msg("Waymark stopped")
}
