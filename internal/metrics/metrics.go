// Waymark - Live Event Route Coordination Core
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package metrics exposes Prometheus instrumentation for the coordination
// core. Collectors are registered on the default registry and served from
// the gateway's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	subscriptionsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "waymark_subscriptions_started_total",
		Help: "Background subscriptions started, by subscription key.",
	}, []string{"key"})

	subscriptionsCancelled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "waymark_subscriptions_cancelled_total",
		Help: "Background subscriptions cancelled, by subscription key and cause.",
	}, []string{"key", "cause"})

	subscriptionStartFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "waymark_subscription_start_failures_total",
		Help: "Subscription tasks that failed to start, by subscription key.",
	}, []string{"key"})

	sessionTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "waymark_session_transitions_total",
		Help: "Session lifecycle transitions, by target phase.",
	}, []string{"phase"})

	trackingActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "waymark_tracking_active",
		Help: "1 while background tracking is active, 0 otherwise.",
	})

	locationsForwarded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "waymark_locations_forwarded_total",
		Help: "Location updates forwarded to the realtime store.",
	})

	locationsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "waymark_locations_dropped_total",
		Help: "Location updates dropped for lack of an active session, event or route.",
	})
)

// SubscriptionStarted records a subscription task start.
func SubscriptionStarted(key string) {
	subscriptionsStarted.WithLabelValues(key).Inc()
}

// SubscriptionCancelled records a subscription teardown and its cause
// (signal, replaced, shutdown).
func SubscriptionCancelled(key, cause string) {
	subscriptionsCancelled.WithLabelValues(key, cause).Inc()
}

// SubscriptionStartFailed records a task that never started.
func SubscriptionStartFailed(key string) {
	subscriptionStartFailures.WithLabelValues(key).Inc()
}

// SessionTransition records a session phase change.
func SessionTransition(phase string) {
	sessionTransitions.WithLabelValues(phase).Inc()
}

// TrackingActive flips the tracking gauge.
func TrackingActive(active bool) {
	if active {
		trackingActive.Set(1)
		return
	}
	trackingActive.Set(0)
}

// LocationForwarded counts a forwarded location update.
func LocationForwarded() { locationsForwarded.Inc() }

// LocationDropped counts a gated-out location update.
func LocationDropped() { locationsDropped.Inc() }
