// Waymark - Live Event Route Coordination Core
// SPDX-License-Identifier: AGPL-3.0-or-later

package relay

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/proxium/waymark/internal/logging"
)

// LogAnalytics is an analytics sink backed by the structured log. It
// stands in for an external analytics provider and is always available,
// so identity and screen attribution never fail.
type LogAnalytics struct {
	log zerolog.Logger
}

// NewLogAnalytics creates the logging analytics sink.
func NewLogAnalytics() *LogAnalytics {
	return &LogAnalytics{log: logging.With().Str("component", "analytics").Logger()}
}

// SetUserID attributes subsequent analytics to the given user.
func (a *LogAnalytics) SetUserID(_ context.Context, uid string) error {
	a.log.Info().Str("uid", uid).Msg("analytics user set")
	return nil
}

// SetCurrentScreen records the screen the user is looking at.
func (a *LogAnalytics) SetCurrentScreen(_ context.Context, screen, class string) error {
	a.log.Info().Str("screen", screen).Str("class", class).Msg("analytics screen set")
	return nil
}
