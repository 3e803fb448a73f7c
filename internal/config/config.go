// Waymark - Live Event Route Coordination Core
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads Waymark's layered configuration: built-in defaults,
// an optional YAML file, then environment variables, in ascending
// precedence.
package config

import (
	"fmt"
	"time"

	"github.com/proxium/waymark/internal/logging"
	"github.com/proxium/waymark/internal/supervisor"
)

// Config is the root configuration.
type Config struct {
	Server     ServerConfig          `koanf:"server"`
	NATS       NATSConfig            `koanf:"nats"`
	Blob       BlobConfig            `koanf:"blob"`
	Auth       AuthConfig            `koanf:"auth"`
	Tracking   TrackingConfig        `koanf:"tracking"`
	Logging    logging.Config        `koanf:"logging"`
	Supervisor supervisor.TreeConfig `koanf:"supervisor"`
}

// ServerConfig configures the gateway HTTP server.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
}

// NATSConfig configures the realtime document store connection.
type NATSConfig struct {
	URL string `koanf:"url"`
}

// BlobConfig configures the route-geometry blob store client.
type BlobConfig struct {
	// BaseURL is the blob store root; storage paths resolve against it.
	BaseURL string `koanf:"base_url"`
	// Timeout bounds a single download.
	Timeout time.Duration `koanf:"timeout"`
	// Dir is where downloaded blobs are cached. Empty means os.TempDir.
	Dir string `koanf:"dir"`
}

// AuthMode selects the auth provider implementation.
const (
	AuthModeLocal  = "local"
	AuthModeRemote = "remote"
)

// AuthConfig configures the auth provider port.
type AuthConfig struct {
	// Mode is "local" (bcrypt-backed dev provider) or "remote" (HTTP
	// auth provider).
	Mode string `koanf:"mode"`
	// BaseURL and APIKey configure the remote provider.
	BaseURL string        `koanf:"base_url"`
	APIKey  string        `koanf:"api_key"`
	Timeout time.Duration `koanf:"timeout"`
	// TokenSecret signs the dev provider's session tokens.
	TokenSecret string `koanf:"token_secret"`
}

// TrackingConfig configures the device tracking port.
type TrackingConfig struct {
	// Interval is the cadence of emitted location updates.
	Interval time.Duration `koanf:"interval"`
}

// defaultConfig returns the built-in defaults, overridden by config file
// and environment variables.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8473,
			Timeout: 30 * time.Second,
		},
		NATS: NATSConfig{
			URL: "nats://127.0.0.1:4222",
		},
		Blob: BlobConfig{
			BaseURL: "",
			Timeout: 30 * time.Second,
			Dir:     "",
		},
		Auth: AuthConfig{
			Mode:        AuthModeLocal,
			BaseURL:     "",
			APIKey:      "",
			Timeout:     30 * time.Second,
			TokenSecret: "",
		},
		Tracking: TrackingConfig{
			Interval: 5 * time.Second,
		},
		Logging: logging.Config{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Supervisor: supervisor.DefaultTreeConfig(),
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port)
	}
	if c.NATS.URL == "" {
		return fmt.Errorf("nats.url is required")
	}
	switch c.Auth.Mode {
	case AuthModeLocal:
	case AuthModeRemote:
		if c.Auth.BaseURL == "" {
			return fmt.Errorf("auth.base_url is required when auth.mode is %q", AuthModeRemote)
		}
	default:
		return fmt.Errorf("auth.mode must be %q or %q, got %q", AuthModeLocal, AuthModeRemote, c.Auth.Mode)
	}
	if c.Blob.BaseURL == "" {
		return fmt.Errorf("blob.base_url is required")
	}
	if c.Tracking.Interval <= 0 {
		return fmt.Errorf("tracking.interval must be positive, got %s", c.Tracking.Interval)
	}
	return nil
}
