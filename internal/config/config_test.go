// Waymark - Live Event Route Coordination Core
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithEnvironment(t *testing.T) {
	t.Setenv("BLOB_BASE_URL", "https://blobs.example.com")
	t.Setenv("HTTP_PORT", "9100")
	t.Setenv("NATS_URL", "nats://nats.internal:4222")
	t.Setenv("TRACKING_INTERVAL", "2s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("expected port 9100, got %d", cfg.Server.Port)
	}
	if cfg.NATS.URL != "nats://nats.internal:4222" {
		t.Errorf("unexpected nats url %q", cfg.NATS.URL)
	}
	if cfg.Blob.BaseURL != "https://blobs.example.com" {
		t.Errorf("unexpected blob base url %q", cfg.Blob.BaseURL)
	}
	if cfg.Tracking.Interval != 2*time.Second {
		t.Errorf("unexpected tracking interval %s", cfg.Tracking.Interval)
	}
	// Untouched keys keep the defaults.
	if cfg.Auth.Mode != AuthModeLocal {
		t.Errorf("expected local auth default, got %q", cfg.Auth.Mode)
	}
}

func TestLoadFromConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("server:\n  port: 9200\nblob:\n  base_url: https://blobs.example.com\nauth:\n  mode: local\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9200 {
		t.Errorf("expected port 9200 from file, got %d", cfg.Server.Port)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("server:\n  port: 9200\nblob:\n  base_url: https://blobs.example.com\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("HTTP_PORT", "9300")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9300 {
		t.Errorf("environment did not win over file, got %d", cfg.Server.Port)
	}
}

func TestUnmappedEnvIgnored(t *testing.T) {
	if got := envTransformFunc("PATH"); got != "" {
		t.Errorf("unrelated variable mapped to %q", got)
	}
	if got := envTransformFunc("HTTP_PORT"); got != "server.port" {
		t.Errorf("HTTP_PORT mapped to %q", got)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := defaultConfig()
		cfg.Blob.BaseURL = "https://blobs.example.com"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid defaults", mutate: func(*Config) {}},
		{name: "port too low", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: true},
		{name: "port too high", mutate: func(c *Config) { c.Server.Port = 70000 }, wantErr: true},
		{name: "missing nats url", mutate: func(c *Config) { c.NATS.URL = "" }, wantErr: true},
		{name: "missing blob base url", mutate: func(c *Config) { c.Blob.BaseURL = "" }, wantErr: true},
		{name: "unknown auth mode", mutate: func(c *Config) { c.Auth.Mode = "ldap" }, wantErr: true},
		{name: "remote auth without url", mutate: func(c *Config) { c.Auth.Mode = AuthModeRemote }, wantErr: true},
		{name: "remote auth with url", mutate: func(c *Config) {
			c.Auth.Mode = AuthModeRemote
			c.Auth.BaseURL = "https://auth.example.com"
		}},
		{name: "zero tracking interval", mutate: func(c *Config) { c.Tracking.Interval = 0 }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
