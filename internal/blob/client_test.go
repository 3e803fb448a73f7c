// Waymark - Live Event Route Coordination Core
// SPDX-License-Identifier: AGPL-3.0-or-later

package blob

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/proxium/waymark/internal/ports"
)

func TestResolveDownloadURL(t *testing.T) {
	c, err := New("https://blobs.example.com/v1", 5*time.Second, t.TempDir())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	tests := []struct {
		name string
		path string
		want string
	}{
		{name: "simple", path: "routes/r1/geometry.json", want: "https://blobs.example.com/v1/routes/r1/geometry.json"},
		{name: "leading slash", path: "/routes/r1/geometry.json", want: "https://blobs.example.com/v1/routes/r1/geometry.json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.ResolveDownloadURL(context.Background(), tt.path)
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if got != tt.want {
				t.Errorf("resolve(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestResolveEmptyPath(t *testing.T) {
	c, err := New("https://blobs.example.com", 5*time.Second, t.TempDir())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = c.ResolveDownloadURL(context.Background(), "")
	var blobErr *ports.BlobError
	if !errors.As(err, &blobErr) || blobErr.Stage != "resolve" {
		t.Errorf("expected resolve-stage blob error, got %v", err)
	}
}

func TestDownloadWritesFile(t *testing.T) {
	payload := `{"name":"Summit Loop","waypoints":[]}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(payload))
	}))
	defer srv.Close()

	c, err := New(srv.URL, 5*time.Second, t.TempDir())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	path, err := c.Download(context.Background(), srv.URL+"/routes/r1/geometry.json")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	body, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read downloaded file: %v", err)
	}
	if string(body) != payload {
		t.Errorf("downloaded body mismatch: %q", body)
	}
}

func TestDownloadRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c, err := New(srv.URL, 5*time.Second, t.TempDir())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = c.Download(context.Background(), srv.URL+"/missing.json")
	var blobErr *ports.BlobError
	if !errors.As(err, &blobErr) || blobErr.Stage != "download" {
		t.Errorf("expected download-stage blob error, got %v", err)
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := New(srv.URL, 5*time.Second, t.TempDir())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	for i := 0; i < 5; i++ {
		if _, err := c.Download(context.Background(), srv.URL+"/x.json"); err == nil {
			t.Fatalf("request %d unexpectedly succeeded", i)
		}
	}
	reached := hits.Load()

	// The breaker is now open; further requests fail without reaching the
	// host.
	if _, err := c.Download(context.Background(), srv.URL+"/x.json"); err == nil {
		t.Fatal("expected failure with open breaker")
	}
	if got := hits.Load(); got != reached {
		t.Errorf("open breaker still reached the host, %d extra hits", got-reached)
	}
}
