// Waymark - Live Event Route Coordination Core
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package blob fetches static route-geometry payloads over HTTP. Downloads
// run behind a circuit breaker so a misbehaving blob host fails fast
// instead of hanging every route activation.
package blob

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/proxium/waymark/internal/ports"
)

// Client implements ports.BlobStorePort against an HTTP blob host.
type Client struct {
	base    *url.URL
	httpc   *http.Client
	dir     string
	breaker *gobreaker.CircuitBreaker[[]byte]
}

// New creates a blob client. baseURL is the blob host root; dir is where
// downloads are written (empty means the system temp directory).
func New(baseURL string, timeout time.Duration, dir string) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse blob base url: %w", err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		base:  base,
		httpc: &http.Client{Timeout: timeout},
		dir:   dir,
		breaker: gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
			Name:    "blob-store",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}, nil
}

// ResolveDownloadURL maps a storage path onto a retrieval URL.
func (c *Client) ResolveDownloadURL(_ context.Context, storagePath string) (string, error) {
	if storagePath == "" {
		return "", &ports.BlobError{Stage: "resolve", Path: storagePath, Err: fmt.Errorf("empty storage path")}
	}
	u := c.base.JoinPath(strings.Split(strings.Trim(storagePath, "/"), "/")...)
	return u.String(), nil
}

// Download fetches the blob and writes it to a local file, returning the
// file path.
func (c *Client) Download(ctx context.Context, rawURL string) (string, error) {
	body, err := c.breaker.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.httpc.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		return io.ReadAll(resp.Body)
	})
	if err != nil {
		return "", &ports.BlobError{Stage: "download", Path: rawURL, Err: err}
	}

	f, err := os.CreateTemp(c.dir, "route-*.json")
	if err != nil {
		return "", &ports.BlobError{Stage: "download", Path: rawURL, Err: err}
	}
	defer f.Close()
	if _, err := f.Write(body); err != nil {
		os.Remove(f.Name())
		return "", &ports.BlobError{Stage: "download", Path: rawURL, Err: err}
	}
	return f.Name(), nil
}
