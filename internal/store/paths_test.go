// Waymark - Live Event Route Coordination Core
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"testing"

	"github.com/proxium/waymark/internal/ports"
)

func TestSplitPath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		bucket  string
		key     string
		wantErr bool
	}{
		{name: "simple document", path: "users/u1", bucket: "users", key: "u1"},
		{name: "nested document", path: "events/e1/routes/r1", bucket: "events", key: "e1.routes.r1"},
		{name: "leading slash trimmed", path: "/users/u1", bucket: "users", key: "u1"},
		{name: "collection only", path: "users", wantErr: true},
		{name: "empty path", path: "", wantErr: true},
		{name: "empty segment", path: "users//u1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket, key, err := splitPath(tt.path)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.path)
				}
				return
			}
			if err != nil {
				t.Fatalf("splitPath(%q): %v", tt.path, err)
			}
			if bucket != tt.bucket || key != tt.key {
				t.Errorf("splitPath(%q) = (%q, %q), want (%q, %q)", tt.path, bucket, key, tt.bucket, tt.key)
			}
		})
	}
}

func TestTopLevelKey(t *testing.T) {
	if !topLevelKey("u1") {
		t.Error("plain key must be top level")
	}
	if topLevelKey("e1.routes.r1") {
		t.Error("dotted key must not be top level")
	}
}

func TestDocumentFor(t *testing.T) {
	doc := documentFor("events/e1/routes/r1", []byte(`{"name":"x"}`))
	if doc.ID != "r1" {
		t.Errorf("expected id r1, got %q", doc.ID)
	}
	if doc.Path != "events/e1/routes/r1" {
		t.Errorf("path not preserved: %q", doc.Path)
	}
}

func TestSnapshotDocsFiltering(t *testing.T) {
	snapshot := map[string]ports.Document{
		"a": {ID: "a", Data: []byte(`{"eventId":"e-1","routeId":"r-1","lat":47.0}`)},
		"b": {ID: "b", Data: []byte(`{"eventId":"e-1","routeId":"r-2","lat":47.1}`)},
		"c": {ID: "c", Data: []byte(`{"eventId":"e-2","routeId":"r-1","lat":47.2}`)},
		"d": {ID: "d", Data: []byte(`not json`)},
	}

	t.Run("unfiltered returns everything", func(t *testing.T) {
		docs := snapshotDocs(snapshot, ports.QueryDescriptor{Collection: "currentPositions"})
		if len(docs) != 4 {
			t.Errorf("expected 4 docs, got %d", len(docs))
		}
	})

	t.Run("event and route filter", func(t *testing.T) {
		q := ports.QueryDescriptor{Collection: "currentPositions", EventID: "e-1", RouteID: "r-1"}
		docs := snapshotDocs(snapshot, q)
		if len(docs) != 1 || docs[0].ID != "a" {
			t.Errorf("expected only doc a, got %+v", docs)
		}
	})

	t.Run("filter with no matches", func(t *testing.T) {
		q := ports.QueryDescriptor{Collection: "currentPositions", EventID: "e-9", RouteID: "r-9"}
		if docs := snapshotDocs(snapshot, q); len(docs) != 0 {
			t.Errorf("expected no docs, got %+v", docs)
		}
	})
}
