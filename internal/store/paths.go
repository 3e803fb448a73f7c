// Waymark - Live Event Route Coordination Core
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/proxium/waymark/internal/ports"
)

// splitPath maps a document path onto a bucket and key: the first segment
// is the collection bucket, the remaining segments join with dots into the
// KV key. "events/e1/routes/r1" becomes bucket "events", key "e1.routes.r1".
func splitPath(path string) (bucket, key string, err error) {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) < 2 || segments[0] == "" {
		return "", "", fmt.Errorf("path %q must have at least collection/id", path)
	}
	for _, seg := range segments {
		if seg == "" {
			return "", "", fmt.Errorf("path %q has an empty segment", path)
		}
	}
	return segments[0], strings.Join(segments[1:], "."), nil
}

// topLevelKey reports whether a KV key names a direct member of the
// collection rather than a nested subcollection document.
func topLevelKey(key string) bool {
	return !strings.Contains(key, ".")
}

// documentFor builds a port Document from a path and raw body.
func documentFor(path string, body []byte) ports.Document {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	return ports.Document{
		Path: path,
		ID:   segments[len(segments)-1],
		Data: body,
	}
}

// docScope is the minimal projection used to filter collection members by
// broadcast target.
type docScope struct {
	EventID string `json:"eventId"`
	RouteID string `json:"routeId"`
}

// snapshotDocs flattens the snapshot, applying the query's event+route
// filter, sorted order not guaranteed.
func snapshotDocs(snapshot map[string]ports.Document, q ports.QueryDescriptor) []ports.Document {
	docs := make([]ports.Document, 0, len(snapshot))
	for _, doc := range snapshot {
		if q.EventID != "" || q.RouteID != "" {
			var scope docScope
			if err := json.Unmarshal(doc.Data, &scope); err != nil {
				continue
			}
			if scope.EventID != q.EventID || scope.RouteID != q.RouteID {
				continue
			}
		}
		docs = append(docs, doc)
	}
	return docs
}
