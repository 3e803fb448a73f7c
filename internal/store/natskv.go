// Waymark - Live Event Route Coordination Core
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store implements the realtime document store ports on NATS
// JetStream key-value buckets. Each top-level collection maps to a bucket;
// nested document paths map to dot-separated keys, and KV watchers back
// the document and collection sync subscriptions.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"

	"github.com/proxium/waymark/internal/logging"
	"github.com/proxium/waymark/internal/ports"
)

// Store is a NATS-KV-backed document store. It implements
// ports.DocumentStorePort and ports.CollectionSyncPort.
type Store struct {
	nc *nats.Conn
	js nats.JetStreamContext

	mu      sync.Mutex
	buckets map[string]nats.KeyValue
}

// New connects to NATS and prepares the store.
func New(url string) (*Store, error) {
	nc, err := nats.Connect(url, nats.Name("waymark"))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream context: %w", err)
	}
	return &Store{nc: nc, js: js, buckets: make(map[string]nats.KeyValue)}, nil
}

// Close drains the connection.
func (s *Store) Close() {
	if err := s.nc.Drain(); err != nil {
		logging.Warn().Err(err).Msg("nats drain failed")
	}
}

// WriteDocument marshals data and writes it at path.
func (s *Store) WriteDocument(_ context.Context, path string, data any) error {
	bucket, key, err := splitPath(path)
	if err != nil {
		return &ports.StoreError{Op: "write", Path: path, Err: err}
	}
	body, err := json.Marshal(data)
	if err != nil {
		return &ports.StoreError{Op: "write", Path: path, Err: err}
	}
	kv, err := s.bucket(bucket)
	if err != nil {
		return &ports.StoreError{Op: "write", Path: path, Err: err}
	}
	if _, err := kv.Put(key, body); err != nil {
		return &ports.StoreError{Op: "write", Path: path, Err: err}
	}
	return nil
}

// ReadDocument fetches the document at path.
func (s *Store) ReadDocument(_ context.Context, path string) (ports.Document, error) {
	bucket, key, err := splitPath(path)
	if err != nil {
		return ports.Document{}, &ports.StoreError{Op: "read", Path: path, Err: err}
	}
	kv, err := s.bucket(bucket)
	if err != nil {
		return ports.Document{}, &ports.StoreError{Op: "read", Path: path, Err: err}
	}
	entry, err := kv.Get(key)
	if err != nil {
		if errors.Is(err, nats.ErrKeyNotFound) {
			err = ports.ErrDocumentNotFound
		}
		return ports.Document{}, &ports.StoreError{Op: "read", Path: path, Err: err}
	}
	return documentFor(path, entry.Value()), nil
}

// DeleteDocument removes the document at path. Deleting a document that
// does not exist is not an error.
func (s *Store) DeleteDocument(_ context.Context, path string) error {
	bucket, key, err := splitPath(path)
	if err != nil {
		return &ports.StoreError{Op: "delete", Path: path, Err: err}
	}
	kv, err := s.bucket(bucket)
	if err != nil {
		return &ports.StoreError{Op: "delete", Path: path, Err: err}
	}
	if err := kv.Delete(key); err != nil && !errors.Is(err, nats.ErrKeyNotFound) {
		return &ports.StoreError{Op: "delete", Path: path, Err: err}
	}
	return nil
}

// SyncDocument watches a single document. onChange runs on the watcher
// goroutine for the current value and every subsequent write.
func (s *Store) SyncDocument(_ context.Context, path string, onChange func(ports.Document)) (ports.Handle, error) {
	bucket, key, err := splitPath(path)
	if err != nil {
		return nil, &ports.StoreError{Op: "sync", Path: path, Err: err}
	}
	kv, err := s.bucket(bucket)
	if err != nil {
		return nil, &ports.StoreError{Op: "sync", Path: path, Err: err}
	}
	w, err := kv.Watch(key)
	if err != nil {
		return nil, &ports.StoreError{Op: "sync", Path: path, Err: err}
	}

	loopDone := make(chan struct{})
	handle := ports.NewFuncHandle(func() {
		if err := w.Stop(); err != nil {
			logging.Warn().Err(err).Str("path", path).Msg("document watcher stop failed")
		}
		<-loopDone
	})
	go func() {
		defer close(loopDone)
		defer handle.MarkDone()
		for entry := range w.Updates() {
			// nil marks the end of the initial replay.
			if entry == nil || entry.Operation() != nats.KeyValuePut {
				continue
			}
			onChange(documentFor(path, entry.Value()))
		}
	}()
	return handle, nil
}

// SyncCollection watches a collection and delivers the full matching
// document set on every change. When the query carries an event+route
// pair, only documents tagged with that pair are included.
func (s *Store) SyncCollection(_ context.Context, q ports.QueryDescriptor, onChange func([]ports.Document)) (ports.Handle, error) {
	kv, err := s.bucket(q.Collection)
	if err != nil {
		return nil, &ports.StoreError{Op: "sync", Path: q.Collection, Err: err}
	}
	w, err := kv.WatchAll()
	if err != nil {
		return nil, &ports.StoreError{Op: "sync", Path: q.Collection, Err: err}
	}

	loopDone := make(chan struct{})
	handle := ports.NewFuncHandle(func() {
		if err := w.Stop(); err != nil {
			logging.Warn().Err(err).Str("collection", q.Collection).Msg("collection watcher stop failed")
		}
		<-loopDone
	})
	go func() {
		defer close(loopDone)
		defer handle.MarkDone()
		snapshot := make(map[string]ports.Document)
		replaying := true
		for entry := range w.Updates() {
			if entry == nil {
				// Initial replay complete: deliver the first snapshot.
				replaying = false
				onChange(snapshotDocs(snapshot, q))
				continue
			}
			if !topLevelKey(entry.Key()) {
				continue
			}
			switch entry.Operation() {
			case nats.KeyValuePut:
				snapshot[entry.Key()] = documentFor(q.Collection+"/"+entry.Key(), entry.Value())
			case nats.KeyValueDelete, nats.KeyValuePurge:
				delete(snapshot, entry.Key())
			}
			if !replaying {
				onChange(snapshotDocs(snapshot, q))
			}
		}
	}()
	return handle, nil
}

// bucket returns the KV bucket for a collection, creating it on first use.
func (s *Store) bucket(name string) (nats.KeyValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if kv, ok := s.buckets[name]; ok {
		return kv, nil
	}
	kv, err := s.js.KeyValue(name)
	if errors.Is(err, nats.ErrBucketNotFound) {
		kv, err = s.js.CreateKeyValue(&nats.KeyValueConfig{Bucket: name})
	}
	if err != nil {
		return nil, fmt.Errorf("bucket %s: %w", name, err)
	}
	s.buckets[name] = kv
	return kv, nil
}
