// Package persistence wires a storage.KVStorage and a codec.FormatCodec
// together into a cold-load / debounced-flush contract: each collection
// round-trips through one path, one codec, one file on disk (or
// whatever the KVStorage collaborator backs onto).
package persistence

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/loomdb/loom/codec"
	"github.com/loomdb/loom/document"
	"github.com/loomdb/loom/storage"

	"golang.org/x/sync/singleflight"
)

// Manager coordinates one storage backend and codec across every
// collection a Database declares.
type Manager struct {
	store storage.KVStorage
	codec codec.FormatCodec

	loadGroup singleflight.Group

	mu       sync.Mutex
	timers   map[string]*time.Timer
	debounce time.Duration
}

// Option configures a Manager.
type Option func(*Manager)

// WithCodec overrides the default JSON codec.
func WithCodec(c codec.FormatCodec) Option {
	return func(m *Manager) { m.codec = c }
}

// WithDebounce sets how long Schedule waits after the last call before
// actually flushing, coalescing bursts of writes into one disk write.
func WithDebounce(d time.Duration) Option {
	return func(m *Manager) { m.debounce = d }
}

// NewManager builds a Manager over store, defaulting to the JSON codec and
// a 100ms debounce window.
func NewManager(store storage.KVStorage, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		codec:    codec.JSON{},
		timers:   map[string]*time.Timer{},
		debounce: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) path(collection string) string {
	return collection + m.codec.Extensions()[0]
}

// Load reads and decodes a collection's persisted state. Concurrent Loads
// for the same collection (e.g. two callers racing the same cold start)
// collapse into a single storage read via singleflight.
func (m *Manager) Load(ctx context.Context, collection string) (map[string]document.Entity, error) {
	v, err, _ := m.loadGroup.Do(collection, func() (any, error) {
		raw, err := m.store.Read(ctx, m.path(collection))
		if err != nil {
			if isNotFound(err) {
				return map[string]document.Entity{}, nil
			}
			return nil, fmt.Errorf("persistence: reading %s: %w", collection, err)
		}
		decoded, err := m.codec.Decode(string(raw))
		if err != nil {
			return nil, fmt.Errorf("persistence: decoding %s: %w", collection, err)
		}
		out := make(map[string]document.Entity, len(decoded))
		for id, rec := range decoded {
			ent := document.Entity{}
			for k, v := range rec {
				ent[k] = document.FromRaw(v)
			}
			out[id] = ent
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]document.Entity), nil
}

// Flush encodes and writes a collection's full state, overwriting whatever
// was previously persisted (persistence is a snapshot, not a log).
func (m *Manager) Flush(ctx context.Context, collection string, entries map[string]document.Entity) error {
	data := make(map[string]map[string]any, len(entries))
	for id, ent := range entries {
		rec := make(map[string]any, len(ent))
		for k, v := range ent {
			rec[k] = v.Raw()
		}
		data[id] = rec
	}
	encoded, err := m.codec.Encode(data)
	if err != nil {
		return fmt.Errorf("persistence: encoding %s: %w", collection, err)
	}
	if err := m.store.Write(ctx, m.path(collection), []byte(encoded)); err != nil {
		return fmt.Errorf("persistence: writing %s: %w", collection, err)
	}
	return nil
}

// Schedule debounces Flush calls for a collection: repeated calls within
// the debounce window reset the timer, so a burst of mutations produces
// one write instead of one per mutation. onErr receives any Flush failure,
// since Schedule itself cannot propagate errors synchronously.
func (m *Manager) Schedule(ctx context.Context, collection string, snapshot func() map[string]document.Entity, onErr func(error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.timers[collection]; ok {
		t.Stop()
	}
	m.timers[collection] = time.AfterFunc(m.debounce, func() {
		if err := m.Flush(ctx, collection, snapshot()); err != nil && onErr != nil {
			onErr(err)
		}
	})
}

func isNotFound(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
