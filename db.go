package loom

import (
	"context"
	"fmt"
	"sync"

	"github.com/loomdb/loom/document"
	"github.com/loomdb/loom/idgen"
	"github.com/loomdb/loom/persistence"
	"github.com/loomdb/loom/plugin"
	"github.com/loomdb/loom/schema"
	"github.com/loomdb/loom/storage"

	"golang.org/x/sync/errgroup"
)

// CollectionConfig declares one collection at Database construction time,
// mirroring generated schema registration (ent.Schemas) but
// taking a plain schema.Descriptor instead of a generated type.
type CollectionConfig struct {
	Descriptor *schema.Descriptor
	Hooks      []Hook
	Interceptors []Interceptor
}

// Option configures a Database at construction time, following ent's
// functional-options pattern (examples/shop/main.go's ent.Open(..., opts...)).
type Option func(*dbConfig)

type dbConfig struct {
	collections []CollectionConfig
	plugins     []plugin.Plugin
	store       storage.KVStorage
	autoFlush   bool
}

// WithCollections registers one or more collections.
func WithCollections(cfgs ...CollectionConfig) Option {
	return func(c *dbConfig) { c.collections = append(c.collections, cfgs...) }
}

// WithPlugins installs plugins, validated and initialized in registration
// order at Open time.
func WithPlugins(plugins ...plugin.Plugin) Option {
	return func(c *dbConfig) { c.plugins = append(c.plugins, plugins...) }
}

// WithStorage attaches a persistence backend. Without this option the
// Database is purely in-memory.
func WithStorage(store storage.KVStorage) Option {
	return func(c *dbConfig) { c.store = store; c.autoFlush = true }
}

// Database is the root handle: a registry of Collections sharing one
// plugin Registry and one optional persistence backend.
type Database struct {
	collections map[string]*Collection
	registry    *plugin.Registry
	store       *persistence.Manager
	mu          sync.RWMutex
}

// Open validates plugins, builds every declared collection, and (if a
// storage backend was supplied) cold-loads each collection's persisted
// state before returning, matching ent.Open flow of
// "connect, migrate, hand back a ready client".
func Open(ctx context.Context, opts ...Option) (*Database, error) {
	cfg := &dbConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	registry, warnings, err := plugin.Build(ctx, cfg.plugins...)
	if err != nil {
		return nil, fmt.Errorf("loom: opening database: %w", err)
	}
	_ = warnings // codec-override warnings are discarded; Open does not keep or return them

	db := &Database{
		collections: make(map[string]*Collection, len(cfg.collections)),
		registry:    registry,
	}

	for _, cc := range cfg.collections {
		desc := cc.Descriptor
		if desc.Name == "" {
			return nil, fmt.Errorf("loom: collection descriptor missing a name")
		}
		if desc.IDGenerator != "" {
			if err := registry.ValidateIDGenerator(desc.Name, desc.IDGenerator); err != nil {
				return nil, err
			}
		}
		col := &Collection{
			name:    desc.Name,
			desc:    desc,
			state:   newCollectionState(),
			db:      db,
			hooks:   cc.Hooks,
			interceptors: cc.Interceptors,
		}
		db.collections[desc.Name] = col
	}

	if cfg.store != nil {
		db.store = persistence.NewManager(cfg.store)
		for _, col := range db.collections {
			entries, err := db.store.Load(ctx, col.name)
			if err != nil {
				return nil, fmt.Errorf("loom: loading %s: %w", col.name, err)
			}
			col.state.load(entries)
		}
	}

	return db, nil
}

// Collection returns the named collection handle, or false if undeclared.
func (db *Database) Collection(name string) (*Collection, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	c, ok := db.collections[name]
	return c, ok
}

// MustCollection is Collection, panicking on an undeclared name; intended
// for program startup wiring, not request-path code.
func (db *Database) MustCollection(name string) *Collection {
	c, ok := db.Collection(name)
	if !ok {
		panic(fmt.Sprintf("loom: no such collection %q", name))
	}
	return c
}

// Close flushes every collection's pending state to persistence (each
// collection's flush is independent, so they run concurrently via
// errgroup, and every failed flush is reported) and then shuts plugins
// down in reverse registration order.
func (db *Database) Close(ctx context.Context) error {
	if db.store != nil {
		var (
			g    errgroup.Group
			mu   sync.Mutex
			errs []error
		)
		for _, col := range db.collections {
			col := col
			g.Go(func() error {
				if err := db.store.Flush(ctx, col.name, col.state.read()); err != nil {
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}
				return nil
			})
		}
		_ = g.Wait()
		if err := NewAggregateError(errs...); err != nil {
			return fmt.Errorf("loom: flushing on close: %w", err)
		}
	}
	return db.registry.Shutdown(ctx)
}

func (db *Database) flushOne(ctx context.Context, col *Collection) error {
	if db.store == nil {
		return nil
	}
	return db.store.Flush(ctx, col.name, col.state.read())
}

func (db *Database) generateID(desc *schema.Descriptor) string {
	if desc.IDGenerator != "" {
		if gen, ok := db.registry.IDGenerator(desc.IDGenerator); ok {
			return gen()
		}
	}
	return idgen.DefaultGenerator()
}

func (db *Database) entityOf(collection, id string) (document.Entity, bool) {
	col, ok := db.Collection(collection)
	if !ok {
		return nil, false
	}
	e, ok := col.state.read()[id]
	return e, ok
}
