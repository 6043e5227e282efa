package loom

import (
	"context"

	"github.com/loomdb/loom/schema"
)

// Collection is the public handle to one declared collection: schema,
// state, and the hook/interceptor chains scoped to it.
type Collection struct {
	name         string
	desc         *schema.Descriptor
	state        *collectionState
	db           *Database
	hooks        []Hook
	interceptors []Interceptor
}

// Name returns the collection's name.
func (c *Collection) Name() string { return c.name }

// Descriptor returns the collection's schema descriptor.
func (c *Collection) Descriptor() *schema.Descriptor { return c.desc }

// Len returns the number of entities currently stored, including
// soft-deleted tombstones.
func (c *Collection) Len() int { return len(c.state.read()) }

// Flush forces an immediate, synchronous persistence write of the
// collection's current state, bypassing the debounced scheduleFlush window
// mutations normally go through. A no-op when the database has no store.
func (c *Collection) Flush(ctx context.Context) error {
	return c.db.flushOne(ctx, c)
}
