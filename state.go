package loom

import (
	"sync/atomic"

	"github.com/loomdb/loom/document"
)

// collectionState is the C2 state cell: a mapping id -> entity, wrapped
// in a mutable cell with atomic read/update. Snapshotting is
// copy-on-write: read() hands out the current map (callers must not
// mutate its entries in place), and update() builds the full next map and
// publishes it in one atomic step, so concurrent readers never observe a
// half-applied mutation.
type collectionState struct {
	ptr atomic.Pointer[map[string]document.Entity]
}

func newCollectionState() *collectionState {
	s := &collectionState{}
	empty := map[string]document.Entity{}
	s.ptr.Store(&empty)
	return s
}

// read returns a snapshot of the collection's entries. The returned map
// itself is never mutated after publication: callers treat it (and the
// document.Entity values within it) as read-only.
func (s *collectionState) read() map[string]document.Entity {
	return *s.ptr.Load()
}

// update computes next = fn(current) and publishes it with a
// CompareAndSwap retry loop: if another writer published in between, fn
// re-runs against the fresh current so its result is never lost. fn must
// return a brand new map (or the same map if nothing changed); it must
// not mutate current in place, since concurrent readers may be holding it,
// and it must be safe to call more than once since a losing CAS re-invokes it.
func (s *collectionState) update(fn func(current map[string]document.Entity) map[string]document.Entity) {
	for {
		old := s.ptr.Load()
		next := fn(*old)
		if s.ptr.CompareAndSwap(old, &next) {
			return
		}
	}
}

// load is used by the cold-start persistence path to seed the state cell
// directly, bypassing the update() function-of-current form.
func (s *collectionState) load(entries map[string]document.Entity) {
	s.ptr.Store(&entries)
}
