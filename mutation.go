package loom

import (
	"context"
	"fmt"
	"time"

	"github.com/loomdb/loom/document"
	"github.com/loomdb/loom/schema"
)

// mutationImpl is the concrete Mutation every Collection CRUD method
// builds before threading it through the Hook/Mutator chain.
type mutationImpl struct {
	collection string
	op         Op
	data       map[string]any
	// target is the id a single-record Update/Delete/Upsert applies to;
	// empty for Create. The *Many methods do not build a mutationImpl.
	target string
}

func (m *mutationImpl) Type() string { return m.collection }
func (m *mutationImpl) Op() Op       { return m.op }

func (m *mutationImpl) Field(name string) (any, bool) {
	v, ok := m.data[name]
	return v, ok
}

func (m *mutationImpl) SetField(name string, value any) {
	if m.data == nil {
		m.data = map[string]any{}
	}
	m.data[name] = value
}

func (m *mutationImpl) Data() map[string]any { return m.data }

func (c *Collection) runMutation(ctx context.Context, m *mutationImpl) (any, error) {
	base := MutateFunc(c.dispatch)
	mutator := Chain(c.hooks, base)
	return mutator.Mutate(ctx, m)
}

func (c *Collection) dispatch(ctx context.Context, m Mutation) (any, error) {
	mi := m.(*mutationImpl)
	switch {
	case mi.op.Is(OpCreate):
		return c.create(ctx, mi.data)
	case mi.op.Is(OpUpdate):
		return c.update(ctx, mi.target, mi.data)
	case mi.op.Is(OpUpsert):
		return c.upsert(ctx, mi.target, mi.data)
	case mi.op.Is(OpDelete):
		hard, _ := mi.data["hard"].(bool)
		return nil, c.delete(ctx, mi.target, hard)
	default:
		return nil, fmt.Errorf("loom: unsupported single-record op %s", mi.op)
	}
}

// Create validates, runs beforeCreate/afterCreate hooks, and commits one
// new entity.
func (c *Collection) Create(ctx context.Context, data map[string]any) (map[string]any, error) {
	result, err := c.runMutation(ctx, &mutationImpl{collection: c.name, op: OpCreate, data: data})
	if err != nil {
		return nil, err
	}
	return result.(map[string]any), nil
}

func (c *Collection) create(ctx context.Context, data map[string]any) (map[string]any, error) {
	entity, err := c.prepareCreate(ctx, data, c.state.read())
	if err != nil {
		return nil, err
	}
	id := entity.ID()
	c.state.update(func(current map[string]document.Entity) map[string]document.Entity {
		next := make(map[string]document.Entity, len(current)+1)
		for k, v := range current {
			next[k] = v
		}
		next[id] = entity
		return next
	})
	c.scheduleFlush(ctx)
	return c.finishCreate(ctx, entity)
}

// prepareCreate runs beforeCreate hooks, defaulting, validation, uniqueness
// and FK checks against overlay (the state snapshot a batch call is
// staging into) without touching committed state. It is the pre-commit
// half of create, split out so *Many callers can validate an entire batch
// before a single atomic commit.
func (c *Collection) prepareCreate(ctx context.Context, data map[string]any, overlay map[string]document.Entity) (document.Entity, error) {
	data, err := c.runLifecycleHooks(ctx, schema.BeforeCreate, data)
	if err != nil {
		return nil, err
	}
	data = stripComputedFields(data, c.desc)

	if _, ok := data["id"]; !ok || data["id"] == "" {
		data["id"] = c.db.generateID(c.desc)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, ok := c.desc.Fields["createdAt"]; ok {
		if _, present := data["createdAt"]; !present {
			data["createdAt"] = now
		}
	}
	if _, ok := c.desc.Fields["updatedAt"]; ok {
		if _, present := data["updatedAt"]; !present {
			data["updatedAt"] = now
		}
	}

	entity, issues := validate(data, c.desc)
	if len(issues) > 0 {
		return nil, NewValidationError(issues...)
	}

	id := entity.ID()
	if existing, ok := overlay[id]; ok && !isSoftDeleted(existing, c.desc) {
		return nil, &DuplicateKeyError{Collection: c.name, Field: "id", Value: id}
	}
	if err := c.checkUniqueAgainst(overlay, entity, ""); err != nil {
		return nil, err
	}
	if err := c.db.checkDanglingRefs(c.desc, entity); err != nil {
		return nil, err
	}
	return entity, nil
}

// finishCreate runs the post-commit afterCreate/onChange hooks and renders
// the committed entity for the caller.
func (c *Collection) finishCreate(ctx context.Context, entity document.Entity) (map[string]any, error) {
	rendered := c.realize(entityToMap(entity), nil)
	rendered, err := c.runLifecycleHooks(ctx, schema.AfterCreate, rendered)
	if err != nil {
		return nil, err
	}
	return rendered, c.fireOnChange(ctx, rendered)
}

// CreateMany validates and stages every item against one snapshot overlay,
// then commits the whole batch in a single state-cell update: a failure
// partway through leaves the pre-call state untouched (spec's batch
// atomicity invariant). With skipDuplicates, duplicate-id/validation/FK
// failures are excluded from the batch and reported through
// NewAggregateError (the bare error when only one item was skipped, an
// *AggregateError otherwise) instead of aborting it.
func (c *Collection) CreateMany(ctx context.Context, items []map[string]any, skipDuplicates bool) ([]map[string]any, error) {
	snapshot := c.state.read()
	overlay := make(map[string]document.Entity, len(snapshot))
	for k, v := range snapshot {
		overlay[k] = v
	}

	var staged []document.Entity
	var skipped []error
	for _, item := range items {
		entity, err := c.prepareCreate(ctx, item, overlay)
		if err != nil {
			if skipDuplicates {
				skipped = append(skipped, err)
				continue
			}
			return nil, err
		}
		overlay[entity.ID()] = entity
		staged = append(staged, entity)
	}

	c.state.update(func(current map[string]document.Entity) map[string]document.Entity {
		next := make(map[string]document.Entity, len(current)+len(staged))
		for k, v := range current {
			next[k] = v
		}
		for _, e := range staged {
			next[e.ID()] = e
		}
		return next
	})
	c.scheduleFlush(ctx)

	results := make([]map[string]any, 0, len(staged))
	for _, e := range staged {
		rendered, err := c.finishCreate(ctx, e)
		if err != nil {
			return results, err
		}
		results = append(results, rendered)
	}
	if len(skipped) > 0 {
		return results, NewAggregateError(skipped...)
	}
	return results, nil
}

// Update applies patch as a deep-merge against the entity named by id.
func (c *Collection) Update(ctx context.Context, id string, patch map[string]any) (map[string]any, error) {
	result, err := c.runMutation(ctx, &mutationImpl{collection: c.name, op: OpUpdate, data: patch, target: id})
	if err != nil {
		return nil, err
	}
	return result.(map[string]any), nil
}

func (c *Collection) update(ctx context.Context, id string, patch map[string]any) (map[string]any, error) {
	snapshot := c.state.read()
	current, ok := snapshot[id]
	if !ok || isSoftDeleted(current, c.desc) {
		return nil, &NotFoundError{Collection: c.name, ID: id}
	}
	entity, err := c.prepareUpdate(ctx, id, current, patch, snapshot)
	if err != nil {
		return nil, err
	}
	c.state.update(func(curr map[string]document.Entity) map[string]document.Entity {
		out := make(map[string]document.Entity, len(curr))
		for k, v := range curr {
			out[k] = v
		}
		out[id] = entity
		return out
	})
	c.scheduleFlush(ctx)
	return c.finishUpdate(ctx, entity)
}

// prepareUpdate runs beforeUpdate hooks, the deep-merge patch, validation,
// uniqueness and FK checks against overlay without touching committed
// state — the pre-commit half of update, shared with *Many callers that
// must validate an entire batch before one atomic commit.
func (c *Collection) prepareUpdate(ctx context.Context, id string, current document.Entity, patch map[string]any, overlay map[string]document.Entity) (document.Entity, error) {
	patch, err := c.runLifecycleHooks(ctx, schema.BeforeUpdate, patch)
	if err != nil {
		return nil, err
	}
	patch = stripComputedFields(patch, c.desc)

	next, err := applyPatch(current, patch)
	if err != nil {
		return nil, err
	}
	next["id"] = document.Text(id)
	if createdAt, ok := current["createdAt"]; ok {
		next["createdAt"] = createdAt
	}
	if _, ok := c.desc.Fields["updatedAt"]; ok {
		next["updatedAt"] = document.Text(time.Now().UTC().Format(time.RFC3339Nano))
	}

	entity, issues := validate(toAnyMap(next), c.desc)
	if len(issues) > 0 {
		return nil, NewValidationError(issues...)
	}
	if err := c.checkUniqueAgainst(overlay, entity, id); err != nil {
		return nil, err
	}
	if err := c.db.checkDanglingRefs(c.desc, entity); err != nil {
		return nil, err
	}
	return entity, nil
}

// finishUpdate runs the post-commit afterUpdate/onChange hooks and renders
// the committed entity for the caller.
func (c *Collection) finishUpdate(ctx context.Context, entity document.Entity) (map[string]any, error) {
	rendered := c.realize(entityToMap(entity), nil)
	rendered, err := c.runLifecycleHooks(ctx, schema.AfterUpdate, rendered)
	if err != nil {
		return nil, err
	}
	return rendered, c.fireOnChange(ctx, rendered)
}

// UpdateMany applies patch to every entity matching where (up to limit, if
// positive), validating the whole batch against one snapshot overlay and
// committing it in a single state-cell update so a failure partway through
// leaves the pre-call state untouched.
func (c *Collection) UpdateMany(ctx context.Context, where Where, patch map[string]any, limit int) ([]map[string]any, error) {
	snapshot := c.state.read()
	var ids []string
	for id, ent := range snapshot {
		if isSoftDeleted(ent, c.desc) {
			continue
		}
		if where == nil || matchWhere(c.realize(entityToMap(ent), nil), where, c.db.registry) {
			ids = append(ids, id)
			if limit > 0 && len(ids) >= limit {
				break
			}
		}
	}

	overlay := make(map[string]document.Entity, len(snapshot))
	for k, v := range snapshot {
		overlay[k] = v
	}
	staged := make(map[string]document.Entity, len(ids))
	order := make([]string, 0, len(ids))
	for _, id := range ids {
		entity, err := c.prepareUpdate(ctx, id, snapshot[id], patch, overlay)
		if err != nil {
			return nil, err
		}
		overlay[id] = entity
		staged[id] = entity
		order = append(order, id)
	}

	c.state.update(func(curr map[string]document.Entity) map[string]document.Entity {
		out := make(map[string]document.Entity, len(curr))
		for k, v := range curr {
			out[k] = v
		}
		for id, e := range staged {
			out[id] = e
		}
		return out
	})
	c.scheduleFlush(ctx)

	results := make([]map[string]any, 0, len(order))
	for _, id := range order {
		rendered, err := c.finishUpdate(ctx, staged[id])
		if err != nil {
			return results, err
		}
		results = append(results, rendered)
	}
	return results, nil
}

// Upsert creates the entity named by id if absent, or updates it (via
// deep-merge patch semantics) if present.
func (c *Collection) Upsert(ctx context.Context, id string, data map[string]any) (map[string]any, bool, error) {
	result, err := c.runMutation(ctx, &mutationImpl{collection: c.name, op: OpUpsert, data: data, target: id})
	if err != nil {
		return nil, false, err
	}
	res := result.(upsertResult)
	return res.record, res.created, nil
}

type upsertResult struct {
	record  map[string]any
	created bool
}

func (c *Collection) upsert(ctx context.Context, id string, data map[string]any) (any, error) {
	existing, exists := c.state.read()[id]
	if !exists || isSoftDeleted(existing, c.desc) {
		data["id"] = id
		rec, err := c.create(ctx, data)
		return upsertResult{record: rec, created: true}, err
	}
	rec, err := c.update(ctx, id, data)
	return upsertResult{record: rec, created: false}, err
}

// UpsertResult partitions an UpsertMany batch into the three buckets
// spec'd for the operation: every item lands in exactly one.
type UpsertResult struct {
	Created   []map[string]any
	Updated   []map[string]any
	Unchanged []map[string]any
}

// UpsertMany upserts a batch; each item must carry an "id" field. An
// item is classified Unchanged iff it named an existing, live entity and
// its patch is a plain (non-operator) object whose fields already equal
// the stored values; operator-based patches are never classified
// unchanged, per the source behavior this reproduces verbatim rather than
// evaluating operators to detect no-ops.
func (c *Collection) UpsertMany(ctx context.Context, items []map[string]any) (UpsertResult, error) {
	var result UpsertResult
	for _, item := range items {
		id, _ := item["id"].(string)
		if id == "" {
			return result, NewValidationError(Issue{Field: "id", Message: "upsertMany requires an id on every item"})
		}
		existing, existed := c.state.read()[id]
		noop := existed && !isSoftDeleted(existing, c.desc) && patchIsNoop(existing, item)

		rec, wasCreated, err := c.Upsert(ctx, id, item)
		if err != nil {
			return result, err
		}
		switch {
		case wasCreated:
			result.Created = append(result.Created, rec)
		case noop:
			result.Unchanged = append(result.Unchanged, rec)
		default:
			result.Updated = append(result.Updated, rec)
		}
	}
	return result, nil
}

// patchIsNoop reports whether applying patch to existing would change no
// field: every plain scalar/seq/sub-object in patch already equals the
// corresponding stored value. Any operator object anywhere in patch
// (at any nesting level) makes the whole patch non-noop, since operator
// effects are never evaluated to check for a no-op.
func patchIsNoop(existing document.Entity, patch map[string]any) bool {
	for field, raw := range patch {
		if field == "id" || field == "createdAt" || field == "updatedAt" {
			continue
		}
		if sub, isObject := raw.(map[string]any); isObject {
			if isOperatorPatch(sub) {
				return false
			}
			current, _ := existing[field].Record()
			if !patchIsNoop(document.Entity(current), sub) {
				return false
			}
			continue
		}
		if !document.Equal(existing[field], document.FromRaw(raw)) {
			return false
		}
	}
	return true
}

// Delete removes the entity named by id: a soft-delete (stamping
// deletedAt) when hard is false, or a hard delete when hard is true.
// hard=false on a schema with no deletedAt field returns an
// *OperationError rather than silently hard-deleting.
func (c *Collection) Delete(ctx context.Context, id string, hard bool) error {
	_, err := c.runMutation(ctx, &mutationImpl{collection: c.name, op: OpDelete, data: map[string]any{"hard": hard}, target: id})
	return err
}

func (c *Collection) delete(ctx context.Context, id string, hard bool) error {
	current, ok := c.state.read()[id]
	if !ok {
		return &NotFoundError{Collection: c.name, ID: id}
	}
	if !hard && !supportsSoftDelete(c.desc) {
		return &OperationError{Collection: c.name, Reason: "soft-delete requested on a collection whose schema has no deletedAt"}
	}
	if _, err := c.runLifecycleHooks(ctx, schema.BeforeDelete, entityToMap(current)); err != nil {
		return err
	}

	if isSoftDeleted(current, c.desc) && !hard {
		return nil // idempotent: already soft-deleted
	}

	if hard {
		if fkErr, blocked := c.db.hasLiveReferents(c.name, id); blocked {
			return fkErr
		}
		c.state.update(func(curr map[string]document.Entity) map[string]document.Entity {
			out := make(map[string]document.Entity, len(curr))
			for k, v := range curr {
				if k != id {
					out[k] = v
				}
			}
			return out
		})
	} else {
		next := current.Clone()
		now := document.Text(time.Now().UTC().Format(time.RFC3339Nano))
		next["deletedAt"] = now
		if _, ok := c.desc.Fields["updatedAt"]; ok {
			next["updatedAt"] = now
		}
		c.state.update(func(curr map[string]document.Entity) map[string]document.Entity {
			out := make(map[string]document.Entity, len(curr))
			for k, v := range curr {
				out[k] = v
			}
			out[id] = next
			return out
		})
	}
	c.scheduleFlush(ctx)

	if _, err := c.runLifecycleHooks(ctx, schema.AfterDelete, entityToMap(current)); err != nil {
		return err
	}
	return c.fireOnChange(ctx, entityToMap(current))
}

// DeleteMany deletes every entity matching where, up to limit (if
// positive), returning the count removed. A single blocked foreign key
// reference aborts the remainder of the batch, leaving already-applied
// deletes committed: spec calls out that the soft-delete variant skips the
// FK check entirely since no referents become dangling.
func (c *Collection) DeleteMany(ctx context.Context, where Where, hard bool, limit int) (int, error) {
	snapshot := c.state.read()
	var ids []string
	for id, ent := range snapshot {
		if !hard && isSoftDeleted(ent, c.desc) {
			continue
		}
		if where == nil || matchWhere(c.realize(entityToMap(ent), nil), where, c.db.registry) {
			ids = append(ids, id)
			if limit > 0 && len(ids) >= limit {
				break
			}
		}
	}
	count := 0
	for _, id := range ids {
		if err := c.Delete(ctx, id, hard); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// checkUniqueAgainst enforces every Descriptor.UniqueFields tuple against
// live (non-soft-deleted) entities in entries other than excludeID. Batch
// callers pass a staging overlay so two items within the same batch are
// also checked against each other, not just against committed state.
func (c *Collection) checkUniqueAgainst(entries map[string]document.Entity, entity document.Entity, excludeID string) error {
	for _, tuple := range c.desc.UniqueFields {
		for id, other := range entries {
			if id == excludeID || isSoftDeleted(other, c.desc) {
				continue
			}
			if tupleEqual(entity, other, tuple) {
				return &DuplicateKeyError{Collection: c.name, Field: joinFields(tuple), Value: tupleValues(entity, tuple)}
			}
		}
	}
	return nil
}

func tupleEqual(a, b document.Entity, fields []string) bool {
	for _, f := range fields {
		if !document.Equal(a[f], b[f]) {
			return false
		}
	}
	return true
}

func tupleValues(e document.Entity, fields []string) []any {
	out := make([]any, len(fields))
	for i, f := range fields {
		out[i] = e[f].Raw()
	}
	return out
}

func joinFields(fields []string) string {
	out := fields[0]
	for _, f := range fields[1:] {
		out += "+" + f
	}
	return out
}

func (c *Collection) scheduleFlush(ctx context.Context) {
	if c.db.store == nil {
		return
	}
	c.db.store.Schedule(ctx, c.name, c.state.read, func(err error) {
		_ = err // best-effort: a failed debounced flush surfaces on the next explicit Close/Flush
	})
}
