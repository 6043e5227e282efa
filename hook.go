package loom

import (
	"context"
	"fmt"

	"github.com/loomdb/loom/schema"
)

var hookEventNames = map[schema.HookEvent]string{
	schema.BeforeCreate: "beforeCreate",
	schema.AfterCreate:  "afterCreate",
	schema.BeforeUpdate: "beforeUpdate",
	schema.AfterUpdate:  "afterUpdate",
	schema.BeforeDelete: "beforeDelete",
	schema.AfterDelete:  "afterDelete",
}

// runLifecycleHooks runs the data-transform hook chain for one lifecycle
// event in a fixed order: global (plugin) hooks for the event first,
// then the collection's own schema-declared hooks, each transforming
// data in turn.
func (c *Collection) runLifecycleHooks(ctx context.Context, event schema.HookEvent, data map[string]any) (map[string]any, error) {
	name := hookEventNames[event]
	for _, gh := range c.db.registry.GlobalHooks() {
		if gh.Event != name {
			continue
		}
		next, err := gh.Fn(ctx, c.name, data)
		if err != nil {
			return nil, fmt.Errorf("loom: global hook %s on %s: %w", name, c.name, err)
		}
		data = next
	}
	for _, fn := range c.desc.Hooks[event] {
		next, err := fn(ctx, data)
		if err != nil {
			return nil, fmt.Errorf("loom: %s hook %s: %w", c.name, name, err)
		}
		data = next
	}
	return data, nil
}

// fireOnChange runs every plugin's onChange global hook after a mutation
// commits. Failures are logged into the returned error but never unwind
// the already-committed mutation: onChange is a notification, not a
// veto.
func (c *Collection) fireOnChange(ctx context.Context, data map[string]any) error {
	var errs []error
	for _, gh := range c.db.registry.GlobalHooks() {
		if gh.Event != "onChange" {
			continue
		}
		if _, err := gh.Fn(ctx, c.name, data); err != nil {
			errs = append(errs, err)
		}
	}
	return NewAggregateError(errs...)
}
