// Package mixin provides reusable schema fragments that can be merged into
// multiple collection descriptors, mirroring ent's
// schema/mixin.Schema pattern.
package mixin

import "github.com/loomdb/loom/schema"

// Mixin contributes fields to a collection descriptor.
type Mixin interface {
	Fields() []*schema.Field
}

// Apply adds every mixin's fields to the builder. Fields are keyed by
// name, so a mixin field replaces a same-named field declared earlier,
// and a field declared after Apply replaces the mixin's.
func Apply(b *schema.Builder, mixins ...Mixin) *schema.Builder {
	for _, m := range mixins {
		b.Fields(m.Fields()...)
	}
	return b
}

// Time adds createdAt/updatedAt string-timestamp fields, matching the
// data model's optional createdAt/updatedAt declarations.
type Time struct{}

func (Time) Fields() []*schema.Field {
	return []*schema.Field{
		{Name: "createdAt", Type: schema.TypeString, Optional: true, Comment: "set on create, preserved thereafter"},
		{Name: "updatedAt", Type: schema.TypeString, Optional: true, Comment: "bumped on every mutation"},
	}
}

// SoftDelete adds the deletedAt field a collection must declare to be
// eligible for soft deletion.
type SoftDelete struct{}

func (SoftDelete) Fields() []*schema.Field {
	return []*schema.Field{
		{Name: "deletedAt", Type: schema.TypeString, Optional: true, Comment: "nil/absent means not deleted"},
	}
}

// TimeSoftDelete combines Time and SoftDelete.
type TimeSoftDelete struct{}

func (TimeSoftDelete) Fields() []*schema.Field {
	return append(Time{}.Fields(), SoftDelete{}.Fields()...)
}
