// Package index provides fluent builders for declaring unique-field
// constraints on a collection, mirroring schema/index
// package shape but expressed against schema.Descriptor.UniqueFields.
package index

import "github.com/loomdb/loom/schema"

// Builder is the fluent handle for an index under construction.
type Builder struct {
	fields []string
}

// Fields starts an index over one or more field names. A single name is a
// simple unique field; multiple names declare a composite unique tuple.
func Fields(names ...string) *Builder {
	return &Builder{fields: names}
}

// Unique is a no-op retained for API symmetry with ent's
// index.Fields(...).Unique() — every loom index is a unique constraint,
// since the engine has no non-unique index structures.
func (b *Builder) Unique() *Builder { return b }

// Apply registers the index on the given schema builder.
func (b *Builder) Apply(sb *schema.Builder) *schema.Builder {
	return sb.Unique(b.fields...)
}
