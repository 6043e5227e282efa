// Package relationship provides fluent builders for declaring
// cross-collection relationships, mirroring the shape of ent's
// schema/edge package (edge.To / edge.From) but for ref/inverse
// document relationships instead of SQL foreign keys.
//
//	// Book -> Author (ref): book.author_id points at an author.
//	relationship.From("author", "authors").Field("author_id")
//
//	// Author -> Book (inverse): derived view, never stored.
//	relationship.To("books", "books").ForeignKey("author_id")
package relationship

import "github.com/loomdb/loom/schema"

// Builder is the fluent handle for a relationship under construction.
type Builder struct {
	r *schema.Relationship
}

// From declares a "ref" relationship: this collection stores a foreign-key
// field pointing at target.
func From(name, target string) *Builder {
	return &Builder{r: &schema.Relationship{Name: name, Kind: schema.RelationRef, Target: target}}
}

// To declares an "inverse" relationship: a derived view of every entity in
// target whose ForeignKey equals this entity's id. Never stored.
func To(name, target string) *Builder {
	return &Builder{r: &schema.Relationship{Name: name, Kind: schema.RelationInverse, Target: target}}
}

// Field names the foreign-key field on this collection (ref relationships)
// or on the target collection (inverse relationships).
func (b *Builder) Field(name string) *Builder {
	b.r.ForeignKey = name
	return b
}

// ForeignKey is an alias for Field, read more naturally on inverse
// relationships (edge.To(...).ForeignKey("author_id")).
func (b *Builder) ForeignKey(name string) *Builder {
	return b.Field(name)
}

// Descriptor finalizes and returns the built Relationship.
func (b *Builder) Descriptor() *schema.Relationship {
	return b.r
}
