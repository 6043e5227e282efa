// Package schema provides the building blocks for defining loom collection
// schemas: fields, relationships, indexes, hooks, and computed fields.
//
// This package is the entry point for schema definition and re-exports the
// core types from its subpackages:
//
//   - [github.com/loomdb/loom/schema/field]: fluent field builders
//   - [github.com/loomdb/loom/schema/relationship]: ref/inverse relationship builders
//   - [github.com/loomdb/loom/schema/index]: unique-field index builders
//   - [github.com/loomdb/loom/schema/mixin]: reusable schema fragments
//
// A collection is declared as a plain value, not a code-generated type:
//
//	books := schema.New("books").
//	    Fields(
//	        field.String("title").Descriptor(),
//	        field.Number("year").Descriptor(),
//	    ).
//	    Relationships(
//	        relationship.From("author", "authors").Field("authorId").Descriptor(),
//	    ).
//	    Computed("displayName", func(entity, populated map[string]any) any {
//	        title, _ := entity["title"].(string)
//	        year, _ := entity["year"].(float64)
//	        return fmt.Sprintf("%s (%d)", title, int(year))
//	    })
package schema

import (
	"github.com/go-openapi/inflect"
)

// FieldType enumerates the scalar/sequence/record kinds a Field may hold.
type FieldType uint8

const (
	TypeString FieldType = iota
	TypeNumber
	TypeBool
	TypeArray
	TypeRecord
)

// Annotation is an opaque, mergeable piece of schema metadata. Plugins and
// peripheral tooling (e.g. cmd/loomgen) attach annotations; the core engine
// never interprets them.
type Annotation interface {
	Name() string
}

// Merger lets an Annotation combine with a previous instance of itself
// registered under the same Name, mirroring ent's
// schema/edge.Annotation.Merge contract.
type Merger interface {
	Merge(Annotation) Annotation
}

// Field describes one entry of a collection's declared shape.
type Field struct {
	Name       string
	Type       FieldType
	Optional   bool
	Nested     *Descriptor // set when Type == TypeRecord
	Element    *Field      // set when Type == TypeArray, describes element shape
	Default    any         // literal default, or nil
	DefaultFn  func() any  // function default, takes precedence over Default when non-nil
	Validators []func(any) error
	Comment    string
	Annotations []Annotation
}

// Descriptor is the immutable, post-build shape of a collection.
type Descriptor struct {
	Name         string
	Fields       map[string]*Field
	UniqueFields [][]string // each entry is a single field name or a composite tuple
	Relationships map[string]*Relationship
	Computed     map[string]ComputedFunc
	Hooks        HookSet
	IDGenerator  string
	File         string
}

// RelationKind distinguishes a stored foreign key (ref) from a derived,
// never-stored reverse view (inverse).
type RelationKind uint8

const (
	RelationRef RelationKind = iota
	RelationInverse
)

// Relationship describes one entry of Descriptor.Relationships.
type Relationship struct {
	Name       string
	Kind       RelationKind
	Target     string
	ForeignKey string // required for Kind == RelationInverse; optional field name for Kind == RelationRef
}

// ComputedFunc is a pure function of (entity, populated-view) -> value.
// The engine passes the same record as both arguments: the stored fields
// plus only the relationships the query actually populated; reading an
// unpopulated relationship observes nil.
type ComputedFunc func(entity map[string]any, populated map[string]any) any

// HookEvent enumerates the six lifecycle events a collection may hook.
type HookEvent uint8

const (
	BeforeCreate HookEvent = iota
	AfterCreate
	BeforeUpdate
	AfterUpdate
	BeforeDelete
	AfterDelete
)

// HookFunc is a collection-declared lifecycle hook.
type HookFunc func(ctx any, data map[string]any) (map[string]any, error)

// HookSet holds the ordered per-collection hook lists, keyed by event.
type HookSet map[HookEvent][]HookFunc

// Builder provides the fluent API used to assemble a Descriptor.
type Builder struct {
	d *Descriptor
}

// New starts a Builder for a collection. If name is empty, callers should
// set it later via Named (for example from DefaultCollectionName); loom.Open
// rejects a descriptor whose name is still empty.
func New(name string) *Builder {
	return &Builder{d: &Descriptor{
		Name:          name,
		Fields:        map[string]*Field{},
		Relationships: map[string]*Relationship{},
		Computed:      map[string]ComputedFunc{},
		Hooks:         HookSet{},
	}}
}

// Named overrides the collection name.
func (b *Builder) Named(name string) *Builder {
	b.d.Name = name
	return b
}

// Fields appends field descriptors.
func (b *Builder) Fields(fields ...*Field) *Builder {
	for _, f := range fields {
		b.d.Fields[f.Name] = f
	}
	return b
}

// Unique declares a unique-field constraint, either a single field name or
// a composite tuple of field names.
func (b *Builder) Unique(fields ...string) *Builder {
	b.d.UniqueFields = append(b.d.UniqueFields, fields)
	return b
}

// Relationships appends relationship descriptors.
func (b *Builder) Relationships(rels ...*Relationship) *Builder {
	for _, r := range rels {
		b.d.Relationships[r.Name] = r
	}
	return b
}

// Computed registers a derived field.
func (b *Builder) Computed(name string, fn ComputedFunc) *Builder {
	b.d.Computed[name] = fn
	return b
}

// Hook appends a lifecycle hook for the given event, in declaration order.
func (b *Builder) Hook(event HookEvent, fn HookFunc) *Builder {
	b.d.Hooks[event] = append(b.d.Hooks[event], fn)
	return b
}

// IDGenerator names a registered CustomIdGenerator for this collection.
func (b *Builder) IDGenerator(name string) *Builder {
	b.d.IDGenerator = name
	return b
}

// File records a file path on the descriptor. The persistence manager
// does not read it: it names each collection's file from the collection
// name and the codec's first extension.
func (b *Builder) File(path string) *Builder {
	b.d.File = path
	return b
}

// Descriptor finalizes and returns the built Descriptor. If Name is still
// empty, it is left empty for the caller to fill via DefaultCollectionName.
func (b *Builder) Descriptor() *Descriptor {
	return b.d
}

// DefaultCollectionName pluralizes a Go-facing type label into the
// conventional collection name (e.g. "Book" -> "books", "Category" ->
// "categories"). It is a helper for callers choosing a name; nothing in
// loom applies it automatically.
func DefaultCollectionName(goType string) string {
	return inflect.Pluralize(inflect.Underscore(goType))
}
