// Package field provides fluent builders for declaring loom collection
// fields.
//
//	field.String("title")
//	field.Number("year").Optional()
//	field.Bool("active").Default(true)
//	field.Array("tags", field.String(""))
//	field.Record("metadata", childFields...)
package field

import "github.com/loomdb/loom/schema"

// Builder is the fluent handle returned by each scalar constructor.
type Builder struct {
	f *schema.Field
}

func newBuilder(name string, typ schema.FieldType) *Builder {
	return &Builder{f: &schema.Field{Name: name, Type: typ}}
}

// String declares a text field.
func String(name string) *Builder { return newBuilder(name, schema.TypeString) }

// Number declares a numeric field.
func Number(name string) *Builder { return newBuilder(name, schema.TypeNumber) }

// Bool declares a boolean field.
func Bool(name string) *Builder { return newBuilder(name, schema.TypeBool) }

// Array declares an ordered-sequence field whose elements follow the shape
// of element.
func Array(name string, element *Builder) *Builder {
	b := newBuilder(name, schema.TypeArray)
	if element != nil {
		ef := element.Descriptor()
		b.f.Element = ef
	}
	return b
}

// Record declares a nested sub-record field composed of the given fields.
func Record(name string, fields ...*Builder) *Builder {
	b := newBuilder(name, schema.TypeRecord)
	nested := &schema.Descriptor{Fields: map[string]*schema.Field{}}
	for _, fb := range fields {
		fd := fb.Descriptor()
		nested.Fields[fd.Name] = fd
	}
	b.f.Nested = nested
	return b
}

// Optional marks the field as not required on create; absent input leaves
// the field unset (null) unless a Default is also set.
func (b *Builder) Optional() *Builder {
	b.f.Optional = true
	return b
}

// Default sets a literal default value, applied during validation when the
// field is absent from the input.
func (b *Builder) Default(v any) *Builder {
	b.f.Default = v
	return b
}

// DefaultFunc sets a function default, called once per validation when the
// field is absent from the input. Takes precedence over Default.
func (b *Builder) DefaultFunc(fn func() any) *Builder {
	b.f.DefaultFn = fn
	return b
}

// Validate appends a validator run against the raw field value during
// validation. Validators run in declaration order; the first failure
// aborts validation of that field.
func (b *Builder) Validate(fn func(any) error) *Builder {
	b.f.Validators = append(b.f.Validators, fn)
	return b
}

// Comment attaches a human-readable description. It is stored on the
// Field only; neither the engine nor cmd/loomgen reads it.
func (b *Builder) Comment(c string) *Builder {
	b.f.Comment = c
	return b
}

// Annotations attaches opaque, mergeable metadata to the field.
func (b *Builder) Annotations(ants ...schema.Annotation) *Builder {
	b.f.Annotations = append(b.f.Annotations, ants...)
	return b
}

// Descriptor finalizes and returns the built Field.
func (b *Builder) Descriptor() *schema.Field {
	return b.f
}
