// Package plugin implements the plugin registry (C3): a build-time
// validated set of user plugins exposing merged operators, ID generators,
// codecs, and global hooks to the query/mutation engine.
package plugin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/loomdb/loom/document"
)

// CustomOperator extends the query engine's filter stage ($eq, $gt, ...)
// with a plugin-contributed operator.
type CustomOperator struct {
	// Name must start with "$" and must not collide with a built-in or
	// another plugin's operator name.
	Name string
	// Types lists the runtime value kinds this operator applies to.
	// Operators evaluated against a value outside this list are treated
	// as absent and silently ignored during the filter stage.
	Types []document.Kind
	// Evaluate implements the operator: (field value, operand) -> bool.
	Evaluate func(fieldValue, operand document.Value) bool
}

// CustomIDGenerator produces entity ids on create when a collection names
// it via Descriptor.IDGenerator.
type CustomIDGenerator func() string

// FormatCodec encodes/decodes a collection's entity map to/from bytes for
// a set of file extensions.
type FormatCodec interface {
	Name() string
	Extensions() []string
	Encode(data map[string]map[string]any) (string, error)
	Decode(raw string) (map[string]map[string]any, error)
}

// GlobalHook fires for every collection's mutation of the given event.
type GlobalHook struct {
	Event   string // "beforeCreate", "afterCreate", "beforeUpdate", "afterUpdate", "beforeDelete", "afterDelete", "onChange"
	Fn      func(ctx context.Context, collection string, data map[string]any) (map[string]any, error)
}

// Plugin is the contract every registered plugin satisfies. Every method
// may return a nil/empty value; a plugin that only contributes one
// capability leaves the rest zero.
type Plugin interface {
	Name() string
	Dependencies() []string
	Operators() []CustomOperator
	IDGenerators() map[string]CustomIDGenerator
	Codecs() []FormatCodec
	GlobalHooks() []GlobalHook
	Initialize(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// Base provides no-op defaults for every Plugin method; concrete plugins
// embed Base and override only what they contribute, mirroring the
// mixin.Schema embed-and-override pattern.
type Base struct{}

func (Base) Dependencies() []string                         { return nil }
func (Base) Operators() []CustomOperator                    { return nil }
func (Base) IDGenerators() map[string]CustomIDGenerator      { return nil }
func (Base) Codecs() []FormatCodec                           { return nil }
func (Base) GlobalHooks() []GlobalHook                       { return nil }
func (Base) Initialize(ctx context.Context) error            { return nil }
func (Base) Shutdown(ctx context.Context) error              { return nil }

var builtinOperators = map[string]bool{
	"$eq": true, "$ne": true, "$gt": true, "$gte": true, "$lt": true, "$lte": true,
	"$in": true, "$nin": true, "$contains": true, "$startsWith": true, "$endsWith": true,
}

// Reason tags a PluginError's cause.
type Reason string

const (
	ReasonMissingName         Reason = "missing_name"
	ReasonInvalidOperator     Reason = "invalid_operator"
	ReasonOperatorConflict    Reason = "operator_conflict"
	ReasonInvalidCodec        Reason = "invalid_codec"
	ReasonMissingDependencies Reason = "missing_dependencies"
	ReasonMissingIDGenerator  Reason = "missing_id_generator"
)

// Error reports a plugin validation or lifecycle failure, tagged with a
// Reason so callers can branch on the cause without string matching.
type Error struct {
	Plugin string
	Reason Reason
	Detail string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("plugin: %s: %s: %s", e.Plugin, e.Reason, e.Detail)
	}
	return fmt.Sprintf("plugin: %s: %s", e.Plugin, e.Reason)
}

// Registry is the built, immutable view the engine consults once built.
type Registry struct {
	plugins      []Plugin
	operators    map[string]CustomOperator
	idGenerators map[string]CustomIDGenerator
	codecs       map[string]FormatCodec // keyed by extension, later registration wins
	globalHooks  []GlobalHook
	warnings     []string
}

// Build validates an ordered list of plugins and returns the merged
// Registry, failing closed with a *Error on any violation.
func Build(ctx context.Context, plugins ...Plugin) (*Registry, []string, error) {
	r := &Registry{
		operators:    map[string]CustomOperator{},
		idGenerators: map[string]CustomIDGenerator{},
		codecs:       map[string]FormatCodec{},
	}

	named := map[string]bool{}
	for _, p := range plugins {
		name := p.Name()
		if name == "" {
			return nil, nil, &Error{Reason: ReasonMissingName, Detail: "plugin has empty name"}
		}
		named[name] = true
	}
	for _, p := range plugins {
		for _, dep := range p.Dependencies() {
			if !named[dep] {
				return nil, nil, &Error{Plugin: p.Name(), Reason: ReasonMissingDependencies, Detail: dep}
			}
		}
	}

	for _, p := range plugins {
		for _, op := range p.Operators() {
			if !strings.HasPrefix(op.Name, "$") || op.Name == "$" {
				return nil, nil, &Error{Plugin: p.Name(), Reason: ReasonInvalidOperator, Detail: op.Name}
			}
			if len(op.Types) == 0 || op.Evaluate == nil {
				return nil, nil, &Error{Plugin: p.Name(), Reason: ReasonInvalidOperator, Detail: op.Name}
			}
			if builtinOperators[op.Name] {
				return nil, nil, &Error{Plugin: p.Name(), Reason: ReasonOperatorConflict, Detail: op.Name}
			}
			if _, exists := r.operators[op.Name]; exists {
				return nil, nil, &Error{Plugin: p.Name(), Reason: ReasonOperatorConflict, Detail: op.Name}
			}
			r.operators[op.Name] = op
		}

		for name, gen := range p.IDGenerators() {
			r.idGenerators[name] = gen
		}

		for _, codec := range p.Codecs() {
			if codec.Name() == "" || len(codec.Extensions()) == 0 {
				return nil, nil, &Error{Plugin: p.Name(), Reason: ReasonInvalidCodec, Detail: codec.Name()}
			}
			for _, ext := range codec.Extensions() {
				if _, exists := r.codecs[ext]; exists {
					r.warnings = append(r.warnings, fmt.Sprintf("plugin %s: codec for extension %q overrides a previously registered codec", p.Name(), ext))
				}
				r.codecs[ext] = codec
			}
		}

		r.globalHooks = append(r.globalHooks, p.GlobalHooks()...)
		r.plugins = append(r.plugins, p)
	}

	for _, p := range r.plugins {
		if err := p.Initialize(ctx); err != nil {
			return nil, nil, fmt.Errorf("plugin %s: initialize: %w", p.Name(), err)
		}
	}

	return r, r.warnings, nil
}

// ValidateIDGenerator checks that name, if non-empty, is present in the
// registry, failing with ReasonMissingIDGenerator otherwise. Called once
// per collection at database build time.
func (r *Registry) ValidateIDGenerator(collection, name string) error {
	if name == "" {
		return nil
	}
	if _, ok := r.idGenerators[name]; !ok {
		return &Error{Plugin: collection, Reason: ReasonMissingIDGenerator, Detail: name}
	}
	return nil
}

// Operator looks up a plugin-contributed operator by name.
func (r *Registry) Operator(name string) (CustomOperator, bool) {
	op, ok := r.operators[name]
	return op, ok
}

// IDGenerator looks up a plugin-contributed id generator by name.
func (r *Registry) IDGenerator(name string) (CustomIDGenerator, bool) {
	gen, ok := r.idGenerators[name]
	return gen, ok
}

// Codec looks up a codec by file extension (e.g. ".json").
func (r *Registry) Codec(extension string) (FormatCodec, bool) {
	c, ok := r.codecs[extension]
	return c, ok
}

// GlobalHooks returns every plugin's global hooks in registration order.
func (r *Registry) GlobalHooks() []GlobalHook {
	return r.globalHooks
}

// Shutdown runs every plugin's Shutdown effect in reverse registration
// order. Each failure is isolated: all plugins are given the chance to
// shut down regardless of earlier failures, and every failure is
// collected into the returned error.
func (r *Registry) Shutdown(ctx context.Context) error {
	var errs []error
	for i := len(r.plugins) - 1; i >= 0; i-- {
		if err := r.plugins[i].Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("plugin %s: shutdown: %w", r.plugins[i].Name(), err))
		}
	}
	return errors.Join(errs...)
}
