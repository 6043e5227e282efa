// Package loom is an embedded, schema-validated, in-memory document store
// with optional file-backed persistence. This file holds the core
// vocabulary the rest of the package builds on, mirroring velox's
// root-package shape:
// an Op enum, a Hook/Mutator middleware chain for mutations, an
// Interceptor chain for queries, and the Query/Mutation interfaces hook
// and interceptor authors program against.
package loom

import (
	"context"
	"fmt"
)

// Op identifies the kind of mutation in flight. It is a bitmask so a hook
// can match more than one operation at once (op.Is(OpUpdate|OpDelete)),
// mirroring generated Mutation.Op() usage
// (compiler/gen/sql/mutation.go's `m.op.Is(OpUpdate | OpDelete)`).
type Op uint16

const (
	OpCreate Op = 1 << iota
	OpCreateMany
	OpUpdate
	OpUpdateMany
	OpUpsert
	OpUpsertMany
	OpDelete
	OpDeleteMany
)

// Is reports whether op is one of the bits set in mask.
func (op Op) Is(mask Op) bool { return op&mask != 0 }

func (op Op) String() string {
	switch op {
	case OpCreate:
		return "OpCreate"
	case OpCreateMany:
		return "OpCreateMany"
	case OpUpdate:
		return "OpUpdate"
	case OpUpdateMany:
		return "OpUpdateMany"
	case OpUpsert:
		return "OpUpsert"
	case OpUpsertMany:
		return "OpUpsertMany"
	case OpDelete:
		return "OpDelete"
	case OpDeleteMany:
		return "OpDeleteMany"
	default:
		return fmt.Sprintf("Op(%d)", uint16(op))
	}
}

// Mutation is the interface hook authors program against: a handle on an
// in-flight create/update/delete before it commits.
type Mutation interface {
	// Type returns the target collection's name.
	Type() string
	// Op returns the operation in flight.
	Op() Op
	// Field returns the candidate value for a field, if the mutation sets
	// it directly (not through a deep operator).
	Field(name string) (any, bool)
	// SetField overwrites the candidate value for a field; used by
	// transforming beforeCreate/beforeUpdate hooks.
	SetField(name string, value any)
	// Data returns the full candidate record the mutation will apply.
	Data() map[string]any
}

// Query is the interface interceptor authors program against: a handle on
// an in-flight query before it executes.
type Query interface {
	// Type returns the target collection's name.
	Type() string
	// Spec returns the query specification that will be executed.
	Spec() *QuerySpec
}

// Mutator runs a Mutation and returns its result value (the created,
// updated, or deleted entity, or a batch summary).
type Mutator interface {
	Mutate(ctx context.Context, m Mutation) (any, error)
}

// MutateFunc adapts a function to a Mutator.
type MutateFunc func(ctx context.Context, m Mutation) (any, error)

func (f MutateFunc) Mutate(ctx context.Context, m Mutation) (any, error) { return f(ctx, m) }

// Hook wraps a Mutator with cross-cutting behavior, exactly ent's
// middleware shape (examples/shop/hooks.go's LoggingHook/TimestampHook):
//
//	func LoggingHook() loom.Hook {
//	    return func(next loom.Mutator) loom.Mutator {
//	        return loom.MutateFunc(func(ctx context.Context, m loom.Mutation) (any, error) {
//	            log.Printf("%s.%s", m.Type(), m.Op())
//	            return next.Mutate(ctx, m)
//	        })
//	    }
//	}
type Hook func(next Mutator) Mutator

// Querier runs a Query and returns its result.
type Querier interface {
	Query(ctx context.Context, q Query) (any, error)
}

// QuerierFunc adapts a function to a Querier.
type QuerierFunc func(ctx context.Context, q Query) (any, error)

func (f QuerierFunc) Query(ctx context.Context, q Query) (any, error) { return f(ctx, q) }

// Interceptor wraps a Querier with cross-cutting behavior, the read-path
// analogue of Hook.
type Interceptor func(next Querier) Querier

// Chain composes hooks so the first hook in the slice runs outermost
// (sees the mutation first, sees the result last), matching the order
// client.Use(a, b, c) registers them: a wraps b wraps c wraps the base
// mutator.
func Chain(hooks []Hook, base Mutator) Mutator {
	m := base
	for i := len(hooks) - 1; i >= 0; i-- {
		m = hooks[i](m)
	}
	return m
}

// ChainInterceptors composes interceptors with the same outermost-first
// ordering as Chain.
func ChainInterceptors(interceptors []Interceptor, base Querier) Querier {
	q := base
	for i := len(interceptors) - 1; i >= 0; i-- {
		q = interceptors[i](q)
	}
	return q
}
