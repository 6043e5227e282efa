package loom

import (
	"sort"

	"github.com/loomdb/loom/document"
)

// updateOperators are the deep-merge patch's leaf operators.
const (
	opSet       = "$set"
	opIncrement = "$increment"
	opDecrement = "$decrement"
	opMultiply  = "$multiply"
	opAppend    = "$append"
	opPrepend   = "$prepend"
	opRemove    = "$remove"
	opToggle    = "$toggle"
)

var updateOperatorNames = map[string]bool{
	opSet: true, opIncrement: true, opDecrement: true, opMultiply: true,
	opAppend: true, opPrepend: true, opRemove: true, opToggle: true,
}

// applyPatch deep-merges a partial-update document into entity, returning
// a brand new Entity (entity is never mutated in place, preserving the
// copy-on-write discipline of collectionState.update). Top-level reserved
// fields (id, createdAt) are never touched by a patch.
func applyPatch(entity document.Entity, patch map[string]any) (document.Entity, error) {
	out := entity.Clone()
	for field, raw := range patch {
		if field == "id" || field == "createdAt" {
			continue
		}
		next, err := patchValue(out[field], raw, field)
		if err != nil {
			return nil, err
		}
		out[field] = next
	}
	return out, nil
}

func patchValue(current document.Value, raw any, path string) (document.Value, error) {
	node, isObject := raw.(map[string]any)
	if !isObject {
		return document.FromRaw(raw), nil // Scalar or Seq replace
	}

	if isOperatorPatch(node) {
		for k := range node {
			if !updateOperatorNames[k] {
				return document.Null, NewValidationError(Issue{Field: path, Message: "cannot mix update operators with plain sub-keys in the same patch node"})
			}
		}
		return applyOperators(current, node, path)
	}

	// SubPatch: deep merge into the current record, creating one if the
	// field was previously null/undefined.
	sub, _ := current.Record()
	if sub == nil {
		sub = map[string]document.Value{}
	}
	merged, err := applyPatch(document.Entity(sub), node)
	if err != nil {
		return document.Null, err
	}
	return document.Record(merged), nil
}

func isOperatorPatch(node map[string]any) bool {
	for k := range node {
		if updateOperatorNames[k] {
			return true
		}
	}
	return false
}

// applyOperators applies every operator key present in node, in a fixed,
// deterministic order (not map iteration order), so a patch combining
// e.g. $increment and $multiply on separate fields within the same
// sub-object always produces the same result.
func applyOperators(current document.Value, node map[string]any, path string) (document.Value, error) {
	names := make([]string, 0, len(node))
	for k := range node {
		names = append(names, k)
	}
	sort.Strings(names)

	for _, name := range names {
		operand := node[name]
		var err error
		current, err = applyOperator(current, name, operand, path)
		if err != nil {
			return document.Null, err
		}
	}
	return current, nil
}

func applyOperator(current document.Value, name string, operand any, path string) (document.Value, error) {
	switch name {
	case opSet:
		return document.FromRaw(operand), nil

	case opIncrement, opDecrement, opMultiply:
		n, ok := current.Number()
		if !ok {
			n = 0
		}
		delta, ok := document.FromRaw(operand).Number()
		if !ok {
			return document.Null, NewValidationError(Issue{Field: path, Message: name + " requires a numeric operand"})
		}
		switch name {
		case opIncrement:
			return document.Number(n + delta), nil
		case opDecrement:
			return document.Number(n - delta), nil
		default:
			return document.Number(n * delta), nil
		}

	case opAppend, opPrepend:
		if s, isText := current.Text(); isText {
			operandText, ok := document.FromRaw(operand).Text()
			if !ok {
				return document.Null, NewValidationError(Issue{Field: path, Message: name + " on a string field requires a string operand"})
			}
			if name == opAppend {
				return document.Text(s + operandText), nil
			}
			return document.Text(operandText + s), nil
		}
		seq, _ := current.Seq()
		items, ok := document.FromRaw(operand).Seq()
		if !ok {
			items = []document.Value{document.FromRaw(operand)}
		}
		var next []document.Value
		if name == opAppend {
			next = append(append([]document.Value{}, seq...), items...)
		} else {
			next = append(append([]document.Value{}, items...), seq...)
		}
		return document.Seq(next...), nil

	case opRemove:
		seq, _ := current.Seq()
		toRemove, isPredicate := document.FromRaw(operand).Seq()
		var next []document.Value
		if isPredicate {
			// Predicate form: an item matching any listed value is removed,
			// every occurrence.
			for _, item := range seq {
				remove := false
				for _, r := range toRemove {
					if document.Equal(item, r) {
						remove = true
						break
					}
				}
				if !remove {
					next = append(next, item)
				}
			}
		} else {
			// Scalar form: only the first equal occurrence is removed.
			target := document.FromRaw(operand)
			removed := false
			for _, item := range seq {
				if !removed && document.Equal(item, target) {
					removed = true
					continue
				}
				next = append(next, item)
			}
		}
		return document.Seq(next...), nil

	case opToggle:
		b, _ := current.Bool()
		return document.Bool(!b), nil

	default:
		return current, nil
	}
}
