package loom

import (
	"strings"

	"github.com/loomdb/loom/document"
	"github.com/loomdb/loom/plugin"
)

// Where is the filter specification of stage 5: a mapping
// field -> (scalar | operator-object). A scalar means $eq. An
// operator-object combines one or more operator keys with AND.
type Where map[string]any

type builtinOperator struct {
	types    []document.Kind
	evaluate func(fieldValue, operand document.Value) bool
}

var builtinOperators = map[string]builtinOperator{
	"$eq": {nil, func(a, b document.Value) bool { return document.Equal(a, b) }},
	"$ne": {nil, func(a, b document.Value) bool { return !document.Equal(a, b) }},
	"$gt": {
		[]document.Kind{document.KindNumber, document.KindText},
		func(a, b document.Value) bool { return document.Less(b, a) },
	},
	"$gte": {
		[]document.Kind{document.KindNumber, document.KindText},
		func(a, b document.Value) bool { return !document.Less(a, b) },
	},
	"$lt": {
		[]document.Kind{document.KindNumber, document.KindText},
		func(a, b document.Value) bool { return document.Less(a, b) },
	},
	"$lte": {
		[]document.Kind{document.KindNumber, document.KindText},
		func(a, b document.Value) bool { return !document.Less(b, a) },
	},
	"$in": {
		nil,
		func(a, b document.Value) bool {
			seq, ok := b.Seq()
			if !ok {
				return false
			}
			for _, item := range seq {
				if document.Equal(a, item) {
					return true
				}
			}
			return false
		},
	},
	"$nin": {
		nil,
		func(a, b document.Value) bool {
			seq, ok := b.Seq()
			if !ok {
				return true
			}
			for _, item := range seq {
				if document.Equal(a, item) {
					return false
				}
			}
			return true
		},
	},
	"$contains": {
		[]document.Kind{document.KindText},
		func(a, b document.Value) bool {
			as, _ := a.Text()
			bs, _ := b.Text()
			return strings.Contains(as, bs)
		},
	},
	"$startsWith": {
		[]document.Kind{document.KindText},
		func(a, b document.Value) bool {
			as, _ := a.Text()
			bs, _ := b.Text()
			return strings.HasPrefix(as, bs)
		},
	},
	"$endsWith": {
		[]document.Kind{document.KindText},
		func(a, b document.Value) bool {
			as, _ := a.Text()
			bs, _ := b.Text()
			return strings.HasSuffix(as, bs)
		},
	},
}

// matchWhere evaluates a Where clause against record, which is the
// already-realized projection available at filter time: stored fields,
// populated relationships, and computed fields derived so far.
func matchWhere(record map[string]any, where Where, registry *plugin.Registry) bool {
	for field, clause := range where {
		fieldValue := document.FromRaw(record[field])
		if !matchClause(fieldValue, clause, registry) {
			return false
		}
	}
	return true
}

func matchClause(fieldValue document.Value, clause any, registry *plugin.Registry) bool {
	ops, isOperatorObject := clause.(map[string]any)
	if !isOperatorObject {
		return matchOperator("$eq", fieldValue, document.FromRaw(clause), registry)
	}
	for opName, operand := range ops {
		if !matchOperator(opName, fieldValue, document.FromRaw(operand), registry) {
			return false
		}
	}
	return true
}

func matchOperator(name string, fieldValue, operand document.Value, registry *plugin.Registry) bool {
	if bi, ok := builtinOperators[name]; ok {
		if name == "$eq" {
			if operand.IsNull() || fieldValue.IsNull() {
				return fieldValue.IsNull() == operand.IsNull()
			}
			return bi.evaluate(fieldValue, operand)
		}
		if name == "$ne" {
			if operand.IsNull() || fieldValue.IsNull() {
				return fieldValue.IsNull() != operand.IsNull()
			}
			return bi.evaluate(fieldValue, operand)
		}
		if fieldValue.IsNull() {
			return false
		}
		if bi.types != nil && !kindIn(fieldValue.Kind(), bi.types) {
			return true // operator not applicable to this runtime type: silently ignored, as if absent
		}
		return bi.evaluate(fieldValue, operand)
	}

	if registry != nil {
		if op, ok := registry.Operator(name); ok {
			if fieldValue.IsNull() {
				return false
			}
			if !kindIn(fieldValue.Kind(), op.Types) {
				return true
			}
			return op.Evaluate(fieldValue, operand)
		}
	}

	// Unknown operator: treat as absent (matches everything), consistent
	// with "operators on a field whose type isn't declared are ignored".
	return true
}

func kindIn(k document.Kind, kinds []document.Kind) bool {
	for _, kk := range kinds {
		if kk == k {
			return true
		}
	}
	return false
}
