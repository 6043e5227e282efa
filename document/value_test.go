package document_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/loomdb/loom/document"
)

func TestFromRawRoundTrip(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		raw  any
		kind document.Kind
	}{
		{"nil", nil, document.KindNull},
		{"bool", true, document.KindBool},
		{"float64", 3.5, document.KindNumber},
		{"int", 7, document.KindNumber},
		{"string", "hi", document.KindText},
		{"seq", []any{1.0, "a"}, document.KindSeq},
		{"record", map[string]any{"a": 1.0}, document.KindRecord},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := document.FromRaw(tc.raw)
			assert.Equal(t, tc.kind, v.Kind())
			want := tc.raw
			if i, ok := tc.raw.(int); ok {
				want = float64(i) // every number comes back as float64
			}
			assert.Equal(t, want, v.Raw())
		})
	}
}

func TestEqual(t *testing.T) {
	t.Parallel()

	assert.True(t, document.Equal(document.Number(1), document.Number(1)))
	assert.False(t, document.Equal(document.Number(1), document.Number(2)))
	assert.True(t, document.Equal(document.Null, document.Null))
	assert.False(t, document.Equal(document.Null, document.Number(0)))

	a := document.Record(map[string]document.Value{"x": document.Seq(document.Number(1), document.Number(2))})
	b := document.Record(map[string]document.Value{"x": document.Seq(document.Number(1), document.Number(2))})
	c := document.Record(map[string]document.Value{"x": document.Seq(document.Number(1), document.Number(3))})
	assert.True(t, document.Equal(a, b))
	assert.False(t, document.Equal(a, c))
}

func TestLess(t *testing.T) {
	t.Parallel()

	assert.True(t, document.Less(document.Number(1), document.Number(2)))
	assert.False(t, document.Less(document.Number(2), document.Number(1)))
	assert.True(t, document.Less(document.Text("a"), document.Text("b")))
	assert.True(t, document.Less(document.Bool(false), document.Bool(true)))
	// Less never special-cases null; callers place nulls before calling.
	assert.False(t, document.Less(document.Null, document.Number(1)))
}

func TestValueString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "42", document.Number(42).String())
	assert.Equal(t, "3.5", document.Number(3.5).String())
	assert.Equal(t, "true", document.Bool(true).String())
	assert.Equal(t, "false", document.Bool(false).String())
	assert.Equal(t, "hi", document.Text("hi").String())
	assert.Equal(t, "", document.Null.String())
}

func TestEntityCloneIsDeep(t *testing.T) {
	t.Parallel()

	e := document.Entity{
		"tags": document.Seq(document.Text("a"), document.Text("b")),
		"meta": document.Record(map[string]document.Value{"views": document.Number(1)}),
	}
	clone := e.Clone()

	seq, _ := clone["tags"].Seq()
	seq[0] = document.Text("mutated")

	origSeq, _ := e["tags"].Seq()
	assert.Equal(t, "a", origSeq[0].String())
}

func TestEntityID(t *testing.T) {
	t.Parallel()

	e := document.Entity{"id": document.Text("abc")}
	assert.Equal(t, "abc", e.ID())
	assert.Equal(t, "", document.Entity{}.ID())
}

func TestSortedKeys(t *testing.T) {
	t.Parallel()

	e := document.Entity{"b": document.Null, "a": document.Null, "c": document.Null}
	assert.Equal(t, []string{"a", "b", "c"}, e.SortedKeys())
}
