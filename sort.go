package loom

import (
	"sort"

	"github.com/loomdb/loom/document"
)

// SortKey is one entry of the query engine's Sort stage: a field path and a direction. Multiple keys break ties in order.
type SortKey struct {
	Field string
	Desc  bool
}

// applySort stable-sorts records in place according to keys. Null/undefined
// values always sort to the end of their key, regardless of direction,
// matching document.Less's contract.
func applySort(records []map[string]any, keys []SortKey) {
	if len(keys) == 0 {
		return
	}
	sort.SliceStable(records, func(i, j int) bool {
		for _, key := range keys {
			a := document.FromRaw(records[i][key.Field])
			b := document.FromRaw(records[j][key.Field])
			if a.IsNull() && b.IsNull() {
				continue
			}
			if a.IsNull() {
				return false
			}
			if b.IsNull() {
				return true
			}
			if document.Equal(a, b) {
				continue
			}
			less := document.Less(a, b)
			if key.Desc {
				return !less
			}
			return less
		}
		return false
	})
}
