package loom

import (
	"strconv"

	"github.com/loomdb/loom/document"
)

// PageInfo is the cursor pager's result metadata.
type PageInfo struct {
	StartCursor     string
	EndCursor       string
	HasNextPage     bool
	HasPreviousPage bool
}

// Page is the cursor pager's result: a page of records plus PageInfo.
type Page struct {
	Records  []map[string]any
	PageInfo PageInfo
}

// CursorSpec is the cursor pager's request (spec §4.5): Key names the
// field the cursor anchors to (its stringified value IS the cursor,
// never an opaque token), Limit bounds the page, and After/Before are
// mutually exclusive forward/backward anchors. Key == "" means no cursor
// pagination was requested; the engine falls back to plain Offset/Limit.
type CursorSpec struct {
	Key    string
	Limit  int
	After  string
	Before string
}

// encodeCursor renders a record's position into the spec'd cursor value:
// the plain string representation of its key field, not an opaque blob.
// This deliberately limits cursor keys to scalar types (design note §9)
// and lets pagers stay stable even if the collection reorders underneath
// a caller holding only the cursor string.
func encodeCursor(record map[string]any, key string) string {
	return document.FromRaw(record[key]).String()
}

// parseCursorValue recovers a comparable Value from a cursor's string form,
// inferring the target kind from a sample record's value at the same
// field (numbers and booleans were stringified on the way out; this
// reverses that for the one comparison findCursorBoundary needs).
func parseCursorValue(kind document.Kind, s string) document.Value {
	switch kind {
	case document.KindNumber:
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return document.Number(f)
		}
	case document.KindBool:
		switch s {
		case "true":
			return document.Bool(true)
		case "false":
			return document.Bool(false)
		}
	}
	return document.Text(s)
}

// findCursorBoundary locates cursor's position within records (already
// sorted ascending or descending by key, per desc). matched reports
// whether an entity with that exact key value exists; idx is either the
// index of its first occurrence, or — when no entity carries that value —
// the index where it would have appeared in sort order, satisfying
// spec's "cursor need not name a live entity" rule.
func findCursorBoundary(records []map[string]any, key string, desc bool, cursor string) (idx int, matched bool) {
	kind := document.KindText
	if len(records) > 0 {
		kind = document.FromRaw(records[0][key]).Kind()
	}
	target := parseCursorValue(kind, cursor)
	for i, r := range records {
		v := document.FromRaw(r[key])
		if document.Equal(v, target) {
			return i, true
		}
		if !desc && document.Less(target, v) {
			return i, false
		}
		if desc && document.Less(v, target) {
			return i, false
		}
	}
	return len(records), false
}

// paginate applies stage 7 of the read pipeline to an already
// filtered-and-sorted record slice. When spec.Key is set it runs
// the cursor pager (C5); otherwise it's a plain offset/limit slice with
// PageInfo still populated for callers that find it useful.
func paginate(records []map[string]any, sortKey string, sortDesc bool, offset, limit int, spec CursorSpec) (Page, error) {
	if spec.Key == "" {
		return paginateOffset(records, offset, limit, sortKey), nil
	}
	return paginateCursor(records, spec.Key, sortDesc, spec)
}

func paginateOffset(records []map[string]any, offset, limit int, key string) Page {
	start := offset
	if start > len(records) {
		start = len(records)
	}
	end := len(records)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	window := records[start:end]
	page := Page{Records: window}
	if len(window) > 0 {
		page.PageInfo.StartCursor = encodeCursor(window[0], key)
		page.PageInfo.EndCursor = encodeCursor(window[len(window)-1], key)
	}
	page.PageInfo.HasNextPage = end < len(records)
	page.PageInfo.HasPreviousPage = start > 0
	return page
}

func paginateCursor(records []map[string]any, key string, desc bool, spec CursorSpec) (Page, error) {
	start, end := 0, len(records)

	if spec.After != "" {
		idx, matched := findCursorBoundary(records, key, desc, spec.After)
		if matched {
			start = idx + 1
		} else {
			start = idx
		}
	}
	if spec.Before != "" {
		idx, _ := findCursorBoundary(records, key, desc, spec.Before)
		end = idx
	}
	if start > end {
		start = end
	}

	hasPrev := start > 0
	hasNext := end < len(records)

	var window []map[string]any
	switch {
	case spec.Before != "" && spec.After == "":
		// Backward: the last Limit entries strictly before the anchor.
		window = records[start:end]
		if spec.Limit > 0 && len(window) > spec.Limit {
			window = window[len(window)-spec.Limit:]
			hasPrev = true
		}
	default:
		// Forward (After set, or neither set: the first page).
		window = records[start:end]
		if spec.Limit > 0 && len(window) > spec.Limit {
			window = window[:spec.Limit]
			hasNext = true
		}
	}

	page := Page{Records: window}
	if len(window) > 0 {
		page.PageInfo.StartCursor = encodeCursor(window[0], key)
		page.PageInfo.EndCursor = encodeCursor(window[len(window)-1], key)
	}
	page.PageInfo.HasNextPage = hasNext
	page.PageInfo.HasPreviousPage = hasPrev
	return page, nil
}

// validateCursor enforces the C5 entry validation rules of spec §4.5:
// After/Before are mutually exclusive, Limit must be positive, Key must
// name a field present on the collection (stored or computed), and an
// explicit Sort must either be empty or have Key as its primary field (an
// empty Sort is treated as an implicit ascending sort on Key).
func validateCursor(spec *QuerySpec, hasField func(string) bool) error {
	c := spec.Cursor
	if c.Key == "" {
		return nil
	}
	var issues []Issue
	if c.After != "" && c.Before != "" {
		issues = append(issues, Issue{Field: "cursor.after", Message: "after and before are mutually exclusive"})
	}
	if c.Limit <= 0 {
		issues = append(issues, Issue{Field: "cursor.limit", Message: "limit must be greater than zero"})
	}
	if !hasField(c.Key) {
		issues = append(issues, Issue{Field: "cursor.key", Message: "unknown field " + c.Key})
	}
	if len(spec.Sort) == 0 {
		spec.Sort = []SortKey{{Field: c.Key}}
	} else if spec.Sort[0].Field != c.Key {
		issues = append(issues, Issue{Field: "cursor.key", Message: "sort's primary field must match the cursor key"})
	}
	if len(issues) > 0 {
		return NewValidationError(issues...)
	}
	return nil
}
