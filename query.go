package loom

import "context"

// QuerySpec is the full query request threaded through the pipeline and
// exposed to Interceptors via Query.Spec(). Stage order is fixed: snapshot -> soft-delete filter -> populate -> compute -> filter
// -> sort -> paginate -> select. Offset/Limit drive plain stage-7
// pagination; Cursor (when its Key is set) switches stage 7 to the C5
// cursor pager instead.
type QuerySpec struct {
	Where          Where
	Sort           []SortKey
	Offset         int
	Limit          int
	Populate       []string
	Select         []string
	Cursor         CursorSpec
	IncludeDeleted bool
}

// queryRequest adapts a collection + spec pair to the Query interface
// interceptors program against.
type queryRequest struct {
	collection string
	spec       *QuerySpec
}

func (q *queryRequest) Type() string      { return q.collection }
func (q *queryRequest) Spec() *QuerySpec  { return q.spec }

// Find runs the full 8-stage read pipeline and returns a cursor page.
func (c *Collection) Find(ctx context.Context, spec QuerySpec) (Page, error) {
	base := QuerierFunc(func(ctx context.Context, q Query) (any, error) {
		return c.runFind(q.Spec())
	})
	q := ChainInterceptors(c.interceptors, base)
	result, err := q.Query(ctx, &queryRequest{collection: c.name, spec: &spec})
	if err != nil {
		return Page{}, err
	}
	return result.(Page), nil
}

// FindOne runs Find with Limit:1 and returns the sole record, or
// (nil, false) if the result set is empty.
func (c *Collection) FindOne(ctx context.Context, spec QuerySpec) (map[string]any, bool, error) {
	if spec.Cursor.Key == "" {
		spec.Limit = 1
	}
	page, err := c.Find(ctx, spec)
	if err != nil {
		return nil, false, err
	}
	if len(page.Records) == 0 {
		return nil, false, nil
	}
	return page.Records[0], true, nil
}

// FindByID looks a single entity up by primary key, ignoring soft-delete
// state only when includeDeleted is true.
func (c *Collection) FindByID(ctx context.Context, id string, includeDeleted bool) (map[string]any, bool, error) {
	ent, ok := c.state.read()[id]
	if !ok {
		return nil, false, nil
	}
	if !includeDeleted && isSoftDeleted(ent, c.desc) {
		return nil, false, nil
	}
	record := c.realize(entityToMap(ent), nil)
	return record, true, nil
}

// realize runs the populate and compute stages (3 and 4) on one record.
func (c *Collection) realize(record map[string]any, populate []string) map[string]any {
	record = c.populatePaths(record, populate)
	record = c.deriveComputed(record)
	return record
}

func (c *Collection) runFind(spec *QuerySpec) (Page, error) {
	if err := validateSortSelect(spec, c.hasField); err != nil {
		return Page{}, err
	}
	if err := validateCursor(spec, c.hasField); err != nil {
		return Page{}, err
	}

	snapshot := c.state.read() // stage 1: snapshot

	records := make([]map[string]any, 0, len(snapshot))
	for _, ent := range snapshot {
		if !spec.IncludeDeleted && isSoftDeleted(ent, c.desc) { // stage 2: soft-delete filter
			continue
		}
		record := c.realize(entityToMap(ent), spec.Populate) // stages 3-4
		records = append(records, record)
	}

	if spec.Where != nil { // stage 5
		filtered := records[:0:0]
		for _, r := range records {
			if matchWhere(r, spec.Where, c.db.registry) {
				filtered = append(filtered, r)
			}
		}
		records = filtered
	}

	applySort(records, spec.Sort) // stage 6

	primaryKey, primaryDesc := "id", false
	if len(spec.Sort) > 0 {
		primaryKey, primaryDesc = spec.Sort[0].Field, spec.Sort[0].Desc
	}
	page, err := paginate(records, primaryKey, primaryDesc, spec.Offset, spec.Limit, spec.Cursor) // stage 7
	if err != nil {
		return Page{}, err
	}

	if len(spec.Select) > 0 { // stage 8
		projected := make([]map[string]any, len(page.Records))
		for i, r := range page.Records {
			projected[i] = applySelect(r, spec.Select)
		}
		page.Records = projected
	}

	return page, nil
}

// validateSortSelect rejects a Sort or Select naming a field the
// collection never declares (stored or computed), per spec §4.4's
// "unknown field in sort/select" ValidationError.
func validateSortSelect(spec *QuerySpec, hasField func(string) bool) error {
	var issues []Issue
	for _, key := range spec.Sort {
		if !hasField(key.Field) {
			issues = append(issues, Issue{Field: "sort." + key.Field, Message: "unknown field " + key.Field})
		}
	}
	for _, f := range spec.Select {
		if !hasField(f) {
			issues = append(issues, Issue{Field: "select." + f, Message: "unknown field " + f})
		}
	}
	if len(issues) > 0 {
		return NewValidationError(issues...)
	}
	return nil
}

// hasField reports whether name is a valid sort/select/cursor field for
// this collection: a declared stored field, a declared computed field, a
// declared relationship name, or one of the always-present entity fields.
func (c *Collection) hasField(name string) bool {
	switch name {
	case "id", "createdAt", "updatedAt", "deletedAt":
		return true
	}
	if _, ok := c.desc.Fields[name]; ok {
		return true
	}
	if _, ok := c.desc.Computed[name]; ok {
		return true
	}
	if _, ok := c.desc.Relationships[name]; ok {
		return true
	}
	return false
}

// Aggregate runs the read pipeline through stage 5 (filter), then reduces
// the surviving records per agg, bypassing sort/paginate/select.
func (c *Collection) Aggregate(ctx context.Context, where Where, agg AggregateSpec) ([]AggregateResult, error) {
	snapshot := c.state.read()
	records := make([]map[string]any, 0, len(snapshot))
	for _, ent := range snapshot {
		if isSoftDeleted(ent, c.desc) {
			continue
		}
		records = append(records, c.realize(entityToMap(ent), nil))
	}
	if where != nil {
		filtered := records[:0:0]
		for _, r := range records {
			if matchWhere(r, where, c.db.registry) {
				filtered = append(filtered, r)
			}
		}
		records = filtered
	}
	return runAggregate(records, agg), nil
}
