package loom_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomdb/loom"
	"github.com/loomdb/loom/document"
	"github.com/loomdb/loom/schema"
	"github.com/loomdb/loom/schema/field"
	"github.com/loomdb/loom/schema/mixin"
	"github.com/loomdb/loom/schema/relationship"
)

func booksDescriptor() *schema.Descriptor {
	b := schema.New("books").
		Fields(
			field.String("title").Descriptor(),
			field.Number("year").Descriptor(),
			field.String("authorId").Optional().Descriptor(),
			field.Record("metadata",
				field.Number("views").Default(0.0),
				field.Number("rating").Default(0.0),
				field.Array("tags", field.String("")).Optional(),
			).Optional().Descriptor(),
		).
		Relationships(relationship.From("author", "authors").Field("authorId").Descriptor()).
		Computed("displayName", func(e, _ map[string]any) any {
			title, _ := e["title"].(string)
			year, _ := e["year"].(float64)
			return fmt.Sprintf("%s (%d)", title, int(year))
		}).
		Computed("isClassic", func(e, _ map[string]any) any {
			year, _ := e["year"].(float64)
			return year < 1980
		})
	mixin.Apply(b, mixin.TimeSoftDelete{})
	return b.Descriptor()
}

func authorsDescriptor() *schema.Descriptor {
	b := schema.New("authors").
		Fields(field.String("name").Descriptor()).
		Relationships(relationship.To("books", "books").ForeignKey("authorId").Descriptor())
	mixin.Apply(b, mixin.TimeSoftDelete{})
	return b.Descriptor()
}

func openTestDB(t *testing.T) *loom.Database {
	t.Helper()
	db, err := loom.Open(context.Background(),
		loom.WithCollections(
			loom.CollectionConfig{Descriptor: booksDescriptor()},
			loom.CollectionConfig{Descriptor: authorsDescriptor()},
		),
	)
	require.NoError(t, err)
	return db
}

func seedBooks(t *testing.T, db *loom.Database) {
	t.Helper()
	ctx := context.Background()
	books, ok := db.Collection("books")
	require.True(t, ok)

	seed := []struct {
		title string
		year  float64
	}{
		{"Dune", 1965},
		{"Neuromancer", 1984},
		{"LeftHand", 1969},
		{"PHM", 2021},
		{"SnowCrash", 1992},
	}
	for _, s := range seed {
		_, err := books.Create(ctx, map[string]any{"title": s.title, "year": s.year})
		require.NoError(t, err)
	}
}

// Filter + sort + select, including a field derived from a computed function.
func TestFilterSortSelectWithComputed(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	seedBooks(t, db)
	books, _ := db.Collection("books")

	page, err := books.Find(context.Background(), loom.QuerySpec{
		Where: loom.Where{"isClassic": false},
		Sort:  []loom.SortKey{{Field: "displayName"}},
		Select: []string{"title", "displayName", "isClassic"},
	})
	require.NoError(t, err)

	var titles []string
	for _, rec := range page.Records {
		titles = append(titles, rec["title"].(string))
		assert.ElementsMatch(t, []string{"title", "displayName", "isClassic"}, keysOf(rec))
	}
	assert.Equal(t, []string{"Neuromancer", "PHM", "SnowCrash"}, titles)
}

func keysOf(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// Deep-merge update semantics on nested record fields.
func TestDeepMergeUpdate(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	books, _ := db.Collection("books")
	ctx := context.Background()

	created, err := books.Create(ctx, map[string]any{
		"title": "Dune",
		"year":  1965.0,
		"metadata": map[string]any{
			"views":  150.0,
			"rating": 5.0,
			"tags":   []any{"classic", "epic"},
		},
	})
	require.NoError(t, err)
	id := created["id"].(string)

	updated, err := books.Update(ctx, id, map[string]any{
		"metadata": map[string]any{"views": 500.0},
	})
	require.NoError(t, err)

	meta := updated["metadata"].(map[string]any)
	assert.Equal(t, 500.0, meta["views"])
	assert.Equal(t, 5.0, meta["rating"])
	assert.ElementsMatch(t, []any{"classic", "epic"}, meta["tags"])
}

func TestDeepMergeOperators(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	books, _ := db.Collection("books")
	ctx := context.Background()

	created, err := books.Create(ctx, map[string]any{
		"title":    "Dune",
		"year":     1965.0,
		"metadata": map[string]any{"views": 10.0, "rating": 4.0, "tags": []any{"scifi"}},
	})
	require.NoError(t, err)
	id := created["id"].(string)

	updated, err := books.Update(ctx, id, map[string]any{
		"metadata": map[string]any{
			"views": map[string]any{"$increment": 5.0},
			"tags":  map[string]any{"$append": "epic"},
		},
	})
	require.NoError(t, err)

	meta := updated["metadata"].(map[string]any)
	assert.Equal(t, 15.0, meta["views"])
	assert.ElementsMatch(t, []any{"scifi", "epic"}, meta["tags"])
}

// Foreign-key protection on hard delete.
func TestForeignKeyProtectsHardDelete(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	ctx := context.Background()
	authors, _ := db.Collection("authors")
	books, _ := db.Collection("books")

	author, err := authors.Create(ctx, map[string]any{"name": "Frank Herbert"})
	require.NoError(t, err)
	authorID := author["id"].(string)

	_, err = books.Create(ctx, map[string]any{"title": "Dune", "year": 1965.0, "authorId": authorID})
	require.NoError(t, err)

	err = authors.Delete(ctx, authorID, true)
	require.Error(t, err)
	assert.True(t, loom.IsForeignKeyError(err))

	_, found, err := authors.FindByID(ctx, authorID, false)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestForeignKeyRejectsDanglingRefOnCreate(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	books, _ := db.Collection("books")

	_, err := books.Create(context.Background(), map[string]any{
		"title": "Dune", "year": 1965.0, "authorId": "does-not-exist",
	})
	require.Error(t, err)
	assert.True(t, loom.IsForeignKeyError(err))
}

// Soft-delete semantics: tombstoned but retrievable with IncludeDeleted.
func TestSoftDeleteSemantics(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	ctx := context.Background()
	books, _ := db.Collection("books")

	created, err := books.Create(ctx, map[string]any{"title": "Dune", "year": 1965.0})
	require.NoError(t, err)
	id := created["id"].(string)
	assert.Nil(t, created["deletedAt"])

	require.NoError(t, books.Delete(ctx, id, false))

	_, found, err := books.FindByID(ctx, id, false)
	require.NoError(t, err)
	assert.False(t, found)

	rec, found, err := books.FindByID(ctx, id, true)
	require.NoError(t, err)
	require.True(t, found)
	assert.NotNil(t, rec["deletedAt"])

	firstDeletedAt := rec["deletedAt"]
	require.NoError(t, books.Delete(ctx, id, false)) // idempotent
	rec2, _, err := books.FindByID(ctx, id, true)
	require.NoError(t, err)
	assert.Equal(t, firstDeletedAt, rec2["deletedAt"])

	page, err := books.Find(ctx, loom.QuerySpec{})
	require.NoError(t, err)
	assert.Len(t, page.Records, 0)

	page, err = books.Find(ctx, loom.QuerySpec{IncludeDeleted: true})
	require.NoError(t, err)
	assert.Len(t, page.Records, 1)
}

func TestSoftDeleteRequiresDeletedAtField(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, err := loom.Open(ctx, loom.WithCollections(loom.CollectionConfig{
		Descriptor: schema.New("tags").Fields(field.String("name").Descriptor()).Descriptor(),
	}))
	require.NoError(t, err)
	tags, _ := db.Collection("tags")

	created, err := tags.Create(ctx, map[string]any{"name": "scifi"})
	require.NoError(t, err)

	// No deletedAt declared: a soft-delete request is rejected outright.
	err = tags.Delete(ctx, created["id"].(string), false)
	require.Error(t, err)
	assert.True(t, loom.IsOperationError(err))

	_, found, err := tags.FindByID(ctx, created["id"].(string), true)
	require.NoError(t, err)
	assert.True(t, found)

	require.NoError(t, tags.Delete(ctx, created["id"].(string), true))
	_, found, err = tags.FindByID(ctx, created["id"].(string), true)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestUniqueFieldsExcludeSoftDeleted(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	desc := schema.New("tags").Fields(field.String("name").Descriptor()).Unique("name")
	mixin.Apply(desc, mixin.TimeSoftDelete{})

	db, err := loom.Open(ctx, loom.WithCollections(loom.CollectionConfig{Descriptor: desc.Descriptor()}))
	require.NoError(t, err)
	tags, _ := db.Collection("tags")

	created, err := tags.Create(ctx, map[string]any{"name": "scifi"})
	require.NoError(t, err)

	_, err = tags.Create(ctx, map[string]any{"name": "scifi"})
	require.Error(t, err)
	assert.True(t, loom.IsDuplicateKeyError(err))

	require.NoError(t, tags.Delete(ctx, created["id"].(string), false))

	_, err = tags.Create(ctx, map[string]any{"name": "scifi"})
	require.NoError(t, err, "a soft-deleted entity must not block a new unique value")
}

func TestPopulateRefAndInverse(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	ctx := context.Background()
	authors, _ := db.Collection("authors")
	books, _ := db.Collection("books")

	author, err := authors.Create(ctx, map[string]any{"name": "William Gibson"})
	require.NoError(t, err)
	authorID := author["id"].(string)
	_, err = books.Create(ctx, map[string]any{"title": "Neuromancer", "year": 1984.0, "authorId": authorID})
	require.NoError(t, err)

	bookPage, err := books.Find(ctx, loom.QuerySpec{Populate: []string{"author"}})
	require.NoError(t, err)
	require.Len(t, bookPage.Records, 1)
	populatedAuthor := bookPage.Records[0]["author"].(map[string]any)
	assert.Equal(t, "William Gibson", populatedAuthor["name"])

	authorPage, err := authors.Find(ctx, loom.QuerySpec{Populate: []string{"books"}})
	require.NoError(t, err)
	require.Len(t, authorPage.Records, 1)
	populatedBooks := authorPage.Records[0]["books"].([]any)
	require.Len(t, populatedBooks, 1)
	assert.Equal(t, "Neuromancer", populatedBooks[0].(map[string]any)["title"])
}

func TestMissingRefPopulatesNull(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	books, _ := db.Collection("books")
	ctx := context.Background()
	_, err := books.Create(ctx, map[string]any{"title": "Dune", "year": 1965.0})
	require.NoError(t, err)

	page, err := books.Find(ctx, loom.QuerySpec{Populate: []string{"author"}})
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.Nil(t, page.Records[0]["author"])
}

func TestAggregate(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	seedBooks(t, db)
	books, _ := db.Collection("books")

	results, err := books.Aggregate(context.Background(), nil, loom.AggregateSpec{Op: loom.AggCount})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, float64(5), results[0].Value)

	results, err = books.Aggregate(context.Background(), nil, loom.AggregateSpec{Op: loom.AggMax, Field: "year"})
	require.NoError(t, err)
	assert.Equal(t, 2021.0, results[0].Value)
}

func TestCreateManySkipDuplicates(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	books, _ := db.Collection("books")
	ctx := context.Background()

	existing, err := books.Create(ctx, map[string]any{"title": "Dune", "year": 1965.0})
	require.NoError(t, err)

	items := []map[string]any{
		{"id": existing["id"], "title": "Dune (dup)", "year": 1965.0},
		{"title": "Neuromancer", "year": 1984.0},
	}
	created, err := books.CreateMany(ctx, items, true)
	require.Error(t, err) // the skipped duplicate's error (a single skip is not wrapped in AggregateError)
	assert.Len(t, created, 1)
	assert.Equal(t, "Neuromancer", created[0]["title"])
}

func TestUpsertCreateThenUpdate(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	books, _ := db.Collection("books")
	ctx := context.Background()

	rec, created, err := books.Upsert(ctx, "book-1", map[string]any{"title": "Dune", "year": 1965.0})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "Dune", rec["title"])

	rec, created, err = books.Upsert(ctx, "book-1", map[string]any{"year": 1966.0})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 1966.0, rec["year"])
}

func TestComputedFieldStrippedFromInput(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	books, _ := db.Collection("books")
	ctx := context.Background()

	created, err := books.Create(ctx, map[string]any{
		"title":       "Dune",
		"year":        1965.0,
		"displayName": "hand-crafted, should be dropped",
	})
	require.NoError(t, err)
	assert.Equal(t, "Dune (1965)", created["displayName"])
}

func TestUnknownFieldRejected(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	books, _ := db.Collection("books")

	_, err := books.Create(context.Background(), map[string]any{
		"title": "Dune", "year": 1965.0, "bogus": "nope",
	})
	require.Error(t, err)
	assert.True(t, loom.IsValidationError(err))
}

func TestNotFoundOnUpdateAndDelete(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	books, _ := db.Collection("books")
	ctx := context.Background()

	_, err := books.Update(ctx, "nope", map[string]any{"title": "x"})
	require.Error(t, err)
	assert.True(t, loom.IsNotFoundError(err))

	err = books.Delete(ctx, "nope", false)
	require.Error(t, err)
	assert.True(t, loom.IsNotFoundError(err))
}

func TestRoundTripInvariant(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	books, _ := db.Collection("books")
	ctx := context.Background()

	created, err := books.Create(ctx, map[string]any{"title": "Dune", "year": 1965.0})
	require.NoError(t, err)

	found, ok, err := books.FindByID(ctx, created["id"].(string), false)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, created["title"], found["title"])
	assert.Equal(t, created["createdAt"], found["createdAt"])
	assert.Equal(t, created["updatedAt"], found["updatedAt"])
}

func TestHooksRunInOrderAndCanTransform(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	var order []string
	desc := booksDescriptor()
	desc.Hooks[schema.BeforeCreate] = append(desc.Hooks[schema.BeforeCreate], func(ctx any, data map[string]any) (map[string]any, error) {
		order = append(order, "collection-before")
		data["title"] = data["title"].(string) + "!"
		return data, nil
	})

	db, err := loom.Open(ctx, loom.WithCollections(loom.CollectionConfig{
		Descriptor: desc,
		Hooks: []loom.Hook{
			func(next loom.Mutator) loom.Mutator {
				return loom.MutateFunc(func(ctx context.Context, m loom.Mutation) (any, error) {
					order = append(order, "mutator-before")
					v, err := next.Mutate(ctx, m)
					order = append(order, "mutator-after")
					return v, err
				})
			},
		},
	}))
	require.NoError(t, err)
	books, _ := db.Collection("books")

	created, err := books.Create(ctx, map[string]any{"title": "Dune", "year": 1965.0})
	require.NoError(t, err)
	assert.Equal(t, "Dune!", created["title"])
	assert.Equal(t, []string{"mutator-before", "collection-before", "mutator-after"}, order)
}

// Cursor pagination stays stable across inserts: paging through with
// After tokens never repeats or skips a record that existed at the time
// the cursor was issued, even when new records land ahead of the cursor.
func TestCursorForwardPaginationStableAcrossInsert(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	ctx := context.Background()
	books, _ := db.Collection("books")

	for i := 1; i <= 10; i++ {
		_, err := books.Create(ctx, map[string]any{
			"title": fmt.Sprintf("item-%03d", i),
			"year":  float64(2000 + i),
		})
		require.NoError(t, err)
	}

	cursor := loom.CursorSpec{Key: "title", Limit: 3}
	first, err := books.Find(ctx, loom.QuerySpec{Cursor: cursor})
	require.NoError(t, err)
	require.Len(t, first.Records, 3)
	assert.Equal(t, []string{"item-001", "item-002", "item-003"}, titlesOf(first.Records))
	assert.True(t, first.PageInfo.HasNextPage)

	// Insert a record that sorts ahead of the cursor.
	_, err = books.Create(ctx, map[string]any{"title": "item-000", "year": 1999.0})
	require.NoError(t, err)

	second, err := books.Find(ctx, loom.QuerySpec{
		Cursor: loom.CursorSpec{Key: "title", Limit: 3, After: first.PageInfo.EndCursor},
	})
	require.NoError(t, err)
	require.Len(t, second.Records, 3)
	assert.Equal(t, []string{"item-004", "item-005", "item-006"}, titlesOf(second.Records))
	assert.True(t, second.PageInfo.HasPreviousPage)
}

func titlesOf(records []map[string]any) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r["title"].(string)
	}
	return out
}

func TestDocumentValueIntegration(t *testing.T) {
	t.Parallel()
	// Sanity-check that the engine's public entity maps carry document-raw
	// scalar types (float64 for numbers), not document.Value wrappers.
	db := openTestDB(t)
	books, _ := db.Collection("books")
	created, err := books.Create(context.Background(), map[string]any{"title": "Dune", "year": 1965.0})
	require.NoError(t, err)
	_, isFloat := created["year"].(float64)
	assert.True(t, isFloat)
	_, isValue := created["year"].(document.Value)
	assert.False(t, isValue)
}

func TestCreateManyAbortsAtomically(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	books, _ := db.Collection("books")
	ctx := context.Background()

	existing, err := books.Create(ctx, map[string]any{"title": "Dune", "year": 1965.0})
	require.NoError(t, err)
	before := books.Len()

	items := []map[string]any{
		{"title": "Neuromancer", "year": 1984.0},
		{"id": existing["id"], "title": "Dune (dup)", "year": 1965.0},
		{"title": "SnowCrash", "year": 1992.0},
	}
	_, err = books.CreateMany(ctx, items, false)
	require.Error(t, err)
	assert.True(t, loom.IsDuplicateKeyError(err))
	assert.Equal(t, before, books.Len(), "a failed createMany must leave state untouched")

	page, err := books.Find(ctx, loom.QuerySpec{})
	require.NoError(t, err)
	assert.Len(t, page.Records, 1)
}

func TestUpdateManyAtomicAndLimited(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	books, _ := db.Collection("books")
	ctx := context.Background()
	seedBooks(t, db)

	results, err := books.UpdateMany(ctx, nil, map[string]any{"metadata": map[string]any{"views": 100.0}}, 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
	for _, r := range results {
		meta := r["metadata"].(map[string]any)
		assert.Equal(t, 100.0, meta["views"])
	}
}

func TestUpsertManyPartitionsResults(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	books, _ := db.Collection("books")
	ctx := context.Background()

	existing, err := books.Create(ctx, map[string]any{"title": "Dune", "year": 1965.0})
	require.NoError(t, err)
	existingID, _ := existing["id"].(string)

	result, err := books.UpsertMany(ctx, []map[string]any{
		{"id": existingID, "title": "Dune", "year": 1965.0}, // identical plain patch: unchanged
		{"id": existingID, "year": 1966.0},                  // plain patch that changes a field: updated
		{"id": "book-new", "title": "Neuromancer", "year": 1984.0}, // absent id: created
	})
	require.NoError(t, err)
	assert.Len(t, result.Unchanged, 1)
	assert.Len(t, result.Updated, 1)
	assert.Len(t, result.Created, 1)
	assert.Equal(t, 1966.0, result.Updated[0]["year"])
}

func TestDeepMergeAppendOnStringConcatenates(t *testing.T) {
	t.Parallel()

	db, err := loom.Open(context.Background(), loom.WithCollections(loom.CollectionConfig{
		Descriptor: schema.New("notes").Fields(field.String("body").Descriptor()).Descriptor(),
	}))
	require.NoError(t, err)
	notes, _ := db.Collection("notes")
	ctx := context.Background()

	created, err := notes.Create(ctx, map[string]any{"body": "hello"})
	require.NoError(t, err)

	updated, err := notes.Update(ctx, created["id"].(string), map[string]any{
		"body": map[string]any{"$append": " world"},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello world", updated["body"])
}
