package schema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/loomdb/loom/schema"
)

func TestBuilderDescriptor(t *testing.T) {
	t.Parallel()

	desc := schema.New("books").
		Fields(&schema.Field{Name: "title", Type: schema.TypeString}).
		Unique("title").
		Relationships(&schema.Relationship{Name: "author", Kind: schema.RelationRef, Target: "authors"}).
		Computed("displayName", func(e, pop map[string]any) any { return e["title"] }).
		IDGenerator("custom").
		File("books.json").
		Descriptor()

	assert.Equal(t, "books", desc.Name)
	assert.Contains(t, desc.Fields, "title")
	assert.Equal(t, [][]string{{"title"}}, desc.UniqueFields)
	assert.Contains(t, desc.Relationships, "author")
	assert.Contains(t, desc.Computed, "displayName")
	assert.Equal(t, "custom", desc.IDGenerator)
	assert.Equal(t, "books.json", desc.File)
}

func TestBuilderNamed(t *testing.T) {
	t.Parallel()

	desc := schema.New("").Named("authors").Descriptor()
	assert.Equal(t, "authors", desc.Name)
}

func TestDefaultCollectionName(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"Book":     "books",
		"Category": "categories",
		"Author":   "authors",
	}
	for in, want := range cases {
		assert.Equal(t, want, schema.DefaultCollectionName(in))
	}
}
