package relationship_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/loomdb/loom/schema"
	"github.com/loomdb/loom/schema/relationship"
)

func TestFrom(t *testing.T) {
	t.Parallel()

	r := relationship.From("author", "authors").Field("authorId").Descriptor()
	assert.Equal(t, schema.RelationRef, r.Kind)
	assert.Equal(t, "authors", r.Target)
	assert.Equal(t, "authorId", r.ForeignKey)
}

func TestTo(t *testing.T) {
	t.Parallel()

	r := relationship.To("books", "books").ForeignKey("authorId").Descriptor()
	assert.Equal(t, schema.RelationInverse, r.Kind)
	assert.Equal(t, "books", r.Target)
	assert.Equal(t, "authorId", r.ForeignKey)
}
