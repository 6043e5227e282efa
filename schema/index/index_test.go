package index_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/loomdb/loom/schema"
	"github.com/loomdb/loom/schema/index"
)

func TestApply(t *testing.T) {
	t.Parallel()

	b := schema.New("books")
	index.Fields("title", "year").Unique().Apply(b)

	desc := b.Descriptor()
	assert.Equal(t, [][]string{{"title", "year"}}, desc.UniqueFields)
}
