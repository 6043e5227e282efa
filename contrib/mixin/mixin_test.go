package mixin_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/loomdb/loom/contrib/mixin"
)

func TestTenantIDField(t *testing.T) {
	t.Parallel()

	fields := mixin.TenantID{}.Fields()
	assert.Len(t, fields, 1)
	assert.Equal(t, "tenantId", fields[0].Name)
}
