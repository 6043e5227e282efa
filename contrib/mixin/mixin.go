// Package mixin provides optional, ready-to-use mixins beyond the core
// set in schema/mixin. These are convenience starting points; project
// schemas are free to ignore this package and declare their own fields.
package mixin

import (
	"github.com/loomdb/loom/schema"
	coremixin "github.com/loomdb/loom/schema/mixin"
)

// TenantID adds a required tenantId string field for multi-tenancy. Combined
// with a beforeCreate/beforeUpdate hook or a query interceptor that
// forces an {tenantId: currentTenant} filter, it enables row-level
// tenant isolation without the engine itself knowing about tenancy.
type TenantID struct{}

func (TenantID) Fields() []*schema.Field {
	return []*schema.Field{
		{Name: "tenantId", Type: schema.TypeString},
	}
}

var _ coremixin.Mixin = TenantID{}
