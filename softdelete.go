package loom

import (
	"github.com/loomdb/loom/document"
	"github.com/loomdb/loom/schema"
)

// supportsSoftDelete reports whether desc declares a deletedAt field,
// which gates whether soft-delete semantics apply at all.
func supportsSoftDelete(desc *schema.Descriptor) bool {
	_, ok := desc.Fields["deletedAt"]
	return ok
}

// isSoftDeleted reports whether ent is a soft-deleted tombstone, excluded
// from default queries and treated as absent for uniqueness checks.
func isSoftDeleted(ent document.Entity, desc *schema.Descriptor) bool {
	if !supportsSoftDelete(desc) {
		return false
	}
	v, ok := ent["deletedAt"]
	return ok && !v.IsNull()
}
