package loom

import (
	"fmt"

	"github.com/loomdb/loom/document"
	"github.com/loomdb/loom/schema"
)

const maxPopulateDepth = 8

// populatePaths resolves the dot-separated relationship paths requested by
// a query's Populate option (e.g. "author", "comments.author") into a
// nested map attached under each relationship's name, following the
// query pipeline's ref/inverse resolution rules.
func (c *Collection) populatePaths(record map[string]any, paths []string) map[string]any {
	if len(paths) == 0 {
		return record
	}
	grouped := map[string][]string{}
	for _, p := range paths {
		head, rest := splitPath(p)
		if rest != "" {
			grouped[head] = append(grouped[head], rest)
		} else if _, ok := grouped[head]; !ok {
			grouped[head] = nil
		}
	}
	out := make(map[string]any, len(record))
	for k, v := range record {
		out[k] = v
	}
	for relName, nested := range grouped {
		out[relName] = c.populateOne(record, relName, nested, 0)
	}
	return out
}

func splitPath(p string) (head, rest string) {
	for i := 0; i < len(p); i++ {
		if p[i] == '.' {
			return p[:i], p[i+1:]
		}
	}
	return p, ""
}

func (c *Collection) populateOne(record map[string]any, relName string, nested []string, depth int) any {
	rel, ok := c.desc.Relationships[relName]
	if !ok || depth >= maxPopulateDepth {
		return nil
	}
	target, ok := c.db.Collection(rel.Target)
	if !ok {
		return nil
	}

	switch rel.Kind {
	case schema.RelationRef:
		fk := rel.ForeignKey
		if fk == "" {
			fk = relName + "Id"
		}
		raw, ok := record[fk]
		if !ok {
			return nil
		}
		id, ok := document.FromRaw(raw).Text()
		if !ok || id == "" {
			return nil
		}
		ent, found := c.db.entityOf(rel.Target, id)
		if !found {
			return nil
		}
		rendered := entityToMap(ent)
		if len(nested) > 0 {
			rendered = target.populatePaths(rendered, nested)
		}
		return rendered

	case schema.RelationInverse:
		fk := rel.ForeignKey
		if fk == "" {
			return nil
		}
		id, _ := document.FromRaw(record["id"]).Text()
		var results []any
		for _, ent := range target.state.read() {
			fkVal, _ := ent[fk].Text()
			if fkVal != id {
				continue
			}
			rendered := entityToMap(ent)
			if len(nested) > 0 {
				rendered = target.populatePaths(rendered, nested)
			}
			results = append(results, rendered)
		}
		return results

	default:
		return nil
	}
}

func entityToMap(e document.Entity) map[string]any {
	out := make(map[string]any, len(e))
	for k, v := range e {
		out[k] = v.Raw()
	}
	return out
}

// hasLiveReferents reports whether any live (non-soft-deleted) entity in
// any other collection holds an inverse-or-ref relationship pointing at
// id in collectionName, blocking a hard delete 
func (db *Database) hasLiveReferents(collectionName, id string) (*ForeignKeyError, bool) {
	for _, col := range db.collections {
		for relName, rel := range col.desc.Relationships {
			if rel.Kind != schema.RelationRef || rel.Target != collectionName {
				continue
			}
			fk := rel.ForeignKey
			if fk == "" {
				fk = relName + "Id"
			}
			for _, ent := range col.state.read() {
				if isSoftDeleted(ent, col.desc) {
					continue
				}
				if v, _ := ent[fk].Text(); v == id {
					return &ForeignKeyError{
						Collection:       col.name,
						Field:            fk,
						Value:            id,
						TargetCollection: collectionName,
					}, true
				}
			}
		}
	}
	return nil, false
}

// checkDanglingRefs validates that every ref relationship's foreign key in
// candidate points at a live entity in its target collection, enforcing
// referential integrity at write time.
func (db *Database) checkDanglingRefs(desc *schema.Descriptor, candidate document.Entity) error {
	for relName, rel := range desc.Relationships {
		if rel.Kind != schema.RelationRef {
			continue
		}
		fk := rel.ForeignKey
		if fk == "" {
			fk = relName + "Id"
		}
		raw, ok := candidate[fk]
		if !ok || raw.IsNull() {
			continue
		}
		id, _ := raw.Text()
		target, ok := db.Collection(rel.Target)
		if !ok {
			return fmt.Errorf("loom: %s.%s: unknown target collection %q", desc.Name, fk, rel.Target)
		}
		ent, found := target.state.read()[id]
		if !found || isSoftDeleted(ent, target.desc) {
			return &ForeignKeyError{Collection: desc.Name, Field: fk, Value: id, TargetCollection: rel.Target}
		}
	}
	return nil
}
