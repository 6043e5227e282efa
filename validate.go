package loom

import (
	"fmt"

	"github.com/loomdb/loom/document"
	"github.com/loomdb/loom/schema"
)

// stripComputedFields removes any key from raw whose name matches a
// computed-field name on desc, per the "Computed-field input
// sanitization". It returns a new map; raw is never mutated in place.
func stripComputedFields(raw map[string]any, desc *schema.Descriptor) map[string]any {
	if len(desc.Computed) == 0 {
		return raw
	}
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		if _, computed := desc.Computed[k]; computed {
			continue
		}
		out[k] = v
	}
	return out
}

// validate is the pure (raw, schema) -> (entity, issues) function of
// Defaults are applied as part of validation. Keys not
// declared in the schema (and not id/createdAt/updatedAt/deletedAt) are
// rejected.
func validate(raw map[string]any, desc *schema.Descriptor) (document.Entity, []Issue) {
	var issues []Issue
	entity := document.Entity{}

	reserved := map[string]bool{"id": true, "createdAt": true, "updatedAt": true, "deletedAt": true}

	for key, rawVal := range raw {
		if reserved[key] {
			entity[key] = document.FromRaw(rawVal)
			continue
		}
		fd, ok := desc.Fields[key]
		if !ok {
			issues = append(issues, Issue{Field: key, Message: "unknown field"})
			continue
		}
		v, fieldIssues := validateField(key, rawVal, fd)
		issues = append(issues, fieldIssues...)
		if len(fieldIssues) == 0 {
			entity[key] = v
		}
	}

	for name, fd := range desc.Fields {
		if _, present := entity[name]; present {
			continue
		}
		def, hasDefault := fieldDefault(fd)
		if hasDefault {
			entity[name] = def
			continue
		}
		if !fd.Optional {
			issues = append(issues, Issue{Field: name, Message: "required field missing"})
		}
	}

	return entity, issues
}

func fieldDefault(fd *schema.Field) (document.Value, bool) {
	if fd.DefaultFn != nil {
		return document.FromRaw(fd.DefaultFn()), true
	}
	if fd.Default != nil {
		return document.FromRaw(fd.Default), true
	}
	return document.Null, false
}

func validateField(path string, raw any, fd *schema.Field) (document.Value, []Issue) {
	if raw == nil {
		if fd.Optional {
			return document.Null, nil
		}
		return document.Null, []Issue{{Field: path, Message: "must not be null"}}
	}

	v := document.FromRaw(raw)

	var typeIssue *Issue
	switch fd.Type {
	case schema.TypeString:
		if v.Kind() != document.KindText {
			typeIssue = &Issue{Field: path, Message: "expected string"}
		}
	case schema.TypeNumber:
		if v.Kind() != document.KindNumber {
			typeIssue = &Issue{Field: path, Message: "expected number"}
		}
	case schema.TypeBool:
		if v.Kind() != document.KindBool {
			typeIssue = &Issue{Field: path, Message: "expected boolean"}
		}
	case schema.TypeArray:
		if v.Kind() != document.KindSeq {
			typeIssue = &Issue{Field: path, Message: "expected array"}
		}
	case schema.TypeRecord:
		if v.Kind() != document.KindRecord {
			typeIssue = &Issue{Field: path, Message: "expected record"}
		}
	}
	if typeIssue != nil {
		return document.Null, []Issue{*typeIssue}
	}

	var issues []Issue
	if fd.Type == schema.TypeRecord && fd.Nested != nil {
		sub, _ := v.Record()
		subEntity, subIssues := validate(toAnyMap(sub), fd.Nested)
		for _, si := range subIssues {
			issues = append(issues, Issue{Field: path + "." + si.Field, Message: si.Message})
		}
		if len(subIssues) == 0 {
			v = document.Record(subEntity)
		}
	}

	if fd.Type == schema.TypeArray && fd.Element != nil {
		seq, _ := v.Seq()
		out := make([]document.Value, len(seq))
		for i, elem := range seq {
			ev, eIssues := validateField(fmt.Sprintf("%s[%d]", path, i), elem.Raw(), fd.Element)
			for _, ei := range eIssues {
				issues = append(issues, ei)
			}
			if len(eIssues) == 0 {
				out[i] = ev
			}
		}
		if len(issues) == 0 {
			v = document.Value(document.Seq(out...))
		}
	}

	for _, validator := range fd.Validators {
		if err := validator(raw); err != nil {
			issues = append(issues, Issue{Field: path, Message: err.Error()})
			break
		}
	}

	if len(issues) > 0 {
		return document.Null, issues
	}
	return v, nil
}

func toAnyMap(rec map[string]document.Value) map[string]any {
	out := make(map[string]any, len(rec))
	for k, v := range rec {
		out[k] = v.Raw()
	}
	return out
}
