package filter

import (
	"fmt"

	"github.com/alfredjeanlab/vitro/internal/model"
)

// OrderBy is the null-ordering direction the API accepts per field.
type OrderBy string

const (
	AscNullsLast   OrderBy = "AscNullsLast"
	DescNullsLast  OrderBy = "DescNullsLast"
	AscNullsFirst  OrderBy = "AscNullsFirst"
	DescNullsFirst OrderBy = "DescNullsFirst"
)

// OrderByClause builds the orderBy variable of sorts against obj. Ascending
// sorts put nulls first and descending sorts put them last.
func OrderByClause(sorts []model.ViewSort, obj *model.ObjectMetadata) (map[string]any, error) {
	out := make(map[string]any, len(sorts))
	for i, s := range sorts {
		field, ok := obj.FieldByID(s.FieldMetadataID)
		if !ok {
			return nil, fmt.Errorf("sort %d: %w: %s", i, ErrUnknownField, s.FieldMetadataID)
		}
		switch s.Direction {
		case model.SortAsc:
			out[field.Name] = string(AscNullsFirst)
		case model.SortDesc:
			out[field.Name] = string(DescNullsLast)
		default:
			return nil, fmt.Errorf("sort %d: invalid direction %q", i, s.Direction)
		}
	}
	return out, nil
}

// SortDefinitions returns the sort definitions of obj's sortable fields.
func SortDefinitions(obj *model.ObjectMetadata) []model.SortDefinition {
	var out []model.SortDefinition
	for _, f := range obj.ActiveFields() {
		if f.Type == model.FieldRelation || f.Name == "id" {
			continue
		}
		out = append(out, model.SortDefinition{FieldMetadataID: f.ID, Label: f.Label, IconName: f.Icon})
	}
	return out
}
