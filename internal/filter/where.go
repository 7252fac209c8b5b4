// Package filter turns view filters and sorts into GraphQL where/orderBy
// variables, and evaluates where clauses against records locally.
package filter

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/alfredjeanlab/vitro/internal/model"
)

// ErrUnknownField is returned when a filter or sort names a field the object
// does not have.
var ErrUnknownField = errors.New("unknown field")

// WhereClause builds the where clause of filters against obj. Filters with an
// empty value are skipped. Multiple filters are combined with "and"; no
// filters yield an empty clause.
func WhereClause(filters []model.ViewFilter, obj *model.ObjectMetadata) (map[string]any, error) {
	clauses := make([]any, 0, len(filters))
	for i := range filters {
		f := &filters[i]
		if strings.TrimSpace(f.Value) == "" {
			continue
		}
		if err := model.ValidateViewFilter(f); err != nil {
			return nil, fmt.Errorf("filter %d: %w", i, err)
		}
		field, ok := obj.FieldByID(f.FieldMetadataID)
		if !ok {
			return nil, fmt.Errorf("filter %d: %w: %s", i, ErrUnknownField, f.FieldMetadataID)
		}
		c, err := clause(f, field)
		if err != nil {
			return nil, fmt.Errorf("filter %d on %s: %w", i, field.Name, err)
		}
		clauses = append(clauses, c)
	}
	if len(clauses) == 0 {
		return map[string]any{}, nil
	}
	return map[string]any{"and": clauses}, nil
}

func clause(f *model.ViewFilter, field model.FieldMetadata) (map[string]any, error) {
	typ := f.Definition.Type
	if typ == "" {
		typ = filterTypeOf(field.Type)
	}

	switch typ {
	case model.FilterText:
		return textClause(f.Operand, field.Name, f.Value)

	case model.FilterNumber, model.FilterDate:
		var v any = f.Value
		if typ == model.FilterNumber {
			n, err := strconv.ParseFloat(f.Value, 64)
			if err != nil {
				return nil, fmt.Errorf("parsing number %q: %w", f.Value, err)
			}
			v = n
		}
		op, err := rangeOp(f.Operand)
		if err != nil {
			return nil, err
		}
		return map[string]any{field.Name: map[string]any{op: v}}, nil

	case model.FilterCurrency:
		n, err := strconv.ParseFloat(f.Value, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing amount %q: %w", f.Value, err)
		}
		op, err := rangeOp(f.Operand)
		if err != nil {
			return nil, err
		}
		return map[string]any{field.Name: map[string]any{"amountMicros": map[string]any{op: n * 1e6}}}, nil

	case model.FilterEntity:
		name := field.Name
		if field.Type == model.FieldRelation {
			name += "Id"
		}
		eq := map[string]any{name: map[string]any{"eq": f.Value}}
		switch f.Operand {
		case model.OperandIs:
			return eq, nil
		case model.OperandIsNot:
			return map[string]any{"not": eq}, nil
		}

	case model.FilterFullName:
		first := ilike(f.Value)
		last := ilike(f.Value)
		byFirst := map[string]any{field.Name: map[string]any{"firstName": first}}
		byLast := map[string]any{field.Name: map[string]any{"lastName": last}}
		switch f.Operand {
		case model.OperandContains:
			return map[string]any{"or": []any{byFirst, byLast}}, nil
		case model.OperandDoesNotContain:
			return map[string]any{"and": []any{
				map[string]any{"not": byFirst},
				map[string]any{"not": byLast},
			}}, nil
		}

	case model.FilterLink:
		byURL := map[string]any{field.Name: map[string]any{"url": ilike(f.Value)}}
		switch f.Operand {
		case model.OperandContains:
			return byURL, nil
		case model.OperandDoesNotContain:
			return map[string]any{"not": byURL}, nil
		}

	default:
		return nil, fmt.Errorf("unsupported filter type %q", typ)
	}
	return nil, fmt.Errorf("operand %q not supported for %s filters", f.Operand, typ)
}

func textClause(op model.Operand, name, value string) (map[string]any, error) {
	c := map[string]any{name: ilike(value)}
	switch op {
	case model.OperandContains:
		return c, nil
	case model.OperandDoesNotContain:
		return map[string]any{"not": c}, nil
	}
	return nil, fmt.Errorf("operand %q not supported for text filters", op)
}

func rangeOp(op model.Operand) (string, error) {
	switch op {
	case model.OperandGreaterThan:
		return "gte", nil
	case model.OperandLessThan:
		return "lte", nil
	}
	return "", fmt.Errorf("operand %q not supported for range filters", op)
}

func ilike(term string) map[string]any {
	return map[string]any{"ilike": "%" + term + "%"}
}

// filterTypeOf maps a field type to the filter input used for it.
func filterTypeOf(t model.FieldType) model.FilterType {
	switch t {
	case model.FieldNumber, model.FieldProbability:
		return model.FilterNumber
	case model.FieldDate:
		return model.FilterDate
	case model.FieldCurrency:
		return model.FilterCurrency
	case model.FieldFullName:
		return model.FilterFullName
	case model.FieldLink:
		return model.FilterLink
	case model.FieldRelation, model.FieldUUID:
		return model.FilterEntity
	}
	return model.FilterText
}

// Definitions returns the filter definitions of obj's filterable fields.
func Definitions(obj *model.ObjectMetadata) []model.FilterDefinition {
	var out []model.FilterDefinition
	for _, f := range obj.ActiveFields() {
		if f.Type == model.FieldBoolean || f.Name == "id" {
			continue
		}
		out = append(out, model.FilterDefinition{
			FieldMetadataID: f.ID,
			Label:           f.Label,
			IconName:        f.Icon,
			Type:            filterTypeOf(f.Type),
		})
	}
	return out
}
