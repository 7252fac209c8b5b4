package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/vitro/internal/model"
)

func addViewFlags(cmd *cobra.Command) {
	cmd.Flags().StringArray("filter", nil, "filter as field:operand:value (repeatable; operands: is, isNot, contains, doesNotContain, greaterThan, lessThan)")
	cmd.Flags().StringArray("sort", nil, "sort as field[:asc|desc] (repeatable)")
	cmd.Flags().StringSlice("field", nil, "visible columns, in order (default: all)")
}

// viewFromFlags builds an ad-hoc view of obj from the --filter, --sort and
// --field flags.
func viewFromFlags(cmd *cobra.Command, obj *model.ObjectMetadata) (model.View, error) {
	filters, _ := cmd.Flags().GetStringArray("filter")
	sorts, _ := cmd.Flags().GetStringArray("sort")
	fields, _ := cmd.Flags().GetStringSlice("field")
	return buildView(obj, filters, sorts, fields)
}

func buildView(obj *model.ObjectMetadata, filters, sorts, fields []string) (model.View, error) {
	v := model.View{ObjectMetadataID: obj.ID}

	for _, f := range filters {
		parts := strings.SplitN(f, ":", 3)
		if len(parts) != 3 {
			return v, fmt.Errorf("invalid filter %q: expected field:operand:value", f)
		}
		field, ok := obj.Field(parts[0])
		if !ok {
			return v, fmt.Errorf("invalid filter %q: %s has no field %q", f, obj.NamePlural, parts[0])
		}
		v.Filters = append(v.Filters, model.ViewFilter{
			FieldMetadataID: field.ID,
			Operand:         model.Operand(parts[1]),
			Value:           parts[2],
			DisplayValue:    parts[2],
		})
	}

	for _, s := range sorts {
		name, dir, _ := strings.Cut(s, ":")
		field, ok := obj.Field(name)
		if !ok {
			return v, fmt.Errorf("invalid sort %q: %s has no field %q", s, obj.NamePlural, name)
		}
		direction := model.SortAsc
		switch strings.ToLower(dir) {
		case "", "asc":
		case "desc":
			direction = model.SortDesc
		default:
			return v, fmt.Errorf("invalid sort %q: direction must be asc or desc", s)
		}
		v.Sorts = append(v.Sorts, model.ViewSort{FieldMetadataID: field.ID, Direction: direction})
	}

	for i, name := range fields {
		field, ok := obj.Field(name)
		if !ok {
			return v, fmt.Errorf("invalid field %q: %s has no such field", name, obj.NamePlural)
		}
		v.Fields = append(v.Fields, model.ViewField{
			FieldMetadataID: field.ID,
			Position:        float64(i),
			IsVisible:       true,
			Size:            100,
		})
	}
	return v, nil
}
