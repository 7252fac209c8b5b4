// Package view holds view-bar state: what a table or board is showing, with
// which filters, sorts and fields, and how many records matched.
package view

import (
	"slices"
	"sort"

	"github.com/alfredjeanlab/vitro/internal/client"
	"github.com/alfredjeanlab/vitro/internal/filter"
	"github.com/alfredjeanlab/vitro/internal/model"
	"github.com/alfredjeanlab/vitro/internal/reactive"
)

// State families, keyed by view bar id.
var (
	EntityCountInCurrentView = reactive.NewFamily[string]("view.entityCountInCurrentView", 0)
	Type                     = reactive.NewFamily[string]("view.type", model.ViewTable)
	ObjectMetadataID         = reactive.NewFamily[string]("view.objectMetadataId", "")

	AvailableFilterDefinitions = reactive.NewFamily[string, []model.FilterDefinition]("view.availableFilterDefinitions", nil)
	AvailableSortDefinitions   = reactive.NewFamily[string, []model.SortDefinition]("view.availableSortDefinitions", nil)
	AvailableFieldDefinitions  = reactive.NewFamily[string, []model.ColumnDefinition]("view.availableFieldDefinitions", nil)

	CurrentFilters = reactive.NewFamily[string, []model.ViewFilter]("view.currentFilters", nil)
	CurrentSorts   = reactive.NewFamily[string, []model.ViewSort]("view.currentSorts", nil)
	CurrentFields  = reactive.NewFamily[string, []model.ViewField]("view.currentFields", nil)
)

// Bar is the view bar with the given id.
type Bar struct {
	store *reactive.Store
	id    string
}

// NewBar returns the view bar id of store.
func NewBar(store *reactive.Store, id string) *Bar {
	return &Bar{store: store, id: id}
}

// ID returns the view bar id.
func (b *Bar) ID() string { return b.id }

// Apply makes v the current view.
func (b *Bar) Apply(v model.View) {
	reactive.Set(b.store, Type.Of(b.id), v.Type)
	reactive.Set(b.store, ObjectMetadataID.Of(b.id), v.ObjectMetadataID)
	reactive.Set(b.store, CurrentFilters.Of(b.id), v.Filters)
	reactive.Set(b.store, CurrentSorts.Of(b.id), v.Sorts)
	reactive.Set(b.store, CurrentFields.Of(b.id), v.Fields)
}

// Current returns the current view state.
func (b *Bar) Current() model.View {
	return model.View{
		Type:             reactive.Get(b.store, Type.Of(b.id)),
		ObjectMetadataID: reactive.Get(b.store, ObjectMetadataID.Of(b.id)),
		Filters:          reactive.Get(b.store, CurrentFilters.Of(b.id)),
		Sorts:            reactive.Get(b.store, CurrentSorts.Of(b.id)),
		Fields:           reactive.Get(b.store, CurrentFields.Of(b.id)),
	}
}

// SetObject points the bar at obj and publishes its filter, sort and field
// definitions.
func (b *Bar) SetObject(obj *model.ObjectMetadata, typ model.ViewType) {
	columns := ColumnDefinitions(obj)
	reactive.Set(b.store, ObjectMetadataID.Of(b.id), obj.ID)
	reactive.Set(b.store, Type.Of(b.id), typ)
	reactive.Set(b.store, AvailableFilterDefinitions.Of(b.id), filter.Definitions(obj))
	reactive.Set(b.store, AvailableSortDefinitions.Of(b.id), filter.SortDefinitions(obj))
	reactive.Set(b.store, AvailableFieldDefinitions.Of(b.id), AvailableColumns(columns))
}

// SetEntityCount records how many records the current view matched.
func (b *Bar) SetEntityCount(n int) bool {
	return reactive.Set(b.store, EntityCountInCurrentView.Of(b.id), n)
}

// EntityCount returns the number of records the current view matched.
func (b *Bar) EntityCount() int {
	return reactive.Get(b.store, EntityCountInCurrentView.Of(b.id))
}

// ColumnDefinitions returns one column per active field of obj.
func ColumnDefinitions(obj *model.ObjectMetadata) []model.ColumnDefinition {
	fields := obj.ActiveFields()
	out := make([]model.ColumnDefinition, 0, len(fields))
	for i, f := range fields {
		out = append(out, model.ColumnDefinition{
			FieldMetadataID: f.ID,
			Label:           f.Label,
			IconName:        f.Icon,
			Type:            f.Type,
			Position:        float64(i),
			Size:            100,
			IsVisible:       true,
		})
	}
	return out
}

// AvailableColumns drops columns that cannot be displayed as a cell: raw ids
// and relations.
func AvailableColumns(defs []model.ColumnDefinition) []model.ColumnDefinition {
	return slices.DeleteFunc(slices.Clone(defs), func(d model.ColumnDefinition) bool {
		return d.Type == model.FieldUUID || d.Type == model.FieldRelation
	})
}

// MapFieldsToColumns resolves view fields against the column definitions,
// taking position, size and visibility from the view field. Fields with no
// definition are skipped. The result is ordered by position.
func MapFieldsToColumns(fields []model.ViewField, defs []model.ColumnDefinition) []model.ColumnDefinition {
	byID := make(map[string]model.ColumnDefinition, len(defs))
	for _, d := range defs {
		byID[d.FieldMetadataID] = d
	}
	out := make([]model.ColumnDefinition, 0, len(fields))
	for _, f := range fields {
		d, ok := byID[f.FieldMetadataID]
		if !ok {
			continue
		}
		d.Position = f.Position
		d.Size = f.Size
		d.IsVisible = f.IsVisible
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

// Request builds the find-many request of v against obj: its filters become
// the where clause and its sorts the orderBy.
func Request(obj *model.ObjectMetadata, v model.View) (*client.FindManyRequest, error) {
	where, err := filter.WhereClause(v.Filters, obj)
	if err != nil {
		return nil, err
	}
	orderBy, err := filter.OrderByClause(v.Sorts, obj)
	if err != nil {
		return nil, err
	}
	return &client.FindManyRequest{Filter: where, OrderBy: orderBy}, nil
}

// EntityFields holds each displayed record's field values, by record id.
// Tables and boards both write it.
var EntityFields = reactive.NewFamily[string, model.Record]("entityFields", nil)
