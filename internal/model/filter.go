package model

// FilterType is the input kind of a filter definition.
type FilterType string

const (
	FilterText     FilterType = "TEXT"
	FilterNumber   FilterType = "NUMBER"
	FilterDate     FilterType = "DATE"
	FilterEntity   FilterType = "ENTITY"
	FilterCurrency FilterType = "CURRENCY"
	FilterFullName FilterType = "FULL_NAME"
	FilterLink     FilterType = "LINK"
)

// Operand is the comparison applied by a view filter.
type Operand string

const (
	OperandIs             Operand = "is"
	OperandIsNot          Operand = "isNot"
	OperandContains       Operand = "contains"
	OperandDoesNotContain Operand = "doesNotContain"
	OperandGreaterThan    Operand = "greaterThan"
	OperandLessThan       Operand = "lessThan"
)

// IsValid checks whether the operand is a known value.
func (o Operand) IsValid() bool {
	switch o {
	case OperandIs, OperandIsNot, OperandContains, OperandDoesNotContain, OperandGreaterThan, OperandLessThan:
		return true
	}
	return false
}

// FilterDefinition describes a filterable field.
type FilterDefinition struct {
	FieldMetadataID string     `json:"fieldMetadataId"`
	Label           string     `json:"label"`
	IconName        string     `json:"iconName,omitempty"`
	Type            FilterType `json:"type"`
}

// ViewFilter is one active filter of a view.
type ViewFilter struct {
	ID               string           `json:"id,omitempty"`
	FieldMetadataID  string           `json:"fieldMetadataId"`
	Operand          Operand          `json:"operand"`
	Value            string           `json:"value"`
	DisplayValue     string           `json:"displayValue"`
	DisplayAvatarURL string           `json:"displayAvatarUrl,omitempty"`
	Definition       FilterDefinition `json:"definition"`
}

// SortDirection is ascending or descending.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// SortDefinition describes a sortable field.
type SortDefinition struct {
	FieldMetadataID string `json:"fieldMetadataId"`
	Label           string `json:"label"`
	IconName        string `json:"iconName,omitempty"`
}

// ViewSort is one active sort of a view.
type ViewSort struct {
	ID              string         `json:"id,omitempty"`
	FieldMetadataID string         `json:"fieldMetadataId"`
	Direction       SortDirection  `json:"direction"`
	Definition      SortDefinition `json:"definition"`
}

// ViewType is the layout of a view.
type ViewType string

const (
	ViewTable  ViewType = "table"
	ViewKanban ViewType = "kanban"
)

// ColumnDefinition is a displayable field of a table or board card.
type ColumnDefinition struct {
	FieldMetadataID string    `json:"fieldMetadataId"`
	Label           string    `json:"label"`
	IconName        string    `json:"iconName,omitempty"`
	Type            FieldType `json:"type"`
	Position        float64   `json:"position"`
	Size            int       `json:"size"`
	IsVisible       bool      `json:"isVisible"`
}

// ViewField is a persisted column choice of a view.
type ViewField struct {
	ID              string  `json:"id"`
	FieldMetadataID string  `json:"fieldMetadataId"`
	Position        float64 `json:"position"`
	IsVisible       bool    `json:"isVisible"`
	Size            int     `json:"size"`
}

// View is the filter/sort/field state a table or board is rendered from.
type View struct {
	ID               string       `json:"id"`
	Name             string       `json:"name"`
	Type             ViewType     `json:"type"`
	ObjectMetadataID string       `json:"objectMetadataId"`
	Filters          []ViewFilter `json:"filters,omitempty"`
	Sorts            []ViewSort   `json:"sorts,omitempty"`
	Fields           []ViewField  `json:"fields,omitempty"`
}
