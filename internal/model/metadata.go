package model

import "time"

// FieldType is the metadata type of an object field.
type FieldType string

const (
	FieldText        FieldType = "TEXT"
	FieldNumber      FieldType = "NUMBER"
	FieldBoolean     FieldType = "BOOLEAN"
	FieldDate        FieldType = "DATE"
	FieldEmail       FieldType = "EMAIL"
	FieldPhone       FieldType = "PHONE"
	FieldLink        FieldType = "LINK"
	FieldCurrency    FieldType = "CURRENCY"
	FieldFullName    FieldType = "FULL_NAME"
	FieldProbability FieldType = "PROBABILITY"
	FieldRelation    FieldType = "RELATION"
	FieldUUID        FieldType = "UUID"
)

// IsValid checks whether the field type is a known value.
func (t FieldType) IsValid() bool {
	switch t {
	case FieldText, FieldNumber, FieldBoolean, FieldDate, FieldEmail, FieldPhone,
		FieldLink, FieldCurrency, FieldFullName, FieldProbability, FieldRelation, FieldUUID:
		return true
	}
	return false
}

// SubFields returns the selection of composite field types, or nil for scalars.
func (t FieldType) SubFields() []string {
	switch t {
	case FieldFullName:
		return []string{"firstName", "lastName"}
	case FieldCurrency:
		return []string{"amountMicros", "currencyCode"}
	case FieldLink:
		return []string{"label", "url"}
	}
	return nil
}

// FieldMetadata describes one field of an object.
type FieldMetadata struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Label       string    `json:"label"`
	Type        FieldType `json:"type"`
	Description string    `json:"description,omitempty"`
	Icon        string    `json:"icon,omitempty"`
	Placeholder string    `json:"placeholder,omitempty"`
	IsCustom    bool      `json:"isCustom"`
	IsActive    bool      `json:"isActive"`
	IsNullable  bool      `json:"isNullable"`
}

// ObjectMetadata describes an object type: its names and fields.
type ObjectMetadata struct {
	ID            string          `json:"id"`
	DataSourceID  string          `json:"dataSourceId,omitempty"`
	NameSingular  string          `json:"nameSingular"`
	NamePlural    string          `json:"namePlural"`
	LabelSingular string          `json:"labelSingular"`
	LabelPlural   string          `json:"labelPlural"`
	Description   string          `json:"description,omitempty"`
	Icon          string          `json:"icon,omitempty"`
	IsCustom      bool            `json:"isCustom"`
	IsActive      bool            `json:"isActive"`
	Fields        []FieldMetadata `json:"fields"`
	CreatedAt     time.Time       `json:"createdAt,omitempty"`
	UpdatedAt     time.Time       `json:"updatedAt,omitempty"`
}

// Field returns the field with the given name.
func (o *ObjectMetadata) Field(name string) (FieldMetadata, bool) {
	for _, f := range o.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldMetadata{}, false
}

// FieldByID returns the field with the given metadata id.
func (o *ObjectMetadata) FieldByID(id string) (FieldMetadata, bool) {
	for _, f := range o.Fields {
		if f.ID == id {
			return f, true
		}
	}
	return FieldMetadata{}, false
}

// ActiveFields returns the active fields in declaration order.
func (o *ObjectMetadata) ActiveFields() []FieldMetadata {
	out := make([]FieldMetadata, 0, len(o.Fields))
	for _, f := range o.Fields {
		if f.IsActive {
			out = append(out, f)
		}
	}
	return out
}

// RelationType is the cardinality of a relation between two objects.
type RelationType string

const (
	RelationOneToOne  RelationType = "ONE_TO_ONE"
	RelationOneToMany RelationType = "ONE_TO_MANY"
)

// RelationMetadata links a field of one object to a field of another.
type RelationMetadata struct {
	ID                   string       `json:"id"`
	RelationType         RelationType `json:"relationType"`
	FromObjectMetadataID string       `json:"fromObjectMetadataId"`
	ToObjectMetadataID   string       `json:"toObjectMetadataId"`
	FromFieldMetadataID  string       `json:"fromFieldMetadataId"`
	ToFieldMetadataID    string       `json:"toFieldMetadataId"`
}
