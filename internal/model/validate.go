package model

import (
	"fmt"
	"regexp"
	"strings"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

func (e *ValidationError) add(field, format string, args ...any) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

var identifierRe = regexp.MustCompile(`^[a-z][a-zA-Z0-9]*$`)

// IsIdentifier reports whether s is a camelCase name usable as a GraphQL field.
func IsIdentifier(s string) bool {
	return identifierRe.MatchString(s)
}

// ValidateObjectMetadata checks an ObjectMetadata for constraint violations.
// It returns a *ValidationError if any rules fail, or nil if the object is valid.
func ValidateObjectMetadata(o *ObjectMetadata) error {
	var ve ValidationError

	if !IsIdentifier(o.NameSingular) {
		ve.add("nameSingular", "must be a camelCase identifier, got %q", o.NameSingular)
	}
	if !IsIdentifier(o.NamePlural) {
		ve.add("namePlural", "must be a camelCase identifier, got %q", o.NamePlural)
	}
	if o.NameSingular != "" && o.NameSingular == o.NamePlural {
		ve.add("namePlural", "must differ from nameSingular")
	}

	seen := make(map[string]bool, len(o.Fields))
	for i, f := range o.Fields {
		name := fmt.Sprintf("fields[%d]", i)
		if !IsIdentifier(f.Name) {
			ve.add(name+".name", "must be a camelCase identifier, got %q", f.Name)
		}
		if seen[f.Name] {
			ve.add(name+".name", "duplicate field %q", f.Name)
		}
		seen[f.Name] = true
		if !f.Type.IsValid() {
			ve.add(name+".type", "invalid value %q", f.Type)
		}
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}

// ValidateViewFilter checks a ViewFilter for constraint violations.
func ValidateViewFilter(f *ViewFilter) error {
	var ve ValidationError

	if strings.TrimSpace(f.FieldMetadataID) == "" {
		ve.add("fieldMetadataId", "is required")
	}
	if !f.Operand.IsValid() {
		ve.add("operand", "invalid value %q", f.Operand)
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}
