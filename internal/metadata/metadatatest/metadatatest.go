// Package metadatatest provides a fixed object metadata set for tests.
package metadatatest

import (
	"testing"

	"github.com/alfredjeanlab/vitro/internal/metadata"
	"github.com/alfredjeanlab/vitro/internal/model"
)

func field(id, name string, typ model.FieldType) model.FieldMetadata {
	return model.FieldMetadata{ID: id, Name: name, Label: name, Type: typ, IsActive: true, IsNullable: true}
}

// Objects returns the standard CRM objects: company, person, opportunity,
// pipelineStep and favorite.
func Objects() []model.ObjectMetadata {
	return []model.ObjectMetadata{
		{
			ID: "obj-company", NameSingular: "company", NamePlural: "companies",
			LabelSingular: "Company", LabelPlural: "Companies", IsActive: true,
			Fields: []model.FieldMetadata{
				field("company-id", "id", model.FieldUUID),
				field("company-name", "name", model.FieldText),
				field("company-domain", "domainName", model.FieldText),
				field("company-employees", "employees", model.FieldNumber),
				field("company-owner", "accountOwnerId", model.FieldUUID),
				field("company-created", "createdAt", model.FieldDate),
			},
		},
		{
			ID: "obj-person", NameSingular: "person", NamePlural: "people",
			LabelSingular: "Person", LabelPlural: "People", IsActive: true,
			Fields: []model.FieldMetadata{
				field("person-id", "id", model.FieldUUID),
				field("person-name", "name", model.FieldFullName),
				field("person-email", "email", model.FieldEmail),
				field("person-avatar", "avatarUrl", model.FieldText),
				field("person-company", "companyId", model.FieldUUID),
			},
		},
		{
			ID: "obj-opportunity", NameSingular: "opportunity", NamePlural: "opportunities",
			LabelSingular: "Opportunity", LabelPlural: "Opportunities", IsActive: true,
			Fields: []model.FieldMetadata{
				field("opportunity-id", "id", model.FieldUUID),
				field("opportunity-amount", "amount", model.FieldCurrency),
				field("opportunity-close", "closeDate", model.FieldDate),
				field("opportunity-probability", "probability", model.FieldText),
				field("opportunity-company", "companyId", model.FieldUUID),
				field("opportunity-step", "pipelineStepId", model.FieldUUID),
				field("opportunity-poc", "pointOfContactId", model.FieldUUID),
			},
		},
		{
			ID: "obj-pipeline-step", NameSingular: "pipelineStep", NamePlural: "pipelineSteps",
			LabelSingular: "Pipeline Step", LabelPlural: "Pipeline Steps", IsActive: true,
			Fields: []model.FieldMetadata{
				field("step-id", "id", model.FieldUUID),
				field("step-name", "name", model.FieldText),
				field("step-color", "color", model.FieldText),
				field("step-position", "position", model.FieldNumber),
			},
		},
		{
			ID: "obj-favorite", NameSingular: "favorite", NamePlural: "favorites",
			LabelSingular: "Favorite", LabelPlural: "Favorites", IsActive: true,
			Fields: []model.FieldMetadata{
				field("favorite-id", "id", model.FieldUUID),
				field("favorite-position", "position", model.FieldNumber),
				field("favorite-member", "workspaceMemberId", model.FieldUUID),
				field("favorite-company-id", "companyId", model.FieldUUID),
				field("favorite-person-id", "personId", model.FieldUUID),
				field("favorite-company", "company", model.FieldRelation),
				field("favorite-person", "person", model.FieldRelation),
			},
		},
	}
}

// Registry returns a registry built from Objects, failing the test on error.
func Registry(t testing.TB) *metadata.Registry {
	t.Helper()
	r, err := metadata.NewRegistry(Objects())
	if err != nil {
		t.Fatalf("building metadata registry: %v", err)
	}
	return r
}
