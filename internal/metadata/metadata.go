// Package metadata holds the object metadata registry and generates the
// per-object GraphQL documents used by the record layer.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/alfredjeanlab/vitro/internal/gql"
	"github.com/alfredjeanlab/vitro/internal/model"
)

// ErrUnknownObject is returned for object names the registry does not know.
var ErrUnknownObject = errors.New("unknown object")

// Source fetches object metadata, typically from the metadata endpoint.
type Source interface {
	ObjectMetadataItems(ctx context.Context) ([]model.ObjectMetadata, error)
}

// Documents is the generated operation set of one object.
type Documents struct {
	FindMany  gql.Document
	CreateOne gql.Document
	UpdateOne gql.Document
	DeleteOne gql.Document
}

// Registry indexes object metadata by singular and plural name.
type Registry struct {
	mu         sync.RWMutex
	bySingular map[string]*model.ObjectMetadata
	byPlural   map[string]*model.ObjectMetadata
	docs       map[string]Documents
}

// NewRegistry validates and indexes objects. Inactive objects are skipped.
func NewRegistry(objects []model.ObjectMetadata) (*Registry, error) {
	r := &Registry{}
	if err := r.Replace(objects); err != nil {
		return nil, err
	}
	return r, nil
}

// Load fetches objects from src and builds a registry.
func Load(ctx context.Context, src Source) (*Registry, error) {
	objects, err := src.ObjectMetadataItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading object metadata: %w", err)
	}
	return NewRegistry(objects)
}

// Replace swaps the registry contents for objects.
func (r *Registry) Replace(objects []model.ObjectMetadata) error {
	bySingular := make(map[string]*model.ObjectMetadata, len(objects))
	byPlural := make(map[string]*model.ObjectMetadata, len(objects))
	docs := make(map[string]Documents, len(objects))

	for i := range objects {
		o := objects[i]
		if !o.IsActive {
			continue
		}
		if err := model.ValidateObjectMetadata(&o); err != nil {
			return fmt.Errorf("object %q: %w", o.NameSingular, err)
		}
		if _, dup := bySingular[o.NameSingular]; dup {
			return fmt.Errorf("object %q: duplicate nameSingular", o.NameSingular)
		}
		if _, dup := byPlural[o.NamePlural]; dup {
			return fmt.Errorf("object %q: duplicate namePlural %q", o.NameSingular, o.NamePlural)
		}
		bySingular[o.NameSingular] = &o
		byPlural[o.NamePlural] = &o
		docs[o.NameSingular] = generate(&o)
	}

	r.mu.Lock()
	r.bySingular = bySingular
	r.byPlural = byPlural
	r.docs = docs
	r.mu.Unlock()
	return nil
}

// BySingular returns the object whose nameSingular is name.
func (r *Registry) BySingular(name string) (*model.ObjectMetadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.bySingular[name]
	return o, ok
}

// ByPlural returns the object whose namePlural is name.
func (r *Registry) ByPlural(name string) (*model.ObjectMetadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.byPlural[name]
	return o, ok
}

// Lookup resolves either a singular or a plural name.
func (r *Registry) Lookup(name string) (*model.ObjectMetadata, error) {
	if o, ok := r.BySingular(name); ok {
		return o, nil
	}
	if o, ok := r.ByPlural(name); ok {
		return o, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownObject, name)
}

// Objects returns all objects sorted by nameSingular.
func (r *Registry) Objects() []model.ObjectMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.ObjectMetadata, 0, len(r.bySingular))
	for _, o := range r.bySingular {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NameSingular < out[j].NameSingular })
	return out
}

// FindManyQuery returns the find-many document of an object, or gql.EmptyQuery
// when the object is unknown.
func (r *Registry) FindManyQuery(singular string) gql.Document {
	d, err := r.Documents(singular)
	if err != nil {
		return gql.EmptyQuery
	}
	return d.FindMany
}

// Documents returns the generated documents of an object.
func (r *Registry) Documents(singular string) (Documents, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.docs[singular]
	if !ok {
		return Documents{}, fmt.Errorf("%w: %s", ErrUnknownObject, singular)
	}
	return d, nil
}

// Typename is the GraphQL type of an object's records ("company" -> "Company").
func Typename(o *model.ObjectMetadata) string {
	return gql.Capitalize(o.NameSingular)
}

// EdgeTypename is the GraphQL type of an object's connection edges.
func EdgeTypename(o *model.ObjectMetadata) string {
	return Typename(o) + "Edge"
}

func generate(o *model.ObjectMetadata) Documents {
	typ := Typename(o)
	capPlural := gql.Capitalize(o.NamePlural)
	fields := selection(o)

	return Documents{
		FindMany: gql.Document{
			Name:      "FindMany" + capPlural,
			Kind:      gql.KindQuery,
			RootField: o.NamePlural,
			Source: fmt.Sprintf(`query FindMany%s($filter: %sFilterInput, $orderBy: %sOrderByInput, $lastCursor: String, $limit: Float) {
  %s(filter: $filter, orderBy: $orderBy, first: $limit, after: $lastCursor) {
    edges {
      node {
%s
      }
      cursor
    }
    pageInfo {
      hasNextPage
      startCursor
      endCursor
    }
    totalCount
  }
}`, capPlural, typ, typ, o.NamePlural, gql.Indent(fields, 4)),
		},
		CreateOne: gql.Document{
			Name:      "CreateOne" + typ,
			Kind:      gql.KindMutation,
			RootField: "create" + typ,
			Source: fmt.Sprintf(`mutation CreateOne%s($input: %sCreateInput!) {
  create%s(data: $input) {
%s
  }
}`, typ, typ, typ, gql.Indent(fields, 2)),
		},
		UpdateOne: gql.Document{
			Name:      "UpdateOne" + typ,
			Kind:      gql.KindMutation,
			RootField: "update" + typ,
			Source: fmt.Sprintf(`mutation UpdateOne%s($idToUpdate: ID!, $input: %sUpdateInput!) {
  update%s(id: $idToUpdate, data: $input) {
%s
  }
}`, typ, typ, typ, gql.Indent(fields, 2)),
		},
		DeleteOne: gql.Document{
			Name:      "DeleteOne" + typ,
			Kind:      gql.KindMutation,
			RootField: "delete" + typ,
			Source: fmt.Sprintf(`mutation DeleteOne%s($idToDelete: ID!) {
  delete%s(id: $idToDelete) {
    id
  }
}`, typ, typ),
		},
	}
}

// selection renders the field selection of an object: id, __typename, then
// every active non-relation field, composite types expanded.
func selection(o *model.ObjectMetadata) string {
	lines := []string{"id", "__typename"}
	for _, f := range o.ActiveFields() {
		if f.Name == "id" || f.Type == model.FieldRelation {
			continue
		}
		if sub := f.Type.SubFields(); sub != nil {
			lines = append(lines, f.Name+" {", "  "+strings.Join(sub, "\n  "), "}")
			continue
		}
		lines = append(lines, f.Name)
	}
	return strings.Join(lines, "\n")
}
