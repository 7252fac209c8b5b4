// Package client provides a transport-agnostic interface for the record API
// and a GraphQL-over-HTTP implementation.
package client

import (
	"context"

	"github.com/alfredjeanlab/vitro/internal/gql"
	"github.com/alfredjeanlab/vitro/internal/metadata"
	"github.com/alfredjeanlab/vitro/internal/model"
)

// RecordClient is the interface the record layer and CLI commands use to talk
// to the server. It is implemented by HTTPClient and by in-memory fakes in tests.
type RecordClient interface {
	// Records
	FindMany(ctx context.Context, objectSingular string, req *FindManyRequest) (*model.Connection, error)
	CreateOne(ctx context.Context, objectSingular string, input model.Record) (model.Record, error)
	UpdateOne(ctx context.Context, objectSingular, id string, input model.Record) (model.Record, error)
	DeleteOne(ctx context.Context, objectSingular, id string) error

	// Metadata
	ObjectMetadataItems(ctx context.Context) ([]model.ObjectMetadata, error)

	// Lifecycle
	Close() error
}

// DocumentSource resolves the generated documents of an object.
// *metadata.Registry satisfies it.
type DocumentSource interface {
	Documents(singular string) (metadata.Documents, error)
}

// FindManyRequest holds parameters for listing records.
type FindManyRequest struct {
	Filter  map[string]any `json:"filter,omitempty"`
	OrderBy map[string]any `json:"orderBy,omitempty"`
	Limit   int            `json:"limit,omitempty"`
	After   string         `json:"after,omitempty"`
}

// Variables returns the GraphQL variables of the request. filter and orderBy
// are always present so equal requests share one cache entry.
func (r *FindManyRequest) Variables() gql.Variables {
	vars := gql.Variables{"filter": map[string]any{}, "orderBy": map[string]any{}}
	if r == nil {
		return vars
	}
	if r.Filter != nil {
		vars["filter"] = r.Filter
	}
	if r.OrderBy != nil {
		vars["orderBy"] = r.OrderBy
	}
	if r.Limit > 0 {
		vars["limit"] = r.Limit
	}
	if r.After != "" {
		vars["lastCursor"] = r.After
	}
	return vars
}
