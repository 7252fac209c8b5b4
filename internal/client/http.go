package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/alfredjeanlab/vitro/internal/gql"
	"github.com/alfredjeanlab/vitro/internal/metadata"
	"github.com/alfredjeanlab/vitro/internal/model"
)

// ErrNoDocuments is returned by record calls before UseDocuments is called.
var ErrNoDocuments = errors.New("client: no document source configured")

// HTTPClient implements RecordClient against the GraphQL endpoints of the
// server: /graphql for records and /metadata for object metadata.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	docs       DocumentSource
}

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:3000"). When token is non-empty, an Authorization
// header is set on every request.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// UseDocuments sets the document source used for record operations.
func (c *HTTPClient) UseDocuments(src DocumentSource) {
	c.docs = src
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

// --- Records ---

func (c *HTTPClient) FindMany(ctx context.Context, objectSingular string, req *FindManyRequest) (*model.Connection, error) {
	if c.docs == nil {
		return nil, ErrNoDocuments
	}
	docs, err := c.docs.Documents(objectSingular)
	if err != nil {
		return nil, err
	}
	var data map[string]json.RawMessage
	if err := c.Execute(ctx, "/graphql", docs.FindMany, req.Variables(), &data); err != nil {
		return nil, err
	}
	var conn model.Connection
	if err := decodeRoot(data, docs.FindMany.RootField, &conn); err != nil {
		return nil, err
	}
	return &conn, nil
}

func (c *HTTPClient) CreateOne(ctx context.Context, objectSingular string, input model.Record) (model.Record, error) {
	return c.mutateRecord(ctx, objectSingular, func(d metadata.Documents) (gql.Document, gql.Variables) {
		return d.CreateOne, gql.Variables{"input": input}
	})
}

func (c *HTTPClient) UpdateOne(ctx context.Context, objectSingular, id string, input model.Record) (model.Record, error) {
	return c.mutateRecord(ctx, objectSingular, func(d metadata.Documents) (gql.Document, gql.Variables) {
		return d.UpdateOne, gql.Variables{"idToUpdate": id, "input": input}
	})
}

func (c *HTTPClient) DeleteOne(ctx context.Context, objectSingular, id string) error {
	_, err := c.mutateRecord(ctx, objectSingular, func(d metadata.Documents) (gql.Document, gql.Variables) {
		return d.DeleteOne, gql.Variables{"idToDelete": id}
	})
	return err
}

func (c *HTTPClient) mutateRecord(ctx context.Context, objectSingular string, pick func(metadata.Documents) (gql.Document, gql.Variables)) (model.Record, error) {
	if c.docs == nil {
		return nil, ErrNoDocuments
	}
	docs, err := c.docs.Documents(objectSingular)
	if err != nil {
		return nil, err
	}
	doc, vars := pick(docs)
	var data map[string]json.RawMessage
	if err := c.Execute(ctx, "/graphql", doc, vars, &data); err != nil {
		return nil, err
	}
	var rec model.Record
	if err := decodeRoot(data, doc.RootField, &rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func decodeRoot(data map[string]json.RawMessage, field string, out any) error {
	raw, ok := data[field]
	if !ok || string(raw) == "null" {
		return fmt.Errorf("response missing %q", field)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding %q: %w", field, err)
	}
	return nil
}

// --- Metadata ---

const objectMetadataItemsQuery = `query ObjectMetadataItems {
  objects(paging: { first: 1000 }) {
    edges {
      node {
        id
        dataSourceId
        nameSingular
        namePlural
        labelSingular
        labelPlural
        description
        icon
        isCustom
        isActive
        createdAt
        updatedAt
        fields(paging: { first: 1000 }) {
          edges {
            node {
              id
              type
              name
              label
              description
              icon
              placeholder
              isCustom
              isActive
              isNullable
            }
          }
        }
      }
    }
  }
}`

var objectMetadataItemsDoc = gql.Document{
	Name:      "ObjectMetadataItems",
	Kind:      gql.KindQuery,
	RootField: "objects",
	Source:    objectMetadataItemsQuery,
}

func (c *HTTPClient) ObjectMetadataItems(ctx context.Context) ([]model.ObjectMetadata, error) {
	var resp struct {
		Objects struct {
			Edges []struct {
				Node struct {
					model.ObjectMetadata
					Fields struct {
						Edges []struct {
							Node model.FieldMetadata `json:"node"`
						} `json:"edges"`
					} `json:"fields"`
				} `json:"node"`
			} `json:"edges"`
		} `json:"objects"`
	}
	if err := c.Execute(ctx, "/metadata", objectMetadataItemsDoc, nil, &resp); err != nil {
		return nil, err
	}
	out := make([]model.ObjectMetadata, 0, len(resp.Objects.Edges))
	for _, e := range resp.Objects.Edges {
		o := e.Node.ObjectMetadata
		o.Fields = make([]model.FieldMetadata, 0, len(e.Node.Fields.Edges))
		for _, fe := range e.Node.Fields.Edges {
			o.Fields = append(o.Fields, fe.Node)
		}
		out = append(out, o)
	}
	return out, nil
}

// --- internal helpers ---

// APIError represents a non-GraphQL error response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// GraphQLErrorItem is one entry of a GraphQL "errors" array.
type GraphQLErrorItem struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// GraphQLError is returned when the server answers with a non-empty "errors" array.
type GraphQLError struct {
	Operation string
	Errors    []GraphQLErrorItem
}

func (e *GraphQLError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, item := range e.Errors {
		msgs[i] = item.Message
	}
	return fmt.Sprintf("graphql %s: %s", e.Operation, strings.Join(msgs, "; "))
}

// Code returns the extensions.code of the first error, if any.
func (e *GraphQLError) Code() string {
	if len(e.Errors) == 0 {
		return ""
	}
	code, _ := e.Errors[0].Extensions["code"].(string)
	return code
}

// Execute posts doc with vars to the GraphQL endpoint at path and decodes the
// "data" member of the response into result.
func (c *HTTPClient) Execute(ctx context.Context, path string, doc gql.Document, vars gql.Variables, result any) error {
	body := gql.Request{Query: doc.Source, OperationName: doc.Name, Variables: vars}

	var envelope struct {
		Data   json.RawMessage    `json:"data"`
		Errors []GraphQLErrorItem `json:"errors"`
	}
	if err := c.doJSON(ctx, http.MethodPost, path, body, &envelope); err != nil {
		return err
	}
	if len(envelope.Errors) > 0 {
		return &GraphQLError{Operation: doc.Name, Errors: envelope.Errors}
	}
	if result != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, result); err != nil {
			return fmt.Errorf("decoding %s data: %w", doc.Name, err)
		}
	}
	return nil
}

// doJSON performs an HTTP request with optional JSON body and decodes the JSON response.
// If result is nil, the response body is discarded.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error  string             `json:"error"`
			Errors []GraphQLErrorItem `json:"errors"`
		}
		if json.Unmarshal(respBody, &errResp) == nil {
			if errResp.Error != "" {
				return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
			}
			if len(errResp.Errors) > 0 {
				return &APIError{StatusCode: resp.StatusCode, Message: errResp.Errors[0].Message}
			}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}
