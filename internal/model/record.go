package model

import (
	"encoding/json"
	"fmt"
)

// TypenameField is the GraphQL type discriminator key carried by every record.
const TypenameField = "__typename"

// Record is a schema-less object record as returned by the GraphQL API.
// Field values follow encoding/json conventions (numbers are float64).
type Record map[string]any

// ID returns the record's "id" field, or "" when missing.
func (r Record) ID() string {
	id, _ := r["id"].(string)
	return id
}

// Typename returns the record's "__typename" field, or "" when missing.
func (r Record) Typename() string {
	t, _ := r[TypenameField].(string)
	return t
}

// String returns the string value of field name, or "" when missing or not a string.
func (r Record) String(name string) string {
	s, _ := r[name].(string)
	return s
}

// Float returns the numeric value of field name.
func (r Record) Float(name string) (float64, bool) {
	switch v := r[name].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

// Merge returns a copy of r with the fields of patch applied on top.
func (r Record) Merge(patch Record) Record {
	out := make(Record, len(r)+len(patch))
	for k, v := range r {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	return Record(CloneValue(map[string]any(r)).(map[string]any))
}

// Edge is one element of a paginated connection.
type Edge struct {
	Node     Record `json:"node"`
	Cursor   string `json:"cursor"`
	Typename string `json:"__typename,omitempty"`
}

// PageInfo is the relay-style page information of a connection.
type PageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	StartCursor string `json:"startCursor,omitempty"`
	EndCursor   string `json:"endCursor,omitempty"`
}

// Connection is a paginated list of records.
type Connection struct {
	Edges      []Edge   `json:"edges"`
	PageInfo   PageInfo `json:"pageInfo"`
	TotalCount int      `json:"totalCount"`
	Typename   string   `json:"__typename,omitempty"`
}

// Nodes returns the records of c in edge order.
func (c *Connection) Nodes() []Record {
	if c == nil {
		return nil
	}
	out := make([]Record, 0, len(c.Edges))
	for _, e := range c.Edges {
		out = append(out, e.Node)
	}
	return out
}

// IndexOf returns the edge index of the node with the given id, or -1.
func (c *Connection) IndexOf(id string) int {
	for i, e := range c.Edges {
		if e.Node.ID() == id {
			return i
		}
	}
	return -1
}

// ConnectionFromAny converts a JSON-shaped value (as stored in the cache) into a
// Connection. A nil value yields an empty connection.
func ConnectionFromAny(v any) (*Connection, error) {
	var c Connection
	if v == nil {
		return &c, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding connection: %w", err)
	}
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decoding connection: %w", err)
	}
	return &c, nil
}

// ToMap converts c back into the JSON shape stored in the cache.
func (c *Connection) ToMap() (map[string]any, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encoding connection: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decoding connection: %w", err)
	}
	return out, nil
}

// RecordsFromAny converts a single record or a list of records (JSON-shaped)
// into []Record. Elements that are not objects are skipped.
func RecordsFromAny(v any) []Record {
	switch t := v.(type) {
	case nil:
		return nil
	case Record:
		return []Record{t}
	case map[string]any:
		return []Record{Record(t)}
	case []Record:
		return t
	case []map[string]any:
		out := make([]Record, 0, len(t))
		for _, m := range t {
			out = append(out, Record(m))
		}
		return out
	case []any:
		out := make([]Record, 0, len(t))
		for _, e := range t {
			switch m := e.(type) {
			case map[string]any:
				out = append(out, Record(m))
			case Record:
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}

// DecodeRecord decodes a JSON-shaped record into a typed value.
func DecodeRecord[T any](r Record) (T, error) {
	var out T
	data, err := json.Marshal(r)
	if err != nil {
		return out, fmt.Errorf("encoding record: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decoding record: %w", err)
	}
	return out, nil
}

// CloneValue deep-copies JSON-shaped values (maps, slices and scalars).
func CloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = CloneValue(e)
		}
		return out
	case Record:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = CloneValue(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = CloneValue(e)
		}
		return out
	case []Record:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = CloneValue(e)
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = CloneValue(e)
		}
		return out
	default:
		return v
	}
}
