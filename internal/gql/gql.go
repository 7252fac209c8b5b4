// Package gql holds the GraphQL document and variable types shared by the
// client, the query cache and the optimistic effect registry.
package gql

import (
	"encoding/json"
	"strings"
	"unicode"
	"unicode/utf8"
)

// OperationKind distinguishes queries from mutations.
type OperationKind string

const (
	KindQuery    OperationKind = "query"
	KindMutation OperationKind = "mutation"
)

// Document is a named GraphQL operation. Name doubles as the cache key prefix,
// so two documents with the same Name share cache entries.
type Document struct {
	Name      string        `json:"name"`
	Kind      OperationKind `json:"kind"`
	RootField string        `json:"root_field,omitempty"`
	Source    string        `json:"source"`
}

// EmptyQuery is returned for objects unknown to the metadata registry.
var EmptyQuery = Document{Name: "EmptyQuery", Kind: KindQuery, Source: "query EmptyQuery { __typename }"}

// IsEmpty reports whether d is the EmptyQuery sentinel or has no name.
func (d Document) IsEmpty() bool {
	return d.Name == "" || d.Name == EmptyQuery.Name
}

// Variables are the operation variables sent alongside a document.
type Variables map[string]any

// Key returns a canonical encoding of v. encoding/json sorts map keys, which is
// all the canonicalization the cache needs.
func (v Variables) Key() string {
	if len(v) == 0 {
		return "{}"
	}
	data, err := json.Marshal(map[string]any(v))
	if err != nil {
		return "{}"
	}
	return string(data)
}

// Clone returns a shallow copy of v.
func (v Variables) Clone() Variables {
	out := make(Variables, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// Request is the JSON body of a GraphQL-over-HTTP call.
type Request struct {
	Query         string    `json:"query"`
	OperationName string    `json:"operationName,omitempty"`
	Variables     Variables `json:"variables,omitempty"`
}

// Capitalize upper-cases the first rune of s ("company" -> "Company").
func Capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// Indent is a small helper used when generating document sources.
func Indent(s string, depth int) string {
	pad := strings.Repeat("  ", depth)
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = pad + l
		}
	}
	return strings.Join(lines, "\n")
}
