package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/alfredjeanlab/vitro/internal/model"
)

// splitField splits "key=value" on the first '='.
func splitField(s string) (string, string, bool) {
	i := strings.IndexByte(s, '=')
	if i <= 0 {
		return "", "", false
	}
	return s[:i], s[i+1:], true
}

// parseValue decodes v when it looks like a JSON literal (object, array,
// quoted string, boolean, null or number). Anything else is a plain string.
func parseValue(v string) any {
	if len(v) == 0 {
		return v
	}
	looksJSON := false
	switch {
	case v[0] == '{' || v[0] == '[' || v[0] == '"':
		looksJSON = true
	case v == "true" || v == "false" || v == "null":
		looksJSON = true
	case v[0] == '-' || unicode.IsDigit(rune(v[0])):
		looksJSON = true
	}
	if looksJSON {
		var out any
		if err := json.Unmarshal([]byte(v), &out); err == nil {
			return out
		}
	}
	return v
}

// parseFields converts -f key=value pairs into a record. A dotted key such
// as "name.firstName" sets a sub-field of a composite field.
func parseFields(pairs []string) (model.Record, error) {
	rec := make(model.Record, len(pairs))
	for _, p := range pairs {
		k, v, ok := splitField(p)
		if !ok {
			return nil, fmt.Errorf("invalid field %q: expected key=value", p)
		}
		parent, sub, composite := strings.Cut(k, ".")
		if !composite {
			rec[k] = parseValue(v)
			continue
		}
		m, _ := rec[parent].(map[string]any)
		if m == nil {
			m = map[string]any{}
			rec[parent] = m
		}
		m[sub] = parseValue(v)
	}
	return rec, nil
}
