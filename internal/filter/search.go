package filter

import (
	"strings"

	"github.com/alfredjeanlab/vitro/internal/gql"
)

// DefaultSearchLimit caps the entities-to-select query of a search.
const DefaultSearchLimit = 60

// SearchFilter matches a term against several fields. A field name of the
// form "name.firstName" addresses a sub-field of a composite field.
type SearchFilter struct {
	FieldNames []string
	Term       string
}

// SearchRequest describes an entity picker search.
type SearchRequest struct {
	OrderByField string
	SortOrder    OrderBy // defaults to AscNullsLast
	Filters      []SearchFilter
	SelectedIDs  []string
	ExcludeIDs   []string
	Limit        int // defaults to DefaultSearchLimit
}

// SearchVariables are the three queries an entity picker issues: the
// selected entities, the selected entities that match the search, and the
// unselected entities that match it.
type SearchVariables struct {
	Selected         gql.Variables
	FilteredSelected gql.Variables
	ToSelect         gql.Variables
}

// BuildSearchVariables builds the variables of the three search queries.
func BuildSearchVariables(req SearchRequest) SearchVariables {
	order := req.SortOrder
	if order == "" {
		order = AscNullsLast
	}
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	orderBy := func() map[string]any {
		return map[string]any{req.OrderByField: string(order)}
	}
	selectedIn := func() map[string]any {
		return map[string]any{"id": map[string]any{"in": stringsToAny(req.SelectedIDs)}}
	}
	search := searchClauses(req.Filters)

	excluded := append(append([]string{}, req.SelectedIDs...), req.ExcludeIDs...)

	return SearchVariables{
		Selected: gql.Variables{
			"filter":  selectedIn(),
			"orderBy": orderBy(),
		},
		FilteredSelected: gql.Variables{
			"filter": map[string]any{"and": []any{
				map[string]any{"and": search},
				selectedIn(),
			}},
			"orderBy": orderBy(),
		},
		ToSelect: gql.Variables{
			"filter": map[string]any{"and": []any{
				map[string]any{"and": searchClauses(req.Filters)},
				map[string]any{"not": map[string]any{"id": map[string]any{"in": stringsToAny(excluded)}}},
			}},
			"limit":   limit,
			"orderBy": orderBy(),
		},
	}
}

// searchClauses returns one "or" clause per filter with a non-empty term.
func searchClauses(filters []SearchFilter) []any {
	out := make([]any, 0, len(filters))
	for _, f := range filters {
		if f.Term == "" {
			continue
		}
		or := make([]any, 0, len(f.FieldNames))
		for _, name := range f.FieldNames {
			if parent, sub, ok := strings.Cut(name, "."); ok {
				or = append(or, map[string]any{parent: map[string]any{sub: ilike(f.Term)}})
				continue
			}
			or = append(or, map[string]any{name: ilike(f.Term)})
		}
		out = append(out, map[string]any{"or": or})
	}
	return out
}

func stringsToAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
