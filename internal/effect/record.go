package effect

import (
	"github.com/alfredjeanlab/vitro/internal/filter"
	"github.com/alfredjeanlab/vitro/internal/gql"
	"github.com/alfredjeanlab/vitro/internal/metadata"
	"github.com/alfredjeanlab/vitro/internal/model"
)

// RecordKey is the registry key of the record effect of obj for vars.
func RecordKey(obj *model.ObjectMetadata, vars gql.Variables) string {
	return "records:" + obj.NameSingular + ":" + vars.Key()
}

// RecordDefinition returns the standard effect of a find-many list of obj.
// It listens for <Typename>Edge data and merges incoming records into the
// cached connection: a record already present is updated in place, a new one
// is prepended and counted. Updates never prepend, since a list that does
// not hold the record (another page, another sort) has no place for it. When
// the list's variables carry a filter, records that do not match it are kept
// out and existing ones that stop matching are dropped.
func RecordDefinition(obj *model.ObjectMetadata, vars gql.Variables) Definition {
	return Definition{
		Key:                RecordKey(obj, vars),
		Typename:           metadata.EdgeTypename(obj),
		ObjectNameSingular: obj.NameSingular,
		Resolver:           mergeRecords(metadata.Typename(obj), metadata.EdgeTypename(obj), true),
		UpdateResolver:     mergeRecords(metadata.Typename(obj), metadata.EdgeTypename(obj), false),
	}
}

func mergeRecords(typename, edgeTypename string, insert bool) Resolver {
	return func(current any, newData any, vars gql.Variables) any {
		conn, err := model.ConnectionFromAny(current)
		if err != nil {
			return current
		}
		match := predicate(vars)

		for _, rec := range model.RecordsFromAny(newData) {
			id := rec.ID()
			if id == "" {
				continue
			}
			rec = rec.Clone()
			rec[model.TypenameField] = typename

			idx := conn.IndexOf(id)
			merged := rec
			if idx >= 0 {
				merged = conn.Edges[idx].Node.Merge(rec)
			}
			keep := match == nil || match.Matches(merged)
			switch {
			case idx >= 0 && keep:
				conn.Edges[idx].Node = merged
			case idx >= 0:
				conn.Edges = append(conn.Edges[:idx], conn.Edges[idx+1:]...)
				conn.TotalCount = max(conn.TotalCount-1, 0)
			case keep && insert:
				edge := model.Edge{Node: rec, Typename: edgeTypename}
				conn.Edges = append([]model.Edge{edge}, conn.Edges...)
				conn.TotalCount++
			}
		}

		out, err := conn.ToMap()
		if err != nil {
			return current
		}
		return out
	}
}

// predicate compiles the filter variable. A missing, empty or invalid
// filter matches everything.
func predicate(vars gql.Variables) *filter.Predicate {
	where, _ := vars["filter"].(map[string]any)
	if len(where) == 0 {
		return nil
	}
	p, err := filter.Compile(where)
	if err != nil {
		return nil
	}
	return p
}
