package effect

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alfredjeanlab/vitro/internal/cache"
	"github.com/alfredjeanlab/vitro/internal/gql"
	"github.com/alfredjeanlab/vitro/internal/metadata"
	"github.com/alfredjeanlab/vitro/internal/metadata/metadatatest"
	"github.com/alfredjeanlab/vitro/internal/model"
)

type fixture struct {
	meta     *metadata.Registry
	cache    *cache.Cache
	registry *Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	meta := metadatatest.Registry(t)
	c := cache.New(nil)
	return &fixture{meta: meta, cache: c, registry: NewRegistry(meta, c, nil)}
}

// seed writes an empty companies list for vars.
func (f *fixture) seed(t *testing.T, singular string, vars gql.Variables, data map[string]any) {
	t.Helper()
	f.cache.WriteQuery(f.meta.FindManyQuery(singular), vars, data)
}

func (f *fixture) read(t *testing.T, singular string, vars gql.Variables) map[string]any {
	t.Helper()
	data, ok := f.cache.ReadQuery(f.meta.FindManyQuery(singular), vars)
	require.True(t, ok, "cached query for %s %s", singular, vars.Key())
	return data
}

// appendResolver appends newData to a plain list.
func appendResolver(calls *int) Resolver {
	return func(current any, newData any, _ gql.Variables) any {
		*calls++
		list, _ := current.([]any)
		return append(list, newData)
	}
}

func TestRegistry_CompanyScenario(t *testing.T) {
	f := newFixture(t)
	vars := gql.Variables{"filter": map[string]any{}}
	f.seed(t, "company", vars, map[string]any{"companies": []any{}})

	calls := 0
	require.NoError(t, f.registry.Register(Definition{
		Key:                "company-list",
		Typename:           "Company",
		ObjectNameSingular: "company",
		Resolver:           appendResolver(&calls),
	}, vars))

	n := f.registry.Trigger("Company", map[string]any{"id": "1", "name": "Acme"})
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, calls)

	data := f.read(t, "company", vars)
	assert.Equal(t, []any{map[string]any{"id": "1", "name": "Acme"}}, data["companies"])

	// A different typename leaves the cache untouched.
	n = f.registry.Trigger("Person", map[string]any{"id": "2", "name": "Ada"})
	assert.Equal(t, 0, n)
	assert.Equal(t, 1, calls)
	assert.Equal(t, data, f.read(t, "company", vars))
}

func TestRegistry_RegisterUnknownObject(t *testing.T) {
	f := newFixture(t)
	err := f.registry.Register(Definition{
		Key:                "ships",
		Typename:           "Spaceship",
		ObjectNameSingular: "spaceship",
		Resolver:           appendResolver(new(int)),
	}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, metadata.ErrUnknownObject))
	assert.Contains(t, err.Error(), "spaceship")
	assert.Equal(t, 0, f.registry.Len())
}

func TestRegistry_RegisterValidation(t *testing.T) {
	f := newFixture(t)
	err := f.registry.Register(Definition{ObjectNameSingular: "company"}, nil)

	var ve *model.ValidationError
	require.ErrorAs(t, err, &ve)
	fields := make([]string, 0, len(ve.Errors))
	for _, fe := range ve.Errors {
		fields = append(fields, fe.Field)
	}
	assert.ElementsMatch(t, []string{"key", "typename", "resolver"}, fields)
}

func TestRegistry_SameTypenameBothFire(t *testing.T) {
	f := newFixture(t)
	open := gql.Variables{"filter": map[string]any{}}
	named := gql.Variables{"filter": map[string]any{"name": map[string]any{"eq": "Acme"}}}
	f.seed(t, "company", open, map[string]any{"companies": []any{}})
	f.seed(t, "company", named, map[string]any{"companies": []any{}})

	var a, b int
	require.NoError(t, f.registry.Register(Definition{
		Key: "a", Typename: "Company", ObjectNameSingular: "company", Resolver: appendResolver(&a),
	}, open))
	require.NoError(t, f.registry.Register(Definition{
		Key: "b", Typename: "Company", ObjectNameSingular: "company", Resolver: appendResolver(&b),
	}, named))

	assert.Equal(t, 2, f.registry.Trigger("Company", map[string]any{"id": "1"}))
	assert.Equal(t, 1, a)
	assert.Equal(t, 1, b)
	assert.Len(t, f.read(t, "company", open)["companies"], 1)
	assert.Len(t, f.read(t, "company", named)["companies"], 1)
}

func TestRegistry_ReRegisterReplaces(t *testing.T) {
	f := newFixture(t)
	vars := gql.Variables{}
	f.seed(t, "company", vars, map[string]any{"companies": []any{}})

	var old, replacement int
	require.NoError(t, f.registry.Register(Definition{
		Key: "k", Typename: "Company", ObjectNameSingular: "company", Resolver: appendResolver(&old),
	}, vars))
	require.NoError(t, f.registry.Register(Definition{
		Key: "k", Typename: "Company", ObjectNameSingular: "company", Resolver: appendResolver(&replacement),
	}, vars))

	assert.Equal(t, 1, f.registry.Len())
	assert.Equal(t, 1, f.registry.Trigger("Company", map[string]any{"id": "1"}))
	assert.Equal(t, 0, old)
	assert.Equal(t, 1, replacement)
}

func TestRegistry_ReRegisterMovesTypename(t *testing.T) {
	f := newFixture(t)
	calls := 0
	require.NoError(t, f.registry.Register(Definition{
		Key: "k", Typename: "Company", ObjectNameSingular: "company", Resolver: appendResolver(&calls),
	}, nil))
	require.NoError(t, f.registry.Register(Definition{
		Key: "k", Typename: "CompanyEdge", ObjectNameSingular: "company", Resolver: appendResolver(&calls),
	}, nil))

	assert.Equal(t, 0, f.registry.Trigger("Company", nil))
	assert.Equal(t, 1, f.registry.Trigger("CompanyEdge", nil))
}

func TestRegistry_AbsentQueryIsNoop(t *testing.T) {
	f := newFixture(t)
	calls := 0
	require.NoError(t, f.registry.Register(Definition{
		Key: "k", Typename: "Company", ObjectNameSingular: "company", Resolver: appendResolver(&calls),
	}, gql.Variables{"limit": 5}))

	assert.Equal(t, 1, f.registry.Trigger("Company", map[string]any{"id": "1"}))
	assert.Equal(t, 0, calls)
	assert.Equal(t, 0, f.cache.Len())
}

func TestRegistry_RawQueryWithoutListFieldIsInert(t *testing.T) {
	f := newFixture(t)
	raw := gql.Document{Name: "CompanyCount", Kind: gql.KindQuery, Source: "query CompanyCount { companies { totalCount } }"}
	f.cache.WriteQuery(raw, nil, map[string]any{"companies": map[string]any{"totalCount": 3.0}})

	calls := 0
	require.NoError(t, f.registry.Register(Definition{
		Key: "count", Typename: "Company", ObjectNameSingular: "company", Query: &raw, Resolver: appendResolver(&calls),
	}, nil))

	e, ok := f.registry.Lookup("count")
	require.True(t, ok)
	assert.Equal(t, "", e.ListField())
	assert.Equal(t, "CompanyCount", e.Query().Name)

	assert.Equal(t, 1, f.registry.Trigger("Company", map[string]any{"id": "1"}))
	assert.Equal(t, 0, calls)
	data, _ := f.cache.ReadQuery(raw, nil)
	assert.Equal(t, map[string]any{"companies": map[string]any{"totalCount": 3.0}}, data)
}

func TestRegistry_RawQueryWithListField(t *testing.T) {
	f := newFixture(t)
	raw := gql.Document{Name: "RecentCompanies", Kind: gql.KindQuery}
	f.cache.WriteQuery(raw, nil, map[string]any{"recent": []any{}})

	calls := 0
	require.NoError(t, f.registry.Register(Definition{
		Key: "recent", Typename: "Company", ObjectNameSingular: "company",
		Query: &raw, ListField: "recent", Resolver: appendResolver(&calls),
	}, nil))

	f.registry.Trigger("Company", map[string]any{"id": "1"})
	data, _ := f.cache.ReadQuery(raw, nil)
	assert.Equal(t, []any{map[string]any{"id": "1"}}, data["recent"])
}

func TestRegistry_TriggerStampsTypename(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "company", nil, map[string]any{"companies": []any{}})

	var got any
	require.NoError(t, f.registry.Register(Definition{
		Key: "k", Typename: "Company", ObjectNameSingular: "company",
		Resolver: func(_ any, newData any, _ gql.Variables) any {
			got = newData
			return []any{}
		},
	}, nil))

	input := []any{map[string]any{"id": "1"}, map[string]any{"id": "2"}}
	f.registry.Trigger("Company", input)

	assert.Equal(t, []any{
		map[string]any{"id": "1", "__typename": "Company"},
		map[string]any{"id": "2", "__typename": "Company"},
	}, got)
	// The caller's data is not modified.
	assert.Equal(t, []any{map[string]any{"id": "1"}, map[string]any{"id": "2"}}, input)

	// Empty lists and single objects are passed through unstamped.
	f.registry.Trigger("Company", []any{})
	assert.Equal(t, []any{}, got)
	f.registry.Trigger("Company", map[string]any{"id": "3"})
	assert.Equal(t, map[string]any{"id": "3"}, got)
}

func TestRegistry_TriggerKeyOrder(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "company", nil, map[string]any{"companies": []any{}})

	var order []string
	for _, key := range []string{"c", "a", "b"} {
		key := key
		require.NoError(t, f.registry.Register(Definition{
			Key: key, Typename: "Company", ObjectNameSingular: "company",
			Resolver: func(current any, _ any, _ gql.Variables) any {
				order = append(order, key)
				return current
			},
		}, nil))
	}
	f.registry.Trigger("Company", nil)
	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, []string{"a", "b", "c"}, f.registry.Keys())
}

func TestRegistry_Unregister(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.registry.Register(Definition{
		Key: "k", Typename: "Company", ObjectNameSingular: "company", Resolver: appendResolver(new(int)),
	}, nil))

	assert.True(t, f.registry.Unregister("k"))
	assert.False(t, f.registry.Unregister("k"))
	assert.Equal(t, 0, f.registry.Trigger("Company", nil))
	assert.Equal(t, 0, f.registry.Len())
}

func TestRegistry_WritesVisibleToWatchers(t *testing.T) {
	f := newFixture(t)
	vars := gql.Variables{}
	f.seed(t, "company", vars, map[string]any{"companies": []any{}})

	var seen []map[string]any
	cancel := f.cache.Watch(f.meta.FindManyQuery("company"), vars, func(data map[string]any) {
		seen = append(seen, data)
	})
	defer cancel()

	require.NoError(t, f.registry.Register(Definition{
		Key: "k", Typename: "Company", ObjectNameSingular: "company", Resolver: appendResolver(new(int)),
	}, vars))
	f.registry.Trigger("Company", map[string]any{"id": "1"})

	require.Len(t, seen, 1)
	assert.Len(t, seen[0]["companies"], 1)
}
