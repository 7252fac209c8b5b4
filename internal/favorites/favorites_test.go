package favorites

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alfredjeanlab/vitro/internal/cache"
	"github.com/alfredjeanlab/vitro/internal/client/clienttest"
	"github.com/alfredjeanlab/vitro/internal/effect"
	"github.com/alfredjeanlab/vitro/internal/metadata"
	"github.com/alfredjeanlab/vitro/internal/metadata/metadatatest"
	"github.com/alfredjeanlab/vitro/internal/model"
	"github.com/alfredjeanlab/vitro/internal/reactive"
	"github.com/alfredjeanlab/vitro/internal/records"
)

type fixture struct {
	fake  *clienttest.Fake
	cache *cache.Cache
	store *reactive.Store
	m     *Manager
}

func newFixture(t *testing.T, opts ...records.Option) *fixture {
	t.Helper()
	meta := metadatatest.Registry(t)
	c := cache.New(nil)
	fake := clienttest.New(metadatatest.Objects())
	svc := records.New(fake, meta, c, effect.NewRegistry(meta, c, nil), opts...)
	store := reactive.NewStore()

	fake.Seed("company", model.Record{"id": "c1", "name": "Acme", "domainName": "acme.com"})
	fake.Seed("person", model.Record{"id": "p1", "name": map[string]any{"firstName": "Ada", "lastName": "Lovelace"}})
	fake.Seed("favorite",
		model.Record{"id": "f2", "position": 2.0, "personId": "p1", "person": map[string]any{
			"id": "p1", "name": map[string]any{"firstName": "Ada", "lastName": "Lovelace"}, "avatarUrl": "ada.png",
		}},
		model.Record{"id": "f1", "position": 1.0, "companyId": "c0"},
		model.Record{"id": "f3", "position": 3.0, "companyId": "c3"},
	)
	return &fixture{fake: fake, cache: c, store: store, m: New(store, svc, c, "member-1", nil)}
}

func favs(positions ...float64) []model.Favorite {
	out := make([]model.Favorite, len(positions))
	for i, p := range positions {
		out[i] = model.Favorite{ID: string(rune('A' + i)), Position: p}
	}
	return out
}

func favoriteIDs(list []model.Favorite) []string {
	var out []string
	for _, f := range list {
		out = append(out, f.ID)
	}
	return out
}

func TestComputeNewPosition(t *testing.T) {
	list := favs(1, 2, 3)
	for _, tc := range []struct {
		name         string
		source, dest int
		want         float64
	}{
		{"last to first", 2, 0, 0.5},
		{"first to last", 0, 2, 4},
		{"first to middle", 0, 1, 2.5},
		{"last to middle", 2, 1, 1.5},
		{"middle to first", 1, 0, 0.5},
		{"in place", 1, 1, 2},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ComputeNewPosition(list, tc.source, tc.dest)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestComputeNewPosition_Invalid(t *testing.T) {
	list := favs(1, 2)
	for _, move := range [][2]int{{-1, 0}, {0, 2}, {2, 0}, {0, -1}} {
		_, err := ComputeNewPosition(list, move[0], move[1])
		assert.ErrorIs(t, err, ErrInvalidMove, "move %v", move)
	}
	_, err := ComputeNewPosition(nil, 0, 0)
	assert.ErrorIs(t, err, ErrInvalidMove)
}

func TestComputeNewPosition_Single(t *testing.T) {
	got, err := ComputeNewPosition(favs(7), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 7.0, got)
}

func TestMapFavorites(t *testing.T) {
	got := MapFavorites([]model.Record{
		{"id": "f1", "position": 1.0, "company": map[string]any{"id": "c1", "name": "Acme", "domainName": "acme.com"}},
		{"id": "f2", "position": 2.0, "person": map[string]any{
			"id": "p1", "name": map[string]any{"firstName": "Ada", "lastName": "Lovelace"}, "avatarUrl": "ada.png",
		}},
		{"id": "f3", "position": 3.0, "companyId": "c9"},
		{"id": "f4", "position": 4.0},
	})
	require.Len(t, got, 3)

	assert.Equal(t, model.Favorite{
		ID: "f1", RecordID: "c1", TargetObject: "company", Position: 1,
		LabelIdentifier: "Acme", AvatarURL: LogoURL("acme.com"), AvatarType: model.AvatarSquared,
		Link: "/object/company/c1",
	}, got[0])
	assert.Equal(t, model.Favorite{
		ID: "f2", RecordID: "p1", TargetObject: "person", Position: 2,
		LabelIdentifier: "Ada Lovelace", AvatarURL: "ada.png", AvatarType: model.AvatarRounded,
		Link: "/object/person/p1",
	}, got[1])
	assert.Equal(t, "c9", got[2].RecordID)
	assert.Empty(t, got[2].LabelIdentifier)
}

func TestLogoURL(t *testing.T) {
	assert.Empty(t, LogoURL(" "))
	assert.Equal(t, "https://www.google.com/s2/favicons?domain=acme.com", LogoURL("acme.com"))
}

func TestManager_Load(t *testing.T) {
	f := newFixture(t)
	got, err := f.m.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"f1", "f2", "f3"}, favoriteIDs(got))
	assert.Equal(t, got, f.m.List())

	v := f.store.Version(State.Key)
	_, err = f.m.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, v, f.store.Version(State.Key), "identical reload does not write")
}

func TestManager_Load_Error(t *testing.T) {
	f := newFixture(t)
	f.fake.FindErr = errors.New("offline")
	_, err := f.m.Load(context.Background())
	require.Error(t, err)
	assert.Empty(t, f.m.List())
}

func TestManager_Create(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.m.Load(ctx)
	require.NoError(t, err)
	// Cache the company so the favorite gets its label.
	_, err = f.m.records.FindMany(ctx, "companies", nil)
	require.NoError(t, err)

	fav, err := f.m.Create(ctx, "companies", "c1")
	require.NoError(t, err)
	assert.Equal(t, "c1", fav.RecordID)
	assert.Equal(t, "Acme", fav.LabelIdentifier)
	assert.Equal(t, 4.0, fav.Position)
	assert.Equal(t, "member-1", fav.WorkspaceMemberID)

	list := f.m.List()
	require.Len(t, list, 4)
	assert.Equal(t, fav, list[3])

	stored := f.fake.Records("favorite")
	require.Len(t, stored, 4)
	assert.Equal(t, "c1", stored[3].String("companyId"))
	assert.Equal(t, "member-1", stored[3].String("workspaceMemberId"))

	// The favorites list in the cache picked the new record up.
	node, ok := f.cache.FindNode("Favorite", fav.ID)
	require.True(t, ok)
	assert.Equal(t, "c1", node.String("companyId"))
}

func TestManager_Create_UnknownTarget(t *testing.T) {
	f := newFixture(t)
	_, err := f.m.Create(context.Background(), "widgets", "w1")
	assert.ErrorIs(t, err, metadata.ErrUnknownObject)
}

func TestManager_Create_ServerError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.m.Load(ctx)
	require.NoError(t, err)
	f.fake.CreateErr = errors.New("rejected")

	_, err = f.m.Create(ctx, "companies", "c1")
	require.Error(t, err)
	assert.Len(t, f.m.List(), 3)
}

func TestManager_Delete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.m.Load(ctx)
	require.NoError(t, err)

	require.NoError(t, f.m.Delete(ctx, "p1"))
	assert.Equal(t, []string{"f1", "f3"}, favoriteIDs(f.m.List()))
	assert.Len(t, f.fake.Records("favorite"), 2)
	_, ok := f.cache.FindNode("Favorite", "f2")
	assert.False(t, ok, "favorite evicted from the cache")
}

func TestManager_Delete_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.m.Load(context.Background())
	require.NoError(t, err)
	assert.ErrorIs(t, f.m.Delete(context.Background(), "nobody"), ErrNotFound)
	assert.Empty(t, f.fake.Calls()[1:], "no server call")
}

func TestManager_Reorder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.m.Load(ctx)
	require.NoError(t, err)

	var during []string
	f.fake.BeforeMutate = func(string, string) { during = favoriteIDs(f.m.List()) }

	require.NoError(t, f.m.Reorder(ctx, 2, 0))
	assert.Equal(t, []string{"f3", "f1", "f2"}, during, "state reordered before the server call")

	list := f.m.List()
	assert.Equal(t, []string{"f3", "f1", "f2"}, favoriteIDs(list))
	assert.Equal(t, 0.5, list[0].Position)

	for _, r := range f.fake.Records("favorite") {
		if r.ID() == "f3" {
			pos, _ := r.Float("position")
			assert.Equal(t, 0.5, pos)
		}
	}
}

func TestManager_Reorder_Invalid(t *testing.T) {
	f := newFixture(t)
	_, err := f.m.Load(context.Background())
	require.NoError(t, err)
	calls := len(f.fake.Calls())

	assert.ErrorIs(t, f.m.Reorder(context.Background(), 0, 3), ErrInvalidMove)
	assert.NoError(t, f.m.Reorder(context.Background(), 1, 1))
	assert.Len(t, f.fake.Calls(), calls)
}

func TestManager_Reorder_Rollback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.m.Load(ctx)
	require.NoError(t, err)
	before := f.m.List()

	f.fake.UpdateErr = errors.New("rejected")
	err = f.m.Reorder(ctx, 0, 2)
	require.Error(t, err)

	assert.Equal(t, before, f.m.List())
	node, ok := f.cache.FindNode("Favorite", "f1")
	require.True(t, ok)
	pos, _ := node.Float("position")
	assert.Equal(t, 1.0, pos, "cached position restored")
}

func TestManager_Reorder_KeepOptimistic(t *testing.T) {
	f := newFixture(t, records.WithPolicy(records.KeepOptimistic))
	ctx := context.Background()
	_, err := f.m.Load(ctx)
	require.NoError(t, err)

	f.fake.UpdateErr = errors.New("rejected")
	require.Error(t, f.m.Reorder(ctx, 0, 2))

	list := f.m.List()
	assert.Equal(t, []string{"f2", "f3", "f1"}, favoriteIDs(list))
	assert.Equal(t, 4.0, list[2].Position)
}

func TestRestorePosition(t *testing.T) {
	list := []model.Favorite{{ID: "a", Position: 0.5}, {ID: "b", Position: 2}, {ID: "c", Position: 3}}
	got := restorePosition(list, "a", 2.5)
	assert.Equal(t, []string{"b", "a", "c"}, favoriteIDs(got))
	assert.Equal(t, 0.5, list[0].Position, "input untouched")
}
