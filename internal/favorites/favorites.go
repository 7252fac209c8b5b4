// Package favorites keeps a workspace member's ordered favorites in the
// reactive store and in step with the server.
package favorites

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"

	"github.com/google/go-cmp/cmp"

	"github.com/alfredjeanlab/vitro/internal/cache"
	"github.com/alfredjeanlab/vitro/internal/client"
	"github.com/alfredjeanlab/vitro/internal/metadata"
	"github.com/alfredjeanlab/vitro/internal/model"
	"github.com/alfredjeanlab/vitro/internal/reactive"
	"github.com/alfredjeanlab/vitro/internal/records"
)

const (
	objectSingular = "favorite"
	objectPlural   = "favorites"
)

var (
	// ErrInvalidMove is returned by Reorder and ComputeNewPosition for
	// indices outside the list.
	ErrInvalidMove = errors.New("invalid favorite move")

	// ErrNotFound is returned by Delete when no favorite targets the record.
	ErrNotFound = errors.New("favorite not found")
)

// State is the ordered favorites list.
var State = reactive.NewAtom[[]model.Favorite]("favorites", nil)

// Manager loads and mutates favorites.
type Manager struct {
	store    *reactive.Store
	records  *records.Service
	cache    *cache.Cache
	memberID string
	logger   *slog.Logger
}

// New returns a Manager creating favorites on behalf of memberID.
func New(store *reactive.Store, svc *records.Service, c *cache.Cache, memberID string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: store, records: svc, cache: c, memberID: memberID, logger: logger}
}

// List returns the current favorites.
func (m *Manager) List() []model.Favorite {
	return reactive.Get(m.store, State)
}

// Load fetches the favorites, writes them to State when they differ from
// what is there, and registers the favorites list effect.
func (m *Manager) Load(ctx context.Context) ([]model.Favorite, error) {
	conn, err := m.records.FindMany(ctx, objectPlural, &client.FindManyRequest{
		Filter:  map[string]any{},
		OrderBy: map[string]any{},
	})
	if err != nil {
		return nil, fmt.Errorf("loading favorites: %w", err)
	}
	favs := MapFavorites(conn.Nodes())
	sort.SliceStable(favs, func(i, j int) bool { return favs[i].Position < favs[j].Position })
	reactive.Set(m.store, State, favs)
	return favs, nil
}

// Create adds the record targetID of targetObjectPlural to the end of the
// favorites.
func (m *Manager) Create(ctx context.Context, targetObjectPlural, targetID string) (model.Favorite, error) {
	target, ok := m.records.Metadata().ByPlural(targetObjectPlural)
	if !ok {
		return model.Favorite{}, fmt.Errorf("%w: %s", metadata.ErrUnknownObject, targetObjectPlural)
	}

	current := m.List()
	input := model.Record{
		target.NameSingular + "Id": targetID,
		"position":                 float64(len(current) + 1),
	}
	if m.memberID != "" {
		input["workspaceMemberId"] = m.memberID
	}

	created, err := m.records.CreateOne(ctx, objectSingular, input)
	if err != nil {
		return model.Favorite{}, fmt.Errorf("creating favorite: %w", err)
	}

	// Label and avatar come from the target record when it is cached.
	created = created.Clone()
	if node, ok := m.cache.FindNode(metadata.Typename(target), targetID); ok {
		created[target.NameSingular] = map[string]any(node)
	}
	mapped := MapFavorites([]model.Record{created})
	if len(mapped) == 0 {
		return model.Favorite{}, fmt.Errorf("creating favorite: server returned no %s target", target.NameSingular)
	}

	reactive.Update(m.store, State, func(cur []model.Favorite) []model.Favorite {
		return append(slices.Clone(cur), mapped[0])
	})
	return mapped[0], nil
}

// Delete removes the favorite pointing at targetRecordID.
func (m *Manager) Delete(ctx context.Context, targetRecordID string) error {
	idx := slices.IndexFunc(m.List(), func(f model.Favorite) bool { return f.RecordID == targetRecordID })
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, targetRecordID)
	}
	id := m.List()[idx].ID

	if err := m.records.DeleteOne(ctx, objectSingular, id); err != nil {
		return fmt.Errorf("deleting favorite: %w", err)
	}
	reactive.Update(m.store, State, func(cur []model.Favorite) []model.Favorite {
		return slices.DeleteFunc(slices.Clone(cur), func(f model.Favorite) bool { return f.ID == id })
	})
	return nil
}

// ComputeNewPosition returns the position of list[source] once moved to
// dest. The neighbours are taken from the list without the moved element:
// moving to the front halves the first position, moving to the end adds one
// to the last, anything else takes the midpoint of the two neighbours.
func ComputeNewPosition(list []model.Favorite, source, dest int) (float64, error) {
	if source < 0 || source >= len(list) || dest < 0 || dest >= len(list) {
		return 0, fmt.Errorf("%w: %d -> %d in %d favorites", ErrInvalidMove, source, dest, len(list))
	}
	rest := slices.Delete(slices.Clone(list), source, source+1)
	switch {
	case len(rest) == 0:
		return list[source].Position, nil
	case dest == 0:
		return rest[0].Position / 2, nil
	case dest >= len(rest):
		return rest[len(rest)-1].Position + 1, nil
	default:
		return (rest[dest-1].Position + rest[dest].Position) / 2, nil
	}
}

// Reorder moves the favorite at source to dest. The new order is written to
// State before the server is updated. When the update fails and the records
// service rolls back, the previous position is restored as well.
func (m *Manager) Reorder(ctx context.Context, source, dest int) error {
	before := m.List()
	pos, err := ComputeNewPosition(before, source, dest)
	if err != nil {
		return err
	}
	if source == dest {
		return nil
	}

	moved := before[source]
	oldPos := moved.Position
	moved.Position = pos
	after := slices.Delete(slices.Clone(before), source, source+1)
	after = slices.Insert(after, dest, moved)
	reactive.Set(m.store, State, after)

	_, err = m.records.UpdateOne(ctx, objectSingular, moved.ID, model.Record{"position": pos})
	if err == nil {
		return nil
	}

	if m.records.Policy() == records.Rollback {
		reactive.Update(m.store, State, func(cur []model.Favorite) []model.Favorite {
			if cmp.Equal(cur, after) {
				return before
			}
			return restorePosition(cur, moved.ID, oldPos)
		})
	} else {
		m.logger.Warn("favorite position kept after failed update", "id", moved.ID, "position", pos, "err", err)
	}
	return fmt.Errorf("moving favorite %s: %w", moved.ID, err)
}

// restorePosition puts id back at pos and re-sorts by position.
func restorePosition(list []model.Favorite, id string, pos float64) []model.Favorite {
	out := slices.Clone(list)
	for i := range out {
		if out[i].ID == id {
			out[i].Position = pos
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}
