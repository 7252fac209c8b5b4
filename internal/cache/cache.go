// Package cache is the shared GraphQL query cache.
//
// Results are stored per (document, variables) pair. Every reader of the same
// pair sees the latest write; readers get deep copies so they can never mutate
// cached data in place.
package cache

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/alfredjeanlab/vitro/internal/gql"
	"github.com/alfredjeanlab/vitro/internal/metrics"
	"github.com/alfredjeanlab/vitro/internal/model"
)

// Entry is one cached query result.
type Entry struct {
	Query     gql.Document   `json:"query"`
	Variables gql.Variables  `json:"variables"`
	Data      map[string]any `json:"data"`
}

func (e Entry) key() string {
	return entryKey(e.Query, e.Variables)
}

func entryKey(doc gql.Document, vars gql.Variables) string {
	return doc.Name + "|" + vars.Key()
}

// Cache is safe for concurrent use. Concurrent writers to the same key are
// last-write-wins.
type Cache struct {
	mu       sync.RWMutex
	entries  map[string]Entry
	watchers map[string]map[int]func(map[string]any)
	nextID   int
	logger   *slog.Logger
}

// New returns an empty cache. A nil logger falls back to slog.Default().
func New(logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		entries:  make(map[string]Entry),
		watchers: make(map[string]map[int]func(map[string]any)),
		logger:   logger,
	}
}

// ReadQuery returns a copy of the cached result for doc and vars.
func (c *Cache) ReadQuery(doc gql.Document, vars gql.Variables) (map[string]any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[entryKey(doc, vars)]
	if !ok {
		return nil, false
	}
	return model.CloneValue(e.Data).(map[string]any), true
}

// WriteQuery stores a copy of data for doc and vars and notifies watchers.
func (c *Cache) WriteQuery(doc gql.Document, vars gql.Variables, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	e := Entry{Query: doc, Variables: vars.Clone(), Data: model.CloneValue(data).(map[string]any)}
	key := e.key()

	c.mu.Lock()
	c.entries[key] = e
	watchers := c.watchersLocked(key)
	c.mu.Unlock()

	metrics.CacheWrites.Inc()
	c.notify(watchers, e.Data)
}

// Watch calls fn with a copy of the data after every write to doc/vars.
func (c *Cache) Watch(doc gql.Document, vars gql.Variables, fn func(map[string]any)) func() {
	key := entryKey(doc, vars)
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	if c.watchers[key] == nil {
		c.watchers[key] = make(map[int]func(map[string]any))
	}
	c.watchers[key][id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.watchers[key], id)
		if len(c.watchers[key]) == 0 {
			delete(c.watchers, key)
		}
	}
}

func (c *Cache) watchersLocked(key string) []func(map[string]any) {
	m := c.watchers[key]
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]func(map[string]any), 0, len(ids))
	for _, id := range ids {
		out = append(out, m[id])
	}
	return out
}

func (c *Cache) notify(watchers []func(map[string]any), data map[string]any) {
	for _, fn := range watchers {
		fn(model.CloneValue(data).(map[string]any))
	}
}

// Evict removes every node with the given typename whose field equals value
// from all cached connections, decrementing totalCount for each removal. It
// returns the number of nodes removed.
func (c *Cache) Evict(typename, field string, value any) int {
	type touched struct {
		data     map[string]any
		watchers []func(map[string]any)
	}

	removed := 0
	var changed []touched

	c.mu.Lock()
	for key, e := range c.entries {
		n := 0
		for _, v := range e.Data {
			n += evictFromValue(v, typename, field, value)
		}
		if n == 0 {
			continue
		}
		removed += n
		changed = append(changed, touched{
			data:     model.CloneValue(e.Data).(map[string]any),
			watchers: c.watchersLocked(key),
		})
	}
	c.mu.Unlock()

	for _, t := range changed {
		c.notify(t.watchers, t.data)
	}
	if removed > 0 {
		metrics.CacheEvictions.Add(float64(removed))
		c.logger.Debug("evicted cached nodes", "typename", typename, "field", field, "value", value, "count", removed)
	}
	return removed
}

// evictFromValue walks a connection-shaped value in place.
func evictFromValue(v any, typename, field string, value any) int {
	conn, ok := v.(map[string]any)
	if !ok {
		return 0
	}
	edges, ok := conn["edges"].([]any)
	if !ok {
		return 0
	}
	kept := edges[:0:0]
	removed := 0
	for _, e := range edges {
		edge, _ := e.(map[string]any)
		node, _ := edge["node"].(map[string]any)
		if node != nil && node[model.TypenameField] == typename && node[field] == value {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	if removed == 0 {
		return 0
	}
	conn["edges"] = kept
	switch total := conn["totalCount"].(type) {
	case float64:
		conn["totalCount"] = max(total-float64(removed), 0)
	case int:
		conn["totalCount"] = max(total-removed, 0)
	}
	return removed
}

// ReplaceNode swaps every cached node with the given typename and id for a
// copy of node. It returns the number of nodes replaced.
func (c *Cache) ReplaceNode(typename, id string, node model.Record) int {
	type touched struct {
		data     map[string]any
		watchers []func(map[string]any)
	}

	replaced := 0
	var changed []touched

	c.mu.Lock()
	for key, e := range c.entries {
		n := 0
		for _, v := range e.Data {
			conn, _ := v.(map[string]any)
			edges, _ := conn["edges"].([]any)
			for _, ed := range edges {
				edge, _ := ed.(map[string]any)
				old, _ := edge["node"].(map[string]any)
				if old != nil && old[model.TypenameField] == typename && old["id"] == id {
					edge["node"] = model.CloneValue(map[string]any(node))
					n++
				}
			}
		}
		if n == 0 {
			continue
		}
		replaced += n
		changed = append(changed, touched{
			data:     model.CloneValue(e.Data).(map[string]any),
			watchers: c.watchersLocked(key),
		})
	}
	c.mu.Unlock()

	for _, t := range changed {
		c.notify(t.watchers, t.data)
	}
	return replaced
}

// FindNode returns a copy of the first cached node with the given typename and id.
func (c *Cache) FindNode(typename, id string) (model.Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range c.entries[k].Data {
			conn, _ := v.(map[string]any)
			edges, _ := conn["edges"].([]any)
			for _, e := range edges {
				edge, _ := e.(map[string]any)
				node, _ := edge["node"].(map[string]any)
				if node != nil && node[model.TypenameField] == typename && node["id"] == id {
					return model.Record(model.CloneValue(node).(map[string]any)), true
				}
			}
		}
	}
	return nil, false
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Snapshot returns copies of all entries ordered by key.
func (c *Cache) Snapshot() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Entry, 0, len(keys))
	for _, k := range keys {
		e := c.entries[k]
		out = append(out, Entry{
			Query:     e.Query,
			Variables: e.Variables.Clone(),
			Data:      model.CloneValue(e.Data).(map[string]any),
		})
	}
	return out
}

// Restore writes entries into the cache, replacing existing entries with the
// same key.
func (c *Cache) Restore(entries []Entry) {
	for _, e := range entries {
		c.WriteQuery(e.Query, e.Variables, e.Data)
	}
}

// Reset drops every entry. Watchers stay registered.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]Entry)
}
