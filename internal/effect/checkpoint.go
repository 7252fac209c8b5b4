package effect

import (
	"github.com/google/go-cmp/cmp"

	"github.com/alfredjeanlab/vitro/internal/gql"
)

// Checkpoint holds the cached lists an optimistic write is about to touch,
// so a rejected mutation can put them back.
type Checkpoint struct {
	r       *Registry
	entries []checkpointEntry
}

type checkpointEntry struct {
	query  gql.Document
	vars   gql.Variables
	before map[string]any
	after  map[string]any
}

// Checkpoint captures the cached queries of every list effect registered
// for typename. Call Capture after the optimistic write and Rollback if the
// mutation fails.
func (r *Registry) Checkpoint(typename string) *Checkpoint {
	cp := &Checkpoint{r: r}
	for _, e := range r.effectsFor(typename) {
		if e.listField == "" {
			continue
		}
		data, ok := r.cache.ReadQuery(e.query, e.Variables)
		if !ok {
			continue
		}
		cp.entries = append(cp.entries, checkpointEntry{query: e.query, vars: e.Variables, before: data})
	}
	return cp
}

// Capture records the state the optimistic write left behind.
func (c *Checkpoint) Capture() {
	for i := range c.entries {
		c.entries[i].after, _ = c.r.cache.ReadQuery(c.entries[i].query, c.entries[i].vars)
	}
}

// Rollback writes back every captured list that still holds exactly what
// the optimistic write produced. Lists written since then are left alone.
// It returns how many lists were restored.
func (c *Checkpoint) Rollback() int {
	n := 0
	for _, e := range c.entries {
		current, ok := c.r.cache.ReadQuery(e.query, e.vars)
		if !ok || !cmp.Equal(current, e.after) {
			continue
		}
		if cmp.Equal(current, e.before) {
			continue
		}
		c.r.cache.WriteQuery(e.query, e.vars, e.before)
		n++
	}
	return n
}
