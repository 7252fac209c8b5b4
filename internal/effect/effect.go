// Package effect is the optimistic effect registry.
//
// An effect associates a GraphQL typename with a cache writer. When a mutation
// produces data of that typename (optimistically, once the server answers, or
// when the server pushes a change), Trigger runs every writer registered for
// it. A writer re-reads its cached query, asks its resolver to merge the new
// data in and writes the result back under the same query and variables.
package effect

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/alfredjeanlab/vitro/internal/cache"
	"github.com/alfredjeanlab/vitro/internal/gql"
	"github.com/alfredjeanlab/vitro/internal/metadata"
	"github.com/alfredjeanlab/vitro/internal/metrics"
	"github.com/alfredjeanlab/vitro/internal/model"
)

// Resolver merges newData into the current cached list and returns the list
// to write back.
type Resolver func(current any, newData any, vars gql.Variables) any

// Definition describes an optimistic effect before registration.
type Definition struct {
	Key                string
	Typename           string
	ObjectNameSingular string

	// Query overrides the object's find-many query. When set and ListField is
	// empty, the effect has no list to write to.
	Query *gql.Document

	// ListField names the field of the query result holding the list. It
	// defaults to the object's plural name when Query is nil.
	ListField string

	Resolver Resolver

	// UpdateResolver merges data about records that already exist. It
	// defaults to Resolver.
	UpdateResolver Resolver
}

// Effect is a registered definition bound to its query and variables.
type Effect struct {
	Definition
	Variables gql.Variables

	query     gql.Document
	listField string
}

// Query returns the document the effect reads and writes.
func (e *Effect) Query() gql.Document { return e.query }

// ListField returns the list field the effect writes, or "" when it only
// checks for presence.
func (e *Effect) ListField() string { return e.listField }

// Metadata is the subset of the metadata registry effects depend on.
type Metadata interface {
	FindManyQuery(singular string) gql.Document
	BySingular(name string) (*model.ObjectMetadata, bool)
}

// Registry maps effect keys to effects and indexes them by typename. It is
// safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	effects    map[string]*Effect
	byTypename map[string]map[string]struct{}

	meta   Metadata
	cache  *cache.Cache
	logger *slog.Logger
}

// NewRegistry returns an empty registry writing to c. A nil logger falls back
// to slog.Default().
func NewRegistry(meta Metadata, c *cache.Cache, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		effects:    make(map[string]*Effect),
		byTypename: make(map[string]map[string]struct{}),
		meta:       meta,
		cache:      c,
		logger:     logger,
	}
}

// Register stores def under def.Key, replacing any effect with that key. It
// fails with metadata.ErrUnknownObject when the object has no find-many query.
func (r *Registry) Register(def Definition, vars gql.Variables) error {
	if err := validate(&def); err != nil {
		return fmt.Errorf("registering effect %q: %w", def.Key, err)
	}

	query := r.meta.FindManyQuery(def.ObjectNameSingular)
	if query.IsEmpty() {
		return fmt.Errorf("registering effect %q: %w: %s", def.Key, metadata.ErrUnknownObject, def.ObjectNameSingular)
	}

	e := &Effect{Definition: def, Variables: vars.Clone(), query: query, listField: def.ListField}
	if def.Query != nil {
		e.query = *def.Query
	} else if e.listField == "" {
		obj, _ := r.meta.BySingular(def.ObjectNameSingular)
		if obj != nil {
			e.listField = obj.NamePlural
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.effects[def.Key]; ok {
		r.unindexLocked(old)
	}
	r.effects[def.Key] = e
	if r.byTypename[def.Typename] == nil {
		r.byTypename[def.Typename] = make(map[string]struct{})
	}
	r.byTypename[def.Typename][def.Key] = struct{}{}
	return nil
}

func validate(def *Definition) error {
	var ve model.ValidationError
	if def.Key == "" {
		ve.Errors = append(ve.Errors, model.FieldError{Field: "key", Message: "is required"})
	}
	if def.Typename == "" {
		ve.Errors = append(ve.Errors, model.FieldError{Field: "typename", Message: "is required"})
	}
	if def.Resolver == nil {
		ve.Errors = append(ve.Errors, model.FieldError{Field: "resolver", Message: "is required"})
	}
	if ve.HasErrors() {
		return &ve
	}
	return nil
}

// Unregister removes the effect with key and reports whether it existed.
func (r *Registry) Unregister(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.effects[key]
	if !ok {
		return false
	}
	r.unindexLocked(e)
	delete(r.effects, key)
	return true
}

func (r *Registry) unindexLocked(e *Effect) {
	keys := r.byTypename[e.Typename]
	delete(keys, e.Key)
	if len(keys) == 0 {
		delete(r.byTypename, e.Typename)
	}
}

// Lookup returns the effect registered under key.
func (r *Registry) Lookup(key string) (*Effect, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.effects[key]
	return e, ok
}

// Keys returns the registered keys in sorted order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.effects))
	for k := range r.effects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of registered effects.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.effects)
}

// Trigger runs the writer of every effect registered for typename, in key
// order, and returns how many ran. A non-empty list of objects is stamped
// with __typename before it reaches the writers.
func (r *Registry) Trigger(typename string, newData any) int {
	return r.trigger(typename, newData, false)
}

// TriggerUpdate is Trigger for data about records that already exist on the
// server. Writers use the effect's UpdateResolver.
func (r *Registry) TriggerUpdate(typename string, newData any) int {
	return r.trigger(typename, newData, true)
}

func (r *Registry) trigger(typename string, newData any, update bool) int {
	effects := r.effectsFor(typename)
	if len(effects) == 0 {
		return 0
	}

	data := stamp(typename, newData)
	for _, e := range effects {
		resolve := e.Resolver
		if update && e.UpdateResolver != nil {
			resolve = e.UpdateResolver
		}
		r.write(e, resolve, data)
		metrics.EffectsTriggered.WithLabelValues(typename).Inc()
	}
	return len(effects)
}

// effectsFor returns the effects registered for typename in key order.
func (r *Registry) effectsFor(typename string) []*Effect {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.byTypename[typename]))
	for k := range r.byTypename[typename] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	effects := make([]*Effect, 0, len(keys))
	for _, k := range keys {
		effects = append(effects, r.effects[k])
	}
	return effects
}

// write is the effect's cache writer.
func (r *Registry) write(e *Effect, resolve Resolver, newData any) {
	current, ok := r.cache.ReadQuery(e.query, e.Variables)
	if e.listField == "" {
		r.logger.Debug("effect has no list field, skipping write",
			"key", e.Key, "query", e.query.Name, "cached", ok)
		return
	}
	if !ok {
		return
	}
	current[e.listField] = resolve(current[e.listField], model.CloneValue(newData), e.Variables.Clone())
	r.cache.WriteQuery(e.query, e.Variables, current)
}

// stamp returns a copy of data with __typename set on every element when
// data is a non-empty list of objects. Other values are returned unchanged.
func stamp(typename string, data any) any {
	recs, isList := asList(data)
	if !isList || len(recs) == 0 {
		return data
	}
	out := make([]any, 0, len(recs))
	for _, rec := range recs {
		if rec == nil {
			continue
		}
		c := rec.Clone()
		c[model.TypenameField] = typename
		out = append(out, map[string]any(c))
	}
	return out
}

func asList(data any) ([]model.Record, bool) {
	switch data.(type) {
	case []any, []model.Record, []map[string]any:
		return model.RecordsFromAny(data), true
	}
	return nil, false
}
