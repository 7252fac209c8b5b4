// Package records runs record queries and mutations against the API while
// keeping the shared cache in step through optimistic effects.
package records

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alfredjeanlab/vitro/internal/cache"
	"github.com/alfredjeanlab/vitro/internal/client"
	"github.com/alfredjeanlab/vitro/internal/effect"
	"github.com/alfredjeanlab/vitro/internal/events"
	"github.com/alfredjeanlab/vitro/internal/idgen"
	"github.com/alfredjeanlab/vitro/internal/metadata"
	"github.com/alfredjeanlab/vitro/internal/metrics"
	"github.com/alfredjeanlab/vitro/internal/model"
)

// FailurePolicy decides what happens to optimistic writes when the server
// rejects a mutation. Either way the mutation's error is returned.
type FailurePolicy int

const (
	// Rollback undoes the optimistic write.
	Rollback FailurePolicy = iota
	// KeepOptimistic leaves the optimistic write in the cache.
	KeepOptimistic
)

func (p FailurePolicy) String() string {
	if p == KeepOptimistic {
		return "keep"
	}
	return "rollback"
}

// Service is the record layer shared by tables, boards and favorites.
type Service struct {
	client    client.RecordClient
	meta      *metadata.Registry
	cache     *cache.Cache
	effects   *effect.Registry
	publisher events.Publisher
	policy    FailurePolicy
	actor     string
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithPolicy sets the failure policy (default Rollback).
func WithPolicy(p FailurePolicy) Option {
	return func(s *Service) { s.policy = p }
}

// WithPublisher publishes a record event after every confirmed mutation.
func WithPublisher(p events.Publisher, actor string) Option {
	return func(s *Service) {
		s.publisher = p
		s.actor = actor
	}
}

// WithLogger sets the logger (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New returns a Service.
func New(c client.RecordClient, meta *metadata.Registry, ca *cache.Cache, effects *effect.Registry, opts ...Option) *Service {
	s := &Service{
		client:    c,
		meta:      meta,
		cache:     ca,
		effects:   effects,
		publisher: &events.NoopPublisher{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy returns the configured failure policy.
func (s *Service) Policy() FailurePolicy { return s.policy }

// Metadata returns the metadata registry the service resolves objects with.
func (s *Service) Metadata() *metadata.Registry { return s.meta }

// FindMany fetches a page of objectPlural, writes it to the cache under the
// request's variables and registers the record effect for that list.
func (s *Service) FindMany(ctx context.Context, objectPlural string, req *client.FindManyRequest) (*model.Connection, error) {
	obj, ok := s.meta.ByPlural(objectPlural)
	if !ok {
		return nil, fmt.Errorf("%w: %s", metadata.ErrUnknownObject, objectPlural)
	}

	conn, err := s.client.FindMany(ctx, obj.NameSingular, req)
	if err != nil {
		return nil, fmt.Errorf("finding %s: %w", objectPlural, err)
	}
	typename := metadata.Typename(obj)
	for i := range conn.Edges {
		if conn.Edges[i].Typename == "" {
			conn.Edges[i].Typename = metadata.EdgeTypename(obj)
		}
		if n := conn.Edges[i].Node; n != nil && n.Typename() == "" {
			n[model.TypenameField] = typename
		}
	}

	vars := req.Variables()
	data, err := conn.ToMap()
	if err != nil {
		return nil, err
	}
	s.cache.WriteQuery(s.meta.FindManyQuery(obj.NameSingular), vars, map[string]any{obj.NamePlural: data})

	if err := s.effects.Register(effect.RecordDefinition(obj, vars), vars); err != nil {
		return nil, err
	}
	return conn, nil
}

// Adopt registers the record effect of every find-many list among entries,
// so lists restored from a snapshot follow later mutations and events.
// Entries of other queries are skipped. It returns how many effects were
// registered.
func (s *Service) Adopt(entries []cache.Entry) int {
	byQuery := make(map[string]*model.ObjectMetadata)
	for _, o := range s.meta.Objects() {
		if obj, ok := s.meta.BySingular(o.NameSingular); ok {
			byQuery[s.meta.FindManyQuery(obj.NameSingular).Name] = obj
		}
	}

	n := 0
	for _, e := range entries {
		obj, ok := byQuery[e.Query.Name]
		if !ok {
			continue
		}
		if err := s.effects.Register(effect.RecordDefinition(obj, e.Variables), e.Variables); err != nil {
			s.logger.Warn("skipping restored list", "query", e.Query.Name, "err", err)
			continue
		}
		n++
	}
	return n
}

// CreateOne creates a record of objectSingular. The record gets a fresh UUID
// when input has no id and is added to cached lists before the server call;
// the server's copy replaces it once confirmed.
func (s *Service) CreateOne(ctx context.Context, objectSingular string, input model.Record) (model.Record, error) {
	obj, err := s.meta.Lookup(objectSingular)
	if err != nil {
		return nil, err
	}
	edge := metadata.EdgeTypename(obj)

	rec := input.Clone()
	if rec == nil {
		rec = model.Record{}
	}
	if rec.ID() == "" {
		rec["id"] = idgen.NewRecordID()
	}
	id := rec.ID()

	s.effects.Trigger(edge, []any{map[string]any(rec)})

	created, err := s.client.CreateOne(ctx, objectSingular, rec)
	if err != nil {
		if s.policy == Rollback {
			s.cache.Evict(metadata.Typename(obj), "id", id)
			metrics.MutationRollbacks.WithLabelValues(objectSingular).Inc()
		}
		return nil, fmt.Errorf("creating %s: %w", objectSingular, err)
	}

	s.effects.Trigger(edge, []any{map[string]any(created)})
	s.publish(ctx, model.RecordCreated, objectSingular, created.ID(), created)
	return created, nil
}

// UpdateOne applies patch to record id. When the record is cached, the
// patched copy is written before the server call. Updates only touch lists
// that already hold the record.
func (s *Service) UpdateOne(ctx context.Context, objectSingular, id string, patch model.Record) (model.Record, error) {
	obj, err := s.meta.Lookup(objectSingular)
	if err != nil {
		return nil, err
	}
	typename := metadata.Typename(obj)
	edge := metadata.EdgeTypename(obj)

	prev, known := s.cache.FindNode(typename, id)
	var cp *effect.Checkpoint
	if known {
		optimistic := prev.Merge(patch)
		optimistic["id"] = id
		cp = s.effects.Checkpoint(edge)
		s.effects.TriggerUpdate(edge, []any{map[string]any(optimistic)})
		cp.Capture()
	}

	updated, err := s.client.UpdateOne(ctx, objectSingular, id, patch)
	if err != nil {
		if known && s.policy == Rollback {
			restored := cp.Rollback()
			// Lists written since the optimistic write keep their shape and
			// get the previous field values back.
			s.cache.ReplaceNode(typename, id, prev)
			metrics.MutationRollbacks.WithLabelValues(objectSingular).Inc()
			s.logger.Debug("rolled back update", "object", objectSingular, "id", id, "lists", restored)
		}
		return nil, fmt.Errorf("updating %s %s: %w", objectSingular, id, err)
	}

	s.effects.TriggerUpdate(edge, []any{map[string]any(updated)})
	s.publish(ctx, model.RecordUpdated, objectSingular, id, updated)
	return updated, nil
}

// DeleteOne deletes record id on the server, then evicts it from every
// cached list.
func (s *Service) DeleteOne(ctx context.Context, objectSingular, id string) error {
	obj, err := s.meta.Lookup(objectSingular)
	if err != nil {
		return err
	}
	if err := s.client.DeleteOne(ctx, objectSingular, id); err != nil {
		return fmt.Errorf("deleting %s %s: %w", objectSingular, id, err)
	}
	s.cache.Evict(metadata.Typename(obj), "id", id)
	s.publish(ctx, model.RecordDeleted, objectSingular, id, nil)
	return nil
}

// publish emits a record event. Failures are logged, not returned: the
// mutation itself already succeeded.
func (s *Service) publish(ctx context.Context, kind model.RecordEventKind, objectSingular, id string, rec model.Record) {
	ev := &model.RecordEvent{
		Kind:               kind,
		ObjectNameSingular: objectSingular,
		RecordID:           id,
		Actor:              s.actor,
		CreatedAt:          time.Now().UTC(),
	}
	if rec != nil {
		data, err := json.Marshal(rec)
		if err != nil {
			s.logger.Warn("encoding record event", "object", objectSingular, "id", id, "err", err)
			return
		}
		ev.Record = data
	}
	if err := events.PublishRecord(ctx, s.publisher, ev); err != nil {
		s.logger.Warn("publishing record event", "object", objectSingular, "id", id, "err", err)
	}
}
