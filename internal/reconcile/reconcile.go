// Package reconcile applies server-pushed record events to the query cache:
// created and updated records are merged into cached lists through the
// effect registry, deleted ones are evicted.
package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alfredjeanlab/vitro/internal/cache"
	"github.com/alfredjeanlab/vitro/internal/effect"
	"github.com/alfredjeanlab/vitro/internal/events"
	"github.com/alfredjeanlab/vitro/internal/metadata"
	"github.com/alfredjeanlab/vitro/internal/metrics"
	"github.com/alfredjeanlab/vitro/internal/model"
)

// ErrBadEvent is returned by Apply for messages that are not record events.
var ErrBadEvent = errors.New("malformed record event")

// Watcher subscribes to record events and reconciles the cache with them.
type Watcher struct {
	sub     events.Subscriber
	meta    *metadata.Registry
	cache   *cache.Cache
	effects *effect.Registry
	actor   string
	logger  *slog.Logger
}

// New returns a Watcher. Events whose actor equals actor are skipped: they
// come from this session's own mutations, which are already applied.
func New(sub events.Subscriber, meta *metadata.Registry, c *cache.Cache, effects *effect.Registry, actor string, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{sub: sub, meta: meta, cache: c, effects: effects, actor: actor, logger: logger}
}

// Run applies events on topic until ctx is done or the subscription closes.
// Malformed events are logged and skipped.
func (w *Watcher) Run(ctx context.Context, topic string) error {
	ch, cancel, err := w.sub.Subscribe(topic)
	if err != nil {
		return fmt.Errorf("watching %s: %w", topic, err)
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if _, err := w.Apply(msg); err != nil {
				w.logger.Warn("skipping record event", "topic", msg.Topic, "err", err)
			}
		}
	}
}

// Apply reconciles the cache with one message. It reports whether the
// message changed anything.
func (w *Watcher) Apply(msg events.Message) (bool, error) {
	kind, object, ok := events.ParseRecordTopic(msg.Topic)
	if !ok {
		return false, fmt.Errorf("%w: topic %q", ErrBadEvent, msg.Topic)
	}
	var ev model.RecordEvent
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		return false, fmt.Errorf("%w: %v", ErrBadEvent, err)
	}
	if ev.ObjectNameSingular == "" {
		ev.ObjectNameSingular = object
	}
	if ev.Kind == "" {
		ev.Kind = kind
	}
	if w.actor != "" && ev.Actor == w.actor {
		return false, nil
	}

	obj, ok := w.meta.BySingular(ev.ObjectNameSingular)
	if !ok {
		return false, fmt.Errorf("%w: %s", metadata.ErrUnknownObject, ev.ObjectNameSingular)
	}

	var changed bool
	switch ev.Kind {
	case model.RecordCreated, model.RecordUpdated:
		var rec model.Record
		if err := json.Unmarshal(ev.Record, &rec); err != nil || rec == nil {
			return false, fmt.Errorf("%w: %s event without record", ErrBadEvent, ev.Kind)
		}
		if rec.ID() == "" {
			rec["id"] = ev.RecordID
		}
		changed = w.trigger(ev.Kind, metadata.EdgeTypename(obj), rec)
	case model.RecordDeleted:
		changed = w.cache.Evict(metadata.Typename(obj), "id", ev.RecordID) > 0
	default:
		return false, fmt.Errorf("%w: kind %q", ErrBadEvent, ev.Kind)
	}

	metrics.ReconciledEvents.WithLabelValues(string(ev.Kind)).Inc()
	w.logger.Debug("reconciled record event", "kind", ev.Kind, "object", ev.ObjectNameSingular, "id", ev.RecordID)
	return changed, nil
}

// trigger merges rec into the cached lists of its object. Updated records
// only change lists that already hold them.
func (w *Watcher) trigger(kind model.RecordEventKind, edgeTypename string, rec model.Record) bool {
	data := []any{map[string]any(rec)}
	if kind == model.RecordUpdated {
		return w.effects.TriggerUpdate(edgeTypename, data) > 0
	}
	return w.effects.Trigger(edgeTypename, data) > 0
}
