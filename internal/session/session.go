// Package session wires the data layer of one workspace: the record client,
// object metadata, the query cache and its effect registry, the reactive
// store, record-event reconciliation and cache snapshots.
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/alfredjeanlab/vitro/internal/cache"
	"github.com/alfredjeanlab/vitro/internal/client"
	"github.com/alfredjeanlab/vitro/internal/config"
	"github.com/alfredjeanlab/vitro/internal/effect"
	"github.com/alfredjeanlab/vitro/internal/events"
	"github.com/alfredjeanlab/vitro/internal/favorites"
	"github.com/alfredjeanlab/vitro/internal/metadata"
	"github.com/alfredjeanlab/vitro/internal/persist"
	"github.com/alfredjeanlab/vitro/internal/persist/postgres"
	"github.com/alfredjeanlab/vitro/internal/reactive"
	"github.com/alfredjeanlab/vitro/internal/reconcile"
	"github.com/alfredjeanlab/vitro/internal/records"
)

// Session owns every long-lived component of a connection to one workspace.
type Session struct {
	Config    *config.Config
	Client    client.RecordClient
	Metadata  *metadata.Registry
	Cache     *cache.Cache
	Effects   *effect.Registry
	Store     *reactive.Store
	Records   *records.Service
	Favorites *favorites.Manager

	actor      string
	logger     *slog.Logger
	publisher  events.Publisher
	subscriber events.Subscriber
	snapshots  *postgres.Store
	scheduler  *persist.Scheduler

	closers   []func() error
	closeOnce sync.Once
}

// Option configures Open.
type Option func(*openOptions)

type openOptions struct {
	client     client.RecordClient
	publisher  events.Publisher
	subscriber events.Subscriber
	actor      string
	logger     *slog.Logger
	noSchedule bool
}

// WithClient replaces the HTTP client built from the config.
func WithClient(c client.RecordClient) Option {
	return func(o *openOptions) { o.client = c }
}

// WithEvents replaces the NATS publisher and subscriber built from the config.
func WithEvents(p events.Publisher, s events.Subscriber) Option {
	return func(o *openOptions) {
		o.publisher = p
		o.subscriber = s
	}
}

// WithActor sets the actor stamped on published record events.
func WithActor(actor string) Option {
	return func(o *openOptions) { o.actor = actor }
}

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *openOptions) { o.logger = l }
}

// WithoutScheduler disables periodic snapshots even when an interval is
// configured. One-shot CLI commands use it.
func WithoutScheduler() Option {
	return func(o *openOptions) { o.noSchedule = true }
}

// Open loads object metadata and builds the session. When a database is
// configured the latest cache snapshot is restored before Open returns.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*Session, error) {
	o := openOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.actor == "" {
		o.actor = "unknown"
	}

	s := &Session{Config: cfg, actor: o.actor, logger: o.logger}
	if err := s.open(ctx, &o); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Session) open(ctx context.Context, o *openOptions) error {
	cfg := s.Config

	s.Client = o.client
	if s.Client == nil {
		s.Client = client.NewHTTPClient(cfg.APIURL, cfg.Token)
	}
	s.closers = append(s.closers, s.Client.Close)

	meta, err := metadata.Load(ctx, s.Client)
	if err != nil {
		return err
	}
	s.Metadata = meta
	if hc, ok := s.Client.(*client.HTTPClient); ok {
		hc.UseDocuments(meta)
	}

	s.Cache = cache.New(s.logger)
	s.Effects = effect.NewRegistry(meta, s.Cache, s.logger)
	s.Store = reactive.NewStore()

	if err := s.openEvents(o); err != nil {
		return err
	}

	recOpts := []records.Option{
		records.WithPolicy(recordsPolicy(cfg.FailurePolicy)),
		records.WithLogger(s.logger),
	}
	if s.publisher != nil {
		recOpts = append(recOpts, records.WithPublisher(s.publisher, s.actor))
	}
	s.Records = records.New(s.Client, meta, s.Cache, s.Effects, recOpts...)
	s.Favorites = favorites.New(s.Store, s.Records, s.Cache, cfg.WorkspaceMemberID, s.logger)

	if cfg.DatabaseURL != "" {
		store, err := postgres.New(cfg.DatabaseURL, cfg.Workspace)
		if err != nil {
			return fmt.Errorf("opening snapshot store: %w", err)
		}
		s.snapshots = store
		s.closers = append(s.closers, store.Close)
		if err := s.restoreLatest(ctx); err != nil {
			return err
		}
	}

	if !o.noSchedule {
		s.startScheduler(ctx)
	}
	return nil
}

func (s *Session) openEvents(o *openOptions) error {
	s.publisher, s.subscriber = o.publisher, o.subscriber
	if s.Config.NATSURL == "" || (s.publisher != nil && s.subscriber != nil) {
		return nil
	}
	if s.publisher == nil {
		pub, err := events.NewNATSPublisher(s.Config.NATSURL)
		if err != nil {
			return fmt.Errorf("connecting publisher: %w", err)
		}
		s.publisher = pub
		s.closers = append(s.closers, pub.Close)
	}
	if s.subscriber == nil {
		sub, err := events.NewNATSSubscriber(s.Config.NATSURL)
		if err != nil {
			return fmt.Errorf("connecting subscriber: %w", err)
		}
		s.subscriber = sub
		s.closers = append(s.closers, sub.Close)
	}
	s.logger.Debug("record events enabled", "nats_url", s.Config.NATSURL)
	return nil
}

func recordsPolicy(p config.FailurePolicy) records.FailurePolicy {
	if p == config.PolicyKeepOptimistic {
		return records.KeepOptimistic
	}
	return records.Rollback
}

func (s *Session) restoreLatest(ctx context.Context) error {
	data, err := s.snapshots.Read(ctx)
	if errors.Is(err, postgres.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading latest snapshot: %w", err)
	}
	if _, err := s.Restore(bytes.NewReader(data)); err != nil {
		s.logger.Warn("ignoring unreadable snapshot", "err", err)
	}
	return nil
}

// Restore loads a snapshot into the cache and registers the record effect
// of every restored list. Nothing is written when the snapshot is invalid.
func (s *Session) Restore(r io.Reader) (persist.Header, error) {
	h, entries, err := persist.ImportJSONL(r)
	if err != nil {
		return h, err
	}
	s.Cache.Restore(entries)
	adopted := s.Records.Adopt(entries)
	s.logger.Debug("restored cache snapshot", "entries", h.EntryCount, "lists", adopted, "taken", h.Timestamp)
	return h, nil
}

// Destinations returns the snapshot destinations enabled by the config.
func (s *Session) Destinations(ctx context.Context) []persist.Destination {
	var dests []persist.Destination
	if s.snapshots != nil {
		dests = append(dests, s.snapshots)
	}
	if s.Config.SnapshotS3Bucket != "" {
		d, err := persist.NewS3Destination(ctx,
			s.Config.SnapshotS3Bucket,
			s.Config.SnapshotS3Key,
			s.Config.SnapshotS3Region,
			s.Config.SnapshotS3Endpoint,
		)
		if err != nil {
			s.logger.Error("failed to create S3 snapshot destination", "err", err)
		} else {
			dests = append(dests, d)
		}
	}
	return dests
}

func (s *Session) startScheduler(ctx context.Context) {
	if s.Config.SnapshotInterval <= 0 {
		return
	}
	dests := s.Destinations(ctx)
	if len(dests) == 0 {
		return
	}
	s.scheduler = persist.NewScheduler(s.Cache, dests, s.Config.SnapshotInterval, s.logger)
	s.scheduler.Start()
	s.logger.Debug("snapshot scheduler started", "interval", s.Config.SnapshotInterval, "destinations", len(dests))
}

// Snapshots returns the postgres snapshot store, or nil when no database is
// configured.
func (s *Session) Snapshots() *postgres.Store { return s.snapshots }

// Actor returns the actor stamped on this session's record events.
func (s *Session) Actor() string { return s.actor }

// Watch reconciles the cache with record events on topic until ctx is done.
// It returns an error when no event bus is configured.
func (s *Session) Watch(ctx context.Context, topic string) error {
	w, err := s.Watcher()
	if err != nil {
		return err
	}
	return w.Run(ctx, topic)
}

// Watcher returns a reconcile watcher bound to the session.
func (s *Session) Watcher() (*reconcile.Watcher, error) {
	if s.subscriber == nil {
		return nil, errors.New("no event bus configured (set VITRO_NATS_URL)")
	}
	return reconcile.New(s.subscriber, s.Metadata, s.Cache, s.Effects, s.actor, s.logger), nil
}

// Close stops the scheduler, which writes a final snapshot, then closes
// every connection the session opened. It is safe to call more than once.
func (s *Session) Close() error {
	var errs []error
	s.closeOnce.Do(func() {
		if s.scheduler != nil {
			s.scheduler.Stop()
		}
		for i := len(s.closers) - 1; i >= 0; i-- {
			if err := s.closers[i](); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}
