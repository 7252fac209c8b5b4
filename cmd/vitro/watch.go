package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/vitro/internal/client"
	"github.com/alfredjeanlab/vitro/internal/events"
	"github.com/alfredjeanlab/vitro/internal/metrics"
	"github.com/alfredjeanlab/vitro/internal/model"
	"github.com/alfredjeanlab/vitro/internal/reconcile"
	"github.com/alfredjeanlab/vitro/internal/session"
	"github.com/alfredjeanlab/vitro/internal/ui"
	"github.com/alfredjeanlab/vitro/internal/view"
)

var watchCmd = &cobra.Command{
	Use:     "watch [<object>]",
	Short:   "Reconcile the cache with record events and print what changes",
	GroupID: "views",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		interval, _ := cmd.Flags().GetDuration("interval")
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s, err := openSession(ctx, true)
		if err != nil {
			return err
		}

		if metricsAddr != "" {
			srv := &http.Server{Addr: metricsAddr, Handler: metricsMux()}
			go func() {
				logger.Info("metrics listening", "addr", metricsAddr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("metrics server error", "err", err)
				}
			}()
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()
		}

		lw := &listWatch{sess: s, seen: make(map[string]string)}
		topic := events.TopicAllRecords
		if len(args) == 1 {
			obj, err := s.Metadata.Lookup(args[0])
			if err != nil {
				return err
			}
			v, err := viewFromFlags(cmd, obj)
			if err != nil {
				return err
			}
			req, err := view.Request(obj, v)
			if err != nil {
				return err
			}
			lw.obj, lw.req = obj, req
			topic = events.ObjectTopic(obj.NameSingular)
			if err := lw.refresh(ctx); err != nil {
				return err
			}
		}

		if cfg.NATSURL != "" {
			return watchNATS(ctx, s, topic, lw)
		}
		if lw.obj == nil {
			return fmt.Errorf("no event bus configured (set VITRO_NATS_URL) and no object to poll")
		}
		return watchPoll(ctx, interval, lw)
	},
}

func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

// listWatch tracks one cached list and prints the records that change in it.
type listWatch struct {
	sess *session.Session
	obj  *model.ObjectMetadata
	req  *client.FindManyRequest
	seen map[string]string
}

// refresh fetches the list from the server and prints the changes.
func (lw *listWatch) refresh(ctx context.Context) error {
	if lw.obj == nil {
		return nil
	}
	conn, err := lw.sess.Records.FindMany(ctx, lw.obj.NamePlural, lw.req)
	if err != nil {
		return err
	}
	lw.print(conn.Nodes())
	return nil
}

// fromCache prints the changes of the cached list without a server round trip.
func (lw *listWatch) fromCache() {
	if lw.obj == nil {
		return
	}
	data, ok := lw.sess.Cache.ReadQuery(lw.sess.Metadata.FindManyQuery(lw.obj.NameSingular), lw.req.Variables())
	if !ok {
		return
	}
	conn, err := model.ConnectionFromAny(data[lw.obj.NamePlural])
	if err != nil {
		logger.Warn("reading cached list", "object", lw.obj.NamePlural, "err", err)
		return
	}
	lw.print(conn.Nodes())
}

func (lw *listWatch) print(recs []model.Record) {
	changed, removed := diffRecords(recs, lw.seen)
	if len(changed) == 0 && len(removed) == 0 {
		return
	}
	if jsonOutput {
		printJSON(map[string]any{"changed": changed, "removed": removed})
		return
	}
	if len(changed) > 0 {
		printRecordTable(os.Stdout, lw.obj, view.AvailableColumns(view.ColumnDefinitions(lw.obj)), changed)
	}
	for _, id := range removed {
		fmt.Printf("%s %s\n", ui.Render(ui.Red, "removed"), id)
	}
}

// diffRecords returns the records that are new or differ from the seen map,
// and the ids that were seen before but are gone. It updates seen in place.
func diffRecords(recs []model.Record, seen map[string]string) ([]model.Record, []string) {
	var changed []model.Record
	present := make(map[string]bool, len(recs))
	for _, r := range recs {
		id := r.ID()
		present[id] = true
		data, _ := json.Marshal(r)
		if prev, ok := seen[id]; !ok || prev != string(data) {
			changed = append(changed, r)
		}
		seen[id] = string(data)
	}
	var removed []string
	for id := range seen {
		if !present[id] {
			removed = append(removed, id)
			delete(seen, id)
		}
	}
	return changed, removed
}

// watchNATS applies record events to the cache as they arrive. After a
// reconnect the list is re-fetched, since events may have been missed.
func watchNATS(ctx context.Context, s *session.Session, topic string, lw *listWatch) error {
	reconnectCh := make(chan struct{}, 1)

	sub, err := events.NewNATSSubscriber(cfg.NATSURL,
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", "err", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
			select {
			case reconnectCh <- struct{}{}:
			default:
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("connecting to NATS: %w", err)
	}
	defer sub.Close()

	ch, cancel, err := sub.Subscribe(topic)
	if err != nil {
		return fmt.Errorf("subscribing to events: %w", err)
	}
	defer cancel()

	w := reconcile.New(sub, s.Metadata, s.Cache, s.Effects, s.Actor(), logger)

	debounce := time.NewTimer(0)
	debounce.Stop()
	select {
	case <-debounce.C:
	default:
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			changed, err := w.Apply(msg)
			if err != nil {
				logger.Warn("skipping record event", "topic", msg.Topic, "err", err)
				continue
			}
			if !jsonOutput {
				fmt.Println(ui.RenderMuted(msg.Topic))
			}
			if changed {
				debounce.Reset(200 * time.Millisecond)
			}
		case <-reconnectCh:
			if err := lw.refresh(ctx); err != nil && ctx.Err() == nil {
				logger.Warn("re-fetching after reconnect", "err", err)
			}
		case <-debounce.C:
			lw.fromCache()
		}
	}
}

// watchPoll re-fetches the list at the given interval.
func watchPoll(ctx context.Context, interval time.Duration, lw *listWatch) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
		if err := lw.refresh(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

func init() {
	addViewFlags(watchCmd)
	watchCmd.Flags().Duration("interval", 5*time.Second, "polling interval when no event bus is configured")
	watchCmd.Flags().String("metrics-addr", "", "serve prometheus metrics on this address (e.g. :9464)")
}
