package reconcile

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/stretchr/testify/require"

	"github.com/alfredjeanlab/vitro/internal/client"
	"github.com/alfredjeanlab/vitro/internal/events"
	"github.com/alfredjeanlab/vitro/internal/model"
)

func startTestNATS(t *testing.T) string {
	t.Helper()
	srv, err := natsserver.NewServer(&natsserver.Options{Host: "127.0.0.1", Port: -1})
	if err != nil {
		t.Fatalf("starting embedded NATS: %v", err)
	}
	srv.Start()
	t.Cleanup(srv.Shutdown)
	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatal("embedded NATS not ready")
	}
	return srv.ClientURL()
}

func TestWatcher_OverNATS(t *testing.T) {
	url := startTestNATS(t)
	f := newFixture(t)

	sub, err := events.NewNATSSubscriber(url)
	require.NoError(t, err)
	defer sub.Close()
	pub, err := events.NewNATSPublisher(url)
	require.NoError(t, err)
	defer pub.Close()

	changed := make(chan struct{}, 4)
	stop := f.cache.Watch(f.meta.FindManyQuery("company"), (*client.FindManyRequest)(nil).Variables(), func(map[string]any) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w := New(sub, f.meta, f.cache, f.effects, "me", nil)
	running := make(chan error, 1)
	go func() { running <- w.Run(ctx, events.ObjectTopic("company")) }()

	// Publish until the watcher has subscribed and applied the event.
	ev := &model.RecordEvent{
		Kind: model.RecordCreated, ObjectNameSingular: "company", RecordID: "c3",
		Record: json.RawMessage(`{"id":"c3","name":"Initech"}`), Actor: "someone-else",
	}
	deadline := time.After(5 * time.Second)
	for applied := false; !applied; {
		require.NoError(t, events.PublishRecord(ctx, pub, ev))
		require.NoError(t, pub.Flush())
		select {
		case <-changed:
			applied = true
		case <-time.After(100 * time.Millisecond):
		case <-deadline:
			t.Fatal("timed out waiting for the event to be applied")
		}
	}
	require.Equal(t, []string{"c3", "c1", "c2"}, f.companyIDs(t))

	cancel()
	require.NoError(t, <-running)
}
