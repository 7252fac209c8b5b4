package reconcile

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/alfredjeanlab/vitro/internal/cache"
	"github.com/alfredjeanlab/vitro/internal/client"
	"github.com/alfredjeanlab/vitro/internal/client/clienttest"
	"github.com/alfredjeanlab/vitro/internal/effect"
	"github.com/alfredjeanlab/vitro/internal/events"
	"github.com/alfredjeanlab/vitro/internal/metadata"
	"github.com/alfredjeanlab/vitro/internal/metadata/metadatatest"
	"github.com/alfredjeanlab/vitro/internal/model"
	"github.com/alfredjeanlab/vitro/internal/records"
)

// chanSubscriber serves every Subscribe from one in-memory channel.
type chanSubscriber struct {
	ch chan events.Message
}

func newChanSubscriber() *chanSubscriber {
	return &chanSubscriber{ch: make(chan events.Message, 16)}
}

func (s *chanSubscriber) Subscribe(string) (<-chan events.Message, func(), error) {
	return s.ch, func() {}, nil
}

func (s *chanSubscriber) send(msg events.Message) {
	s.ch <- msg
}

func (s *chanSubscriber) Close() error { return nil }

type fixture struct {
	meta    *metadata.Registry
	cache   *cache.Cache
	effects *effect.Registry
}

// newFixture caches the companies list (c1, c2) with its record effect.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	meta := metadatatest.Registry(t)
	c := cache.New(nil)
	effects := effect.NewRegistry(meta, c, nil)
	fake := clienttest.New(metadatatest.Objects())
	fake.Seed("company", model.Record{"id": "c1", "name": "Acme"}, model.Record{"id": "c2", "name": "Globex"})
	_, err := records.New(fake, meta, c, effects).FindMany(context.Background(), "companies", nil)
	require.NoError(t, err)
	return &fixture{meta: meta, cache: c, effects: effects}
}

func (f *fixture) companyIDs(t *testing.T) []string {
	t.Helper()
	data, ok := f.cache.ReadQuery(f.meta.FindManyQuery("company"), (*client.FindManyRequest)(nil).Variables())
	require.True(t, ok)
	conn, err := model.ConnectionFromAny(data["companies"])
	require.NoError(t, err)
	var ids []string
	for _, n := range conn.Nodes() {
		ids = append(ids, n.ID())
	}
	return ids
}

func message(t *testing.T, ev model.RecordEvent) events.Message {
	t.Helper()
	data, err := json.Marshal(ev)
	require.NoError(t, err)
	return events.Message{Topic: events.RecordTopic(ev.Kind, ev.ObjectNameSingular), Data: data}
}

func TestWatcher_ApplyCreated(t *testing.T) {
	f := newFixture(t)
	w := New(nil, f.meta, f.cache, f.effects, "me", nil)

	changed, err := w.Apply(message(t, model.RecordEvent{
		Kind: model.RecordCreated, ObjectNameSingular: "company", RecordID: "c3",
		Record: json.RawMessage(`{"id":"c3","name":"Initech"}`), Actor: "someone-else",
	}))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []string{"c3", "c1", "c2"}, f.companyIDs(t))
}

func TestWatcher_ApplyUpdated(t *testing.T) {
	f := newFixture(t)
	w := New(nil, f.meta, f.cache, f.effects, "", nil)

	_, err := w.Apply(message(t, model.RecordEvent{
		Kind: model.RecordUpdated, ObjectNameSingular: "company", RecordID: "c2",
		Record: json.RawMessage(`{"name":"Globex Corp"}`),
	}))
	require.NoError(t, err)

	node, ok := f.cache.FindNode("Company", "c2")
	require.True(t, ok)
	assert.Equal(t, "Globex Corp", node.String("name"))
	assert.Equal(t, []string{"c1", "c2"}, f.companyIDs(t))
}

func TestWatcher_ApplyUpdatedUnknownRecord(t *testing.T) {
	f := newFixture(t)
	w := New(nil, f.meta, f.cache, f.effects, "", nil)

	_, err := w.Apply(message(t, model.RecordEvent{
		Kind: model.RecordUpdated, ObjectNameSingular: "company", RecordID: "c7",
		Record: json.RawMessage(`{"name":"Umbrella"}`),
	}))
	require.NoError(t, err)

	assert.Equal(t, []string{"c1", "c2"}, f.companyIDs(t))
	_, cached := f.cache.FindNode("Company", "c7")
	assert.False(t, cached, "updates only reach lists that hold the record")
}

func TestWatcher_ApplyDeleted(t *testing.T) {
	f := newFixture(t)
	w := New(nil, f.meta, f.cache, f.effects, "", nil)

	changed, err := w.Apply(message(t, model.RecordEvent{Kind: model.RecordDeleted, ObjectNameSingular: "company", RecordID: "c1"}))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []string{"c2"}, f.companyIDs(t))

	changed, err = w.Apply(message(t, model.RecordEvent{Kind: model.RecordDeleted, ObjectNameSingular: "company", RecordID: "c1"}))
	require.NoError(t, err)
	assert.False(t, changed, "second delete is a no-op")
}

func TestWatcher_SkipsOwnEvents(t *testing.T) {
	f := newFixture(t)
	w := New(nil, f.meta, f.cache, f.effects, "me", nil)

	changed, err := w.Apply(message(t, model.RecordEvent{Kind: model.RecordDeleted, ObjectNameSingular: "company", RecordID: "c1", Actor: "me"}))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, []string{"c1", "c2"}, f.companyIDs(t))
}

func TestWatcher_ApplyErrors(t *testing.T) {
	f := newFixture(t)
	w := New(nil, f.meta, f.cache, f.effects, "", nil)

	for _, tc := range []struct {
		name string
		msg  events.Message
		want error
	}{
		{"bad topic", events.Message{Topic: "other.subject", Data: []byte(`{}`)}, ErrBadEvent},
		{"bad json", events.Message{Topic: "vitro.record.created.company", Data: []byte(`{`)}, ErrBadEvent},
		{"missing record", message(t, model.RecordEvent{Kind: model.RecordCreated, ObjectNameSingular: "company", RecordID: "c9"}), ErrBadEvent},
		{"unknown object", message(t, model.RecordEvent{Kind: model.RecordDeleted, ObjectNameSingular: "widget", RecordID: "w1"}), metadata.ErrUnknownObject},
		{"unknown kind", message(t, model.RecordEvent{Kind: "archived", ObjectNameSingular: "company", RecordID: "c1"}), ErrBadEvent},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := w.Apply(tc.msg)
			assert.ErrorIs(t, err, tc.want)
		})
	}
	assert.Equal(t, []string{"c1", "c2"}, f.companyIDs(t))
}

func TestWatcher_Run(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	f := newFixture(t)
	sub := newChanSubscriber()
	w := New(sub, f.meta, f.cache, f.effects, "", nil)

	changed := make(chan struct{}, 4)
	stop := f.cache.Watch(f.meta.FindManyQuery("company"), (*client.FindManyRequest)(nil).Variables(), func(map[string]any) {
		changed <- struct{}{}
	})
	defer stop()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, events.TopicAllRecords) }()

	sub.send(events.Message{Topic: "garbage", Data: nil})
	sub.send(message(t, model.RecordEvent{Kind: model.RecordDeleted, ObjectNameSingular: "company", RecordID: "c2"}))

	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the cache to change")
	}
	assert.Equal(t, []string{"c1"}, f.companyIDs(t))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
