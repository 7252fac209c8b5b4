package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/alfredjeanlab/vitro/internal/model"
)

func TestNoopPublisher_Publish(t *testing.T) {
	pub := &NoopPublisher{}
	err := pub.Publish(context.Background(), RecordTopic(model.RecordCreated, "company"), model.RecordEvent{})
	if err != nil {
		t.Fatalf("NoopPublisher.Publish returned unexpected error: %v", err)
	}
}

func TestNoopPublisher_Close(t *testing.T) {
	pub := &NoopPublisher{}
	err := pub.Close()
	if err != nil {
		t.Fatalf("NoopPublisher.Close returned unexpected error: %v", err)
	}
}

func TestNoopPublisher_ImplementsPublisher(t *testing.T) {
	var _ Publisher = (*NoopPublisher)(nil)
}

func TestNATSPublisher_ImplementsPublisher(t *testing.T) {
	var _ Publisher = (*NATSPublisher)(nil)
}

func TestRecordTopic(t *testing.T) {
	for _, tc := range []struct {
		kind   model.RecordEventKind
		object string
		want   string
	}{
		{model.RecordCreated, "company", "vitro.record.created.company"},
		{model.RecordUpdated, "pipelineStep", "vitro.record.updated.pipelineStep"},
		{model.RecordDeleted, "favorite", "vitro.record.deleted.favorite"},
	} {
		got := RecordTopic(tc.kind, tc.object)
		if got != tc.want {
			t.Errorf("RecordTopic(%s, %s) = %q, want %q", tc.kind, tc.object, got, tc.want)
		}
		kind, object, ok := ParseRecordTopic(got)
		if !ok || kind != tc.kind || object != tc.object {
			t.Errorf("ParseRecordTopic(%q) = %q, %q, %v", got, kind, object, ok)
		}
	}
}

func TestParseRecordTopic_Invalid(t *testing.T) {
	for _, topic := range []string{
		"",
		"vitro.record",
		"vitro.record.created",
		"vitro.record.created.",
		"vitro.record.created.company.extra",
		"crm.record.created.company",
	} {
		if _, _, ok := ParseRecordTopic(topic); ok {
			t.Errorf("ParseRecordTopic(%q) ok = true, want false", topic)
		}
	}
}

func TestObjectTopic(t *testing.T) {
	if got := ObjectTopic("person"); got != "vitro.record.*.person" {
		t.Errorf("ObjectTopic(person) = %q", got)
	}
}

func TestNATSPublisher_PublishRecord(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	// Subscribe to capture published messages.
	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connecting subscriber: %v", err)
	}
	defer nc.Close()

	ch := make(chan *nats.Msg, 1)
	sub, err := nc.ChanSubscribe(ObjectTopic("company"), ch)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer sub.Unsubscribe() //nolint:errcheck
	nc.Flush()

	ev := &model.RecordEvent{
		Kind:               model.RecordUpdated,
		ObjectNameSingular: "company",
		RecordID:           "c1",
		Record:             json.RawMessage(`{"id":"c1","name":"Acme"}`),
	}
	if err := PublishRecord(context.Background(), pub, ev); err != nil {
		t.Fatalf("PublishRecord error: %v", err)
	}
	if err := pub.Flush(); err != nil {
		t.Fatalf("Flush error: %v", err)
	}

	select {
	case msg := <-ch:
		if msg.Subject != "vitro.record.updated.company" {
			t.Errorf("subject = %q", msg.Subject)
		}
		var got model.RecordEvent
		if err := json.Unmarshal(msg.Data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.RecordID != "c1" || got.Kind != model.RecordUpdated {
			t.Errorf("got event %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published message")
	}
}

func TestNATSPublisher_CanceledContext(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := pub.Publish(ctx, TopicPrefix+".created.company", model.RecordEvent{}); err == nil {
		t.Error("expected error publishing with a canceled context")
	}
}

func TestNATSPublisher_Close(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}

	if err := pub.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	// Publishing after close should fail.
	err = pub.Publish(context.Background(), RecordTopic(model.RecordCreated, "company"), model.RecordEvent{})
	if err == nil {
		t.Error("expected error publishing after close")
	}
}
