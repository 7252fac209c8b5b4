package events

import (
	"context"
	"fmt"
	"strings"

	"github.com/alfredjeanlab/vitro/internal/model"
)

// Event topic constants. Record events are published on
// "vitro.record.<kind>.<objectNameSingular>".
const (
	TopicPrefix = "vitro.record"

	// TopicAllRecords matches every record event.
	TopicAllRecords = TopicPrefix + ".>"
)

// RecordTopic returns the subject of a record event.
func RecordTopic(kind model.RecordEventKind, objectNameSingular string) string {
	return fmt.Sprintf("%s.%s.%s", TopicPrefix, kind, objectNameSingular)
}

// ObjectTopic returns the wildcard subject matching every event of one object.
func ObjectTopic(objectNameSingular string) string {
	return fmt.Sprintf("%s.*.%s", TopicPrefix, objectNameSingular)
}

// ParseRecordTopic splits a record subject into its kind and object.
func ParseRecordTopic(topic string) (model.RecordEventKind, string, bool) {
	rest, ok := strings.CutPrefix(topic, TopicPrefix+".")
	if !ok {
		return "", "", false
	}
	kind, object, ok := strings.Cut(rest, ".")
	if !ok || kind == "" || object == "" || strings.Contains(object, ".") {
		return "", "", false
	}
	return model.RecordEventKind(kind), object, true
}

// PublishRecord publishes ev on its record topic.
func PublishRecord(ctx context.Context, p Publisher, ev *model.RecordEvent) error {
	return p.Publish(ctx, RecordTopic(ev.Kind, ev.ObjectNameSingular), ev)
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
