package events

import "context"

// NoopPublisher discards every event. Sessions without a bus use it.
type NoopPublisher struct{}

func (*NoopPublisher) Publish(context.Context, string, any) error { return nil }

func (*NoopPublisher) Close() error { return nil }
