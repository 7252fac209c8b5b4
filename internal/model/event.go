package model

import (
	"encoding/json"
	"time"
)

// RecordEventKind is the change carried by a RecordEvent.
type RecordEventKind string

const (
	RecordCreated RecordEventKind = "created"
	RecordUpdated RecordEventKind = "updated"
	RecordDeleted RecordEventKind = "deleted"
)

// RecordEvent is a server-pushed record change, as published on the event bus.
type RecordEvent struct {
	Kind               RecordEventKind `json:"kind"`
	ObjectNameSingular string          `json:"object_name_singular"`
	RecordID           string          `json:"record_id"`
	Record             json.RawMessage `json:"record,omitempty"`
	Actor              string          `json:"actor,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}
