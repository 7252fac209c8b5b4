// Package idgen generates identifiers: UUIDs for records, short nanoid-based
// ids for snapshots.
package idgen

import (
	"fmt"

	"github.com/google/uuid"
	nanoid "github.com/matoous/go-nanoid/v2"
)

// SnapshotPrefix is prepended to every snapshot ID.
var SnapshotPrefix = "snap-"

// Alphabet defines the character set used for the random portion of snapshot IDs.
var Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Length is the number of random characters generated (excluding the prefix).
var Length = 10

// NewRecordID returns a random (version 4) UUID for a locally created record.
// The server accepts client-chosen ids, so the optimistic record and the
// confirmed one share it.
func NewRecordID() string {
	return uuid.NewString()
}

// IsRecordID reports whether s parses as a UUID.
func IsRecordID(s string) bool {
	return uuid.Validate(s) == nil
}

// Snapshot returns a new snapshot ID using the default prefix.
func Snapshot() (string, error) {
	return GenerateWithPrefix(SnapshotPrefix)
}

// GenerateWithPrefix returns a new unique ID with the given prefix.
func GenerateWithPrefix(prefix string) (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}
