// Package persist snapshots the query cache as JSONL and ships the
// snapshots to destinations on a schedule.
package persist

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/alfredjeanlab/vitro/internal/cache"
)

// FormatVersion is the snapshot format written by ExportJSONL.
const FormatVersion = "1"

// ErrFormat is returned by ImportJSONL for input that is not a snapshot.
var ErrFormat = errors.New("not a vitro cache snapshot")

// Header is the first line of a snapshot.
type Header struct {
	Version    string    `json:"version"`
	Type       string    `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	EntryCount int       `json:"entry_count"`
}

// line wraps one snapshot line with a type discriminator.
type line struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Source is anything that can be snapshotted. *cache.Cache satisfies it.
type Source interface {
	Snapshot() []cache.Entry
}

// ExportJSONL writes a header followed by one line per cache entry to w.
// Entries are written in key order so identical caches export identically
// apart from the header timestamp.
func ExportJSONL(src Source, w io.Writer) (Header, error) {
	entries := src.Snapshot()
	h := Header{
		Version:    FormatVersion,
		Type:       "header",
		Timestamp:  time.Now().UTC(),
		EntryCount: len(entries),
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(h); err != nil {
		return h, fmt.Errorf("encode header: %w", err)
	}
	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			return h, fmt.Errorf("encode entry %s: %w", e.Query.Name, err)
		}
		if err := enc.Encode(line{Type: "entry", Data: data}); err != nil {
			return h, fmt.Errorf("encode entry %s: %w", e.Query.Name, err)
		}
	}
	return h, nil
}

// ImportJSONL reads a snapshot written by ExportJSONL. Lines of unknown type
// are skipped so newer snapshots stay readable.
func ImportJSONL(r io.Reader) (Header, []cache.Entry, error) {
	var h Header
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return h, nil, fmt.Errorf("read header: %w", err)
		}
		return h, nil, fmt.Errorf("%w: empty input", ErrFormat)
	}
	if err := json.Unmarshal(sc.Bytes(), &h); err != nil || h.Type != "header" {
		return h, nil, fmt.Errorf("%w: bad header", ErrFormat)
	}
	if h.Version != FormatVersion {
		return h, nil, fmt.Errorf("%w: unsupported version %q", ErrFormat, h.Version)
	}

	var entries []cache.Entry
	for n := 2; sc.Scan(); n++ {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var l line
		if err := json.Unmarshal(sc.Bytes(), &l); err != nil {
			return h, nil, fmt.Errorf("line %d: %w", n, err)
		}
		if l.Type != "entry" {
			continue
		}
		var e cache.Entry
		if err := json.Unmarshal(l.Data, &e); err != nil {
			return h, nil, fmt.Errorf("line %d: decode entry: %w", n, err)
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return h, nil, fmt.Errorf("read snapshot: %w", err)
	}
	if len(entries) != h.EntryCount {
		return h, nil, fmt.Errorf("%w: header announces %d entries, read %d", ErrFormat, h.EntryCount, len(entries))
	}
	return h, entries, nil
}
