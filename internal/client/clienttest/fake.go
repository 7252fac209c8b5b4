// Package clienttest provides an in-memory client.RecordClient for tests.
package clienttest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/alfredjeanlab/vitro/internal/client"
	"github.com/alfredjeanlab/vitro/internal/filter"
	"github.com/alfredjeanlab/vitro/internal/model"
)

// ErrNotFound is returned for updates and deletes of unknown records.
var ErrNotFound = errors.New("record not found")

// Fake is a minimal in-memory record server. Records are kept per object in
// insertion order. Set the *Err fields to make the next calls fail.
type Fake struct {
	mu      sync.Mutex
	records map[string][]model.Record
	objects []model.ObjectMetadata

	FindErr   error
	CreateErr error
	UpdateErr error
	DeleteErr error

	// BeforeMutate runs before every create, update or delete is applied,
	// outside the fake's lock. Tests use it to inspect optimistic state.
	BeforeMutate func(op, objectSingular string)

	calls []string
}

var _ client.RecordClient = (*Fake)(nil)

// New returns an empty Fake serving objects as its metadata.
func New(objects []model.ObjectMetadata) *Fake {
	return &Fake{records: make(map[string][]model.Record), objects: objects}
}

// Seed appends records of objectSingular.
func (f *Fake) Seed(objectSingular string, recs ...model.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range recs {
		f.records[objectSingular] = append(f.records[objectSingular], r.Clone())
	}
}

// Records returns a copy of the stored records of objectSingular.
func (f *Fake) Records(objectSingular string) []model.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Record, 0, len(f.records[objectSingular]))
	for _, r := range f.records[objectSingular] {
		out = append(out, r.Clone())
	}
	return out
}

// Calls returns the operations received so far, as "op:object".
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *Fake) record(op, objectSingular string) {
	f.mu.Lock()
	f.calls = append(f.calls, op+":"+objectSingular)
	f.mu.Unlock()
}

func (f *Fake) before(op, objectSingular string) {
	if f.BeforeMutate != nil {
		f.BeforeMutate(op, objectSingular)
	}
}

func (f *Fake) FindMany(ctx context.Context, objectSingular string, req *client.FindManyRequest) (*model.Connection, error) {
	f.record("findMany", objectSingular)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.FindErr != nil {
		return nil, f.FindErr
	}

	var match *filter.Predicate
	if req != nil && len(req.Filter) > 0 {
		p, err := filter.Compile(req.Filter)
		if err != nil {
			return nil, fmt.Errorf("compiling filter: %w", err)
		}
		match = p
	}

	var nodes []model.Record
	for _, r := range f.Records(objectSingular) {
		if match == nil || match.Matches(r) {
			nodes = append(nodes, r)
		}
	}
	if req != nil {
		sortRecords(nodes, req.OrderBy)
	}
	total := len(nodes)
	if req != nil && req.Limit > 0 && len(nodes) > req.Limit {
		nodes = nodes[:req.Limit]
	}

	conn := &model.Connection{TotalCount: total, PageInfo: model.PageInfo{HasNextPage: len(nodes) < total}}
	for _, n := range nodes {
		conn.Edges = append(conn.Edges, model.Edge{Node: n, Cursor: n.ID()})
	}
	if len(conn.Edges) > 0 {
		conn.PageInfo.StartCursor = conn.Edges[0].Cursor
		conn.PageInfo.EndCursor = conn.Edges[len(conn.Edges)-1].Cursor
	}
	return conn, nil
}

// sortRecords orders by the first orderBy field only.
func sortRecords(recs []model.Record, orderBy map[string]any) {
	if len(orderBy) == 0 {
		return
	}
	fields := make([]string, 0, len(orderBy))
	for k := range orderBy {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	field := fields[0]
	dir, _ := orderBy[field].(string)
	desc := strings.HasPrefix(dir, "Desc")

	sort.SliceStable(recs, func(i, j int) bool {
		a, aok := recs[i].Float(field)
		b, bok := recs[j].Float(field)
		if aok && bok {
			if desc {
				return a > b
			}
			return a < b
		}
		sa, sb := recs[i].String(field), recs[j].String(field)
		if desc {
			return sa > sb
		}
		return sa < sb
	})
}

func (f *Fake) CreateOne(ctx context.Context, objectSingular string, input model.Record) (model.Record, error) {
	f.record("createOne", objectSingular)
	f.before("createOne", objectSingular)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.CreateErr != nil {
		return nil, f.CreateErr
	}
	rec := input.Clone()
	delete(rec, model.TypenameField)
	if rec.ID() == "" {
		return nil, fmt.Errorf("createOne %s: missing id", objectSingular)
	}
	f.mu.Lock()
	f.records[objectSingular] = append(f.records[objectSingular], rec)
	f.mu.Unlock()
	return rec.Clone(), nil
}

func (f *Fake) UpdateOne(ctx context.Context, objectSingular, id string, input model.Record) (model.Record, error) {
	f.record("updateOne", objectSingular)
	f.before("updateOne", objectSingular)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.UpdateErr != nil {
		return nil, f.UpdateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.records[objectSingular] {
		if r.ID() == id {
			patch := input.Clone()
			delete(patch, model.TypenameField)
			updated := r.Merge(patch)
			updated["id"] = id
			f.records[objectSingular][i] = updated
			return updated.Clone(), nil
		}
	}
	return nil, fmt.Errorf("updateOne %s %s: %w", objectSingular, id, ErrNotFound)
}

func (f *Fake) DeleteOne(ctx context.Context, objectSingular, id string) error {
	f.record("deleteOne", objectSingular)
	f.before("deleteOne", objectSingular)
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	recs := f.records[objectSingular]
	for i, r := range recs {
		if r.ID() == id {
			f.records[objectSingular] = append(recs[:i:i], recs[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("deleteOne %s %s: %w", objectSingular, id, ErrNotFound)
}

func (f *Fake) ObjectMetadataItems(ctx context.Context) ([]model.ObjectMetadata, error) {
	f.record("objectMetadataItems", "")
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]model.ObjectMetadata(nil), f.objects...), nil
}

func (f *Fake) Close() error { return nil }
