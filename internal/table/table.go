// Package table keeps record table state (rows, per-record fields, row
// selection) in step with find-many results.
package table

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alfredjeanlab/vitro/internal/metadata"
	"github.com/alfredjeanlab/vitro/internal/model"
	"github.com/alfredjeanlab/vitro/internal/reactive"
	"github.com/alfredjeanlab/vitro/internal/records"
	"github.com/alfredjeanlab/vitro/internal/view"
)

// Table state.
var (
	RowIDs         = reactive.NewAtom[[]string]("table.rowIds", nil)
	SelectedRowIDs = reactive.NewAtom[[]string]("table.selectedRowIds", nil)
	NumberOfRows   = reactive.NewAtom("table.numberOfRows", 0)
	IsFetching     = reactive.NewAtom("table.isFetching", true)
	Columns        = reactive.NewAtom[[]model.ColumnDefinition]("table.columns", nil)
)

// SetData writes recs as the table's rows. Per-record fields and the row id
// list are only written when they changed. The row selection is cleared.
func SetData(s *reactive.Store, bar *view.Bar, recs []model.Record) {
	ids := make([]string, 0, len(recs))
	for _, r := range recs {
		id := r.ID()
		reactive.Set(s, view.EntityFields.Of(id), r)
		ids = append(ids, id)
	}
	reactive.Set(s, RowIDs, ids)
	reactive.Reset(s, SelectedRowIDs)
	reactive.Set(s, NumberOfRows, len(ids))
	if bar != nil {
		bar.SetEntityCount(len(ids))
	}
	reactive.Set(s, IsFetching, false)
}

// Loader fetches table rows.
type Loader struct {
	records *records.Service
	store   *reactive.Store
	bar     *view.Bar
	logger  *slog.Logger
}

// NewLoader returns a Loader publishing view-bar state on bar.
func NewLoader(svc *records.Service, store *reactive.Store, bar *view.Bar, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{records: svc, store: store, bar: bar, logger: logger}
}

// Load fetches the records of objectPlural matching v and sets them as the
// table's data.
func (l *Loader) Load(ctx context.Context, objectPlural string, v model.View) ([]model.Record, error) {
	obj, ok := l.records.Metadata().ByPlural(objectPlural)
	if !ok {
		return nil, fmt.Errorf("%w: %s", metadata.ErrUnknownObject, objectPlural)
	}
	l.bar.SetObject(obj, model.ViewTable)
	reactive.Set(l.store, Columns, view.MapFieldsToColumns(v.Fields, view.ColumnDefinitions(obj)))

	req, err := view.Request(obj, v)
	if err != nil {
		return nil, fmt.Errorf("building %s query: %w", objectPlural, err)
	}

	reactive.Set(l.store, IsFetching, true)
	conn, err := l.records.FindMany(ctx, objectPlural, req)
	if err != nil {
		reactive.Set(l.store, IsFetching, false)
		return nil, err
	}
	rows := conn.Nodes()
	SetData(l.store, l.bar, rows)
	l.logger.Debug("table loaded", "object", objectPlural, "rows", len(rows), "total", conn.TotalCount)
	return rows, nil
}
