package board

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/alfredjeanlab/vitro/internal/client"
	"github.com/alfredjeanlab/vitro/internal/metadata"
	"github.com/alfredjeanlab/vitro/internal/model"
	"github.com/alfredjeanlab/vitro/internal/reactive"
	"github.com/alfredjeanlab/vitro/internal/records"
	"github.com/alfredjeanlab/vitro/internal/view"
)

// Loader fetches the records behind the opportunity board and syncs them
// into the store.
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

// Result is what a Load fetched.
type Result struct {
	Steps         []model.PipelineStep
	Opportunities []model.Opportunity
	Companies     []model.Company
}

// Load fetches pipeline steps and the opportunities matching v in parallel,
// then the companies those opportunities belong to, and syncs the board.
func (l *Loader) Load(ctx context.Context, v model.View) (*Result, error) {
	obj, ok := l.records.Metadata().ByPlural("opportunities")
	if !ok {
		return nil, fmt.Errorf("%w: opportunities", metadata.ErrUnknownObject)
	}
	l.bar.SetObject(obj, model.ViewKanban)
	reactive.Set(l.store, CardFields, view.MapFieldsToColumns(v.Fields, view.ColumnDefinitions(obj)))

	req, err := view.Request(obj, v)
	if err != nil {
		return nil, fmt.Errorf("building board query: %w", err)
	}

	var res Result
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		conn, err := l.records.FindMany(gctx, "pipelineSteps", &client.FindManyRequest{Filter: map[string]any{}})
		if err != nil {
			return err
		}
		res.Steps, err = decodeAll[model.PipelineStep](conn)
		return err
	})
	g.Go(func() error {
		conn, err := l.records.FindMany(gctx, "opportunities", req)
		if err != nil {
			return err
		}
		res.Opportunities, err = decodeAll[model.Opportunity](conn)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("loading board: %w", err)
	}

	if ids := companyIDs(res.Opportunities); len(ids) > 0 {
		conn, err := l.records.FindMany(ctx, "companies", &client.FindManyRequest{
			Filter: map[string]any{"id": map[string]any{"in": ids}},
		})
		if err != nil {
			return nil, fmt.Errorf("loading board companies: %w", err)
		}
		if res.Companies, err = decodeAll[model.Company](conn); err != nil {
			return nil, err
		}
	}

	Sync(l.store, res.Steps, res.Opportunities, res.Companies, l.logger)
	reactive.Set(l.store, IsLoaded, true)
	l.bar.SetEntityCount(len(res.Opportunities))
	return &res, nil
}

// companyIDs returns the distinct company ids, in first-seen order.
func companyIDs(opps []model.Opportunity) []any {
	seen := make(map[string]bool)
	var out []any
	for _, o := range opps {
		if o.CompanyID == "" || seen[o.CompanyID] {
			continue
		}
		seen[o.CompanyID] = true
		out = append(out, o.CompanyID)
	}
	return out
}

func decodeAll[T any](conn *model.Connection) ([]T, error) {
	out := make([]T, 0, len(conn.Edges))
	for _, n := range conn.Nodes() {
		v, err := model.DecodeRecord[T](n)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
