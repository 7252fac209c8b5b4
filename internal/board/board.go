// Package board derives the opportunity kanban board (columns, cards and
// per-card company progress) from pipeline steps, opportunities and companies.
package board

import (
	"encoding/json"
	"log/slog"
	"sort"

	"github.com/alfredjeanlab/vitro/internal/model"
	"github.com/alfredjeanlab/vitro/internal/reactive"
	"github.com/alfredjeanlab/vitro/internal/ui"
	"github.com/alfredjeanlab/vitro/internal/view"
)

// Board state.
var (
	CompanyProgresses    = reactive.NewFamily[string, model.CompanyProgress]("board.companyProgresses", model.CompanyProgress{})
	CurrentPipelineSteps = reactive.NewAtom[[]model.PipelineStep]("board.currentPipelineSteps", nil)
	Columns              = reactive.NewAtom[[]model.BoardColumn]("board.columns", nil)
	SavedColumns         = reactive.NewAtom[[]model.BoardColumn]("board.savedColumns", nil)
	CardIDsByColumn      = reactive.NewFamily[string, []string]("board.cardIdsByColumn", nil)
	CardFields           = reactive.NewAtom[[]model.ColumnDefinition]("board.cardFields", nil)
	IsLoaded             = reactive.NewAtom("board.isLoaded", false)
)

// Sync writes the board state derived from steps, opportunities and
// companies. Every write is skipped when the stored value is deeply equal.
// Opportunities whose company is not in companies get no progress entry but
// still count as cards. Columns are only seeded while the board has none, so
// a user's column edits survive later syncs.
func Sync(s *reactive.Store, steps []model.PipelineStep, opportunities []model.Opportunity, companies []model.Company, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}

	companiesByID := make(map[string]model.Company, len(companies))
	for _, c := range companies {
		companiesByID[c.ID] = c
	}

	for _, o := range opportunities {
		if o.CompanyID == "" {
			continue
		}
		c, ok := companiesByID[o.CompanyID]
		if !ok {
			continue
		}
		if reactive.Set(s, CompanyProgresses.Of(o.ID), model.CompanyProgress{Opportunity: o, Company: c}) {
			reactive.Set(s, view.EntityFields.Of(o.ID), toRecord(o))
		}
	}

	reactive.Set(s, CurrentPipelineSteps, steps)

	ordered := append([]model.PipelineStep(nil), steps...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Position < ordered[j].Position })

	columns := make([]model.BoardColumn, 0, len(ordered))
	for _, step := range ordered {
		col := model.BoardColumn{ID: step.ID, Title: step.Name, Position: step.Position}
		if ui.IsThemeColor(step.Color) {
			col.ColorCode = step.Color
		} else {
			logger.Warn("pipeline step color is not a theme color", "step", step.ID, "color", step.Color)
		}
		columns = append(columns, col)
	}

	if len(reactive.Get(s, Columns)) == 0 && len(columns) > 0 {
		reactive.Set(s, Columns, columns)
		reactive.Set(s, SavedColumns, columns)
	}

	for _, col := range columns {
		ids := []string{}
		for _, o := range opportunities {
			if o.PipelineStepID == col.ID {
				ids = append(ids, o.ID)
			}
		}
		reactive.Set(s, CardIDsByColumn.Of(col.ID), ids)
	}
}

func toRecord(v any) model.Record {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var r model.Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil
	}
	return r
}
