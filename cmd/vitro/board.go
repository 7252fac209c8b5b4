package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/vitro/internal/board"
	"github.com/alfredjeanlab/vitro/internal/model"
	"github.com/alfredjeanlab/vitro/internal/reactive"
	"github.com/alfredjeanlab/vitro/internal/ui"
	"github.com/alfredjeanlab/vitro/internal/view"
)

// boardColumn is the JSON shape of one rendered column.
type boardColumn struct {
	model.BoardColumn
	Cards []model.CompanyProgress `json:"cards"`
}

var boardCmd = &cobra.Command{
	Use:     "board",
	Short:   "Render the opportunity pipeline board",
	GroupID: "views",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context(), false)
		if err != nil {
			return err
		}
		obj, err := s.Metadata.Lookup("opportunities")
		if err != nil {
			return err
		}
		v, err := viewFromFlags(cmd, obj)
		if err != nil {
			return err
		}
		v.Type = model.ViewKanban

		bar := view.NewBar(s.Store, "board:opportunities")
		bar.Apply(v)
		if _, err := board.NewLoader(s.Records, s.Store, bar, logger).Load(cmd.Context(), v); err != nil {
			return err
		}

		cols := collectBoard(s.Store)
		if jsonOutput {
			printJSON(cols)
			return nil
		}
		printBoard(os.Stdout, cols)
		fmt.Printf("\n%d opportunities in view\n", bar.EntityCount())
		return nil
	},
}

// collectBoard reads the synced board state into columns with their cards.
// Cards whose company is unknown are listed with an empty company.
func collectBoard(s *reactive.Store) []boardColumn {
	var out []boardColumn
	for _, c := range reactive.Get(s, board.Columns) {
		col := boardColumn{BoardColumn: c, Cards: []model.CompanyProgress{}}
		for _, id := range reactive.Get(s, board.CardIDsByColumn.Of(c.ID)) {
			p := reactive.Get(s, board.CompanyProgresses.Of(id))
			if p.Opportunity.ID == "" {
				p.Opportunity.ID = id
			}
			col.Cards = append(col.Cards, p)
		}
		out = append(out, col)
	}
	return out
}

func printBoard(w io.Writer, cols []boardColumn) {
	for i, c := range cols {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s %s\n", ui.Render(ui.ThemeColor(c.ColorCode), c.Title), ui.RenderMuted(fmt.Sprintf("(%d)", len(c.Cards))))
		for _, card := range c.Cards {
			company := card.Company.Name
			if company == "" {
				company = ui.RenderMuted("no company")
			}
			amount := ""
			if a := card.Opportunity.Amount; a != nil {
				amount = formatValue(map[string]any{"amountMicros": a.AmountMicros, "currencyCode": a.CurrencyCode})
			}
			fmt.Fprintf(w, "  - %s %s %s\n", company, amount, ui.RenderMuted(card.Opportunity.ID))
		}
	}
}

func init() {
	addViewFlags(boardCmd)
}
