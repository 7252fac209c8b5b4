package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/vitro/internal/reactive"
	"github.com/alfredjeanlab/vitro/internal/table"
	"github.com/alfredjeanlab/vitro/internal/view"
)

var tableCmd = &cobra.Command{
	Use:     "table <object>",
	Short:   "Render an object's record table through a view",
	GroupID: "views",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context(), false)
		if err != nil {
			return err
		}
		obj, err := s.Metadata.Lookup(args[0])
		if err != nil {
			return err
		}
		v, err := viewFromFlags(cmd, obj)
		if err != nil {
			return err
		}

		bar := view.NewBar(s.Store, "table:"+obj.NamePlural)
		bar.Apply(v)
		rows, err := table.NewLoader(s.Records, s.Store, bar, logger).Load(cmd.Context(), obj.NamePlural, v)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(rows)
			return nil
		}

		cols := reactive.Get(s.Store, table.Columns)
		if len(cols) == 0 {
			cols = reactive.Get(s.Store, view.AvailableFieldDefinitions.Of(bar.ID()))
		}
		printRecordTable(os.Stdout, obj, cols, rows)
		fmt.Printf("\n%d %s in view\n", bar.EntityCount(), obj.NamePlural)
		return nil
	},
}

func init() {
	addViewFlags(tableCmd)
}
