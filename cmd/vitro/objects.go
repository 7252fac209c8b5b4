package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var objectsCmd = &cobra.Command{
	Use:     "objects",
	Short:   "List the workspace's objects",
	GroupID: "records",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context(), false)
		if err != nil {
			return err
		}
		objects := s.Metadata.Objects()
		if jsonOutput {
			printJSON(objects)
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SINGULAR\tPLURAL\tLABEL\tFIELDS\tCUSTOM")
		for _, o := range objects {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%v\n", o.NameSingular, o.NamePlural, o.LabelPlural, len(o.ActiveFields()), o.IsCustom)
		}
		return w.Flush()
	},
}
