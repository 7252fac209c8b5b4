package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/vitro/internal/client"
	"github.com/alfredjeanlab/vitro/internal/filter"
	"github.com/alfredjeanlab/vitro/internal/model"
	"github.com/alfredjeanlab/vitro/internal/view"
)

var recordsCmd = &cobra.Command{
	Use:     "records",
	Short:   "List, search and mutate records",
	GroupID: "records",
}

var recordsListCmd = &cobra.Command{
	Use:   "list <object>",
	Short: "List records of an object",
	Args:  cobra.ExactArgs(1),
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
		req, err := view.Request(obj, v)
		if err != nil {
			return err
		}
		req.Limit, _ = cmd.Flags().GetInt("limit")

		conn, err := s.Records.FindMany(cmd.Context(), obj.NamePlural, req)
		if err != nil {
			return err
		}
		recs := conn.Nodes()
		if jsonOutput {
			printJSON(recs)
			return nil
		}
		printRecordTable(os.Stdout, obj, columnsFor(obj, v), recs)
		fmt.Printf("\n%d %s (%d total)\n", len(recs), obj.NamePlural, conn.TotalCount)
		return nil
	},
}

// columnsFor returns the view's columns, or every displayable column when
// the view names none.
func columnsFor(obj *model.ObjectMetadata, v model.View) []model.ColumnDefinition {
	defs := view.ColumnDefinitions(obj)
	if len(v.Fields) > 0 {
		return view.MapFieldsToColumns(v.Fields, defs)
	}
	return view.AvailableColumns(defs)
}

var recordsSearchCmd = &cobra.Command{
	Use:   "search <object> <term>",
	Short: "Search records the way the entity picker does",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context(), false)
		if err != nil {
			return err
		}
		obj, err := s.Metadata.Lookup(args[0])
		if err != nil {
			return err
		}
		fields, _ := cmd.Flags().GetStringSlice("in")
		exclude, _ := cmd.Flags().GetStringSlice("exclude")
		limit, _ := cmd.Flags().GetInt("limit")
		orderBy, _ := cmd.Flags().GetString("order-by")

		vars := filter.BuildSearchVariables(filter.SearchRequest{
			OrderByField: orderBy,
			Filters:      []filter.SearchFilter{{FieldNames: fields, Term: args[1]}},
			ExcludeIDs:   exclude,
			Limit:        limit,
		}).ToSelect

		req := &client.FindManyRequest{}
		req.Filter, _ = vars["filter"].(map[string]any)
		req.OrderBy, _ = vars["orderBy"].(map[string]any)
		req.Limit, _ = vars["limit"].(int)

		conn, err := s.Records.FindMany(cmd.Context(), obj.NamePlural, req)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(conn.Nodes())
			return nil
		}
		printRecordTable(os.Stdout, obj, view.AvailableColumns(view.ColumnDefinitions(obj)), conn.Nodes())
		return nil
	},
}

var recordsCreateCmd = &cobra.Command{
	Use:   "create <object> -f key=value...",
	Short: "Create a record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pairs, _ := cmd.Flags().GetStringArray("field")
		input, err := parseFields(pairs)
		if err != nil {
			return err
		}
		s, err := openSession(cmd.Context(), false)
		if err != nil {
			return err
		}
		obj, err := s.Metadata.Lookup(args[0])
		if err != nil {
			return err
		}
		rec, err := s.Records.CreateOne(cmd.Context(), obj.NameSingular, input)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(rec)
			return nil
		}
		printRecord(os.Stdout, obj, rec)
		return nil
	},
}

var recordsUpdateCmd = &cobra.Command{
	Use:   "update <object> <id> -f key=value...",
	Short: "Update fields of a record",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		pairs, _ := cmd.Flags().GetStringArray("field")
		if len(pairs) == 0 {
			return fmt.Errorf("nothing to update: pass at least one -f key=value")
		}
		patch, err := parseFields(pairs)
		if err != nil {
			return err
		}
		s, err := openSession(cmd.Context(), false)
		if err != nil {
			return err
		}
		obj, err := s.Metadata.Lookup(args[0])
		if err != nil {
			return err
		}
		rec, err := s.Records.UpdateOne(cmd.Context(), obj.NameSingular, args[1], patch)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(rec)
			return nil
		}
		printRecord(os.Stdout, obj, rec)
		return nil
	},
}

var recordsDeleteCmd = &cobra.Command{
	Use:   "delete <object> <id>",
	Short: "Delete a record",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context(), false)
		if err != nil {
			return err
		}
		obj, err := s.Metadata.Lookup(args[0])
		if err != nil {
			return err
		}
		if err := s.Records.DeleteOne(cmd.Context(), obj.NameSingular, args[1]); err != nil {
			return err
		}
		fmt.Printf("deleted %s %s\n", obj.NameSingular, args[1])
		return nil
	},
}

func init() {
	addViewFlags(recordsListCmd)
	recordsListCmd.Flags().Int("limit", 0, "maximum number of records (0 = server default)")

	recordsSearchCmd.Flags().StringSlice("in", []string{"name"}, "fields to match; name.firstName addresses a sub-field")
	recordsSearchCmd.Flags().StringSlice("exclude", nil, "record ids to leave out")
	recordsSearchCmd.Flags().Int("limit", filter.DefaultSearchLimit, "maximum number of results")
	recordsSearchCmd.Flags().String("order-by", "name", "field to order results by")

	recordsCreateCmd.Flags().StringArrayP("field", "f", nil, "field value (key=value, repeatable)")
	recordsUpdateCmd.Flags().StringArrayP("field", "f", nil, "field value (key=value, repeatable)")

	recordsCmd.AddCommand(recordsListCmd)
	recordsCmd.AddCommand(recordsSearchCmd)
	recordsCmd.AddCommand(recordsCreateCmd)
	recordsCmd.AddCommand(recordsUpdateCmd)
	recordsCmd.AddCommand(recordsDeleteCmd)
}
