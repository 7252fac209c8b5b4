package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/alfredjeanlab/vitro/internal/model"
	"github.com/alfredjeanlab/vitro/internal/ui"
)

const maxCellWidth = 40

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

// formatValue renders a record field for a table cell. Composite values are
// flattened to their most readable part.
func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case map[string]any:
		switch {
		case x["firstName"] != nil || x["lastName"] != nil:
			return fmt.Sprintf("%s %s", formatValue(x["firstName"]), formatValue(x["lastName"]))
		case x["amountMicros"] != nil:
			amount, _ := x["amountMicros"].(float64)
			return fmt.Sprintf("%s %s", strconv.FormatFloat(amount/1e6, 'f', 2, 64), formatValue(x["currencyCode"]))
		case x["url"] != nil:
			return formatValue(x["url"])
		case x["name"] != nil:
			return formatValue(x["name"])
		}
	}
	data, _ := json.Marshal(v)
	return string(data)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// printRecordTable prints recs with one column per column definition.
func printRecordTable(w io.Writer, obj *model.ObjectMetadata, cols []model.ColumnDefinition, recs []model.Record) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	names := make([]string, 0, len(cols))
	for _, c := range cols {
		if !c.IsVisible {
			continue
		}
		f, ok := obj.FieldByID(c.FieldMetadataID)
		if !ok {
			continue
		}
		names = append(names, f.Name)
		fmt.Fprintf(tw, "%s\t", ui.RenderAccent(f.Name))
	}
	fmt.Fprintln(tw)
	for _, r := range recs {
		for _, name := range names {
			fmt.Fprintf(tw, "%s\t", truncate(formatValue(r[name]), maxCellWidth))
		}
		fmt.Fprintln(tw)
	}
	tw.Flush()
}

func printRecord(w io.Writer, obj *model.ObjectMetadata, rec model.Record) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, f := range obj.ActiveFields() {
		v, ok := rec[f.Name]
		if !ok {
			continue
		}
		fmt.Fprintf(tw, "%s:\t%s\n", f.Name, formatValue(v))
	}
	tw.Flush()
}

func printFavorites(w io.Writer, favs []model.Favorite) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tPOSITION\tTARGET\tLABEL\tLINK")
	for i, f := range favs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			i,
			strconv.FormatFloat(f.Position, 'f', -1, 64),
			f.TargetObject,
			f.LabelIdentifier,
			ui.RenderMuted(f.Link),
		)
	}
	tw.Flush()
}
