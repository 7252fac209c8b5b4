package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/vitro/internal/persist"
	"github.com/alfredjeanlab/vitro/internal/persist/postgres"
)

var snapshotCmd = &cobra.Command{
	Use:     "snapshot",
	Short:   "Export, restore and list query cache snapshots",
	GroupID: "system",
}

var snapshotExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Fetch objects into the cache and export it as JSONL",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		objects, _ := cmd.Flags().GetStringSlice("object")
		output, _ := cmd.Flags().GetString("output")
		save, _ := cmd.Flags().GetBool("save")

		ctx := cmd.Context()
		s, err := openSession(ctx, false)
		if err != nil {
			return err
		}
		for _, name := range objects {
			obj, err := s.Metadata.Lookup(name)
			if err != nil {
				return err
			}
			if _, err := s.Records.FindMany(ctx, obj.NamePlural, nil); err != nil {
				return fmt.Errorf("fetching %s: %w", obj.NamePlural, err)
			}
		}

		var buf bytes.Buffer
		h, err := persist.ExportJSONL(s.Cache, &buf)
		if err != nil {
			return err
		}

		if save {
			dests := s.Destinations(ctx)
			if len(dests) == 0 {
				return fmt.Errorf("no snapshot destination configured (set VITRO_DATABASE_URL or VITRO_SNAPSHOT_S3_BUCKET)")
			}
			for _, d := range dests {
				if err := d.Write(ctx, buf.Bytes()); err != nil {
					return fmt.Errorf("saving snapshot: %w", err)
				}
			}
			fmt.Fprintf(os.Stderr, "saved snapshot with %d entries to %d destination(s)\n", h.EntryCount, len(dests))
		}

		switch output {
		case "-":
			_, err = os.Stdout.Write(buf.Bytes())
			return err
		case "":
			if save {
				return nil
			}
			_, err = os.Stdout.Write(buf.Bytes())
			return err
		default:
			if err := persist.NewFileDestination(output).Write(ctx, buf.Bytes()); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "wrote %d entries to %s\n", h.EntryCount, output)
			return nil
		}
	},
}

var snapshotRestoreCmd = &cobra.Command{
	Use:   "restore <file|->",
	Short: "Validate a JSONL snapshot and store it as the workspace's latest",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		var data []byte
		var err error
		if args[0] == "-" {
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = persist.NewFileDestination(args[0]).Read(ctx)
		}
		if err != nil {
			return fmt.Errorf("reading snapshot: %w", err)
		}

		h, entries, err := persist.ImportJSONL(bytes.NewReader(data))
		if err != nil {
			return err
		}
		if cfg.DatabaseURL == "" {
			fmt.Printf("snapshot is valid: %d entries from %s (set VITRO_DATABASE_URL to store it)\n", len(entries), h.Timestamp.Format("2006-01-02 15:04:05"))
			return nil
		}

		store, err := openSnapshotStore()
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.Write(ctx, data); err != nil {
			return err
		}
		fmt.Printf("restored %d entries from %s into workspace %q\n", len(entries), h.Timestamp.Format("2006-01-02 15:04:05"), cfg.Workspace)
		return nil
	},
}

// openSnapshotStore connects to the snapshot database without opening a
// session, so snapshots can be managed while the API is unreachable.
func openSnapshotStore() (*postgres.Store, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("no snapshot store configured (set VITRO_DATABASE_URL)")
	}
	return postgres.New(cfg.DatabaseURL, cfg.Workspace)
}

var snapshotListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored snapshots, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		store, err := openSnapshotStore()
		if err != nil {
			return err
		}
		defer store.Close()
		snaps, err := store.ListSnapshots(cmd.Context(), limit)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(snaps)
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tENTRIES\tCREATED")
		for _, snap := range snaps {
			fmt.Fprintf(w, "%s\t%d\t%s\n", snap.ID, snap.EntryCount, snap.CreatedAt.Local().Format("2006-01-02 15:04:05"))
		}
		return w.Flush()
	},
}

func init() {
	snapshotExportCmd.Flags().StringSlice("object", nil, "objects to fetch before exporting (repeatable)")
	snapshotExportCmd.Flags().StringP("output", "o", "", "write to this file instead of stdout (- for stdout)")
	snapshotExportCmd.Flags().Bool("save", false, "also write to the configured snapshot destinations")
	snapshotListCmd.Flags().Int("limit", 10, "maximum number of snapshots")

	snapshotCmd.AddCommand(snapshotExportCmd)
	snapshotCmd.AddCommand(snapshotRestoreCmd)
	snapshotCmd.AddCommand(snapshotListCmd)
}
