package main

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/vitro/internal/config"
)

func loadRemotesConfig() (config.RemotesConfig, error) {
	path, err := config.RemotesPath()
	if err != nil {
		return config.RemotesConfig{}, err
	}
	return config.LoadRemotes(path)
}

// editRemotes loads the profile file, applies fn and saves the result. The
// file is left untouched when fn fails.
func editRemotes(fn func(*config.RemotesConfig) error) error {
	path, err := config.RemotesPath()
	if err != nil {
		return err
	}
	cfg, err := config.LoadRemotes(path)
	if err != nil {
		return err
	}
	if err := fn(&cfg); err != nil {
		return err
	}
	return config.SaveRemotes(path, cfg)
}

// lookupRemote returns the named remote, or the active one for "".
func lookupRemote(cfg config.RemotesConfig, name string) (string, config.Remote, error) {
	if name == "" {
		name = cfg.Active
	}
	if name == "" {
		return "", config.Remote{}, fmt.Errorf("no active remote; specify a name or run 'vitro remote use <name>'")
	}
	r, ok := cfg.Remotes[name]
	if !ok {
		return "", config.Remote{}, fmt.Errorf("remote %q not found", name)
	}
	return name, r, nil
}

// validateAPIURL accepts absolute http and https URLs.
func validateAPIURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid API URL %q: %w", raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid API URL %q: want http(s)://host", raw)
	}
	return nil
}

func maskToken(tok string, keep int, fill func(n int) string) string {
	if len(tok) <= keep {
		return tok
	}
	return tok[:keep] + fill(len(tok)-keep)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// writeProfile prints one remote as key/value rows.
func writeProfile(out io.Writer, name string, r config.Remote, active bool) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if active {
		name += " (active)"
	}
	fmt.Fprintf(w, "name:\t%s\n", name)
	fmt.Fprintf(w, "api:\t%s\n", r.URL)
	fmt.Fprintf(w, "workspace:\t%s\n", orDash(r.Workspace))
	fmt.Fprintf(w, "member:\t%s\n", orDash(r.WorkspaceMemberID))
	if r.Token != "" {
		fmt.Fprintf(w, "token:\t%s\n", maskToken(r.Token, 8, func(n int) string { return strings.Repeat("*", n) }))
	}
	if r.NATSURL != "" {
		fmt.Fprintf(w, "events:\t%s\n", r.NATSURL)
	}
	return w.Flush()
}

var remoteCmd = &cobra.Command{
	Use:   "remote",
	Short: "Manage workspace profiles (API URL, workspace, member)",
	Long: `A remote names an API endpoint together with the workspace and workspace
member vitro acts as. The active remote fills in whatever VITRO_* variables
and flags leave unset.`,
	GroupID: "system",
}

var remoteAddCmd = &cobra.Command{
	Use:   "add <name> <api-url>",
	Short: "Add a remote, or update the given fields of an existing one",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, apiURL := args[0], args[1]
		if err := validateAPIURL(apiURL); err != nil {
			return err
		}
		set := func(dst *string, flag string) {
			if v, _ := cmd.Flags().GetString(flag); v != "" {
				*dst = v
			}
		}

		var verb string
		err := editRemotes(func(cfg *config.RemotesConfig) error {
			r, exists := cfg.Remotes[name]
			verb = "added"
			if exists {
				verb = "updated"
			}
			r.URL = apiURL
			set(&r.Token, "token")
			set(&r.Workspace, "workspace")
			set(&r.WorkspaceMemberID, "member")
			set(&r.NATSURL, "nats")
			cfg.Remotes[name] = r
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "remote %q %s (%s)\n", name, verb, apiURL)
		return nil
	},
}

var remoteRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a remote",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		err := editRemotes(func(cfg *config.RemotesConfig) error {
			name, _, err := lookupRemote(*cfg, args[0])
			if err != nil {
				return err
			}
			delete(cfg.Remotes, name)
			if cfg.Active == name {
				cfg.Active = ""
			}
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "remote %q removed\n", args[0])
		return nil
	},
}

var remoteUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Make a remote the active one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := editRemotes(func(cfg *config.RemotesConfig) error { return cfg.Use(args[0]) }); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "active remote set to %q\n", args[0])
		return nil
	},
}

var remoteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List remotes; the active one is starred",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadRemotesConfig()
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(cfg)
			return nil
		}
		if len(cfg.Remotes) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no remotes configured")
			return nil
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  NAME\tAPI\tWORKSPACE\tMEMBER\tTOKEN")
		for _, name := range cfg.Names() {
			r := cfg.Remotes[name]
			marker := "  "
			if name == cfg.Active {
				marker = "* "
			}
			tok := maskToken(r.Token, 8, func(int) string { return "..." })
			fmt.Fprintf(w, "%s%s\t%s\t%s\t%s\t%s\n", marker, name, r.URL, orDash(r.Workspace), orDash(r.WorkspaceMemberID), orDash(tok))
		}
		return w.Flush()
	},
}

var remoteShowCmd = &cobra.Command{
	Use:   "show [<name>]",
	Short: "Show a remote (defaults to the active one)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadRemotesConfig()
		if err != nil {
			return err
		}
		var want string
		if len(args) == 1 {
			want = args[0]
		}
		name, r, err := lookupRemote(cfg, want)
		if err != nil {
			return err
		}
		return writeProfile(cmd.OutOrStdout(), name, r, name == cfg.Active)
	},
}

func init() {
	remoteAddCmd.Flags().String("token", "", "bearer token for the API")
	remoteAddCmd.Flags().String("workspace", "", "workspace snapshots are stored under")
	remoteAddCmd.Flags().String("member", "", "workspace member id favorites are created for")
	remoteAddCmd.Flags().String("nats", "", "NATS URL for record events")

	remoteCmd.AddCommand(remoteAddCmd, remoteRemoveCmd, remoteUseCmd, remoteListCmd, remoteShowCmd)
}
