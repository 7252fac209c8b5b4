package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/vitro/internal/config"
	"github.com/alfredjeanlab/vitro/internal/session"
	"github.com/alfredjeanlab/vitro/internal/ui"
)

var (
	serverURL  string
	token      string
	jsonOutput bool
	actor      string
	verbose    bool

	cfg    *config.Config
	logger *slog.Logger
	sess   *session.Session
)

func defaultActor() string {
	if s := os.Getenv("VITRO_ACTOR"); s != "" {
		return s
	}
	out, err := exec.Command("git", "config", "user.name").Output()
	if err == nil {
		name := strings.TrimSpace(string(out))
		if name != "" {
			return name
		}
	}
	return "unknown"
}

// loadConfig reads the environment, then the active remote profile, then the
// command-line overrides.
func loadConfig() (*config.Config, error) {
	c, err := config.Load()
	if err != nil {
		return nil, err
	}
	if path, err := config.RemotesPath(); err == nil {
		if remotes, err := config.LoadRemotes(path); err == nil {
			if r, ok := remotes.ActiveRemote(); ok {
				c.ApplyRemote(r)
			}
		}
	}
	if serverURL != "" {
		c.APIURL = serverURL
	}
	if token != "" {
		c.Token = token
	}
	return c, nil
}

// openSession opens the workspace session on first use. Only long-running
// commands start the snapshot scheduler.
func openSession(ctx context.Context, longRunning bool) (*session.Session, error) {
	if sess != nil {
		return sess, nil
	}
	opts := []session.Option{session.WithLogger(logger), session.WithActor(actor)}
	if !longRunning {
		opts = append(opts, session.WithoutScheduler())
	}
	s, err := session.Open(ctx, cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", cfg.APIURL, err)
	}
	sess = s
	return s, nil
}

var rootCmd = &cobra.Command{
	Use:           "vitro <command>",
	Short:         "CLI client for a CRM workspace",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)

		if !ui.ShouldUseColor() {
			ui.ForceNoColor()
		}

		c, err := loadConfig()
		if err != nil {
			return err
		}
		cfg = c
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if sess != nil {
			if err := sess.Close(); err != nil {
				logger.Warn("closing session", "err", err)
			}
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "API base URL (overrides VITRO_API_URL and the active remote)")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "bearer token (overrides VITRO_TOKEN)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().StringVar(&actor, "actor", defaultActor(), "actor name stamped on record events")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging on stderr")

	rootCmd.AddGroup(
		&cobra.Group{ID: "records", Title: "Records:"},
		&cobra.Group{ID: "views", Title: "Views:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false
	rootCmd.SetHelpFunc(helpFunc)

	// Records
	rootCmd.AddCommand(objectsCmd)
	rootCmd.AddCommand(recordsCmd)
	rootCmd.AddCommand(favoritesCmd)

	// Views
	rootCmd.AddCommand(tableCmd)
	rootCmd.AddCommand(boardCmd)
	rootCmd.AddCommand(watchCmd)

	// System
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(remoteCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
