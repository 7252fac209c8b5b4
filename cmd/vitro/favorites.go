package main

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/vitro/internal/client"
	"github.com/alfredjeanlab/vitro/internal/favorites"
	"github.com/alfredjeanlab/vitro/internal/model"
	"github.com/alfredjeanlab/vitro/internal/session"
)

var favoritesCmd = &cobra.Command{
	Use:     "favorites",
	Short:   "Manage the workspace member's favorites",
	GroupID: "records",
}

// loadFavorites opens the session and loads the current favorites.
func loadFavorites(ctx context.Context) (*session.Session, []model.Favorite, error) {
	s, err := openSession(ctx, false)
	if err != nil {
		return nil, nil, err
	}
	favs, err := s.Favorites.Load(ctx)
	if err != nil {
		return nil, nil, err
	}
	return s, favs, nil
}

func showFavorites(favs []model.Favorite) {
	if jsonOutput {
		printJSON(favs)
		return
	}
	if len(favs) == 0 {
		fmt.Println("no favorites")
		return
	}
	printFavorites(os.Stdout, favs)
}

var favoritesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List favorites in order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, favs, err := loadFavorites(cmd.Context())
		if err != nil {
			return err
		}
		showFavorites(favs)
		return nil
	},
}

var favoritesAddCmd = &cobra.Command{
	Use:   "add <object> <id>",
	Short: "Add a person or company to the end of the favorites",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.WorkspaceMemberID == "" {
			return fmt.Errorf("no workspace member: set VITRO_WORKSPACE_MEMBER_ID or the remote's workspace_member_id")
		}
		ctx := cmd.Context()
		s, _, err := loadFavorites(ctx)
		if err != nil {
			return err
		}
		obj, err := s.Metadata.Lookup(args[0])
		if err != nil {
			return err
		}
		if !slices.Contains(favorites.Targets, obj.NameSingular) {
			return fmt.Errorf("%s records cannot be favorites (want one of %v)", obj.NameSingular, favorites.Targets)
		}
		// Cache the target so the new favorite gets its label and avatar.
		if _, err := s.Records.FindMany(ctx, obj.NamePlural, &client.FindManyRequest{
			Filter: map[string]any{"id": map[string]any{"eq": args[1]}},
		}); err != nil {
			return err
		}
		if _, err := s.Favorites.Create(ctx, obj.NamePlural, args[1]); err != nil {
			return err
		}
		showFavorites(s.Favorites.List())
		return nil
	},
}

var favoritesRemoveCmd = &cobra.Command{
	Use:   "remove <record-id>",
	Short: "Remove the favorite pointing at a record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, _, err := loadFavorites(cmd.Context())
		if err != nil {
			return err
		}
		if err := s.Favorites.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		showFavorites(s.Favorites.List())
		return nil
	},
}

var favoritesMoveCmd = &cobra.Command{
	Use:   "move <from-index> <to-index>",
	Short: "Move a favorite to another place in the list",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid from-index %q: %w", args[0], err)
		}
		to, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid to-index %q: %w", args[1], err)
		}
		s, _, err := loadFavorites(cmd.Context())
		if err != nil {
			return err
		}
		if err := s.Favorites.Reorder(cmd.Context(), from, to); err != nil {
			return err
		}
		showFavorites(s.Favorites.List())
		return nil
	},
}

func init() {
	favoritesCmd.AddCommand(favoritesListCmd)
	favoritesCmd.AddCommand(favoritesAddCmd)
	favoritesCmd.AddCommand(favoritesRemoveCmd)
	favoritesCmd.AddCommand(favoritesMoveCmd)
}
