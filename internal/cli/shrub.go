package cli

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

func newShrubCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shrub",
		Short: "Shrub commands",
	}

	cmd.AddCommand(newShrubCreateCmd())
	cmd.AddCommand(newShrubGetCmd())
	cmd.AddCommand(newShrubListCmd())
	cmd.AddCommand(newShrubLeaderboardCmd())

	return cmd
}

func newShrubCreateCmd() *cobra.Command {
	var shrubber, createdBy, original, transformed, description string
	var points int

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a shrub",
		Long: `Create a shrub owned by --shrubber. The creator (--created-by, defaulting
to the shrubber) casts the first vote on it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]any{
				"shrubber_id":      shrubber,
				"created_by_id":    createdBy,
				"original_word":    original,
				"transformed_word": transformed,
				"description":      description,
				"points":           points,
			}
			var result Shrub

			if err := client.Post(cmd.Context(), "/api/v1/shrubs", req, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&shrubber, "shrubber", "", "Owning player id (required)")
	cmd.Flags().StringVar(&createdBy, "created-by", "", "Creating player id (defaults to the shrubber)")
	cmd.Flags().StringVar(&original, "original", "", "Original word (required)")
	cmd.Flags().StringVar(&transformed, "transformed", "", "Transformed word (required)")
	cmd.Flags().StringVar(&description, "description", "", "Description")
	cmd.Flags().IntVar(&points, "points", 0, "Points for the creator's vote (0 uses the default)")
	_ = cmd.MarkFlagRequired("shrubber")
	_ = cmd.MarkFlagRequired("original")
	_ = cmd.MarkFlagRequired("transformed")

	return cmd
}

func newShrubGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a shrub with its votes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Shrub

			if err := client.Get(cmd.Context(), "/api/v1/shrubs/"+pathEscape(args[0]), &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}

func newShrubListCmd() *cobra.Command {
	var player string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List shrubs, most voted first",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/shrubs"
			if player != "" {
				path = "/api/v1/shrubs/player/" + pathEscape(player)
			}
			var result []Shrub

			if err := client.Get(cmd.Context(), path, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&player, "player", "", "Only shrubs owned by this player id")

	return cmd
}

func newShrubLeaderboardCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Show the shrub leaderboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/shrubs/leaderboard"
			if limit != 0 {
				if limit < 0 {
					return fmt.Errorf("--limit must be positive")
				}
				path += "?" + url.Values{"limit": {fmt.Sprint(limit)}}.Encode()
			}
			var result []ShrubStanding

			if err := client.Get(cmd.Context(), path, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum rows (server default when unset)")

	return cmd
}
