package cli

import (
	"github.com/spf13/cobra"
)

func newPlayerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "player",
		Short: "Player management commands",
	}

	cmd.AddCommand(newPlayerCreateCmd())
	cmd.AddCommand(newPlayerGetCmd())
	cmd.AddCommand(newPlayerFindCmd())
	cmd.AddCommand(newPlayerListCmd())
	cmd.AddCommand(newPlayerLeaderboardCmd())

	return cmd
}

func newPlayerCreateCmd() *cobra.Command {
	var name, email string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a new player",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]string{"name": name}
			if email != "" {
				req["email"] = email
			}
			var result Player

			if err := client.Post(cmd.Context(), "/api/v1/players", req, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Player name (required)")
	cmd.Flags().StringVar(&email, "email", "", "Contact email")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newPlayerGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a player by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Player

			if err := client.Get(cmd.Context(), "/api/v1/players/"+pathEscape(args[0]), &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}

func newPlayerFindCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "find <name>",
		Short: "Show a player by name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Player

			if err := client.Get(cmd.Context(), "/api/v1/players/name/"+pathEscape(args[0]), &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}

func newPlayerListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all players",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result []Player

			if err := client.Get(cmd.Context(), "/api/v1/players", &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}

func newPlayerLeaderboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "leaderboard",
		Short: "Show the player leaderboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result []PlayerStanding

			if err := client.Get(cmd.Context(), "/api/v1/players/leaderboard", &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}
