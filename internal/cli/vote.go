package cli

import (
	"github.com/spf13/cobra"
)

func newVoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vote",
		Short: "Vote on shrubs",
	}

	cmd.AddCommand(newVoteCastCmd())
	cmd.AddCommand(newVoteRemoveCmd())

	return cmd
}

func newVoteCastCmd() *cobra.Command {
	var shrubID, voterID string
	var points int

	cmd := &cobra.Command{
		Use:   "cast",
		Short: "Cast a vote for a shrub",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]any{
				"shrub_id": shrubID,
				"voter_id": voterID,
				"points":   points,
			}
			var result Vote

			if err := client.Post(cmd.Context(), "/api/v1/shrubs/vote", req, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&shrubID, "shrub", "", "Shrub id (required)")
	cmd.Flags().StringVar(&voterID, "voter", "", "Voting player id (required)")
	cmd.Flags().IntVar(&points, "points", 0, "Points to award (0 uses the default)")
	_ = cmd.MarkFlagRequired("shrub")
	_ = cmd.MarkFlagRequired("voter")

	return cmd
}

func newVoteRemoveCmd() *cobra.Command {
	var shrubID, voterID string

	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Retract a vote",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]string{
				"shrub_id": shrubID,
				"voter_id": voterID,
			}

			if err := client.Delete(cmd.Context(), "/api/v1/shrubs/vote", req); err != nil {
				return err
			}

			output(cmd).PrintMessage("Vote removed")
			return nil
		},
	}

	cmd.Flags().StringVar(&shrubID, "shrub", "", "Shrub id (required)")
	cmd.Flags().StringVar(&voterID, "voter", "", "Voting player id (required)")
	_ = cmd.MarkFlagRequired("shrub")
	_ = cmd.MarkFlagRequired("voter")

	return cmd
}
