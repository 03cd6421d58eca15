package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newRankCmd() *cobra.Command {
	var quiz string

	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Recalculate the rankings of a quiz whose deadline has passed",
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			id, err := uuid.Parse(quiz)
			if err != nil {
				return fmt.Errorf("invalid --quiz: %w", err)
			}
			res, err := a.rankings.RecalculateByID(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Ranked %d attempts (%d finalized) at %s\n",
				res.Ranked, res.Finalized, res.RankingsCalculatedAt.Format("2006-01-02 15:04:05"))
			return nil
		}),
	}

	cmd.Flags().StringVar(&quiz, "quiz", "", "quiz ID")
	_ = cmd.MarkFlagRequired("quiz")
	return cmd
}
