package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spice-insights/internal/cli"
	"github.com/Veraticus/spice-insights/internal/model"
)

func explainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "explain <description>",
		Short: "Show how a transaction description would be classified",
		Long: `Score one description against every configured category and print the
combined scores, highest first.

Examples:
  spice explain "NETFLIX.COM 866-579-7172"
  spice explain --top 3 "TFL TRAVEL CHARGE"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			top, _ := cmd.Flags().GetInt("top")
			description := strings.Join(args, " ")

			comps, err := newComponents(ctx)
			if err != nil {
				return err
			}
			defer comps.Close()

			clf, err := comps.expenseClassifier(ctx)
			if err != nil {
				return fmt.Errorf("failed to create classifier: %w", err)
			}

			scores, err := clf.ConfidenceScores(ctx, description)
			if err != nil {
				return err
			}
			rankings := model.Decision{Transaction: description, Scores: scores}.Rankings()
			if top > 0 {
				rankings = rankings.TopN(top)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s\n", cli.HeaderStyle.Render("Description:"), description)
			for i, r := range rankings {
				line := fmt.Sprintf("%6.2f%%  %s", r.Score*100, r.Category)
				if i == 0 {
					line = cli.AnswerStyle.Bold(true).Render(line)
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
	cmd.Flags().Int("top", 0, "only show the N best categories")
	return cmd
}
