package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spice-insights/internal/cli"
	"github.com/Veraticus/spice-insights/internal/config"
)

func examplesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "examples",
		Short: "Manage the SQL example index",
	}
	cmd.AddCommand(examplesLoadCmd())
	cmd.AddCommand(examplesSearchCmd())
	return cmd
}

func examplesLoadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load [projects-path]",
		Short: "Rebuild the example collections from project files",
		Long: `Embed the example questions of every project and replace each dialect's
collection with them. Collections not mentioned by any project are left alone.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			path := projectsPath()
			if len(args) == 1 {
				path = config.ExpandPath(args[0])
			}

			projects, err := config.LoadProjects(path)
			if err != nil {
				return err
			}
			dialects := make(map[string]struct{})
			for _, p := range projects {
				for d := range p.Examples {
					dialects[d] = struct{}{}
				}
			}
			if len(dialects) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No examples found.")
				return nil
			}

			comps, err := newComponents(ctx)
			if err != nil {
				return err
			}
			defer comps.Close()

			store, err := comps.exampleStore(ctx)
			if err != nil {
				return err
			}

			bar := cli.NewProgressBar(cmd.ErrOrStderr(), len(dialects), "Embedding examples...")
			counts, err := store.LoadProjects(ctx, projects, func(dialect string, count int) {
				slog.Debug("Refreshed example collection", "dialect", dialect, "examples", count)
				_ = bar.Add(1)
			})
			if err != nil {
				return err
			}

			for dialect, n := range counts {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d examples\n", dialect, n)
			}
			return nil
		},
	}
	return cmd
}

func examplesSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <dialect> <question>",
		Short: "Show the stored examples closest to a question",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			n, _ := cmd.Flags().GetInt("limit")

			comps, err := newComponents(ctx)
			if err != nil {
				return err
			}
			defer comps.Close()

			store, err := comps.exampleStore(ctx)
			if err != nil {
				return err
			}

			found, err := store.Similar(ctx, args[0], strings.Join(args[1:], " "), n)
			if err != nil {
				return err
			}
			if len(found) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No examples found.")
				return nil
			}

			out := cmd.OutOrStdout()
			for i, ex := range found {
				fmt.Fprintf(out, "%s %s\n", cli.HeaderStyle.Render(fmt.Sprintf("%d.", i+1)), ex.Prompt)
				fmt.Fprintf(out, "   %s\n", cli.SQLStyle.Render(ex.SQL))
			}
			return nil
		},
	}
	cmd.Flags().IntP("limit", "n", 3, "number of examples")
	return cmd
}
