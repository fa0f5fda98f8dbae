package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spice-insights/internal/cli"
)

func jobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List classification jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			limit, _ := cmd.Flags().GetInt("limit")

			user, err := currentUser()
			if err != nil {
				return err
			}
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			jobs, err := store.ListJobs(ctx, user, limit)
			if err != nil {
				return err
			}
			if len(jobs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No jobs found.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			defer w.Flush()

			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				cli.HeaderStyle.Render("ID"),
				cli.HeaderStyle.Render("File"),
				cli.HeaderStyle.Render("Status"),
				cli.HeaderStyle.Render("Classified"),
				cli.HeaderStyle.Render("Created"))
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				strings.Repeat("-", 36),
				strings.Repeat("-", 6),
				strings.Repeat("-", 8),
				strings.Repeat("-", 10),
				strings.Repeat("-", 19))
			for _, job := range jobs {
				fmt.Fprintf(w, "%s\t%d\t%s\t%d\t%s\n",
					job.ID,
					job.FileID,
					cli.StatusStyle(job.Status).Render(string(job.Status)),
					job.Classified,
					job.CreatedAt.Local().Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 20, "maximum number of jobs to show")

	cmd.AddCommand(&cobra.Command{
		Use:   "show <job-id>",
		Short: "Show one job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := initStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			job, err := store.GetJob(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printJob(cmd, job)
			return nil
		},
	})

	return cmd
}
