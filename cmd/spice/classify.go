package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spice-insights/internal/cli"
	"github.com/Veraticus/spice-insights/internal/engine"
	"github.com/Veraticus/spice-insights/internal/model"
)

func classifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify <file-id>",
		Short: "Classify the uncategorized expenses of an uploaded file",
		Long: `Classify every uncategorized expense of one uploaded file.

Each distinct description is classified once, and categories are written back
in chunks so an interrupted run keeps its progress. The file id is the upload
id printed by 'spice upload' and listed by 'spice jobs'.

Examples:
  spice classify --user ana@example.com 12`,
		Args: cobra.ExactArgs(1),
		RunE: runClassify,
	}

	cmd.Flags().Bool("quiet", false, "hide the progress bar")

	return cmd
}

func runClassify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	quiet, _ := cmd.Flags().GetBool("quiet")

	fileID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || fileID <= 0 {
		return fmt.Errorf("invalid file id %q", args[0])
	}
	user, err := currentUser()
	if err != nil {
		return err
	}

	comps, err := newComponents(ctx)
	if err != nil {
		return err
	}
	defer comps.Close()

	runner, err := comps.jobRunner(ctx)
	if err != nil {
		return err
	}

	job, err := classifyFile(cmd, runner, user, fileID, quiet)
	if err != nil {
		return err
	}
	printJob(cmd, job)
	return nil
}

// classifyFile runs one job in the foreground.
func classifyFile(cmd *cobra.Command, runner *engine.JobRunner, user string, fileID int64, quiet bool) (*model.ClassificationJob, error) {
	ctx := cmd.Context()
	job, err := runner.NewJob(ctx, user, fileID)
	if err != nil {
		return nil, err
	}

	var progress engine.ProgressFunc
	if !quiet {
		progress = cli.NewProgress(cmd.ErrOrStderr(), "Classifying expenses...").Update
	}
	if err := runner.RunWithProgress(ctx, job, progress); err != nil {
		return job, fmt.Errorf("classification job %s failed: %w", job.ID, err)
	}
	return job, nil
}

func printJob(cmd *cobra.Command, job *model.ClassificationJob) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s\n", cli.HeaderStyle.Render("Job"), job.ID)
	fmt.Fprintf(out, "  status:     %s\n", cli.StatusStyle(job.Status).Render(string(job.Status)))
	fmt.Fprintf(out, "  file:       %d\n", job.FileID)
	fmt.Fprintf(out, "  processed:  %d\n", job.Processed)
	fmt.Fprintf(out, "  classified: %d\n", job.Classified)
	fmt.Fprintf(out, "  failed:     %d\n", job.Failed)
	if job.Error != "" {
		fmt.Fprintf(out, "  error:      %s\n", cli.ErrorStyle.Render(job.Error))
	}
}
