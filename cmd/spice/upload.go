package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spice-insights/internal/cli"
	"github.com/Veraticus/spice-insights/internal/upload"
)

func uploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Import an expense file",
		Long: `Import a CSV or OFX expense file described by one of the configured file types.

Examples:
  spice upload --user ana@example.com --type hsbc statement.csv
  spice upload --user ana@example.com --type bank_ofx --classify export.ofx`,
		Args: cobra.ExactArgs(1),
		RunE: runUpload,
	}

	cmd.Flags().StringP("type", "t", "", "file type key from the file types config (required)")
	cmd.Flags().Bool("classify", false, "classify the imported rows when the file type enables model processing")
	_ = cmd.MarkFlagRequired("type")

	return cmd
}

func runUpload(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	fileType, _ := cmd.Flags().GetString("type")
	classify, _ := cmd.Flags().GetBool("classify")

	user, err := currentUser()
	if err != nil {
		return err
	}
	types, err := fileTypes()
	if err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", args[0], err)
	}
	defer func() { _ = f.Close() }()

	comps, err := newComponents(ctx)
	if err != nil {
		return err
	}
	defer comps.Close()

	result, err := upload.NewService(comps.store, comps.store, types, nil).Upload(ctx, upload.Request{
		Body:     f,
		UserID:   user,
		FileName: filepath.Base(args[0]),
		FileType: fileType,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s file %d: %d rows, %d inserted, %d dropped\n",
		cli.HeaderStyle.Render("Uploaded"), result.UploadID, result.Rows, result.Inserted, result.Dropped)

	ft, _ := types.Lookup(fileType)
	if !classify || !ft.ModelProcessing || result.Inserted == 0 {
		return nil
	}

	runner, err := comps.jobRunner(ctx)
	if err != nil {
		return err
	}
	job, err := classifyFile(cmd, runner, user, result.UploadID, false)
	if err != nil {
		return err
	}
	printJob(cmd, job)
	return nil
}
