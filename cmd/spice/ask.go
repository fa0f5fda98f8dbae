package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/spice-insights/internal/chat"
	"github.com/Veraticus/spice-insights/internal/cli"
	"github.com/Veraticus/spice-insights/internal/common"
	"github.com/Veraticus/spice-insights/internal/tui"
)

func askCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask one question about the configured project",
		Long: `Translate a question into SQL, run it against the project's database
and print the answer.

Examples:
  spice ask "How much did I spend on groceries in May?"
  spice ask --project finance --sql "What were my top 5 merchants?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: runAsk,
	}

	cmd.Flags().String("project", "", "project name from the projects directory")
	cmd.Flags().Bool("sql", false, "print the generated SQL")

	return cmd
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	showSQL, _ := cmd.Flags().GetBool("sql")
	applyProjectFlag(cmd)

	comps, err := newComponents(ctx)
	if err != nil {
		return err
	}
	defer comps.Close()

	svc, err := comps.chatService(ctx)
	if err != nil {
		return fmt.Errorf("failed to create chat service: %w", err)
	}

	answer, err := svc.Ask(ctx, strings.Join(args, " "), viper.GetString("user"))
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), cli.FormatError(common.UserMessage(err)))
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, cli.AnswerStyle.Render(answer.QueryText))
	if showSQL {
		fmt.Fprintln(out, cli.SQLStyle.Render(answer.SQL))
	}
	slog.Debug("Answer timings",
		chat.StageConvertToSQL, answer.Timings[chat.StageConvertToSQL],
		chat.StageExecuteQuery, answer.Timings[chat.StageExecuteQuery],
		chat.StageConvertToNL, answer.Timings[chat.StageConvertToNL])
	return nil
}

func chatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Open an interactive chat console",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			applyProjectFlag(cmd)

			comps, err := newComponents(ctx)
			if err != nil {
				return err
			}
			defer comps.Close()

			svc, err := comps.chatService(ctx)
			if err != nil {
				return fmt.Errorf("failed to create chat service: %w", err)
			}

			cfg := tui.DefaultConfig()
			cfg.UserID = viper.GetString("user")
			cfg.ShowSQL, _ = cmd.Flags().GetBool("sql")
			return tui.Run(ctx, svc, cfg)
		},
	}

	cmd.Flags().String("project", "", "project name from the projects directory")
	cmd.Flags().Bool("sql", false, "show generated SQL under each answer")

	return cmd
}

// applyProjectFlag lets --project override chat.project for this run.
func applyProjectFlag(cmd *cobra.Command) {
	if cmd.Flags().Changed("project") {
		project, _ := cmd.Flags().GetString("project")
		viper.Set("chat.project", project)
	}
}
