package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newApplyCommand(ctx *commandContext) *cobra.Command {
	applyCmd := &cobra.Command{
		Use:   "apply",
		Short: "Plan, execute, and audit writeback runs",
	}

	applyCmd.AddCommand(newApplyPlanCommand(ctx))
	applyCmd.AddCommand(newApplyRunCommand(ctx))
	applyCmd.AddCommand(newApplyRollbackCommand(ctx))
	applyCmd.AddCommand(newApplyReportCommand(ctx))

	return applyCmd
}

func newApplyPlanCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "plan <set-id>",
		Short: "Create a writeback plan for a published patch set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			executor, err := ctx.executor()
			if err != nil {
				return err
			}
			planID, err := executor.CreatePlan(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created plan %s\n", planID)
			return nil
		},
	}
}

func newApplyRunCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool
	var force bool

	cmd := &cobra.Command{
		Use:   "run <plan-id>",
		Short: "Execute a writeback plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			executor, err := ctx.executor()
			if err != nil {
				return err
			}
			outcome, err := executor.ExecutePlan(cmd.Context(), args[0], dryRun, force)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			rows := make([][]string, 0, len(outcome.Results))
			for _, result := range outcome.Results {
				rows = append(rows, []string{
					result.PatchItemID,
					string(result.Status),
					result.Strategy,
					result.ErrorMessage,
				})
			}
			printRows(out,
				[]string{"Item", "Status", "Strategy", "Error"},
				rows,
			)

			switch {
			case dryRun:
				fmt.Fprintf(out, "Dry run %s completed; nothing was written\n", outcome.RunID)
			case outcome.Success:
				fmt.Fprintf(out, "Run %s succeeded\n", outcome.RunID)
			default:
				fmt.Fprintf(out, "Run %s finished with failures; see 'apply report %s'\n", outcome.RunID, outcome.RunID)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Check preconditions without writing")
	cmd.Flags().BoolVar(&force, "force", false, "Apply even when upstream content has drifted")
	return cmd
}

func newApplyRollbackCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rollback <run-id>",
		Short: "Undo every applied item of a run from its backups",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			executor, err := ctx.executor()
			if err != nil {
				return err
			}
			outcome, err := executor.RollbackRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Rolled back %d item(s)\n", outcome.RolledBack)
			for _, rollbackErr := range outcome.Errors {
				fmt.Fprintf(out, "item %s: %v\n", rollbackErr.PatchItemID, rollbackErr.Err)
			}
			if !outcome.Success {
				return fmt.Errorf("rollback of run %s left failures behind", args[0])
			}
			return nil
		},
	}
}

func newApplyReportCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "report <run-id>",
		Short: "Show the audit report for a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			executor, err := ctx.executor()
			if err != nil {
				return err
			}
			report, err := executor.Report(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, report)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run:     %s\n", report.RunID)
			fmt.Fprintf(out, "Plan:    %s\n", report.PlanID)
			fmt.Fprintf(out, "Status:  %s\n", report.Status)
			fmt.Fprintf(out, "Items:   %d total, %d succeeded, %d failed (%.0f%%)\n",
				report.Statistics.Total, report.Statistics.Success, report.Statistics.Failed,
				report.Statistics.SuccessRate*100)
			if len(report.Results) == 0 {
				return nil
			}

			rows := make([][]string, 0, len(report.Results))
			for i, result := range report.Results {
				rows = append(rows, []string{
					strconv.Itoa(i + 1),
					result.PatchItemID,
					result.Status,
					result.RollbackStatus,
				})
			}
			printRows(out,
				[]string{"#", "Item", "Status", "Rollback"},
				rows,
				0,
			)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the report as JSON")
	return cmd
}
