package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/weave-nn/weaver/internal/core/domain"
)

var executionsCmd = &cobra.Command{
	Use:     "executions",
	Aliases: []string{"exec"},
	Short:   "List and control workflow executions",
	Long: `List execution records, newest first.

Subcommands show one record in detail or move it through its lifecycle:
  cancel   pending, running or suspended -> failed (kind cancelled)
  suspend  running -> suspended at the next step boundary
  resume   suspended -> pending
  retry    failed -> pending, bounded by engine.max_manual_retries`,
	Args: cobra.NoArgs,
	RunE: runExecutions,
}

var executionsShowCmd = &cobra.Command{
	Use:   "show <execution-id>",
	Short: "Show one execution with its step results",
	Args:  cobra.ExactArgs(1),
	RunE:  runExecutionShow,
}

type executionAction func(ctx context.Context, id string) (*domain.ExecutionRecord, error)

func init() {
	executionsCmd.Flags().StringP("workflow", "w", "", "Filter by workflow ID")
	executionsCmd.Flags().StringSliceP("state", "s", nil, "Filter by state (repeatable)")
	executionsCmd.Flags().Duration("since", 0, "Only records started within this duration")
	executionsCmd.Flags().IntP("limit", "n", 20, "Maximum records to show")
	executionsCmd.Flags().Bool("json", false, "Print JSON")

	executionsShowCmd.Flags().Bool("json", false, "Print JSON")
	executionsCmd.AddCommand(executionsShowCmd)

	for _, c := range []struct {
		use, short string
		action     func() executionAction
	}{
		{"cancel", "Cancel an execution", func() executionAction { return controlService.CancelExecution }},
		{"suspend", "Suspend a running execution", func() executionAction { return controlService.SuspendExecution }},
		{"resume", "Resume a suspended execution", func() executionAction { return controlService.ResumeExecution }},
		{"retry", "Retry a failed execution", func() executionAction { return controlService.RetryExecution }},
	} {
		executionsCmd.AddCommand(newExecutionActionCmd(c.use, c.short, c.action))
	}

	rootCmd.AddCommand(executionsCmd)
}

func newExecutionActionCmd(use, short string, action func() executionAction) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <execution-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := requireControl(); err != nil {
				return err
			}
			rec, err := action()(commandContext(cmd), args[0])
			if err != nil {
				return fmt.Errorf("%s %s: %w", use, args[0], err)
			}
			cmd.Printf("Execution %s is now %s.\n", rec.ExecutionID, rec.State)
			return nil
		},
	}
}

func runExecutions(cmd *cobra.Command, _ []string) error {
	control, err := requireControl()
	if err != nil {
		return err
	}

	workflowID, _ := cmd.Flags().GetString("workflow")
	states, _ := cmd.Flags().GetStringSlice("state")
	since, _ := cmd.Flags().GetDuration("since")
	limit, _ := cmd.Flags().GetInt("limit")
	asJSON, _ := cmd.Flags().GetBool("json")

	filter := domain.ExecutionFilter{WorkflowID: workflowID, Limit: limit}
	for _, s := range states {
		state := domain.ExecutionState(strings.ToLower(strings.TrimSpace(s)))
		if !state.IsValid() {
			return fmt.Errorf("unknown state %q", s)
		}
		filter.States = append(filter.States, state)
	}
	if since > 0 {
		filter.Since = time.Now().Add(-since)
	}

	records, err := control.ListExecutions(commandContext(cmd), filter)
	if err != nil {
		return fmt.Errorf("listing executions: %w", err)
	}

	if asJSON {
		if records == nil {
			records = []domain.ExecutionRecord{}
		}
		return writeJSON(cmd.OutOrStdout(), records)
	}

	if len(records) == 0 {
		cmd.Println("No executions found.")
		return nil
	}

	cmd.Printf("%-36s  %-20s  %-9s  %-6s  %-19s  %s\n", "ID", "WORKFLOW", "STATE", "STEP", "STARTED", "TRIGGER")
	for i := range records {
		r := &records[i]
		cmd.Printf("%-36s  %-20s  %-9s  %-6d  %-19s  %s\n",
			r.ExecutionID,
			truncate(r.WorkflowID, 20),
			r.State,
			r.CurrentStepIndex,
			formatTime(r.StartedAt),
			triggerSummary(r),
		)
	}
	return nil
}

func runExecutionShow(cmd *cobra.Command, args []string) error {
	control, err := requireControl()
	if err != nil {
		return err
	}

	rec, err := control.GetExecution(commandContext(cmd), args[0])
	if err != nil {
		return fmt.Errorf("execution %s: %w", args[0], err)
	}

	asJSON, _ := cmd.Flags().GetBool("json")
	if asJSON {
		return writeJSON(cmd.OutOrStdout(), rec)
	}

	cmd.Printf("Execution:  %s\n", rec.ExecutionID)
	cmd.Printf("Workflow:   %s\n", rec.WorkflowID)
	cmd.Printf("State:      %s\n", rec.State)
	cmd.Printf("Trigger:    %s\n", triggerSummary(rec))
	cmd.Printf("Started:    %s\n", formatTime(rec.StartedAt))
	cmd.Printf("Updated:    %s\n", formatTime(rec.UpdatedAt))
	if rec.CompletedAt != nil {
		cmd.Printf("Completed:  %s\n", formatTime(*rec.CompletedAt))
	}
	cmd.Printf("Next step:  %d\n", rec.CurrentStepIndex)
	if rec.RetryCount > 0 || rec.ManualRetries > 0 {
		cmd.Printf("Retries:    %d step, %d manual\n", rec.RetryCount, rec.ManualRetries)
	}
	if rec.SuspendReason != "" {
		cmd.Printf("Suspended:  %s\n", rec.SuspendReason)
	}
	if rec.Error != nil {
		cmd.Printf("Error:      [%s] step %d: %s\n", rec.Error.Kind, rec.Error.StepIndex, rec.Error.Message)
	}

	if len(rec.StepResults) == 0 {
		return nil
	}
	cmd.Println("\nSteps:")
	for _, s := range rec.StepResults {
		status := "ok"
		if !s.Success {
			status = "failed: " + s.Error
		}
		cmd.Printf("  %d. %-20s  %-8s  attempts=%d  %s\n",
			s.StepIndex, truncate(s.StepName, 20), s.CompletedAt.Sub(s.StartedAt).Round(time.Millisecond), s.Attempts, status)
	}
	return nil
}

func triggerSummary(r *domain.ExecutionRecord) string {
	switch {
	case r.TriggerEvent != nil && r.TriggerEvent.Synthetic && r.TriggerEvent.Path == "":
		return "manual"
	case r.TriggerEvent != nil:
		return fmt.Sprintf("%s %s", r.TriggerEvent.ChangeKind, orDash(r.TriggerEvent.Path))
	case len(r.TriggerInput) > 0:
		return "manual (input)"
	default:
		return "manual"
	}
}
