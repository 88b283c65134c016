package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/weave-nn/weaver/internal/core/domain"
)

var workflowsCmd = &cobra.Command{
	Use:   "workflows",
	Short: "List registered workflows",
	Args:  cobra.NoArgs,
	RunE:  runWorkflows,
}

var workflowsEnableCmd = &cobra.Command{
	Use:   "enable <workflow-id>",
	Short: "Enable a workflow",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setWorkflowEnabled(cmd, args[0], true)
	},
}

var workflowsDisableCmd = &cobra.Command{
	Use:   "disable <workflow-id>",
	Short: "Disable a workflow",
	Long:  `Disable a workflow. In-flight executions finish; new events no longer match it.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setWorkflowEnabled(cmd, args[0], false)
	},
}

var triggerCmd = &cobra.Command{
	Use:   "trigger <workflow-id>",
	Short: "Run a workflow manually",
	Long: `Run a workflow outside any file event.

Input is passed as key=value pairs. Values that parse as JSON keep their
type, everything else is a string. A "path" key binds the run to a vault
path so step templates and serialize-per-path slots see it.

Examples:
  weaver trigger summarise --input path=notes/today.md
  weaver trigger digest --input days=7 --input dry_run=true`,
	Args: cobra.ExactArgs(1),
	RunE: runTrigger,
}

func init() {
	workflowsCmd.Flags().Bool("enabled", false, "Only show enabled workflows")
	workflowsCmd.Flags().String("prefix", "", "Only show workflows whose ID has this prefix")
	workflowsCmd.Flags().Bool("json", false, "Print JSON")
	workflowsCmd.AddCommand(workflowsEnableCmd)
	workflowsCmd.AddCommand(workflowsDisableCmd)

	triggerCmd.Flags().StringArrayP("input", "i", nil, "Input as key=value (repeatable)")
	triggerCmd.Flags().String("input-json", "", "Input as a JSON object")
	triggerCmd.Flags().Bool("json", false, "Print JSON")

	rootCmd.AddCommand(workflowsCmd)
	rootCmd.AddCommand(triggerCmd)
}

func runWorkflows(cmd *cobra.Command, _ []string) error {
	control, err := requireControl()
	if err != nil {
		return err
	}

	enabled, _ := cmd.Flags().GetBool("enabled")
	prefix, _ := cmd.Flags().GetString("prefix")
	asJSON, _ := cmd.Flags().GetBool("json")

	workflows, err := control.ListWorkflows(commandContext(cmd), domain.WorkflowFilter{
		EnabledOnly: enabled,
		IDPrefix:    prefix,
	})
	if err != nil {
		return fmt.Errorf("listing workflows: %w", err)
	}

	if asJSON {
		if workflows == nil {
			workflows = []domain.WorkflowInfo{}
		}
		return writeJSON(cmd.OutOrStdout(), workflows)
	}

	if len(workflows) == 0 {
		cmd.Println("No workflows registered.")
		return nil
	}

	cmd.Printf("%-24s  %-8s  %-20s  %-5s  %s\n", "ID", "ENABLED", "CONCURRENCY", "STEPS", "TRIGGERS")
	for i := range workflows {
		w := &workflows[i]
		triggers := joinOrDash(w.Definition.TriggerPatterns)
		if w.Definition.Schedule != "" {
			triggers = strings.TrimPrefix(triggers+", cron("+w.Definition.Schedule+")", "-, ")
		}
		cmd.Printf("%-24s  %-8t  %-20s  %-5d  %s\n",
			truncate(w.Definition.ID, 24), w.Enabled, w.Definition.Concurrency, len(w.Definition.Steps), triggers)
	}
	return nil
}

func setWorkflowEnabled(cmd *cobra.Command, id string, enabled bool) error {
	control, err := requireControl()
	if err != nil {
		return err
	}
	if err := control.SetWorkflowEnabled(commandContext(cmd), id, enabled); err != nil {
		return fmt.Errorf("workflow %s: %w", id, err)
	}

	state := "disabled"
	if enabled {
		state = "enabled"
	}
	cmd.Printf("Workflow %s %s.\n", id, state)
	return nil
}

func runTrigger(cmd *cobra.Command, args []string) error {
	control, err := requireControl()
	if err != nil {
		return err
	}

	pairs, _ := cmd.Flags().GetStringArray("input")
	raw, _ := cmd.Flags().GetString("input-json")
	asJSON, _ := cmd.Flags().GetBool("json")

	input, err := parseInput(pairs, raw)
	if err != nil {
		return err
	}

	result, err := control.TriggerWorkflow(commandContext(cmd), args[0], input)
	if err != nil {
		return fmt.Errorf("trigger %s: %w", args[0], err)
	}

	if asJSON {
		return writeJSON(cmd.OutOrStdout(), result)
	}

	if result.Execution == nil {
		cmd.Printf("Request %s was not accepted.\n", result.Request.RequestID)
		return nil
	}
	if result.Withheld {
		cmd.Printf("Execution %s queued: another run holds the concurrency slot.\n", result.Execution.ExecutionID)
		return nil
	}
	cmd.Printf("Execution %s accepted (%s).\n", result.Execution.ExecutionID, result.Execution.State)
	if result.Execution.State == domain.ExecutionPending {
		cmd.Println("It runs when 'weaver serve' next starts. Use the MCP endpoint of a running server to trigger live.")
	}
	return nil
}

// parseInput merges a JSON object with key=value pairs. Pairs win.
func parseInput(pairs []string, raw string) (map[string]any, error) {
	input := make(map[string]any)
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &input); err != nil {
			return nil, fmt.Errorf("invalid --input-json: %w", err)
		}
	}

	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --input %q: expected key=value", pair)
		}
		input[key] = parseValue(value)
	}

	if len(input) == 0 {
		return nil, nil
	}
	return input, nil
}

func parseValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	return v
}
