package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Watch the vault and run workflows",
	Long: `Start the watcher, shadow cache, trigger matcher and execution engine.

On start the engine resumes executions left pending, running or suspended by
shutdown, and the cache is resynced against the vault so changes made while
weaver was stopped are seen. The process runs until interrupted.

Examples:
  weaver serve --vault ~/notes
  weaver serve --metrics-addr :9464`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var resyncCmd = &cobra.Command{
	Use:   "resync",
	Short: "Reconcile the shadow cache with the vault",
	Long: `Walk the vault, compare content hashes with the shadow cache and repair
drift. Created and modified files are re-extracted; missing files become
tombstones. Workflows triggered by the drift run on the next serve.`,
	Args: cobra.NoArgs,
	RunE: runResync,
}

func init() {
	serveCmd.Flags().String("metrics-addr", "", "Prometheus listen address (overrides metrics.addr)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(resyncCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	d, err := requireDaemon()
	if err != nil {
		return err
	}
	metricsAddr, err := cmd.Flags().GetString("metrics-addr")
	if err != nil {
		return fmt.Errorf("getting metrics-addr flag: %w", err)
	}
	return d.Run(commandContext(cmd), metricsAddr)
}

func runResync(cmd *cobra.Command, _ []string) error {
	control, err := requireControl()
	if err != nil {
		return err
	}

	report, err := control.Resync(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("resync failed: %w", err)
	}

	cmd.Printf("Scanned %d files in %s.\n", report.Scanned, report.Duration.Round(time.Millisecond))
	cmd.Printf("  created:   %d\n", report.Created)
	cmd.Printf("  modified:  %d\n", report.Modified)
	cmd.Printf("  removed:   %d\n", report.Removed)
	cmd.Printf("  unchanged: %d\n", report.Unchanged)
	if report.Drift() == 0 {
		cmd.Println("Cache is in sync.")
	}
	return nil
}
