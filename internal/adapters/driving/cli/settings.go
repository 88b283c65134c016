package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/weave-nn/weaver/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and configure the vault, engine and scheduler settings.

Settings live in config.toml inside the data directory. Keys that are not
set fall back to defaults.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsDefaultsCmd = &cobra.Command{
	Use:   "defaults",
	Short: "Show default settings",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if settingsService == nil {
			return errors.New("settings service not configured")
		}
		defaults := settingsService.GetDefaults()
		printSettings(cmd, &defaults)
		return nil
	},
}

var settingsVaultCmd = &cobra.Command{
	Use:   "vault <path>",
	Short: "Set the vault directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsVault,
}

var settingsValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check that settings can start the engine",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if settingsService == nil {
			return errors.New("settings service not configured")
		}
		if err := settingsService.Validate(); err != nil {
			return err
		}
		cmd.Println("Settings are valid.")
		return nil
	},
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsDefaultsCmd)
	settingsCmd.AddCommand(settingsVaultCmd)
	settingsCmd.AddCommand(settingsValidateCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}
	printSettings(cmd, settings)
	return nil
}

func runSettingsVault(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	root, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolving %s: %w", args[0], err)
	}
	if err := settingsService.SetVaultRoot(root); err != nil {
		return err
	}
	cmd.Printf("Vault set to %s\n", root)
	return nil
}

func printSettings(cmd *cobra.Command, s *domain.AppSettings) {
	cmd.Println("Vault")
	cmd.Printf("  root:                %s\n", orDash(s.Vault.Root))
	cmd.Printf("  ignore:              %s\n", joinOrDash(s.Vault.Ignore))
	cmd.Printf("  debounce:            %s\n", s.Normalizer.Debounce)
	cmd.Printf("  tombstone retention: %s\n", s.Cache.TombstoneRetention)
	cmd.Printf("  ingest workers:      %d\n", s.IngestWorkers)

	cmd.Println("\nEngine")
	cmd.Printf("  workers:             %d\n", s.Engine.Workers)
	cmd.Printf("  max step retries:    %d\n", s.Engine.MaxStepRetries)
	cmd.Printf("  backoff:             %s .. %s\n", s.Engine.BackoffBase, s.Engine.BackoffMax)
	cmd.Printf("  step timeout:        %s\n", s.Engine.StepTimeout)
	cmd.Printf("  retry policy:        %s\n", s.Engine.RetryPolicy)
	cmd.Printf("  max manual retries:  %d\n", s.Engine.MaxManualRetries)
	cmd.Printf("  workflows dir:       %s\n", orDash(s.WorkflowsDir))
	cmd.Printf("  metrics addr:        %s\n", orDash(s.MetricsAddr))

	cmd.Println("\nScheduler")
	cmd.Printf("  enabled:             %t\n", s.Scheduler.Enabled)
	ids := make([]string, 0, len(s.Scheduler.Jobs))
	for id := range s.Scheduler.Jobs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		job := s.Scheduler.Jobs[id]
		state := "off"
		if job.Enabled {
			state = "every " + formatInterval(job.Every)
		}
		cmd.Printf("  %-20s %s\n", id+":", state)
	}
}

func formatInterval(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return fmt.Sprintf("%dh", d/time.Hour)
	case d >= time.Minute && d%time.Minute == 0:
		return fmt.Sprintf("%dm", d/time.Minute)
	default:
		return d.String()
	}
}
