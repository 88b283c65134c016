// Package cli implements the weaver command line.
package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/weave-nn/weaver/internal/core/ports/driving"
	"github.com/weave-nn/weaver/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// Options are the global flags handed to the bootstrap.
type Options struct {
	// DataDir overrides the directory holding config and state.
	DataDir string

	// VaultRoot overrides the configured vault directory.
	VaultRoot string

	// Verbose enables debug logging.
	Verbose bool
}

// Daemon runs the long-lived watcher and engine.
type Daemon interface {
	// Run blocks until ctx is cancelled. metricsAddr overrides the configured
	// metrics listener when non-empty.
	Run(ctx context.Context, metricsAddr string) error
}

// Runtime is what the bootstrap builds for a command.
type Runtime struct {
	Control  driving.ControlSurface
	Settings driving.SettingsService
	Daemon   Daemon

	// Err explains why Control or Daemon is missing, such as an unset vault.
	Err error

	// Close releases resources. May be nil.
	Close func() error
}

// Bootstrap builds a Runtime from the global flags.
type Bootstrap func(ctx context.Context, opts Options) (*Runtime, error)

var (
	bootstrap Bootstrap
	active   *Runtime

	controlService  driving.ControlSurface
	settingsService driving.SettingsService
	daemon          Daemon

	opts Options
)

// skipBootstrap marks commands that never touch state.
const skipBootstrap = "weaver/skip-bootstrap"

var rootCmd = &cobra.Command{
	Use:   "weaver",
	Short: "Watch a vault and run durable workflows on its changes",
	Long: `Weaver watches a directory of markdown notes, keeps a queryable cache of
their front matter, tags and links, and runs durable multi-step workflows
when files change.

Run 'weaver serve' to start watching. The other commands inspect and control
state while a server is running or after it stopped.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&opts.DataDir, "data-dir", "", "Directory for config and state (default ~/.weaver)")
	rootCmd.PersistentFlags().StringVar(&opts.VaultRoot, "vault", "", "Vault directory (overrides config)")
}

// SetBootstrap installs the function that builds services for commands.
func SetBootstrap(b Bootstrap) {
	bootstrap = b
}

// SetVersion sets the reported version.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command and releases whatever the bootstrap built.
func Execute(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	return errors.Join(err, teardown())
}

func setup(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(opts.Verbose)
	if cmd.Annotations[skipBootstrap] == "true" || cmd.Name() == "help" {
		return nil
	}
	if bootstrap == nil {
		return errors.New("weaver is not configured")
	}

	if active != nil {
		return nil
	}
	rt, err := bootstrap(commandContext(cmd), opts)
	if err != nil {
		return err
	}
	active = rt
	controlService = rt.Control
	settingsService = rt.Settings
	daemon = rt.Daemon
	return nil
}

func teardown() error {
	rt := active
	active = nil
	controlService = nil
	settingsService = nil
	daemon = nil
	if rt == nil || rt.Close == nil {
		return nil
	}
	return rt.Close()
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func requireControl() (driving.ControlSurface, error) {
	if controlService == nil {
		return nil, unavailable("control service not configured")
	}
	return controlService, nil
}

func requireDaemon() (Daemon, error) {
	if daemon == nil {
		return nil, unavailable("serve is not available")
	}
	return daemon, nil
}

func unavailable(msg string) error {
	if active != nil && active.Err != nil {
		return active.Err
	}
	return errors.New(msg)
}
