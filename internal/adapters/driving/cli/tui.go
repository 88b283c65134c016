package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/weave-nn/weaver/internal/adapters/driving/tui"
	"github.com/weave-nn/weaver/internal/logger"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive terminal UI",
	Long: `Launch the interactive terminal user interface for weaver.

The TUI browses the shadow cache, enables, disables and triggers workflows,
and inspects and controls executions. Use --watch to run the watcher and
engine in the same process so triggered workflows run immediately.

Log lines would corrupt the screen, so they are held until the TUI exits and
then printed, or written to --log-file as they happen.

Controls:
  ↑/k, ↓/j - Navigate
  Enter    - Select / Details
  Esc      - Back
  ?        - Help
  q        - Quit (from the menu)`,
	Args: cobra.NoArgs,
	RunE: runTUI,
}

func init() {
	tuiCmd.Flags().Bool("watch", false, "Also run the watcher and engine")
	tuiCmd.Flags().String("log-file", "", "Append log lines to this file while the TUI runs")
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, _ []string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Panic in TUI: %v\n", r)
			fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", debug.Stack())
			err = fmt.Errorf("tui panicked: %v", r)
		}
	}()

	watch, err := cmd.Flags().GetBool("watch")
	if err != nil {
		return fmt.Errorf("getting watch flag: %w", err)
	}
	logFile, err := cmd.Flags().GetString("log-file")
	if err != nil {
		return fmt.Errorf("getting log-file flag: %w", err)
	}
	control, err := requireControl()
	if err != nil {
		return err
	}
	var d Daemon
	if watch {
		if d, err = requireDaemon(); err != nil {
			return err
		}
	}

	vault := ""
	if settingsService != nil {
		if s, err := settingsService.Get(); err == nil {
			vault = s.Vault.Root
		}
	}

	restore, err := holdLogs(logFile)
	if err != nil {
		return err
	}
	defer restore()

	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	app, err := tui.NewApp(ctx, &tui.Ports{Control: control}, vault)
	if err != nil {
		return fmt.Errorf("failed to create TUI: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	if d != nil {
		g.Go(func() error { return d.Run(gctx, "") })
	}
	g.Go(func() error {
		defer cancel()
		if err := app.Run(gctx); err != nil && gctx.Err() == nil {
			return fmt.Errorf("TUI error: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// holdLogs diverts log output away from the terminal. Lines go to path when
// set, otherwise they are buffered and replayed once restore is called.
func holdLogs(path string) (restore func(), err error) {
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		prev := logger.SetOutput(f)
		return func() {
			logger.SetOutput(prev)
			_ = f.Close()
		}, nil
	}

	var held bytes.Buffer
	prev := logger.SetOutput(&held)
	return func() {
		logger.SetOutput(prev)
		_, _ = io.Copy(prev, &held)
	}, nil
}
