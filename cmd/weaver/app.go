package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/weave-nn/weaver/internal/adapters/driven/config/file"
	"github.com/weave-nn/weaver/internal/adapters/driven/metrics/prometheus"
	"github.com/weave-nn/weaver/internal/adapters/driven/storage/sqlite"
	"github.com/weave-nn/weaver/internal/adapters/driving/cli"
	"github.com/weave-nn/weaver/internal/connectors/filesystem"
	"github.com/weave-nn/weaver/internal/core/domain"
	"github.com/weave-nn/weaver/internal/core/services"
	"github.com/weave-nn/weaver/internal/logger"
	"github.com/weave-nn/weaver/internal/normalisers/markdown"
	"github.com/weave-nn/weaver/internal/steps"
)

// stopTimeout bounds how long shutdown waits for in-flight steps.
const stopTimeout = 30 * time.Second

// errNoVault is returned by commands that need a vault when none is set.
var errNoVault = errors.New("no vault configured: pass --vault or run 'weaver settings vault <path>'")

// app owns every component of a running weaver.
type app struct {
	settings *domain.AppSettings

	store      *sqlite.Store
	source     *filesystem.Source
	metrics    *prometheus.Metrics
	clock      *services.Clock
	cache      *services.ShadowCache
	normalizer *services.Normalizer
	registry   *services.Registry
	matcher    *services.Matcher
	engine     *services.Engine
	pipeline   *services.Pipeline
	control    *services.ControlService
	cron       *services.CronTriggers
	scheduler  *services.Scheduler
}

var _ cli.Daemon = (*app)(nil)

// bootstrap builds the runtime for one command invocation.
func bootstrap(ctx context.Context, opts cli.Options) (*cli.Runtime, error) {
	dataDir, err := resolveDataDir(opts.DataDir)
	if err != nil {
		return nil, err
	}

	configStore, err := file.NewConfigStore(dataDir)
	if err != nil {
		return nil, fmt.Errorf("opening config: %w", err)
	}
	settingsService := services.NewSettingsService(configStore)
	settings, err := settingsService.Get()
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}

	if opts.VaultRoot != "" {
		root, err := filepath.Abs(opts.VaultRoot)
		if err != nil {
			return nil, fmt.Errorf("resolving vault: %w", err)
		}
		settings.Vault.Root = root
	}
	if settings.WorkflowsDir == "" {
		settings.WorkflowsDir = filepath.Join(dataDir, "workflows")
	}

	rt := &cli.Runtime{Settings: settingsService}
	if settings.Vault.Root == "" {
		rt.Err = errNoVault
		return rt, nil
	}

	a, err := newApp(ctx, settings, filepath.Join(dataDir, "data"))
	if err != nil {
		// Settings commands stay usable so a bad vault can be fixed.
		rt.Err = err
		return rt, nil
	}
	rt.Control = a.control
	rt.Daemon = a
	rt.Close = a.Close
	return rt, nil
}

func resolveDataDir(dir string) (string, error) {
	if dir != "" {
		return filepath.Abs(dir)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".weaver"), nil
}

// newApp wires the components. Nothing runs until Run is called; until then
// resync drift is processed synchronously so one-shot commands still record
// the executions it triggers.
func newApp(ctx context.Context, settings *domain.AppSettings, storeDir string) (*app, error) {
	info, err := os.Stat(settings.Vault.Root)
	if err != nil {
		return nil, fmt.Errorf("vault %s: %w", settings.Vault.Root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("vault %s is not a directory", settings.Vault.Root)
	}

	filter, err := services.NewPathFilter(settings.Vault.Ignore)
	if err != nil {
		return nil, err
	}

	store, err := sqlite.NewStore(storeDir)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	a := &app{
		settings: settings,
		store:    store,
		source:   filesystem.New(settings.Vault.Root, filesystem.WithSkipDir(filter.IgnoredDir)),
		metrics:  prometheus.New(true),
	}

	maxSeq, err := store.EntryStore().MaxSequence(ctx)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("reading sequence: %w", err)
	}
	a.clock = services.NewClockAt(max(maxSeq, time.Now().UnixNano()))

	catalog := steps.Default(nil)
	a.registry = services.NewRegistry(catalog)
	n, err := services.LoadWorkflows(ctx, file.NewWorkflowLoader(settings.WorkflowsDir), a.registry)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	logger.Debug("Loaded %d workflows from %s", n, settings.WorkflowsDir)

	a.cache = services.NewShadowCache(store.EntryStore(), a.source, markdown.New(), filter,
		settings.Cache.TombstoneRetention, a.metrics)
	a.normalizer = services.NewNormalizer(a.source, filter, settings.Normalizer.Debounce, a.clock, a.metrics)
	a.matcher = services.NewMatcher(a.registry)
	a.engine = services.NewEngine(store.ExecutionStore(), a.registry, catalog, a.matcher, a.metrics, settings.Engine)
	a.pipeline = services.NewPipeline(a.normalizer, a.cache, a.matcher, a.engine, settings.IngestWorkers)
	a.control = services.NewControlService(a.cache, a.registry, a.matcher, a.engine)
	a.cron = services.NewCronTriggers(a.registry, a.control)
	a.scheduler = services.NewScheduler(settings.Scheduler, store.MaintenanceStore(), a.cache)

	a.cache.SetNotifier(func(change domain.RawChange) {
		a.pipeline.Process(ctx, domain.VaultEvent{
			Path:       change.Path,
			ChangeKind: change.Kind,
			ObservedAt: change.ObservedAt,
			Sequence:   a.clock.Next(),
			Synthetic:  change.Synthetic,
		})
	})
	return a, nil
}

// Run watches the vault and executes workflows until ctx is cancelled.
func (a *app) Run(ctx context.Context, metricsAddr string) error {
	logger.Section("Weaver")
	logger.Info("Watching %s", a.settings.Vault.Root)

	a.cache.SetNotifier(a.normalizer.Notify)
	a.normalizer.SetRecoveryHook(func(ctx context.Context) error {
		_, err := a.cache.FullResync(ctx)
		return err
	})

	if _, err := a.engine.Recover(ctx); err != nil {
		return fmt.Errorf("recovering executions: %w", err)
	}
	if err := a.engine.Start(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.pipeline.Run(gctx) })
	g.Go(func() error { return a.cron.Start(gctx) })
	g.Go(func() error {
		report, err := a.cache.FullResync(gctx)
		if err != nil {
			if gctx.Err() == nil {
				logger.Error("Startup resync failed: %v", err)
			}
			return nil
		}
		logger.Info("Startup resync found %d changes", report.Drift())
		return nil
	})
	if a.settings.Scheduler.Enabled {
		g.Go(func() error { return a.scheduler.Start(gctx) })
	}
	if metricsAddr == "" {
		metricsAddr = a.settings.MetricsAddr
	}
	if metricsAddr != "" {
		g.Go(func() error { return a.metrics.Serve(gctx, metricsAddr) })
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	return errors.Join(err, a.engine.Stop(stopCtx))
}

// Close stops the engine and releases the watcher and store.
func (a *app) Close() error {
	var errs []error
	if a.engine != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		errs = append(errs, a.engine.Stop(stopCtx))
		cancel()
	}
	if a.scheduler != nil {
		errs = append(errs, a.scheduler.Stop())
	}
	errs = append(errs, a.source.Close(), a.store.Close())
	return errors.Join(errs...)
}
