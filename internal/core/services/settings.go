package services

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/weave-nn/weaver/internal/core/domain"
	"github.com/weave-nn/weaver/internal/core/ports/driven"
	"github.com/weave-nn/weaver/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
const (
	keyVaultRoot          = "vault.root"
	keyVaultIgnore        = "vault.ignore"
	keyDebounceMs         = "normalizer.debounce_ms"
	keyRetentionHours     = "cache.tombstone_retention_hours"
	keyIngestWorkers      = "ingest.workers"
	keyEngineWorkers      = "engine.workers"
	keyMaxStepRetries     = "engine.max_step_retries"
	keyBackoffBaseMs      = "engine.backoff_base_ms"
	keyBackoffMaxMs       = "engine.backoff_max_ms"
	keyStepTimeoutSeconds = "engine.step_timeout_seconds"
	keyRetryPolicy        = "engine.retry_policy"
	keyMaxManualRetries   = "engine.max_manual_retries"
	keyWorkflowsDir       = "workflows.dir"
	keyMetricsAddr        = "metrics.addr"
	keySchedulerEnabled   = "scheduler.enabled"
	keyPurgeMinutes       = "scheduler.tombstone_purge_minutes"
	keyResyncMinutes      = "scheduler.vault_resync_minutes"
)

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{configStore: configStore}
}

// Get retrieves current application settings, overlaying configured values
// on the defaults.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Vault: domain.VaultSettings{
			Root:   s.getString(keyVaultRoot, defaults.Vault.Root),
			Ignore: s.getStringSlice(keyVaultIgnore, defaults.Vault.Ignore),
		},
		Normalizer: domain.NormalizerSettings{
			Debounce: s.getDuration(keyDebounceMs, time.Millisecond, defaults.Normalizer.Debounce),
		},
		Cache: domain.CacheSettings{
			TombstoneRetention: s.getDuration(keyRetentionHours, time.Hour, defaults.Cache.TombstoneRetention),
		},
		Engine: domain.EngineSettings{
			Workers:          s.getInt(keyEngineWorkers, defaults.Engine.Workers),
			MaxStepRetries:   s.getIntAllowZero(keyMaxStepRetries, defaults.Engine.MaxStepRetries),
			BackoffBase:      s.getDuration(keyBackoffBaseMs, time.Millisecond, defaults.Engine.BackoffBase),
			BackoffMax:       s.getDuration(keyBackoffMaxMs, time.Millisecond, defaults.Engine.BackoffMax),
			StepTimeout:      s.getDuration(keyStepTimeoutSeconds, time.Second, defaults.Engine.StepTimeout),
			RetryPolicy:      s.getRetryPolicy(defaults.Engine.RetryPolicy),
			MaxManualRetries: s.getIntAllowZero(keyMaxManualRetries, defaults.Engine.MaxManualRetries),
		},
		IngestWorkers: s.getInt(keyIngestWorkers, defaults.IngestWorkers),
		WorkflowsDir:  s.getString(keyWorkflowsDir, defaults.WorkflowsDir),
		MetricsAddr:   s.getString(keyMetricsAddr, defaults.MetricsAddr),
		Scheduler:     defaults.Scheduler,
	}

	settings.Scheduler.Enabled = s.getBool(keySchedulerEnabled, defaults.Scheduler.Enabled)
	s.overlayJob(settings.Scheduler, domain.JobPurgeTombstones, keyPurgeMinutes)
	s.overlayJob(settings.Scheduler, domain.JobResyncVault, keyResyncMinutes)

	return settings, nil
}

// Save persists application settings.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []struct {
		key string
		val any
	}{
		{keyVaultRoot, settings.Vault.Root},
		{keyVaultIgnore, settings.Vault.Ignore},
		{keyDebounceMs, int(settings.Normalizer.Debounce / time.Millisecond)},
		{keyRetentionHours, int(settings.Cache.TombstoneRetention / time.Hour)},
		{keyIngestWorkers, settings.IngestWorkers},
		{keyEngineWorkers, settings.Engine.Workers},
		{keyMaxStepRetries, settings.Engine.MaxStepRetries},
		{keyBackoffBaseMs, int(settings.Engine.BackoffBase / time.Millisecond)},
		{keyBackoffMaxMs, int(settings.Engine.BackoffMax / time.Millisecond)},
		{keyStepTimeoutSeconds, int(settings.Engine.StepTimeout / time.Second)},
		{keyRetryPolicy, settings.Engine.RetryPolicy.String()},
		{keyMaxManualRetries, settings.Engine.MaxManualRetries},
		{keyWorkflowsDir, settings.WorkflowsDir},
		{keyMetricsAddr, settings.MetricsAddr},
		{keySchedulerEnabled, settings.Scheduler.Enabled},
		{keyPurgeMinutes, int(settings.Scheduler.Job(domain.JobPurgeTombstones).Every / time.Minute)},
		{keyResyncMinutes, int(settings.Scheduler.Job(domain.JobResyncVault).Every / time.Minute)},
	}

	for _, v := range values {
		if err := s.configStore.Set(v.key, v.val); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}
	return nil
}

// SetVaultRoot updates the watched vault directory.
func (s *SettingsService) SetVaultRoot(root string) error {
	if root == "" {
		return fmt.Errorf("%w: vault root is required", domain.ErrInvalidInput)
	}
	return s.configStore.Set(keyVaultRoot, root)
}

// Validate checks that current settings can start the engine.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	var errs []error
	if settings.Vault.Root == "" {
		errs = append(errs, errors.New("vault.root is not set"))
	} else if info, statErr := os.Stat(settings.Vault.Root); statErr != nil || !info.IsDir() {
		errs = append(errs, fmt.Errorf("vault.root %q is not a directory", settings.Vault.Root))
	}
	if _, ferr := NewPathFilter(settings.Vault.Ignore); ferr != nil {
		errs = append(errs, ferr)
	}
	if settings.Normalizer.Debounce <= 0 {
		errs = append(errs, errors.New("normalizer.debounce_ms must be positive"))
	}
	if settings.Engine.BackoffMax < settings.Engine.BackoffBase {
		errs = append(errs, errors.New("engine.backoff_max_ms must not be below engine.backoff_base_ms"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, errors.Join(errs...))
	}
	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val <= 0 {
		return defaultVal
	}
	return val
}

// getIntAllowZero returns a configured int, including an explicit zero.
func (s *SettingsService) getIntAllowZero(key string, defaultVal int) int {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	val := s.configStore.GetInt(key)
	if val < 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getStringSlice(key string, defaultVal []string) []string {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetStringSlice(key)
}

func (s *SettingsService) getDuration(key string, unit, defaultVal time.Duration) time.Duration {
	val := s.configStore.GetInt(key)
	if val <= 0 {
		return defaultVal
	}
	return time.Duration(val) * unit
}

func (s *SettingsService) getRetryPolicy(defaultVal domain.RetryPolicy) domain.RetryPolicy {
	val := s.configStore.GetString(keyRetryPolicy)
	if val == "" {
		return defaultVal
	}
	policy := domain.RetryPolicy(val)
	if !policy.IsValid() {
		return defaultVal
	}
	return policy
}

func (s *SettingsService) overlayJob(cfg domain.MaintenanceConfig, id, key string) {
	if minutes := s.configStore.GetInt(key); minutes > 0 {
		job := cfg.Job(id)
		job.Every = time.Duration(minutes) * time.Minute
		cfg.Jobs[id] = job
	}
}
