package domain

import "time"

// RetryPolicy selects what an explicit retry of a failed execution re-runs.
type RetryPolicy string

// Available retry policies.
const (
	// RetryPolicyStep resumes at the failing step, keeping committed results.
	RetryPolicyStep RetryPolicy = "step"

	// RetryPolicyWorkflow discards committed results and restarts at step 0.
	RetryPolicyWorkflow RetryPolicy = "workflow"
)

// IsValid returns true if the retry policy is recognised.
func (p RetryPolicy) IsValid() bool {
	return p == RetryPolicyStep || p == RetryPolicyWorkflow
}

// String returns the string representation.
func (p RetryPolicy) String() string {
	return string(p)
}

// VaultSettings configures the watched vault.
type VaultSettings struct {
	// Root is the vault directory.
	Root string

	// Ignore are glob patterns applied before debouncing.
	Ignore []string
}

// NormalizerSettings configures event debouncing.
type NormalizerSettings struct {
	// Debounce is the per-path debounce window.
	Debounce time.Duration
}

// CacheSettings configures the shadow cache.
type CacheSettings struct {
	// TombstoneRetention is how long tombstones are kept before purging.
	TombstoneRetention time.Duration
}

// EngineSettings configures the durable execution engine.
type EngineSettings struct {
	// Workers bounds concurrently running executions.
	Workers int

	// MaxStepRetries bounds retries of a failing step.
	MaxStepRetries int

	// BackoffBase is the first retry delay.
	BackoffBase time.Duration

	// BackoffMax caps the retry delay.
	BackoffMax time.Duration

	// StepTimeout is the default per-step timeout.
	StepTimeout time.Duration

	// RetryPolicy selects what an explicit retry re-runs.
	RetryPolicy RetryPolicy

	// MaxManualRetries bounds explicit failed → pending retries per record.
	MaxManualRetries int
}

// AppSettings holds all Weaver settings.
type AppSettings struct {
	Vault         VaultSettings
	Normalizer    NormalizerSettings
	Cache         CacheSettings
	Engine        EngineSettings
	IngestWorkers int
	WorkflowsDir  string
	MetricsAddr   string
	Scheduler     MaintenanceConfig
}

// DefaultIgnorePatterns are applied when no ignore list is configured.
var DefaultIgnorePatterns = []string{
	".obsidian/**",
	".git/**",
	".trash/**",
	"**/.*",
	"**/*~",
	"**/*.swp",
}

// DefaultAppSettings returns sensible defaults.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Vault: VaultSettings{
			Ignore: append([]string(nil), DefaultIgnorePatterns...),
		},
		Normalizer: NormalizerSettings{
			Debounce: 750 * time.Millisecond,
		},
		Cache: CacheSettings{
			TombstoneRetention: 7 * 24 * time.Hour,
		},
		Engine: EngineSettings{
			Workers:          4,
			MaxStepRetries:   3,
			BackoffBase:      500 * time.Millisecond,
			BackoffMax:       30 * time.Second,
			StepTimeout:      2 * time.Minute,
			RetryPolicy:      RetryPolicyStep,
			MaxManualRetries: 3,
		},
		IngestWorkers: 4,
		Scheduler:     DefaultMaintenanceConfig(),
	}
}
