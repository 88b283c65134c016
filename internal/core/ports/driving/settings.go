package driving

import "github.com/weave-nn/weaver/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get retrieves current application settings.
	Get() (*domain.AppSettings, error)

	// Save persists application settings.
	Save(settings *domain.AppSettings) error

	// SetVaultRoot updates the watched vault directory.
	SetVaultRoot(root string) error

	// Validate checks that current settings can start the engine.
	Validate() error

	// GetDefaults returns default settings.
	GetDefaults() domain.AppSettings
}
