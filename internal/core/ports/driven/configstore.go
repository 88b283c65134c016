package driven

// ConfigStore is a flat key/value view of the configuration. Keys are dotted
// paths such as "engine.workers". Typed getters return the zero value when a
// key is absent or holds the wrong type; use Get to tell the two apart.
type ConfigStore interface {
	Get(key string) (any, bool)
	GetString(key string) string
	GetInt(key string) int
	GetBool(key string) bool
	GetStringSlice(key string) []string

	// Set updates a key and persists the whole configuration.
	Set(key string, value any) error

	// Save writes the configuration; Load replaces it with what is stored.
	Save() error
	Load() error

	// Path locates the backing file, or describes the backend.
	Path() string
}
