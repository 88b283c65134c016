package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/weave-nn/weaver/internal/core/ports/driven"
)

var _ driven.ConfigStore = (*ConfigStore)(nil)

// EnvPrefix prefixes environment overrides: vault.root is read from
// WEAVER_VAULT_ROOT before the file is consulted.
const EnvPrefix = "WEAVER_"

const configFile = "config.toml"

// ConfigStore reads and writes config.toml. Tables are flattened to dotted
// keys in memory and nested again on write. Environment overrides are read
// on every lookup and are never written back.
type ConfigStore struct {
	path      string
	lookupEnv func(string) (string, bool)

	mu     sync.RWMutex
	values map[string]any
}

// NewConfigStore opens dir/config.toml, creating dir when needed. An empty
// dir means ~/.weaver.
func NewConfigStore(dir string) (*ConfigStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(home, ".weaver")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}

	s := &ConfigStore{
		path:      filepath.Join(dir, configFile),
		lookupEnv: os.LookupEnv,
	}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Get returns the environment override for key if set, else the file value.
func (s *ConfigStore) Get(key string) (any, bool) {
	if v, ok := s.lookupEnv(envName(key)); ok {
		return v, true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *ConfigStore) GetString(key string) string {
	v, _ := s.Get(key)
	return asString(v)
}

func (s *ConfigStore) GetInt(key string) int {
	v, _ := s.Get(key)
	return asInt(v)
}

func (s *ConfigStore) GetBool(key string) bool {
	v, _ := s.Get(key)
	return asBool(v)
}

// GetStringSlice returns nil for an absent key. Environment overrides are
// comma separated.
func (s *ConfigStore) GetStringSlice(key string) []string {
	v, ok := s.Get(key)
	if !ok {
		return nil
	}
	return asStrings(v)
}

func (s *ConfigStore) Set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return s.write()
}

func (s *ConfigStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write()
}

// write must be called with mu held.
func (s *ConfigStore) write() error {
	tree, err := nestMap(s.values)
	if err != nil {
		return err
	}
	raw, err := toml.Marshal(tree)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", s.path, err)
	}
	return os.WriteFile(s.path, raw, 0o600)
}

// Load replaces the in-memory values with the file contents. A missing file
// is an empty configuration.
func (s *ConfigStore) Load() error {
	raw, err := os.ReadFile(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	var tree map[string]any
	if len(raw) > 0 {
		if err := toml.Unmarshal(raw, &tree); err != nil {
			return fmt.Errorf("parsing %s: %w", s.path, err)
		}
	}

	values := make(map[string]any)
	flatten(values, "", tree)

	s.mu.Lock()
	s.values = values
	s.mu.Unlock()
	return nil
}

func (s *ConfigStore) Path() string {
	return s.path
}

// flatten copies tree into dst with dotted keys: {"a": {"b": 1}} → "a.b".
func flatten(dst map[string]any, prefix string, tree map[string]any) {
	for k, v := range tree {
		if prefix != "" {
			k = prefix + "." + k
		}
		if sub, ok := v.(map[string]any); ok {
			flatten(dst, k, sub)
			continue
		}
		dst[k] = v
	}
}

// nestMap turns dotted keys back into tables. It fails when a key is both a
// value and a table, e.g. "vault" and "vault.root".
func nestMap(flat map[string]any) (map[string]any, error) {
	root := make(map[string]any)
	for key, value := range flat {
		parts := strings.Split(key, ".")
		node := root
		for _, part := range parts[:len(parts)-1] {
			switch child := node[part].(type) {
			case nil:
				next := make(map[string]any)
				node[part] = next
				node = next
			case map[string]any:
				node = child
			default:
				return nil, fmt.Errorf("config key %q conflicts with value at %q", key, part)
			}
		}
		leaf := parts[len(parts)-1]
		if _, isTable := node[leaf].(map[string]any); isTable {
			return nil, fmt.Errorf("config key %q conflicts with a table", key)
		}
		node[leaf] = value
	}
	return root, nil
}

// envName maps a dotted key to its environment variable.
func envName(key string) string {
	return EnvPrefix + strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))
}
