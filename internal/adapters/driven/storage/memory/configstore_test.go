package memory

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigStore_Seeded(t *testing.T) {
	store := NewConfigStore(map[string]any{"vault.root": "/vault"}, map[string]any{"engine.workers": 2})

	assert.Equal(t, "/vault", store.GetString("vault.root"))
	assert.Equal(t, 2, store.GetInt("engine.workers"))
}

func TestConfigStore_Get_NotFound(t *testing.T) {
	store := NewConfigStore()

	val, ok := store.Get("nonexistent")
	assert.False(t, ok)
	assert.Nil(t, val)
}

func TestConfigStore_Set_Update(t *testing.T) {
	store := NewConfigStore()

	require.NoError(t, store.Set("vault.root", "/a"))
	require.NoError(t, store.Set("vault.root", "/b"))

	assert.Equal(t, "/b", store.GetString("vault.root"))
}

func TestConfigStore_TypedGetters(t *testing.T) {
	store := NewConfigStore(map[string]any{
		"str":        "value",
		"int":        42,
		"int64":      int64(7),
		"float":      float64(3),
		"bool":       true,
		"strings":    []string{"a", "b"},
		"any_slice":  []any{"x", 1, "y"},
		"wrong_type": 12,
	})

	assert.Equal(t, "value", store.GetString("str"))
	assert.Equal(t, "", store.GetString("wrong_type"))
	assert.Equal(t, 42, store.GetInt("int"))
	assert.Equal(t, 7, store.GetInt("int64"))
	assert.Equal(t, 3, store.GetInt("float"))
	assert.Equal(t, 0, store.GetInt("str"))
	assert.True(t, store.GetBool("bool"))
	assert.False(t, store.GetBool("str"))
	assert.Equal(t, []string{"a", "b"}, store.GetStringSlice("strings"))
	assert.Equal(t, []string{"x", "y"}, store.GetStringSlice("any_slice"))
	assert.Nil(t, store.GetStringSlice("missing"))
}

func TestConfigStore_GetStringSlice_ReturnsCopy(t *testing.T) {
	store := NewConfigStore(map[string]any{"vault.ignore": []string{"a"}})

	got := store.GetStringSlice("vault.ignore")
	got[0] = "mutated"

	assert.Equal(t, []string{"a"}, store.GetStringSlice("vault.ignore"))
}

func TestConfigStore_NoopPersistence(t *testing.T) {
	store := NewConfigStore()

	assert.NoError(t, store.Save())
	assert.NoError(t, store.Load())
	assert.Equal(t, ":memory:", store.Path())
}

func TestConfigStore_ConcurrentAccess(t *testing.T) {
	store := NewConfigStore()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			_ = store.Set("engine.workers", n)
		}(i)
		go func() {
			defer wg.Done()
			_ = store.GetInt("engine.workers")
		}()
	}
	wg.Wait()

	_, ok := store.Get("engine.workers")
	assert.True(t, ok)
}
