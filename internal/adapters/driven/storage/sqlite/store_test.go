package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestStore opens a store in a temporary directory.
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, store.Close()) })
	return store
}

func TestNewStore_CreatesDatabase(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	store, err := NewStore(dir)
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, filepath.Join(dir, "weaver.db"), store.Path())
	assert.FileExists(t, store.Path())

	version, err := store.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, version)
}

func TestNewStore_ReopenKeepsDataAndSkipsMigrations(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, first.EntryStore().Put(ctx, testEntry("a.md", 1)))
	require.NoError(t, first.Close())

	second, err := NewStore(dir)
	require.NoError(t, err)
	defer second.Close()

	got, err := second.EntryStore().Get(ctx, "a.md")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Sequence)

	version, err := second.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, version)
}

func TestTimeFormatSortsLexically(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	earlier := formatTime(base)
	later := formatTime(base.Add(time.Millisecond))
	assert.Less(t, earlier, later)
	assert.Len(t, later, len(earlier))

	parsed := parseTime(later)
	assert.True(t, parsed.Equal(base.Add(time.Millisecond)))
	assert.True(t, parseTime("").IsZero())
	assert.True(t, parseTime("not a time").IsZero())
}

func TestHelpers(t *testing.T) {
	assert.Nil(t, formatNullableTime(time.Time{}))
	assert.IsType(t, "", formatNullableTime(time.Now()))
	assert.Equal(t, 1, boolToInt(true))
	assert.Equal(t, 0, boolToInt(false))
	assert.Nil(t, nullString(""))
	assert.Equal(t, "x", nullString("x"))
	assert.Equal(t, "?, ?, ?", placeholders(3))

	v, err := marshalJSON(map[string]any(nil))
	require.NoError(t, err)
	assert.Nil(t, v)
}
