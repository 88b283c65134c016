package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weave-nn/weaver/internal/core/domain"
)

func putEntries(t *testing.T, store *EntryStore, entries ...domain.VaultEntry) {
	t.Helper()
	for i := range entries {
		require.NoError(t, store.Put(context.Background(), &entries[i]))
	}
}

func TestEntryStore_GetNotFound(t *testing.T) {
	_, err := NewEntryStore().Get(context.Background(), "missing.md")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEntryStore_PutGet_CopiesSlices(t *testing.T) {
	store := NewEntryStore()
	entry := domain.VaultEntry{Path: "a.md", Tags: []string{"x"}, OutboundLinks: []string{"b.md"}}
	putEntries(t, store, entry)

	entry.Tags[0] = "mutated"
	got, err := store.Get(context.Background(), "a.md")
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, got.Tags)

	got.OutboundLinks[0] = "mutated"
	again, _ := store.Get(context.Background(), "a.md")
	assert.Equal(t, []string{"b.md"}, again.OutboundLinks)
}

func TestEntryStore_Touch(t *testing.T) {
	store := NewEntryStore()
	putEntries(t, store, domain.VaultEntry{Path: "a.md", ContentHash: "h", Sequence: 1})

	seen := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Touch(context.Background(), "a.md", seen, 9))

	got, _ := store.Get(context.Background(), "a.md")
	assert.Equal(t, seen, got.LastSeenAt)
	assert.Equal(t, int64(9), got.Sequence)
	assert.Equal(t, "h", got.ContentHash)

	assert.ErrorIs(t, store.Touch(context.Background(), "missing.md", seen, 1), domain.ErrNotFound)
}

func TestEntryStore_Query_FiltersAndPages(t *testing.T) {
	store := NewEntryStore()
	putEntries(t, store,
		domain.VaultEntry{Path: "tasks/a.md", Kind: "task", Tags: []string{"urgent"}},
		domain.VaultEntry{Path: "tasks/b.md", Kind: "task"},
		domain.VaultEntry{Path: "tasks/c.md", Kind: "task", Deleted: true},
		domain.VaultEntry{Path: "notes/d.md", Kind: "note", OutboundLinks: []string{"tasks/a.md"}},
	)
	ctx := context.Background()

	page, err := store.Query(ctx, domain.EntryFilter{Kind: "task"}, domain.Page{Limit: 1})
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	assert.Equal(t, "tasks/a.md", page.Entries[0].Path)
	assert.Equal(t, "tasks/a.md", page.NextCursor)

	page, err = store.Query(ctx, domain.EntryFilter{Kind: "task"}, domain.Page{After: page.NextCursor, Limit: 1})
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	assert.Equal(t, "tasks/b.md", page.Entries[0].Path)
	assert.Empty(t, page.NextCursor)

	page, err = store.Query(ctx, domain.EntryFilter{Kind: "task", IncludeDeleted: true}, domain.Page{})
	require.NoError(t, err)
	assert.Len(t, page.Entries, 3)

	page, err = store.Query(ctx, domain.EntryFilter{LinkTarget: "tasks/a.md"}, domain.Page{})
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	assert.Equal(t, "notes/d.md", page.Entries[0].Path)

	page, err = store.Query(ctx, domain.EntryFilter{Tag: "urgent", PathPrefix: "tasks/"}, domain.Page{})
	require.NoError(t, err)
	assert.Len(t, page.Entries, 1)
}

func TestEntryStore_Count(t *testing.T) {
	store := NewEntryStore()
	putEntries(t, store,
		domain.VaultEntry{Path: "a.md", Kind: "task", Status: "open", Tags: []string{"x", "y"}},
		domain.VaultEntry{Path: "b.md", Kind: "task", Status: "done", Tags: []string{"x"}},
		domain.VaultEntry{Path: "c.md", Kind: "note", Deleted: true},
	)

	counts, err := store.Count(context.Background(), domain.EntryFilter{IncludeDeleted: true})
	require.NoError(t, err)
	assert.Equal(t, 3, counts.Total)
	assert.Equal(t, 2, counts.Live)
	assert.Equal(t, 1, counts.Deleted)
	assert.Equal(t, 2, counts.ByKind["task"])
	assert.Equal(t, 2, counts.ByTag["x"])
	assert.Equal(t, 1, counts.ByStatus["done"])

	counts, err = store.Count(context.Background(), domain.EntryFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, counts.Total)
}

func TestEntryStore_SnapshotAndPurge(t *testing.T) {
	store := NewEntryStore()
	old := time.Now().Add(-48 * time.Hour)
	putEntries(t, store,
		domain.VaultEntry{Path: "b.md", ContentHash: "hb", Sequence: 3},
		domain.VaultEntry{Path: "a.md", Deleted: true, DeletedAt: old, Sequence: 7},
		domain.VaultEntry{Path: "c.md", Deleted: true, DeletedAt: time.Now(), Sequence: 5},
	)
	ctx := context.Background()

	snap, err := store.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap, 3)
	assert.Equal(t, domain.EntryDigest{Path: "a.md", Deleted: true}, snap[0])

	highest, err := store.MaxSequence(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), highest)

	purged, err := store.PurgeTombstones(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, purged)

	_, err = store.Get(ctx, "a.md")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = store.Get(ctx, "c.md")
	assert.NoError(t, err)
}
