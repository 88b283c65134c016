package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormaliseTags(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, NormaliseTags([]string{"c", "a", "", "b", "a"}))
	assert.Equal(t, []string{}, NormaliseTags(nil))
}

func TestVaultEntry_ApplyFacts(t *testing.T) {
	links := []string{"b.md", "c"}
	e := &VaultEntry{Path: "a.md"}
	e.ApplyFacts(Facts{
		Kind:          "concept",
		Status:        "draft",
		Tags:          []string{"z", "y", "z"},
		OutboundLinks: links,
		ContentHash:   "h1",
	})

	assert.Equal(t, "concept", e.Kind)
	assert.Equal(t, "draft", e.Status)
	assert.Equal(t, []string{"y", "z"}, e.Tags)
	assert.Equal(t, "h1", e.ContentHash)
	assert.True(t, e.HasTag("y"))
	assert.False(t, e.HasTag("x"))
	assert.True(t, e.LinksTo("c"))

	links[0] = "mutated"
	assert.Equal(t, "b.md", e.OutboundLinks[0])
}

func TestUpsertResult_Notify(t *testing.T) {
	assert.True(t, UpsertResult{Created: true}.Notify())
	assert.True(t, UpsertResult{Changed: true}.Notify())
	assert.False(t, UpsertResult{}.Notify())
	assert.False(t, UpsertResult{Created: true, Stale: true}.Notify())
}

func TestEntryFilter_Matches(t *testing.T) {
	live := &VaultEntry{
		Path:          "notes/a.md",
		Kind:          "task_log",
		Status:        "open",
		Tags:          []string{"work"},
		OutboundLinks: []string{"notes/b.md"},
	}
	dead := &VaultEntry{Path: "notes/old.md", Deleted: true}

	tests := []struct {
		name   string
		filter EntryFilter
		entry  *VaultEntry
		want   bool
	}{
		{"empty filter matches live", EntryFilter{}, live, true},
		{"empty filter excludes tombstone", EntryFilter{}, dead, false},
		{"include deleted", EntryFilter{IncludeDeleted: true}, dead, true},
		{"prefix hit", EntryFilter{PathPrefix: "notes/"}, live, true},
		{"prefix miss", EntryFilter{PathPrefix: "inbox/"}, live, false},
		{"kind hit", EntryFilter{Kind: "task_log"}, live, true},
		{"kind miss", EntryFilter{Kind: "concept"}, live, false},
		{"status miss", EntryFilter{Status: "done"}, live, false},
		{"tag hit", EntryFilter{Tag: "work"}, live, true},
		{"tag miss", EntryFilter{Tag: "home"}, live, false},
		{"link hit", EntryFilter{LinkTarget: "notes/b.md"}, live, true},
		{"link miss", EntryFilter{LinkTarget: "notes/c.md"}, live, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Matches(tt.entry))
		})
	}
}

func TestPage_EffectiveLimit(t *testing.T) {
	assert.Equal(t, DefaultPageLimit, Page{}.EffectiveLimit())
	assert.Equal(t, DefaultPageLimit, Page{Limit: -1}.EffectiveLimit())
	assert.Equal(t, 10, Page{Limit: 10}.EffectiveLimit())
	assert.Equal(t, MaxPageLimit, Page{Limit: MaxPageLimit + 1}.EffectiveLimit())
}

func TestResyncReport_Drift(t *testing.T) {
	r := &ResyncReport{Created: 1, Modified: 2, Removed: 3, Unchanged: 10}
	assert.Equal(t, 6, r.Drift())
}
