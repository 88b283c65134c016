package domain

import (
	"sort"
	"strings"
	"time"
)

// Facts are the structural facts extracted from one vault file.
type Facts struct {
	// Kind is the free-form type tag from metadata (e.g. "task_log").
	Kind string

	// Status is the free-form lifecycle tag from metadata.
	Status string

	// Tags is the set of tags, deduplicated and sorted.
	Tags []string

	// OutboundLinks are link targets in document order.
	OutboundLinks []string

	// ContentHash identifies the content the facts were extracted from.
	ContentHash string
}

// VaultEntry is the shadow cache row for one vault file.
type VaultEntry struct {
	// Path is the unique, vault-relative, POSIX-normalised key.
	Path string `json:"path"`

	// Kind is the type tag extracted from metadata.
	Kind string `json:"kind,omitempty"`

	// Status is the lifecycle tag extracted from metadata.
	Status string `json:"status,omitempty"`

	// ContentHash is used for change detection.
	ContentHash string `json:"content_hash"`

	// Tags is the sorted set of tags.
	Tags []string `json:"tags"`

	// OutboundLinks are link targets (paths or unresolved labels) in order.
	OutboundLinks []string `json:"outbound_links"`

	// LastSeenAt is when an event for this path was last processed.
	LastSeenAt time.Time `json:"last_seen_at"`

	// LastModifiedAt is when the content last changed.
	LastModifiedAt time.Time `json:"last_modified_at"`

	// Deleted marks a tombstone.
	Deleted bool `json:"deleted"`

	// DeletedAt is when the entry was tombstoned. Zero for live entries.
	DeletedAt time.Time `json:"deleted_at,omitempty"`

	// Sequence is the sequence of the last event applied to this entry.
	Sequence int64 `json:"sequence"`
}

// ApplyFacts copies extracted facts onto the entry.
func (e *VaultEntry) ApplyFacts(f Facts) {
	e.Kind = f.Kind
	e.Status = f.Status
	e.Tags = NormaliseTags(f.Tags)
	e.OutboundLinks = append([]string(nil), f.OutboundLinks...)
	e.ContentHash = f.ContentHash
}

// HasTag reports whether the entry carries the tag.
func (e *VaultEntry) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// LinksTo reports whether the entry has an outbound link to target.
func (e *VaultEntry) LinksTo(target string) bool {
	for _, l := range e.OutboundLinks {
		if l == target {
			return true
		}
	}
	return false
}

// NormaliseTags deduplicates and sorts a tag list. Empty tags are dropped.
func NormaliseTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// UpsertResult describes the outcome of a shadow cache write.
type UpsertResult struct {
	// Entry is the stored entry after the write.
	Entry *VaultEntry

	// Created is true when the path had no live entry before.
	Created bool

	// Changed is true when content changed and facts were rewritten.
	Changed bool

	// Stale is true when the event was older than the stored entry and ignored.
	Stale bool
}

// Notify reports whether downstream consumers should see the event.
func (r UpsertResult) Notify() bool {
	return !r.Stale && (r.Created || r.Changed)
}

// EntryDigest is the minimal per-path state needed to diff the cache
// against the file system.
type EntryDigest struct {
	Path        string
	ContentHash string
	Deleted     bool
}

// EntryFilter selects entries in a query.
// Empty fields match everything. Tombstones are excluded unless IncludeDeleted is set.
type EntryFilter struct {
	PathPrefix     string `json:"path_prefix,omitempty"`
	Kind           string `json:"kind,omitempty"`
	Status         string `json:"status,omitempty"`
	Tag            string `json:"tag,omitempty"`
	LinkTarget     string `json:"link_target,omitempty"`
	IncludeDeleted bool   `json:"include_deleted,omitempty"`
}

// Matches reports whether an entry satisfies the filter.
func (f EntryFilter) Matches(e *VaultEntry) bool {
	if e.Deleted && !f.IncludeDeleted {
		return false
	}
	if f.PathPrefix != "" && !strings.HasPrefix(e.Path, f.PathPrefix) {
		return false
	}
	if f.Kind != "" && e.Kind != f.Kind {
		return false
	}
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	if f.Tag != "" && !e.HasTag(f.Tag) {
		return false
	}
	if f.LinkTarget != "" && !e.LinksTo(f.LinkTarget) {
		return false
	}
	return true
}

// DefaultPageLimit is used when a page carries no limit.
const DefaultPageLimit = 50

// MaxPageLimit caps the page size of a single query.
const MaxPageLimit = 500

// Page requests one page of path-ordered results.
// After is an exclusive cursor: results start at the first path greater than it.
type Page struct {
	After string `json:"after,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// EffectiveLimit returns the clamped page size.
func (p Page) EffectiveLimit() int {
	switch {
	case p.Limit <= 0:
		return DefaultPageLimit
	case p.Limit > MaxPageLimit:
		return MaxPageLimit
	default:
		return p.Limit
	}
}

// EntryPage is one page of query results ordered by path.
type EntryPage struct {
	Entries []VaultEntry `json:"entries"`

	// NextCursor is set when more results follow; pass it as Page.After.
	NextCursor string `json:"next_cursor,omitempty"`
}

// EntryCounts aggregates entries matching a filter.
type EntryCounts struct {
	Total    int            `json:"total"`
	Live     int            `json:"live"`
	Deleted  int            `json:"deleted"`
	ByKind   map[string]int `json:"by_kind"`
	ByStatus map[string]int `json:"by_status"`
	ByTag    map[string]int `json:"by_tag"`
}

// ResyncReport summarises one full resync pass.
type ResyncReport struct {
	Scanned   int           `json:"scanned"`
	Created   int           `json:"created"`
	Modified  int           `json:"modified"`
	Removed   int           `json:"removed"`
	Unchanged int           `json:"unchanged"`
	Events    []RawChange   `json:"-"`
	Duration  time.Duration `json:"duration"`
}

// Drift returns the number of synthetic events emitted.
func (r *ResyncReport) Drift() int {
	return r.Created + r.Modified + r.Removed
}
