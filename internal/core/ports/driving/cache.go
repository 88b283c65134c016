package driving

import (
	"context"

	"github.com/weave-nn/weaver/internal/core/domain"
)

// ShadowCache is the queryable mirror of vault structure.
// Reads may run concurrently; writes to one path are serialised.
type ShadowCache interface {
	// Apply reads the event's file, extracts facts when its content hash
	// changed, and upserts or tombstones the entry.
	Apply(ctx context.Context, event domain.VaultEvent) (domain.UpsertResult, error)

	// Upsert writes pre-extracted facts for an event. It is idempotent per
	// (path, content hash): an unchanged hash only refreshes last-seen time.
	Upsert(ctx context.Context, event domain.VaultEvent, facts domain.Facts) (domain.UpsertResult, error)

	// Tombstone marks a path deleted and retains its row.
	Tombstone(ctx context.Context, event domain.VaultEvent) (domain.UpsertResult, error)

	// Get returns the entry for a path, tombstones included.
	Get(ctx context.Context, path string) (*domain.VaultEntry, error)

	// Query returns one path-ordered page of matching entries.
	Query(ctx context.Context, filter domain.EntryFilter, page domain.Page) (*domain.EntryPage, error)

	// Count aggregates matching entries.
	Count(ctx context.Context, filter domain.EntryFilter) (*domain.EntryCounts, error)

	// FullResync diffs the vault listing against the cache and emits a
	// synthetic change for every drifted path.
	FullResync(ctx context.Context) (*domain.ResyncReport, error)

	// PurgeTombstones removes tombstones older than the retention window.
	PurgeTombstones(ctx context.Context) (int, error)
}
