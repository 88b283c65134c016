package driven

import (
	"context"
	"time"

	"github.com/weave-nn/weaver/internal/core/domain"
)

// EntryStore persists shadow cache entries and their tag and link relations.
// Every write is atomic: the entry row and its relations commit together or
// not at all. Failures wrap domain.ErrStorage.
type EntryStore interface {
	// Get returns the entry for a path, live or tombstoned.
	// Returns domain.ErrNotFound if the path was never stored or was purged.
	Get(ctx context.Context, path string) (*domain.VaultEntry, error)

	// Put writes the entry row and replaces its tag and link rows wholesale.
	Put(ctx context.Context, entry *domain.VaultEntry) error

	// Touch updates only the last-seen time and sequence of an entry.
	Touch(ctx context.Context, path string, seenAt time.Time, sequence int64) error

	// Query returns one page of matching entries ordered by path.
	Query(ctx context.Context, filter domain.EntryFilter, page domain.Page) (*domain.EntryPage, error)

	// Count aggregates entries matching filter.
	Count(ctx context.Context, filter domain.EntryFilter) (*domain.EntryCounts, error)

	// Snapshot returns the digest of every stored entry, tombstones included.
	Snapshot(ctx context.Context) ([]domain.EntryDigest, error)

	// PurgeTombstones removes tombstones deleted before the cutoff and
	// returns how many were removed.
	PurgeTombstones(ctx context.Context, before time.Time) (int, error)

	// MaxSequence returns the highest sequence stored, or 0.
	MaxSequence(ctx context.Context) (int64, error)
}
