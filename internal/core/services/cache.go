package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/weave-nn/weaver/internal/core/domain"
	"github.com/weave-nn/weaver/internal/core/ports/driven"
	"github.com/weave-nn/weaver/internal/core/ports/driving"
	"github.com/weave-nn/weaver/internal/logger"
)

// Ensure ShadowCache implements the interface.
var _ driving.ShadowCache = (*ShadowCache)(nil)

// Cache write outcomes reported to metrics.
const (
	outcomeCreated   = "created"
	outcomeModified  = "modified"
	outcomeRemoved   = "removed"
	outcomeUnchanged = "unchanged"
	outcomeStale     = "stale"
)

// ShadowCache owns the vault entry rows. It reads file content through the
// change source, gates fact extraction on the content hash and serialises
// writers per path.
type ShadowCache struct {
	store     driven.EntryStore
	source    driven.ChangeSource
	extractor driven.FactExtractor
	filter    *PathFilter
	retention time.Duration
	metrics   driven.Metrics

	// notify receives resync drift. When nil, drift is applied directly.
	notify func(domain.RawChange)

	locks *keyedMutex
	now   func() time.Time
}

// NewShadowCache creates a shadow cache.
func NewShadowCache(
	store driven.EntryStore,
	source driven.ChangeSource,
	extractor driven.FactExtractor,
	filter *PathFilter,
	retention time.Duration,
	metrics driven.Metrics,
) *ShadowCache {
	return &ShadowCache{
		store:     store,
		source:    source,
		extractor: extractor,
		filter:    filter,
		retention: retention,
		metrics:   metricsOrNop(metrics),
		locks:     newKeyedMutex(),
		now:       time.Now,
	}
}

// SetNotifier routes resync drift through fn, typically the normalizer's
// Notify, so synthetic changes are sequenced like watcher changes.
func (c *ShadowCache) SetNotifier(fn func(domain.RawChange)) {
	c.notify = fn
}

// Apply reads the event's file and updates its entry.
func (c *ShadowCache) Apply(ctx context.Context, event domain.VaultEvent) (domain.UpsertResult, error) {
	if event.ChangeKind == domain.ChangeRemoved {
		return c.Tombstone(ctx, event)
	}

	content, err := c.source.Read(ctx, event.Path)
	if errors.Is(err, domain.ErrNotFound) {
		// Removed before the event was processed.
		logger.Debug("File vanished before apply: %s", event.Path)
		return c.Tombstone(ctx, event)
	}
	if err != nil {
		return domain.UpsertResult{}, fmt.Errorf("read %s: %w", event.Path, err)
	}

	unlock := c.locks.Lock(event.Path)
	defer unlock()

	existing, err := c.getExisting(ctx, event.Path)
	if err != nil {
		return domain.UpsertResult{}, err
	}
	if isStale(existing, event) {
		c.metrics.CacheWrite(outcomeStale)
		return domain.UpsertResult{Entry: existing, Stale: true}, nil
	}

	hash := c.extractor.ContentHash(content)
	if existing != nil && !existing.Deleted && existing.ContentHash == hash {
		return c.touchLocked(ctx, existing, event)
	}

	facts := c.extractor.Extract(event.Path, content)
	facts.ContentHash = hash
	return c.writeLocked(ctx, existing, event, facts)
}

// Upsert writes pre-extracted facts for an event.
func (c *ShadowCache) Upsert(ctx context.Context, event domain.VaultEvent, facts domain.Facts) (domain.UpsertResult, error) {
	event.Path = domain.NormalisePath(event.Path)
	if event.Path == "" {
		return domain.UpsertResult{}, fmt.Errorf("%w: empty path", domain.ErrInvalidInput)
	}

	unlock := c.locks.Lock(event.Path)
	defer unlock()

	existing, err := c.getExisting(ctx, event.Path)
	if err != nil {
		return domain.UpsertResult{}, err
	}
	if isStale(existing, event) {
		c.metrics.CacheWrite(outcomeStale)
		return domain.UpsertResult{Entry: existing, Stale: true}, nil
	}
	if existing != nil && !existing.Deleted && existing.ContentHash == facts.ContentHash {
		return c.touchLocked(ctx, existing, event)
	}
	return c.writeLocked(ctx, existing, event, facts)
}

// Tombstone marks the event's path deleted.
// Unknown paths and existing tombstones produce no notification.
func (c *ShadowCache) Tombstone(ctx context.Context, event domain.VaultEvent) (domain.UpsertResult, error) {
	unlock := c.locks.Lock(event.Path)
	defer unlock()

	existing, err := c.getExisting(ctx, event.Path)
	if err != nil {
		return domain.UpsertResult{}, err
	}
	if existing == nil {
		return domain.UpsertResult{}, nil
	}
	if isStale(existing, event) {
		c.metrics.CacheWrite(outcomeStale)
		return domain.UpsertResult{Entry: existing, Stale: true}, nil
	}
	if existing.Deleted {
		return c.touchLocked(ctx, existing, event)
	}

	now := c.now()
	entry := *existing
	entry.Deleted = true
	entry.DeletedAt = now
	entry.LastSeenAt = now
	entry.Sequence = maxSequence(existing.Sequence, event.Sequence)
	if err := c.store.Put(ctx, &entry); err != nil {
		return domain.UpsertResult{}, fmt.Errorf("tombstone %s: %w", event.Path, err)
	}

	c.metrics.CacheWrite(outcomeRemoved)
	logger.Debug("Tombstoned %s", event.Path)
	return domain.UpsertResult{Entry: &entry, Changed: true}, nil
}

// Get returns the entry for a path.
func (c *ShadowCache) Get(ctx context.Context, path string) (*domain.VaultEntry, error) {
	return c.store.Get(ctx, domain.NormalisePath(path))
}

// Query returns one page of matching entries.
func (c *ShadowCache) Query(ctx context.Context, filter domain.EntryFilter, page domain.Page) (*domain.EntryPage, error) {
	return c.store.Query(ctx, filter, page)
}

// Count aggregates matching entries.
func (c *ShadowCache) Count(ctx context.Context, filter domain.EntryFilter) (*domain.EntryCounts, error) {
	return c.store.Count(ctx, filter)
}

// FullResync diffs the vault listing against the cache.
// Unchanged files cause no writes, so a second pass over a quiet vault
// reports zero drift.
func (c *ShadowCache) FullResync(ctx context.Context) (*domain.ResyncReport, error) {
	start := c.now()
	logger.Section("Vault Resync")

	files, err := c.source.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list vault: %w", err)
	}
	digests, err := c.store.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot cache: %w", err)
	}

	known := make(map[string]domain.EntryDigest, len(digests))
	for _, d := range digests {
		known[d.Path] = d
	}

	report := &domain.ResyncReport{}
	present := make(map[string]struct{}, len(files))

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := domain.NormalisePath(file)
		if path == "" || c.filter.Ignored(path) {
			continue
		}
		present[path] = struct{}{}
		report.Scanned++

		d, ok := known[path]
		if !ok || d.Deleted {
			report.Created++
			report.Events = append(report.Events, c.drift(path, domain.ChangeCreated, start))
			continue
		}

		content, err := c.source.Read(ctx, path)
		if errors.Is(err, domain.ErrNotFound) {
			// Removed during the walk; handled as absent below.
			delete(present, path)
			report.Scanned--
			continue
		}
		if err != nil {
			logger.Warn("Resync: failed to read %s: %v", path, err)
			continue
		}
		if c.extractor.ContentHash(content) != d.ContentHash {
			report.Modified++
			report.Events = append(report.Events, c.drift(path, domain.ChangeModified, start))
			continue
		}
		report.Unchanged++
	}

	for _, d := range digests {
		if d.Deleted {
			continue
		}
		if _, ok := present[d.Path]; ok {
			continue
		}
		report.Removed++
		report.Events = append(report.Events, c.drift(d.Path, domain.ChangeRemoved, start))
	}

	if err := c.emit(ctx, report.Events); err != nil {
		return nil, err
	}

	report.Duration = c.now().Sub(start)
	c.metrics.Resync(report.Drift(), report.Duration)
	logger.Info("Resync: scanned %d, created %d, modified %d, removed %d",
		report.Scanned, report.Created, report.Modified, report.Removed)
	return report, nil
}

// PurgeTombstones removes tombstones older than the retention window.
func (c *ShadowCache) PurgeTombstones(ctx context.Context) (int, error) {
	cutoff := c.now().Add(-c.retention)
	n, err := c.store.PurgeTombstones(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge tombstones: %w", err)
	}
	if n > 0 {
		logger.Info("Purged %d tombstones deleted before %s", n, cutoff.Format(time.RFC3339))
	}
	return n, nil
}

// emit delivers resync drift to the notifier, or applies it directly.
func (c *ShadowCache) emit(ctx context.Context, changes []domain.RawChange) error {
	for _, change := range changes {
		if c.notify != nil {
			c.notify(change)
			continue
		}
		event := domain.VaultEvent{
			Path:       change.Path,
			ChangeKind: change.Kind,
			ObservedAt: change.ObservedAt,
			Synthetic:  true,
		}
		if _, err := c.Apply(ctx, event); err != nil {
			return fmt.Errorf("apply drift %s: %w", change.Path, err)
		}
	}
	return nil
}

func (c *ShadowCache) drift(path string, kind domain.ChangeKind, at time.Time) domain.RawChange {
	logger.Debug("Drift: %s %s", kind, path)
	return domain.RawChange{Path: path, Kind: kind, ObservedAt: at, Synthetic: true}
}

// getExisting returns the stored entry, or nil when none exists.
func (c *ShadowCache) getExisting(ctx context.Context, path string) (*domain.VaultEntry, error) {
	existing, err := c.store.Get(ctx, path)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	return existing, nil
}

// touchLocked refreshes last-seen time without recomputing facts.
func (c *ShadowCache) touchLocked(ctx context.Context, existing *domain.VaultEntry, event domain.VaultEvent) (domain.UpsertResult, error) {
	now := c.now()
	seq := maxSequence(existing.Sequence, event.Sequence)
	if err := c.store.Touch(ctx, existing.Path, now, seq); err != nil {
		return domain.UpsertResult{}, fmt.Errorf("touch %s: %w", existing.Path, err)
	}
	entry := *existing
	entry.LastSeenAt = now
	entry.Sequence = seq
	c.metrics.CacheWrite(outcomeUnchanged)
	return domain.UpsertResult{Entry: &entry}, nil
}

// writeLocked writes the entry with fresh facts. The store replaces tag
// and link rows in the same transaction.
func (c *ShadowCache) writeLocked(
	ctx context.Context,
	existing *domain.VaultEntry,
	event domain.VaultEvent,
	facts domain.Facts,
) (domain.UpsertResult, error) {
	now := c.now()
	modifiedAt := event.ObservedAt
	if modifiedAt.IsZero() {
		modifiedAt = now
	}

	entry := &domain.VaultEntry{
		Path:           event.Path,
		LastSeenAt:     now,
		LastModifiedAt: modifiedAt,
		Sequence:       event.Sequence,
	}
	if existing != nil {
		entry.Sequence = maxSequence(existing.Sequence, event.Sequence)
	}
	entry.ApplyFacts(facts)

	if err := c.store.Put(ctx, entry); err != nil {
		return domain.UpsertResult{}, fmt.Errorf("upsert %s: %w", event.Path, err)
	}

	created := existing == nil || existing.Deleted
	if created {
		c.metrics.CacheWrite(outcomeCreated)
	} else {
		c.metrics.CacheWrite(outcomeModified)
	}
	logger.Debug("Upserted %s (hash %s, %d tags, %d links)",
		entry.Path, entry.ContentHash, len(entry.Tags), len(entry.OutboundLinks))
	return domain.UpsertResult{Entry: entry, Created: created, Changed: true}, nil
}

// isStale reports whether event predates the stored entry. Unsequenced
// events are never stale.
func isStale(existing *domain.VaultEntry, event domain.VaultEvent) bool {
	return existing != nil && event.Sequence != 0 && event.Sequence < existing.Sequence
}

func maxSequence(a, b int64) int64 {
	if b > a {
		return b
	}
	return a
}
