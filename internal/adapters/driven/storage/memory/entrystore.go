package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/weave-nn/weaver/internal/core/domain"
	"github.com/weave-nn/weaver/internal/core/ports/driven"
)

// Ensure EntryStore implements the interface.
var _ driven.EntryStore = (*EntryStore)(nil)

// EntryStore is an in-memory implementation of driven.EntryStore.
// Entries are copied on the way in and out so callers never share slices
// with the store.
type EntryStore struct {
	mu      sync.RWMutex
	entries map[string]domain.VaultEntry
}

// NewEntryStore creates a new in-memory entry store.
func NewEntryStore() *EntryStore {
	return &EntryStore{
		entries: make(map[string]domain.VaultEntry),
	}
}

// Get retrieves an entry by path.
func (s *EntryStore) Get(_ context.Context, path string) (*domain.VaultEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := copyEntry(e)
	return &out, nil
}

// Put stores an entry with its tags and links.
func (s *EntryStore) Put(_ context.Context, entry *domain.VaultEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.Path] = copyEntry(*entry)
	return nil
}

// Touch updates the last-seen time and sequence of an entry.
func (s *EntryStore) Touch(_ context.Context, path string, seenAt time.Time, sequence int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[path]
	if !ok {
		return domain.ErrNotFound
	}
	e.LastSeenAt = seenAt
	e.Sequence = sequence
	s.entries[path] = e
	return nil
}

// Query returns one page of matching entries ordered by path.
func (s *EntryStore) Query(_ context.Context, filter domain.EntryFilter, page domain.Page) (*domain.EntryPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := page.EffectiveLimit()
	matched := make([]domain.VaultEntry, 0)
	for _, e := range s.entries {
		if page.After != "" && e.Path <= page.After {
			continue
		}
		if filter.Matches(&e) {
			matched = append(matched, e)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Path < matched[j].Path })

	result := &domain.EntryPage{Entries: make([]domain.VaultEntry, 0, min(limit, len(matched)))}
	for i, e := range matched {
		if i == limit {
			result.NextCursor = result.Entries[limit-1].Path
			break
		}
		result.Entries = append(result.Entries, copyEntry(e))
	}
	return result, nil
}

// Count aggregates entries matching filter.
func (s *EntryStore) Count(_ context.Context, filter domain.EntryFilter) (*domain.EntryCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := &domain.EntryCounts{
		ByKind:   make(map[string]int),
		ByStatus: make(map[string]int),
		ByTag:    make(map[string]int),
	}
	for _, e := range s.entries {
		if !filter.Matches(&e) {
			continue
		}
		counts.Total++
		if e.Deleted {
			counts.Deleted++
		} else {
			counts.Live++
		}
		if e.Kind != "" {
			counts.ByKind[e.Kind]++
		}
		if e.Status != "" {
			counts.ByStatus[e.Status]++
		}
		for _, t := range e.Tags {
			counts.ByTag[t]++
		}
	}
	return counts, nil
}

// Snapshot returns the digest of every stored entry.
func (s *EntryStore) Snapshot(_ context.Context) ([]domain.EntryDigest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.EntryDigest, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, domain.EntryDigest{Path: e.Path, ContentHash: e.ContentHash, Deleted: e.Deleted})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// PurgeTombstones removes tombstones deleted before the cutoff.
func (s *EntryStore) PurgeTombstones(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	purged := 0
	for path, e := range s.entries {
		if e.Deleted && e.DeletedAt.Before(before) {
			delete(s.entries, path)
			purged++
		}
	}
	return purged, nil
}

// MaxSequence returns the highest stored sequence.
func (s *EntryStore) MaxSequence(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var highest int64
	for _, e := range s.entries {
		if e.Sequence > highest {
			highest = e.Sequence
		}
	}
	return highest, nil
}

func copyEntry(e domain.VaultEntry) domain.VaultEntry {
	e.Tags = append([]string{}, e.Tags...)
	e.OutboundLinks = append([]string{}, e.OutboundLinks...)
	return e
}
