package domain

import (
	"path"
	"strings"
	"time"
)

// ChangeKind is the kind of change observed for a vault path.
type ChangeKind string

// Change kinds.
const (
	// ChangeCreated indicates a new file.
	ChangeCreated ChangeKind = "created"

	// ChangeModified indicates a written file.
	ChangeModified ChangeKind = "modified"

	// ChangeRemoved indicates a deleted or moved-away file.
	ChangeRemoved ChangeKind = "removed"
)

// IsValid returns true if the change kind is recognised.
func (k ChangeKind) IsValid() bool {
	switch k {
	case ChangeCreated, ChangeModified, ChangeRemoved:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (k ChangeKind) String() string {
	return string(k)
}

// RawChange is a single notification from the change source.
// Raw changes carry no ordering guarantee.
type RawChange struct {
	// Path is the vault-relative path.
	Path string

	// Kind is the observed change kind.
	Kind ChangeKind

	// ObservedAt is when the source saw the change.
	ObservedAt time.Time

	// Synthetic marks changes produced by a resync rather than a watcher.
	Synthetic bool
}

// VaultEvent is the canonical, debounced unit of change for one path.
// A VaultEvent is immutable once emitted.
type VaultEvent struct {
	// Path is the vault-relative, POSIX-normalised path.
	Path string `json:"path"`

	// ChangeKind is the last change kind observed within the debounce window.
	ChangeKind ChangeKind `json:"change_kind"`

	// ObservedAt is the time of the last raw notification folded into this event.
	ObservedAt time.Time `json:"observed_at"`

	// Sequence increases monotonically per path.
	Sequence int64 `json:"sequence"`

	// Synthetic marks events produced by a resync or a manual trigger.
	Synthetic bool `json:"synthetic,omitempty"`
}

// NormalisePath converts a vault-relative path to canonical POSIX form.
// Parent references cannot climb above the vault root; an empty result
// denotes the root itself.
func NormalisePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean("/" + p)
	p = strings.TrimPrefix(p, "/")
	if p == "" || p == "." {
		return ""
	}
	return p
}
