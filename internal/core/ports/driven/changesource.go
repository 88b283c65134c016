package driven

import (
	"context"

	"github.com/weave-nn/weaver/internal/core/domain"
)

// ChangeSource observes a vault file tree.
// Every path it reports or accepts is vault-relative and POSIX-normalised.
type ChangeSource interface {
	// Root returns the absolute vault directory.
	Root() string

	// Watch starts streaming raw change notifications.
	// The channel closes when ctx is cancelled or the underlying watcher
	// fails. A close before ctx is done is a disconnect; callers reconnect
	// by calling Watch again.
	Watch(ctx context.Context) (<-chan domain.RawChange, error)

	// List returns every file currently present, sorted by path.
	// Ignore patterns are applied by the caller, not the source.
	List(ctx context.Context) ([]string, error)

	// Read returns the raw bytes of a file.
	// Returns domain.ErrNotFound if the file no longer exists.
	Read(ctx context.Context, path string) ([]byte, error)

	// Close releases watcher resources.
	Close() error
}
