package driving

import (
	"context"

	"github.com/weave-nn/weaver/internal/core/domain"
)

// EventNormalizer turns raw change notifications into ordered vault events.
type EventNormalizer interface {
	// Run consumes the change source until ctx is cancelled.
	// A source disconnect enters degraded mode and reconnects; it never
	// returns early.
	Run(ctx context.Context) error

	// Events returns the stream of emitted vault events.
	// The channel closes after Run returns.
	Events() <-chan domain.VaultEvent

	// Notify feeds a raw change through the same ignore and debounce path
	// as watcher notifications.
	Notify(change domain.RawChange)

	// Degraded reports whether the change source is disconnected.
	Degraded() bool
}
