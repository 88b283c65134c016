package services

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/weave-nn/weaver/internal/core/domain"
	"github.com/weave-nn/weaver/internal/core/ports/driven"
	"github.com/weave-nn/weaver/internal/core/ports/driving"
	"github.com/weave-nn/weaver/internal/logger"
)

// Ensure Normalizer implements the interface.
var _ driving.EventNormalizer = (*Normalizer)(nil)

// eventBuffer is the capacity of the emitted event channel.
const eventBuffer = 256

// defaultReconnectInterval spaces reconnection attempts after a disconnect.
const defaultReconnectInterval = 2 * time.Second

// pendingChange is the debounce state of one path.
type pendingChange struct {
	kind       domain.ChangeKind
	observedAt time.Time
	synthetic  bool
	gen        uint64
	timer      *time.Timer
}

// Normalizer debounces raw change notifications into vault events.
//
// Each path has its own trailing-edge timer; a notification for a pending
// path resets it. When a timer fires the event is stamped from a shared
// monotonic clock and appended to a FIFO drained by a single dispatcher, so
// emission order equals sequence order.
type Normalizer struct {
	source   driven.ChangeSource
	filter   *PathFilter
	debounce time.Duration
	clock    *Clock
	metrics  driven.Metrics

	reconnect *rate.Limiter
	resync    func(ctx context.Context) error

	mu      sync.Mutex
	pending map[string]*pendingChange
	queue   []domain.VaultEvent
	gen     uint64
	stopped bool

	signal   chan struct{}
	out      chan domain.VaultEvent
	degraded atomic.Bool
}

// NewNormalizer creates a normalizer.
// The clock should be seeded above any sequence already persisted.
func NewNormalizer(
	source driven.ChangeSource,
	filter *PathFilter,
	debounce time.Duration,
	clock *Clock,
	metrics driven.Metrics,
) *Normalizer {
	return &Normalizer{
		source:    source,
		filter:    filter,
		debounce:  debounce,
		clock:     clock,
		metrics:   metricsOrNop(metrics),
		reconnect: rate.NewLimiter(rate.Every(defaultReconnectInterval), 1),
		pending:   make(map[string]*pendingChange),
		signal:    make(chan struct{}, 1),
		out:       make(chan domain.VaultEvent, eventBuffer),
	}
}

// SetRecoveryHook installs the function run after the change source
// reconnects. It is typically the shadow cache's full resync.
func (n *Normalizer) SetRecoveryHook(fn func(ctx context.Context) error) {
	n.resync = fn
}

// SetReconnectInterval overrides the spacing of reconnection attempts.
func (n *Normalizer) SetReconnectInterval(d time.Duration) {
	n.reconnect = rate.NewLimiter(rate.Every(d), 1)
}

// Events returns the stream of emitted vault events.
func (n *Normalizer) Events() <-chan domain.VaultEvent {
	return n.out
}

// Degraded reports whether the change source is disconnected.
func (n *Normalizer) Degraded() bool {
	return n.degraded.Load()
}

// Run consumes the change source until ctx is cancelled.
func (n *Normalizer) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		n.dispatch(ctx)
	}()

	defer func() {
		n.shutdown()
		wg.Wait()
		close(n.out)
	}()

	for {
		changes, err := n.source.Watch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			n.setDegraded(true)
			logger.Warn("Change source unavailable: %v", err)
			if werr := n.reconnect.Wait(ctx); werr != nil {
				return nil
			}
			continue
		}

		if n.Degraded() {
			n.setDegraded(false)
			logger.Info("Change source reconnected, resyncing vault")
			if n.resync != nil {
				if rerr := n.resync(ctx); rerr != nil {
					logger.Warn("Resync after reconnect failed: %v", rerr)
				}
			}
		}

		for change := range changes {
			n.Notify(change)
		}

		if ctx.Err() != nil {
			return nil
		}
		n.setDegraded(true)
		logger.Warn("Change source disconnected, reconnecting")
		if werr := n.reconnect.Wait(ctx); werr != nil {
			return nil
		}
	}
}

// Notify folds a raw change into the debounce window of its path.
func (n *Normalizer) Notify(change domain.RawChange) {
	path := domain.NormalisePath(change.Path)
	if path == "" || !change.Kind.IsValid() {
		return
	}
	if n.filter.Ignored(path) {
		return
	}
	if change.ObservedAt.IsZero() {
		change.ObservedAt = time.Now()
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.stopped {
		return
	}

	n.gen++
	gen := n.gen
	p, ok := n.pending[path]
	if !ok {
		p = &pendingChange{synthetic: change.Synthetic}
		n.pending[path] = p
	} else {
		p.timer.Stop()
		p.synthetic = p.synthetic && change.Synthetic
	}
	p.kind = change.Kind
	p.observedAt = change.ObservedAt
	p.gen = gen
	p.timer = time.AfterFunc(n.debounce, func() { n.fire(path, gen) })
}

// fire emits the pending change for path if gen is still current.
func (n *Normalizer) fire(path string, gen uint64) {
	n.mu.Lock()
	p, ok := n.pending[path]
	if !ok || p.gen != gen || n.stopped {
		n.mu.Unlock()
		return
	}
	delete(n.pending, path)

	event := domain.VaultEvent{
		Path:       path,
		ChangeKind: p.kind,
		ObservedAt: p.observedAt,
		Sequence:   n.clock.Next(),
		Synthetic:  p.synthetic,
	}
	n.queue = append(n.queue, event)
	n.mu.Unlock()

	select {
	case n.signal <- struct{}{}:
	default:
	}
}

// dispatch drains the FIFO onto the output channel.
func (n *Normalizer) dispatch(ctx context.Context) {
	for {
		n.mu.Lock()
		for len(n.queue) == 0 {
			n.mu.Unlock()
			select {
			case <-n.signal:
			case <-ctx.Done():
				return
			}
			n.mu.Lock()
		}
		event := n.queue[0]
		n.queue = n.queue[1:]
		n.mu.Unlock()

		select {
		case n.out <- event:
			logger.Debug("Event %d: %s %s", event.Sequence, event.ChangeKind, event.Path)
			n.metrics.EventEmitted(event.ChangeKind.String())
		case <-ctx.Done():
			return
		}
	}
}

// shutdown stops every pending timer. Changes still inside their debounce
// window are dropped; the startup resync picks them up.
func (n *Normalizer) shutdown() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stopped = true
	if dropped := len(n.pending) + len(n.queue); dropped > 0 {
		logger.Debug("Dropping %d undelivered changes on shutdown", dropped)
	}
	for path, p := range n.pending {
		p.timer.Stop()
		delete(n.pending, path)
	}
	n.queue = nil
}

func (n *Normalizer) setDegraded(degraded bool) {
	n.degraded.Store(degraded)
	n.metrics.SetDegraded(degraded)
}
