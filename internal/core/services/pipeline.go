package services

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/weave-nn/weaver/internal/core/domain"
	"github.com/weave-nn/weaver/internal/core/ports/driving"
	"github.com/weave-nn/weaver/internal/logger"
)

// shardBuffer is the capacity of each ingest shard.
const shardBuffer = 64

// Pipeline carries normalised events into the shadow cache and, for real
// changes, through the trigger matcher into the engine.
//
// Events are sharded by path so one path is always handled by the same
// worker in sequence order, while different paths proceed in parallel.
type Pipeline struct {
	normalizer driving.EventNormalizer
	cache      driving.ShadowCache
	matcher    driving.TriggerMatcher
	engine     driving.ExecutionEngine
	workers    int

	retryBase time.Duration
	retryMax  time.Duration
}

// NewPipeline creates an ingest pipeline.
func NewPipeline(
	normalizer driving.EventNormalizer,
	cache driving.ShadowCache,
	matcher driving.TriggerMatcher,
	engine driving.ExecutionEngine,
	workers int,
) *Pipeline {
	if workers <= 0 {
		workers = 1
	}
	return &Pipeline{
		normalizer: normalizer,
		cache:      cache,
		matcher:    matcher,
		engine:     engine,
		workers:    workers,
		retryBase:  100 * time.Millisecond,
		retryMax:   10 * time.Second,
	}
}

// Run starts the normalizer and processes its events until ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	shards := make([]chan domain.VaultEvent, p.workers)
	var wg sync.WaitGroup
	for i := range shards {
		shards[i] = make(chan domain.VaultEvent, shardBuffer)
		wg.Add(1)
		go func(ch <-chan domain.VaultEvent) {
			defer wg.Done()
			for ev := range ch {
				p.Process(ctx, ev)
			}
		}(shards[i])
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- p.normalizer.Run(ctx)
	}()

	for ev := range p.normalizer.Events() {
		shards[shardOf(ev.Path, len(shards))] <- ev
	}
	for _, ch := range shards {
		close(ch)
	}
	wg.Wait()
	return <-errCh
}

// Process applies one event and submits the requests it triggers.
// Storage failures are retried until they succeed or ctx is cancelled;
// an event is never skipped because the store was unavailable.
func (p *Pipeline) Process(ctx context.Context, ev domain.VaultEvent) {
	var result domain.UpsertResult
	err := p.retry(ctx, "apply "+ev.Path, func() error {
		var err error
		result, err = p.cache.Apply(ctx, ev)
		if err != nil && !errors.Is(err, domain.ErrStorage) {
			return backoff.Permanent(err)
		}
		return err
	})
	if err != nil {
		if ctx.Err() == nil {
			logger.Warn("Skipping event %d for %s: %v", ev.Sequence, ev.Path, err)
		}
		return
	}
	if !result.Notify() {
		return
	}

	for _, req := range p.matcher.Match(ev) {
		p.submit(ctx, req)
	}
}

// submit hands a request to the engine, passing its slot on if it cannot
// be accepted.
func (p *Pipeline) submit(ctx context.Context, req domain.ExecutionRequest) {
	for {
		err := p.retry(ctx, "submit "+req.RequestID, func() error {
			_, err := p.engine.Submit(ctx, req)
			if err != nil && !errors.Is(err, domain.ErrStorage) {
				return backoff.Permanent(err)
			}
			return err
		})
		if err == nil {
			return
		}
		logger.Warn("Dropping request %s for %s: %v", req.RequestID, req.WorkflowID, err)
		next := p.matcher.Release(&req)
		if next == nil {
			return
		}
		req = *next
	}
}

func (p *Pipeline) retry(ctx context.Context, what string, op func() error) error {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.retryBase
	exp.MaxInterval = p.retryMax
	exp.MaxElapsedTime = 0
	return backoff.RetryNotify(op, backoff.WithContext(exp, ctx), func(err error, wait time.Duration) {
		logger.Warn("%s failed, retrying in %s: %v", what, wait, err)
	})
}

// shardOf maps a path to a worker index.
func shardOf(path string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(path))
	return int(h.Sum32() % uint32(n))
}
