package services

import (
	"context"
	"sync"
)

// workQueue is an unbounded FIFO of execution IDs. An ID is held at most
// once until it is popped.
type workQueue struct {
	mu     sync.Mutex
	items  []string
	queued map[string]struct{}
	closed bool
	signal chan struct{}
	done   chan struct{}
}

func newWorkQueue() *workQueue {
	return &workQueue{
		queued: make(map[string]struct{}),
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Push appends id unless it is already queued. Returns false once closed.
func (q *workQueue) Push(id string) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	if _, ok := q.queued[id]; !ok {
		q.queued[id] = struct{}{}
		q.items = append(q.items, id)
	}
	q.mu.Unlock()
	q.wake()
	return true
}

// Pop blocks until an ID is available, the queue is closed or ctx is done.
func (q *workQueue) Pop(ctx context.Context) (string, bool) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return "", false
		}
		if len(q.items) > 0 {
			id := q.items[0]
			q.items = q.items[1:]
			delete(q.queued, id)
			more := len(q.items) > 0
			q.mu.Unlock()
			if more {
				q.wake()
			}
			return id, true
		}
		q.mu.Unlock()

		select {
		case <-q.signal:
		case <-q.done:
			return "", false
		case <-ctx.Done():
			return "", false
		}
	}
}

// Len returns the number of queued IDs.
func (q *workQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close wakes every waiter and rejects further pushes.
func (q *workQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.done)
}

func (q *workQueue) wake() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}
