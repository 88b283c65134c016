package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/weave-nn/weaver/internal/core/domain"
	"github.com/weave-nn/weaver/internal/core/ports/driven"
)

// fakeWatch is one open watch on a fakeSource.
type fakeWatch struct {
	ch   chan domain.RawChange
	once sync.Once
}

func (w *fakeWatch) close() { w.once.Do(func() { close(w.ch) }) }

// fakeSource is an in-memory change source. Files live in a map; watches
// are driven by the test through send and disconnect.
type fakeSource struct {
	mu        sync.Mutex
	files     map[string][]byte
	failWatch int
	readErr   error
	current   *fakeWatch
	watched   chan struct{}
	watches   int
}

func newFakeSource(files map[string]string) *fakeSource {
	s := &fakeSource{
		files:   make(map[string][]byte),
		watched: make(chan struct{}, 16),
	}
	for p, c := range files {
		s.files[p] = []byte(c)
	}
	return s
}

func (s *fakeSource) Root() string { return "/vault" }

func (s *fakeSource) Watch(ctx context.Context) (<-chan domain.RawChange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWatch > 0 {
		s.failWatch--
		return nil, errors.New("watcher unavailable")
	}
	w := &fakeWatch{ch: make(chan domain.RawChange, 64)}
	s.current = w
	s.watches++
	go func() {
		<-ctx.Done()
		w.close()
	}()
	select {
	case s.watched <- struct{}{}:
	default:
	}
	return w.ch, nil
}

func (s *fakeSource) List(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.files))
	for p := range s.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

func (s *fakeSource) Read(_ context.Context, path string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	c, ok := s.files[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return append([]byte(nil), c...), nil
}

func (s *fakeSource) Close() error { return nil }

func (s *fakeSource) write(path, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = []byte(content)
}

func (s *fakeSource) remove(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, path)
}

func (s *fakeSource) send(change domain.RawChange) {
	s.mu.Lock()
	w := s.current
	s.mu.Unlock()
	w.ch <- change
}

func (s *fakeSource) disconnect() {
	s.mu.Lock()
	w := s.current
	s.mu.Unlock()
	w.close()
}

func (s *fakeSource) waitWatch(t *testing.T) {
	t.Helper()
	select {
	case <-s.watched:
	case <-time.After(2 * time.Second):
		t.Fatal("change source was never watched")
	}
}

// fakeExtractor understands a line format: "kind: x", "status: x",
// "tag: x" and "link: x". The content itself is its hash.
type fakeExtractor struct {
	mu      sync.Mutex
	extract int
}

func (e *fakeExtractor) ContentHash(content []byte) string {
	return fmt.Sprintf("h:%x", content)
}

func (e *fakeExtractor) Extract(_ string, content []byte) domain.Facts {
	e.mu.Lock()
	e.extract++
	e.mu.Unlock()

	var f domain.Facts
	for _, line := range strings.Split(string(content), "\n") {
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		val = strings.TrimSpace(val)
		switch strings.TrimSpace(key) {
		case "kind":
			f.Kind = val
		case "status":
			f.Status = val
		case "tag":
			f.Tags = append(f.Tags, val)
		case "link":
			f.OutboundLinks = append(f.OutboundLinks, val)
		}
	}
	return f
}

func (e *fakeExtractor) calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.extract
}

var _ driven.FactExtractor = (*fakeExtractor)(nil)

// flakyEntryStore fails Put while failPuts is positive.
type flakyEntryStore struct {
	driven.EntryStore
	mu       sync.Mutex
	failPuts int
}

func (s *flakyEntryStore) Put(ctx context.Context, entry *domain.VaultEntry) error {
	s.mu.Lock()
	if s.failPuts > 0 {
		s.failPuts--
		s.mu.Unlock()
		return fmt.Errorf("%w: disk I/O error", domain.ErrStorage)
	}
	s.mu.Unlock()
	return s.EntryStore.Put(ctx, entry)
}

// fakeCatalog resolves step types to test bodies.
type fakeCatalog map[string]driven.Step

func (c fakeCatalog) Get(stepType string) (driven.Step, error) {
	s, ok := c[stepType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedType, stepType)
	}
	return s, nil
}

func (c fakeCatalog) Types() []string {
	out := make([]string, 0, len(c))
	for t := range c {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// stepRecorder counts invocations per step name.
type stepRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *stepRecorder) record(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, name)
}

func (r *stepRecorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *stepRecorder) count(name string) int {
	n := 0
	for _, c := range r.names() {
		if c == name {
			n++
		}
	}
	return n
}

// okStep records its name and succeeds.
func (r *stepRecorder) okStep() driven.Step {
	return driven.StepFunc(func(_ context.Context, in *domain.StepInput) (domain.StepOutput, error) {
		r.record(in.Spec.Name)
		return domain.StepOutput{"step": in.Spec.Name, "attempt": in.Attempt}, nil
	})
}

// flakyStep fails the first n attempts of each step with a retryable error.
func (r *stepRecorder) flakyStep(n int) driven.Step {
	return driven.StepFunc(func(_ context.Context, in *domain.StepInput) (domain.StepOutput, error) {
		r.record(in.Spec.Name)
		if in.Attempt <= n {
			return nil, fmt.Errorf("transient failure %d", in.Attempt)
		}
		return domain.StepOutput{"attempt": in.Attempt}, nil
	})
}

// blockingStep blocks until release is closed or its context ends.
func (r *stepRecorder) blockingStep(started chan<- string, release <-chan struct{}) driven.Step {
	return driven.StepFunc(func(ctx context.Context, in *domain.StepInput) (domain.StepOutput, error) {
		r.record(in.Spec.Name)
		select {
		case started <- in.ExecutionID:
		default:
		}
		select {
		case <-release:
			return domain.StepOutput{}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
}

func permanentStep(msg string) driven.Step {
	return driven.StepFunc(func(context.Context, *domain.StepInput) (domain.StepOutput, error) {
		return nil, domain.Permanent(errors.New(msg))
	})
}

func testEngineSettings() domain.EngineSettings {
	return domain.EngineSettings{
		Workers:          2,
		MaxStepRetries:   2,
		BackoffBase:      time.Millisecond,
		BackoffMax:       5 * time.Millisecond,
		StepTimeout:      time.Second,
		RetryPolicy:      domain.RetryPolicyStep,
		MaxManualRetries: 2,
	}
}

func stepSpecs(types ...string) []domain.StepSpec {
	out := make([]domain.StepSpec, len(types))
	for i, t := range types {
		out[i] = domain.StepSpec{Name: fmt.Sprintf("step%d", i+1), Type: t}
	}
	return out
}

func workflow(id string, policy domain.ConcurrencyPolicy, patterns []string, stepTypes ...string) domain.WorkflowDefinition {
	return domain.WorkflowDefinition{
		ID:              id,
		TriggerPatterns: patterns,
		Steps:           stepSpecs(stepTypes...),
		Enabled:         true,
		Concurrency:     policy,
	}
}

func mustRegister(t *testing.T, r *Registry, defs ...domain.WorkflowDefinition) {
	t.Helper()
	for _, d := range defs {
		require.NoError(t, r.Register(d))
	}
}

func waitForState(t *testing.T, e *Engine, id string, want domain.ExecutionState) *domain.ExecutionRecord {
	t.Helper()
	var rec *domain.ExecutionRecord
	require.Eventually(t, func() bool {
		got, err := e.Get(context.Background(), id)
		if err != nil {
			return false
		}
		rec = got
		return got.State == want
	}, 3*time.Second, 5*time.Millisecond, "execution %s never reached %s", id, want)
	return rec
}

func modified(path string, seq int64) domain.VaultEvent {
	return domain.VaultEvent{Path: path, ChangeKind: domain.ChangeModified, ObservedAt: time.Now(), Sequence: seq}
}
