package services

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"

	"github.com/weave-nn/weaver/internal/core/domain"
	"github.com/weave-nn/weaver/internal/core/ports/driving"
	"github.com/weave-nn/weaver/internal/logger"
)

// Ensure Matcher implements the interface.
var _ driving.TriggerMatcher = (*Matcher)(nil)

// slot is the in-flight state of one concurrency key: the request holding
// it and the requests queued behind it in arrival order.
type slot struct {
	owner   string
	waiting []*domain.ExecutionRequest
}

// dequeue removes the queued request with the given id.
func (s *slot) dequeue(requestID string) bool {
	for i, w := range s.waiting {
		if w.RequestID == requestID {
			s.waiting = slices.Delete(s.waiting, i, i+1)
			return true
		}
	}
	return false
}

func (s *slot) queued(requestID string) bool {
	return slices.ContainsFunc(s.waiting, func(w *domain.ExecutionRequest) bool {
		return w.RequestID == requestID
	})
}

// Matcher matches vault events against the registry and enforces
// concurrency policies. A request that finds its slot busy is returned
// with Queued set and waits in the slot's FIFO; the slot passes to the
// oldest waiting request when its owner is released.
type Matcher struct {
	registry driving.WorkflowRegistry

	mu     sync.Mutex
	slots  map[string]*slot
	owners map[string]string

	newID func() string
	now   func() time.Time
}

// NewMatcher creates a matcher over a registry.
func NewMatcher(registry driving.WorkflowRegistry) *Matcher {
	return &Matcher{
		registry: registry,
		slots:    make(map[string]*slot),
		owners:   make(map[string]string),
		newID:    uuid.NewString,
		now:      time.Now,
	}
}

// Match returns one request per matching workflow in registration order.
// Requests withheld by a busy slot carry Queued.
func (m *Matcher) Match(event domain.VaultEvent) []domain.ExecutionRequest {
	var out []domain.ExecutionRequest
	for _, info := range m.registry.List(domain.WorkflowFilter{EnabledOnly: true}) {
		patterns, err := m.registry.Patterns(info.Definition.ID)
		if err != nil {
			continue
		}
		if !matchesAny(patterns, event) {
			continue
		}
		ev := event
		req := m.newRequest(info.Definition.ID, &ev, nil, false)
		m.admit(info.Definition.Concurrency, req)
		out = append(out, *req)
	}
	return out
}

// MatchManual builds a request for a workflow regardless of its patterns.
// The request carries Queued when the workflow's slot is busy.
func (m *Matcher) MatchManual(workflowID string, event *domain.VaultEvent, input map[string]any) (*domain.ExecutionRequest, error) {
	info, err := m.registry.Get(workflowID)
	if err != nil {
		return nil, err
	}
	if !info.Enabled {
		return nil, fmt.Errorf("workflow %q: %w", workflowID, domain.ErrWorkflowDisabled)
	}
	req := m.newRequest(workflowID, event, input, true)
	m.admit(info.Definition.Concurrency, req)
	return req, nil
}

// Release frees the slot held by req and hands it to the oldest queued
// request, which is returned. A queued req is withdrawn from its slot.
func (m *Matcher) Release(req *domain.ExecutionRequest) *domain.ExecutionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()

	key, ok := m.owners[req.RequestID]
	if !ok {
		m.withdraw(req)
		return nil
	}
	delete(m.owners, req.RequestID)

	s := m.slots[key]
	if s == nil || s.owner != req.RequestID {
		return nil
	}
	if len(s.waiting) == 0 {
		delete(m.slots, key)
		return nil
	}

	next := s.waiting[0]
	s.waiting = s.waiting[1:]
	s.owner = next.RequestID
	m.owners[next.RequestID] = key
	logger.Debug("Handing slot of %s to queued request %s (%d still queued)", next.WorkflowID, next.RequestID, len(s.waiting))

	out := *next
	out.Queued = false
	return &out
}

// Claim takes the slot for req if it is free or already req's. A request
// queued behind the slot cannot claim it.
func (m *Matcher) Claim(req *domain.ExecutionRequest) bool {
	key := m.keyOf(req)
	if key == "" {
		return true
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.claim(key, req)
}

// Track rebuilds slots from records left unfinished by a previous process.
// Running and suspended records claim first, then pending ones oldest
// first; a record that finds its slot taken is queued behind it. Records
// already known to the matcher are skipped. The queued records are
// returned in queue order.
func (m *Matcher) Track(records []domain.ExecutionRecord) []domain.ExecutionRecord {
	live := make([]domain.ExecutionRecord, 0, len(records))
	for i := range records {
		if !records[i].State.IsTerminal() {
			live = append(live, records[i])
		}
	}
	slices.SortStableFunc(live, func(a, b domain.ExecutionRecord) int {
		if ap, bp := a.State == domain.ExecutionPending, b.State == domain.ExecutionPending; ap != bp {
			if ap {
				return 1
			}
			return -1
		}
		if c := a.StartedAt.Compare(b.StartedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ExecutionID, b.ExecutionID)
	})

	var queued []domain.ExecutionRecord
	for i := range live {
		rec := &live[i]
		req := rec.Request()
		key := m.keyOf(req)
		if key == "" {
			continue
		}

		m.mu.Lock()
		if s, ok := m.slots[key]; ok && s.queued(req.RequestID) {
			m.mu.Unlock()
			queued = append(queued, *rec)
			continue
		}
		if !m.claim(key, req) {
			req.Queued = true
			s := m.slots[key]
			s.waiting = append(s.waiting, req)
			logger.Debug("Execution %s queued behind %s", rec.ExecutionID, s.owner)
			m.mu.Unlock()
			queued = append(queued, *rec)
			continue
		}
		m.mu.Unlock()
	}
	return queued
}

// claim takes key for req. Callers hold m.mu.
func (m *Matcher) claim(key string, req *domain.ExecutionRequest) bool {
	if s, ok := m.slots[key]; ok {
		return s.owner == req.RequestID
	}
	m.slots[key] = &slot{owner: req.RequestID}
	m.owners[req.RequestID] = key
	return true
}

// withdraw drops a queued request from its slot. Callers hold m.mu.
func (m *Matcher) withdraw(req *domain.ExecutionRequest) {
	info, err := m.registry.Get(req.WorkflowID)
	if err != nil {
		return
	}
	key := slotKey(info.Definition.Concurrency, req.WorkflowID, req.TriggerPath())
	if s, ok := m.slots[key]; ok && s.dequeue(req.RequestID) {
		logger.Debug("Withdrew queued request %s for %s", req.RequestID, req.WorkflowID)
	}
}

// admit gives req its slot when free, otherwise queues it and sets Queued.
func (m *Matcher) admit(policy domain.ConcurrencyPolicy, req *domain.ExecutionRequest) {
	key := slotKey(policy, req.WorkflowID, req.TriggerPath())
	if key == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.claim(key, req) {
		return
	}
	s := m.slots[key]
	req.Queued = true
	queued := *req
	s.waiting = append(s.waiting, &queued)
	logger.Debug("Queued %s for %s behind %s (%d waiting)", req.WorkflowID, req.TriggerPath(), s.owner, len(s.waiting))
}

// keyOf returns the slot key of req under its workflow's current policy.
func (m *Matcher) keyOf(req *domain.ExecutionRequest) string {
	info, err := m.registry.Get(req.WorkflowID)
	if err != nil {
		return ""
	}
	return slotKey(info.Definition.Concurrency, req.WorkflowID, req.TriggerPath())
}

func (m *Matcher) newRequest(workflowID string, event *domain.VaultEvent, input map[string]any, manual bool) *domain.ExecutionRequest {
	return &domain.ExecutionRequest{
		RequestID:    m.newID(),
		WorkflowID:   workflowID,
		TriggerEvent: event,
		TriggerInput: input,
		Manual:       manual,
		RequestedAt:  m.now(),
	}
}

// slotKey returns the concurrency key of a request, or "" when unrestricted.
func slotKey(policy domain.ConcurrencyPolicy, workflowID, path string) string {
	switch policy {
	case domain.ConcurrencySerializePerPath:
		return workflowID + "\x00" + path
	case domain.ConcurrencySingletonGlobal:
		return workflowID
	default:
		return ""
	}
}

// matchesAny reports whether any pattern accepts the event.
// "*" stays within one directory; "**" crosses directories.
func matchesAny(patterns []domain.TriggerPattern, event domain.VaultEvent) bool {
	for _, p := range patterns {
		if !p.MatchesKind(event.ChangeKind) {
			continue
		}
		if p.Glob == "" {
			return true
		}
		if ok, _ := doublestar.Match(p.Glob, event.Path); ok {
			return true
		}
	}
	return false
}
