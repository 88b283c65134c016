package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/weave-nn/weaver/internal/core/domain"
	"github.com/weave-nn/weaver/internal/core/ports/driven"
)

// Ensure ExecutionStore implements the interface.
var _ driven.ExecutionStore = (*ExecutionStore)(nil)

// ExecutionStore is an in-memory implementation of driven.ExecutionStore.
type ExecutionStore struct {
	mu        sync.RWMutex
	records   map[string]domain.ExecutionRecord
	byRequest map[string]string
}

// NewExecutionStore creates a new in-memory execution store.
func NewExecutionStore() *ExecutionStore {
	return &ExecutionStore{
		records:   make(map[string]domain.ExecutionRecord),
		byRequest: make(map[string]string),
	}
}

// Create inserts a new record.
func (s *ExecutionStore) Create(_ context.Context, rec *domain.ExecutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[rec.ExecutionID]; exists {
		return fmt.Errorf("%w: execution %s already exists", domain.ErrStorage, rec.ExecutionID)
	}
	if _, exists := s.byRequest[rec.RequestID]; exists {
		return fmt.Errorf("%w: request %s already accepted", domain.ErrStorage, rec.RequestID)
	}
	s.records[rec.ExecutionID] = copyRecord(*rec)
	s.byRequest[rec.RequestID] = rec.ExecutionID
	return nil
}

// Get retrieves a record by ID.
func (s *ExecutionStore) Get(_ context.Context, executionID string) (*domain.ExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[executionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := copyRecord(rec)
	return &out, nil
}

// GetByRequest retrieves the record created for a request.
func (s *ExecutionStore) GetByRequest(ctx context.Context, requestID string) (*domain.ExecutionRecord, error) {
	s.mu.RLock()
	id, ok := s.byRequest[requestID]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s.Get(ctx, id)
}

// Checkpoint persists the step index and pending input.
func (s *ExecutionStore) Checkpoint(_ context.Context, executionID string, stepIndex int, input map[string]any, at time.Time) error {
	return s.mutate(executionID, func(rec *domain.ExecutionRecord) error {
		rec.CurrentStepIndex = stepIndex
		rec.PendingInput = copyMap(input)
		rec.State = domain.ExecutionRunning
		rec.SuspendReason = ""
		rec.UpdatedAt = at
		return nil
	})
}

// CommitStep appends a step result and advances the step index.
func (s *ExecutionStore) CommitStep(_ context.Context, executionID string, result domain.StepResult, retryCount int, at time.Time) error {
	return s.mutate(executionID, func(rec *domain.ExecutionRecord) error {
		if rec.CurrentStepIndex != result.StepIndex {
			return fmt.Errorf("%w: record at %d, result for %d", domain.ErrStepIndex, rec.CurrentStepIndex, result.StepIndex)
		}
		result.Output = copyMap(result.Output)
		rec.StepResults = append(rec.StepResults, result)
		rec.CurrentStepIndex = result.StepIndex + 1
		rec.PendingInput = nil
		rec.RetryCount = retryCount
		rec.UpdatedAt = at
		return nil
	})
}

// Update writes everything except step results and the step index.
func (s *ExecutionStore) Update(_ context.Context, rec *domain.ExecutionRecord) error {
	return s.mutate(rec.ExecutionID, func(stored *domain.ExecutionRecord) error {
		steps, index, pending := stored.StepResults, stored.CurrentStepIndex, stored.PendingInput
		*stored = copyRecord(*rec)
		stored.StepResults, stored.CurrentStepIndex, stored.PendingInput = steps, index, pending
		return nil
	})
}

// ResetSteps deletes every step result and rewinds to step 0.
func (s *ExecutionStore) ResetSteps(_ context.Context, executionID string, at time.Time) error {
	return s.mutate(executionID, func(rec *domain.ExecutionRecord) error {
		rec.StepResults = nil
		rec.CurrentStepIndex = 0
		rec.PendingInput = nil
		rec.UpdatedAt = at
		return nil
	})
}

// List returns matching records, most recently started first.
func (s *ExecutionStore) List(_ context.Context, filter domain.ExecutionFilter) ([]domain.ExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.ExecutionRecord, 0)
	for _, rec := range s.records {
		if filter.WorkflowID != "" && rec.WorkflowID != filter.WorkflowID {
			continue
		}
		if len(filter.States) > 0 && !hasState(filter.States, rec.State) {
			continue
		}
		if !filter.Since.IsZero() && rec.StartedAt.Before(filter.Since) {
			continue
		}
		out = append(out, copyRecord(rec))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ExecutionID > out[j].ExecutionID
		}
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *ExecutionStore) mutate(executionID string, fn func(*domain.ExecutionRecord) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[executionID]
	if !ok {
		return domain.ErrNotFound
	}
	rec = copyRecord(rec)
	if err := fn(&rec); err != nil {
		return err
	}
	s.records[executionID] = rec
	return nil
}

func hasState(states []domain.ExecutionState, st domain.ExecutionState) bool {
	for _, s := range states {
		if s == st {
			return true
		}
	}
	return false
}

func copyRecord(rec domain.ExecutionRecord) domain.ExecutionRecord {
	rec.StepResults = append([]domain.StepResult(nil), rec.StepResults...)
	rec.PendingInput = copyMap(rec.PendingInput)
	rec.TriggerInput = copyMap(rec.TriggerInput)
	if rec.TriggerEvent != nil {
		ev := *rec.TriggerEvent
		rec.TriggerEvent = &ev
	}
	if rec.CompletedAt != nil {
		t := *rec.CompletedAt
		rec.CompletedAt = &t
	}
	if rec.Error != nil {
		e := *rec.Error
		rec.Error = &e
	}
	return rec
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
