package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/weave-nn/weaver/internal/core/domain"
	"github.com/weave-nn/weaver/internal/core/ports/driven"
)

var _ driven.MaintenanceStore = (*MaintenanceStore)(nil)

// MaintenanceStore keeps maintenance jobs and their run log in memory.
type MaintenanceStore struct {
	mu   sync.RWMutex
	jobs map[string]domain.MaintenanceJob
	runs map[string][]domain.MaintenanceRun // oldest first
}

// NewMaintenanceStore returns an empty store.
func NewMaintenanceStore() *MaintenanceStore {
	return &MaintenanceStore{
		jobs: make(map[string]domain.MaintenanceJob),
		runs: make(map[string][]domain.MaintenanceRun),
	}
}

func (m *MaintenanceStore) Job(_ context.Context, id string) (*domain.MaintenanceJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, nil
	}
	return &job, nil
}

func (m *MaintenanceStore) Jobs(_ context.Context) ([]domain.MaintenanceJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.MaintenanceJob, 0, len(m.jobs))
	for _, job := range m.jobs {
		out = append(out, job)
	}
	slices.SortFunc(out, func(a, b domain.MaintenanceJob) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

func (m *MaintenanceStore) PutJob(_ context.Context, job *domain.MaintenanceJob) error {
	if job == nil {
		return domain.ErrInvalidInput
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = *job
	return nil
}

func (m *MaintenanceStore) DeleteJob(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, id)
	delete(m.runs, id)
	return nil
}

func (m *MaintenanceStore) AppendRun(_ context.Context, run *domain.MaintenanceRun) error {
	if run == nil {
		return domain.ErrInvalidInput
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.JobID] = append(m.runs[run.JobID], *run)
	return nil
}

func (m *MaintenanceStore) Runs(_ context.Context, jobID string, limit int) ([]domain.MaintenanceRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	log := m.runs[jobID]
	out := make([]domain.MaintenanceRun, 0, min(len(log), max(limit, 0)))
	for i := len(log) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, log[i])
	}
	return out, nil
}

func (m *MaintenanceStore) TrimRuns(_ context.Context, keep int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, log := range m.runs {
		if len(log) > keep {
			m.runs[id] = slices.Clone(log[len(log)-keep:])
		}
	}
	return nil
}
