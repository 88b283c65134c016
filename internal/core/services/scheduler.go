package services

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/weave-nn/weaver/internal/core/domain"
	"github.com/weave-nn/weaver/internal/core/ports/driven"
	"github.com/weave-nn/weaver/internal/core/ports/driving"
	"github.com/weave-nn/weaver/internal/logger"
)

var _ driving.Scheduler = (*Scheduler)(nil)

const (
	// runLogSize is how many runs are kept per job.
	runLogSize = 100

	defaultPoll = time.Minute
)

// jobSpec is a built-in maintenance job.
type jobSpec struct {
	label string
	run   func(ctx context.Context) (int, error)
}

// Scheduler keeps the shadow cache healthy in the background. It purges
// expired tombstones and periodically resyncs the vault to repair drift the
// watcher missed. Job state is persisted so cadence survives restarts.
type Scheduler struct {
	config domain.MaintenanceConfig
	store  driven.MaintenanceStore
	cache  driving.ShadowCache
	specs  map[string]jobSpec

	poll time.Duration
	now  func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	busy   map[string]bool
	active sync.WaitGroup
}

// NewScheduler returns a scheduler for the built-in jobs. cache may be nil,
// in which case jobs run as no-ops.
func NewScheduler(config domain.MaintenanceConfig, store driven.MaintenanceStore, cache driving.ShadowCache) *Scheduler {
	s := &Scheduler{
		config: config,
		store:  store,
		cache:  cache,
		poll:   defaultPoll,
		now:    time.Now,
		busy:   make(map[string]bool),
	}
	s.specs = map[string]jobSpec{
		domain.JobPurgeTombstones: {label: "Tombstone purge", run: s.purgeTombstones},
		domain.JobResyncVault:     {label: "Vault resync", run: s.resyncVault},
	}
	return s
}

// Start runs due jobs until ctx is cancelled or Stop is called. A second
// call while running returns nil at once.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel, s.done = cancel, done
	s.mu.Unlock()

	defer func() {
		s.active.Wait()
		s.mu.Lock()
		s.cancel, s.done = nil, nil
		s.mu.Unlock()
		cancel()
		close(done)
	}()

	if err := s.syncJobs(runCtx); err != nil {
		logger.Warn("maintenance: syncing jobs: %v", err)
	}

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()
	for {
		s.sweep(runCtx)
		select {
		case <-runCtx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Stop cancels running jobs and waits for Start to return.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

// syncJobs brings stored jobs in line with the configuration. Jobs that are
// disabled and were never stored are not created.
func (s *Scheduler) syncJobs(ctx context.Context) error {
	ids := make([]string, 0, len(s.specs))
	for id := range s.specs {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, id := range ids {
		if err := s.syncJob(ctx, id, s.specs[id].label, s.config.Job(id)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scheduler) syncJob(ctx context.Context, id, label string, sched domain.JobSchedule) error {
	job, err := s.store.Job(ctx, id)
	if err != nil {
		return err
	}
	switch {
	case job == nil && !sched.Enabled:
		return nil
	case job == nil:
		job = &domain.MaintenanceJob{ID: id, NextRun: s.now().Add(sched.Every)}
	case job.Every != sched.Every:
		// A new cadence counts from now, not from the last run.
		job.NextRun = s.now().Add(sched.Every)
	}
	job.Label = label
	job.Every = sched.Every
	job.Enabled = sched.Enabled
	return s.store.PutJob(ctx, job)
}

// sweep launches every due job that is not already running.
func (s *Scheduler) sweep(ctx context.Context) {
	jobs, err := s.store.Jobs(ctx)
	if err != nil {
		if ctx.Err() == nil {
			logger.Warn("maintenance: listing jobs: %v", err)
		}
		return
	}
	now := s.now()
	for i := range jobs {
		if jobs[i].Due(now) {
			s.launch(ctx, jobs[i])
		}
	}
}

func (s *Scheduler) launch(ctx context.Context, job domain.MaintenanceJob) {
	spec, ok := s.specs[job.ID]
	if !ok {
		logger.Warn("maintenance: no job named %q", job.ID)
		return
	}

	s.mu.Lock()
	if s.busy[job.ID] {
		s.mu.Unlock()
		return
	}
	s.busy[job.ID] = true
	s.mu.Unlock()

	s.active.Add(1)
	go func() {
		defer s.active.Done()
		defer func() {
			s.mu.Lock()
			delete(s.busy, job.ID)
			s.mu.Unlock()
		}()

		run := domain.MaintenanceRun{JobID: job.ID, StartedAt: s.now()}
		affected, err := spec.run(ctx)
		run.EndedAt = s.now()
		run.Affected = affected
		if err != nil {
			run.Error = err.Error()
			logger.Warn("maintenance: %s failed: %v", spec.label, err)
		} else {
			logger.Debug("maintenance: %s touched %d entries in %s", spec.label, affected, run.EndedAt.Sub(run.StartedAt))
		}
		s.record(ctx, &job, &run)
	}()
}

// record saves the run outcome. It uses a fresh context so a run cut short
// by shutdown is still logged.
func (s *Scheduler) record(ctx context.Context, job *domain.MaintenanceJob, run *domain.MaintenanceRun) {
	ctx = context.WithoutCancel(ctx)
	job.Apply(*run)
	if err := s.store.PutJob(ctx, job); err != nil {
		logger.Warn("maintenance: saving %s: %v", job.ID, err)
	}
	if err := s.store.AppendRun(ctx, run); err != nil {
		logger.Warn("maintenance: logging run of %s: %v", job.ID, err)
	}
	if err := s.store.TrimRuns(ctx, runLogSize); err != nil {
		logger.Warn("maintenance: trimming run log: %v", err)
	}
}

func (s *Scheduler) purgeTombstones(ctx context.Context) (int, error) {
	if s.cache == nil {
		return 0, nil
	}
	return s.cache.PurgeTombstones(ctx)
}

func (s *Scheduler) resyncVault(ctx context.Context) (int, error) {
	if s.cache == nil {
		return 0, nil
	}
	report, err := s.cache.FullResync(ctx)
	if err != nil {
		return 0, err
	}
	return report.Drift(), nil
}
