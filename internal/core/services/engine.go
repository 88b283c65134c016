package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/weave-nn/weaver/internal/core/domain"
	"github.com/weave-nn/weaver/internal/core/ports/driven"
	"github.com/weave-nn/weaver/internal/core/ports/driving"
	"github.com/weave-nn/weaver/internal/logger"
)

// Ensure Engine implements the interface.
var _ driving.ExecutionEngine = (*Engine)(nil)

// errShutdown marks a step interrupted by engine shutdown. The step is not
// committed and re-runs on resume.
var errShutdown = errors.New("engine shutting down")

// Store writes are retried for as long as the engine runs. Once it is
// stopping, a failing write gets persistGrace more before it is abandoned
// and left for Recover.
const (
	persistBase  = 50 * time.Millisecond
	persistMax   = 5 * time.Second
	persistGrace = 30 * time.Second
)

// control is the live state of an execution on a worker.
type control struct {
	ctx       context.Context
	cancel    context.CancelFunc
	cancelled bool
	suspend   bool
}

// Engine runs execution records as checkpointed step sequences on a
// bounded worker pool.
//
// Before step i runs, its index and input are checkpointed; after it
// succeeds, its result is committed and the index advanced in one write.
// A record therefore never re-runs a committed step.
type Engine struct {
	store    driven.ExecutionStore
	registry driving.WorkflowRegistry
	steps    driven.StepCatalog
	matcher  driving.TriggerMatcher
	metrics  driven.Metrics
	cfg      domain.EngineSettings

	queue *workQueue

	mu       sync.Mutex
	controls map[string]*control
	started  bool
	stopped  bool
	cancel   context.CancelFunc
	halt     chan struct{}
	wg       sync.WaitGroup

	persistBase  time.Duration
	persistMax   time.Duration
	persistGrace time.Duration

	newID func() string
	now   func() time.Time
}

// NewEngine creates an execution engine. The matcher is optional; when set,
// terminal records release their concurrency slot through it.
func NewEngine(
	store driven.ExecutionStore,
	registry driving.WorkflowRegistry,
	steps driven.StepCatalog,
	matcher driving.TriggerMatcher,
	metrics driven.Metrics,
	cfg domain.EngineSettings,
) *Engine {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if !cfg.RetryPolicy.IsValid() {
		cfg.RetryPolicy = domain.RetryPolicyStep
	}
	return &Engine{
		store:    store,
		registry: registry,
		steps:    steps,
		matcher:  matcher,
		metrics:  metricsOrNop(metrics),
		cfg:      cfg,
		queue:    newWorkQueue(),
		controls: make(map[string]*control),
		halt:     make(chan struct{}),

		persistBase:  persistBase,
		persistMax:   persistMax,
		persistGrace: persistGrace,

		newID: uuid.NewString,
		now:   time.Now,
	}
}

// Start launches the worker pool.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return domain.ErrEngineStopped
	}
	if e.started {
		return nil
	}
	e.started = true

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	for i := 0; i < e.cfg.Workers; i++ {
		e.wg.Add(1)
		go e.work(runCtx)
	}
	logger.Info("Execution engine started with %d workers", e.cfg.Workers)
	return nil
}

// Stop drains workers. Executions interrupted mid-run are suspended with
// reason "shutdown"; queued pending records stay pending.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return nil
	}
	e.stopped = true
	cancel := e.cancel
	close(e.halt)
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	e.queue.Close()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		logger.Info("Execution engine stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stop engine: %w", ctx.Err())
	}
}

// Recover resumes work left by a previous process. Records that share a
// concurrency slot run one at a time: the first claims the slot and the
// rest are marked queued and start as it is handed on.
func (e *Engine) Recover(ctx context.Context) (int, error) {
	recs, err := e.store.List(ctx, domain.ExecutionFilter{
		States: []domain.ExecutionState{
			domain.ExecutionPending,
			domain.ExecutionRunning,
			domain.ExecutionSuspended,
		},
	})
	if err != nil {
		return 0, fmt.Errorf("list unfinished executions: %w", err)
	}
	waiting := make(map[string]bool)
	if e.matcher != nil {
		for _, rec := range e.matcher.Track(recs) {
			waiting[rec.ExecutionID] = true
		}
	}

	resumed := 0
	for i := range recs {
		rec := &recs[i]
		dirty := rec.Queued != waiting[rec.ExecutionID]
		rec.Queued = waiting[rec.ExecutionID]

		switch rec.State {
		case domain.ExecutionPending, domain.ExecutionRunning:
		case domain.ExecutionSuspended:
			if rec.SuspendReason != domain.SuspendShutdown {
				continue
			}
			rec.State = domain.ExecutionRunning
			rec.SuspendReason = ""
			dirty = true
		default:
			continue
		}
		if dirty {
			rec.UpdatedAt = e.now()
			if err := e.store.Update(ctx, rec); err != nil {
				return resumed, fmt.Errorf("resume %s: %w", rec.ExecutionID, err)
			}
		}
		if rec.Queued {
			logger.Debug("Execution %s waits for its concurrency slot", rec.ExecutionID)
			continue
		}
		if !e.queue.Push(rec.ExecutionID) {
			return resumed, domain.ErrEngineStopped
		}
		resumed++
		logger.Debug("Recovered execution %s at step %d", rec.ExecutionID, rec.CurrentStepIndex)
	}
	if resumed > 0 || len(waiting) > 0 {
		logger.Info("Recovered %d executions, %d waiting for a slot", resumed, len(waiting))
	}
	return resumed, nil
}

// Submit accepts a request. A request whose concurrency slot is busy gets
// a queued pending record that starts once the slot is handed to it;
// submitting it again after the hand-off starts it.
func (e *Engine) Submit(ctx context.Context, req domain.ExecutionRequest) (*domain.ExecutionRecord, error) {
	if e.isStopped() {
		return nil, domain.ErrEngineStopped
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	existing, err := e.store.GetByRequest(ctx, req.RequestID)
	if err == nil {
		if existing.Queued && e.claimSlot(existing.Request()) {
			return existing, e.dequeue(ctx, existing)
		}
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("lookup request %s: %w", req.RequestID, err)
	}

	if _, err := e.registry.Get(req.WorkflowID); err != nil {
		return nil, err
	}
	if req.RequestedAt.IsZero() {
		req.RequestedAt = e.now()
	}
	req.Queued = !e.claimSlot(&req)

	rec := domain.NewExecutionRecord(e.newID(), &req, e.now())
	if err := e.store.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("create execution: %w", err)
	}
	if rec.Queued {
		logger.Debug("Queued execution %s for %s (%s)", rec.ExecutionID, rec.WorkflowID, rec.TriggerPath())
		return rec, nil
	}
	if !e.queue.Push(rec.ExecutionID) {
		return rec, domain.ErrEngineStopped
	}
	logger.Debug("Accepted execution %s for %s (%s)", rec.ExecutionID, rec.WorkflowID, rec.TriggerPath())
	return rec, nil
}

// dequeue clears the queued marker and hands the record to the workers.
// Callers hold e.mu.
func (e *Engine) dequeue(ctx context.Context, rec *domain.ExecutionRecord) error {
	rec.Queued = false
	rec.UpdatedAt = e.now()
	if err := e.store.Update(ctx, rec); err != nil {
		return fmt.Errorf("start queued %s: %w", rec.ExecutionID, err)
	}
	if !e.queue.Push(rec.ExecutionID) {
		return domain.ErrEngineStopped
	}
	logger.Debug("Starting queued execution %s for %s (%s)", rec.ExecutionID, rec.WorkflowID, rec.TriggerPath())
	return nil
}

func (e *Engine) claimSlot(req *domain.ExecutionRequest) bool {
	return e.matcher == nil || e.matcher.Claim(req)
}

// Get returns one execution record.
func (e *Engine) Get(ctx context.Context, executionID string) (*domain.ExecutionRecord, error) {
	return e.store.Get(ctx, executionID)
}

// List returns matching execution records.
func (e *Engine) List(ctx context.Context, filter domain.ExecutionFilter) ([]domain.ExecutionRecord, error) {
	return e.store.List(ctx, filter)
}

// Cancel fails an execution with the cancelled error kind.
func (e *Engine) Cancel(ctx context.Context, executionID string) (*domain.ExecutionRecord, error) {
	e.mu.Lock()
	rec, err := e.store.Get(ctx, executionID)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}

	switch rec.State {
	case domain.ExecutionRunning:
		if ctl, live := e.controls[executionID]; live {
			ctl.cancelled = true
			ctl.cancel()
			e.mu.Unlock()
			logger.Info("Cancellation requested for %s", executionID)
			return rec, nil
		}
	case domain.ExecutionPending, domain.ExecutionSuspended:
	default:
		e.mu.Unlock()
		return nil, fmt.Errorf("cancel %s in state %s: %w", executionID, rec.State, domain.ErrInvalidTransition)
	}

	e.fail(rec, domain.ErrorKindCancelled, domain.ErrCancelled.Error(), rec.CurrentStepIndex)
	rec.Queued = false
	err = e.store.Update(ctx, rec)
	e.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("cancel %s: %w", executionID, err)
	}
	e.finish(ctx, rec)
	return rec, nil
}

// Suspend pauses a running execution at its next step boundary.
func (e *Engine) Suspend(ctx context.Context, executionID string) (*domain.ExecutionRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rec, err := e.store.Get(ctx, executionID)
	if err != nil {
		return nil, err
	}
	if rec.State != domain.ExecutionRunning {
		return nil, fmt.Errorf("suspend %s in state %s: %w", executionID, rec.State, domain.ErrInvalidTransition)
	}
	if ctl, live := e.controls[executionID]; live {
		ctl.suspend = true
		return rec, nil
	}

	rec.State = domain.ExecutionSuspended
	rec.SuspendReason = domain.SuspendRequested
	rec.UpdatedAt = e.now()
	if err := e.store.Update(ctx, rec); err != nil {
		return nil, fmt.Errorf("suspend %s: %w", executionID, err)
	}
	return rec, nil
}

// Resume re-enqueues a suspended execution.
func (e *Engine) Resume(ctx context.Context, executionID string) (*domain.ExecutionRecord, error) {
	if e.isStopped() {
		return nil, domain.ErrEngineStopped
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	rec, err := e.store.Get(ctx, executionID)
	if err != nil {
		return nil, err
	}
	if rec.State != domain.ExecutionSuspended {
		return nil, fmt.Errorf("resume %s in state %s: %w", executionID, rec.State, domain.ErrInvalidTransition)
	}

	rec.State = domain.ExecutionRunning
	rec.SuspendReason = ""
	rec.UpdatedAt = e.now()
	if err := e.store.Update(ctx, rec); err != nil {
		return nil, fmt.Errorf("resume %s: %w", executionID, err)
	}
	e.queue.Push(executionID)
	return rec, nil
}

// Retry moves a failed execution back to pending. Under the step policy it
// resumes at the failing step; under the workflow policy it restarts at step 0.
func (e *Engine) Retry(ctx context.Context, executionID string) (*domain.ExecutionRecord, error) {
	if e.isStopped() {
		return nil, domain.ErrEngineStopped
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	rec, err := e.store.Get(ctx, executionID)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransition(rec.State, domain.ExecutionPending) {
		return nil, fmt.Errorf("retry %s in state %s: %w", executionID, rec.State, domain.ErrInvalidTransition)
	}
	if rec.ManualRetries >= e.cfg.MaxManualRetries {
		return nil, fmt.Errorf("retry %s: %w (%d)", executionID, domain.ErrRetryLimit, e.cfg.MaxManualRetries)
	}
	if e.matcher != nil && !e.matcher.Claim(rec.Request()) {
		return nil, fmt.Errorf("retry %s: %w", executionID, domain.ErrSlotBusy)
	}

	now := e.now()
	if e.cfg.RetryPolicy == domain.RetryPolicyWorkflow {
		if err := e.store.ResetSteps(ctx, executionID, now); err != nil {
			return nil, fmt.Errorf("reset %s: %w", executionID, err)
		}
		rec.StepResults = nil
		rec.CurrentStepIndex = 0
		rec.PendingInput = nil
	}
	rec.State = domain.ExecutionPending
	rec.Error = nil
	rec.CompletedAt = nil
	rec.ManualRetries++
	rec.RetryCount++
	rec.UpdatedAt = now
	if err := e.store.Update(ctx, rec); err != nil {
		return nil, fmt.Errorf("retry %s: %w", executionID, err)
	}
	e.queue.Push(executionID)
	logger.Info("Retrying execution %s (%s policy, attempt %d)", executionID, e.cfg.RetryPolicy, rec.ManualRetries)
	return rec, nil
}

// QueueDepth returns the number of queued executions.
func (e *Engine) QueueDepth() int {
	return e.queue.Len()
}

func (e *Engine) work(ctx context.Context) {
	defer e.wg.Done()
	for {
		id, ok := e.queue.Pop(ctx)
		if !ok {
			return
		}
		e.run(ctx, id)
	}
}

// run executes a record from its current step index to the end.
//
//nolint:gocyclo // Sequential state machine with one exit per outcome
func (e *Engine) run(ctx context.Context, executionID string) {
	// Store writes after shutdown must still land.
	persistCtx := context.WithoutCancel(ctx)

	rec, def, ctl, ok := e.claim(ctx, executionID)
	if !ok {
		return
	}
	defer e.release(executionID)

	for i := rec.CurrentStepIndex; i < len(def.Steps); i++ {
		if stop := e.boundary(persistCtx, ctx, rec, ctl); stop {
			return
		}

		input := pendingInput(rec, def.Steps[i])
		err := e.persist(persistCtx, func(c context.Context) error {
			return e.store.Checkpoint(c, rec.ExecutionID, i, input, e.now())
		})
		if err != nil {
			logger.Warn("Checkpoint %s step %d abandoned at shutdown, resuming on restart: %v", rec.ExecutionID, i, err)
			return
		}
		rec.CurrentStepIndex = i
		rec.PendingInput = input

		result, err := e.runStep(ctl, rec, def, i)
		switch {
		case errors.Is(err, domain.ErrCancelled):
			e.terminate(persistCtx, rec, domain.ErrorKindCancelled, err.Error(), i)
			return
		case errors.Is(err, errShutdown):
			e.suspend(persistCtx, rec, domain.SuspendShutdown)
			return
		case err != nil:
			e.terminate(persistCtx, rec, domain.ErrorKindStep, err.Error(), i)
			return
		}

		if err := e.commit(persistCtx, rec, result); err != nil {
			logger.Warn("Commit %s step %d abandoned at shutdown, step re-runs on restart: %v", rec.ExecutionID, i, err)
			return
		}
	}

	if stop := e.boundary(persistCtx, ctx, rec, ctl); stop {
		return
	}
	e.complete(persistCtx, rec)
}

// claim loads a record, moves it to running and registers its control.
func (e *Engine) claim(ctx context.Context, executionID string) (*domain.ExecutionRecord, *domain.WorkflowDefinition, *control, bool) {
	e.mu.Lock()
	rec, err := e.store.Get(ctx, executionID)
	if err != nil {
		e.mu.Unlock()
		logger.Error("Load execution %s: %v", executionID, err)
		if !errors.Is(err, domain.ErrNotFound) {
			e.requeueLater(executionID)
		}
		return nil, nil, nil, false
	}
	if rec.Queued || (rec.State != domain.ExecutionPending && rec.State != domain.ExecutionRunning) {
		e.mu.Unlock()
		return nil, nil, nil, false
	}

	info, err := e.registry.Get(rec.WorkflowID)
	if err != nil {
		e.fail(rec, domain.ErrorKindInternal, fmt.Sprintf("workflow %q not registered", rec.WorkflowID), rec.CurrentStepIndex)
		uerr := e.store.Update(ctx, rec)
		e.mu.Unlock()
		if uerr != nil {
			logger.Error("Fail execution %s: %v", executionID, uerr)
			return nil, nil, nil, false
		}
		e.finish(context.WithoutCancel(ctx), rec)
		return nil, nil, nil, false
	}

	if rec.State == domain.ExecutionPending {
		rec.State = domain.ExecutionRunning
		rec.UpdatedAt = e.now()
		if err := e.store.Update(ctx, rec); err != nil {
			e.mu.Unlock()
			logger.Error("Start execution %s: %v", executionID, err)
			e.requeueLater(executionID)
			return nil, nil, nil, false
		}
	}

	execCtx, cancel := context.WithCancel(ctx)
	ctl := &control{ctx: execCtx, cancel: cancel}
	e.controls[executionID] = ctl
	e.mu.Unlock()

	def := info.Definition
	logger.Debug("Running execution %s (%s) from step %d", executionID, rec.WorkflowID, rec.CurrentStepIndex)
	return rec, &def, ctl, true
}

// requeueLater pushes an execution back after a store failure kept a
// worker from starting it.
func (e *Engine) requeueLater(executionID string) {
	time.AfterFunc(e.persistMax, func() {
		if !e.queue.Push(executionID) {
			logger.Debug("Engine stopped before %s could be requeued", executionID)
		}
	})
}

func (e *Engine) release(executionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ctl, ok := e.controls[executionID]; ok {
		ctl.cancel()
		delete(e.controls, executionID)
	}
}

// boundary applies pending control requests between steps and reports
// whether the run must stop.
func (e *Engine) boundary(persistCtx, ctx context.Context, rec *domain.ExecutionRecord, ctl *control) bool {
	e.mu.Lock()
	cancelled, suspend := ctl.cancelled, ctl.suspend
	e.mu.Unlock()

	switch {
	case cancelled:
		e.terminate(persistCtx, rec, domain.ErrorKindCancelled, domain.ErrCancelled.Error(), rec.CurrentStepIndex)
		return true
	case suspend:
		e.suspend(persistCtx, rec, domain.SuspendRequested)
		return true
	case ctx.Err() != nil:
		e.suspend(persistCtx, rec, domain.SuspendShutdown)
		return true
	}
	return false
}

// runStep invokes step i, retrying retryable failures with exponential
// backoff up to the step's retry bound.
func (e *Engine) runStep(ctl *control, rec *domain.ExecutionRecord, def *domain.WorkflowDefinition, i int) (domain.StepResult, error) {
	spec := def.Steps[i]
	result := domain.StepResult{StepIndex: i, StepName: spec.Name, StartedAt: e.now()}

	body, err := e.steps.Get(spec.Type)
	if err != nil {
		return result, fmt.Errorf("step %q: %w", spec.Name, err)
	}

	timeout := e.cfg.StepTimeout
	if spec.Timeout > 0 {
		timeout = spec.Timeout
	}
	maxRetries := e.cfg.MaxStepRetries
	if spec.MaxRetries != nil {
		maxRetries = *spec.MaxRetries
	}

	policy := e.newBackOff(maxRetries)
	execCtx := ctl.ctx

	for attempt := 1; ; attempt++ {
		in := &domain.StepInput{
			ExecutionID: rec.ExecutionID,
			WorkflowID:  rec.WorkflowID,
			StepIndex:   i,
			Spec:        spec,
			Trigger:     rec.TriggerEvent,
			Input:       rec.TriggerInput,
			Prior:       append([]domain.StepResult(nil), rec.StepResults...),
			Attempt:     attempt,
		}

		started := e.now()
		out, err := invoke(execCtx, body, in, timeout)
		e.metrics.StepAttempt(rec.WorkflowID, spec.Type, err == nil, e.now().Sub(started))
		result.Attempts = attempt

		if err == nil {
			result.Success = true
			result.Output = out
			result.CompletedAt = e.now()
			return result, nil
		}

		if e.isCancelled(ctl) {
			return result, domain.ErrCancelled
		}
		if execCtx.Err() != nil {
			return result, errShutdown
		}
		if !domain.IsRetryable(err) {
			return result, fmt.Errorf("step %q: %w", spec.Name, err)
		}

		wait := policy.NextBackOff()
		if wait == backoff.Stop {
			return result, fmt.Errorf("step %q after %d attempts: %w: %w", spec.Name, attempt, domain.ErrRetriesExhausted, err)
		}

		rec.RetryCount++
		logger.Debug("Step %s/%s attempt %d failed, retrying in %s: %v", rec.ExecutionID, spec.Name, attempt, wait, err)

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-execCtx.Done():
			timer.Stop()
			if e.isCancelled(ctl) {
				return result, domain.ErrCancelled
			}
			return result, errShutdown
		}
	}
}

func (e *Engine) isCancelled(ctl *control) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return ctl.cancelled
}

// invoke runs one attempt with its timeout. A panicking step body fails
// the attempt permanently.
func invoke(ctx context.Context, body driven.Step, in *domain.StepInput, timeout time.Duration) (out domain.StepOutput, err error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = domain.Permanent(fmt.Errorf("step panicked: %v", r))
		}
	}()
	out, err = body.Execute(ctx, in)
	if err == nil && ctx.Err() == context.DeadlineExceeded {
		err = fmt.Errorf("step timed out after %s", timeout)
	}
	return out, err
}

func (e *Engine) newBackOff(maxRetries int) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = e.cfg.BackoffBase
	if e.cfg.BackoffMax > 0 {
		exp.MaxInterval = e.cfg.BackoffMax
	}
	exp.MaxElapsedTime = 0
	exp.Reset()
	if maxRetries < 0 {
		maxRetries = 0
	}
	return backoff.WithMaxRetries(exp, uint64(maxRetries))
}

// commit appends a step result and advances the record in memory.
// A commit already applied by an earlier attempt is accepted.
func (e *Engine) commit(ctx context.Context, rec *domain.ExecutionRecord, result domain.StepResult) error {
	err := e.persist(ctx, func(c context.Context) error {
		err := e.store.CommitStep(c, rec.ExecutionID, result, rec.RetryCount, e.now())
		if errors.Is(err, domain.ErrStepIndex) {
			stored, gerr := e.store.Get(c, rec.ExecutionID)
			if gerr == nil && stored.CurrentStepIndex == result.StepIndex+1 {
				return nil
			}
			return backoff.Permanent(err)
		}
		return err
	})
	if err != nil {
		return err
	}
	rec.StepResults = append(rec.StepResults, result)
	rec.CurrentStepIndex = result.StepIndex + 1
	rec.PendingInput = nil
	return nil
}

func (e *Engine) complete(ctx context.Context, rec *domain.ExecutionRecord) {
	now := e.now()
	rec.State = domain.ExecutionCompleted
	rec.CompletedAt = &now
	rec.UpdatedAt = now
	if err := e.persist(ctx, func(c context.Context) error { return e.store.Update(c, rec) }); err != nil {
		logger.Error("Complete execution %s: %v", rec.ExecutionID, err)
		return
	}
	logger.Info("Execution %s (%s) completed", rec.ExecutionID, rec.WorkflowID)
	e.finish(ctx, rec)
}

func (e *Engine) terminate(ctx context.Context, rec *domain.ExecutionRecord, kind, message string, stepIndex int) {
	e.fail(rec, kind, message, stepIndex)
	if err := e.persist(ctx, func(c context.Context) error { return e.store.Update(c, rec) }); err != nil {
		logger.Error("Fail execution %s: %v", rec.ExecutionID, err)
		return
	}
	logger.Warn("Execution %s (%s) failed at step %d: %s", rec.ExecutionID, rec.WorkflowID, stepIndex, message)
	e.finish(ctx, rec)
}

func (e *Engine) suspend(ctx context.Context, rec *domain.ExecutionRecord, reason string) {
	rec.State = domain.ExecutionSuspended
	rec.SuspendReason = reason
	rec.UpdatedAt = e.now()
	if err := e.persist(ctx, func(c context.Context) error { return e.store.Update(c, rec) }); err != nil {
		logger.Error("Suspend execution %s: %v", rec.ExecutionID, err)
		return
	}
	e.metrics.ExecutionFinished(rec.WorkflowID, rec.State.String(), rec.UpdatedAt.Sub(rec.StartedAt))
	logger.Info("Execution %s suspended at step %d (%s)", rec.ExecutionID, rec.CurrentStepIndex, reason)
}

// fail sets the failed state on rec without persisting it.
func (e *Engine) fail(rec *domain.ExecutionRecord, kind, message string, stepIndex int) {
	now := e.now()
	rec.State = domain.ExecutionFailed
	rec.Error = &domain.ExecutionError{Kind: kind, Message: message, StepIndex: stepIndex}
	rec.CompletedAt = &now
	rec.UpdatedAt = now
	rec.SuspendReason = ""
}

// finish records metrics and hands the concurrency slot to any withheld request.
func (e *Engine) finish(ctx context.Context, rec *domain.ExecutionRecord) {
	end := rec.UpdatedAt
	if rec.CompletedAt != nil {
		end = *rec.CompletedAt
	}
	e.metrics.ExecutionFinished(rec.WorkflowID, rec.State.String(), end.Sub(rec.StartedAt))

	if e.matcher == nil {
		return
	}
	next := e.matcher.Release(rec.Request())
	for next != nil {
		req := *next
		err := e.persist(ctx, func(c context.Context) error {
			_, err := e.Submit(c, req)
			if err != nil && !errors.Is(err, domain.ErrStorage) {
				return backoff.Permanent(err)
			}
			return err
		})
		if err == nil || errors.Is(err, domain.ErrEngineStopped) {
			return
		}
		logger.Warn("Start queued request %s: %v", req.RequestID, err)
		next = e.matcher.Release(&req)
	}
}

// persist retries a store write until it succeeds or fails permanently.
// Storage failures are never skipped while the engine runs; once it is
// stopping the write gets persistGrace before the error is returned.
func (e *Engine) persist(ctx context.Context, op func(ctx context.Context) error) error {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = e.persistBase
	exp.MaxInterval = e.persistMax
	exp.MaxElapsedTime = 0

	var giveUp time.Time
	return backoff.RetryNotify(func() error {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, domain.ErrNotFound) {
			return backoff.Permanent(err)
		}
		select {
		case <-e.halt:
			if giveUp.IsZero() {
				giveUp = time.Now().Add(e.persistGrace)
			}
			if !time.Now().Before(giveUp) {
				return backoff.Permanent(err)
			}
		default:
		}
		return err
	}, backoff.WithContext(exp, ctx), func(err error, wait time.Duration) {
		logger.Warn("Store write failed, retrying in %s: %v", wait, err)
	})
}

func (e *Engine) isStopped() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopped
}

// pendingInput is the input checkpointed before a step runs.
func pendingInput(rec *domain.ExecutionRecord, spec domain.StepSpec) map[string]any {
	input := map[string]any{
		"step":          spec.Name,
		"type":          spec.Type,
		"prior_results": len(rec.StepResults),
	}
	if path := rec.TriggerPath(); path != "" {
		input["trigger_path"] = path
	}
	if rec.TriggerInput != nil {
		input["input"] = rec.TriggerInput
	}
	return input
}
