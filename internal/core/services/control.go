package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/weave-nn/weaver/internal/core/domain"
	"github.com/weave-nn/weaver/internal/core/ports/driving"
	"github.com/weave-nn/weaver/internal/logger"
)

// Ensure ControlService implements the interface.
var _ driving.ControlSurface = (*ControlService)(nil)

// ControlService is the request/response surface over the shadow cache,
// registry and engine. It holds no per-caller state.
type ControlService struct {
	cache    driving.ShadowCache
	registry driving.WorkflowRegistry
	matcher  driving.TriggerMatcher
	engine   driving.ExecutionEngine
	now      func() time.Time
}

// NewControlService creates a control surface.
func NewControlService(
	cache driving.ShadowCache,
	registry driving.WorkflowRegistry,
	matcher driving.TriggerMatcher,
	engine driving.ExecutionEngine,
) *ControlService {
	return &ControlService{
		cache:    cache,
		registry: registry,
		matcher:  matcher,
		engine:   engine,
		now:      time.Now,
	}
}

// QueryEntries returns one page of matching entries.
func (s *ControlService) QueryEntries(ctx context.Context, filter domain.EntryFilter, page domain.Page) (*domain.EntryPage, error) {
	filter.PathPrefix = strings.TrimPrefix(filter.PathPrefix, "/")
	return s.cache.Query(ctx, filter, page)
}

// GetEntry returns one entry by path.
func (s *ControlService) GetEntry(ctx context.Context, path string) (*domain.VaultEntry, error) {
	path = domain.NormalisePath(path)
	if path == "" {
		return nil, fmt.Errorf("%w: path is required", domain.ErrInvalidInput)
	}
	return s.cache.Get(ctx, path)
}

// CountEntries aggregates matching entries.
func (s *ControlService) CountEntries(ctx context.Context, filter domain.EntryFilter) (*domain.EntryCounts, error) {
	return s.cache.Count(ctx, filter)
}

// Backlinks returns live entries linking to path.
func (s *ControlService) Backlinks(ctx context.Context, path string, page domain.Page) (*domain.EntryPage, error) {
	path = domain.NormalisePath(path)
	if path == "" {
		return nil, fmt.Errorf("%w: path is required", domain.ErrInvalidInput)
	}
	return s.cache.Query(ctx, domain.EntryFilter{LinkTarget: path}, page)
}

// ListWorkflows returns matching workflows.
func (s *ControlService) ListWorkflows(_ context.Context, filter domain.WorkflowFilter) ([]domain.WorkflowInfo, error) {
	return s.registry.List(filter), nil
}

// SetWorkflowEnabled toggles a workflow.
func (s *ControlService) SetWorkflowEnabled(_ context.Context, workflowID string, enabled bool) error {
	return s.registry.SetEnabled(workflowID, enabled)
}

// TriggerWorkflow runs a workflow with optional input. The request carries
// a synthetic event; an input "path" value names the path it targets.
func (s *ControlService) TriggerWorkflow(ctx context.Context, workflowID string, input map[string]any) (*driving.TriggerResult, error) {
	info, err := s.registry.Get(workflowID)
	if err != nil {
		return nil, err
	}
	if err := validateInput(info.Definition.InputSchema, input); err != nil {
		return nil, err
	}

	event := &domain.VaultEvent{
		ChangeKind: domain.ChangeModified,
		ObservedAt: s.now(),
		Synthetic:  true,
	}
	if p, ok := input["path"].(string); ok {
		event.Path = domain.NormalisePath(p)
	}

	req, err := s.matcher.MatchManual(workflowID, event, input)
	if err != nil {
		return nil, err
	}

	rec, err := s.engine.Submit(ctx, *req)
	if err != nil {
		if next := s.matcher.Release(req); next != nil {
			if _, serr := s.engine.Submit(ctx, *next); serr != nil {
				logger.Warn("Submit released request %s: %v", next.RequestID, serr)
			}
		}
		return nil, fmt.Errorf("submit %s: %w", workflowID, err)
	}
	if rec.Queued {
		logger.Info("Manual trigger of %s queued by %s policy as %s", workflowID, info.Definition.Concurrency, rec.ExecutionID)
	}
	req.Queued = rec.Queued
	return &driving.TriggerResult{Request: *req, Execution: rec, Withheld: rec.Queued}, nil
}

// GetExecution returns one execution record.
func (s *ControlService) GetExecution(ctx context.Context, executionID string) (*domain.ExecutionRecord, error) {
	return s.engine.Get(ctx, executionID)
}

// ListExecutions returns records, newest first.
func (s *ControlService) ListExecutions(ctx context.Context, filter domain.ExecutionFilter) ([]domain.ExecutionRecord, error) {
	if filter.Limit <= 0 || filter.Limit > domain.MaxPageLimit {
		filter.Limit = domain.DefaultPageLimit
	}
	for _, st := range filter.States {
		if !st.IsValid() {
			return nil, fmt.Errorf("%w: unknown state %q", domain.ErrInvalidInput, st)
		}
	}
	return s.engine.List(ctx, filter)
}

// CancelExecution cancels an execution.
func (s *ControlService) CancelExecution(ctx context.Context, executionID string) (*domain.ExecutionRecord, error) {
	return s.engine.Cancel(ctx, executionID)
}

// SuspendExecution suspends a running execution.
func (s *ControlService) SuspendExecution(ctx context.Context, executionID string) (*domain.ExecutionRecord, error) {
	return s.engine.Suspend(ctx, executionID)
}

// ResumeExecution resumes a suspended execution.
func (s *ControlService) ResumeExecution(ctx context.Context, executionID string) (*domain.ExecutionRecord, error) {
	return s.engine.Resume(ctx, executionID)
}

// RetryExecution retries a failed execution.
func (s *ControlService) RetryExecution(ctx context.Context, executionID string) (*domain.ExecutionRecord, error) {
	return s.engine.Retry(ctx, executionID)
}

// Resync runs a full resync.
func (s *ControlService) Resync(ctx context.Context) (*domain.ResyncReport, error) {
	return s.cache.FullResync(ctx)
}

// validateInput checks manual trigger input against a JSON schema.
func validateInput(schema, input map[string]any) error {
	if schema == nil {
		return nil
	}
	if input == nil {
		input = map[string]any{}
	}
	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(input))
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidTriggerInput, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, re := range result.Errors() {
			msgs = append(msgs, re.String())
		}
		return fmt.Errorf("%w: %s", domain.ErrInvalidTriggerInput, strings.Join(msgs, "; "))
	}
	return nil
}
