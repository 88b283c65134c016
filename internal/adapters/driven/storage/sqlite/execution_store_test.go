package sqlite

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weave-nn/weaver/internal/core/domain"
)

func testRecord(id string, startedAt time.Time) *domain.ExecutionRecord {
	req := &domain.ExecutionRequest{
		RequestID:  "req-" + id,
		WorkflowID: "wf",
		TriggerEvent: &domain.VaultEvent{
			Path:       "notes/a.md",
			ChangeKind: domain.ChangeModified,
			ObservedAt: startedAt,
			Sequence:   42,
		},
		TriggerInput: map[string]any{"reason": "test"},
	}
	return domain.NewExecutionRecord(id, req, startedAt)
}

func TestExecutionStore_CreateAndGet(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	execs := store.ExecutionStore()

	now := time.Now().UTC()
	require.NoError(t, execs.Create(ctx, testRecord("e1", now)))

	got, err := execs.Get(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionPending, got.State)
	assert.Equal(t, "req-e1", got.RequestID)
	assert.Equal(t, "notes/a.md", got.TriggerPath())
	assert.Equal(t, int64(42), got.TriggerEvent.Sequence)
	assert.Equal(t, "test", got.TriggerInput["reason"])
	assert.True(t, now.Equal(got.StartedAt))
	assert.Nil(t, got.CompletedAt)
	assert.Nil(t, got.Error)
	assert.Empty(t, got.StepResults)

	byReq, err := execs.GetByRequest(ctx, "req-e1")
	require.NoError(t, err)
	assert.Equal(t, "e1", byReq.ExecutionID)

	_, err = execs.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = execs.GetByRequest(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestExecutionStore_QueuedMarker(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	execs := store.ExecutionStore()

	rec := testRecord("e1", time.Now().UTC())
	rec.Queued = true
	require.NoError(t, execs.Create(ctx, rec))

	got, err := execs.Get(ctx, "e1")
	require.NoError(t, err)
	assert.True(t, got.Queued)
	assert.True(t, got.Request().Queued)

	got.Queued = false
	require.NoError(t, execs.Update(ctx, got))
	got, err = execs.Get(ctx, "e1")
	require.NoError(t, err)
	assert.False(t, got.Queued)
}

func TestExecutionStore_CreateRejectsDuplicates(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	execs := store.ExecutionStore()

	require.NoError(t, execs.Create(ctx, testRecord("e1", time.Now())))
	assert.ErrorIs(t, execs.Create(ctx, testRecord("e1", time.Now())), domain.ErrStorage)

	dup := testRecord("e2", time.Now())
	dup.RequestID = "req-e1"
	assert.ErrorIs(t, execs.Create(ctx, dup), domain.ErrStorage)
}

func TestExecutionStore_CheckpointAndCommit(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	execs := store.ExecutionStore()

	now := time.Now().UTC()
	require.NoError(t, execs.Create(ctx, testRecord("e1", now)))

	require.NoError(t, execs.Checkpoint(ctx, "e1", 0, map[string]any{"url": "http://x"}, now))
	got, err := execs.Get(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionRunning, got.State)
	assert.Equal(t, "http://x", got.PendingInput["url"])

	result := domain.StepResult{
		StepIndex:   0,
		StepName:    "fetch",
		Success:     true,
		Output:      map[string]any{"status": 200},
		Attempts:    2,
		StartedAt:   now,
		CompletedAt: now.Add(time.Second),
	}
	require.NoError(t, execs.CommitStep(ctx, "e1", result, 1, now.Add(time.Second)))

	got, err = execs.Get(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.CurrentStepIndex)
	assert.Nil(t, got.PendingInput)
	assert.Equal(t, 1, got.RetryCount)
	require.Len(t, got.StepResults, 1)
	assert.Equal(t, "fetch", got.StepResults[0].StepName)
	assert.Equal(t, 2, got.StepResults[0].Attempts)
	assert.InDelta(t, 200, got.StepResults[0].Output["status"], 0)

	err = execs.CommitStep(ctx, "e1", result, 1, now)
	assert.ErrorIs(t, err, domain.ErrStepIndex, "a step index is committed once")

	got, err = execs.Get(ctx, "e1")
	require.NoError(t, err)
	assert.Len(t, got.StepResults, 1)

	assert.ErrorIs(t, execs.Checkpoint(ctx, "missing", 0, nil, now), domain.ErrNotFound)
	assert.ErrorIs(t, execs.CommitStep(ctx, "missing", result, 0, now), domain.ErrNotFound)
}

func TestExecutionStore_UpdateLeavesStepsAlone(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	execs := store.ExecutionStore()

	now := time.Now().UTC()
	rec := testRecord("e1", now)
	require.NoError(t, execs.Create(ctx, rec))
	require.NoError(t, execs.Checkpoint(ctx, "e1", 0, nil, now))
	require.NoError(t, execs.CommitStep(ctx, "e1", domain.StepResult{StepIndex: 0, StepName: "s", Success: true}, 0, now))

	done := now.Add(time.Minute)
	rec.State = domain.ExecutionFailed
	rec.CurrentStepIndex = 0
	rec.CompletedAt = &done
	rec.Error = &domain.ExecutionError{Kind: domain.ErrorKindStep, Message: "boom", StepIndex: 1}
	rec.ManualRetries = 1
	require.NoError(t, execs.Update(ctx, rec))

	got, err := execs.Get(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionFailed, got.State)
	assert.Equal(t, 1, got.CurrentStepIndex)
	assert.Len(t, got.StepResults, 1)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, done.Equal(*got.CompletedAt))
	assert.Equal(t, "boom", got.Error.Message)
	assert.Equal(t, 1, got.ManualRetries)

	missing := testRecord("missing", now)
	assert.ErrorIs(t, execs.Update(ctx, missing), domain.ErrNotFound)
}

func TestExecutionStore_ResetSteps(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	execs := store.ExecutionStore()

	now := time.Now().UTC()
	require.NoError(t, execs.Create(ctx, testRecord("e1", now)))
	for i := range 2 {
		require.NoError(t, execs.Checkpoint(ctx, "e1", i, nil, now))
		require.NoError(t, execs.CommitStep(ctx, "e1", domain.StepResult{StepIndex: i, StepName: fmt.Sprint(i), Success: true}, 0, now))
	}

	require.NoError(t, execs.ResetSteps(ctx, "e1", now))
	got, err := execs.Get(ctx, "e1")
	require.NoError(t, err)
	assert.Zero(t, got.CurrentStepIndex)
	assert.Empty(t, got.StepResults)

	assert.ErrorIs(t, execs.ResetSteps(ctx, "missing", now), domain.ErrNotFound)
}

func TestExecutionStore_List(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	execs := store.ExecutionStore()

	base := time.Now().UTC().Add(-time.Hour)
	for i := range 4 {
		rec := testRecord(fmt.Sprintf("e%d", i), base.Add(time.Duration(i)*time.Minute))
		if i == 3 {
			rec.WorkflowID = "other"
		}
		if i == 1 {
			rec.State = domain.ExecutionFailed
		}
		require.NoError(t, execs.Create(ctx, rec))
	}

	all, err := execs.List(ctx, domain.ExecutionFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "e3", all[0].ExecutionID, "newest first")
	assert.Equal(t, "e0", all[3].ExecutionID)

	tests := []struct {
		name   string
		filter domain.ExecutionFilter
		want   []string
	}{
		{"by workflow", domain.ExecutionFilter{WorkflowID: "wf"}, []string{"e2", "e1", "e0"}},
		{"by state", domain.ExecutionFilter{States: []domain.ExecutionState{domain.ExecutionFailed}}, []string{"e1"}},
		{"multiple states", domain.ExecutionFilter{States: []domain.ExecutionState{domain.ExecutionFailed, domain.ExecutionPending}, WorkflowID: "wf"}, []string{"e2", "e1", "e0"}},
		{"since", domain.ExecutionFilter{Since: base.Add(2 * time.Minute)}, []string{"e3", "e2"}},
		{"limit", domain.ExecutionFilter{Limit: 2}, []string{"e3", "e2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := execs.List(ctx, tt.filter)
			require.NoError(t, err)
			ids := make([]string, len(got))
			for i, r := range got {
				ids[i] = r.ExecutionID
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}
