package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/weave-nn/weaver/internal/core/domain"
	"github.com/weave-nn/weaver/internal/core/ports/driven"
)

// executionStore implements driven.ExecutionStore.
type executionStore struct {
	store *Store
}

var _ driven.ExecutionStore = (*executionStore)(nil)

const executionColumns = `id, request_id, workflow_id, state, current_step_index, pending_input,
	trigger_event, trigger_input, started_at, updated_at, completed_at, error,
	retry_count, manual_retries, suspend_reason, queued`

// Create inserts a new record. A duplicate execution or request ID fails.
func (s *executionStore) Create(ctx context.Context, rec *domain.ExecutionRecord) error {
	if rec == nil || rec.ExecutionID == "" {
		return domain.ErrInvalidInput
	}
	pending, event, input, execErr, err := encodeRecord(rec)
	if err != nil {
		return fmt.Errorf("%w: encoding execution: %w", domain.ErrInvalidInput, err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO executions (`+executionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ExecutionID, rec.RequestID, rec.WorkflowID, string(rec.State), rec.CurrentStepIndex,
		pending, event, input, formatTime(rec.StartedAt), formatTime(rec.UpdatedAt),
		completedAt(rec), execErr, rec.RetryCount, rec.ManualRetries, rec.SuspendReason, boolToInt(rec.Queued))
	if err != nil {
		return storageErr("creating execution", err)
	}
	return nil
}

// Get retrieves a record with its committed step results.
func (s *executionStore) Get(ctx context.Context, executionID string) (*domain.ExecutionRecord, error) {
	return s.getWhere(ctx, "id = ?", executionID)
}

// GetByRequest retrieves the record created for a request.
func (s *executionStore) GetByRequest(ctx context.Context, requestID string) (*domain.ExecutionRecord, error) {
	return s.getWhere(ctx, "request_id = ?", requestID)
}

func (s *executionStore) getWhere(ctx context.Context, cond string, arg any) (*domain.ExecutionRecord, error) {
	row := s.store.db.QueryRowContext(ctx, `SELECT `+executionColumns+` FROM executions WHERE `+cond, arg)
	rec, err := scanExecution(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, storageErr("scanning execution", err)
	}
	steps, err := s.stepResults(ctx, rec.ExecutionID)
	if err != nil {
		return nil, err
	}
	rec.StepResults = steps
	return rec, nil
}

// Checkpoint persists the step index and pending input and marks the
// record running.
func (s *executionStore) Checkpoint(ctx context.Context, executionID string, stepIndex int, input map[string]any, at time.Time) error {
	pending, err := marshalJSON(input)
	if err != nil {
		return fmt.Errorf("%w: encoding pending input: %w", domain.ErrInvalidInput, err)
	}
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE executions
		SET current_step_index = ?, pending_input = ?, state = ?, suspend_reason = '', updated_at = ?
		WHERE id = ?
	`, stepIndex, pending, string(domain.ExecutionRunning), formatTime(at), executionID)
	if err != nil {
		return storageErr("checkpointing execution", err)
	}
	return requireRow(res)
}

// CommitStep appends a step result and advances the step index in one
// transaction.
func (s *executionStore) CommitStep(ctx context.Context, executionID string, result domain.StepResult, retryCount int, at time.Time) error {
	output, err := marshalJSON(result.Output)
	if err != nil {
		return fmt.Errorf("%w: encoding step output: %w", domain.ErrInvalidInput, err)
	}

	return s.store.withTx(ctx, "committing step", func(tx *sql.Tx) error {
		var current int
		err := tx.QueryRowContext(ctx,
			"SELECT current_step_index FROM executions WHERE id = ?", executionID).Scan(&current)
		if err == sql.ErrNoRows {
			return domain.ErrNotFound
		}
		if err != nil {
			return storageErr("reading step index", err)
		}
		if current != result.StepIndex {
			return fmt.Errorf("%w: record at %d, result for %d", domain.ErrStepIndex, current, result.StepIndex)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO step_results (execution_id, step_index, step_name, success, output, error, attempts, started_at, completed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, executionID, result.StepIndex, result.StepName, boolToInt(result.Success), output,
			result.Error, result.Attempts, formatTime(result.StartedAt), formatTime(result.CompletedAt))
		if err != nil {
			return storageErr("saving step result", err)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE executions
			SET current_step_index = ?, pending_input = NULL, retry_count = ?, updated_at = ?
			WHERE id = ?
		`, result.StepIndex+1, retryCount, formatTime(at), executionID)
		if err != nil {
			return storageErr("advancing step index", err)
		}
		return nil
	})
}

// Update writes state, the queued marker, error, counters and timestamps. Step results, the
// step index and pending input are left untouched.
func (s *executionStore) Update(ctx context.Context, rec *domain.ExecutionRecord) error {
	if rec == nil {
		return domain.ErrInvalidInput
	}
	event, err := marshalJSON(rec.TriggerEvent)
	if err != nil {
		return fmt.Errorf("%w: encoding trigger event: %w", domain.ErrInvalidInput, err)
	}
	input, err := marshalJSON(rec.TriggerInput)
	if err != nil {
		return fmt.Errorf("%w: encoding trigger input: %w", domain.ErrInvalidInput, err)
	}
	execErr, err := marshalJSON(rec.Error)
	if err != nil {
		return fmt.Errorf("%w: encoding error: %w", domain.ErrInvalidInput, err)
	}

	res, err := s.store.db.ExecContext(ctx, `
		UPDATE executions SET
			request_id = ?, workflow_id = ?, state = ?, trigger_event = ?, trigger_input = ?,
			started_at = ?, updated_at = ?, completed_at = ?, error = ?,
			retry_count = ?, manual_retries = ?, suspend_reason = ?, queued = ?
		WHERE id = ?
	`, rec.RequestID, rec.WorkflowID, string(rec.State), event, input,
		formatTime(rec.StartedAt), formatTime(rec.UpdatedAt), completedAt(rec), execErr,
		rec.RetryCount, rec.ManualRetries, rec.SuspendReason, boolToInt(rec.Queued), rec.ExecutionID)
	if err != nil {
		return storageErr("updating execution", err)
	}
	return requireRow(res)
}

// ResetSteps deletes every step result and rewinds to step 0.
func (s *executionStore) ResetSteps(ctx context.Context, executionID string, at time.Time) error {
	return s.store.withTx(ctx, "resetting steps", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE executions SET current_step_index = 0, pending_input = NULL, updated_at = ?
			WHERE id = ?
		`, formatTime(at), executionID)
		if err != nil {
			return storageErr("rewinding execution", err)
		}
		if err := requireRow(res); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM step_results WHERE execution_id = ?", executionID); err != nil {
			return storageErr("deleting step results", err)
		}
		return nil
	})
}

// List returns matching records, most recently started first.
func (s *executionStore) List(ctx context.Context, filter domain.ExecutionFilter) ([]domain.ExecutionRecord, error) {
	var where []string
	var args []any
	if filter.WorkflowID != "" {
		where = append(where, "workflow_id = ?")
		args = append(args, filter.WorkflowID)
	}
	if len(filter.States) > 0 {
		where = append(where, "state IN ("+placeholders(len(filter.States))+")")
		for _, st := range filter.States {
			args = append(args, string(st))
		}
	}
	if !filter.Since.IsZero() {
		where = append(where, "started_at >= ?")
		args = append(args, formatTime(filter.Since))
	}

	query := `SELECT ` + executionColumns + ` FROM executions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY started_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("querying executions", err)
	}
	defer rows.Close()

	out := make([]domain.ExecutionRecord, 0)
	for rows.Next() {
		rec, err := scanExecution(rows)
		if err != nil {
			return nil, storageErr("scanning execution", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterating executions", err)
	}
	rows.Close()

	for i := range out {
		steps, err := s.stepResults(ctx, out[i].ExecutionID)
		if err != nil {
			return nil, err
		}
		out[i].StepResults = steps
	}
	return out, nil
}

func (s *executionStore) stepResults(ctx context.Context, executionID string) ([]domain.StepResult, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT step_index, step_name, success, output, error, attempts, started_at, completed_at
		FROM step_results WHERE execution_id = ? ORDER BY step_index
	`, executionID)
	if err != nil {
		return nil, storageErr("querying step results", err)
	}
	defer rows.Close()

	var out []domain.StepResult //nolint:prealloc // size unknown from query
	for rows.Next() {
		var r domain.StepResult
		var success int
		var output sql.NullString
		var startedAt, completedAt string
		if err := rows.Scan(&r.StepIndex, &r.StepName, &success, &output, &r.Error,
			&r.Attempts, &startedAt, &completedAt); err != nil {
			return nil, storageErr("scanning step result", err)
		}
		r.Success = success == 1
		if err := unmarshalJSON(output, &r.Output); err != nil {
			return nil, storageErr("decoding step output", err)
		}
		r.StartedAt = parseTime(startedAt)
		r.CompletedAt = parseTime(completedAt)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterating step results", err)
	}
	return out, nil
}

// ==================== Helper Functions ====================

func scanExecution(row scanner) (*domain.ExecutionRecord, error) {
	var rec domain.ExecutionRecord
	var state, startedAt, updatedAt string
	var pending, event, input, completed, execErr sql.NullString
	var queued int

	if err := row.Scan(&rec.ExecutionID, &rec.RequestID, &rec.WorkflowID, &state, &rec.CurrentStepIndex,
		&pending, &event, &input, &startedAt, &updatedAt, &completed, &execErr,
		&rec.RetryCount, &rec.ManualRetries, &rec.SuspendReason, &queued); err != nil {
		return nil, err
	}

	rec.State = domain.ExecutionState(state)
	rec.Queued = queued == 1
	rec.StartedAt = parseTime(startedAt)
	rec.UpdatedAt = parseTime(updatedAt)
	if t := parseNullableTime(completed); !t.IsZero() {
		rec.CompletedAt = &t
	}
	if err := unmarshalJSON(pending, &rec.PendingInput); err != nil {
		return nil, fmt.Errorf("decoding pending input: %w", err)
	}
	if err := unmarshalJSON(input, &rec.TriggerInput); err != nil {
		return nil, fmt.Errorf("decoding trigger input: %w", err)
	}
	if event.Valid {
		rec.TriggerEvent = &domain.VaultEvent{}
		if err := unmarshalJSON(event, rec.TriggerEvent); err != nil {
			return nil, fmt.Errorf("decoding trigger event: %w", err)
		}
	}
	if execErr.Valid {
		rec.Error = &domain.ExecutionError{}
		if err := unmarshalJSON(execErr, rec.Error); err != nil {
			return nil, fmt.Errorf("decoding error: %w", err)
		}
	}
	return &rec, nil
}

func encodeRecord(rec *domain.ExecutionRecord) (pending, event, input, execErr any, err error) {
	if pending, err = marshalJSON(rec.PendingInput); err != nil {
		return
	}
	if event, err = marshalJSON(rec.TriggerEvent); err != nil {
		return
	}
	if input, err = marshalJSON(rec.TriggerInput); err != nil {
		return
	}
	execErr, err = marshalJSON(rec.Error)
	return
}

func completedAt(rec *domain.ExecutionRecord) any {
	if rec.CompletedAt == nil {
		return nil
	}
	return formatTime(*rec.CompletedAt)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr("reading affected rows", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
