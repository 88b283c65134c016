package mcp

import (
	"time"

	"github.com/weave-nn/weaver/internal/core/domain"
)

// Tool outputs use string timestamps so their inferred schemas stay simple.

// EntryView is the tool representation of a vault entry.
type EntryView struct {
	Path           string   `json:"path"`
	Kind           string   `json:"kind,omitempty"`
	Status         string   `json:"status,omitempty"`
	Tags           []string `json:"tags"`
	OutboundLinks  []string `json:"outbound_links"`
	ContentHash    string   `json:"content_hash"`
	LastSeenAt     string   `json:"last_seen_at"`
	LastModifiedAt string   `json:"last_modified_at"`
	Deleted        bool     `json:"deleted"`
	DeletedAt      string   `json:"deleted_at,omitempty"`
}

// StepView is the tool representation of a committed step result.
type StepView struct {
	Index    int            `json:"index"`
	Name     string         `json:"name"`
	Success  bool           `json:"success"`
	Attempts int            `json:"attempts"`
	Output   map[string]any `json:"output,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// ExecutionView is the tool representation of an execution record.
type ExecutionView struct {
	ExecutionID      string     `json:"execution_id"`
	WorkflowID       string     `json:"workflow_id"`
	State            string     `json:"state"`
	TriggerPath      string     `json:"trigger_path,omitempty"`
	TriggerKind      string     `json:"trigger_kind,omitempty"`
	CurrentStepIndex int        `json:"current_step_index"`
	Steps            []StepView `json:"steps"`
	StartedAt        string     `json:"started_at"`
	UpdatedAt        string     `json:"updated_at"`
	CompletedAt      string     `json:"completed_at,omitempty"`
	ErrorKind        string     `json:"error_kind,omitempty"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	RetryCount       int        `json:"retry_count"`
	SuspendReason    string     `json:"suspend_reason,omitempty"`
}

// WorkflowView is the tool representation of a registered workflow.
type WorkflowView struct {
	ID          string   `json:"id"`
	Description string   `json:"description,omitempty"`
	Enabled     bool     `json:"enabled"`
	Triggers    []string `json:"triggers"`
	Concurrency string   `json:"concurrency"`
	Schedule    string   `json:"schedule,omitempty"`
	Steps       []string `json:"steps"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func entryView(e *domain.VaultEntry) EntryView {
	v := EntryView{
		Path:           e.Path,
		Kind:           e.Kind,
		Status:         e.Status,
		Tags:           append([]string{}, e.Tags...),
		OutboundLinks:  append([]string{}, e.OutboundLinks...),
		ContentHash:    e.ContentHash,
		LastSeenAt:     formatTime(e.LastSeenAt),
		LastModifiedAt: formatTime(e.LastModifiedAt),
		Deleted:        e.Deleted,
	}
	if e.Deleted {
		v.DeletedAt = formatTime(e.DeletedAt)
	}
	return v
}

func entryViews(entries []domain.VaultEntry) []EntryView {
	out := make([]EntryView, len(entries))
	for i := range entries {
		out[i] = entryView(&entries[i])
	}
	return out
}

func executionView(r *domain.ExecutionRecord) ExecutionView {
	v := ExecutionView{
		ExecutionID:      r.ExecutionID,
		WorkflowID:       r.WorkflowID,
		State:            string(r.State),
		TriggerPath:      r.TriggerPath(),
		CurrentStepIndex: r.CurrentStepIndex,
		Steps:            make([]StepView, len(r.StepResults)),
		StartedAt:        formatTime(r.StartedAt),
		UpdatedAt:        formatTime(r.UpdatedAt),
		RetryCount:       r.RetryCount,
		SuspendReason:    r.SuspendReason,
	}
	if r.TriggerEvent != nil {
		v.TriggerKind = string(r.TriggerEvent.ChangeKind)
	}
	if r.CompletedAt != nil {
		v.CompletedAt = formatTime(*r.CompletedAt)
	}
	if r.Error != nil {
		v.ErrorKind = r.Error.Kind
		v.ErrorMessage = r.Error.Message
	}
	for i, s := range r.StepResults {
		v.Steps[i] = StepView{
			Index:    s.StepIndex,
			Name:     s.StepName,
			Success:  s.Success,
			Attempts: s.Attempts,
			Output:   s.Output,
			Error:    s.Error,
		}
	}
	return v
}

func workflowView(info *domain.WorkflowInfo) WorkflowView {
	def := info.Definition
	v := WorkflowView{
		ID:          def.ID,
		Description: def.Description,
		Enabled:     info.Enabled,
		Triggers:    append([]string{}, def.TriggerPatterns...),
		Concurrency: string(def.Concurrency),
		Schedule:    def.Schedule,
		Steps:       make([]string, len(def.Steps)),
	}
	for i, s := range def.Steps {
		v.Steps[i] = s.Name + " (" + s.Type + ")"
	}
	return v
}
