package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/weave-nn/weaver/internal/core/domain"
)

// QueryEntriesInput is the input schema for the query_entries tool.
type QueryEntriesInput struct {
	PathPrefix     string `json:"path_prefix,omitempty" jsonschema:"only entries whose path starts with this prefix"`
	Kind           string `json:"kind,omitempty" jsonschema:"only entries with this kind"`
	Status         string `json:"status,omitempty" jsonschema:"only entries with this status"`
	Tag            string `json:"tag,omitempty" jsonschema:"only entries carrying this tag"`
	LinkTarget     string `json:"link_target,omitempty" jsonschema:"only entries linking to this target (backlinks)"`
	IncludeDeleted bool   `json:"include_deleted,omitempty" jsonschema:"include tombstoned entries"`
	After          string `json:"after,omitempty" jsonschema:"cursor from a previous page"`
	Limit          int    `json:"limit,omitempty" jsonschema:"page size (default 50, max 500)"`
}

// QueryEntriesOutput is the output schema for the query_entries tool.
type QueryEntriesOutput struct {
	Entries    []EntryView `json:"entries"`
	Count      int         `json:"count"`
	NextCursor string      `json:"next_cursor,omitempty"`
}

// PathInput selects one entry by path.
type PathInput struct {
	Path string `json:"path" jsonschema:"vault-relative path of the entry"`
}

// CountEntriesOutput is the output schema for the count_entries tool.
type CountEntriesOutput struct {
	Total    int            `json:"total"`
	Live     int            `json:"live"`
	Deleted  int            `json:"deleted"`
	ByKind   map[string]int `json:"by_kind"`
	ByStatus map[string]int `json:"by_status"`
	ByTag    map[string]int `json:"by_tag"`
}

// ListWorkflowsInput is the input schema for the list_workflows tool.
type ListWorkflowsInput struct {
	EnabledOnly bool   `json:"enabled_only,omitempty" jsonschema:"exclude disabled workflows"`
	IDPrefix    string `json:"id_prefix,omitempty" jsonschema:"only workflows whose id starts with this prefix"`
}

// ListWorkflowsOutput is the output schema for the list_workflows tool.
type ListWorkflowsOutput struct {
	Workflows []WorkflowView `json:"workflows"`
	Count     int            `json:"count"`
}

// TriggerWorkflowInput is the input schema for the trigger_workflow tool.
type TriggerWorkflowInput struct {
	WorkflowID string         `json:"workflow_id" jsonschema:"id of the workflow to run"`
	Input      map[string]any `json:"input,omitempty" jsonschema:"workflow input; a path key binds the run to a vault file"`
}

// TriggerWorkflowOutput is the output schema for the trigger_workflow tool.
type TriggerWorkflowOutput struct {
	RequestID string         `json:"request_id"`
	Withheld  bool           `json:"withheld"`
	Execution *ExecutionView `json:"execution,omitempty"`
}

// ExecutionIDInput selects one execution.
type ExecutionIDInput struct {
	ExecutionID string `json:"execution_id" jsonschema:"id of the execution"`
}

// ListExecutionsInput is the input schema for the list_executions tool.
type ListExecutionsInput struct {
	WorkflowID string   `json:"workflow_id,omitempty" jsonschema:"only executions of this workflow"`
	States     []string `json:"states,omitempty" jsonschema:"only executions in these states (pending, running, suspended, completed, failed)"`
	Since      string   `json:"since,omitempty" jsonschema:"only executions started at or after this RFC 3339 time"`
	Limit      int      `json:"limit,omitempty" jsonschema:"maximum number of executions (default 50)"`
}

// ListExecutionsOutput is the output schema for the list_executions tool.
type ListExecutionsOutput struct {
	Executions []ExecutionView `json:"executions"`
	Count      int             `json:"count"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "query_entries",
		Description: "Query indexed vault entries by path prefix, kind, status, tag or link target",
	}, s.handleQueryEntries)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_entry",
		Description: "Get the indexed facts of one vault file",
	}, s.handleGetEntry)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "count_entries",
		Description: "Count vault entries, grouped by kind, status and tag",
	}, s.handleCountEntries)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_workflows",
		Description: "List registered workflows",
	}, s.handleListWorkflows)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "trigger_workflow",
		Description: "Run a workflow manually; its concurrency policy still applies",
	}, s.handleTriggerWorkflow)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_execution",
		Description: "Get the state and step results of one execution",
	}, s.handleGetExecution)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_executions",
		Description: "List executions, newest first",
	}, s.handleListExecutions)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "cancel_execution",
		Description: "Cancel a pending, running or suspended execution",
	}, s.executionControl(s.ports.Control.CancelExecution))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "suspend_execution",
		Description: "Suspend a running execution after its current step",
	}, s.executionControl(s.ports.Control.SuspendExecution))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "resume_execution",
		Description: "Resume a suspended execution",
	}, s.executionControl(s.ports.Control.ResumeExecution))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "retry_execution",
		Description: "Retry a failed execution",
	}, s.executionControl(s.ports.Control.RetryExecution))
}

func (s *Server) handleQueryEntries(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input QueryEntriesInput,
) (*mcp.CallToolResult, QueryEntriesOutput, error) {
	filter := domain.EntryFilter{
		PathPrefix:     input.PathPrefix,
		Kind:           input.Kind,
		Status:         input.Status,
		Tag:            input.Tag,
		LinkTarget:     input.LinkTarget,
		IncludeDeleted: input.IncludeDeleted,
	}
	page, err := s.ports.Control.QueryEntries(ctx, filter, domain.Page{After: input.After, Limit: input.Limit})
	if err != nil {
		return nil, QueryEntriesOutput{}, err
	}

	return nil, QueryEntriesOutput{
		Entries:    entryViews(page.Entries),
		Count:      len(page.Entries),
		NextCursor: page.NextCursor,
	}, nil
}

func (s *Server) handleGetEntry(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input PathInput,
) (*mcp.CallToolResult, EntryView, error) {
	entry, err := s.ports.Control.GetEntry(ctx, input.Path)
	if err != nil {
		return nil, EntryView{}, err
	}
	return nil, entryView(entry), nil
}

func (s *Server) handleCountEntries(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input QueryEntriesInput,
) (*mcp.CallToolResult, CountEntriesOutput, error) {
	counts, err := s.ports.Control.CountEntries(ctx, domain.EntryFilter{
		PathPrefix:     input.PathPrefix,
		Kind:           input.Kind,
		Status:         input.Status,
		Tag:            input.Tag,
		LinkTarget:     input.LinkTarget,
		IncludeDeleted: input.IncludeDeleted,
	})
	if err != nil {
		return nil, CountEntriesOutput{}, err
	}
	return nil, CountEntriesOutput{
		Total:    counts.Total,
		Live:     counts.Live,
		Deleted:  counts.Deleted,
		ByKind:   orEmpty(counts.ByKind),
		ByStatus: orEmpty(counts.ByStatus),
		ByTag:    orEmpty(counts.ByTag),
	}, nil
}

func orEmpty(m map[string]int) map[string]int {
	if m == nil {
		return map[string]int{}
	}
	return m
}

func (s *Server) handleListWorkflows(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ListWorkflowsInput,
) (*mcp.CallToolResult, ListWorkflowsOutput, error) {
	infos, err := s.ports.Control.ListWorkflows(ctx, domain.WorkflowFilter{
		EnabledOnly: input.EnabledOnly,
		IDPrefix:    input.IDPrefix,
	})
	if err != nil {
		return nil, ListWorkflowsOutput{}, err
	}

	out := ListWorkflowsOutput{Workflows: make([]WorkflowView, len(infos)), Count: len(infos)}
	for i := range infos {
		out.Workflows[i] = workflowView(&infos[i])
	}
	return nil, out, nil
}

func (s *Server) handleTriggerWorkflow(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input TriggerWorkflowInput,
) (*mcp.CallToolResult, TriggerWorkflowOutput, error) {
	res, err := s.ports.Control.TriggerWorkflow(ctx, input.WorkflowID, input.Input)
	if err != nil {
		return nil, TriggerWorkflowOutput{}, err
	}

	out := TriggerWorkflowOutput{RequestID: res.Request.RequestID, Withheld: res.Withheld}
	if res.Execution != nil {
		v := executionView(res.Execution)
		out.Execution = &v
	}
	return nil, out, nil
}

func (s *Server) handleGetExecution(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ExecutionIDInput,
) (*mcp.CallToolResult, ExecutionView, error) {
	rec, err := s.ports.Control.GetExecution(ctx, input.ExecutionID)
	if err != nil {
		return nil, ExecutionView{}, err
	}
	return nil, executionView(rec), nil
}

func (s *Server) handleListExecutions(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ListExecutionsInput,
) (*mcp.CallToolResult, ListExecutionsOutput, error) {
	filter := domain.ExecutionFilter{WorkflowID: input.WorkflowID, Limit: input.Limit}
	for _, st := range input.States {
		filter.States = append(filter.States, domain.ExecutionState(st))
	}
	if input.Since != "" {
		since, err := time.Parse(time.RFC3339, input.Since)
		if err != nil {
			return nil, ListExecutionsOutput{}, fmt.Errorf("%w: since must be an RFC 3339 time", domain.ErrInvalidInput)
		}
		filter.Since = since
	}

	recs, err := s.ports.Control.ListExecutions(ctx, filter)
	if err != nil {
		return nil, ListExecutionsOutput{}, err
	}

	out := ListExecutionsOutput{Executions: make([]ExecutionView, len(recs)), Count: len(recs)}
	for i := range recs {
		out.Executions[i] = executionView(&recs[i])
	}
	return nil, out, nil
}

// executionControl adapts a control operation on one execution to a tool handler.
func (s *Server) executionControl(
	op func(context.Context, string) (*domain.ExecutionRecord, error),
) mcp.ToolHandlerFor[ExecutionIDInput, ExecutionView] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ExecutionIDInput) (*mcp.CallToolResult, ExecutionView, error) {
		rec, err := op(ctx, input.ExecutionID)
		if err != nil {
			return nil, ExecutionView{}, err
		}
		return nil, executionView(rec), nil
	}
}
