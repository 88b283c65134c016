package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/weave-nn/weaver/internal/core/domain"
)

const (
	// uriScheme is the custom URI scheme for Weaver resources.
	uriScheme = "weaver://"

	entriesPrefix = uriScheme + "entries/"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "workflows",
		Name:        "workflows",
		Description: "Registered workflows and their triggers",
		MIMEType:    "application/json",
	}, s.handleWorkflowsResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: entriesPrefix + "{+path}",
		Name:        "entry",
		Description: "Indexed facts of one vault file",
		MIMEType:    "application/json",
	}, s.handleEntryResource)
}

// handleWorkflowsResource returns every registered workflow.
func (s *Server) handleWorkflowsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	infos, err := s.ports.Control.ListWorkflows(ctx, domain.WorkflowFilter{})
	if err != nil {
		return nil, fmt.Errorf("listing workflows: %w", err)
	}

	views := make([]WorkflowView, len(infos))
	for i := range infos {
		views[i] = workflowView(&infos[i])
	}
	return jsonResource(req.Params.URI, views)
}

// handleEntryResource returns one entry.
func (s *Server) handleEntryResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	path := extractEntryPath(req.Params.URI)
	if path == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	entry, err := s.ports.Control.GetEntry(ctx, path)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, mcp.ResourceNotFoundError(req.Params.URI)
		}
		return nil, fmt.Errorf("getting entry: %w", err)
	}
	return jsonResource(req.Params.URI, entryView(entry))
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling resource: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractEntryPath extracts the vault path from weaver://entries/{path}.
// Percent-encoded segments are decoded.
func extractEntryPath(uri string) string {
	if !strings.HasPrefix(uri, entriesPrefix) {
		return ""
	}
	rest := strings.TrimPrefix(uri, entriesPrefix)
	decoded, err := url.PathUnescape(rest)
	if err != nil {
		return ""
	}
	return decoded
}
