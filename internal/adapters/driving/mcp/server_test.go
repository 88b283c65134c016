package mcp

import (
	"context"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServer(t *testing.T) {
	t.Run("missing control surface returns error", func(t *testing.T) {
		server, err := NewServer(&Ports{})
		require.Error(t, err)
		assert.Nil(t, server)
		assert.ErrorIs(t, err, ErrMissingControlSurface)
	})

	t.Run("valid ports creates server", func(t *testing.T) {
		server, err := NewServer(&Ports{Control: sampleControl()})
		require.NoError(t, err)
		assert.NotNil(t, server)
		assert.NotNil(t, server.Handler())
	})
}

func TestPorts_Validate(t *testing.T) {
	var nilPorts *Ports
	assert.ErrorIs(t, nilPorts.Validate(), ErrMissingControlSurface)
	assert.ErrorIs(t, (&Ports{}).Validate(), ErrMissingControlSurface)
	assert.NoError(t, (&Ports{Control: sampleControl()}).Validate())
}

func TestServer_InMemorySession(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := newTestServer(t, sampleControl())
	clientTransport, serverTransport := mcp.NewInMemoryTransports()

	serverSession, err := s.server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	defer serverSession.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer session.Close()

	tools, err := session.ListTools(ctx, nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{
		"query_entries", "get_entry", "count_entries", "list_workflows",
		"trigger_workflow", "get_execution", "list_executions",
		"cancel_execution", "suspend_execution", "resume_execution", "retry_execution",
	}, names)

	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "get_entry",
		Arguments: map[string]any{"path": "notes/a.md"},
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)

	res, err = session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "get_entry",
		Arguments: map[string]any{"path": "missing.md"},
	})
	require.NoError(t, err)
	assert.True(t, res.IsError)

	read, err := session.ReadResource(ctx, &mcp.ReadResourceParams{URI: "weaver://entries/notes/a.md"})
	require.NoError(t, err)
	require.Len(t, read.Contents, 1)
	assert.Contains(t, read.Contents[0].Text, `"concept"`)
}
