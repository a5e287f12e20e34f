package mcp_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aretw0/duzhibot"
	mcpadapter "github.com/aretw0/duzhibot/pkg/adapters/mcp"
	"github.com/aretw0/duzhibot/pkg/adapters/memory"
	"github.com/aretw0/duzhibot/pkg/domain"
	"github.com/aretw0/duzhibot/pkg/hsm"
	"github.com/aretw0/duzhibot/pkg/session"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*client.Client, *session.Manager) {
	t.Helper()
	bot, err := duzhibot.New()
	require.NoError(t, err)
	manager := session.NewManager(memory.NewStore(), bot)
	srv := mcpadapter.NewServer(manager, bot)

	c, err := client.NewInProcessClient(srv.MCPServer())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	ctx := context.Background()
	require.NoError(t, c.Start(ctx))
	init := mcp.InitializeRequest{}
	init.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	init.Params.ClientInfo = mcp.Implementation{Name: "test-client", Version: "1.0.0"}
	_, err = c.Initialize(ctx, init)
	require.NoError(t, err)
	return c, manager
}

func call(t *testing.T, c *client.Client, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	res, err := c.CallTool(context.Background(), req)
	require.NoError(t, err)
	return res
}

func decode(t *testing.T, res *mcp.CallToolResult, v any) {
	t.Helper()
	require.False(t, res.IsError, "tool returned an error: %+v", res.Content)
	require.NotEmpty(t, res.Content)
	text, ok := mcp.AsTextContent(res.Content[0])
	require.True(t, ok)
	require.NoError(t, json.Unmarshal([]byte(text.Text), v))
}

func TestListTools(t *testing.T) {
	c, _ := newClient(t)
	res, err := c.ListTools(context.Background(), mcp.ListToolsRequest{})
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"send_message", "get_state", "list_commands", "get_graph"}, names)
}

func TestSendMessage(t *testing.T) {
	c, manager := newClient(t)

	var got mcpadapter.SendMessageResult
	decode(t, call(t, c, "send_message", map[string]any{"session_id": "U1", "text": "/register Alice"}), &got)

	assert.True(t, got.Accepted)
	assert.Equal(t, "init.registered", got.State.Path)
	assert.NotEmpty(t, got.Replies)
	require.NotNil(t, got.Diff)
	require.NotNil(t, got.Diff.Data["nick"])
	assert.Equal(t, "alice", *got.Diff.Data["nick"])

	stored, err := manager.Load(context.Background(), "U1")
	require.NoError(t, err)
	assert.Equal(t, "init.registered", stored.Path)

	var refused mcpadapter.SendMessageResult
	decode(t, call(t, c, "send_message", map[string]any{"session_id": "U1", "text": "dance"}), &refused)
	assert.False(t, refused.Accepted)
	assert.Nil(t, refused.Diff, "a refused command changes nothing")
}

func TestSendMessage_RequiresSession(t *testing.T) {
	c, _ := newClient(t)
	res := call(t, c, "send_message", map[string]any{"text": "help"})
	assert.True(t, res.IsError)
}

func TestGetState(t *testing.T) {
	c, _ := newClient(t)

	res := call(t, c, "get_state", map[string]any{"session_id": "ghost"})
	assert.True(t, res.IsError)

	call(t, c, "send_message", map[string]any{"session_id": "U1", "text": "register bob"})
	var state domain.State
	decode(t, call(t, c, "get_state", map[string]any{"session_id": "U1"}), &state)
	assert.Equal(t, "U1", state.SessionID)
	assert.Equal(t, "bob", state.Data["nick"])
}

func TestListCommands(t *testing.T) {
	c, _ := newClient(t)

	var got mcpadapter.CommandsResult
	decode(t, call(t, c, "list_commands", map[string]any{"session_id": "new"}), &got)
	assert.Equal(t, "init.init", got.Path)
	assert.Contains(t, got.Triggers, "register")
	assert.Contains(t, got.Usage, "register <nick>")
}

func TestGetGraph(t *testing.T) {
	c, _ := newClient(t)

	res := call(t, c, "get_graph", map[string]any{"machine": "lexer", "format": "mermaid"})
	require.False(t, res.IsError)
	text, ok := mcp.AsTextContent(res.Content[0])
	require.True(t, ok)
	assert.Contains(t, text.Text, "stateDiagram-v2")

	res = call(t, c, "get_graph", map[string]any{"machine": "nope"})
	assert.True(t, res.IsError)
}

func TestGraphResource(t *testing.T) {
	c, _ := newClient(t)

	req := mcp.ReadResourceRequest{}
	req.Params.URI = mcpadapter.GraphURIPrefix + "parser"
	res, err := c.ReadResource(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)

	text, ok := mcp.AsTextResourceContents(res.Contents[0])
	require.True(t, ok)
	var g hsm.Graph
	require.NoError(t, json.Unmarshal([]byte(text.Text), &g))
	assert.Equal(t, "parser", g.Title)
	assert.NotEmpty(t, g.Edges)
}
