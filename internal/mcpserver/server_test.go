package mcpserver

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/harun/mindvault/internal/observability"
	"github.com/harun/mindvault/pkg/memory"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func connect(t *testing.T) (*mcp.ClientSession, *memory.Engine) {
	t.Helper()
	ctx := context.Background()

	engine, err := memory.NewEngine(memory.Config{
		StoragePath: t.TempDir(),
		Logger:      zerolog.Nop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })

	srv, err := New(engine, Options{Name: "mindvault-test", Version: "test", Logger: zerolog.Nop()})
	require.NoError(t, err)

	clientTransport, serverTransport := mcp.NewInMemoryTransports()

	serverSession, err := srv.MCP().Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { serverSession.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "test"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { session.Close() })

	return session, engine
}

func callTool(t *testing.T, session *mcp.ClientSession, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	require.NoError(t, err)
	return result
}

func textOf(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func decodeStructured(t *testing.T, result *mcp.CallToolResult, out any) {
	t.Helper()
	data, err := json.Marshal(result.StructuredContent)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, out))
}

func TestNew_RequiresEngine(t *testing.T) {
	srv, err := New(nil, Options{})
	assert.Error(t, err)
	assert.Nil(t, srv)
}

func TestListTools(t *testing.T) {
	session, _ := connect(t)

	res, err := session.ListTools(context.Background(), nil)
	require.NoError(t, err)

	names := make([]string, len(res.Tools))
	for i, tool := range res.Tools {
		names[i] = tool.Name
	}
	assert.ElementsMatch(t, []string{"memory_search", "memory_add", "memory_delete", "memory_stats"}, names)
}

func TestAddSearchDeleteRoundTrip(t *testing.T) {
	session, engine := connect(t)

	added := callTool(t, session, "memory_add", map[string]any{
		"type":    "project_memory",
		"content": "Migrations live in db/migrations and run with goose",
		"summary": "goose migrations",
		"tags":    []string{"db"},
	})
	require.False(t, added.IsError, textOf(t, added))

	var addOut addOutput
	decodeStructured(t, added, &addOut)
	assert.True(t, addOut.OK)
	require.NotEmpty(t, addOut.ID)

	rec, err := engine.GetByID(context.Background(), addOut.ID)
	require.NoError(t, err)
	require.NotNil(t, rec)

	found := callTool(t, session, "memory_search", map[string]any{"query": "goose"})
	require.False(t, found.IsError)
	assert.Equal(t, "["+addOut.ID+"] (project_memory) goose migrations", textOf(t, found))

	var searchOut searchOutput
	decodeStructured(t, found, &searchOut)
	assert.Equal(t, 1, searchOut.Count)
	assert.Equal(t, []string{addOut.ID}, searchOut.IDs)

	deleted := callTool(t, session, "memory_delete", map[string]any{"id": addOut.ID})
	require.False(t, deleted.IsError)

	var deleteOut deleteOutput
	decodeStructured(t, deleted, &deleteOut)
	assert.Equal(t, 1, deleteOut.Deleted)

	empty := callTool(t, session, "memory_search", map[string]any{"query": "goose"})
	require.False(t, empty.IsError)
	assert.Equal(t, memory.NoResultsMessage, textOf(t, empty))
}

func TestStatsTool(t *testing.T) {
	session, _ := connect(t)

	callTool(t, session, "memory_add", map[string]any{"type": "session_memory", "content": "one"})
	callTool(t, session, "memory_add", map[string]any{"content": "two"})

	result := callTool(t, session, "memory_stats", map[string]any{})
	require.False(t, result.IsError)

	var out statsOutput
	decodeStructured(t, result, &out)
	assert.Equal(t, 2, out.Total)
	assert.Equal(t, 1, out.ByType["session_memory"])
	assert.Equal(t, 1, out.ByType["long_term_memory"])
	assert.Equal(t, 0, out.ByType["project_memory"])
}

func TestToolErrorsAreReported(t *testing.T) {
	session, _ := connect(t)

	tests := []struct {
		name string
		tool string
		args map[string]any
		want string
	}{
		{name: "blank query", tool: "memory_search", args: map[string]any{"query": " "}, want: "query"},
		{name: "limit too high", tool: "memory_search", args: map[string]any{"query": "x", "limit": 51}, want: "limit"},
		{name: "unknown type", tool: "memory_add", args: map[string]any{"type": "scratch", "content": "x"}, want: "type"},
		{name: "no ids", tool: "memory_delete", args: map[string]any{}, want: "id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := callTool(t, session, tt.tool, tt.args)
			assert.True(t, result.IsError)
			assert.Contains(t, textOf(t, result), tt.want)
		})
	}
}

func TestMutationsAreAudited(t *testing.T) {
	auditPath := filepath.Join(t.TempDir(), "audit.log")
	require.NoError(t, observability.InitAuditLogger(auditPath))
	t.Cleanup(func() { observability.CloseAuditLogger() })

	session, _ := connect(t)

	added := callTool(t, session, "memory_add", map[string]any{"content": "CI runs on every push to main"})
	require.False(t, added.IsError)
	var addOut addOutput
	decodeStructured(t, added, &addOut)

	callTool(t, session, "memory_delete", map[string]any{"ids": []string{addOut.ID, "missing"}})
	callTool(t, session, "memory_search", map[string]any{"query": "push"})

	data, err := os.ReadFile(auditPath)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"action":"memory_add"`)
	assert.Contains(t, lines[0], `"actor":"mcp"`)
	assert.Contains(t, lines[0], `"request_id":`)
	assert.Contains(t, lines[1], `"action":"memory_delete"`)
	assert.Contains(t, lines[1], `"deleted":1`)
}
