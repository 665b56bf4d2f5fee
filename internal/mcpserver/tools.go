package mcpserver

import (
	"context"
	"fmt"

	"github.com/harun/mindvault/internal/observability"
	"github.com/harun/mindvault/pkg/memory"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type searchInput struct {
	Query     string   `json:"query" jsonschema:"Search query for relevant memories"`
	Limit     int      `json:"limit,omitempty" jsonschema:"Maximum results to return, 1 to 50 (default: 10)"`
	Types     []string `json:"types,omitempty" jsonschema:"Filter by memory type: session_memory, long_term_memory, project_memory"`
	MaxTokens int      `json:"max_tokens,omitempty" jsonschema:"Token budget for the returned context (default: 2000)"`
}

type searchOutput struct {
	Query string   `json:"query" jsonschema:"Search query used"`
	Count int      `json:"count" jsonschema:"Number of memories found"`
	IDs   []string `json:"ids" jsonschema:"Memory ids in relevance order"`
}

type addInput struct {
	Type     string   `json:"type,omitempty" jsonschema:"Memory type: session_memory, long_term_memory (default) or project_memory"`
	Content  string   `json:"content" jsonschema:"Full memory text"`
	Summary  string   `json:"summary,omitempty" jsonschema:"Short summary, at most 500 characters; derived from content when empty"`
	Tags     []string `json:"tags,omitempty" jsonschema:"Tags, at most 50"`
	FileRefs []string `json:"file_refs,omitempty" jsonschema:"Related file paths"`
}

type addOutput struct {
	ID string `json:"id" jsonschema:"Id of the stored memory"`
	OK bool   `json:"ok"`
}

type deleteInput struct {
	ID  string   `json:"id,omitempty" jsonschema:"Single memory id to delete"`
	IDs []string `json:"ids,omitempty" jsonschema:"Memory ids to delete"`
}

type deleteOutput struct {
	Deleted int  `json:"deleted" jsonschema:"Number of memories that existed and were deleted"`
	OK      bool `json:"ok"`
}

type statsInput struct{}

type statsOutput struct {
	Total  int            `json:"total" jsonschema:"Total number of memories"`
	ByType map[string]int `json:"by_type" jsonschema:"Memory count per type"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "memory_search",
		Description: "Search stored memories with hybrid keyword and semantic ranking. Returns a compact context block sized to the token budget.",
	}, instrument(s, "memory_search", s.handleSearch))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "memory_add",
		Description: "Store a new memory. Use project_memory for facts about the codebase, session_memory for the current task and long_term_memory for durable preferences.",
	}, instrument(s, "memory_add", s.handleAdd))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "memory_delete",
		Description: "Delete memories by id. Unknown ids are ignored.",
	}, instrument(s, "memory_delete", s.handleDelete))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "memory_stats",
		Description: "Count stored memories in total and per type.",
	}, instrument(s, "memory_stats", s.handleStats))
}

func (s *Server) handleSearch(ctx context.Context, args searchInput) (*mcp.CallToolResult, searchOutput, error) {
	result, err := memory.MemorySearch(ctx, s.engine, memory.MemorySearchParams{
		Query:     args.Query,
		Limit:     args.Limit,
		Types:     args.Types,
		MaxTokens: args.MaxTokens,
	})
	if err != nil {
		return nil, searchOutput{}, err
	}

	return textResult(result.Context), searchOutput{
		Query: result.Query,
		Count: result.Count,
		IDs:   result.IDs,
	}, nil
}

func (s *Server) handleAdd(ctx context.Context, args addInput) (*mcp.CallToolResult, addOutput, error) {
	result, err := memory.MemoryAdd(ctx, s.engine, memory.MemoryAddParams{
		Type:     args.Type,
		Content:  args.Content,
		Summary:  args.Summary,
		Tags:     args.Tags,
		FileRefs: args.FileRefs,
	})
	if err != nil {
		observability.RecordMemoryAudit(ctx, "memory_add", observability.ActorMCP, err, nil)
		return nil, addOutput{}, err
	}
	observability.RecordMemoryAudit(ctx, "memory_add", observability.ActorMCP, nil, map[string]interface{}{"id": result.ID})

	return textResult(fmt.Sprintf("Stored memory %s", result.ID)), addOutput{ID: result.ID, OK: result.OK}, nil
}

func (s *Server) handleDelete(ctx context.Context, args deleteInput) (*mcp.CallToolResult, deleteOutput, error) {
	result, err := memory.MemoryDelete(ctx, s.engine, memory.MemoryDeleteParams{ID: args.ID, IDs: args.IDs})
	if err != nil {
		observability.RecordMemoryAudit(ctx, "memory_delete", observability.ActorMCP, err, nil)
		return nil, deleteOutput{}, err
	}
	observability.RecordMemoryAudit(ctx, "memory_delete", observability.ActorMCP, nil, map[string]interface{}{
		"requested": deleteRequested(args),
		"deleted":   result.Deleted,
	})

	return textResult(fmt.Sprintf("Deleted %d memories", result.Deleted)), deleteOutput{Deleted: result.Deleted, OK: result.OK}, nil
}

func (s *Server) handleStats(ctx context.Context, _ statsInput) (*mcp.CallToolResult, statsOutput, error) {
	stats, err := memory.MemoryStats(ctx, s.engine)
	if err != nil {
		return nil, statsOutput{}, err
	}

	byType := make(map[string]int, len(memory.AllTypes))
	for _, t := range memory.AllTypes {
		byType[string(t)] = stats.ByType[t]
	}

	return textResult(fmt.Sprintf("%d memories stored", stats.Total)), statsOutput{Total: stats.Total, ByType: byType}, nil
}

func deleteRequested(args deleteInput) []string {
	ids := make([]string, 0, len(args.IDs)+1)
	if args.ID != "" {
		ids = append(ids, args.ID)
	}
	return append(ids, args.IDs...)
}
