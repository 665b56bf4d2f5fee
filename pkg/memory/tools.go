package memory

import (
	"context"
	"fmt"
	"strings"
)

// NoResultsMessage is returned as search context when nothing matched
const NoResultsMessage = "No relevant memories found."

// MemorySearchParams defines parameters for memory_search tool
type MemorySearchParams struct {
	Query     string   `json:"query"`
	Limit     int      `json:"limit,omitempty"`
	Types     []string `json:"types,omitempty"`
	MaxTokens int      `json:"max_tokens,omitempty"`
}

// MemorySearchResult represents the result of a memory search
type MemorySearchResult struct {
	Query   string   `json:"query"`
	Count   int      `json:"count"`
	Context string   `json:"context"`
	IDs     []string `json:"ids"`
}

// MemorySearch retrieves memories for query and compresses them into a context block
func MemorySearch(ctx context.Context, engine *Engine, params MemorySearchParams) (*MemorySearchResult, error) {
	if strings.TrimSpace(params.Query) == "" {
		return nil, &ValidationError{Field: "query", Msg: "is required"}
	}
	if params.Limit < 0 || params.Limit > MaxRetrieveLimit {
		return nil, &ValidationError{Field: "limit", Msg: fmt.Sprintf("must be between 1 and %d", MaxRetrieveLimit)}
	}
	if params.MaxTokens < 0 {
		return nil, &ValidationError{Field: "max_tokens", Msg: "must not be negative"}
	}

	types, err := ParseTypes(params.Types)
	if err != nil {
		return nil, err
	}

	results, err := engine.Retrieve(ctx, params.Query, RetrieveOptions{
		Limit: params.Limit,
		Types: types,
	})
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.Record.ID
	}

	text := NoResultsMessage
	if len(results) > 0 {
		text = engine.Compress(Records(results), params.MaxTokens)
	}

	return &MemorySearchResult{
		Query:   params.Query,
		Count:   len(results),
		Context: text,
		IDs:     ids,
	}, nil
}

// MemoryAddParams defines parameters for memory_add tool
type MemoryAddParams struct {
	Type     string   `json:"type,omitempty"`
	Content  string   `json:"content"`
	Summary  string   `json:"summary,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	FileRefs []string `json:"file_refs,omitempty"`
}

// MemoryAddResult represents the result of a memory add
type MemoryAddResult struct {
	ID string `json:"id"`
	OK bool   `json:"ok"`
}

// MemoryAdd stores a new memory. An empty type means DefaultType.
func MemoryAdd(ctx context.Context, engine *Engine, params MemoryAddParams) (*MemoryAddResult, error) {
	memType := DefaultType
	if params.Type != "" {
		t, err := ParseType(params.Type)
		if err != nil {
			return nil, err
		}
		memType = t
	}

	id, err := engine.Ingest(ctx, AddParams{
		Type:     memType,
		Content:  params.Content,
		Summary:  params.Summary,
		Tags:     params.Tags,
		FileRefs: params.FileRefs,
	})
	if err != nil {
		return nil, err
	}

	return &MemoryAddResult{ID: id, OK: true}, nil
}

// MemoryDeleteParams defines parameters for memory_delete tool
type MemoryDeleteParams struct {
	ID  string   `json:"id,omitempty"`
	IDs []string `json:"ids,omitempty"`
}

// MemoryDeleteResult represents the result of a memory delete
type MemoryDeleteResult struct {
	Deleted int  `json:"deleted"`
	OK      bool `json:"ok"`
}

// MemoryDelete removes memories by id. Unknown ids are ignored.
func MemoryDelete(ctx context.Context, engine *Engine, params MemoryDeleteParams) (*MemoryDeleteResult, error) {
	ids := make([]string, 0, len(params.IDs)+1)
	if params.ID != "" {
		ids = append(ids, params.ID)
	}
	for _, id := range params.IDs {
		if id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, &ValidationError{Field: "id", Msg: "id or ids is required"}
	}

	deleted, err := engine.DeleteByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("delete failed: %w", err)
	}

	return &MemoryDeleteResult{Deleted: deleted, OK: true}, nil
}

// MemoryStats reports record counts per type
func MemoryStats(ctx context.Context, engine *Engine) (*Stats, error) {
	stats, err := engine.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("stats failed: %w", err)
	}
	return &stats, nil
}
