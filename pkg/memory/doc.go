// Package memory stores agent memories in SQLite and retrieves them with hybrid search.
//
// Invariants:
// - Every stored record has exactly one full-text entry, written in the same transaction.
// - Retrieval fuses keyword (BM25) and cosine rankings; embedding failures degrade to keyword only.
// - Compressed context never exceeds its token budget except for the first line.
// - Ingest, retrieve and delete emit tracing spans and metrics.
//
// Usage:
//
//	engine, _ := memory.NewEngine(memory.Config{StoragePath: "/data/mindvault"})
//	defer engine.Close()
//	id, _ := engine.Ingest(ctx, memory.AddParams{Type: memory.TypeProject, Content: "uses pgx for postgres"})
//	results, _ := engine.Retrieve(ctx, "postgres driver", memory.RetrieveOptions{Limit: 5})
//	text := engine.Compress(memory.Records(results), 500)
//	_, _ = id, text
package memory
