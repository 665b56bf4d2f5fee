package memory

import (
	"context"
	"fmt"
	"strings"
	"unicode"
)

// LexicalHit is a keyword search match. Rank is the FTS5 bm25 value: lower is more relevant.
type LexicalHit struct {
	ID   string
	Rank float64
}

// LexicalSearch runs a BM25-ranked full-text query over summary, raw and tags.
// A query that is empty after sanitization yields no hits and no error.
func (s *Store) LexicalSearch(ctx context.Context, query string, limit int, types []Type) ([]LexicalHit, error) {
	match := sanitizeQuery(query)
	if match == "" || limit <= 0 {
		return []LexicalHit{}, nil
	}

	args := []any{match}
	typeFilter := ""
	if len(types) > 0 {
		typeFilter = " AND m.type IN (" + placeholders(len(types)) + ")"
		args = append(args, toArgs(types)...)
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, bm25(memories_fts) AS rank
		FROM memories_fts
		JOIN memories m ON m.rowid = memories_fts.rowid
		WHERE memories_fts MATCH ?`+typeFilter+`
		ORDER BY rank, m.id
		LIMIT ?
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to run keyword search: %w", err)
	}
	defer rows.Close()

	hits := []LexicalHit{}
	for rows.Next() {
		var h LexicalHit
		if err := rows.Scan(&h.ID, &h.Rank); err != nil {
			return nil, fmt.Errorf("failed to scan keyword hit: %w", err)
		}
		hits = append(hits, h)
	}

	return hits, rows.Err()
}

// sanitizeQuery strips quote characters and turns every remaining term into a quoted
// FTS5 string, so operator characters inside a term cannot produce a syntax error.
// Terms are combined with FTS5's implicit AND.
func sanitizeQuery(query string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r == '"' || r == '\'' {
			return -1
		}
		return r
	}, query)

	var terms []string
	for _, field := range strings.Fields(cleaned) {
		if !strings.ContainsFunc(field, isTermRune) {
			continue
		}
		terms = append(terms, `"`+field+`"`)
	}
	return strings.Join(terms, " ")
}

func isTermRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
