package memory

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
)

// VectorHit is a similarity match. Distance is cosine distance: lower is more similar.
type VectorHit struct {
	ID       string
	Distance float64
}

// VectorSearch ranks records that carry an embedding by cosine distance to query.
// Records without an embedding are invisible here. If any candidate embedding has a
// different dimensionality than query the search fails with an EmbeddingError wrapping
// ErrDimensionMismatch instead of ranking a partial set.
func (s *Store) VectorSearch(ctx context.Context, query []float32, limit int, types []Type) ([]VectorHit, error) {
	if len(query) == 0 {
		return nil, embeddingErr("search", fmt.Errorf("%w: empty query vector", ErrDimensionMismatch))
	}
	if limit <= 0 {
		return []VectorHit{}, nil
	}

	typeFilter := ""
	var typeArgs []any
	if len(types) > 0 {
		typeFilter = " AND type IN (" + placeholders(len(types)) + ")"
		typeArgs = toArgs(types)
	}

	byteLen := len(query) * 4
	var mismatched int
	checkArgs := append([]any{byteLen}, typeArgs...)
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM memories WHERE embedding IS NOT NULL AND length(embedding) != ?"+typeFilter,
		checkArgs...,
	).Scan(&mismatched); err != nil {
		return nil, fmt.Errorf("failed to check embedding dimensions: %w", err)
	}
	if mismatched > 0 {
		return nil, embeddingErr("search", fmt.Errorf("%w: query has %d dimensions, %d stored embeddings differ",
			ErrDimensionMismatch, len(query), mismatched))
	}

	args := append([]any{encodeEmbedding(query)}, typeArgs...)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, vec_distance_cosine(embedding, ?) AS distance
		FROM memories
		WHERE embedding IS NOT NULL`+typeFilter+`
		ORDER BY distance, id
		LIMIT ?
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to run vector search: %w", err)
	}
	defer rows.Close()

	hits := []VectorHit{}
	for rows.Next() {
		var id string
		var distance sql.NullFloat64
		if err := rows.Scan(&id, &distance); err != nil {
			return nil, fmt.Errorf("failed to scan vector hit: %w", err)
		}
		// zero-norm vectors have no defined cosine distance
		if !distance.Valid || math.IsNaN(distance.Float64) {
			continue
		}
		hits = append(hits, VectorHit{ID: id, Distance: distance.Float64})
	}

	return hits, rows.Err()
}

// encodeEmbedding converts a float32 slice to little-endian bytes
func encodeEmbedding(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeEmbedding converts little-endian bytes back to a float32 slice
func decodeEmbedding(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d is not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}
