package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/harun/mindvault/internal/observability"
	"github.com/harun/mindvault/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	DefaultRetrieveLimit = 10
	MaxRetrieveLimit     = 50

	// each side fetches a wider pool than the final limit before fusion
	candidateMultiplier = 2

	// normalized score of every candidate when a side's scores span no range
	degenerateNormalizedScore = 1.0

	// normalized score of a candidate on the side that did not return it
	absentScore = 0.0
)

// RetrieveOptions configures Retrieve
type RetrieveOptions struct {
	Limit int    `json:"limit"`
	Types []Type `json:"types,omitempty"`
}

type candidate struct {
	id      string
	score   float64
	lexical *float64
	vector  *float64
}

// Retrieve runs the lexical and vector searches in parallel, fuses their rankings and
// returns full records in fused order. Embedding failures degrade to lexical-only results;
// storage faults on either side are returned.
func (e *Engine) Retrieve(ctx context.Context, query string, opts RetrieveOptions) ([]Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, span := tracing.StartSpan(
		ctx,
		tracerName,
		"memory.retrieve",
		attribute.String("query", query),
	)
	defer span.End()

	logger := tracing.LoggerFromContext(ctx, e.logger)
	start := time.Now()
	defer func() { observability.RecordMemorySearch(time.Since(start)) }()

	if strings.TrimSpace(query) == "" {
		return []Result{}, nil
	}

	limit := clampLimit(opts.Limit)
	pool := limit * candidateMultiplier

	var lexicalHits []LexicalHit
	var vectorHits []VectorHit
	var lexicalErr, vectorErr error

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		lexicalHits, lexicalErr = e.store.LexicalSearch(ctx, query, pool, opts.Types)
	}()

	go func() {
		defer wg.Done()
		vectorHits, vectorErr = e.vectorCandidates(ctx, query, pool, opts.Types)
	}()

	wg.Wait()

	if lexicalErr != nil {
		span.RecordError(lexicalErr)
		span.SetStatus(codes.Error, "keyword search failed")
		return nil, fmt.Errorf("keyword search failed: %w", lexicalErr)
	}
	if vectorErr != nil && !errors.Is(vectorErr, ErrEmbedding) {
		span.RecordError(vectorErr)
		span.SetStatus(codes.Error, "vector search failed")
		return nil, fmt.Errorf("vector search failed: %w", vectorErr)
	}
	if vectorErr != nil {
		logger.Warn().Err(vectorErr).Msg("Vector search failed, using keyword only")
		observability.RecordEmbeddingFailure("retrieve")
		span.RecordError(vectorErr)
		vectorHits = nil
	}

	fused := fuse(lexicalHits, vectorHits)
	if len(fused) > limit {
		fused = fused[:limit]
	}
	if len(fused) == 0 {
		return []Result{}, nil
	}

	ids := make([]string, len(fused))
	for i, c := range fused {
		ids[i] = c.id
	}

	records, err := e.store.GetAllByIDs(ctx, ids)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	// the set fetch does not keep order, so the fused ranking is re-applied here
	byID := make(map[string]Record, len(records))
	for _, r := range records {
		byID[r.ID] = r
	}

	results := make([]Result, 0, len(fused))
	for _, c := range fused {
		rec, ok := byID[c.id]
		if !ok {
			continue
		}
		results = append(results, Result{
			Record:       rec,
			Score:        c.score,
			LexicalScore: c.lexical,
			VectorScore:  c.vector,
		})
	}

	logger.Debug().
		Int("keyword_hits", len(lexicalHits)).
		Int("vector_hits", len(vectorHits)).
		Int("results", len(results)).
		Msg("Retrieve completed")

	return results, nil
}

func (e *Engine) vectorCandidates(ctx context.Context, query string, limit int, types []Type) ([]VectorHit, error) {
	embedding, err := e.embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return e.store.VectorSearch(ctx, embedding, limit, types)
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultRetrieveLimit
	}
	return min(limit, MaxRetrieveLimit)
}

// fuse merges both rankings: each side is min-max normalized and inverted so 1 is best,
// a candidate missing from a side scores absentScore there, and the combined score is
// the mean of both sides. Ties are broken by id.
func fuse(lexical []LexicalHit, vector []VectorHit) []candidate {
	lexicalScores := make([]float64, len(lexical))
	for i, h := range lexical {
		lexicalScores[i] = h.Rank
	}
	vectorScores := make([]float64, len(vector))
	for i, h := range vector {
		vectorScores[i] = h.Distance
	}

	lexicalNorm := normalizeInverted(lexicalScores)
	vectorNorm := normalizeInverted(vectorScores)

	byID := make(map[string]*candidate, len(lexical)+len(vector))
	get := func(id string) *candidate {
		c, ok := byID[id]
		if !ok {
			c = &candidate{id: id}
			byID[id] = c
		}
		return c
	}

	for i, h := range lexical {
		v := lexicalNorm[i]
		get(h.ID).lexical = &v
	}
	for i, h := range vector {
		v := vectorNorm[i]
		get(h.ID).vector = &v
	}

	candidates := make([]candidate, 0, len(byID))
	for _, c := range byID {
		l, v := absentScore, absentScore
		if c.lexical != nil {
			l = *c.lexical
		}
		if c.vector != nil {
			v = *c.vector
		}
		c.score = (l + v) / 2
		candidates = append(candidates, *c)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].id < candidates[j].id
	})

	return candidates
}

// normalizeInverted maps raw scores where lower is better into [0,1] where 1 is best
func normalizeInverted(scores []float64) []float64 {
	if len(scores) == 0 {
		return nil
	}

	lo, hi := scores[0], scores[0]
	for _, s := range scores[1:] {
		lo = min(lo, s)
		hi = max(hi, s)
	}

	span := hi - lo
	out := make([]float64, len(scores))
	for i, s := range scores {
		if span == 0 {
			out[i] = degenerateNormalizedScore
			continue
		}
		out[i] = 1 - (s-lo)/span
	}
	return out
}
