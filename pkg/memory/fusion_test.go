package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestNormalizeInverted(t *testing.T) {
	tests := []struct {
		name   string
		scores []float64
		want   []float64
	}{
		{name: "empty", scores: nil, want: nil},
		{name: "single candidate", scores: []float64{-3.2}, want: []float64{degenerateNormalizedScore}},
		{name: "all equal", scores: []float64{0.4, 0.4, 0.4}, want: []float64{1, 1, 1}},
		{name: "spread", scores: []float64{-10, -5, 0}, want: []float64{1, 0.5, 0}},
		{name: "distances", scores: []float64{0, 0.25, 1}, want: []float64{1, 0.75, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeInverted(tt.scores)
			require.Len(t, got, len(tt.want))
			for i := range tt.want {
				assert.InDelta(t, tt.want[i], got[i], 1e-9)
			}
		})
	}
}

func TestFuse(t *testing.T) {
	lexical := []LexicalHit{{ID: "a", Rank: -4}, {ID: "b", Rank: -2}}
	vector := []VectorHit{{ID: "b", Distance: 0.1}, {ID: "c", Distance: 0.5}}

	got := fuse(lexical, vector)
	require.Len(t, got, 3)

	byID := map[string]candidate{}
	for _, c := range got {
		byID[c.id] = c
	}

	// a: lexical best, vector absent
	assert.InDelta(t, 0.5, byID["a"].score, 1e-9)
	assert.Nil(t, byID["a"].vector)
	// b: lexical worst, vector best
	assert.InDelta(t, 0.5, byID["b"].score, 1e-9)
	// c: vector worst, lexical absent
	assert.InDelta(t, absentScore, byID["c"].score, 1e-9)
	assert.Nil(t, byID["c"].lexical)

	// equal scores fall back to id order
	assert.Equal(t, []string{"a", "b", "c"}, []string{got[0].id, got[1].id, got[2].id})
}

func TestFuse_OneSided(t *testing.T) {
	got := fuse([]LexicalHit{{ID: "only", Rank: -1}}, nil)
	require.Len(t, got, 1)
	assert.InDelta(t, degenerateNormalizedScore/2, got[0].score, 1e-9)
}

func TestFuse_ScoresBounded(t *testing.T) {
	lexical := make([]LexicalHit, 10)
	vector := make([]VectorHit, 10)
	for i := range lexical {
		lexical[i] = LexicalHit{ID: fmt.Sprintf("l%d", i), Rank: float64(-i) * 1.7}
		vector[i] = VectorHit{ID: fmt.Sprintf("l%d", 9-i), Distance: float64(i) / 9}
	}

	for _, c := range fuse(lexical, vector) {
		assert.GreaterOrEqual(t, c.score, 0.0)
		assert.LessOrEqual(t, c.score, 1.0)
	}
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultRetrieveLimit, clampLimit(0))
	assert.Equal(t, DefaultRetrieveLimit, clampLimit(-3))
	assert.Equal(t, 7, clampLimit(7))
	assert.Equal(t, MaxRetrieveLimit, clampLimit(500))
}

func TestRetrieve_VectorRanking(t *testing.T) {
	provider := newStubProvider(2)
	provider.fallback = []float32{1, 0}
	e := createTestEngine(t, provider)
	ctx := context.Background()

	require.NoError(t, e.Insert(ctx, testRecord("a", TypeSession, "", "first", 1, 0)))
	require.NoError(t, e.Insert(ctx, testRecord("b", TypeSession, "", "second", 0, 1)))
	require.NoError(t, e.Insert(ctx, testRecord("c", TypeSession, "", "third", 0.9, 0.1)))

	results, err := e.Retrieve(ctx, "direction", RetrieveOptions{Limit: 3})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "a", results[0].Record.ID)
	assert.Equal(t, "c", results[1].Record.ID)
	assert.Equal(t, "b", results[2].Record.ID)

	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Score, 0.0)
		assert.LessOrEqual(t, r.Score, 1.0)
		assert.Nil(t, r.LexicalScore)
		assert.NotNil(t, r.VectorScore)
	}
}

func TestRetrieve_Hybrid(t *testing.T) {
	provider := newStubProvider(2)
	provider.vectors["grpc retries"] = []float32{0, 1}
	e := createTestEngine(t, provider)
	ctx := context.Background()

	// lexical match only
	require.NoError(t, e.Insert(ctx, testRecord("lex", TypeProject, "grpc retries", "grpc retries use exponential backoff", 1, 0)))
	// semantic match only
	require.NoError(t, e.Insert(ctx, testRecord("vec", TypeProject, "backoff policy", "reconnect policy for the client", 0, 1)))

	results, err := e.Retrieve(ctx, "grpc retries", RetrieveOptions{})
	require.NoError(t, err)
	require.Len(t, results, 2)

	ids := []string{results[0].Record.ID, results[1].Record.ID}
	assert.ElementsMatch(t, []string{"lex", "vec"}, ids)

	for _, r := range results {
		if r.Record.ID == "lex" {
			require.NotNil(t, r.LexicalScore)
		}
	}
}

func TestRetrieve_EmptyStore(t *testing.T) {
	e := createTestEngine(t, newStubProvider(4))

	results, err := e.Retrieve(context.Background(), "anything", RetrieveOptions{})
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestRetrieve_BlankQuery(t *testing.T) {
	provider := &mockProvider{}
	provider.On("Dimensions").Return(2)
	e := createTestEngine(t, provider)

	results, err := e.Retrieve(context.Background(), "  \t ", RetrieveOptions{})
	require.NoError(t, err)
	assert.Empty(t, results)

	provider.AssertNotCalled(t, "Embed", mock.Anything, mock.Anything)
}

func TestRetrieve_EmbeddingFailureFallsBackToLexical(t *testing.T) {
	provider := &mockProvider{}
	provider.On("Dimensions").Return(2)
	provider.On("Embed", mock.Anything, mock.Anything).Return(nil, errors.New("rate limited"))

	e := createTestEngine(t, provider)
	ctx := context.Background()

	require.NoError(t, e.Insert(ctx, testRecord("a", TypeSession, "", "circuit breaker settings", 1, 0)))
	require.NoError(t, e.Insert(ctx, testRecord("b", TypeSession, "", "unrelated", 0, 1)))

	results, err := e.Retrieve(ctx, "circuit breaker", RetrieveOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].Record.ID)
	assert.Nil(t, results[0].VectorScore)

	provider.AssertCalled(t, "Embed", mock.Anything, "circuit breaker")
}

func TestRetrieve_DimensionMismatchFallsBackToLexical(t *testing.T) {
	provider := newStubProvider(3)
	provider.fallback = []float32{1, 0, 0}
	e := createTestEngine(t, provider)
	ctx := context.Background()

	// written under an earlier two-dimensional model
	require.NoError(t, e.Store().Insert(ctx, testRecord("a", TypeSession, "", "feature flags rollout", 1, 0)))

	results, err := e.Retrieve(ctx, "feature flags", RetrieveOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].Record.ID)
}

func TestRetrieve_VectorStorageFaultIsReturned(t *testing.T) {
	e := createTestEngine(t, newStubProvider(2))
	ctx := context.Background()

	require.NoError(t, e.Insert(ctx, testRecord("a", TypeSession, "", "schema drift", 1, 0)))

	// eight bytes of text pass the length check but cannot be read as a vector
	_, err := e.Store().db.ExecContext(ctx, "UPDATE memories SET embedding = 'notavec!' WHERE id = 'a'")
	require.NoError(t, err)

	results, err := e.Retrieve(ctx, "schema drift", RetrieveOptions{})
	require.Error(t, err)
	assert.Nil(t, results)
	assert.False(t, errors.Is(err, ErrEmbedding))
}

func TestRetrieve_DisabledProvider(t *testing.T) {
	e := createTestEngine(t, nil)
	ctx := context.Background()

	require.NoError(t, e.Insert(ctx, testRecord("a", TypeLongTerm, "", "tracing with otel")))

	results, err := e.Retrieve(ctx, "otel", RetrieveOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, degenerateNormalizedScore/2, results[0].Score, 1e-9)
}

func TestRetrieve_LimitAndTypes(t *testing.T) {
	e := createTestEngine(t, nil)
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		typ := TypeSession
		if i%2 == 0 {
			typ = TypeProject
		}
		require.NoError(t, e.Insert(ctx, testRecord(fmt.Sprintf("r%d", i), typ, "", "queue consumer lag")))
	}

	results, err := e.Retrieve(ctx, "consumer", RetrieveOptions{Limit: 3})
	require.NoError(t, err)
	assert.Len(t, results, 3)

	results, err = e.Retrieve(ctx, "consumer", RetrieveOptions{Types: []Type{TypeProject}})
	require.NoError(t, err)
	assert.Len(t, results, 4)
	for _, r := range results {
		assert.Equal(t, TypeProject, r.Record.Type)
	}
}

func TestRetrieve_IdTieBreak(t *testing.T) {
	e := createTestEngine(t, nil)
	ctx := context.Background()

	for _, id := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, e.Insert(ctx, testRecord(id, TypeSession, "", "identical text")))
	}

	results, err := e.Retrieve(ctx, "identical", RetrieveOptions{})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "alpha", results[0].Record.ID)
	assert.Equal(t, "mid", results[1].Record.ID)
	assert.Equal(t, "zeta", results[2].Record.ID)
}
