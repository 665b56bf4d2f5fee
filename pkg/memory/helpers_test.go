package memory

import (
	"context"
	"hash/fnv"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stdout).Level(zerolog.Disabled)
}

func createTestEngine(t *testing.T, provider EmbeddingProvider) *Engine {
	t.Helper()

	e, err := NewEngine(Config{
		StoragePath:       t.TempDir(),
		Logger:            testLogger(),
		EmbeddingProvider: provider,
	})
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })

	return e
}

func createTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := OpenStore(StoreOptions{StoragePath: t.TempDir(), Logger: testLogger()})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return s
}

func testRecord(id string, typ Type, summary, raw string, embedding ...float32) Record {
	return Record{
		ID:        id,
		Type:      typ,
		Timestamp: 1700000000000,
		Summary:   summary,
		Raw:       raw,
		Embedding: embedding,
	}
}

// stubProvider returns fixed vectors for known texts and a hashed vector otherwise
type stubProvider struct {
	dimension int
	vectors   map[string][]float32
	fallback  []float32
}

func newStubProvider(dimension int) *stubProvider {
	return &stubProvider{dimension: dimension, vectors: map[string][]float32{}}
}

func (p *stubProvider) Dimensions() int {
	return p.dimension
}

func (p *stubProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := p.vectors[text]; ok {
		return v, nil
	}
	if p.fallback != nil {
		return p.fallback, nil
	}

	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	v := make([]float32, p.dimension)
	for i := range v {
		v[i] = float32((seed>>(uint(i)%32))%100+1) / 100
	}
	return v, nil
}

// mockProvider lets tests script provider failures
type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) Dimensions() int {
	args := m.Called()
	return args.Int(0)
}

func (m *mockProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	v, _ := args.Get(0).([]float32)
	return v, args.Error(1)
}
