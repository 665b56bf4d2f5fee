package memory

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var idPattern = regexp.MustCompile(`^[0-9a-z]+-[0-9a-z]{9}$`)

func TestNewID(t *testing.T) {
	now := time.UnixMilli(1700000000000)

	id, err := NewID(now)
	require.NoError(t, err)
	assert.Regexp(t, idPattern, id)

	prefix, _, _ := strings.Cut(id, "-")
	ms, err := strconv.ParseInt(prefix, 36, 64)
	require.NoError(t, err)
	assert.Equal(t, now.UnixMilli(), ms)

	other, err := NewID(now)
	require.NoError(t, err)
	assert.NotEqual(t, id, other)
}

func TestAddParams_Validate(t *testing.T) {
	tooManyTags := make([]string, MaxTags+1)
	for i := range tooManyTags {
		tooManyTags[i] = "t"
	}

	tests := []struct {
		name    string
		params  AddParams
		field   string
		wantErr bool
	}{
		{name: "valid", params: AddParams{Type: TypeSession, Content: "ok"}},
		{name: "bad type", params: AddParams{Type: "other", Content: "ok"}, field: "type", wantErr: true},
		{name: "blank content", params: AddParams{Type: TypeSession, Content: " \n\t"}, field: "content", wantErr: true},
		{name: "content too long", params: AddParams{Type: TypeSession, Content: strings.Repeat("a", MaxContentLength+1)}, field: "content", wantErr: true},
		{name: "content at limit", params: AddParams{Type: TypeSession, Content: strings.Repeat("ü", MaxContentLength)}},
		{name: "too many tags", params: AddParams{Type: TypeSession, Content: "ok", Tags: tooManyTags}, field: "tags", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestDeriveSummary(t *testing.T) {
	assert.Equal(t, "given", deriveSummary("raw body", "  given  "))
	assert.Equal(t, "raw body", deriveSummary("  raw body  ", ""))

	long := strings.Repeat("ß", SummaryMaxLen+10)
	assert.Equal(t, strings.Repeat("ß", SummaryMaxLen), deriveSummary(long, ""))
	assert.Equal(t, strings.Repeat("ß", SummaryMaxLen), deriveSummary("raw", long))
}

func TestEmbeddingInput(t *testing.T) {
	assert.Equal(t, "short raw", embeddingInput("short raw", "short raw"))
	assert.Equal(t, "sum\nthe full raw text", embeddingInput("sum", "the full raw text"))

	long := strings.Repeat("x", EmbeddingInputMaxLen*2)
	assert.Len(t, embeddingInput("s", long), EmbeddingInputMaxLen)
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "héllo", truncateRunes("héllo", 10))
	assert.Equal(t, "hé", truncateRunes("héllo", 2))
	assert.Equal(t, "", truncateRunes("héllo", 0))
}

func TestIngest(t *testing.T) {
	provider := newStubProvider(4)
	e := createTestEngine(t, provider)
	ctx := context.Background()

	fixed := time.UnixMilli(1712345678901)
	e.now = func() time.Time { return fixed }

	id, err := e.Ingest(ctx, AddParams{
		Type:     TypeProject,
		Content:  "The build uses goreleaser with ldflags for the version.",
		Summary:  "goreleaser build",
		Tags:     []string{"build", "release"},
		FileRefs: []string{".goreleaser.yaml"},
	})
	require.NoError(t, err)
	assert.Regexp(t, idPattern, id)

	rec, err := e.GetByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, TypeProject, rec.Type)
	assert.Equal(t, fixed.UnixMilli(), rec.Timestamp)
	assert.Equal(t, "goreleaser build", rec.Summary)
	assert.Equal(t, []string{"build", "release"}, rec.Tags)
	assert.Equal(t, []string{".goreleaser.yaml"}, rec.FileRefs)
	assert.Len(t, rec.Embedding, 4)

	expected, _ := provider.Embed(ctx, "goreleaser build\nThe build uses goreleaser with ldflags for the version.")
	assert.Equal(t, expected, rec.Embedding)
}

func TestIngest_DerivesSummary(t *testing.T) {
	e := createTestEngine(t, newStubProvider(4))
	ctx := context.Background()

	content := strings.Repeat("a", SummaryMaxLen+1)
	id, err := e.Ingest(ctx, AddParams{Type: TypeSession, Content: content})
	require.NoError(t, err)

	rec, err := e.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, content[:SummaryMaxLen], rec.Summary)
	assert.Equal(t, content, rec.Raw)
}

func TestIngest_EmbeddingFailureStillStores(t *testing.T) {
	provider := &mockProvider{}
	provider.On("Dimensions").Return(4)
	provider.On("Embed", mock.Anything, mock.Anything).Return(nil, errors.New("network down"))

	e := createTestEngine(t, provider)
	ctx := context.Background()

	id, err := e.Ingest(ctx, AddParams{Type: TypeSession, Content: "stored without vector"})
	require.NoError(t, err)

	rec, err := e.GetByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Nil(t, rec.Embedding)

	hits, err := e.Store().LexicalSearch(ctx, "vector", 5, nil)
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	provider.AssertExpectations(t)
}

func TestIngest_WrongDimensionsStillStores(t *testing.T) {
	provider := &mockProvider{}
	provider.On("Dimensions").Return(4)
	provider.On("Embed", mock.Anything, mock.Anything).Return([]float32{1, 2}, nil)

	e := createTestEngine(t, provider)
	ctx := context.Background()

	id, err := e.Ingest(ctx, AddParams{Type: TypeSession, Content: "odd provider"})
	require.NoError(t, err)

	rec, err := e.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, rec.Embedding)
}

func TestIngest_ValidationWritesNothing(t *testing.T) {
	provider := &mockProvider{}
	provider.On("Dimensions").Return(4)
	e := createTestEngine(t, provider)
	ctx := context.Background()

	_, err := e.Ingest(ctx, AddParams{Type: TypeSession, Content: ""})
	assert.ErrorIs(t, err, ErrValidation)

	stats, err := e.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Total)

	provider.AssertNotCalled(t, "Embed", mock.Anything, mock.Anything)
}

func TestIngestThenRetrieve(t *testing.T) {
	e := createTestEngine(t, newStubProvider(8))
	ctx := context.Background()

	id, err := e.Ingest(ctx, AddParams{Type: TypeLongTerm, Content: "Prefer table driven tests with testify"})
	require.NoError(t, err)

	results, err := e.Retrieve(ctx, "table driven tests", RetrieveOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, id, results[0].Record.ID)
}

func TestEngine_SetEmbeddingProvider(t *testing.T) {
	e := createTestEngine(t, nil)
	assert.IsType(t, &DisabledProvider{}, e.EmbeddingProvider())

	p := newStubProvider(3)
	e.SetEmbeddingProvider(p)
	assert.Same(t, p, e.EmbeddingProvider())

	e.SetEmbeddingProvider(nil)
	assert.IsType(t, &DisabledProvider{}, e.EmbeddingProvider())
}
