package memory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	DefaultEmbeddingModel      = "text-embedding-3-small"
	DefaultEmbeddingDimensions = 1536

	// EmbeddingInputMaxLen caps the text sent to a provider, in characters
	EmbeddingInputMaxLen = 8191
)

// EmbeddingProvider generates vector embeddings from text.
// Dimensions must stay constant for the provider's lifetime.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// OpenAIProvider implements EmbeddingProvider for OpenAI
type OpenAIProvider struct {
	client    openai.Client
	model     string
	dimension int
}

// NewOpenAIProvider creates a new OpenAI embedding provider
func NewOpenAIProvider(apiKey, model string, opts ...option.RequestOption) *OpenAIProvider {
	if model == "" {
		model = DefaultEmbeddingModel
	}

	dimension := DefaultEmbeddingDimensions
	if model == "text-embedding-3-large" {
		dimension = 3072
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithRequestTimeout(30 * time.Second),
	}
	reqOpts = append(reqOpts, opts...)

	return &OpenAIProvider{
		client:    openai.NewClient(reqOpts...),
		model:     model,
		dimension: dimension,
	}
}

func (p *OpenAIProvider) Dimensions() int {
	return p.dimension
}

func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := p.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(p.model),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(truncateRunes(text, EmbeddingInputMaxLen)),
		},
	})
	if err != nil {
		return nil, &EmbeddingError{Op: "openai", Err: err}
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, &EmbeddingError{Op: "openai", Err: errors.New("response contained no embedding")}
	}

	values := resp.Data[0].Embedding
	embedding := make([]float32, len(values))
	for i, v := range values {
		embedding[i] = float32(v)
	}
	return embedding, nil
}

// DisabledProvider is used when no embedding backend is configured.
// Every call fails, which leaves ingestion and retrieval on the lexical path.
type DisabledProvider struct {
	dimension int
}

func NewDisabledProvider() *DisabledProvider {
	return &DisabledProvider{dimension: DefaultEmbeddingDimensions}
}

func (p *DisabledProvider) Dimensions() int {
	return p.dimension
}

func (p *DisabledProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, &EmbeddingError{
		Op:  "embed",
		Err: fmt.Errorf("%w: set an OpenAI API key to enable vector search", ErrEmbeddingUnavailable),
	}
}

// NewProvider picks the OpenAI provider when an API key is present, else the disabled one
func NewProvider(apiKey, model string) EmbeddingProvider {
	if apiKey == "" {
		return NewDisabledProvider()
	}
	return NewOpenAIProvider(apiKey, model)
}
