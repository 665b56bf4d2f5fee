package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/harun/mindvault/internal/observability"
	"github.com/harun/mindvault/internal/tracing"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const tracerName = "mindvault.memory"

// Config holds engine configuration
type Config struct {
	StoragePath       string
	Logger            zerolog.Logger
	EmbeddingProvider EmbeddingProvider // Optional, nil disables vector search
}

// Engine is the public operation surface over a record store and an embedding provider
type Engine struct {
	store    *Store
	logger   zerolog.Logger
	mu       sync.RWMutex
	provider EmbeddingProvider
	now      func() time.Time
}

// NewEngine opens the store under cfg.StoragePath and binds the embedding provider
func NewEngine(cfg Config) (*Engine, error) {
	observability.EnsureRegistered()

	store, err := OpenStore(StoreOptions{
		StoragePath: cfg.StoragePath,
		Logger:      cfg.Logger,
	})
	if err != nil {
		return nil, err
	}

	provider := cfg.EmbeddingProvider
	if provider == nil {
		provider = NewDisabledProvider()
	}

	e := &Engine{
		store:    store,
		logger:   cfg.Logger,
		provider: provider,
		now:      time.Now,
	}

	if stats, err := store.Stats(context.Background()); err == nil {
		observability.SetMemoryEntries(stats.Total)
	}

	e.logger.Info().Str("path", store.Path()).Int("dimensions", provider.Dimensions()).Msg("Memory engine initialized")
	return e, nil
}

// Store exposes the underlying record store
func (e *Engine) Store() *Store {
	return e.store
}

// EmbeddingProvider returns the provider currently in use
func (e *Engine) EmbeddingProvider() EmbeddingProvider {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.provider
}

// SetEmbeddingProvider swaps the provider for subsequent calls. nil disables embeddings.
func (e *Engine) SetEmbeddingProvider(p EmbeddingProvider) {
	if p == nil {
		p = NewDisabledProvider()
	}
	e.mu.Lock()
	e.provider = p
	e.mu.Unlock()
	e.logger.Info().Int("dimensions", p.Dimensions()).Msg("Embedding provider replaced")
}

// Insert stores a fully built record. A non-empty embedding must have exactly as many
// values as the current provider's Dimensions.
func (e *Engine) Insert(ctx context.Context, rec Record) error {
	return e.insert(ctx, rec, e.EmbeddingProvider().Dimensions())
}

func (e *Engine) insert(ctx context.Context, rec Record, dimensions int) error {
	if len(rec.Embedding) > 0 && len(rec.Embedding) != dimensions {
		return &ValidationError{
			Field: "embedding",
			Msg:   fmt.Sprintf("has %d dimensions, expected %d", len(rec.Embedding), dimensions),
			Err:   ErrDimensionMismatch,
		}
	}
	if err := e.store.Insert(ctx, rec); err != nil {
		return err
	}
	e.refreshEntries(ctx)
	return nil
}

func (e *Engine) GetByID(ctx context.Context, id string) (*Record, error) {
	return e.store.GetByID(ctx, id)
}

// GetAllByIDs returns existing records among ids in no particular order
func (e *Engine) GetAllByIDs(ctx context.Context, ids []string) ([]Record, error) {
	return e.store.GetAllByIDs(ctx, ids)
}

// DeleteByIDs deletes records and reports how many existed
func (e *Engine) DeleteByIDs(ctx context.Context, ids []string) (int, error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "memory.delete", attribute.Int("ids", len(ids)))
	defer span.End()

	start := time.Now()
	defer func() { observability.RecordMemoryDelete(time.Since(start)) }()

	deleted, err := e.store.DeleteByIDs(ctx, ids)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}

	if deleted > 0 {
		e.refreshEntries(ctx)
	}

	logger := tracing.LoggerFromContext(ctx, e.logger)
	logger.Debug().
		Int("requested", len(ids)).
		Int("deleted", deleted).
		Msg("Memories deleted")
	return deleted, nil
}

func (e *Engine) Stats(ctx context.Context) (Stats, error) {
	return e.store.Stats(ctx)
}

// Compress renders records into a token-budgeted context string
func (e *Engine) Compress(records []Record, maxTokens int) string {
	return Compress(records, maxTokens)
}

// Optimize runs store maintenance
func (e *Engine) Optimize(ctx context.Context) error {
	return e.store.Optimize(ctx)
}

// Close closes the engine's store
func (e *Engine) Close() error {
	e.logger.Info().Msg("Closing memory engine")
	return e.store.Close()
}

// embed asks the current provider for a vector and checks its length
func (e *Engine) embed(ctx context.Context, text string) ([]float32, error) {
	return embedWith(ctx, e.EmbeddingProvider(), text)
}

func embedWith(ctx context.Context, provider EmbeddingProvider, text string) ([]float32, error) {
	embedding, err := provider.Embed(ctx, text)
	if err != nil {
		return nil, embeddingErr("embed", err)
	}
	if len(embedding) != provider.Dimensions() {
		return nil, embeddingErr("embed", fmt.Errorf("%w: provider declared %d dimensions, returned %d",
			ErrDimensionMismatch, provider.Dimensions(), len(embedding)))
	}
	return embedding, nil
}

func (e *Engine) refreshEntries(ctx context.Context) {
	stats, err := e.store.Stats(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			e.logger.Debug().Err(err).Msg("Failed to refresh memory entry gauge")
		}
		return
	}
	observability.SetMemoryEntries(stats.Total)
}
