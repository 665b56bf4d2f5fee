package memory

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/harun/mindvault/internal/observability"
	"github.com/harun/mindvault/internal/tracing"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	SummaryMaxLen    = 500
	MaxContentLength = 100_000
	MaxTags          = 50

	idAlphabet  = "0123456789abcdefghijklmnopqrstuvwxyz"
	idSuffixLen = 9
)

// AddParams describes a memory to ingest
type AddParams struct {
	Type     Type
	Content  string
	Summary  string
	Tags     []string
	FileRefs []string
}

// Validate checks caller-side limits before anything is written
func (p AddParams) Validate() error {
	if !p.Type.Valid() {
		return &ValidationError{Field: "type", Msg: fmt.Sprintf("unknown memory type %q", p.Type)}
	}
	if strings.TrimSpace(p.Content) == "" {
		return &ValidationError{Field: "content", Msg: "must not be empty"}
	}
	if n := utf8.RuneCountInString(p.Content); n > MaxContentLength {
		return &ValidationError{Field: "content", Msg: fmt.Sprintf("too long (%d chars, max %d)", n, MaxContentLength)}
	}
	if len(p.Tags) > MaxTags {
		return &ValidationError{Field: "tags", Msg: fmt.Sprintf("too many tags (%d, max %d)", len(p.Tags), MaxTags)}
	}
	return nil
}

// NewID returns a time-prefixed id with a random base36 suffix
func NewID(now time.Time) (string, error) {
	suffix, err := gonanoid.Generate(idAlphabet, idSuffixLen)
	if err != nil {
		return "", fmt.Errorf("failed to generate id: %w", err)
	}
	return strconv.FormatInt(now.UnixMilli(), 36) + "-" + suffix, nil
}

// Ingest builds a record from params, embeds it when possible and stores it.
// Embedding failures are logged and the record is stored without a vector.
func (e *Engine) Ingest(ctx context.Context, params AddParams) (string, error) {
	ctx, span := tracing.StartSpan(
		ctx,
		tracerName,
		"memory.ingest",
		attribute.String("type", string(params.Type)),
		attribute.Int("content_length", len(params.Content)),
	)
	defer span.End()

	logger := tracing.LoggerFromContext(ctx, e.logger)
	start := time.Now()
	defer func() { observability.RecordMemoryWrite(time.Since(start)) }()

	if err := params.Validate(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	now := e.now()
	id, err := NewID(now)
	if err != nil {
		return "", err
	}

	rec := Record{
		ID:        id,
		Type:      params.Type,
		Timestamp: now.UnixMilli(),
		FileRefs:  params.FileRefs,
		Summary:   deriveSummary(params.Content, params.Summary),
		Raw:       params.Content,
		Tags:      params.Tags,
	}

	// the vector and the dimension check come from the same provider
	provider := e.EmbeddingProvider()
	embedding, err := embedWith(ctx, provider, embeddingInput(rec.Summary, rec.Raw))
	if err != nil {
		logger.Warn().Err(err).Str("id", id).Msg("Storing memory without embedding")
		observability.RecordEmbeddingFailure("ingest")
		span.RecordError(err)
	} else {
		rec.Embedding = embedding
	}

	if err := e.insert(ctx, rec, provider.Dimensions()); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	logger.Info().
		Str("id", id).
		Str("type", string(rec.Type)).
		Bool("embedded", rec.Embedding != nil).
		Msg("Memory stored")

	return id, nil
}

// deriveSummary prefers the caller's summary and falls back to the start of raw
func deriveSummary(raw, summary string) string {
	if s := strings.TrimSpace(summary); s != "" {
		return truncateRunes(s, SummaryMaxLen)
	}
	return truncateRunes(strings.TrimSpace(raw), SummaryMaxLen)
}

func embeddingInput(summary, raw string) string {
	if utf8.RuneCountInString(summary) >= utf8.RuneCountInString(raw) {
		return truncateRunes(raw, EmbeddingInputMaxLen)
	}
	return truncateRunes(summary+"\n"+raw, EmbeddingInputMaxLen)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
