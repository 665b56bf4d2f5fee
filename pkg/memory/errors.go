package memory

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateID is returned when inserting a record whose id already exists
	ErrDuplicateID = errors.New("duplicate memory id")

	// ErrValidation is matched by every ValidationError
	ErrValidation = errors.New("validation failed")

	// ErrEmbedding is matched by every EmbeddingError
	ErrEmbedding = errors.New("embedding failed")

	// ErrEmbeddingUnavailable is returned by providers that cannot embed at all
	ErrEmbeddingUnavailable = errors.New("embedding provider not configured")

	// ErrDimensionMismatch is returned when a vector does not match the stored dimensionality
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// ValidationError reports a caller-side limit violation. No write happens when it is returned.
type ValidationError struct {
	Field string
	Msg   string
	Err   error // optional sentinel, e.g. ErrDimensionMismatch
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// EmbeddingError wraps any failure of the embedding path
type EmbeddingError struct {
	Op  string
	Err error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding %s: %v", e.Op, e.Err)
}

func (e *EmbeddingError) Unwrap() error {
	return e.Err
}

func (e *EmbeddingError) Is(target error) bool {
	return target == ErrEmbedding
}

func embeddingErr(op string, err error) error {
	var ee *EmbeddingError
	if errors.As(err, &ee) {
		return err
	}
	return &EmbeddingError{Op: op, Err: err}
}
