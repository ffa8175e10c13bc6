package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrConcurrentIngest is returned when an ingest is already running.
	ErrConcurrentIngest = errors.New("ingest already in progress")

	// ErrInvalidK is returned when a search asks for k <= 0 results.
	ErrInvalidK = errors.New("k must be positive")
)

// EmbeddingError reports that the embedding model could not produce a vector.
type EmbeddingError struct {
	Model string
	Err   error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding (%s): %v", e.Model, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// IngestError wraps the first failure of an ingest run.
// Stage is one of "chunk", "embed", "index" or "persist".
type IngestError struct {
	Source string
	Stage  string
	Err    error
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("ingest %q: %s: %v", e.Source, e.Stage, e.Err)
}

func (e *IngestError) Unwrap() error { return e.Err }

// DimensionMismatchError means a vector does not match the index dimension.
// It indicates that ingest and retrieve used different embedders.
type DimensionMismatchError struct {
	Index int
	Query int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("vector dimension mismatch: index has %d, got %d", e.Index, e.Query)
}

// TimeoutError reports that an operation exceeded its deadline.
type TimeoutError struct {
	Op  string
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out: %v", e.Op, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// AsTimeout converts a context deadline error into a TimeoutError.
// Other errors are returned unchanged.
func AsTimeout(op string, err error) error {
	if err == nil {
		return nil
	}
	var te *TimeoutError
	if errors.As(err, &te) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Op: op, Err: err}
	}
	return err
}

// Kind classifies errors so callers can branch without parsing messages.
type Kind int

const (
	KindUnknown Kind = iota
	KindEmbedding
	KindIngest
	KindDimensionMismatch
	KindConcurrentIngest
	KindTimeout
	KindInvalidArgument
)

func (k Kind) String() string {
	switch k {
	case KindEmbedding:
		return "embedding"
	case KindIngest:
		return "ingest"
	case KindDimensionMismatch:
		return "dimension_mismatch"
	case KindConcurrentIngest:
		return "concurrent_ingest"
	case KindTimeout:
		return "timeout"
	case KindInvalidArgument:
		return "invalid_argument"
	default:
		return "unknown"
	}
}

// KindOf returns the most specific kind found in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var (
		te *TimeoutError
		de *DimensionMismatchError
		ee *EmbeddingError
		ie *IngestError
	)
	switch {
	case errors.As(err, &te), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, ErrConcurrentIngest):
		return KindConcurrentIngest
	case errors.As(err, &de):
		return KindDimensionMismatch
	case errors.Is(err, ErrInvalidK):
		return KindInvalidArgument
	case errors.As(err, &ee):
		return KindEmbedding
	case errors.As(err, &ie):
		return KindIngest
	}
	return KindUnknown
}
