// Package embedding holds helpers shared by the embedder implementations in
// its subpackages.
package embedding

import (
	"context"
	"math"

	"docqa/internal/domain"
)

// Normalize scales v to unit length in place. Zero vectors are left as is.
func Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := 1 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
}

// IsZero reports whether every component of v is zero.
func IsZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// Fail wraps err as an EmbeddingError for model, turning context deadlines
// into TimeoutError.
func Fail(model string, err error) error {
	if err == nil {
		return nil
	}
	return &domain.EmbeddingError{Model: model, Err: domain.AsTimeout("embed", err)}
}

// CheckContext returns a wrapped context error if ctx is done.
func CheckContext(ctx context.Context, model string) error {
	if err := ctx.Err(); err != nil {
		return Fail(model, err)
	}
	return nil
}
