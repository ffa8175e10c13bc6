package hashing

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"unicode/utf8"

	"docqa/internal/embedding"
	"docqa/internal/textutil"
)

const (
	// DefaultDimension is used when the configured dimension is zero.
	DefaultDimension = 512
	// DefaultMaxInputRunes bounds the text accepted by Embed.
	DefaultMaxInputRunes = 8192
)

// ErrInputTooLong is returned for texts above the input budget.
var ErrInputTooLong = errors.New("input exceeds maximum length")

// Embedder implements a local feature-hashing bag-of-words vectorizer.
// Tokens are hashed into a fixed number of buckets with sublinear term
// frequency and the result is L2-normalized, so no corpus preparation is
// needed and the dimension never changes. One hash bit picks the sign of a
// token's contribution, so colliding tokens tend to cancel instead of add.
type Embedder struct {
	dimension int
	maxRunes  int
}

// NewEmbedder creates a hashing embedder. Zero arguments select defaults.
func NewEmbedder(dimension, maxInputRunes int) *Embedder {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	if maxInputRunes <= 0 {
		maxInputRunes = DefaultMaxInputRunes
	}
	return &Embedder{dimension: dimension, maxRunes: maxInputRunes}
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return fmt.Sprintf("hashing-%d", e.dimension) }

// Dimension returns the dimensionality of the produced embedding vectors.
func (e *Embedder) Dimension() int { return e.dimension }

// Embed computes the hashed term-frequency embedding for the given text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := embedding.CheckContext(ctx, e.Name()); err != nil {
		return nil, err
	}
	if n := utf8.RuneCountInString(text); n > e.maxRunes {
		return nil, embedding.Fail(e.Name(), fmt.Errorf("%w: %d runes > %d", ErrInputTooLong, n, e.maxRunes))
	}
	tf := make(map[string]int)
	var order []string
	for _, tok := range textutil.ContentTokens(text) {
		if tf[tok] == 0 {
			order = append(order, tok)
		}
		tf[tok]++
	}
	vec := make([]float32, e.dimension)
	for _, tok := range order {
		count := tf[tok]
		idx, sign := e.bucket(tok)
		// Sublinear TF dampens repeated terms
		vec[idx] += sign * float32(1+math.Log(float64(count)))
	}
	embedding.Normalize(vec)
	return vec, nil
}

// EmbedBatch embeds each text in order.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// bucket folds a 64-bit FNV-1a hash so the high bits reach every bucket
// at power-of-two dimensions. The top bit selects the sign.
func (e *Embedder) bucket(token string) (int, float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(token))
	sum := h.Sum64()
	folded := uint32(sum ^ sum>>32)
	sign := float32(1)
	if sum>>63 == 1 {
		sign = -1
	}
	return int(folded % uint32(e.dimension)), sign
}
