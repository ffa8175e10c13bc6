// Package summarizer holds the offline summarizer and answerer used when
// no chat model is configured.
package summarizer

import (
	"context"
	"math"
	"sort"
	"strings"

	"docqa/internal/textutil"
)

// Frequency ranks sentences by normalized content-word frequency.
type Frequency struct {
	maxSentences int
}

// NewFrequency creates a frequency-based summarizer keeping at most
// maxSentences sentences (5 when maxSentences <= 0).
func NewFrequency(maxSentences int) *Frequency {
	if maxSentences <= 0 {
		maxSentences = 5
	}
	return &Frequency{maxSentences: maxSentences}
}

// Summarize implements domain.Summarizer. The selected sentences keep their
// document order. docType is not used by the offline ranking.
func (s *Frequency) Summarize(ctx context.Context, _ string, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	sentences := textutil.Sentences(text)
	if len(sentences) == 0 {
		return "", nil
	}

	freq := map[string]float64{}
	for _, sent := range sentences {
		for _, tok := range textutil.ContentTokens(sent) {
			freq[tok]++
		}
	}
	maxF := 0.0
	for _, v := range freq {
		if v > maxF {
			maxF = v
		}
	}
	if maxF > 0 {
		for k, v := range freq {
			freq[k] = v / maxF
		}
	}

	scores := make([]float64, len(sentences))
	for i, sent := range sentences {
		toks := textutil.Tokens(sent)
		for _, tok := range toks {
			scores[i] += freq[tok]
		}
		// dampen long sentences
		if l := float64(len(toks)); l > 0 {
			scores[i] /= math.Sqrt(l)
		}
	}
	return strings.Join(pick(sentences, scores, s.maxSentences), " "), nil
}

// pick returns the n best-scoring sentences in their original order.
func pick(sentences []string, scores []float64, n int) []string {
	order := make([]int, len(sentences))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })
	if n > len(order) {
		n = len(order)
	}
	selected := append([]int(nil), order[:n]...)
	sort.Ints(selected)
	out := make([]string, 0, n)
	for _, idx := range selected {
		out = append(out, sentences[idx])
	}
	return out
}
