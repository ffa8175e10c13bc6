package summarizer

import (
	"context"
	"strings"

	"docqa/internal/llm"
	"docqa/internal/textutil"
)

// NoAnswer is returned when no context sentence shares a word with the question.
const NoAnswer = "I could not find an answer in the uploaded document."

// Extractive answers by quoting the context sentences that share the most
// content words with the question.
type Extractive struct {
	maxSentences int
}

func NewExtractive(maxSentences int) *Extractive {
	if maxSentences <= 0 {
		maxSentences = 2
	}
	return &Extractive{maxSentences: maxSentences}
}

// Answer implements domain.Answerer.
func (e *Extractive) Answer(ctx context.Context, contextText, question string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(contextText) == "" || contextText == llm.NoContext {
		return NoAnswer, nil
	}
	query := make(map[string]struct{})
	for _, tok := range textutil.ContentTokens(question) {
		query[tok] = struct{}{}
	}
	if len(query) == 0 {
		return NoAnswer, nil
	}

	var sentences []string
	seen := map[string]struct{}{}
	for _, s := range textutil.Sentences(contextText) {
		// overlapping chunks repeat sentences
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		sentences = append(sentences, s)
	}
	scores := make([]float64, len(sentences))
	best := 0.0
	for i, s := range sentences {
		scores[i] = float64(textutil.Overlap(query, s))
		if scores[i] > best {
			best = scores[i]
		}
	}
	if best == 0 {
		return NoAnswer, nil
	}
	var keep []string
	for _, s := range pick(sentences, scores, e.maxSentences) {
		if textutil.Overlap(query, s) > 0 {
			keep = append(keep, s)
		}
	}
	return strings.Join(keep, " "), nil
}
