package chunker

import (
	"fmt"
	"strings"
	"unicode"

	"docqa/internal/domain"
)

// RecursiveChunker splits text into overlapping character windows, ending
// each window at the strongest natural boundary available: paragraph, then
// sentence, then word, then a hard cut.
type RecursiveChunker struct {
	chunkSize int
	overlap   int
}

// NewRecursiveChunker requires chunkSize > overlap >= 0.
func NewRecursiveChunker(chunkSize, overlap int) (*RecursiveChunker, error) {
	if overlap < 0 {
		return nil, fmt.Errorf("chunker: overlap must be >= 0, got %d", overlap)
	}
	if chunkSize <= overlap {
		return nil, fmt.Errorf("chunker: chunk size %d must exceed overlap %d", chunkSize, overlap)
	}
	return &RecursiveChunker{chunkSize: chunkSize, overlap: overlap}, nil
}

// Chunk splits text into chunks tagged with sourceID. Consecutive chunks
// share exactly overlap runes and together cover every rune of text, so a
// whitespace run longer than a window becomes chunks of its own. Text that is
// empty or entirely whitespace yields no chunks.
func (c *RecursiveChunker) Chunk(sourceID, text string) ([]domain.Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	runes := []rune(text)
	n := len(runes)
	var chunks []domain.Chunk
	start := 0
	for start < n {
		end := n
		if start+c.chunkSize < n {
			end = c.cutPoint(runes, start)
		}
		chunks = append(chunks, domain.Chunk{
			SourceID: sourceID,
			Text:     string(runes[start:end]),
			Index:    len(chunks),
			Start:    start,
			End:      end,
		})
		if end == n {
			break
		}
		start = end - c.overlap
	}
	return chunks, nil
}

const (
	levelNone = iota
	levelWord
	levelSentence
	levelParagraph
)

// cutPoint picks the end of the window starting at start. Boundaries are
// only accepted in the second half of the window and beyond the overlap, so
// every step advances.
func (c *RecursiveChunker) cutPoint(runes []rune, start int) int {
	hi := start + c.chunkSize
	lo := start + c.chunkSize/2
	if floor := start + c.overlap + 1; lo < floor {
		lo = floor
	}
	best, bestLevel := hi, levelNone
	for end := hi; end >= lo; end-- {
		level := boundaryLevel(runes, end)
		if level > bestLevel {
			best, bestLevel = end, level
			if level == levelParagraph {
				break
			}
		}
	}
	return best
}

// boundaryLevel classifies the position between runes[end-1] and runes[end].
func boundaryLevel(runes []rune, end int) int {
	if end <= 0 || end > len(runes) {
		return levelNone
	}
	prev := runes[end-1]
	switch {
	case prev == '\n' && end >= 2 && runes[end-2] == '\n':
		return levelParagraph
	case prev == '\n':
		return levelSentence
	case unicode.IsSpace(prev):
		if end >= 2 && isTerminal(runes[end-2]) {
			return levelSentence
		}
		return levelWord
	}
	return levelNone
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
