package domain

import "context"

// Chunk is a bounded contiguous segment of a document's text.
// Start and End are rune offsets into the source text (End exclusive).
type Chunk struct {
	SourceID string `json:"source_id"`
	Text     string `json:"text"`
	Index    int    `json:"index"`
	Start    int    `json:"start"`
	End      int    `json:"end"`
}

// IndexEntry pairs a chunk with its embedding and optional metadata.
type IndexEntry struct {
	Vector   []float32
	Chunk    Chunk
	Metadata map[string]string
}

// SearchResult represents a matching chunk with a relevance score.
type SearchResult struct {
	Chunk    Chunk             `json:"chunk"`
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Embedder converts free text into a fixed-dimension vector.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Chunker splits a document's text into overlapping chunks.
type Chunker interface {
	Chunk(sourceID, text string) ([]Chunk, error)
}

// TextExtractor turns a file into raw text.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// Answerer turns retrieved context plus a question into an answer.
type Answerer interface {
	Answer(ctx context.Context, contextText, question string) (string, error)
}

// Summarizer produces a brief summary of an uploaded document.
type Summarizer interface {
	Summarize(ctx context.Context, docType, text string) (string, error)
}
