// Package assistant ties extraction, retrieval and answer generation
// together for the CLI and the chat UI.
package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"docqa/internal/domain"
	"docqa/internal/llm"
	"docqa/internal/service"
)

// EmptyDocument is the reply for uploads with no readable text.
const EmptyDocument = "The uploaded document appears empty or unreadable."

// Retriever is the part of the retrieval service the assistant needs.
type Retriever interface {
	Ingest(ctx context.Context, sourceID, text string) (service.IngestResult, error)
	Retrieve(ctx context.Context, query string, k int) ([]domain.SearchResult, error)
	Refresh(ctx context.Context) error
}

// UploadResult reports an upload.
type UploadResult struct {
	Source  string
	DocType string
	// Empty is set when the document had no text; nothing was indexed.
	Empty   bool
	Ingest  service.IngestResult
	Summary string
}

// Reply is an answer together with the chunks it was based on.
type Reply struct {
	Answer  string
	Sources []domain.SearchResult
}

type Assistant struct {
	extractor  domain.TextExtractor
	retriever  Retriever
	answerer   domain.Answerer
	summarizer domain.Summarizer
	logger     *slog.Logger
}

func New(extractor domain.TextExtractor, retriever Retriever, answerer domain.Answerer, summarizer domain.Summarizer, logger *slog.Logger) *Assistant {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assistant{
		extractor:  extractor,
		retriever:  retriever,
		answerer:   answerer,
		summarizer: summarizer,
		logger:     logger.With("component", "assistant"),
	}
}

// Upload extracts the file, replaces the index with its chunks and
// summarizes it according to docType.
func (a *Assistant) Upload(ctx context.Context, path, docType string) (UploadResult, error) {
	res := UploadResult{Source: filepath.Base(path), DocType: llm.NormalizeDocType(docType)}
	text, err := a.extractor.Extract(ctx, path)
	if err != nil {
		return res, err
	}
	if strings.TrimSpace(text) == "" {
		res.Empty = true
		res.Summary = EmptyDocument
		return res, nil
	}
	a.logger.Debug("extracted text", "source", res.Source, "runes", len([]rune(text)))

	if res.Ingest, err = a.retriever.Ingest(ctx, res.Source, text); err != nil {
		return res, err
	}
	if res.Summary, err = a.summarizer.Summarize(ctx, res.DocType, text); err != nil {
		return res, fmt.Errorf("summarize: %w", err)
	}
	return res, nil
}

// Ask answers question from the k chunks most relevant to it.
func (a *Assistant) Ask(ctx context.Context, question string, k int) (Reply, error) {
	results, err := a.retriever.Retrieve(ctx, question, k)
	if err != nil {
		return Reply{}, err
	}
	answer, err := a.answerer.Answer(ctx, llm.BuildContext(results), question)
	if err != nil {
		return Reply{Sources: results}, fmt.Errorf("answer: %w", err)
	}
	return Reply{Answer: answer, Sources: results}, nil
}

// Reload picks up a document indexed by another process since the index
// was first read.
func (a *Assistant) Reload(ctx context.Context) error {
	if err := a.retriever.Refresh(ctx); err != nil {
		return fmt.Errorf("reload index: %w", err)
	}
	return nil
}
