package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"docqa/internal/domain"
	"docqa/internal/embedding"
	"docqa/internal/textutil"
	"docqa/internal/vectorstore"
	"docqa/internal/vectorstore/memory"
)

const (
	DefaultTopK          = 3
	DefaultBatchSize     = 32
	DefaultMaxQueryRunes = 2000
)

// Options tunes the retrieval service. Zero values select the defaults.
type Options struct {
	TopK            int
	BatchSize       int
	MaxQueryRunes   int
	IngestTimeout   time.Duration
	RetrieveTimeout time.Duration
	// Progress is called after each embedded batch.
	Progress func(done, total int)
	Logger   *slog.Logger
}

// IngestResult describes the index generation produced by Ingest.
type IngestResult struct {
	SourceID   string
	ChunkCount int
	Dimension  int
	Model      string
	Duration   time.Duration
}

// Status describes the currently visible index.
type Status struct {
	Exists    bool
	Entries   int
	Dimension int
	Model     string
}

// generation is an immutable snapshot; a nil index means none was built.
type generation struct {
	index *memory.Index
}

// RetrievalService rebuilds the index from one document and answers
// nearest-chunk queries against the current generation.
type RetrievalService struct {
	chunker  domain.Chunker
	embedder domain.Embedder
	store    vectorstore.Storage
	opts     Options
	logger   *slog.Logger

	ingestMu sync.Mutex
	loadMu   sync.Mutex
	current  atomic.Pointer[generation]
}

func NewRetrievalService(chunker domain.Chunker, embedder domain.Embedder, store vectorstore.Storage, opts Options) *RetrievalService {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.MaxQueryRunes <= 0 {
		opts.MaxQueryRunes = DefaultMaxQueryRunes
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &RetrievalService{
		chunker:  chunker,
		embedder: embedder,
		store:    store,
		opts:     opts,
		logger:   logger.With("component", "retrieval"),
	}
}

// Ingest replaces the whole index with the chunks of text. The previous
// index stays visible until the new one is persisted. Only one ingest may
// run at a time; a second caller gets domain.ErrConcurrentIngest.
func (s *RetrievalService) Ingest(ctx context.Context, sourceID, text string) (IngestResult, error) {
	if !s.ingestMu.TryLock() {
		return IngestResult{}, domain.ErrConcurrentIngest
	}
	defer s.ingestMu.Unlock()

	if s.opts.IngestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.IngestTimeout)
		defer cancel()
	}
	started := time.Now()
	fail := func(stage string, err error) (IngestResult, error) {
		s.logger.Error("ingest failed", "source", sourceID, "stage", stage, "error", err)
		return IngestResult{}, &domain.IngestError{Source: sourceID, Stage: stage, Err: domain.AsTimeout("ingest", err)}
	}

	chunks, err := s.chunker.Chunk(sourceID, text)
	if err != nil {
		return fail("chunk", err)
	}

	entries := make([]domain.IndexEntry, 0, len(chunks))
	for i := 0; i < len(chunks); i += s.opts.BatchSize {
		end := i + s.opts.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		texts := make([]string, 0, end-i)
		for _, ch := range chunks[i:end] {
			texts = append(texts, ch.Text)
		}
		vecs, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fail("embed", fmt.Errorf("chunks %d-%d: %w", i, end-1, err))
		}
		if len(vecs) != len(texts) {
			return fail("embed", fmt.Errorf("chunks %d-%d: got %d vectors for %d chunks", i, end-1, len(vecs), len(texts)))
		}
		for j, vec := range vecs {
			entries = append(entries, domain.IndexEntry{
				Vector:   vec,
				Chunk:    chunks[i+j],
				Metadata: map[string]string{"source": sourceID},
			})
		}
		if s.opts.Progress != nil {
			s.opts.Progress(end, len(chunks))
		}
	}

	idx, err := memory.New(s.embedder.Name(), entries)
	if err != nil {
		return fail("index", err)
	}
	if err := ctx.Err(); err != nil {
		return fail("persist", err)
	}
	if err := s.store.Build(ctx, idx); err != nil {
		return fail("persist", err)
	}

	s.loadMu.Lock()
	s.current.Store(&generation{index: idx})
	s.loadMu.Unlock()

	res := IngestResult{
		SourceID:   sourceID,
		ChunkCount: idx.Len(),
		Dimension:  idx.Dimension(),
		Model:      idx.Model(),
		Duration:   time.Since(started),
	}
	s.logger.Info("ingest complete", "source", sourceID, "chunks", res.ChunkCount, "dimension", res.Dimension, "duration", res.Duration)
	return res, nil
}

// Retrieve returns up to k chunks nearest to query, best first. k <= 0 uses
// the configured default. It returns no results and no error when nothing
// has been ingested yet.
func (s *RetrievalService) Retrieve(ctx context.Context, query string, k int) ([]domain.SearchResult, error) {
	if k <= 0 {
		k = s.opts.TopK
	}
	if s.opts.RetrieveTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.RetrieveTimeout)
		defer cancel()
	}

	gen, err := s.handle(ctx)
	if err != nil {
		return nil, domain.AsTimeout("retrieve", err)
	}
	if gen.index == nil || gen.index.Len() == 0 {
		return nil, nil
	}

	query = textutil.TruncateRunes(query, s.opts.MaxQueryRunes)
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, domain.AsTimeout("retrieve", err)
	}
	if embedding.IsZero(vec) {
		if len(vec) != gen.index.Dimension() {
			return nil, &domain.DimensionMismatchError{Index: gen.index.Dimension(), Query: len(vec)}
		}
		s.logger.Debug("query embeds to zero vector, ranking lexically", "query", query)
		return lexical(gen.index, query, k), nil
	}
	results, err := gen.index.Search(vec, k)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("retrieve", "k", k, "results", len(results))
	return results, nil
}

// Refresh reloads the current generation from storage, picking up
// ingests made by other processes.
func (s *RetrievalService) Refresh(ctx context.Context) error {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()
	idx, err := s.store.Load(ctx)
	if err != nil {
		return err
	}
	s.current.Store(&generation{index: idx})
	return nil
}

// Status reports whether an index exists and what it holds.
func (s *RetrievalService) Status(ctx context.Context) (Status, error) {
	gen, err := s.handle(ctx)
	if err != nil {
		return Status{}, err
	}
	if gen.index == nil {
		return Status{}, nil
	}
	return Status{
		Exists:    true,
		Entries:   gen.index.Len(),
		Dimension: gen.index.Dimension(),
		Model:     gen.index.Model(),
	}, nil
}

// handle returns the cached generation, loading it on first use.
func (s *RetrievalService) handle(ctx context.Context) (*generation, error) {
	if g := s.current.Load(); g != nil {
		return g, nil
	}
	s.loadMu.Lock()
	defer s.loadMu.Unlock()
	if g := s.current.Load(); g != nil {
		return g, nil
	}
	idx, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	g := &generation{index: idx}
	s.current.Store(g)
	return g, nil
}

// lexical ranks chunks by Ochiai token overlap with query.
func lexical(idx *memory.Index, query string, k int) []domain.SearchResult {
	qset := textutil.TokenSet(query)
	entries := idx.Entries()
	scores := make([]float64, len(entries))
	for i, e := range entries {
		scores[i] = textutil.Ochiai(qset, e.Chunk.Text)
	}
	order := idx.Rank(scores)
	if k > len(order) {
		k = len(order)
	}
	out := make([]domain.SearchResult, 0, k)
	for _, j := range order[:k] {
		out = append(out, domain.SearchResult{Chunk: entries[j].Chunk, Score: scores[j], Metadata: entries[j].Metadata})
	}
	return out
}
