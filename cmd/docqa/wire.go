package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"docqa/internal/assistant"
	"docqa/internal/chunker"
	"docqa/internal/config"
	"docqa/internal/domain"
	"docqa/internal/embedding/hashing"
	"docqa/internal/embedding/openai"
	"docqa/internal/extract"
	"docqa/internal/llm"
	"docqa/internal/service"
	"docqa/internal/summarizer"
	"docqa/internal/vectorstore"
	"docqa/internal/vectorstore/qdrant"
	"docqa/internal/vectorstore/sqlite"
)

// app holds the assembled components.
type app struct {
	cfg       *config.AppConfig
	logger    *slog.Logger
	service   *service.RetrievalService
	assistant *assistant.Assistant
}

func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func secs(n int) time.Duration { return time.Duration(n) * time.Second }

// buildApp assembles components from cfg. progress may be nil.
func buildApp(cfg *config.AppConfig, logger *slog.Logger, progress func(done, total int)) (*app, error) {
	var emb domain.Embedder
	switch cfg.Embedder.Type {
	case "hashing":
		emb = hashing.NewEmbedder(cfg.Embedder.Hashing.Dimension, cfg.Embedder.Hashing.MaxInputRunes)
	case "openai":
		o := cfg.Embedder.OpenAI
		client, err := openai.NewClient(openai.Config{
			BaseURL:    o.BaseURL,
			APIKeyEnv:  o.APIKeyEnv,
			Model:      o.Model,
			Dimensions: o.Dimensions,
			BatchSize:  o.BatchSize,
			Timeout:    secs(o.TimeoutSecs),
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedder init failed: %w", err)
		}
		emb = client
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Embedder.Type)
	}

	var ch domain.Chunker
	switch cfg.Chunker.Type {
	case "recursive":
		c, err := chunker.NewRecursiveChunker(cfg.Chunker.ChunkSize, cfg.Chunker.Overlap)
		if err != nil {
			return nil, err
		}
		ch = c
	default:
		return nil, fmt.Errorf("unknown chunker: %s", cfg.Chunker.Type)
	}

	var st vectorstore.Storage
	switch cfg.VectorStore.Type {
	case "sqlite":
		st = sqlite.New(cfg.VectorStore.Dir, logger)
	case "qdrant":
		q := cfg.VectorStore.Qdrant
		if q == nil {
			return nil, fmt.Errorf("qdrant config missing")
		}
		st = qdrant.NewStore(qdrant.Config{
			URL:        q.URL,
			APIKey:     q.APIKey,
			Collection: q.Collection,
			Timeout:    secs(q.TimeoutSecs),
		}, logger)
	default:
		return nil, fmt.Errorf("unknown vector store: %s", cfg.VectorStore.Type)
	}

	var (
		answerer domain.Answerer
		chat     *llm.OpenAI
	)
	switch cfg.LLM.Type {
	case "extractive":
		answerer = summarizer.NewExtractive(0)
	case "openai":
		o := cfg.LLM.OpenAI
		c, err := llm.NewOpenAI(llm.Config{
			BaseURL:         o.BaseURL,
			APIKeyEnv:       o.APIKeyEnv,
			Model:           o.Model,
			Temperature:     o.Temperature,
			Timeout:         secs(o.TimeoutSecs),
			SummaryMaxRunes: cfg.LLM.SummaryMaxRunes,
		})
		if err != nil {
			return nil, fmt.Errorf("llm init failed: %w", err)
		}
		answerer, chat = c, c
	default:
		return nil, fmt.Errorf("unknown llm: %s", cfg.LLM.Type)
	}

	var sum domain.Summarizer
	switch cfg.Summarizer.Type {
	case "frequency":
		sum = summarizer.NewFrequency(cfg.Summarizer.MaxSentences)
	case "llm":
		if chat == nil {
			return nil, fmt.Errorf("summarizer llm needs llm.type openai")
		}
		sum = chat
	default:
		return nil, fmt.Errorf("unknown summarizer: %s", cfg.Summarizer.Type)
	}

	svc := service.NewRetrievalService(ch, emb, st, service.Options{
		TopK:            cfg.Retrieval.TopK,
		BatchSize:       cfg.Retrieval.BatchSize,
		MaxQueryRunes:   cfg.Retrieval.MaxQueryRunes,
		IngestTimeout:   secs(cfg.Retrieval.IngestTimeoutSecs),
		RetrieveTimeout: secs(cfg.Retrieval.RetrieveTimeoutSecs),
		Progress:        progress,
		Logger:          logger,
	})
	ext := extract.NewRegistry(extract.Config{TesseractPath: cfg.Extract.TesseractPath})
	return &app{
		cfg:       cfg,
		logger:    logger,
		service:   svc,
		assistant: assistant.New(ext, svc, answerer, sum, logger),
	}, nil
}

func loadConfig(path string) (*config.AppConfig, error) {
	if path == "" {
		cfg, _, err := config.LoadDefault()
		return cfg, err
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return config.Load(path)
}
