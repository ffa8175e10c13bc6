package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"docqa/internal/domain"
	"docqa/internal/vectorstore/memory"
)

const pageSize = 256

// Store is a minimal REST client to Qdrant that keeps each index generation
// in its own collection and points an alias at the current one.
type Store struct {
	url    string
	apiKey string
	alias  string
	client *http.Client
	logger *slog.Logger
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

func NewStore(cfg Config, logger *slog.Logger) *Store {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		url:    strings.TrimRight(cfg.URL, "/"),
		apiKey: cfg.APIKey,
		alias:  cfg.Collection,
		client: &http.Client{Timeout: timeout},
		logger: logger.With("component", "qdrant-store"),
	}
}

type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// Build uploads idx into a fresh collection and repoints the alias at it in
// one request. The previous collection is dropped afterwards.
func (s *Store) Build(ctx context.Context, idx *memory.Index) error {
	name := s.alias + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	size := idx.Dimension()
	if size == 0 {
		size = 1
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     size,
			"distance": "Cosine",
		},
	}
	if err := s.do(ctx, http.MethodPut, "/collections/"+name, body, nil); err != nil {
		return err
	}
	if err := s.upload(ctx, name, idx); err != nil {
		s.drop(name)
		return err
	}

	prev, err := s.resolve(ctx)
	if err != nil {
		s.drop(name)
		return err
	}
	if err := ctx.Err(); err != nil {
		s.drop(name)
		return err
	}
	var actions []map[string]any
	if prev != "" {
		actions = append(actions, map[string]any{"delete_alias": map[string]any{"alias_name": s.alias}})
	}
	actions = append(actions, map[string]any{"create_alias": map[string]any{
		"collection_name": name,
		"alias_name":      s.alias,
	}})
	if err := s.do(ctx, http.MethodPost, "/collections/aliases", map[string]any{"actions": actions}, nil); err != nil {
		s.drop(name)
		return err
	}
	s.logger.Info("index generation committed", "collection", name, "entries", idx.Len())
	if prev != "" && prev != name {
		s.drop(prev)
	}
	return nil
}

func (s *Store) upload(ctx context.Context, name string, idx *memory.Index) error {
	entries := idx.Entries()
	for i := 0; i < len(entries); i += pageSize {
		end := i + pageSize
		if end > len(entries) {
			end = len(entries)
		}
		points := make([]point, 0, end-i)
		for j := i; j < end; j++ {
			e := entries[j]
			points = append(points, point{
				ID:     uuid.NewString(),
				Vector: e.Vector,
				Payload: map[string]any{
					"seq":       j,
					"model":     idx.Model(),
					"source_id": e.Chunk.SourceID,
					"index":     e.Chunk.Index,
					"text":      e.Chunk.Text,
					"start":     e.Chunk.Start,
					"end":       e.Chunk.End,
					"metadata":  e.Metadata,
				},
			})
		}
		path := fmt.Sprintf("/collections/%s/points?wait=true", name)
		if err := s.do(ctx, http.MethodPut, path, map[string]any{"points": points}, nil); err != nil {
			return fmt.Errorf("upsert points %d-%d: %w", i, end, err)
		}
	}
	return nil
}

// Load reads every point of the aliased collection. It returns (nil, nil)
// if the alias does not exist.
func (s *Store) Load(ctx context.Context) (*memory.Index, error) {
	name, err := s.resolve(ctx)
	if err != nil || name == "" {
		return nil, err
	}
	type scrollResp struct {
		Result struct {
			Points []struct {
				Vector  []float32 `json:"vector"`
				Payload payload   `json:"payload"`
			} `json:"points"`
			NextPageOffset any `json:"next_page_offset"`
		} `json:"result"`
	}
	var (
		model   string
		rows    []payload
		vectors = map[int][]float32{}
		offset  any
	)
	for {
		req := map[string]any{"limit": pageSize, "with_payload": true, "with_vector": true}
		if offset != nil {
			req["offset"] = offset
		}
		var resp scrollResp
		if err := s.do(ctx, http.MethodPost, "/collections/"+name+"/points/scroll", req, &resp); err != nil {
			return nil, err
		}
		for _, p := range resp.Result.Points {
			model = p.Payload.Model
			rows = append(rows, p.Payload)
			vectors[p.Payload.Seq] = p.Vector
		}
		if resp.Result.NextPageOffset == nil {
			break
		}
		offset = resp.Result.NextPageOffset
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Seq < rows[j].Seq })
	entries := make([]domain.IndexEntry, len(rows))
	for i, r := range rows {
		entries[i] = domain.IndexEntry{
			Vector: vectors[r.Seq],
			Chunk: domain.Chunk{
				SourceID: r.SourceID,
				Text:     r.Text,
				Index:    r.Index,
				Start:    r.Start,
				End:      r.End,
			},
			Metadata: r.Metadata,
		}
	}
	return memory.New(model, entries)
}

type payload struct {
	Seq      int               `json:"seq"`
	Model    string            `json:"model"`
	SourceID string            `json:"source_id"`
	Index    int               `json:"index"`
	Text     string            `json:"text"`
	Start    int               `json:"start"`
	End      int               `json:"end"`
	Metadata map[string]string `json:"metadata"`
}

// resolve returns the collection the alias points to, or "".
func (s *Store) resolve(ctx context.Context) (string, error) {
	var resp struct {
		Result struct {
			Aliases []struct {
				AliasName      string `json:"alias_name"`
				CollectionName string `json:"collection_name"`
			} `json:"aliases"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodGet, "/aliases", nil, &resp); err != nil {
		return "", err
	}
	for _, a := range resp.Result.Aliases {
		if a.AliasName == s.alias {
			return a.CollectionName, nil
		}
	}
	return "", nil
}

// drop deletes a collection, best effort.
func (s *Store) drop(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.client.Timeout)
	defer cancel()
	if err := s.do(ctx, http.MethodDelete, "/collections/"+name, nil, nil); err != nil {
		s.logger.Warn("failed to drop collection", "collection", name, "error", err)
	}
}

func (s *Store) do(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.url+path, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("qdrant %s %s failed: %s: %s", method, path, resp.Status, bytes.TrimSpace(msg))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("qdrant %s %s: decode response: %w", method, path, err)
		}
	}
	return nil
}
