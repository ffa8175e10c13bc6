package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"testing"

	"docqa/internal/domain"
	"docqa/internal/vectorstore/memory"
)

// fakeQdrant keeps collections and aliases in memory and implements the
// handful of endpoints the store uses.
type fakeQdrant struct {
	mu          sync.Mutex
	collections map[string][]json.RawMessage
	aliases     map[string]string
	aliasCalls  int
	failAlias   bool
}

func newFake(t *testing.T) (*fakeQdrant, *httptest.Server) {
	t.Helper()
	f := &fakeQdrant{collections: map[string][]json.RawMessage{}, aliases: map[string]string{}}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeQdrant) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/aliases":
		var list []map[string]string
		for a, c := range f.aliases {
			list = append(list, map[string]string{"alias_name": a, "collection_name": c})
		}
		writeResult(w, map[string]any{"aliases": list})
	case r.Method == http.MethodPost && r.URL.Path == "/collections/aliases":
		f.aliasCalls++
		if f.failAlias {
			http.Error(w, `{"status":{"error":"boom"}}`, http.StatusInternalServerError)
			return
		}
		var req struct {
			Actions []map[string]map[string]string `json:"actions"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		for _, a := range req.Actions {
			if d, ok := a["delete_alias"]; ok {
				delete(f.aliases, d["alias_name"])
			}
			if c, ok := a["create_alias"]; ok {
				f.aliases[c["alias_name"]] = c["collection_name"]
			}
		}
		writeResult(w, true)
	case len(parts) == 2 && parts[0] == "collections" && r.Method == http.MethodPut:
		f.collections[parts[1]] = nil
		writeResult(w, true)
	case len(parts) == 2 && parts[0] == "collections" && r.Method == http.MethodDelete:
		delete(f.collections, parts[1])
		writeResult(w, true)
	case len(parts) == 3 && parts[2] == "points" && r.Method == http.MethodPut:
		var req struct {
			Points []json.RawMessage `json:"points"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.collections[parts[1]] = append(f.collections[parts[1]], req.Points...)
		writeResult(w, map[string]any{"status": "completed"})
	case len(parts) == 4 && parts[3] == "scroll":
		var req struct {
			Limit  int `json:"limit"`
			Offset any `json:"offset"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		pts := f.collections[parts[1]]
		start := 0
		if s, ok := req.Offset.(string); ok {
			start, _ = strconv.Atoi(s)
		}
		end := start + req.Limit
		var next any
		if end < len(pts) {
			next = strconv.Itoa(end)
		} else {
			end = len(pts)
		}
		writeResult(w, map[string]any{"points": pts[start:end], "next_page_offset": next})
	default:
		http.NotFound(w, r)
	}
}

func writeResult(w http.ResponseWriter, result any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"result": result, "status": "ok"})
}

func sampleIndex(t *testing.T, n int) *memory.Index {
	t.Helper()
	entries := make([]domain.IndexEntry, n)
	for i := range entries {
		entries[i] = domain.IndexEntry{
			Vector:   []float32{float32(i), 1},
			Chunk:    domain.Chunk{SourceID: "doc", Text: "chunk " + strconv.Itoa(i), Index: i, Start: i, End: i + 1},
			Metadata: map[string]string{"source": "doc"},
		}
	}
	idx, err := memory.New("hashing-2", entries)
	if err != nil {
		t.Fatalf("memory.New failed: %v", err)
	}
	return idx
}

func TestLoadWithoutAlias(t *testing.T) {
	_, srv := newFake(t)
	s := NewStore(Config{URL: srv.URL, Collection: "docs"}, nil)
	idx, err := s.Load(context.Background())
	if err != nil || idx != nil {
		t.Fatalf("Load = %v, %v; want nil, nil", idx, err)
	}
}

func TestBuildLoadAndSwap(t *testing.T) {
	f, srv := newFake(t)
	s := NewStore(Config{URL: srv.URL, Collection: "docs"}, nil)
	ctx := context.Background()

	first := sampleIndex(t, pageSize+3)
	if err := s.Build(ctx, first); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !reflect.DeepEqual(got.Entries(), first.Entries()) || got.Model() != "hashing-2" {
		t.Fatalf("round trip mismatch: %d entries, model %q", got.Len(), got.Model())
	}
	oldCollection := f.aliases["docs"]

	if err := s.Build(ctx, sampleIndex(t, 1)); err != nil {
		t.Fatalf("second Build failed: %v", err)
	}
	got, err = s.Load(ctx)
	if err != nil || got.Len() != 1 {
		t.Fatalf("after swap Load = %v entries, %v", got.Len(), err)
	}
	if _, ok := f.collections[oldCollection]; ok {
		t.Errorf("previous collection %s was not dropped", oldCollection)
	}
	if len(f.collections) != 1 {
		t.Errorf("collections left: %d", len(f.collections))
	}
}

func TestFailedAliasSwapKeepsPrevious(t *testing.T) {
	f, srv := newFake(t)
	s := NewStore(Config{URL: srv.URL, Collection: "docs"}, nil)
	ctx := context.Background()
	if err := s.Build(ctx, sampleIndex(t, 2)); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	current := f.aliases["docs"]

	f.failAlias = true
	if err := s.Build(ctx, sampleIndex(t, 5)); err == nil {
		t.Fatalf("expected Build to fail")
	}
	if f.aliases["docs"] != current {
		t.Errorf("alias moved to %s", f.aliases["docs"])
	}
	if len(f.collections) != 1 {
		t.Errorf("new collection not cleaned up: %d collections", len(f.collections))
	}
	f.failAlias = false
	got, err := s.Load(ctx)
	if err != nil || got.Len() != 2 {
		t.Errorf("Load = %v, %v", got, err)
	}
}

func TestBuildEmptyIndex(t *testing.T) {
	_, srv := newFake(t)
	s := NewStore(Config{URL: srv.URL, Collection: "docs"}, nil)
	empty, _ := memory.New("hashing-2", nil)
	if err := s.Build(context.Background(), empty); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	got, err := s.Load(context.Background())
	if err != nil || got == nil || got.Len() != 0 {
		t.Fatalf("Load = %v, %v; want empty index", got, err)
	}
}
