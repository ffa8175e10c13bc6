package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"testing"

	"docqa/internal/domain"
	"docqa/internal/vectorstore/memory"
)

func buildIndex(t *testing.T, texts ...string) *memory.Index {
	t.Helper()
	entries := make([]domain.IndexEntry, len(texts))
	for i, text := range texts {
		entries[i] = domain.IndexEntry{
			Vector:   []float32{float32(i + 1), 0.5, -1},
			Chunk:    domain.Chunk{SourceID: "doc.txt", Text: text, Index: i, Start: i * 10, End: i*10 + len(text)},
			Metadata: map[string]string{"source": "doc.txt"},
		}
	}
	idx, err := memory.New("hashing-3", entries)
	if err != nil {
		t.Fatalf("memory.New failed: %v", err)
	}
	return idx
}

func generations(t *testing.T, dir string) []string {
	t.Helper()
	items, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	var out []string
	for _, it := range items {
		if strings.HasPrefix(it.Name(), genPrefix) {
			out = append(out, it.Name())
		}
	}
	return out
}

func TestLoadAbsent(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "missing"), nil)
	idx, err := s.Load(context.Background())
	if err != nil || idx != nil {
		t.Fatalf("Load on empty dir = %v, %v; want nil, nil", idx, err)
	}
}

func TestBuildLoadRoundTrip(t *testing.T) {
	s := New(t.TempDir(), nil)
	ctx := context.Background()
	want := buildIndex(t, "alpha", "beta", "gamma")
	if err := s.Build(ctx, want); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.Model() != "hashing-3" || got.Dimension() != 3 {
		t.Errorf("model/dim = %s/%d", got.Model(), got.Dimension())
	}
	if !reflect.DeepEqual(got.Entries(), want.Entries()) {
		t.Errorf("entries differ after round trip:\n got %+v\nwant %+v", got.Entries(), want.Entries())
	}
}

func TestEmptyIndexIsNotAbsent(t *testing.T) {
	s := New(t.TempDir(), nil)
	ctx := context.Background()
	empty, _ := memory.New("hashing-3", nil)
	if err := s.Build(ctx, empty); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got == nil {
		t.Fatalf("empty index loaded as absent")
	}
	if got.Len() != 0 {
		t.Errorf("Len() = %d, want 0", got.Len())
	}
}

func TestBuildReplacesAndCleansUp(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, nil)
	ctx := context.Background()
	if err := s.Build(ctx, buildIndex(t, "old one", "old two")); err != nil {
		t.Fatalf("first Build failed: %v", err)
	}
	first, _ := s.Current()
	if err := s.Build(ctx, buildIndex(t, "new")); err != nil {
		t.Fatalf("second Build failed: %v", err)
	}
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.Len() != 1 || got.Entries()[0].Chunk.Text != "new" {
		t.Errorf("index was merged instead of replaced: %+v", got.Entries())
	}
	second, _ := s.Current()
	if gens := generations(t, dir); !reflect.DeepEqual(sorted(gens), sorted([]string{first, second})) {
		t.Errorf("generations on disk = %v, want previous %s and current %s", gens, first, second)
	}

	if err := s.Build(ctx, buildIndex(t, "newest")); err != nil {
		t.Fatalf("third Build failed: %v", err)
	}
	third, _ := s.Current()
	if gens := generations(t, dir); !reflect.DeepEqual(sorted(gens), sorted([]string{second, third})) {
		t.Errorf("generations on disk = %v, want %s and %s", gens, second, third)
	}
}

func TestReaderOfReplacedGenerationSeesOldIndex(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, nil)
	ctx := context.Background()
	if err := s.Build(ctx, buildIndex(t, "old")); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	resolved, _ := s.Current()
	if err := s.Build(ctx, buildIndex(t, "new one", "new two")); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	got, err := s.loadGeneration(ctx, resolved)
	if err != nil {
		t.Fatalf("loading the generation resolved before the swap failed: %v", err)
	}
	if got.Len() != 1 || got.Entries()[0].Chunk.Text != "old" {
		t.Errorf("old generation = %+v", got.Entries())
	}
}

func TestLoadDanglingMarker(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, nil)
	ctx := context.Background()
	if err := s.Build(ctx, buildIndex(t, "live")); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	// A marker naming a removed generation is an error, not an endless retry.
	if err := os.WriteFile(filepath.Join(dir, currentFile), []byte(genPrefix+"gone\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load(ctx); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load with dangling marker err = %v, want ErrNotExist", err)
	}
}

func sorted(in []string) []string {
	out := slices.Clone(in)
	slices.Sort(out)
	return out
}

func TestCancelledBuildKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, nil)
	if err := s.Build(context.Background(), buildIndex(t, "kept")); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	before, _ := s.Current()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Build(ctx, buildIndex(t, "dropped")); err == nil {
		t.Fatalf("Build with cancelled context succeeded")
	}
	after, _ := s.Current()
	if before != after {
		t.Errorf("CURRENT changed from %s to %s", before, after)
	}
	if gens := generations(t, dir); len(gens) != 1 {
		t.Errorf("partial generation left behind: %v", gens)
	}
	got, err := s.Load(context.Background())
	if err != nil || got.Entries()[0].Chunk.Text != "kept" {
		t.Errorf("Load after cancelled build = %v, %v", got, err)
	}
}

func TestCorruptMarker(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, currentFile), []byte("../etc\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := New(dir, nil).Load(context.Background()); err == nil {
		t.Errorf("expected error for corrupt marker")
	}
}

func TestVectorEncoding(t *testing.T) {
	v := []float32{0, 1.5, -2.25, 3e-7}
	got, err := decodeVector(encodeVector(v))
	if err != nil {
		t.Fatalf("decodeVector failed: %v", err)
	}
	if !reflect.DeepEqual(got, v) {
		t.Errorf("decoded %v, want %v", got, v)
	}
	if _, err := decodeVector([]byte{1, 2, 3}); err == nil {
		t.Errorf("expected error for truncated blob")
	}
}
