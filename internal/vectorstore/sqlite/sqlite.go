// Package sqlite persists index generations as SQLite databases under a
// directory. Each build writes a new generation and then switches the
// CURRENT marker file with a single rename.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"docqa/internal/domain"
	"docqa/internal/vectorstore/memory"
)

//go:embed schema.sql
var schema string

const (
	currentFile = "CURRENT"
	genPrefix   = "gen-"
	dbFile      = "index.db"
)

// Store keeps index generations under dir.
type Store struct {
	dir    string
	logger *slog.Logger
}

// New returns a store rooted at dir. The directory is created on first Build.
func New(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{dir: dir, logger: logger.With("component", "sqlite-store")}
}

// Build writes idx as a new generation and makes it current. If ctx is
// cancelled or any step fails before the marker is switched, the previous
// generation stays current and the partial one is removed. The generation
// that was current before the switch is kept for readers that resolved it
// just before the rename; older ones are removed.
func (s *Store) Build(ctx context.Context, idx *memory.Index) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}
	gen := genPrefix + uuid.NewString()
	genDir := filepath.Join(s.dir, gen)
	if err := os.MkdirAll(genDir, 0o755); err != nil {
		return fmt.Errorf("failed to create generation directory: %w", err)
	}

	if err := writeGeneration(ctx, filepath.Join(genDir, dbFile), idx); err != nil {
		s.discard(genDir)
		return err
	}
	if err := ctx.Err(); err != nil {
		s.discard(genDir)
		return err
	}
	prev, err := s.Current()
	if err != nil {
		s.logger.Warn("ignoring unreadable marker", "error", err)
		prev = ""
	}
	if err := s.switchCurrent(gen); err != nil {
		s.discard(genDir)
		return err
	}
	s.logger.Info("index generation committed", "generation", gen, "entries", idx.Len(), "dimension", idx.Dimension())
	s.cleanup(gen, prev)
	return nil
}

// maxLoadAttempts bounds how often Load follows a marker that moved while
// the generation it named was being removed.
const maxLoadAttempts = 3

// Load opens the current generation. It returns (nil, nil) if none exists.
func (s *Store) Load(ctx context.Context) (*memory.Index, error) {
	gen, err := s.Current()
	if err != nil || gen == "" {
		return nil, err
	}
	for attempt := 1; ; attempt++ {
		idx, err := s.loadGeneration(ctx, gen)
		if err == nil || !errors.Is(err, os.ErrNotExist) || attempt == maxLoadAttempts {
			return idx, err
		}
		next, cerr := s.Current()
		if cerr != nil || next == "" || next == gen {
			return nil, err
		}
		s.logger.Debug("generation replaced while loading", "generation", gen, "current", next)
		gen = next
	}
}

func (s *Store) loadGeneration(ctx context.Context, gen string) (*memory.Index, error) {
	path := filepath.Join(s.dir, gen, dbFile)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("generation %s: %w", gen, err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=query_only(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open generation %s: %w", gen, err)
	}
	defer db.Close()

	meta, err := readMeta(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("generation %s: %w", gen, err)
	}
	entries, err := readEntries(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("generation %s: %w", gen, err)
	}
	if count, _ := strconv.Atoi(meta["count"]); count != len(entries) {
		return nil, fmt.Errorf("generation %s: expected %d entries, found %d", gen, count, len(entries))
	}
	idx, err := memory.New(meta["model"], entries)
	if err != nil {
		return nil, fmt.Errorf("generation %s: %w", gen, err)
	}
	if dim, _ := strconv.Atoi(meta["dimension"]); idx.Len() > 0 && dim != idx.Dimension() {
		return nil, fmt.Errorf("generation %s: %w", gen, &domain.DimensionMismatchError{Index: dim, Query: idx.Dimension()})
	}
	s.logger.Debug("index generation loaded", "generation", gen, "entries", idx.Len())
	return idx, nil
}

// Current returns the name of the current generation, or "" if there is none.
func (s *Store) Current() (string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, currentFile))
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", currentFile, err)
	}
	gen := strings.TrimSpace(string(data))
	if !strings.HasPrefix(gen, genPrefix) || strings.ContainsAny(gen, `/\`) {
		return "", fmt.Errorf("corrupt %s marker: %q", currentFile, gen)
	}
	return gen, nil
}

func (s *Store) switchCurrent(gen string) error {
	tmp := filepath.Join(s.dir, currentFile+".tmp")
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create marker: %w", err)
	}
	if _, err := f.WriteString(gen + "\n"); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to write marker: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to sync marker: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close marker: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(s.dir, currentFile)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to switch marker: %w", err)
	}
	if d, err := os.Open(s.dir); err == nil {
		_ = d.Sync()
		d.Close()
	}
	return nil
}

// cleanup removes every generation other than the ones named in keep.
func (s *Store) cleanup(keep ...string) {
	items, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.Warn("failed to list generations", "error", err)
		return
	}
	for _, it := range items {
		if !it.IsDir() || !strings.HasPrefix(it.Name(), genPrefix) || slices.Contains(keep, it.Name()) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.dir, it.Name())); err != nil {
			s.logger.Warn("failed to remove old generation", "generation", it.Name(), "error", err)
			continue
		}
		s.logger.Debug("removed old generation", "generation", it.Name())
	}
}

func (s *Store) discard(genDir string) {
	if err := os.RemoveAll(genDir); err != nil {
		s.logger.Warn("failed to remove partial generation", "dir", genDir, "error", err)
	}
}

func writeGeneration(ctx context.Context, path string, idx *memory.Index) error {
	db, err := sql.Open("sqlite", path+"?_pragma=synchronous(FULL)")
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if err := fillGeneration(ctx, db, idx); err != nil {
		db.Close()
		return err
	}
	if err := db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

func fillGeneration(ctx context.Context, db *sql.DB, idx *memory.Index) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	meta := map[string]string{
		"dimension":  strconv.Itoa(idx.Dimension()),
		"model":      idx.Model(),
		"count":      strconv.Itoa(idx.Len()),
		"created_at": time.Now().UTC().Format(time.RFC3339Nano),
	}
	for k, v := range meta {
		if _, err := tx.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("failed to write meta %s: %w", k, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO entries (seq, source_id, chunk_index, text, start_offset, end_offset, vector, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range idx.Entries() {
		var metaJSON []byte
		if len(e.Metadata) > 0 {
			if metaJSON, err = json.Marshal(e.Metadata); err != nil {
				return fmt.Errorf("failed to encode metadata: %w", err)
			}
		}
		if _, err := stmt.ExecContext(ctx, i, e.Chunk.SourceID, e.Chunk.Index, e.Chunk.Text,
			e.Chunk.Start, e.Chunk.End, encodeVector(e.Vector), metaJSON); err != nil {
			return fmt.Errorf("failed to insert entry %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit generation: %w", err)
	}
	return nil
}

func readMeta(ctx context.Context, db *sql.DB) (map[string]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT key, value FROM meta`)
	if err != nil {
		return nil, fmt.Errorf("failed to read meta: %w", err)
	}
	defer rows.Close()
	meta := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("failed to scan meta: %w", err)
		}
		meta[k] = v
	}
	return meta, rows.Err()
}

func readEntries(ctx context.Context, db *sql.DB) ([]domain.IndexEntry, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT source_id, chunk_index, text, start_offset, end_offset, vector, metadata
		FROM entries ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to read entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.IndexEntry
	for rows.Next() {
		var (
			e        domain.IndexEntry
			blob     []byte
			metaJSON sql.NullString
		)
		if err := rows.Scan(&e.Chunk.SourceID, &e.Chunk.Index, &e.Chunk.Text,
			&e.Chunk.Start, &e.Chunk.End, &blob, &metaJSON); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		if e.Vector, err = decodeVector(blob); err != nil {
			return nil, err
		}
		if metaJSON.Valid && metaJSON.String != "" {
			if err := json.Unmarshal([]byte(metaJSON.String), &e.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode metadata: %w", err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// encodeVector stores v as little-endian float32 values.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("invalid vector blob length %d", len(buf))
	}
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return v, nil
}
