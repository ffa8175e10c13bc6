// Package extract turns uploaded files into plain text. A Registry picks
// the extractor by file extension.
package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"docqa/internal/domain"
)

// ErrUnsupportedFormat is returned for file extensions with no extractor.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// Func adapts a plain function to domain.TextExtractor.
type Func func(ctx context.Context, path string) (string, error)

func (f Func) Extract(ctx context.Context, path string) (string, error) { return f(ctx, path) }

// Config configures the default extractors.
type Config struct {
	// TesseractPath is the OCR binary; empty looks up "tesseract" on PATH.
	TesseractPath string
}

// Registry dispatches on lower-cased file extension.
type Registry struct {
	byExt map[string]domain.TextExtractor
}

// NewRegistry returns a registry with every built-in format registered.
func NewRegistry(cfg Config) *Registry {
	r := &Registry{byExt: make(map[string]domain.TextExtractor)}
	plain := Func(extractPlain)
	r.Register(".txt", plain)
	r.Register(".md", plain)
	r.Register(".csv", Func(extractCSV))
	r.Register(".xlsx", Func(extractSpreadsheet))
	r.Register(".xlsm", Func(extractSpreadsheet))
	r.Register(".pdf", Func(extractPDF))
	r.Register(".docx", Func(extractDocx))
	ocr := &OCR{Command: cfg.TesseractPath}
	for _, ext := range []string{".png", ".jpg", ".jpeg"} {
		r.Register(ext, ocr)
	}
	return r
}

// Register sets the extractor for ext, replacing any previous one.
func (r *Registry) Register(ext string, e domain.TextExtractor) {
	r.byExt[normExt(ext)] = e
}

// Supported lists the registered extensions in sorted order.
func (r *Registry) Supported() []string {
	out := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Extract returns the text of the file at path.
func (r *Registry) Extract(ctx context.Context, path string) (string, error) {
	ext := normExt(filepath.Ext(path))
	e, ok := r.byExt[ext]
	if !ok {
		return "", fmt.Errorf("%w: %q (supported: %s)", ErrUnsupportedFormat, ext, strings.Join(r.Supported(), " "))
	}
	if _, err := os.Stat(path); err != nil {
		return "", err
	}
	text, err := e.Extract(ctx, path)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", filepath.Base(path), err)
	}
	return text, nil
}

func normExt(ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

func extractPlain(_ context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
