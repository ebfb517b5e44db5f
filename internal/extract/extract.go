// Package extract converts stored files into plain text, dispatching by extension.
package extract

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/kailas-cloud/ragworker/internal/domain"
)

// HTML rendering modes.
const (
	HTMLModeText     = "text"
	HTMLModeMarkdown = "markdown"
)

// Extractor reads one file format.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// ExtractorFunc adapts a plain function to Extractor.
type ExtractorFunc func(ctx context.Context, path string) (string, error)

// Extract calls f.
func (f ExtractorFunc) Extract(ctx context.Context, path string) (string, error) {
	return f(ctx, path)
}

// Config controls path resolution and HTML handling.
type Config struct {
	// BasePath is prepended to relative file paths.
	BasePath string
	// HTMLMode is "text" (default) or "markdown".
	HTMLMode string
}

// Registry maps lower-case extensions (without dot) to extractors.
type Registry struct {
	basePath   string
	extractors map[string]Extractor
}

// NewRegistry creates an empty registry.
func NewRegistry(basePath string) *Registry {
	return &Registry{
		basePath:   basePath,
		extractors: make(map[string]Extractor),
	}
}

// NewDefault returns a registry with every built-in format registered.
func NewDefault(cfg Config) *Registry {
	r := NewRegistry(cfg.BasePath)

	plain := ExtractorFunc(readPlain)
	for _, ext := range []string{"txt", "md", "markdown", "csv", "json", "log"} {
		r.Register(ext, plain)
	}

	html := &HTMLExtractor{Markdown: cfg.HTMLMode == HTMLModeMarkdown}
	r.Register("html", html)
	r.Register("htm", html)

	r.Register("pdf", ExtractorFunc(readPDF))
	r.Register("docx", ExtractorFunc(readDocx))
	r.Register("doc", ExtractorFunc(func(context.Context, string) (string, error) {
		return "", fmt.Errorf("legacy .doc is not supported, convert to .docx: %w", domain.ErrUnsupportedFileType)
	}))
	return r
}

// Register binds ext (with or without leading dot) to e.
func (r *Registry) Register(ext string, e Extractor) {
	r.extractors[normalizeExt(ext)] = e
}

// Supports reports whether a file with this path can be extracted.
func (r *Registry) Supports(path string) bool {
	_, ok := r.extractors[normalizeExt(filepath.Ext(path))]
	return ok
}

// Extract resolves path against the base path and returns its text.
func (r *Registry) Extract(ctx context.Context, path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("file path is empty: %w", domain.ErrInvalidInput)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ext := normalizeExt(filepath.Ext(path))
	e, ok := r.extractors[ext]
	if !ok {
		return "", fmt.Errorf("extension %q: %w", ext, domain.ErrUnsupportedFileType)
	}

	resolved := r.resolve(path)
	info, err := os.Stat(resolved)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%s: %w", resolved, domain.ErrFileNotFound)
		}
		return "", fmt.Errorf("stat %s: %w", resolved, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory: %w", resolved, domain.ErrInvalidInput)
	}

	text, err := e.Extract(ctx, resolved)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", ext, err)
	}
	return text, nil
}

func (r *Registry) resolve(path string) string {
	if r.basePath == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(r.basePath, path)
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

func readPlain(_ context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return string(data), nil
}
