// Package chunking splits extracted text into overlapping windows.
package chunking

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/ragworker/internal/domain"
)

const (
	DefaultSize    = 800
	DefaultOverlap = 100
)

// Chunk is one trimmed window of the source text.
type Chunk struct {
	Text       string
	Index      int
	TokenCount int
}

// Config controls the window geometry, measured in runes.
type Config struct {
	Size    int
	Overlap int
}

// DefaultConfig returns the 800/100 window.
func DefaultConfig() Config {
	return Config{Size: DefaultSize, Overlap: DefaultOverlap}
}

// Validate rejects window geometries that would not advance.
func (c Config) Validate() error {
	if c.Size <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d: %w", c.Size, domain.ErrInvalidInput)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("chunk overlap must not be negative, got %d: %w", c.Overlap, domain.ErrInvalidInput)
	}
	if c.Overlap >= c.Size {
		return fmt.Errorf("chunk overlap %d must be smaller than size %d: %w", c.Overlap, c.Size, domain.ErrInvalidInput)
	}
	return nil
}

// Chunker splits text with a fixed window.
type Chunker struct {
	cfg Config
}

// New creates a Chunker after validating cfg.
func New(cfg Config) (*Chunker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{cfg: cfg}, nil
}

// Split returns the non-blank windows of text. Window starts advance by
// Size-Overlap runes while the start is inside the text, so the tail of the
// last full window is emitted again as a trailing window. Indexes count
// emitted chunks only.
func (c *Chunker) Split(text string) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	step := c.cfg.Size - c.cfg.Overlap

	var chunks []Chunk
	for start := 0; start < len(runes); start += step {
		end := min(start+c.cfg.Size, len(runes))

		window := strings.TrimSpace(string(runes[start:end]))
		if window != "" {
			chunks = append(chunks, Chunk{
				Text:       window,
				Index:      len(chunks),
				TokenCount: ApproxTokens(window),
			})
		}
	}
	return chunks
}

// Split is a convenience wrapper validating cfg on every call.
func Split(text string, cfg Config) ([]Chunk, error) {
	c, err := New(cfg)
	if err != nil {
		return nil, err
	}
	return c.Split(text), nil
}

// ApproxTokens counts whitespace-delimited words. It approximates, not tokenizes.
func ApproxTokens(text string) int {
	return len(strings.Fields(text))
}
