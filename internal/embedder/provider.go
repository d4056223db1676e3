// Package embedder turns text into fixed-length vectors for semantic search.
package embedder

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyInput is returned when there is nothing to embed.
	ErrEmptyInput = errors.New("embedder: empty input")

	// ErrUnknownProvider is returned by New for an unsupported provider name.
	ErrUnknownProvider = errors.New("embedder: unknown provider")
)

// Embedder generates embeddings for documents and queries.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Dimension() int
	Close() error
}

const (
	ProviderFastEmbed = "fastembed"
	ProviderHashing   = "hashing"

	DefaultModel = "BAAI/bge-small-en-v1.5"
)

// Config selects and configures an embedding provider.
type Config struct {
	Provider  string `toml:"provider" json:"provider"`
	Model     string `toml:"model" json:"model"`
	CacheDir  string `toml:"cache_dir" json:"cacheDir"`
	MaxLength int    `toml:"max_length" json:"maxLength"`
	Dimension int    `toml:"dimension" json:"dimension"`
}

// New builds the configured embedder. An empty provider means fastembed.
func New(cfg Config) (Embedder, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderFastEmbed:
		model := cfg.Model
		if model == "" {
			model = DefaultModel
		}
		fe, err := NewFastEmbed(FastEmbedConfig{Model: model, CacheDir: cfg.CacheDir, MaxLength: cfg.MaxLength})
		if err != nil {
			return nil, err
		}
		return fe, nil
	case ProviderHashing:
		return NewHashing(cfg.Dimension), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}
