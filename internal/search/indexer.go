package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/khanglvm/genloop/internal/catalog"
	"github.com/khanglvm/genloop/internal/embedder"
	"github.com/khanglvm/genloop/internal/storage"
)

// ErrNoEmbedder is returned when text search is asked of an indexer
// that has no embedder.
var ErrNoEmbedder = errors.New("search: no embedder configured")

// Indexer embeds text and stores the vectors through an Engine.
type Indexer struct {
	engine   *Engine
	embedder embedder.Embedder
	logger   *zap.Logger
}

// NewIndexer creates an indexer. emb may be nil, in which case only
// vector-based search is available.
func NewIndexer(engine *Engine, emb embedder.Embedder, logger *zap.Logger) *Indexer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indexer{engine: engine, embedder: emb, logger: logger.Named("indexer")}
}

// Engine returns the underlying embedding store.
func (ix *Indexer) Engine() *Engine {
	return ix.engine
}

// CanEmbed reports whether an embedder is configured.
func (ix *Indexer) CanEmbed() bool {
	return ix.embedder != nil
}

// IndexTexts embeds docs and upserts them under sourceType. Documents with
// blank text are skipped. It returns the number stored.
func (ix *Indexer) IndexTexts(ctx context.Context, sourceType string, docs []Document) (int, error) {
	if ix.embedder == nil {
		return 0, ErrNoEmbedder
	}

	kept := make([]Document, 0, len(docs))
	texts := make([]string, 0, len(docs))
	for _, d := range docs {
		if d.ID == "" || strings.TrimSpace(d.Text) == "" {
			continue
		}
		kept = append(kept, d)
		texts = append(texts, d.Text)
	}
	if len(kept) == 0 {
		return 0, nil
	}

	start := time.Now()
	vectors, err := ix.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("failed to embed %d documents: %w", len(texts), err)
	}
	if len(vectors) != len(kept) {
		return 0, fmt.Errorf("embedder returned %d vectors for %d documents", len(vectors), len(kept))
	}

	embs := make([]storage.Embedding, len(kept))
	for i, d := range kept {
		embs[i] = storage.Embedding{
			SourceID:   d.ID,
			SourceType: sourceType,
			Text:       d.Text,
			Vector:     vectors[i],
			Dimensions: len(vectors[i]),
		}
	}
	if err := ix.engine.StoreMany(embs); err != nil {
		return 0, err
	}

	ix.logger.Debug("indexed documents",
		zap.String("source_type", sourceType),
		zap.Int("count", len(embs)),
		zap.Duration("took", time.Since(start)))
	return len(embs), nil
}

// IndexCatalog embeds up to limit catalog entries as components.
func (ix *Indexer) IndexCatalog(ctx context.Context, cat *catalog.Catalog, limit int) (int, error) {
	entries, err := cat.All(limit)
	if err != nil {
		return 0, err
	}

	docs := make([]Document, 0, len(entries))
	for _, e := range entries {
		docs = append(docs, Document{ID: e.ID, Text: e.SearchText()})
	}
	return ix.IndexTexts(ctx, SourceComponent, docs)
}

// SearchText embeds text as a query and ranks sourceType against it.
func (ix *Indexer) SearchText(ctx context.Context, text, sourceType string, topK int, threshold float64) ([]Match, error) {
	if ix.embedder == nil {
		return nil, ErrNoEmbedder
	}
	query, err := ix.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return ix.engine.Search(query, sourceType, topK, threshold)
}
