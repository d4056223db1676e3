package search

import (
	"sync"

	"go.uber.org/zap"

	"github.com/khanglvm/genloop/internal/storage"
)

// Engine is the embedding store and its semantic search. Loaded partitions
// are cached in memory and dropped on every write to that partition.
type Engine struct {
	repo  storage.EmbeddingRepository
	cache map[string][]storage.Embedding

	// versions counts writes per kind and epoch counts ClearCache calls.
	// A load only fills the cache if neither moved while it read the repo.
	versions map[string]uint64
	epoch    uint64

	mu     sync.RWMutex
	logger *zap.Logger
}

// NewEngine creates an engine over an embedding repository.
func NewEngine(repo storage.EmbeddingRepository, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		repo:     repo,
		cache:    make(map[string][]storage.Embedding),
		versions: make(map[string]uint64),
		logger:   logger.Named("search"),
	}
}

// Store upserts one embedding.
func (e *Engine) Store(emb storage.Embedding) error {
	return e.StoreMany([]storage.Embedding{emb})
}

// StoreMany upserts a batch of embeddings.
func (e *Engine) StoreMany(embs []storage.Embedding) error {
	if err := e.repo.SaveEmbeddings(embs); err != nil {
		return err
	}
	e.invalidate(embs...)
	return nil
}

// Load returns every embedding of a kind.
func (e *Engine) Load(sourceType string) ([]storage.Embedding, error) {
	e.mu.RLock()
	cached, ok := e.cache[sourceType]
	version, epoch := e.versions[sourceType], e.epoch
	e.mu.RUnlock()
	if ok {
		return cached, nil
	}

	loaded, err := e.repo.LoadEmbeddings(sourceType)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if e.versions[sourceType] == version && e.epoch == epoch {
		e.cache[sourceType] = loaded
	}
	e.mu.Unlock()
	return loaded, nil
}

// Get returns one embedding, or nil if it does not exist.
func (e *Engine) Get(sourceID, sourceType string) (*storage.Embedding, error) {
	return e.repo.GetEmbedding(sourceID, sourceType)
}

// DeleteAll removes every embedding of a kind and returns how many.
func (e *Engine) DeleteAll(sourceType string) (int, error) {
	n, err := e.repo.DeleteEmbeddings(sourceType)
	if err != nil {
		return 0, err
	}
	e.ClearCache()
	return n, nil
}

// Count returns the number of embeddings of a kind.
func (e *Engine) Count(sourceType string) (int, error) {
	return e.repo.CountEmbeddings(sourceType)
}

// Search ranks the embeddings of sourceType against query. An unknown or
// empty kind yields an empty result. A topK <= 0 uses DefaultTopK.
func (e *Engine) Search(query []float32, sourceType string, topK int, threshold float64) ([]Match, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if sourceType == "" {
		return []Match{}, nil
	}

	candidates, err := e.Load(sourceType)
	if err != nil {
		return nil, err
	}
	matches := FindSimilar(query, candidates, topK, threshold)
	e.logger.Debug("semantic search",
		zap.String("source_type", sourceType),
		zap.Int("candidates", len(candidates)),
		zap.Int("matches", len(matches)))
	return matches, nil
}

// ClearCache drops every cached partition.
func (e *Engine) ClearCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache = make(map[string][]storage.Embedding)
	e.epoch++
}

func (e *Engine) invalidate(embs ...storage.Embedding) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, emb := range embs {
		delete(e.cache, emb.SourceType)
		e.versions[emb.SourceType]++
	}
}
