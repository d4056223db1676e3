package search

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/khanglvm/genloop/internal/catalog"
)

// FusionConfig defines weights for hybrid score fusion.
type FusionConfig struct {
	SemanticWeight float64
	KeywordWeight  float64
}

// DefaultFusionConfig weights semantic hits 70% and keyword hits 30%.
var DefaultFusionConfig = FusionConfig{
	SemanticWeight: 0.7,
	KeywordWeight:  0.3,
}

// CatalogSearcher is the read side of the snippet catalog.
type CatalogSearcher interface {
	Search(text string, limit int) ([]catalog.Result, error)
	Get(id string) (*catalog.Entry, error)
}

// SearchHybrid combines catalog keyword hits with semantic hits over the
// component partition. Without an embedder, or when semantic search fails,
// keyword results are returned unchanged.
func (ix *Indexer) SearchHybrid(ctx context.Context, cat CatalogSearcher, text string, limit int, cfg FusionConfig) ([]catalog.Result, error) {
	if limit <= 0 {
		limit = 10
	}

	keyword, err := cat.Search(text, limit*2)
	if err != nil {
		return nil, err
	}
	if ix.embedder == nil {
		return truncate(keyword, limit), nil
	}

	semantic, err := ix.SearchText(ctx, text, SourceComponent, limit*2, 0)
	if err != nil {
		ix.logger.Debug("semantic leg failed, keyword only", zap.Error(err))
		return truncate(keyword, limit), nil
	}

	fused := fuseScores(normalizeScores(keyword), semantic, cat, cfg)
	sort.SliceStable(fused, func(i, j int) bool {
		return fused[i].Score > fused[j].Score
	})
	return truncate(fused, limit), nil
}

// fuseScores merges both legs by entry id. Semantic-only hits are resolved
// through the catalog; ids the catalog no longer knows are dropped.
func fuseScores(keyword []catalog.Result, semantic []Match, cat CatalogSearcher, cfg FusionConfig) []catalog.Result {
	byID := make(map[string]int, len(keyword)+len(semantic))
	fused := make([]catalog.Result, 0, len(keyword)+len(semantic))

	for _, r := range keyword {
		byID[r.ID] = len(fused)
		r.Score = cfg.KeywordWeight * r.Score
		fused = append(fused, r)
	}

	for _, m := range semantic {
		if i, ok := byID[m.SourceID]; ok {
			fused[i].Score += cfg.SemanticWeight * m.Similarity
			continue
		}
		entry, err := cat.Get(m.SourceID)
		if err != nil || entry == nil {
			continue
		}
		byID[m.SourceID] = len(fused)
		fused = append(fused, catalog.Result{Entry: *entry, Score: cfg.SemanticWeight * m.Similarity})
	}
	return fused
}

// normalizeScores rescales scores to [0, 1]. Equal scores all become 1.
func normalizeScores(results []catalog.Result) []catalog.Result {
	if len(results) == 0 {
		return results
	}

	minScore, maxScore := results[0].Score, results[0].Score
	for _, r := range results {
		if r.Score < minScore {
			minScore = r.Score
		}
		if r.Score > maxScore {
			maxScore = r.Score
		}
	}

	normalized := make([]catalog.Result, len(results))
	for i, r := range results {
		normalized[i] = r
		if maxScore == minScore {
			normalized[i].Score = 1.0
		} else {
			normalized[i].Score = (r.Score - minScore) / (maxScore - minScore)
		}
	}
	return normalized
}

func truncate(results []catalog.Result, limit int) []catalog.Result {
	if len(results) > limit {
		return results[:limit]
	}
	return results
}
