package search

import (
	"math"
	"sort"

	"github.com/khanglvm/genloop/internal/storage"
)

// CosineSimilarity returns the normalized dot product of a and b. Vectors
// of different length, or with a zero norm, have similarity 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0.0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0.0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// FindSimilar scores every candidate against query, keeps those at or above
// threshold, sorts them by descending similarity and truncates to topK.
// Ties keep candidate order. A topK <= 0 keeps every match.
func FindSimilar(query []float32, candidates []storage.Embedding, topK int, threshold float64) []Match {
	matches := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		sim := CosineSimilarity(query, c.Vector)
		if sim < threshold {
			continue
		}
		matches = append(matches, Match{
			SourceID:   c.SourceID,
			SourceType: c.SourceType,
			Text:       c.Text,
			Similarity: sim,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})

	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches
}
