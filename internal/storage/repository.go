package storage

import "time"

// PatternRepository persists structural code patterns.
type PatternRepository interface {
	// UpsertPattern inserts a new pattern with frequency 1, or folds score
	// into the running average of an existing one, in a single statement.
	UpsertPattern(p CodePattern, score float64) (*CodePattern, error)

	// GetPattern returns the pattern for a skeleton hash, or nil if absent.
	GetPattern(hash string) (*CodePattern, error)

	// PromotablePatterns returns unpromoted rows with frequency >= minFrequency
	// and avg_score > minAvgScore, best evidence first.
	PromotablePatterns(minFrequency int, minAvgScore float64) ([]CodePattern, error)

	// MarkPromoted flips the promoted flag. It never clears it.
	MarkPromoted(hash string) error

	// ListPatterns returns patterns by descending frequency.
	ListPatterns(limit int) ([]CodePattern, error)
}

// FeedbackRepository persists the append-only feedback log.
type FeedbackRepository interface {
	InsertFeedback(f Feedback) error
	ComponentScore(componentType string) (float64, error)
	ComponentScores() (map[string]float64, error)
	FeedbackCounts() (FeedbackCounts, error)
	FeedbackStats() (FeedbackStats, error)

	// RecentFeedback returns rows with |score| >= minAbsScore, newest first.
	// A limit <= 0 means no limit.
	RecentFeedback(minAbsScore float64, limit int) ([]Feedback, error)

	// CountSignificant counts rows with |score| >= minAbsScore.
	CountSignificant(minAbsScore float64) (int, error)
}

// EmbeddingRepository persists embedding vectors.
type EmbeddingRepository interface {
	SaveEmbedding(e Embedding) error
	SaveEmbeddings(es []Embedding) error
	LoadEmbeddings(sourceType string) ([]Embedding, error)

	// GetEmbedding returns nil (not an error) when the key is unknown.
	GetEmbedding(sourceID, sourceType string) (*Embedding, error)
	DeleteEmbeddings(sourceType string) (int, error)
	CountEmbeddings(sourceType string) (int, error)
}

// GenerationRepository persists generation events.
type GenerationRepository interface {
	SaveGeneration(g Generation) error

	// GetGeneration returns nil (not an error) when the id is unknown.
	GetGeneration(id string) (*Generation, error)
}

// Storage is the full persistence surface of the learning loop.
type Storage interface {
	// Init initializes the database and runs migrations. Safe to call repeatedly.
	Init() error

	// Cleanup removes generation events older than the retention window.
	Cleanup(retention time.Duration) error

	// Close closes the database connection.
	Close() error

	PatternRepository
	FeedbackRepository
	EmbeddingRepository
	GenerationRepository
}
