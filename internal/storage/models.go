/*
Package storage provides data models for the learning loop.

These models mirror the rows of the embedded SQLite database: generation
events, feedback, structural code patterns and embedding vectors.
*/
package storage

import "time"

const (
	// PositiveThreshold is the score above which feedback counts as positive.
	PositiveThreshold = 0.3

	// NegativeThreshold is the score below which feedback counts as negative.
	NegativeThreshold = -0.3
)

// Generation is one UI generation event. Immutable once recorded.
type Generation struct {
	ID            string    `json:"id"`
	SessionID     string    `json:"session_id"`
	ComponentType string    `json:"component_type"`
	Variant       string    `json:"variant,omitempty"`
	Mood          string    `json:"mood,omitempty"`
	Industry      string    `json:"industry,omitempty"`
	Style         string    `json:"style,omitempty"`
	Framework     string    `json:"framework,omitempty"`
	Tool          string    `json:"tool,omitempty"`
	Prompt        string    `json:"prompt,omitempty"`
	CodeHash      string    `json:"code_hash,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// FeedbackSource says whether feedback was given by the user or inferred.
type FeedbackSource string

const (
	SourceExplicit FeedbackSource = "explicit"
	SourceImplicit FeedbackSource = "implicit"
)

// Rating is the coarse label attached to a feedback row.
type Rating string

const (
	RatingPositive Rating = "positive"
	RatingNegative Rating = "negative"
	RatingNeutral  Rating = "neutral"
)

// RatingForScore maps a score to a rating using the ±0.3 thresholds.
func RatingForScore(score float64) Rating {
	switch {
	case score > PositiveThreshold:
		return RatingPositive
	case score < NegativeThreshold:
		return RatingNegative
	default:
		return RatingNeutral
	}
}

// Feedback is an append-only feedback row, denormalized with the
// parameters of the generation it refers to.
type Feedback struct {
	ID            string         `json:"id"`
	GenerationID  string         `json:"generation_id"`
	Prompt        string         `json:"prompt,omitempty"`
	ComponentType string         `json:"component_type,omitempty"`
	Variant       string         `json:"variant,omitempty"`
	Mood          string         `json:"mood,omitempty"`
	Industry      string         `json:"industry,omitempty"`
	Style         string         `json:"style,omitempty"`
	CodeHash      string         `json:"code_hash,omitempty"`
	Rating        Rating         `json:"rating"`
	Source        FeedbackSource `json:"source"`
	Score         float64        `json:"score"`
	Confidence    float64        `json:"confidence"`
	Comment       string         `json:"comment,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// FeedbackCounts holds total, explicit and implicit row counts.
type FeedbackCounts struct {
	Total    int `json:"total"`
	Explicit int `json:"explicit"`
	Implicit int `json:"implicit"`
}

// FeedbackStats is the full breakdown of the feedback log.
type FeedbackStats struct {
	FeedbackCounts
	Positive int     `json:"positive"`
	Negative int     `json:"negative"`
	Neutral  int     `json:"neutral"`
	AvgScore float64 `json:"avg_score"`
}

// CodePattern is a deduplicated structural skeleton with running stats.
type CodePattern struct {
	ID            string    `json:"id"`
	SkeletonHash  string    `json:"skeleton_hash"`
	Skeleton      string    `json:"skeleton"`
	Snippet       string    `json:"snippet"`
	ComponentType string    `json:"component_type,omitempty"`
	Category      string    `json:"category,omitempty"`
	Frequency     int       `json:"frequency"`
	AvgScore      float64   `json:"avg_score"`
	Promoted      bool      `json:"promoted"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Embedding is a stored vector keyed by (SourceID, SourceType).
type Embedding struct {
	SourceID   string    `json:"source_id"`
	SourceType string    `json:"source_type"`
	Text       string    `json:"text"`
	Vector     []float32 `json:"vector"`
	Dimensions int       `json:"dimensions"`
	CreatedAt  time.Time `json:"created_at"`
}
