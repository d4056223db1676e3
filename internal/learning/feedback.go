package learning

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/khanglvm/genloop/internal/storage"
)

const (
	// ExplicitPositiveScore is recorded for an explicit positive rating.
	ExplicitPositiveScore = 1.5

	// ExplicitNegativeScore is recorded for an explicit negative rating.
	ExplicitNegativeScore = -1.0
)

// ErrInvalidRating is returned for explicit ratings other than positive or negative.
var ErrInvalidRating = errors.New("rating must be positive or negative")

// ParseRating accepts positive/negative and the usual shorthands.
func ParseRating(s string) (storage.Rating, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "positive", "good", "up", "+":
		return storage.RatingPositive, nil
	case "negative", "bad", "down", "-":
		return storage.RatingNegative, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRating, s)
	}
}

// Tuple is the raw (prompt, score, component type, style) export row.
type Tuple struct {
	Prompt        string  `json:"prompt"`
	Score         float64 `json:"score"`
	ComponentType string  `json:"component_type"`
	Style         string  `json:"style"`
}

// FeedbackStore is the only writer of feedback rows.
type FeedbackStore struct {
	repo        storage.FeedbackRepository
	generations storage.GenerationRepository
	sessions    SessionStore
	logger      *zap.Logger
	now         func() time.Time
}

// NewFeedbackStore creates a feedback store. generations may be nil, in
// which case explicit feedback only denormalizes from the session cache.
func NewFeedbackStore(repo storage.FeedbackRepository, generations storage.GenerationRepository, sessions SessionStore, logger *zap.Logger) *FeedbackStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sessions == nil {
		sessions = NewSessionStore(0, 0)
	}
	return &FeedbackStore{
		repo:        repo,
		generations: generations,
		sessions:    sessions,
		logger:      logger.Named("feedback"),
		now:         time.Now,
	}
}

// RecordImplicit persists a classification as implicit feedback about
// generationID. A classification without signals records nothing.
func (s *FeedbackStore) RecordImplicit(generationID string, c Classification) (*storage.Feedback, error) {
	if c.Empty() {
		return nil, nil
	}

	f := s.newFeedback(generationID, s.sessionContext(generationID))
	f.Source = storage.SourceImplicit
	f.Score = c.CombinedScore
	f.Confidence = c.CombinedConfidence
	f.Rating = storage.RatingForScore(c.CombinedScore)

	if err := s.repo.InsertFeedback(f); err != nil {
		return nil, fmt.Errorf("failed to record implicit feedback: %w", err)
	}
	return &f, nil
}

// RecordExplicit persists a user rating of generationID.
func (s *FeedbackStore) RecordExplicit(generationID string, rating storage.Rating, comment string) (*storage.Feedback, error) {
	var score float64
	switch rating {
	case storage.RatingPositive:
		score = ExplicitPositiveScore
	case storage.RatingNegative:
		score = ExplicitNegativeScore
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidRating, rating)
	}
	if generationID == "" {
		return nil, errors.New("generation id is required")
	}

	f := s.newFeedback(generationID, s.generationContext(generationID))
	f.Source = storage.SourceExplicit
	f.Score = score
	f.Confidence = 1.0
	f.Rating = rating
	f.Comment = comment

	if err := s.repo.InsertFeedback(f); err != nil {
		return nil, fmt.Errorf("failed to record explicit feedback: %w", err)
	}
	s.logger.Debug("explicit feedback recorded",
		zap.String("generation_id", generationID), zap.String("rating", string(rating)))
	return &f, nil
}

// sessionContext returns the cached generation, or an empty one when it
// has been evicted.
func (s *FeedbackStore) sessionContext(generationID string) storage.Generation {
	g, _ := s.sessions.Lookup(generationID)
	return g
}

// generationContext falls back from the session cache to the persisted
// generation row.
func (s *FeedbackStore) generationContext(generationID string) storage.Generation {
	if g, ok := s.sessions.Lookup(generationID); ok {
		return g
	}
	if s.generations == nil {
		return storage.Generation{}
	}
	g, err := s.generations.GetGeneration(generationID)
	if err != nil {
		s.logger.Warn("failed to load generation context",
			zap.String("generation_id", generationID), zap.Error(err))
		return storage.Generation{}
	}
	if g == nil {
		return storage.Generation{}
	}
	return *g
}

func (s *FeedbackStore) newFeedback(generationID string, g storage.Generation) storage.Feedback {
	return storage.Feedback{
		ID:            uuid.NewString(),
		GenerationID:  generationID,
		Prompt:        g.Prompt,
		ComponentType: g.ComponentType,
		Variant:       g.Variant,
		Mood:          g.Mood,
		Industry:      g.Industry,
		Style:         g.Style,
		CodeHash:      g.CodeHash,
		CreatedAt:     s.now(),
	}
}

// ComponentScore is the mean feedback score of a component type.
func (s *FeedbackStore) ComponentScore(componentType string) (float64, error) {
	return s.repo.ComponentScore(componentType)
}

// ComponentScores maps every component type with feedback to its mean score.
func (s *FeedbackStore) ComponentScores() (map[string]float64, error) {
	return s.repo.ComponentScores()
}

func (s *FeedbackStore) Counts() (storage.FeedbackCounts, error) {
	return s.repo.FeedbackCounts()
}

func (s *FeedbackStore) Stats() (storage.FeedbackStats, error) {
	return s.repo.FeedbackStats()
}

// ExportTuples returns every row with |score| >= minAbsScore, newest first.
func (s *FeedbackStore) ExportTuples(minAbsScore float64) ([]Tuple, error) {
	rows, err := s.repo.RecentFeedback(minAbsScore, 0)
	if err != nil {
		return nil, err
	}
	out := make([]Tuple, 0, len(rows))
	for _, f := range rows {
		out = append(out, Tuple{Prompt: f.Prompt, Score: f.Score, ComponentType: f.ComponentType, Style: f.Style})
	}
	return out, nil
}
