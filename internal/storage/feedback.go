package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const feedbackColumns = `id, generation_id, prompt, component_type, variant, mood, industry, style,
	score, feedback_type, code_hash, rating, confidence, comment, created_at`

// InsertFeedback appends a feedback row. Rows are never updated.
func (s *SQLiteStorage) InsertFeedback(f Feedback) error {
	if f.GenerationID == "" {
		return errors.New("generation id is required")
	}
	if f.Source != SourceExplicit && f.Source != SourceImplicit {
		return fmt.Errorf("invalid feedback source %q", f.Source)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready() {
		return nil
	}

	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.Rating == "" {
		f.Rating = RatingForScore(f.Score)
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now()
	}

	_, err := s.db.Exec(`
		INSERT INTO feedback (`+feedbackColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, f.ID, f.GenerationID, f.Prompt, f.ComponentType, f.Variant, f.Mood, f.Industry, f.Style,
		f.Score, string(f.Source), f.CodeHash, string(f.Rating), f.Confidence, f.Comment, formatTime(f.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert feedback: %w", err)
	}
	return nil
}

// ComponentScore returns the mean score for a component type, 0 if none.
func (s *SQLiteStorage) ComponentScore(componentType string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready() {
		return 0, nil
	}

	var avg float64
	err := s.db.QueryRow(
		"SELECT COALESCE(AVG(score), 0) FROM feedback WHERE component_type = ?", componentType,
	).Scan(&avg)
	if err != nil {
		return 0, fmt.Errorf("failed to read component score: %w", err)
	}
	return avg, nil
}

// ComponentScores returns the mean score of every component type seen.
func (s *SQLiteStorage) ComponentScores() (map[string]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	scores := make(map[string]float64)
	if !s.ready() {
		return scores, nil
	}

	rows, err := s.db.Query(`
		SELECT component_type, AVG(score) FROM feedback
		WHERE component_type != ''
		GROUP BY component_type
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query component scores: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			ct  string
			avg float64
		)
		if err := rows.Scan(&ct, &avg); err != nil {
			return nil, fmt.Errorf("failed to scan component score: %w", err)
		}
		scores[ct] = avg
	}
	return scores, rows.Err()
}

// FeedbackCounts returns total, explicit and implicit row counts.
func (s *SQLiteStorage) FeedbackCounts() (FeedbackCounts, error) {
	stats, err := s.FeedbackStats()
	return stats.FeedbackCounts, err
}

// FeedbackStats summarizes the whole feedback log.
func (s *SQLiteStorage) FeedbackStats() (FeedbackStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st FeedbackStats
	if !s.ready() {
		return st, nil
	}

	err := s.db.QueryRow(`
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN feedback_type = 'explicit' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN feedback_type = 'implicit' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN score > ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN score < ? THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(score), 0)
		FROM feedback
	`, PositiveThreshold, NegativeThreshold).Scan(
		&st.Total, &st.Explicit, &st.Implicit, &st.Positive, &st.Negative, &st.AvgScore,
	)
	if err != nil {
		return FeedbackStats{}, fmt.Errorf("failed to read feedback stats: %w", err)
	}
	st.Neutral = st.Total - st.Positive - st.Negative
	return st, nil
}

// RecentFeedback returns rows with |score| >= minAbsScore, newest first.
func (s *SQLiteStorage) RecentFeedback(minAbsScore float64, limit int) ([]Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready() {
		return nil, nil
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.Query(`
		SELECT `+feedbackColumns+` FROM feedback
		WHERE ABS(score) >= ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, minAbsScore, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback: %w", err)
	}
	defer rows.Close()

	var out []Feedback
	for rows.Next() {
		var (
			f                    Feedback
			source, rating, when string
		)
		if err := rows.Scan(&f.ID, &f.GenerationID, &f.Prompt, &f.ComponentType, &f.Variant, &f.Mood,
			&f.Industry, &f.Style, &f.Score, &source, &f.CodeHash, &rating, &f.Confidence, &f.Comment, &when); err != nil {
			return nil, fmt.Errorf("failed to scan feedback: %w", err)
		}
		f.Source = FeedbackSource(source)
		f.Rating = Rating(rating)
		f.CreatedAt = parseTime(when)
		out = append(out, f)
	}
	return out, rows.Err()
}

// CountSignificant counts rows with |score| >= minAbsScore.
func (s *SQLiteStorage) CountSignificant(minAbsScore float64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready() {
		return 0, nil
	}

	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM feedback WHERE ABS(score) >= ?", minAbsScore).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count feedback: %w", err)
	}
	return n, nil
}
