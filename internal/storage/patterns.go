package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const patternColumns = `id, skeleton_hash, skeleton, snippet, component_type, category,
	frequency, avg_score, promoted, created_at, updated_at`

// UpsertPattern records one sighting of a skeleton. The insert-or-fold runs
// as a single statement, so concurrent sightings never lose an update.
func (s *SQLiteStorage) UpsertPattern(p CodePattern, score float64) (*CodePattern, error) {
	if p.SkeletonHash == "" {
		return nil, errors.New("skeleton hash is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready() {
		return nil, nil
	}

	now := formatTime(time.Now())
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	_, err := s.db.Exec(`
		INSERT INTO code_patterns (`+patternColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, 1, ?, 0, ?, ?)
		ON CONFLICT(skeleton_hash) DO UPDATE SET
			avg_score = (code_patterns.avg_score * code_patterns.frequency + excluded.avg_score)
				/ (code_patterns.frequency + 1),
			frequency = code_patterns.frequency + 1,
			component_type = CASE WHEN code_patterns.component_type = ''
				THEN excluded.component_type ELSE code_patterns.component_type END,
			category = CASE WHEN code_patterns.category = ''
				THEN excluded.category ELSE code_patterns.category END,
			updated_at = excluded.updated_at
	`, p.ID, p.SkeletonHash, p.Skeleton, p.Snippet, p.ComponentType, p.Category, score, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert pattern: %w", err)
	}

	return s.getPattern(p.SkeletonHash)
}

// GetPattern returns the pattern for a skeleton hash, or nil if absent.
func (s *SQLiteStorage) GetPattern(hash string) (*CodePattern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready() {
		return nil, nil
	}
	return s.getPattern(hash)
}

func (s *SQLiteStorage) getPattern(hash string) (*CodePattern, error) {
	row := s.db.QueryRow("SELECT "+patternColumns+" FROM code_patterns WHERE skeleton_hash = ?", hash)
	p, err := scanPattern(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read pattern: %w", err)
	}
	return p, nil
}

// PromotablePatterns returns unpromoted patterns that meet both thresholds,
// ordered by average score then frequency, both descending.
func (s *SQLiteStorage) PromotablePatterns(minFrequency int, minAvgScore float64) ([]CodePattern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready() {
		return nil, nil
	}

	return s.queryPatterns(`
		SELECT `+patternColumns+` FROM code_patterns
		WHERE promoted = 0 AND frequency >= ? AND avg_score > ?
		ORDER BY avg_score DESC, frequency DESC
	`, minFrequency, minAvgScore)
}

// MarkPromoted sets the promoted flag. Marking an already promoted pattern
// is a no-op; marking an unknown one is an error.
func (s *SQLiteStorage) MarkPromoted(hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready() {
		return nil
	}

	res, err := s.db.Exec(
		"UPDATE code_patterns SET promoted = 1, updated_at = ? WHERE skeleton_hash = ? AND promoted = 0",
		formatTime(time.Now()), hash,
	)
	if err != nil {
		return fmt.Errorf("failed to mark pattern promoted: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	p, err := s.getPattern(hash)
	if err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("pattern %s not found", hash)
	}
	return nil
}

// ListPatterns returns patterns by descending frequency. A limit <= 0
// returns every row.
func (s *SQLiteStorage) ListPatterns(limit int) ([]CodePattern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready() {
		return nil, nil
	}
	if limit <= 0 {
		limit = -1
	}

	return s.queryPatterns(`
		SELECT `+patternColumns+` FROM code_patterns
		ORDER BY frequency DESC, avg_score DESC
		LIMIT ?
	`, limit)
}

func (s *SQLiteStorage) queryPatterns(query string, args ...any) ([]CodePattern, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query patterns: %w", err)
	}
	defer rows.Close()

	var out []CodePattern
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pattern: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPattern(row scanner) (*CodePattern, error) {
	var (
		p                CodePattern
		promoted         int
		created, updated string
	)
	err := row.Scan(&p.ID, &p.SkeletonHash, &p.Skeleton, &p.Snippet, &p.ComponentType, &p.Category,
		&p.Frequency, &p.AvgScore, &promoted, &created, &updated)
	if err != nil {
		return nil, err
	}
	p.Promoted = promoted != 0
	p.CreatedAt = parseTime(created)
	p.UpdatedAt = parseTime(updated)
	return &p, nil
}
