package storage

import (
	"database/sql"
	"errors"
	"fmt"
)

// SaveGeneration persists a generation event. Re-saving an id is ignored.
func (s *SQLiteStorage) SaveGeneration(g Generation) error {
	if g.ID == "" {
		return errors.New("generation id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready() {
		return nil
	}

	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO generations
			(id, session_id, component_type, variant, mood, industry, style, framework, tool, prompt, code_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, g.ID, g.SessionID, g.ComponentType, g.Variant, g.Mood, g.Industry, g.Style,
		g.Framework, g.Tool, g.Prompt, g.CodeHash, formatTime(g.Timestamp))
	if err != nil {
		return fmt.Errorf("failed to save generation: %w", err)
	}
	return nil
}

// GetGeneration returns the generation with the given id, or nil.
func (s *SQLiteStorage) GetGeneration(id string) (*Generation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready() {
		return nil, nil
	}

	var (
		g       Generation
		created string
	)
	err := s.db.QueryRow(`
		SELECT id, session_id, component_type, variant, mood, industry, style, framework, tool, prompt, code_hash, created_at
		FROM generations WHERE id = ?
	`, id).Scan(&g.ID, &g.SessionID, &g.ComponentType, &g.Variant, &g.Mood, &g.Industry, &g.Style,
		&g.Framework, &g.Tool, &g.Prompt, &g.CodeHash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read generation: %w", err)
	}
	g.Timestamp = parseTime(created)
	return &g, nil
}
