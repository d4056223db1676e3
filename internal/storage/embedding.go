package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const upsertEmbedding = `
	INSERT INTO embeddings (source_id, source_type, text, vector, dimensions, created_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(source_id, source_type) DO UPDATE SET
		text = excluded.text,
		vector = excluded.vector,
		dimensions = excluded.dimensions,
		created_at = excluded.created_at
`

// SaveEmbedding stores a vector, replacing any previous one for the key.
func (s *SQLiteStorage) SaveEmbedding(e Embedding) error {
	return s.SaveEmbeddings([]Embedding{e})
}

// SaveEmbeddings stores a batch of vectors in one transaction.
func (s *SQLiteStorage) SaveEmbeddings(es []Embedding) error {
	for _, e := range es {
		if e.SourceID == "" || e.SourceType == "" {
			return errors.New("embedding source id and type are required")
		}
		if len(e.Vector) == 0 {
			return fmt.Errorf("embedding %s/%s has an empty vector", e.SourceType, e.SourceID)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready() || len(es) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin embedding batch: %w", err)
	}
	stmt, err := tx.Prepare(upsertEmbedding)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to prepare embedding insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, e := range es {
		created := e.CreatedAt
		if created.IsZero() {
			created = now
		}
		if _, err := stmt.Exec(e.SourceID, e.SourceType, e.Text, encodeVector(e.Vector), len(e.Vector), formatTime(created)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to save embedding %s/%s: %w", e.SourceType, e.SourceID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit embedding batch: %w", err)
	}
	return nil
}

// LoadEmbeddings returns every embedding of a source type. An empty
// source type loads all of them.
func (s *SQLiteStorage) LoadEmbeddings(sourceType string) ([]Embedding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready() {
		return nil, nil
	}

	query := "SELECT source_id, source_type, text, vector, dimensions, created_at FROM embeddings"
	var args []any
	if sourceType != "" {
		query += " WHERE source_type = ?"
		args = append(args, sourceType)
	}
	query += " ORDER BY rowid"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer rows.Close()

	var out []Embedding
	for rows.Next() {
		e, err := scanEmbedding(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// GetEmbedding returns a single embedding, or nil if the key is unknown.
func (s *SQLiteStorage) GetEmbedding(sourceID, sourceType string) (*Embedding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready() {
		return nil, nil
	}

	row := s.db.QueryRow(`
		SELECT source_id, source_type, text, vector, dimensions, created_at
		FROM embeddings WHERE source_id = ? AND source_type = ?
	`, sourceID, sourceType)
	e, err := scanEmbedding(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

// DeleteEmbeddings removes every embedding of a source type, or all of
// them when sourceType is empty.
func (s *SQLiteStorage) DeleteEmbeddings(sourceType string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready() {
		return 0, nil
	}

	var (
		res sql.Result
		err error
	)
	if sourceType == "" {
		res, err = s.db.Exec("DELETE FROM embeddings")
	} else {
		res, err = s.db.Exec("DELETE FROM embeddings WHERE source_type = ?", sourceType)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to delete embeddings: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// CountEmbeddings counts embeddings of a source type, or all when empty.
func (s *SQLiteStorage) CountEmbeddings(sourceType string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready() {
		return 0, nil
	}

	var n int
	var err error
	if sourceType == "" {
		err = s.db.QueryRow("SELECT COUNT(*) FROM embeddings").Scan(&n)
	} else {
		err = s.db.QueryRow("SELECT COUNT(*) FROM embeddings WHERE source_type = ?", sourceType).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count embeddings: %w", err)
	}
	return n, nil
}

func scanEmbedding(row scanner) (*Embedding, error) {
	var (
		e       Embedding
		blob    []byte
		created string
	)
	if err := row.Scan(&e.SourceID, &e.SourceType, &e.Text, &blob, &e.Dimensions, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan embedding: %w", err)
	}
	v, err := decodeVector(blob)
	if err != nil {
		return nil, fmt.Errorf("embedding %s/%s: %w", e.SourceType, e.SourceID, err)
	}
	e.Vector = v
	e.CreatedAt = parseTime(created)
	return &e, nil
}
