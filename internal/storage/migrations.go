package storage

import (
	"fmt"

	"go.uber.org/zap"
)

// migration represents a single database migration.
type migration struct {
	version    int
	name       string
	statements []string
}

var migrations = []migration{
	{
		version: 1,
		name:    "initial_schema",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS code_patterns (
				id TEXT PRIMARY KEY,
				skeleton_hash TEXT NOT NULL UNIQUE,
				skeleton TEXT NOT NULL,
				snippet TEXT NOT NULL DEFAULT '',
				component_type TEXT NOT NULL DEFAULT '',
				category TEXT NOT NULL DEFAULT '',
				frequency INTEGER NOT NULL DEFAULT 1,
				avg_score REAL NOT NULL DEFAULT 0,
				promoted INTEGER NOT NULL DEFAULT 0,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_code_patterns_hash ON code_patterns(skeleton_hash)`,
			`CREATE INDEX IF NOT EXISTS idx_code_patterns_promoted ON code_patterns(promoted)`,

			`CREATE TABLE IF NOT EXISTS feedback (
				id TEXT PRIMARY KEY,
				generation_id TEXT NOT NULL,
				prompt TEXT NOT NULL DEFAULT '',
				component_type TEXT NOT NULL DEFAULT '',
				variant TEXT NOT NULL DEFAULT '',
				mood TEXT NOT NULL DEFAULT '',
				industry TEXT NOT NULL DEFAULT '',
				style TEXT NOT NULL DEFAULT '',
				score REAL NOT NULL,
				feedback_type TEXT NOT NULL CHECK (feedback_type IN ('explicit', 'implicit')),
				code_hash TEXT NOT NULL DEFAULT '',
				rating TEXT NOT NULL DEFAULT 'neutral',
				confidence REAL NOT NULL DEFAULT 1,
				comment TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_feedback_generation ON feedback(generation_id)`,
			`CREATE INDEX IF NOT EXISTS idx_feedback_component ON feedback(component_type)`,
			`CREATE INDEX IF NOT EXISTS idx_feedback_created ON feedback(created_at DESC)`,

			`CREATE TABLE IF NOT EXISTS embeddings (
				source_id TEXT NOT NULL,
				source_type TEXT NOT NULL,
				text TEXT NOT NULL DEFAULT '',
				vector BLOB NOT NULL,
				dimensions INTEGER NOT NULL,
				created_at TEXT NOT NULL,
				UNIQUE (source_id, source_type)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_embeddings_type ON embeddings(source_type)`,

			`CREATE TABLE IF NOT EXISTS generations (
				id TEXT PRIMARY KEY,
				session_id TEXT NOT NULL DEFAULT '',
				component_type TEXT NOT NULL DEFAULT '',
				variant TEXT NOT NULL DEFAULT '',
				mood TEXT NOT NULL DEFAULT '',
				industry TEXT NOT NULL DEFAULT '',
				style TEXT NOT NULL DEFAULT '',
				framework TEXT NOT NULL DEFAULT '',
				tool TEXT NOT NULL DEFAULT '',
				prompt TEXT NOT NULL DEFAULT '',
				code_hash TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_generations_session ON generations(session_id)`,
			`CREATE INDEX IF NOT EXISTS idx_generations_created ON generations(created_at)`,
		},
	},
}

// runMigrations applies every migration newer than the recorded version.
func (s *SQLiteStorage) runMigrations() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TEXT NOT NULL DEFAULT (datetime('now'))
		)
	`); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	var version int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version); err != nil {
		return err
	}

	for _, m := range migrations {
		if version >= m.version {
			continue
		}
		s.logger.Info("running migration", zap.Int("version", m.version), zap.String("name", m.name))

		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		for _, stmt := range m.statements {
			if _, err := tx.Exec(stmt); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d failed: %w", m.version, err)
			}
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version, name) VALUES (?, ?)", m.version, m.name); err != nil {
			_ = tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d commit failed: %w", m.version, err)
		}
	}
	return nil
}

// SchemaVersion returns the highest applied migration, or 0 when disabled.
func (s *SQLiteStorage) SchemaVersion() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready() {
		return 0, nil
	}

	var version int
	err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	return version, err
}
