package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

func (s *SQLiteDB) migrate() error {
	ctx := context.Background()

	if err := s.createMigrationsTable(ctx); err != nil {
		return err
	}

	migrations := []migration{
		{version: 1, name: "initial_schema", up: migrateV1},
		{version: 2, name: "contractor_analysis", up: migrateV2},
	}

	for _, m := range migrations {
		if err := s.runMigration(ctx, m); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.version, m.name, err)
		}
	}

	return nil
}

type migration struct {
	version int
	name    string
	up      func(context.Context, *sql.Tx) error
}

func (s *SQLiteDB) createMigrationsTable(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at INTEGER NOT NULL
	)`
	_, err := s.db.ExecContext(ctx, query)
	return err
}

func (s *SQLiteDB) runMigration(ctx context.Context, m migration) error {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM schema_migrations WHERE version = ?", m.version).Scan(&count)
	if err != nil {
		return err
	}

	if count > 0 {
		return nil // Already applied
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := m.up(ctx, tx); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, strftime('%s', 'now'))",
		m.version, m.name)
	if err != nil {
		return err
	}

	s.logger.Debug().Int("version", m.version).Str("name", m.name).Msg("Applied migration")
	return tx.Commit()
}

// migrateV1 creates contractors, the tender catalog and tender history.
// Dates are stored as TEXT (YYYY-MM-DD), timestamps as unix seconds.
func migrateV1(ctx context.Context, tx *sql.Tx) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS contractors (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL UNIQUE,
			short_name TEXT,
			registry_id TEXT,
			participated INTEGER NOT NULL DEFAULT 0,
			completed INTEGER NOT NULL DEFAULT 0,
			ongoing INTEGER NOT NULL DEFAULT 0,
			terminated INTEGER NOT NULL DEFAULT 0,
			total_contract_value REAL NOT NULL DEFAULT 0,
			average_discount REAL,
			active_cities TEXT NOT NULL DEFAULT '[]',
			last_contract_date TEXT,
			win_rate REAL NOT NULL DEFAULT 0,
			bookmarked INTEGER NOT NULL DEFAULT 0,
			intel_tracking INTEGER NOT NULL DEFAULT 0,
			active INTEGER NOT NULL DEFAULT 1,
			provenance TEXT NOT NULL DEFAULT '[]',
			harvested_at INTEGER,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_contractors_tracking ON contractors(intel_tracking, harvested_at)`,

		`CREATE TABLE IF NOT EXISTS tenders (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			external_id TEXT NOT NULL UNIQUE,
			title TEXT,
			created_at INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS tender_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			contractor_id INTEGER NOT NULL REFERENCES contractors(id),
			tender_id INTEGER REFERENCES tenders(id),
			external_id TEXT,
			role TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'unknown',
			title TEXT NOT NULL,
			archival_number TEXT,
			authority TEXT,
			city TEXT,
			contract_value REAL,
			estimated_cost REAL,
			discount_rate REAL,
			contract_date TEXT,
			start_date TEXT,
			end_date TEXT,
			termination_note TEXT,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,

		// NULL tender_id never collides, so the linked key is a partial index
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_history_linked
			ON tender_history(contractor_id, tender_id, role) WHERE tender_id IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS idx_history_unlinked_archival
			ON tender_history(contractor_id, archival_number, role) WHERE tender_id IS NULL`,
		`CREATE INDEX IF NOT EXISTS idx_history_unlinked_title
			ON tender_history(contractor_id, title, role) WHERE tender_id IS NULL`,
		`CREATE INDEX IF NOT EXISTS idx_history_contract_date
			ON tender_history(contractor_id, contract_date)`,
	}

	for _, query := range queries {
		if _, err := tx.ExecContext(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

// migrateV2 adds the analyze-page snapshot and the news summary cache
func migrateV2(ctx context.Context, tx *sql.Tx) error {
	queries := []string{
		`ALTER TABLE contractors ADD COLUMN analysis TEXT`,
		`ALTER TABLE contractors ADD COLUMN analysis_harvested_at INTEGER`,
		`ALTER TABLE contractors ADD COLUMN news_summary TEXT`,
		`ALTER TABLE contractors ADD COLUMN news_checked_at INTEGER`,
	}

	for _, query := range queries {
		if _, err := tx.ExecContext(ctx, query); err != nil {
			return err
		}
	}
	return nil
}
