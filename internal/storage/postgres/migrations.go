package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

type migration struct {
	version int
	name    string
	queries []string
}

var migrations = []migration{
	{
		version: 1,
		name:    "initial_schema",
		queries: []string{
			`CREATE TABLE IF NOT EXISTS contractors (
				id BIGSERIAL PRIMARY KEY,
				title TEXT NOT NULL UNIQUE,
				short_name TEXT,
				registry_id TEXT,
				participated INTEGER NOT NULL DEFAULT 0,
				completed INTEGER NOT NULL DEFAULT 0,
				ongoing INTEGER NOT NULL DEFAULT 0,
				terminated INTEGER NOT NULL DEFAULT 0,
				total_contract_value DOUBLE PRECISION NOT NULL DEFAULT 0,
				average_discount DOUBLE PRECISION,
				active_cities TEXT[] NOT NULL DEFAULT '{}',
				last_contract_date DATE,
				win_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
				bookmarked BOOLEAN NOT NULL DEFAULT FALSE,
				intel_tracking BOOLEAN NOT NULL DEFAULT FALSE,
				active BOOLEAN NOT NULL DEFAULT TRUE,
				provenance JSONB NOT NULL DEFAULT '[]'::jsonb,
				harvested_at TIMESTAMPTZ,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`,
			`CREATE INDEX IF NOT EXISTS idx_contractors_tracking ON contractors(intel_tracking, harvested_at)`,
			`CREATE TABLE IF NOT EXISTS tenders (
				id BIGSERIAL PRIMARY KEY,
				external_id TEXT NOT NULL UNIQUE,
				title TEXT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`,
			`CREATE TABLE IF NOT EXISTS tender_history (
				id BIGSERIAL PRIMARY KEY,
				contractor_id BIGINT NOT NULL REFERENCES contractors(id),
				tender_id BIGINT REFERENCES tenders(id),
				external_id TEXT,
				role TEXT NOT NULL,
				status TEXT NOT NULL DEFAULT 'unknown',
				title TEXT NOT NULL,
				archival_number TEXT,
				authority TEXT,
				city TEXT,
				contract_value DOUBLE PRECISION,
				estimated_cost DOUBLE PRECISION,
				discount_rate DOUBLE PRECISION,
				contract_date DATE,
				start_date DATE,
				end_date DATE,
				termination_note TEXT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_history_linked
				ON tender_history(contractor_id, tender_id, role) WHERE tender_id IS NOT NULL`,
			`CREATE INDEX IF NOT EXISTS idx_history_unlinked_archival
				ON tender_history(contractor_id, archival_number, role) WHERE tender_id IS NULL`,
			`CREATE INDEX IF NOT EXISTS idx_history_unlinked_title
				ON tender_history(contractor_id, title, role) WHERE tender_id IS NULL`,
			`CREATE INDEX IF NOT EXISTS idx_history_contract_date
				ON tender_history(contractor_id, contract_date)`,
		},
	},
	{
		version: 2,
		name:    "contractor_analysis",
		queries: []string{
			`ALTER TABLE contractors ADD COLUMN IF NOT EXISTS analysis JSONB`,
			`ALTER TABLE contractors ADD COLUMN IF NOT EXISTS analysis_harvested_at TIMESTAMPTZ`,
			`ALTER TABLE contractors ADD COLUMN IF NOT EXISTS news_summary TEXT`,
			`ALTER TABLE contractors ADD COLUMN IF NOT EXISTS news_checked_at TIMESTAMPTZ`,
		},
	},
}

func (d *DB) migrate(ctx context.Context) error {
	_, err := d.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	for _, m := range migrations {
		if err := d.runMigration(ctx, m); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.version, m.name, err)
		}
	}
	return nil
}

func (d *DB) runMigration(ctx context.Context, m migration) error {
	var applied bool
	err := d.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, m.version).Scan(&applied)
	if err != nil {
		return err
	}
	if applied {
		return nil
	}

	return pgx.BeginFunc(ctx, d.pool, func(tx pgx.Tx) error {
		for _, query := range m.queries {
			if _, err := tx.Exec(ctx, query); err != nil {
				return err
			}
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, m.version, m.name); err != nil {
			return err
		}
		d.logger.Debug().Int("version", m.version).Str("name", m.name).Msg("Applied migration")
		return nil
	})
}
