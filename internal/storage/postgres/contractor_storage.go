package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tenderintel/internal/interfaces"
	"github.com/ternarybob/tenderintel/internal/models"
)

const contractorColumns = `id, title, short_name, registry_id,
	participated, completed, ongoing, terminated, total_contract_value, average_discount,
	active_cities, last_contract_date, win_rate, bookmarked, intel_tracking, active,
	provenance, harvested_at, analysis, analysis_harvested_at, news_summary, news_checked_at,
	created_at, updated_at`

// ContractorStorage implements interfaces.ContractorStorage for PostgreSQL
type ContractorStorage struct {
	db     *DB
	logger arbor.ILogger
}

// NewContractorStorage creates a new ContractorStorage instance
func NewContractorStorage(db *DB, logger arbor.ILogger) interfaces.ContractorStorage {
	return &ContractorStorage{
		db:     db,
		logger: logger,
	}
}

// UpsertContractor inserts by title or merges with GREATEST semantics.
// xmax is zero only for a freshly inserted tuple.
func (s *ContractorStorage) UpsertContractor(ctx context.Context, c *models.Contractor) (models.UpsertResult, error) {
	query := `
		INSERT INTO contractors (
			title, short_name, registry_id,
			participated, completed, ongoing, terminated, total_contract_value, average_discount,
			active_cities, last_contract_date, win_rate
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (title) DO UPDATE SET
			short_name = COALESCE(EXCLUDED.short_name, contractors.short_name),
			registry_id = COALESCE(EXCLUDED.registry_id, contractors.registry_id),
			participated = GREATEST(contractors.participated, EXCLUDED.participated),
			completed = GREATEST(contractors.completed, EXCLUDED.completed),
			ongoing = GREATEST(contractors.ongoing, EXCLUDED.ongoing),
			terminated = GREATEST(contractors.terminated, EXCLUDED.terminated),
			total_contract_value = GREATEST(contractors.total_contract_value, EXCLUDED.total_contract_value),
			average_discount = COALESCE(EXCLUDED.average_discount, contractors.average_discount),
			active_cities = CASE WHEN cardinality(EXCLUDED.active_cities) = 0
				THEN contractors.active_cities ELSE EXCLUDED.active_cities END,
			last_contract_date = GREATEST(contractors.last_contract_date, EXCLUDED.last_contract_date),
			active = TRUE,
			updated_at = now()
		RETURNING id, (xmax = 0)`

	var result models.UpsertResult
	err := s.db.pool.QueryRow(ctx, query,
		c.Title, emptyNil(c.ShortName), emptyNil(c.RegistryID),
		c.Participated, c.Completed, c.Ongoing, c.Terminated, c.TotalContractValue, c.AverageDiscount,
		citiesOrEmpty(c.ActiveCities), c.LastContractDate, c.WinRate,
	).Scan(&result.ID, &result.IsNew)
	if err != nil {
		return models.UpsertResult{}, fmt.Errorf("failed to upsert contractor: %w", err)
	}
	return result, nil
}

// GetContractor retrieves a contractor by id
func (s *ContractorStorage) GetContractor(ctx context.Context, id int64) (*models.Contractor, error) {
	row := s.db.pool.QueryRow(ctx, `SELECT `+contractorColumns+` FROM contractors WHERE id = $1`, id)
	c, err := scanContractor(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("contractor %d: %w", id, interfaces.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contractor: %w", err)
	}
	return c, nil
}

// GetContractorByTitle retrieves a contractor by its normalized title
func (s *ContractorStorage) GetContractorByTitle(ctx context.Context, title string) (*models.Contractor, error) {
	row := s.db.pool.QueryRow(ctx, `SELECT `+contractorColumns+` FROM contractors WHERE title = $1`, title)
	c, err := scanContractor(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("contractor %q: %w", title, interfaces.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contractor: %w", err)
	}
	return c, nil
}

// ListTracked returns tracked contractors, never-harvested first
func (s *ContractorStorage) ListTracked(ctx context.Context, limit int) ([]*models.Contractor, error) {
	rows, err := s.db.pool.Query(ctx, `SELECT `+contractorColumns+` FROM contractors
		WHERE intel_tracking AND active
		ORDER BY harvested_at ASC NULLS FIRST, id ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracked contractors: %w", err)
	}
	defer rows.Close()

	var contractors []*models.Contractor
	for rows.Next() {
		c, err := scanContractor(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contractor: %w", err)
		}
		contractors = append(contractors, c)
	}
	return contractors, rows.Err()
}

// SetTracking toggles intel tracking; enabling it also bookmarks the contractor
func (s *ContractorStorage) SetTracking(ctx context.Context, id int64, on bool) error {
	tag, err := s.db.pool.Exec(ctx, `UPDATE contractors SET
		intel_tracking = $2,
		bookmarked = bookmarked OR $2,
		updated_at = now()
		WHERE id = $1`, id, on)
	if err != nil {
		return fmt.Errorf("failed to set tracking: %w", err)
	}
	return requireAffected(tag.RowsAffected(), id)
}

// UpdateStats overwrites the derived metrics and stamps the harvest time
func (s *ContractorStorage) UpdateStats(ctx context.Context, id int64, stats models.ContractorStats, harvestedAt time.Time) error {
	tag, err := s.db.pool.Exec(ctx, `UPDATE contractors SET
		participated = $2, completed = $3, ongoing = $4, terminated = $5,
		total_contract_value = $6, average_discount = $7, active_cities = $8,
		last_contract_date = $9, win_rate = $10, harvested_at = $11, updated_at = now()
		WHERE id = $1`,
		id, stats.Participated, stats.Completed, stats.Ongoing, stats.Terminated,
		stats.TotalContractValue, stats.AverageDiscount, citiesOrEmpty(stats.ActiveCities),
		stats.LastContractDate, stats.WinRate, harvestedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update contractor stats: %w", err)
	}
	return requireAffected(tag.RowsAffected(), id)
}

// AppendProvenance appends entry unless the array already contains it
func (s *ContractorStorage) AppendProvenance(ctx context.Context, id int64, entry models.ProvenanceEntry) error {
	data, err := json.Marshal([]models.ProvenanceEntry{entry})
	if err != nil {
		return fmt.Errorf("failed to encode provenance: %w", err)
	}

	tag, err := s.db.pool.Exec(ctx, `UPDATE contractors SET
		provenance = provenance || $2::jsonb,
		updated_at = now()
		WHERE id = $1 AND NOT provenance @> $2::jsonb`, id, string(data))
	if err != nil {
		return fmt.Errorf("failed to append provenance: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Nothing updated: either already present or no such contractor
	var exists bool
	if err := s.db.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM contractors WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check contractor: %w", err)
	}
	if !exists {
		return fmt.Errorf("contractor %d: %w", id, interfaces.ErrNotFound)
	}
	return nil
}

// SaveAnalysis stores the analyze-page snapshot
func (s *ContractorStorage) SaveAnalysis(ctx context.Context, id int64, analysis []byte, at time.Time) error {
	tag, err := s.db.pool.Exec(ctx,
		`UPDATE contractors SET analysis = $2::jsonb, analysis_harvested_at = $3, updated_at = now() WHERE id = $1`,
		id, string(analysis), at)
	if err != nil {
		return fmt.Errorf("failed to save analysis: %w", err)
	}
	return requireAffected(tag.RowsAffected(), id)
}

// SaveNewsSummary caches the latest AI summary of news mentions
func (s *ContractorStorage) SaveNewsSummary(ctx context.Context, id int64, summary string, at time.Time) error {
	tag, err := s.db.pool.Exec(ctx,
		`UPDATE contractors SET news_summary = $2, news_checked_at = $3, updated_at = now() WHERE id = $1`,
		id, emptyNil(summary), at)
	if err != nil {
		return fmt.Errorf("failed to save news summary: %w", err)
	}
	return requireAffected(tag.RowsAffected(), id)
}

func scanContractor(row pgx.Row) (*models.Contractor, error) {
	var (
		c                                  models.Contractor
		shortName, registryID, newsSummary *string
		analysis                           []byte
	)

	err := row.Scan(
		&c.ID, &c.Title, &shortName, &registryID,
		&c.Participated, &c.Completed, &c.Ongoing, &c.Terminated, &c.TotalContractValue, &c.AverageDiscount,
		&c.ActiveCities, &c.LastContractDate, &c.WinRate, &c.Bookmarked, &c.IntelTracking, &c.Active,
		&c.Provenance, &c.HarvestedAt, &analysis, &c.AnalysisHarvestedAt, &newsSummary, &c.NewsCheckedAt,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.ShortName = deref(shortName)
	c.RegistryID = deref(registryID)
	c.NewsSummary = deref(newsSummary)
	if len(analysis) > 0 {
		c.Analysis = json.RawMessage(analysis)
	}
	if c.ActiveCities == nil {
		c.ActiveCities = []string{}
	}
	if c.Provenance == nil {
		c.Provenance = []models.ProvenanceEntry{}
	}
	return &c, nil
}

func requireAffected(n int64, id int64) error {
	if n == 0 {
		return fmt.Errorf("contractor %d: %w", id, interfaces.ErrNotFound)
	}
	return nil
}

func emptyNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func citiesOrEmpty(cities []string) []string {
	if cities == nil {
		return []string{}
	}
	return cities
}
