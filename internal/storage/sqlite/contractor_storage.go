package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tenderintel/internal/interfaces"
	"github.com/ternarybob/tenderintel/internal/models"
)

const contractorColumns = `id, title, short_name, registry_id,
	participated, completed, ongoing, terminated, total_contract_value, average_discount,
	active_cities, last_contract_date, win_rate, bookmarked, intel_tracking, active,
	provenance, harvested_at, analysis, analysis_harvested_at, news_summary, news_checked_at,
	created_at, updated_at`

// ContractorStorage implements interfaces.ContractorStorage for SQLite
type ContractorStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
	mu     sync.Mutex // Prevents SQLITE_BUSY errors on concurrent writes
}

// NewContractorStorage creates a new ContractorStorage instance
func NewContractorStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.ContractorStorage {
	return &ContractorStorage{
		db:     db,
		logger: logger,
	}
}

// UpsertContractor inserts a contractor by title or merges it into the existing row.
// Counters only grow, nullable fields keep stored values when the new one is unknown.
func (s *ContractorStorage) UpsertContractor(ctx context.Context, c *models.Contractor) (models.UpsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var existingID int64
	err := s.db.db.QueryRowContext(ctx, `SELECT id FROM contractors WHERE title = ?`, c.Title).Scan(&existingID)
	isNew := errors.Is(err, sql.ErrNoRows)
	if err != nil && !isNew {
		return models.UpsertResult{}, fmt.Errorf("failed to check contractor existence: %w", err)
	}

	cities, err := encodeCities(c.ActiveCities)
	if err != nil {
		return models.UpsertResult{}, fmt.Errorf("failed to encode cities: %w", err)
	}

	now := time.Now().Unix()
	query := `
		INSERT INTO contractors (
			title, short_name, registry_id,
			participated, completed, ongoing, terminated, total_contract_value, average_discount,
			active_cities, last_contract_date, win_rate, active, provenance, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, '[]', ?, ?)
		ON CONFLICT(title) DO UPDATE SET
			short_name = COALESCE(excluded.short_name, contractors.short_name),
			registry_id = COALESCE(excluded.registry_id, contractors.registry_id),
			participated = max(contractors.participated, excluded.participated),
			completed = max(contractors.completed, excluded.completed),
			ongoing = max(contractors.ongoing, excluded.ongoing),
			terminated = max(contractors.terminated, excluded.terminated),
			total_contract_value = max(contractors.total_contract_value, excluded.total_contract_value),
			average_discount = COALESCE(excluded.average_discount, contractors.average_discount),
			active_cities = CASE WHEN excluded.active_cities = '[]' THEN contractors.active_cities ELSE excluded.active_cities END,
			last_contract_date = max(
				COALESCE(contractors.last_contract_date, excluded.last_contract_date),
				COALESCE(excluded.last_contract_date, contractors.last_contract_date)),
			active = 1,
			updated_at = excluded.updated_at
		RETURNING id
	`

	var id int64
	err = s.db.db.QueryRowContext(ctx, query,
		c.Title, nullEmpty(c.ShortName), nullEmpty(c.RegistryID),
		c.Participated, c.Completed, c.Ongoing, c.Terminated, c.TotalContractValue, nullFloat(c.AverageDiscount),
		cities, nullDate(c.LastContractDate), c.WinRate, now, now,
	).Scan(&id)
	if err != nil {
		return models.UpsertResult{}, fmt.Errorf("failed to upsert contractor: %w", err)
	}

	return models.UpsertResult{ID: id, IsNew: isNew}, nil
}

// GetContractor retrieves a contractor by id
func (s *ContractorStorage) GetContractor(ctx context.Context, id int64) (*models.Contractor, error) {
	row := s.db.db.QueryRowContext(ctx, `SELECT `+contractorColumns+` FROM contractors WHERE id = ?`, id)
	c, err := scanContractor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("contractor %d: %w", id, interfaces.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contractor: %w", err)
	}
	return c, nil
}

// GetContractorByTitle retrieves a contractor by its normalized title
func (s *ContractorStorage) GetContractorByTitle(ctx context.Context, title string) (*models.Contractor, error) {
	row := s.db.db.QueryRowContext(ctx, `SELECT `+contractorColumns+` FROM contractors WHERE title = ?`, title)
	c, err := scanContractor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("contractor %q: %w", title, interfaces.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contractor: %w", err)
	}
	return c, nil
}

// ListTracked returns tracked contractors, never-harvested first
func (s *ContractorStorage) ListTracked(ctx context.Context, limit int) ([]*models.Contractor, error) {
	query := `SELECT ` + contractorColumns + ` FROM contractors
		WHERE intel_tracking = 1 AND active = 1
		ORDER BY harvested_at IS NOT NULL, harvested_at ASC, id ASC
		LIMIT ?`

	rows, err := s.db.db.QueryContext(ctx, query, limit)
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
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `UPDATE contractors SET
		intel_tracking = ?,
		bookmarked = CASE WHEN ? = 1 THEN 1 ELSE bookmarked END,
		updated_at = ?
		WHERE id = ?`

	result, err := s.db.db.ExecContext(ctx, query, boolInt(on), boolInt(on), time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to set tracking: %w", err)
	}
	return requireAffected(result, id)
}

// UpdateStats overwrites the derived metrics and stamps the harvest time
func (s *ContractorStorage) UpdateStats(ctx context.Context, id int64, stats models.ContractorStats, harvestedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cities, err := encodeCities(stats.ActiveCities)
	if err != nil {
		return fmt.Errorf("failed to encode cities: %w", err)
	}

	query := `UPDATE contractors SET
		participated = ?, completed = ?, ongoing = ?, terminated = ?,
		total_contract_value = ?, average_discount = ?, active_cities = ?,
		last_contract_date = ?, win_rate = ?, harvested_at = ?, updated_at = ?
		WHERE id = ?`

	result, err := s.db.db.ExecContext(ctx, query,
		stats.Participated, stats.Completed, stats.Ongoing, stats.Terminated,
		stats.TotalContractValue, nullFloat(stats.AverageDiscount), cities,
		nullDate(stats.LastContractDate), stats.WinRate, harvestedAt.Unix(), time.Now().Unix(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update contractor stats: %w", err)
	}
	return requireAffected(result, id)
}

// AppendProvenance adds entry to the provenance list unless already present
func (s *ContractorStorage) AppendProvenance(ctx context.Context, id int64, entry models.ProvenanceEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var raw string
	err := s.db.db.QueryRowContext(ctx, `SELECT provenance FROM contractors WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("contractor %d: %w", id, interfaces.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to read provenance: %w", err)
	}

	entries := decodeProvenance(raw)
	merged := models.AppendProvenance(entries, entry)
	if len(merged) == len(entries) {
		return nil
	}

	data, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("failed to encode provenance: %w", err)
	}

	if _, err := s.db.db.ExecContext(ctx,
		`UPDATE contractors SET provenance = ?, updated_at = ? WHERE id = ?`,
		string(data), time.Now().Unix(), id); err != nil {
		return fmt.Errorf("failed to update provenance: %w", err)
	}
	return nil
}

// SaveAnalysis stores the analyze-page snapshot
func (s *ContractorStorage) SaveAnalysis(ctx context.Context, id int64, analysis []byte, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.db.ExecContext(ctx,
		`UPDATE contractors SET analysis = ?, analysis_harvested_at = ?, updated_at = ? WHERE id = ?`,
		string(analysis), at.Unix(), time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to save analysis: %w", err)
	}
	return requireAffected(result, id)
}

// SaveNewsSummary caches the latest AI summary of news mentions
func (s *ContractorStorage) SaveNewsSummary(ctx context.Context, id int64, summary string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.db.ExecContext(ctx,
		`UPDATE contractors SET news_summary = ?, news_checked_at = ?, updated_at = ? WHERE id = ?`,
		nullEmpty(summary), at.Unix(), time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to save news summary: %w", err)
	}
	return requireAffected(result, id)
}

func scanContractor(row scanner) (*models.Contractor, error) {
	var (
		c                                   models.Contractor
		shortName, registryID, lastContract sql.NullString
		analysis, newsSummary               sql.NullString
		avgDiscount                         sql.NullFloat64
		cities, provenance                  string
		bookmarked, tracking, active        int
		harvestedAt, analysisAt, newsAt     sql.NullInt64
		createdAt, updatedAt                int64
	)

	err := row.Scan(
		&c.ID, &c.Title, &shortName, &registryID,
		&c.Participated, &c.Completed, &c.Ongoing, &c.Terminated, &c.TotalContractValue, &avgDiscount,
		&cities, &lastContract, &c.WinRate, &bookmarked, &tracking, &active,
		&provenance, &harvestedAt, &analysis, &analysisAt, &newsSummary, &newsAt,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.ShortName = shortName.String
	c.RegistryID = registryID.String
	c.AverageDiscount = floatPtr(avgDiscount)
	c.ActiveCities = decodeCities(cities)
	c.LastContractDate = datePtr(lastContract)
	c.Bookmarked = bookmarked == 1
	c.IntelTracking = tracking == 1
	c.Active = active == 1
	c.Provenance = decodeProvenance(provenance)
	c.HarvestedAt = unixPtr(harvestedAt)
	if analysis.Valid && analysis.String != "" {
		c.Analysis = json.RawMessage(analysis.String)
	}
	c.AnalysisHarvestedAt = unixPtr(analysisAt)
	c.NewsSummary = newsSummary.String
	c.NewsCheckedAt = unixPtr(newsAt)
	c.CreatedAt = time.Unix(createdAt, 0).UTC()
	c.UpdatedAt = time.Unix(updatedAt, 0).UTC()

	return &c, nil
}

func requireAffected(result sql.Result, id int64) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("contractor %d: %w", id, interfaces.ErrNotFound)
	}
	return nil
}
