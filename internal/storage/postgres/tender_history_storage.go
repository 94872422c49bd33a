package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tenderintel/internal/interfaces"
	"github.com/ternarybob/tenderintel/internal/models"
)

const historyColumns = `id, contractor_id, tender_id, external_id, role, status, title,
	archival_number, authority, city, contract_value, estimated_cost, discount_rate,
	contract_date, start_date, end_date, termination_note, created_at, updated_at`

const insertHistory = `INSERT INTO tender_history (
		contractor_id, tender_id, external_id, role, status, title,
		archival_number, authority, city, contract_value, estimated_cost, discount_rate,
		contract_date, start_date, end_date, termination_note
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

// TenderHistoryStorage implements interfaces.TenderHistoryStorage for PostgreSQL
type TenderHistoryStorage struct {
	db     *DB
	logger arbor.ILogger
}

// NewTenderHistoryStorage creates a new TenderHistoryStorage instance
func NewTenderHistoryStorage(db *DB, logger arbor.ILogger) interfaces.TenderHistoryStorage {
	return &TenderHistoryStorage{
		db:     db,
		logger: logger,
	}
}

func (s *TenderHistoryStorage) ResolveTenderID(ctx context.Context, externalID string) (*int64, error) {
	if externalID == "" {
		return nil, nil
	}

	var id int64
	err := s.db.pool.QueryRow(ctx, `SELECT id FROM tenders WHERE external_id = $1`, externalID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve tender: %w", err)
	}
	return &id, nil
}

func (s *TenderHistoryStorage) RegisterTender(ctx context.Context, tender *models.Tender) (int64, error) {
	var id int64
	err := s.db.pool.QueryRow(ctx, `
		INSERT INTO tenders (external_id, title) VALUES ($1, $2)
		ON CONFLICT (external_id) DO UPDATE SET title = COALESCE(EXCLUDED.title, tenders.title)
		RETURNING id`, tender.ExternalID, emptyNil(tender.Title)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to register tender: %w", err)
	}
	return id, nil
}

// UpsertLinked conflicts on the partial unique index; NULL inputs keep stored values
func (s *TenderHistoryStorage) UpsertLinked(ctx context.Context, r *models.TenderHistoryRecord) error {
	if r.TenderID == nil {
		return fmt.Errorf("upsert linked record %q: tender id is required", r.Title)
	}

	query := insertHistory + `
		ON CONFLICT (contractor_id, tender_id, role) WHERE tender_id IS NOT NULL DO UPDATE SET
			external_id = COALESCE(EXCLUDED.external_id, tender_history.external_id),
			status = EXCLUDED.status,
			title = COALESCE(NULLIF(EXCLUDED.title, ''), tender_history.title),
			archival_number = COALESCE(EXCLUDED.archival_number, tender_history.archival_number),
			authority = COALESCE(EXCLUDED.authority, tender_history.authority),
			city = COALESCE(EXCLUDED.city, tender_history.city),
			contract_value = COALESCE(EXCLUDED.contract_value, tender_history.contract_value),
			estimated_cost = COALESCE(EXCLUDED.estimated_cost, tender_history.estimated_cost),
			discount_rate = COALESCE(EXCLUDED.discount_rate, tender_history.discount_rate),
			contract_date = COALESCE(EXCLUDED.contract_date, tender_history.contract_date),
			start_date = COALESCE(EXCLUDED.start_date, tender_history.start_date),
			end_date = COALESCE(EXCLUDED.end_date, tender_history.end_date),
			termination_note = COALESCE(EXCLUDED.termination_note, tender_history.termination_note),
			updated_at = now()`

	if _, err := s.db.pool.Exec(ctx, query, historyArgs(r)...); err != nil {
		return fmt.Errorf("failed to upsert linked history: %w", err)
	}
	return nil
}

func (s *TenderHistoryStorage) FindUnlinkedByArchival(ctx context.Context, contractorID int64, archivalNumber string, role models.Role) (int64, bool, error) {
	return s.findUnlinked(ctx, "archival_number", contractorID, archivalNumber, role)
}

func (s *TenderHistoryStorage) FindUnlinkedByTitle(ctx context.Context, contractorID int64, title string, role models.Role) (int64, bool, error) {
	return s.findUnlinked(ctx, "title", contractorID, title, role)
}

func (s *TenderHistoryStorage) findUnlinked(ctx context.Context, column string, contractorID int64, value string, role models.Role) (int64, bool, error) {
	query := `SELECT id FROM tender_history
		WHERE contractor_id = $1 AND tender_id IS NULL AND role = $2 AND ` + column + ` = $3
		ORDER BY id ASC LIMIT 1`

	var id int64
	err := s.db.pool.QueryRow(ctx, query, contractorID, string(role), value).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to find unlinked history: %w", err)
	}
	return id, true, nil
}

func (s *TenderHistoryStorage) UpdateUnlinked(ctx context.Context, id int64, r *models.TenderHistoryRecord) error {
	tag, err := s.db.pool.Exec(ctx, `UPDATE tender_history SET
		external_id = COALESCE($2, external_id),
		status = $3,
		title = COALESCE(NULLIF($4, ''), title),
		archival_number = COALESCE($5, archival_number),
		authority = COALESCE($6, authority),
		city = COALESCE($7, city),
		contract_value = COALESCE($8, contract_value),
		estimated_cost = COALESCE($9, estimated_cost),
		discount_rate = COALESCE($10, discount_rate),
		contract_date = COALESCE($11, contract_date),
		start_date = COALESCE($12, start_date),
		end_date = COALESCE($13, end_date),
		termination_note = COALESCE($14, termination_note),
		updated_at = now()
		WHERE id = $1`,
		id, emptyNil(r.ExternalID), string(r.Status), r.Title,
		r.ArchivalNumber, r.Authority, r.City,
		r.ContractValue, r.EstimatedCost, r.DiscountRate,
		r.ContractDate, r.StartDate, r.EndDate, r.TerminationNote,
	)
	if err != nil {
		return fmt.Errorf("failed to update history %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("history %d: %w", id, interfaces.ErrNotFound)
	}
	return nil
}

func (s *TenderHistoryStorage) InsertUnlinked(ctx context.Context, r *models.TenderHistoryRecord) (int64, error) {
	unlinked := *r
	unlinked.TenderID = nil

	var id int64
	if err := s.db.pool.QueryRow(ctx, insertHistory+` RETURNING id`, historyArgs(&unlinked)...).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to insert history: %w", err)
	}
	return id, nil
}

func (s *TenderHistoryStorage) ListHistory(ctx context.Context, contractorID int64, limit int) ([]*models.TenderHistoryRecord, error) {
	query := `SELECT ` + historyColumns + ` FROM tender_history
		WHERE contractor_id = $1
		ORDER BY contract_date DESC NULLS LAST, id DESC`
	args := []any{contractorID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	var records []*models.TenderHistoryRecord
	for rows.Next() {
		var (
			r          models.TenderHistoryRecord
			externalID *string
			role       string
			status     string
		)
		err := rows.Scan(
			&r.ID, &r.ContractorID, &r.TenderID, &externalID, &role, &status, &r.Title,
			&r.ArchivalNumber, &r.Authority, &r.City, &r.ContractValue, &r.EstimatedCost, &r.DiscountRate,
			&r.ContractDate, &r.StartDate, &r.EndDate, &r.TerminationNote, &r.CreatedAt, &r.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		r.ExternalID = deref(externalID)
		r.Role = models.Role(role)
		r.Status = models.Status(status)
		records = append(records, &r)
	}
	return records, rows.Err()
}

func historyArgs(r *models.TenderHistoryRecord) []any {
	return []any{
		r.ContractorID, r.TenderID, emptyNil(r.ExternalID), string(r.Role), string(r.Status), r.Title,
		r.ArchivalNumber, r.Authority, r.City, r.ContractValue, r.EstimatedCost, r.DiscountRate,
		r.ContractDate, r.StartDate, r.EndDate, r.TerminationNote,
	}
}
