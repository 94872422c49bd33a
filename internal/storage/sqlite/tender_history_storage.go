package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tenderintel/internal/interfaces"
	"github.com/ternarybob/tenderintel/internal/models"
)

const historyColumns = `id, contractor_id, tender_id, external_id, role, status, title,
	archival_number, authority, city, contract_value, estimated_cost, discount_rate,
	contract_date, start_date, end_date, termination_note, created_at, updated_at`

// Every nullable column keeps its stored value when the incoming one is NULL.
// Status is always replaced.
const historyMergeSet = `
	external_id = COALESCE(excluded.external_id, tender_history.external_id),
	status = excluded.status,
	title = COALESCE(NULLIF(excluded.title, ''), tender_history.title),
	archival_number = COALESCE(excluded.archival_number, tender_history.archival_number),
	authority = COALESCE(excluded.authority, tender_history.authority),
	city = COALESCE(excluded.city, tender_history.city),
	contract_value = COALESCE(excluded.contract_value, tender_history.contract_value),
	estimated_cost = COALESCE(excluded.estimated_cost, tender_history.estimated_cost),
	discount_rate = COALESCE(excluded.discount_rate, tender_history.discount_rate),
	contract_date = COALESCE(excluded.contract_date, tender_history.contract_date),
	start_date = COALESCE(excluded.start_date, tender_history.start_date),
	end_date = COALESCE(excluded.end_date, tender_history.end_date),
	termination_note = COALESCE(excluded.termination_note, tender_history.termination_note),
	updated_at = excluded.updated_at`

// TenderHistoryStorage implements interfaces.TenderHistoryStorage for SQLite
type TenderHistoryStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
	mu     sync.Mutex
}

// NewTenderHistoryStorage creates a new TenderHistoryStorage instance
func NewTenderHistoryStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.TenderHistoryStorage {
	return &TenderHistoryStorage{
		db:     db,
		logger: logger,
	}
}

// ResolveTenderID maps a portal id to the catalog id, nil when unknown
func (s *TenderHistoryStorage) ResolveTenderID(ctx context.Context, externalID string) (*int64, error) {
	if externalID == "" {
		return nil, nil
	}

	var id int64
	err := s.db.db.QueryRowContext(ctx, `SELECT id FROM tenders WHERE external_id = ?`, externalID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve tender: %w", err)
	}
	return &id, nil
}

// RegisterTender adds a catalog entry, returning the existing id on conflict
func (s *TenderHistoryStorage) RegisterTender(ctx context.Context, tender *models.Tender) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO tenders (external_id, title, created_at) VALUES (?, ?, ?)
		ON CONFLICT(external_id) DO UPDATE SET title = COALESCE(excluded.title, tenders.title)
		RETURNING id`

	var id int64
	if err := s.db.db.QueryRowContext(ctx, query, tender.ExternalID, nullEmpty(tender.Title), time.Now().Unix()).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to register tender: %w", err)
	}
	return id, nil
}

// UpsertLinked conflicts on the partial unique index (contractor, tender, role)
func (s *TenderHistoryStorage) UpsertLinked(ctx context.Context, r *models.TenderHistoryRecord) error {
	if r.TenderID == nil {
		return fmt.Errorf("upsert linked record %q: tender id is required", r.Title)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `INSERT INTO tender_history (` + insertColumns + `) VALUES (` + insertPlaceholders + `)
		ON CONFLICT(contractor_id, tender_id, role) WHERE tender_id IS NOT NULL DO UPDATE SET` + historyMergeSet

	if _, err := s.db.db.ExecContext(ctx, query, insertArgs(r, time.Now().Unix())...); err != nil {
		return fmt.Errorf("failed to upsert linked history: %w", err)
	}
	return nil
}

// FindUnlinkedByArchival finds an unlinked row by archival number
func (s *TenderHistoryStorage) FindUnlinkedByArchival(ctx context.Context, contractorID int64, archivalNumber string, role models.Role) (int64, bool, error) {
	return s.findUnlinked(ctx, `archival_number = ?`, contractorID, archivalNumber, role)
}

// FindUnlinkedByTitle finds an unlinked row by title
func (s *TenderHistoryStorage) FindUnlinkedByTitle(ctx context.Context, contractorID int64, title string, role models.Role) (int64, bool, error) {
	return s.findUnlinked(ctx, `title = ?`, contractorID, title, role)
}

func (s *TenderHistoryStorage) findUnlinked(ctx context.Context, predicate string, contractorID int64, value string, role models.Role) (int64, bool, error) {
	query := `SELECT id FROM tender_history
		WHERE contractor_id = ? AND tender_id IS NULL AND role = ? AND ` + predicate + `
		ORDER BY id ASC LIMIT 1`

	var id int64
	err := s.db.db.QueryRowContext(ctx, query, contractorID, string(role), value).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to find unlinked history: %w", err)
	}
	return id, true, nil
}

// UpdateUnlinked merges r into row id
func (s *TenderHistoryStorage) UpdateUnlinked(ctx context.Context, id int64, r *models.TenderHistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `UPDATE tender_history SET
		external_id = COALESCE(?, external_id),
		status = ?,
		title = COALESCE(NULLIF(?, ''), title),
		archival_number = COALESCE(?, archival_number),
		authority = COALESCE(?, authority),
		city = COALESCE(?, city),
		contract_value = COALESCE(?, contract_value),
		estimated_cost = COALESCE(?, estimated_cost),
		discount_rate = COALESCE(?, discount_rate),
		contract_date = COALESCE(?, contract_date),
		start_date = COALESCE(?, start_date),
		end_date = COALESCE(?, end_date),
		termination_note = COALESCE(?, termination_note),
		updated_at = ?
		WHERE id = ?`

	result, err := s.db.db.ExecContext(ctx, query,
		nullEmpty(r.ExternalID), string(r.Status), r.Title,
		nullString(r.ArchivalNumber), nullString(r.Authority), nullString(r.City),
		nullFloat(r.ContractValue), nullFloat(r.EstimatedCost), nullFloat(r.DiscountRate),
		nullDate(r.ContractDate), nullDate(r.StartDate), nullDate(r.EndDate),
		nullString(r.TerminationNote), time.Now().Unix(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update history %d: %w", id, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("history %d: %w", id, interfaces.ErrNotFound)
	}
	return nil
}

// InsertUnlinked inserts a row without a catalog link
func (s *TenderHistoryStorage) InsertUnlinked(ctx context.Context, r *models.TenderHistoryRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `INSERT INTO tender_history (` + insertColumns + `) VALUES (` + insertPlaceholders + `) RETURNING id`

	unlinked := *r
	unlinked.TenderID = nil

	var id int64
	if err := s.db.db.QueryRowContext(ctx, query, insertArgs(&unlinked, time.Now().Unix())...).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to insert history: %w", err)
	}
	return id, nil
}

// ListHistory returns a contractor's rows, newest contract first, undated last
func (s *TenderHistoryStorage) ListHistory(ctx context.Context, contractorID int64, limit int) ([]*models.TenderHistoryRecord, error) {
	query := `SELECT ` + historyColumns + ` FROM tender_history
		WHERE contractor_id = ?
		ORDER BY contract_date IS NULL, contract_date DESC, id DESC`
	args := []interface{}{contractorID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	var records []*models.TenderHistoryRecord
	for rows.Next() {
		r, err := scanHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

const insertColumns = `contractor_id, tender_id, external_id, role, status, title,
	archival_number, authority, city, contract_value, estimated_cost, discount_rate,
	contract_date, start_date, end_date, termination_note, created_at, updated_at`

const insertPlaceholders = `?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?`

func insertArgs(r *models.TenderHistoryRecord, now int64) []interface{} {
	return []interface{}{
		r.ContractorID, nullInt64(r.TenderID), nullEmpty(r.ExternalID), string(r.Role), string(r.Status), r.Title,
		nullString(r.ArchivalNumber), nullString(r.Authority), nullString(r.City),
		nullFloat(r.ContractValue), nullFloat(r.EstimatedCost), nullFloat(r.DiscountRate),
		nullDate(r.ContractDate), nullDate(r.StartDate), nullDate(r.EndDate), nullString(r.TerminationNote),
		now, now,
	}
}

func scanHistory(row scanner) (*models.TenderHistoryRecord, error) {
	var (
		r                                  models.TenderHistoryRecord
		tenderID                           sql.NullInt64
		externalID, archival, authority    sql.NullString
		city, terminationNote              sql.NullString
		contractDate, startDate, endDate   sql.NullString
		contractValue, estimated, discount sql.NullFloat64
		role, status                       string
		createdAt, updatedAt               int64
	)

	err := row.Scan(
		&r.ID, &r.ContractorID, &tenderID, &externalID, &role, &status, &r.Title,
		&archival, &authority, &city, &contractValue, &estimated, &discount,
		&contractDate, &startDate, &endDate, &terminationNote, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.TenderID = int64Ptr(tenderID)
	r.ExternalID = externalID.String
	r.Role = models.Role(role)
	r.Status = models.Status(status)
	r.ArchivalNumber = stringPtr(archival)
	r.Authority = stringPtr(authority)
	r.City = stringPtr(city)
	r.ContractValue = floatPtr(contractValue)
	r.EstimatedCost = floatPtr(estimated)
	r.DiscountRate = floatPtr(discount)
	r.ContractDate = datePtr(contractDate)
	r.StartDate = datePtr(startDate)
	r.EndDate = datePtr(endDate)
	r.TerminationNote = stringPtr(terminationNote)
	r.CreatedAt = time.Unix(createdAt, 0).UTC()
	r.UpdatedAt = time.Unix(updatedAt, 0).UTC()

	return &r, nil
}
