package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/tenderintel/internal/models"
)

// ContractorStorage persists contractors keyed by normalized title
type ContractorStorage interface {
	// UpsertContractor inserts by title or merges counters with GREATEST semantics
	UpsertContractor(ctx context.Context, contractor *models.Contractor) (models.UpsertResult, error)
	GetContractor(ctx context.Context, id int64) (*models.Contractor, error)
	GetContractorByTitle(ctx context.Context, title string) (*models.Contractor, error)

	// ListTracked returns intel-tracked contractors, never-harvested first, then oldest harvest
	ListTracked(ctx context.Context, limit int) ([]*models.Contractor, error)

	// SetTracking toggles intel tracking; turning it on also bookmarks
	SetTracking(ctx context.Context, id int64, on bool) error

	// UpdateStats overwrites the aggregate metrics and stamps the harvest time
	UpdateStats(ctx context.Context, id int64, stats models.ContractorStats, harvestedAt time.Time) error

	// AppendProvenance adds entry unless an identical entry is already present
	AppendProvenance(ctx context.Context, id int64, entry models.ProvenanceEntry) error

	SaveAnalysis(ctx context.Context, id int64, analysis []byte, at time.Time) error
	SaveNewsSummary(ctx context.Context, id int64, summary string, at time.Time) error
}

// TenderHistoryStorage persists contractor/tender relationships
type TenderHistoryStorage interface {
	// ResolveTenderID maps a portal id to the internal catalog; nil when absent
	ResolveTenderID(ctx context.Context, externalID string) (*int64, error)
	RegisterTender(ctx context.Context, tender *models.Tender) (int64, error)

	// UpsertLinked writes a record with a known TenderID, conflicting on (contractor, tender, role)
	UpsertLinked(ctx context.Context, record *models.TenderHistoryRecord) error

	// FindUnlinkedByArchival and FindUnlinkedByTitle return the row id, or 0 and false
	FindUnlinkedByArchival(ctx context.Context, contractorID int64, archivalNumber string, role models.Role) (int64, bool, error)
	FindUnlinkedByTitle(ctx context.Context, contractorID int64, title string, role models.Role) (int64, bool, error)

	// UpdateUnlinked merges record into row id; nil fields keep stored values, status is replaced
	UpdateUnlinked(ctx context.Context, id int64, record *models.TenderHistoryRecord) error
	InsertUnlinked(ctx context.Context, record *models.TenderHistoryRecord) (int64, error)

	// ListHistory returns a contractor's rows, newest contract first; limit <= 0 means all
	ListHistory(ctx context.Context, contractorID int64, limit int) ([]*models.TenderHistoryRecord, error)
}

// StorageManager exposes the relational stores of one backend
type StorageManager interface {
	ContractorStorage() ContractorStorage
	TenderHistoryStorage() TenderHistoryStorage
	Close() error
}

// SessionStorage persists portal cookies between runs
type SessionStorage interface {
	LoadSession(ctx context.Context, key string) (*models.SessionRecord, error)
	SaveSession(ctx context.Context, record *models.SessionRecord) error
	DeleteSession(ctx context.Context, key string) error
	Close() error
}
