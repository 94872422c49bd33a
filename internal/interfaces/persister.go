package interfaces

import (
	"context"

	"github.com/ternarybob/tenderintel/internal/models"
)

// HistoryPersister is the write side used by the crawlers
type HistoryPersister interface {
	// UpsertContractor normalizes title and merges stats into the stored contractor
	UpsertContractor(ctx context.Context, title string, stats models.ContractorStats) (models.UpsertResult, error)

	// UpsertTenderHistory reconciles one extracted card into the contractor's history
	UpsertTenderHistory(ctx context.Context, contractorID int64, card *models.TenderCard, role models.Role) error

	AppendProvenance(ctx context.Context, contractorID int64, source string) error

	// RecomputeStats derives the aggregates from stored history and writes them back
	RecomputeStats(ctx context.Context, contractorID int64) (models.ContractorStats, error)

	SaveAnalysis(ctx context.Context, contractorID int64, analysis *models.ContractorAnalysis) error
}
