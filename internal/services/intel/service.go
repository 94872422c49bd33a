package intel

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tenderintel/internal/models"
)

const historyLimit = 50

// ContractorReader is the slice of the persister the news path reads from
type ContractorReader interface {
	GetContractor(ctx context.Context, id int64) (*models.Contractor, error)
	FindContractorByTitle(ctx context.Context, title string) (*models.Contractor, error)
	History(ctx context.Context, contractorID int64, limit int) ([]*models.TenderHistoryRecord, error)
	SaveNewsSummary(ctx context.Context, id int64, summary string) error
}

// Service answers news requests for stored contractors
type Service struct {
	aggregator *Aggregator
	reader     ContractorReader
	logger     arbor.ILogger
}

// NewService creates the contractor news service
func NewService(aggregator *Aggregator, reader ContractorReader, logger arbor.ILogger) *Service {
	return &Service{
		aggregator: aggregator,
		reader:     reader,
		logger:     logger,
	}
}

// ForContractor gathers news for a stored contractor by id
func (s *Service) ForContractor(ctx context.Context, id int64, opts NewsOptions) (*models.ContractorIntel, error) {
	contractor, err := s.reader.GetContractor(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load contractor %d: %w", id, err)
	}
	return s.build(ctx, contractor, opts)
}

// ForTitle gathers news for a stored contractor by title
func (s *Service) ForTitle(ctx context.Context, title string, opts NewsOptions) (*models.ContractorIntel, error) {
	contractor, err := s.reader.FindContractorByTitle(ctx, title)
	if err != nil {
		return nil, fmt.Errorf("failed to find contractor %q: %w", title, err)
	}
	return s.build(ctx, contractor, opts)
}

func (s *Service) build(ctx context.Context, contractor *models.Contractor, opts NewsOptions) (*models.ContractorIntel, error) {
	result := s.aggregator.Gather(ctx, contractor.QueryName(), opts)

	history, err := s.reader.History(ctx, contractor.ID, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	if result.AISummary != "" {
		if err := s.reader.SaveNewsSummary(ctx, contractor.ID, result.AISummary); err != nil {
			s.logger.Warn().Err(err).Int64("contractor_id", contractor.ID).Msg("Failed to cache news summary")
		}
	}

	return &models.ContractorIntel{
		Contractor:   contractor,
		Intelligence: result,
		History:      history,
	}, nil
}
