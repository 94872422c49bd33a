package persister

import (
	"context"

	"github.com/ternarybob/tenderintel/internal/models"
)

// lookupStrategy finds an existing unlinked row for a record
type lookupStrategy struct {
	name string
	find func(ctx context.Context, r *models.TenderHistoryRecord) (int64, bool, error)
}

// unlinkedStrategies are tried in order when the tender id cannot be resolved
func (s *Service) unlinkedStrategies() []lookupStrategy {
	return []lookupStrategy{
		{name: "archival_number", find: s.byArchivalNumber},
		{name: "title", find: s.byTitle},
	}
}

func (s *Service) byArchivalNumber(ctx context.Context, r *models.TenderHistoryRecord) (int64, bool, error) {
	if r.ArchivalNumber == nil {
		return 0, false, nil
	}
	return s.history.FindUnlinkedByArchival(ctx, r.ContractorID, *r.ArchivalNumber, r.Role)
}

func (s *Service) byTitle(ctx context.Context, r *models.TenderHistoryRecord) (int64, bool, error) {
	if r.Title == "" {
		return 0, false, nil
	}
	return s.history.FindUnlinkedByTitle(ctx, r.ContractorID, r.Title, r.Role)
}
