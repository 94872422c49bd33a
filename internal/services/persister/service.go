// Package persister reconciles extracted tender cards into the relational model.
package persister

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tenderintel/internal/common"
	"github.com/ternarybob/tenderintel/internal/interfaces"
	"github.com/ternarybob/tenderintel/internal/models"
	"github.com/ternarybob/tenderintel/internal/services/extractor"
	"github.com/ternarybob/tenderintel/internal/services/stats"
)

// Service implements interfaces.HistoryPersister and the read path over history
type Service struct {
	contractors interfaces.ContractorStorage
	history     interfaces.TenderHistoryStorage
	logger      arbor.ILogger
	now         func() time.Time
}

// NewService creates a persister over the given storage manager
func NewService(storage interfaces.StorageManager, logger arbor.ILogger) *Service {
	return &Service{
		contractors: storage.ContractorStorage(),
		history:     storage.TenderHistoryStorage(),
		logger:      logger,
		now:         time.Now,
	}
}

// NormalizeTitle collapses whitespace
func NormalizeTitle(title string) string {
	return strings.Join(strings.Fields(title), " ")
}

// ContractorKey is the stored, unique form of a contractor title: whitespace
// collapsed and upper-cased with Turkish rules, the way the portal lists
// contractors. "Abc Yapı Ltd" and "ABC YAPI LTD" share one key.
func ContractorKey(title string) string {
	return common.UpperTR(NormalizeTitle(title))
}

// UpsertContractor inserts or merges a contractor by its title key
func (s *Service) UpsertContractor(ctx context.Context, title string, derived models.ContractorStats) (models.UpsertResult, error) {
	normalized := ContractorKey(title)
	if normalized == "" {
		return models.UpsertResult{}, fmt.Errorf("contractor title is required")
	}

	result, err := s.contractors.UpsertContractor(ctx, &models.Contractor{
		Title:           normalized,
		ContractorStats: derived,
	})
	if err != nil {
		return models.UpsertResult{}, err
	}

	if result.IsNew {
		s.logger.Debug().Int64("contractor_id", result.ID).Str("title", normalized).Msg("Created contractor")
	}
	return result, nil
}

// UpsertTenderHistory converts card into a history record and reconciles it.
// A resolvable tender id conflicts on (contractor, tender, role). Otherwise the
// unlinked strategies are tried in order and the first match is updated.
func (s *Service) UpsertTenderHistory(ctx context.Context, contractorID int64, card *models.TenderCard, role models.Role) error {
	record := RecordFromCard(contractorID, card, role)
	if record.Title == "" {
		return fmt.Errorf("tender card without title")
	}

	tenderID, err := s.history.ResolveTenderID(ctx, record.ExternalID)
	if err != nil {
		return err
	}

	if tenderID != nil {
		record.TenderID = tenderID
		return s.history.UpsertLinked(ctx, record)
	}

	for _, strategy := range s.unlinkedStrategies() {
		id, found, err := strategy.find(ctx, record)
		if err != nil {
			return err
		}
		if found {
			s.logger.Debug().
				Int64("history_id", id).
				Str("strategy", strategy.name).
				Str("title", record.Title).
				Msg("Matched unlinked history record")
			return s.history.UpdateUnlinked(ctx, id, record)
		}
	}

	_, err = s.history.InsertUnlinked(ctx, record)
	return err
}

// AppendProvenance stamps source with today's date on the contractor
func (s *Service) AppendProvenance(ctx context.Context, contractorID int64, source string) error {
	return s.contractors.AppendProvenance(ctx, contractorID, models.NewProvenanceEntry(source, s.now()))
}

// RecomputeStats rebuilds the contractor's aggregates from all stored history
func (s *Service) RecomputeStats(ctx context.Context, contractorID int64) (models.ContractorStats, error) {
	records, err := s.history.ListHistory(ctx, contractorID, 0)
	if err != nil {
		return models.ContractorStats{}, err
	}

	derived := stats.Recompute(records)
	if err := s.contractors.UpdateStats(ctx, contractorID, derived, s.now()); err != nil {
		return models.ContractorStats{}, err
	}

	s.logger.Debug().
		Int64("contractor_id", contractorID).
		Int("participated", derived.Participated).
		Float64("win_rate", derived.WinRate).
		Msg("Recomputed contractor stats")
	return derived, nil
}

// SaveAnalysis stores the analyze-page snapshot as JSON
func (s *Service) SaveAnalysis(ctx context.Context, contractorID int64, analysis *models.ContractorAnalysis) error {
	data, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("failed to encode analysis: %w", err)
	}
	return s.contractors.SaveAnalysis(ctx, contractorID, data, s.now())
}

// History returns a contractor's records, newest contract first
func (s *Service) History(ctx context.Context, contractorID int64, limit int) ([]*models.TenderHistoryRecord, error) {
	return s.history.ListHistory(ctx, contractorID, limit)
}

func (s *Service) GetContractor(ctx context.Context, id int64) (*models.Contractor, error) {
	return s.contractors.GetContractor(ctx, id)
}

// FindContractorByTitle looks up by title key
func (s *Service) FindContractorByTitle(ctx context.Context, title string) (*models.Contractor, error) {
	return s.contractors.GetContractorByTitle(ctx, ContractorKey(title))
}

func (s *Service) ListTracked(ctx context.Context, limit int) ([]*models.Contractor, error) {
	return s.contractors.ListTracked(ctx, limit)
}

func (s *Service) SetTracking(ctx context.Context, id int64, on bool) error {
	return s.contractors.SetTracking(ctx, id, on)
}

func (s *Service) SaveNewsSummary(ctx context.Context, id int64, summary string) error {
	return s.contractors.SaveNewsSummary(ctx, id, summary, s.now())
}

// RecordFromCard maps an extracted card onto a history record for role.
// Status is derived from the card's markers; a blank external id stays unlinked.
func RecordFromCard(contractorID int64, card *models.TenderCard, role models.Role) *models.TenderHistoryRecord {
	return &models.TenderHistoryRecord{
		ContractorID:    contractorID,
		ExternalID:      strings.TrimSpace(card.ExternalID),
		Role:            role,
		Status:          extractor.DeriveStatus(card.Markers, card.ContractValue != nil),
		Title:           NormalizeTitle(card.Title),
		ArchivalNumber:  trimmed(card.ArchivalNumber),
		Authority:       trimmed(card.Authority),
		City:            trimmed(card.City),
		ContractValue:   card.ContractValue,
		EstimatedCost:   card.EstimatedCost,
		DiscountRate:    card.DiscountRate,
		ContractDate:    card.ContractDate,
		StartDate:       card.StartDate,
		EndDate:         card.EndDate,
		TerminationNote: trimmed(card.Markers.TerminationNote),
	}
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
