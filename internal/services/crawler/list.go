package crawler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ternarybob/tenderintel/internal/models"
	"github.com/ternarybob/tenderintel/internal/services/extractor"
	"github.com/ternarybob/tenderintel/internal/services/persister"
)

// listEntry accumulates what the list crawl saw of one contractor
type listEntry struct {
	title     string
	count     int
	completed int
	ongoing   int
	total     float64
	discounts []float64
	cities    []string
	last      *time.Time
	id        int64
	counted   bool
}

func (e *listEntry) add(card *models.TenderCard) {
	e.count++
	if card.ContractValue != nil {
		e.total += *card.ContractValue
	}
	if card.DiscountRate != nil {
		e.discounts = append(e.discounts, *card.DiscountRate)
	}
	if card.Markers.Ongoing {
		e.ongoing++
	}
	if card.Markers.Completed {
		e.completed++
	}
	if card.City != nil && *card.City != "" {
		known := false
		for _, c := range e.cities {
			if c == *card.City {
				known = true
				break
			}
		}
		if !known {
			e.cities = append(e.cities, *card.City)
		}
	}
	if card.ContractDate != nil && (e.last == nil || card.ContractDate.After(*e.last)) {
		d := *card.ContractDate
		e.last = &d
	}
}

// stats maps the running aggregate to contractor counters. Cards on the
// award list are awarded contracts, so an entry without explicit completed
// markers counts every sighting as completed.
func (e *listEntry) stats() models.ContractorStats {
	s := models.ContractorStats{
		Participated:       e.count,
		Completed:          e.completed,
		Ongoing:            e.ongoing,
		TotalContractValue: e.total,
		ActiveCities:       append([]string{}, e.cities...),
		LastContractDate:   e.last,
	}
	if s.Completed == 0 {
		s.Completed = e.count
	}
	if len(e.discounts) > 0 {
		var sum float64
		for _, d := range e.discounts {
			sum += d
		}
		avg := sum / float64(len(e.discounts))
		s.AverageDiscount = &avg
	}
	return s
}

// CrawlContractorList walks the newest-first tender list, discovering
// contractors from award cards. Each page's contractors are upserted with
// their running aggregates, every titled card is written as an awarded
// history row and the touched contractors' stats are recomputed from stored
// history, so an interrupted crawl keeps what it saw.
func (c *Controller) CrawlContractorList(ctx context.Context, maxPages int) (*models.ListStats, error) {
	if maxPages <= 0 {
		maxPages = c.config.ListMaxPages
	}

	stats := &models.ListStats{RunID: uuid.New().String(), StartedAt: c.now()}
	defer func() { stats.FinishedAt = c.now() }()
	logger := c.logger.WithCorrelationId(stats.RunID)

	if err := c.nav.EnsureLoggedIn(ctx); err != nil {
		stats.Error = err.Error()
		return stats, fmt.Errorf("%w: %w", ErrSessionUnavailable, err)
	}
	if err := c.nav.Wait(ctx, loginSettle); err != nil {
		return stats, err
	}

	entries := make(map[string]*listEntry)

	for page := 1; page <= maxPages; page++ {
		if page > 1 {
			if err := c.nav.Pause(ctx, c.listDelayMin, c.listDelayMax); err != nil {
				return stats, err
			}
		}
		if err := c.nav.OpenGuarded(ctx, ListURL(c.config.BaseURL, c.config.WorkCategory, page)); err != nil {
			stats.Error = err.Error()
			return stats, err
		}
		if err := c.nav.Pause(ctx, c.listDelayMin, c.listDelayMax); err != nil {
			return stats, err
		}

		result, err := c.readPage(ctx, extractor.RequireContractor)
		if err != nil {
			stats.Error = err.Error()
			return stats, err
		}
		stats.Errors += result.Errors

		if len(result.Cards) == 0 {
			if page == 1 {
				logger.Warn().Int("cards_on_page", result.CardCount).Msg("Extraction returned zero cards on contractor list")
			}
			break
		}
		stats.CardsFound += len(result.Cards)

		touched := make(map[string]*listEntry)
		for i := range result.Cards {
			card := &result.Cards[i]
			title := persister.NormalizeTitle(*card.ContractorName)
			key := persister.ContractorKey(title)
			entry, ok := entries[key]
			if !ok {
				entry = &listEntry{title: title}
				entries[key] = entry
			}
			entry.add(card)
			touched[key] = entry
		}

		for _, entry := range touched {
			res, err := c.persister.UpsertContractor(ctx, entry.title, entry.stats())
			if err != nil {
				stats.Errors++
				logger.Warn().Err(err).Str("contractor", entry.title).Msg("Failed to upsert listed contractor")
				continue
			}
			entry.id = res.ID
			if !entry.counted {
				entry.counted = true
				if res.IsNew {
					stats.ContractorsNew++
				} else {
					stats.ContractorsUpdated++
				}
				if err := c.persister.AppendProvenance(ctx, res.ID, models.SourceListScan); err != nil {
					stats.Errors++
					logger.Warn().Err(err).Msg("Failed to record list provenance")
				}
			}
		}

		for i := range result.Cards {
			card := &result.Cards[i]
			if card.Title == "" {
				continue
			}
			entry := entries[persister.ContractorKey(*card.ContractorName)]
			if entry.id == 0 {
				continue
			}
			if err := c.persister.UpsertTenderHistory(ctx, entry.id, card, models.RoleAwarded); err != nil {
				stats.Errors++
				logger.Debug().Err(err).Str("external_id", card.ExternalID).Msg("Failed to persist listed card")
				continue
			}
			stats.RecordsSaved++
		}

		// list aggregates only cover what this crawl saw; the stored history is authoritative
		for _, entry := range touched {
			if entry.id == 0 {
				continue
			}
			if _, err := c.persister.RecomputeStats(ctx, entry.id); err != nil {
				stats.Errors++
				logger.Warn().Err(err).Str("contractor", entry.title).Msg("Failed to recompute listed contractor stats")
			}
		}

		stats.PagesScraped++
		stats.ContractorsFound = len(entries)

		logger.Debug().Int("page", page).Int("contractors", len(entries)).Msg("List page processed")

		if !result.HasNextPage(page) {
			break
		}
	}

	logger.Info().
		Int("pages", stats.PagesScraped).
		Int("contractors", stats.ContractorsFound).
		Int("new", stats.ContractorsNew).
		Msg("Contractor list crawl complete")
	return stats, nil
}
