// Package crawler drives session-guarded, paginated crawls of the tender portal.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tenderintel/internal/common"
	"github.com/ternarybob/tenderintel/internal/interfaces"
	"github.com/ternarybob/tenderintel/internal/models"
	"github.com/ternarybob/tenderintel/internal/services/extractor"
)

// ErrSessionUnavailable is returned when the initial portal login fails even
// after a forced relogin.
// A batch stops on it; every other per-contractor failure is recorded and skipped.
var ErrSessionUnavailable = errors.New("portal session unavailable")

const (
	loginSettle  = 3 * time.Second
	scrollSettle = time.Second
	phaseGap     = 2 * time.Second
)

// HarvestOptions tune one contractor harvest
type HarvestOptions struct {
	MaxPages      int // per phase; <= 0 uses the configured cap
	SkipDecisions bool
}

// Controller crawls the portal's search phases for contractors
type Controller struct {
	nav       *Navigator
	extractor *extractor.Extractor
	persister interfaces.HistoryPersister
	config    *common.PortalConfig
	logger    arbor.ILogger
	now       func() time.Time

	pageDelayMin, pageDelayMax             time.Duration
	listDelayMin, listDelayMax             time.Duration
	contractorDelayMin, contractorDelayMax time.Duration
}

// NewController wires a crawl controller over one browser session
func NewController(
	browser interfaces.Browser,
	keeper interfaces.SessionKeeper,
	persister interfaces.HistoryPersister,
	config *common.PortalConfig,
	logger arbor.ILogger,
) (*Controller, error) {
	ext, err := extractor.NewExtractor(config.BaseURL, logger)
	if err != nil {
		return nil, err
	}

	timeout := common.ParseDuration(config.NavigationTimeout, 45*time.Second)
	c := &Controller{
		nav:       NewNavigator(browser, keeper, timeout, logger),
		extractor: ext,
		persister: persister,
		config:    config,
		logger:    logger,
		now:       time.Now,
	}
	c.pageDelayMin, c.pageDelayMax = common.DelayRange(config.PageDelayMin, config.PageDelayMax, 3*time.Second)
	c.listDelayMin, c.listDelayMax = common.DelayRange(config.ListDelayMin, config.ListDelayMax, 3*time.Second)
	c.contractorDelayMin, c.contractorDelayMax = common.DelayRange(config.ContractorDelayMin, config.ContractorDelayMax, 4*time.Second)
	return c, nil
}

// HarvestContractor runs every history phase for title, then the decision
// crawl, then recomputes the contractor's stats. Card and persistence errors
// are counted in the returned stats. A failed initial login returns an error
// wrapping ErrSessionUnavailable; a session lost again after one relogin
// ends the run with an error wrapping ErrAuthentication.
func (c *Controller) HarvestContractor(ctx context.Context, title string, opts HarvestOptions) (*models.RunStats, error) {
	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = c.config.MaxPages
	}

	session, logger, run, err := c.begin(ctx, title)
	if err != nil {
		return run, err
	}
	defer func() { run.FinishedAt = c.now() }()

	logger.Info().Str("contractor", session.Title).Int("max_pages", maxPages).Msg("Harvesting contractor history")

	var authErr error
	historySaved := 0
	phases := HistoryPhases()
	for i, phase := range phases {
		ps, err := c.crawlPhase(ctx, logger, session, phase, maxPages)
		run.AddPhase(ps)
		historySaved += ps.RecordsSaved
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return run, ctxErr
			}
			if errors.Is(err, interfaces.ErrAuthentication) {
				authErr = err
				break
			}
			logger.Warn().Err(err).Str("phase", phase.Name).Msg("Phase aborted")
		}

		if i < len(phases)-1 {
			if err := c.nav.Wait(ctx, phaseGap); err != nil {
				return run, err
			}
		}
	}

	if authErr == nil && !opts.SkipDecisions {
		if err := c.nav.Wait(ctx, phaseGap); err != nil {
			return run, err
		}
		ps, err := c.crawlDecisions(ctx, logger, session)
		run.AddPhase(ps)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return run, ctxErr
			}
			if errors.Is(err, interfaces.ErrAuthentication) {
				authErr = err
			}
		}
	}

	c.finish(ctx, logger, session, run, historySaved)

	if authErr != nil {
		run.Error = authErr.Error()
		return run, authErr
	}

	logger.Info().
		Str("contractor", session.Title).
		Int("pages", run.PagesScraped).
		Int("found", run.RecordsFound).
		Int("saved", run.RecordsSaved).
		Int("errors", run.Errors).
		Msg("Contractor harvest complete")
	return run, nil
}

// HarvestDecisions runs only the regulatory decision crawl for title
func (c *Controller) HarvestDecisions(ctx context.Context, title string) (*models.RunStats, error) {
	session, logger, run, err := c.begin(ctx, title)
	if err != nil {
		return run, err
	}
	defer func() { run.FinishedAt = c.now() }()

	ps, err := c.crawlDecisions(ctx, logger, session)
	run.AddPhase(ps)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return run, ctxErr
	}

	c.finish(ctx, logger, session, run, 0)

	if err != nil && errors.Is(err, interfaces.ErrAuthentication) {
		run.Error = err.Error()
		return run, err
	}
	return run, nil
}

// begin upserts the contractor, tags the run and authenticates
func (c *Controller) begin(ctx context.Context, title string) (*models.CrawlSession, arbor.ILogger, *models.RunStats, error) {
	runID := uuid.New().String()
	logger := c.logger.WithCorrelationId(runID)
	run := &models.RunStats{RunID: runID, Contractor: title, StartedAt: c.now()}

	upsert, err := c.persister.UpsertContractor(ctx, title, models.ContractorStats{})
	if err != nil {
		run.Error = err.Error()
		run.FinishedAt = c.now()
		return nil, logger, run, fmt.Errorf("failed to upsert contractor %q: %w", title, err)
	}
	run.ContractorID = upsert.ID

	session := models.NewCrawlSession(runID, upsert.ID, title)

	if err := c.nav.EnsureLoggedIn(ctx); err != nil {
		run.Error = err.Error()
		run.FinishedAt = c.now()
		return nil, logger, run, fmt.Errorf("%w: %w", ErrSessionUnavailable, err)
	}
	if err := c.nav.Wait(ctx, loginSettle); err != nil {
		run.FinishedAt = c.now()
		return nil, logger, run, err
	}

	return session, logger, run, nil
}

// finish recomputes stats and, when the history phases saved rows, records
// tender history provenance
func (c *Controller) finish(ctx context.Context, logger arbor.ILogger, session *models.CrawlSession, run *models.RunStats, historySaved int) {
	if _, err := c.persister.RecomputeStats(ctx, session.ContractorID); err != nil {
		run.Errors++
		logger.Error().Err(err).Int64("contractor_id", session.ContractorID).Msg("Failed to recompute stats")
	}
	if historySaved == 0 {
		return
	}
	if err := c.persister.AppendProvenance(ctx, session.ContractorID, models.SourceTenderHistory); err != nil {
		run.Errors++
		logger.Warn().Err(err).Msg("Failed to record provenance")
	}
}

// crawlDecisions never fails the run for non-auth errors; they land in the stats
func (c *Controller) crawlDecisions(ctx context.Context, logger arbor.ILogger, session *models.CrawlSession) (models.PhaseStats, error) {
	ps, err := c.crawlPhase(ctx, logger, session, DecisionPhase(), c.config.DecisionMaxPages)
	if err != nil {
		logger.Warn().Err(err).Msg("Decision crawl aborted")
	}
	if ps.RecordsSaved > 0 {
		if perr := c.persister.AppendProvenance(ctx, session.ContractorID, models.SourceKikDecisions); perr != nil {
			ps.Errors++
			logger.Warn().Err(perr).Msg("Failed to record decision provenance")
		}
	}
	return ps, err
}

// crawlPhase pages through one phase until a page yields no records, the
// page selector offers no next page, or maxPages is reached. A navigation
// or authentication error aborts the phase and is returned.
func (c *Controller) crawlPhase(ctx context.Context, logger arbor.ILogger, session *models.CrawlSession, phase models.Phase, maxPages int) (models.PhaseStats, error) {
	ps := models.PhaseStats{Name: phase.Name, Label: phase.Label}
	session.Phase = &phase

	page := 1
	if err := c.openPage(ctx, session, phase, page); err != nil {
		return abort(ps, err), err
	}

	for page <= maxPages {
		session.Page = page

		result, err := c.readPage(ctx, extractor.RequireDetailLink)
		if err != nil {
			return abort(ps, err), err
		}
		ps.Errors += result.Errors

		if len(result.Cards) == 0 {
			if page == 1 {
				logger.Warn().
					Str("phase", phase.Name).
					Str("contractor", session.Title).
					Int("cards_on_page", result.CardCount).
					Msg("Extraction returned zero cards")
			}
			break
		}

		ps.RecordsFound += len(result.Cards)
		for i := range result.Cards {
			card := &result.Cards[i]
			if !session.MarkSeen(seenKey(phase.Role, card.ExternalID)) {
				continue
			}
			ApplyPhaseDefault(card, phase)
			if err := c.persister.UpsertTenderHistory(ctx, session.ContractorID, card, phase.Role); err != nil {
				ps.Errors++
				logger.Warn().Err(err).Str("external_id", card.ExternalID).Str("phase", phase.Name).Msg("Failed to persist card")
				continue
			}
			ps.RecordsSaved++
		}
		ps.PagesScraped++

		logger.Debug().
			Str("phase", phase.Name).
			Int("page", page).
			Int("cards", len(result.Cards)).
			Int("saved_total", ps.RecordsSaved).
			Msg("Page processed")

		if page >= maxPages || !result.HasNextPage(page) {
			break
		}

		page++
		if err := c.openPage(ctx, session, phase, page); err != nil {
			return abort(ps, err), err
		}
	}

	return ps, nil
}

func (c *Controller) openPage(ctx context.Context, session *models.CrawlSession, phase models.Phase, page int) error {
	if page > 1 {
		if err := c.nav.Pause(ctx, c.pageDelayMin, c.pageDelayMax); err != nil {
			return err
		}
	}
	url := PhaseURL(c.config.BaseURL, c.config.WorkCategory, phase, session.Title, page)
	if err := c.nav.OpenGuarded(ctx, url); err != nil {
		return err
	}
	return c.nav.Pause(ctx, c.pageDelayMin, c.pageDelayMax)
}

// readPage scrolls to trigger lazy loading and parses the rendered cards
func (c *Controller) readPage(ctx context.Context, filter extractor.CardFilter) (*extractor.PageResult, error) {
	if err := c.nav.ScrollToBottom(ctx); err != nil {
		c.logger.Debug().Err(err).Msg("Scroll failed")
	}
	if err := c.nav.Wait(ctx, scrollSettle); err != nil {
		return nil, err
	}
	html, err := c.nav.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read page: %w", interfaces.ErrNavigation, err)
	}
	return c.extractor.ParsePage(html, filter)
}

// seenKey scopes within-session dedup to the role, so one tender may be
// recorded both as awarded and as a participation.
func seenKey(role models.Role, externalID string) string {
	if externalID == "" {
		return ""
	}
	return string(role) + "/" + externalID
}

func abort(ps models.PhaseStats, err error) models.PhaseStats {
	ps.Aborted = true
	ps.AbortReason = err.Error()
	return ps
}
