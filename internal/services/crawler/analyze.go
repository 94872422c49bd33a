package crawler

import (
	"context"
	"fmt"

	"github.com/ternarybob/tenderintel/internal/common"
	"github.com/ternarybob/tenderintel/internal/models"
	"github.com/ternarybob/tenderintel/internal/services/extractor"
)

// HarvestAnalysis loads the contractor's analyze page and stores the parsed
// summary and tables on the contractor.
func (c *Controller) HarvestAnalysis(ctx context.Context, title string) (*models.ContractorAnalysis, error) {
	upsert, err := c.persister.UpsertContractor(ctx, title, models.ContractorStats{})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert contractor %q: %w", title, err)
	}

	if err := c.nav.EnsureLoggedIn(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSessionUnavailable, err)
	}

	url := AnalyzeURL(c.config.BaseURL, c.config.WorkCategory, title)
	if err := c.nav.OpenGuarded(ctx, url); err != nil {
		return nil, err
	}
	if err := c.nav.Wait(ctx, common.ParseDuration(c.config.SettleDelay, 0)); err != nil {
		return nil, err
	}

	html, err := c.nav.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read analyze page: %w", err)
	}

	analysis, err := extractor.ParseAnalyzePage(html, extractor.AnalyzeTables)
	if err != nil {
		return nil, err
	}
	analysis.SourceURL = url
	analysis.FetchedAt = c.now().UTC()

	if err := c.persister.SaveAnalysis(ctx, upsert.ID, analysis); err != nil {
		return analysis, fmt.Errorf("failed to save analysis: %w", err)
	}
	if err := c.persister.AppendProvenance(ctx, upsert.ID, models.SourceAnalyzePage); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to record analyze provenance")
	}

	c.logger.Info().Str("contractor", title).Int("tables", len(analysis.Tables)).Msg("Analyze page stored")
	return analysis, nil
}
