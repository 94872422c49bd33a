package crawler

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/ternarybob/tenderintel/internal/models"
)

// RunBatch harvests contractors one after another with a randomized delay
// between them. A contractor that fails is recorded and the batch moves on;
// only a session that cannot be established at all stops the batch.
func (c *Controller) RunBatch(ctx context.Context, contractors []*models.Contractor, opts HarvestOptions) (*models.BatchStats, error) {
	if opts.MaxPages <= 0 {
		opts.MaxPages = c.config.BatchMaxPages
	}

	batch := &models.BatchStats{RunID: uuid.New().String(), StartedAt: c.now()}
	defer func() { batch.FinishedAt = c.now() }()

	logger := c.logger.WithCorrelationId(batch.RunID)
	logger.Info().Int("contractors", len(contractors)).Int("max_pages", opts.MaxPages).Msg("Starting batch harvest")

	for i, contractor := range contractors {
		if i > 0 {
			if err := c.nav.Pause(ctx, c.contractorDelayMin, c.contractorDelayMax); err != nil {
				return batch, err
			}
		}

		run, err := c.HarvestContractor(ctx, contractor.Title, opts)
		if run == nil {
			run = &models.RunStats{Contractor: contractor.Title}
		}
		if err != nil && run.Error == "" {
			run.Error = err.Error()
		}
		batch.AddRun(*run)

		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return batch, ctxErr
			}
			if errors.Is(err, ErrSessionUnavailable) {
				logger.Error().Err(err).Str("contractor", contractor.Title).Msg("Portal session unavailable, stopping batch")
				return batch, err
			}
			logger.Warn().Err(err).Str("contractor", contractor.Title).Msg("Contractor harvest failed, continuing")
		}
	}

	logger.Info().
		Int("contractors", batch.Contractors).
		Int("succeeded", batch.Succeeded).
		Int("failed", batch.Failed).
		Int("saved", batch.RecordsSaved).
		Msg("Batch harvest complete")
	return batch, nil
}
