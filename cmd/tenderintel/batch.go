package main

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/ternarybob/tenderintel/internal/app"
	"github.com/ternarybob/tenderintel/internal/common"
	"github.com/ternarybob/tenderintel/internal/models"
	"github.com/ternarybob/tenderintel/internal/services/crawler"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Harvest the tracked contractors that are most overdue",
	Args:  cobra.NoArgs,
	RunE:  runBatchCmd,
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run tracked-contractor batches on the configured cron schedule",
	Args:  cobra.NoArgs,
	RunE:  runSchedule,
}

var (
	batchLimit    int
	batchMaxPages int
	scheduleExpr  string
)

func init() {
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "Contractors per batch (default from config)")
	batchCmd.Flags().IntVar(&batchMaxPages, "max-pages", 0, "Page cap per phase (default from config)")
	scheduleCmd.Flags().StringVar(&scheduleExpr, "cron", "", "Cron expression overriding [schedule].batch")
	scheduleCmd.Flags().IntVar(&batchLimit, "limit", 0, "Contractors per batch (default from config)")
}

func runBatchCmd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	application, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp(application)

	stats, err := runBatch(ctx, application)
	if stats != nil {
		if perr := printJSON(stats); perr != nil {
			return perr
		}
	}
	return err
}

// runBatch harvests up to the batch size of tracked contractors, never
// harvested first, then least recently harvested
func runBatch(ctx context.Context, application *app.App) (*models.BatchStats, error) {
	limit := batchLimit
	if limit <= 0 {
		limit = config.Portal.BatchSize
	}

	contractors, err := application.Persister.ListTracked(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracked contractors: %w", err)
	}
	if len(contractors) == 0 {
		logger.Info().Msg("No tracked contractors to harvest")
		return &models.BatchStats{}, nil
	}

	controller, err := application.StartCrawler()
	if err != nil {
		return nil, err
	}

	return controller.RunBatch(ctx, contractors, crawler.HarvestOptions{MaxPages: batchMaxPages})
}

func runSchedule(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	expr := scheduleExpr
	if expr == "" {
		expr = config.Schedule.Batch
	}
	if err := common.ValidateSchedule(expr); err != nil {
		return err
	}

	application, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp(application)

	scheduler := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, err := scheduler.AddFunc(expr, func() {
		stats, err := runBatch(ctx, application)
		if err != nil {
			logger.Error().Err(err).Msg("Scheduled batch failed")
			return
		}
		logger.Info().
			Int("contractors", stats.Contractors).
			Int("succeeded", stats.Succeeded).
			Int("failed", stats.Failed).
			Int("records_saved", stats.RecordsSaved).
			Msg("Scheduled batch finished")
	}); err != nil {
		return fmt.Errorf("failed to schedule batch: %w", err)
	}

	scheduler.Start()
	logger.Info().Str("schedule", expr).Msg("Batch scheduler started")

	<-ctx.Done()

	logger.Info().Msg("Stopping batch scheduler")
	<-scheduler.Stop().Done()
	return nil
}
