package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ternarybob/tenderintel/internal/interfaces"
	"github.com/ternarybob/tenderintel/internal/models"
	"github.com/ternarybob/tenderintel/internal/services/crawler"
)

var trackCmd = &cobra.Command{
	Use:   "track [contractor title]",
	Short: "Turn intelligence tracking on or off for a contractor",
	Long:  `Tracking also bookmarks the contractor and, unless --no-harvest is given, harvests its history right away.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTrack,
}

var (
	trackOff       bool
	trackNoHarvest bool
)

func init() {
	trackCmd.Flags().BoolVar(&trackOff, "off", false, "Stop tracking the contractor")
	trackCmd.Flags().BoolVar(&trackNoHarvest, "no-harvest", false, "Do not harvest after turning tracking on")
}

func runTrack(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	application, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp(application)

	title := titleArg(args)
	contractor, err := application.Persister.FindContractorByTitle(ctx, title)
	switch {
	case errors.Is(err, interfaces.ErrNotFound):
		if trackOff {
			return err
		}
		res, uerr := application.Persister.UpsertContractor(ctx, title, models.ContractorStats{})
		if uerr != nil {
			return fmt.Errorf("failed to create contractor: %w", uerr)
		}
		contractor = &models.Contractor{ID: res.ID, Title: title}
	case err != nil:
		return err
	}

	on := !trackOff
	if err := application.Persister.SetTracking(ctx, contractor.ID, on); err != nil {
		return fmt.Errorf("failed to update tracking: %w", err)
	}

	logger.Info().
		Int64("contractor_id", contractor.ID).
		Str("contractor", contractor.Title).
		Bool("tracking", on).
		Msg("Tracking updated")

	if !on || trackNoHarvest {
		return nil
	}

	controller, err := application.StartCrawler()
	if err != nil {
		return err
	}
	run, err := controller.HarvestContractor(ctx, contractor.Title, crawler.HarvestOptions{MaxPages: config.Portal.MaxPages})
	if run != nil {
		if perr := printJSON(run); perr != nil {
			return perr
		}
	}
	return err
}
