package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/ternarybob/tenderintel/internal/services/crawler"
)

var harvestCmd = &cobra.Command{
	Use:   "harvest [contractor title]",
	Short: "Harvest the tender history of one contractor",
	Long:  `Crawls the ongoing, completed and participation phases for a contractor, then its regulatory decisions, and recomputes its stats.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runHarvest,
}

var decisionsCmd = &cobra.Command{
	Use:   "decisions [contractor title]",
	Short: "Harvest regulatory decisions naming one contractor",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDecisions,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [contractor title]",
	Short: "Store the portal's analysis summary for one contractor",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAnalyze,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Discover contractors from the latest awarded tenders",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var (
	harvestMaxPages      int
	harvestSkipDecisions bool
	listMaxPages         int
)

func init() {
	harvestCmd.Flags().IntVar(&harvestMaxPages, "max-pages", 0, "Page cap per phase (default from config)")
	harvestCmd.Flags().BoolVar(&harvestSkipDecisions, "skip-decisions", false, "Skip the regulatory decision crawl")
	listCmd.Flags().IntVar(&listMaxPages, "max-pages", 0, "Page cap for the list crawl (default from config)")
}

func titleArg(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func runHarvest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	application, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp(application)

	controller, err := application.StartCrawler()
	if err != nil {
		return err
	}

	run, err := controller.HarvestContractor(ctx, titleArg(args), crawler.HarvestOptions{
		MaxPages:      harvestMaxPages,
		SkipDecisions: harvestSkipDecisions,
	})
	if run != nil {
		if perr := printJSON(run); perr != nil {
			return perr
		}
	}
	return err
}

func runDecisions(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	application, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp(application)

	controller, err := application.StartCrawler()
	if err != nil {
		return err
	}

	run, err := controller.HarvestDecisions(ctx, titleArg(args))
	if run != nil {
		if perr := printJSON(run); perr != nil {
			return perr
		}
	}
	return err
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	application, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp(application)

	controller, err := application.StartCrawler()
	if err != nil {
		return err
	}

	analysis, err := controller.HarvestAnalysis(ctx, titleArg(args))
	if err != nil {
		return err
	}
	return printJSON(analysis)
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	application, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp(application)

	controller, err := application.StartCrawler()
	if err != nil {
		return err
	}

	stats, err := controller.CrawlContractorList(ctx, listMaxPages)
	if stats != nil {
		if perr := printJSON(stats); perr != nil {
			return perr
		}
	}
	return err
}
