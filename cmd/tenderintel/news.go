package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ternarybob/tenderintel/internal/models"
	"github.com/ternarybob/tenderintel/internal/services/intel"
)

var newsCmd = &cobra.Command{
	Use:   "news [contractor id | title]",
	Short: "Gather news and regulatory decisions for a stored contractor",
	Long:  `Merges web search results, the decision archive and the news feed for a contractor and prints them as JSON with its tender history.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runNews,
}

var (
	newsDays      int
	newsMax       int
	newsFetchText bool
)

func init() {
	newsCmd.Flags().IntVar(&newsDays, "days", 30, "Recency window in days")
	newsCmd.Flags().IntVar(&newsMax, "max", 20, "Maximum news items")
	newsCmd.Flags().BoolVar(&newsFetchText, "fetch-text", false, "Fetch full text of decision matches for excerpts")
}

func runNews(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	application, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp(application)

	opts := intel.NewsOptions{
		Days:              newsDays,
		MaxResults:        newsMax,
		FetchDecisionText: newsFetchText,
	}

	var result *models.ContractorIntel
	if id, perr := strconv.ParseInt(args[0], 10, 64); perr == nil && len(args) == 1 {
		result, err = application.IntelService.ForContractor(ctx, id, opts)
	} else {
		result, err = application.IntelService.ForTitle(ctx, titleArg(args), opts)
	}
	if err != nil {
		return err
	}
	return printJSON(result)
}
