// Package intel gathers news and regulatory-decision mentions of a contractor
// from a web search API with a public RSS feed as the always-on fallback.
package intel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/ternarybob/arbor"
	"golang.org/x/sync/errgroup"

	"github.com/ternarybob/tenderintel/internal/common"
	"github.com/ternarybob/tenderintel/internal/interfaces"
	"github.com/ternarybob/tenderintel/internal/models"
)

// Keys of IntelligenceResult.Errors
const (
	SourceSearch  = "search"
	SourceArchive = "archive"
	SourceExtract = "extract"
	SourceFeed    = "feed"
)

const (
	defaultDays      = 30
	defaultNewsLimit = 20
)

// NewsOptions tune one Gather call
type NewsOptions struct {
	Days              int  // recency window, default 30
	MaxResults        int  // cap on returned news, default 20
	FetchDecisionText bool // fetch full text of archive hits for excerpts
}

// Aggregator merges the search API and the RSS feed into one answer
type Aggregator struct {
	search     interfaces.SearchClient
	feed       interfaces.FeedFetcher
	config     *common.SearchConfig
	feedConfig *common.FeedConfig
	converter  *md.Converter
	logger     arbor.ILogger
	now        func() time.Time
}

// NewAggregator creates an aggregator. search may be unconfigured.
func NewAggregator(search interfaces.SearchClient, feed interfaces.FeedFetcher, config *common.SearchConfig, feedConfig *common.FeedConfig, logger arbor.ILogger) *Aggregator {
	return &Aggregator{
		search:     search,
		feed:       feed,
		config:     config,
		feedConfig: feedConfig,
		converter:  md.NewConverter("", true, nil),
		logger:     logger,
		now:        time.Now,
	}
}

// primarySlot is written by exactly one goroutine
type primarySlot struct {
	resp *models.SearchResponse
	err  error
}

// Gather never fails: sub-source errors are recorded in the result.
func (a *Aggregator) Gather(ctx context.Context, name string, opts NewsOptions) *models.IntelligenceResult {
	name = strings.TrimSpace(name)
	if opts.Days <= 0 {
		opts.Days = defaultDays
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = defaultNewsLimit
	}

	result := &models.IntelligenceResult{
		Query:        name,
		News:         []models.NewsItem{},
		KikDecisions: []models.DecisionItem{},
		Errors:       map[string]string{},
		GeneratedAt:  a.now().UTC(),
	}

	if a.search != nil && a.search.Configured() {
		result.PrimaryActive = true
		a.gatherPrimary(ctx, name, opts, result)
		a.gatherArchive(ctx, name, opts, result)
	} else {
		a.logger.Debug().Str("query", name).Msg("Search API not configured, using feed only")
	}

	a.gatherFeed(ctx, name, opts, result)

	sortNews(result.News)
	if len(result.News) > opts.MaxResults {
		result.News = result.News[:opts.MaxResults]
	}
	result.Totals = models.IntelTotals{
		News:         len(result.News),
		KikDecisions: len(result.KikDecisions),
	}
	if len(result.Errors) == 0 {
		result.Errors = nil
	}

	a.logger.Info().
		Str("query", name).
		Bool("primary_active", result.PrimaryActive).
		Int("primary", result.SourceCounts.Primary).
		Int("archive", result.SourceCounts.Archive).
		Int("feed", result.SourceCounts.Feed).
		Int("news", result.Totals.News).
		Int("errors", len(result.Errors)).
		Msg("Intelligence gathered")

	return result
}

func (a *Aggregator) gatherPrimary(ctx context.Context, name string, opts NewsOptions, result *models.IntelligenceResult) {
	queries := []string{fmt.Sprintf("%q", name)}
	if a.config.QualifierDomain != "" {
		queries = append(queries, fmt.Sprintf("%q ihale %s", name, a.config.QualifierDomain))
	}

	searchOpts := models.SearchOptions{
		MaxResults:    defaultMaxResults,
		IncludeAnswer: true,
		Topic:         "news",
		Days:          opts.Days,
	}

	slots := make([]primarySlot, len(queries))
	var g errgroup.Group
	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			resp, err := a.search.Search(ctx, q, searchOpts)
			slots[i] = primarySlot{resp: resp, err: err}
			return nil
		})
	}
	_ = g.Wait()

	var (
		responses []*models.SearchResponse
		failures  []string
	)
	for i, slot := range slots {
		if slot.err != nil {
			a.logger.Warn().Err(slot.err).Str("query", queries[i]).Msg("Search query failed")
			failures = append(failures, slot.err.Error())
			continue
		}
		responses = append(responses, slot.resp)
	}
	if len(failures) > 0 {
		result.Errors[SourceSearch] = strings.Join(failures, "; ")
	}

	merged, answer := mergeSearchResults(responses...)
	result.AISummary = answer
	news := make([]models.NewsItem, 0, len(merged))
	for _, r := range merged {
		if item := searchResultToNews(r); item.Title != "" && item.Link != "" {
			news = append(news, item)
		}
	}
	result.News, result.SourceCounts.Primary = appendUnique(result.News, news)
}

func (a *Aggregator) gatherArchive(ctx context.Context, name string, opts NewsOptions, result *models.IntelligenceResult) {
	if a.config.ArchiveDomain == "" {
		return
	}

	resp, err := a.search.Search(ctx, fmt.Sprintf("%q", name), models.SearchOptions{
		MaxResults: defaultMaxResults,
		Domains:    []string{a.config.ArchiveDomain},
	})
	if err != nil {
		a.logger.Warn().Err(err).Str("domain", a.config.ArchiveDomain).Msg("Archive search failed")
		result.Errors[SourceArchive] = err.Error()
		return
	}

	for _, r := range resp.Results {
		if strings.TrimSpace(r.URL) == "" {
			continue
		}
		score := r.Score
		result.KikDecisions = append(result.KikDecisions, models.DecisionItem{
			Title:       strings.TrimSpace(r.Title),
			Link:        strings.TrimSpace(r.URL),
			Snippet:     strings.TrimSpace(r.Content),
			Score:       &score,
			PublishedAt: parseLooseDate(r.PublishedDate),
		})
	}
	result.SourceCounts.Archive = len(result.KikDecisions)

	if opts.FetchDecisionText && a.config.MaxExtractURLs > 0 && len(result.KikDecisions) > 0 {
		a.attachExcerpts(ctx, result)
	}
}

func (a *Aggregator) attachExcerpts(ctx context.Context, result *models.IntelligenceResult) {
	limit := a.config.MaxExtractURLs
	if limit > len(result.KikDecisions) {
		limit = len(result.KikDecisions)
	}
	urls := make([]string, 0, limit)
	for _, d := range result.KikDecisions[:limit] {
		urls = append(urls, d.Link)
	}

	resp, err := a.search.Extract(ctx, urls)
	if err != nil {
		a.logger.Warn().Err(err).Int("urls", len(urls)).Msg("Decision text extraction failed")
		result.Errors[SourceExtract] = err.Error()
		return
	}
	if len(resp.FailedURLs) > 0 {
		a.logger.Debug().Strs("failed_urls", resp.FailedURLs).Msg("Some decision texts could not be fetched")
	}

	for i := range result.KikDecisions[:limit] {
		d := &result.KikDecisions[i]
		for _, r := range resp.Results {
			if sameURL(d.Link, r.URL) {
				d.Excerpt = excerpt(a.plainText(r.RawContent), a.config.ExcerptLength)
				break
			}
		}
	}
}

// plainText converts HTML content to markdown; text passes through unchanged
func (a *Aggregator) plainText(content string) string {
	if !strings.Contains(content, "<") {
		return content
	}
	text, err := a.converter.ConvertString(content)
	if err != nil {
		return content
	}
	return text
}

func (a *Aggregator) gatherFeed(ctx context.Context, name string, opts NewsOptions, result *models.IntelligenceResult) {
	if a.feed == nil || a.feedConfig.URLTemplate == "" {
		return
	}

	feedURL := FeedURL(a.feedConfig.URLTemplate, name, opts.Days)
	data, err := a.feed.FetchRSS(ctx, feedURL)
	if err == nil {
		var parsed []models.FeedItem
		parsed, err = ParseFeed(data)
		if err == nil {
			if a.feedConfig.MaxItems > 0 && len(parsed) > a.feedConfig.MaxItems {
				parsed = parsed[:a.feedConfig.MaxItems]
			}
			news := make([]models.NewsItem, 0, len(parsed))
			for _, it := range parsed {
				news = append(news, feedItemToNews(it))
			}
			result.News, result.SourceCounts.Feed = appendUnique(result.News, news)
			return
		}
	}

	if errors.Is(err, context.Canceled) {
		a.logger.Debug().Msg("Feed fetch cancelled")
	} else {
		a.logger.Warn().Err(err).Str("url", feedURL).Msg("News feed failed")
	}
	result.Errors[SourceFeed] = err.Error()
}
