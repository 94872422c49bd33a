package intel

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/tenderintel/internal/common"
	"github.com/ternarybob/tenderintel/internal/interfaces"
	"github.com/ternarybob/tenderintel/internal/models"
)

const (
	defaultMaxResults = 5
	maxExtractBatch   = 5
)

// SearchClient talks to a Tavily compatible search/extract API
type SearchClient struct {
	client  *resty.Client
	apiKey  string
	depth   string
	limiter *rate.Limiter
	retry   *RetryPolicy
	logger  arbor.ILogger
}

var _ interfaces.SearchClient = (*SearchClient)(nil)

type searchRequest struct {
	APIKey            string   `json:"api_key"`
	Query             string   `json:"query"`
	SearchDepth       string   `json:"search_depth"`
	MaxResults        int      `json:"max_results"`
	IncludeAnswer     bool     `json:"include_answer"`
	IncludeRawContent bool     `json:"include_raw_content"`
	IncludeDomains    []string `json:"include_domains,omitempty"`
	Topic             string   `json:"topic,omitempty"`
	Days              int      `json:"days,omitempty"`
}

type extractRequest struct {
	APIKey string   `json:"api_key"`
	URLs   []string `json:"urls"`
}

type extractPayload struct {
	Results       []models.ExtractResult `json:"results"`
	FailedResults []struct {
		URL   string `json:"url"`
		Error string `json:"error"`
	} `json:"failed_results"`
}

// NewSearchClient creates a search client from config. An empty API key
// yields a client whose calls fail fast with ErrNotConfigured.
func NewSearchClient(config *common.SearchConfig, logger arbor.ILogger) *SearchClient {
	client := resty.New().
		SetBaseURL(strings.TrimRight(config.BaseURL, "/")).
		SetTimeout(common.ParseDuration(config.Timeout, 15*time.Second)).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	rps := config.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}

	retry := NewRetryPolicy()
	if config.MaxAttempts > 0 {
		retry.MaxAttempts = config.MaxAttempts
	}

	depth := config.Depth
	if depth == "" {
		depth = "basic"
	}

	return &SearchClient{
		client:  client,
		apiKey:  strings.TrimSpace(config.APIKey),
		depth:   depth,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		retry:   retry,
		logger:  logger,
	}
}

// Configured reports whether an API key is present
func (c *SearchClient) Configured() bool {
	return c.apiKey != ""
}

// Search runs one query
func (c *SearchClient) Search(ctx context.Context, query string, opts models.SearchOptions) (*models.SearchResponse, error) {
	if !c.Configured() {
		return nil, interfaces.ErrNotConfigured
	}

	body := searchRequest{
		APIKey:            c.apiKey,
		Query:             query,
		SearchDepth:       opts.Depth,
		MaxResults:        opts.MaxResults,
		IncludeAnswer:     opts.IncludeAnswer,
		IncludeRawContent: opts.IncludeRawContent,
		IncludeDomains:    opts.Domains,
		Topic:             opts.Topic,
		Days:              opts.Days,
	}
	if body.SearchDepth == "" {
		body.SearchDepth = c.depth
	}
	if body.MaxResults <= 0 {
		body.MaxResults = defaultMaxResults
	}

	var result models.SearchResponse
	if err := c.post(ctx, "/search", body, &result); err != nil {
		return nil, fmt.Errorf("search %q failed: %w", query, err)
	}

	c.logger.Debug().
		Str("query", query).
		Int("results", len(result.Results)).
		Bool("has_answer", result.Answer != "").
		Msg("Search completed")

	return &result, nil
}

// Extract fetches page text for up to five URLs in one call
func (c *SearchClient) Extract(ctx context.Context, urls []string) (*models.ExtractResponse, error) {
	if !c.Configured() {
		return nil, interfaces.ErrNotConfigured
	}
	if len(urls) == 0 {
		return &models.ExtractResponse{}, nil
	}
	if len(urls) > maxExtractBatch {
		urls = urls[:maxExtractBatch]
	}

	var payload extractPayload
	if err := c.post(ctx, "/extract", extractRequest{APIKey: c.apiKey, URLs: urls}, &payload); err != nil {
		return nil, fmt.Errorf("extract failed: %w", err)
	}

	resp := &models.ExtractResponse{Results: payload.Results}
	for _, failed := range payload.FailedResults {
		resp.FailedURLs = append(resp.FailedURLs, failed.URL)
	}
	return resp, nil
}

func (c *SearchClient) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	_, err := c.retry.Do(ctx, c.logger, func() (int, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, err
		}

		resp, err := c.client.R().
			SetContext(ctx).
			SetBody(body).
			SetResult(out).
			Post(path)
		if err != nil {
			return 0, err
		}
		if resp.IsError() {
			return resp.StatusCode(), fmt.Errorf("unexpected status %d: %s", resp.StatusCode(), truncate(resp.String(), 200))
		}
		return resp.StatusCode(), nil
	})
	return err
}

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n])
}
