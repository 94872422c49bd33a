package models

import "time"

// SourceType identifies which sub-source produced a news item
type SourceType string

const (
	SourceTypePrimary SourceType = "primary_search"
	SourceTypeArchive SourceType = "archive"
	SourceTypeFeed    SourceType = "feed"
)

// NewsItem is one discovered mention of a contractor. Not persisted.
type NewsItem struct {
	Title        string     `json:"title"`
	Link         string     `json:"link"`
	PublishedAt  *time.Time `json:"published_at,omitempty"`
	SourceDomain string     `json:"source_domain,omitempty"`
	Snippet      string     `json:"snippet,omitempty"`
	SourceType   SourceType `json:"source_type"`
	Score        *float64   `json:"score,omitempty"` // primary search only
}

// DecisionItem is a regulatory-decision record found in the archive source
type DecisionItem struct {
	Title       string     `json:"title"`
	Link        string     `json:"link"`
	Snippet     string     `json:"snippet,omitempty"`
	Excerpt     string     `json:"excerpt,omitempty"` // trimmed full text when fetched
	Score       *float64   `json:"score,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// SourceCounts reports how many items each sub-source contributed
type SourceCounts struct {
	Primary int `json:"primary"`
	Archive int `json:"archive"`
	Feed    int `json:"feed"`
}

// IntelTotals are the sizes of the returned lists after merge and truncation
type IntelTotals struct {
	News         int `json:"news"`
	KikDecisions int `json:"kik_decisions"`
}

// IntelligenceResult is the merged news/intelligence answer for one contractor
type IntelligenceResult struct {
	Query         string            `json:"query"`
	News          []NewsItem        `json:"news"`
	KikDecisions  []DecisionItem    `json:"kik_decisions"`
	AISummary     string            `json:"ai_summary,omitempty"`
	Totals        IntelTotals       `json:"totals"`
	SourceCounts  SourceCounts      `json:"source_counts"`
	PrimaryActive bool              `json:"primary_active"`
	Errors        map[string]string `json:"errors,omitempty"` // sub-source -> message
	GeneratedAt   time.Time         `json:"generated_at"`
}

// SearchOptions are the knobs of one search API call
type SearchOptions struct {
	Depth             string   `json:"search_depth,omitempty"` // basic | advanced
	MaxResults        int      `json:"max_results,omitempty"`
	IncludeAnswer     bool     `json:"include_answer"`
	IncludeRawContent bool     `json:"include_raw_content"`
	Domains           []string `json:"include_domains,omitempty"`
	Topic             string   `json:"topic,omitempty"` // general | news
	Days              int      `json:"days,omitempty"`
}

// SearchResult is one hit of the search API
type SearchResult struct {
	Title         string  `json:"title"`
	URL           string  `json:"url"`
	Content       string  `json:"content"`
	Score         float64 `json:"score"`
	PublishedDate string  `json:"published_date,omitempty"`
}

// SearchResponse is the decoded search API answer
type SearchResponse struct {
	Query   string         `json:"query"`
	Answer  string         `json:"answer,omitempty"`
	Results []SearchResult `json:"results"`
}

// ExtractResult is the full text of one URL
type ExtractResult struct {
	URL        string `json:"url"`
	RawContent string `json:"raw_content"`
}

// ExtractResponse is the decoded extract API answer
type ExtractResponse struct {
	Results    []ExtractResult `json:"results"`
	FailedURLs []string        `json:"failed_urls"`
}

// FeedItem is one RSS item after parsing
type FeedItem struct {
	Title       string     `json:"title"`
	Link        string     `json:"link"`
	Source      string     `json:"source,omitempty"`
	Description string     `json:"description,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// ContractorIntel is the news answer for one stored contractor, joined with
// its reconciled tender history
type ContractorIntel struct {
	Contractor   *Contractor            `json:"contractor"`
	Intelligence *IntelligenceResult    `json:"intelligence"`
	History      []*TenderHistoryRecord `json:"history"`
}
