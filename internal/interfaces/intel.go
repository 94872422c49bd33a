package interfaces

import (
	"context"

	"github.com/ternarybob/tenderintel/internal/models"
)

// SearchClient is the web search/extract API
type SearchClient interface {
	// Configured reports whether calls can be attempted at all
	Configured() bool

	Search(ctx context.Context, query string, opts models.SearchOptions) (*models.SearchResponse, error)

	// Extract fetches full text for urls; failures are reported per URL, not as an error
	Extract(ctx context.Context, urls []string) (*models.ExtractResponse, error)
}

// FeedFetcher downloads a raw RSS document
type FeedFetcher interface {
	FetchRSS(ctx context.Context, url string) ([]byte, error)
}
