package intel

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tenderintel/internal/common"
	"github.com/ternarybob/tenderintel/internal/interfaces"
	"github.com/ternarybob/tenderintel/internal/models"
)

type fakeSearch struct {
	mu         sync.Mutex
	configured bool
	responses  map[string]*models.SearchResponse // keyed by query
	failures   map[string]error
	archive    *models.SearchResponse
	archiveErr error
	extract    *models.ExtractResponse
	extractErr error
	queries    []string
	extracted  []string
}

func (f *fakeSearch) Configured() bool { return f.configured }

func (f *fakeSearch) Search(ctx context.Context, query string, opts models.SearchOptions) (*models.SearchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	if len(opts.Domains) > 0 {
		return f.archive, f.archiveErr
	}
	if err := f.failures[query]; err != nil {
		return nil, err
	}
	if resp := f.responses[query]; resp != nil {
		return resp, nil
	}
	return &models.SearchResponse{}, nil
}

func (f *fakeSearch) Extract(ctx context.Context, urls []string) (*models.ExtractResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.extracted = append(f.extracted, urls...)
	return f.extract, f.extractErr
}

type fakeFeed struct {
	body []byte
	err  error
	urls []string
}

func (f *fakeFeed) FetchRSS(ctx context.Context, url string) ([]byte, error) {
	f.urls = append(f.urls, url)
	return f.body, f.err
}

func newAggregator(search interfaces.SearchClient, feed interfaces.FeedFetcher) *Aggregator {
	config := common.NewDefaultConfig()
	a := NewAggregator(search, feed, &config.Search, &config.Feed, arbor.NewLogger())
	a.now = func() time.Time { return time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC) }
	return a
}

func rssWith(items ...string) []byte {
	return []byte(`<rss version="2.0"><channel>` + strings.Join(items, "") + `</channel></rss>`)
}

func rssItemXML(title, link, pubDate string) string {
	return "<item><title>" + title + "</title><link>" + link + "</link><pubDate>" + pubDate + "</pubDate></item>"
}

func TestGather_UnconfiguredFallsBackToFeed(t *testing.T) {
	feed := &fakeFeed{body: rssWith(
		rssItemXML("ABC Yapı ihale aldı", "https://n.test/1", "Tue, 05 Mar 2024 08:00:00 GMT"),
		rssItemXML("ABC Yapı yeni proje", "https://n.test/2", "Wed, 06 Mar 2024 08:00:00 GMT"),
	)}
	search := &fakeSearch{configured: false}

	result := newAggregator(search, feed).Gather(context.Background(), "ABC Yapı", NewsOptions{})

	assert.False(t, result.PrimaryActive)
	assert.Equal(t, 0, result.SourceCounts.Primary)
	assert.Equal(t, 2, result.SourceCounts.Feed)
	assert.Empty(t, search.queries)
	assert.Nil(t, result.Errors)
	require.Len(t, result.News, 2)
	assert.Equal(t, "https://n.test/2", result.News[0].Link)
	assert.Equal(t, 2, result.Totals.News)
	require.Len(t, feed.urls, 1)
	assert.Contains(t, feed.urls[0], "when%3A30d")
}

func TestGather_NilSearchClient(t *testing.T) {
	feed := &fakeFeed{body: rssWith(rssItemXML("X", "https://n.test/x", ""))}
	result := newAggregator(nil, feed).Gather(context.Background(), "X", NewsOptions{})
	assert.False(t, result.PrimaryActive)
	assert.Equal(t, 1, result.SourceCounts.Feed)
}

func TestGather_MergesAndDedupes(t *testing.T) {
	search := &fakeSearch{
		configured: true,
		responses: map[string]*models.SearchResponse{
			`"ABC Yapı"`: {
				Answer: "ABC Yapı is a contractor.",
				Results: []models.SearchResult{
					{Title: "ABC Yapı, ihaleyi kazandı!", URL: "https://a.test/1", Score: 0.5},
					{Title: "Shared", URL: "https://a.test/shared", Score: 0.9},
				},
			},
			`"ABC Yapı" ihale kik.gov.tr`: {
				Answer: "second answer",
				Results: []models.SearchResult{
					{Title: "Shared again", URL: "https://a.test/shared", Score: 0.8},
					{Title: "Other", URL: "https://a.test/2", Score: 0.7},
				},
			},
		},
		archive: &models.SearchResponse{},
	}
	feed := &fakeFeed{body: rssWith(
		rssItemXML("abc yapı ihaleyi kazandı", "https://feed.test/dup-title", "Tue, 05 Mar 2024 08:00:00 GMT"),
		rssItemXML("Duplicate link", "https://a.test/2", ""),
		rssItemXML("Fresh feed story", "https://feed.test/new", "Tue, 05 Mar 2024 08:00:00 GMT"),
	)}

	result := newAggregator(search, feed).Gather(context.Background(), "ABC Yapı", NewsOptions{})

	assert.True(t, result.PrimaryActive)
	assert.Equal(t, "ABC Yapı is a contractor.", result.AISummary)
	assert.Equal(t, 3, result.SourceCounts.Primary)
	assert.Equal(t, 1, result.SourceCounts.Feed)

	links := make([]string, 0, len(result.News))
	for _, n := range result.News {
		links = append(links, n.Link)
	}
	assert.Equal(t, []string{"https://a.test/shared", "https://a.test/2", "https://a.test/1", "https://feed.test/new"}, links)
	assert.Equal(t, models.SourceTypeFeed, result.News[3].SourceType)
}

func TestGather_TruncatesToMaxResults(t *testing.T) {
	var items []string
	for _, d := range []string{"01", "02", "03", "04"} {
		items = append(items, rssItemXML("Story "+d, "https://n.test/"+d, "Fri, "+d+" Mar 2024 08:00:00 GMT"))
	}
	result := newAggregator(&fakeSearch{}, &fakeFeed{body: rssWith(items...)}).
		Gather(context.Background(), "X", NewsOptions{MaxResults: 2})

	require.Len(t, result.News, 2)
	assert.Equal(t, "https://n.test/04", result.News[0].Link)
	assert.Equal(t, 2, result.Totals.News)
	assert.Equal(t, 4, result.SourceCounts.Feed)
}

func TestGather_PartialFailures(t *testing.T) {
	search := &fakeSearch{
		configured: true,
		responses: map[string]*models.SearchResponse{
			`"ABC"`: {Results: []models.SearchResult{{Title: "Ok", URL: "https://a.test/ok", Score: 0.4}}},
		},
		failures: map[string]error{
			`"ABC" ihale kik.gov.tr`: errors.New("quota exceeded"),
		},
		archiveErr: errors.New("archive down"),
	}
	feed := &fakeFeed{err: errors.New("feed unreachable")}

	result := newAggregator(search, feed).Gather(context.Background(), "ABC", NewsOptions{FetchDecisionText: true})

	require.Len(t, result.News, 1)
	assert.Equal(t, 1, result.SourceCounts.Primary)
	assert.Equal(t, 0, result.SourceCounts.Archive)
	assert.Contains(t, result.Errors[SourceSearch], "quota exceeded")
	assert.Equal(t, "archive down", result.Errors[SourceArchive])
	assert.Equal(t, "feed unreachable", result.Errors[SourceFeed])
	assert.Empty(t, search.extracted)
}

func TestGather_DecisionExcerpts(t *testing.T) {
	long := "<p>" + strings.Repeat("karar metni ", 100) + "</p>"
	search := &fakeSearch{
		configured: true,
		archive: &models.SearchResponse{Results: []models.SearchResult{
			{Title: "Karar 1", URL: "https://ekap.kik.gov.tr/k/1", Score: 0.9},
			{Title: "Karar 2", URL: "https://ekap.kik.gov.tr/k/2", Score: 0.8},
			{Title: "Karar 3", URL: "https://ekap.kik.gov.tr/k/3", Score: 0.7},
			{Title: "Karar 4", URL: "https://ekap.kik.gov.tr/k/4", Score: 0.6},
		}},
		extract: &models.ExtractResponse{
			Results:    []models.ExtractResult{{URL: "https://ekap.kik.gov.tr/k/1/", RawContent: long}},
			FailedURLs: []string{"https://ekap.kik.gov.tr/k/2"},
		},
	}

	result := newAggregator(search, &fakeFeed{body: rssWith()}).
		Gather(context.Background(), "ABC", NewsOptions{FetchDecisionText: true})

	require.Len(t, result.KikDecisions, 4)
	assert.Equal(t, 4, result.SourceCounts.Archive)
	assert.Equal(t, 4, result.Totals.KikDecisions)
	assert.Len(t, search.extracted, 3)

	ex := result.KikDecisions[0].Excerpt
	assert.True(t, strings.HasPrefix(ex, "karar metni karar"))
	assert.LessOrEqual(t, len([]rune(ex)), 501)
	assert.NotContains(t, ex, "<p>")
	assert.Empty(t, result.KikDecisions[1].Excerpt)
}

func TestGather_ExtractFailureKeepsDecisions(t *testing.T) {
	search := &fakeSearch{
		configured: true,
		archive:    &models.SearchResponse{Results: []models.SearchResult{{Title: "K", URL: "https://ekap.kik.gov.tr/k/1"}}},
		extractErr: errors.New("extract timeout"),
	}
	result := newAggregator(search, &fakeFeed{body: rssWith()}).
		Gather(context.Background(), "ABC", NewsOptions{FetchDecisionText: true})

	require.Len(t, result.KikDecisions, 1)
	assert.Equal(t, "extract timeout", result.Errors[SourceExtract])
}
