package intel

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tenderintel/internal/common"
	"github.com/ternarybob/tenderintel/internal/interfaces"
	"github.com/ternarybob/tenderintel/internal/models"
)

type rssFeed struct {
	XMLName xml.Name   `xml:"rss"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title string    `xml:"title"`
	Items []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string    `xml:"title"`
	Link        string    `xml:"link"`
	Description string    `xml:"description"`
	PubDate     string    `xml:"pubDate"`
	Source      rssSource `xml:"source"`
}

type rssSource struct {
	URL  string `xml:"url,attr"`
	Name string `xml:",chardata"`
}

var pubDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 MST",
	"Mon, 2 Jan 2006 15:04:05 -0700",
}

// FeedClient downloads RSS documents over HTTP
type FeedClient struct {
	client *resty.Client
	logger arbor.ILogger
}

var _ interfaces.FeedFetcher = (*FeedClient)(nil)

// NewFeedClient creates a feed fetcher
func NewFeedClient(config *common.FeedConfig, logger arbor.ILogger) *FeedClient {
	client := resty.New().
		SetTimeout(common.ParseDuration(config.Timeout, 10*time.Second)).
		SetHeader("Accept", "application/rss+xml, application/xml;q=0.9, */*;q=0.8").
		SetHeader("User-Agent", "tenderintel/"+common.Version)

	return &FeedClient{client: client, logger: logger}
}

// FetchRSS returns the raw feed body
func (f *FeedClient) FetchRSS(ctx context.Context, feedURL string) ([]byte, error) {
	resp, err := f.client.R().SetContext(ctx).Get(feedURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode())
	}

	f.logger.Debug().
		Str("url", feedURL).
		Int("bytes", len(resp.Body())).
		Msg("Feed fetched")

	return resp.Body(), nil
}

// FeedURL builds the feed query for an exact-phrase name restricted to the
// last days days. days <= 0 drops the recency filter.
func FeedURL(template, name string, days int) string {
	query := fmt.Sprintf("%q", strings.TrimSpace(name))
	if days > 0 {
		query = fmt.Sprintf("%s when:%dd", query, days)
	}
	return fmt.Sprintf(template, url.QueryEscape(query))
}

// ParseFeed decodes an RSS 2.0 document. Items without a title or link are
// dropped; an unparseable pubDate leaves PublishedAt nil.
func ParseFeed(data []byte) ([]models.FeedItem, error) {
	var feed rssFeed
	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.Strict = false
	if err := decoder.Decode(&feed); err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	items := make([]models.FeedItem, 0, len(feed.Channel.Items))
	for _, it := range feed.Channel.Items {
		title := strings.TrimSpace(it.Title)
		link := strings.TrimSpace(it.Link)
		if title == "" || link == "" {
			continue
		}

		item := models.FeedItem{
			Title:       title,
			Link:        link,
			Source:      strings.TrimSpace(it.Source.Name),
			Description: htmlToText(it.Description),
			PublishedAt: parsePubDate(it.PubDate),
		}
		if item.Source == "" {
			item.Source = hostOf(it.Source.URL)
		}
		items = append(items, item)
	}
	return items, nil
}

func parsePubDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range pubDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func htmlToText(fragment string) string {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return fragment
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func hostOf(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}
