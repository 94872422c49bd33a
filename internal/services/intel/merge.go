package intel

import (
	"net/url"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/ternarybob/tenderintel/internal/common"
	"github.com/ternarybob/tenderintel/internal/models"
)

// NormalizeNewsTitle folds case (Turkish aware), strips punctuation and
// symbols and collapses whitespace, so headline variants compare equal.
func NormalizeNewsTitle(title string) string {
	folded := common.FoldTR(title)
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		switch {
		case unicode.IsPunct(r), unicode.IsSymbol(r):
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// mergeSearchResults folds several responses into one list keyed by URL.
// The first non-empty answer wins.
func mergeSearchResults(responses ...*models.SearchResponse) ([]models.SearchResult, string) {
	var (
		merged []models.SearchResult
		answer string
		seen   = make(map[string]bool)
	)
	for _, resp := range responses {
		if resp == nil {
			continue
		}
		if answer == "" {
			answer = strings.TrimSpace(resp.Answer)
		}
		for _, r := range resp.Results {
			key := strings.TrimSpace(r.URL)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			merged = append(merged, r)
		}
	}
	return merged, answer
}

func searchResultToNews(r models.SearchResult) models.NewsItem {
	score := r.Score
	return models.NewsItem{
		Title:        strings.TrimSpace(r.Title),
		Link:         strings.TrimSpace(r.URL),
		PublishedAt:  parseLooseDate(r.PublishedDate),
		SourceDomain: hostOf(r.URL),
		Snippet:      strings.TrimSpace(r.Content),
		SourceType:   models.SourceTypePrimary,
		Score:        &score,
	}
}

func feedItemToNews(it models.FeedItem) models.NewsItem {
	domain := it.Source
	if domain == "" {
		domain = hostOf(it.Link)
	}
	return models.NewsItem{
		Title:        it.Title,
		Link:         it.Link,
		PublishedAt:  it.PublishedAt,
		SourceDomain: domain,
		Snippet:      it.Description,
		SourceType:   models.SourceTypeFeed,
	}
}

// appendUnique adds candidates whose link and normalized title are both
// unseen. It returns the grown list and how many were added.
func appendUnique(items []models.NewsItem, candidates []models.NewsItem) ([]models.NewsItem, int) {
	links := make(map[string]bool, len(items))
	titles := make(map[string]bool, len(items))
	for _, it := range items {
		links[it.Link] = true
		if t := NormalizeNewsTitle(it.Title); t != "" {
			titles[t] = true
		}
	}

	added := 0
	for _, c := range candidates {
		title := NormalizeNewsTitle(c.Title)
		if links[c.Link] || (title != "" && titles[title]) {
			continue
		}
		links[c.Link] = true
		if title != "" {
			titles[title] = true
		}
		items = append(items, c)
		added++
	}
	return items, added
}

// sortNews orders scored items first by score descending, then everything
// by publication date descending with undated items last.
func sortNews(items []models.NewsItem) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if (a.Score != nil) != (b.Score != nil) {
			return a.Score != nil
		}
		if a.Score != nil && *a.Score != *b.Score {
			return *a.Score > *b.Score
		}
		if (a.PublishedAt != nil) != (b.PublishedAt != nil) {
			return a.PublishedAt != nil
		}
		if a.PublishedAt != nil && !a.PublishedAt.Equal(*b.PublishedAt) {
			return a.PublishedAt.After(*b.PublishedAt)
		}
		return false
	})
}

var looseDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

func parseLooseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range looseDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// excerpt trims text to at most n runes on a word boundary
func excerpt(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	if n <= 0 {
		return ""
	}
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	cut := string(r[:n])
	if i := strings.LastIndex(cut, " "); i > n/2 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut) + "…"
}

func sameURL(a, b string) bool {
	ua, errA := url.Parse(strings.TrimSpace(a))
	ub, errB := url.Parse(strings.TrimSpace(b))
	if errA != nil || errB != nil {
		return strings.TrimSpace(a) == strings.TrimSpace(b)
	}
	return strings.EqualFold(ua.Host, ub.Host) &&
		strings.TrimRight(ua.Path, "/") == strings.TrimRight(ub.Path, "/") &&
		ua.RawQuery == ub.RawQuery
}
