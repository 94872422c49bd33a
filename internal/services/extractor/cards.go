package extractor

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tenderintel/internal/models"
)

const (
	cardSelector       = ".card.border-secondary.my-2.mx-1"
	detailLinkSelector = `a[href*="/tender/"]`
	archivalSelector   = ".badge.text-info"
	locationSelector   = ".text-dark-emphasis.fw-medium.text-nowrap"
	pageOptionSelector = `select[name="page"] option`
)

var detailIDPattern = regexp.MustCompile(`/tender/(\d+)$`)

// CardFilter decides which cards a crawl is interested in
type CardFilter int

const (
	// RequireDetailLink keeps cards that link to a tender detail page (history crawls)
	RequireDetailLink CardFilter = iota
	// RequireContractor keeps cards naming an unmasked contractor (list crawl)
	RequireContractor
)

// PageResult is the outcome of parsing one search-result page
type PageResult struct {
	Cards      []models.TenderCard
	CardCount  int // cards matched by the selector, before filtering
	Errors     int // cards that failed to parse
	PageOption int // number of options in the page selector, 0 when absent
}

// HasNextPage reports whether the page selector offers a page after current
func (r *PageResult) HasNextPage(current int) bool {
	return current < r.PageOption
}

// Extractor parses portal search-result pages
type Extractor struct {
	baseURL *url.URL
	logger  arbor.ILogger
}

// NewExtractor creates an extractor resolving relative links against baseURL
func NewExtractor(baseURL string, logger arbor.ILogger) (*Extractor, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}
	return &Extractor{baseURL: u, logger: logger}, nil
}

// ParsePage extracts every card on a search-result page.
// A card that fails to parse is counted and skipped.
func (e *Extractor) ParsePage(html string, filter CardFilter) (*PageResult, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	result := &PageResult{
		PageOption: doc.Find(pageOptionSelector).Length(),
	}

	cards := doc.Find(cardSelector)
	result.CardCount = cards.Length()

	cards.Each(func(i int, s *goquery.Selection) {
		card, ok, err := e.parseCard(s, filter)
		if err != nil {
			result.Errors++
			e.logger.Debug().Err(err).Int("card", i).Msg("Skipping malformed card")
			return
		}
		if ok {
			result.Cards = append(result.Cards, card)
		}
	})

	return result, nil
}

// parseCard returns ok=false for cards the filter excludes
func (e *Extractor) parseCard(s *goquery.Selection, filter CardFilter) (card models.TenderCard, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic parsing card: %v", r)
		}
	}()

	text := s.Text()
	card = ParseCardText(text)

	externalID, detailURL, title := e.detailLink(s)
	card.ExternalID = externalID
	card.DetailURL = detailURL
	card.Title = title

	if badge := strings.TrimSpace(s.Find(archivalSelector).First().Text()); badge != "" {
		archival := strings.TrimPrefix(badge, "#")
		card.ArchivalNumber = &archival
	}

	var slots []string
	s.Find(locationSelector).Each(func(_ int, loc *goquery.Selection) {
		slots = append(slots, loc.Text())
	})
	card.City = PickCity(slots)

	switch filter {
	case RequireContractor:
		if card.ContractorName == nil || *card.ContractorName == "" || IsMaskedName(*card.ContractorName) {
			return card, false, nil
		}
	default:
		if card.ExternalID == "" {
			return card, false, nil
		}
		if card.Title == "" {
			return card, false, fmt.Errorf("detail link %s has no title", card.ExternalID)
		}
	}

	return card, true, nil
}

// detailLink finds the first link whose path ends in /tender/{id}
func (e *Extractor) detailLink(s *goquery.Selection) (externalID, detailURL, title string) {
	s.Find(detailLinkSelector).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		resolved := e.resolve(href)
		m := detailIDPattern.FindStringSubmatch(resolved)
		if m == nil {
			return true
		}
		externalID = m[1]
		detailURL = resolved
		title = collapseSpaces(a.Text())
		return false
	})
	return externalID, detailURL, title
}

func (e *Extractor) resolve(href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	resolved := e.baseURL.ResolveReference(ref)
	resolved.RawQuery = ""
	resolved.Fragment = ""
	return resolved.String()
}
