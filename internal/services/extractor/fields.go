package extractor

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ternarybob/tenderintel/internal/models"
)

// Label-anchored patterns over card text
var (
	authorityPattern     = regexp.MustCompile(`(?i)(?:İdare adı|İdarenin adı)[:\s]+([^\n]+)`)
	contractValuePattern = regexp.MustCompile(`(?i)Sözleşme bedeli:\s*₺?([\d.,]+)`)
	estimatedCostPattern = regexp.MustCompile(`(?i)Yaklaşık maliyet:\s*₺?([\d.,]+)`)
	discountPattern      = regexp.MustCompile(`%\s*([\d.,]+)`)
	contractDatePattern  = regexp.MustCompile(`(?i)Sözleşme tarihi:\s*([\d.]+)`)
	startDatePattern     = regexp.MustCompile(`(?i)İş başlangıç:\s*([\d.]+)`)
	endDatePattern       = regexp.MustCompile(`(?i)İş bitiş:\s*([\d.]+)`)
	terminationPattern   = regexp.MustCompile(`(?i)Fesih[:\s]+([^\n]+)`)
	contractorPattern    = regexp.MustCompile(`(?i)Yüklenici adı:\s*([^\n₺]+)`)
	whitespacePattern    = regexp.MustCompile(`\s+`)
)

// Texts that share the location slot on a card but are not cities
var nonLocationTexts = []string{
	"Ekap", "Gazete", "İstihbarat", "Özel Sektör",
	"Açık ihale", "Belli istekliler", "Pazarlık", "Doğrudan",
}

const maxCityLength = 30

// ParseCardText recovers every label-anchored field from a card's text.
// DOM-only fields (external id, title link, archival badge, city) are left empty.
func ParseCardText(text string) models.TenderCard {
	card := models.TenderCard{}

	if v := firstGroup(authorityPattern, text); v != "" {
		card.Authority = &v
	}
	if v := firstGroup(contractorPattern, text); v != "" {
		name := collapseSpaces(v)
		card.ContractorName = &name
	}

	card.ContractValue = ParseAmount(firstGroup(contractValuePattern, text))
	card.EstimatedCost = ParseAmount(firstGroup(estimatedCostPattern, text))
	card.DiscountRate = ParsePercent(firstGroup(discountPattern, text))

	card.ContractDate = ParseDateDMY(firstGroup(contractDatePattern, text))
	card.StartDate = ParseDateDMY(firstGroup(startDatePattern, text))
	card.EndDate = ParseDateDMY(firstGroup(endDatePattern, text))

	card.Markers = ParseMarkers(text)

	return card
}

// ParseMarkers finds the literal status cues in text
func ParseMarkers(text string) models.Markers {
	m := models.Markers{
		Completed: strings.Contains(text, "Tamamlandı"),
		Ongoing: strings.Contains(text, "Devam Ediyor") ||
			strings.Contains(text, "Sözleşme Devam") ||
			strings.Contains(text, "İş Devam"),
		Cancelled: strings.Contains(text, "İptal"),
	}
	if note := firstGroup(terminationPattern, text); note != "" {
		m.TerminationNote = &note
	}
	return m
}

// HasTermination reports whether the termination note names an actual termination
func HasTermination(m models.Markers) bool {
	return m.TerminationNote != nil && strings.ToLower(strings.TrimSpace(*m.TerminationNote)) != "yok"
}

// DeriveStatus applies the fixed precedence:
// termination note > cancelled > completed > ongoing > contract value present > unknown.
func DeriveStatus(m models.Markers, hasContractValue bool) models.Status {
	if HasTermination(m) {
		return models.StatusCancelled
	}

	status := models.StatusUnknown
	for _, candidate := range []struct {
		set    bool
		status models.Status
	}{
		{m.Ongoing, models.StatusOngoing},
		{m.Completed, models.StatusCompleted},
		{m.Cancelled, models.StatusCancelled},
	} {
		if candidate.set && candidate.status.Priority() > status.Priority() {
			status = candidate.status
		}
	}

	// Cards without a marker but with a contract value are mostly finished work.
	// Known source of misclassification for contracts still running.
	if status == models.StatusUnknown && hasContractValue {
		status = models.StatusCompleted
	}

	return status
}

// ParseAmount parses a Turkish-formatted amount ("1.234.567,89") into a float.
// Dots are thousands separators, the comma is the decimal mark.
func ParseAmount(raw string) *float64 {
	if raw == "" {
		return nil
	}
	normalized := strings.Replace(strings.ReplaceAll(raw, ".", ""), ",", ".", 1)
	return parseLeadingFloat(normalized)
}

// ParsePercent parses a percentage figure ("12,5" or "12.50")
func ParsePercent(raw string) *float64 {
	if raw == "" {
		return nil
	}
	return parseLeadingFloat(strings.Replace(raw, ",", ".", 1))
}

// parseLeadingFloat parses the longest numeric prefix of s (digits with at most one dot)
func parseLeadingFloat(s string) *float64 {
	end := 0
	seenDot := false
	for end < len(s) {
		c := s[end]
		if c >= '0' && c <= '9' {
			end++
			continue
		}
		if c == '.' && !seenDot {
			seenDot = true
			end++
			continue
		}
		break
	}
	prefix := strings.TrimSuffix(s[:end], ".")
	if prefix == "" {
		return nil
	}
	v, err := strconv.ParseFloat(prefix, 64)
	if err != nil {
		return nil
	}
	return &v
}

// ParseDateDMY parses DD.MM.YYYY into a UTC date; invalid dates yield nil
func ParseDateDMY(raw string) *time.Time {
	raw = strings.Trim(raw, ".")
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return nil
	}

	day, err1 := strconv.Atoi(parts[0])
	month, err2 := strconv.Atoi(parts[1])
	year, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil || year < 1900 {
		return nil
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes overflow; reject 31.02 and friends
	if t.Day() != day || int(t.Month()) != month {
		return nil
	}
	return &t
}

// PickCity applies the positional heuristic over the card's short text slots:
// drop empty, long and non-location texts, then take the second survivor, else the first.
func PickCity(slots []string) *string {
	var candidates []string
	for _, slot := range slots {
		slot = strings.TrimSpace(slot)
		if slot == "" || utf8.RuneCountInString(slot) > maxCityLength || isNonLocation(slot) {
			continue
		}
		candidates = append(candidates, slot)
	}

	switch {
	case len(candidates) >= 2:
		return &candidates[1]
	case len(candidates) == 1:
		return &candidates[0]
	default:
		return nil
	}
}

func isNonLocation(text string) bool {
	for _, nl := range nonLocationTexts {
		if strings.Contains(text, nl) {
			return true
		}
	}
	return false
}

// IsMaskedName reports whether the portal hid the name from a non-member session
func IsMaskedName(name string) bool {
	return strings.Contains(name, "***")
}

func firstGroup(re *regexp.Regexp, text string) string {
	m := re.FindStringSubmatch(text)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func collapseSpaces(s string) string {
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(s, " "))
}
