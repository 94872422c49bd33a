package extractor

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/tenderintel/internal/common"
	"github.com/ternarybob/tenderintel/internal/models"
)

var (
	pastTendersPattern    = regexp.MustCompile(`(?i)Geçmiş ihaleler\s*(\d+)`)
	ongoingPattern        = regexp.MustCompile(`(?i)Devam eden\s*(\d+)\s*İhale\s*₺?([\d.,]+)?`)
	completedPattern      = regexp.MustCompile(`(?i)Tamamlanan\s*(\d+)\s*İhale\s*₺?([\d.,]+)?`)
	workCompletionPattern = regexp.MustCompile(`(?i)Toplam iş bitirme[^₺]*?(\d+)\s*Sözleşme\s*₺?([\d.,]+)`)
	totalContractsPattern = regexp.MustCompile(`(?i)Toplam sözleşme\s*(\d+)\s*Sözleşme\s*₺?([\d.,]+)`)
	yearlyAveragePattern  = regexp.MustCompile(`(?i)Yıllık ortalama\s*(\d+)\s*Sözleşme\s*₺?([\d.,]+)`)
	avgDiscountPattern    = regexp.MustCompile(`(?i)Ortalama tenzilat\s*\+?([\d.,]+)%`)
	avgDurationPattern    = regexp.MustCompile(`(?i)Ortalama sözleşme süresi\s*(\d+)\s*Gün`)
	firstContractPattern  = regexp.MustCompile(`(?i)İlk sözleşme tarihi\s*([\d.]+)`)
	lastContractPattern   = regexp.MustCompile(`(?i)Son sözleşme tarihi\s*([\d.]+)`)
	cancelledPattern      = regexp.MustCompile(`(?i)İptal ihaleler?\s*(\d+)`)
	kikDecisionsPattern   = regexp.MustCompile(`(?i)KİK karar[ıl](?:ar[ıi])?\s*(\d+)`)

	listButtonPattern = regexp.MustCompile(`(?i)\s*(ihale)?\s*Listele\s*`)
	numericCell       = regexp.MustCompile(`^[\d.,₺%\s+-]+$`)
)

// TableSpec names a table on the analyze page by its heading keywords
type TableSpec struct {
	Name     string
	Keywords []string
}

// AnalyzeTables are the tables collected from the analyze page
var AnalyzeTables = []TableSpec{
	{Name: "yearly_trend", Keywords: []string{"yıllık", "yillik", "yillara", "trend"}},
	{Name: "sectors", Keywords: []string{"sektör", "sektor", "cpv"}},
	{Name: "authorities", Keywords: []string{"idare", "kurum"}},
	{Name: "joint_ventures", Keywords: []string{"ortak girişim", "ortak"}},
	{Name: "competitors", Keywords: []string{"rakip"}},
	{Name: "cities", Keywords: []string{"şehir", "sehir", "il "}},
	{Name: "tender_types", Keywords: []string{"ihale tür", "ihale türü"}},
	{Name: "procedures", Keywords: []string{"usul", "usulü"}},
}

// ParseAnalyzeSummary reads the summary figures from the analyze page text
func ParseAnalyzeSummary(text string) models.AnalyzeSummary {
	s := models.AnalyzeSummary{
		PastTenders:         parseIntGroup(pastTendersPattern, text),
		Ongoing:             parseCountValue(ongoingPattern, text),
		Completed:           parseCountValue(completedPattern, text),
		WorkCompletion:      parseCountValue(workCompletionPattern, text),
		TotalContracts:      parseCountValue(totalContractsPattern, text),
		YearlyAverage:       parseCountValue(yearlyAveragePattern, text),
		AverageDiscount:     ParsePercent(firstGroup(avgDiscountPattern, text)),
		AverageDurationDays: parseIntGroup(avgDurationPattern, text),
		FirstContractDate:   ParseDateDMY(firstGroup(firstContractPattern, text)),
		LastContractDate:    ParseDateDMY(firstGroup(lastContractPattern, text)),
		CancelledTenders:    parseIntGroup(cancelledPattern, text),
		KikDecisions:        parseIntGroup(kikDecisionsPattern, text),
	}
	return s
}

// ParseAnalyzePage extracts the summary and every keyword-located table
func ParseAnalyzePage(html string, specs []TableSpec) (*models.ContractorAnalysis, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	analysis := &models.ContractorAnalysis{
		Summary: ParseAnalyzeSummary(doc.Find("body").Text()),
		Tables:  make(map[string]models.AnalysisTable),
	}

	for _, spec := range specs {
		if table := findTable(doc, spec.Keywords); table != nil {
			if rows := parseTable(table); len(rows) > 0 {
				analysis.Tables[spec.Name] = rows
			}
		}
	}

	return analysis, nil
}

// findTable looks for a card whose header matches a keyword, then falls back
// to headings followed by a table within a few siblings.
func findTable(doc *goquery.Document, keywords []string) *goquery.Selection {
	var found *goquery.Selection

	doc.Find(".card").EachWithBreak(func(_ int, card *goquery.Selection) bool {
		header := card.Find(".card-header, .card-title, h1, h2, h3, h4, h5, h6").First()
		if header.Length() == 0 || !matchesKeyword(header.Text(), keywords) {
			return true
		}
		if table := card.Find("table").First(); table.Length() > 0 {
			found = table
			return false
		}
		return true
	})
	if found != nil {
		return found
	}

	doc.Find("h1, h2, h3, h4, h5, h6, .fw-bold, .fw-semibold").EachWithBreak(func(_ int, heading *goquery.Selection) bool {
		if !matchesKeyword(heading.Text(), keywords) {
			return true
		}
		el := heading
		for i := 0; i < 5; i++ {
			next := el.Next()
			if next.Length() == 0 {
				next = el.Parent()
			}
			if next.Length() == 0 {
				break
			}
			el = next
			if goquery.NodeName(el) == "table" {
				found = el
				return false
			}
			if table := el.Find("table").First(); table.Length() > 0 {
				found = table
				return false
			}
		}
		return true
	})

	return found
}

func matchesKeyword(text string, keywords []string) bool {
	folded := common.FoldTR(text)
	for _, kw := range keywords {
		if strings.Contains(folded, common.FoldTR(kw)) {
			return true
		}
	}
	return false
}

// parseTable turns tbody rows into maps keyed by snake_case header names.
// Cells after the first that look numeric become float64.
func parseTable(table *goquery.Selection) models.AnalysisTable {
	var columns []string
	table.Find("thead th, thead td").Each(func(i int, th *goquery.Selection) {
		name := columnKey(th.Text())
		if name == "" {
			name = fmt.Sprintf("col_%d", i)
		}
		columns = append(columns, name)
	})
	if len(columns) == 0 {
		first := table.Find("tbody tr").First()
		if first.Length() == 0 {
			return nil
		}
		for i := 0; i < first.Find("td").Length(); i++ {
			columns = append(columns, fmt.Sprintf("col_%d", i))
		}
	}

	var rows models.AnalysisTable
	table.Find("tbody tr").Each(func(_ int, tr *goquery.Selection) {
		row := make(map[string]any)
		tr.Find("td").Each(func(i int, td *goquery.Selection) {
			if i >= len(columns) {
				return
			}
			value := strings.TrimSpace(listButtonPattern.ReplaceAllString(strings.TrimSpace(td.Text()), ""))
			if i > 0 && numericCell.MatchString(value) {
				if n := ParseAmount(strings.NewReplacer("₺", "", "%", "", " ", "").Replace(value)); n != nil {
					row[columns[i]] = *n
					return
				}
			}
			row[columns[i]] = value
		})
		if len(row) > 0 {
			rows = append(rows, row)
		}
	})

	return rows
}

var (
	columnStrip      = regexp.MustCompile(`[₺%().]`)
	columnNonWord    = regexp.MustCompile(`[^a-z0-9_]`)
	columnUnderscore = regexp.MustCompile(`_+`)
	asciiFolder      = strings.NewReplacer("ı", "i", "ö", "o", "ü", "u", "ç", "c", "ş", "s", "ğ", "g")
)

// columnKey converts a Turkish header ("Sözleşme Bedeli (₺)") into "sozlesme_bedeli"
func columnKey(header string) string {
	name := common.FoldTR(header)
	name = columnStrip.ReplaceAllString(name, "")
	name = whitespacePattern.ReplaceAllString(name, "_")
	name = asciiFolder.Replace(name)
	name = columnNonWord.ReplaceAllString(name, "")
	name = columnUnderscore.ReplaceAllString(name, "_")
	return strings.Trim(name, "_")
}

func parseIntGroup(re *regexp.Regexp, text string) *int {
	v := firstGroup(re, text)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil
	}
	return &n
}

func parseCountValue(re *regexp.Regexp, text string) *models.CountValue {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	cv := &models.CountValue{Count: n}
	if len(m) > 2 {
		cv.Value = ParseAmount(m[2])
	}
	return cv
}
