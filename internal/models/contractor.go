package models

import (
	"encoding/json"
	"time"
)

// Provenance source tags recorded on a contractor
const (
	SourceTenderHistory = "tender_history"
	SourceKikDecisions  = "kik_decisions"
	SourceListScan      = "list_scan"
	SourceAnalyzePage   = "analyze_page"
)

// ProvenanceEntry records that a source contributed data on a given day.
// Entries are compared by value, so one source harvested twice on the same
// day produces a single entry.
type ProvenanceEntry struct {
	Source string `json:"source"`
	Date   string `json:"date"` // YYYY-MM-DD (UTC)
}

// NewProvenanceEntry stamps source with the UTC calendar day of at
func NewProvenanceEntry(source string, at time.Time) ProvenanceEntry {
	return ProvenanceEntry{Source: source, Date: at.UTC().Format("2006-01-02")}
}

// AppendProvenance appends entry unless an identical entry already exists
func AppendProvenance(list []ProvenanceEntry, entry ProvenanceEntry) []ProvenanceEntry {
	for _, existing := range list {
		if existing == entry {
			return list
		}
	}
	return append(list, entry)
}

// ContractorStats holds the aggregate metrics derived from tender history
type ContractorStats struct {
	Participated       int        `json:"participated"`
	Completed          int        `json:"completed"`
	Ongoing            int        `json:"ongoing"`
	Terminated         int        `json:"terminated"` // cancelled or terminated, any role
	TotalContractValue float64    `json:"total_contract_value"`
	AverageDiscount    *float64   `json:"average_discount,omitempty"`
	ActiveCities       []string   `json:"active_cities"`
	LastContractDate   *time.Time `json:"last_contract_date,omitempty"`
	WinRate            float64    `json:"win_rate"` // percent, two decimals
}

// Contractor is a legal entity keyed by its normalized legal title
type Contractor struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	ShortName  string `json:"short_name,omitempty"`
	RegistryID string `json:"registry_id,omitempty"` // tax or trade registry number when known

	ContractorStats

	Bookmarked    bool `json:"bookmarked"`
	IntelTracking bool `json:"intel_tracking"`
	Active        bool `json:"active"`

	Provenance  []ProvenanceEntry `json:"provenance"`
	HarvestedAt *time.Time        `json:"harvested_at,omitempty"`

	Analysis            json.RawMessage `json:"analysis,omitempty"`
	AnalysisHarvestedAt *time.Time      `json:"analysis_harvested_at,omitempty"`
	NewsSummary         string          `json:"news_summary,omitempty"`
	NewsCheckedAt       *time.Time      `json:"news_checked_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// QueryName returns the name used for news queries, preferring the short name
func (c *Contractor) QueryName() string {
	if c.ShortName != "" {
		return c.ShortName
	}
	return c.Title
}

// UpsertResult is returned by contractor upserts
type UpsertResult struct {
	ID    int64 `json:"id"`
	IsNew bool  `json:"is_new"`
}
