package models

import "time"

// CountValue is a "N tenders worth X" pair from the analyze page
type CountValue struct {
	Count int      `json:"count"`
	Value *float64 `json:"value,omitempty"`
}

// AnalyzeSummary is the contractor summary block of the portal's analyze page
type AnalyzeSummary struct {
	PastTenders         *int        `json:"past_tenders,omitempty"`
	Ongoing             *CountValue `json:"ongoing,omitempty"`
	Completed           *CountValue `json:"completed,omitempty"`
	WorkCompletion      *CountValue `json:"work_completion,omitempty"`
	TotalContracts      *CountValue `json:"total_contracts,omitempty"`
	YearlyAverage       *CountValue `json:"yearly_average,omitempty"`
	AverageDiscount     *float64    `json:"average_discount,omitempty"`
	AverageDurationDays *int        `json:"average_duration_days,omitempty"`
	FirstContractDate   *time.Time  `json:"first_contract_date,omitempty"`
	LastContractDate    *time.Time  `json:"last_contract_date,omitempty"`
	CancelledTenders    *int        `json:"cancelled_tenders,omitempty"`
	KikDecisions        *int        `json:"kik_decisions,omitempty"`
}

// AnalysisTable is one keyword-located table; cells are strings or float64
type AnalysisTable []map[string]any

// ContractorAnalysis is stored as JSON on the contractor
type ContractorAnalysis struct {
	Summary   AnalyzeSummary           `json:"summary"`
	Tables    map[string]AnalysisTable `json:"tables,omitempty"`
	SourceURL string                   `json:"source_url"`
	FetchedAt time.Time                `json:"fetched_at"`
}
