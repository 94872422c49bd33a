package models

import "time"

// Role is a contractor's relationship to one tender occurrence
type Role string

const (
	RoleAwarded         Role = "awarded"
	RoleParticipant     Role = "participant"
	RoleDecisionSubject Role = "decision_subject"
)

// Status of a tender occurrence as derived from the source text
type Status string

const (
	StatusUnknown    Status = "unknown"
	StatusOngoing    Status = "ongoing"
	StatusCompleted  Status = "completed"
	StatusTerminated Status = "terminated"
	StatusCancelled  Status = "cancelled"
)

// Priority orders statuses: cancelled > terminated > completed > ongoing > unknown
func (s Status) Priority() int {
	switch s {
	case StatusCancelled:
		return 4
	case StatusTerminated:
		return 3
	case StatusCompleted:
		return 2
	case StatusOngoing:
		return 1
	default:
		return 0
	}
}

// Valid reports whether s is one of the known statuses
func (s Status) Valid() bool {
	switch s {
	case StatusUnknown, StatusOngoing, StatusCompleted, StatusTerminated, StatusCancelled:
		return true
	}
	return false
}

// TenderHistoryRecord links a contractor to one tender occurrence in one role.
// Nil pointer fields are unknown and never overwrite a stored value.
type TenderHistoryRecord struct {
	ID           int64  `json:"id"`
	ContractorID int64  `json:"contractor_id"`
	TenderID     *int64 `json:"tender_id,omitempty"` // internal catalog link, nil when unresolved
	ExternalID   string `json:"external_id,omitempty"`
	Role         Role   `json:"role"`
	Status       Status `json:"status"`

	Title           string     `json:"title"`
	ArchivalNumber  *string    `json:"archival_number,omitempty"`
	Authority       *string    `json:"authority,omitempty"`
	City            *string    `json:"city,omitempty"`
	ContractValue   *float64   `json:"contract_value,omitempty"`
	EstimatedCost   *float64   `json:"estimated_cost,omitempty"`
	DiscountRate    *float64   `json:"discount_rate,omitempty"`
	ContractDate    *time.Time `json:"contract_date,omitempty"`
	StartDate       *time.Time `json:"start_date,omitempty"`
	EndDate         *time.Time `json:"end_date,omitempty"`
	TerminationNote *string    `json:"termination_note,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TenderCard is one search-result card as recovered by the extractor
type TenderCard struct {
	ExternalID     string     `json:"external_id,omitempty"`
	DetailURL      string     `json:"detail_url,omitempty"`
	Title          string     `json:"title"`
	ArchivalNumber *string    `json:"archival_number,omitempty"`
	Authority      *string    `json:"authority,omitempty"`
	City           *string    `json:"city,omitempty"`
	ContractorName *string    `json:"contractor_name,omitempty"`
	ContractValue  *float64   `json:"contract_value,omitempty"`
	EstimatedCost  *float64   `json:"estimated_cost,omitempty"`
	DiscountRate   *float64   `json:"discount_rate,omitempty"`
	ContractDate   *time.Time `json:"contract_date,omitempty"`
	StartDate      *time.Time `json:"start_date,omitempty"`
	EndDate        *time.Time `json:"end_date,omitempty"`
	Markers        Markers    `json:"markers"`
}

// Markers are the literal status cues found in a card's text
type Markers struct {
	Completed       bool    `json:"completed"`
	Ongoing         bool    `json:"ongoing"`
	Cancelled       bool    `json:"cancelled"`
	TerminationNote *string `json:"termination_note,omitempty"`
}

// Any reports whether an explicit completed, ongoing or cancelled marker is set
func (m Markers) Any() bool {
	return m.Completed || m.Ongoing || m.Cancelled
}

// Tender is a catalog entry the history rows may link to
type Tender struct {
	ID         int64  `json:"id"`
	ExternalID string `json:"external_id"`
	Title      string `json:"title"`
}
