package crawler

import (
	"fmt"
	"strings"

	"github.com/ternarybob/tenderintel/internal/common"
	"github.com/ternarybob/tenderintel/internal/models"
)

// HistoryPhases are the passes run for one contractor, in order
func HistoryPhases() []models.Phase {
	return []models.Phase{
		{
			Name:          "ongoing",
			Label:         "Ongoing contracts",
			Path:          "/contracted",
			ParamKey:      "contractortitle_in",
			ExtraParams:   "&workend=%3E0",
			DefaultStatus: models.StatusOngoing,
			Role:          models.RoleAwarded,
		},
		{
			Name:          "completed",
			Label:         "Completed contracts",
			Path:          "/contracted",
			ParamKey:      "contractortitle_in",
			ExtraParams:   "&workend=%3C0",
			DefaultStatus: models.StatusCompleted,
			Role:          models.RoleAwarded,
		},
		{
			Name:          "participations",
			Label:         "All participations",
			Path:          "",
			ParamKey:      "participanttitle_in",
			DefaultStatus: models.StatusUnknown,
			Role:          models.RoleParticipant,
		},
	}
}

// DecisionPhase is the regulatory decision pass
func DecisionPhase() models.Phase {
	return models.Phase{
		Name:          "decisions",
		Label:         "Regulatory decisions",
		Path:          "/decided",
		ParamKey:      "contractortitle_in",
		DefaultStatus: models.StatusUnknown,
		Role:          models.RoleDecisionSubject,
	}
}

// SearchBase is the portal's tender search root
func SearchBase(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + "/tenders/search"
}

// PhaseURL builds the search URL of a phase; page <= 1 omits the page parameter
func PhaseURL(baseURL string, workCategory int, phase models.Phase, name string, page int) string {
	u := fmt.Sprintf("%s%s?workcategory_in=%d&%s=%s%s",
		SearchBase(baseURL), phase.Path, workCategory, phase.ParamKey, common.PortalQueryName(name), phase.ExtraParams)
	if page > 1 {
		u += fmt.Sprintf("&page=%d", page)
	}
	return u
}

// ListURL builds the newest-first tender list URL
func ListURL(baseURL string, workCategory int, page int) string {
	u := fmt.Sprintf("%s?workcategory_in=%d&sort=date_desc", SearchBase(baseURL), workCategory)
	if page > 1 {
		u += fmt.Sprintf("&page=%d", page)
	}
	return u
}

// AnalyzeURL builds the contractor analyze page URL
func AnalyzeURL(baseURL string, workCategory int, title string) string {
	return fmt.Sprintf("%s/analyze?workcategory_in=%d&contractortitle_in=%s",
		strings.TrimRight(baseURL, "/"), workCategory, common.PortalQueryName(title))
}

// ApplyPhaseDefault sets the phase's default status marker on a card whose
// text disclosed no status of its own.
func ApplyPhaseDefault(card *models.TenderCard, phase models.Phase) {
	if card.Markers.Any() {
		return
	}
	switch phase.DefaultStatus {
	case models.StatusOngoing:
		card.Markers.Ongoing = true
	case models.StatusCompleted:
		card.Markers.Completed = true
	}
}
