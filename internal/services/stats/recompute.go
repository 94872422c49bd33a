// Package stats derives contractor aggregates from reconciled tender history.
package stats

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/tenderintel/internal/models"
)

// Recompute derives the aggregate metrics of one contractor from its history rows.
// It is a pure function; recomputing over the same rows yields the same stats.
func Recompute(records []*models.TenderHistoryRecord) models.ContractorStats {
	stats := models.ContractorStats{
		ActiveCities: []string{},
	}

	var (
		awarded      int
		discountSum  float64
		discountSeen int
		cities       = make(map[string]struct{})
		lastContract *time.Time
	)

	for _, r := range records {
		if r == nil {
			continue
		}
		stats.Participated++

		if r.Status == models.StatusCancelled || r.Status == models.StatusTerminated {
			stats.Terminated++
		}

		if r.City != nil {
			if city := strings.TrimSpace(*r.City); city != "" {
				cities[city] = struct{}{}
			}
		}

		if r.ContractDate != nil && (lastContract == nil || r.ContractDate.After(*lastContract)) {
			d := *r.ContractDate
			lastContract = &d
		}

		if r.Role != models.RoleAwarded {
			continue
		}

		awarded++
		switch r.Status {
		case models.StatusCompleted:
			stats.Completed++
		case models.StatusOngoing:
			stats.Ongoing++
		}
		if r.ContractValue != nil {
			stats.TotalContractValue += *r.ContractValue
		}
		if r.DiscountRate != nil {
			discountSum += *r.DiscountRate
			discountSeen++
		}
	}

	if discountSeen > 0 {
		avg := round2(discountSum / float64(discountSeen))
		stats.AverageDiscount = &avg
	}

	for city := range cities {
		stats.ActiveCities = append(stats.ActiveCities, city)
	}
	sort.Strings(stats.ActiveCities)

	stats.LastContractDate = lastContract
	stats.WinRate = WinRate(awarded, stats.Participated)

	return stats
}

// WinRate is awarded / participated * 100, rounded to two decimals; 0 without rows
func WinRate(awarded, participated int) float64 {
	if participated == 0 {
		return 0
	}
	return round2(float64(awarded) / float64(participated) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
