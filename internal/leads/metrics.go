package leads

import (
	"math"
	"strings"
	"time"

	"github.com/frametech/leads-dashboard/internal/models"
)

const (
	// RecentWindow caps the newest-first window fetched for the overview.
	RecentWindow = 50
	// NewLeadsPeriod is the trailing period counted as "new".
	NewLeadsPeriod = 7 * 24 * time.Hour
)

// WarmthBreakdown holds per-bucket percentages of a window. Each value is
// rounded on its own, so the three need not add up to 100.
type WarmthBreakdown struct {
	Hot  int `json:"hot"`
	Warm int `json:"warm"`
	Cold int `json:"cold"`
}

// Summary is the KPI block shown at the top of the overview.
type Summary struct {
	TotalCalls   int64           `json:"totalCalls"`
	NewLeads     int64           `json:"newLeads"`
	Appointments int             `json:"appointments"`
	LeadWarmth   WarmthBreakdown `json:"leadWarmth"`
}

// NewLeadsSince returns the lower bound of the "new leads" count.
func NewLeadsSince(now time.Time) time.Time {
	return now.Add(-NewLeadsPeriod)
}

// Aggregate computes the KPI summary. total and newCount come from exact
// count queries; appointments and warmth are computed over window only.
func Aggregate(window []models.Lead, total, newCount int64) Summary {
	var hot, warm, cold, appts int
	for _, l := range window {
		if HasAppointment(l) {
			appts++
		}
		w := ""
		if l.LeadWarmth != nil {
			w = strings.ToLower(strings.TrimSpace(*l.LeadWarmth))
		}
		switch w {
		case WarmthHot:
			hot++
		case WarmthWarm:
			warm++
		case WarmthCold:
			cold++
		}
	}

	n := len(window)
	return Summary{
		TotalCalls:   total,
		NewLeads:     newCount,
		Appointments: appts,
		LeadWarmth: WarmthBreakdown{
			Hot:  percent(hot, n),
			Warm: percent(warm, n),
			Cold: percent(cold, n),
		},
	}
}

func percent(count, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(count) / float64(total) * 100))
}
