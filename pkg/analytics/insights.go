package analytics

import (
	"context"
	"fmt"

	"github.com/mtab3000/simple-monitor/pkg/database"
)

// powerCostPerKWh is the flat electricity price used for the fleet cost
// estimate.
const powerCostPerKWh = 0.10

// FleetInsights combines rollup-derived fleet analytics with plain-text
// observations and a rough daily power-cost estimate.
type FleetInsights struct {
	Summary             *database.FleetAnalytics `json:"summary"`
	PerformanceInsights []string                 `json:"performance_insights"`
	OperationalInsights []string                 `json:"operational_insights"`
	DailyPowerCostUSD   float64                  `json:"daily_power_cost_usd"`
	Recommendations     []string                 `json:"recommendations"`
}

// FleetInsights summarizes fleet health over the last N days.
func (a *Analyzer) FleetInsights(ctx context.Context, days int) (*FleetInsights, error) {
	summary, err := a.repo.FleetAnalytics(ctx, days)
	if err != nil {
		return nil, fmt.Errorf("failed to load fleet analytics: %w", err)
	}

	insights := &FleetInsights{Summary: summary}

	if summary.AvgUptime < 95 {
		insights.PerformanceInsights = append(insights.PerformanceInsights,
			fmt.Sprintf("Fleet uptime (%.1f%%) is below optimal (95%%)", summary.AvgUptime))
		insights.Recommendations = append(insights.Recommendations,
			"Focus on improving network stability and power reliability")
	}
	if summary.AvgEfficiency > 16 {
		insights.PerformanceInsights = append(insights.PerformanceInsights,
			fmt.Sprintf("Fleet efficiency (%.1f J/TH) could be improved", summary.AvgEfficiency))
	}
	if summary.AvgEfficiency > 15 {
		insights.Recommendations = append(insights.Recommendations,
			"Consider optimizing voltage/frequency settings for better energy efficiency")
	}
	if len(summary.ProblemMiners) > 0 {
		insights.OperationalInsights = append(insights.OperationalInsights,
			fmt.Sprintf("%d miners need attention", len(summary.ProblemMiners)))
		insights.Recommendations = append(insights.Recommendations,
			"Address issues with underperforming miners to improve fleet efficiency")
	}

	insights.DailyPowerCostUSD = summary.TotalPowerW / 1000 * 24 * powerCostPerKWh

	return insights, nil
}
