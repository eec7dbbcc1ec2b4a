package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/mtab3000/simple-monitor/pkg/database"
)

// minGrowthDays is the minimum number of days of daily aggregates needed
// before a trend is fitted.
const minGrowthDays = 7

// slopeEpsilon is the magnitude below which a fitted slope counts as
// stable rather than a real direction.
const slopeEpsilon = 1e-3

// MetricTrend is the fitted trend of one daily metric.
type MetricTrend struct {
	Slope        float64 `json:"slope"`
	Direction    string  `json:"direction"`
	CurrentValue float64 `json:"current_value"`
	PeriodChange float64 `json:"period_change"`
}

// GrowthAnalysis classifies a miner's daily-average metrics over a period.
// Trend is TrendInsufficientData when fewer than seven days of rollups
// exist.
type GrowthAnalysis struct {
	Trend      string                 `json:"trend"`
	Metrics    map[string]MetricTrend `json:"metrics"`
	PeriodDays int                    `json:"period_days"`
	DataPoints int                    `json:"data_points"`
}

// GrowthMetrics fits least-squares lines to daily-averaged hashrate,
// power, efficiency and uptime, and reports the majority direction.
func (a *Analyzer) GrowthMetrics(ctx context.Context, minerID int64, days int) (*GrowthAnalysis, error) {
	daily, err := a.repo.DailyAverages(ctx, minerID, days)
	if err != nil {
		return nil, fmt.Errorf("failed to load daily averages: %w", err)
	}

	analysis := &GrowthAnalysis{
		Metrics:    map[string]MetricTrend{},
		PeriodDays: days,
		DataPoints: len(daily),
	}
	if len(daily) < minGrowthDays {
		analysis.Trend = TrendInsufficientData
		return analysis, nil
	}

	first, err := time.Parse("2006-01-02", daily[0].Date)
	if err != nil {
		return nil, fmt.Errorf("failed to parse date %q: %w", daily[0].Date, err)
	}
	dayIndex := make([]float64, len(daily))
	for i, d := range daily {
		t, err := time.Parse("2006-01-02", d.Date)
		if err != nil {
			return nil, fmt.Errorf("failed to parse date %q: %w", d.Date, err)
		}
		dayIndex[i] = t.Sub(first).Hours() / 24
	}

	series := map[string]func(*database.DailyAverage) float64{
		"daily_hashrate":   func(d *database.DailyAverage) float64 { return d.Hashrate },
		"daily_power":      func(d *database.DailyAverage) float64 { return d.Power },
		"daily_efficiency": func(d *database.DailyAverage) float64 { return d.Efficiency },
		"daily_uptime":     func(d *database.DailyAverage) float64 { return d.Uptime },
	}

	improving, declining := 0, 0
	for name, get := range series {
		values := make([]float64, len(daily))
		for i, d := range daily {
			values[i] = get(d)
		}

		slope, _ := linearRegression(dayIndex, values)
		direction := TrendStable
		switch {
		case slope > slopeEpsilon:
			direction = TrendImproving
			improving++
		case slope < -slopeEpsilon:
			direction = TrendDeclining
			declining++
		}

		analysis.Metrics[name] = MetricTrend{
			Slope:        slope,
			Direction:    direction,
			CurrentValue: values[len(values)-1],
			PeriodChange: values[len(values)-1] - values[0],
		}
	}

	switch {
	case improving > declining:
		analysis.Trend = TrendImproving
	case declining > improving:
		analysis.Trend = TrendDeclining
	default:
		analysis.Trend = TrendStable
	}

	return analysis, nil
}
