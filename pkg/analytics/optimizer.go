package analytics

import (
	"context"
	"fmt"
	"math"

	"github.com/mtab3000/simple-monitor/pkg/database"
)

// Settings recommendation outcomes.
const (
	RecommendationOptimized        = "optimized_settings"
	RecommendationInsufficientData = "insufficient_data"
	RecommendationCurrentOptimal   = "current_settings_optimal"
)

// Optimizer defaults.
const (
	optimizerWindowDays  = 7
	optimizerMinSamples  = 10
	optimizerTempCeiling = 85.0 // groups running hotter are never recommended
)

// ExpectedPerformance is the historical average performance of a settings
// group.
type ExpectedPerformance struct {
	HashrateGHS   float64 `json:"hashrate_ghs"`
	PowerW        float64 `json:"power_w"`
	EfficiencyJTH float64 `json:"efficiency_j_th"`
	TemperatureC  float64 `json:"temperature_c"`
}

// SettingsRecommendation is the optimizer verdict for one miner.
// Recommendation is a sentinel when no better settings could be derived.
type SettingsRecommendation struct {
	Recommendation string               `json:"recommendation"`
	VoltageV       float64              `json:"voltage,omitempty"`
	FrequencyMHz   int                  `json:"frequency,omitempty"`
	Expected       *ExpectedPerformance `json:"expected_performance,omitempty"`
	Confidence     float64              `json:"confidence,omitempty"`
}

// OptimalSettings ranks the miner's historical (voltage, frequency)
// groups by a composite efficiency/hashrate/temperature score and
// recommends the best one that stays under the temperature ceiling.
func (a *Analyzer) OptimalSettings(ctx context.Context, minerID int64) (*SettingsRecommendation, error) {
	groups, err := a.repo.SettingsGroups(ctx, minerID, optimizerWindowDays, optimizerMinSamples)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings groups: %w", err)
	}
	if len(groups) == 0 {
		return &SettingsRecommendation{Recommendation: RecommendationInsufficientData}, nil
	}

	var best *database.SettingsGroup
	bestScore := 0.0
	for _, g := range groups {
		score := settingsScore(g)
		if score > bestScore && g.AvgTempASIC < optimizerTempCeiling {
			bestScore = score
			best = g
		}
	}
	if best == nil {
		return &SettingsRecommendation{Recommendation: RecommendationCurrentOptimal}, nil
	}

	return &SettingsRecommendation{
		Recommendation: RecommendationOptimized,
		VoltageV:       math.Round(best.VoltageV*1000) / 1000,
		FrequencyMHz:   int(best.FrequencyMHz),
		Expected: &ExpectedPerformance{
			HashrateGHS:   math.Round(best.AvgHashrate*10) / 10,
			PowerW:        math.Round(best.AvgPowerW*10) / 10,
			EfficiencyJTH: math.Round(best.AvgEfficiency*10) / 10,
			TemperatureC:  math.Round(best.AvgTempASIC*10) / 10,
		},
		Confidence: math.Min(float64(best.Samples)/100, 1.0),
	}, nil
}

// settingsScore weighs efficiency and hashrate equally with a smaller
// temperature component. Efficiency is normalized around 12 J/TH,
// hashrate around 1 TH/s, temperature penalized above 70.
func settingsScore(g *database.SettingsGroup) float64 {
	efficiencyScore := math.Max(0, 1-(g.AvgEfficiency-12)/10)
	hashrateScore := g.AvgHashrate / 1000
	tempScore := math.Max(0, 1-math.Max(0, g.AvgTempASIC-70)/20)
	return efficiencyScore*0.4 + hashrateScore*0.4 + tempScore*0.2
}
