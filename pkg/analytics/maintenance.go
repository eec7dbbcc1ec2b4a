package analytics

import (
	"context"
	"fmt"
	"math"
)

// Predicted issue types.
const (
	IssueThermalStress  = "thermal_stress"
	IssueDegradation    = "performance_degradation"
	IssueEfficiencyDrop = "efficiency_decline"
)

// maintenanceWindowHours is the trend window the predictor inspects.
const maintenanceWindowHours = 168 // 7 days

// PredictedIssue is one heuristic maintenance signal.
type PredictedIssue struct {
	Type        string  `json:"type"`
	Probability float64 `json:"probability"` // [0, 1]
	Timeframe   string  `json:"timeframe"`
	Description string  `json:"description"`
}

// MaintenancePrediction aggregates the detected issues into an urgency
// score. Confidence grows with the amount of trend data available.
type MaintenancePrediction struct {
	Score           float64          `json:"maintenance_score"` // [0, 100]
	Issues          []PredictedIssue `json:"predicted_issues"`
	Recommendations []string         `json:"recommendations"`
	Confidence      float64          `json:"confidence"`
}

// PredictMaintenance inspects a week of trends for thermal stress,
// hashrate degradation, and efficiency decline.
func (a *Analyzer) PredictMaintenance(ctx context.Context, minerID int64) (*MaintenancePrediction, error) {
	trends, err := a.trends.Trends(ctx, minerID, maintenanceWindowHours)
	if err != nil {
		return nil, fmt.Errorf("failed to load trends: %w", err)
	}

	prediction := &MaintenancePrediction{}
	if len(trends.Hashrate) == 0 {
		return prediction, nil
	}

	// Thermal stress: hot on average, or warm with a rising short window.
	temps := positive(trends.Temperature)
	if len(temps) > 0 {
		avgTemp := mean(temps)
		window := temps
		if len(temps) >= 5 {
			window = temps[len(temps)-5:]
		}
		increasing := len(window) > 1 && window[len(window)-1] > window[0]

		if avgTemp > 80 || (increasing && avgTemp > 75) {
			probability := 0.5
			if increasing {
				probability = 0.7
			}
			prediction.Issues = append(prediction.Issues, PredictedIssue{
				Type:        IssueThermalStress,
				Probability: probability,
				Timeframe:   "1-2 weeks",
				Description: "Rising temperatures may indicate thermal paste degradation or fan issues",
			})
			prediction.Recommendations = append(prediction.Recommendations,
				"Schedule thermal maintenance check")
		}
	}

	// Hashrate degradation: last five samples vs first five.
	hashrates := positive(trends.Hashrate)
	if len(hashrates) >= 10 {
		recent := mean(hashrates[len(hashrates)-5:])
		older := mean(hashrates[:5])
		if older > 0 {
			degradation := (older - recent) / older
			if degradation > 0.05 {
				prediction.Issues = append(prediction.Issues, PredictedIssue{
					Type:        IssueDegradation,
					Probability: 0.6,
					Timeframe:   "2-4 weeks",
					Description: fmt.Sprintf("Hashrate has declined by %.1f%% over monitoring period", degradation*100),
				})
				prediction.Recommendations = append(prediction.Recommendations,
					"Investigate hardware health and settings")
			}
		}
	}

	// Efficiency decline: higher J/TH over the same comparison is worse.
	efficiencies := positive(trends.Efficiency)
	if len(efficiencies) >= 10 {
		recent := mean(efficiencies[len(efficiencies)-5:])
		older := mean(efficiencies[:5])
		if older > 0 {
			change := (recent - older) / older
			if change > 0.1 {
				prediction.Issues = append(prediction.Issues, PredictedIssue{
					Type:        IssueEfficiencyDrop,
					Probability: 0.5,
					Timeframe:   "1-3 weeks",
					Description: "Power efficiency declining, may indicate component wear",
				})
				prediction.Recommendations = append(prediction.Recommendations,
					"Review power supply and component health")
			}
		}
	}

	var score float64
	for _, issue := range prediction.Issues {
		score += issue.Probability * 30
	}
	prediction.Score = math.Min(score, 100)
	prediction.Confidence = math.Min(float64(len(trends.Hashrate))/50, 1.0)

	return prediction, nil
}
