package analytics

import (
	"context"
	"fmt"
	"math"
)

// Factor is one weighted component of the efficiency score.
type Factor struct {
	Value  float64 `json:"value"`
	Score  float64 `json:"score"` // normalized to [0, 1]
	Weight float64 `json:"weight"`
}

// EfficiencyScore is the multi-factor performance score for one miner.
type EfficiencyScore struct {
	Score           float64           `json:"score"` // [0, 100]
	Grade           string            `json:"grade"`
	Factors         map[string]Factor `json:"factors"`
	Recommendations []string          `json:"recommendations"`
}

// Factor weights; they sum to 1.0.
const (
	weightUptime        = 0.25
	weightStability     = 0.30
	weightTemperature   = 0.20
	weightEfficiency    = 0.15
	weightRejectionRate = 0.10
)

// EfficiencyScore computes a miner's weighted performance score over the
// last N hours of rollups. With no trend data the score is 0 with no
// factors and no recommendations.
func (a *Analyzer) EfficiencyScore(ctx context.Context, minerID int64, hours int) (*EfficiencyScore, error) {
	trends, err := a.trends.Trends(ctx, minerID, hours)
	if err != nil {
		return nil, fmt.Errorf("failed to load trends: %w", err)
	}

	result := &EfficiencyScore{Factors: map[string]Factor{}, Grade: "F"}
	if len(trends.Hashrate) == 0 {
		return result, nil
	}

	// Uptime: normalized against a 95% target, capped at 1.0.
	avgUptime := mean(trends.Uptime)
	result.Factors["uptime"] = Factor{
		Value:  avgUptime,
		Score:  math.Min(avgUptime/95.0, 1.0),
		Weight: weightUptime,
	}

	// Hashrate stability: lower coefficient of variation is better.
	hashrates := positive(trends.Hashrate)
	stability := 0.0
	if len(hashrates) > 0 {
		cv := 0.0
		if len(hashrates) > 1 {
			cv = stdev(hashrates) / mean(hashrates)
		}
		stability = math.Max(0, 1-cv*2)
	}
	result.Factors["hashrate_stability"] = Factor{
		Value:  stability,
		Score:  stability,
		Weight: weightStability,
	}

	// Temperature: multiplicative penalties above 75 avg and 85 max.
	temps := positive(trends.Temperature)
	avgTemp, tempScore := 0.0, 0.0
	if len(temps) > 0 {
		avgTemp = mean(temps)
		maxTemp := temps[0]
		for _, t := range temps {
			maxTemp = math.Max(maxTemp, t)
		}
		tempScore = math.Max(0, 1-math.Max(0, avgTemp-75)/20) *
			math.Max(0, 1-math.Max(0, maxTemp-85)/15)
	}
	result.Factors["temperature"] = Factor{
		Value:  avgTemp,
		Score:  tempScore,
		Weight: weightTemperature,
	}

	// Energy efficiency: lower J/TH is better, penalty above 12.
	efficiencies := positive(trends.Efficiency)
	avgEfficiency, efficiencyScore := 0.0, 0.0
	if len(efficiencies) > 0 {
		avgEfficiency = mean(efficiencies)
		efficiencyScore = math.Max(0, 1-math.Max(0, avgEfficiency-12)/10)
	}
	result.Factors["efficiency"] = Factor{
		Value:  avgEfficiency,
		Score:  efficiencyScore,
		Weight: weightEfficiency,
	}

	// Share rejection: should stay under a few percent.
	avgRejection, rejectionScore := 0.0, 0.0
	if len(trends.RejectionRate) > 0 {
		avgRejection = mean(trends.RejectionRate)
		rejectionScore = math.Max(0, 1-avgRejection/5)
	}
	result.Factors["rejection_rate"] = Factor{
		Value:  avgRejection,
		Score:  rejectionScore,
		Weight: weightRejectionRate,
	}

	var overall float64
	for _, f := range result.Factors {
		overall += f.Score * f.Weight
	}
	result.Score = math.Round(math.Min(overall*100, 100)*10) / 10
	result.Grade = performanceGrade(result.Score)
	result.Recommendations = recommendations(result.Factors)

	return result, nil
}

func performanceGrade(score float64) string {
	switch {
	case score >= 90:
		return "A+"
	case score >= 85:
		return "A"
	case score >= 80:
		return "B+"
	case score >= 75:
		return "B"
	case score >= 70:
		return "C+"
	case score >= 65:
		return "C"
	case score >= 60:
		return "D"
	default:
		return "F"
	}
}

func recommendations(factors map[string]Factor) []string {
	var recs []string

	if factors["uptime"].Score < 0.8 {
		recs = append(recs,
			"Monitor network connectivity and power stability",
			"Check for frequent reboots or connection issues")
	}
	if factors["hashrate_stability"].Score < 0.7 {
		recs = append(recs,
			"Review overclocking settings for stability",
			"Check for thermal throttling or power fluctuations")
	}
	if factors["temperature"].Score < 0.8 {
		recs = append(recs,
			"Improve cooling or reduce ambient temperature",
			"Consider reducing frequency to lower temperatures")
	}
	if factors["efficiency"].Score < 0.8 {
		recs = append(recs,
			"Optimize voltage settings for better efficiency",
			"Consider underclocking for better J/TH ratio")
	}
	if factors["rejection_rate"].Score < 0.8 {
		recs = append(recs,
			"Check pool connection stability",
			"Verify network latency and quality")
	}

	return recs
}
