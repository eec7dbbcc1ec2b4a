package analytics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtab3000/simple-monitor/pkg/database"
)

func TestEfficiencyScoreNoData(t *testing.T) {
	a := newTrendAnalyzer(&database.TrendData{})

	score, err := a.EfficiencyScore(context.Background(), 1, 24)
	require.NoError(t, err)
	assert.Equal(t, 0.0, score.Score)
	assert.Equal(t, "F", score.Grade)
	assert.Empty(t, score.Factors)
	assert.Empty(t, score.Recommendations)
}

func TestEfficiencyScoreHealthyMiner(t *testing.T) {
	// Steady hashrate, cool, efficient, always up: every factor maxes out.
	a := newTrendAnalyzer(hourlyTrend(24, 1100, 60, 16, 11, 100))

	score, err := a.EfficiencyScore(context.Background(), 1, 24)
	require.NoError(t, err)
	assert.Equal(t, 100.0, score.Score)
	assert.Equal(t, "A+", score.Grade)
	assert.Empty(t, score.Recommendations)

	require.Contains(t, score.Factors, "uptime")
	assert.Equal(t, 1.0, score.Factors["uptime"].Score)
	assert.Equal(t, 1.0, score.Factors["hashrate_stability"].Score)
	assert.Equal(t, 1.0, score.Factors["temperature"].Score)
}

func TestTemperatureFactorMonotonic(t *testing.T) {
	// Hotter miners never score better.
	prev := 2.0
	for _, temp := range []float64{70, 75, 80, 85, 90, 95} {
		a := newTrendAnalyzer(hourlyTrend(24, 1100, temp, 16, 11, 100))
		score, err := a.EfficiencyScore(context.Background(), 1, 24)
		require.NoError(t, err)

		factor := score.Factors["temperature"].Score
		assert.LessOrEqual(t, factor, prev, "temp %.0f", temp)
		prev = factor
	}
}

func TestEfficiencyScoreUnstableHashrate(t *testing.T) {
	data := hourlyTrend(24, 1000, 60, 16, 11, 100)
	for i := range data.Hashrate {
		if i%2 == 0 {
			data.Hashrate[i] = 200
		}
	}
	a := newTrendAnalyzer(data)

	score, err := a.EfficiencyScore(context.Background(), 1, 24)
	require.NoError(t, err)
	assert.Less(t, score.Factors["hashrate_stability"].Score, 0.7)
	assert.Contains(t, score.Recommendations, "Review overclocking settings for stability")
}

func TestEfficiencyScoreHighRejection(t *testing.T) {
	data := hourlyTrend(24, 1100, 60, 16, 11, 100)
	for i := range data.RejectionRate {
		data.RejectionRate[i] = 8
	}
	a := newTrendAnalyzer(data)

	score, err := a.EfficiencyScore(context.Background(), 1, 24)
	require.NoError(t, err)
	assert.Equal(t, 0.0, score.Factors["rejection_rate"].Score)
	assert.Contains(t, score.Recommendations, "Check pool connection stability")
}

func TestPerformanceGrade(t *testing.T) {
	assert.Equal(t, "A+", performanceGrade(95))
	assert.Equal(t, "A", performanceGrade(85))
	assert.Equal(t, "B+", performanceGrade(80))
	assert.Equal(t, "B", performanceGrade(75))
	assert.Equal(t, "C+", performanceGrade(70))
	assert.Equal(t, "C", performanceGrade(65))
	assert.Equal(t, "D", performanceGrade(60))
	assert.Equal(t, "F", performanceGrade(59.9))
}
