// Package analytics derives higher-level insight from stored rollups and
// raw samples: efficiency scoring, anomaly detection, growth trends,
// predictive maintenance, and settings optimization. All analyses are
// read-only over the store.
package analytics

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/mtab3000/simple-monitor/pkg/database"
)

// Trend direction and sentinel values. Insufficient data is an expected
// outcome, reported as a tagged result rather than an error.
const (
	TrendImproving        = "improving"
	TrendDeclining        = "declining"
	TrendStable           = "stable"
	TrendInsufficientData = "insufficient_data"
)

// TrendSource provides per-miner hourly trend series. The rollup engine
// satisfies this.
type TrendSource interface {
	Trends(ctx context.Context, minerID int64, hours int) (*database.TrendData, error)
}

// Analyzer runs the analytics suite against a store.
type Analyzer struct {
	repo   database.Repository
	trends TrendSource
	logger *zap.Logger
}

// NewAnalyzer creates an analyzer.
func NewAnalyzer(repo database.Repository, trends TrendSource, logger *zap.Logger) *Analyzer {
	return &Analyzer{repo: repo, trends: trends, logger: logger}
}

// positive returns the values greater than zero, preserving order.
func positive(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if v > 0 {
			out = append(out, v)
		}
	}
	return out
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stdev is the sample standard deviation; zero for fewer than two values.
func stdev(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	m := mean(values)
	var ss float64
	for _, v := range values {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(n-1))
}

// linearRegression fits y = slope*x + intercept by least squares.
func linearRegression(x, y []float64) (slope, intercept float64) {
	n := float64(len(x))
	if n < 2 {
		return 0, 0
	}

	var sumX, sumY, sumXY, sumX2 float64
	for i := range x {
		sumX += x[i]
		sumY += y[i]
		sumXY += x[i] * y[i]
		sumX2 += x[i] * x[i]
	}

	denom := n*sumX2 - sumX*sumX
	if denom == 0 {
		return 0, 0
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n
	return slope, intercept
}
