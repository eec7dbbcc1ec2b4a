package analytics

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/mtab3000/simple-monitor/pkg/database"
)

// Anomaly types.
const (
	AnomalyHashrate    = "hashrate_anomaly"
	AnomalyPower       = "power_anomaly"
	AnomalyTemperature = "temperature_spike"
)

// Statistical detection needs at least this many non-zero samples; below
// it no statistical anomalies are reported (the temperature threshold rule
// still applies).
const minStatisticalSamples = 6

// tempSpikeThreshold is the temperature above which a sample is flagged.
// Above tempCriticalThreshold the spike escalates from warning to
// critical. The two-tier split follows the long-standing monitor behavior.
const (
	tempSpikeThreshold    = 85.0
	tempCriticalThreshold = 90.0
)

// Anomaly is one flagged sample in a miner's recent trend window.
type Anomaly struct {
	Type      string    `json:"type"`
	Severity  string    `json:"severity"`
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	Expected  float64   `json:"expected,omitempty"`
	Deviation float64   `json:"deviation,omitempty"` // in σ units
	Threshold float64   `json:"threshold,omitempty"`
}

// DetectAnomalies finds statistical outliers in hashrate and power
// (beyond 2σ warning, beyond 3σ critical) and threshold-based temperature
// spikes over the last N hours of rollups.
func (a *Analyzer) DetectAnomalies(ctx context.Context, minerID int64, hours int) ([]*Anomaly, error) {
	trends, err := a.trends.Trends(ctx, minerID, hours)
	if err != nil {
		return nil, fmt.Errorf("failed to load trends: %w", err)
	}

	var anomalies []*Anomaly
	anomalies = append(anomalies, statisticalOutliers(AnomalyHashrate, trends.Timestamps, trends.Hashrate)...)
	anomalies = append(anomalies, statisticalOutliers(AnomalyPower, trends.Timestamps, trends.Power)...)

	for i, temp := range trends.Temperature {
		if temp <= tempSpikeThreshold {
			continue
		}
		severity := database.SeverityWarning
		if temp > tempCriticalThreshold {
			severity = database.SeverityCritical
		}
		anomalies = append(anomalies, &Anomaly{
			Type:      AnomalyTemperature,
			Severity:  severity,
			Timestamp: trends.Timestamps[i],
			Value:     temp,
			Threshold: tempSpikeThreshold,
		})
	}

	return anomalies, nil
}

// statisticalOutliers flags values deviating more than 2σ (warning) or 3σ
// (critical) from the mean of the non-zero series.
func statisticalOutliers(kind string, timestamps []time.Time, values []float64) []*Anomaly {
	var ts []time.Time
	var vs []float64
	for i, v := range values {
		if v > 0 {
			ts = append(ts, timestamps[i])
			vs = append(vs, v)
		}
	}
	if len(vs) < minStatisticalSamples {
		return nil
	}

	m := mean(vs)
	sd := stdev(vs)
	if sd == 0 {
		return nil
	}

	var anomalies []*Anomaly
	for i, v := range vs {
		dev := math.Abs(v-m) / sd
		if dev <= 2 {
			continue
		}
		severity := database.SeverityWarning
		if dev > 3 {
			severity = database.SeverityCritical
		}
		anomalies = append(anomalies, &Anomaly{
			Type:      kind,
			Severity:  severity,
			Timestamp: ts[i],
			Value:     v,
			Expected:  m,
			Deviation: dev,
		})
	}
	return anomalies
}
