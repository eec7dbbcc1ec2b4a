// Package rollup aggregates raw samples into hourly per-miner statistics.
package rollup

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/mtab3000/simple-monitor/internal/obs"
	"github.com/mtab3000/simple-monitor/pkg/database"
)

// DefaultBackfill is how far behind "now" a rollup pass starts when no
// explicit start is given. 25 hours guarantees overlap with the previous
// pass so late samples are still folded in.
const DefaultBackfill = 25 * time.Hour

// Engine computes hourly rollups. Recomputing a bucket from unchanged raw
// data is idempotent: the row is upserted with identical values.
type Engine struct {
	repo    database.Repository
	logger  *zap.Logger
	metrics *obs.Metrics
}

// NewEngine creates a rollup engine. metrics may be nil.
func NewEngine(repo database.Repository, logger *zap.Logger, metrics *obs.Metrics) *Engine {
	return &Engine{repo: repo, logger: logger, metrics: metrics}
}

// Run walks hour-aligned buckets from since (zero value: now minus the
// default backfill) up to the current hour boundary and upserts one rollup
// row per active miner per non-empty bucket.
func (e *Engine) Run(ctx context.Context, since time.Time) error {
	start := time.Now()

	if since.IsZero() {
		since = start.Add(-DefaultBackfill)
	}
	firstHour := since.UTC().Truncate(time.Hour)
	endHour := start.UTC().Truncate(time.Hour)

	miners, err := e.repo.ListMiners(ctx, true)
	if err != nil {
		return fmt.Errorf("failed to list miners: %w", err)
	}

	buckets := 0
	for _, m := range miners {
		for hour := firstHour; hour.Before(endHour); hour = hour.Add(time.Hour) {
			wrote, err := e.RollupBucket(ctx, m.ID, hour)
			if err != nil {
				return fmt.Errorf("failed to roll up %s hour %s: %w",
					m.IPAddress, hour.Format(time.RFC3339), err)
			}
			if wrote {
				buckets++
				e.metrics.ObserveRollup()
			}
		}
	}

	e.metrics.ObserveRollupPass(time.Since(start).Seconds())
	e.logger.Info("rollup pass complete",
		zap.Int("miners", len(miners)),
		zap.Int("buckets", buckets),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// RollupBucket recomputes one miner's rollup for the hour starting at
// hourStart. Returns false when the bucket holds no samples.
func (e *Engine) RollupBucket(ctx context.Context, minerID int64, hourStart time.Time) (bool, error) {
	hourStart = hourStart.UTC().Truncate(time.Hour)
	groups, err := e.repo.StatusGroupStats(ctx, minerID, hourStart, hourStart.Add(time.Hour))
	if err != nil {
		return false, err
	}
	if len(groups) == 0 {
		return false, nil
	}

	stat := CombineGroups(groups)
	stat.MinerID = minerID
	stat.HourStart = hourStart

	if err := e.repo.UpsertHourlyStat(ctx, stat); err != nil {
		return false, err
	}
	return true, nil
}

// CombineGroups merges per-status aggregates into a single bucket row.
// Every per-group average is weighted by that group's sample count, so a
// bucket with 50 "online" samples and one "overheating" sample is not
// skewed the way a naive mean of the two group averages would be. The
// rejection rate is recomputed from the combined share counters, never
// averaged.
func CombineGroups(groups []*database.StatusGroupStat) *database.HourlyStat {
	stat := &database.HourlyStat{
		MinHashrateGHS:     math.Inf(1),
		StatusDistribution: make(map[string]int, len(groups)),
	}

	for _, g := range groups {
		weight := float64(g.SamplesCount)
		stat.SamplesCount += g.SamplesCount
		stat.StatusDistribution[g.Status] = int(g.SamplesCount)

		stat.UptimePercent += g.UptimePercent * weight
		stat.AvgHashrateGHS += g.AvgHashrateGHS * weight
		stat.AvgTempASIC += g.AvgTempASIC * weight
		stat.AvgPowerW += g.AvgPowerW * weight
		stat.AvgEfficiencyJTH += g.AvgEfficiencyJTH * weight
		stat.AvgWifiRSSI += g.AvgWifiRSSI * weight

		stat.MinHashrateGHS = math.Min(stat.MinHashrateGHS, g.MinHashrateGHS)
		stat.MaxHashrateGHS = math.Max(stat.MaxHashrateGHS, g.MaxHashrateGHS)
		stat.MaxTempASIC = math.Max(stat.MaxTempASIC, g.MaxTempASIC)
		stat.MaxPowerW = math.Max(stat.MaxPowerW, g.MaxPowerW)

		stat.TotalSharesAccepted += g.TotalSharesAccepted
		stat.TotalSharesRejected += g.TotalSharesRejected
	}

	if stat.SamplesCount > 0 {
		total := float64(stat.SamplesCount)
		stat.UptimePercent /= total
		stat.AvgHashrateGHS /= total
		stat.AvgTempASIC /= total
		stat.AvgPowerW /= total
		stat.AvgEfficiencyJTH /= total
		stat.AvgWifiRSSI /= total
	}
	if math.IsInf(stat.MinHashrateGHS, 1) {
		stat.MinHashrateGHS = 0
	}
	stat.RejectionRate = database.RejectionRatePercent(stat.TotalSharesAccepted, stat.TotalSharesRejected)

	return stat
}

// Trends returns a miner's time-ordered hourly series over the last N
// hours. This is the read path the analytics layer consumes.
func (e *Engine) Trends(ctx context.Context, minerID int64, hours int) (*database.TrendData, error) {
	now := time.Now().UTC()
	stats, err := e.repo.HourlyStatsInRange(ctx, minerID, now.Add(-time.Duration(hours)*time.Hour), now)
	if err != nil {
		return nil, fmt.Errorf("failed to load hourly stats: %w", err)
	}

	trends := &database.TrendData{}
	for _, s := range stats {
		trends.Timestamps = append(trends.Timestamps, s.HourStart)
		trends.Uptime = append(trends.Uptime, s.UptimePercent)
		trends.Hashrate = append(trends.Hashrate, s.AvgHashrateGHS)
		trends.Temperature = append(trends.Temperature, s.AvgTempASIC)
		trends.Power = append(trends.Power, s.AvgPowerW)
		trends.Efficiency = append(trends.Efficiency, s.AvgEfficiencyJTH)
		trends.RejectionRate = append(trends.RejectionRate, s.RejectionRate)
	}
	return trends, nil
}
