// Package ingest writes collector sample batches into the store and runs
// the best-effort side effects of ingestion (restart detection, fleet
// snapshots).
package ingest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mtab3000/simple-monitor/internal/obs"
	"github.com/mtab3000/simple-monitor/pkg/database"
)

// Pipeline ingests sample batches. Safe for concurrent use; each batch is
// one store transaction.
type Pipeline struct {
	repo     database.Repository
	detector *RestartDetector
	logger   *zap.Logger
	metrics  *obs.Metrics
}

// NewPipeline creates an ingestion pipeline. metrics may be nil.
func NewPipeline(repo database.Repository, logger *zap.Logger, metrics *obs.Metrics) *Pipeline {
	return &Pipeline{
		repo:     repo,
		detector: NewRestartDetector(repo, logger, metrics),
		logger:   logger,
		metrics:  metrics,
	}
}

// Ingest upserts the miners referenced by the batch and inserts the
// samples in one transaction. Null entries from a decoded batch are
// dropped rather than failing the write. Restart detection runs against
// the state stored before the batch and never fails the write path.
func (p *Pipeline) Ingest(ctx context.Context, batch []*database.SampleInput) error {
	samples := make([]*database.SampleInput, 0, len(batch))
	for _, in := range batch {
		if in != nil {
			samples = append(samples, in)
		}
	}
	if dropped := len(batch) - len(samples); dropped > 0 {
		p.logger.Warn("dropped null samples from batch", zap.Int("dropped", dropped))
	}
	if len(samples) == 0 {
		return nil
	}

	// Detection reads each miner's previous uptime, so it must run before
	// the new samples land; alerts are written after, once every miner in
	// the batch has a row.
	restarts := p.detector.scan(ctx, samples)

	if err := p.repo.InsertSampleBatch(ctx, samples); err != nil {
		p.metrics.ObserveIngestFailure()
		return fmt.Errorf("failed to insert sample batch: %w", err)
	}

	p.detector.record(ctx, restarts)

	p.metrics.ObserveIngest(len(samples))
	p.logger.Info("ingested sample batch", zap.Int("samples", len(samples)))
	return nil
}

// FleetSummary derives fleet-wide sums and averages from the latest sample
// of each active miner.
func (p *Pipeline) FleetSummary(ctx context.Context) (*database.FleetSummary, error) {
	current, err := p.repo.LatestSamples(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest samples: %w", err)
	}

	summary := &database.FleetSummary{TotalMiners: len(current)}
	for _, c := range current {
		if c.Sample.Status != database.StatusOnline {
			continue
		}
		summary.OnlineMiners++
		summary.TotalHashrateGHS += c.Sample.HashrateGHS
		summary.TotalPowerW += c.Sample.PowerW
		summary.AvgTempASIC += c.Sample.TempASIC
		summary.AvgTempVR += c.Sample.TempVR
	}
	if summary.OnlineMiners > 0 {
		summary.AvgTempASIC /= float64(summary.OnlineMiners)
		summary.AvgTempVR /= float64(summary.OnlineMiners)
	}
	if summary.TotalHashrateGHS > 0 {
		// J/TH: watts over terahash
		summary.FleetEfficiency = summary.TotalPowerW / (summary.TotalHashrateGHS / 1000)
	}
	return summary, nil
}

// RecordFleetSnapshot persists a fleet_stats time slice derived from the
// fleet's current status.
func (p *Pipeline) RecordFleetSnapshot(ctx context.Context) error {
	current, err := p.repo.LatestSamples(ctx)
	if err != nil {
		return fmt.Errorf("failed to load latest samples: %w", err)
	}
	if len(current) == 0 {
		return nil
	}

	stat := &database.FleetStat{TotalMiners: len(current)}
	for _, c := range current {
		stat.TotalSharesAccepted += c.Sample.SharesAccepted
		stat.TotalSharesRejected += c.Sample.SharesRejected
		if c.Sample.Status != database.StatusOnline {
			continue
		}
		stat.OnlineMiners++
		stat.TotalHashrateGHS += c.Sample.HashrateGHS
		stat.TotalPowerW += c.Sample.PowerW
		stat.AvgEfficiencyJTH += c.Sample.EfficiencyJTH
	}
	if stat.OnlineMiners > 0 {
		stat.AvgEfficiencyJTH /= float64(stat.OnlineMiners)
	}
	stat.FleetUptimePercent = float64(stat.OnlineMiners) / float64(stat.TotalMiners) * 100
	stat.FleetRejectionRate = database.RejectionRatePercent(stat.TotalSharesAccepted, stat.TotalSharesRejected)

	if err := p.repo.InsertFleetStat(ctx, stat); err != nil {
		return fmt.Errorf("failed to insert fleet snapshot: %w", err)
	}
	return nil
}
