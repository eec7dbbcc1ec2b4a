package ingest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mtab3000/simple-monitor/internal/obs"
	"github.com/mtab3000/simple-monitor/pkg/database"
)

// RestartTolerance is the uptime drop, in hours, below which a decrease is
// treated as clock jitter rather than a reboot. 0.1 h is roughly 6 minutes,
// small enough to catch restarts triggered during tuning.
const RestartTolerance = 0.1

// AlertTypeRestart tags alerts recorded for inferred miner reboots.
const AlertTypeRestart = "restart"

// RestartDetector infers miner reboots from uptime discontinuity between
// consecutive samples.
type RestartDetector struct {
	repo    database.Repository
	logger  *zap.Logger
	metrics *obs.Metrics
}

// NewRestartDetector creates a detector. metrics may be nil.
func NewRestartDetector(repo database.Repository, logger *zap.Logger, metrics *obs.Metrics) *RestartDetector {
	return &RestartDetector{repo: repo, logger: logger, metrics: metrics}
}

// restart is one inferred reboot, held between the pre-insert scan and the
// post-insert alert write.
type restart struct {
	minerIP  string
	previous float64
	current  float64
}

// scan compares each online sample's uptime against the miner's most recent
// uptime: the stored one for a miner's first sample in the batch, the
// preceding batch sample after that, so a reboot landing between two polls
// collected into one batch is still caught. It must run before the batch is
// written, while the stored state still reflects the previous poll. It is a
// best-effort side effect of ingestion: all errors are logged and swallowed
// so detection can never fail the write path.
func (d *RestartDetector) scan(ctx context.Context, batch []*database.SampleInput) []restart {
	var restarts []restart
	seen := make(map[string]float64, len(batch))

	for _, in := range batch {
		last, inBatch := seen[in.MinerIP]
		seen[in.MinerIP] = in.UptimeHours

		if in.Status != database.StatusOnline {
			continue
		}
		if !inBatch {
			stored, ok := d.lastStoredUptime(ctx, in.MinerIP)
			if !ok {
				continue
			}
			last = stored
		}
		if in.UptimeHours >= last-RestartTolerance {
			continue
		}
		restarts = append(restarts, restart{
			minerIP:  in.MinerIP,
			previous: last,
			current:  in.UptimeHours,
		})
	}
	return restarts
}

func (d *RestartDetector) lastStoredUptime(ctx context.Context, ip string) (float64, bool) {
	miner, err := d.repo.GetMinerByIP(ctx, ip)
	if err != nil {
		d.logger.Warn("restart check skipped", zap.String("miner", ip), zap.Error(err))
		return 0, false
	}
	if miner == nil {
		// First contact, nothing to compare against.
		return 0, false
	}

	last, err := d.repo.LastUptimeHours(ctx, miner.ID)
	if err != nil {
		d.logger.Warn("restart check skipped", zap.String("miner", ip), zap.Error(err))
		return 0, false
	}
	if last == nil {
		return 0, false
	}
	return *last, true
}

// record writes one resolved info alert per inferred reboot. It runs after
// the batch insert so miners first seen in this batch already have a row to
// reference.
func (d *RestartDetector) record(ctx context.Context, restarts []restart) {
	for _, r := range restarts {
		miner, err := d.repo.GetMinerByIP(ctx, r.minerIP)
		if err != nil || miner == nil {
			d.logger.Warn("failed to record restart alert", zap.String("miner", r.minerIP), zap.Error(err))
			continue
		}

		alert := &database.Alert{
			MinerID:    &miner.ID,
			Type:       AlertTypeRestart,
			Severity:   database.SeverityInfo,
			Message:    fmt.Sprintf("Miner restart detected: uptime dropped from %.2fh to %.2fh", r.previous, r.current),
			Value:      r.current,
			Threshold:  r.previous,
			IsResolved: true,
		}
		if err := d.repo.InsertAlert(ctx, alert); err != nil {
			d.logger.Warn("failed to record restart alert", zap.String("miner", r.minerIP), zap.Error(err))
			continue
		}

		d.metrics.ObserveRestart()
		d.logger.Info("miner restart detected",
			zap.String("miner", r.minerIP),
			zap.Float64("previous_uptime_h", r.previous),
			zap.Float64("current_uptime_h", r.current))
	}
}
