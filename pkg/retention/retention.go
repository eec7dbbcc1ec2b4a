// Package retention prunes aged raw samples and resolved alerts and
// reclaims storage.
package retention

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mtab3000/simple-monitor/internal/obs"
	"github.com/mtab3000/simple-monitor/pkg/database"
)

// Defaults. Raw samples are kept for a month; resolved alerts outlive the
// raw horizon by another month so incident history survives sample
// pruning. Hourly rollups are deliberately never pruned so long-range
// trends survive the raw-data horizon.
const (
	DefaultRawRetention   = 30 * 24 * time.Hour
	DefaultAlertRetention = 60 * 24 * time.Hour
	DefaultVacuumInterval = 24 * time.Hour
)

// Maintainer runs retention passes. Failures are logged and reported but
// never stop future ingestion; the caller decides whether to retry.
type Maintainer struct {
	repo    database.Repository
	logger  *zap.Logger
	metrics *obs.Metrics

	RawRetention   time.Duration
	AlertRetention time.Duration
	VacuumInterval time.Duration

	lastVacuum time.Time
}

// NewMaintainer creates a maintainer with default horizons. metrics may
// be nil.
func NewMaintainer(repo database.Repository, logger *zap.Logger, metrics *obs.Metrics) *Maintainer {
	return &Maintainer{
		repo:           repo,
		logger:         logger,
		metrics:        metrics,
		RawRetention:   DefaultRawRetention,
		AlertRetention: DefaultAlertRetention,
		VacuumInterval: DefaultVacuumInterval,
	}
}

// Run deletes raw samples and resolved alerts past their horizons, then
// vacuums if the vacuum interval has elapsed.
func (m *Maintainer) Run(ctx context.Context) error {
	now := time.Now()

	deleted, err := m.repo.DeleteRawSamplesBefore(ctx, now.Add(-m.RawRetention))
	if err != nil {
		m.logger.Error("failed to prune raw samples", zap.Error(err))
		return err
	}
	if deleted > 0 {
		m.metrics.ObserveRetention(deleted)
		m.logger.Info("pruned raw samples", zap.Int64("rows", deleted))
	}

	resolved, err := m.repo.DeleteResolvedAlertsBefore(ctx, now.Add(-m.AlertRetention))
	if err != nil {
		m.logger.Error("failed to prune resolved alerts", zap.Error(err))
		return err
	}
	if resolved > 0 {
		m.metrics.ObserveRetention(resolved)
		m.logger.Info("pruned resolved alerts", zap.Int64("rows", resolved))
	}

	if now.Sub(m.lastVacuum) >= m.VacuumInterval {
		if err := m.repo.Vacuum(ctx); err != nil {
			m.logger.Error("vacuum failed", zap.Error(err))
			return err
		}
		m.lastVacuum = now
		m.logger.Info("database vacuum completed")
	}

	return nil
}
