// Package obs holds process-local observability counters.
package obs

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the prometheus collectors shared by the pipeline, the
// rollup engine, and retention. A nil *Metrics disables instrumentation.
type Metrics struct {
	SamplesIngested  prometheus.Counter
	BatchesIngested  prometheus.Counter
	IngestFailures   prometheus.Counter
	RestartsDetected prometheus.Counter
	RollupBuckets    prometheus.Counter
	RollupDuration   prometheus.Histogram
	RetentionDeletes prometheus.Counter
}

// New creates and registers the collectors on the given registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SamplesIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "monitor_samples_ingested_total",
			Help: "Raw samples written to the store.",
		}),
		BatchesIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "monitor_sample_batches_total",
			Help: "Sample batches accepted by the ingestion pipeline.",
		}),
		IngestFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "monitor_ingest_failures_total",
			Help: "Sample batches that failed to commit.",
		}),
		RestartsDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "monitor_restarts_detected_total",
			Help: "Miner restarts inferred from uptime drops.",
		}),
		RollupBuckets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "monitor_rollup_buckets_total",
			Help: "Hourly rollup buckets upserted.",
		}),
		RollupDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "monitor_rollup_duration_seconds",
			Help:    "Duration of full rollup passes.",
			Buckets: prometheus.DefBuckets,
		}),
		RetentionDeletes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "monitor_retention_rows_deleted_total",
			Help: "Rows removed by retention maintenance.",
		}),
	}
	reg.MustRegister(m.SamplesIngested, m.BatchesIngested, m.IngestFailures,
		m.RestartsDetected, m.RollupBuckets, m.RollupDuration, m.RetentionDeletes)
	return m
}

func (m *Metrics) addSamples(n int) {
	if m == nil {
		return
	}
	m.SamplesIngested.Add(float64(n))
	m.BatchesIngested.Inc()
}

// ObserveIngest records an accepted batch of n samples.
func (m *Metrics) ObserveIngest(n int) { m.addSamples(n) }

// ObserveIngestFailure records a failed batch.
func (m *Metrics) ObserveIngestFailure() {
	if m == nil {
		return
	}
	m.IngestFailures.Inc()
}

// ObserveRestart records a detected miner restart.
func (m *Metrics) ObserveRestart() {
	if m == nil {
		return
	}
	m.RestartsDetected.Inc()
}

// ObserveRollup records an upserted rollup bucket.
func (m *Metrics) ObserveRollup() {
	if m == nil {
		return
	}
	m.RollupBuckets.Inc()
}

// ObserveRollupPass records the duration of a full rollup pass.
func (m *Metrics) ObserveRollupPass(seconds float64) {
	if m == nil {
		return
	}
	m.RollupDuration.Observe(seconds)
}

// ObserveRetention records rows removed by a retention pass.
func (m *Metrics) ObserveRetention(rows int64) {
	if m == nil {
		return
	}
	m.RetentionDeletes.Add(float64(rows))
}
