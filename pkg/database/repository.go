package database

import (
	"context"
	"time"
)

// SampleInput is one sample at the ingestion boundary. It carries the
// miner's identity alongside the observation so a batch insert can upsert
// miners and samples in one transaction.
type SampleInput struct {
	MinerIP          string    `json:"miner_ip"`
	Hostname         string    `json:"hostname"`
	Timestamp        time.Time `json:"timestamp"`
	Status           string    `json:"status"`
	HashrateGHS      float64   `json:"hashrate_ghs"`
	ExpectedHashrate float64   `json:"expected_hashrate_ghs"`
	HashrateRatio    float64   `json:"hashrate_ratio_percent"`
	EfficiencyJTH    float64   `json:"efficiency_j_th"`
	TempASIC         float64   `json:"temp_asic_c"`
	TempVR           float64   `json:"temp_vr_c"`
	PowerW           float64   `json:"power_w"`
	VoltageASICSet   float64   `json:"voltage_asic_set_v"`
	VoltageASIC      float64   `json:"voltage_asic_actual_v"`
	VoltageDevice    float64   `json:"voltage_device_v"`
	FrequencyMHz     float64   `json:"frequency_set_mhz"`
	CurrentA         float64   `json:"current_a"`
	SharesAccepted   int64     `json:"shares_accepted"`
	SharesRejected   int64     `json:"shares_rejected"`
	UptimeHours      float64   `json:"uptime_hours"`
	WifiRSSI         int       `json:"wifi_rssi"`
	FanRPM           int       `json:"fan_rpm"`
	ConnectedPool    string    `json:"connected_pool"`
}

// Repository defines the interface for monitoring data storage.
type Repository interface {
	// Database lifecycle
	Close() error

	// Miners
	UpsertMiner(ctx context.Context, ip, hostname string, expectedHashrate float64) (int64, error)
	GetMinerByIP(ctx context.Context, ip string) (*Miner, error)
	ListMiners(ctx context.Context, activeOnly bool) ([]*Miner, error)
	DeactivateMiner(ctx context.Context, id int64) error

	// Raw samples
	InsertSampleBatch(ctx context.Context, batch []*SampleInput) error
	LastUptimeHours(ctx context.Context, minerID int64) (*float64, error)
	LatestSamples(ctx context.Context) ([]*MinerCurrent, error)
	SamplesInRange(ctx context.Context, minerID int64, from, to time.Time) ([]*RawSample, error)

	// Alerts
	InsertAlert(ctx context.Context, a *Alert) error
	ListAlerts(ctx context.Context, minerID *int64, unresolvedOnly bool, limit int) ([]*Alert, error)
	ResolveAlert(ctx context.Context, id int64) error

	// Hourly rollups
	StatusGroupStats(ctx context.Context, minerID int64, from, to time.Time) ([]*StatusGroupStat, error)
	UpsertHourlyStat(ctx context.Context, s *HourlyStat) error
	HourlyStatsInRange(ctx context.Context, minerID int64, from, to time.Time) ([]*HourlyStat, error)

	// Analytics read paths
	DailyAverages(ctx context.Context, minerID int64, days int) ([]*DailyAverage, error)
	SettingsGroups(ctx context.Context, minerID int64, days, minSamples int) ([]*SettingsGroup, error)
	FleetAnalytics(ctx context.Context, days int) (*FleetAnalytics, error)

	// Fleet snapshots
	InsertFleetStat(ctx context.Context, s *FleetStat) error
	FleetStatsInRange(ctx context.Context, from, to time.Time) ([]*FleetStat, error)

	// Retention
	DeleteRawSamplesBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteResolvedAlertsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	Vacuum(ctx context.Context) error
}
