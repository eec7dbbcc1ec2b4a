// Package database provides SQLite storage for miner monitoring data.
package database

import "time"

// Alert severity tiers.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// StatusOnline is the status tag collectors report for a healthy poll.
// Every other tag ("connection_failed", "timeout", ...) counts as downtime.
const StatusOnline = "online"

// Miner represents a monitored device in the database.
// This is the core entity that other tables reference.
type Miner struct {
	ID               int64     `json:"id"`
	IPAddress        string    `json:"ip_address"`
	Hostname         string    `json:"hostname"`
	ExpectedHashrate float64   `json:"expected_hashrate_ghs"` // GH/s
	IsActive         bool      `json:"is_active"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// RawSample represents one observation for one miner at one instant.
// Samples are immutable once written; retention deletes them wholesale.
type RawSample struct {
	ID               int64     `json:"id"`
	MinerID          int64     `json:"miner_id"`
	Timestamp        time.Time `json:"timestamp"`
	Status           string    `json:"status"`
	// Core mining performance
	HashrateGHS      float64   `json:"hashrate_ghs"`
	ExpectedHashrate float64   `json:"expected_hashrate_ghs"`
	HashrateRatio    float64   `json:"hashrate_ratio_percent"`
	EfficiencyJTH    float64   `json:"efficiency_j_th"`
	// Temperature monitoring
	TempASIC         float64   `json:"temp_asic_c"`
	TempVR           float64   `json:"temp_vr_c"`
	// Power and electrical
	PowerW           float64   `json:"power_w"`
	VoltageASICSet   float64   `json:"voltage_asic_set_v"`
	VoltageASIC      float64   `json:"voltage_asic_actual_v"`
	VoltageDevice    float64   `json:"voltage_device_v"`
	FrequencyMHz     float64   `json:"frequency_set_mhz"`
	CurrentA         float64   `json:"current_a"`
	// Mining statistics
	SharesAccepted   int64     `json:"shares_accepted"`
	SharesRejected   int64     `json:"shares_rejected"`
	RejectionRate    float64   `json:"rejection_rate_percent"`
	// System status
	UptimeHours      float64   `json:"uptime_hours"`
	WifiRSSI         int       `json:"wifi_rssi"`
	FanRPM           int       `json:"fan_rpm"`
	ConnectedPool    string    `json:"connected_pool"`
}

// HourlyStat is one aggregate per miner per hour-aligned bucket.
// Rows are upserted by the rollup engine and recomputable from raw samples.
type HourlyStat struct {
	ID                  int64          `json:"id"`
	MinerID             int64          `json:"miner_id"`
	HourStart           time.Time      `json:"hour_start"`
	SamplesCount        int64          `json:"samples_count"`
	UptimePercent       float64        `json:"uptime_percent"`
	AvgHashrateGHS      float64        `json:"avg_hashrate_ghs"`
	MinHashrateGHS      float64        `json:"min_hashrate_ghs"`
	MaxHashrateGHS      float64        `json:"max_hashrate_ghs"`
	AvgTempASIC         float64        `json:"avg_temp_asic_c"`
	MaxTempASIC         float64        `json:"max_temp_asic_c"`
	AvgPowerW           float64        `json:"avg_power_w"`
	MaxPowerW           float64        `json:"max_power_w"`
	AvgEfficiencyJTH    float64        `json:"avg_efficiency_j_th"`
	TotalSharesAccepted int64          `json:"total_shares_accepted"`
	TotalSharesRejected int64          `json:"total_shares_rejected"`
	RejectionRate       float64        `json:"rejection_rate_percent"`
	AvgWifiRSSI         float64        `json:"avg_wifi_rssi"`
	StatusDistribution  map[string]int `json:"status_distribution"`
}

// FleetStat is a fleet-wide time slice derived from the latest samples.
type FleetStat struct {
	ID                  int64     `json:"id"`
	Timestamp           time.Time `json:"timestamp"`
	TotalMiners         int       `json:"total_miners"`
	OnlineMiners        int       `json:"online_miners"`
	TotalHashrateGHS    float64   `json:"total_hashrate_ghs"`
	TotalPowerW         float64   `json:"total_power_w"`
	AvgEfficiencyJTH    float64   `json:"avg_efficiency_j_th"`
	FleetUptimePercent  float64   `json:"fleet_uptime_percent"`
	TotalSharesAccepted int64     `json:"total_shares_accepted"`
	TotalSharesRejected int64     `json:"total_shares_rejected"`
	FleetRejectionRate  float64   `json:"fleet_rejection_rate_percent"`
}

// Alert represents a flagged condition on a miner or the whole fleet.
type Alert struct {
	ID         int64      `json:"id"`
	MinerID    *int64     `json:"miner_id"` // nil for fleet-wide alerts
	Type       string     `json:"alert_type"`
	Severity   string     `json:"severity"`
	Message    string     `json:"message"`
	Value      float64    `json:"value"`
	Threshold  float64    `json:"threshold"`
	Timestamp  time.Time  `json:"timestamp"`
	ResolvedAt *time.Time `json:"resolved_at"`
	IsResolved bool       `json:"is_resolved"`
}

// MinerCurrent is a miner joined with its most recent raw sample.
type MinerCurrent struct {
	Miner  Miner     `json:"miner"`
	Sample RawSample `json:"sample"`
}

// FleetSummary holds derived sums/averages over the fleet's current status.
type FleetSummary struct {
	TotalMiners      int     `json:"total_miners"`
	OnlineMiners     int     `json:"online_miners"`
	TotalHashrateGHS float64 `json:"total_hashrate_ghs"`
	TotalPowerW      float64 `json:"total_power_w"`
	AvgTempASIC      float64 `json:"avg_temp_asic_c"`
	AvgTempVR        float64 `json:"avg_temp_vr_c"`
	FleetEfficiency  float64 `json:"fleet_efficiency_j_th"`
}

// TrendData holds time-ordered series from hourly rollups for one miner.
// This is the sole read path the analytics layer consumes.
type TrendData struct {
	Timestamps    []time.Time `json:"timestamps"`
	Uptime        []float64   `json:"uptime"`
	Hashrate      []float64   `json:"hashrate"`
	Temperature   []float64   `json:"temperature"`
	Power         []float64   `json:"power"`
	Efficiency    []float64   `json:"efficiency"`
	RejectionRate []float64   `json:"rejection_rate"`
}

// StatusGroupStat is a per-status aggregate over one miner's samples in a
// time window, as produced by GROUP BY status. The rollup engine combines
// these into a single HourlyStat weighted by SamplesCount.
type StatusGroupStat struct {
	Status              string
	SamplesCount        int64
	UptimePercent       float64
	AvgHashrateGHS      float64
	MinHashrateGHS      float64
	MaxHashrateGHS      float64
	AvgTempASIC         float64
	MaxTempASIC         float64
	AvgPowerW           float64
	MaxPowerW           float64
	AvgEfficiencyJTH    float64
	TotalSharesAccepted int64
	TotalSharesRejected int64
	AvgWifiRSSI         float64
}

// DailyAverage is a calendar-day aggregate of hourly stats for one miner,
// used by growth/trend analysis.
type DailyAverage struct {
	Date       string  `json:"date"` // YYYY-MM-DD
	Hashrate   float64 `json:"daily_hashrate"`
	Power      float64 `json:"daily_power"`
	Efficiency float64 `json:"daily_efficiency"`
	Uptime     float64 `json:"daily_uptime"`
}

// SettingsGroup aggregates samples sharing a rounded (voltage, frequency)
// pair, used by the settings optimizer.
type SettingsGroup struct {
	VoltageV      float64 `json:"voltage"`
	FrequencyMHz  float64 `json:"frequency"`
	AvgHashrate   float64 `json:"avg_hashrate"`
	AvgPowerW     float64 `json:"avg_power"`
	AvgTempASIC   float64 `json:"avg_temp"`
	AvgEfficiency float64 `json:"avg_efficiency"`
	Samples       int64   `json:"samples"`
}

// MinerPerformance is a per-miner aggregate row used in fleet analytics
// rankings (top performers, problem miners).
type MinerPerformance struct {
	IPAddress     string  `json:"ip_address"`
	Hostname      string  `json:"hostname"`
	AvgUptime     float64 `json:"avg_uptime"`
	AvgHashrate   float64 `json:"avg_hashrate"`
	AvgEfficiency float64 `json:"avg_efficiency"`
	AvgRejection  float64 `json:"avg_rejection_rate"`
	AlertCount    int64   `json:"alert_count"`
}

// FleetAnalytics holds rollup-derived fleet aggregates and rankings.
type FleetAnalytics struct {
	TotalMiners      int                 `json:"total_miners"`
	AvgUptime        float64             `json:"avg_uptime"`
	TotalHashrateGHS float64             `json:"total_hashrate"`
	TotalPowerW      float64             `json:"total_power"`
	AvgEfficiency    float64             `json:"avg_efficiency"`
	AvgTempASIC      float64             `json:"avg_temperature"`
	AvgRejectionRate float64             `json:"avg_rejection_rate"`
	TopPerformers    []*MinerPerformance `json:"top_performers"`
	ProblemMiners    []*MinerPerformance `json:"problem_miners"`
	PeriodDays       int                 `json:"period_days"`
}
