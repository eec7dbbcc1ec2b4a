package database

// Schema contains the SQLite database schema.
// All tables use INTEGER PRIMARY KEY for auto-increment IDs.
const Schema = `
-- Miners table: core device identity
-- IP address is the stable unique identifier on the monitored LAN
CREATE TABLE IF NOT EXISTS miners (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    ip_address TEXT NOT NULL UNIQUE,
    hostname TEXT,
    expected_hashrate_ghs REAL NOT NULL DEFAULT 0,
    is_active INTEGER DEFAULT 1,       -- 1 = active, 0 = deactivated
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_miners_active ON miners(is_active);

-- Raw per-poll samples, immutable once written
CREATE TABLE IF NOT EXISTS raw_metrics (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    miner_id INTEGER NOT NULL,
    timestamp DATETIME NOT NULL,
    status TEXT NOT NULL,              -- "online", "connection_failed", "timeout", ...
    hashrate_ghs REAL,
    expected_hashrate_ghs REAL,
    hashrate_ratio_percent REAL,
    efficiency_j_th REAL,
    temp_asic_c REAL,
    temp_vr_c REAL,
    power_w REAL,
    voltage_asic_set_v REAL,
    voltage_asic_actual_v REAL,
    voltage_device_v REAL,
    frequency_set_mhz REAL,
    current_a REAL,
    shares_accepted INTEGER,
    shares_rejected INTEGER,
    rejection_rate_percent REAL,
    uptime_hours REAL,
    wifi_rssi INTEGER,
    fan_rpm INTEGER,
    connected_pool TEXT,
    FOREIGN KEY (miner_id) REFERENCES miners(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_raw_metrics_miner_time ON raw_metrics(miner_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_raw_metrics_time ON raw_metrics(timestamp);

-- Hourly aggregates, one row per miner per hour bucket
CREATE TABLE IF NOT EXISTS hourly_stats (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    miner_id INTEGER NOT NULL,
    hour_start DATETIME NOT NULL,
    samples_count INTEGER NOT NULL,
    uptime_percent REAL,
    avg_hashrate_ghs REAL,
    min_hashrate_ghs REAL,
    max_hashrate_ghs REAL,
    avg_temp_asic_c REAL,
    max_temp_asic_c REAL,
    avg_power_w REAL,
    max_power_w REAL,
    avg_efficiency_j_th REAL,
    total_shares_accepted INTEGER,
    total_shares_rejected INTEGER,
    rejection_rate_percent REAL,
    avg_wifi_rssi REAL,
    status_distribution TEXT,          -- JSON: {"online": 50, "offline": 10}
    FOREIGN KEY (miner_id) REFERENCES miners(id) ON DELETE CASCADE,
    UNIQUE(miner_id, hour_start)
);

CREATE INDEX IF NOT EXISTS idx_hourly_stats_miner_hour ON hourly_stats(miner_id, hour_start);

-- Fleet-wide time slices
CREATE TABLE IF NOT EXISTS fleet_stats (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp DATETIME NOT NULL,
    total_miners INTEGER NOT NULL,
    online_miners INTEGER NOT NULL,
    total_hashrate_ghs REAL NOT NULL,
    total_power_w REAL NOT NULL,
    avg_efficiency_j_th REAL,
    fleet_uptime_percent REAL,
    total_shares_accepted INTEGER,
    total_shares_rejected INTEGER,
    fleet_rejection_rate_percent REAL
);

CREATE INDEX IF NOT EXISTS idx_fleet_stats_time ON fleet_stats(timestamp);

-- Flagged conditions from restart detection and analytics
CREATE TABLE IF NOT EXISTS alerts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    miner_id INTEGER,                  -- NULL for fleet-wide alerts
    alert_type TEXT NOT NULL,          -- "restart", "temp_high", "hashrate_low", ...
    severity TEXT NOT NULL,            -- "info", "warning", "critical"
    message TEXT NOT NULL,
    value REAL,
    threshold REAL,
    timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
    resolved_at DATETIME,
    is_resolved INTEGER DEFAULT 0,
    FOREIGN KEY (miner_id) REFERENCES miners(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_alerts_miner_time ON alerts(miner_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_alerts_type_severity ON alerts(alert_type, severity);

-- Schema version for migrations
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

// SchemaVersion is the current schema version.
const SchemaVersion = 1

// Migrations contains SQL migrations indexed by version.
// Each migration upgrades from version N-1 to version N.
var Migrations = map[int]string{
	1: Schema, // Initial schema
}
