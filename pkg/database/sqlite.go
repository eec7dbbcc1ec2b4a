package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite repository.
// The dbPath can be a file path or ":memory:" for in-memory database.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=30000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	repo := &SQLiteRepository{db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return repo, nil
}

// migrate runs database migrations.
func (r *SQLiteRepository) migrate() error {
	// Get current schema version
	var currentVersion int
	err := r.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&currentVersion)
	if err != nil {
		// Table doesn't exist, run initial schema
		if _, err := r.db.Exec(Schema); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
		_, err = r.db.Exec("INSERT INTO schema_version (version) VALUES (?)", SchemaVersion)
		return err
	}

	// Run any pending migrations
	for v := currentVersion + 1; v <= SchemaVersion; v++ {
		migration, ok := Migrations[v]
		if !ok {
			continue
		}
		if _, err := r.db.Exec(migration); err != nil {
			return fmt.Errorf("failed to run migration %d: %w", v, err)
		}
		if _, err := r.db.Exec("INSERT INTO schema_version (version) VALUES (?)", v); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", v, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// DB returns the underlying database connection for advanced queries.
func (r *SQLiteRepository) DB() *sql.DB {
	return r.db
}

// execer abstracts *sql.DB and *sql.Tx so miner upserts can run standalone
// or inside a batch transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// =============================================================================
// Miners
// =============================================================================

// UpsertMiner inserts a miner or updates its mutable fields. Empty hostname
// and non-positive expected hashrate never overwrite stored values. A new
// miner with no hostname gets a default name derived from its address.
func (r *SQLiteRepository) UpsertMiner(ctx context.Context, ip, hostname string, expectedHashrate float64) (int64, error) {
	return upsertMiner(ctx, r.db, ip, hostname, expectedHashrate)
}

// upsertMiner inserts or refreshes a miner in one statement, so two
// concurrent first contacts for the same address both land on the same
// row instead of racing the UNIQUE constraint.
func upsertMiner(ctx context.Context, e execer, ip, hostname string, expectedHashrate float64) (int64, error) {
	if expectedHashrate < 0 {
		expectedHashrate = 0
	}
	insertHostname := hostname
	if insertHostname == "" {
		insertHostname = defaultHostname(ip)
	}

	_, err := e.ExecContext(ctx, `
		INSERT INTO miners (ip_address, hostname, expected_hashrate_ghs)
		VALUES (?, ?, ?)
		ON CONFLICT(ip_address) DO UPDATE SET
			hostname = COALESCE(NULLIF(?, ''), hostname),
			expected_hashrate_ghs = COALESCE(NULLIF(?, 0), expected_hashrate_ghs),
			updated_at = CURRENT_TIMESTAMP,
			is_active = 1`,
		ip, insertHostname, expectedHashrate, hostname, expectedHashrate)
	if err != nil {
		return 0, err
	}

	var id int64
	err = e.QueryRowContext(ctx, "SELECT id FROM miners WHERE ip_address = ?", ip).Scan(&id)
	return id, err
}

// defaultHostname derives a display name from the last octet of the address.
func defaultHostname(ip string) string {
	if i := strings.LastIndex(ip, "."); i >= 0 && i < len(ip)-1 {
		return "Miner-" + ip[i+1:]
	}
	return "Miner-" + ip
}

func (r *SQLiteRepository) GetMinerByIP(ctx context.Context, ip string) (*Miner, error) {
	m := &Miner{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, ip_address, hostname, expected_hashrate_ghs, is_active, created_at, updated_at
		FROM miners WHERE ip_address = ?`, ip).Scan(
		&m.ID, &m.IPAddress, &m.Hostname, &m.ExpectedHashrate, &m.IsActive, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return m, err
}

func (r *SQLiteRepository) ListMiners(ctx context.Context, activeOnly bool) ([]*Miner, error) {
	query := `
		SELECT id, ip_address, hostname, expected_hashrate_ghs, is_active, created_at, updated_at
		FROM miners`
	if activeOnly {
		query += " WHERE is_active = 1"
	}
	query += " ORDER BY ip_address"

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var miners []*Miner
	for rows.Next() {
		m := &Miner{}
		if err := rows.Scan(&m.ID, &m.IPAddress, &m.Hostname, &m.ExpectedHashrate,
			&m.IsActive, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		miners = append(miners, m)
	}
	return miners, rows.Err()
}

// DeactivateMiner marks a miner inactive. Miners are never hard-deleted.
func (r *SQLiteRepository) DeactivateMiner(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE miners SET is_active = 0, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, id)
	return err
}

// =============================================================================
// Raw samples
// =============================================================================

const rawSampleColumns = `id, miner_id, timestamp, status,
	hashrate_ghs, expected_hashrate_ghs, hashrate_ratio_percent, efficiency_j_th,
	temp_asic_c, temp_vr_c,
	power_w, voltage_asic_set_v, voltage_asic_actual_v, voltage_device_v,
	frequency_set_mhz, current_a,
	shares_accepted, shares_rejected, rejection_rate_percent,
	uptime_hours, wifi_rssi, fan_rpm, connected_pool`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRawSample(row rowScanner, s *RawSample) error {
	return row.Scan(&s.ID, &s.MinerID, &s.Timestamp, &s.Status,
		&s.HashrateGHS, &s.ExpectedHashrate, &s.HashrateRatio, &s.EfficiencyJTH,
		&s.TempASIC, &s.TempVR,
		&s.PowerW, &s.VoltageASICSet, &s.VoltageASIC, &s.VoltageDevice,
		&s.FrequencyMHz, &s.CurrentA,
		&s.SharesAccepted, &s.SharesRejected, &s.RejectionRate,
		&s.UptimeHours, &s.WifiRSSI, &s.FanRPM, &s.ConnectedPool)
}

// InsertSampleBatch upserts each sample's miner and inserts the sample,
// all in one transaction. The rejection rate is recomputed at write time
// from the share counters.
func (r *SQLiteRepository) InsertSampleBatch(ctx context.Context, batch []*SampleInput) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, in := range batch {
		minerID, err := upsertMiner(ctx, tx, in.MinerIP, in.Hostname, in.ExpectedHashrate)
		if err != nil {
			return fmt.Errorf("failed to upsert miner %s: %w", in.MinerIP, err)
		}

		rejectionRate := RejectionRatePercent(in.SharesAccepted, in.SharesRejected)

		_, err = tx.ExecContext(ctx, `
			INSERT INTO raw_metrics (
				miner_id, timestamp, status,
				hashrate_ghs, expected_hashrate_ghs, hashrate_ratio_percent, efficiency_j_th,
				temp_asic_c, temp_vr_c,
				power_w, voltage_asic_set_v, voltage_asic_actual_v, voltage_device_v,
				frequency_set_mhz, current_a,
				shares_accepted, shares_rejected, rejection_rate_percent,
				uptime_hours, wifi_rssi, fan_rpm, connected_pool
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			minerID, in.Timestamp.UTC(), in.Status,
			in.HashrateGHS, in.ExpectedHashrate, in.HashrateRatio, in.EfficiencyJTH,
			in.TempASIC, in.TempVR,
			in.PowerW, in.VoltageASICSet, in.VoltageASIC, in.VoltageDevice,
			in.FrequencyMHz, in.CurrentA,
			in.SharesAccepted, in.SharesRejected, rejectionRate,
			in.UptimeHours, in.WifiRSSI, in.FanRPM, in.ConnectedPool)
		if err != nil {
			return fmt.Errorf("failed to insert sample for %s: %w", in.MinerIP, err)
		}
	}

	return tx.Commit()
}

// RejectionRatePercent computes rejected/(accepted+rejected) as a
// percentage, 0 when no shares were submitted.
func RejectionRatePercent(accepted, rejected int64) float64 {
	total := accepted + rejected
	if total == 0 {
		return 0
	}
	return float64(rejected) / float64(total) * 100
}

// LastUptimeHours returns the uptime of the most recent stored sample for
// a miner, or nil if the miner has no samples yet.
func (r *SQLiteRepository) LastUptimeHours(ctx context.Context, minerID int64) (*float64, error) {
	var uptime float64
	err := r.db.QueryRowContext(ctx, `
		SELECT uptime_hours FROM raw_metrics
		WHERE miner_id = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT 1`, minerID).Scan(&uptime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &uptime, nil
}

// LatestSamples returns the most recent raw sample per active miner.
func (r *SQLiteRepository) LatestSamples(ctx context.Context) ([]*MinerCurrent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT m.id, m.ip_address, m.hostname, m.expected_hashrate_ghs, m.is_active, m.created_at, m.updated_at,
			r.id, r.miner_id, r.timestamp, r.status,
			r.hashrate_ghs, r.expected_hashrate_ghs, r.hashrate_ratio_percent, r.efficiency_j_th,
			r.temp_asic_c, r.temp_vr_c,
			r.power_w, r.voltage_asic_set_v, r.voltage_asic_actual_v, r.voltage_device_v,
			r.frequency_set_mhz, r.current_a,
			r.shares_accepted, r.shares_rejected, r.rejection_rate_percent,
			r.uptime_hours, r.wifi_rssi, r.fan_rpm, r.connected_pool
		FROM miners m
		JOIN raw_metrics r ON r.miner_id = m.id
		WHERE m.is_active = 1
		  AND r.id = (
			SELECT r2.id FROM raw_metrics r2
			WHERE r2.miner_id = m.id
			ORDER BY r2.timestamp DESC, r2.id DESC
			LIMIT 1)
		ORDER BY m.ip_address`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var current []*MinerCurrent
	for rows.Next() {
		c := &MinerCurrent{}
		if err := rows.Scan(
			&c.Miner.ID, &c.Miner.IPAddress, &c.Miner.Hostname, &c.Miner.ExpectedHashrate,
			&c.Miner.IsActive, &c.Miner.CreatedAt, &c.Miner.UpdatedAt,
			&c.Sample.ID, &c.Sample.MinerID, &c.Sample.Timestamp, &c.Sample.Status,
			&c.Sample.HashrateGHS, &c.Sample.ExpectedHashrate, &c.Sample.HashrateRatio, &c.Sample.EfficiencyJTH,
			&c.Sample.TempASIC, &c.Sample.TempVR,
			&c.Sample.PowerW, &c.Sample.VoltageASICSet, &c.Sample.VoltageASIC, &c.Sample.VoltageDevice,
			&c.Sample.FrequencyMHz, &c.Sample.CurrentA,
			&c.Sample.SharesAccepted, &c.Sample.SharesRejected, &c.Sample.RejectionRate,
			&c.Sample.UptimeHours, &c.Sample.WifiRSSI, &c.Sample.FanRPM, &c.Sample.ConnectedPool); err != nil {
			return nil, err
		}
		current = append(current, c)
	}
	return current, rows.Err()
}

func (r *SQLiteRepository) SamplesInRange(ctx context.Context, minerID int64, from, to time.Time) ([]*RawSample, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+rawSampleColumns+`
		FROM raw_metrics
		WHERE miner_id = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp`, minerID, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []*RawSample
	for rows.Next() {
		s := &RawSample{}
		if err := scanRawSample(rows, s); err != nil {
			return nil, err
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

// =============================================================================
// Alerts
// =============================================================================

func (r *SQLiteRepository) InsertAlert(ctx context.Context, a *Alert) error {
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now().UTC()
	}
	var minerArg interface{}
	if a.MinerID != nil {
		minerArg = *a.MinerID
	}
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO alerts (miner_id, alert_type, severity, message, value, threshold, timestamp, resolved_at, is_resolved)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		minerArg, a.Type, a.Severity, a.Message, a.Value, a.Threshold,
		a.Timestamp.UTC(), a.ResolvedAt, a.IsResolved)
	if err != nil {
		return err
	}
	a.ID, _ = result.LastInsertId()
	return nil
}

func (r *SQLiteRepository) ListAlerts(ctx context.Context, minerID *int64, unresolvedOnly bool, limit int) ([]*Alert, error) {
	query := `
		SELECT id, miner_id, alert_type, severity, message, value, threshold, timestamp, resolved_at, is_resolved
		FROM alerts WHERE 1=1`
	var args []interface{}
	if minerID != nil {
		query += " AND miner_id = ?"
		args = append(args, *minerID)
	}
	if unresolvedOnly {
		query += " AND is_resolved = 0"
	}
	query += " ORDER BY timestamp DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []*Alert
	for rows.Next() {
		a := &Alert{}
		var mid sql.NullInt64
		var resolvedAt sql.NullTime
		if err := rows.Scan(&a.ID, &mid, &a.Type, &a.Severity, &a.Message,
			&a.Value, &a.Threshold, &a.Timestamp, &resolvedAt, &a.IsResolved); err != nil {
			return nil, err
		}
		if mid.Valid {
			a.MinerID = &mid.Int64
		}
		if resolvedAt.Valid {
			a.ResolvedAt = &resolvedAt.Time
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

func (r *SQLiteRepository) ResolveAlert(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE alerts SET is_resolved = 1, resolved_at = CURRENT_TIMESTAMP WHERE id = ?`, id)
	return err
}

// =============================================================================
// Hourly rollups
// =============================================================================

// StatusGroupStats aggregates a miner's samples in [from, to) grouped by
// status tag. The rollup engine combines the groups weighted by count.
func (r *SQLiteRepository) StatusGroupStats(ctx context.Context, minerID int64, from, to time.Time) ([]*StatusGroupStat, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT
			status,
			COUNT(*) AS samples_count,
			AVG(CASE WHEN status = 'online' THEN 1.0 ELSE 0.0 END) * 100 AS uptime_percent,
			COALESCE(AVG(hashrate_ghs), 0),
			COALESCE(MIN(hashrate_ghs), 0),
			COALESCE(MAX(hashrate_ghs), 0),
			COALESCE(AVG(temp_asic_c), 0),
			COALESCE(MAX(temp_asic_c), 0),
			COALESCE(AVG(power_w), 0),
			COALESCE(MAX(power_w), 0),
			COALESCE(AVG(efficiency_j_th), 0),
			COALESCE(SUM(shares_accepted), 0),
			COALESCE(SUM(shares_rejected), 0),
			COALESCE(AVG(wifi_rssi), 0)
		FROM raw_metrics
		WHERE miner_id = ? AND timestamp >= ? AND timestamp < ?
		GROUP BY status`, minerID, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []*StatusGroupStat
	for rows.Next() {
		g := &StatusGroupStat{}
		if err := rows.Scan(&g.Status, &g.SamplesCount, &g.UptimePercent,
			&g.AvgHashrateGHS, &g.MinHashrateGHS, &g.MaxHashrateGHS,
			&g.AvgTempASIC, &g.MaxTempASIC, &g.AvgPowerW, &g.MaxPowerW,
			&g.AvgEfficiencyJTH, &g.TotalSharesAccepted, &g.TotalSharesRejected,
			&g.AvgWifiRSSI); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (r *SQLiteRepository) UpsertHourlyStat(ctx context.Context, s *HourlyStat) error {
	dist, err := json.Marshal(s.StatusDistribution)
	if err != nil {
		return fmt.Errorf("failed to encode status distribution: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO hourly_stats (miner_id, hour_start, samples_count, uptime_percent,
			avg_hashrate_ghs, min_hashrate_ghs, max_hashrate_ghs,
			avg_temp_asic_c, max_temp_asic_c, avg_power_w, max_power_w,
			avg_efficiency_j_th, total_shares_accepted, total_shares_rejected,
			rejection_rate_percent, avg_wifi_rssi, status_distribution)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(miner_id, hour_start) DO UPDATE SET
			samples_count = excluded.samples_count, uptime_percent = excluded.uptime_percent,
			avg_hashrate_ghs = excluded.avg_hashrate_ghs, min_hashrate_ghs = excluded.min_hashrate_ghs,
			max_hashrate_ghs = excluded.max_hashrate_ghs, avg_temp_asic_c = excluded.avg_temp_asic_c,
			max_temp_asic_c = excluded.max_temp_asic_c, avg_power_w = excluded.avg_power_w,
			max_power_w = excluded.max_power_w, avg_efficiency_j_th = excluded.avg_efficiency_j_th,
			total_shares_accepted = excluded.total_shares_accepted,
			total_shares_rejected = excluded.total_shares_rejected,
			rejection_rate_percent = excluded.rejection_rate_percent,
			avg_wifi_rssi = excluded.avg_wifi_rssi,
			status_distribution = excluded.status_distribution`,
		s.MinerID, s.HourStart.UTC(), s.SamplesCount, s.UptimePercent,
		s.AvgHashrateGHS, s.MinHashrateGHS, s.MaxHashrateGHS,
		s.AvgTempASIC, s.MaxTempASIC, s.AvgPowerW, s.MaxPowerW,
		s.AvgEfficiencyJTH, s.TotalSharesAccepted, s.TotalSharesRejected,
		s.RejectionRate, s.AvgWifiRSSI, string(dist))
	return err
}

func (r *SQLiteRepository) HourlyStatsInRange(ctx context.Context, minerID int64, from, to time.Time) ([]*HourlyStat, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, miner_id, hour_start, samples_count, uptime_percent,
			avg_hashrate_ghs, min_hashrate_ghs, max_hashrate_ghs,
			avg_temp_asic_c, max_temp_asic_c, avg_power_w, max_power_w,
			avg_efficiency_j_th, total_shares_accepted, total_shares_rejected,
			rejection_rate_percent, avg_wifi_rssi, status_distribution
		FROM hourly_stats
		WHERE miner_id = ? AND hour_start >= ? AND hour_start <= ?
		ORDER BY hour_start`, minerID, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []*HourlyStat
	for rows.Next() {
		s := &HourlyStat{}
		var dist string
		if err := rows.Scan(&s.ID, &s.MinerID, &s.HourStart, &s.SamplesCount, &s.UptimePercent,
			&s.AvgHashrateGHS, &s.MinHashrateGHS, &s.MaxHashrateGHS,
			&s.AvgTempASIC, &s.MaxTempASIC, &s.AvgPowerW, &s.MaxPowerW,
			&s.AvgEfficiencyJTH, &s.TotalSharesAccepted, &s.TotalSharesRejected,
			&s.RejectionRate, &s.AvgWifiRSSI, &dist); err != nil {
			return nil, err
		}
		if dist != "" {
			if err := json.Unmarshal([]byte(dist), &s.StatusDistribution); err != nil {
				return nil, fmt.Errorf("failed to decode status distribution: %w", err)
			}
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// =============================================================================
// Analytics read paths
// =============================================================================

// DailyAverages returns calendar-day averages of hourly stats for a miner
// over the last N days, oldest first.
func (r *SQLiteRepository) DailyAverages(ctx context.Context, minerID int64, days int) ([]*DailyAverage, error) {
	since := time.Now().UTC().AddDate(0, 0, -days)
	rows, err := r.db.QueryContext(ctx, `
		SELECT
			DATE(hour_start) AS date,
			COALESCE(AVG(avg_hashrate_ghs), 0),
			COALESCE(AVG(avg_power_w), 0),
			COALESCE(AVG(avg_efficiency_j_th), 0),
			COALESCE(AVG(uptime_percent), 0)
		FROM hourly_stats
		WHERE miner_id = ? AND hour_start >= ?
		GROUP BY DATE(hour_start)
		ORDER BY date`, minerID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var averages []*DailyAverage
	for rows.Next() {
		d := &DailyAverage{}
		if err := rows.Scan(&d.Date, &d.Hashrate, &d.Power, &d.Efficiency, &d.Uptime); err != nil {
			return nil, err
		}
		averages = append(averages, d)
	}
	return averages, rows.Err()
}

// SettingsGroups aggregates a miner's recent samples by rounded
// (voltage, frequency) pair. Groups below minSamples are dropped.
// Ordered best-efficiency first.
func (r *SQLiteRepository) SettingsGroups(ctx context.Context, minerID int64, days, minSamples int) ([]*SettingsGroup, error) {
	since := time.Now().UTC().AddDate(0, 0, -days)
	rows, err := r.db.QueryContext(ctx, `
		SELECT
			ROUND(voltage_asic_set_v, 3) AS voltage,
			ROUND(frequency_set_mhz, 0) AS frequency,
			AVG(hashrate_ghs),
			AVG(power_w),
			AVG(temp_asic_c),
			AVG(efficiency_j_th),
			COUNT(*) AS samples
		FROM raw_metrics
		WHERE miner_id = ? AND timestamp >= ?
		  AND voltage_asic_set_v > 0 AND frequency_set_mhz > 0
		GROUP BY ROUND(voltage_asic_set_v, 3), ROUND(frequency_set_mhz, 0)
		HAVING samples >= ?
		ORDER BY AVG(efficiency_j_th) ASC, AVG(hashrate_ghs) DESC`,
		minerID, since, minSamples)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []*SettingsGroup
	for rows.Next() {
		g := &SettingsGroup{}
		if err := rows.Scan(&g.VoltageV, &g.FrequencyMHz, &g.AvgHashrate,
			&g.AvgPowerW, &g.AvgTempASIC, &g.AvgEfficiency, &g.Samples); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// FleetAnalytics computes fleet-wide averages, top performers, and problem
// miners over the last N days of hourly stats.
func (r *SQLiteRepository) FleetAnalytics(ctx context.Context, days int) (*FleetAnalytics, error) {
	since := time.Now().UTC().AddDate(0, 0, -days)

	fa := &FleetAnalytics{PeriodDays: days}
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(DISTINCT m.id),
			COALESCE(AVG(hs.uptime_percent), 0),
			COALESCE(SUM(hs.avg_hashrate_ghs), 0),
			COALESCE(SUM(hs.avg_power_w), 0),
			COALESCE(AVG(hs.avg_efficiency_j_th), 0),
			COALESCE(AVG(hs.avg_temp_asic_c), 0),
			COALESCE(AVG(hs.rejection_rate_percent), 0)
		FROM miners m
		JOIN hourly_stats hs ON m.id = hs.miner_id
		WHERE hs.hour_start >= ? AND m.is_active = 1`, since).Scan(
		&fa.TotalMiners, &fa.AvgUptime, &fa.TotalHashrateGHS, &fa.TotalPowerW,
		&fa.AvgEfficiency, &fa.AvgTempASIC, &fa.AvgRejectionRate)
	if err != nil {
		return nil, fmt.Errorf("failed to query fleet stats: %w", err)
	}

	fa.TopPerformers, err = r.queryPerformers(ctx, `
		SELECT m.ip_address, m.hostname,
			AVG(hs.uptime_percent), AVG(hs.avg_hashrate_ghs),
			AVG(hs.avg_efficiency_j_th), AVG(hs.rejection_rate_percent), 0
		FROM miners m
		JOIN hourly_stats hs ON m.id = hs.miner_id
		WHERE hs.hour_start >= ? AND m.is_active = 1
		GROUP BY m.id
		ORDER BY AVG(hs.uptime_percent) DESC, AVG(hs.avg_hashrate_ghs) DESC
		LIMIT 5`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query top performers: %w", err)
	}

	fa.ProblemMiners, err = r.queryPerformers(ctx, `
		SELECT m.ip_address, m.hostname,
			AVG(hs.uptime_percent), AVG(hs.avg_hashrate_ghs),
			AVG(hs.avg_efficiency_j_th), AVG(hs.rejection_rate_percent), COUNT(DISTINCT a.id)
		FROM miners m
		JOIN hourly_stats hs ON m.id = hs.miner_id
		LEFT JOIN alerts a ON m.id = a.miner_id AND a.timestamp >= ?
		WHERE hs.hour_start >= ? AND m.is_active = 1
		  AND (hs.uptime_percent < 95 OR hs.rejection_rate_percent > 5)
		GROUP BY m.id
		ORDER BY AVG(hs.uptime_percent) ASC, COUNT(DISTINCT a.id) DESC
		LIMIT 5`, since, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query problem miners: %w", err)
	}

	return fa, nil
}

func (r *SQLiteRepository) queryPerformers(ctx context.Context, query string, args ...interface{}) ([]*MinerPerformance, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var performers []*MinerPerformance
	for rows.Next() {
		p := &MinerPerformance{}
		if err := rows.Scan(&p.IPAddress, &p.Hostname, &p.AvgUptime,
			&p.AvgHashrate, &p.AvgEfficiency, &p.AvgRejection, &p.AlertCount); err != nil {
			return nil, err
		}
		performers = append(performers, p)
	}
	return performers, rows.Err()
}

// =============================================================================
// Fleet snapshots
// =============================================================================

func (r *SQLiteRepository) InsertFleetStat(ctx context.Context, s *FleetStat) error {
	if s.Timestamp.IsZero() {
		s.Timestamp = time.Now().UTC()
	}
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO fleet_stats (timestamp, total_miners, online_miners,
			total_hashrate_ghs, total_power_w, avg_efficiency_j_th,
			fleet_uptime_percent, total_shares_accepted, total_shares_rejected,
			fleet_rejection_rate_percent)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.Timestamp.UTC(), s.TotalMiners, s.OnlineMiners,
		s.TotalHashrateGHS, s.TotalPowerW, s.AvgEfficiencyJTH,
		s.FleetUptimePercent, s.TotalSharesAccepted, s.TotalSharesRejected,
		s.FleetRejectionRate)
	if err != nil {
		return err
	}
	s.ID, _ = result.LastInsertId()
	return nil
}

func (r *SQLiteRepository) FleetStatsInRange(ctx context.Context, from, to time.Time) ([]*FleetStat, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, timestamp, total_miners, online_miners,
			total_hashrate_ghs, total_power_w, avg_efficiency_j_th,
			fleet_uptime_percent, total_shares_accepted, total_shares_rejected,
			fleet_rejection_rate_percent
		FROM fleet_stats
		WHERE timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp`, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []*FleetStat
	for rows.Next() {
		s := &FleetStat{}
		if err := rows.Scan(&s.ID, &s.Timestamp, &s.TotalMiners, &s.OnlineMiners,
			&s.TotalHashrateGHS, &s.TotalPowerW, &s.AvgEfficiencyJTH,
			&s.FleetUptimePercent, &s.TotalSharesAccepted, &s.TotalSharesRejected,
			&s.FleetRejectionRate); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// =============================================================================
// Retention
// =============================================================================

func (r *SQLiteRepository) DeleteRawSamplesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM raw_metrics WHERE timestamp < ?", cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *SQLiteRepository) DeleteResolvedAlertsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM alerts WHERE timestamp < ? AND is_resolved = 1", cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Vacuum reclaims storage after retention deletes.
func (r *SQLiteRepository) Vacuum(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, "VACUUM")
	return err
}

// Ensure SQLiteRepository implements Repository
var _ Repository = (*SQLiteRepository)(nil)
