package database

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testSample(ip string, ts time.Time) *SampleInput {
	return &SampleInput{
		MinerIP:        ip,
		Hostname:       "bitaxe-" + ip,
		Timestamp:      ts,
		Status:         StatusOnline,
		HashrateGHS:    1100,
		EfficiencyJTH:  14.5,
		TempASIC:       62,
		TempVR:         55,
		PowerW:         16.2,
		VoltageASICSet: 1.15,
		FrequencyMHz:   550,
		SharesAccepted: 95,
		SharesRejected: 5,
		UptimeHours:    12.5,
		WifiRSSI:       -60,
		FanRPM:         4200,
		ConnectedPool:  "stratum.example:3333",
	}
}

func TestUpsertMiner(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	id, err := repo.UpsertMiner(ctx, "192.168.1.50", "garage-axe", 1200)
	require.NoError(t, err)
	require.NotZero(t, id)

	// Same address resolves to the same row.
	again, err := repo.UpsertMiner(ctx, "192.168.1.50", "garage-axe-2", 1300)
	require.NoError(t, err)
	assert.Equal(t, id, again)

	m, err := repo.GetMinerByIP(ctx, "192.168.1.50")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "garage-axe-2", m.Hostname)
	assert.Equal(t, 1300.0, m.ExpectedHashrate)
	assert.True(t, m.IsActive)
}

func TestUpsertMinerKeepsFieldsOnEmptyInput(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.UpsertMiner(ctx, "192.168.1.51", "shelf-axe", 1200)
	require.NoError(t, err)

	// Empty hostname and zero hashrate must not wipe stored values.
	_, err = repo.UpsertMiner(ctx, "192.168.1.51", "", 0)
	require.NoError(t, err)

	m, err := repo.GetMinerByIP(ctx, "192.168.1.51")
	require.NoError(t, err)
	assert.Equal(t, "shelf-axe", m.Hostname)
	assert.Equal(t, 1200.0, m.ExpectedHashrate)
}

func TestUpsertMinerDefaultHostname(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.UpsertMiner(ctx, "10.0.0.77", "", 0)
	require.NoError(t, err)

	m, err := repo.GetMinerByIP(ctx, "10.0.0.77")
	require.NoError(t, err)
	assert.Equal(t, "Miner-77", m.Hostname)
}

func TestGetMinerByIPUnknown(t *testing.T) {
	repo := newTestRepo(t)

	m, err := repo.GetMinerByIP(context.Background(), "10.9.9.9")
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestRejectionRatePercent(t *testing.T) {
	assert.Equal(t, 0.0, RejectionRatePercent(0, 0))
	assert.Equal(t, 0.0, RejectionRatePercent(100, 0))
	assert.Equal(t, 100.0, RejectionRatePercent(0, 10))
	assert.InDelta(t, 5.0, RejectionRatePercent(95, 5), 1e-9)
}

func TestInsertSampleBatch(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	batch := []*SampleInput{
		testSample("192.168.1.60", now.Add(-time.Minute)),
		testSample("192.168.1.61", now),
	}
	require.NoError(t, repo.InsertSampleBatch(ctx, batch))

	miners, err := repo.ListMiners(ctx, true)
	require.NoError(t, err)
	require.Len(t, miners, 2)

	samples, err := repo.SamplesInRange(ctx, miners[0].ID, now.Add(-time.Hour), now)
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, StatusOnline, samples[0].Status)
	assert.InDelta(t, 5.0, samples[0].RejectionRate, 1e-9)
	assert.Equal(t, 1100.0, samples[0].HashrateGHS)
}

func TestLastUptimeHours(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	id, err := repo.UpsertMiner(ctx, "192.168.1.62", "", 0)
	require.NoError(t, err)

	uptime, err := repo.LastUptimeHours(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, uptime)

	older := testSample("192.168.1.62", now.Add(-10*time.Minute))
	older.UptimeHours = 5.0
	newer := testSample("192.168.1.62", now)
	newer.UptimeHours = 5.2
	require.NoError(t, repo.InsertSampleBatch(ctx, []*SampleInput{older, newer}))

	uptime, err = repo.LastUptimeHours(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, uptime)
	assert.Equal(t, 5.2, *uptime)
}

func TestLatestSamples(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	old := testSample("192.168.1.63", now.Add(-time.Hour))
	old.HashrateGHS = 900
	fresh := testSample("192.168.1.63", now)
	fresh.HashrateGHS = 1150
	require.NoError(t, repo.InsertSampleBatch(ctx, []*SampleInput{old, fresh}))
	require.NoError(t, repo.InsertSampleBatch(ctx, []*SampleInput{testSample("192.168.1.64", now)}))

	current, err := repo.LatestSamples(ctx)
	require.NoError(t, err)
	require.Len(t, current, 2)
	assert.Equal(t, "192.168.1.63", current[0].Miner.IPAddress)
	assert.Equal(t, 1150.0, current[0].Sample.HashrateGHS)

	// Deactivated miners drop out of the current view.
	require.NoError(t, repo.DeactivateMiner(ctx, current[1].Miner.ID))
	current, err = repo.LatestSamples(ctx)
	require.NoError(t, err)
	require.Len(t, current, 1)
}

func TestAlertLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	id, err := repo.UpsertMiner(ctx, "192.168.1.65", "", 0)
	require.NoError(t, err)

	alert := &Alert{
		MinerID:   &id,
		Type:      "temperature",
		Severity:  SeverityWarning,
		Message:   "ASIC temp above threshold",
		Value:     86.5,
		Threshold: 85,
	}
	require.NoError(t, repo.InsertAlert(ctx, alert))
	require.NotZero(t, alert.ID)

	unresolved, err := repo.ListAlerts(ctx, &id, true, 10)
	require.NoError(t, err)
	require.Len(t, unresolved, 1)
	assert.Equal(t, "temperature", unresolved[0].Type)
	assert.Nil(t, unresolved[0].ResolvedAt)

	require.NoError(t, repo.ResolveAlert(ctx, alert.ID))
	unresolved, err = repo.ListAlerts(ctx, &id, true, 10)
	require.NoError(t, err)
	assert.Empty(t, unresolved)

	all, err := repo.ListAlerts(ctx, &id, false, 10)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].IsResolved)
	assert.NotNil(t, all[0].ResolvedAt)
}

func TestStatusGroupStats(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	hour := time.Now().UTC().Add(-2 * time.Hour).Truncate(time.Hour)

	var batch []*SampleInput
	for i := 0; i < 4; i++ {
		s := testSample("192.168.1.66", hour.Add(time.Duration(i)*10*time.Minute))
		batch = append(batch, s)
	}
	down := testSample("192.168.1.66", hour.Add(50*time.Minute))
	down.Status = "connection_failed"
	down.HashrateGHS = 0
	down.SharesAccepted = 0
	down.SharesRejected = 0
	batch = append(batch, down)
	// Outside the bucket, must not be counted.
	batch = append(batch, testSample("192.168.1.66", hour.Add(time.Hour+time.Minute)))
	require.NoError(t, repo.InsertSampleBatch(ctx, batch))

	m, err := repo.GetMinerByIP(ctx, "192.168.1.66")
	require.NoError(t, err)

	groups, err := repo.StatusGroupStats(ctx, m.ID, hour, hour.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, groups, 2)

	byStatus := map[string]*StatusGroupStat{}
	for _, g := range groups {
		byStatus[g.Status] = g
	}
	require.Contains(t, byStatus, StatusOnline)
	require.Contains(t, byStatus, "connection_failed")
	assert.Equal(t, int64(4), byStatus[StatusOnline].SamplesCount)
	assert.Equal(t, 100.0, byStatus[StatusOnline].UptimePercent)
	assert.Equal(t, 1100.0, byStatus[StatusOnline].AvgHashrateGHS)
	assert.Equal(t, int64(1), byStatus["connection_failed"].SamplesCount)
	assert.Equal(t, 0.0, byStatus["connection_failed"].UptimePercent)
}

func TestUpsertHourlyStatIdempotent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	hour := time.Now().UTC().Add(-3 * time.Hour).Truncate(time.Hour)

	id, err := repo.UpsertMiner(ctx, "192.168.1.67", "", 0)
	require.NoError(t, err)

	stat := &HourlyStat{
		MinerID:            id,
		HourStart:          hour,
		SamplesCount:       12,
		UptimePercent:      91.7,
		AvgHashrateGHS:     1080,
		MinHashrateGHS:     950,
		MaxHashrateGHS:     1150,
		AvgTempASIC:        64,
		MaxTempASIC:        71,
		StatusDistribution: map[string]int{"online": 11, "timeout": 1},
	}
	require.NoError(t, repo.UpsertHourlyStat(ctx, stat))

	// Recomputing the same bucket replaces, never duplicates.
	stat.AvgHashrateGHS = 1090
	require.NoError(t, repo.UpsertHourlyStat(ctx, stat))

	stats, err := repo.HourlyStatsInRange(ctx, id, hour.Add(-time.Hour), hour.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, 1090.0, stats[0].AvgHashrateGHS)
	assert.Equal(t, map[string]int{"online": 11, "timeout": 1}, stats[0].StatusDistribution)
}

func TestDailyAverages(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	id, err := repo.UpsertMiner(ctx, "192.168.1.68", "", 0)
	require.NoError(t, err)

	day := time.Now().UTC().AddDate(0, 0, -2).Truncate(24 * time.Hour)
	for h := 0; h < 3; h++ {
		require.NoError(t, repo.UpsertHourlyStat(ctx, &HourlyStat{
			MinerID:        id,
			HourStart:      day.Add(time.Duration(h) * time.Hour),
			SamplesCount:   12,
			UptimePercent:  100,
			AvgHashrateGHS: 1000 + float64(h)*100,
		}))
	}

	daily, err := repo.DailyAverages(ctx, id, 7)
	require.NoError(t, err)
	require.Len(t, daily, 1)
	assert.Equal(t, day.Format("2006-01-02"), daily[0].Date)
	assert.InDelta(t, 1100.0, daily[0].Hashrate, 1e-9)
	assert.Equal(t, 100.0, daily[0].Uptime)
}

func TestSettingsGroups(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	var batch []*SampleInput
	for i := 0; i < 12; i++ {
		s := testSample("192.168.1.69", now.Add(-time.Duration(i)*time.Minute))
		s.VoltageASICSet = 1.15
		s.FrequencyMHz = 550
		batch = append(batch, s)
	}
	// Too few samples to form a group.
	sparse := testSample("192.168.1.69", now.Add(-time.Hour))
	sparse.VoltageASICSet = 1.25
	sparse.FrequencyMHz = 600
	batch = append(batch, sparse)
	// Missing settings are never grouped.
	unset := testSample("192.168.1.69", now.Add(-2*time.Hour))
	unset.VoltageASICSet = 0
	unset.FrequencyMHz = 0
	batch = append(batch, unset)
	require.NoError(t, repo.InsertSampleBatch(ctx, batch))

	m, err := repo.GetMinerByIP(ctx, "192.168.1.69")
	require.NoError(t, err)

	groups, err := repo.SettingsGroups(ctx, m.ID, 7, 10)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, 1.15, groups[0].VoltageV)
	assert.Equal(t, 550.0, groups[0].FrequencyMHz)
	assert.Equal(t, int64(12), groups[0].Samples)
}

func TestFleetAnalytics(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	hour := time.Now().UTC().Add(-2 * time.Hour).Truncate(time.Hour)

	healthy, err := repo.UpsertMiner(ctx, "192.168.1.70", "good-axe", 0)
	require.NoError(t, err)
	flaky, err := repo.UpsertMiner(ctx, "192.168.1.71", "flaky-axe", 0)
	require.NoError(t, err)

	require.NoError(t, repo.UpsertHourlyStat(ctx, &HourlyStat{
		MinerID: healthy, HourStart: hour, SamplesCount: 12,
		UptimePercent: 100, AvgHashrateGHS: 1100, AvgEfficiencyJTH: 14,
	}))
	require.NoError(t, repo.UpsertHourlyStat(ctx, &HourlyStat{
		MinerID: flaky, HourStart: hour, SamplesCount: 12,
		UptimePercent: 60, AvgHashrateGHS: 700, AvgEfficiencyJTH: 18,
	}))

	fa, err := repo.FleetAnalytics(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 2, fa.TotalMiners)
	assert.InDelta(t, 80.0, fa.AvgUptime, 1e-9)
	assert.InDelta(t, 1800.0, fa.TotalHashrateGHS, 1e-9)

	require.NotEmpty(t, fa.TopPerformers)
	assert.Equal(t, "192.168.1.70", fa.TopPerformers[0].IPAddress)
	require.Len(t, fa.ProblemMiners, 1)
	assert.Equal(t, "192.168.1.71", fa.ProblemMiners[0].IPAddress)
}

func TestFleetStatRoundtrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	stat := &FleetStat{
		Timestamp:          now,
		TotalMiners:        3,
		OnlineMiners:       2,
		TotalHashrateGHS:   2200,
		TotalPowerW:        33,
		FleetUptimePercent: 66.7,
	}
	require.NoError(t, repo.InsertFleetStat(ctx, stat))
	require.NotZero(t, stat.ID)

	stats, err := repo.FleetStatsInRange(ctx, now.Add(-time.Minute), now.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, 3, stats[0].TotalMiners)
	assert.Equal(t, 2200.0, stats[0].TotalHashrateGHS)
}

func TestRetentionDeletes(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	old := testSample("192.168.1.72", now.AddDate(0, 0, -40))
	fresh := testSample("192.168.1.72", now)
	require.NoError(t, repo.InsertSampleBatch(ctx, []*SampleInput{old, fresh}))

	m, err := repo.GetMinerByIP(ctx, "192.168.1.72")
	require.NoError(t, err)

	deleted, err := repo.DeleteRawSamplesBefore(ctx, now.AddDate(0, 0, -30))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	samples, err := repo.SamplesInRange(ctx, m.ID, now.AddDate(0, 0, -60), now)
	require.NoError(t, err)
	require.Len(t, samples, 1)

	stale := &Alert{MinerID: &m.ID, Type: "restart", Severity: SeverityInfo,
		Timestamp: now.AddDate(0, 0, -40), IsResolved: true}
	open := &Alert{MinerID: &m.ID, Type: "temperature", Severity: SeverityWarning,
		Timestamp: now.AddDate(0, 0, -40)}
	require.NoError(t, repo.InsertAlert(ctx, stale))
	require.NoError(t, repo.InsertAlert(ctx, open))

	// Unresolved alerts survive regardless of age.
	deleted, err = repo.DeleteResolvedAlertsBefore(ctx, now.AddDate(0, 0, -30))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	alerts, err := repo.ListAlerts(ctx, &m.ID, false, 10)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "temperature", alerts[0].Type)

	require.NoError(t, repo.Vacuum(ctx))
}

func TestUpsertMinerConcurrentFirstContact(t *testing.T) {
	// Two pollers reporting the same new miner at once must both land
	// on the same row; first contact never fails on a duplicate address.
	repo := newTestRepo(t)
	ctx := context.Background()

	const writers = 8
	ids := make(chan int64, writers)
	errs := make(chan error, writers)

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := repo.UpsertMiner(ctx, "192.168.1.77", "", 0)
			if err != nil {
				errs <- err
				return
			}
			ids <- id
		}()
	}
	wg.Wait()
	close(ids)
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	var first int64
	for id := range ids {
		if first == 0 {
			first = id
		}
		assert.Equal(t, first, id)
	}
	require.NotZero(t, first)
}
