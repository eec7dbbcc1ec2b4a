package rollup

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mtab3000/simple-monitor/pkg/database"
)

func newTestEngine(t *testing.T) (*Engine, *database.SQLiteRepository) {
	t.Helper()
	repo, err := database.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return NewEngine(repo, zap.NewNop(), nil), repo
}

func TestCombineGroupsWeightsByCount(t *testing.T) {
	// 9 online samples at 1 TH/s plus 1 dead sample. A naive mean of the
	// group averages would report 500; the weighted combine must not.
	groups := []*database.StatusGroupStat{
		{
			Status:              database.StatusOnline,
			SamplesCount:        9,
			UptimePercent:       100,
			AvgHashrateGHS:      1000,
			MinHashrateGHS:      980,
			MaxHashrateGHS:      1020,
			AvgTempASIC:         65,
			MaxTempASIC:         68,
			TotalSharesAccepted: 90,
			TotalSharesRejected: 10,
		},
		{
			Status:       "connection_failed",
			SamplesCount: 1,
		},
	}

	stat := CombineGroups(groups)
	assert.Equal(t, int64(10), stat.SamplesCount)
	assert.InDelta(t, 900.0, stat.AvgHashrateGHS, 1e-9)
	assert.InDelta(t, 90.0, stat.UptimePercent, 1e-9)
	assert.Equal(t, 0.0, stat.MinHashrateGHS)
	assert.Equal(t, 1020.0, stat.MaxHashrateGHS)
	assert.InDelta(t, 10.0, stat.RejectionRate, 1e-9)
	assert.Equal(t, map[string]int{"online": 9, "connection_failed": 1}, stat.StatusDistribution)
}

func TestCombineGroupsSingleGroup(t *testing.T) {
	stat := CombineGroups([]*database.StatusGroupStat{{
		Status:         database.StatusOnline,
		SamplesCount:   12,
		UptimePercent:  100,
		AvgHashrateGHS: 1100,
		MinHashrateGHS: 1050,
		MaxHashrateGHS: 1140,
	}})
	assert.Equal(t, 1100.0, stat.AvgHashrateGHS)
	assert.Equal(t, 1050.0, stat.MinHashrateGHS)
	assert.Equal(t, 100.0, stat.UptimePercent)
	assert.Equal(t, 0.0, stat.RejectionRate)
}

func sampleAt(ip string, ts time.Time, status string, hashrate, temp float64) *database.SampleInput {
	return &database.SampleInput{
		MinerIP:        ip,
		Timestamp:      ts,
		Status:         status,
		HashrateGHS:    hashrate,
		TempASIC:       temp,
		PowerW:         16,
		EfficiencyJTH:  14,
		SharesAccepted: 50,
		SharesRejected: 1,
		UptimeHours:    1,
	}
}

func TestRollupBucketIdempotent(t *testing.T) {
	engine, repo := newTestEngine(t)
	ctx := context.Background()
	hour := time.Now().UTC().Add(-2 * time.Hour).Truncate(time.Hour)

	var batch []*database.SampleInput
	for i := 0; i < 6; i++ {
		batch = append(batch, sampleAt("10.0.0.4", hour.Add(time.Duration(i)*10*time.Minute),
			database.StatusOnline, 1000+float64(i), 60))
	}
	require.NoError(t, repo.InsertSampleBatch(ctx, batch))

	m, err := repo.GetMinerByIP(ctx, "10.0.0.4")
	require.NoError(t, err)

	wrote, err := engine.RollupBucket(ctx, m.ID, hour)
	require.NoError(t, err)
	require.True(t, wrote)

	first, err := repo.HourlyStatsInRange(ctx, m.ID, hour, hour)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// Recomputing from unchanged raw data must produce the identical row.
	wrote, err = engine.RollupBucket(ctx, m.ID, hour)
	require.NoError(t, err)
	require.True(t, wrote)

	second, err := repo.HourlyStatsInRange(ctx, m.ID, hour, hour)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, first[0].SamplesCount, second[0].SamplesCount)
	assert.Equal(t, first[0].AvgHashrateGHS, second[0].AvgHashrateGHS)
	assert.Equal(t, first[0].UptimePercent, second[0].UptimePercent)
}

func TestRollupBucketEmpty(t *testing.T) {
	engine, repo := newTestEngine(t)
	ctx := context.Background()

	id, err := repo.UpsertMiner(ctx, "10.0.0.9", "", 0)
	require.NoError(t, err)

	wrote, err := engine.RollupBucket(ctx, id, time.Now().UTC().Add(-5*time.Hour))
	require.NoError(t, err)
	assert.False(t, wrote)
}

func TestRunBackfillsOvernight(t *testing.T) {
	engine, repo := newTestEngine(t)
	ctx := context.Background()
	endHour := time.Now().UTC().Truncate(time.Hour)

	// A day of samples where the miner overheats every third hour.
	var batch []*database.SampleInput
	for h := 24; h >= 1; h-- {
		hour := endHour.Add(-time.Duration(h) * time.Hour)
		temp, status := 60.0, database.StatusOnline
		if h%3 == 0 {
			temp, status = 92.0, "overheating"
		}
		for i := 0; i < 4; i++ {
			batch = append(batch, sampleAt("10.0.0.5", hour.Add(time.Duration(i)*15*time.Minute),
				status, 1000, temp))
		}
	}
	require.NoError(t, repo.InsertSampleBatch(ctx, batch))

	require.NoError(t, engine.Run(ctx, time.Time{}))

	m, err := repo.GetMinerByIP(ctx, "10.0.0.5")
	require.NoError(t, err)

	stats, err := repo.HourlyStatsInRange(ctx, m.ID, endHour.Add(-24*time.Hour), endHour)
	require.NoError(t, err)
	require.Len(t, stats, 24)

	hot := 0
	for _, s := range stats {
		assert.Equal(t, int64(4), s.SamplesCount)
		if s.StatusDistribution["overheating"] > 0 {
			hot++
			assert.Equal(t, 92.0, s.MaxTempASIC)
			assert.Equal(t, 0.0, s.UptimePercent)
		} else {
			assert.Equal(t, 60.0, s.MaxTempASIC)
			assert.Equal(t, 100.0, s.UptimePercent)
		}
	}
	assert.Equal(t, 8, hot)
}

func TestTrendsOrdering(t *testing.T) {
	engine, repo := newTestEngine(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Hour)

	id, err := repo.UpsertMiner(ctx, "10.0.0.6", "", 0)
	require.NoError(t, err)

	for h := 3; h >= 1; h-- {
		require.NoError(t, repo.UpsertHourlyStat(ctx, &database.HourlyStat{
			MinerID:        id,
			HourStart:      now.Add(-time.Duration(h) * time.Hour),
			SamplesCount:   12,
			UptimePercent:  100,
			AvgHashrateGHS: 1000 + float64(10-h),
		}))
	}

	trends, err := engine.Trends(ctx, id, 24)
	require.NoError(t, err)
	require.Len(t, trends.Hashrate, 3)
	assert.True(t, trends.Timestamps[0].Before(trends.Timestamps[1]))
	assert.Equal(t, []float64{1007, 1008, 1009}, trends.Hashrate)
	require.Len(t, trends.Uptime, 3)
	require.Len(t, trends.Temperature, 3)
}
