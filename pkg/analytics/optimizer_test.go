package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtab3000/simple-monitor/pkg/database"
)

// seedSettingsGroup writes n recent samples at one (voltage, frequency)
// operating point.
func seedSettingsGroup(t *testing.T, repo *database.SQLiteRepository, ip string, n int, voltage, freq, hashrate, temp, efficiency float64) {
	t.Helper()
	now := time.Now().UTC()
	var batch []*database.SampleInput
	for i := 0; i < n; i++ {
		batch = append(batch, &database.SampleInput{
			MinerIP:        ip,
			Timestamp:      now.Add(-time.Duration(i) * 5 * time.Minute),
			Status:         database.StatusOnline,
			HashrateGHS:    hashrate,
			TempASIC:       temp,
			PowerW:         hashrate / 1000 * efficiency,
			EfficiencyJTH:  efficiency,
			VoltageASICSet: voltage,
			FrequencyMHz:   freq,
			UptimeHours:    float64(n-i) * 0.1,
		})
	}
	require.NoError(t, repo.InsertSampleBatch(context.Background(), batch))
}

func TestOptimalSettingsInsufficientData(t *testing.T) {
	a, repo := newRepoAnalyzer(t)

	id, err := repo.UpsertMiner(context.Background(), "10.0.0.50", "", 0)
	require.NoError(t, err)

	rec, err := a.OptimalSettings(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, RecommendationInsufficientData, rec.Recommendation)
	assert.Zero(t, rec.VoltageV)
	assert.Nil(t, rec.Expected)
}

func TestOptimalSettingsPicksBestGroup(t *testing.T) {
	a, repo := newRepoAnalyzer(t)

	seedSettingsGroup(t, repo, "10.0.0.51", 20, 1.10, 500, 1000, 62, 13)
	seedSettingsGroup(t, repo, "10.0.0.51", 20, 1.20, 600, 1050, 72, 17)

	m, err := repo.GetMinerByIP(context.Background(), "10.0.0.51")
	require.NoError(t, err)

	rec, err := a.OptimalSettings(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, RecommendationOptimized, rec.Recommendation)
	assert.InDelta(t, 1.10, rec.VoltageV, 1e-9)
	assert.Equal(t, 500, rec.FrequencyMHz)
	require.NotNil(t, rec.Expected)
	assert.Equal(t, 1000.0, rec.Expected.HashrateGHS)
	assert.Equal(t, 13.0, rec.Expected.EfficiencyJTH)
	assert.InDelta(t, 0.2, rec.Confidence, 1e-9)
}

func TestOptimalSettingsNeverRecommendsHotGroup(t *testing.T) {
	// The hot operating point wins on raw score but runs at the thermal
	// ceiling, so it must never be recommended.
	a, repo := newRepoAnalyzer(t)

	seedSettingsGroup(t, repo, "10.0.0.52", 20, 1.30, 650, 1400, 88, 11)
	seedSettingsGroup(t, repo, "10.0.0.52", 20, 1.10, 500, 1000, 62, 14)

	m, err := repo.GetMinerByIP(context.Background(), "10.0.0.52")
	require.NoError(t, err)

	rec, err := a.OptimalSettings(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, RecommendationOptimized, rec.Recommendation)
	assert.InDelta(t, 1.10, rec.VoltageV, 1e-9)
	assert.Equal(t, 62.0, rec.Expected.TemperatureC)
}

func TestOptimalSettingsAllGroupsTooHot(t *testing.T) {
	a, repo := newRepoAnalyzer(t)

	seedSettingsGroup(t, repo, "10.0.0.53", 20, 1.30, 650, 1400, 90, 11)

	m, err := repo.GetMinerByIP(context.Background(), "10.0.0.53")
	require.NoError(t, err)

	rec, err := a.OptimalSettings(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, RecommendationCurrentOptimal, rec.Recommendation)
}

func TestSettingsScorePrefersCoolEfficient(t *testing.T) {
	cool := &database.SettingsGroup{AvgHashrate: 1000, AvgTempASIC: 60, AvgEfficiency: 13}
	hot := &database.SettingsGroup{AvgHashrate: 1000, AvgTempASIC: 84, AvgEfficiency: 13}
	assert.Greater(t, settingsScore(cool), settingsScore(hot))

	efficient := &database.SettingsGroup{AvgHashrate: 1000, AvgTempASIC: 60, AvgEfficiency: 12}
	wasteful := &database.SettingsGroup{AvgHashrate: 1000, AvgTempASIC: 60, AvgEfficiency: 20}
	assert.Greater(t, settingsScore(efficient), settingsScore(wasteful))
}
