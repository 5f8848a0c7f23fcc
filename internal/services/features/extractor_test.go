package features

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SPXEngine/internal/domain/models"
)

func fullContext(now time.Time) models.Context {
	return models.Context{
		Regime: models.RegimeTrending,
		Prediction: models.Prediction{
			Direction:   models.Bullish,
			Probability: 0.62,
			Confidence:  0.7,
		},
		GEX: models.GEXSnapshot{NetGex: -250000, FlipPoint: 5010, CallWall: 5050, PutWall: 4950},
		FlowEvents: []models.FlowEvent{
			{ID: "f1", Type: models.FlowSweep, Size: 400, Direction: models.Bullish, Premium: 120000, Timestamp: now.Add(-3 * time.Minute)},
			{ID: "f2", Type: models.FlowBlock, Size: 900, Direction: models.Bearish, Premium: 40000, Timestamp: now.Add(-20 * time.Minute)},
			{ID: "f3", Type: models.FlowSweep, Size: 250, Direction: models.Bullish, Premium: 80000, Timestamp: now.Add(-8 * time.Minute)},
		},
		Metrics: models.MarketMetrics{
			DistanceToVWAP: 4.2,
			ATR7:           6,
			ATR14:          8,
			IVRank:         35,
			IVSkew:         1.1,
			PutCallRatio:   0.9,
			DTE:            0,
		},
		Now: now,
	}
}

func fullSetup() models.Setup {
	return models.Setup{
		ID:              "s-1",
		Type:            models.SetupTrendContinuation,
		Direction:       models.Bullish,
		EntryZone:       models.PriceZone{Low: 5000, High: 5005},
		ConfluenceScore: 4,
		ConfluenceBreakdown: models.ConfluenceBreakdown{
			"gex": 0.8, "vwap": 0.9, "cluster": 0.7, "flow": 0.6, "profile": 0.5,
		},
		Regime:      models.RegimeTrending,
		Status:      models.StatusReady,
		Probability: 0.64,
		Memory:      &models.MemoryContext{WinRate: 0.71, TestCount: 7, LastTestHeld: true, HasLastTest: true},
	}
}

func TestExtractProducesExactly25FiniteFeatures(t *testing.T) {
	now := time.Date(2026, 3, 23, 18, 30, 0, 0, time.UTC)
	v := Extract(fullSetup(), fullContext(now))

	m := v.Map()
	require.Len(t, m, 25)
	require.Len(t, models.FeatureNames, 25)
	for _, name := range models.FeatureNames {
		val, ok := m[name]
		require.True(t, ok, "missing feature %s", name)
		assert.False(t, math.IsNaN(val) || math.IsInf(val, 0), "feature %s not finite", name)
	}
}

func TestExtractFlowAggregates(t *testing.T) {
	now := time.Date(2026, 3, 23, 18, 30, 0, 0, time.UTC)
	v := Extract(fullSetup(), fullContext(now))

	assert.InDelta(t, 2, v.FlowSweepCount, 1e-9)
	assert.InDelta(t, 650, v.FlowVolume, 1e-9) // sweep sizes only
	// (200000 - 40000) / 240000
	assert.InDelta(t, 160000.0/240000.0, v.FlowBias, 1e-9)
	assert.InDelta(t, 3, v.FlowRecency, 1e-9)
}

func TestExtractDefaultsWhenSourceDataMissing(t *testing.T) {
	v := Extract(models.Setup{}, models.Context{})

	assert.Equal(t, 0.0, v.ConfluenceGex)
	assert.Equal(t, 0.0, v.RegimeType)
	assert.Equal(t, 0.5, v.RegimeCompatibility, "unknown context regime")
	assert.Equal(t, float64(9999), v.FlowRecency)
	assert.Equal(t, 1.0, v.ATR714Ratio)
	assert.Equal(t, 0.5, v.HistoricalWinRate)
	assert.Equal(t, 0.0, v.HistoricalTestCount)
	assert.Equal(t, -1.0, v.LastTestResult)
	assert.Equal(t, 0.5, v.Probability)
}

func TestExtractNonFiniteInputsAbsorbed(t *testing.T) {
	s := fullSetup()
	s.ConfluenceScore = math.NaN()
	s.Probability = math.Inf(1)
	ctx := fullContext(time.Date(2026, 3, 23, 18, 30, 0, 0, time.UTC))
	ctx.Metrics.ATR14 = 0
	ctx.GEX.NetGex = math.NaN()

	v := Extract(s, ctx)
	for name, val := range v.Map() {
		assert.False(t, math.IsNaN(val) || math.IsInf(val, 0), "feature %s not finite", name)
	}
	assert.Equal(t, 1.0, v.ATR714Ratio)
	assert.Equal(t, 0.0, v.NetGex)
}

func TestExtractRegimeCompatibility(t *testing.T) {
	now := time.Date(2026, 3, 23, 18, 30, 0, 0, time.UTC)

	s := fullSetup()
	ctx := fullContext(now)
	assert.Equal(t, 1.0, Extract(s, ctx).RegimeCompatibility)

	ctx.Regime = models.RegimeRanging
	assert.Equal(t, partialRegimeMatch, Extract(s, ctx).RegimeCompatibility)

	ctx.Regime = models.RegimeUnknown
	ctx.Prediction.Regime = models.RegimeTrending
	assert.Equal(t, 1.0, Extract(s, ctx).RegimeCompatibility, "prediction regime used as fallback")
}

func TestExtractJSONRoundTripStable(t *testing.T) {
	now := time.Date(2026, 3, 23, 18, 30, 0, 0, time.UTC)
	v := Extract(fullSetup(), fullContext(now))

	raw, err := json.Marshal(v)
	require.NoError(t, err)
	var back models.FeatureVector
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, v, back)
}
