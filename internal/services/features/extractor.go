// Package features encodes a (Setup, Context) pair into the fixed
// 25-feature numeric vector consumed by the confidence model and the
// decision engine heuristics.
package features

import (
	"math"

	"SPXEngine/internal/domain/models"
	"SPXEngine/pkg/util"
)

const (
	// noRecentFlowSentinel marks the flowRecency feature when the context
	// carries no usable flow events.
	noRecentFlowSentinel = 9999

	// partialRegimeMatch is the compatibility value when both regimes are
	// known but differ.
	partialRegimeMatch = 0.25
)

// Extract builds the feature vector for one setup against the current
// market context. It is deterministic, never mutates its inputs, and
// maps every missing or non-finite source value to a fixed default so
// the result carries no NaN or Inf.
func Extract(s models.Setup, ctx models.Context) models.FeatureVector {
	v := models.FeatureVector{
		ConfluenceScore: finite(s.ConfluenceScore, 0),

		RegimeType:          regimeCode(s.Regime),
		RegimeCompatibility: regimeCompatibility(s.Regime, contextRegime(ctx)),

		DistanceToVWAP: finite(ctx.Metrics.DistanceToVWAP, 0),
		ATR14:          finite(ctx.Metrics.ATR14, 0),
		ATR714Ratio:    atrRatio(ctx.Metrics.ATR7, ctx.Metrics.ATR14),
		IVRank:         finite(ctx.Metrics.IVRank, 0),
		IVSkew:         finite(ctx.Metrics.IVSkew, 0),
		PutCallRatio:   finite(ctx.Metrics.PutCallRatio, 1),

		NetGex: finite(ctx.GEX.NetGex, 0),

		DTE:         finite(ctx.Metrics.DTE, 0),
		Probability: probabilityOrCoinFlip(s.Probability),

		HistoricalWinRate:   0.5,
		HistoricalTestCount: 0,
		LastTestResult:      -1,

		FlowRecency: noRecentFlowSentinel,
	}

	if b := s.ConfluenceBreakdown; b != nil {
		v.ConfluenceGex = finite(b["gex"], 0)
		v.ConfluenceVwap = finite(b["vwap"], 0)
		v.ConfluenceCluster = finite(b["cluster"], 0)
		v.ConfluenceFlow = finite(b["flow"], 0)
		v.ConfluenceProfile = finite(b["profile"], 0)
	}

	if !ctx.Now.IsZero() {
		v.DayOfWeek = float64(ctx.Now.In(util.Eastern()).Weekday())
	}

	if m := s.Memory; m != nil {
		v.HistoricalWinRate = finite(m.WinRate, 0.5)
		v.HistoricalTestCount = finite(float64(m.TestCount), 0)
		if m.HasLastTest {
			if m.LastTestHeld {
				v.LastTestResult = 1
			} else {
				v.LastTestResult = 0
			}
		}
	}

	applyFlowAggregates(&v, ctx)
	return v
}

// applyFlowAggregates fills the four flow features from the context's
// order-flow prints. Events with non-finite size or premium contribute
// nothing to the sums but still count for recency.
func applyFlowAggregates(v *models.FeatureVector, ctx models.Context) {
	var (
		sweeps       float64
		sweepVolume  float64
		bullPremium  float64
		bearPremium  float64
		haveRecent   bool
		recentOffset float64
	)

	for _, ev := range ctx.FlowEvents {
		if ev.Type == models.FlowSweep {
			sweeps++
			sweepVolume += finite(ev.Size, 0)
		}

		premium := finite(ev.Premium, 0)
		switch ev.Direction {
		case models.Bullish:
			bullPremium += premium
		case models.Bearish:
			bearPremium += premium
		}

		if ctx.Now.IsZero() || ev.Timestamp.IsZero() {
			continue
		}
		age := ctx.Now.Sub(ev.Timestamp).Minutes()
		if age < 0 {
			age = 0
		}
		if !haveRecent || age < recentOffset {
			haveRecent = true
			recentOffset = age
		}
	}

	v.FlowSweepCount = sweeps
	v.FlowVolume = sweepVolume
	if total := bullPremium + bearPremium; total > 0 {
		v.FlowBias = (bullPremium - bearPremium) / total
	}
	if haveRecent {
		v.FlowRecency = recentOffset
	}
}

// regimeCode encodes the regime label as a small stable integer.
func regimeCode(r models.Regime) float64 {
	switch r {
	case models.RegimeTrending:
		return 1
	case models.RegimeRanging:
		return 2
	case models.RegimeBreakout:
		return 3
	case models.RegimeCompression:
		return 4
	default:
		return 0
	}
}

// contextRegime prefers the aggregator's top-level regime, then the
// prediction's regime hint.
func contextRegime(ctx models.Context) models.Regime {
	if models.IsValidRegime(ctx.Regime) {
		return ctx.Regime
	}
	if models.IsValidRegime(ctx.Prediction.Regime) {
		return ctx.Prediction.Regime
	}
	return models.RegimeUnknown
}

func regimeCompatibility(setup, context models.Regime) float64 {
	if context == models.RegimeUnknown {
		return 0.5
	}
	if setup == context {
		return 1.0
	}
	return partialRegimeMatch
}

// atrRatio is atr7/atr14 with a neutral fallback of 1 when the
// denominator is unusable.
// probabilityOrCoinFlip treats a zero trader estimate as unset.
func probabilityOrCoinFlip(p float64) float64 {
	if p == 0 || math.IsNaN(p) || math.IsInf(p, 0) {
		return 0.5
	}
	return p
}

func atrRatio(atr7, atr14 float64) float64 {
	a7 := finite(atr7, 0)
	a14 := finite(atr14, 0)
	if a14 <= 0 {
		return 1
	}
	return finite(a7/a14, 1)
}

// finite returns v when it is a finite number, else the default.
func finite(v, def float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return def
	}
	return v
}
