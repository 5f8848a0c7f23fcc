// Package decision scores candidate setups against the live market
// context and produces the alignment/confidence verdicts shown to the
// trader, optionally calibrated by the fetched confidence model.
package decision

import (
	"context"
	"math"

	"SPXEngine/internal/domain/models"
	"SPXEngine/internal/domain/repository"
	"SPXEngine/internal/domain/service"
	"SPXEngine/internal/services/features"
	"SPXEngine/pkg/logger"
)

const (
	neutralAlignment = 50.0

	// component weight caps, in alignment points
	confluenceWeight  = 15.0
	regimeBonus       = 10.0
	regimePenalty     = 8.0
	directionWeight   = 15.0
	flowWeight        = 12.0
	gexTargetPenalty  = 8.0
	gexSupportBonus   = 5.0
	gexDampenPenalty  = 6.0
	basisWeight       = 4.0

	trendUpThreshold   = 65.0
	trendDownThreshold = 35.0

	// flow premium decay half-life when weighting prints by recency
	flowHalfLifeMinutes = 15.0
)

// Engine evaluates setups. It is stateless apart from the injected
// model source; Evaluate and Enrich never mutate their inputs.
type Engine struct {
	modelSource service.ModelSource
	log         *logger.Logger
	metrics     repository.Metrics
}

type Option func(*Engine)

func WithModelSource(src service.ModelSource) Option {
	return func(e *Engine) { e.modelSource = src }
}

func WithMetrics(m repository.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func NewEngine(log *logger.Logger, opts ...Option) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	e := &Engine{log: log}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate combines confluence, regime match, directional alignment,
// flow agreement, GEX positioning, and basis trend into one verdict.
// The score rises when signals agree and falls when they conflict.
func (e *Engine) Evaluate(s models.Setup, ctx models.Context) models.Verdict {
	v := models.Verdict{
		Drivers: []string{},
		Risks:   []string{},
	}

	score := neutralAlignment
	score += e.confluenceComponent(s, &v)
	score += e.regimeComponent(s, ctx, &v)
	score += e.directionComponent(s, ctx, &v)
	score += e.flowComponent(s, ctx, &v)
	score += e.gexComponent(s, ctx, &v)
	score += e.basisComponent(s, ctx, &v)

	v.AlignmentScore = clamp(score, 0, 100)
	v.Confidence = clamp(finite(ctx.Prediction.Confidence, 0.5)*(0.5+v.AlignmentScore/100), 0, 1)

	switch {
	case v.AlignmentScore >= trendUpThreshold:
		v.ConfidenceTrend = models.TrendUp
	case v.AlignmentScore <= trendDownThreshold:
		v.ConfidenceTrend = models.TrendDown
	default:
		v.ConfidenceTrend = models.TrendFlat
	}

	if e.metrics != nil {
		e.metrics.RecordEvaluation(string(s.Type), string(v.ConfidenceTrend))
	}
	return v
}

// Enrich is Evaluate plus model calibration: when a confidence model is
// cached, pWin comes from a linear combination over the feature vector;
// otherwise heuristic estimates derived from alignment stand in.
func (e *Engine) Enrich(ctx context.Context, s models.Setup, mctx models.Context) models.EnrichedSetup {
	verdict := e.Evaluate(s, mctx)

	enriched := models.EnrichedSetup{
		Setup:           s,
		AlignmentScore:  verdict.AlignmentScore,
		Confidence:      verdict.Confidence,
		ConfidenceTrend: verdict.ConfidenceTrend,
		DecisionDrivers: verdict.Drivers,
		DecisionRisks:   verdict.Risks,
	}

	var weights *models.ConfidenceModelWeights
	if e.modelSource != nil {
		weights = e.modelSource.Current(ctx)
	}

	if weights != nil {
		vec := features.Extract(s, mctx)
		enriched.PWinCalibrated = calibratedPWin(weights, vec)
	} else {
		enriched.PWinCalibrated = heuristicPWin(verdict.AlignmentScore, s.Probability)
	}

	rr := rewardRiskRatio(s)
	enriched.EVR = finite(enriched.PWinCalibrated*rr-(1-enriched.PWinCalibrated), 0)
	enriched.Score = clamp(0.6*verdict.AlignmentScore+0.4*(finite(s.ConfluenceScore, 0)/5*100), 0, 100)

	return enriched
}

func (e *Engine) confluenceComponent(s models.Setup, v *models.Verdict) float64 {
	c := clamp(finite(s.ConfluenceScore, 0), 0, 5)
	delta := (c/5 - 0.5) * 2 * confluenceWeight
	if c >= 4 {
		v.Drivers = append(v.Drivers, "strong confluence")
	} else if c <= 1.5 {
		v.Risks = append(v.Risks, "weak confluence")
	}
	return delta
}

func (e *Engine) regimeComponent(s models.Setup, ctx models.Context, v *models.Verdict) float64 {
	cr := ctx.Regime
	if !models.IsValidRegime(cr) {
		cr = ctx.Prediction.Regime
	}
	if !models.IsValidRegime(cr) || !models.IsValidRegime(s.Regime) {
		return 0
	}
	if s.Regime == cr {
		v.Drivers = append(v.Drivers, "regime match")
		return regimeBonus
	}
	v.Risks = append(v.Risks, "regime mismatch")
	return -regimePenalty
}

func (e *Engine) directionComponent(s models.Setup, ctx models.Context, v *models.Verdict) float64 {
	p := finite(ctx.Prediction.Probability, 0.5)
	if p <= 0 || ctx.Prediction.Direction == "" {
		return 0
	}
	// conviction above a coin flip, signed by agreement
	conviction := clamp((p-0.5)*2, 0, 1)
	if conviction == 0 {
		return 0
	}
	if ctx.Prediction.Direction == s.Direction {
		if conviction >= 0.2 {
			v.Drivers = append(v.Drivers, "prediction agrees with setup direction")
		}
		return conviction * directionWeight
	}
	v.Risks = append(v.Risks, "prediction diverges from setup direction")
	return -conviction * directionWeight
}

// flowComponent weighs bullish vs bearish premium with exponential
// recency decay and rewards agreement with the setup direction.
func (e *Engine) flowComponent(s models.Setup, ctx models.Context, v *models.Verdict) float64 {
	var bull, bear float64
	for _, ev := range ctx.FlowEvents {
		premium := finite(ev.Premium, 0)
		if premium <= 0 {
			continue
		}
		weight := 1.0
		if !ctx.Now.IsZero() && !ev.Timestamp.IsZero() {
			ageMin := math.Max(ctx.Now.Sub(ev.Timestamp).Minutes(), 0)
			weight = math.Exp2(-ageMin / flowHalfLifeMinutes)
		}
		switch ev.Direction {
		case models.Bullish:
			bull += premium * weight
		case models.Bearish:
			bear += premium * weight
		}
	}

	total := bull + bear
	if total <= 0 {
		return 0
	}
	bias := (bull - bear) / total // -1..1, positive bullish
	if s.Direction == models.Bearish {
		bias = -bias
	}

	if bias >= 0.3 {
		v.Drivers = append(v.Drivers, "flow supports setup direction")
	} else if bias <= -0.3 {
		v.Risks = append(v.Risks, "flow diverges from setup direction")
	}
	return bias * flowWeight
}

// gexComponent reads the dealer gamma profile against the setup's entry
// and first target.
func (e *Engine) gexComponent(s models.Setup, ctx models.Context, v *models.Verdict) float64 {
	g := ctx.GEX
	net := finite(g.NetGex, 0)
	delta := 0.0

	if s.Direction == models.Bullish {
		if g.CallWall != 0 && s.Target1.Price > g.CallWall {
			v.Risks = append(v.Risks, "target sits beyond the call wall")
			delta -= gexTargetPenalty
		}
		if g.PutWall != 0 && s.EntryZone.Low >= g.PutWall && s.EntryZone.Low-g.PutWall <= 0.01*g.PutWall {
			v.Drivers = append(v.Drivers, "entry backed by put wall support")
			delta += gexSupportBonus
		}
	} else {
		if g.PutWall != 0 && s.Target1.Price < g.PutWall {
			v.Risks = append(v.Risks, "target sits beyond the put wall")
			delta -= gexTargetPenalty
		}
		if g.CallWall != 0 && s.EntryZone.High <= g.CallWall && g.CallWall-s.EntryZone.High <= 0.01*g.CallWall {
			v.Drivers = append(v.Drivers, "entry capped by call wall resistance")
			delta += gexSupportBonus
		}
	}

	// positive gamma dampens directional follow-through
	if net > 0 && (s.Type == models.SetupORBBreakout || s.Type == models.SetupTrendContinuation) {
		v.Risks = append(v.Risks, "positive gamma dampens breakout follow-through")
		delta -= gexDampenPenalty
	}
	// negative gamma amplifies moves, favorable for momentum entries
	if net < 0 && (s.Type == models.SetupORBBreakout || s.Type == models.SetupTrendContinuation) {
		v.Drivers = append(v.Drivers, "negative gamma amplifies directional moves")
		delta += gexDampenPenalty
	}
	return delta
}

func (e *Engine) basisComponent(s models.Setup, ctx models.Context, v *models.Verdict) float64 {
	switch {
	case ctx.Basis == models.BasisRising && s.Direction == models.Bullish,
		ctx.Basis == models.BasisFalling && s.Direction == models.Bearish:
		v.Drivers = append(v.Drivers, "basis trend confirms direction")
		return basisWeight
	case ctx.Basis == models.BasisRising && s.Direction == models.Bearish,
		ctx.Basis == models.BasisFalling && s.Direction == models.Bullish:
		v.Risks = append(v.Risks, "basis trend opposes direction")
		return -basisWeight
	default:
		return 0
	}
}

// calibratedPWin applies the linear model over the feature vector and
// squashes through a logistic link, clamped away from certainty.
func calibratedPWin(w *models.ConfidenceModelWeights, vec models.FeatureVector) float64 {
	z := w.Intercept
	m := vec.Map()
	for name, weight := range w.Features {
		if val, ok := m[name]; ok {
			z += weight * val
		}
	}
	p := 1 / (1 + math.Exp(-z))
	return clamp(finite(p, 0.5), 0.05, 0.95)
}

// heuristicPWin stands in when no model is cached: alignment carries
// most of the signal, the generator's own probability the rest.
func heuristicPWin(alignment, probability float64) float64 {
	p := 0.30 + alignment/100*0.40 + clamp(finite(probability, 0.5), 0, 1)*0.15
	return clamp(p, 0.05, 0.95)
}

// rewardRiskRatio is target1 distance over stop distance, measured from
// the entry-zone midpoint. Degenerate geometry falls back to 1.5R.
func rewardRiskRatio(s models.Setup) float64 {
	mid := (s.EntryZone.Low + s.EntryZone.High) / 2
	risk := math.Abs(mid - s.Stop)
	reward := math.Abs(s.Target1.Price - mid)
	if risk <= 0 || reward <= 0 {
		return 1.5
	}
	return finite(reward/risk, 1.5)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func finite(v, def float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return def
	}
	return v
}
