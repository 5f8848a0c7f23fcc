package models

import "time"

// SetupType identifies the strategy kind behind a candidate setup.
type SetupType string

const (
	SetupTrendContinuation SetupType = "trend_continuation"
	SetupFadeAtWall        SetupType = "fade_at_wall"
	SetupMeanReversion     SetupType = "mean_reversion"
	SetupORBBreakout       SetupType = "orb_breakout"
)

// IsValidSetupType returns true for a supported strategy kind.
func IsValidSetupType(t SetupType) bool {
	switch t {
	case SetupTrendContinuation, SetupFadeAtWall, SetupMeanReversion, SetupORBBreakout:
		return true
	default:
		return false
	}
}

// Direction is the side a setup trades.
type Direction string

const (
	Bullish Direction = "bullish"
	Bearish Direction = "bearish"
)

// Regime classifies market character.
type Regime string

const (
	RegimeTrending    Regime = "trending"
	RegimeRanging     Regime = "ranging"
	RegimeBreakout    Regime = "breakout"
	RegimeCompression Regime = "compression"
	RegimeUnknown     Regime = ""
)

// IsValidRegime returns true for a known regime label.
func IsValidRegime(r Regime) bool {
	switch r {
	case RegimeTrending, RegimeRanging, RegimeBreakout, RegimeCompression:
		return true
	default:
		return false
	}
}

// SetupStatus is the lifecycle state of a setup.
// Triggered is terminal; forming/ready/expired are re-derived each tick.
type SetupStatus string

const (
	StatusForming   SetupStatus = "forming"
	StatusReady     SetupStatus = "ready"
	StatusTriggered SetupStatus = "triggered"
	StatusExpired   SetupStatus = "expired"
)

// PriceZone is an inclusive price band.
type PriceZone struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Contains reports whether p falls inside the zone, boundaries included.
func (z PriceZone) Contains(p float64) bool {
	return p >= z.Low && p <= z.High
}

// Target is a profit objective with a display label.
type Target struct {
	Price float64 `json:"price"`
	Label string  `json:"label"`
}

// ClusterZone records the test/hold history of a price band.
type ClusterZone struct {
	PriceLow   float64   `json:"priceLow"`
	PriceHigh  float64   `json:"priceHigh"`
	TestCount  int       `json:"testCount"`
	HoldRate   float64   `json:"holdRate"`
	Held       bool      `json:"held"`
	LastTestAt time.Time `json:"lastTestAt"`
}

// MemoryContext carries historical test/win statistics for the same cluster.
type MemoryContext struct {
	WinRate        float64 `json:"winRate"`
	TestCount      int     `json:"testCount"`
	LastTestHeld   bool    `json:"lastTestHeld"`
	HasLastTest    bool    `json:"hasLastTest"`
	LastOutcomeDay string  `json:"lastOutcomeDay,omitempty"`
}

// ConfluenceBreakdown holds named sub-scores behind the composite
// confluence score. Keys are the canonical source names used by the
// feature extractor: gex, vwap, cluster, flow, profile.
type ConfluenceBreakdown map[string]float64

// Setup is a candidate trade proposed by the upstream generator.
// The lifecycle service is the only mutator of Status; scoring never
// writes back into a Setup.
type Setup struct {
	ID                  string              `json:"id"`
	Type                SetupType           `json:"type"`
	Direction           Direction           `json:"direction"`
	EntryZone           PriceZone           `json:"entryZone"`
	Stop                float64             `json:"stop"`
	Target1             Target              `json:"target1"`
	Target2             Target              `json:"target2"`
	ConfluenceScore     float64             `json:"confluenceScore"` // 0..5
	ConfluenceBreakdown ConfluenceBreakdown `json:"confluenceBreakdown,omitempty"`
	ConfluenceSources   []string            `json:"confluenceSources,omitempty"`
	ClusterZone         *ClusterZone        `json:"clusterZone,omitempty"`
	Regime              Regime              `json:"regime,omitempty"`
	Status              SetupStatus         `json:"status"`
	Probability         float64             `json:"probability"`
	RecommendedContract *Contract           `json:"recommendedContract,omitempty"`
	CreatedAt           string              `json:"createdAt"` // RFC3339; tolerated malformed
	TriggeredAt         string              `json:"triggeredAt,omitempty"`
	Memory              *MemoryContext      `json:"memoryContext,omitempty"`
}

// Contract describes an options contract suggestion attached to a setup.
type Contract struct {
	Symbol string  `json:"symbol"`
	Strike float64 `json:"strike"`
	Expiry string  `json:"expiry"`
	Right  string  `json:"right"` // "call" or "put"
}

// Verdict is the decision engine output for one setup.
type Verdict struct {
	AlignmentScore  float64  `json:"alignmentScore"` // 0..100
	Confidence      float64  `json:"confidence"`     // 0..1
	ConfidenceTrend Trend    `json:"confidenceTrend"`
	Drivers         []string `json:"drivers"`
	Risks           []string `json:"risks"`
}

// Trend is the short-horizon direction of scoring confidence.
type Trend string

const (
	TrendUp   Trend = "up"
	TrendFlat Trend = "flat"
	TrendDown Trend = "down"
)

// EnrichedSetup is a Setup plus decision-engine enrichment. The embedded
// setup is a copy; enrichment never mutates the caller's value.
type EnrichedSetup struct {
	Setup
	Score           float64  `json:"score"`
	PWinCalibrated  float64  `json:"pWinCalibrated"`
	EVR             float64  `json:"evR"`
	AlignmentScore  float64  `json:"alignmentScore"`
	AdjustedStop    float64  `json:"adjustedStop,omitempty"`
	Confidence      float64  `json:"confidence"`
	ConfidenceTrend Trend    `json:"confidenceTrend"`
	DecisionDrivers []string `json:"decisionDrivers"`
	DecisionRisks   []string `json:"decisionRisks"`
}
