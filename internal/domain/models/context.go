package models

import "time"

// Prediction is the multi-timeframe direction estimate supplied by the
// upstream aggregator.
type Prediction struct {
	Direction   Direction `json:"direction"`
	Magnitude   float64   `json:"magnitude"`
	Probability float64   `json:"probability"` // 0..1 probability of the predicted direction
	ConeLow     float64   `json:"coneLow"`
	ConeHigh    float64   `json:"coneHigh"`
	Confidence  float64   `json:"confidence"` // 0..1
	Regime      Regime    `json:"regime,omitempty"`
}

// BasisTrend is the SPX-vs-proxy basis direction.
type BasisTrend string

const (
	BasisRising  BasisTrend = "rising"
	BasisFalling BasisTrend = "falling"
	BasisStable  BasisTrend = "stable"
)

// GEXSnapshot is the dealer gamma-exposure profile at evaluation time.
type GEXSnapshot struct {
	NetGex    float64 `json:"netGex"`
	FlipPoint float64 `json:"flipPoint"`
	CallWall  float64 `json:"callWall"`
	PutWall   float64 `json:"putWall"`
}

// FlowEventType classifies an options order-flow print.
type FlowEventType string

const (
	FlowSweep FlowEventType = "sweep"
	FlowBlock FlowEventType = "block"
	FlowSplit FlowEventType = "split"
)

// FlowEvent is one options order-flow print.
type FlowEvent struct {
	ID        string        `json:"id"`
	Type      FlowEventType `json:"type"`
	Symbol    string        `json:"symbol"`
	Strike    float64       `json:"strike"`
	Expiry    string        `json:"expiry"`
	Size      float64       `json:"size"`
	Direction Direction     `json:"direction"`
	Premium   float64       `json:"premium"`
	Timestamp time.Time     `json:"timestamp"`
}

// MarketMetrics are derived microstructure readings.
type MarketMetrics struct {
	DistanceToVWAP float64 `json:"distanceToVWAP"`
	ATR7           float64 `json:"atr7"`
	ATR14          float64 `json:"atr14"`
	IVRank         float64 `json:"ivRank"`
	IVSkew         float64 `json:"ivSkew"`
	PutCallRatio   float64 `json:"putCallRatio"`
	DTE            float64 `json:"dte"`
}

// Context is the read-only market snapshot every scoring call receives.
type Context struct {
	Regime     Regime        `json:"regime"`
	Prediction Prediction    `json:"prediction"`
	Basis      BasisTrend    `json:"basis"`
	GEX        GEXSnapshot   `json:"gex"`
	FlowEvents []FlowEvent   `json:"flowEvents"`
	Metrics    MarketMetrics `json:"metrics"`
	Now        time.Time     `json:"now"`
}
