package models

import "time"

// ExitEventType classifies a position exit.
type ExitEventType string

const (
	ExitTrim ExitEventType = "trim"
	ExitFull ExitEventType = "full_exit"
)

// ExitEvent is one partial or full exit of a trade.
type ExitEvent struct {
	Type     ExitEventType `json:"type"`
	Price    float64       `json:"price"`
	Fraction float64       `json:"fraction"` // portion of the position closed
	At       time.Time     `json:"at"`
}

// StopLevel is a protective stop attached to a trade.
type StopLevel struct {
	Price float64   `json:"price"`
	SetAt time.Time `json:"setAt"`
}

// TradeEvaluation is the decision-engine verdict recorded with a trade.
type TradeEvaluation struct {
	AlignmentScore  float64  `json:"alignmentScore"`
	Confidence      float64  `json:"confidence"`
	ConfidenceTrend Trend    `json:"confidenceTrend"`
	ExpectedValueR  float64  `json:"expectedValueR"`
	Drivers         []string `json:"drivers"`
	Risks           []string `json:"risks"`
}

// EnrichedTrade is a completed historical trade with its evaluation and
// derived outcome fields.
type EnrichedTrade struct {
	ID         string          `json:"id"`
	Contract   string          `json:"contract"`
	Direction  Direction       `json:"direction"`
	EntryPrice float64         `json:"entryPrice"`
	EnteredAt  time.Time       `json:"enteredAt"`
	ExitEvents []ExitEvent     `json:"exitEvents"` // ordered by time
	StopLevels []StopLevel     `json:"stopLevels"`
	Size       float64         `json:"size"` // contracts
	Evaluation TradeEvaluation `json:"evaluation"`
	PnLPercent float64         `json:"pnlPercent"`
	IsWinner   bool            `json:"isWinner"`
}

// SessionStats aggregates a session's completed trades.
type SessionStats struct {
	SessionDay  string  `json:"sessionDay"`
	TradeCount  int     `json:"tradeCount"`
	WinnerCount int     `json:"winnerCount"`
	TotalPnLPct float64 `json:"totalPnlPercent"`
}

// SessionGrade is the letter-grade summary of a replayed or live session.
type SessionGrade struct {
	Grade   string   `json:"grade"` // A..F
	Score   float64  `json:"score"` // 0..100
	Factors []string `json:"factors"`
}
