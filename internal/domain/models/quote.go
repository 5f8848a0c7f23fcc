package models

import "time"

// Quote is one live index quote from the market feed.
type Quote struct {
	Symbol string    `json:"symbol"`
	Price  float64   `json:"price"`
	VWAP   float64   `json:"vwap"`
	Time   time.Time `json:"time"`
}

// EvaluationRecord is the audit row emitted for every scored setup.
type EvaluationRecord struct {
	SetupID         string      `json:"setupId"`
	SetupType       SetupType   `json:"setupType"`
	Direction       Direction   `json:"direction"`
	StatusBefore    SetupStatus `json:"statusBefore"`
	StatusAfter     SetupStatus `json:"statusAfter"`
	AlignmentScore  float64     `json:"alignmentScore"`
	Confidence      float64     `json:"confidence"`
	ConfidenceTrend Trend       `json:"confidenceTrend"`
	PWinCalibrated  float64     `json:"pWinCalibrated"`
	EVR             float64     `json:"evR"`
	ModelVersion    string      `json:"modelVersion,omitempty"`
	EvaluatedAt     time.Time   `json:"evaluatedAt"`
}
