package models

import "time"

// BlockedSetup reports a setup excluded from scoring by a calendar
// restriction.
type BlockedSetup struct {
	SetupID string              `json:"setupId"`
	Type    SetupType           `json:"type"`
	Reason  StrategyRestriction `json:"reason"`
}

// EvaluateResponse is the scored outcome of one evaluation pass.
type EvaluateResponse struct {
	Setups       []EnrichedSetup `json:"setups"`
	Blocked      []BlockedSetup  `json:"blocked,omitempty"`
	Calendar     CalendarContext `json:"calendar"`
	ModelVersion string          `json:"modelVersion,omitempty"`
	EvaluatedAt  time.Time       `json:"evaluatedAt"`
}

// ReplayFrameResponse wraps one projected frame with playback metadata.
type ReplayFrameResponse struct {
	SessionID  string      `json:"sessionId"`
	Frame      ReplayFrame `json:"frame"`
	NextCursor int         `json:"nextCursor"`
	IntervalMs int         `json:"intervalMs"`
	Complete   bool        `json:"complete"`
	Checksum   string      `json:"checksum"`
	WindowBars int         `json:"windowBars"`
	BarCount   int         `json:"barCount"`
}
