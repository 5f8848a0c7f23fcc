package models

// Requests for the decision/replay HTTP endpoints. Defined in domain for
// consistency and reuse.

// EvaluateRequest scores a batch of candidate setups against one context
// snapshot. CurrentPrice falls back to the live quote register when zero.
type EvaluateRequest struct {
	Setups       []Setup  `json:"setups" validate:"required,min=1,dive"`
	Context      Context  `json:"context"`
	CurrentPrice float64  `json:"currentPrice"`
	BarConfirmed *bool    `json:"barConfirmed,omitempty"`
	LatestClose  *float64 `json:"latestBarClose,omitempty"`
}

// CalendarRequest classifies one Eastern session date.
type CalendarRequest struct {
	Date string `query:"date" json:"date" validate:"required,datetime=2006-01-02"`
}

// ReplayFrameRequest addresses one frame of a stored session.
type ReplayFrameRequest struct {
	Cursor        int `query:"cursor" json:"cursor" default:"0" validate:"gte=0"`
	WindowMinutes int `query:"windowMinutes" json:"windowMinutes" default:"30" validate:"gte=1,lte=390"`
	Speed         int `query:"speed" json:"speed" default:"1" validate:"oneof=1 2 4"`
}

// GradeRequest grades a set of completed trades.
type GradeRequest struct {
	Stats  SessionStats    `json:"stats"`
	Trades []EnrichedTrade `json:"trades" validate:"dive"`
}

// ModelRefreshRequest forces a confidence-model reload.
type ModelRefreshRequest struct {
	Force bool `query:"force" json:"force" default:"true"`
}
