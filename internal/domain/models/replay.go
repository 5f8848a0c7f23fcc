package models

import (
	"encoding/json"
	"time"
)

// Bar is one OHLCV price bar of a historical session journal.
type Bar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Snapshot is an analytical capture taken during a session. CapturedAt is
// canonical; the legacy `captured_at` wire alias is accepted on decode,
// never branched on in core logic.
type Snapshot struct {
	CapturedAt time.Time      `json:"capturedAt"`
	Regime     Regime         `json:"regime,omitempty"`
	GEX        *GEXSnapshot   `json:"gex,omitempty"`
	Metrics    *MarketMetrics `json:"metrics,omitempty"`
	Note       string         `json:"note,omitempty"`
}

// UnmarshalJSON folds the legacy `captured_at` alias into CapturedAt.
// An unparseable timestamp leaves CapturedAt zero; zero-time snapshots
// never surface in frames, so one bad capture cannot fail a whole
// journal decode.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	type plain Snapshot
	aux := struct {
		*plain
		CapturedAt string `json:"capturedAt"`
		LegacyAt   string `json:"captured_at"`
	}{plain: (*plain)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	raw := aux.CapturedAt
	if raw == "" {
		raw = aux.LegacyAt
	}
	if raw == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		s.CapturedAt = t
	}
	return nil
}

// TranscriptMessage is one chat line from a recorded session.
type TranscriptMessage struct {
	ID       string    `json:"id"`
	Author   string    `json:"author"`
	Content  string    `json:"content"`
	PostedAt time.Time `json:"postedAt"`
}

// TranscriptTrade is a trade call lifted from a session transcript.
type TranscriptTrade struct {
	ID        string    `json:"id"`
	Contract  string    `json:"contract"`
	Direction Direction `json:"direction"`
	EnteredAt time.Time `json:"enteredAt"`
	ExitedAt  time.Time `json:"exitedAt"` // zero while open
}

// ReplayFrame is a pure projection of engine state at one cursor position.
type ReplayFrame struct {
	CursorIndex     int                 `json:"cursorIndex"`
	Progress        float64             `json:"progress"` // 0..1
	CurrentBar      *Bar                `json:"currentBar"`
	VisibleBars     []Bar               `json:"visibleBars"`
	Snapshot        *Snapshot           `json:"snapshot"`
	VisibleMessages []TranscriptMessage `json:"visibleDiscordMessages"`
	ActiveTrade     *TranscriptTrade    `json:"activeDiscordTrade"`
}

// ReplaySessionSummary is the listing row for a stored session.
type ReplaySessionSummary struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	SessionDay string    `json:"sessionDay"` // YYYY-MM-DD
	BarCount   int       `json:"barCount"`
	Checksum   string    `json:"checksum"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ReplaySession is a fully loaded historical session.
type ReplaySession struct {
	ReplaySessionSummary
	Bars      []Bar               `json:"bars"`
	Snapshots []Snapshot          `json:"snapshots"`
	Messages  []TranscriptMessage `json:"messages"`
	Trades    []TranscriptTrade   `json:"trades"`
}
