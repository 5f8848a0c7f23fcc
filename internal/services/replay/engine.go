// Package replay provides deterministic, checksummed playback over a
// stored historical session: price bars windowed by cursor, with
// snapshot and transcript alignment by timestamp.
package replay

import (
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"time"

	"SPXEngine/internal/domain/models"
)

const (
	minWindowBars   = 2
	baseIntervalMs  = 1000
	floorIntervalMs = 120
)

// Options tune engine construction.
type Options struct {
	WindowMinutes int
	Snapshots     []models.Snapshot
	Messages      []models.TranscriptMessage
	Trades        []models.TranscriptTrade
}

// Engine replays one historical bar journal. It is immutable after
// construction; only the cursor passed to GetFrame varies per render,
// so concurrent readers need no locking.
type Engine struct {
	bars      []models.Bar
	snapshots []models.Snapshot
	messages  []models.TranscriptMessage
	trades    []models.TranscriptTrade

	checksum    string
	windowBars  int
	firstCursor int
	lastCursor  int
}

// NewEngine sanitizes and orders the bar journal, derives the window
// size from the requested minutes and the median bar interval, and
// fixes the checksum. A zero-bar journal yields a defined empty engine
// rather than an error.
func NewEngine(bars []models.Bar, opts Options) *Engine {
	clean := sanitizeBars(bars)

	e := &Engine{
		bars:      clean,
		snapshots: sortSnapshots(opts.Snapshots),
		messages:  sortMessages(opts.Messages),
		trades:    opts.Trades,
		checksum:  ChecksumJournal(clean),
	}

	if len(clean) == 0 {
		e.windowBars = 0
		e.firstCursor = 0
		e.lastCursor = -1
		return e
	}

	minutes := opts.WindowMinutes
	if minutes <= 0 {
		minutes = 30
	}
	median := medianIntervalSeconds(clean)
	window := int(math.Ceil(float64(minutes) * 60 / median))
	if window < minWindowBars {
		window = minWindowBars
	}
	if window > len(clean) {
		window = len(clean)
	}

	e.windowBars = window
	e.firstCursor = window - 1
	e.lastCursor = len(clean) - 1
	return e
}

func (e *Engine) Checksum() string { return e.checksum }

func (e *Engine) BarCount() int { return len(e.bars) }

// Bars returns a copy of the sanitized, ordered journal the checksum
// was computed over.
func (e *Engine) Bars() []models.Bar {
	out := make([]models.Bar, len(e.bars))
	copy(out, e.bars)
	return out
}

func (e *Engine) WindowBars() int { return e.windowBars }

func (e *Engine) FirstCursorIndex() int { return e.firstCursor }

func (e *Engine) LastCursorIndex() int { return e.lastCursor }

// GetFrame projects engine state at the given cursor. The cursor is
// clamped into [firstCursorIndex, lastCursorIndex]; a zero-bar engine
// returns an empty frame.
func (e *Engine) GetFrame(cursor int) models.ReplayFrame {
	if len(e.bars) == 0 {
		return models.ReplayFrame{
			VisibleBars:     []models.Bar{},
			VisibleMessages: []models.TranscriptMessage{},
		}
	}

	if cursor < e.firstCursor {
		cursor = e.firstCursor
	}
	if cursor > e.lastCursor {
		cursor = e.lastCursor
	}

	current := e.bars[cursor]
	start := cursor - e.windowBars + 1

	visible := make([]models.Bar, e.windowBars)
	copy(visible, e.bars[start:cursor+1])

	progress := 1.0
	if len(e.bars) > 1 {
		progress = float64(cursor) / float64(len(e.bars)-1)
	}

	return models.ReplayFrame{
		CursorIndex:     cursor,
		Progress:        progress,
		CurrentBar:      &current,
		VisibleBars:     visible,
		Snapshot:        e.snapshotAt(current.Time),
		VisibleMessages: e.messagesThrough(current.Time),
		ActiveTrade:     e.activeTradeAt(current.Time),
	}
}

// NextCursorIndex advances by one bar, capped at the last cursor.
func (e *Engine) NextCursorIndex(cursor int) int {
	next := cursor + 1
	if next > e.lastCursor {
		return e.lastCursor
	}
	if next < e.firstCursor {
		return e.firstCursor
	}
	return next
}

// IsComplete reports end-of-journal.
func (e *Engine) IsComplete(cursor int) bool {
	return cursor >= e.lastCursor
}

// snapshotAt returns the latest snapshot captured at or before t.
func (e *Engine) snapshotAt(t time.Time) *models.Snapshot {
	var found *models.Snapshot
	for i := range e.snapshots {
		if e.snapshots[i].CapturedAt.After(t) {
			break
		}
		found = &e.snapshots[i]
	}
	return found
}

// messagesThrough returns every transcript line posted at or before t.
func (e *Engine) messagesThrough(t time.Time) []models.TranscriptMessage {
	out := []models.TranscriptMessage{}
	for _, m := range e.messages {
		if m.PostedAt.After(t) {
			break
		}
		out = append(out, m)
	}
	return out
}

// activeTradeAt returns the transcript trade open at t, if any. The
// latest entry wins when calls overlap.
func (e *Engine) activeTradeAt(t time.Time) *models.TranscriptTrade {
	var active *models.TranscriptTrade
	for i := range e.trades {
		tr := &e.trades[i]
		if tr.EnteredAt.IsZero() || tr.EnteredAt.After(t) {
			continue
		}
		if !tr.ExitedAt.IsZero() && !tr.ExitedAt.After(t) {
			continue
		}
		if active == nil || tr.EnteredAt.After(active.EnteredAt) {
			active = tr
		}
	}
	return active
}

// ChecksumJournal hashes the bar content with FNV-1a over a canonical
// per-bar string, so equal journals hash equally regardless of slice
// identity. The empty journal hashes to the FNV offset basis.
func ChecksumJournal(bars []models.Bar) string {
	h := fnv.New64a()
	for _, b := range bars {
		fmt.Fprintf(h, "%d|%g|%g|%g|%g|%g\n",
			b.Time.Unix(), b.Open, b.High, b.Low, b.Close, b.Volume)
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

// IntervalMs maps a playback speed multiplier to the wall-clock tick
// interval. Unknown speeds play at 1x; no speed beats the floor.
func IntervalMs(speed int) int {
	if speed <= 0 {
		speed = 1
	}
	interval := baseIntervalMs / speed
	if interval < floorIntervalMs {
		interval = floorIntervalMs
	}
	return interval
}

// sanitizeBars drops rows with non-finite fields or zero timestamps,
// sorts ascending by time, and collapses duplicate timestamps keeping
// the latest occurrence.
func sanitizeBars(bars []models.Bar) []models.Bar {
	clean := make([]models.Bar, 0, len(bars))
	for _, b := range bars {
		if b.Time.IsZero() {
			continue
		}
		if !allFinite(b.Open, b.High, b.Low, b.Close, b.Volume) {
			continue
		}
		clean = append(clean, b)
	}

	sort.SliceStable(clean, func(i, j int) bool {
		return clean[i].Time.Before(clean[j].Time)
	})

	// stable sort keeps input order among equal timestamps, so the
	// last element of each run is the latest occurrence
	dedup := clean[:0]
	for i, b := range clean {
		if i+1 < len(clean) && clean[i+1].Time.Equal(b.Time) {
			continue
		}
		dedup = append(dedup, b)
	}
	return dedup
}

// medianIntervalSeconds is the median spacing between consecutive bars.
// Journals too short to measure assume one-minute bars.
func medianIntervalSeconds(bars []models.Bar) float64 {
	if len(bars) < 2 {
		return 60
	}
	deltas := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		deltas = append(deltas, bars[i].Time.Sub(bars[i-1].Time).Seconds())
	}
	sort.Float64s(deltas)
	mid := len(deltas) / 2
	median := deltas[mid]
	if len(deltas)%2 == 0 {
		median = (deltas[mid-1] + deltas[mid]) / 2
	}
	if median <= 0 {
		return 60
	}
	return median
}

func sortSnapshots(in []models.Snapshot) []models.Snapshot {
	out := make([]models.Snapshot, 0, len(in))
	for _, s := range in {
		if s.CapturedAt.IsZero() {
			continue
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CapturedAt.Before(out[j].CapturedAt)
	})
	return out
}

func sortMessages(in []models.TranscriptMessage) []models.TranscriptMessage {
	out := make([]models.TranscriptMessage, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PostedAt.Before(out[j].PostedAt)
	})
	return out
}

func allFinite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
