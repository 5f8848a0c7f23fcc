package replay

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SPXEngine/internal/domain/models"
)

func minuteBars(start time.Time, n int) []models.Bar {
	bars := make([]models.Bar, n)
	for i := 0; i < n; i++ {
		price := 5000 + float64(i)
		bars[i] = models.Bar{
			Time:   start.Add(time.Duration(i) * time.Minute),
			Open:   price,
			High:   price + 2,
			Low:    price - 2,
			Close:  price + 1,
			Volume: 1000 + float64(i),
		}
	}
	return bars
}

func TestChecksumContentDependentIdentityIndependent(t *testing.T) {
	start := time.Date(2026, 3, 20, 14, 30, 0, 0, time.UTC)
	bars := minuteBars(start, 50)

	copied := make([]models.Bar, len(bars))
	copy(copied, bars)

	assert.Equal(t, ChecksumJournal(bars), ChecksumJournal(copied))

	copied[10].Close += 0.25
	assert.NotEqual(t, ChecksumJournal(bars), ChecksumJournal(copied))
}

func TestSanitizationDropsSortsAndDedupes(t *testing.T) {
	start := time.Date(2026, 3, 20, 14, 30, 0, 0, time.UTC)
	bars := []models.Bar{
		{Time: start.Add(2 * time.Minute), Open: 5002, High: 5004, Low: 5000, Close: 5003, Volume: 10},
		{Time: start, Open: 5000, High: 5002, Low: 4998, Close: 5001, Volume: 10},
		{Time: start.Add(time.Minute), Open: math.NaN(), High: 5003, Low: 4999, Close: 5002, Volume: 10},
		{Time: start, Open: 5000, High: 5002, Low: 4998, Close: 5001.5, Volume: 12}, // duplicate ts, latest wins
		{},
	}

	e := NewEngine(bars, Options{WindowMinutes: 30})
	require.Equal(t, 2, e.BarCount())

	frame := e.GetFrame(e.LastCursorIndex())
	require.Len(t, frame.VisibleBars, 2)
	assert.Equal(t, 5001.5, frame.VisibleBars[0].Close, "latest duplicate kept")
	assert.True(t, frame.VisibleBars[0].Time.Before(frame.VisibleBars[1].Time))
}

func TestWindowDerivationFromMedianInterval(t *testing.T) {
	start := time.Date(2026, 3, 20, 14, 30, 0, 0, time.UTC)
	e := NewEngine(minuteBars(start, 120), Options{WindowMinutes: 30})

	assert.Equal(t, 30, e.WindowBars())
	assert.Equal(t, 29, e.FirstCursorIndex())
	assert.Equal(t, 119, e.LastCursorIndex())
}

func TestGetFrameWindowLengthAndClamping(t *testing.T) {
	start := time.Date(2026, 3, 20, 14, 30, 0, 0, time.UTC)
	e := NewEngine(minuteBars(start, 120), Options{WindowMinutes: 30})

	for _, cursor := range []int{-5, 0, e.FirstCursorIndex(), 60, e.LastCursorIndex(), 10_000} {
		frame := e.GetFrame(cursor)
		assert.Len(t, frame.VisibleBars, e.WindowBars(), "cursor %d", cursor)
		assert.GreaterOrEqual(t, frame.CursorIndex, e.FirstCursorIndex())
		assert.LessOrEqual(t, frame.CursorIndex, e.LastCursorIndex())
		require.NotNil(t, frame.CurrentBar)
		assert.Equal(t, *frame.CurrentBar, frame.VisibleBars[len(frame.VisibleBars)-1])
	}

	last := e.GetFrame(e.LastCursorIndex())
	assert.Equal(t, 1.0, last.Progress)
}

func TestNextCursorCapsAtEnd(t *testing.T) {
	start := time.Date(2026, 3, 20, 14, 30, 0, 0, time.UTC)
	e := NewEngine(minuteBars(start, 40), Options{WindowMinutes: 10})

	cursor := e.FirstCursorIndex()
	for i := 0; i < 100; i++ {
		cursor = e.NextCursorIndex(cursor)
	}
	assert.Equal(t, e.LastCursorIndex(), cursor)
	assert.True(t, e.IsComplete(cursor))
	assert.False(t, e.IsComplete(e.FirstCursorIndex()))
}

func TestSnapshotAlignmentLatestAtOrBefore(t *testing.T) {
	start := time.Date(2026, 3, 20, 14, 30, 0, 0, time.UTC)
	snaps := []models.Snapshot{
		{CapturedAt: start.Add(5 * time.Minute), Note: "early"},
		{CapturedAt: start.Add(20 * time.Minute), Note: "late"},
		{}, // unparseable capture time, skipped
	}
	e := NewEngine(minuteBars(start, 60), Options{WindowMinutes: 10, Snapshots: snaps})

	frame := e.GetFrame(10) // bar at +10min
	require.NotNil(t, frame.Snapshot)
	assert.Equal(t, "early", frame.Snapshot.Note)

	frame = e.GetFrame(30)
	require.NotNil(t, frame.Snapshot)
	assert.Equal(t, "late", frame.Snapshot.Note)
}

func TestLegacySnapshotAliasResolvesInFrame(t *testing.T) {
	start := time.Date(2026, 3, 20, 14, 30, 0, 0, time.UTC)
	payload := `[
		{"captured_at":"2026-03-20T14:35:00Z","note":"legacy capture"},
		{"capturedAt":"garbled","note":"dropped"}
	]`
	var snaps []models.Snapshot
	require.NoError(t, json.Unmarshal([]byte(payload), &snaps))

	e := NewEngine(minuteBars(start, 60), Options{WindowMinutes: 10, Snapshots: snaps})

	frame := e.GetFrame(30)
	require.NotNil(t, frame.Snapshot)
	assert.Equal(t, "legacy capture", frame.Snapshot.Note)
}

func TestTranscriptAlignment(t *testing.T) {
	start := time.Date(2026, 3, 20, 14, 30, 0, 0, time.UTC)
	msgs := []models.TranscriptMessage{
		{ID: "m2", PostedAt: start.Add(15 * time.Minute)},
		{ID: "m1", PostedAt: start.Add(3 * time.Minute)},
	}
	trades := []models.TranscriptTrade{
		{ID: "t1", EnteredAt: start.Add(12 * time.Minute), ExitedAt: start.Add(25 * time.Minute)},
	}
	e := NewEngine(minuteBars(start, 60), Options{WindowMinutes: 10, Messages: msgs, Trades: trades})

	frame := e.GetFrame(20)
	require.Len(t, frame.VisibleMessages, 2)
	assert.Equal(t, "m1", frame.VisibleMessages[0].ID, "messages ordered by time")
	require.NotNil(t, frame.ActiveTrade)
	assert.Equal(t, "t1", frame.ActiveTrade.ID)

	frame = e.GetFrame(30)
	assert.Nil(t, frame.ActiveTrade, "trade exited before this bar")
}

func TestZeroBarEngineReturnsEmptyFrame(t *testing.T) {
	e := NewEngine(nil, Options{WindowMinutes: 30})

	frame := e.GetFrame(0)
	assert.Nil(t, frame.CurrentBar)
	assert.Empty(t, frame.VisibleBars)
	assert.NotNil(t, frame.VisibleBars)
	assert.Equal(t, 0.0, frame.Progress)
}

func TestIntervalSpeedLadderAndFloor(t *testing.T) {
	assert.Greater(t, IntervalMs(1), IntervalMs(2))
	assert.Greater(t, IntervalMs(2), IntervalMs(4))
	assert.Equal(t, 1000, IntervalMs(1))
	assert.Equal(t, 250, IntervalMs(4))
	assert.Equal(t, 120, IntervalMs(100), "floor holds at any speed")
	assert.Equal(t, 1000, IntervalMs(0), "unknown speed plays at 1x")
}
