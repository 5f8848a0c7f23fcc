package usecase

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SPXEngine/internal/domain/models"
)

func TestFlowWindowAgesOutOldEvents(t *testing.T) {
	now := time.Date(2026, 3, 23, 18, 0, 0, 0, time.UTC)
	w := NewFlowWindow(30*time.Minute, 100, nil, WithFlowClock(func() time.Time { return now }))

	w.Add(models.FlowEvent{ID: "old", Timestamp: now.Add(-45 * time.Minute)})
	w.Add(models.FlowEvent{ID: "fresh", Timestamp: now.Add(-5 * time.Minute)})

	events := w.Recent(context.Background())
	require.Len(t, events, 1)
	assert.Equal(t, "fresh", events[0].ID)
}

func TestFlowWindowCapsEventCount(t *testing.T) {
	now := time.Date(2026, 3, 23, 18, 0, 0, 0, time.UTC)
	w := NewFlowWindow(time.Hour, 5, nil, WithFlowClock(func() time.Time { return now }))

	for i := 0; i < 10; i++ {
		w.Add(models.FlowEvent{
			ID:        fmt.Sprintf("f-%d", i),
			Timestamp: now.Add(time.Duration(i-10) * time.Minute),
		})
	}

	events := w.Recent(context.Background())
	require.Len(t, events, 5)
	// the newest five survive the cap
	assert.Equal(t, "f-5", events[0].ID)
	assert.Equal(t, "f-9", events[4].ID)
}

func TestFlowWindowRecentIsOrderedOldestFirst(t *testing.T) {
	now := time.Date(2026, 3, 23, 18, 0, 0, 0, time.UTC)
	w := NewFlowWindow(time.Hour, 100, nil, WithFlowClock(func() time.Time { return now }))

	w.Add(models.FlowEvent{ID: "b", Timestamp: now.Add(-2 * time.Minute)})
	w.Add(models.FlowEvent{ID: "a", Timestamp: now.Add(-10 * time.Minute)})
	w.Add(models.FlowEvent{ID: "c", Timestamp: now.Add(-1 * time.Minute)})

	events := w.Recent(context.Background())
	require.Len(t, events, 3)
	assert.Equal(t, "a", events[0].ID)
	assert.Equal(t, "b", events[1].ID)
	assert.Equal(t, "c", events[2].ID)
}

func TestFlowWindowRecordsMetric(t *testing.T) {
	now := time.Date(2026, 3, 23, 18, 0, 0, 0, time.UTC)
	metrics := newCountingMetrics()
	w := NewFlowWindow(time.Hour, 100, metrics, WithFlowClock(func() time.Time { return now }))

	w.Add(models.FlowEvent{ID: "f-1", Type: models.FlowSweep, Timestamp: now})

	assert.Equal(t, 1, metrics.count("flow_event"))
}
