package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SPXEngine/internal/domain/models"
)

func TestFlowHandlerParsesPrint(t *testing.T) {
	now := time.Date(2026, 3, 23, 18, 0, 0, 0, time.UTC)
	window := NewFlowWindow(time.Hour, 100, nil, WithFlowClock(func() time.Time { return now }))
	h := NewKafkaFlowHandler("spx.options.flow", window, newCountingMetrics())

	payload := []byte(`{"id":"f-1","type":"sweep","symbol":"SPXW","strike":5000,"expiry":"2026-03-23","size":300,"direction":"bullish","premium":250000,"t":` +
		"1774288500" + `}`)
	require.NoError(t, h.Handle(context.Background(), payload))

	events := window.Recent(context.Background())
	require.Len(t, events, 1)
	assert.Equal(t, models.FlowSweep, events[0].Type)
	assert.Equal(t, models.Bullish, events[0].Direction)
	assert.Equal(t, int64(1774288500), events[0].Timestamp.Unix())
}

func TestFlowHandlerNormalizesMillisecondTimestamps(t *testing.T) {
	now := time.Date(2026, 3, 23, 18, 0, 0, 0, time.UTC)
	window := NewFlowWindow(time.Hour, 100, nil, WithFlowClock(func() time.Time { return now }))
	h := NewKafkaFlowHandler("spx.options.flow", window, newCountingMetrics())

	payload := []byte(`{"id":"f-1","type":"block","direction":"bearish","t":1774288500000}`)
	require.NoError(t, h.Handle(context.Background(), payload))

	events := window.Recent(context.Background())
	require.Len(t, events, 1)
	assert.Equal(t, int64(1774288500), events[0].Timestamp.Unix())
}

func TestFlowHandlerRejectsMalformedPayload(t *testing.T) {
	window := NewFlowWindow(time.Hour, 100, nil)
	metrics := newCountingMetrics()
	h := NewKafkaFlowHandler("spx.options.flow", window, metrics)

	assert.Error(t, h.Handle(context.Background(), []byte("not json")))
	assert.Equal(t, 1, metrics.count("error:flow_unmarshal"))
}

func TestFlowHandlerTopic(t *testing.T) {
	h := NewKafkaFlowHandler("spx.options.flow", nil, nil)
	assert.Equal(t, "spx.options.flow", h.Topic())
}
