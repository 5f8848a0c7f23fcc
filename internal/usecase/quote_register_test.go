package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SPXEngine/internal/domain/models"
)

func TestQuoteRegisterKeepsLatest(t *testing.T) {
	metrics := newCountingMetrics()
	r := NewQuoteRegister(metrics)

	_, ok := r.Latest()
	assert.False(t, ok)

	now := time.Date(2026, 3, 23, 18, 0, 0, 0, time.UTC)
	require.NoError(t, r.Process(context.Background(), &models.Quote{Symbol: "SPX", Price: 5001, Time: now}))
	require.NoError(t, r.Process(context.Background(), &models.Quote{Symbol: "SPX", Price: 5003, Time: now.Add(time.Second)}))

	q, ok := r.Latest()
	require.True(t, ok)
	assert.Equal(t, 5003.0, q.Price)
	assert.Equal(t, 2, metrics.count("quote"))
}

func TestQuoteRegisterRejectsNil(t *testing.T) {
	r := NewQuoteRegister(nil)
	assert.Error(t, r.Process(context.Background(), nil))
}
