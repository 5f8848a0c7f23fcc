package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SPXEngine/internal/domain/models"
)

type recordingProc struct {
	mu     sync.Mutex
	quotes []*models.Quote
	err    error
}

func (p *recordingProc) Process(ctx context.Context, q *models.Quote) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.quotes = append(p.quotes, q)
	return nil
}

func (p *recordingProc) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.quotes)
}

type nopMetrics struct {
	mu     sync.Mutex
	errors map[string]int
}

func newNopMetrics() *nopMetrics { return &nopMetrics{errors: map[string]int{}} }

func (m *nopMetrics) errCount(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

func (m *nopMetrics) RecordEvaluation(setupType, trend string) {}
func (m *nopMetrics) RecordTransition(from, to string)         {}
func (m *nopMetrics) RecordModelFetch(result string)           {}
func (m *nopMetrics) RecordReplayFrame(sessionID string)       {}
func (m *nopMetrics) RecordFlowEvent(eventType string)         {}
func (m *nopMetrics) RecordQuote(symbol string, price float64) {}
func (m *nopMetrics) RecordLatency(op string, seconds float64) {}
func (m *nopMetrics) RecordError(kind string) {
	m.mu.Lock()
	m.errors[kind]++
	m.mu.Unlock()
}

func validQuote(t time.Time) *models.Quote {
	return &models.Quote{Symbol: "SPX", Price: 5001, Time: t}
}

func TestPipelineForwardsValidQuotes(t *testing.T) {
	proc := &recordingProc{}
	p := NewQuotePipeline(proc, newNopMetrics())

	require.NoError(t, p.Process(context.Background(), validQuote(time.Now())))
	assert.Equal(t, 1, proc.len())
}

func TestPipelineRejectsInvalidQuotes(t *testing.T) {
	proc := &recordingProc{}
	metrics := newNopMetrics()
	p := NewQuotePipeline(proc, metrics)

	now := time.Now()
	assert.Error(t, p.Process(context.Background(), nil))
	assert.Error(t, p.Process(context.Background(), &models.Quote{Price: 5001, Time: now}))
	assert.Error(t, p.Process(context.Background(), &models.Quote{Symbol: "SPX", Time: now}))
	assert.Error(t, p.Process(context.Background(), &models.Quote{Symbol: "SPX", Price: 5001}))

	assert.Equal(t, 0, proc.len())
	assert.Equal(t, 4, metrics.errCount("pipeline_validate"))
}

func TestPipelineThrottlesPerSymbol(t *testing.T) {
	proc := &recordingProc{}
	metrics := newNopMetrics()
	p := NewQuotePipeline(proc, metrics, WithMaxRPS(1))

	now := time.Now()
	require.NoError(t, p.Process(context.Background(), validQuote(now)))
	require.NoError(t, p.Process(context.Background(), validQuote(now)))

	assert.Equal(t, 1, proc.len())
	assert.Equal(t, 1, metrics.errCount("pipeline_throttle"))
}

func TestPipelineBuffersOnDownstreamError(t *testing.T) {
	proc := &recordingProc{err: errors.New("register down")}
	metrics := newNopMetrics()
	p := NewQuotePipeline(proc, metrics, WithBufferSize(4))

	err := p.Process(context.Background(), validQuote(time.Now()))
	assert.Error(t, err)
	assert.Equal(t, 1, metrics.errCount("pipeline_process"))

	// downstream recovers; the flusher drains the buffer
	proc.mu.Lock()
	proc.err = nil
	proc.mu.Unlock()

	p.Start(context.Background())
	defer p.Stop()

	require.Eventually(t, func() bool { return proc.len() == 1 }, time.Second, 10*time.Millisecond)
}
