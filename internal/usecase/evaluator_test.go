package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SPXEngine/internal/domain/models"
	"SPXEngine/internal/services/calendar"
	"SPXEngine/internal/services/decision"
	"SPXEngine/pkg/logger"
)

type countingMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{counts: map[string]int{}}
}

func (m *countingMetrics) bump(key string) {
	m.mu.Lock()
	m.counts[key]++
	m.mu.Unlock()
}

func (m *countingMetrics) count(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[key]
}

func (m *countingMetrics) RecordEvaluation(setupType, trend string) { m.bump("evaluation") }
func (m *countingMetrics) RecordTransition(from, to string) {
	m.bump("transition:" + from + ">" + to)
}
func (m *countingMetrics) RecordModelFetch(result string)           { m.bump("model_fetch:" + result) }
func (m *countingMetrics) RecordReplayFrame(sessionID string)       { m.bump("replay_frame") }
func (m *countingMetrics) RecordFlowEvent(eventType string)         { m.bump("flow_event") }
func (m *countingMetrics) RecordQuote(symbol string, price float64) { m.bump("quote") }
func (m *countingMetrics) RecordLatency(op string, seconds float64) { m.bump("latency:" + op) }
func (m *countingMetrics) RecordError(kind string)                  { m.bump("error:" + kind) }

type capturingAudit struct {
	batches [][]*models.EvaluationRecord
	err     error
}

func (a *capturingAudit) Publish(ctx context.Context, rec *models.EvaluationRecord) error {
	return a.PublishBatch(ctx, []*models.EvaluationRecord{rec})
}

func (a *capturingAudit) PublishBatch(ctx context.Context, recs []*models.EvaluationRecord) error {
	if a.err != nil {
		return a.err
	}
	a.batches = append(a.batches, recs)
	return nil
}

func (a *capturingAudit) Close() error { return nil }

type fakeReplayStore struct {
	sessions map[string]*models.ReplaySession
	evals    []*models.EvaluationRecord
	evalErr  error
	saveErr  error
	getCalls int

	listFrom  time.Time
	listTo    time.Time
	listLimit int

	checksumID string
	checksum   string
	barCount   int
}

func newFakeReplayStore() *fakeReplayStore {
	return &fakeReplayStore{sessions: map[string]*models.ReplaySession{}}
}

func (s *fakeReplayStore) Init(ctx context.Context) error { return nil }

func (s *fakeReplayStore) ListSessions(ctx context.Context, from, to time.Time, limit int) ([]models.ReplaySessionSummary, error) {
	s.listFrom, s.listTo, s.listLimit = from, to, limit
	out := make([]models.ReplaySessionSummary, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess.ReplaySessionSummary)
	}
	return out, nil
}

func (s *fakeReplayStore) GetSession(ctx context.Context, id string) (*models.ReplaySession, error) {
	s.getCalls++
	return s.sessions[id], nil
}

func (s *fakeReplayStore) SaveSession(ctx context.Context, sess *models.ReplaySession) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.sessions[sess.ID] = sess
	return nil
}

func (s *fakeReplayStore) UpdateChecksum(ctx context.Context, id, checksum string, barCount int) error {
	s.checksumID, s.checksum, s.barCount = id, checksum, barCount
	return nil
}

func (s *fakeReplayStore) StoreEvaluation(ctx context.Context, rec *models.EvaluationRecord) error {
	if s.evalErr != nil {
		return s.evalErr
	}
	s.evals = append(s.evals, rec)
	return nil
}

func (s *fakeReplayStore) Health(ctx context.Context) error { return nil }
func (s *fakeReplayStore) Close() error                     { return nil }

type staticModel struct {
	weights *models.ConfidenceModelWeights
}

func (m *staticModel) Current(ctx context.Context) *models.ConfidenceModelWeights {
	return m.weights
}

type staticQuotes struct {
	quote models.Quote
	has   bool
}

func (q *staticQuotes) Latest() (models.Quote, bool) { return q.quote, q.has }

func readySetup(id string, t models.SetupType, createdAt time.Time) models.Setup {
	return models.Setup{
		ID:              id,
		Type:            t,
		Direction:       models.Bullish,
		EntryZone:       models.PriceZone{Low: 5000, High: 5004},
		Stop:            4994,
		Target1:         models.Target{Price: 5020, Label: "T1"},
		ConfluenceScore: 4.0,
		Regime:          models.RegimeTrending,
		Status:          models.StatusReady,
		Probability:     0.6,
		CreatedAt:       createdAt.Format(time.RFC3339),
	}
}

func evalContext(now time.Time) models.Context {
	return models.Context{
		Regime: models.RegimeTrending,
		Prediction: models.Prediction{
			Direction:   models.Bullish,
			Probability: 0.65,
			Confidence:  0.7,
		},
		Basis: models.BasisRising,
		GEX:   models.GEXSnapshot{NetGex: -120000, CallWall: 5050, PutWall: 4950},
		Now:   now,
	}
}

func newTestEvaluator(t *testing.T, now time.Time, opts ...EvaluatorOption) (*Evaluator, *countingMetrics) {
	t.Helper()
	metrics := newCountingMetrics()
	engine := decision.NewEngine(logger.Nop())
	opts = append([]EvaluatorOption{WithEvaluatorClock(func() time.Time { return now })}, opts...)
	u := NewEvaluator(engine, &staticModel{weights: &models.ConfidenceModelWeights{
		Version:   "v3",
		Intercept: 0.1,
		Features:  map[string]float64{"confluence_score": 0.2},
	}}, metrics, logger.Nop(), opts...)
	return u, metrics
}

func TestEvaluateScoresAndAudits(t *testing.T) {
	// an ordinary Monday, no FOMC, no OPEX
	now := time.Date(2026, 3, 23, 18, 0, 0, 0, time.UTC)
	audit := &capturingAudit{}
	store := newFakeReplayStore()
	u, _ := newTestEvaluator(t, now, WithAudit(audit, store))

	resp := u.Evaluate(context.Background(), models.EvaluateRequest{
		Setups:       []models.Setup{readySetup("s-1", models.SetupTrendContinuation, now.Add(-2*time.Minute))},
		Context:      evalContext(now),
		CurrentPrice: 5010,
	})

	require.Len(t, resp.Setups, 1)
	assert.Empty(t, resp.Blocked)
	assert.Equal(t, "v3", resp.ModelVersion)
	assert.Equal(t, now, resp.EvaluatedAt)

	es := resp.Setups[0]
	assert.GreaterOrEqual(t, es.Confidence, 0.0)
	assert.LessOrEqual(t, es.Confidence, 1.0)

	// negative net gamma widens the stop (midpoint 5002, stop 4994, x1.10)
	assert.InDelta(t, 5002-8*1.10, es.AdjustedStop, 1e-9)

	require.Len(t, audit.batches, 1)
	require.Len(t, audit.batches[0], 1)
	assert.Equal(t, "s-1", audit.batches[0][0].SetupID)
	assert.Equal(t, "v3", audit.batches[0][0].ModelVersion)
	require.Len(t, store.evals, 1)
}

func TestEvaluateBlocksAllBeforeFOMCAnnouncement(t *testing.T) {
	// 2026-01-29 is an FOMC announcement day; 15:00 UTC is 10:00 ET
	now := time.Date(2026, 1, 29, 15, 0, 0, 0, time.UTC)
	audit := &capturingAudit{}
	u, _ := newTestEvaluator(t, now, WithAudit(audit, nil))

	resp := u.Evaluate(context.Background(), models.EvaluateRequest{
		Setups:       []models.Setup{readySetup("s-1", models.SetupTrendContinuation, now.Add(-2*time.Minute))},
		Context:      evalContext(now),
		CurrentPrice: 5010,
	})

	assert.Empty(t, resp.Setups)
	require.Len(t, resp.Blocked, 1)
	assert.Equal(t, "s-1", resp.Blocked[0].SetupID)
	assert.Equal(t, models.RestrictionBlockAllUntil230, resp.Blocked[0].Reason)
	assert.True(t, resp.Calendar.IsFOMCAnnouncement)
	assert.Empty(t, audit.batches)
}

func TestEvaluateOpexRestrictsToFades(t *testing.T) {
	// 2026-06-19 is the third Friday; 16:00 UTC is noon ET
	now := time.Date(2026, 6, 19, 16, 0, 0, 0, time.UTC)
	u, _ := newTestEvaluator(t, now)

	resp := u.Evaluate(context.Background(), models.EvaluateRequest{
		Setups: []models.Setup{
			readySetup("s-trend", models.SetupTrendContinuation, now.Add(-2*time.Minute)),
			readySetup("s-fade", models.SetupFadeAtWall, now.Add(-2*time.Minute)),
		},
		Context:      evalContext(now),
		CurrentPrice: 5010,
	})

	require.Len(t, resp.Setups, 1)
	assert.Equal(t, "s-fade", resp.Setups[0].ID)
	require.Len(t, resp.Blocked, 1)
	assert.Equal(t, "s-trend", resp.Blocked[0].SetupID)
	assert.Equal(t, models.RestrictionOpexFadeOnly, resp.Blocked[0].Reason)
	assert.True(t, resp.Calendar.IsOPEXFriday)
}

func TestEvaluateFallsBackToLiveQuote(t *testing.T) {
	now := time.Date(2026, 3, 23, 18, 0, 0, 0, time.UTC)
	quotes := &staticQuotes{quote: models.Quote{Symbol: "SPX", Price: 5002, Time: now}, has: true}
	u, metrics := newTestEvaluator(t, now, WithQuotes(quotes))

	resp := u.Evaluate(context.Background(), models.EvaluateRequest{
		Setups:  []models.Setup{readySetup("s-1", models.SetupTrendContinuation, now.Add(-2*time.Minute))},
		Context: evalContext(now),
	})

	// 5002 sits inside the entry zone, so the ready setup triggers
	require.Len(t, resp.Setups, 1)
	assert.Equal(t, models.StatusTriggered, resp.Setups[0].Status)
	assert.Equal(t, 1, metrics.count("transition:ready>triggered"))
}

func TestEvaluateFillsFlowFromWindow(t *testing.T) {
	now := time.Date(2026, 3, 23, 18, 0, 0, 0, time.UTC)
	window := NewFlowWindow(time.Hour, 100, nil, WithFlowClock(func() time.Time { return now }))
	window.Add(models.FlowEvent{
		ID:        "f-1",
		Type:      models.FlowSweep,
		Direction: models.Bullish,
		Premium:   250000,
		Size:      300,
		Timestamp: now.Add(-5 * time.Minute),
	})
	u, _ := newTestEvaluator(t, now, WithFlow(window))

	resp := u.Evaluate(context.Background(), models.EvaluateRequest{
		Setups:       []models.Setup{readySetup("s-1", models.SetupTrendContinuation, now.Add(-2*time.Minute))},
		Context:      evalContext(now),
		CurrentPrice: 5010,
	})

	require.Len(t, resp.Setups, 1)
}

func TestEvaluateSkipsUnknownSetupType(t *testing.T) {
	now := time.Date(2026, 3, 23, 18, 0, 0, 0, time.UTC)
	u, metrics := newTestEvaluator(t, now)

	bogus := readySetup("s-bad", models.SetupType("straddle"), now.Add(-2*time.Minute))
	resp := u.Evaluate(context.Background(), models.EvaluateRequest{
		Setups:       []models.Setup{bogus},
		Context:      evalContext(now),
		CurrentPrice: 5010,
	})

	assert.Empty(t, resp.Setups)
	assert.Empty(t, resp.Blocked)
	assert.Equal(t, 1, metrics.count("error:invalid_setup_type"))
}

func TestEvaluateAuditFailureDoesNotFailScoring(t *testing.T) {
	now := time.Date(2026, 3, 23, 18, 0, 0, 0, time.UTC)
	audit := &capturingAudit{err: errors.New("broker down")}
	store := newFakeReplayStore()
	store.evalErr = errors.New("store down")
	u, metrics := newTestEvaluator(t, now, WithAudit(audit, store))

	resp := u.Evaluate(context.Background(), models.EvaluateRequest{
		Setups:       []models.Setup{readySetup("s-1", models.SetupTrendContinuation, now.Add(-2*time.Minute))},
		Context:      evalContext(now),
		CurrentPrice: 5010,
	})

	require.Len(t, resp.Setups, 1)
	assert.Equal(t, 1, metrics.count("error:audit_publish"))
	assert.Equal(t, 1, metrics.count("error:audit_store"))
}

func TestCalendarHonorsOverrides(t *testing.T) {
	now := time.Date(2026, 3, 23, 18, 0, 0, 0, time.UTC)
	overrides := &calendar.Overrides{
		FOMCMeetingDays:      map[string]bool{"2026-03-23": true},
		FOMCAnnouncementDays: map[string]bool{"2026-03-23": true},
	}
	u, _ := newTestEvaluator(t, now, WithCalendarOverrides(overrides))

	ctx := u.Calendar("2026-03-23")
	assert.True(t, ctx.IsFOMCAnnouncement)
}
