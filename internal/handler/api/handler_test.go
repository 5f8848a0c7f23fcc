package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SPXEngine/internal/domain/models"
	"SPXEngine/internal/services/decision"
	"SPXEngine/internal/services/model"
	"SPXEngine/internal/usecase"
	"SPXEngine/pkg/logger"
)

type fakeReplayStore struct {
	sessions map[string]*models.ReplaySession
}

func newFakeReplayStore() *fakeReplayStore {
	return &fakeReplayStore{sessions: map[string]*models.ReplaySession{}}
}

func (s *fakeReplayStore) Init(ctx context.Context) error { return nil }

func (s *fakeReplayStore) ListSessions(ctx context.Context, from, to time.Time, limit int) ([]models.ReplaySessionSummary, error) {
	out := make([]models.ReplaySessionSummary, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess.ReplaySessionSummary)
	}
	return out, nil
}

func (s *fakeReplayStore) GetSession(ctx context.Context, id string) (*models.ReplaySession, error) {
	return s.sessions[id], nil
}

func (s *fakeReplayStore) SaveSession(ctx context.Context, sess *models.ReplaySession) error {
	s.sessions[sess.ID] = sess
	return nil
}

func (s *fakeReplayStore) UpdateChecksum(ctx context.Context, id, checksum string, barCount int) error {
	return nil
}

func (s *fakeReplayStore) StoreEvaluation(ctx context.Context, rec *models.EvaluationRecord) error {
	return nil
}

func (s *fakeReplayStore) Health(ctx context.Context) error { return nil }
func (s *fakeReplayStore) Close() error                     { return nil }

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func weightsFetch(ctx context.Context, url string) (*model.FetchResult, error) {
	return &model.FetchResult{
		Body:       []byte(`{"version":"v1","intercept":0.1,"features":{"confluence_score":0.2}}`),
		StatusCode: http.StatusOK,
	}, nil
}

func newTestHandler(t *testing.T, store *fakeReplayStore, opts ...HandlerOption) *echo.Echo {
	t.Helper()

	loader := model.NewLoader(model.Config{StorageBaseURL: "https://storage.test"}, weightsFetch, logger.Nop())
	engine := decision.NewEngine(logger.Nop(), decision.WithModelSource(loader))
	clock := func() time.Time { return time.Date(2026, 3, 23, 18, 0, 0, 0, time.UTC) }
	evaluator := usecase.NewEvaluator(engine, loader, nil, logger.Nop(), usecase.WithEvaluatorClock(clock))
	sessions := usecase.NewReplaySessions(store, nil, logger.Nop())

	h := NewHandler(logger.Nop(), evaluator, sessions, loader, opts...)

	e := echo.New()
	h.RegisterRoutes(e)
	return e
}

func doJSON(e *echo.Echo, method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestEvaluateEndpoint(t *testing.T) {
	e := newTestHandler(t, newFakeReplayStore())

	body := `{
		"setups": [{
			"id": "s-1",
			"type": "trend_continuation",
			"direction": "bullish",
			"entryZone": {"low": 5000, "high": 5004},
			"stop": 4994,
			"target1": {"price": 5020, "label": "T1"},
			"confluenceScore": 4,
			"regime": "trending",
			"status": "ready"
		}],
		"context": {"regime": "trending"},
		"currentPrice": 5010
	}`
	rec := doJSON(e, http.MethodPost, "/api/evaluate", body, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	require.Equal(t, http.StatusOK, env.Status)

	var resp models.EvaluateResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	require.Len(t, resp.Setups, 1)
	assert.Equal(t, "s-1", resp.Setups[0].ID)
}

func TestEvaluateEndpointRejectsEmptyBatch(t *testing.T) {
	e := newTestHandler(t, newFakeReplayStore())

	rec := doJSON(e, http.MethodPost, "/api/evaluate", `{"setups": []}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, http.StatusBadRequest, env.Status)
}

func TestCalendarEndpoint(t *testing.T) {
	e := newTestHandler(t, newFakeReplayStore())

	rec := doJSON(e, http.MethodGet, "/api/calendar?date=2026-01-29", "", nil)

	env := decodeEnvelope(t, rec)
	require.Equal(t, http.StatusOK, env.Status)

	var cal models.CalendarContext
	require.NoError(t, json.Unmarshal(env.Data, &cal))
	assert.True(t, cal.IsFOMCAnnouncement)
}

func TestCalendarEndpointRejectsBadDate(t *testing.T) {
	e := newTestHandler(t, newFakeReplayStore())

	rec := doJSON(e, http.MethodGet, "/api/calendar?date=not-a-date", "", nil)

	env := decodeEnvelope(t, rec)
	assert.Equal(t, http.StatusBadRequest, env.Status)
}

func TestModelStatusEndpoint(t *testing.T) {
	e := newTestHandler(t, newFakeReplayStore())

	rec := doJSON(e, http.MethodGet, "/api/model/status", "", nil)

	env := decodeEnvelope(t, rec)
	require.Equal(t, http.StatusOK, env.Status)

	var status model.Status
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.Empty(t, status.Version)
}

func TestModelRefreshRequiresAdmin(t *testing.T) {
	e := newTestHandler(t, newFakeReplayStore(), WithAdminToken("secret"))

	rec := doJSON(e, http.MethodPost, "/api/model/refresh", "", nil)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, http.StatusForbidden, env.Status)

	rec = doJSON(e, http.MethodPost, "/api/model/refresh?force=true", "", map[string]string{"X-Admin-Token": "secret"})
	env = decodeEnvelope(t, rec)
	require.Equal(t, http.StatusOK, env.Status)

	var status model.Status
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.Equal(t, "v1", status.Version)
}

func TestModelRefreshDisabledWithoutToken(t *testing.T) {
	e := newTestHandler(t, newFakeReplayStore())

	rec := doJSON(e, http.MethodPost, "/api/model/refresh", "", map[string]string{"X-Admin-Token": "anything"})
	env := decodeEnvelope(t, rec)
	assert.Equal(t, http.StatusForbidden, env.Status)
}

func TestGetSessionNotFound(t *testing.T) {
	e := newTestHandler(t, newFakeReplayStore(), WithAdminToken("secret"))

	rec := doJSON(e, http.MethodGet, "/api/replay/sessions/missing", "", map[string]string{"X-Admin-Token": "secret"})

	env := decodeEnvelope(t, rec)
	assert.Equal(t, http.StatusNotFound, env.Status)
}

func TestReplayBrowseRequiresAdmin(t *testing.T) {
	store := newFakeReplayStore()
	store.sessions["sess-1"] = &models.ReplaySession{
		ReplaySessionSummary: models.ReplaySessionSummary{ID: "sess-1"},
	}
	e := newTestHandler(t, store, WithAdminToken("secret"))

	for _, target := range []string{
		"/api/replay/sessions",
		"/api/replay/sessions/sess-1",
		"/api/replay/sessions/sess-1/frame?cursor=0",
	} {
		rec := doJSON(e, http.MethodGet, target, "", nil)
		env := decodeEnvelope(t, rec)
		assert.Equal(t, http.StatusForbidden, env.Status, target)
	}
}

func TestUploadAndReplaySession(t *testing.T) {
	store := newFakeReplayStore()
	e := newTestHandler(t, store, WithAdminToken("secret"))

	body := `{
		"id": "sess-1",
		"title": "morning session",
		"sessionDay": "2026-03-23",
		"bars": [
			{"time": "2026-03-23T14:30:00Z", "open": 5000, "high": 5002, "low": 4999, "close": 5001, "volume": 1000},
			{"time": "2026-03-23T14:31:00Z", "open": 5001, "high": 5003, "low": 5000, "close": 5002, "volume": 900}
		]
	}`
	rec := doJSON(e, http.MethodPost, "/api/replay/sessions", body, map[string]string{"X-Admin-Token": "secret"})

	env := decodeEnvelope(t, rec)
	require.Equal(t, http.StatusCreated, env.Status)

	var created map[string]string
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "stored", created["status"])
	assert.NotEmpty(t, created["checksum"])

	rec = doJSON(e, http.MethodGet, "/api/replay/sessions/sess-1/frame?cursor=0&speed=1", "", map[string]string{"X-Admin-Token": "secret"})
	env = decodeEnvelope(t, rec)
	require.Equal(t, http.StatusOK, env.Status)

	var frame models.ReplayFrameResponse
	require.NoError(t, json.Unmarshal(env.Data, &frame))
	assert.Equal(t, "sess-1", frame.SessionID)
	assert.Equal(t, 2, frame.BarCount)
	assert.Equal(t, created["checksum"], frame.Checksum)
}

func TestUploadSessionRequiresAdmin(t *testing.T) {
	e := newTestHandler(t, newFakeReplayStore(), WithAdminToken("secret"))

	rec := doJSON(e, http.MethodPost, "/api/replay/sessions", `{"id":"sess-1"}`, nil)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, http.StatusForbidden, env.Status)
}

func TestUploadSessionRequiresID(t *testing.T) {
	e := newTestHandler(t, newFakeReplayStore(), WithAdminToken("secret"))

	rec := doJSON(e, http.MethodPost, "/api/replay/sessions", `{"title":"no id"}`, map[string]string{"X-Admin-Token": "secret"})
	env := decodeEnvelope(t, rec)
	assert.Equal(t, http.StatusBadRequest, env.Status)
}

func TestRechecksumSessionEndpoint(t *testing.T) {
	store := newFakeReplayStore()
	store.sessions["sess-1"] = &models.ReplaySession{
		ReplaySessionSummary: models.ReplaySessionSummary{ID: "sess-1"},
		Bars: []models.Bar{
			{Time: time.Date(2026, 3, 23, 14, 30, 0, 0, time.UTC), Open: 5000, High: 5002, Low: 4999, Close: 5001, Volume: 1000},
		},
	}
	e := newTestHandler(t, store, WithAdminToken("secret"))

	rec := doJSON(e, http.MethodPost, "/api/replay/sessions/sess-1/rechecksum", "", nil)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, http.StatusForbidden, env.Status)

	rec = doJSON(e, http.MethodPost, "/api/replay/sessions/sess-1/rechecksum", "", map[string]string{"X-Admin-Token": "secret"})
	env = decodeEnvelope(t, rec)
	require.Equal(t, http.StatusOK, env.Status)

	var out map[string]string
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.NotEmpty(t, out["checksum"])

	rec = doJSON(e, http.MethodPost, "/api/replay/sessions/missing/rechecksum", "", map[string]string{"X-Admin-Token": "secret"})
	env = decodeEnvelope(t, rec)
	assert.Equal(t, http.StatusNotFound, env.Status)
}

func TestListSessionsEndpoint(t *testing.T) {
	store := newFakeReplayStore()
	store.sessions["sess-1"] = &models.ReplaySession{
		ReplaySessionSummary: models.ReplaySessionSummary{ID: "sess-1", Title: "morning session"},
	}
	e := newTestHandler(t, store, WithAdminToken("secret"))

	rec := doJSON(e, http.MethodGet, "/api/replay/sessions?limit=10", "", map[string]string{"X-Admin-Token": "secret"})

	env := decodeEnvelope(t, rec)
	require.Equal(t, http.StatusOK, env.Status)

	var list struct {
		Rows  []models.ReplaySessionSummary `json:"rows"`
		Total int64                         `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list.Rows, 1)
	assert.Equal(t, int64(1), list.Total)
}
