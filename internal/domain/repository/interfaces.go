package repository

import (
	"context"
	"time"

	"SPXEngine/internal/domain/models"
)

// QuoteStream is a live index-quote feed (WebSocket-backed in production).
type QuoteStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Quote, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// AuditPublisher records evaluation outcomes for offline model training.
type AuditPublisher interface {
	Publish(ctx context.Context, rec *models.EvaluationRecord) error
	PublishBatch(ctx context.Context, recs []*models.EvaluationRecord) error
	Close() error
}

// ReplayStore is the persistence collaborator for historical sessions.
// Rows come back already deserialized; this core never sees raw schema.
type ReplayStore interface {
	Init(ctx context.Context) error
	ListSessions(ctx context.Context, from, to time.Time, limit int) ([]models.ReplaySessionSummary, error)
	GetSession(ctx context.Context, id string) (*models.ReplaySession, error)
	SaveSession(ctx context.Context, s *models.ReplaySession) error
	UpdateChecksum(ctx context.Context, id, checksum string, barCount int) error
	StoreEvaluation(ctx context.Context, rec *models.EvaluationRecord) error
	Health(ctx context.Context) error
	Close() error
}

// Metrics abstracts operational metric recording.
type Metrics interface {
	RecordEvaluation(setupType, trend string)
	RecordTransition(from, to string)
	RecordModelFetch(result string)
	RecordReplayFrame(sessionID string)
	RecordFlowEvent(eventType string)
	RecordQuote(symbol string, price float64)
	RecordLatency(op string, seconds float64)
	RecordError(kind string)
}
