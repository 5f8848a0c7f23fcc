package usecase

import (
	"context"
	"fmt"

	"SPXEngine/internal/domain/models"
	"SPXEngine/pkg/queue"
)

// ReplayIngestType is the queue message type for session ingestion.
const ReplayIngestType = "replay.session.ingest"

// ReplayIngestJob persists uploaded replay sessions from the work
// queue, keeping journal normalization and checksumming off the HTTP
// request path.
type ReplayIngestJob struct {
	sessions *ReplaySessions
}

func NewReplayIngestJob(sessions *ReplaySessions) *ReplayIngestJob {
	return &ReplayIngestJob{sessions: sessions}
}

var _ queue.Job = (*ReplayIngestJob)(nil)

func (j *ReplayIngestJob) Name() string { return "replay-session-ingest" }

func (j *ReplayIngestJob) Type() string { return ReplayIngestType }

func (j *ReplayIngestJob) Handle(ctx context.Context, payload interface{}) error {
	sess, err := queue.ParsePayload[models.ReplaySession](payload)
	if err != nil {
		return fmt.Errorf("parse replay session: %w", err)
	}
	return j.sessions.Save(ctx, sess)
}
