package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"SPXEngine/internal/domain/models"
	domrepo "SPXEngine/internal/domain/repository"
	pkgch "SPXEngine/pkg/clickhouse"
	applogger "SPXEngine/pkg/logger"
)

var replaySchema = []string{
	`CREATE DATABASE IF NOT EXISTS spxengine`,
	`CREATE TABLE IF NOT EXISTS spxengine.replay_sessions (
        id          String,
        title       String,
        session_day Date,
        bar_count   UInt32,
        checksum    String,
        created_at  DateTime64(3),
        bars        String,
        snapshots   String,
        messages    String,
        trades      String,
        updated_at  DateTime64(3) DEFAULT now64(3)
    ) ENGINE = ReplacingMergeTree(updated_at)
    ORDER BY id`,
	`CREATE TABLE IF NOT EXISTS spxengine.evaluations (
        setup_id         String,
        setup_type       LowCardinality(String),
        direction        LowCardinality(String),
        status_before    LowCardinality(String),
        status_after     LowCardinality(String),
        alignment_score  Float64,
        confidence       Float64,
        confidence_trend LowCardinality(String),
        p_win_calibrated Float64,
        ev_r             Float64,
        model_version    String,
        evaluated_at     DateTime64(3)
    ) ENGINE = MergeTree
    PARTITION BY toYYYYMM(evaluated_at)
    ORDER BY (evaluated_at, setup_id)`,
}

// CHReplayStore persists replay sessions and evaluation audit rows in
// ClickHouse. Session journals are stored as JSON columns since the
// engine only ever loads a session whole.
type CHReplayStore struct {
	db *sql.DB
	ch *pkgch.Client
	l  *applogger.Logger
}

func NewCHReplayStore(ch *pkgch.Client) *CHReplayStore {
	return &CHReplayStore{db: ch.DB(), ch: ch}
}

// SetLogger injects a structured logger.
func (s *CHReplayStore) SetLogger(l *applogger.Logger) { s.l = l }

var _ domrepo.ReplayStore = (*CHReplayStore)(nil)

func (s *CHReplayStore) Init(ctx context.Context) error {
	return s.ch.InitSchema(ctx, replaySchema)
}

func (s *CHReplayStore) ListSessions(ctx context.Context, from, to time.Time, limit int) ([]models.ReplaySessionSummary, error) {
	start := time.Now()
	const q = `
        SELECT id, title, toString(session_day), bar_count, checksum, created_at
        FROM spxengine.replay_sessions FINAL
        WHERE session_day >= toDate(?) AND session_day <= toDate(?)
        ORDER BY session_day DESC, created_at DESC
        LIMIT ?
    `
	rows, err := s.db.QueryContext(ctx, q, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	out := make([]models.ReplaySessionSummary, 0, limit)
	for rows.Next() {
		var sum models.ReplaySessionSummary
		var barCount uint32
		if err := rows.Scan(&sum.ID, &sum.Title, &sum.SessionDay, &barCount, &sum.Checksum, &sum.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan session summary: %w", err)
		}
		sum.BarCount = int(barCount)
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if s.l != nil {
		s.l.Info("clickhouse list_sessions ok",
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

func (s *CHReplayStore) GetSession(ctx context.Context, id string) (*models.ReplaySession, error) {
	const q = `
        SELECT id, title, toString(session_day), bar_count, checksum, created_at,
               bars, snapshots, messages, trades
        FROM spxengine.replay_sessions FINAL
        WHERE id = ?
        LIMIT 1
    `
	row := s.db.QueryRowContext(ctx, q, id)

	var sess models.ReplaySession
	var barCount uint32
	var barsJSON, snapsJSON, msgsJSON, tradesJSON string
	err := row.Scan(&sess.ID, &sess.Title, &sess.SessionDay, &barCount, &sess.Checksum, &sess.CreatedAt,
		&barsJSON, &snapsJSON, &msgsJSON, &tradesJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	sess.BarCount = int(barCount)

	if err := decodeJournal(barsJSON, &sess.Bars); err != nil {
		return nil, fmt.Errorf("decode bars for %s: %w", id, err)
	}
	if err := decodeJournal(snapsJSON, &sess.Snapshots); err != nil {
		return nil, fmt.Errorf("decode snapshots for %s: %w", id, err)
	}
	if err := decodeJournal(msgsJSON, &sess.Messages); err != nil {
		return nil, fmt.Errorf("decode messages for %s: %w", id, err)
	}
	if err := decodeJournal(tradesJSON, &sess.Trades); err != nil {
		return nil, fmt.Errorf("decode trades for %s: %w", id, err)
	}
	return &sess, nil
}

func (s *CHReplayStore) SaveSession(ctx context.Context, sess *models.ReplaySession) error {
	barsJSON, err := json.Marshal(sess.Bars)
	if err != nil {
		return fmt.Errorf("marshal bars: %w", err)
	}
	snapsJSON, err := json.Marshal(sess.Snapshots)
	if err != nil {
		return fmt.Errorf("marshal snapshots: %w", err)
	}
	msgsJSON, err := json.Marshal(sess.Messages)
	if err != nil {
		return fmt.Errorf("marshal messages: %w", err)
	}
	tradesJSON, err := json.Marshal(sess.Trades)
	if err != nil {
		return fmt.Errorf("marshal trades: %w", err)
	}

	createdAt := sess.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	const q = `
        INSERT INTO spxengine.replay_sessions
            (id, title, session_day, bar_count, checksum, created_at, bars, snapshots, messages, trades)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err = s.db.ExecContext(ctx, q,
		sess.ID,
		sess.Title,
		sess.SessionDay,
		uint32(len(sess.Bars)),
		sess.Checksum,
		createdAt,
		string(barsJSON),
		string(snapsJSON),
		string(msgsJSON),
		string(tradesJSON),
	)
	if err != nil {
		return fmt.Errorf("save session %s: %w", sess.ID, err)
	}
	if s.l != nil {
		s.l.Info("clickhouse save_session ok",
			applogger.String("id", sess.ID),
			applogger.Int("bars", len(sess.Bars)),
		)
	}
	return nil
}

// UpdateChecksum issues a lightweight mutation. The ReplacingMergeTree
// dedups by updated_at so re-saving a session also works; this avoids
// rewriting the journal payload for a metadata-only change.
func (s *CHReplayStore) UpdateChecksum(ctx context.Context, id, checksum string, barCount int) error {
	const q = `
        ALTER TABLE spxengine.replay_sessions
        UPDATE checksum = ?, bar_count = ?, updated_at = now64(3)
        WHERE id = ?
    `
	if _, err := s.db.ExecContext(ctx, q, checksum, uint32(barCount), id); err != nil {
		return fmt.Errorf("update checksum for %s: %w", id, err)
	}
	return nil
}

func (s *CHReplayStore) StoreEvaluation(ctx context.Context, rec *models.EvaluationRecord) error {
	const q = `
        INSERT INTO spxengine.evaluations
            (setup_id, setup_type, direction, status_before, status_after,
             alignment_score, confidence, confidence_trend, p_win_calibrated, ev_r,
             model_version, evaluated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err := s.db.ExecContext(ctx, q,
		rec.SetupID,
		string(rec.SetupType),
		string(rec.Direction),
		string(rec.StatusBefore),
		string(rec.StatusAfter),
		rec.AlignmentScore,
		rec.Confidence,
		string(rec.ConfidenceTrend),
		rec.PWinCalibrated,
		rec.EVR,
		rec.ModelVersion,
		rec.EvaluatedAt,
	)
	if err != nil {
		return fmt.Errorf("store evaluation %s: %w", rec.SetupID, err)
	}
	return nil
}

func (s *CHReplayStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CHReplayStore) Close() error {
	return nil // connection owned by pkg client
}

func decodeJournal(raw string, dest interface{}) error {
	if raw == "" || raw == "null" {
		return nil
	}
	return json.Unmarshal([]byte(raw), dest)
}
