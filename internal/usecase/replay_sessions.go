package usecase

import (
	"context"
	"fmt"
	"time"

	"SPXEngine/internal/domain/models"
	domrepo "SPXEngine/internal/domain/repository"
	icache "SPXEngine/internal/service/cache"
	"SPXEngine/internal/services/replay"
	applogger "SPXEngine/pkg/logger"
)

const (
	defaultEngineTTL     = 10 * time.Minute
	defaultListLimit     = 50
	defaultWindowMinutes = 30
)

// ReplaySessions serves stored historical sessions and frame playback.
// Built engines are cached per session and window so stepping a cursor
// never re-parses the journal.
type ReplaySessions struct {
	store         domrepo.ReplayStore
	engines       *icache.TTLCache
	engineTTL     time.Duration
	listLimit     int
	windowMinutes int
	metrics       domrepo.Metrics
	log           *applogger.Logger
}

type ReplayOption func(*ReplaySessions)

// WithEngineTTL sets how long a built engine stays cached.
func WithEngineTTL(ttl time.Duration) ReplayOption {
	return func(u *ReplaySessions) {
		if ttl > 0 {
			u.engineTTL = ttl
		}
	}
}

// WithListLimit caps the default session listing size.
func WithListLimit(n int) ReplayOption {
	return func(u *ReplaySessions) {
		if n > 0 {
			u.listLimit = n
		}
	}
}

// WithDefaultWindow sets the frame window used when a request does not
// name one.
func WithDefaultWindow(minutes int) ReplayOption {
	return func(u *ReplaySessions) {
		if minutes > 0 {
			u.windowMinutes = minutes
		}
	}
}

func NewReplaySessions(store domrepo.ReplayStore, metrics domrepo.Metrics, log *applogger.Logger, opts ...ReplayOption) *ReplaySessions {
	if log == nil {
		log = applogger.Nop()
	}
	u := &ReplaySessions{
		store:         store,
		engines:       icache.NewTTLCache(),
		engineTTL:     defaultEngineTTL,
		listLimit:     defaultListLimit,
		windowMinutes: defaultWindowMinutes,
		metrics:       metrics,
		log:           log,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// List returns session summaries for the date range, newest first.
func (u *ReplaySessions) List(ctx context.Context, from, to time.Time, limit int) ([]models.ReplaySessionSummary, error) {
	if limit <= 0 || limit > u.listLimit {
		limit = u.listLimit
	}
	if to.IsZero() {
		to = time.Now()
	}
	if from.IsZero() {
		from = to.AddDate(0, -3, 0)
	}
	return u.store.ListSessions(ctx, from, to, limit)
}

// Get loads a full session, or nil when unknown.
func (u *ReplaySessions) Get(ctx context.Context, id string) (*models.ReplaySession, error) {
	return u.store.GetSession(ctx, id)
}

// Frame projects one playback frame of a stored session.
func (u *ReplaySessions) Frame(ctx context.Context, id string, req models.ReplayFrameRequest) (*models.ReplayFrameResponse, error) {
	windowMinutes := req.WindowMinutes
	if windowMinutes <= 0 {
		windowMinutes = u.windowMinutes
	}

	eng, err := u.engineFor(ctx, id, windowMinutes)
	if err != nil {
		return nil, err
	}
	if eng == nil {
		return nil, nil
	}

	frame := eng.GetFrame(req.Cursor)
	if u.metrics != nil {
		u.metrics.RecordReplayFrame(id)
	}

	return &models.ReplayFrameResponse{
		SessionID:  id,
		Frame:      frame,
		NextCursor: eng.NextCursorIndex(frame.CursorIndex),
		IntervalMs: replay.IntervalMs(req.Speed),
		Complete:   eng.IsComplete(frame.CursorIndex),
		Checksum:   eng.Checksum(),
		WindowBars: eng.WindowBars(),
		BarCount:   eng.BarCount(),
	}, nil
}

// Save persists a session after normalizing its journal. The stored
// checksum always reflects the sanitized bar list.
func (u *ReplaySessions) Save(ctx context.Context, sess *models.ReplaySession) error {
	if sess == nil || sess.ID == "" {
		return fmt.Errorf("session missing id")
	}

	eng := replay.NewEngine(sess.Bars, replay.Options{
		Snapshots: sess.Snapshots,
		Messages:  sess.Messages,
		Trades:    sess.Trades,
	})
	// persist the sanitized journal so stored bars, bar_count and
	// checksum always agree
	sess.Bars = eng.Bars()
	sess.Checksum = eng.Checksum()
	sess.BarCount = eng.BarCount()

	if err := u.store.SaveSession(ctx, sess); err != nil {
		return err
	}
	u.invalidate(sess.ID)
	u.log.Info("replay session saved",
		applogger.String("id", sess.ID),
		applogger.Int("bars", sess.BarCount),
		applogger.String("checksum", sess.Checksum),
	)
	return nil
}

// Rechecksum recomputes and persists the checksum of a stored session.
func (u *ReplaySessions) Rechecksum(ctx context.Context, id string) (string, error) {
	sess, err := u.store.GetSession(ctx, id)
	if err != nil {
		return "", err
	}
	if sess == nil {
		return "", nil
	}
	eng := replay.NewEngine(sess.Bars, replay.Options{})
	if err := u.store.UpdateChecksum(ctx, id, eng.Checksum(), eng.BarCount()); err != nil {
		return "", err
	}
	u.invalidate(id)
	return eng.Checksum(), nil
}

func (u *ReplaySessions) engineFor(ctx context.Context, id string, windowMinutes int) (*replay.Engine, error) {
	key := fmt.Sprintf("%s|w%d", id, windowMinutes)
	if v, ok := u.engines.Get(key); ok {
		return v.(*replay.Engine), nil
	}

	sess, err := u.store.GetSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	if sess == nil {
		return nil, nil
	}

	eng := replay.NewEngine(sess.Bars, replay.Options{
		WindowMinutes: windowMinutes,
		Snapshots:     sess.Snapshots,
		Messages:      sess.Messages,
		Trades:        sess.Trades,
	})
	u.engines.Set(key, eng, u.engineTTL)
	return eng, nil
}

func (u *ReplaySessions) invalidate(id string) {
	// engines are keyed by window size too; TTL covers stale windows,
	// the default window is the hot path worth clearing eagerly
	u.engines.Delete(fmt.Sprintf("%s|w%d", id, u.windowMinutes))
}
