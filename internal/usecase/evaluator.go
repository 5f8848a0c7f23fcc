package usecase

import (
	"context"
	"time"

	"SPXEngine/internal/domain/models"
	domrepo "SPXEngine/internal/domain/repository"
	"SPXEngine/internal/domain/service"
	"SPXEngine/internal/services/calendar"
	"SPXEngine/internal/services/decision"
	"SPXEngine/internal/services/lifecycle"
	applogger "SPXEngine/pkg/logger"
	"SPXEngine/pkg/util"
)

// Evaluator runs one full evaluation pass: calendar gating, lifecycle
// transitions, decision scoring, and audit emission.
type Evaluator struct {
	engine    *decision.Engine
	model     service.ModelSource
	flow      service.FlowSource
	quotes    service.QuoteRegister
	audit     domrepo.AuditPublisher
	store     domrepo.ReplayStore
	metrics   domrepo.Metrics
	log       *applogger.Logger
	overrides *calendar.Overrides
	now       func() time.Time
}

type EvaluatorOption func(*Evaluator)

// WithEvaluatorClock overrides the evaluator's time source.
func WithEvaluatorClock(now func() time.Time) EvaluatorOption {
	return func(u *Evaluator) { u.now = now }
}

// WithCalendarOverrides supplies manual calendar-day overrides.
func WithCalendarOverrides(o *calendar.Overrides) EvaluatorOption {
	return func(u *Evaluator) { u.overrides = o }
}

// WithAudit attaches the evaluation audit sinks. Either may be nil.
func WithAudit(audit domrepo.AuditPublisher, store domrepo.ReplayStore) EvaluatorOption {
	return func(u *Evaluator) {
		u.audit = audit
		u.store = store
	}
}

// WithQuotes attaches the live quote register used as the current-price
// fallback.
func WithQuotes(q service.QuoteRegister) EvaluatorOption {
	return func(u *Evaluator) { u.quotes = q }
}

// WithFlow attaches the rolling flow window used when a request carries
// no flow events of its own.
func WithFlow(f service.FlowSource) EvaluatorOption {
	return func(u *Evaluator) { u.flow = f }
}

func NewEvaluator(engine *decision.Engine, model service.ModelSource, metrics domrepo.Metrics, log *applogger.Logger, opts ...EvaluatorOption) *Evaluator {
	if log == nil {
		log = applogger.Nop()
	}
	u := &Evaluator{
		engine:  engine,
		model:   model,
		metrics: metrics,
		log:     log,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Evaluate scores every setup in the request against one context
// snapshot. Calendar-restricted setups are reported as blocked rather
// than silently dropped.
func (u *Evaluator) Evaluate(ctx context.Context, req models.EvaluateRequest) models.EvaluateResponse {
	start := time.Now()
	now := u.now()

	calCtx := calendar.ContextFor(util.EasternDate(now), u.overrides)
	minutesET := util.MinutesSinceMidnightET(now)

	price := req.CurrentPrice
	if price == 0 && u.quotes != nil {
		if q, ok := u.quotes.Latest(); ok {
			price = q.Price
		}
	}

	mctx := req.Context
	if mctx.Now.IsZero() {
		mctx.Now = now
	}
	if len(mctx.FlowEvents) == 0 && u.flow != nil {
		mctx.FlowEvents = u.flow.Recent(ctx)
	}

	resp := models.EvaluateResponse{
		Setups:      []models.EnrichedSetup{},
		Calendar:    calCtx,
		EvaluatedAt: now,
	}
	if u.model != nil {
		if w := u.model.Current(ctx); w != nil {
			resp.ModelVersion = w.Version
		}
	}

	records := make([]*models.EvaluationRecord, 0, len(req.Setups))
	for _, s := range req.Setups {
		if !models.IsValidSetupType(s.Type) {
			u.log.Warn("unknown setup type skipped", applogger.String("setup_id", s.ID), applogger.String("type", string(s.Type)))
			if u.metrics != nil {
				u.metrics.RecordError("invalid_setup_type")
			}
			continue
		}
		if !calendar.IsSetupTypeAllowed(s.Type, calCtx, minutesET) {
			resp.Blocked = append(resp.Blocked, models.BlockedSetup{
				SetupID: s.ID,
				Type:    s.Type,
				Reason:  blockReason(calCtx, minutesET),
			})
			continue
		}

		statusBefore := s.Status
		s.Status = lifecycle.Transition(s, lifecycle.Input{
			CurrentPrice:   price,
			Now:            now,
			LatestBarClose: req.LatestClose,
			BarConfirmed:   req.BarConfirmed,
		})
		if s.Status != statusBefore && u.metrics != nil {
			u.metrics.RecordTransition(string(statusBefore), string(s.Status))
		}

		es := u.engine.Enrich(ctx, s, mctx)
		es.AdjustedStop = adjustedStop(s, mctx.GEX.NetGex)
		resp.Setups = append(resp.Setups, es)

		records = append(records, &models.EvaluationRecord{
			SetupID:         s.ID,
			SetupType:       s.Type,
			Direction:       s.Direction,
			StatusBefore:    statusBefore,
			StatusAfter:     s.Status,
			AlignmentScore:  es.AlignmentScore,
			Confidence:      es.Confidence,
			ConfidenceTrend: es.ConfidenceTrend,
			PWinCalibrated:  es.PWinCalibrated,
			EVR:             es.EVR,
			ModelVersion:    resp.ModelVersion,
			EvaluatedAt:     now,
		})
	}

	u.emitAudit(ctx, records)

	if u.metrics != nil {
		u.metrics.RecordLatency("evaluate_pass", time.Since(start).Seconds())
	}
	return resp
}

// emitAudit is best effort: a dead broker or store never fails a
// scoring call.
func (u *Evaluator) emitAudit(ctx context.Context, records []*models.EvaluationRecord) {
	if len(records) == 0 {
		return
	}
	if u.audit != nil {
		if err := u.audit.PublishBatch(ctx, records); err != nil {
			u.log.Warn("audit publish failed", applogger.Error(err), applogger.Int("records", len(records)))
			if u.metrics != nil {
				u.metrics.RecordError("audit_publish")
			}
		}
	}
	if u.store != nil {
		for _, rec := range records {
			if err := u.store.StoreEvaluation(ctx, rec); err != nil {
				u.log.Warn("audit store failed", applogger.Error(err), applogger.String("setup_id", rec.SetupID))
				if u.metrics != nil {
					u.metrics.RecordError("audit_store")
				}
				break
			}
		}
	}
}

// Calendar classifies one session date, honoring overrides.
func (u *Evaluator) Calendar(date string) models.CalendarContext {
	return calendar.ContextFor(date, u.overrides)
}

// adjustedStop scales the stop's distance from the entry midpoint by the
// dealer-gamma multiplier.
func adjustedStop(s models.Setup, netGex float64) float64 {
	if s.Stop == 0 {
		return 0
	}
	mid := (s.EntryZone.Low + s.EntryZone.High) / 2
	mult := calendar.GEXAdaptiveStopMultiplier(netGex, s.Type)
	return mid + (s.Stop-mid)*mult
}

func blockReason(calCtx models.CalendarContext, minutesET int) models.StrategyRestriction {
	if calendar.ShouldBlockStrategies(calCtx, minutesET).Blocked {
		return models.RestrictionBlockAllUntil230
	}
	return models.RestrictionOpexFadeOnly
}
