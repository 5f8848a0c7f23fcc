package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	evaluations  *prometheus.CounterVec
	transitions  *prometheus.CounterVec
	modelFetches *prometheus.CounterVec
	replayFrames *prometheus.CounterVec
	flowEvents   *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	lastQuote    *prometheus.GaugeVec
	latency      *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		evaluations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spxengine_evaluations_total",
				Help: "Total setup evaluations by type and confidence trend",
			},
			[]string{"setup_type", "trend"},
		),
		transitions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spxengine_status_transitions_total",
				Help: "Total setup lifecycle transitions",
			},
			[]string{"from", "to"},
		),
		modelFetches: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spxengine_model_fetches_total",
				Help: "Confidence model fetch attempts by result",
			},
			[]string{"result"},
		),
		replayFrames: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spxengine_replay_frames_total",
				Help: "Replay frames served by session",
			},
			[]string{"session_id"},
		),
		flowEvents: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spxengine_flow_events_total",
				Help: "Options order-flow events ingested by type",
			},
			[]string{"type"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spxengine_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastQuote: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "spxengine_last_quote",
				Help: "Last recorded quote price for a symbol",
			},
			[]string{"symbol"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "spxengine_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordEvaluation records one decision-engine evaluation.
func (r *Recorder) RecordEvaluation(setupType, trend string) {
	r.evaluations.WithLabelValues(setupType, trend).Inc()
}

// RecordTransition records a lifecycle status change.
func (r *Recorder) RecordTransition(from, to string) {
	r.transitions.WithLabelValues(from, to).Inc()
}

// RecordModelFetch records a confidence-model fetch attempt.
func (r *Recorder) RecordModelFetch(result string) {
	r.modelFetches.WithLabelValues(result).Inc()
}

// RecordReplayFrame records one served replay frame.
func (r *Recorder) RecordReplayFrame(sessionID string) {
	r.replayFrames.WithLabelValues(sessionID).Inc()
}

// RecordFlowEvent records an ingested order-flow event.
func (r *Recorder) RecordFlowEvent(eventType string) {
	r.flowEvents.WithLabelValues(eventType).Inc()
}

// RecordQuote records the last quote price for a symbol.
func (r *Recorder) RecordQuote(symbol string, price float64) {
	r.lastQuote.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}
