package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"SPXEngine/internal/domain/models"
	domrepo "SPXEngine/internal/domain/repository"
	"SPXEngine/internal/domain/service"
)

const (
	defaultFlowWindow    = 60 * time.Minute
	defaultFlowMaxEvents = 500
)

// FlowWindow keeps a rolling window of recent options order-flow
// events. Events age out by timestamp; the window is also capped by
// count so a burst cannot grow it without bound.
type FlowWindow struct {
	window    time.Duration
	maxEvents int
	metrics   domrepo.Metrics
	now       func() time.Time

	mu     sync.Mutex
	events []models.FlowEvent
}

type FlowWindowOption func(*FlowWindow)

// WithFlowClock overrides the window's time source.
func WithFlowClock(now func() time.Time) FlowWindowOption {
	return func(w *FlowWindow) { w.now = now }
}

func NewFlowWindow(window time.Duration, maxEvents int, metrics domrepo.Metrics, opts ...FlowWindowOption) *FlowWindow {
	if window <= 0 {
		window = defaultFlowWindow
	}
	if maxEvents <= 0 {
		maxEvents = defaultFlowMaxEvents
	}
	w := &FlowWindow{
		window:    window,
		maxEvents: maxEvents,
		metrics:   metrics,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

var _ service.FlowSource = (*FlowWindow)(nil)

// Add records one flow event and prunes anything aged out.
func (w *FlowWindow) Add(ev models.FlowEvent) {
	w.mu.Lock()
	w.events = append(w.events, ev)
	w.pruneLocked(w.now())
	w.mu.Unlock()

	if w.metrics != nil {
		w.metrics.RecordFlowEvent(string(ev.Type))
	}
}

// Recent returns the current window ordered oldest first.
func (w *FlowWindow) Recent(ctx context.Context) []models.FlowEvent {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pruneLocked(w.now())

	out := make([]models.FlowEvent, len(w.events))
	copy(out, w.events)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

func (w *FlowWindow) pruneLocked(now time.Time) {
	cutoff := now.Add(-w.window)
	kept := w.events[:0]
	for _, ev := range w.events {
		if ev.Timestamp.After(cutoff) {
			kept = append(kept, ev)
		}
	}
	if len(kept) > w.maxEvents {
		kept = kept[len(kept)-w.maxEvents:]
	}
	w.events = kept
}
