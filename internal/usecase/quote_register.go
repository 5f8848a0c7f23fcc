package usecase

import (
	"context"
	"fmt"
	"sync"

	"SPXEngine/internal/domain/models"
	domrepo "SPXEngine/internal/domain/repository"
	"SPXEngine/internal/domain/service"
	mid "SPXEngine/internal/middleware"
)

// QuoteRegister keeps the latest live index quote. Evaluation passes
// read it when a request carries no explicit current price.
type QuoteRegister struct {
	metrics domrepo.Metrics

	mu     sync.RWMutex
	latest models.Quote
	has    bool
}

func NewQuoteRegister(metrics domrepo.Metrics) *QuoteRegister {
	return &QuoteRegister{metrics: metrics}
}

var (
	_ service.QuoteRegister = (*QuoteRegister)(nil)
	_ mid.Proc              = (*QuoteRegister)(nil)
)

// Process stores a quote as the latest reading for its symbol.
func (r *QuoteRegister) Process(ctx context.Context, q *models.Quote) error {
	if q == nil {
		return fmt.Errorf("quote is nil")
	}
	r.mu.Lock()
	r.latest = *q
	r.has = true
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.RecordQuote(q.Symbol, q.Price)
	}
	return nil
}

// Latest returns the most recent quote, if any has arrived.
func (r *QuoteRegister) Latest() (models.Quote, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.latest, r.has
}
