package service

import (
	"context"

	"SPXEngine/internal/domain/models"
)

// ModelSource yields the current confidence model, or nil when no valid
// model is available. Implementations never surface fetch failures to
// scoring callers; degraded availability means a nil model.
type ModelSource interface {
	Current(ctx context.Context) *models.ConfidenceModelWeights
}

// FlowSource yields the rolling window of recent options order-flow
// events for context assembly.
type FlowSource interface {
	Recent(ctx context.Context) []models.FlowEvent
}

// QuoteRegister yields the latest live index quote, if any.
type QuoteRegister interface {
	Latest() (models.Quote, bool)
}
