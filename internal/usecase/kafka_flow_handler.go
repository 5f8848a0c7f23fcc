package usecase

import (
	"context"
	"encoding/json"
	"time"

	"SPXEngine/internal/domain/models"
	domrepo "SPXEngine/internal/domain/repository"
	pkgkafka "SPXEngine/pkg/kafka"
)

// KafkaFlowHandler consumes options order-flow prints from Kafka and
// feeds the rolling window.
type KafkaFlowHandler struct {
	topic   string
	window  *FlowWindow
	metrics domrepo.Metrics
}

func NewKafkaFlowHandler(topic string, window *FlowWindow, metrics domrepo.Metrics) *KafkaFlowHandler {
	return &KafkaFlowHandler{topic: topic, window: window, metrics: metrics}
}

func (h *KafkaFlowHandler) Topic() string { return h.topic }

// incoming message schema: {id, type, symbol, strike, expiry, size, direction, premium, t}
func (h *KafkaFlowHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		ID        string  `json:"id"`
		Type      string  `json:"type"`
		Symbol    string  `json:"symbol"`
		Strike    float64 `json:"strike"`
		Expiry    string  `json:"expiry"`
		Size      float64 `json:"size"`
		Direction string  `json:"direction"`
		Premium   float64 `json:"premium"`
		T         int64   `json:"t"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("flow_unmarshal")
		return err
	}
	if m.T > 1e11 { // ms
		m.T = m.T / 1000
	}

	h.window.Add(models.FlowEvent{
		ID:        m.ID,
		Type:      models.FlowEventType(m.Type),
		Symbol:    m.Symbol,
		Strike:    m.Strike,
		Expiry:    m.Expiry,
		Size:      m.Size,
		Direction: models.Direction(m.Direction),
		Premium:   m.Premium,
		Timestamp: time.Unix(m.T, 0),
	})
	h.metrics.RecordLatency("flow_ingest_e2e_seconds", time.Since(time.Unix(m.T, 0)).Seconds())
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaFlowHandler)(nil)
