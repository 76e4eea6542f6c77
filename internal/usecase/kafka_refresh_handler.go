package usecase

import (
	"context"
	"encoding/json"
	"errors"

	"MarketPulse/internal/domain/models"
	drepo "MarketPulse/internal/domain/repository"
	xhttp "MarketPulse/pkg/http"
	pkgkafka "MarketPulse/pkg/kafka"
	applogger "MarketPulse/pkg/logger"
)

// KafkaRefreshHandler consumes refresh commands published by other services.
// Bad payloads and busy schedulers are logged and acknowledged; retrying
// them would only repeat the same answer.
type KafkaRefreshHandler struct {
	topic      string
	dispatcher *RefreshDispatcher
	metrics    drepo.Metrics
	log        *applogger.Logger
}

func NewKafkaRefreshHandler(topic string, dispatcher *RefreshDispatcher, metrics drepo.Metrics, l *applogger.Logger) *KafkaRefreshHandler {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if l == nil {
		l = applogger.NewNop()
	}
	return &KafkaRefreshHandler{topic: topic, dispatcher: dispatcher, metrics: metrics, log: l}
}

func (h *KafkaRefreshHandler) Topic() string { return h.topic }

// incoming message schema: {cache, asset}
func (h *KafkaRefreshHandler) Handle(ctx context.Context, b []byte) error {
	var cmd models.RefreshCommand
	if err := json.Unmarshal(b, &cmd); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		h.log.Warn("refresh_cmd.bad_payload", applogger.Error(err))
		return nil
	}
	if verr := xhttp.DefaultAndValidate(ctx, &cmd); verr != nil {
		h.metrics.RecordError("consumer_validate")
		h.log.Warn("refresh_cmd.invalid", applogger.Any("errors", verr))
		return nil
	}

	err := h.dispatcher.Dispatch(ctx, cmd)
	switch {
	case err == nil:
		h.log.Info("refresh_cmd.dispatched", applogger.String("cache", cmd.Cache), applogger.String("asset", cmd.Asset))
	case errors.Is(err, models.ErrRefreshInProgress):
		h.log.Info("refresh_cmd.dropped_busy", applogger.String("cache", cmd.Cache), applogger.String("asset", cmd.Asset))
	default:
		h.metrics.RecordError("consumer_dispatch")
		h.log.Warn("refresh_cmd.failed", applogger.String("cache", cmd.Cache), applogger.Error(err))
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaRefreshHandler)(nil)
