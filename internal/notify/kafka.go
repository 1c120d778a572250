package notify

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"sentryvision/internal/config"
	"sentryvision/internal/model"
)

// KafkaNotifier publishes each raised alert as a JSON message, keyed by
// alert ID. Publish failures are logged and absorbed; alerting durability is
// the JSON document's job, not the broker's.
type KafkaNotifier struct {
	writer *kafka.Writer
	logger *slog.Logger
}

func NewKafka(cfg config.KafkaConfig, logger *slog.Logger) *KafkaNotifier {
	if !cfg.Enabled {
		if logger != nil {
			logger.Info("kafka notifier disabled")
		}
		return nil
	}
	if logger != nil {
		logger.Info("kafka notifier enabled", "brokers", cfg.Brokers, "topic", cfg.Topic)
	}
	return &KafkaNotifier{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(cfg.Brokers...),
			Topic:    cfg.Topic,
			Balancer: &kafka.LeastBytes{},
		},
		logger: logger,
	}
}

func (n *KafkaNotifier) Publish(ctx context.Context, alert model.Alert) error {
	if n == nil || n.writer == nil {
		return nil
	}
	value, err := json.Marshal(alert)
	if err != nil {
		return err
	}
	err = n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(alert.ID.String()),
		Value: value,
	})
	if err != nil && n.logger != nil {
		n.logger.Warn("kafka publish failed", "alert_id", alert.ID, "err", err)
	}
	return err
}

func (n *KafkaNotifier) Close() error {
	if n == nil || n.writer == nil {
		return nil
	}
	return n.writer.Close()
}
