package sink

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"media-vault/contract"
	"media-vault/domain/event"

	"github.com/segmentio/kafka-go"
)

var _ contract.EventSink = (*KafkaSink)(nil)

// KafkaSink exports lifecycle events to a topic for downstream consumers
// (feeds, moderation dashboards). Keyed by attachment ID so one attachment's
// events stay in partition order.
type KafkaSink struct {
	writer *kafka.Writer
	log    *slog.Logger
}

func NewKafkaSink(brokers []string, topic string, log *slog.Logger) *KafkaSink {
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 50 * time.Millisecond,
		},
		log: log,
	}
}

type envelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

func (s *KafkaSink) Consume(ctx context.Context, e event.LifecycleEvent) error {
	payload, err := json.Marshal(envelope{Event: e.Name(), Payload: e})
	if err != nil {
		return err
	}
	return s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.Ref().String()),
		Value: payload,
	})
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
