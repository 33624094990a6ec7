package event

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// emitTimeout is the max time allowed for a single emit, so slow Kafka does
// not block registration paths.
const emitTimeout = 5 * time.Second

// KafkaProducer implements Producer using segmentio/kafka-go.
type KafkaProducer struct {
	writer *kafka.Writer
}

// NewKafkaProducer creates a Kafka producer that writes rollout events to the
// given topic. Call Close when shutting down.
func NewKafkaProducer(brokers []string, topic string) *KafkaProducer {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 50 * time.Millisecond,
	}
	return &KafkaProducer{writer: writer}
}

// Emit serializes the event as JSON and writes it to the Kafka topic, keyed
// by firmware ID so per-firmware ordering is preserved.
func (p *KafkaProducer) Emit(ctx context.Context, event *RolloutEvent) error {
	if p == nil || p.writer == nil || event == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, emitTimeout)
	defer cancel()
	return p.writer.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(event.FirmwareID),
		Value: payload,
	})
}

// Close closes the Kafka writer. Safe to call multiple times.
func (p *KafkaProducer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

// EmitAsync runs Emit in a goroutine with a short timeout so the caller is
// not blocked. Errors are logged; the goroutine uses context.Background() so
// request cancellation does not abort an in-flight emit.
func EmitAsync(producer Producer, log zerolog.Logger, event *RolloutEvent) {
	if producer == nil || event == nil {
		return
	}
	go func() {
		emitCtx, cancel := context.WithTimeout(context.Background(), emitTimeout)
		defer cancel()
		if err := producer.Emit(emitCtx, event); err != nil {
			log.Warn().Err(err).Str("event_type", event.EventType).Msg("rollout event emit failed")
		}
	}()
}
