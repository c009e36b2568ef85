package sink

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// DeadLetterTopic is where transactions that exhaust their retry budget
// against the durable sink are republished, so an operator has a replay
// path instead of a silent drop.
const DeadLetterTopic = "riskmesh.sink.deadletter"

// DeadLetterProducer wraps a kafka-go writer. If brokers is empty or the
// producer is disabled, publishes are no-ops — sink degradation must never
// block the caller.
type DeadLetterProducer struct {
	writer  *kafka.Writer
	logger  *slog.Logger
	enabled bool
}

// NewDeadLetterProducer creates a dead-letter producer.
func NewDeadLetterProducer(brokers string, enabled bool, logger *slog.Logger) *DeadLetterProducer {
	if !enabled || brokers == "" {
		logger.Info("dead-letter producer disabled")
		return &DeadLetterProducer{enabled: false, logger: logger}
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(strings.Split(brokers, ",")...),
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}

	logger.Info("dead-letter producer initialized", "brokers", brokers)
	return &DeadLetterProducer{writer: w, logger: logger, enabled: true}
}

// Publish republishes a transaction that exhausted its retry budget.
func (p *DeadLetterProducer) Publish(ctx context.Context, key string, payload interface{}) error {
	if !p.enabled {
		return nil
	}

	value, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic: DeadLetterTopic,
		Key:   []byte(key),
		Value: value,
	})
}

// Close shuts down the underlying writer.
func (p *DeadLetterProducer) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}
