package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/clima-ingest-service/internal/config"
	"github.com/couchcryptid/clima-ingest-service/internal/domain"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer produces messages to a single Kafka topic. Pointed at the sink
// topic it implements pipeline.OutcomeSink; pointed at the source topic it
// enqueues batches for the consumer.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for topic.
func NewWriter(cfg *config.Config, topic string, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  topic,
		Balancer:               &kafkago.LeastBytes{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish writes the outcome of one delivery, keyed by the delivery id.
func (w *Writer) Publish(ctx context.Context, key string, outcome domain.Outcome) error {
	msg, err := serializeOutcome(key, outcome, time.Now())
	if err != nil {
		return err
	}
	return w.writer.WriteMessages(ctx, msg)
}

// Send enqueues queries as one batch envelope and returns the message key.
func (w *Writer) Send(ctx context.Context, queries ...domain.CityQuery) (string, error) {
	payload, err := domain.EncodeBatch(queries...)
	if err != nil {
		return "", err
	}
	key := uuid.NewString()
	if err := w.writer.WriteMessages(ctx, kafkago.Message{Key: []byte(key), Value: payload}); err != nil {
		return "", fmt.Errorf("enqueue batch: %w", err)
	}
	w.logger.Info("batch enqueued", "message_id", key, "records", len(queries))
	return key, nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeOutcome marshals an Outcome into a Kafka message.
func serializeOutcome(key string, outcome domain.Outcome, now time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(outcome)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize outcome: %w", err)
	}
	status := "success"
	if !outcome.OK() {
		status = "failure"
	}
	return kafkago.Message{
		Key:   []byte(key),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "outcome", Value: []byte(status)},
			{Key: "published_at", Value: []byte(now.UTC().Format(time.RFC3339))},
		},
	}, nil
}
