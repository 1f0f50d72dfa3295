package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/couchcryptid/clima-ingest-service/internal/config"
	"github.com/couchcryptid/clima-ingest-service/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

type consumer interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Reader consumes batch payloads from the source topic.
// It implements pipeline.BatchSource.
type Reader struct {
	reader consumer
	logger *slog.Logger
}

// NewReader creates a consumer-group reader for the configured source topic.
// Offsets are committed explicitly once a delivery has been handled.
func NewReader(cfg *config.Config, logger *slog.Logger) *Reader {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  cfg.KafkaBrokers,
		GroupID:  cfg.KafkaGroupID,
		Topic:    cfg.KafkaSourceTopic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &Reader{reader: r, logger: logger}
}

// Next blocks until a message is available or ctx is done. A closed reader
// reports domain.ErrSourceClosed.
func (r *Reader) Next(ctx context.Context) (domain.Delivery, error) {
	msg, err := r.reader.FetchMessage(ctx)
	if errors.Is(err, io.EOF) {
		return domain.Delivery{}, fmt.Errorf("fetch message: %w", domain.ErrSourceClosed)
	}
	if err != nil {
		return domain.Delivery{}, fmt.Errorf("fetch message: %w", err)
	}
	d := mapMessageToDelivery(msg)
	d.Commit = func(ctx context.Context) error {
		return r.reader.CommitMessages(ctx, msg)
	}
	return d, nil
}

func (r *Reader) Close() error {
	return r.reader.Close()
}

// mapMessageToDelivery uses the message key as the delivery id, falling back
// to the message's position for unkeyed messages.
func mapMessageToDelivery(msg kafkago.Message) domain.Delivery {
	id := string(msg.Key)
	if id == "" {
		id = fmt.Sprintf("%s/%d/%d", msg.Topic, msg.Partition, msg.Offset)
	}
	return domain.Delivery{
		ID:      id,
		Payload: msg.Value,
		Source:  msg.Topic,
	}
}
