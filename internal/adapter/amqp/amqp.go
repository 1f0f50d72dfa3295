// Package amqp delivers batch payloads over a RabbitMQ queue as an
// alternative to Kafka.
package amqp

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/couchcryptid/clima-ingest-service/internal/domain"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrClosed is returned by Next once the broker closes the delivery channel.
// It wraps domain.ErrSourceClosed, which stops the consumer.
var ErrClosed = fmt.Errorf("amqp delivery channel closed: %w", domain.ErrSourceClosed)

// Source consumes batch payloads from a durable queue with manual acks.
// It implements pipeline.BatchSource.
type Source struct {
	queue      string
	deliveries <-chan amqp.Delivery
	closer     io.Closer
	logger     *slog.Logger
}

// Dial connects to url, declares queue and starts consuming from it.
func Dial(url, queue string, logger *slog.Logger) (*Source, error) {
	conn, ch, err := open(url, queue)
	if err != nil {
		return nil, err
	}
	if err := ch.Qos(1, 0, false); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("set prefetch: %w", err)
	}
	deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("consume %s: %w", queue, err)
	}
	return newSource(queue, deliveries, conn, logger), nil
}

func newSource(queue string, deliveries <-chan amqp.Delivery, closer io.Closer, logger *slog.Logger) *Source {
	return &Source{queue: queue, deliveries: deliveries, closer: closer, logger: logger}
}

// Next blocks until a delivery arrives or ctx is done.
func (s *Source) Next(ctx context.Context) (domain.Delivery, error) {
	select {
	case <-ctx.Done():
		return domain.Delivery{}, ctx.Err()
	case d, ok := <-s.deliveries:
		if !ok {
			return domain.Delivery{}, ErrClosed
		}
		id := d.MessageId
		if id == "" {
			id = fmt.Sprintf("%s/%d", s.queue, d.DeliveryTag)
		}
		return domain.Delivery{
			ID:      id,
			Payload: d.Body,
			Source:  s.queue,
			Commit: func(context.Context) error {
				return d.Ack(false)
			},
		}, nil
	}
}

func (s *Source) Close() error {
	return s.closer.Close()
}

type channelPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Publisher enqueues batches onto a queue through the default exchange.
type Publisher struct {
	queue  string
	ch     channelPublisher
	closer io.Closer
	logger *slog.Logger
}

// DialPublisher connects to url and declares queue.
func DialPublisher(url, queue string, logger *slog.Logger) (*Publisher, error) {
	conn, ch, err := open(url, queue)
	if err != nil {
		return nil, err
	}
	return &Publisher{queue: queue, ch: ch, closer: conn, logger: logger}, nil
}

// Send enqueues queries as one persistent batch message and returns its id.
func (p *Publisher) Send(ctx context.Context, queries ...domain.CityQuery) (string, error) {
	payload, err := domain.EncodeBatch(queries...)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	err = p.ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    id,
		Body:         payload,
	})
	if err != nil {
		return "", fmt.Errorf("publish to %s: %w", p.queue, err)
	}
	p.logger.Info("batch enqueued", "message_id", id, "records", len(queries), "queue", p.queue)
	return id, nil
}

func (p *Publisher) Close() error {
	return p.closer.Close()
}

func open(url, queue string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}
	return conn, ch, nil
}
