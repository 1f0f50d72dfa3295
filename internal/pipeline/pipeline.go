package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/clima-ingest-service/internal/domain"
	"github.com/couchcryptid/clima-ingest-service/internal/observability"
)

// BatchSource delivers batch payloads one at a time.
type BatchSource interface {
	Next(ctx context.Context) (domain.Delivery, error)
}

// OutcomeSink receives the handler's return value for each delivery.
type OutcomeSink interface {
	Publish(ctx context.Context, key string, outcome domain.Outcome) error
}

// BatchHandler is the part of Handler the consumer needs.
type BatchHandler interface {
	Handle(ctx context.Context, payload []byte) (domain.Outcome, error)
}

// Consumer pulls deliveries from a BatchSource, hands each to the
// BatchHandler and commits it once its outcome has been published.
type Consumer struct {
	source  BatchSource
	handler BatchHandler
	sink    OutcomeSink
	logger  *slog.Logger
	metrics *observability.Metrics
	ready   atomic.Bool
}

// NewConsumer creates a Consumer. A nil sink drops outcomes after logging them.
func NewConsumer(source BatchSource, handler BatchHandler, sink OutcomeSink, logger *slog.Logger, metrics *observability.Metrics) *Consumer {
	return &Consumer{
		source:  source,
		handler: handler,
		sink:    sink,
		logger:  logger,
		metrics: metrics,
	}
}

// CheckReadiness returns nil once the consumer has handled a delivery.
func (c *Consumer) CheckReadiness(_ context.Context) error {
	if !c.ready.Load() {
		return errors.New("consumer has not handled any batches yet")
	}
	return nil
}

// Run consumes deliveries until the context is cancelled. It returns an error
// wrapping domain.ErrSourceClosed once the source can no longer deliver.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("consumer started")
	c.metrics.ConsumerRunning.Set(1)
	defer c.metrics.ConsumerRunning.Set(0)

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("consumer stopping", "reason", ctx.Err())
			return nil
		default:
		}

		ok, err := c.consumeOne(ctx, &backoff, maxBackoff)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}
}

// consumeOne handles a single delivery. Returns false if the consumer should stop.
func (c *Consumer) consumeOne(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) (bool, error) {
	d, err := c.source.Next(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false, nil
		}
		if errors.Is(err, domain.ErrSourceClosed) {
			c.logger.Error("batch source closed, stopping consumer", "error", err)
			return false, err
		}
		c.logger.Error("read batch failed", "error", err)
		return c.backoffOrStop(ctx, backoff, maxBackoff), nil
	}
	*backoff = 200 * time.Millisecond
	c.metrics.BatchesConsumed.Inc()

	outcome, err := c.handler.Handle(ctx, d.Payload)
	if err != nil {
		// A malformed batch will never succeed; acknowledge it so it is not redelivered.
		c.logger.Warn("batch rejected, skipping delivery",
			"error", err,
			"source", d.Source,
			"delivery_id", d.ID,
		)
		c.metrics.BatchErrors.Inc()
		c.commit(ctx, d)
		return true, nil
	}

	c.logger.Info("batch handled",
		"source", d.Source,
		"delivery_id", d.ID,
		"ok", outcome.OK(),
		"error", outcome.Reason(),
	)

	if c.sink != nil && !c.publish(ctx, d, outcome, maxBackoff) {
		return false, nil
	}

	c.commit(ctx, d)
	c.ready.Store(true)
	return true, nil
}

// publish retries the outcome for d until it is accepted or ctx ends. The
// delivery stays uncommitted meanwhile: committing a later Kafka offset would
// also commit this one.
func (c *Consumer) publish(ctx context.Context, d domain.Delivery, outcome domain.Outcome, maxBackoff time.Duration) bool {
	backoff := 200 * time.Millisecond
	for {
		err := c.sink.Publish(ctx, d.ID, outcome)
		if err == nil {
			c.metrics.OutcomesPublished.Inc()
			return true
		}
		c.logger.Error("publish outcome failed", "error", err, "delivery_id", d.ID, "retry_in", backoff)
		if !c.backoffOrStop(ctx, &backoff, maxBackoff) {
			return false
		}
	}
}

// backoffOrStop checks for context cancellation, sleeps with the current backoff,
// and advances the backoff. Returns false if the consumer should stop.
func (c *Consumer) backoffOrStop(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !sleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = nextBackoff(*backoff, maxBackoff)
	return true
}

func (c *Consumer) commit(ctx context.Context, d domain.Delivery) {
	if d.Commit == nil {
		return
	}
	if err := d.Commit(ctx); err != nil {
		c.logger.Warn("commit delivery failed", "error", err, "source", d.Source, "delivery_id", d.ID)
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
