package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/clima-ingest-service/internal/domain"
	"github.com/couchcryptid/clima-ingest-service/internal/observability"
)

// ErrEmptyBatch is returned for a queue envelope with no records.
var ErrEmptyBatch = errors.New("batch contains no records")

// RecordProcessor turns one query into an outcome.
type RecordProcessor interface {
	Process(ctx context.Context, q domain.CityQuery) domain.Outcome
}

// Handler runs every record of a batch through a RecordProcessor, one after
// another. Only malformed payloads produce an error; record failures are
// reported as outcomes.
type Handler struct {
	processor RecordProcessor
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewHandler creates a Handler.
func NewHandler(processor RecordProcessor, logger *slog.Logger, metrics *observability.Metrics) *Handler {
	return &Handler{
		processor: processor,
		logger:    logger,
		metrics:   metrics,
	}
}

// Handle processes the whole batch and returns the outcome of the last
// record only. Earlier outcomes are discarded; existing consumers of the
// handler's return value depend on this single-result shape. Use HandleAll
// to see every record's outcome.
func (h *Handler) Handle(ctx context.Context, payload []byte) (domain.Outcome, error) {
	outcomes, err := h.HandleAll(ctx, payload)
	if err != nil {
		return domain.Outcome{}, err
	}
	return outcomes[len(outcomes)-1], nil
}

// HandleAll processes the batch and returns one outcome per record, in order.
func (h *Handler) HandleAll(ctx context.Context, payload []byte) ([]domain.Outcome, error) {
	queries, err := domain.ParseBatch(payload)
	if err != nil {
		return nil, fmt.Errorf("parse batch: %w", err)
	}
	return h.HandleQueries(ctx, queries)
}

// HandleQueries processes already-decoded queries in order.
func (h *Handler) HandleQueries(ctx context.Context, queries []domain.CityQuery) ([]domain.Outcome, error) {
	if len(queries) == 0 {
		return nil, ErrEmptyBatch
	}
	h.metrics.BatchSize.Observe(float64(len(queries)))

	outcomes := make([]domain.Outcome, 0, len(queries))
	failed := 0
	for _, q := range queries {
		out := h.processor.Process(ctx, q)
		if !out.OK() {
			failed++
		}
		outcomes = append(outcomes, out)
	}

	h.logger.Debug("batch handled", "records", len(queries), "failed", failed)
	return outcomes, nil
}
