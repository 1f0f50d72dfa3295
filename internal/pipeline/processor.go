package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/couchcryptid/clima-ingest-service/internal/domain"
	"github.com/couchcryptid/clima-ingest-service/internal/observability"
)

// WeatherClient fetches the raw provider payload for one city.
type WeatherClient interface {
	Fetch(ctx context.Context, city string) (domain.RawWeatherResponse, error)
}

// ObservationWriter persists the latest temperature for a city.
type ObservationWriter interface {
	Upsert(ctx context.Context, city string, temperature float64) error
}

// Processor runs a single record through fetch, validate and persist.
// Every failure becomes a Failure outcome; Process never returns an error.
type Processor struct {
	client  WeatherClient
	store   ObservationWriter
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewProcessor creates a Processor.
func NewProcessor(client WeatherClient, store ObservationWriter, logger *slog.Logger, metrics *observability.Metrics) *Processor {
	return &Processor{
		client:  client,
		store:   store,
		logger:  logger,
		metrics: metrics,
	}
}

// Process ingests the current weather for q.City.
//
// The observation is stored under the provider's canonical city name, so
// differently spelled queries for the same place share one row. When the
// provider omits a name, the queried city is used.
func (p *Processor) Process(ctx context.Context, q domain.CityQuery) domain.Outcome {
	if err := q.Validate(); err != nil {
		return p.fail(q.City, err)
	}

	raw, err := p.client.Fetch(ctx, q.City)
	if err != nil {
		return p.fail(q.City, err)
	}

	reading, err := domain.ValidateWeather(raw)
	if err != nil {
		return p.fail(q.City, err)
	}

	city := reading.CityName
	if city == "" {
		city = q.City
	}

	start := time.Now()
	err = p.store.Upsert(ctx, city, reading.Temperature)
	p.metrics.PersistDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return p.fail(q.City, &domain.StoreError{City: city, Err: err})
	}

	p.metrics.RecordsProcessed.WithLabelValues("success").Inc()
	p.logger.Info("observation saved",
		"query", q.City,
		"city", city,
		"temperature", reading.Temperature,
	)
	return domain.Success(city, reading.Temperature)
}

func (p *Processor) fail(query string, err error) domain.Outcome {
	kind := domain.FailureKind(err)
	p.metrics.RecordsProcessed.WithLabelValues("failure").Inc()
	p.metrics.RecordFailures.WithLabelValues(kind).Inc()
	p.logger.Warn("processing city failed", "query", query, "kind", kind, "error", err)
	return domain.Failure(err)
}
