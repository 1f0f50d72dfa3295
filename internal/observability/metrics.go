package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "clima"

// Metrics holds the Prometheus counters, histograms, and gauges for the ingestion pipeline.
type Metrics struct {
	BatchesConsumed  prometheus.Counter
	BatchErrors      prometheus.Counter
	RecordsProcessed *prometheus.CounterVec // labels: outcome={success,failure}
	RecordFailures   *prometheus.CounterVec // labels: kind={input,fetch,shape,store,unknown}
	ConsumerRunning  prometheus.Gauge

	BatchSize         prometheus.Histogram
	FetchDuration     prometheus.Histogram
	PersistDuration   prometheus.Histogram
	BreakerOpen       prometheus.Gauge
	OutcomesPublished prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.BatchesConsumed,
		m.BatchErrors,
		m.RecordsProcessed,
		m.RecordFailures,
		m.ConsumerRunning,
		m.BatchSize,
		m.FetchDuration,
		m.PersistDuration,
		m.BreakerOpen,
		m.OutcomesPublished,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		BatchesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_consumed_total",
			Help:      "Total batch payloads read from the batch source.",
		}),
		BatchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_errors_total",
			Help:      "Batch payloads rejected before any record was processed.",
		}),
		RecordsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_processed_total",
			Help:      "City records processed by outcome.",
		}, []string{"outcome"}),
		RecordFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "record_failures_total",
			Help:      "Failed city records by error kind.",
		}, []string{"kind"}),
		ConsumerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "consumer_running",
			Help:      "1 when the batch consumer is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of city records per batch.",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100},
		}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "weather_fetch_duration_seconds",
			Help:      "Weather provider request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		PersistDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "observation_persist_duration_seconds",
			Help:      "Observation upsert duration in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
		BreakerOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "weather_breaker_open",
			Help:      "1 while the weather provider circuit breaker is open.",
		}),
		OutcomesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outcomes_published_total",
			Help:      "Batch outcomes written to the outcome sink.",
		}),
	}
}
