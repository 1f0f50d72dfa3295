// Package scheduler periodically re-ingests a fixed list of cities.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/couchcryptid/clima-ingest-service/internal/domain"
	"github.com/go-co-op/gocron"
)

// QueryHandler processes queries and returns one outcome per query.
type QueryHandler interface {
	HandleQueries(ctx context.Context, queries []domain.CityQuery) ([]domain.Outcome, error)
}

// Refresher feeds the configured cities through the pipeline on an interval.
type Refresher struct {
	scheduler *gocron.Scheduler
	handler   QueryHandler
	queries   []domain.CityQuery
	interval  time.Duration
	logger    *slog.Logger
}

// NewRefresher creates a Refresher for cities.
func NewRefresher(cities []string, interval time.Duration, handler QueryHandler, logger *slog.Logger) *Refresher {
	queries := make([]domain.CityQuery, 0, len(cities))
	for _, c := range cities {
		queries = append(queries, domain.CityQuery{City: c})
	}
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Refresher{
		scheduler: s,
		handler:   handler,
		queries:   queries,
		interval:  interval,
		logger:    logger,
	}
}

// Run refreshes immediately and then every interval until ctx is done.
func (r *Refresher) Run(ctx context.Context) error {
	if len(r.queries) == 0 {
		r.logger.Info("refresher: no cities configured; nothing to schedule")
		<-ctx.Done()
		return nil
	}

	if _, err := r.scheduler.Every(r.interval).Do(func() { r.RunOnce(ctx) }); err != nil {
		return err
	}
	r.logger.Info("refresher started", "cities", len(r.queries), "interval", r.interval)
	r.scheduler.StartAsync()

	<-ctx.Done()
	r.scheduler.Stop()
	r.logger.Info("refresher stopped")
	return nil
}

// RunOnce processes every configured city once and returns the outcomes.
func (r *Refresher) RunOnce(ctx context.Context) []domain.Outcome {
	if ctx.Err() != nil {
		return nil
	}
	outcomes, err := r.handler.HandleQueries(ctx, r.queries)
	if err != nil {
		r.logger.Error("refresh failed", "error", err)
		return nil
	}

	failed := 0
	for i, out := range outcomes {
		if !out.OK() {
			failed++
			r.logger.Warn("refresh record failed", "city", r.queries[i].City, "error", out.Reason())
		}
	}
	r.logger.Info("refresh completed", "cities", len(outcomes), "failed", failed)
	return outcomes
}
