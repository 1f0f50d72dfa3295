package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os/signal"
	"syscall"

	amqpadapter "github.com/couchcryptid/clima-ingest-service/internal/adapter/amqp"
	httpadapter "github.com/couchcryptid/clima-ingest-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/clima-ingest-service/internal/adapter/kafka"
	"github.com/couchcryptid/clima-ingest-service/internal/pipeline"
	"github.com/couchcryptid/clima-ingest-service/internal/scheduler"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	listenAddr string
	noConsumer bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the queue consumer, refresher and HTTP server (default command)",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "HTTP listen address (overrides HTTP_ADDR)")
	serveCmd.Flags().BoolVar(&noConsumer, "no-consumer", false, "serve direct invocations only, without a queue consumer")
	rootCmd.AddCommand(serveCmd)

	// Make serve the default command.
	rootCmd.RunE = runServe
}

// readinessFunc adapts a function to httpadapter.ReadinessChecker.
type readinessFunc func(ctx context.Context) error

func (f readinessFunc) CheckReadiness(ctx context.Context) error { return f(ctx) }

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	cfg, logger := a.cfg, a.logger

	if listenAddr != "" {
		cfg.HTTPAddr = listenAddr
	}

	logger.Info("starting clima",
		"queue_driver", cfg.QueueDriver,
		"store_driver", cfg.StoreDriver,
		"table", cfg.StoreTable,
		"consumer", !noConsumer,
		"refresh_cities", len(cfg.RefreshCities),
	)

	g, gctx := errgroup.WithContext(ctx)

	var ready httpadapter.ReadinessChecker = readinessFunc(func(context.Context) error { return nil })
	if !noConsumer {
		source, closeSource, err := openSource(a)
		if err != nil {
			return err
		}
		defer closeSource()

		var sink pipeline.OutcomeSink
		if cfg.QueueDriver == "kafka" && cfg.KafkaSinkTopic != "" {
			w := kafkaadapter.NewWriter(cfg, cfg.KafkaSinkTopic, logger)
			defer w.Close() //nolint:errcheck
			sink = w
		}

		consumer := pipeline.NewConsumer(source, a.handler, sink, logger, a.metrics)
		ready = consumer
		g.Go(func() error { return consumer.Run(gctx) })
	}

	refresher := scheduler.NewRefresher(cfg.RefreshCities, cfg.RefreshInterval, a.handler, logger)
	g.Go(func() error { return refresher.Run(gctx) })

	srv := httpadapter.NewServer(cfg.HTTPAddr, ready, a.handler, a.store, logger)
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("clima exited with error", "error", err)
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

// openSource connects the batch source selected by QUEUE_DRIVER.
func openSource(a *app) (pipeline.BatchSource, func(), error) {
	closeWith := func(c io.Closer, name string) func() {
		return func() {
			if err := c.Close(); err != nil {
				a.logger.Error(name+" close error", "error", err)
			}
		}
	}

	switch a.cfg.QueueDriver {
	case "amqp":
		src, err := amqpadapter.Dial(a.cfg.AMQPURL, a.cfg.AMQPQueue, a.logger)
		if err != nil {
			return nil, nil, err
		}
		return src, closeWith(src, "amqp source"), nil
	default:
		r := kafkaadapter.NewReader(a.cfg, a.logger)
		return r, closeWith(r, "kafka reader"), nil
	}
}
