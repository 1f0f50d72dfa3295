package main

import (
	"context"
	"fmt"

	amqpadapter "github.com/couchcryptid/clima-ingest-service/internal/adapter/amqp"
	kafkaadapter "github.com/couchcryptid/clima-ingest-service/internal/adapter/kafka"
	"github.com/couchcryptid/clima-ingest-service/internal/domain"
	"github.com/spf13/cobra"
)

var sendCmd = &cobra.Command{
	Use:   "send city [city...]",
	Short: "Enqueue cities as one batch on the source queue",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
}

type batchSender interface {
	Send(ctx context.Context, queries ...domain.CityQuery) (string, error)
	Close() error
}

func runSend(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	var sender batchSender
	switch cfg.QueueDriver {
	case "amqp":
		sender, err = amqpadapter.DialPublisher(cfg.AMQPURL, cfg.AMQPQueue, logger)
		if err != nil {
			return err
		}
	default:
		sender = kafkaadapter.NewWriter(cfg, cfg.KafkaSourceTopic, logger)
	}
	defer sender.Close() //nolint:errcheck

	queries := make([]domain.CityQuery, 0, len(args))
	for _, c := range args {
		queries = append(queries, domain.CityQuery{City: c})
	}

	id, err := sender.Send(cmd.Context(), queries...)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), id)
	return nil
}
