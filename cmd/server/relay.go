package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"masterdata/internal/masterdata/outbox"
	"masterdata/internal/platform/kafka"
)

func newRelayCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "relay",
		Short: "Publish outbox field changes to Kafka",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.requireDB(); err != nil {
				return err
			}
			return runRelayLoop(ctx, a)
		},
	}
}

func runRelayLoop(ctx context.Context, a *app) error {
	kcfg := a.cfg.Kafka
	if len(kcfg.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required for the relay")
	}
	client, err := kafka.NewClient(kcfg)
	if err != nil {
		return err
	}
	defer client.Close()
	if err := kafka.EnsureTopic(ctx, client, kcfg.Topic, kcfg.Partitions, kcfg.Replication); err != nil {
		return err
	}

	opts := []outbox.RelayOption{
		outbox.WithLogger(a.logger),
		outbox.WithBatchSize(kcfg.RelayBatch),
		outbox.WithInterval(kcfg.RelayInterval),
	}
	if a.relayTx != nil {
		opts = append(opts, outbox.WithTx(a.relayTx))
	}
	a.logger.InfoContext(ctx, "outbox relay started", "topic", kcfg.Topic, "brokers", kcfg.Brokers)
	return outbox.NewRelay(a.store, outbox.NewKafkaPublisher(client), opts...).Run(ctx)
}
