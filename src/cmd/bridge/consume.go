package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"kafka-bridge/src/pipeline"
)

// consumeCmd runs the consumer agent
var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Run the consumer agent",
	Long: `Join the configured consumer group on the topic and classify every
message's "message" field, logging one observation per message.

Requires REDPANDA_BROKERS; in local mode there is no other producer to consume from.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if pipeline.DetectMode(appConfig) == pipeline.LocalMode {
			return fmt.Errorf("consume requires REDPANDA_BROKERS (example: export REDPANDA_BROKERS=localhost:9092)")
		}

		ctx, cancel := signalContext(log)
		defer cancel()

		brk, err := pipeline.NewBroker(appConfig, log)
		if err != nil {
			return err
		}
		defer brk.Close()

		log.Info("Consumer agent started, waiting for messages...")
		if err := pipeline.RunConsumer(ctx, brk, appConfig, log); err != nil {
			return err
		}
		log.Info("Consumer agent stopped")
		return nil
	},
}
