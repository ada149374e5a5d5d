package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"kafka-bridge/src/pipeline"
)

// sendGrace is added to the delivery timeout when waiting for an outcome.
const sendGrace = 5 * time.Second

// sendCmd publishes one payload and waits for its outcome
var sendCmd = &cobra.Command{
	Use:   "send [json|-]",
	Short: "Publish one JSON payload and wait for the delivery outcome",
	Long: `Publish a single JSON document to the configured topic. Pass "-" to read the
document from stdin. Unlike the HTTP ingress, this command waits for the
delivery outcome and exits non-zero when delivery fails.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := readPayload(args[0], cmd.InOrStdin())
		if err != nil {
			return err
		}

		brk, err := pipeline.NewBroker(appConfig, log)
		if err != nil {
			return err
		}
		pub := pipeline.NewPublisher(brk, appConfig, log)
		defer pipeline.Shutdown(pub, brk, appConfig, log)

		ctx, cancel := context.WithTimeout(cmd.Context(), appConfig.DeliveryTimeout+sendGrace)
		defer cancel()

		outcome, err := pub.Publish(ctx, payload).Await(ctx)
		if err != nil {
			return fmt.Errorf("no delivery outcome: %w", err)
		}
		if !outcome.Succeeded() {
			return outcome.Err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Delivered to %s partition %d offset %d\n",
			outcome.Record.Topic, outcome.Record.Partition, outcome.Record.Offset)
		return nil
	},
}

func readPayload(arg string, stdin io.Reader) (json.RawMessage, error) {
	data := []byte(arg)
	if arg == "-" {
		var err error
		data, err = io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("payload must be a JSON document")
	}
	return json.RawMessage(data), nil
}
