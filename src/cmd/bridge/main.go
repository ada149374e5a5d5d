// Package main provides the bridge CLI: the HTTP ingress, the consumer agent,
// a one-shot sender and the MCP server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"kafka-bridge/src/config"
	"kafka-bridge/src/logger"
)

var version = "dev"

var (
	appConfig *config.Config
	log       logger.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:     "bridge",
	Short:   "Bridge HTTP payloads onto a Kafka topic and classify what comes back",
	Version: version,
	Long: `bridge accepts arbitrary JSON payloads over HTTP (or MCP), publishes them
asynchronously to a Kafka/Redpanda topic, and runs a consumer that classifies
each payload's "message" field by JSON shape.

Set REDPANDA_BROKERS to use a real broker. Without it the bridge runs with an
in-memory broker and the consumer runs in the same process.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		appConfig, err = config.LoadFromEnv()
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}

		log, err = logger.New(os.Stderr, appConfig.LogFormat, appConfig.LogLevel)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, consumeCmd, sendCmd, mcpCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(log logger.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-sigChan:
			log.Info("Shutdown signal received, stopping...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}
