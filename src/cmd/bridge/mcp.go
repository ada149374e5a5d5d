package main

import (
	"github.com/spf13/cobra"

	"kafka-bridge/src/mcp"
	"kafka-bridge/src/pipeline"
)

// mcpCmd serves the send_message tool over stdio
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the send_message tool over MCP stdio",
	Long: `Run a Model Context Protocol server on stdin/stdout exposing a send_message
tool with the same fire-and-forget contract as the HTTP ingress. Logs go to
stderr so they never corrupt the protocol stream.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(log)
		defer cancel()

		brk, err := pipeline.NewBroker(appConfig, log)
		if err != nil {
			return err
		}

		pub := pipeline.NewPublisher(brk, appConfig, log)
		defer pipeline.Shutdown(pub, brk, appConfig, log)

		if pipeline.DetectMode(appConfig) == pipeline.LocalMode {
			go func() {
				if err := pipeline.RunConsumer(ctx, brk, appConfig, log); err != nil {
					log.Error("Consumer agent error: %v", err)
				}
			}()
		}

		return mcp.NewServer(pub, version).Run()
	},
}
