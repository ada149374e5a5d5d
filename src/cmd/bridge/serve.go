package main

import (
	"github.com/dmitrymomot/foundation/core/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"kafka-bridge/src/config"
	"kafka-bridge/src/ingress"
	"kafka-bridge/src/pipeline"
)

var withConsumer bool

// serveCmd runs the HTTP ingress and publisher
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP ingress",
	Long: `Accept JSON payloads on POST /api/kafka/sendMessage and publish them to the
configured topic. The response is sent once the payload is handed off, before
delivery is confirmed.

In local mode (no REDPANDA_BROKERS) the consumer always runs in-process.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(log)
		defer cancel()

		mode := pipeline.DetectMode(appConfig)
		log.Info("Starting bridge ingress in %s mode", mode)

		srv, err := newIngressServer(appConfig)
		if err != nil {
			return err
		}

		brk, err := pipeline.NewBroker(appConfig, log)
		if err != nil {
			return err
		}

		pub := pipeline.NewPublisher(brk, appConfig, log)
		router := ingress.NewRouter(pub, appConfig.HTTPMaxBodyBytes, log)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(srv.Run(gctx, router))
		log.Info("HTTP ingress listening on %s", appConfig.HTTPAddr)

		if withConsumer || mode == pipeline.LocalMode {
			g.Go(func() error { return pipeline.RunConsumer(gctx, brk, appConfig, log) })
		}

		// Handlers still running past the shutdown timeout publish into a closed publisher.
		runErr := g.Wait()
		pipeline.Shutdown(pub, brk, appConfig, log)
		return runErr
	},
}

// newIngressServer builds the HTTP server; it stops gracefully within cfg.ShutdownTimeout.
func newIngressServer(cfg *config.Config) (*server.Server, error) {
	return server.NewFromConfig(server.Config{
		Addr:            cfg.HTTPAddr,
		ShutdownTimeout: cfg.ShutdownTimeout,
	})
}

func init() {
	serveCmd.Flags().BoolVar(&withConsumer, "with-consumer", false, "also run the consumer agent in this process")
}
