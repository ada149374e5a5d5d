// Package pipeline wires the broker, publisher and consumer agent from configuration.
// It is shared by every bridge subcommand.
package pipeline

import (
	"context"
	"errors"

	"kafka-bridge/src/broker"
	"kafka-bridge/src/config"
	"kafka-bridge/src/consume"
	"kafka-bridge/src/logger"
	"kafka-bridge/src/publish"
)

// Mode selects where messages travel.
type Mode int

const (
	// LocalMode keeps messages in process; the consumer must run alongside the producer.
	LocalMode Mode = iota
	// DistributedMode publishes to and consumes from Redpanda/Kafka.
	DistributedMode
)

func (m Mode) String() string {
	switch m {
	case LocalMode:
		return "local"
	case DistributedMode:
		return "distributed"
	default:
		return "unknown"
	}
}

// DetectMode picks DistributedMode when broker addresses are configured.
func DetectMode(cfg *config.Config) Mode {
	if cfg.InMemory() {
		return LocalMode
	}
	return DistributedMode
}

// NewBroker builds the broker handle shared by every component of a command.
// The caller owns it and must Close it.
func NewBroker(cfg *config.Config, log logger.Logger) (broker.Broker, error) {
	if DetectMode(cfg) == LocalMode {
		log.Info("[Pipeline] Using in-memory broker (set REDPANDA_BROKERS for a real broker)")
		return broker.NewInMemoryBroker(), nil
	}

	log.Info("[Pipeline] Redpanda brokers: %v", cfg.RedpandaBrokers)
	brk, err := broker.NewRedpandaBroker(cfg.RedpandaBrokers, log,
		broker.WithClientID(cfg.ClientID),
		broker.WithDeliveryTimeout(cfg.DeliveryTimeout),
		broker.WithConsumeFromStart(cfg.ConsumeFromStart),
	)
	if err != nil {
		return nil, err
	}
	return brk, nil
}

// NewPublisher creates the publisher for the configured topic.
func NewPublisher(brk broker.Broker, cfg *config.Config, log logger.Logger) *publish.Publisher {
	return publish.NewPublisher(brk, cfg.Topic, log)
}

// NewConsumerAgent creates the dispatcher-backed consumer agent for the configured topic and group.
func NewConsumerAgent(brk broker.Broker, cfg *config.Config, log logger.Logger) *consume.Agent {
	return consume.NewAgent(brk, consume.NewDispatcher(log), cfg.Topic, cfg.GroupID, cfg.ConsumerWorkers, log)
}

// RunConsumer runs the consumer agent until ctx is cancelled or the broker closes.
// Cancellation is a clean stop and returns nil.
func RunConsumer(ctx context.Context, brk broker.Broker, cfg *config.Config, log logger.Logger) error {
	err := NewConsumerAgent(brk, cfg, log).Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Shutdown closes the publisher, waits up to cfg.ShutdownTimeout for outstanding
// delivery outcomes, then closes the broker.
func Shutdown(pub *publish.Publisher, brk broker.Broker, cfg *config.Config, log logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := pub.Close(ctx); err != nil {
		log.Error("[Pipeline] Gave up waiting for delivery outcomes: %v", err)
	}
	if err := brk.Close(); err != nil {
		log.Error("[Pipeline] Failed to close broker: %v", err)
	}
}
