// Package config provides configuration management for the bridge.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"kafka-bridge/src/contracts"
	"kafka-bridge/src/logger"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the application configuration.
type Config struct {
	// RedpandaBrokers are the seed broker addresses. Empty selects the in-memory broker.
	RedpandaBrokers []string `env:"REDPANDA_BROKERS" envSeparator:","`

	// Topic every payload is published to and consumed from. Defaults to contracts.DefaultTopic.
	Topic string `env:"BRIDGE_TOPIC"`
	// GroupID is the consumer group of the dispatcher. Defaults to contracts.DefaultGroupID.
	GroupID string `env:"BRIDGE_GROUP_ID"`

	ClientID         string        `env:"KAFKA_CLIENT_ID" envDefault:"kafka-bridge"`
	DeliveryTimeout  time.Duration `env:"KAFKA_DELIVERY_TIMEOUT" envDefault:"30s"`
	ConsumeFromStart bool          `env:"KAFKA_CONSUME_FROM_START" envDefault:"false"`
	ConsumerWorkers  int           `env:"CONSUMER_WORKERS" envDefault:"1"`

	HTTPAddr         string        `env:"HTTP_ADDR" envDefault:":8080"`
	HTTPMaxBodyBytes int64         `env:"HTTP_MAX_BODY_BYTES" envDefault:"1048576"`
	ShutdownTimeout  time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`
}

// InMemory reports whether no broker addresses are configured.
func (c *Config) InMemory() bool {
	return len(c.RedpandaBrokers) == 0
}

// Validate checks the values env parsing cannot.
func (c *Config) Validate() error {
	if c.Topic == "" {
		return fmt.Errorf("%w: BRIDGE_TOPIC must not be empty", ErrInvalidConfig)
	}
	if c.GroupID == "" {
		return fmt.Errorf("%w: BRIDGE_GROUP_ID must not be empty", ErrInvalidConfig)
	}
	if c.ConsumerWorkers < 1 {
		return fmt.Errorf("%w: CONSUMER_WORKERS must be at least 1, got %d", ErrInvalidConfig, c.ConsumerWorkers)
	}
	if c.HTTPMaxBodyBytes <= 0 {
		return fmt.Errorf("%w: HTTP_MAX_BODY_BYTES must be positive", ErrInvalidConfig)
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: LOG_LEVEL: %v", ErrInvalidConfig, err)
	}
	switch c.LogFormat {
	case logger.FormatConsole, logger.FormatJSON:
	default:
		return fmt.Errorf("%w: LOG_FORMAT must be %q or %q", ErrInvalidConfig, logger.FormatConsole, logger.FormatJSON)
	}
	return nil
}

// LoadFromEnv loads configuration from environment variables.
// A .env file in the working directory is applied first when present;
// variables already set in the process environment win.
func LoadFromEnv() (*Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Topic:   contracts.DefaultTopic,
		GroupID: contracts.DefaultGroupID,
	}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
