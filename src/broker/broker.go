// Package broker defines the interface for message brokers and provides implementations.
package broker

import (
	"context"
	"errors"
)

// ErrClosed is returned (or carried by a failed Outcome) once Close has been called.
var ErrClosed = errors.New("broker is closed")

// Broker abstracts message publishing and consumption.
// This interface supports both in-memory (local) and distributed (Redpanda/Kafka) implementations.
type Broker interface {
	// Send hands a message to the broker for asynchronous delivery to msg.Topic.
	// It never waits for the network round trip; the returned Future resolves
	// exactly once with the delivery outcome.
	// For Redpanda/Kafka, msg.Key is used for partition assignment.
	Send(ctx context.Context, msg Message) *Future

	// Subscribe returns a channel for consuming messages from a topic.
	// groupID is used for consumer group coordination in Kafka.
	// For in-memory broker, groupID is ignored.
	Subscribe(ctx context.Context, topic string, groupID string) (<-chan Message, error)

	// Close shuts down the broker connection gracefully.
	Close() error
}

// Message represents a produced or consumed broker record.
type Message struct {
	Topic     string
	Key       string
	Value     []byte
	Headers   map[string]string
	Offset    int64
	Partition int32
	Timestamp int64
}
