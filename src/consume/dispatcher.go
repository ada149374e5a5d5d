package consume

import (
	"context"
	"fmt"

	"kafka-bridge/src/broker"
	"kafka-bridge/src/classify"
	"kafka-bridge/src/logger"
)

// Dispatcher classifies each consumed envelope and logs the shape-specific observation.
// It holds no per-message state and is safe for concurrent use.
type Dispatcher struct {
	logger logger.Logger
}

// NewDispatcher creates a dispatcher logging through log.
func NewDispatcher(log logger.Logger) *Dispatcher {
	return &Dispatcher{logger: log}
}

// OnMessage handles one consumed message. A missing or null "message" field is
// logged at error level and is not an error. An envelope that is not a JSON
// object is returned as an error wrapping classify.ErrNotObject.
func (d *Dispatcher) OnMessage(ctx context.Context, msg broker.Message) error {
	shape, err := classify.Classify(msg.Value)
	if err != nil {
		return fmt.Errorf("failed to classify message at %s/%d@%d: %w", msg.Topic, msg.Partition, msg.Offset, err)
	}

	switch shape.(type) {
	case classify.Absent:
		d.logger.Error("[Dispatcher] %s", shape.Describe())
	default:
		d.logger.Info("[Dispatcher] %s", shape.Describe())
	}
	return nil
}
