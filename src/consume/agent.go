// Package consume provides the consumer agent and the dispatcher it feeds.
// The agent consumes envelopes from the broker topic and classifies their "message" field.
package consume

import (
	"context"
	"fmt"
	"sync"

	"kafka-bridge/src/broker"
	"kafka-bridge/src/logger"
)

// Handler processes one consumed message.
type Handler interface {
	OnMessage(ctx context.Context, msg broker.Message) error
}

// Agent subscribes to a topic and fans messages out to a pool of workers.
type Agent struct {
	broker  broker.Broker
	handler Handler
	topic   string
	groupID string
	workers int
	logger  logger.Logger
}

// NewAgent creates a new consumer agent. workers below 1 is treated as 1.
func NewAgent(brk broker.Broker, handler Handler, topic, groupID string, workers int, log logger.Logger) *Agent {
	if workers < 1 {
		workers = 1
	}
	return &Agent{
		broker:  brk,
		handler: handler,
		topic:   topic,
		groupID: groupID,
		workers: workers,
		logger:  log,
	}
}

// Run starts the agent's main loop.
// It returns nil when the subscription channel closes and ctx.Err() when ctx is cancelled.
// Messages the handler rejects are logged and discarded; they never stop the agent.
func (a *Agent) Run(ctx context.Context) error {
	a.logger.Info("[ConsumerAgent] Starting...")

	msgChan, err := a.broker.Subscribe(ctx, a.topic, a.groupID)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", a.topic, err)
	}

	a.logger.Info("[ConsumerAgent] Listening on '%s' as group '%s' with %d worker(s)...", a.topic, a.groupID, a.workers)

	var wg sync.WaitGroup
	for i := 0; i < a.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.work(ctx, msgChan)
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		a.logger.Info("[ConsumerAgent] Context cancelled, shutting down")
		return err
	}
	a.logger.Info("[ConsumerAgent] Message channel closed, shutting down")
	return nil
}

func (a *Agent) work(ctx context.Context, msgChan <-chan broker.Message) {
	for {
		select {
		case msg, ok := <-msgChan:
			if !ok {
				return
			}
			if err := a.handler.OnMessage(ctx, msg); err != nil {
				a.logger.Error("[ConsumerAgent] Discarding message: %v", err)
			}
		case <-ctx.Done():
			return
		}
	}
}
