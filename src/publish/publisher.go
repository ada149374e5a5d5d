// Package publish provides the asynchronous publisher that feeds the broker topic.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"kafka-bridge/src/broker"
	"kafka-bridge/src/contracts"
	"kafka-bridge/src/logger"
)

// ErrClosed is the failure cause for envelopes published after Close.
var ErrClosed = errors.New("publisher is closed")

// Publisher sends envelopes to a fixed topic and logs each delivery outcome.
type Publisher struct {
	broker broker.Broker
	topic  string
	logger logger.Logger

	mu      sync.Mutex
	pending int
	idle    chan struct{} // closed while pending == 0
	closed  bool
}

// NewPublisher creates a publisher bound to topic.
func NewPublisher(brk broker.Broker, topic string, log logger.Logger) *Publisher {
	idle := make(chan struct{})
	close(idle)
	return &Publisher{
		broker: brk,
		topic:  topic,
		logger: log,
		idle:   idle,
	}
}

// Topic returns the topic this publisher writes to.
func (p *Publisher) Topic() string {
	return p.topic
}

// Publish serializes envelope and hands it to the broker without waiting for
// delivery. A completion handler logging the outcome is attached before the
// future is returned. The send is detached from ctx cancellation so that a
// finished request does not abort delivery.
func (p *Publisher) Publish(ctx context.Context, envelope any) *broker.Future {
	requestID := uuid.NewString()

	if !p.begin() {
		outcome := broker.Outcome{Record: broker.Message{Topic: p.topic}, Err: ErrClosed}
		p.onComplete(requestID, envelope, outcome)
		return broker.Resolved(outcome)
	}

	var future *broker.Future
	value, err := encode(envelope)
	if err != nil {
		future = broker.Resolved(broker.Outcome{
			Record: broker.Message{Topic: p.topic},
			Err:    fmt.Errorf("failed to serialize payload: %w", err),
		})
	} else {
		future = p.broker.Send(context.WithoutCancel(ctx), broker.Message{
			Topic:   p.topic,
			Value:   value,
			Headers: map[string]string{contracts.HeaderRequestID: requestID},
		})
	}

	future.Then(func(outcome broker.Outcome) {
		defer p.finish()
		p.onComplete(requestID, envelope, outcome)
	})

	return future
}

// PublishAndForget publishes envelope; the outcome is only logged.
func (p *Publisher) PublishAndForget(ctx context.Context, envelope any) {
	p.Publish(ctx, envelope)
}

// Wait blocks until every completion handler registered so far has run, or ctx is done.
// Publishing may continue concurrently.
func (p *Publisher) Wait(ctx context.Context) error {
	p.mu.Lock()
	idle := p.idle
	p.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting envelopes and waits for outstanding completion handlers.
// Envelopes published afterwards fail with ErrClosed.
func (p *Publisher) Close(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	return p.Wait(ctx)
}

func (p *Publisher) begin() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return false
	}
	if p.pending == 0 {
		p.idle = make(chan struct{})
	}
	p.pending++
	return true
}

func (p *Publisher) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.pending--
	if p.pending == 0 {
		close(p.idle)
	}
}

func (p *Publisher) onComplete(requestID string, envelope any, outcome broker.Outcome) {
	if outcome.Succeeded() {
		p.logger.Info("[Publisher] Message sent successfully to topic %s: %s", p.topic, outcome.Record.Value)
		p.logger.Debug("[Publisher] Request %s written to partition %d at offset %d",
			requestID, outcome.Record.Partition, outcome.Record.Offset)
		return
	}

	p.logger.Error("[Publisher] Failed to send message to topic %s: %s: %v", p.topic, render(envelope), outcome.Err)
	p.logger.Debug("[Publisher] Request %s dropped", requestID)
}

// encode turns envelope into wire bytes. Raw JSON is passed through untouched.
func encode(envelope any) ([]byte, error) {
	switch v := envelope.(type) {
	case json.RawMessage:
		if !json.Valid(v) {
			return nil, fmt.Errorf("invalid JSON document")
		}
		return v, nil
	default:
		return json.Marshal(v)
	}
}

// render formats the original input for the failure log.
func render(envelope any) string {
	switch v := envelope.(type) {
	case json.RawMessage:
		return string(v)
	default:
		if b, err := json.Marshal(v); err == nil {
			return string(b)
		}
		return fmt.Sprintf("%v", v)
	}
}
