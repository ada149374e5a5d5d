// Package broker provides Redpanda/Kafka broker implementation.
package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"kafka-bridge/src/logger"
)

// flushTimeout bounds how long Close waits for buffered records.
const flushTimeout = 5 * time.Second

// RedpandaOption configures a RedpandaBroker.
type RedpandaOption func(*redpandaOptions)

type redpandaOptions struct {
	clientID         string
	deliveryTimeout  time.Duration
	consumeFromStart bool
}

// WithClientID sets the client id reported to the brokers.
func WithClientID(id string) RedpandaOption {
	return func(o *redpandaOptions) { o.clientID = id }
}

// WithDeliveryTimeout bounds how long a record may wait to be acknowledged
// before its outcome fails. Zero keeps the client default.
func WithDeliveryTimeout(d time.Duration) RedpandaOption {
	return func(o *redpandaOptions) { o.deliveryTimeout = d }
}

// WithConsumeFromStart makes new consumer groups start at the earliest offset
// instead of the latest.
func WithConsumeFromStart(fromStart bool) RedpandaOption {
	return func(o *redpandaOptions) { o.consumeFromStart = fromStart }
}

// RedpandaBroker is a Kafka-compatible broker implementation using franz-go.
type RedpandaBroker struct {
	client    *kgo.Client
	brokers   []string
	opts      redpandaOptions
	logger    logger.Logger
	mu        sync.RWMutex
	consumers map[string]*kgo.Client // topic+groupID -> consumer client
	closed    bool
}

// NewRedpandaBroker creates a new RedpandaBroker instance.
// brokers is a slice of broker addresses (e.g., ["localhost:9092"]).
func NewRedpandaBroker(brokers []string, log logger.Logger, opts ...RedpandaOption) (*RedpandaBroker, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one broker address is required")
	}

	var o redpandaOptions
	for _, opt := range opts {
		opt(&o)
	}

	// Create producer client
	client, err := kgo.NewClient(o.clientOpts(brokers,
		kgo.AllowAutoTopicCreation(),
	)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka client: %w", err)
	}

	return &RedpandaBroker{
		client:    client,
		brokers:   brokers,
		opts:      o,
		logger:    log,
		consumers: make(map[string]*kgo.Client),
	}, nil
}

// clientOpts returns the options shared by producer and consumer clients plus extra.
func (o redpandaOptions) clientOpts(brokers []string, extra ...kgo.Opt) []kgo.Opt {
	opts := []kgo.Opt{kgo.SeedBrokers(brokers...)}
	if o.clientID != "" {
		opts = append(opts, kgo.ClientID(o.clientID))
	}
	if o.deliveryTimeout > 0 {
		opts = append(opts, kgo.RecordDeliveryTimeout(o.deliveryTimeout))
	}
	return append(opts, extra...)
}

// Send produces msg asynchronously. The franz-go promise resolves the Future
// from the client's own goroutine.
// Implements the Broker interface.
func (b *RedpandaBroker) Send(ctx context.Context, msg Message) *Future {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return Resolved(Outcome{Record: msg, Err: ErrClosed})
	}

	f := newFuture()
	b.client.Produce(ctx, toRecord(msg), func(r *kgo.Record, err error) {
		if err != nil {
			f.resolve(Outcome{Record: msg, Err: fmt.Errorf("failed to produce message: %w", err)})
			return
		}
		f.resolve(Outcome{Record: fromRecord(r)})
	})
	return f
}

// Subscribe creates a consumer for the specified topic and consumer group.
// Returns a channel that will receive messages.
// Implements the Broker interface.
func (b *RedpandaBroker) Subscribe(ctx context.Context, topic string, groupID string) (<-chan Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}

	consumerKey := fmt.Sprintf("%s:%s", topic, groupID)

	// Check if consumer already exists
	if _, exists := b.consumers[consumerKey]; exists {
		return nil, fmt.Errorf("consumer already exists for topic %s and group %s", topic, groupID)
	}

	reset := kgo.NewOffset().AtEnd()
	if b.opts.consumeFromStart {
		reset = kgo.NewOffset().AtStart()
	}

	// Create consumer client
	consumer, err := kgo.NewClient(b.opts.clientOpts(b.brokers,
		kgo.ConsumerGroup(groupID),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(reset),
	)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	b.consumers[consumerKey] = consumer

	// Create message channel
	msgChan := make(chan Message, 100)

	// Start consuming in a goroutine
	go b.consumeLoop(ctx, consumerKey, consumer, msgChan)

	return msgChan, nil
}

// consumeLoop continuously polls for messages and sends them to the channel.
// When ctx ends it leaves the group so the same topic and group can be subscribed again.
func (b *RedpandaBroker) consumeLoop(ctx context.Context, key string, consumer *kgo.Client, msgChan chan<- Message) {
	defer close(msgChan)
	defer b.releaseConsumer(key, consumer)

	for {
		fetches := consumer.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return
		}

		// Log errors but continue
		fetches.EachError(func(topic string, partition int32, err error) {
			b.logger.Error("[RedpandaBroker] Fetch error on %s/%d: %v", topic, partition, err)
		})

		iter := fetches.RecordIter()
		for !iter.Done() {
			select {
			case msgChan <- fromRecord(iter.Next()):
			case <-ctx.Done():
				return
			}
		}
	}
}

// releaseConsumer closes consumer unless Close already did.
func (b *RedpandaBroker) releaseConsumer(key string, consumer *kgo.Client) {
	b.mu.Lock()
	owned := b.consumers[key] == consumer
	if owned {
		delete(b.consumers, key)
	}
	b.mu.Unlock()

	if owned {
		consumer.Close()
	}
}

// Close flushes buffered records, then shuts down the broker and all consumer connections.
func (b *RedpandaBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	b.closed = true

	// Close all consumers
	for _, consumer := range b.consumers {
		consumer.Close()
	}
	b.consumers = make(map[string]*kgo.Client)

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	flushErr := b.client.Flush(ctx)

	// Close producer client; records still buffered fail their promises.
	b.client.Close()

	if flushErr != nil {
		return fmt.Errorf("failed to flush producer: %w", flushErr)
	}
	return nil
}

func toRecord(msg Message) *kgo.Record {
	record := &kgo.Record{
		Topic: msg.Topic,
		Value: msg.Value,
	}
	if msg.Key != "" {
		record.Key = []byte(msg.Key)
	}
	for k, v := range msg.Headers {
		record.Headers = append(record.Headers, kgo.RecordHeader{Key: k, Value: []byte(v)})
	}
	return record
}

func fromRecord(record *kgo.Record) Message {
	msg := Message{
		Topic:     record.Topic,
		Key:       string(record.Key),
		Value:     record.Value,
		Offset:    record.Offset,
		Partition: record.Partition,
		Timestamp: record.Timestamp.UnixMilli(),
	}
	if len(record.Headers) > 0 {
		msg.Headers = make(map[string]string, len(record.Headers))
		for _, h := range record.Headers {
			msg.Headers[h.Key] = string(h.Value)
		}
	}
	return msg
}
