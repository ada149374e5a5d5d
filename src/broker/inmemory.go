// Package broker provides implementations of the Broker interface.
package broker

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// InMemoryBroker is an in-process implementation of Broker used in local mode and tests.
// Every subscriber of a topic receives every message; consumer groups are ignored.
type InMemoryBroker struct {
	mu          sync.RWMutex
	subscribers map[string][]*subscription
	closed      bool
	failure     error

	offsetMu sync.Mutex
	offsets  map[string]int64

	done      chan struct{}
	closeOnce sync.Once
}

// subscription is one subscriber channel. Senders hold mu for reading while
// they block on ch; the channel is closed under the write lock once gone or
// the broker's done channel has released them.
type subscription struct {
	mu     sync.RWMutex
	ch     chan Message
	gone   chan struct{}
	closed bool
}

func (s *subscription) send(ctx context.Context, done <-chan struct{}, record Message) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil
	}
	select {
	case s.ch <- record:
		return nil
	case <-s.gone:
		return nil
	case <-done:
		return ErrClosed
	case <-ctx.Done():
		return fmt.Errorf("failed to produce message: %w", ctx.Err())
	}
}

func (s *subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// NewInMemoryBroker creates a new InMemoryBroker instance.
func NewInMemoryBroker() *InMemoryBroker {
	return &InMemoryBroker{
		subscribers: make(map[string][]*subscription),
		offsets:     make(map[string]int64),
		done:        make(chan struct{}),
	}
}

// SetFailure makes every following send fail with err instead of being delivered.
// A nil err restores normal delivery.
func (b *InMemoryBroker) SetFailure(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failure = err
}

// Send delivers msg to the topic's subscribers on a separate goroutine.
func (b *InMemoryBroker) Send(ctx context.Context, msg Message) *Future {
	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return Resolved(Outcome{Record: msg, Err: ErrClosed})
	}

	f := newFuture()
	go func() {
		f.resolve(b.deliver(ctx, msg))
	}()
	return f
}

func (b *InMemoryBroker) deliver(ctx context.Context, msg Message) Outcome {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return Outcome{Record: msg, Err: ErrClosed}
	}
	if b.failure != nil {
		err := b.failure
		b.mu.RUnlock()
		return Outcome{Record: msg, Err: fmt.Errorf("failed to produce message: %w", err)}
	}
	subs := append([]*subscription(nil), b.subscribers[msg.Topic]...)
	b.mu.RUnlock()

	record := msg
	record.Offset = b.nextOffset(msg.Topic)
	record.Timestamp = time.Now().UnixMilli()

	// A slow subscriber must not hold the broker lock.
	for _, sub := range subs {
		if err := sub.send(ctx, b.done, record); err != nil {
			return Outcome{Record: msg, Err: err}
		}
	}
	return Outcome{Record: record}
}

func (b *InMemoryBroker) nextOffset(topic string) int64 {
	b.offsetMu.Lock()
	defer b.offsetMu.Unlock()
	off := b.offsets[topic]
	b.offsets[topic] = off + 1
	return off
}

// Subscribe returns a buffered channel receiving every message sent to topic
// from now on. The channel is closed when ctx is done or the broker is closed.
func (b *InMemoryBroker) Subscribe(ctx context.Context, topic string, groupID string) (<-chan Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}

	sub := &subscription{
		ch:   make(chan Message, 100),
		gone: make(chan struct{}),
	}
	b.subscribers[topic] = append(b.subscribers[topic], sub)

	go func() {
		select {
		case <-ctx.Done():
			b.unsubscribe(topic, sub)
		case <-b.done:
		}
	}()

	return sub.ch, nil
}

func (b *InMemoryBroker) unsubscribe(topic string, sub *subscription) {
	// Release deliveries blocked on this subscriber before closing its channel.
	close(sub.gone)

	b.mu.Lock()
	if !b.closed {
		subs := b.subscribers[topic]
		for i, s := range subs {
			if s == sub {
				b.subscribers[topic] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	}
	b.mu.Unlock()

	sub.close()
}

// Close stops pending deliveries and closes all subscriber channels.
func (b *InMemoryBroker) Close() error {
	// Unblock deliveries waiting on full subscriber channels.
	b.closeOnce.Do(func() { close(b.done) })

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true

	var subs []*subscription
	for topic, topicSubs := range b.subscribers {
		subs = append(subs, topicSubs...)
		delete(b.subscribers, topic)
	}
	b.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
	return nil
}
