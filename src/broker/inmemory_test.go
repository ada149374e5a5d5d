package broker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestTopicIsolation verifies subscribers on different topics do not receive wrong messages.
func TestTopicIsolation(t *testing.T) {
	broker := NewInMemoryBroker()
	defer broker.Close()

	ctx := context.Background()

	chA, err := broker.Subscribe(ctx, "topic-a", "g")
	require.NoError(t, err)
	chB, err := broker.Subscribe(ctx, "topic-b", "g")
	require.NoError(t, err)

	// Publish to topic-a only
	testMsg := []byte("message for topic-a")
	broker.Send(ctx, Message{Topic: "topic-a", Value: testMsg})

	select {
	case received := <-chA:
		assert.Equal(t, testMsg, received.Value)
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for message on topic-a")
	}

	select {
	case msg := <-chB:
		t.Errorf("topic-b should not receive message, but got: %q", msg.Value)
	case <-time.After(100 * time.Millisecond):
	}
}

// TestSendDoesNotBlockOnFullSubscriber verifies Send returns before delivery completes.
func TestSendDoesNotBlockOnFullSubscriber(t *testing.T) {
	broker := NewInMemoryBroker()

	ctx := context.Background()
	_, err := broker.Subscribe(ctx, "slow", "g")
	require.NoError(t, err)

	// Fill the subscriber buffer; nobody reads it.
	futures := make([]*Future, 0, 110)
	start := time.Now()
	for i := 0; i < 110; i++ {
		futures = append(futures, broker.Send(ctx, Message{Topic: "slow", Value: []byte("x")}))
	}
	require.Less(t, time.Since(start), time.Second, "Send blocked")

	pending := 0
	for _, f := range futures {
		if !f.IsComplete() {
			pending++
		}
	}
	require.NotZero(t, pending, "expected some deliveries to be pending on the full subscriber")

	// Close unblocks the pending deliveries with a failure outcome.
	require.NoError(t, broker.Close())
	for i, f := range futures {
		select {
		case <-f.Done():
		case <-time.After(2 * time.Second):
			t.Fatalf("future %d did not resolve after Close", i)
		}
	}
}

// TestStalledTopicDoesNotBlockOthers verifies a delivery waiting on a full subscriber
// holds no lock that subscription changes or other topics need.
func TestStalledTopicDoesNotBlockOthers(t *testing.T) {
	broker := NewInMemoryBroker()
	defer broker.Close()

	ctx := context.Background()
	_, err := broker.Subscribe(ctx, "slow", "g")
	require.NoError(t, err)
	for i := 0; i < 101; i++ {
		broker.Send(ctx, Message{Topic: "slow", Value: []byte("x")})
	}
	time.Sleep(50 * time.Millisecond)

	finished := make(chan struct{})
	go func() {
		defer close(finished)

		other, err := broker.Subscribe(ctx, "other", "g")
		if !assert.NoError(t, err) {
			return
		}
		broker.SetFailure(nil)

		outcome, err := broker.Send(ctx, Message{Topic: "other", Value: []byte("fast")}).Await(ctx)
		if assert.NoError(t, err) {
			assert.True(t, outcome.Succeeded())
		}
		assert.Equal(t, "fast", string((<-other).Value))
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("subscribe or send on another topic blocked behind the stalled topic")
	}
}

// TestConcurrentSendSubscribe verifies the mutex correctly protects the subscribers map.
func TestConcurrentSendSubscribe(t *testing.T) {
	broker := NewInMemoryBroker()
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const numGoroutines = 50
	var wg sync.WaitGroup

	// Half goroutines publish, half subscribe
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		if i%2 == 0 {
			go func() {
				defer wg.Done()
				for j := 0; j < 10; j++ {
					broker.Send(ctx, Message{Topic: "concurrent-topic", Value: []byte("msg")})
				}
			}()
		} else {
			go func() {
				defer wg.Done()
				for j := 0; j < 10; j++ {
					ch, err := broker.Subscribe(ctx, "concurrent-topic", "g")
					if err != nil {
						return
					}
					go func() {
						for range ch {
						}
					}()
				}
			}()
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timeout: possible deadlock in concurrent access")
	}
}

// TestCloseGracefulShutdown verifies broker.Close() correctly closes all subscriber channels.
func TestCloseGracefulShutdown(t *testing.T) {
	broker := NewInMemoryBroker()
	ctx := context.Background()

	ch1, err := broker.Subscribe(ctx, "topic-1", "g")
	require.NoError(t, err)
	ch2, err := broker.Subscribe(ctx, "topic-2", "g")
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(2)
	for _, ch := range []<-chan Message{ch1, ch2} {
		go func(ch <-chan Message) {
			defer wg.Done()
			for range ch {
			}
		}(ch)
	}

	require.NoError(t, broker.Close())

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout: readers did not exit, channels may not be closed")
	}

	assert.NoError(t, broker.Close(), "second Close is a no-op")
}

// TestSubscriptionEndsWithContext verifies cancelling the subscribe context closes only that channel.
func TestSubscriptionEndsWithContext(t *testing.T) {
	broker := NewInMemoryBroker()
	defer broker.Close()

	subCtx, cancel := context.WithCancel(context.Background())
	ch, err := broker.Subscribe(subCtx, "topic", "g")
	require.NoError(t, err)
	other, err := broker.Subscribe(context.Background(), "topic", "g")
	require.NoError(t, err)

	cancel()

	select {
	case _, ok := <-ch:
		require.False(t, ok, "expected channel to be closed")
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	broker.Send(context.Background(), Message{Topic: "topic", Value: []byte("still here")})
	select {
	case msg := <-other:
		assert.Equal(t, "still here", string(msg.Value))
	case <-time.After(1 * time.Second):
		t.Fatal("remaining subscriber did not receive message")
	}
}

// TestUnsubscribeReleasesBlockedDelivery verifies a cancelled subscriber with a full
// buffer does not hold up delivery to the other subscribers.
func TestUnsubscribeReleasesBlockedDelivery(t *testing.T) {
	broker := NewInMemoryBroker()
	defer broker.Close()

	subCtx, cancel := context.WithCancel(context.Background())
	_, err := broker.Subscribe(subCtx, "topic", "g")
	require.NoError(t, err)

	// Fill the stalled subscriber's buffer.
	for i := 0; i < 100; i++ {
		_, err := broker.Send(context.Background(), Message{Topic: "topic", Value: []byte("fill")}).Await(context.Background())
		require.NoError(t, err)
	}

	blocked := broker.Send(context.Background(), Message{Topic: "topic", Value: []byte("blocked")})
	time.Sleep(50 * time.Millisecond)
	require.False(t, blocked.IsComplete(), "expected delivery to wait on the full subscriber")

	cancel()

	ctx, done := context.WithTimeout(context.Background(), time.Second)
	defer done()
	outcome, err := blocked.Await(ctx)
	require.NoError(t, err, "delivery still blocked after unsubscribe")
	assert.True(t, outcome.Succeeded(), "expected success, got %v", outcome.Err)
}

// TestCloseDuringDeliveryDoesNotPanic verifies closing subscriber channels never races a send.
func TestCloseDuringDeliveryDoesNotPanic(t *testing.T) {
	for i := 0; i < 20; i++ {
		broker := NewInMemoryBroker()
		ctx, cancel := context.WithCancel(context.Background())

		ch, err := broker.Subscribe(ctx, "topic", "g")
		require.NoError(t, err)
		go func() {
			for range ch {
			}
		}()

		futures := make([]*Future, 0, 50)
		for j := 0; j < 50; j++ {
			futures = append(futures, broker.Send(context.Background(), Message{Topic: "topic", Value: []byte("x")}))
		}
		cancel()
		require.NoError(t, broker.Close())

		for _, f := range futures {
			outcome, err := f.Await(context.Background())
			require.NoError(t, err)
			if outcome.Err != nil {
				assert.True(t, errors.Is(outcome.Err, ErrClosed), "unexpected failure %v", outcome.Err)
			}
		}
	}
}
