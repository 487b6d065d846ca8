package broadcast

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_PublishDeliversToRegisteredSubscriber(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	sub := NewSubscriber()
	h.Register <- sub

	h.Publish(MessageTypeConfigUpdated, map[string]any{"theme": "dark"})

	select {
	case msg := <-sub.C():
		assert.Equal(t, MessageTypeConfigUpdated, msg.Type)
		assert.NotEmpty(t, msg.ID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestHub_UnregisterClosesSubscriberChannel(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	sub := NewSubscriber()
	h.Register <- sub
	h.Unregister <- sub

	select {
	case _, ok := <-sub.C():
		assert.False(t, ok, "channel should be closed after unregister")
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for channel close")
	}
}

func TestHub_UnregisteredSubscriberDoesNotReceive(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	subA := NewSubscriber()
	subB := NewSubscriber()
	h.Register <- subA
	h.Register <- subB
	h.Unregister <- subB

	h.Publish(MessageTypePing, nil)

	select {
	case <-subA.C():
	case <-time.After(time.Second):
		t.Fatal("subA should have received the ping")
	}

	select {
	case _, ok := <-subB.C():
		assert.False(t, ok)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHub_ContextCancellationClosesAllSubscribers(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	sub := NewSubscriber()
	h.Register <- sub
	time.Sleep(20 * time.Millisecond)

	cancel()

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}

	select {
	case _, ok := <-sub.C():
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscriber channel was not closed on shutdown")
	}
}

func TestHub_FullSubscriberBufferDropsWithoutBlocking(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	sub := NewSubscriber()
	h.Register <- sub
	time.Sleep(20 * time.Millisecond)

	for i := 0; i < 64; i++ {
		h.Publish(MessageTypePing, i)
	}

	time.Sleep(50 * time.Millisecond)
	// The subscriber never reads: its 32-slot buffer fills and the rest are dropped.
	assert.Len(t, sub.C(), 32)
}
