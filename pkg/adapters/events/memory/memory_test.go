package memory

import (
	"context"
	"testing"
	"time"

	"github.com/aescanero/dagoml/pkg/domain"
	"github.com/aescanero/dagoml/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.EventBus = (*EventBus)(nil)

func TestPublishFansOut(t *testing.T) {
	bus := NewEventBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan string, 2)
	handler := func(_ context.Context, ev *domain.Event) error {
		got <- ev.RunID
		return nil
	}
	require.NoError(t, bus.Subscribe(ctx, domain.TopicRunEvents, handler))
	require.NoError(t, bus.Subscribe(ctx, domain.TopicRunEvents, handler))

	require.NoError(t, bus.Publish(ctx, domain.TopicRunEvents, &domain.Event{RunID: "r1"}))
	for i := 0; i < 2; i++ {
		select {
		case id := <-got:
			assert.Equal(t, "r1", id)
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}

	require.NoError(t, bus.Publish(ctx, domain.TopicTaskEvents, &domain.Event{RunID: "r2"}))
	select {
	case <-got:
		t.Fatal("event delivered to the wrong topic")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscriptionEndsWithContext(t *testing.T) {
	bus := NewEventBus()
	ctx, cancel := context.WithCancel(context.Background())
	keep, stop := context.WithCancel(context.Background())
	defer stop()

	noop := func(context.Context, *domain.Event) error { return nil }
	require.NoError(t, bus.Subscribe(ctx, domain.TopicRunEvents, noop))
	require.NoError(t, bus.Subscribe(keep, domain.TopicRunEvents, noop))
	assert.Equal(t, 2, bus.Subscribers(domain.TopicRunEvents))

	cancel()
	assert.Eventually(t, func() bool {
		return bus.Subscribers(domain.TopicRunEvents) == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, bus.Unsubscribe(context.Background(), domain.TopicRunEvents))
	assert.Equal(t, 0, bus.Subscribers(domain.TopicRunEvents))
	require.NoError(t, bus.Close())
}

func TestDeliveryKeepsPublishOrder(t *testing.T) {
	bus := NewEventBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const n = 200
	got := make(chan int, n)
	handler := func(_ context.Context, ev *domain.Event) error {
		seq := ev.Data["seq"].(int)
		if seq%7 == 0 {
			time.Sleep(time.Millisecond)
		}
		got <- seq
		return nil
	}
	require.NoError(t, bus.Subscribe(ctx, domain.TopicTaskEvents, handler))

	for i := 0; i < n; i++ {
		require.NoError(t, bus.Publish(ctx, domain.TopicTaskEvents, &domain.Event{RunID: "r", Data: map[string]any{"seq": i}}))
	}
	for i := 0; i < n; i++ {
		select {
		case seq := <-got:
			require.Equal(t, i, seq)
		case <-time.After(time.Second):
			t.Fatalf("event %d not delivered", i)
		}
	}
}

func TestSlowSubscriberDoesNotBlockOthers(t *testing.T) {
	bus := NewEventBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	block := make(chan struct{})
	defer close(block)
	require.NoError(t, bus.Subscribe(ctx, domain.TopicRunEvents, func(context.Context, *domain.Event) error {
		<-block
		return nil
	}))
	got := make(chan string, 2)
	require.NoError(t, bus.Subscribe(ctx, domain.TopicRunEvents, func(_ context.Context, ev *domain.Event) error {
		got <- ev.RunID
		return nil
	}))

	require.NoError(t, bus.Publish(ctx, domain.TopicRunEvents, &domain.Event{RunID: "a"}))
	require.NoError(t, bus.Publish(ctx, domain.TopicRunEvents, &domain.Event{RunID: "b"}))
	for _, want := range []string{"a", "b"} {
		select {
		case id := <-got:
			assert.Equal(t, want, id)
		case <-time.After(time.Second):
			t.Fatal("fast subscriber was blocked")
		}
	}
}
