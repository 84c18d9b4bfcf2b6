package streaming

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recvEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestMemoryHub_PublishSubscribe(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, Filter{})
	require.NoError(t, err)
	defer cancel()

	want := Event{RunID: "run-1", StepID: "START", Type: "step_running"}
	require.NoError(t, hub.Publish(ctx, want))

	assert.Equal(t, want, recvEvent(t, ch))
}

func TestMemoryHub_RunIDFilter(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, Filter{RunID: "run-2"})
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, hub.Publish(ctx, Event{RunID: "run-1", Type: "step_done"}))
	require.NoError(t, hub.Publish(ctx, Event{RunID: "run-2", Type: "step_done"}))

	got := recvEvent(t, ch)
	assert.Equal(t, "run-2", got.RunID)
	assert.Empty(t, ch)
}

func TestMemoryHub_TypeFilter(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, Filter{Types: []string{"prompt_requested"}})
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, hub.Publish(ctx, Event{RunID: "run-1", Type: "step_running"}))
	require.NoError(t, hub.Publish(ctx, Event{RunID: "run-1", Type: "prompt_requested"}))

	got := recvEvent(t, ch)
	assert.Equal(t, "prompt_requested", got.Type)
	assert.Empty(t, ch)
}

func TestMemoryHub_CancelStopsDelivery(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, Filter{})
	require.NoError(t, err)

	cancel()
	require.NoError(t, hub.Publish(ctx, Event{RunID: "run-1", Type: "step_done"}))
	assert.Empty(t, ch)
}

func TestMemoryHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, Filter{})
	require.NoError(t, err)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < defaultChannelBuffer*2; i++ {
			_ = hub.Publish(ctx, Event{RunID: "run-1", Type: "step_done"})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full subscriber channel")
	}
	assert.Len(t, ch, defaultChannelBuffer)
}

func TestMemoryHub_CancelledContext(t *testing.T) {
	hub := NewMemoryHub()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.Error(t, hub.Publish(ctx, Event{RunID: "r"}))
	_, _, err := hub.Subscribe(ctx, Filter{})
	require.Error(t, err)
}
