package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agisfl/agisfl-server/internal/core/models"
)

func TestEventHubDeliversToSubscribers(t *testing.T) {
	hub := NewEventHub()
	defer hub.Close()

	_, first := hub.Subscribe()
	_, second := hub.Subscribe()

	hub.Emit(models.NewEvent(models.EventTrainingStarted, map[string]interface{}{"rounds": 3}))

	for _, ch := range []<-chan models.Event{first, second} {
		select {
		case event := <-ch:
			assert.Equal(t, models.EventTrainingStarted, event.Kind)
			assert.False(t, event.Timestamp.IsZero())
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}
}

func TestEventHubUnsubscribeClosesChannel(t *testing.T) {
	hub := NewEventHub()
	defer hub.Close()

	id, events := hub.Subscribe()
	hub.Unsubscribe(id)

	_, open := <-events
	assert.False(t, open)

	// Unsubscribing twice must not panic.
	hub.Unsubscribe(id)

	// Emitting after unsubscribe must not block or panic.
	hub.Emit(models.NewEvent(models.EventRoundCompleted, nil))
}

func TestEventHubDropsForSlowSubscriber(t *testing.T) {
	hub := NewEventHub()
	defer hub.Close()

	_, events := hub.Subscribe()

	// Never read: once the buffer is full, further emits must not block.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBuffer*2; i++ {
			hub.Emit(models.NewEvent(models.EventRoundCompleted, map[string]interface{}{"round": i}))
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("emit blocked on a slow subscriber")
	}

	received := 0
	for {
		select {
		case <-events:
			received++
			continue
		default:
		}
		break
	}
	assert.Equal(t, subscriberBuffer, received)
}

func TestEventHubClose(t *testing.T) {
	hub := NewEventHub()

	_, events := hub.Subscribe()
	hub.Close()

	_, open := <-events
	assert.False(t, open)

	// Post-close operations are inert.
	hub.Emit(models.NewEvent(models.EventTrainingCompleted, nil))
	hub.Close()

	id, ch := hub.Subscribe()
	require.NotEmpty(t, id)
	_, open = <-ch
	assert.False(t, open)
}
