package services

import (
	"sync"

	"github.com/google/uuid"

	"github.com/agisfl/agisfl-server/internal/core/models"
	"github.com/agisfl/agisfl-server/pkg/logger"
)

const subscriberBuffer = 16

// EventHub fans lifecycle events out to any number of subscribers. Emit
// never blocks: a subscriber whose buffer is full misses the event, which
// keeps a stalled consumer from holding up the training loop.
type EventHub struct {
	mu          sync.RWMutex
	subscribers map[string]chan models.Event
	closed      bool
}

func NewEventHub() *EventHub {
	return &EventHub{subscribers: make(map[string]chan models.Event)}
}

// Subscribe registers a new consumer and returns its id plus the channel
// events arrive on. The channel is closed by Unsubscribe or Close.
func (h *EventHub) Subscribe() (string, <-chan models.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := uuid.New().String()
	ch := make(chan models.Event, subscriberBuffer)
	if h.closed {
		close(ch)
		return id, ch
	}
	h.subscribers[id] = ch
	return id, ch
}

func (h *EventHub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.subscribers[id]; ok {
		delete(h.subscribers, id)
		close(ch)
	}
}

// Emit delivers the event to every subscriber that has buffer space.
func (h *EventHub) Emit(event models.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return
	}
	log := logger.WithComponent("event_hub")
	for id, ch := range h.subscribers {
		select {
		case ch <- event:
		default:
			log.Debug().
				Str("subscriber_id", id).
				Str("event", string(event.Kind)).
				Msg("Dropped event for slow subscriber")
		}
	}
}

// Close shuts the hub down and closes all subscriber channels. Subsequent
// Emit calls are no-ops.
func (h *EventHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subscribers {
		delete(h.subscribers, id)
		close(ch)
	}
}
